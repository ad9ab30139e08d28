package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/scheduling-api/internal/model"
)

func (r *credentialRepository) Get(ctx context.Context, accountID uuid.UUID, vendor string) (*model.OrganizerCredential, error) {
	query := `
		SELECT account_id, vendor, access_token, refresh_token, expiry, updated_at
		FROM organizer_credentials
		WHERE account_id = $1 AND vendor = $2
	`
	var cred model.OrganizerCredential
	if err := r.db.GetContext(ctx, &cred, query, accountID, vendor); err != nil {
		return nil, fmt.Errorf("failed to get organizer credential: %w", translate(err))
	}
	return &cred, nil
}

func (r *credentialRepository) Upsert(ctx context.Context, cred *model.OrganizerCredential) error {
	query := `
		INSERT INTO organizer_credentials (account_id, vendor, access_token, refresh_token, expiry, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (account_id, vendor) DO UPDATE
		SET access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expiry = EXCLUDED.expiry,
			updated_at = EXCLUDED.updated_at
	`
	cred.UpdatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, query,
		cred.AccountID, cred.Vendor, cred.AccessToken, cred.RefreshToken, cred.Expiry, cred.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save organizer credential: %w", err)
	}
	return nil
}
