package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/scheduling-api/internal/model"
	"github.com/jwalitptl/scheduling-api/internal/repository"
)

const proposalColumns = `id, provider_id, client_id, status, proposed_slots, price, notes,
	expires_at, sent_at, created_at, updated_at`

func (r *slotProposalRepository) Create(ctx context.Context, p *model.SlotProposal) error {
	query := `
		INSERT INTO slot_proposals (
			id, provider_id, client_id, status, proposed_slots, price, notes,
			expires_at, sent_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	p.Touch(time.Now().UTC())

	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.ProviderID,
		p.ClientID,
		p.Status,
		p.Slots,
		p.Price,
		p.Notes,
		p.ExpiresAt,
		p.SentAt,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create slot proposal: %w", translate(err))
	}
	return nil
}

func (r *slotProposalRepository) Get(ctx context.Context, id uuid.UUID) (*model.SlotProposal, error) {
	var p model.SlotProposal
	if err := r.db.GetContext(ctx, &p, `SELECT `+proposalColumns+` FROM slot_proposals WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("failed to get slot proposal: %w", translate(err))
	}
	return &p, nil
}

func (r *slotProposalRepository) UpdateDraft(ctx context.Context, p *model.SlotProposal) error {
	query := `
		UPDATE slot_proposals
		SET proposed_slots = $1, price = $2, notes = $3, updated_at = $4
		WHERE id = $5 AND status = 'draft'
	`
	p.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx, query, p.Slots, p.Price, p.Notes, p.UpdatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update slot proposal: %w", err)
	}
	return r.checkTransition(ctx, result.RowsAffected, p.ID)
}

// MarkSent is the draft to sent compare-and-set. Exactly one concurrent
// caller wins; the rest get repository.ErrStaleState.
func (r *slotProposalRepository) MarkSent(ctx context.Context, id uuid.UUID, sentAt, expiresAt time.Time) error {
	query := `
		UPDATE slot_proposals
		SET status = 'sent', sent_at = $1, expires_at = $2, updated_at = NOW()
		WHERE id = $3 AND status = 'draft'
	`
	result, err := r.db.ExecContext(ctx, query, sentAt, expiresAt, id)
	if err != nil {
		return fmt.Errorf("failed to mark slot proposal sent: %w", err)
	}
	return r.checkTransition(ctx, result.RowsAffected, id)
}

func (r *slotProposalRepository) MarkExpired(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE slot_proposals
		SET status = 'expired', updated_at = NOW()
		WHERE id = $1 AND status = 'sent'
	`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark slot proposal expired: %w", err)
	}
	return r.checkTransition(ctx, result.RowsAffected, id)
}

func (r *slotProposalRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*model.SlotProposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM slot_proposals
		WHERE status = 'sent' AND expires_at <= $1
		ORDER BY expires_at ASC
		LIMIT $2`

	var proposals []*model.SlotProposal
	if err := r.db.SelectContext(ctx, &proposals, query, now, limit); err != nil {
		return nil, fmt.Errorf("failed to list expired slot proposals: %w", err)
	}
	return proposals, nil
}

func (r *slotProposalRepository) checkTransition(ctx context.Context, rowsAffected func() (int64, error), id uuid.UUID) error {
	rows, err := rowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM slot_proposals WHERE id = $1)`, id); err != nil {
		return fmt.Errorf("failed to check slot proposal: %w", err)
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrStaleState
}
