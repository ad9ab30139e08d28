package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/scheduling-api/internal/model"
)

func (r *overlayRepository) ListForDay(ctx context.Context, providerID uuid.UUID, day time.Time) ([]model.ExternalBusyInterval, error) {
	query := `
		SELECT id, provider_id, source, starts_at_raw, ends_at_raw, summary, starts_on
		FROM external_calendar_events
		WHERE provider_id = $1
		AND starts_on BETWEEN $2::date - 1 AND $2::date
	`
	var events []model.ExternalBusyInterval
	if err := r.db.SelectContext(ctx, &events, query, providerID, day.Format("2006-01-02")); err != nil {
		return nil, fmt.Errorf("failed to list external calendar events: %w", err)
	}
	return events, nil
}
