package model

import (
	"time"

	"github.com/google/uuid"
)

// ExternalBusyInterval is an entry from a read-only external calendar feed.
// Bounds are kept as delivered since feeds are not trusted to be well formed.
type ExternalBusyInterval struct {
	ID         uuid.UUID `db:"id" json:"id"`
	ProviderID uuid.UUID `db:"provider_id" json:"provider_id"`
	Source     string    `db:"source" json:"source"`
	StartRaw   string    `db:"starts_at_raw" json:"start"`
	EndRaw     string    `db:"ends_at_raw" json:"end"`
	Summary    string    `db:"summary" json:"summary,omitempty"`
	// StartsOn is the local date the feed filed the entry under.
	StartsOn time.Time `db:"starts_on" json:"-"`
}

// Parse returns the interval in absolute time.
func (e ExternalBusyInterval) Parse() (Interval, error) {
	start, err := time.Parse(time.RFC3339, e.StartRaw)
	if err != nil {
		return Interval{}, err
	}
	end, err := time.Parse(time.RFC3339, e.EndRaw)
	if err != nil {
		return Interval{}, err
	}
	return Interval{Start: start, End: end}, nil
}
