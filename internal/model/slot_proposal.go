package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ProposalStatus string

const (
	ProposalStatusDraft   ProposalStatus = "draft"
	ProposalStatusSent    ProposalStatus = "sent"
	ProposalStatusExpired ProposalStatus = "expired"
)

// DefaultSlotConfidence applies when a proposed slot carries none.
const DefaultSlotConfidence = 0.8

type ProposedSlot struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Confidence *float64  `json:"confidence,omitempty"`
}

func (s ProposedSlot) Interval() Interval {
	return Interval{Start: s.Start, End: s.End}
}

func (s ProposedSlot) ConfidenceOrDefault() float64 {
	if s.Confidence == nil {
		return DefaultSlotConfidence
	}
	return *s.Confidence
}

// ProposedSlots is stored as a jsonb array.
type ProposedSlots []ProposedSlot

func (p ProposedSlots) Value() (driver.Value, error) {
	if p == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(p)
}

func (p *ProposedSlots) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*p = ProposedSlots{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into ProposedSlots", src)
	}
	return json.Unmarshal(raw, p)
}

type SlotProposal struct {
	Base
	ProviderID uuid.UUID      `db:"provider_id" json:"provider_id"`
	ClientID   uuid.UUID      `db:"client_id" json:"client_id"`
	Status     ProposalStatus `db:"status" json:"status"`
	Slots      ProposedSlots  `db:"proposed_slots" json:"proposed_slots"`
	Price      float64        `db:"price" json:"price"`
	Notes      string         `db:"notes" json:"notes,omitempty"`
	ExpiresAt  *time.Time     `db:"expires_at" json:"expires_at,omitempty"`
	SentAt     *time.Time     `db:"sent_at" json:"sent_at,omitempty"`
}
