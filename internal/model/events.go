package model

import (
	"time"

	"github.com/google/uuid"
)

// Domain event types written to the outbox.
const (
	EventAppointmentCreated       = "appointment.created"
	EventAppointmentStatusChanged = "appointment.status_changed"
	EventSlotProposalSent         = "slot_proposal.sent"
	EventSlotProposalExpired      = "slot_proposal.expired"
)

type AppointmentCreatedPayload struct {
	AppointmentID uuid.UUID  `json:"appointment_id"`
	ProviderID    uuid.UUID  `json:"provider_id"`
	ClientID      uuid.UUID  `json:"client_id"`
	ProposalID    *uuid.UUID `json:"proposal_id,omitempty"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       time.Time  `json:"end_time"`
	JoinURL       *string    `json:"join_url,omitempty"`
}

type AppointmentStatusChangedPayload struct {
	AppointmentID uuid.UUID         `json:"appointment_id"`
	From          AppointmentStatus `json:"from"`
	To            AppointmentStatus `json:"to"`
	ChangedBy     uuid.UUID         `json:"changed_by"`
}

// ProposalSentPayload is the single notification emitted after a send.
type ProposalSentPayload struct {
	ProposalID     uuid.UUID          `json:"proposal_id"`
	ProviderID     uuid.UUID          `json:"provider_id"`
	ProviderName   string             `json:"provider_name"`
	ClientID       uuid.UUID          `json:"client_id"`
	ClientEmail    string             `json:"client_email"`
	ClientName     string             `json:"client_name"`
	TimeZone       string             `json:"time_zone"`
	Slots          []ProposalSentSlot `json:"slots"`
	AppointmentIDs []uuid.UUID        `json:"appointment_ids"`
	ExpiresAt      time.Time          `json:"expires_at"`
	Price          float64            `json:"price"`
}

type ProposalSentSlot struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	JoinURL       *string   `json:"join_url,omitempty"`
}

type ProposalExpiredPayload struct {
	ProposalID            uuid.UUID   `json:"proposal_id"`
	CancelledAppointments []uuid.UUID `json:"cancelled_appointments"`
}
