package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
)

// Blocks reports whether an appointment in this status holds provider time.
func (s AppointmentStatus) Blocks() bool {
	return s != AppointmentStatusCancelled
}

type Appointment struct {
	Base
	ProviderID     uuid.UUID         `db:"provider_id" json:"provider_id"`
	ClientID       uuid.UUID         `db:"client_id" json:"client_id"`
	ProposalID     *uuid.UUID        `db:"proposal_id" json:"proposal_id,omitempty"`
	StartTime      time.Time         `db:"start_time" json:"start_time"`
	EndTime        time.Time         `db:"end_time" json:"end_time"`
	Status         AppointmentStatus `db:"status" json:"status"`
	MeetingRoomID  *uuid.UUID        `db:"meeting_room_id" json:"meeting_room_id,omitempty"`
	JoinURL        *string           `db:"join_url" json:"join_url,omitempty"`
	Price          float64           `db:"price" json:"price"`
	Notes          string            `db:"notes" json:"notes,omitempty"`
	IdempotencyKey *string           `db:"idempotency_key" json:"-"`
}

func (a *Appointment) Interval() Interval {
	return Interval{Start: a.StartTime, End: a.EndTime}
}

func (a *Appointment) IsParticipant(accountID uuid.UUID) bool {
	return a.ProviderID == accountID || a.ClientID == accountID
}

type AppointmentFilters struct {
	ProviderID uuid.UUID
	ClientID   uuid.UUID
	// ParticipantID matches either side.
	ParticipantID uuid.UUID
	Status        AppointmentStatus
	From          time.Time
	To            time.Time
}
