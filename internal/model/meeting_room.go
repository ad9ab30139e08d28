package model

import (
	"time"

	"github.com/google/uuid"
)

type MeetingProvider string

const (
	MeetingProviderGoogleMeet   MeetingProvider = "google_meet"
	MeetingProviderFallbackLink MeetingProvider = "fallback_link"
)

type RoomStatus string

const (
	RoomStatusCreated RoomStatus = "created"
	RoomStatusActive  RoomStatus = "active"
	RoomStatusEnded   RoomStatus = "ended"
)

// MeetingRoom rows are never deleted; a finished session is marked ended.
type MeetingRoom struct {
	Base
	AppointmentID uuid.UUID       `db:"appointment_id" json:"appointment_id"`
	Provider      MeetingProvider `db:"provider" json:"provider"`
	MeetingCode   string          `db:"meeting_code" json:"meeting_code"`
	JoinURL       string          `db:"join_url" json:"join_url"`
	ExternalName  *string         `db:"external_name" json:"external_name,omitempty"`
	Status        RoomStatus      `db:"status" json:"status"`
	StartedAt     *time.Time      `db:"started_at" json:"started_at,omitempty"`
	EndedAt       *time.Time      `db:"ended_at" json:"ended_at,omitempty"`
}
