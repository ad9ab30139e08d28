package model

import (
	"time"

	"github.com/google/uuid"
)

// OrganizerCredential holds sealed OAuth tokens for the video vendor.
type OrganizerCredential struct {
	AccountID    uuid.UUID `db:"account_id"`
	Vendor       string    `db:"vendor"`
	AccessToken  []byte    `db:"access_token"`
	RefreshToken []byte    `db:"refresh_token"`
	Expiry       time.Time `db:"expiry"`
	UpdatedAt    time.Time `db:"updated_at"`
}
