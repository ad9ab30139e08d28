package meeting

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNoCredential means the organizer never connected a vendor account.
var ErrNoCredential = errors.New("organizer has no video vendor credential")

// Space is what a vendor returns for a newly created room.
type Space struct {
	Name        string
	MeetingCode string
	MeetingURI  string
}

// Vendor creates rooms with an external video provider on behalf of an
// organizer.
type Vendor interface {
	CreateSpace(ctx context.Context, organizerID uuid.UUID) (*Space, error)
}
