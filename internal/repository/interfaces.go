package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/scheduling-api/internal/model"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrIntervalTaken is raised by the store when a write would make two
	// non-cancelled appointments of one provider overlap.
	ErrIntervalTaken           = errors.New("interval overlaps an existing appointment")
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")
	// ErrStaleState means a compare-and-set found the row in another state.
	ErrStaleState = errors.New("record state changed concurrently")
	ErrRoomExists = errors.New("meeting room already exists for appointment")
)

// OutboxHandler is called for each claimed event. Returning an error marks
// the event failed.
type OutboxHandler func(ctx context.Context, event *model.OutboxEvent) error

// All repository interfaces in one file
type (
	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		GetByIdempotencyKey(ctx context.Context, clientID uuid.UUID, key string) (*model.Appointment, error)
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
		// ListInWindow returns every appointment of the provider that touches
		// [from, to), cancelled ones included.
		ListInWindow(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]*model.Appointment, error)
		ListByProposal(ctx context.Context, proposalID uuid.UUID) ([]*model.Appointment, error)
		AttachRoom(ctx context.Context, id, roomID uuid.UUID, joinURL string) error
		UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.AppointmentStatus) error
	}

	MeetingRoomRepository interface {
		Create(ctx context.Context, room *model.MeetingRoom) error
		Get(ctx context.Context, id uuid.UUID) (*model.MeetingRoom, error)
		GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.MeetingRoom, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.RoomStatus, at time.Time) error
	}

	SlotProposalRepository interface {
		Create(ctx context.Context, proposal *model.SlotProposal) error
		Get(ctx context.Context, id uuid.UUID) (*model.SlotProposal, error)
		UpdateDraft(ctx context.Context, proposal *model.SlotProposal) error
		MarkSent(ctx context.Context, id uuid.UUID, sentAt, expiresAt time.Time) error
		MarkExpired(ctx context.Context, id uuid.UUID) error
		ListExpired(ctx context.Context, now time.Time, limit int) ([]*model.SlotProposal, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// ProcessPending claims up to limit pending events, hands each to fn
		// and records the outcome. It returns how many events were claimed.
		ProcessPending(ctx context.Context, limit int, fn OutboxHandler) (int, error)
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	AccountRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Account, error)
	}

	CalendarOverlayRepository interface {
		// ListForDay returns entries filed under day or the day before, so
		// that intervals crossing midnight are seen.
		ListForDay(ctx context.Context, providerID uuid.UUID, day time.Time) ([]model.ExternalBusyInterval, error)
	}

	CredentialRepository interface {
		Get(ctx context.Context, accountID uuid.UUID, vendor string) (*model.OrganizerCredential, error)
		Upsert(ctx context.Context, cred *model.OrganizerCredential) error
	}
)

// Repositories bundles the stores a driver provides.
type Repositories struct {
	Appointments AppointmentRepository
	Rooms        MeetingRoomRepository
	Proposals    SlotProposalRepository
	Outbox       OutboxRepository
	Accounts     AccountRepository
	Overlay      CalendarOverlayRepository
	Credentials  CredentialRepository
	// Ping checks the backing store.
	Ping func(ctx context.Context) error
	// Close releases the backing store.
	Close func() error
}
