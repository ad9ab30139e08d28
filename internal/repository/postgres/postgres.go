package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/scheduling-api/internal/repository"
)

type appointmentRepository struct {
	db *sqlx.DB
}

type meetingRoomRepository struct {
	db *sqlx.DB
}

type slotProposalRepository struct {
	db *sqlx.DB
}

type accountRepository struct {
	db *sqlx.DB
}

type overlayRepository struct {
	db *sqlx.DB
}

type credentialRepository struct {
	db *sqlx.DB
}

func NewAppointmentRepository(db *sqlx.DB) repository.AppointmentRepository {
	return &appointmentRepository{db: db}
}

func NewMeetingRoomRepository(db *sqlx.DB) repository.MeetingRoomRepository {
	return &meetingRoomRepository{db: db}
}

func NewSlotProposalRepository(db *sqlx.DB) repository.SlotProposalRepository {
	return &slotProposalRepository{db: db}
}

func NewAccountRepository(db *sqlx.DB) repository.AccountRepository {
	return &accountRepository{db: db}
}

func NewCalendarOverlayRepository(db *sqlx.DB) repository.CalendarOverlayRepository {
	return &overlayRepository{db: db}
}

func NewCredentialRepository(db *sqlx.DB) repository.CredentialRepository {
	return &credentialRepository{db: db}
}

// NewRepositories wires every PostgreSQL repository onto db.
func NewRepositories(db *sqlx.DB) *repository.Repositories {
	return &repository.Repositories{
		Appointments: NewAppointmentRepository(db),
		Rooms:        NewMeetingRoomRepository(db),
		Proposals:    NewSlotProposalRepository(db),
		Outbox:       NewOutboxRepository(NewBaseRepository(db)),
		Accounts:     NewAccountRepository(db),
		Overlay:      NewCalendarOverlayRepository(db),
		Credentials:  NewCredentialRepository(db),
		Ping:         func(ctx context.Context) error { return db.PingContext(ctx) },
		Close:        db.Close,
	}
}
