package meeting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/scheduling-api/internal/model"
	"github.com/jwalitptl/scheduling-api/internal/repository"
	"github.com/jwalitptl/scheduling-api/pkg/circuitbreaker"
	apperrors "github.com/jwalitptl/scheduling-api/pkg/errors"
	"github.com/jwalitptl/scheduling-api/pkg/logger"
	"github.com/jwalitptl/scheduling-api/pkg/metrics"
)

type Config struct {
	FallbackBaseURL string
	// VendorTimeout bounds a single vendor call.
	VendorTimeout time.Duration
	// BreakerFailures consecutive vendor errors stop vendor calls for BreakerCooldown.
	BreakerFailures int
	BreakerCooldown time.Duration
}

// Provisioner creates the meeting room of an appointment. It prefers the
// vendor and falls back to a locally derived link, so Provision only fails
// when the room row itself cannot be stored.
type Provisioner struct {
	rooms   repository.MeetingRoomRepository
	vendor  Vendor
	breaker *circuitbreaker.CircuitBreaker
	cfg     Config
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewProvisioner accepts a nil vendor, in which case every room uses the
// fallback link.
func NewProvisioner(rooms repository.MeetingRoomRepository, vendor Vendor, cfg Config, log *logger.Logger, m *metrics.Metrics) *Provisioner {
	if cfg.FallbackBaseURL == "" {
		cfg.FallbackBaseURL = "https://meet.google.com"
	}
	if cfg.VendorTimeout <= 0 {
		cfg.VendorTimeout = 10 * time.Second
	}
	return &Provisioner{
		rooms:  rooms,
		vendor: vendor,
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "meeting-vendor",
			MaxFailures: cfg.BreakerFailures,
			Timeout:     cfg.BreakerCooldown,
		}),
		cfg:     cfg,
		logger:  log,
		metrics: m,
		now:     time.Now,
	}
}

// Provision returns the appointment's room, creating and persisting it when
// none exists yet.
func (p *Provisioner) Provision(ctx context.Context, appointmentID uuid.UUID, organizer model.Principal) (*model.MeetingRoom, error) {
	existing, err := p.rooms.GetByAppointment(ctx, appointmentID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up meeting room: %w", err)
	}

	room := p.fromVendor(ctx, appointmentID, organizer)
	if room == nil {
		room = p.fallback(appointmentID)
	}

	if err := p.rooms.Create(ctx, room); err != nil {
		if errors.Is(err, repository.ErrRoomExists) {
			return p.rooms.GetByAppointment(ctx, appointmentID)
		}
		return nil, fmt.Errorf("failed to store meeting room: %w", err)
	}

	p.metrics.RoomsProvisioned.WithLabelValues(string(room.Provider)).Inc()
	return room, nil
}

func (p *Provisioner) fromVendor(ctx context.Context, appointmentID uuid.UUID, organizer model.Principal) *model.MeetingRoom {
	if p.vendor == nil || organizer.Role != model.RoleProvider {
		return nil
	}

	var space *Space
	err := p.breaker.Execute(func() error {
		callCtx, cancel := context.WithTimeout(ctx, p.cfg.VendorTimeout)
		defer cancel()

		var err error
		space, err = p.vendor.CreateSpace(callCtx, organizer.AccountID)
		if errors.Is(err, ErrNoCredential) {
			// missing authorization is not a vendor fault
			return nil
		}
		return err
	})
	if err != nil || space == nil || space.MeetingURI == "" {
		if err != nil {
			p.logger.Warn("video vendor unavailable, using fallback link",
				"appointment_id", appointmentID.String(),
				"organizer_id", organizer.AccountID.String(),
				"error", err.Error())
		}
		return nil
	}

	room := &model.MeetingRoom{
		AppointmentID: appointmentID,
		Provider:      model.MeetingProviderGoogleMeet,
		MeetingCode:   space.MeetingCode,
		JoinURL:       space.MeetingURI,
		Status:        model.RoomStatusCreated,
	}
	if space.Name != "" {
		name := space.Name
		room.ExternalName = &name
	}
	return room
}

func (p *Provisioner) fallback(appointmentID uuid.UUID) *model.MeetingRoom {
	code := FallbackCode(appointmentID)
	return &model.MeetingRoom{
		AppointmentID: appointmentID,
		Provider:      model.MeetingProviderFallbackLink,
		MeetingCode:   code,
		JoinURL:       FallbackURL(p.cfg.FallbackBaseURL, code),
		Status:        model.RoomStatusCreated,
	}
}

// Start moves a room from created to active.
func (p *Provisioner) Start(ctx context.Context, roomID uuid.UUID) (*model.MeetingRoom, error) {
	return p.transition(ctx, roomID, model.RoomStatusCreated, model.RoomStatusActive)
}

// End moves a room from active to ended.
func (p *Provisioner) End(ctx context.Context, roomID uuid.UUID) (*model.MeetingRoom, error) {
	return p.transition(ctx, roomID, model.RoomStatusActive, model.RoomStatusEnded)
}

func (p *Provisioner) transition(ctx context.Context, roomID uuid.UUID, from, to model.RoomStatus) (*model.MeetingRoom, error) {
	if err := p.rooms.UpdateStatus(ctx, roomID, from, to, p.now().UTC()); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.NotFound("meeting room", err)
		case errors.Is(err, repository.ErrStaleState):
			return nil, apperrors.InvalidStatusTransition(string(from), string(to))
		}
		return nil, apperrors.Internal(err)
	}
	return p.Room(ctx, roomID)
}

// Room returns a room by id.
func (p *Provisioner) Room(ctx context.Context, roomID uuid.UUID) (*model.MeetingRoom, error) {
	room, err := p.rooms.Get(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("meeting room", err)
		}
		return nil, apperrors.Internal(err)
	}
	return room, nil
}
