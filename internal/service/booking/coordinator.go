package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/scheduling-api/internal/model"
	"github.com/jwalitptl/scheduling-api/internal/repository"
	"github.com/jwalitptl/scheduling-api/internal/service/event"
	apperrors "github.com/jwalitptl/scheduling-api/pkg/errors"
	"github.com/jwalitptl/scheduling-api/pkg/logger"
	"github.com/jwalitptl/scheduling-api/pkg/metrics"
)

// AvailabilityChecker answers whether an interval is free right now.
type AvailabilityChecker interface {
	IsFree(ctx context.Context, providerID uuid.UUID, candidate model.Interval) (bool, error)
}

// RoomProvisioner returns a usable room for an appointment, creating it if needed.
type RoomProvisioner interface {
	Provision(ctx context.Context, appointmentID uuid.UUID, organizer model.Principal) (*model.MeetingRoom, error)
}

type Request struct {
	ProviderID uuid.UUID
	ClientID   uuid.UUID
	Start      time.Time
	End        time.Time
	Price      float64
	Notes      string
	ProposalID *uuid.UUID
	// IdempotencyKey makes retries of one logical booking attempt safe.
	IdempotencyKey string
}

func (r Request) Interval() model.Interval {
	return model.Interval{Start: r.Start, End: r.End}
}

// Result carries the committed appointment and any soft failures that
// happened after the insert.
type Result struct {
	Appointment *model.Appointment `json:"appointment"`
	Room        *model.MeetingRoom `json:"meeting_room,omitempty"`
	Warnings    []model.Warning    `json:"warnings,omitempty"`
	// Replayed is set when an earlier attempt with the same key is returned.
	Replayed bool `json:"replayed,omitempty"`
}

// RoomReady reports whether the appointment got its meeting room.
func (r *Result) RoomReady() bool {
	return r.Appointment != nil && r.Appointment.MeetingRoomID != nil
}

type Coordinator struct {
	appointments repository.AppointmentRepository
	availability AvailabilityChecker
	rooms        RoomProvisioner
	events       event.Emitter
	logger       *logger.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
}

func NewCoordinator(
	appointments repository.AppointmentRepository,
	availability AvailabilityChecker,
	rooms RoomProvisioner,
	events event.Emitter,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Coordinator {
	return &Coordinator{
		appointments: appointments,
		availability: availability,
		rooms:        rooms,
		events:       events,
		logger:       logger,
		metrics:      metrics,
		now:          time.Now,
	}
}

// WithClock replaces the time source.
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	c.now = now
	return c
}

// Book commits a pending appointment and then tries to give it a meeting
// room. Once the insert succeeds the appointment is kept whatever happens to
// the room; room failures come back as warnings.
func (c *Coordinator) Book(ctx context.Context, req Request) (*Result, error) {
	if err := c.validate(req); err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" {
		if prior, err := c.replay(ctx, req); err != nil || prior != nil {
			return prior, err
		}
	}

	free, err := c.availability.IsFree(ctx, req.ProviderID, req.Interval())
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if !free {
		c.metrics.BookingConflicts.WithLabelValues("precheck").Inc()
		return nil, apperrors.SlotNoLongerAvailable(nil)
	}

	appointment := &model.Appointment{
		ProviderID: req.ProviderID,
		ClientID:   req.ClientID,
		ProposalID: req.ProposalID,
		StartTime:  req.Start.UTC(),
		EndTime:    req.End.UTC(),
		Status:     model.AppointmentStatusPending,
		Price:      req.Price,
		Notes:      req.Notes,
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		appointment.IdempotencyKey = &key
	}

	if err := c.appointments.Create(ctx, appointment); err != nil {
		switch {
		case errors.Is(err, repository.ErrIntervalTaken):
			// a concurrent retry of the same attempt may hold the interval
			if req.IdempotencyKey != "" {
				if prior, rerr := c.replay(ctx, req); rerr != nil || prior != nil {
					return prior, rerr
				}
			}
			c.metrics.BookingConflicts.WithLabelValues("commit").Inc()
			return nil, apperrors.SlotNoLongerAvailable(err)
		case errors.Is(err, repository.ErrDuplicateIdempotencyKey):
			// lost a race with a concurrent retry of the same attempt
			if prior, rerr := c.replay(ctx, req); rerr != nil || prior != nil {
				return prior, rerr
			}
			return nil, apperrors.Internal(err)
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.NotFound("account", err)
		}
		return nil, apperrors.Internal(err)
	}
	c.metrics.BookingsCreated.Inc()

	result := &Result{Appointment: appointment}
	c.attachRoom(ctx, result)
	c.emitCreated(ctx, appointment)
	return result, nil
}

func (c *Coordinator) validate(req Request) error {
	if req.ProviderID == uuid.Nil {
		return apperrors.Validation("provider_id is required", nil)
	}
	if req.ClientID == uuid.Nil {
		return apperrors.Validation("client_id is required", nil)
	}
	if req.ProviderID == req.ClientID {
		return apperrors.Validation("provider and client must differ", nil)
	}
	if !req.Interval().Valid() {
		return apperrors.Validation("end time must be after start time", nil)
	}
	if !req.Start.After(c.now()) {
		return apperrors.Validation("appointment must start in the future", nil)
	}
	if req.Price < 0 {
		return apperrors.Validation("price must not be negative", nil)
	}
	return nil
}

func (c *Coordinator) replay(ctx context.Context, req Request) (*Result, error) {
	prior, err := c.appointments.GetByIdempotencyKey(ctx, req.ClientID, req.IdempotencyKey)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if prior.ProviderID != req.ProviderID || !prior.StartTime.Equal(req.Start) || !prior.EndTime.Equal(req.End) {
		return nil, apperrors.Validation("idempotency_key was already used for a different booking", nil)
	}
	return &Result{Appointment: prior, Replayed: true}, nil
}

// attachRoom runs the post-insert steps. The room reference is written only
// after the room row exists.
func (c *Coordinator) attachRoom(ctx context.Context, result *Result) {
	appointment := result.Appointment
	organizer := model.Principal{AccountID: appointment.ProviderID, Role: model.RoleProvider}

	room, err := c.rooms.Provision(ctx, appointment.ID, organizer)
	if err != nil {
		c.degraded(result, "meeting room could not be provisioned", err)
		return
	}

	if err := c.appointments.AttachRoom(ctx, appointment.ID, room.ID, room.JoinURL); err != nil {
		c.degraded(result, "meeting room could not be attached", err)
		return
	}

	roomID := room.ID
	joinURL := room.JoinURL
	appointment.MeetingRoomID = &roomID
	appointment.JoinURL = &joinURL
	result.Room = room
}

func (c *Coordinator) degraded(result *Result, msg string, err error) {
	id := result.Appointment.ID.String()
	c.metrics.SoftFailures.WithLabelValues(string(model.WarningDependencyDegraded)).Inc()
	c.logger.Warn(msg, "appointment_id", id, "error", err.Error())
	result.Warnings = append(result.Warnings, model.Warning{
		Code:      model.WarningDependencyDegraded,
		Message:   msg,
		Reference: id,
	})
}

func (c *Coordinator) emitCreated(ctx context.Context, a *model.Appointment) {
	payload := model.AppointmentCreatedPayload{
		AppointmentID: a.ID,
		ProviderID:    a.ProviderID,
		ClientID:      a.ClientID,
		ProposalID:    a.ProposalID,
		StartTime:     a.StartTime,
		EndTime:       a.EndTime,
		JoinURL:       a.JoinURL,
	}
	if err := c.events.Emit(ctx, model.EventAppointmentCreated, a.ID, payload); err != nil {
		c.logger.Error(err, "failed to record appointment event", "appointment_id", a.ID.String())
	}
}

// ProvisionRoom gives an existing appointment its room, for appointments
// whose first attempt was degraded.
func (c *Coordinator) ProvisionRoom(ctx context.Context, caller model.Principal, appointmentID uuid.UUID) (*Result, error) {
	appointment, err := c.authorized(ctx, caller, appointmentID)
	if err != nil {
		return nil, err
	}
	if appointment.Status == model.AppointmentStatusCancelled {
		return nil, apperrors.Validation("cancelled appointments cannot get a meeting room", nil)
	}

	organizer := model.Principal{AccountID: appointment.ProviderID, Role: model.RoleProvider}
	room, err := c.rooms.Provision(ctx, appointment.ID, organizer)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("provision room: %w", err))
	}
	if appointment.MeetingRoomID == nil || *appointment.MeetingRoomID != room.ID {
		if err := c.appointments.AttachRoom(ctx, appointment.ID, room.ID, room.JoinURL); err != nil {
			return nil, apperrors.Internal(fmt.Errorf("attach room: %w", err))
		}
		roomID := room.ID
		joinURL := room.JoinURL
		appointment.MeetingRoomID = &roomID
		appointment.JoinURL = &joinURL
	}
	return &Result{Appointment: appointment, Room: room}, nil
}

// Get returns an appointment visible to the caller.
func (c *Coordinator) Get(ctx context.Context, caller model.Principal, id uuid.UUID) (*model.Appointment, error) {
	return c.authorized(ctx, caller, id)
}

// List returns the caller's appointments matching filters.
func (c *Coordinator) List(ctx context.Context, caller model.Principal, filters model.AppointmentFilters) ([]*model.Appointment, error) {
	filters.ParticipantID = caller.AccountID
	appointments, err := c.appointments.List(ctx, &filters)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return appointments, nil
}

func (c *Coordinator) authorized(ctx context.Context, caller model.Principal, id uuid.UUID) (*model.Appointment, error) {
	appointment, err := c.appointments.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("appointment", err)
		}
		return nil, apperrors.Internal(err)
	}
	if !appointment.IsParticipant(caller.AccountID) {
		return nil, apperrors.Forbidden("caller is not a participant of this appointment")
	}
	return appointment, nil
}
