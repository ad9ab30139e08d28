package booking

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/jwalitptl/scheduling-api/internal/model"
	"github.com/jwalitptl/scheduling-api/internal/repository"
	apperrors "github.com/jwalitptl/scheduling-api/pkg/errors"
)

var transitions = map[model.AppointmentStatus][]model.AppointmentStatus{
	model.AppointmentStatusPending:   {model.AppointmentStatusConfirmed, model.AppointmentStatusCancelled},
	model.AppointmentStatusConfirmed: {model.AppointmentStatusCancelled, model.AppointmentStatusCompleted},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to model.AppointmentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// UpdateStatus moves an appointment to status on behalf of a participant.
// Confirming an appointment that came from a proposal cancels its still
// pending siblings.
func (c *Coordinator) UpdateStatus(ctx context.Context, caller model.Principal, id uuid.UUID, status model.AppointmentStatus) (*model.Appointment, error) {
	appointment, err := c.authorized(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	from := appointment.Status
	if !CanTransition(from, status) {
		return nil, apperrors.InvalidStatusTransition(string(from), string(status))
	}
	if status == model.AppointmentStatusCompleted && c.now().Before(appointment.EndTime) {
		return nil, apperrors.Validation("appointment has not ended yet", nil)
	}

	if err := c.appointments.UpdateStatus(ctx, id, from, status); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, apperrors.InvalidStatusTransition(string(from), string(status))
		}
		return nil, apperrors.Internal(err)
	}
	appointment.Status = status
	c.emitStatusChanged(ctx, appointment.ID, from, status, caller.AccountID)

	if status == model.AppointmentStatusConfirmed && appointment.ProposalID != nil {
		c.cancelSiblings(ctx, appointment, caller.AccountID)
	}
	return appointment, nil
}

func (c *Coordinator) cancelSiblings(ctx context.Context, picked *model.Appointment, by uuid.UUID) {
	siblings, err := c.appointments.ListByProposal(ctx, *picked.ProposalID)
	if err != nil {
		c.logger.Error(err, "failed to load proposal siblings", "appointment_id", picked.ID.String())
		return
	}
	for _, s := range siblings {
		if s.ID == picked.ID || s.Status != model.AppointmentStatusPending {
			continue
		}
		// a sibling confirmed or cancelled meanwhile is left alone
		if err := c.appointments.UpdateStatus(ctx, s.ID, model.AppointmentStatusPending, model.AppointmentStatusCancelled); err != nil {
			if !errors.Is(err, repository.ErrStaleState) {
				c.logger.Error(err, "failed to cancel proposal sibling", "appointment_id", s.ID.String())
			}
			continue
		}
		c.emitStatusChanged(ctx, s.ID, model.AppointmentStatusPending, model.AppointmentStatusCancelled, by)
	}
}

// CancelPending cancels every still pending appointment born from a
// proposal and returns their ids.
func (c *Coordinator) CancelPending(ctx context.Context, proposalID uuid.UUID) ([]uuid.UUID, error) {
	appointments, err := c.appointments.ListByProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	var cancelled []uuid.UUID
	for _, a := range appointments {
		if a.Status != model.AppointmentStatusPending {
			continue
		}
		if err := c.appointments.UpdateStatus(ctx, a.ID, model.AppointmentStatusPending, model.AppointmentStatusCancelled); err != nil {
			if errors.Is(err, repository.ErrStaleState) {
				continue
			}
			return cancelled, err
		}
		cancelled = append(cancelled, a.ID)
		c.emitStatusChanged(ctx, a.ID, model.AppointmentStatusPending, model.AppointmentStatusCancelled, uuid.Nil)
	}
	return cancelled, nil
}

func (c *Coordinator) emitStatusChanged(ctx context.Context, id uuid.UUID, from, to model.AppointmentStatus, by uuid.UUID) {
	payload := model.AppointmentStatusChangedPayload{AppointmentID: id, From: from, To: to, ChangedBy: by}
	if err := c.events.Emit(ctx, model.EventAppointmentStatusChanged, id, payload); err != nil {
		c.logger.Error(err, "failed to record status event", "appointment_id", id.String())
	}
}
