package proposal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/scheduling-api/internal/model"
	"github.com/jwalitptl/scheduling-api/internal/repository"
	"github.com/jwalitptl/scheduling-api/internal/service/booking"
	"github.com/jwalitptl/scheduling-api/internal/service/event"
	apperrors "github.com/jwalitptl/scheduling-api/pkg/errors"
	"github.com/jwalitptl/scheduling-api/pkg/logger"
	"github.com/jwalitptl/scheduling-api/pkg/metrics"
)

const (
	DefaultTTL = 48 * time.Hour
	// MaxProposedSlots caps how many appointments one send can fan out to.
	MaxProposedSlots = 5
)

// Booker is the part of the booking coordinator the workflow drives.
type Booker interface {
	Book(ctx context.Context, req booking.Request) (*booking.Result, error)
	CancelPending(ctx context.Context, proposalID uuid.UUID) ([]uuid.UUID, error)
}

// ExpiryScheduler arranges for Expire to run once a proposal's TTL passes.
type ExpiryScheduler interface {
	ScheduleExpiry(ctx context.Context, proposalID uuid.UUID, at time.Time) error
}

type Config struct {
	TTL time.Duration
}

type SlotOutcome string

const (
	SlotCreated SlotOutcome = "created"
	SlotFailed  SlotOutcome = "failed"
)

// SlotResult reports what happened to one proposed slot on send.
type SlotResult struct {
	Index         int                 `json:"index"`
	Start         time.Time           `json:"start"`
	End           time.Time           `json:"end"`
	Outcome       SlotOutcome         `json:"outcome"`
	AppointmentID *uuid.UUID          `json:"appointment_id,omitempty"`
	JoinURL       *string             `json:"join_url,omitempty"`
	ErrorCode     apperrors.ErrorCode `json:"error_code,omitempty"`
	Error         string              `json:"error,omitempty"`
	Warnings      []model.Warning     `json:"warnings,omitempty"`
}

type SendResult struct {
	AppointmentsCreated int             `json:"appointments_created"`
	AppointmentIDs      []uuid.UUID     `json:"appointment_ids"`
	Results             []SlotResult    `json:"results"`
	Warnings            []model.Warning `json:"warnings,omitempty"`
}

type Workflow struct {
	proposals  repository.SlotProposalRepository
	booker     Booker
	recipients *AccountResolver
	events     event.Emitter
	scheduler  ExpiryScheduler
	cfg        Config
	logger     *logger.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewWorkflow builds the proposal workflow. scheduler may be nil, leaving
// expiry to the periodic sweep.
func NewWorkflow(
	proposals repository.SlotProposalRepository,
	booker Booker,
	recipients *AccountResolver,
	events event.Emitter,
	scheduler ExpiryScheduler,
	cfg Config,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Workflow {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &Workflow{
		proposals:  proposals,
		booker:     booker,
		recipients: recipients,
		events:     events,
		scheduler:  scheduler,
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics,
		now:        time.Now,
	}
}

func (w *Workflow) WithClock(now func() time.Time) *Workflow {
	w.now = now
	return w
}

type CreateInput struct {
	ClientID uuid.UUID
	Slots    model.ProposedSlots
	Price    float64
	Notes    string
}

// Create stores a draft authored by the calling provider.
func (w *Workflow) Create(ctx context.Context, caller model.Principal, in CreateInput) (*model.SlotProposal, error) {
	if caller.Role != model.RoleProvider {
		return nil, apperrors.Forbidden("only providers can propose slots")
	}
	if in.ClientID == uuid.Nil || in.ClientID == caller.AccountID {
		return nil, apperrors.Validation("client_id must name another account", nil)
	}
	if err := validateSlots(in.Slots); err != nil {
		return nil, err
	}

	p := &model.SlotProposal{
		ProviderID: caller.AccountID,
		ClientID:   in.ClientID,
		Status:     model.ProposalStatusDraft,
		Slots:      in.Slots,
		Price:      in.Price,
		Notes:      in.Notes,
	}
	if err := w.proposals.Create(ctx, p); err != nil {
		return nil, apperrors.Internal(err)
	}
	return p, nil
}

// UpdateSlots replaces the slots of a draft.
func (w *Workflow) UpdateSlots(ctx context.Context, caller model.Principal, id uuid.UUID, slots model.ProposedSlots) (*model.SlotProposal, error) {
	p, err := w.owned(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if p.Status != model.ProposalStatusDraft {
		return nil, apperrors.ProposalNotDraft(string(p.Status))
	}
	if err := validateSlots(slots); err != nil {
		return nil, err
	}

	p.Slots = slots
	if err := w.proposals.UpdateDraft(ctx, p); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, apperrors.ProposalNotDraft(string(model.ProposalStatusSent))
		}
		return nil, apperrors.Internal(err)
	}
	return p, nil
}

// Get returns a proposal to its provider or its client.
func (w *Workflow) Get(ctx context.Context, caller model.Principal, id uuid.UUID) (*model.SlotProposal, error) {
	p, err := w.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.ProviderID != caller.AccountID && p.ClientID != caller.AccountID {
		return nil, apperrors.Forbidden("caller is not a party to this proposal")
	}
	return p, nil
}

// Send turns every proposed slot into its own pending appointment. The
// proposal leaves draft before any booking is attempted, so a second send is
// rejected no matter how the first one went. Slot failures and a failed
// notification are reported but never undo created appointments.
func (w *Workflow) Send(ctx context.Context, caller model.Principal, id uuid.UUID) (*SendResult, error) {
	p, err := w.owned(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if p.Status != model.ProposalStatusDraft {
		return nil, apperrors.ProposalNotDraft(string(p.Status))
	}
	if len(p.Slots) == 0 {
		return nil, apperrors.EmptyProposal()
	}

	client, err := w.recipients.Resolve(ctx, p.ClientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.UnknownRecipient(err)
		}
		return nil, apperrors.Internal(err)
	}

	sentAt := w.now().UTC()
	expiresAt := sentAt.Add(w.cfg.TTL)
	if err := w.proposals.MarkSent(ctx, p.ID, sentAt, expiresAt); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, apperrors.ProposalNotDraft(string(model.ProposalStatusSent))
		}
		return nil, apperrors.Internal(err)
	}
	w.metrics.ProposalsSent.Inc()

	result := &SendResult{
		AppointmentIDs: []uuid.UUID{},
		Results:        make([]SlotResult, 0, len(p.Slots)),
	}
	for i, slot := range p.Slots {
		result.Results = append(result.Results, w.bookSlot(ctx, p, i, slot))
	}

	var sentSlots []model.ProposalSentSlot
	for _, r := range result.Results {
		if r.Outcome != SlotCreated {
			continue
		}
		result.AppointmentsCreated++
		result.AppointmentIDs = append(result.AppointmentIDs, *r.AppointmentID)
		sentSlots = append(sentSlots, model.ProposalSentSlot{
			AppointmentID: *r.AppointmentID,
			Start:         r.Start,
			End:           r.End,
			JoinURL:       r.JoinURL,
		})
	}

	if err := w.notify(ctx, p, client, sentSlots, result.AppointmentIDs, expiresAt); err != nil {
		w.metrics.SoftFailures.WithLabelValues(string(model.WarningNotificationFailed)).Inc()
		w.logger.Warn("proposal notification failed", "proposal_id", p.ID.String(), "error", err.Error())
		result.Warnings = append(result.Warnings, model.Warning{
			Code:      model.WarningNotificationFailed,
			Message:   "the client could not be notified",
			Reference: p.ID.String(),
		})
	}

	if w.scheduler != nil {
		if err := w.scheduler.ScheduleExpiry(ctx, p.ID, expiresAt); err != nil {
			w.logger.Warn("failed to schedule proposal expiry", "proposal_id", p.ID.String(), "error", err.Error())
		}
	}

	w.logger.Info("slot proposal sent",
		"proposal_id", p.ID.String(),
		"slots", len(p.Slots),
		"appointments_created", result.AppointmentsCreated)
	return result, nil
}

func (w *Workflow) bookSlot(ctx context.Context, p *model.SlotProposal, index int, slot model.ProposedSlot) SlotResult {
	res := SlotResult{Index: index, Start: slot.Start, End: slot.End}
	proposalID := p.ID

	booked, err := w.booker.Book(ctx, booking.Request{
		ProviderID:     p.ProviderID,
		ClientID:       p.ClientID,
		Start:          slot.Start,
		End:            slot.End,
		Price:          p.Price,
		Notes:          p.Notes,
		ProposalID:     &proposalID,
		IdempotencyKey: fmt.Sprintf("proposal:%s:%d", p.ID, index),
	})
	if err != nil {
		res.Outcome = SlotFailed
		res.ErrorCode = apperrors.CodeInternal
		res.Error = "slot could not be booked"
		if appErr, ok := apperrors.As(err); ok {
			res.ErrorCode = appErr.Code
			if appErr.Kind != apperrors.KindInternal {
				res.Error = appErr.Message
			}
		}
		w.logger.Warn("proposed slot not booked",
			"proposal_id", p.ID.String(),
			"index", index,
			"error", err.Error())
		return res
	}

	id := booked.Appointment.ID
	res.Outcome = SlotCreated
	res.AppointmentID = &id
	res.JoinURL = booked.Appointment.JoinURL
	res.Warnings = booked.Warnings
	return res
}

func (w *Workflow) notify(ctx context.Context, p *model.SlotProposal, client *model.Account, slots []model.ProposalSentSlot, ids []uuid.UUID, expiresAt time.Time) error {
	payload := model.ProposalSentPayload{
		ProposalID:     p.ID,
		ProviderID:     p.ProviderID,
		ClientID:       client.ID,
		ClientEmail:    client.Email,
		ClientName:     client.FullName,
		TimeZone:       client.TimeZone,
		Slots:          slots,
		AppointmentIDs: ids,
		ExpiresAt:      expiresAt,
		Price:          p.Price,
	}
	if provider, err := w.recipients.Resolve(ctx, p.ProviderID); err == nil {
		payload.ProviderName = provider.FullName
	}
	return w.events.Emit(ctx, model.EventSlotProposalSent, p.ID, payload)
}

// Expire retires a sent proposal whose TTL has passed and cancels the
// appointments nobody picked. Proposals that are not due are left alone.
func (w *Workflow) Expire(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	p, err := w.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != model.ProposalStatusSent || p.ExpiresAt == nil || p.ExpiresAt.After(w.now()) {
		return nil, nil
	}

	// the proposal stays sent until its appointments are released, so a
	// failed run is picked up again by the next sweep or task retry
	cancelled, err := w.booker.CancelPending(ctx, id)
	if err != nil {
		return cancelled, apperrors.Internal(fmt.Errorf("cancel pending appointments: %w", err))
	}

	if err := w.proposals.MarkExpired(ctx, id); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return cancelled, nil
		}
		return cancelled, apperrors.Internal(err)
	}
	w.metrics.ProposalsExpired.Inc()

	payload := model.ProposalExpiredPayload{ProposalID: id, CancelledAppointments: cancelled}
	if err := w.events.Emit(ctx, model.EventSlotProposalExpired, id, payload); err != nil {
		w.logger.Error(err, "failed to record proposal expiry", "proposal_id", id.String())
	}
	return cancelled, nil
}

// ExpireDue expires up to limit overdue proposals and returns how many were
// processed.
func (w *Workflow) ExpireDue(ctx context.Context, limit int) (int, error) {
	due, err := w.proposals.ListExpired(ctx, w.now(), limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired proposals: %w", err)
	}
	for i, p := range due {
		if _, err := w.Expire(ctx, p.ID); err != nil {
			return i, err
		}
	}
	return len(due), nil
}

func (w *Workflow) load(ctx context.Context, id uuid.UUID) (*model.SlotProposal, error) {
	p, err := w.proposals.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("slot proposal", err)
		}
		return nil, apperrors.Internal(err)
	}
	return p, nil
}

func (w *Workflow) owned(ctx context.Context, caller model.Principal, id uuid.UUID) (*model.SlotProposal, error) {
	p, err := w.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.ProviderID != caller.AccountID {
		return nil, apperrors.Forbidden("caller does not own this proposal")
	}
	return p, nil
}

func validateSlots(slots model.ProposedSlots) error {
	if len(slots) > MaxProposedSlots {
		return apperrors.Validation(fmt.Sprintf("at most %d slots can be proposed at once", MaxProposedSlots), nil)
	}
	for i, s := range slots {
		if !s.Interval().Valid() {
			return apperrors.Validation(fmt.Sprintf("slot %d: end must be after start", i), nil)
		}
		if c := s.ConfidenceOrDefault(); c < 0 || c > 1 {
			return apperrors.Validation(fmt.Sprintf("slot %d: confidence must be between 0 and 1", i), nil)
		}
	}
	return nil
}
