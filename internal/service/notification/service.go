package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jwalitptl/scheduling-api/internal/email"
	"github.com/jwalitptl/scheduling-api/internal/model"
	"github.com/jwalitptl/scheduling-api/pkg/logger"
	"github.com/jwalitptl/scheduling-api/pkg/messaging"
)

const slotLayout = "Mon Jan 2, 3:04 PM"

// Dispatcher turns published domain events into client notifications.
type Dispatcher struct {
	broker   messaging.Broker
	emailSvc email.Service
	logger   *logger.Logger
}

func NewDispatcher(broker messaging.Broker, emailSvc email.Service, logger *logger.Logger) *Dispatcher {
	return &Dispatcher{
		broker:   broker,
		emailSvc: emailSvc,
		logger:   logger,
	}
}

// Run consumes until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("Starting notification dispatcher")
	return messaging.Consume(ctx, d.broker, model.EventSlotProposalSent, d.HandleProposalSent, func(err error) {
		d.logger.Error(err, "Failed to deliver proposal notification")
	})
}

func (d *Dispatcher) HandleProposalSent(ctx context.Context, payload []byte) error {
	var evt model.ProposalSentPayload
	if err := json.Unmarshal(payload, &evt); err != nil {
		return fmt.Errorf("invalid %s payload: %w", model.EventSlotProposalSent, err)
	}
	if evt.ClientEmail == "" {
		d.logger.Warn("proposal recipient has no email", "proposal_id", evt.ProposalID.String())
		return nil
	}

	loc := location(evt.TimeZone)
	data := email.ProposalEmail{
		ClientName:   evt.ClientName,
		ProviderName: evt.ProviderName,
		ExpiresAt:    evt.ExpiresAt.In(loc).Format(slotLayout),
	}
	if data.ProviderName == "" {
		data.ProviderName = "Your provider"
	}
	for _, s := range evt.Slots {
		slot := email.ProposalSlot{When: s.Start.In(loc).Format(slotLayout)}
		if s.JoinURL != nil {
			slot.JoinURL = *s.JoinURL
		}
		data.Slots = append(data.Slots, slot)
	}
	if len(data.Slots) == 0 {
		d.logger.Warn("proposal produced no appointments, skipping email", "proposal_id", evt.ProposalID.String())
		return nil
	}

	body, err := email.RenderProposal(data)
	if err != nil {
		return fmt.Errorf("failed to render proposal email: %w", err)
	}
	if err := d.emailSvc.SendCustom(ctx, evt.ClientEmail, "New appointment times proposed", body); err != nil {
		return err
	}

	d.logger.Info("proposal email sent", "proposal_id", evt.ProposalID.String(), "slots", len(data.Slots))
	return nil
}

func location(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
