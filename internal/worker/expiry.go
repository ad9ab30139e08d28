package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/jwalitptl/scheduling-api/pkg/logger"
)

const TypeProposalExpire = "slot_proposal:expire"

type ProposalExpirePayload struct {
	ProposalID uuid.UUID `json:"proposal_id"`
}

func NewProposalExpireTask(proposalID uuid.UUID, fireAt time.Time) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(ProposalExpirePayload{ProposalID: proposalID})
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeProposalExpire, b)
	opts := []asynq.Option{
		asynq.ProcessAt(fireAt),
		asynq.TaskID("expire:" + proposalID.String()),
		asynq.MaxRetry(5),
	}
	return task, opts, nil
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ExpiryScheduler enqueues one delayed expiry task per proposal.
type ExpiryScheduler struct {
	client Enqueuer
}

func NewExpiryScheduler(client Enqueuer) *ExpiryScheduler {
	return &ExpiryScheduler{client: client}
}

func (s *ExpiryScheduler) ScheduleExpiry(ctx context.Context, proposalID uuid.UUID, at time.Time) error {
	task, opts, err := NewProposalExpireTask(proposalID, at)
	if err != nil {
		return err
	}
	if _, err := s.client.EnqueueContext(ctx, task, opts...); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("failed to enqueue expiry: %w", err)
	}
	return nil
}

// Expirer is the proposal workflow's expiry entry point.
type Expirer interface {
	Expire(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error)
	ExpireDue(ctx context.Context, limit int) (int, error)
}

func HandleProposalExpire(expirer Expirer, log *logger.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p ProposalExpirePayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
		}

		cancelled, err := expirer.Expire(ctx, p.ProposalID)
		if err != nil {
			return err
		}
		log.Info("slot proposal expiry handled",
			"proposal_id", p.ProposalID.String(),
			"cancelled", len(cancelled))
		return nil
	}
}

// NewServeMux routes the worker's task types.
func NewServeMux(expirer Expirer, log *logger.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeProposalExpire, HandleProposalExpire(expirer, log))
	return mux
}
