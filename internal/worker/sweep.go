package worker

import (
	"context"
	"time"

	"github.com/jwalitptl/scheduling-api/pkg/logger"
)

// ExpirySweeper periodically expires overdue proposals whose delayed task
// was lost or never enqueued.
type ExpirySweeper struct {
	expirer   Expirer
	interval  time.Duration
	batchSize int
	logger    *logger.Logger
}

func NewExpirySweeper(expirer Expirer, interval time.Duration, batchSize int, logger *logger.Logger) *ExpirySweeper {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &ExpirySweeper{
		expirer:   expirer,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
	}
}

func (w *ExpirySweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

func (w *ExpirySweeper) Sweep(ctx context.Context) int {
	n, err := w.expirer.ExpireDue(ctx, w.batchSize)
	if err != nil {
		w.logger.Error(err, "Failed to expire slot proposals")
	}
	if n > 0 {
		w.logger.Info("Expired slot proposals", "count", n)
	}
	return n
}
