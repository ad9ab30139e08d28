package main

import (
	"context"
	"errors"
	"os/signal"
	"sync"
	"syscall"
	_ "time/tzdata"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/scheduling-api/internal/app"
	"github.com/jwalitptl/scheduling-api/internal/config"
	"github.com/jwalitptl/scheduling-api/internal/email"
	"github.com/jwalitptl/scheduling-api/internal/service/notification"
	internalworker "github.com/jwalitptl/scheduling-api/internal/worker"
	"github.com/jwalitptl/scheduling-api/pkg/logger"
	"github.com/jwalitptl/scheduling-api/pkg/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	workerLogger := logger.NewLogger(cfg.ToLoggerConfig()).WithFields(map[string]interface{}{
		"component": "worker",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, workerLogger)
	if err != nil {
		workerLogger.Fatal(err, "Failed to initialize worker")
	}
	defer a.Close()

	if a.RedisOpt == nil {
		workerLogger.Fatal(errors.New("redis.url is empty"), "The worker needs Redis; the api runs background jobs itself without it")
	}

	var wg sync.WaitGroup
	run := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
	}

	run(worker.NewOutboxProcessor(a.Repos.Outbox, a.Broker, cfg.ToOutboxConfig(), workerLogger, a.Metrics).Start)
	run(worker.NewOutboxCleanupWorker(a.Repos.Outbox, cfg.Outbox.Retention, cfg.Outbox.CleanupInterval, workerLogger).Start)
	run(internalworker.NewExpirySweeper(a.Proposals, cfg.Scheduling.ExpirySweep, cfg.Outbox.BatchSize, workerLogger).Start)

	dispatcher := notification.NewDispatcher(a.Broker, email.NewSMTPService(cfg.ToEmailConfig()), workerLogger)
	run(func(ctx context.Context) {
		if err := dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			workerLogger.Error(err, "Notification dispatcher stopped")
		}
	})

	srv := asynq.NewServer(a.RedisOpt, asynq.Config{
		Concurrency: 4,
		Logger:      internalworker.NewAsynqLogger(workerLogger),
	})
	if err := srv.Start(internalworker.NewServeMux(a.Proposals, workerLogger)); err != nil {
		workerLogger.Fatal(err, "Failed to start task server")
	}
	workerLogger.Info("Worker started")

	<-ctx.Done()
	workerLogger.Info("Shutting down worker...")
	srv.Shutdown()
	wg.Wait()
	workerLogger.Info("Worker stopped")
}
