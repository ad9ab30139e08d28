// Package app assembles the services shared by the api and worker binaries.
package app

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jwalitptl/scheduling-api/internal/config"
	"github.com/jwalitptl/scheduling-api/internal/repository"
	"github.com/jwalitptl/scheduling-api/internal/repository/memory"
	"github.com/jwalitptl/scheduling-api/internal/repository/postgres"
	"github.com/jwalitptl/scheduling-api/internal/service/availability"
	"github.com/jwalitptl/scheduling-api/internal/service/booking"
	"github.com/jwalitptl/scheduling-api/internal/service/event"
	"github.com/jwalitptl/scheduling-api/internal/service/meeting"
	"github.com/jwalitptl/scheduling-api/internal/service/proposal"
	"github.com/jwalitptl/scheduling-api/internal/worker"
	"github.com/jwalitptl/scheduling-api/pkg/logger"
	"github.com/jwalitptl/scheduling-api/pkg/messaging"
	"github.com/jwalitptl/scheduling-api/pkg/messaging/redis"
	"github.com/jwalitptl/scheduling-api/pkg/metrics"
	"github.com/jwalitptl/scheduling-api/pkg/security"
)

type App struct {
	Config   *config.Config
	Logger   *logger.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Repos    *repository.Repositories
	Broker   messaging.Broker
	// RedisOpt is nil when no Redis URL is configured; asynq is then unused
	// and proposal expiry relies on the sweeper.
	RedisOpt asynq.RedisConnOpt

	Availability *availability.Service
	Rooms        *meeting.Provisioner
	Bookings     *booking.Coordinator
	Proposals    *proposal.Workflow

	closers []func() error
}

func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: log}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.NewMetrics(a.Registry, cfg.Metrics.Namespace, "")

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}
	if err := a.openBroker(); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.buildServices(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	if a.Config.Database.Driver == "memory" {
		a.Logger.Warn("Using in-memory store; data is lost on restart")
		a.Repos = memory.NewStore().Repositories()
		return nil
	}

	db, err := postgres.NewDB(a.Config.ToPostgresConfig())
	if err != nil {
		return err
	}
	if a.Config.Database.AutoMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return err
		}
		if v, err := postgres.SchemaVersion(ctx, db); err == nil {
			a.Logger.Info("Database schema ready", "version", v)
		}
	}
	a.Repos = postgres.NewRepositories(db)
	a.closers = append(a.closers, a.Repos.Close)
	return nil
}

func (a *App) openBroker() error {
	if a.Config.Redis.URL == "" {
		a.Logger.Warn("No Redis URL configured; using in-process broker")
		a.Broker = messaging.NewMemoryBroker()
		a.closers = append(a.closers, a.Broker.Close)
		return nil
	}

	broker, err := redis.NewRedisBroker(a.Config.ToRedisConfig(), a.Logger.Zerolog())
	if err != nil {
		return err
	}
	a.Broker = broker
	a.closers = append(a.closers, broker.Close)

	opt, err := asynq.ParseRedisURI(a.Config.Redis.URL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL for asynq: %w", err)
	}
	a.RedisOpt = opt
	return nil
}

func (a *App) buildServices() error {
	cfg := a.Config
	events := event.NewEventService(a.Repos.Outbox)

	a.Availability = availability.NewService(a.Repos.Appointments, a.Repos.Overlay, cfg.ToBusinessHours(), a.Logger, a.Metrics)

	var vendor meeting.Vendor
	if cfg.Meeting.Google.Enabled {
		sealer, err := security.NewEncryptorFromBase64(cfg.TokenKey)
		if err != nil {
			return fmt.Errorf("failed to build token sealer: %w", err)
		}
		vendor = meeting.NewGoogleMeetVendor(cfg.ToGoogleConfig(), a.Repos.Credentials, sealer, a.Logger)
	}
	a.Rooms = meeting.NewProvisioner(a.Repos.Rooms, vendor, cfg.ToMeetingConfig(), a.Logger, a.Metrics)

	a.Bookings = booking.NewCoordinator(a.Repos.Appointments, a.Availability, a.Rooms, events, a.Logger, a.Metrics)

	var scheduler proposal.ExpiryScheduler
	if a.RedisOpt != nil {
		client := asynq.NewClient(a.RedisOpt)
		a.closers = append(a.closers, client.Close)
		scheduler = worker.NewExpiryScheduler(client)
	}
	recipients := proposal.NewAccountResolver(a.Repos.Accounts, cfg.Scheduling.RecipientTTL)
	a.Proposals = proposal.NewWorkflow(a.Repos.Proposals, a.Bookings, recipients, events, scheduler,
		proposal.Config{TTL: cfg.Scheduling.ProposalTTL}, a.Logger, a.Metrics)
	return nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Error(err, "Failed to release resource")
		}
	}
	a.closers = nil
}
