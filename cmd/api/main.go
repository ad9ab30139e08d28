package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/scheduling-api/internal/app"
	"github.com/jwalitptl/scheduling-api/internal/config"
	"github.com/jwalitptl/scheduling-api/internal/email"
	"github.com/jwalitptl/scheduling-api/internal/handler"
	"github.com/jwalitptl/scheduling-api/internal/handler/appointment"
	"github.com/jwalitptl/scheduling-api/internal/handler/availability"
	"github.com/jwalitptl/scheduling-api/internal/handler/health"
	"github.com/jwalitptl/scheduling-api/internal/handler/meeting"
	"github.com/jwalitptl/scheduling-api/internal/handler/proposal"
	"github.com/jwalitptl/scheduling-api/internal/middleware"
	"github.com/jwalitptl/scheduling-api/internal/router"
	"github.com/jwalitptl/scheduling-api/internal/service/notification"
	internalworker "github.com/jwalitptl/scheduling-api/internal/worker"
	"github.com/jwalitptl/scheduling-api/pkg/auth"
	"github.com/jwalitptl/scheduling-api/pkg/logger"
	"github.com/jwalitptl/scheduling-api/pkg/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(cfg.ToLoggerConfig())
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Fatal(err, "Failed to initialize application")
	}
	defer a.Close()

	binder := handler.NewBinder()
	loc := cfg.Location()

	r := router.NewRouter(
		middleware.NewAuthMiddleware(auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer)),
		router.Handlers{
			Health:       health.NewHandler(health.PingFunc(a.Repos.Ping), a.Registry),
			Availability: availability.NewHandler(a.Availability, loc),
			Appointments: appointment.NewHandler(a.Bookings, binder, loc),
			Proposals:    proposal.NewHandler(a.Proposals, binder),
			Meetings:     meeting.NewHandler(a.Rooms, a.Bookings),
		},
		router.RouterConfig{
			RateLimit:     cfg.ToRateLimiterConfig(),
			CORSConfig:    cfg.ToCORSConfig(),
			Timeout:       cfg.Server.RequestTimeout,
			MaxBodySize:   cfg.Server.MaxBodyBytes,
			MetricsPrefix: cfg.Metrics.Namespace + "_http",
			Registerer:    a.Registry,
			Logger:        appLogger,
		},
	)

	var wg sync.WaitGroup
	run := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
	}

	// the outbox is always drained in-process
	run(worker.NewOutboxProcessor(a.Repos.Outbox, a.Broker, cfg.ToOutboxConfig(), appLogger, a.Metrics).Start)

	// without Redis there is no separate worker process to share state with
	if a.RedisOpt == nil {
		dispatcher := notification.NewDispatcher(a.Broker, email.NewSMTPService(cfg.ToEmailConfig()), appLogger)
		run(func(ctx context.Context) {
			if err := dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				appLogger.Error(err, "Notification dispatcher stopped")
			}
		})
		run(internalworker.NewExpirySweeper(a.Proposals, cfg.Scheduling.ExpirySweep, cfg.Outbox.BatchSize, appLogger).Start)
		run(worker.NewOutboxCleanupWorker(a.Repos.Outbox, cfg.Outbox.Retention, cfg.Outbox.CleanupInterval, appLogger).Start)
	}

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		appLogger.Info("HTTP server listening", "addr", srv.Addr, "driver", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal(err, "Failed to start server")
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(err, "Server forced to shutdown")
	}

	waitOrTimeout(&wg, cfg.Server.ShutdownTimeout)
	appLogger.Info("Server exited properly")
}

func waitOrTimeout(wg *sync.WaitGroup, d time.Duration) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		fmt.Fprintln(os.Stderr, "background workers did not stop in time")
	}
}
