package config

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/jwalitptl/scheduling-api/internal/email"
	"github.com/jwalitptl/scheduling-api/internal/middleware"
	"github.com/jwalitptl/scheduling-api/internal/repository/postgres"
	"github.com/jwalitptl/scheduling-api/internal/service/availability"
	"github.com/jwalitptl/scheduling-api/internal/service/meeting"
	"github.com/jwalitptl/scheduling-api/pkg/logger"
	"github.com/jwalitptl/scheduling-api/pkg/messaging/redis"
	"github.com/jwalitptl/scheduling-api/pkg/worker"
)

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Location is validated by Load, so the error is unreachable there.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Scheduling.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) ToPostgresConfig() postgres.Config {
	return postgres.Config{
		Host:            c.Database.Host,
		Port:            c.Database.Port,
		User:            c.Database.User,
		Password:        c.Database.Password,
		Name:            c.Database.Name,
		SSLMode:         c.Database.SSLMode,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
	}
}

func (c *Config) ToRedisConfig() redis.Config {
	return redis.Config{
		URL:          c.Redis.URL,
		MaxRetries:   c.Redis.MaxRetries,
		RetryBackoff: c.Redis.RetryBackoff,
		PoolSize:     c.Redis.PoolSize,
		MinIdleConns: c.Redis.MinIdleConns,
	}
}

func (c *Config) ToBusinessHours() availability.BusinessHours {
	start, _ := parseClock(c.Scheduling.BusinessStart)
	end, _ := parseClock(c.Scheduling.BusinessEnd)
	return availability.BusinessHours{
		Location: c.Location(),
		Start:    start,
		End:      end,
		Session:  time.Duration(c.Scheduling.SessionMinutes) * time.Minute,
		Step:     time.Duration(c.Scheduling.StepMinutes) * time.Minute,
	}
}

func (c *Config) ToMeetingConfig() meeting.Config {
	return meeting.Config{
		FallbackBaseURL: c.Meeting.FallbackBaseURL,
		VendorTimeout:   c.Meeting.VendorTimeout,
		BreakerFailures: c.Meeting.BreakerFailures,
		BreakerCooldown: c.Meeting.BreakerCooldown,
	}
}

func (c *Config) ToGoogleConfig() meeting.GoogleConfig {
	return meeting.GoogleConfig{
		ClientID:     c.Meeting.Google.ClientID,
		ClientSecret: c.Meeting.Google.ClientSecret,
		Endpoint:     c.Meeting.Google.Endpoint,
	}
}

func (c *Config) ToEmailConfig() email.Config {
	return email.Config{
		Host:     c.SMTP.Host,
		Port:     c.SMTP.Port,
		Username: c.SMTP.Username,
		Password: c.SMTP.Password,
		From:     c.SMTP.From,
	}
}

func (c *Config) ToOutboxConfig() worker.OutboxProcessorConfig {
	return worker.OutboxProcessorConfig{
		BatchSize:     c.Outbox.BatchSize,
		PollInterval:  c.Outbox.PollInterval,
		RetryAttempts: c.Outbox.RetryAttempts,
		RetryDelay:    c.Outbox.RetryDelay,
	}
}

func (c *Config) ToLoggerConfig() *logger.Config {
	return &logger.Config{
		Level:      logger.ParseLevel(c.Log.Level),
		TimeFormat: time.RFC3339,
		JSON:       c.Log.JSON || c.IsProduction(),
	}
}

func (c *Config) ToRateLimiterConfig() middleware.RateLimiterConfig {
	return middleware.RateLimiterConfig{
		Rate:  rate.Limit(c.RateLimit.RequestsPerSecond),
		Burst: c.RateLimit.Burst,
	}
}

func (c *Config) ToCORSConfig() middleware.CORSConfig {
	return middleware.CORSConfig{
		AllowOrigins:     c.CORS.AllowedOrigins,
		AllowCredentials: c.CORS.AllowCredentials,
		MaxAge:           c.CORS.MaxAge,
	}
}
