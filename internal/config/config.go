package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Environment string           `mapstructure:"environment"`
	Server      ServerConfig     `mapstructure:"server"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Redis       RedisConfig      `mapstructure:"redis"`
	JWT         JWTConfig        `mapstructure:"jwt"`
	Scheduling  SchedulingConfig `mapstructure:"scheduling"`
	Meeting     MeetingConfig    `mapstructure:"meeting"`
	Outbox      OutboxConfig     `mapstructure:"outbox"`
	SMTP        SMTPConfig       `mapstructure:"smtp"`
	RateLimit   RateLimitConfig  `mapstructure:"rate_limit"`
	CORS        CORSConfig       `mapstructure:"cors"`
	Metrics     MetricsConfig    `mapstructure:"metrics"`
	Log         LogConfig        `mapstructure:"log"`
	// TokenKey seals organizer OAuth tokens at rest. Base64, 32 bytes.
	TokenKey string `mapstructure:"token_key"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

type DatabaseConfig struct {
	// Driver is postgres or memory.
	Driver          string        `mapstructure:"driver" validate:"oneof=postgres memory"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	// An empty URL selects the in-process broker.
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type SchedulingConfig struct {
	TimeZone       string        `mapstructure:"timezone"`
	BusinessStart  string        `mapstructure:"business_start" validate:"required,hhmm"`
	BusinessEnd    string        `mapstructure:"business_end" validate:"required,hhmm"`
	SessionMinutes int           `mapstructure:"session_minutes" validate:"min=1"`
	StepMinutes    int           `mapstructure:"step_minutes" validate:"min=1"`
	ProposalTTL    time.Duration `mapstructure:"proposal_ttl"`
	ExpirySweep    time.Duration `mapstructure:"expiry_sweep"`
	RecipientTTL   time.Duration `mapstructure:"recipient_cache_ttl"`
}

type MeetingConfig struct {
	FallbackBaseURL string        `mapstructure:"fallback_base_url" validate:"omitempty,url"`
	VendorTimeout   time.Duration `mapstructure:"vendor_timeout"`
	BreakerFailures int           `mapstructure:"breaker_failures"`
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown"`
	Google          GoogleConfig  `mapstructure:"google"`
}

type GoogleConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	Endpoint     string `mapstructure:"endpoint"`
}

type OutboxConfig struct {
	BatchSize       int           `mapstructure:"batch_size"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	RetryAttempts   int           `mapstructure:"retry_attempts"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	Retention       time.Duration `mapstructure:"retention"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type CORSConfig struct {
	AllowedOrigins   []string      `mapstructure:"allowed_origins"`
	AllowCredentials bool          `mapstructure:"allow_credentials"`
	MaxAge           time.Duration `mapstructure:"max_age"`
}

type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// Secrets are read from SCHED_* environment variables and override the file.
type Secrets struct {
	JWTSecret          string `envconfig:"JWT_SECRET"`
	DBPassword         string `envconfig:"DB_PASSWORD"`
	GoogleClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET"`
	SMTPPassword       string `envconfig:"SMTP_PASSWORD"`
	TokenKey           string `envconfig:"TOKEN_KEY"`
}

const envPrefix = "SCHED"

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.max_body_bytes", 1<<20)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)

	v.SetDefault("jwt.issuer", "scheduling-api")

	v.SetDefault("scheduling.timezone", "UTC")
	v.SetDefault("scheduling.business_start", "09:00")
	v.SetDefault("scheduling.business_end", "19:00")
	v.SetDefault("scheduling.session_minutes", 45)
	v.SetDefault("scheduling.step_minutes", 60)
	v.SetDefault("scheduling.proposal_ttl", 48*time.Hour)
	v.SetDefault("scheduling.expiry_sweep", time.Minute)
	v.SetDefault("scheduling.recipient_cache_ttl", 5*time.Minute)

	v.SetDefault("meeting.fallback_base_url", "https://meet.google.com")
	v.SetDefault("meeting.vendor_timeout", 10*time.Second)
	v.SetDefault("meeting.breaker_failures", 5)
	v.SetDefault("meeting.breaker_cooldown", 30*time.Second)

	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.poll_interval", 5*time.Second)
	v.SetDefault("outbox.retry_attempts", 3)
	v.SetDefault("outbox.retry_delay", time.Second)
	v.SetDefault("outbox.retention", 7*24*time.Hour)
	v.SetDefault("outbox.cleanup_interval", time.Hour)

	v.SetDefault("smtp.port", 587)

	v.SetDefault("rate_limit.requests_per_second", 10)
	v.SetDefault("rate_limit.burst", 20)

	v.SetDefault("cors.max_age", 12*time.Hour)

	v.SetDefault("metrics.namespace", "scheduling")

	v.SetDefault("log.level", "info")
}

// Load reads config.yaml from the usual locations, then applies environment
// overrides. A missing file is not an error; defaults cover local runs.
func Load() (*Config, error) {
	// .env is a development convenience only
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app/config")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return decode(v)
}

// LoadFile reads one explicit file. Used by tests and the -config flag.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var secrets Secrets
	if err := envconfig.Process(envPrefix, &secrets); err != nil {
		return nil, fmt.Errorf("failed to read secrets: %w", err)
	}
	cfg.applySecrets(secrets)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applySecrets(s Secrets) {
	if s.JWTSecret != "" {
		c.JWT.Secret = s.JWTSecret
	}
	if s.DBPassword != "" {
		c.Database.Password = s.DBPassword
	}
	if s.GoogleClientSecret != "" {
		c.Meeting.Google.ClientSecret = s.GoogleClientSecret
	}
	if s.SMTPPassword != "" {
		c.SMTP.Password = s.SMTPPassword
	}
	if s.TokenKey != "" {
		c.TokenKey = s.TokenKey
	}
}

func (c *Config) Validate() error {
	v := validator.New()
	if err := v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		_, err := parseClock(fl.Field().String())
		return err == nil
	}); err != nil {
		return fmt.Errorf("failed to register hhmm: %w", err)
	}
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.JWT.Secret == "" {
		return errors.New("invalid config: jwt secret is required (SCHED_JWT_SECRET)")
	}
	if _, err := time.LoadLocation(c.Scheduling.TimeZone); err != nil {
		return fmt.Errorf("invalid config: scheduling.timezone: %w", err)
	}
	start, _ := parseClock(c.Scheduling.BusinessStart)
	end, _ := parseClock(c.Scheduling.BusinessEnd)
	if end <= start {
		return errors.New("invalid config: scheduling.business_end must be after business_start")
	}
	if c.Meeting.Google.Enabled && (c.Meeting.Google.ClientID == "" || c.TokenKey == "") {
		return errors.New("invalid config: google meeting vendor needs client_id and a token key")
	}
	return nil
}

// parseClock reads "15:04" as an offset from midnight.
func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
