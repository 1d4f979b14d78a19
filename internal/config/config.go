package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App        AppConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Logger     LoggerConfig
	Auth       AuthConfig
	Email      EmailConfig
	Escalation EscalationConfig
	RateLimit  RateLimitConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// EmailConfig holds SMTP delivery settings. Empty Host disables real
// sends; the dispatcher then logs and skips the email channel.
type EmailConfig struct {
	Host               string
	Port               int
	Username           string
	Password           string
	From               string
	SendTimeoutSeconds int
}

// EscalationConfig tunes the stale-ticket sweep.
type EscalationConfig struct {
	SweepIntervalMinutes int
	StaleAfterHours      int
}

// RateLimitConfig holds flood-control thresholds.
type RateLimitConfig struct {
	TicketsPerDay     int
	MessagesPerWindow int
	MessageWindowSec  int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "commerce-support"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Email: EmailConfig{
			Host:               os.Getenv("SMTP_HOST"),
			Port:               getEnvAsInt("SMTP_PORT", 587),
			Username:           os.Getenv("SMTP_USERNAME"),
			Password:           os.Getenv("SMTP_PASSWORD"),
			From:               getEnv("SMTP_FROM", "support@example.com"),
			SendTimeoutSeconds: getEnvAsInt("SMTP_SEND_TIMEOUT_SECONDS", 10),
		},
		Escalation: EscalationConfig{
			SweepIntervalMinutes: getEnvAsInt("ESCALATION_SWEEP_INTERVAL_MINUTES", 30),
			StaleAfterHours:      getEnvAsInt("ESCALATION_STALE_AFTER_HOURS", 24),
		},
		RateLimit: RateLimitConfig{
			TicketsPerDay:     getEnvAsInt("RATE_LIMIT_TICKETS_PER_DAY", 5),
			MessagesPerWindow: getEnvAsInt("RATE_LIMIT_MESSAGES_PER_WINDOW", 10),
			MessageWindowSec:  getEnvAsInt("RATE_LIMIT_MESSAGE_WINDOW_SECONDS", 300),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// IsDevelopment reports whether the service runs in development mode.
// Error responses include underlying error strings only in this mode.
func (a AppConfig) IsDevelopment() bool {
	return a.Env != "production"
}

// SendTimeout returns the bounded email send timeout.
func (e EmailConfig) SendTimeout() time.Duration {
	if e.SendTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(e.SendTimeoutSeconds) * time.Second
}

// StaleAfter returns the age threshold for auto-escalation.
func (e EscalationConfig) StaleAfter() time.Duration {
	if e.StaleAfterHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(e.StaleAfterHours) * time.Hour
}

// SweepInterval returns the escalation sweep cadence.
func (e EscalationConfig) SweepInterval() time.Duration {
	if e.SweepIntervalMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(e.SweepIntervalMinutes) * time.Minute
}

// MessageWindow returns the message flood-control window.
func (r RateLimitConfig) MessageWindow() time.Duration {
	if r.MessageWindowSec <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(r.MessageWindowSec) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
