// Package config provides configuration management for payflow.
//
// Configuration is loaded from:
// 1. config.yaml file (optional)
// 2. Environment variables (standard names like DATABASE_URL, TEMPORAL_HOST_PORT)
// 3. Default values
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"payflow.io/payflow/internal/payment"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	River    RiverConfig    `mapstructure:"river"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Temporal TemporalConfig `mapstructure:"temporal"`
	Payment  PaymentConfig  `mapstructure:"payment"`
	Events   EventsConfig   `mapstructure:"events"`
	Mail     MailConfig     `mapstructure:"mail"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	AllowedOrigins        []string `mapstructure:"allowed_origins"`
	AllowCredentials      bool     `mapstructure:"allow_credentials"`
	UnsafeAllowAllOrigins bool     `mapstructure:"unsafe_allow_all_origins"`
}

// DatabaseConfig contains PostgreSQL connection settings.
// The pool is shared by repositories, the outbox and River.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`

	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`

	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`

	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
// Priority: DATABASE_URL > constructed from individual fields.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslmode,
	)
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// RiverConfig contains River Queue settings.
type RiverConfig struct {
	MaxWorkers                  int           `mapstructure:"max_workers"`
	CompletedJobRetentionPeriod time.Duration `mapstructure:"completed_job_retention_period"`
}

// WorkerConfig contains worker pool settings.
type WorkerConfig struct {
	GeneralPoolSize int `mapstructure:"general_pool_size"`
	EventPoolSize   int `mapstructure:"event_pool_size"`
}

// TemporalConfig contains durable-execution runtime settings.
type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`

	// ActivityTimeout bounds a single activity attempt (start-to-close).
	ActivityTimeout time.Duration `mapstructure:"activity_timeout"`
	// ActivityMaxAttempts caps activity retries; 0 means unlimited.
	ActivityMaxAttempts     int32         `mapstructure:"activity_max_attempts"`
	ActivityInitialInterval time.Duration `mapstructure:"activity_initial_interval"`
	ActivityMaxInterval     time.Duration `mapstructure:"activity_max_interval"`

	// UpdateTimeout bounds how long the facade waits for an update result.
	UpdateTimeout time.Duration `mapstructure:"update_timeout"`
}

// PaymentConfig contains payment aggregate behaviour.
type PaymentConfig struct {
	// ProcessingMode is "auto" (complete immediately) or "external"
	// (wait for a processor callback).
	ProcessingMode string `mapstructure:"processing_mode"`
}

// EventsConfig selects how domain events reach saga handlers.
type EventsConfig struct {
	// Delivery is "outbox" (River job per event, survives restarts) or
	// "inprocess" (worker pool, lost on crash).
	Delivery string `mapstructure:"delivery"`
}

// Event delivery modes.
const (
	DeliveryOutbox    = "outbox"
	DeliveryInProcess = "inprocess"
)

// MailConfig contains SMTP settings. An empty host logs emails instead of
// sending them.
type MailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

var (
	bootstrapLoggerOnce sync.Once
	bootstrapLogger     *zap.Logger
)

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/payflow")

	// No prefix: database.max_conns maps to DATABASE_MAX_CONNS.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	cfg.warnDegraded()

	return &cfg, nil
}

// Validate checks for critical configuration errors.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Temporal.HostPort == "" {
		return fmt.Errorf("temporal.host_port must not be empty")
	}
	if c.Temporal.TaskQueue == "" {
		return fmt.Errorf("temporal.task_queue must not be empty")
	}
	if c.Temporal.ActivityTimeout <= 0 {
		return fmt.Errorf("temporal.activity_timeout must be positive")
	}
	if c.Temporal.ActivityMaxAttempts < 0 {
		return fmt.Errorf("temporal.activity_max_attempts must not be negative")
	}
	if _, err := payment.ParseProcessingMode(c.Payment.ProcessingMode); err != nil {
		return fmt.Errorf("payment.processing_mode: %w", err)
	}
	switch c.Events.Delivery {
	case DeliveryOutbox, DeliveryInProcess:
	default:
		return fmt.Errorf("events.delivery must be %q or %q, got %q", DeliveryOutbox, DeliveryInProcess, c.Events.Delivery)
	}
	return nil
}

// ProcessingMode returns the parsed payment processing mode.
// Validate has already rejected unknown values.
func (c *Config) ProcessingMode() payment.ProcessingMode {
	mode, _ := payment.ParseProcessingMode(c.Payment.ProcessingMode)
	return mode
}

func (c *Config) warnDegraded() {
	if c.Mail.Host == "" {
		logBootstrapWarn("mail.host not set; outgoing emails are logged instead of sent")
	}
	if c.Events.Delivery == DeliveryInProcess {
		logBootstrapWarn("events.delivery=inprocess; events published before a crash are lost",
			zap.String("delivery", c.Events.Delivery))
	}
}

func logBootstrapWarn(msg string, fields ...zap.Field) {
	bootstrapLoggerOnce.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)

		l, err := cfg.Build()
		if err != nil {
			bootstrapLogger = zap.NewNop()
			return
		}
		bootstrapLogger = l
	})

	bootstrapLogger.Warn(msg, fields...)
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.allow_credentials", true)
	v.SetDefault("server.unsafe_allow_all_origins", false)

	// Database
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "payflow")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "payflow")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 50)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "10m")
	v.SetDefault("database.auto_migrate", true)

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// River
	v.SetDefault("river.max_workers", 10)
	v.SetDefault("river.completed_job_retention_period", "24h")

	// Worker pools
	v.SetDefault("worker.general_pool_size", 100)
	v.SetDefault("worker.event_pool_size", 32)

	// Temporal
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "main-task-queue")
	v.SetDefault("temporal.activity_timeout", "1m")
	v.SetDefault("temporal.activity_max_attempts", 5)
	v.SetDefault("temporal.activity_initial_interval", "1s")
	v.SetDefault("temporal.activity_max_interval", "30s")
	v.SetDefault("temporal.update_timeout", "30s")

	// Payment
	v.SetDefault("payment.processing_mode", string(payment.ProcessingAuto))

	// Events
	v.SetDefault("events.delivery", DeliveryOutbox)

	// Mail
	v.SetDefault("mail.host", "")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "no-reply@payflow.local")
}
