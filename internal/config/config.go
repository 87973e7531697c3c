// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the runtime configuration shared by the server, worker and seeder.
type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	// Store selects "postgres" or "memory".
	Store       string `env:"STORE" envDefault:"postgres"`
	DatabaseURL string `env:"DATABASE_URL"`
	DBUser      string `env:"DB_USER"`
	DBPassword  string `env:"DB_PASSWORD"`
	DBHost      string `env:"DB_HOST" envDefault:"localhost"`
	DBPort      string `env:"DB_PORT" envDefault:"5432"`
	DBName      string `env:"DB_NAME"`

	AMQPURL         string        `env:"AMQP_URL"`
	RunQueue        string        `env:"AMQP_RUN_QUEUE" envDefault:"auto_invite_runs"`
	ReportQueue     string        `env:"AMQP_REPORT_QUEUE" envDefault:"auto_invite_reports"`
	RedisAddr       string        `env:"REDIS_ADDR"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	LeaseTTL        time.Duration `env:"LEASE_TTL" envDefault:"30m"`
	ScheduleAt      string        `env:"SCHEDULE_AT" envDefault:"09:00"`
	Timezone        string        `env:"TIMEZONE" envDefault:"UTC"`
	DateGateGrace   int           `env:"DATE_GATE_GRACE_DAYS" envDefault:"0"`
	SendInterval    time.Duration `env:"SEND_INTERVAL" envDefault:"1s"`
	SendBurst       int           `env:"SEND_BURST" envDefault:"1"`
	DefaultRegion   string        `env:"PHONE_DEFAULT_REGION" envDefault:"US"`
	Sender          string        `env:"SENDER" envDefault:"whatsapp"`
	MockSuccessRate float64       `env:"MOCK_SUCCESS_RATE" envDefault:"0.9"`

	WhatsApp WhatsAppConfig `envPrefix:"WHATSAPP_"`
}

// WhatsAppConfig configures the WhatsApp Cloud API template sender.
type WhatsAppConfig struct {
	BaseURL       string        `env:"API_URL" envDefault:"https://graph.facebook.com/v19.0"`
	PhoneNumberID string        `env:"PHONE_NUMBER_ID"`
	Token         string        `env:"TOKEN"`
	Language      string        `env:"TEMPLATE_LANGUAGE" envDefault:"en"`
	Timeout       time.Duration `env:"TIMEOUT" envDefault:"15s"`
}

// Load reads an optional .env file, then parses the environment.
func Load() (Config, error) {
	// a missing .env is fine; the environment may already be populated
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that env tags cannot express.
func (c Config) Validate() error {
	switch c.Store {
	case "postgres", "memory":
	default:
		return fmt.Errorf("STORE must be postgres or memory, got %q", c.Store)
	}
	switch c.Sender {
	case "whatsapp", "mock":
	default:
		return fmt.Errorf("SENDER must be whatsapp or mock, got %q", c.Sender)
	}
	if c.SendInterval <= 0 {
		return fmt.Errorf("SEND_INTERVAL must be positive")
	}
	if c.SendBurst < 1 {
		return fmt.Errorf("SEND_BURST must be at least 1")
	}
	if c.DateGateGrace < 0 {
		return fmt.Errorf("DATE_GATE_GRACE_DAYS must not be negative")
	}
	if c.LeaseTTL <= 0 {
		return fmt.Errorf("LEASE_TTL must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, _, err := c.ScheduleClock(); err != nil {
		return err
	}
	return nil
}

// DSN returns DATABASE_URL, or builds one from the DB_* variables.
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
}

// Location resolves TIMEZONE, the zone in which calendar days are counted.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ScheduleClock parses SCHEDULE_AT as HH:MM.
func (c Config) ScheduleClock() (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(c.ScheduleAt))
	if err != nil {
		return 0, 0, fmt.Errorf("SCHEDULE_AT %q: want HH:MM", c.ScheduleAt)
	}
	return t.Hour(), t.Minute(), nil
}
