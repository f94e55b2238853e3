package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every tunable for the service. Each knob is independently
// settable from the environment; defaults are safe for a small household.
type Config struct {
	Port     string `env:"CHOREBOARD_PORT" envDefault:"8080"`
	DBPath   string `env:"CHOREBOARD_DB_PATH" envDefault:"choreboard.db"`
	LogLevel string `env:"CHOREBOARD_LOG_LEVEL" envDefault:"info"`
	LogFmt   string `env:"CHOREBOARD_LOG_FORMAT" envDefault:"text"`

	// DefaultTimezone is the fallback when neither a chore's recurrence data
	// nor its household carries a valid zone name.
	DefaultTimezone string `env:"CHOREBOARD_DEFAULT_TIMEZONE" envDefault:"UTC"`

	ReminderLeadTime time.Duration `env:"CHOREBOARD_REMINDER_LEAD_TIME" envDefault:"60m"`
	ReminderCooldown time.Duration `env:"CHOREBOARD_REMINDER_COOLDOWN" envDefault:"120m"`
	DigestInterval   time.Duration `env:"CHOREBOARD_DIGEST_INTERVAL" envDefault:"5m"`

	RecurrenceLookaheadDays        int `env:"CHOREBOARD_RECURRENCE_LOOKAHEAD_DAYS" envDefault:"30"`
	NotificationRetentionDays      int `env:"CHOREBOARD_NOTIFICATION_RETENTION_DAYS" envDefault:"90"`
	CompletedInstanceRetentionDays int `env:"CHOREBOARD_COMPLETED_INSTANCE_RETENTION_DAYS" envDefault:"60"`

	ScanInterval        time.Duration `env:"CHOREBOARD_SCAN_INTERVAL" envDefault:"5m"`
	MaterializeInterval time.Duration `env:"CHOREBOARD_MATERIALIZE_INTERVAL" envDefault:"1h"`
	RecomputeInterval   time.Duration `env:"CHOREBOARD_RECOMPUTE_INTERVAL" envDefault:"1h"`
	PruneInterval       time.Duration `env:"CHOREBOARD_PRUNE_INTERVAL" envDefault:"24h"`

	VAPIDPublicKey  string `env:"CHOREBOARD_VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `env:"CHOREBOARD_VAPID_PRIVATE_KEY"`

	PostmarkToken string `env:"CHOREBOARD_POSTMARK_TOKEN"`
	EmailFrom     string `env:"CHOREBOARD_EMAIL_FROM" envDefault:"noreply@choreboard.app"`
}

// Load reads an optional .env file, then parses the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// DigestTolerance is the window around a member's scheduled send time within
// which the digest job fires: half the job's run interval, so every scheduled
// time is hit exactly once per day.
func (c Config) DigestTolerance() time.Duration {
	return c.DigestInterval / 2
}

// Lookahead converts the lookahead day count to a duration.
func (c Config) Lookahead() time.Duration {
	return time.Duration(c.RecurrenceLookaheadDays) * 24 * time.Hour
}
