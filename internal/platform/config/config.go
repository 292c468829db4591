// Package config builds process configuration from the environment so main
// stays lean.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures everything the server needs at startup. The SystemConfig
// fields seed the admin-mutable runtime singleton; after startup the admin
// interface is the only way to change them.
type Config struct {
	Addr          string `env:"SAFEHARBOR_ADDR" envDefault:":8080"`
	OwnerActor    string `env:"SAFEHARBOR_OWNER" envDefault:"system-owner"`
	JWTSigningKey string `env:"SAFEHARBOR_JWT_SIGNING_KEY"`

	// Empty DSN/URL/brokers select the in-memory implementations.
	PostgresDSN  string   `env:"SAFEHARBOR_POSTGRES_DSN"`
	RedisURL     string   `env:"SAFEHARBOR_REDIS_URL"`
	KafkaBrokers []string `env:"SAFEHARBOR_KAFKA_BROKERS" envSeparator:","`

	MaxReservationTime        time.Duration `env:"SAFEHARBOR_MAX_RESERVATION_TIME" envDefault:"72h"`
	DefaultPriorityDecay      int           `env:"SAFEHARBOR_PRIORITY_DECAY" envDefault:"1"`
	MinimumCaseUpdateInterval time.Duration `env:"SAFEHARBOR_MIN_CASE_UPDATE_INTERVAL" envDefault:"24h"`
	PrivacyRetentionPeriod    time.Duration `env:"SAFEHARBOR_PRIVACY_RETENTION_PERIOD" envDefault:"2160h"`
	EmergencyOverrideEnabled  bool          `env:"SAFEHARBOR_EMERGENCY_OVERRIDE" envDefault:"false"`

	AuditBufferSize int `env:"SAFEHARBOR_AUDIT_BUFFER" envDefault:"256"`
}

// FromEnv parses the environment into a Config.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
