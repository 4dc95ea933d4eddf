// Package engcfg loads engine configuration from environment variables.
package engcfg

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// #region config

// Config holds the process-wide engine settings.
type Config struct {
	// DBPath is the SQLite file holding checkpoints and the conflict log.
	DBPath string `env:"SCENESYNC_DB" envDefault:"scenesync.db"`
	// Validation is the initial state of the validation toggle.
	Validation bool `env:"SCENESYNC_VALIDATION" envDefault:"true"`
	// AutoResolve is the initial state of the auto-resolve toggle.
	AutoResolve bool `env:"SCENESYNC_AUTORESOLVE" envDefault:"true"`
	// ThreatCap bounds the security machine's accumulating threat set.
	ThreatCap int `env:"SCENESYNC_THREAT_CAP" envDefault:"64"`
	// AuditRingCap bounds the in-memory conflict ring.
	AuditRingCap int `env:"SCENESYNC_AUDIT_RING" envDefault:"256"`
}

// Load parses the configuration from the environment.
func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return c, nil
}

// #endregion config
