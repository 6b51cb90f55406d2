// internal/bot/watchdog/config.go
package watchdog

import (
	"time"

	"intake-bot/internal/common/config"
)

type Config struct {
	StallThreshold time.Duration
	Interval       time.Duration
	DedupTTL       time.Duration
	BatchLimit     int
}

func DefaultConfig() *Config {
	return &Config{
		StallThreshold: 24 * time.Hour,
		Interval:       time.Hour,
		DedupTTL:       30 * 24 * time.Hour,
		BatchLimit:     200,
	}
}

func FromAppConfig(cfg config.WatchdogConfig) *Config {
	c := DefaultConfig()
	if cfg.StallThreshold > 0 {
		c.StallThreshold = time.Duration(cfg.StallThreshold) * time.Hour
	}
	if cfg.Interval > 0 {
		c.Interval = time.Duration(cfg.Interval) * time.Minute
	}
	if cfg.DedupTTL > 0 {
		c.DedupTTL = time.Duration(cfg.DedupTTL) * time.Hour
	}
	if cfg.BatchLimit > 0 {
		c.BatchLimit = cfg.BatchLimit
	}
	return c
}
