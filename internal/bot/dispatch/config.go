// internal/bot/dispatch/config.go
package dispatch

import (
	"time"

	"intake-bot/internal/common/config"
)

type Config struct {
	WebhookSecret string
	EventDedupTTL time.Duration
	GroupGreeting string
}

func DefaultConfig() *Config {
	return &Config{
		EventDedupTTL: 48 * time.Hour,
		GroupGreeting: "Hello! I'll help with translations and voice notes in this chat. Message me privately to start an application.",
	}
}

func FromAppConfig(cfg config.TelegramConfig) *Config {
	c := DefaultConfig()
	c.WebhookSecret = cfg.WebhookSecret
	return c
}
