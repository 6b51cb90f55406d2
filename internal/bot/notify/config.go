// internal/bot/notify/config.go
package notify

import (
	"time"

	"intake-bot/internal/common/config"
)

type Config struct {
	EmailEnabled bool
	EmailFrom    string
	SMSEnabled   bool
	ReviewTTL    time.Duration

	ReviewSubject  string
	ReviewBody     string
	ReviewSMS      string
	StalledSubject string
	StalledBody    string
	StalledSMS     string
}

func DefaultConfig() *Config {
	return &Config{
		ReviewTTL: 30 * 24 * time.Hour,

		ReviewSubject:  "Application ready for review",
		ReviewBody:     "Application {{applicationId}} from {{username}} is complete and awaiting review.",
		ReviewSMS:      "Application {{applicationId}} from {{username}} is ready for review",
		StalledSubject: "Application stalled",
		StalledBody:    "Application {{applicationId}} from {{username}} has been idle on step \"{{step}}\" since {{since}}.",
		StalledSMS:     "Stalled application {{applicationId}} on step {{step}}",
	}
}

func FromAppConfig(cfg config.NotificationConfig) *Config {
	c := DefaultConfig()
	c.EmailEnabled = cfg.Email.Enabled
	c.EmailFrom = cfg.Email.FromEmail
	c.SMSEnabled = cfg.SMS.Enabled
	return c
}
