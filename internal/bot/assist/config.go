// internal/bot/assist/config.go
package assist

import "intake-bot/internal/common/config"

type Config struct {
	PrimaryLang     string
	SecondaryLang   string
	ReplyTranslated bool
	VoiceReplies    bool

	TranscriptPrefix  string
	TranslationPrefix string
}

func DefaultConfig() *Config {
	return &Config{
		PrimaryLang:       "ru",
		SecondaryLang:     "en",
		ReplyTranslated:   true,
		VoiceReplies:      false,
		TranscriptPrefix:  "Transcript:",
		TranslationPrefix: "Translation:",
	}
}

func FromAppConfig(cfg config.AssistConfig) *Config {
	c := DefaultConfig()
	if cfg.PrimaryLang != "" {
		c.PrimaryLang = cfg.PrimaryLang
	}
	if cfg.SecondaryLang != "" {
		c.SecondaryLang = cfg.SecondaryLang
	}
	c.ReplyTranslated = cfg.ReplyTranslated
	c.VoiceReplies = cfg.VoiceReplies
	return c
}
