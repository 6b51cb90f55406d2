// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Telegram      TelegramConfig     `mapstructure:"telegram"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Translate     TranslateConfig    `mapstructure:"translate"`
	Speech        SpeechConfig       `mapstructure:"speech"`
	Assist        AssistConfig       `mapstructure:"assist"`
	Flow          FlowConfig         `mapstructure:"flow"`
	Watchdog      WatchdogConfig     `mapstructure:"watchdog"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Server        ServerConfig       `mapstructure:"server"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name            string `mapstructure:"name"`
	Version         string `mapstructure:"version"`
	Environment     string `mapstructure:"environment"`
	CatalogSeedPath string `mapstructure:"catalog_seed_path"`
}

// TelegramConfig holds Bot API connection settings.
type TelegramConfig struct {
	BotToken      string `mapstructure:"bot_token"`
	BaseURL       string `mapstructure:"base_url"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	SendTimeout   int    `mapstructure:"send_timeout"`   // milliseconds
	MaxFileBytes  int64  `mapstructure:"max_file_bytes"` // voice download cap
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
	URL        string   `mapstructure:"url"`
	Index      string   `mapstructure:"index"` // chat message log index
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

// --- External Provider Config ---

// TranslateConfig holds settings for the translation provider.
type TranslateConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// SpeechConfig holds settings for the speech-to-text / text-to-speech provider.
type SpeechConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	Voice   string `mapstructure:"voice"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// --- Bot Component Config ---

// AssistConfig holds settings for the bilingual message-assist pipeline.
type AssistConfig struct {
	PrimaryLang     string `mapstructure:"primary_lang"`   // e.g. "ru"
	SecondaryLang   string `mapstructure:"secondary_lang"` // e.g. "en"
	ReplyTranslated bool   `mapstructure:"reply_translated"`
	VoiceReplies    bool   `mapstructure:"voice_replies"`
}

// FlowConfig holds settings for the application state machine.
type FlowConfig struct {
	MaxTextLength int `mapstructure:"max_text_length"`
	MaxMediaCount int `mapstructure:"max_media_count"`
}

// WatchdogConfig holds settings for the staleness watchdog.
type WatchdogConfig struct {
	StallThreshold int `mapstructure:"stall_threshold"` // hours
	Interval       int `mapstructure:"interval"`        // minutes between runs
	DedupTTL       int `mapstructure:"dedup_ttl"`       // hours a dedup mark is retained
	BatchLimit     int `mapstructure:"batch_limit"`     // max stuck applications per run
}

// NotificationConfig holds settings for the reviewer/escalation fan-out.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
