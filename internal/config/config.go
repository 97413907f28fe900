// Package config provides configuration loading, validation, and management
// for checkmate. Values come from defaults, an optional YAML file and
// CHECKMATE_* environment variables, in increasing order of precedence.
package config

import (
	"time"
)

// Environments.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Config defines the application configuration.
type Config struct {
	Environment string `mapstructure:"environment" validate:"required,oneof=development staging production"`

	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	WhatsApp  WhatsAppConfig  `mapstructure:"whatsapp" validate:"-"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Media     MediaConfig     `mapstructure:"media"`
	Claims    ClaimsConfig    `mapstructure:"claims"`
	Policy    PolicyConfig    `mapstructure:"policy"`
	Messages  MessagesConfig  `mapstructure:"messages"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Debug     DebugConfig     `mapstructure:"debug"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=1s,max=5m"`
	// ProcessTimeout bounds the handling of one webhook callback.
	ProcessTimeout time.Duration `mapstructure:"process_timeout" validate:"min=1s,max=10m"`
}

// WhatsAppConfig is only required by the serve command; see ValidateWhatsApp.
type WhatsAppConfig struct {
	BaseURL            string        `mapstructure:"base_url" validate:"required,url"`
	Token              string        `mapstructure:"token" validate:"required"`
	PhoneNumberID      string        `mapstructure:"phone_number_id" validate:"required"`
	VerifyToken        string        `mapstructure:"verify_token" validate:"required"`
	AppSecret          string        `mapstructure:"app_secret"`
	Timeout            time.Duration `mapstructure:"timeout" validate:"min=1s,max=2m"`
	RequestsPerSecond  float64       `mapstructure:"requests_per_second" validate:"min=0"`
	Burst              int           `mapstructure:"burst" validate:"min=0"`
	MaxMediaBytes      int64         `mapstructure:"max_media_bytes" validate:"min=1"`
	BreakerMaxFailures int           `mapstructure:"breaker_max_failures" validate:"min=1"`
}

// TelegramConfig enables the Telegram channel when Token is set.
type TelegramConfig struct {
	Token     string `mapstructure:"token"`
	ServerURL string `mapstructure:"server_url" validate:"omitempty,url"`
}

// Enabled reports whether the Telegram listener should run.
func (t TelegramConfig) Enabled() bool {
	return t.Token != ""
}

type MediaConfig struct {
	Root string `mapstructure:"root" validate:"required"`
}

type ClaimsConfig struct {
	DefaultCategory string `mapstructure:"default_category" validate:"required"`
}

type PolicyConfig struct {
	// CacheTTL is the documented staleness bound of the supported types and
	// responses documents.
	CacheTTL time.Duration `mapstructure:"cache_ttl" validate:"min=0,max=5m"`
}

// MessagesConfig holds fallback responses used when the stored responses
// document lacks a key.
type MessagesConfig struct {
	UnsupportedType string `mapstructure:"unsupported_type"`
	Welcome         string `mapstructure:"welcome"`
}

type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// DebugConfig gates diagnostic features reachable from untrusted senders.
type DebugConfig struct {
	CommandsEnabled bool `mapstructure:"commands_enabled"`
}
