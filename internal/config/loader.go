package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides: CHECKMATE_WHATSAPP_TOKEN sets
// whatsapp.token.
const EnvPrefix = "CHECKMATE"

// LoadConfig loads and validates configuration from:
// 1. Default values
// 2. the YAML file at path, if it exists
// 3. CHECKMATE_* environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v, path); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// readConfigFile reads path into v. A missing file is not an error.
func readConfigFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		slog.Debug("Configuration file not found, using defaults and environment", "path", path)
		return nil
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return nil
}

// setDefaults sets default values for every key, which also makes each key
// overridable from the environment.
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", DefaultEnvironment)

	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.json", DefaultLogJSON)

	v.SetDefault("database.path", DefaultDBPath)

	v.SetDefault("server.addr", DefaultServerAddr)
	v.SetDefault("server.shutdown_timeout", DefaultServerShutdownTimeout)
	v.SetDefault("server.process_timeout", DefaultServerProcessTimeout)

	v.SetDefault("whatsapp.base_url", DefaultWhatsAppBaseURL)
	v.SetDefault("whatsapp.token", "")
	v.SetDefault("whatsapp.phone_number_id", "")
	v.SetDefault("whatsapp.verify_token", "")
	v.SetDefault("whatsapp.app_secret", "")
	v.SetDefault("whatsapp.timeout", DefaultWhatsAppTimeout)
	v.SetDefault("whatsapp.requests_per_second", DefaultWhatsAppRequestsPerSecond)
	v.SetDefault("whatsapp.burst", DefaultWhatsAppBurst)
	v.SetDefault("whatsapp.max_media_bytes", DefaultWhatsAppMaxMediaBytes)
	v.SetDefault("whatsapp.breaker_max_failures", DefaultWhatsAppBreakerMaxFailures)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.server_url", "")

	v.SetDefault("media.root", DefaultMediaRoot)

	v.SetDefault("claims.default_category", DefaultClaimCategory)

	v.SetDefault("policy.cache_ttl", DefaultPolicyCacheTTL)

	v.SetDefault("messages.unsupported_type", "")
	v.SetDefault("messages.welcome", "")

	v.SetDefault("scheduler.tasks", DefaultTasks)

	v.SetDefault("debug.commands_enabled", false)
}
