package config

import "time"

// Default values for configuration
const (
	DefaultEnvironment = EnvDevelopment

	DefaultLogLevel = "info"
	DefaultLogJSON  = false

	DefaultDBPath = "checkmate.db"

	DefaultServerAddr            = ":8080"
	DefaultServerShutdownTimeout = 10 * time.Second
	DefaultServerProcessTimeout  = 60 * time.Second

	DefaultWhatsAppBaseURL            = "https://graph.facebook.com/v19.0"
	DefaultWhatsAppTimeout            = 15 * time.Second
	DefaultWhatsAppRequestsPerSecond  = 20.0
	DefaultWhatsAppBurst              = 10
	DefaultWhatsAppMaxMediaBytes      = 16 << 20
	DefaultWhatsAppBreakerMaxFailures = 5

	DefaultMediaRoot = "media"

	DefaultClaimCategory = "fake news"

	DefaultPolicyCacheTTL = 30 * time.Second
)

// DefaultTasks are the scheduled maintenance jobs.
var DefaultTasks = map[string]any{
	"db_compaction": map[string]any{"enabled": true, "schedule": "0 0 3 * * *"},
	"claim_stats":   map[string]any{"enabled": true, "schedule": "0 0 * * * *"},
}
