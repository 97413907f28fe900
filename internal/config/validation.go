package config

import (
	"github.com/go-playground/validator/v10"

	apperrors "github.com/checkmate/checkmate/internal/errors"
)

var validate = validator.New()

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return apperrors.NewConfigError("invalid configuration", err)
	}

	// Debug commands seed and inspect the registry from any sender.
	if c.Debug.CommandsEnabled && c.Environment == EnvProduction {
		return apperrors.NewConfigError("debug.commands_enabled must be false in production", nil)
	}

	for name, task := range c.Scheduler.Tasks {
		if task.Enabled && task.Schedule == "" {
			return apperrors.NewConfigError("scheduler task "+name+" is enabled without a schedule", nil)
		}
	}

	return nil
}

// ValidateWhatsApp checks the settings needed to serve the WhatsApp webhook.
func (c *Config) ValidateWhatsApp() error {
	if err := validate.Struct(c.WhatsApp); err != nil {
		return apperrors.NewConfigError("invalid whatsapp configuration", err)
	}
	return nil
}
