package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for rules that
// cannot be expressed in tags.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	// The Premium tier must dominate the Free tier, otherwise an upgrade
	// could shrink a user's allowance
	if cfg.Plans.PremiumLimitBytes < cfg.Plans.FreeLimitBytes {
		return fmt.Errorf("plans: premium_limit_bytes (%d) must be at least free_limit_bytes (%d)",
			cfg.Plans.PremiumLimitBytes, cfg.Plans.FreeLimitBytes)
	}

	// A purge running far more often than the retention window is a
	// configuration mistake, not a tuning choice
	if cfg.Trash.PurgeInterval > cfg.Trash.Retention() {
		return fmt.Errorf("trash: purge_interval (%s) must not exceed the retention window (%s)",
			cfg.Trash.PurgeInterval, cfg.Trash.Retention())
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly
// messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
