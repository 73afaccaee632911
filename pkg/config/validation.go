package config

import (
	"errors"
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
// Log level normalization is handled in ApplyDefaults, not here.
//
// Returns an error describing the first validation failure.
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
	if _, err := cfg.Links.Checksum(); err != nil {
		return fmt.Errorf("links.checksum_scope: %w", err)
	}

	switch cfg.Store.Type {
	case "badger":
		if path, _ := cfg.Store.Badger["db_path"].(string); path == "" {
			if inMemory, _ := cfg.Store.Badger["in_memory"].(bool); !inMemory {
				return fmt.Errorf("store.badger: db_path is required")
			}
		}
	case "s3":
		if bucket, _ := cfg.Store.S3["bucket"].(string); bucket == "" {
			return fmt.Errorf("store.s3: bucket is required")
		}
	}

	for name, limit := range cfg.RateLimit.Procedures {
		if name == "" {
			return fmt.Errorf("rate_limit.procedures: empty procedure name")
		}
		if limit.Burst > 0 && limit.RequestsPerSecond == 0 {
			return fmt.Errorf("rate_limit.procedures[%s]: burst set without requests_per_second", name)
		}
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
