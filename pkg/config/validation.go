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
// via struct tags, with additional custom validation for complex rules
// that cannot be expressed in tags.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	// Run struct tag validation
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	// Custom validation rules that can't be expressed in tags
	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if !cfg.Adapters.WOPI.Enabled {
		return fmt.Errorf("adapters: at least one adapter must be enabled")
	}

	if (cfg.Adapters.WOPI.TLSCertFile == "") != (cfg.Adapters.WOPI.TLSKeyFile == "") {
		return fmt.Errorf("adapters.wopi: tls_cert_file and tls_key_file must be set together")
	}

	// Proof keys come from the discovery document
	if cfg.Proof.Enabled && cfg.Discovery.URL == "" {
		return fmt.Errorf("proof: enabled requires discovery.url")
	}

	if cfg.Discovery.WarmOnStart && cfg.Discovery.URL == "" {
		return fmt.Errorf("discovery: warm_on_start requires url")
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Port == cfg.Adapters.WOPI.Port {
		return fmt.Errorf("metrics: port %d is already used by the WOPI adapter", cfg.Metrics.Port)
	}

	switch cfg.Content.Type {
	case "s3":
		if s, _ := cfg.Content.S3["bucket"].(string); s == "" {
			return fmt.Errorf("content.s3: bucket is required")
		}
	case "filesystem":
		if s, _ := cfg.Content.Filesystem["path"].(string); s == "" {
			return fmt.Errorf("content.filesystem: path is required")
		}
	}

	if cfg.Metadata.Type == "postgres" {
		if s, _ := cfg.Metadata.Postgres["dsn"].(string); s == "" {
			return fmt.Errorf("metadata.postgres: dsn is required")
		}
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		// Return the first validation error with context
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			if e.Namespace() == "Config.Auth.Secret" {
				// Never echo the secret
				return fmt.Errorf("%s: validation failed on '%s' tag (run `dittowopi init` to generate a secret)",
					e.Namespace(), e.Tag())
			}
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
