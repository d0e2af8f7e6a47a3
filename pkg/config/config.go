package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/marmos91/dittowopi/pkg/adapter/wopi"
)

// EnvPrefix prefixes every environment override, e.g.
// DITTOWOPI_LOGGING_LEVEL=DEBUG or DITTOWOPI_ADAPTERS_WOPI_PORT=8443.
const EnvPrefix = "DITTOWOPI"

// Config represents the complete DittoWOPI configuration.
//
// This structure captures all configurable aspects of the WOPI host:
//   - Logging configuration
//   - Server-wide settings
//   - Content and metadata store selection (store-specific sections)
//   - Discovery, proof validation and access tokens
//   - Host integration (URLs, branding, lock behaviour)
//   - Protocol adapter and metrics configuration
//
// Configuration sources (in order of precedence):
//  1. Environment variables (DITTOWOPI_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values (lowest priority)
//
// Store Configuration Pattern:
// Each store implementation defines its own configuration type. The Config
// struct contains type-specific sections (e.g., content.filesystem,
// content.s3) and only the section matching the selected type is decoded.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Server contains server-wide settings
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Content specifies the content store type and type-specific configuration
	Content ContentConfig `mapstructure:"content" yaml:"content"`

	// Metadata specifies the metadata store type and type-specific configuration
	Metadata MetadataConfig `mapstructure:"metadata" yaml:"metadata"`

	// Discovery locates the WOPI client's discovery document
	Discovery DiscoveryConfig `mapstructure:"discovery" yaml:"discovery"`

	// Proof controls X-WOPI-Proof validation
	Proof ProofConfig `mapstructure:"proof" yaml:"proof"`

	// Auth configures access tokens
	Auth AuthConfig `mapstructure:"auth" yaml:"auth"`

	// Host describes the host application around the WOPI endpoint
	Host HostConfig `mapstructure:"host" yaml:"host"`

	// Adapters contains protocol adapter configurations
	Adapters AdaptersConfig `mapstructure:"adapters" yaml:"adapters"`

	// Metrics controls the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// GC controls the orphaned content collector
	GC GCConfig `mapstructure:"gc" yaml:"gc"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// ServerConfig contains server-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"required,gt=0"`

	// Version is sent as X-WOPI-ServerVersion
	Version string `mapstructure:"version" yaml:"version"`

	// MachineName is sent as X-WOPI-MachineName (defaults to the host name)
	MachineName string `mapstructure:"machine_name" yaml:"machine_name,omitempty"`
}

// ContentConfig specifies content store configuration.
//
// The Type field determines which store implementation is used.
// Only the corresponding type-specific configuration section is used.
type ContentConfig struct {
	// Type specifies which content store implementation to use
	// Valid values: filesystem, memory, s3
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=filesystem memory s3"`

	// Filesystem contains filesystem-specific configuration
	// Only used when Type = "filesystem"
	Filesystem map[string]any `mapstructure:"filesystem" yaml:"filesystem"`

	// Memory contains memory-specific configuration
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory" yaml:"memory"`

	// S3 contains S3-specific configuration
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3" yaml:"s3"`
}

// MetadataConfig specifies metadata store configuration.
//
// The Type field determines which store implementation is used.
// Only the corresponding type-specific configuration section is used.
type MetadataConfig struct {
	// Type specifies which metadata store implementation to use
	// Valid values: memory, badger, postgres
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=memory badger postgres"`

	// Memory contains memory-specific configuration
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory" yaml:"memory"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger" yaml:"badger"`

	// Postgres contains PostgreSQL-specific configuration
	// Only used when Type = "postgres"
	Postgres map[string]any `mapstructure:"postgres" yaml:"postgres"`
}

// DiscoveryConfig locates and caches the discovery document.
type DiscoveryConfig struct {
	// URL of the discovery document. Empty disables actions and proof keys.
	URL string `mapstructure:"url" yaml:"url" validate:"omitempty,url"`

	// NetZone selects the net-zone element. Empty accepts every zone.
	NetZone string `mapstructure:"net_zone" yaml:"net_zone" validate:"omitempty,oneof=internal-http internal-https external-http external-https"`

	// Locale fills the UI_LLCC and DC_LLCC placeholders
	Locale string `mapstructure:"locale" yaml:"locale" validate:"required"`

	ManifestTTL  time.Duration `mapstructure:"manifest_ttl" yaml:"manifest_ttl" validate:"gt=0"`
	ProofKeyTTL  time.Duration `mapstructure:"proof_key_ttl" yaml:"proof_key_ttl" validate:"gt=0"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout" yaml:"fetch_timeout" validate:"gt=0"`
	MaxRetries   int           `mapstructure:"max_retries" yaml:"max_retries" validate:"min=0"`

	// WarmOnStart fetches the document before serving
	WarmOnStart bool `mapstructure:"warm_on_start" yaml:"warm_on_start"`
}

// ProofConfig controls proof validation.
type ProofConfig struct {
	// Enabled requires a valid X-WOPI-Proof on every request
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// AuthConfig configures access tokens.
type AuthConfig struct {
	// Secret is the HMAC signing key for access tokens
	Secret string `mapstructure:"secret" yaml:"secret" validate:"required,min=16"`

	// Issuer is written to and required in the iss claim
	Issuer string `mapstructure:"issuer" yaml:"issuer"`

	// TokenTTL is the lifetime of issued tokens
	TokenTTL time.Duration `mapstructure:"token_ttl" yaml:"token_ttl" validate:"gt=0"`

	// RequireToken rejects requests without a valid token for the file
	RequireToken bool `mapstructure:"require_token" yaml:"require_token"`
}

// HostConfig describes the host application and the WOPI contract knobs.
type HostConfig struct {
	// Scheme the WOPI client uses to reach this host (http or https).
	// Empty means: detect from the request.
	Scheme string `mapstructure:"scheme" yaml:"scheme" validate:"omitempty,oneof=http https"`

	// TrustForwardedHeaders honours X-Forwarded-* from a reverse proxy
	TrustForwardedHeaders bool `mapstructure:"trust_forwarded_headers" yaml:"trust_forwarded_headers"`

	// ViewURLTemplate and EditURLTemplate build HostViewUrl/HostEditUrl.
	// "{id}" is replaced with the file id.
	ViewURLTemplate string `mapstructure:"view_url_template" yaml:"view_url_template"`
	EditURLTemplate string `mapstructure:"edit_url_template" yaml:"edit_url_template"`

	BreadcrumbBrandName    string `mapstructure:"breadcrumb_brand_name" yaml:"breadcrumb_brand_name"`
	BreadcrumbBrandURL     string `mapstructure:"breadcrumb_brand_url" yaml:"breadcrumb_brand_url"`
	AllowErrorReportPrompt bool   `mapstructure:"allow_error_report_prompt" yaml:"allow_error_report_prompt"`

	// DefaultUserID and DefaultUserName identify callers without a token
	DefaultUserID   string `mapstructure:"default_user_id" yaml:"default_user_id"`
	DefaultUserName string `mapstructure:"default_user_name" yaml:"default_user_name"`

	// LockDuration is how long a WOPI lock lives without refresh
	LockDuration time.Duration `mapstructure:"lock_duration" yaml:"lock_duration" validate:"gt=0"`

	// ConflictRetries is how many times a lost metadata update is retried
	ConflictRetries int `mapstructure:"conflict_retries" yaml:"conflict_retries" validate:"min=0,max=10"`

	// MaxBodySize bounds PutFile, PutRelativeFile and PutUserInfo bodies
	MaxBodySize int64 `mapstructure:"max_body_size" yaml:"max_body_size" validate:"gt=0"`
}

// AdaptersConfig contains all protocol adapter configurations.
type AdaptersConfig struct {
	// WOPI contains the WOPI HTTP adapter configuration.
	// Uses the wopi.WOPIConfig type directly to avoid duplication.
	WOPI wopi.WOPIConfig `mapstructure:"wopi" yaml:"wopi"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port" validate:"min=0,max=65535"`
}

// GCConfig controls background removal of content no file record points at.
type GCConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Interval between collections. An orphan is only removed once it has
	// been seen in two consecutive collections.
	Interval time.Duration `mapstructure:"interval" yaml:"interval" validate:"gt=0"`

	// BatchSize caps the ids handed to one batch delete
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size" validate:"gt=0,max=1000"`

	// DryRun logs orphans without deleting them
	DryRun bool `mapstructure:"dry_run" yaml:"dry_run"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (DITTOWOPI_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: DITTOWOPI_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only sees keys viper already knows; bind every struct
	// key so overrides work without a config file.
	bindEnvKeys(v, reflect.TypeOf(Config{}), "")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/dittowopi/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// bindEnvKeys binds the mapstructure key of every leaf field under t.
// Free-form map sections are skipped.
func bindEnvKeys(v *viper.Viper, t reflect.Type, prefix string) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := strings.Split(field.Tag.Get("mapstructure"), ",")[0]
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		switch {
		case field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Duration(0)):
			bindEnvKeys(v, field.Type, key)
		case field.Type.Kind() == reflect.Map:
			continue
		default:
			_ = v.BindEnv(key)
		}
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper, configPath string) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		// An explicit path that does not exist is a user error.
		if configPath != "" && os.IsNotExist(err) {
			return fmt.Errorf("config file not found: %s", configPath)
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dittowopi")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "dittowopi")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
