package config

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
	"time"

	"github.com/marmos91/dittowopi/pkg/adapter/wopi"
)

const (
	defaultLockDuration = 30 * time.Minute
	defaultMaxBodySize  = 100 << 20 // 100MB
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - auth.secret is never defaulted; `dittowopi init` generates one
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyContentDefaults(&cfg.Content)
	applyMetadataDefaults(&cfg.Metadata)
	applyDiscoveryDefaults(&cfg.Discovery)
	applyAuthDefaults(&cfg.Auth)
	applyHostDefaults(&cfg.Host)
	applyAdaptersDefaults(&cfg.Adapters)
	applyMetricsDefaults(&cfg.Metrics)
	applyGCDefaults(&cfg.GC)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyServerDefaults sets server defaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Version == "" {
		cfg.Version = "1.0"
	}
	// MachineName is resolved from the host name at startup
}

// applyContentDefaults sets content store defaults.
func applyContentDefaults(cfg *ContentConfig) {
	if cfg.Type == "" {
		cfg.Type = "filesystem"
	}

	// Initialize maps if nil
	if cfg.Filesystem == nil {
		cfg.Filesystem = make(map[string]any)
	}
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}

	if _, ok := cfg.Filesystem["path"]; !ok {
		cfg.Filesystem["path"] = "/tmp/dittowopi-content"
	}
	if _, ok := cfg.S3["key_prefix"]; !ok {
		cfg.S3["key_prefix"] = "wopi/"
	}
}

// applyMetadataDefaults sets metadata store defaults.
func applyMetadataDefaults(cfg *MetadataConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}

	// Initialize maps if nil
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
	if cfg.Postgres == nil {
		cfg.Postgres = make(map[string]any)
	}

	if _, ok := cfg.Badger["db_path"]; !ok {
		cfg.Badger["db_path"] = "/tmp/dittowopi-metadata"
	}
	if _, ok := cfg.Postgres["auto_migrate"]; !ok {
		cfg.Postgres["auto_migrate"] = true
	}
}

// applyDiscoveryDefaults sets discovery cache defaults.
func applyDiscoveryDefaults(cfg *DiscoveryConfig) {
	if cfg.Locale == "" {
		cfg.Locale = "en-us"
	}
	if cfg.ManifestTTL == 0 {
		cfg.ManifestTTL = time.Hour
	}
	if cfg.ProofKeyTTL == 0 {
		cfg.ProofKeyTTL = 20 * time.Minute
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
}

// applyAuthDefaults sets token defaults.
func applyAuthDefaults(cfg *AuthConfig) {
	if cfg.Issuer == "" {
		cfg.Issuer = "dittowopi"
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = 10 * time.Hour
	}
}

// applyHostDefaults sets WOPI contract defaults.
func applyHostDefaults(cfg *HostConfig) {
	if cfg.LockDuration == 0 {
		cfg.LockDuration = defaultLockDuration
	}
	if cfg.ConflictRetries == 0 {
		cfg.ConflictRetries = 1
	}
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = defaultMaxBodySize
	}
	if cfg.DefaultUserID == "" {
		cfg.DefaultUserID = "anonymous"
	}
	if cfg.DefaultUserName == "" {
		cfg.DefaultUserName = "Anonymous"
	}
}

// applyAdaptersDefaults sets adapter defaults.
func applyAdaptersDefaults(cfg *AdaptersConfig) {
	// Enable the WOPI adapter when it was not configured at all (Port is 0),
	// so a config loaded without a file still has a listener.
	// Users can explicitly set enabled: false in their config to disable it.
	if !cfg.WOPI.Enabled && cfg.WOPI.Port == 0 {
		cfg.WOPI.Enabled = true
	}

	applyWOPIDefaults(&cfg.WOPI)
}

// applyWOPIDefaults sets WOPI adapter defaults.
func applyWOPIDefaults(cfg *wopi.WOPIConfig) {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}

	// MaxConnections defaults to 0 (unlimited)

	if cfg.ReadHeaderTimeout == 0 {
		cfg.ReadHeaderTimeout = 10 * time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 5 * time.Minute
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 2 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	// Rate limiting stays off (RequestsPerSecond 0) unless configured
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyGCDefaults(cfg *GCConfig) {
	if cfg.Interval == 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 1000
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// The returned config carries a freshly generated auth secret, so every
// call yields a different (but valid) configuration.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Auth: AuthConfig{
			Secret: GenerateSecret(),
		},
		Adapters: AdaptersConfig{
			WOPI: wopi.WOPIConfig{
				Enabled: true,
			},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}

// GenerateSecret returns 32 random bytes, base64url encoded.
func GenerateSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic("config: failed to read random bytes: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
