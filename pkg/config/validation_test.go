package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidate_ValidConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Errorf("Expected valid config, got error: %v", err)
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "TRACE" },
			wantErr: "Level",
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "Format",
		},
		{
			name:    "invalid content type",
			mutate:  func(c *Config) { c.Content.Type = "ftp" },
			wantErr: "Content.Type",
		},
		{
			name:    "invalid metadata type",
			mutate:  func(c *Config) { c.Metadata.Type = "sqlite" },
			wantErr: "Metadata.Type",
		},
		{
			name:    "zero shutdown timeout",
			mutate:  func(c *Config) { c.Server.ShutdownTimeout = 0 },
			wantErr: "ShutdownTimeout",
		},
		{
			name:    "missing secret",
			mutate:  func(c *Config) { c.Auth.Secret = "" },
			wantErr: "dittowopi init",
		},
		{
			name:    "short secret",
			mutate:  func(c *Config) { c.Auth.Secret = "short" },
			wantErr: "Auth.Secret",
		},
		{
			name:    "invalid WOPI port",
			mutate:  func(c *Config) { c.Adapters.WOPI.Port = 70000 },
			wantErr: "Port",
		},
		{
			name:    "negative max connections",
			mutate:  func(c *Config) { c.Adapters.WOPI.MaxConnections = -1 },
			wantErr: "MaxConnections",
		},
		{
			name:    "negative rate",
			mutate:  func(c *Config) { c.Adapters.WOPI.RateLimit.RequestsPerSecond = -1 },
			wantErr: "RequestsPerSecond",
		},
		{
			name:    "no adapters enabled",
			mutate:  func(c *Config) { c.Adapters.WOPI.Enabled = false },
			wantErr: "at least one adapter",
		},
		{
			name:    "half configured TLS",
			mutate:  func(c *Config) { c.Adapters.WOPI.TLSCertFile = "/etc/ssl/cert.pem" },
			wantErr: "tls_key_file",
		},
		{
			name:    "proof without discovery",
			mutate:  func(c *Config) { c.Proof.Enabled = true },
			wantErr: "discovery.url",
		},
		{
			name:    "warm without discovery",
			mutate:  func(c *Config) { c.Discovery.WarmOnStart = true },
			wantErr: "warm_on_start",
		},
		{
			name:    "invalid discovery URL",
			mutate:  func(c *Config) { c.Discovery.URL = "not a url" },
			wantErr: "Discovery.URL",
		},
		{
			name:    "invalid net zone",
			mutate:  func(c *Config) { c.Discovery.NetZone = "intranet" },
			wantErr: "NetZone",
		},
		{
			name:    "invalid scheme",
			mutate:  func(c *Config) { c.Host.Scheme = "ftp" },
			wantErr: "Scheme",
		},
		{
			name:    "too many retries",
			mutate:  func(c *Config) { c.Host.ConflictRetries = 50 },
			wantErr: "ConflictRetries",
		},
		{
			name:    "negative lock duration",
			mutate:  func(c *Config) { c.Host.LockDuration = -time.Minute },
			wantErr: "LockDuration",
		},
		{
			name: "metrics port clash",
			mutate: func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.Port = c.Adapters.WOPI.Port
			},
			wantErr: "already used",
		},
		{
			name:    "s3 without bucket",
			mutate:  func(c *Config) { c.Content.Type = "s3" },
			wantErr: "bucket",
		},
		{
			name:    "oversized gc batch",
			mutate:  func(c *Config) { c.GC.BatchSize = 5000 },
			wantErr: "BatchSize",
		},
		{
			name:    "postgres without dsn",
			mutate:  func(c *Config) { c.Metadata.Type = "postgres" },
			wantErr: "dsn",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error mentioning %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_SecretNotEchoed(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Auth.Secret = "leaky"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for short secret")
	}
	if strings.Contains(err.Error(), "leaky") {
		t.Errorf("Secret leaked into error: %v", err)
	}
}

func TestValidate_LogLevelNormalization(t *testing.T) {
	for _, level := range []string{"debug", "Info", "WARN", "error"} {
		cfg := GetDefaultConfig()
		cfg.Logging.Level = level
		ApplyDefaults(cfg)

		if err := Validate(cfg); err != nil {
			t.Errorf("Level %q should be valid after normalization, got: %v", level, err)
		}
		if cfg.Logging.Level != strings.ToUpper(level) {
			t.Errorf("Expected %q, got %q", strings.ToUpper(level), cfg.Logging.Level)
		}
	}
}

func TestValidate_ProofWithDiscovery(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Discovery.URL = "https://office.example.com/hosting/discovery"
	cfg.Discovery.NetZone = "external-https"
	cfg.Proof.Enabled = true
	cfg.Auth.RequireToken = true

	if err := Validate(cfg); err != nil {
		t.Errorf("Expected valid config, got: %v", err)
	}
}
