package wopi

import (
	"fmt"
	"time"
)

// WOPIConfig holds configuration parameters for the WOPI HTTP server.
//
// Default values (applied by New if zero):
//   - Port: 8080
//   - ReadHeaderTimeout: 10s
//   - ReadTimeout: 5m
//   - WriteTimeout: 5m
//   - IdleTimeout: 2m
//   - ShutdownTimeout: 30s
//
// ReadTimeout and WriteTimeout are generous because PutFile and GetFile
// move whole documents in one request.
type WOPIConfig struct {
	// Enabled controls whether the WOPI adapter is active.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the TCP port to listen on. 0 defaults to 8080.
	Port int `mapstructure:"port" yaml:"port" validate:"min=0,max=65535"`

	// BindAddress restricts the listener to one interface. Empty means all.
	BindAddress string `mapstructure:"bind_address" yaml:"bind_address"`

	// TLSCertFile and TLSKeyFile enable HTTPS when both are set.
	TLSCertFile string `mapstructure:"tls_cert_file" yaml:"tls_cert_file"`
	TLSKeyFile  string `mapstructure:"tls_key_file" yaml:"tls_key_file"`

	// MaxConnections limits concurrent client connections. 0 means unlimited.
	MaxConnections int `mapstructure:"max_connections" yaml:"max_connections" validate:"min=0"`

	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout" validate:"min=0"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" validate:"min=0"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" validate:"min=0"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout" validate:"min=0"`

	// ShutdownTimeout bounds the wait for in-flight requests on shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"min=0"`

	// RateLimit throttles each client address independently.
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// RateLimitConfig configures per-client throttling.
type RateLimitConfig struct {
	// RequestsPerSecond per client address. 0 disables throttling.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second" validate:"min=0"`

	// Burst defaults to twice the rate.
	Burst int `mapstructure:"burst" yaml:"burst" validate:"min=0"`

	// MaxClients bounds the number of tracked client addresses.
	MaxClients int `mapstructure:"max_clients" yaml:"max_clients" validate:"min=0"`
}

// applyDefaults fills in zero values with sensible defaults.
func (c *WOPIConfig) applyDefaults() {
	if c.Port <= 0 {
		c.Port = 8080
	}
	if c.ReadHeaderTimeout == 0 {
		c.ReadHeaderTimeout = 10 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 5 * time.Minute
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 5 * time.Minute
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 2 * time.Minute
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}

// validate checks that the configuration is usable.
func (c *WOPIConfig) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("invalid MaxConnections %d: must be >= 0", c.MaxConnections)
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("tls_cert_file and tls_key_file must be set together")
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("invalid rate limit %v: must be >= 0", c.RateLimit.RequestsPerSecond)
	}
	return nil
}

// TLSEnabled reports whether the adapter serves HTTPS.
func (c *WOPIConfig) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}
