package api

import (
	"fmt"
	"os"
	"time"
)

// Config holds server configuration.
type Config struct {
	Host              string
	Port              int
	RateLimitRequests int   // Requests per minute per client IP (0 = disabled)
	RateLimitBurst    int   // Burst size
	MaxBodyBytes      int64 // Largest accepted request body
	CacheEntries      int   // Parse results kept in memory (0 = no cache)
	CacheBytes        int64 // Upper bound on cached output bytes
	CacheTTL          time.Duration
	MaxJobs           int      // Finished jobs kept before the oldest is forgotten
	AllowedOrigins    []string // CORS and websocket origins (empty = allow all)
	MaxMessageSize    int64    // Largest websocket message
	MaxMessageRate    int      // Websocket messages per second per client
	MaxDiagnostics    int      // Diagnostics streamed per websocket parse
	ShutdownTimeout   time.Duration
	Auth              AuthConfig // Authentication configuration
	TLS               TLSConfig  // TLS configuration
}

// TLSConfig holds TLS/HTTPS configuration.
type TLSConfig struct {
	Enabled  bool   // Enable HTTPS
	CertFile string // Path to TLS certificate file
	KeyFile  string // Path to TLS private key file
}

// DefaultConfig returns the settings used by "versecorpus serve" when no
// flag overrides them.
func DefaultConfig() Config {
	return Config{
		Port:              8080,
		RateLimitRequests: 120,
		RateLimitBurst:    20,
		MaxBodyBytes:      32 << 20,
		CacheEntries:      64,
		CacheBytes:        256 << 20,
		CacheTTL:          time.Hour,
		MaxJobs:           100,
		MaxMessageSize:    8 << 20,
		MaxMessageRate:    5,
		MaxDiagnostics:    1000,
		ShutdownTimeout:   10 * time.Second,
	}
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks the configuration before the server starts.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive")
	}
	if err := ValidateAuthConfig(c.Auth); err != nil {
		return fmt.Errorf("invalid auth config: %w", err)
	}
	if c.TLS.Enabled {
		if c.TLS.CertFile == "" || c.TLS.KeyFile == "" {
			return fmt.Errorf("TLS enabled but cert or key file not specified")
		}
		if _, err := os.Stat(c.TLS.CertFile); err != nil {
			return fmt.Errorf("TLS cert file not found: %w", err)
		}
		if _, err := os.Stat(c.TLS.KeyFile); err != nil {
			return fmt.Errorf("TLS key file not found: %w", err)
		}
	}
	return nil
}
