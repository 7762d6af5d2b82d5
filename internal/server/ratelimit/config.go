package ratelimit

import (
	"math"
	"time"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // Endpoint path pattern (supports prefix matching)
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	DefaultBurst    int
	CleanupInterval time.Duration
	IdleTTL         time.Duration // Buckets unused for this long are dropped
	EndpointConfigs []EndpointConfig
}

// DefaultConfig returns the built-in limits: one request per second with a burst of five,
// and tighter limits on the endpoints that fetch pages.
func DefaultConfig() *Config {
	return NewConfig(1, 5)
}

// NewConfig builds a Config from a default rate in requests per second and a burst.
// A non-positive rate disables rate limiting.
func NewConfig(perSecond float64, burst int) *Config {
	if perSecond <= 0 {
		return &Config{Enabled: false}
	}

	limit, window := perWindow(perSecond)
	return &Config{
		Enabled:         true,
		DefaultLimit:    limit,
		DefaultWindow:   window,
		DefaultBurst:    burst,
		CleanupInterval: 5 * time.Minute,
		IdleTTL:         time.Hour,
		EndpointConfigs: DefaultEndpointConfigs(),
	}
}

// DefaultEndpointConfigs returns the default endpoint-specific configurations.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		// Audits fetch every derived page; keep them rare
		{Path: "/audits", Method: "POST", Limit: 10, Window: time.Hour, Burst: 2},
		{Path: "/audits/stream", Method: "POST", Limit: 10, Window: time.Hour, Burst: 2},
	}
}

// perWindow expresses a rate as whole requests per window.
func perWindow(perSecond float64) (int, time.Duration) {
	if perSecond >= 1 {
		return int(math.Round(perSecond)), time.Second
	}
	return 1, time.Duration(float64(time.Second) / perSecond)
}
