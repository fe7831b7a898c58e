package apns

import "time"

// Authority addresses. Production and sandbox differ only by host.
const (
	HostProduction  = "api.push.apple.com:443"
	HostDevelopment = "api.development.push.apple.com:443"
)

const (
	DefaultPingInterval   = 300 * time.Second
	DefaultRequestTimeout = 30 * time.Second
	// DefaultMaxConcurrentStreams bounds the per-Send fan-out. APNs advertises
	// a higher stream limit than this once the session is established.
	DefaultMaxConcurrentStreams = 100
)

// Config holds the credentials required to sign APNs tokens and the
// settings of the HTTP/2 session to the authority.
type Config struct {
	KeyID    string
	TeamID   string
	BundleID string
	// P8KeyContent is the raw string content of the .p8 file
	P8KeyContent string
	// P8KeyPath is used when P8KeyContent is empty.
	P8KeyPath string

	// Production selects the authority once for the lifetime of the provider.
	Production bool
	// PingInterval is the keepalive period. Non-positive means DefaultPingInterval.
	PingInterval time.Duration
	// RequestTimeout bounds a single device request. Non-positive means DefaultRequestTimeout.
	RequestTimeout time.Duration
	// MaxConcurrentStreams bounds in-flight requests per Send call.
	MaxConcurrentStreams int
}

// Authority returns the host:port the provider connects to.
func (c Config) Authority() string {
	if c.Production {
		return HostProduction
	}
	return HostDevelopment
}

func (c Config) pingInterval() time.Duration {
	if c.PingInterval <= 0 {
		return DefaultPingInterval
	}
	return c.PingInterval
}

func (c Config) requestTimeout() time.Duration {
	if c.RequestTimeout <= 0 {
		return DefaultRequestTimeout
	}
	return c.RequestTimeout
}

func (c Config) maxConcurrentStreams() int {
	if c.MaxConcurrentStreams <= 0 {
		return DefaultMaxConcurrentStreams
	}
	return c.MaxConcurrentStreams
}
