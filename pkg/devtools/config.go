package devtools

import (
	"log/slog"
	"time"
)

// Config holds configuration for the devtools server.
type Config struct {
	// WriteTimeout is the maximum time to wait when sending an event
	// to a client. Default: 10 seconds.
	WriteTimeout time.Duration

	// PingInterval is the time between heartbeat pings.
	// Default: 30 seconds.
	PingInterval time.Duration

	// SendBuffer is the number of events queued per client before
	// events are dropped. Default: 64.
	SendBuffer int

	// IncludeState attaches a state snapshot to every mutation event.
	// Costs one shallow copy per mutation. Default: true.
	IncludeState bool

	// Logger is used for connection errors. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns the default devtools configuration.
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
		SendBuffer:   64,
		IncludeState: true,
		Logger:       slog.Default(),
	}
}

// withDefaults fills zero values with defaults.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = def.PingInterval
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = def.SendBuffer
	}
	if c.Logger == nil {
		c.Logger = def.Logger
	}
	return c
}
