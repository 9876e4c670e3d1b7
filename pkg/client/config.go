package client

import (
	"log/slog"
	"time"
)

// Config holds configuration for one protocol client.
type Config struct {
	// URL is the websocket endpoint of the CARTA-compatible server,
	// e.g. "ws://localhost:3002".
	URL string

	// APIKey is sent with the registration handshake. Optional.
	APIKey string

	// HandshakeTimeout is the maximum time to wait for the
	// REGISTER_VIEWER_ACK after the socket opens.
	// Default: 10 seconds.
	HandshakeTimeout time.Duration

	// WriteTimeout is the maximum time to wait when sending a message.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// MaxMessageSize is the maximum size of an incoming message.
	// Default: 32MB (raster tiles dominate).
	MaxMessageSize int64

	// Logger is the structured logger. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults for the given
// endpoint.
func DefaultConfig(url string) *Config {
	return &Config{
		URL:              url,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		MaxMessageSize:   32 * 1024 * 1024,
		Logger:           slog.Default(),
	}
}

// withDefaults fills any zero fields with defaults.
func (c *Config) withDefaults() *Config {
	out := *c
	def := DefaultConfig(c.URL)
	if out.HandshakeTimeout == 0 {
		out.HandshakeTimeout = def.HandshakeTimeout
	}
	if out.WriteTimeout == 0 {
		out.WriteTimeout = def.WriteTimeout
	}
	if out.MaxMessageSize == 0 {
		out.MaxMessageSize = def.MaxMessageSize
	}
	if out.Logger == nil {
		out.Logger = def.Logger
	}
	return &out
}
