package transport

import (
	"time"

	"go.uber.org/zap"
)

const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultCallTimeout  = 5 * time.Second
	DefaultRecvTimeout  = 5 * time.Second
	DefaultFrameTimeout = 5 * time.Second
)

// config holds the settings shared by both channels.
type config struct {
	// Bound on TCP connect plus SP handshake.
	dialTimeout time.Duration

	// Bound on each half (send, receive) of an RPC round trip.
	callTimeout time.Duration

	// How long one receive attempt on the push channel waits for a frame
	// to start before re-checking the stop conditions.
	recvTimeout time.Duration

	// Bound on reading the rest of a frame once its first byte arrived.
	frameTimeout time.Duration

	logger *zap.Logger
}

func defaultConfig() *config {
	return &config{
		dialTimeout:  DefaultDialTimeout,
		callTimeout:  DefaultCallTimeout,
		recvTimeout:  DefaultRecvTimeout,
		frameTimeout: DefaultFrameTimeout,
		logger:       zap.NewNop(),
	}
}

// Option configures a channel.
type Option func(*config)

// WithDialTimeout sets the connect and handshake timeout. Default 5s.
func WithDialTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.dialTimeout = d
		}
	}
}

// WithCallTimeout sets the per-half RPC timeout. Default 5s.
func WithCallTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.callTimeout = d
		}
	}
}

// WithRecvTimeout sets the push channel's receive timeout, which also bounds
// how long a stop request can go unnoticed. Default 5s.
func WithRecvTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.recvTimeout = d
		}
	}
}

// WithFrameTimeout sets the timeout for reading a frame that has started. Default 5s.
func WithFrameTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.frameTimeout = d
		}
	}
}

// WithLogger sets the logger. Default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}
