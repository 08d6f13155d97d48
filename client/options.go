package client

import (
	"time"

	"go.uber.org/zap"

	"wcf-rpc-sdk/listener"
	"wcf-rpc-sdk/loadbalance"
	"wcf-rpc-sdk/middleware"
	"wcf-rpc-sdk/registry"
	"wcf-rpc-sdk/transport"
)

const (
	DefaultBufferSize = 10
	DefaultService    = "wcf"
)

type options struct {
	address    string
	bufferSize int
	logger     *zap.Logger

	dialTimeout     time.Duration
	callTimeout     time.Duration
	recvTimeout     time.Duration
	joinTimeout     time.Duration
	deliveryTimeout time.Duration // 0: drop at once when the buffer is full

	middlewares []middleware.Middleware
	sendRate    float64 // 0: unlimited
	sendBurst   int

	registry registry.Registry
	service  string
	balancer loadbalance.Balancer
}

func defaultOptions() *options {
	return &options{
		bufferSize:  DefaultBufferSize,
		logger:      zap.NewNop(),
		dialTimeout: transport.DefaultDialTimeout,
		callTimeout: transport.DefaultCallTimeout,
		recvTimeout: transport.DefaultRecvTimeout,
		joinTimeout: listener.DefaultJoinTimeout,
		service:     DefaultService,
		balancer:    loadbalance.First{},
	}
}

func (o *options) transportOptions() []transport.Option {
	return []transport.Option{
		transport.WithDialTimeout(o.dialTimeout),
		transport.WithCallTimeout(o.callTimeout),
		transport.WithRecvTimeout(o.recvTimeout),
		transport.WithLogger(o.logger),
	}
}

// Option configures a Client.
type Option func(*options)

// WithAddress sets the RPC endpoint, e.g. "tcp://127.0.0.1:10086". It takes
// precedence over the registry and the TCP_ADDR environment variable.
func WithAddress(addr string) Option {
	return func(o *options) { o.address = addr }
}

// WithBufferSize sets how many received messages are held for GetMessage.
// Default 10.
func WithBufferSize(n int) Option {
	return func(o *options) { o.bufferSize = n }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithDialTimeout bounds connecting each socket. Default 5s.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) { o.dialTimeout = d }
}

// WithCallTimeout bounds each half of an RPC round trip. Default 5s.
func WithCallTimeout(d time.Duration) Option {
	return func(o *options) { o.callTimeout = d }
}

// WithRecvTimeout sets how often the listener re-checks for a stop request
// while no message arrives. Default 5s.
func WithRecvTimeout(d time.Duration) Option {
	return func(o *options) { o.recvTimeout = d }
}

// WithJoinTimeout bounds how long Close waits for the listener. Default 2s.
func WithJoinTimeout(d time.Duration) Option {
	return func(o *options) { o.joinTimeout = d }
}

// WithDeliveryTimeout sets how long the listener waits for buffer space before
// dropping a message. Default 0: a full buffer drops at once.
func WithDeliveryTimeout(d time.Duration) Option {
	return func(o *options) { o.deliveryTimeout = d }
}

// WithMiddleware appends middlewares to every RPC call, innermost last.
func WithMiddleware(mw ...middleware.Middleware) Option {
	return func(o *options) { o.middlewares = append(o.middlewares, mw...) }
}

// WithSendRateLimit caps outgoing chat sends at r per second with the given
// burst. Sends over the limit fail with middleware.ErrRateLimited.
func WithSendRateLimit(r float64, burst int) Option {
	return func(o *options) {
		o.sendRate = r
		o.sendBurst = burst
	}
}

// WithRegistry discovers the endpoint from reg under service when no address
// is given. An empty service means DefaultService.
func WithRegistry(reg registry.Registry, service string) Option {
	return func(o *options) {
		o.registry = reg
		if service != "" {
			o.service = service
		}
	}
}

// WithBalancer chooses among discovered instances. Default loadbalance.First.
func WithBalancer(b loadbalance.Balancer) Option {
	return func(o *options) {
		if b != nil {
			o.balancer = b
		}
	}
}
