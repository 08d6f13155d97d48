// Package client is the application-facing SDK for a WCF automation service.
//
//	               ┌────────────────── Client ──────────────────┐
//	SendText ─────▶│ middleware chain ──▶ RPCChannel            │──▶ port N
//	GetMessage ◀───│ Buffer ◀── Listener ◀── NotificationChannel │◀── port N+1
//	               └────────────────────────────────────────────┘
//
// A Client owns both sockets, one background listener goroutine and a bounded
// message buffer. Everything is released by Close.
package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"wcf-rpc-sdk/address"
	"wcf-rpc-sdk/buffer"
	"wcf-rpc-sdk/listener"
	"wcf-rpc-sdk/message"
	"wcf-rpc-sdk/middleware"
	"wcf-rpc-sdk/model"
	"wcf-rpc-sdk/transport"
)

type Client struct {
	opts   *options
	logger *zap.Logger
	ep     address.Endpoint

	rpc    *transport.RPCChannel
	invoke middleware.HandlerFunc // rpc.Call wrapped in the middleware chain

	buf  *buffer.Buffer[*model.Message]
	feed *feed
	lis  *listener.Listener[*message.WxMsg]

	cache contactCache

	closeOnce sync.Once
	closed    atomic.Bool
}

// New resolves the endpoint and connects the RPC socket. Messages are not
// received until Run.
//
// The endpoint is, in order of precedence: WithAddress, discovery through
// WithRegistry, the TCP_ADDR environment variable, address.DefaultAddress.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	buf, err := buffer.New[*model.Message](o.bufferSize)
	if err != nil {
		return nil, fmt.Errorf("client: buffer size %d: %w", o.bufferSize, err)
	}

	ep, err := resolve(ctx, o)
	if err != nil {
		return nil, err
	}

	rpc, err := transport.Dial(ctx, ep, o.transportOptions()...)
	if err != nil {
		return nil, err
	}

	c := &Client{
		opts:   o,
		logger: o.logger,
		ep:     ep,
		rpc:    rpc,
		buf:    buf,
	}
	c.invoke = c.pipeline()
	c.feed = &feed{c: c}
	c.lis = listener.New[*message.WxMsg](c.feed, c.deliver,
		listener.WithJoinTimeout(o.joinTimeout),
		listener.WithLogger(o.logger),
		listener.WithOnExit(func(error) {
			// Release consumers blocked in GetMessage; nothing will arrive.
			c.buf.Close()
		}))

	c.logger.Info("client connected", zap.Stringer("endpoint", ep))
	return c, nil
}

func resolve(ctx context.Context, o *options) (address.Endpoint, error) {
	if strings.TrimSpace(o.address) != "" {
		return address.Normalize(o.address)
	}
	if o.registry != nil {
		instances, err := o.registry.Discover(ctx, o.service)
		if err != nil {
			return address.Endpoint{}, fmt.Errorf("client: discover %s: %w", o.service, err)
		}
		inst, err := o.balancer.Pick(instances)
		if err != nil {
			return address.Endpoint{}, fmt.Errorf("client: pick %s instance: %w", o.service, err)
		}
		o.logger.Debug("endpoint discovered",
			zap.String("service", o.service),
			zap.String("balancer", o.balancer.Name()),
			zap.String("address", inst.Address),
			zap.String("account", inst.Account))
		return inst.Endpoint()
	}
	return address.FromEnv()
}

func (c *Client) pipeline() middleware.HandlerFunc {
	mws := []middleware.Middleware{middleware.LoggingMiddleware(c.logger)}
	if c.opts.sendRate > 0 {
		mws = append(mws, middleware.RateLimitMiddleware(c.opts.sendRate, c.opts.sendBurst))
	}
	mws = append(mws, c.opts.middlewares...)
	return middleware.Chain(mws...)(c.rpc.Call)
}

// Endpoint returns the RPC endpoint the client is connected to.
func (c *Client) Endpoint() address.Endpoint {
	return c.ep
}

// Run enables message reception and starts the background listener. Calling
// it again while the listener runs does nothing.
//
// If the service refuses to enable reception the error is an *OperationError
// and no listener is started. A listener that died on its own closes the
// message buffer and cannot be restarted: Run then fails with
// buffer.ErrClosed and the client should be closed.
func (c *Client) Run(ctx context.Context) error {
	if c.closed.Load() {
		return transport.ErrClosed
	}
	if c.buf.Closed() {
		return buffer.ErrClosed
	}
	if err := c.lis.Start(ctx); err != nil {
		c.logger.Error("failed to start receiving messages", zap.Error(err))
		return err
	}
	return nil
}

// deliver runs on the listener goroutine for every pushed message.
func (c *Client) deliver(raw *message.WxMsg) {
	msg := model.DecodeMessage(raw, c)

	err := c.put(msg)
	switch {
	case err == nil:
	case errors.Is(err, buffer.ErrFull):
		c.logger.Warn("message buffer full, dropping message",
			zap.Uint64("id", msg.ID),
			zap.Uint32("type", uint32(msg.Type)),
			zap.String("sender", msg.Sender))
	default:
		c.logger.Debug("message not buffered", zap.Uint64("id", msg.ID), zap.Error(err))
	}
}

func (c *Client) put(msg *model.Message) error {
	if c.opts.deliveryTimeout <= 0 {
		return c.buf.TryPut(msg)
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.deliveryTimeout)
	defer cancel()
	return c.buf.Put(ctx, msg)
}

// GetMessage returns the oldest received message, waiting until ctx is done.
// It fails with buffer.ErrTimeout on ctx expiry and buffer.ErrClosed once the
// client is closed or the listener has died.
func (c *Client) GetMessage(ctx context.Context) (*model.Message, error) {
	return c.buf.Get(ctx)
}

// GetMessageNoWait returns the oldest received message or buffer.ErrEmpty.
func (c *Client) GetMessageNoWait() (*model.Message, error) {
	return c.buf.TryGet()
}

// Close stops the listener, disables reception, closes both sockets and the
// buffer. Failures along the way are logged, not returned. Calling Close more
// than once is safe.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)

		ctx, cancel := context.WithTimeout(context.Background(), 2*c.opts.callTimeout+c.opts.joinTimeout)
		defer cancel()

		err := c.lis.Stop(ctx)
		err = multierr.Append(err, c.rpc.Close())
		c.buf.Close()

		if err != nil {
			c.logger.Warn("errors while closing client", zap.Error(err))
		}
		c.logger.Info("client closed", zap.Stringer("endpoint", c.ep))
	})
}

func (c *Client) call(ctx context.Context, fn message.Function, msg message.RequestMsg) (*message.Response, error) {
	return c.invoke(ctx, &message.Request{Func: fn, Msg: msg})
}

func (c *Client) status(ctx context.Context, fn message.Function, msg message.RequestMsg) (int32, error) {
	rsp, err := c.call(ctx, fn, msg)
	if err != nil {
		return 0, err
	}
	return rsp.Status()
}

// expect makes the call and turns any status other than want into an
// *OperationError.
func (c *Client) expect(ctx context.Context, fn message.Function, msg message.RequestMsg, want int32) error {
	st, err := c.status(ctx, fn, msg)
	if err != nil {
		return err
	}
	if st != want {
		return &OperationError{Op: fn, Status: st}
	}
	return nil
}
