// Package transport implements the two sockets used to talk to the WCF
// automation service.
//
//	RPCChannel:           Call ──request──▶ port N ──response──▶ Call returns
//	NotificationChannel:  Listen ◀──push frames── port N+1
//
// Pair1 has no request ids, so the RPC channel allows one call in flight at a
// time: a mutex queues concurrent callers instead of letting their frames
// interleave on the wire.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"wcf-rpc-sdk/address"
	"wcf-rpc-sdk/codec"
	"wcf-rpc-sdk/message"
)

// RPCChannel is the request/response socket. State is Open → Closed, one way.
type RPCChannel struct {
	ep     address.Endpoint
	cfg    *config
	fc     *frameConn
	closed atomic.Bool
	once   sync.Once

	mu     sync.Mutex // Serializes calls: at most one in flight
	broken error      // Set when a failure left a partial frame on the wire; guarded by mu
}

// Dial connects to the RPC endpoint.
func Dial(ctx context.Context, ep address.Endpoint, opts ...Option) (*RPCChannel, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	fc, err := dial(ctx, ep, cfg)
	if err != nil {
		return nil, err
	}
	cfg.logger.Debug("rpc channel connected", zap.Stringer("endpoint", ep))
	return &RPCChannel{ep: ep, cfg: cfg, fc: fc}, nil
}

// Endpoint returns the endpoint the channel is connected to.
func (c *RPCChannel) Endpoint() address.Endpoint {
	return c.ep
}

// Call sends req and waits for its response.
//
// Each half of the round trip is bounded by the call timeout and by ctx's
// deadline, whichever comes first; exceeding it returns an error wrapping
// ErrTimeout. After Close, Call fails with ErrClosed without touching the wire.
func (c *RPCChannel) Call(ctx context.Context, req *message.Request) (*message.Response, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	body, err := codec.MarshalRequest(req)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return nil, ErrClosed
	}
	if c.broken != nil {
		return nil, fmt.Errorf("%w: broken stream: %v", ErrClosed, c.broken)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stop := c.fc.watch(ctx)
	defer stop()

	if err := c.fc.writeFrame(body, c.deadline(ctx)); err != nil {
		c.broken = err
		return nil, c.failure(ctx, req.Func, "send", err)
	}

	recvDeadline := c.deadline(ctx)
	for {
		if err := c.fc.waitFrame(recvDeadline); err != nil {
			return nil, c.failure(ctx, req.Func, "receive", err)
		}
		data, err := c.fc.readFrame(time.Now().Add(c.cfg.frameTimeout))
		if err != nil {
			c.broken = err
			return nil, c.failure(ctx, req.Func, "receive", err)
		}

		rsp, err := codec.UnmarshalResponse(data)
		if err != nil {
			return nil, fmt.Errorf("transport: decode %s response: %w", req.Func, err)
		}
		// A response for another function is the late reply to an earlier
		// call that timed out.
		if rsp.Func != message.FuncReserved && rsp.Func != req.Func {
			c.cfg.logger.Warn("discarding stale response",
				zap.Stringer("want", req.Func),
				zap.Stringer("got", rsp.Func))
			continue
		}
		return rsp, nil
	}
}

// Close releases the connection. It is safe to call more than once and
// interrupts a call in progress.
func (c *RPCChannel) Close() error {
	var err error
	c.once.Do(func() {
		c.closed.Store(true)
		err = c.fc.Close()
		c.cfg.logger.Debug("rpc channel closed", zap.Stringer("endpoint", c.ep))
	})
	return err
}

func (c *RPCChannel) deadline(ctx context.Context) time.Time {
	d := time.Now().Add(c.cfg.callTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(d) {
		return dl
	}
	return d
}

// failure maps an I/O error to the channel's error kinds.
func (c *RPCChannel) failure(ctx context.Context, fn message.Function, half string, err error) error {
	switch {
	case c.closed.Load():
		return ErrClosed
	case errors.Is(ctx.Err(), context.Canceled):
		return ctx.Err()
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %s %s: %w", ErrTimeout, fn, half, ctx.Err())
	case isTimeout(err):
		return fmt.Errorf("%w: %s %s after %s", ErrTimeout, fn, half, c.cfg.callTimeout)
	}
	return fmt.Errorf("transport: %s %s: %w", fn, half, err)
}
