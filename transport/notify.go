package transport

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"wcf-rpc-sdk/address"
	"wcf-rpc-sdk/codec"
	"wcf-rpc-sdk/message"
)

// NotificationChannel is the receive-only push socket.
type NotificationChannel struct {
	ep     address.Endpoint
	cfg    *config
	fc     *frameConn
	closed atomic.Bool
	once   sync.Once
}

// DialNotifications connects to the push endpoint. Pass the RPC endpoint's
// Notification().
func DialNotifications(ctx context.Context, ep address.Endpoint, opts ...Option) (*NotificationChannel, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	fc, err := dial(ctx, ep, cfg)
	if err != nil {
		return nil, err
	}
	cfg.logger.Debug("notification channel connected", zap.Stringer("endpoint", ep))
	return &NotificationChannel{ep: ep, cfg: cfg, fc: fc}, nil
}

// Listen receives push frames and hands each chat message to sink, in wire
// order, until ctx is done or enabled reports false. sink runs on the
// listening goroutine and must return quickly.
//
// A receive timeout only re-checks the stop conditions. Listen returns nil on
// a cooperative stop and the error on any other failure.
func (n *NotificationChannel) Listen(ctx context.Context, enabled func() bool, sink func(*message.WxMsg)) error {
	stop := n.fc.watch(ctx)
	defer stop()

	for ctx.Err() == nil && (enabled == nil || enabled()) {
		if n.closed.Load() {
			return ErrClosed
		}

		if err := n.fc.waitFrame(time.Now().Add(n.cfg.recvTimeout)); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if isTimeout(err) {
				continue
			}
			return n.failure(err)
		}

		data, err := n.fc.readFrame(time.Now().Add(n.cfg.frameTimeout))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return n.failure(err)
		}

		rsp, err := codec.UnmarshalResponse(data)
		if err != nil {
			return fmt.Errorf("transport: decode notification: %w", err)
		}
		msg, err := rsp.WxMsg()
		if err != nil {
			n.cfg.logger.Warn("skipping push frame without message", zap.Stringer("func", rsp.Func))
			continue
		}
		sink(msg)
	}
	return nil
}

// Close releases the connection. It is safe to call more than once.
func (n *NotificationChannel) Close() error {
	var err error
	n.once.Do(func() {
		n.closed.Store(true)
		err = n.fc.Close()
		n.cfg.logger.Debug("notification channel closed", zap.Stringer("endpoint", n.ep))
	})
	return err
}

func (n *NotificationChannel) failure(err error) error {
	if n.closed.Load() {
		return ErrClosed
	}
	return fmt.Errorf("transport: receive notification: %w", err)
}
