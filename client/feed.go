package client

import (
	"context"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"wcf-rpc-sdk/message"
	"wcf-rpc-sdk/transport"
)

// feed is the listener source: reception is switched on over the RPC socket
// and messages are read from the push socket.
type feed struct {
	c       *Client
	push    *transport.NotificationChannel
	enabled atomic.Bool
}

func (f *feed) Open(ctx context.Context) error {
	c := f.c
	if err := c.expect(ctx, message.FuncEnableRecvText, message.Flag(true), 1); err != nil {
		return err
	}

	push, err := transport.DialNotifications(ctx, c.ep.Notification(), c.opts.transportOptions()...)
	if err != nil {
		if _, derr := c.status(ctx, message.FuncDisableRecvText, nil); derr != nil {
			c.logger.Warn("disable reception after failed dial", zap.Error(derr))
		}
		return err
	}

	f.push = push
	f.enabled.Store(true)
	return nil
}

func (f *feed) Listen(ctx context.Context, sink func(*message.WxMsg)) error {
	return f.push.Listen(ctx, f.enabled.Load, sink)
}

// Close disables reception on the service and closes the push socket. The
// disable call is best effort: the socket is closed either way.
func (f *feed) Close(ctx context.Context) error {
	f.enabled.Store(false)
	_, err := f.c.status(ctx, message.FuncDisableRecvText, nil)
	return multierr.Append(err, f.push.Close())
}
