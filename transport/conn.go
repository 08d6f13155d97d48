package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"wcf-rpc-sdk/address"
	"wcf-rpc-sdk/protocol"
)

var (
	// ErrClosed is returned by operations on a closed (or broken) channel.
	ErrClosed = errors.New("transport closed")
	// ErrTimeout is returned when a send or receive exceeds its bound.
	// The call may be retried; the channel never retries by itself.
	ErrTimeout = errors.New("transport timeout")
)

// aLongTimeAgo is a deadline in the past, used to wake blocked I/O.
var aLongTimeAgo = time.Unix(1, 0)

// frameConn is a Pair1 connection with a buffered reader.
// The reader lets the push loop wait for the start of a frame without
// consuming anything, so a wake-up never splits a frame.
type frameConn struct {
	conn net.Conn
	r    *bufio.Reader
}

func dial(ctx context.Context, ep address.Endpoint, cfg *config) (*frameConn, error) {
	d := net.Dialer{Timeout: cfg.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", ep.HostPort())
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", ep, err)
	}

	fc := &frameConn{conn: conn, r: bufio.NewReader(conn)}

	conn.SetDeadline(time.Now().Add(cfg.dialTimeout))
	rw := struct {
		io.Reader
		io.Writer
	}{fc.r, conn}
	if err := protocol.Handshake(rw, protocol.ProtoPair1); err != nil {
		conn.Close()
		return nil, fmt.Errorf("transport: handshake with %s: %w", ep, err)
	}
	conn.SetDeadline(time.Time{})

	return fc, nil
}

func (c *frameConn) writeFrame(body []byte, deadline time.Time) error {
	c.conn.SetWriteDeadline(deadline)
	return protocol.Encode(c.conn, &protocol.Header{Hops: 1}, body)
}

// waitFrame blocks until at least one byte is readable or the deadline passes.
// It consumes nothing, so a timeout leaves the stream intact.
func (c *frameConn) waitFrame(deadline time.Time) error {
	c.conn.SetReadDeadline(deadline)
	_, err := c.r.Peek(1)
	return err
}

func (c *frameConn) readFrame(deadline time.Time) ([]byte, error) {
	c.conn.SetReadDeadline(deadline)
	_, body, err := protocol.Decode(c.r)
	return body, err
}

// interrupt wakes any blocked read or write.
func (c *frameConn) interrupt() {
	c.conn.SetDeadline(aLongTimeAgo)
}

// watch interrupts the connection when ctx is done. The returned stop waits
// for an interrupt already in progress, so it cannot clobber deadlines set by
// the next operation.
func (c *frameConn) watch(ctx context.Context) (stop func()) {
	done := make(chan struct{})
	cancel := context.AfterFunc(ctx, func() {
		defer close(done)
		c.interrupt()
	})
	return func() {
		if !cancel() {
			<-done
		}
	}
}

func (c *frameConn) Close() error {
	return c.conn.Close()
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
