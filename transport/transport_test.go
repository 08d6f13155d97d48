package transport_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"wcf-rpc-sdk/address"
	"wcf-rpc-sdk/message"
	"wcf-rpc-sdk/transport"
	"wcf-rpc-sdk/wcftest"
)

func startServer(t *testing.T) *wcftest.Server {
	t.Helper()
	srv := wcftest.NewServer(zaptest.NewLogger(t))
	_, err := srv.Start()
	require.NoError(t, err)
	t.Cleanup(func() { srv.Shutdown(2 * time.Second) })
	return srv
}

func dialRPC(t *testing.T, srv *wcftest.Server, opts ...transport.Option) *transport.RPCChannel {
	t.Helper()
	opts = append([]transport.Option{transport.WithLogger(zaptest.NewLogger(t))}, opts...)
	ch, err := transport.Dial(context.Background(), srv.Endpoint(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { ch.Close() })
	return ch
}

func dialPush(t *testing.T, srv *wcftest.Server, opts ...transport.Option) *transport.NotificationChannel {
	t.Helper()
	opts = append([]transport.Option{transport.WithLogger(zaptest.NewLogger(t))}, opts...)
	ch, err := transport.DialNotifications(context.Background(), srv.Endpoint().Notification(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { ch.Close() })
	return ch
}

func TestCallRoundTrip(t *testing.T) {
	srv := startServer(t)
	srv.Handle(message.FuncSendText, func(req *message.Request) *message.Response {
		txt := req.Msg.(*message.TextMsg)
		if txt.Receiver != "wxid_a" || txt.Msg != "hi" {
			return &message.Response{Msg: message.Status(-1)}
		}
		return &message.Response{Msg: message.Status(0)}
	})

	ch := dialRPC(t, srv)
	rsp, err := ch.Call(context.Background(), &message.Request{
		Func: message.FuncSendText,
		Msg:  &message.TextMsg{Msg: "hi", Receiver: "wxid_a"},
	})
	require.NoError(t, err)

	status, err := rsp.Status()
	require.NoError(t, err)
	assert.Equal(t, int32(0), status)
	assert.Equal(t, message.FuncSendText, rsp.Func)
	assert.Equal(t, 1, srv.Count(message.FuncSendText))
	assert.Equal(t, srv.Endpoint(), ch.Endpoint())
}

func TestCallAfterClose(t *testing.T) {
	srv := startServer(t)
	ch := dialRPC(t, srv)

	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close())

	_, err := ch.Call(context.Background(), &message.Request{Func: message.FuncIsLogin, Msg: message.Empty{}})
	assert.ErrorIs(t, err, transport.ErrClosed)
	assert.Zero(t, srv.Count(message.FuncIsLogin))
}

func TestCallTimeout(t *testing.T) {
	srv := startServer(t)
	srv.Handle(message.FuncIsLogin, func(*message.Request) *message.Response { return nil })

	ch := dialRPC(t, srv, transport.WithCallTimeout(100*time.Millisecond))

	start := time.Now()
	_, err := ch.Call(context.Background(), &message.Request{Func: message.FuncIsLogin, Msg: message.Empty{}})
	assert.ErrorIs(t, err, transport.ErrTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestCallContextCanceled(t *testing.T) {
	srv := startServer(t)
	srv.Handle(message.FuncIsLogin, func(*message.Request) *message.Response { return nil })

	ch := dialRPC(t, srv)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := ch.Call(ctx, &message.Request{Func: message.FuncIsLogin, Msg: message.Empty{}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStaleResponseSkipped(t *testing.T) {
	srv := startServer(t)
	srv.Handle(message.FuncIsLogin, func(*message.Request) *message.Response {
		time.Sleep(300 * time.Millisecond)
		return &message.Response{Msg: message.Status(1)}
	})
	srv.Handle(message.FuncGetSelfWxid, func(*message.Request) *message.Response {
		return &message.Response{Msg: message.Str("wxid_self")}
	})

	ch := dialRPC(t, srv, transport.WithCallTimeout(2*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := ch.Call(ctx, &message.Request{Func: message.FuncIsLogin, Msg: message.Empty{}})
	require.ErrorIs(t, err, transport.ErrTimeout)

	rsp, err := ch.Call(context.Background(), &message.Request{Func: message.FuncGetSelfWxid, Msg: message.Empty{}})
	require.NoError(t, err)
	wxid, err := rsp.Str()
	require.NoError(t, err)
	assert.Equal(t, "wxid_self", wxid)
}

func TestConcurrentCallsSerialized(t *testing.T) {
	srv := startServer(t)
	srv.Handle(message.FuncExecDBQuery, func(req *message.Request) *message.Response {
		q := req.Msg.(*message.DbQuery)
		return &message.Response{Msg: &message.DbRows{Rows: []*message.DbRow{{
			Fields: []*message.DbField{{Column: "sql", Content: []byte(q.SQL)}},
		}}}}
	})

	ch := dialRPC(t, srv)

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sql := fmt.Sprintf("SELECT %d", i)
			rsp, err := ch.Call(context.Background(), &message.Request{
				Func: message.FuncExecDBQuery,
				Msg:  &message.DbQuery{DB: "MicroMsg.db", SQL: sql},
			})
			if err != nil {
				errs <- err
				return
			}
			rows, err := rsp.DbRows()
			if err != nil {
				errs <- err
				return
			}
			if got := string(rows[0].Fields[0].Content); got != sql {
				errs <- fmt.Errorf("caller %d got %q", i, got)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	assert.Equal(t, n, srv.Count(message.FuncExecDBQuery))
}

func TestDialRefused(t *testing.T) {
	srv := startServer(t)
	ep := srv.Endpoint()
	require.NoError(t, srv.Shutdown(time.Second))

	_, err := transport.Dial(context.Background(), ep, transport.WithDialTimeout(time.Second))
	assert.Error(t, err)
}

func TestListenDeliversInOrder(t *testing.T) {
	srv := startServer(t)
	for id := uint64(1); id <= 3; id++ {
		require.NoError(t, srv.Publish(&message.WxMsg{ID: id, Type: 1, Sender: "wxid_a", Content: "hi"}))
	}

	ch := dialPush(t, srv, transport.WithRecvTimeout(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan *message.WxMsg, 8)
	done := make(chan error, 1)
	go func() {
		done <- ch.Listen(ctx, nil, func(m *message.WxMsg) { got <- m })
	}()

	for want := uint64(1); want <= 3; want++ {
		select {
		case m := <-got:
			assert.Equal(t, want, m.ID)
		case <-time.After(2 * time.Second):
			t.Fatalf("message %d not delivered", want)
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Listen did not stop after cancel")
	}
}

func TestListenStopsWhenDisabled(t *testing.T) {
	srv := startServer(t)
	ch := dialPush(t, srv, transport.WithRecvTimeout(20*time.Millisecond))

	var enabled atomic.Bool
	enabled.Store(true)
	time.AfterFunc(100*time.Millisecond, func() { enabled.Store(false) })

	done := make(chan error, 1)
	go func() {
		done <- ch.Listen(context.Background(), enabled.Load, func(*message.WxMsg) {})
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Listen ignored the enabled flag")
	}
}

func TestListenSkipsNonMessageFrames(t *testing.T) {
	srv := startServer(t)
	require.NoError(t, srv.Push(&message.Response{Func: message.FuncIsLogin, Msg: message.Status(1)}))
	require.NoError(t, srv.Publish(&message.WxMsg{ID: 7}))

	ch := dialPush(t, srv, transport.WithRecvTimeout(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan *message.WxMsg, 2)
	go ch.Listen(ctx, nil, func(m *message.WxMsg) { got <- m })

	select {
	case m := <-got:
		assert.Equal(t, uint64(7), m.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}
}

func TestListenDecodeFailure(t *testing.T) {
	srv := startServer(t)
	srv.PushRaw([]byte{0xff})

	ch := dialPush(t, srv, transport.WithRecvTimeout(50*time.Millisecond))

	done := make(chan error, 1)
	go func() {
		done <- ch.Listen(context.Background(), nil, func(*message.WxMsg) {})
	}()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Listen did not fail on a malformed frame")
	}
}

func TestListenAfterClose(t *testing.T) {
	srv := startServer(t)
	ch := dialPush(t, srv)
	require.NoError(t, ch.Close())

	err := ch.Listen(context.Background(), nil, func(*message.WxMsg) {})
	assert.True(t, errors.Is(err, transport.ErrClosed))
}

func TestNotificationEndpointIsNextPort(t *testing.T) {
	srv := startServer(t)
	ep := srv.Endpoint()
	assert.Equal(t, address.Endpoint{Scheme: "tcp", Host: ep.Host, Port: ep.Port + 1}, ep.Notification())
}
