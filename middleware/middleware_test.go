package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"wcf-rpc-sdk/message"
	"wcf-rpc-sdk/transport"
)

func okHandler(ctx context.Context, req *message.Request) (*message.Response, error) {
	return &message.Response{Func: req.Func, Msg: message.Status(0)}, nil
}

func slowHandler(ctx context.Context, req *message.Request) (*message.Response, error) {
	select {
	case <-time.After(200 * time.Millisecond):
		return okHandler(ctx, req)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

var sendText = &message.Request{Func: message.FuncSendText, Msg: &message.TextMsg{Msg: "hi", Receiver: "wxid_a"}}
var isLogin = &message.Request{Func: message.FuncIsLogin, Msg: message.Empty{}}

func TestLogging(t *testing.T) {
	handler := LoggingMiddleware(zaptest.NewLogger(t))(okHandler)

	rsp, err := handler(context.Background(), sendText)
	require.NoError(t, err)
	assert.Equal(t, message.FuncSendText, rsp.Func)

	failing := LoggingMiddleware(nil)(func(context.Context, *message.Request) (*message.Response, error) {
		return nil, transport.ErrClosed
	})
	_, err = failing(context.Background(), sendText)
	assert.ErrorIs(t, err, transport.ErrClosed)
}

func TestTimeoutPass(t *testing.T) {
	handler := TimeoutMiddleware(500 * time.Millisecond)(okHandler)
	_, err := handler(context.Background(), isLogin)
	assert.NoError(t, err)
}

func TestTimeoutExceeded(t *testing.T) {
	handler := TimeoutMiddleware(50 * time.Millisecond)(slowHandler)

	start := time.Now()
	_, err := handler(context.Background(), isLogin)
	assert.ErrorIs(t, err, transport.ErrTimeout)
	assert.Less(t, time.Since(start), 150*time.Millisecond)
}

func TestRateLimitSendsOnly(t *testing.T) {
	// rate=1 per second, burst=2: two sends pass, the third is rejected.
	handler := RateLimitMiddleware(1, 2)(okHandler)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := handler(ctx, sendText)
		require.NoError(t, err, "send %d", i)
	}
	_, err := handler(ctx, sendText)
	assert.ErrorIs(t, err, ErrRateLimited)

	// Queries never draw tokens.
	for i := 0; i < 5; i++ {
		_, err := handler(ctx, isLogin)
		assert.NoError(t, err)
	}
}

func TestRetryOnTimeout(t *testing.T) {
	var calls atomic.Int32
	flaky := func(ctx context.Context, req *message.Request) (*message.Response, error) {
		if calls.Add(1) < 3 {
			return nil, fmt.Errorf("%w: receive", transport.ErrTimeout)
		}
		return okHandler(ctx, req)
	}

	handler := RetryMiddleware(3, time.Millisecond, zaptest.NewLogger(t))(flaky)
	_, err := handler(context.Background(), isLogin)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetryGivesUp(t *testing.T) {
	var calls atomic.Int32
	handler := RetryMiddleware(2, time.Millisecond, nil)(func(context.Context, *message.Request) (*message.Response, error) {
		calls.Add(1)
		return nil, transport.ErrTimeout
	})

	_, err := handler(context.Background(), isLogin)
	assert.ErrorIs(t, err, transport.ErrTimeout)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetrySkipsOtherErrors(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("boom")
	handler := RetryMiddleware(3, time.Millisecond, nil)(func(context.Context, *message.Request) (*message.Response, error) {
		calls.Add(1)
		return nil, boom
	})

	_, err := handler(context.Background(), isLogin)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	handler := RetryMiddleware(5, time.Hour, nil)(func(context.Context, *message.Request) (*message.Response, error) {
		cancel()
		return nil, transport.ErrTimeout
	})

	_, err := handler(ctx, isLogin)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, req *message.Request) (*message.Response, error) {
				order = append(order, name)
				return next(ctx, req)
			}
		}
	}

	handler := Chain(mark("a"), mark("b"), LoggingMiddleware(nil), TimeoutMiddleware(500*time.Millisecond))(okHandler)
	_, err := handler(context.Background(), isLogin)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, order)
}
