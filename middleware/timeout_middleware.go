package middleware

import (
	"context"
	"fmt"
	"time"

	"wcf-rpc-sdk/message"
	"wcf-rpc-sdk/transport"
)

type result struct {
	rsp *message.Response
	err error
}

// TimeoutMiddleware bounds the whole call, including time spent queued behind
// other callers. It returns as soon as the bound passes even if next has not.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) (*message.Response, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan result, 1)
			go func() {
				rsp, err := next(ctx, req)
				done <- result{rsp, err}
			}()

			select {
			case r := <-done:
				return r.rsp, r.err
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %s exceeded %s", transport.ErrTimeout, req.Func, timeout)
			}
		}
	}
}
