package middleware

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"wcf-rpc-sdk/message"
)

var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimitMiddleware applies a token bucket of rate r and size burst.
// Only calls that send to a chat draw tokens; queries pass through.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) (*message.Response, error) {
			if req.Func.IsSend() && !limiter.Allow() {
				return nil, fmt.Errorf("%w: %s", ErrRateLimited, req.Func)
			}
			return next(ctx, req)
		}
	}
}
