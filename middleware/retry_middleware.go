package middleware

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"wcf-rpc-sdk/message"
	"wcf-rpc-sdk/transport"
)

// RetryMiddleware retries calls that failed with transport.ErrTimeout, up to
// maxRetries times with exponential backoff starting at baseDelay. Other
// errors are returned at once. A send that timed out may still have been
// delivered, so retrying sends can duplicate them.
func RetryMiddleware(maxRetries int, baseDelay time.Duration, logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) (*message.Response, error) {
			rsp, err := next(ctx, req)
			for i := 0; i < maxRetries; i++ {
				if err == nil || !errors.Is(err, transport.ErrTimeout) {
					return rsp, err
				}
				logger.Info("retrying rpc call",
					zap.Stringer("func", req.Func),
					zap.Int("attempt", i+1),
					zap.Error(err))

				timer := time.NewTimer(baseDelay * time.Duration(1<<i)) // Exponential backoff
				select {
				case <-ctx.Done():
					timer.Stop()
					return nil, ctx.Err()
				case <-timer.C:
				}
				rsp, err = next(ctx, req)
			}
			return rsp, err
		}
	}
}
