package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"wcf-rpc-sdk/message"
)

// LoggingMiddleware logs every call at debug level with its duration and error.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) (*message.Response, error) {
			start := time.Now()
			rsp, err := next(ctx, req)
			fields := []zap.Field{
				zap.Stringer("func", req.Func),
				zap.Duration("duration", time.Since(start)),
			}
			if err != nil {
				logger.Debug("rpc call failed", append(fields, zap.Error(err))...)
				return rsp, err
			}
			logger.Debug("rpc call", fields...)
			return rsp, nil
		}
	}
}
