package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"
)

func LoggingMiddleware(logger *zap.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *Call) (any, error) {
			start := time.Now()
			result, err := next(ctx, call)
			duration := time.Since(start)
			if err != nil {
				logger.Warn("call failed",
					zap.String("call", call.Name),
					zap.Duration("duration", duration),
					zap.Error(err))
				return result, err
			}
			logger.Debug("call handled",
				zap.String("call", call.Name),
				zap.Duration("duration", duration))
			return result, nil
		}
	}
}
