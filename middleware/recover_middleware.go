package middleware

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// PanicError is returned in place of a handler panic.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// RecoverMiddleware turns a handler panic into a *PanicError. It should sit
// innermost so that panics on goroutines started by outer middlewares
// (TimeOutMiddleware) are caught too.
func RecoverMiddleware(logger *zap.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *Call) (result any, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("handler panicked",
						zap.String("call", call.Name),
						zap.Any("panic", r),
						zap.Stack("stack"))
					result, err = nil, &PanicError{Value: r}
				}
			}()
			return next(ctx, call)
		}
	}
}
