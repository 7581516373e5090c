package middleware

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitMiddleware rejects calls beyond r per second (token bucket with burst).
// The limiter is shared by every call passing through the returned middleware.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *Call) (any, error) {
			if !limiter.Allow() {
				return nil, ErrRateLimited
			}
			return next(ctx, call)
		}
	}
}
