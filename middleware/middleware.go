// Package middleware wraps contract handlers in an onion-style chain.
//
// A middleware sees the call name and the decoded, validated request, and
// returns the handler's result or error. Errors returned here end up as the
// message of the ErrorResponse sent back to the caller.
package middleware

import (
	"context"
	"errors"
)

var (
	ErrTimeout     = errors.New("request timed out")
	ErrRateLimited = errors.New("rate limit exceeded")
)

// Call describes one in-flight handler invocation.
type Call struct {
	Name    string // call name, e.g. "Player.hasState"
	Request any    // decoded and validated request record
}

type HandlerFunc func(ctx context.Context, call *Call) (any, error)

type Middleware func(next HandlerFunc) HandlerFunc

// Chain combines middlewares so that Chain(A, B, C)(h) == A(B(C(h))).
// Execution order: A.before → B.before → C.before → h → C.after → B.after → A.after
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
