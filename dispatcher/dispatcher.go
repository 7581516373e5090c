// Package dispatcher routes named calls between callers and handlers over a
// transport.Transport.
//
// Call encodes a request through its CallContract, sends it and decodes the
// reply into either the success value or an error. Handle registers a handler
// whose every outcome, including a malformed request or a panic, is answered
// with a well-formed response envelope: the envelope is the only channel back
// to the caller.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"contract-rpc/contract"
	"contract-rpc/middleware"
	"contract-rpc/rpcerr"
	"contract-rpc/transport"

	"go.uber.org/zap"
)

// ErrDuplicateHandler is returned when a call name is registered twice.
var ErrDuplicateHandler = errors.New("dispatcher: duplicate handler")

// internalErrorMessage replaces a failure message that cannot be encoded.
const internalErrorMessage = "internal error"

type Dispatcher struct {
	transport transport.Transport
	logger    *zap.Logger

	mu          sync.RWMutex
	names       map[string]struct{}
	middlewares []middleware.Middleware
}

type Option func(*Dispatcher)

func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(d *Dispatcher) { d.middlewares = append(d.middlewares, mws...) }
}

// New creates a dispatcher over t. t is shared, not owned.
func New(t transport.Transport, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		transport: t,
		logger:    zap.NewNop(),
		names:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Use appends a middleware. It applies to handlers registered afterwards.
func (d *Dispatcher) Use(mw middleware.Middleware) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.middlewares = append(d.middlewares, mw)
}

// Names returns the registered call names in sorted order.
func (d *Dispatcher) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.names))
	for name := range d.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HandlerFunc serves one call. A returned error reaches the caller as a
// RemoteError carrying err.Error().
type HandlerFunc[Req, Res any] func(ctx context.Context, req Req) (Res, error)

// Handle registers fn under c's name and subscribes it on the transport.
// Registering a name twice fails with ErrDuplicateHandler.
func Handle[Req, Res any](d *Dispatcher, c *contract.CallContract[Req, Res], fn HandlerFunc[Req, Res]) error {
	name := c.Name()

	d.mu.Lock()
	if _, ok := d.names[name]; ok {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateHandler, name)
	}
	d.names[name] = struct{}{}
	chain := make([]middleware.Middleware, 0, len(d.middlewares)+1)
	chain = append(chain, d.middlewares...)
	chain = append(chain, middleware.RecoverMiddleware(d.logger))
	d.mu.Unlock()

	h := middleware.Chain(chain...)(func(ctx context.Context, call *middleware.Call) (any, error) {
		return fn(ctx, call.Request.(Req))
	})
	wrapped := func(ctx context.Context, payload []byte) ([]byte, error) {
		return serve(ctx, d.logger, c, h, payload), nil
	}

	if err := d.transport.Subscribe(name, wrapped); err != nil {
		d.mu.Lock()
		delete(d.names, name)
		d.mu.Unlock()
		return err
	}
	d.logger.Info("handler registered", zap.String("call", name))
	return nil
}

// serve answers one request. It always returns an encoded envelope, even when
// decoding or an outer middleware panics.
func serve[Req, Res any](ctx context.Context, logger *zap.Logger, c *contract.CallContract[Req, Res], h middleware.HandlerFunc, payload []byte) (out []byte) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("request panicked",
				zap.String("call", c.Name()),
				zap.Any("panic", r),
				zap.Stack("stack"))
			out = replyError(ctx, logger, c, &middleware.PanicError{Value: r})
		}
	}()

	req, err := c.DecodeRequest(ctx, payload)
	if err != nil {
		return replyError(ctx, logger, c, err)
	}

	result, err := h(ctx, &middleware.Call{Name: c.Name(), Request: req})
	if err != nil {
		return replyError(ctx, logger, c, err)
	}
	res, ok := result.(Res)
	if !ok {
		return replyError(ctx, logger, c, fmt.Errorf("handler returned %T", result))
	}

	out, err = c.EncodeSuccess(ctx, res)
	if err != nil {
		return replyError(ctx, logger, c, err)
	}
	return out
}

// replyError encodes cause as an error envelope. The reply is encoded even
// when ctx is already done, since the caller may still be waiting for it.
func replyError[Req, Res any](ctx context.Context, logger *zap.Logger, c *contract.CallContract[Req, Res], cause error) []byte {
	ctx = context.WithoutCancel(ctx)
	logger.Debug("replying with error", zap.String("call", c.Name()), zap.Error(cause))

	out, err := c.EncodeError(ctx, strings.ToValidUTF8(cause.Error(), "\uFFFD"))
	if err == nil {
		return out
	}
	logger.Error("encode error reply failed", zap.String("call", c.Name()), zap.Error(err))
	out, err = c.EncodeError(ctx, internalErrorMessage)
	if err != nil {
		// only reachable with a broken envelope binding
		logger.Error("encode internal error reply failed", zap.String("call", c.Name()), zap.Error(err))
		return nil
	}
	return out
}

// Call sends req under c's name and decodes the reply.
//
// An invalid req fails with a *rpcerr.ValidationError before anything is sent.
// A failure reported by the remote handler is a *rpcerr.RemoteError; a missing
// subscriber a *rpcerr.NotFoundError; a bus failure a *rpcerr.TransportError.
func Call[Req, Res any](ctx context.Context, d *Dispatcher, c *contract.CallContract[Req, Res], req Req) (Res, error) {
	var zero Res
	payload, err := c.EncodeRequest(ctx, req)
	if err != nil {
		return zero, err
	}

	reply, err := d.transport.Request(ctx, c.Name(), payload)
	if err != nil {
		switch rpcerr.KindOf(err) {
		case rpcerr.KindNotFound, rpcerr.KindTransport:
			return zero, err
		default:
			return zero, &rpcerr.TransportError{Name: c.Name(), Err: err}
		}
	}
	return c.DecodeResponse(ctx, reply)
}
