package transport

import (
	"context"
	"fmt"
	"sync"

	"contract-rpc/rpcerr"
)

// Local is an in-process bus. Each request runs its handler on a fresh
// goroutine so a caller abandoning the call through ctx never blocks on it.
type Local struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewLocal() *Local {
	return &Local{handlers: make(map[string]Handler)}
}

func (l *Local) Subscribe(name string, h Handler) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.handlers[name]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadySubscribed, name)
	}
	l.handlers[name] = h
	return nil
}

type reply struct {
	payload []byte
	err     error
}

func (l *Local) Request(ctx context.Context, name string, payload []byte) ([]byte, error) {
	l.mu.RLock()
	h, ok := l.handlers[name]
	l.mu.RUnlock()
	if !ok {
		return nil, &rpcerr.NotFoundError{Name: name}
	}

	// the handler gets its own copy, as it would off a real wire
	in := make([]byte, len(payload))
	copy(in, payload)

	done := make(chan reply, 1)
	go func() {
		out, err := h(ctx, in)
		done <- reply{payload: out, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, &rpcerr.TransportError{Name: name, Err: r.err}
		}
		return r.payload, nil
	case <-ctx.Done():
		return nil, &rpcerr.TransportError{Name: name, Err: ctx.Err()}
	}
}
