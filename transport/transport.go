// Package transport is the request/reply bus boundary consumed by the
// dispatcher, plus the buses shipped with contract-rpc:
//
//	Local          in-process, for tests and single-binary deployments
//	TCPClient      caller side of the TCP bus (see package server for the other side)
//	Etcd           request/reply over etcd keys, callers and subscribers share only etcd
//
// Every bus reports a call name nobody subscribed to as *rpcerr.NotFoundError
// and a delivery failure as *rpcerr.TransportError.
package transport

import (
	"context"
	"errors"

	"contract-rpc/rpcerr"
)

var (
	ErrAlreadySubscribed = errors.New("transport: name already subscribed")
	ErrNoRequester       = errors.New("transport: no requester configured")
	ErrClosed            = errors.New("transport: closed")
)

// Handler answers one request. The returned bytes are delivered to the caller
// correlated with the request.
type Handler func(ctx context.Context, payload []byte) ([]byte, error)

type Requester interface {
	Request(ctx context.Context, name string, payload []byte) ([]byte, error)
}

type Subscriber interface {
	Subscribe(name string, h Handler) error
}

type Transport interface {
	Requester
	Subscriber
}

type joined struct {
	Requester
	Subscriber
}

// Join combines a caller side and a serving side into one Transport.
// Either may be nil when the process only serves or only calls.
func Join(r Requester, s Subscriber) Transport {
	return &joined{Requester: r, Subscriber: s}
}

func (j *joined) Request(ctx context.Context, name string, payload []byte) ([]byte, error) {
	if j.Requester == nil {
		return nil, &rpcerr.TransportError{Name: name, Err: ErrNoRequester}
	}
	return j.Requester.Request(ctx, name, payload)
}

func (j *joined) Subscribe(name string, h Handler) error {
	if j.Subscriber == nil {
		return errors.New("transport: no subscriber configured")
	}
	return j.Subscriber.Subscribe(name, h)
}
