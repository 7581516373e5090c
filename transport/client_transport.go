package transport

// ClientTransport runs many concurrent calls over a single TCP connection.
// Each request gets a unique sequence ID, and a background goroutine (recvLoop)
// reads responses and routes them to the waiting caller via pending channels.
//
//	goroutine-1 ──Send(seq=1)──┐
//	goroutine-2 ──Send(seq=2)──┼──→ single TCP conn ──→ server.Server
//	goroutine-3 ──Send(seq=3)──┘
//
//	recvLoop:  ←── response(seq=2) → pending[2] chan → goroutine-2 wakes up

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"contract-rpc/codec"
	"contract-rpc/message"
	"contract-rpc/protocol"
	"contract-rpc/rpcerr"

	"go.uber.org/zap"
)

const DefaultHeartbeat = 30 * time.Second

// ClientTransport manages a single multiplexed TCP connection.
type ClientTransport struct {
	conn      net.Conn
	codec     codec.MessageCodec
	logger    *zap.Logger
	heartbeat time.Duration

	seq      uint32   // protected by sending
	closeErr error    // protected by sending; set once the connection is unusable
	pending  sync.Map // map[uint32]chan *message.RPCMessage
	sending  sync.Mutex
	done     chan struct{}
}

type ClientTransportOption func(*ClientTransport)

func WithTransportLogger(logger *zap.Logger) ClientTransportOption {
	return func(t *ClientTransport) { t.logger = logger }
}

// WithHeartbeat sets the keepalive interval. Zero disables heartbeats.
func WithHeartbeat(d time.Duration) ClientTransportOption {
	return func(t *ClientTransport) { t.heartbeat = d }
}

// NewClientTransport takes ownership of conn and starts two background goroutines:
//   - recvLoop: reads responses and dispatches them to pending callers
//   - heartbeatLoop: sends periodic heartbeat frames
func NewClientTransport(conn net.Conn, codecType codec.CodecType, opts ...ClientTransportOption) (*ClientTransport, error) {
	cdc, err := codec.GetCodec(codecType)
	if err != nil {
		return nil, err
	}
	t := &ClientTransport{
		conn:      conn,
		codec:     cdc,
		logger:    zap.NewNop(),
		heartbeat: DefaultHeartbeat,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	go t.recvLoop()
	if t.heartbeat > 0 {
		go t.heartbeatLoop(t.heartbeat)
	}
	return t, nil
}

// Send writes a request frame and returns the channel that receives its response.
// The whole frame is written under the sending lock so frames never interleave.
func (t *ClientTransport) Send(name string, payload []byte) (uint32, <-chan *message.RPCMessage, error) {
	body, err := t.codec.Encode(&message.RPCMessage{Name: name, Payload: payload})
	if err != nil {
		return 0, nil, err
	}

	t.sending.Lock()
	defer t.sending.Unlock()
	if t.closeErr != nil {
		return 0, nil, t.closeErr
	}

	t.seq++
	seq := t.seq

	// register before writing so recvLoop can never see a response without a waiter
	respChan := make(chan *message.RPCMessage, 1)
	t.pending.Store(seq, respChan)

	header := protocol.Header{
		CodecType: byte(t.codec.Type()),
		MsgType:   protocol.MsgTypeRequest,
		Seq:       seq,
	}
	if err := protocol.Encode(t.conn, &header, body); err != nil {
		t.pending.Delete(seq)
		return 0, nil, err
	}
	return seq, respChan, nil
}

// Request sends payload under name and waits for the correlated reply.
func (t *ClientTransport) Request(ctx context.Context, name string, payload []byte) ([]byte, error) {
	seq, ch, err := t.Send(name, payload)
	if err != nil {
		return nil, &rpcerr.TransportError{Name: name, Err: err}
	}

	select {
	case resp := <-ch:
		switch resp.Status {
		case message.StatusOK:
			return resp.Payload, nil
		case message.StatusNotFound:
			return nil, &rpcerr.NotFoundError{Name: name}
		default:
			return nil, &rpcerr.TransportError{Name: name, Err: errors.New(resp.Error)}
		}
	case <-ctx.Done():
		t.pending.Delete(seq)
		return nil, &rpcerr.TransportError{Name: name, Err: ctx.Err()}
	}
}

// recvLoop is the only reader of the connection; frame boundaries can only be
// parsed sequentially.
func (t *ClientTransport) recvLoop() {
	for {
		header, body, err := protocol.Decode(t.conn)
		if err != nil {
			t.fail(err)
			return
		}
		if header.MsgType != protocol.MsgTypeResponse {
			continue
		}

		var resp message.RPCMessage
		cdc, err := codec.GetCodec(codec.CodecType(header.CodecType))
		if err == nil {
			err = cdc.Decode(body, &resp)
		}
		if err != nil {
			resp = message.RPCMessage{Status: message.StatusFailed, Error: fmt.Sprintf("bad response: %v", err)}
		}

		if channel, ok := t.pending.LoadAndDelete(header.Seq); ok {
			channel.(chan *message.RPCMessage) <- &resp
		}
	}
}

// fail marks the transport unusable and releases every pending caller.
func (t *ClientTransport) fail(err error) {
	t.sending.Lock()
	if t.closeErr == nil {
		t.closeErr = fmt.Errorf("connection lost: %w", err)
		close(t.done)
		t.logger.Debug("client transport closed",
			zap.String("remote", t.conn.RemoteAddr().String()),
			zap.Error(err))
	}
	closeErr := t.closeErr
	t.sending.Unlock()

	t.pending.Range(func(key, value any) bool {
		if _, ok := t.pending.LoadAndDelete(key); ok {
			value.(chan *message.RPCMessage) <- &message.RPCMessage{Status: message.StatusFailed, Error: closeErr.Error()}
		}
		return true
	})
}

// Close closes the connection; pending calls fail with a TransportError.
func (t *ClientTransport) Close() error {
	err := t.conn.Close()
	t.fail(ErrClosed)
	return err
}

// Closed reports whether the connection is no longer usable.
func (t *ClientTransport) Closed() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

func (t *ClientTransport) Conn() net.Conn {
	return t.conn
}

// heartbeatLoop keeps an idle connection alive. Heartbeat frames have no body.
func (t *ClientTransport) heartbeatLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
		}
		header := &protocol.Header{
			CodecType: byte(t.codec.Type()),
			MsgType:   protocol.MsgTypeHeartbeat,
		}
		t.sending.Lock()
		err := protocol.Encode(t.conn, header, nil)
		t.sending.Unlock()
		if err != nil {
			return
		}
	}
}
