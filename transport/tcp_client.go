package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"contract-rpc/codec"
	"contract-rpc/rpcerr"

	"go.uber.org/zap"
)

// TCPClient is the caller side of the TCP bus. It keeps a fixed number of
// multiplexed ClientTransports to one server address, picks them round-robin
// and redials a slot lazily once its connection is lost.
type TCPClient struct {
	addr      string
	codecType codec.CodecType
	heartbeat time.Duration
	logger    *zap.Logger
	dial      DialFunc

	mu    sync.Mutex
	slots []*ClientTransport
	next  uint64
}

// DialFunc opens a connection to addr.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

type TCPClientOption func(*TCPClient)

func WithDialer(dial DialFunc) TCPClientOption {
	return func(c *TCPClient) { c.dial = dial }
}

func WithPoolSize(n int) TCPClientOption {
	return func(c *TCPClient) {
		if n > 0 {
			c.slots = make([]*ClientTransport, n)
		}
	}
}

func WithCodec(ct codec.CodecType) TCPClientOption {
	return func(c *TCPClient) { c.codecType = ct }
}

func WithClientHeartbeat(d time.Duration) TCPClientOption {
	return func(c *TCPClient) { c.heartbeat = d }
}

func WithClientLogger(logger *zap.Logger) TCPClientOption {
	return func(c *TCPClient) { c.logger = logger }
}

func NewTCPClient(addr string, opts ...TCPClientOption) *TCPClient {
	c := &TCPClient{
		addr:      addr,
		codecType: codec.CodecTypeBinary,
		heartbeat: DefaultHeartbeat,
		logger:    zap.NewNop(),
		slots:     make([]*ClientTransport, 4),
	}
	c.dial = (&net.Dialer{}).DialContext
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *TCPClient) Request(ctx context.Context, name string, payload []byte) ([]byte, error) {
	t, err := c.pick(ctx)
	if err != nil {
		return nil, &rpcerr.TransportError{Name: name, Err: err}
	}
	return t.Request(ctx, name, payload)
}

// pick returns the next slot's transport, redialing it if needed. The dial
// runs without c.mu held.
func (c *TCPClient) pick(ctx context.Context) (*ClientTransport, error) {
	c.mu.Lock()
	if c.slots == nil {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	i := int(c.next % uint64(len(c.slots)))
	c.next++
	if t := c.slots[i]; t != nil && !t.Closed() {
		c.mu.Unlock()
		return t, nil
	}
	c.mu.Unlock()

	conn, err := c.dial(ctx, "tcp", c.addr)
	if err != nil {
		return nil, err
	}
	t, err := NewClientTransport(conn, c.codecType,
		WithHeartbeat(c.heartbeat),
		WithTransportLogger(c.logger))
	if err != nil {
		conn.Close()
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.slots == nil {
		t.Close()
		return nil, ErrClosed
	}
	// another caller refilled the slot while we were dialing
	if cur := c.slots[i]; cur != nil && !cur.Closed() {
		t.Close()
		return cur, nil
	}
	c.logger.Debug("dialed", zap.String("addr", c.addr), zap.Int("slot", i))
	c.slots[i] = t
	return t, nil
}

// Close closes every open connection. Later requests fail with ErrClosed.
func (c *TCPClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.slots {
		if t != nil {
			t.Close()
		}
	}
	c.slots = nil
	return nil
}
