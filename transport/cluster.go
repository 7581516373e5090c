package transport

import (
	"context"
	"slices"
	"sync"

	"contract-rpc/loadbalance"
	"contract-rpc/rpcerr"
)

// Cluster is the caller side of the TCP bus when the same handlers run on
// several servers. The balancer picks a server per call, keyed by call name,
// and each server gets its own TCPClient, dialed on first use.
type Cluster struct {
	instances  []loadbalance.Instance
	balancer   loadbalance.Balancer
	clientOpts []TCPClientOption

	mu      sync.Mutex
	clients map[string]*TCPClient
}

func NewCluster(instances []loadbalance.Instance, bal loadbalance.Balancer, opts ...TCPClientOption) *Cluster {
	return &Cluster{
		instances:  slices.Clone(instances),
		balancer:   bal,
		clientOpts: opts,
		clients:    make(map[string]*TCPClient),
	}
}

func (c *Cluster) Request(ctx context.Context, name string, payload []byte) ([]byte, error) {
	client, err := c.pick(name)
	if err != nil {
		return nil, &rpcerr.TransportError{Name: name, Err: err}
	}
	return client.Request(ctx, name, payload)
}

func (c *Cluster) pick(name string) (*TCPClient, error) {
	inst, err := c.balancer.Pick(name, c.instances)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clients == nil {
		return nil, ErrClosed
	}
	client, ok := c.clients[inst.Addr]
	if !ok {
		client = NewTCPClient(inst.Addr, c.clientOpts...)
		c.clients[inst.Addr] = client
	}
	return client, nil
}

// Close closes every connection. Later requests fail with ErrClosed.
func (c *Cluster) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, client := range c.clients {
		client.Close()
	}
	c.clients = nil
	return nil
}
