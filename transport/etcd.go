package transport

// Etcd carries requests and replies through etcd keys:
//
//	{prefix}{name}/subscribers/{id}    presence, bound to the subscriber's lease
//	{prefix}{name}/requests/{reqID}    request payload, claimed by exactly one subscriber
//	{prefix}{name}/replies/{reqID}     encoded message.RPCMessage, watched by the caller,
//	                                   bound to a short lease of its own
//
// A subscriber claims a request with a compare-and-delete transaction, so when
// several processes subscribe under one name each request is answered once.
// If the subscriber process dies its lease expires and the presence key goes
// with it, so later callers get a NotFoundError instead of waiting.

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"contract-rpc/codec"
	"contract-rpc/message"
	"contract-rpc/rpcerr"

	"github.com/google/uuid"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

const (
	DefaultEtcdPrefix = "/contract-rpc/"
	DefaultLeaseTTL   = 10 // seconds

	cleanupTimeout = 5 * time.Second
)

// Etcd is a Transport over an etcd cluster. The client is shared, not owned.
type Etcd struct {
	client *clientv3.Client
	prefix string
	ttl    int64
	codec  codec.MessageCodec
	logger *zap.Logger
	id     string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	leaseID clientv3.LeaseID
	subs    map[string]struct{}
}

type EtcdOption func(*Etcd)

func WithPrefix(prefix string) EtcdOption {
	return func(e *Etcd) {
		if !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		e.prefix = prefix
	}
}

// WithLeaseTTL sets the subscriber lease TTL in seconds.
func WithLeaseTTL(ttl int64) EtcdOption {
	return func(e *Etcd) { e.ttl = ttl }
}

func WithEtcdCodec(ct codec.CodecType) EtcdOption {
	return func(e *Etcd) {
		if c, err := codec.GetCodec(ct); err == nil {
			e.codec = c
		}
	}
}

func WithEtcdLogger(logger *zap.Logger) EtcdOption {
	return func(e *Etcd) { e.logger = logger }
}

func NewEtcd(client *clientv3.Client, opts ...EtcdOption) *Etcd {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Etcd{
		client: client,
		prefix: DefaultEtcdPrefix,
		ttl:    DefaultLeaseTTL,
		logger: zap.NewNop(),
		id:     uuid.NewString(),
		ctx:    ctx,
		cancel: cancel,
		subs:   make(map[string]struct{}),
	}
	e.codec, _ = codec.GetCodec(codec.CodecTypeBinary)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Etcd) subscribersKey(name string) string { return e.prefix + name + "/subscribers/" }
func (e *Etcd) requestsKey(name string) string    { return e.prefix + name + "/requests/" }
func (e *Etcd) repliesKey(name string) string     { return e.prefix + name + "/replies/" }

func (e *Etcd) Request(ctx context.Context, name string, payload []byte) ([]byte, error) {
	resp, err := e.client.Get(ctx, e.subscribersKey(name), clientv3.WithPrefix(), clientv3.WithCountOnly())
	if err != nil {
		return nil, &rpcerr.TransportError{Name: name, Err: err}
	}
	if resp.Count == 0 {
		return nil, &rpcerr.NotFoundError{Name: name}
	}

	reqID := uuid.NewString()
	requestKey := e.requestsKey(name) + reqID
	replyKey := e.repliesKey(name) + reqID

	put, err := e.client.Put(ctx, requestKey, string(payload))
	if err != nil {
		return nil, &rpcerr.TransportError{Name: name, Err: err}
	}
	defer e.cleanup(requestKey, replyKey)

	// watching from the put's revision cannot miss a reply written in between
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	watch := e.client.Watch(wctx, replyKey, clientv3.WithRev(put.Header.Revision+1))

	for wresp := range watch {
		if err := wresp.Err(); err != nil {
			return nil, &rpcerr.TransportError{Name: name, Err: err}
		}
		for _, ev := range wresp.Events {
			if ev.Type != clientv3.EventTypePut {
				continue
			}
			var msg message.RPCMessage
			if err := e.codec.Decode(ev.Kv.Value, &msg); err != nil {
				return nil, &rpcerr.TransportError{Name: name, Err: fmt.Errorf("bad reply: %w", err)}
			}
			switch msg.Status {
			case message.StatusOK:
				return msg.Payload, nil
			case message.StatusNotFound:
				return nil, &rpcerr.NotFoundError{Name: name}
			default:
				return nil, &rpcerr.TransportError{Name: name, Err: errors.New(msg.Error)}
			}
		}
	}

	err = ctx.Err()
	if err == nil {
		err = errors.New("watch closed")
	}
	return nil, &rpcerr.TransportError{Name: name, Err: err}
}

// cleanup removes an unclaimed request and a consumed reply.
func (e *Etcd) cleanup(keys ...string) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	for _, key := range keys {
		if _, err := e.client.Delete(ctx, key); err != nil {
			e.logger.Warn("cleanup failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// Subscribe announces this process under name and starts serving requests.
func (e *Etcd) Subscribe(name string, h Handler) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.subs[name]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadySubscribed, name)
	}

	leaseID, err := e.lease()
	if err != nil {
		return err
	}

	// pick up requests already waiting, then watch for new ones after that revision
	pending, err := e.client.Get(e.ctx, e.requestsKey(name), clientv3.WithPrefix())
	if err != nil {
		return err
	}
	if _, err := e.client.Put(e.ctx, e.subscribersKey(name)+e.id, e.id, clientv3.WithLease(leaseID)); err != nil {
		return err
	}
	e.subs[name] = struct{}{}

	watch := e.client.Watch(e.ctx, e.requestsKey(name),
		clientv3.WithPrefix(),
		clientv3.WithRev(pending.Header.Revision+1))

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for _, kv := range pending.Kvs {
			e.serve(name, string(kv.Key), kv.Value, h)
		}
		for wresp := range watch {
			if err := wresp.Err(); err != nil {
				e.logger.Warn("request watch failed", zap.String("call", name), zap.Error(err))
				continue
			}
			for _, ev := range wresp.Events {
				if ev.Type == clientv3.EventTypePut {
					e.serve(name, string(ev.Kv.Key), ev.Kv.Value, h)
				}
			}
		}
	}()

	e.logger.Info("subscribed", zap.String("call", name), zap.String("subscriber", e.id))
	return nil
}

// lease grants the subscriber lease on first use and keeps it alive.
// Called with e.mu held.
func (e *Etcd) lease() (clientv3.LeaseID, error) {
	if e.leaseID != 0 {
		return e.leaseID, nil
	}
	lease, err := e.client.Grant(e.ctx, e.ttl)
	if err != nil {
		return 0, err
	}
	ch, err := e.client.KeepAlive(e.ctx, lease.ID)
	if err != nil {
		return 0, err
	}
	// drain so the keepalive channel never fills up
	go func() {
		for range ch {
		}
	}()
	e.leaseID = lease.ID
	return lease.ID, nil
}

// serve claims one request and answers it on its own goroutine.
func (e *Etcd) serve(name, key string, payload []byte, h Handler) {
	claim, err := e.client.Txn(e.ctx).
		If(clientv3.Compare(clientv3.Version(key), ">", 0)).
		Then(clientv3.OpDelete(key)).
		Commit()
	if err != nil {
		e.logger.Warn("claim failed", zap.String("call", name), zap.String("key", key), zap.Error(err))
		return
	}
	if !claim.Succeeded {
		return // another subscriber took it, or the caller gave up
	}

	reqID := path.Base(key)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		msg := &message.RPCMessage{Name: name, Status: message.StatusOK}
		out, err := h(e.ctx, payload)
		if err != nil {
			msg.Status = message.StatusFailed
			msg.Error = err.Error()
		} else {
			msg.Payload = out
		}
		body, err := e.codec.Encode(msg)
		if err != nil {
			e.logger.Error("encode reply failed", zap.String("call", name), zap.Error(err))
			return
		}
		// the caller deletes the reply once read; the lease removes it when
		// the caller has already given up
		lease, err := e.client.Grant(e.ctx, e.ttl)
		if err != nil {
			e.logger.Warn("reply lease failed", zap.String("call", name), zap.String("request", reqID), zap.Error(err))
			return
		}
		if _, err := e.client.Put(e.ctx, e.repliesKey(name)+reqID, string(body), clientv3.WithLease(lease.ID)); err != nil {
			e.logger.Warn("reply failed", zap.String("call", name), zap.String("request", reqID), zap.Error(err))
		}
	}()
}

// Close stops serving, waits for in-flight handlers and revokes the lease,
// which removes every presence key of this process.
func (e *Etcd) Close() error {
	e.cancel()
	e.wg.Wait()

	e.mu.Lock()
	leaseID := e.leaseID
	e.leaseID = 0
	e.mu.Unlock()
	if leaseID == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	_, err := e.client.Revoke(ctx, leaseID)
	return err
}
