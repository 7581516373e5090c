package dispatcher_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"contract-rpc/codec"
	"contract-rpc/contract"
	"contract-rpc/contracts/player"
	"contract-rpc/contracts/player/fb"
	"contract-rpc/dispatcher"
	"contract-rpc/loadbalance"
	"contract-rpc/middleware"
	"contract-rpc/rpcerr"
	"contract-rpc/server"
	"contract-rpc/transport"
	"contract-rpc/validate"

	flatbuffers "github.com/google/flatbuffers/go"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"
)

// isOnline is a second call over the Player envelope, so tests can run two
// different names side by side.
type onlineRequest struct{ State fb.PlayerState }
type onlineResponse struct{ Online bool }

var isOnline = contract.MustCallContract("Player.isOnline",
	contract.New[onlineRequest](codec.NewFlatBufferCodec("Player.isOnline/request",
		func(b *flatbuffers.Builder, r onlineRequest) flatbuffers.UOffsetT {
			fb.RequestStart(b)
			fb.RequestAddState(b, r.State)
			return fb.RequestEnd(b)
		},
		func(buf []byte) (onlineRequest, error) {
			return onlineRequest{State: fb.GetRootAsRequest(buf, 0).State()}, nil
		}), nil),
	contract.New[onlineResponse](codec.NewFlatBufferCodec("Player.isOnline/success",
		func(b *flatbuffers.Builder, r onlineResponse) flatbuffers.UOffsetT {
			fb.SuccessResponseStart(b)
			fb.SuccessResponseAddResult(b, r.Online)
			body := fb.SuccessResponseEnd(b)
			fb.ResponseStart(b)
			fb.ResponseAddBodyType(b, fb.BodySuccessResponse)
			fb.ResponseAddBody(b, body)
			return fb.ResponseEnd(b)
		},
		func(buf []byte) (onlineResponse, error) {
			var tab flatbuffers.Table
			if !fb.GetRootAsResponse(buf, 0).Body(&tab) {
				return onlineResponse{}, errors.New("missing body")
			}
			var s fb.SuccessResponse
			s.Init(tab.Bytes, tab.Pos)
			return onlineResponse{Online: s.Result()}, nil
		}), nil),
	player.Envelope,
)

type bus struct {
	name string
	new  func(t testing.TB) transport.Transport
}

var buses = []bus{
	{"local", func(t testing.TB) transport.Transport { return transport.NewLocal() }},
	{"tcp", func(t testing.TB) transport.Transport {
		srv := server.NewServer(server.WithLogger(zaptest.NewLogger(t)))
		l, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatal(err)
		}
		go srv.Serve(l)
		client := transport.NewTCPClient(l.Addr().String(), transport.WithPoolSize(2))
		t.Cleanup(func() {
			client.Close()
			srv.Shutdown(time.Second)
		})
		return transport.Join(client, srv)
	}},
	{"cluster", func(t testing.TB) transport.Transport {
		var (
			servers   fanout
			instances []loadbalance.Instance
		)
		for i := 0; i < 2; i++ {
			srv := server.NewServer(server.WithLogger(zaptest.NewLogger(t)))
			l, err := net.Listen("tcp", "127.0.0.1:0")
			if err != nil {
				t.Fatal(err)
			}
			go srv.Serve(l)
			t.Cleanup(func() { srv.Shutdown(time.Second) })
			servers = append(servers, srv)
			instances = append(instances, loadbalance.Instance{Addr: l.Addr().String()})
		}
		cluster := transport.NewCluster(instances, &loadbalance.RoundRobin{})
		t.Cleanup(func() { cluster.Close() })
		return transport.Join(cluster, servers)
	}},
}

// fanout subscribes every handler on each server of a cluster.
type fanout []transport.Subscriber

func (f fanout) Subscribe(name string, h transport.Handler) error {
	for _, s := range f {
		if err := s.Subscribe(name, h); err != nil {
			return err
		}
	}
	return nil
}

// forEachBus runs fn against a fresh dispatcher on every bus.
func forEachBus(t *testing.T, fn func(t *testing.T, d *dispatcher.Dispatcher)) {
	for _, b := range buses {
		t.Run(b.name, func(t *testing.T) {
			fn(t, dispatcher.New(b.new(t), dispatcher.WithLogger(zaptest.NewLogger(t))))
		})
	}
}

func withTimeout(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestHasStateSuccess(t *testing.T) {
	forEachBus(t, func(t *testing.T, d *dispatcher.Dispatcher) {
		err := dispatcher.Handle(d, player.HasState, func(ctx context.Context, req player.HasStateRequest) (player.HasStateResponse, error) {
			return player.HasStateResponse{Result: true}, nil
		})
		if err != nil {
			t.Fatal(err)
		}
		res, err := dispatcher.Call(withTimeout(t), d, player.HasState, player.HasStateRequest{State: fb.PlayerStateOnline})
		if err != nil {
			t.Fatalf("Call: %v", err)
		}
		if !res.Result {
			t.Fatal("expect result true")
		}
	})
}

func TestHasStateError(t *testing.T) {
	forEachBus(t, func(t *testing.T, d *dispatcher.Dispatcher) {
		dispatcher.Handle(d, player.HasState, func(ctx context.Context, req player.HasStateRequest) (player.HasStateResponse, error) {
			return player.HasStateResponse{}, errors.New("hasState error")
		})
		_, err := dispatcher.Call(withTimeout(t), d, player.HasState, player.HasStateRequest{State: fb.PlayerStateOnline})
		if err == nil || err.Error() != "hasState error" {
			t.Fatalf("expect 'hasState error', got %v", err)
		}
	})
}

func TestErrorFraming(t *testing.T) {
	forEachBus(t, func(t *testing.T, d *dispatcher.Dispatcher) {
		dispatcher.Handle(d, player.HasState, func(ctx context.Context, req player.HasStateRequest) (player.HasStateResponse, error) {
			return player.HasStateResponse{}, errors.New("boom")
		})
		_, err := dispatcher.Call(withTimeout(t), d, player.HasState, player.HasStateRequest{State: fb.PlayerStateAway})
		if err == nil || err.Error() != "boom" {
			t.Fatalf("expect 'boom', got %v", err)
		}
		if !errors.Is(err, rpcerr.ErrRemote) || rpcerr.IsLocal(err) {
			t.Fatalf("expect remote error kind, got %s", rpcerr.KindOf(err))
		}
	})
}

func TestNotFound(t *testing.T) {
	forEachBus(t, func(t *testing.T, d *dispatcher.Dispatcher) {
		res, err := dispatcher.Call(withTimeout(t), d, player.HasState, player.HasStateRequest{State: fb.PlayerStateOnline})
		var nf *rpcerr.NotFoundError
		if !errors.As(err, &nf) || nf.Name != player.HasStateName {
			t.Fatalf("expect NotFoundError, got %v", err)
		}
		if res.Result {
			t.Fatal("not-found must not yield a success value")
		}
	})
}

// countingTransport records how many requests reach the bus.
type countingTransport struct {
	transport.Transport
	requests atomic.Int32
}

func (c *countingTransport) Request(ctx context.Context, name string, payload []byte) ([]byte, error) {
	c.requests.Add(1)
	return c.Transport.Request(ctx, name, payload)
}

func TestValidationBeforeSend(t *testing.T) {
	ct := &countingTransport{Transport: transport.NewLocal()}
	d := dispatcher.New(ct)
	if err := player.Register(d, player.NewService(fb.PlayerStateOnline)); err != nil {
		t.Fatal(err)
	}

	_, err := dispatcher.Call(context.Background(), d, player.HasState, player.HasStateRequest{State: 99})
	if !errors.Is(err, rpcerr.ErrValidation) || !rpcerr.IsLocal(err) {
		t.Fatalf("expect local ValidationError, got %v", err)
	}
	if n := ct.requests.Load(); n != 0 {
		t.Fatalf("expect no request sent, got %d", n)
	}
}

func TestMalformedRequestAnsweredWithError(t *testing.T) {
	tr := transport.NewLocal()
	d := dispatcher.New(tr)
	var called atomic.Bool
	dispatcher.Handle(d, player.HasState, func(ctx context.Context, req player.HasStateRequest) (player.HasStateResponse, error) {
		called.Store(true)
		return player.HasStateResponse{Result: true}, nil
	})

	for name, payload := range map[string][]byte{
		"garbage":      {0xde, 0xad},
		"out of range": mustEncodeRawRequest(42),
	} {
		reply, err := tr.Request(withTimeout(t), player.HasStateName, payload)
		if err != nil {
			t.Fatalf("%s: the handler must answer, got %v", name, err)
		}
		_, err = player.HasState.DecodeResponse(context.Background(), reply)
		if !errors.Is(err, rpcerr.ErrRemote) {
			t.Fatalf("%s: expect error envelope, got %v", name, err)
		}
	}
	if called.Load() {
		t.Fatal("handler must not run for a malformed request")
	}
}

func mustEncodeRawRequest(state fb.PlayerState) []byte {
	b := flatbuffers.NewBuilder(0)
	fb.RequestStart(b)
	fb.RequestAddState(b, state)
	b.Finish(fb.RequestEnd(b))
	return b.FinishedBytes()
}

func TestPanicBecomesErrorResponse(t *testing.T) {
	forEachBus(t, func(t *testing.T, d *dispatcher.Dispatcher) {
		dispatcher.Handle(d, player.HasState, func(ctx context.Context, req player.HasStateRequest) (player.HasStateResponse, error) {
			panic("kaboom")
		})
		_, err := dispatcher.Call(withTimeout(t), d, player.HasState, player.HasStateRequest{State: fb.PlayerStateOnline})
		if !errors.Is(err, rpcerr.ErrRemote) || err.Error() != "panic: kaboom" {
			t.Fatalf("expect remote 'panic: kaboom', got %v", err)
		}
	})
}

func TestOuterMiddlewarePanicBecomesErrorResponse(t *testing.T) {
	boom := func(next middleware.HandlerFunc) middleware.HandlerFunc {
		return func(ctx context.Context, call *middleware.Call) (any, error) {
			panic("middleware kaboom")
		}
	}
	forEachBus(t, func(t *testing.T, d *dispatcher.Dispatcher) {
		d.Use(boom)
		if err := player.Register(d, player.NewService(fb.PlayerStateOnline)); err != nil {
			t.Fatal(err)
		}
		_, err := dispatcher.Call(withTimeout(t), d, player.HasState, player.HasStateRequest{State: fb.PlayerStateOnline})
		if !errors.Is(err, rpcerr.ErrRemote) || err.Error() != "panic: middleware kaboom" {
			t.Fatalf("expect remote 'panic: middleware kaboom', got %v", err)
		}
	})
}

// captureTransport keeps the subscribed handler so tests can invoke it directly.
type captureTransport struct {
	transport.Transport
	handler transport.Handler
}

func (c *captureTransport) Subscribe(name string, h transport.Handler) error {
	c.handler = h
	return nil
}

func TestDecodePanicBecomesErrorResponse(t *testing.T) {
	explosive := contract.MustCallContract(player.HasStateName,
		contract.New[player.HasStateRequest](
			codec.NewFlatBufferCodec(player.HasStateName+"/request",
				func(b *flatbuffers.Builder, r player.HasStateRequest) flatbuffers.UOffsetT {
					fb.RequestStart(b)
					fb.RequestAddState(b, r.State)
					return fb.RequestEnd(b)
				},
				func(buf []byte) (player.HasStateRequest, error) {
					return player.HasStateRequest{State: fb.GetRootAsRequest(buf, 0).State()}, nil
				}),
			validate.New[player.HasStateRequest]("explosive",
				validate.Field("state", func(player.HasStateRequest) (any, bool) { panic("accessor kaboom") }))),
		player.HasState.Response().Success,
		player.Envelope,
	)

	ct := &captureTransport{}
	d := dispatcher.New(ct, dispatcher.WithLogger(zaptest.NewLogger(t)))
	if err := dispatcher.Handle(d, explosive, func(ctx context.Context, req player.HasStateRequest) (player.HasStateResponse, error) {
		return player.HasStateResponse{Result: true}, nil
	}); err != nil {
		t.Fatal(err)
	}

	reply, err := ct.handler(context.Background(), mustEncodeRawRequest(fb.PlayerStateOnline))
	if err != nil {
		t.Fatalf("the handler must answer, got %v", err)
	}
	_, err = player.HasState.DecodeResponse(context.Background(), reply)
	if !errors.Is(err, rpcerr.ErrRemote) || err.Error() != "panic: accessor kaboom" {
		t.Fatalf("expect remote 'panic: accessor kaboom', got %v", err)
	}
}

func TestInvalidUTF8MessageReplaced(t *testing.T) {
	d := dispatcher.New(transport.NewLocal())
	dispatcher.Handle(d, player.HasState, func(ctx context.Context, req player.HasStateRequest) (player.HasStateResponse, error) {
		return player.HasStateResponse{}, errors.New("bad \xff byte")
	})
	_, err := dispatcher.Call(context.Background(), d, player.HasState, player.HasStateRequest{State: fb.PlayerStateOnline})
	if err == nil || err.Error() != "bad \uFFFD byte" {
		t.Fatalf("expect sanitized message, got %v", err)
	}
}

func TestConcurrentCalls(t *testing.T) {
	forEachBus(t, func(t *testing.T, d *dispatcher.Dispatcher) {
		dispatcher.Handle(d, player.HasState, func(ctx context.Context, req player.HasStateRequest) (player.HasStateResponse, error) {
			if req.State == fb.PlayerStateAway {
				return player.HasStateResponse{}, errors.New("away")
			}
			return player.HasStateResponse{Result: true}, nil
		})
		dispatcher.Handle(d, isOnline, func(ctx context.Context, req onlineRequest) (onlineResponse, error) {
			time.Sleep(5 * time.Millisecond)
			return onlineResponse{Online: req.State == fb.PlayerStateOnline}, nil
		})

		ctx := withTimeout(t)
		var g errgroup.Group
		for i := 0; i < 20; i++ {
			g.Go(func() error {
				_, err := dispatcher.Call(ctx, d, player.HasState, player.HasStateRequest{State: fb.PlayerStateAway})
				if err == nil || err.Error() != "away" {
					return fmt.Errorf("hasState: expect 'away', got %v", err)
				}
				return nil
			})
			g.Go(func() error {
				res, err := dispatcher.Call(ctx, d, isOnline, onlineRequest{State: fb.PlayerStateOnline})
				if err != nil || !res.Online {
					return fmt.Errorf("isOnline: expect online, got %+v (%v)", res, err)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			t.Fatal(err)
		}
	})
}

func TestMiddlewareTimeout(t *testing.T) {
	forEachBus(t, func(t *testing.T, d *dispatcher.Dispatcher) {
		d.Use(middleware.TimeOutMiddleware(20 * time.Millisecond))
		dispatcher.Handle(d, player.HasState, func(ctx context.Context, req player.HasStateRequest) (player.HasStateResponse, error) {
			<-ctx.Done()
			return player.HasStateResponse{}, ctx.Err()
		})
		_, err := dispatcher.Call(withTimeout(t), d, player.HasState, player.HasStateRequest{State: fb.PlayerStateOnline})
		if err == nil || err.Error() != middleware.ErrTimeout.Error() {
			t.Fatalf("expect %q, got %v", middleware.ErrTimeout, err)
		}
	})
}

func TestDuplicateAndNames(t *testing.T) {
	d := dispatcher.New(transport.NewLocal())
	h := func(ctx context.Context, req player.HasStateRequest) (player.HasStateResponse, error) {
		return player.HasStateResponse{}, nil
	}
	if err := dispatcher.Handle(d, player.HasState, h); err != nil {
		t.Fatal(err)
	}
	if err := dispatcher.Handle(d, player.HasState, h); !errors.Is(err, dispatcher.ErrDuplicateHandler) {
		t.Fatalf("expect ErrDuplicateHandler, got %v", err)
	}
	dispatcher.Handle(d, isOnline, func(ctx context.Context, req onlineRequest) (onlineResponse, error) {
		return onlineResponse{}, nil
	})
	if got := strings.Join(d.Names(), ","); got != "Player.hasState,Player.isOnline" {
		t.Fatalf("unexpected names %q", got)
	}
}

// failingTransport reports a plain error for every request.
type failingTransport struct{ transport.Transport }

func (failingTransport) Request(ctx context.Context, name string, payload []byte) ([]byte, error) {
	return nil, errors.New("bus down")
}

func TestTransportErrorWrapped(t *testing.T) {
	d := dispatcher.New(failingTransport{transport.NewLocal()})
	_, err := dispatcher.Call(context.Background(), d, player.HasState, player.HasStateRequest{State: fb.PlayerStateOnline})
	var te *rpcerr.TransportError
	if !errors.As(err, &te) || te.Name != player.HasStateName {
		t.Fatalf("expect TransportError, got %v", err)
	}
}

func TestCallDoesNotOutliveContext(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	d := dispatcher.New(transport.NewLocal())
	dispatcher.Handle(d, player.HasState, func(ctx context.Context, req player.HasStateRequest) (player.HasStateResponse, error) {
		<-block
		return player.HasStateResponse{}, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := dispatcher.Call(ctx, d, player.HasState, player.HasStateRequest{State: fb.PlayerStateOnline})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expect DeadlineExceeded, got %v", err)
	}
}
