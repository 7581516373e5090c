package main

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"contract-rpc/codec"
	"contract-rpc/config"
	"contract-rpc/dispatcher"
	"contract-rpc/loadbalance"
	"contract-rpc/middleware"
	"contract-rpc/server"
	"contract-rpc/transport"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type role int

const (
	roleServe role = iota
	roleCall
)

// bus is the configured transport plus what it takes to run and stop it.
type bus struct {
	transport transport.Transport
	run       func() error // blocks while serving; nil when nothing needs to run
	addr      net.Addr     // tcp listen address when serving

	once    sync.Once
	closers []func() error
	err     error
}

func (b *bus) close() error {
	b.once.Do(func() {
		for i := len(b.closers) - 1; i >= 0; i-- {
			b.err = errors.Join(b.err, b.closers[i]())
		}
	})
	return b.err
}

func newBus(cfg config.Config, logger *zap.Logger, r role) (*bus, error) {
	ct, err := codec.ParseCodecType(cfg.Transport.Codec)
	if err != nil {
		return nil, err
	}

	switch cfg.Transport.Kind {
	case config.TransportLocal:
		return &bus{transport: transport.NewLocal()}, nil

	case config.TransportTCP:
		if r == roleServe {
			return newTCPServer(cfg, logger)
		}
		return newTCPCaller(cfg.Transport, []transport.TCPClientOption{
			transport.WithPoolSize(cfg.Transport.PoolSize),
			transport.WithCodec(ct),
			transport.WithClientHeartbeat(cfg.Transport.Heartbeat),
			transport.WithClientLogger(logger.Named("tcp")),
		})

	case config.TransportEtcd:
		cli, err := newEtcdClient(cfg.Etcd, logger)
		if err != nil {
			return nil, err
		}
		e := transport.NewEtcd(cli,
			transport.WithPrefix(cfg.Etcd.Prefix),
			transport.WithLeaseTTL(cfg.Etcd.LeaseTTL),
			transport.WithEtcdCodec(ct),
			transport.WithEtcdLogger(logger.Named("etcd")),
		)
		return &bus{
			transport: e,
			closers:   []func() error{cli.Close, e.Close},
		}, nil

	default:
		return nil, fmt.Errorf("unknown transport kind %q", cfg.Transport.Kind)
	}
}

func newEtcdClient(cfg config.EtcdConfig, logger *zap.Logger) (*clientv3.Client, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
		Logger:      logger.Named("etcd-client"),
	})
	if err != nil {
		return nil, fmt.Errorf("connect etcd: %w", err)
	}
	return cli, nil
}

func newTCPServer(cfg config.Config, logger *zap.Logger) (*bus, error) {
	srv := server.NewServer(server.WithLogger(logger.Named("server")))
	l, err := net.Listen("tcp", cfg.Transport.Listen)
	if err != nil {
		return nil, err
	}
	return &bus{
		transport: transport.Join(nil, srv),
		addr:      l.Addr(),
		run:       func() error { return srv.Serve(l) },
		closers:   []func() error{func() error { return srv.Shutdown(shutdownTimeout) }},
	}, nil
}

// newTCPCaller dials transport.dial, or balances over transport.servers when
// any are listed.
func newTCPCaller(cfg config.TransportConfig, opts []transport.TCPClientOption) (*bus, error) {
	if len(cfg.Servers) == 0 {
		client := transport.NewTCPClient(cfg.Dial, opts...)
		return &bus{
			transport: transport.Join(client, nil),
			closers:   []func() error{client.Close},
		}, nil
	}
	bal, err := loadbalance.New(cfg.Balancer)
	if err != nil {
		return nil, err
	}
	instances := make([]loadbalance.Instance, len(cfg.Servers))
	for i, srv := range cfg.Servers {
		instances[i] = loadbalance.Instance{Addr: srv.Addr, Weight: srv.Weight}
	}
	cluster := transport.NewCluster(instances, bal, opts...)
	return &bus{
		transport: transport.Join(cluster, nil),
		closers:   []func() error{cluster.Close},
	}, nil
}

// newDispatcher applies the handler middlewares from cfg. tel may be nil.
func newDispatcher(t transport.Transport, cfg config.HandlerConfig, tel *telemetry, logger *zap.Logger) (*dispatcher.Dispatcher, error) {
	var mws []middleware.Middleware
	if tel != nil {
		metrics, err := middleware.MetricsMiddleware(tel.meters)
		if err != nil {
			return nil, err
		}
		mws = append(mws, middleware.TracingMiddleware(tel.tracers), metrics)
	}
	mws = append(mws, middleware.LoggingMiddleware(logger.Named("calls")))
	if cfg.Rate > 0 {
		mws = append(mws, middleware.RateLimitMiddleware(cfg.Rate, cfg.Burst))
	}
	if cfg.Timeout > 0 {
		mws = append(mws, middleware.TimeOutMiddleware(cfg.Timeout))
	}
	return dispatcher.New(t,
		dispatcher.WithLogger(logger.Named("dispatcher")),
		dispatcher.WithMiddleware(mws...),
	), nil
}
