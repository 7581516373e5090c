// Package config loads contract-rpc process configuration from TOML.
//
// Only keys present in the file override Default(); an empty file yields the
// defaults unchanged.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	TransportLocal = "local"
	TransportTCP   = "tcp"
	TransportEtcd  = "etcd"
)

type Config struct {
	Log       LogConfig
	Transport TransportConfig
	Etcd      EtcdConfig
	Handler   HandlerConfig
	Telemetry TelemetryConfig
}

type LogConfig struct {
	Level       string // debug, info, warn, error
	Development bool
	Encoding    string // json or console; empty picks the profile default
}

type TransportConfig struct {
	Kind      string // local, tcp or etcd
	Listen    string // tcp: address the server listens on
	Dial      string // tcp: address callers dial when Servers is empty
	Servers   []ServerConfig
	Balancer  string // tcp: spreads calls over Servers; round_robin, weighted_random or consistent_hash
	Codec     string // tcp/etcd: bus message codec, json, binary or zstd
	PoolSize  int    // tcp: connections per caller
	Heartbeat time.Duration
}

// ServerConfig is one TCP bus server that callers balance over.
type ServerConfig struct {
	Addr   string
	Weight int
}

type EtcdConfig struct {
	Endpoints   []string
	Prefix      string
	LeaseTTL    int64 // seconds
	DialTimeout time.Duration
}

type HandlerConfig struct {
	Timeout time.Duration // zero disables the timeout middleware
	Rate    float64       // calls per second; zero disables rate limiting
	Burst   int
}

// TelemetryConfig enables stdout trace and metric exporters.
type TelemetryConfig struct {
	Enabled        bool
	MetricInterval time.Duration
}

func Default() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Transport: TransportConfig{
			Kind:      TransportTCP,
			Listen:    ":7400",
			Dial:      "127.0.0.1:7400",
			Balancer:  "round_robin",
			Codec:     "binary",
			PoolSize:  4,
			Heartbeat: 30 * time.Second,
		},
		Etcd: EtcdConfig{
			Endpoints:   []string{"127.0.0.1:2379"},
			Prefix:      "/contract-rpc/",
			LeaseTTL:    10,
			DialTimeout: 5 * time.Second,
		},
		Handler:   HandlerConfig{Burst: 1},
		Telemetry: TelemetryConfig{MetricInterval: time.Minute},
	}
}

type fileConfig struct {
	Log struct {
		Level       string `toml:"level"`
		Development bool   `toml:"development"`
		Encoding    string `toml:"encoding"`
	} `toml:"log"`
	Transport struct {
		Kind      string `toml:"kind"`
		Listen    string `toml:"listen"`
		Dial      string `toml:"dial"`
		Balancer  string `toml:"balancer"`
		Codec     string `toml:"codec"`
		PoolSize  int    `toml:"pool_size"`
		Heartbeat string `toml:"heartbeat"`
		Servers   []struct {
			Addr   string `toml:"addr"`
			Weight int    `toml:"weight"`
		} `toml:"servers"`
	} `toml:"transport"`
	Etcd struct {
		Endpoints   []string `toml:"endpoints"`
		Prefix      string   `toml:"prefix"`
		LeaseTTL    int64    `toml:"lease_ttl"`
		DialTimeout string   `toml:"dial_timeout"`
	} `toml:"etcd"`
	Handler struct {
		Timeout string  `toml:"timeout"`
		Rate    float64 `toml:"rate"`
		Burst   int     `toml:"burst"`
	} `toml:"handler"`
	Telemetry struct {
		Enabled        bool   `toml:"enabled"`
		MetricInterval string `toml:"metric_interval"`
	} `toml:"telemetry"`
}

// Load reads path over Default() and validates the result.
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}
	cfg, err := apply(Default(), &raw, meta)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func apply(cfg Config, raw *fileConfig, meta toml.MetaData) (Config, error) {
	var err error
	duration := func(dst *time.Duration, value string, key ...string) {
		if err != nil || !meta.IsDefined(key...) {
			return
		}
		d, perr := time.ParseDuration(strings.TrimSpace(value))
		if perr != nil {
			err = fmt.Errorf("parse %s: %w", strings.Join(key, "."), perr)
			return
		}
		*dst = d
	}

	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.TrimSpace(raw.Log.Level)
	}
	if meta.IsDefined("log", "development") {
		cfg.Log.Development = raw.Log.Development
	}
	if meta.IsDefined("log", "encoding") {
		cfg.Log.Encoding = strings.TrimSpace(raw.Log.Encoding)
	}

	if meta.IsDefined("transport", "kind") {
		cfg.Transport.Kind = strings.ToLower(strings.TrimSpace(raw.Transport.Kind))
	}
	if meta.IsDefined("transport", "listen") {
		cfg.Transport.Listen = strings.TrimSpace(raw.Transport.Listen)
	}
	if meta.IsDefined("transport", "dial") {
		cfg.Transport.Dial = strings.TrimSpace(raw.Transport.Dial)
	}
	if meta.IsDefined("transport", "servers") {
		cfg.Transport.Servers = make([]ServerConfig, 0, len(raw.Transport.Servers))
		for _, srv := range raw.Transport.Servers {
			cfg.Transport.Servers = append(cfg.Transport.Servers, ServerConfig{Addr: strings.TrimSpace(srv.Addr), Weight: srv.Weight})
		}
	}
	if meta.IsDefined("transport", "balancer") {
		cfg.Transport.Balancer = strings.ToLower(strings.TrimSpace(raw.Transport.Balancer))
	}
	if meta.IsDefined("transport", "codec") {
		cfg.Transport.Codec = strings.ToLower(strings.TrimSpace(raw.Transport.Codec))
	}
	if meta.IsDefined("transport", "pool_size") {
		cfg.Transport.PoolSize = raw.Transport.PoolSize
	}
	duration(&cfg.Transport.Heartbeat, raw.Transport.Heartbeat, "transport", "heartbeat")

	if meta.IsDefined("etcd", "endpoints") {
		cfg.Etcd.Endpoints = raw.Etcd.Endpoints
	}
	if meta.IsDefined("etcd", "prefix") {
		cfg.Etcd.Prefix = strings.TrimSpace(raw.Etcd.Prefix)
	}
	if meta.IsDefined("etcd", "lease_ttl") {
		cfg.Etcd.LeaseTTL = raw.Etcd.LeaseTTL
	}
	duration(&cfg.Etcd.DialTimeout, raw.Etcd.DialTimeout, "etcd", "dial_timeout")

	duration(&cfg.Handler.Timeout, raw.Handler.Timeout, "handler", "timeout")
	if meta.IsDefined("handler", "rate") {
		cfg.Handler.Rate = raw.Handler.Rate
	}
	if meta.IsDefined("handler", "burst") {
		cfg.Handler.Burst = raw.Handler.Burst
	}

	if meta.IsDefined("telemetry", "enabled") {
		cfg.Telemetry.Enabled = raw.Telemetry.Enabled
	}
	duration(&cfg.Telemetry.MetricInterval, raw.Telemetry.MetricInterval, "telemetry", "metric_interval")
	return cfg, err
}

func (c Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q must be one of debug, info, warn, error", c.Log.Level)
	}
	switch c.Log.Encoding {
	case "", "json", "console":
	default:
		return fmt.Errorf("log.encoding %q must be json or console", c.Log.Encoding)
	}

	switch c.Transport.Kind {
	case TransportLocal:
	case TransportTCP:
		if c.Transport.Listen == "" && c.Transport.Dial == "" && len(c.Transport.Servers) == 0 {
			return fmt.Errorf("transport.listen, transport.dial or transport.servers is required for tcp")
		}
		if c.Transport.PoolSize <= 0 {
			return fmt.Errorf("transport.pool_size must be positive, got %d", c.Transport.PoolSize)
		}
		for i, srv := range c.Transport.Servers {
			if srv.Addr == "" {
				return fmt.Errorf("transport.servers[%d].addr is required", i)
			}
		}
		switch c.Transport.Balancer {
		case "round_robin", "weighted_random", "consistent_hash":
		default:
			return fmt.Errorf("transport.balancer %q must be one of round_robin, weighted_random, consistent_hash", c.Transport.Balancer)
		}
	case TransportEtcd:
		if err := c.validateEtcd(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("transport.kind %q must be one of local, tcp, etcd", c.Transport.Kind)
	}

	switch c.Transport.Codec {
	case "json", "binary", "zstd":
	default:
		return fmt.Errorf("transport.codec %q must be one of json, binary, zstd", c.Transport.Codec)
	}
	if c.Transport.Heartbeat < 0 {
		return fmt.Errorf("transport.heartbeat must not be negative")
	}

	if c.Handler.Timeout < 0 {
		return fmt.Errorf("handler.timeout must not be negative")
	}
	if c.Handler.Rate < 0 {
		return fmt.Errorf("handler.rate must not be negative")
	}
	if c.Handler.Rate > 0 && c.Handler.Burst <= 0 {
		return fmt.Errorf("handler.burst must be positive when handler.rate is set")
	}
	if c.Telemetry.Enabled && c.Telemetry.MetricInterval <= 0 {
		return fmt.Errorf("telemetry.metric_interval must be positive")
	}
	return nil
}

func (c Config) validateEtcd() error {
	if len(c.Etcd.Endpoints) == 0 {
		return fmt.Errorf("etcd.endpoints is required")
	}
	if c.Etcd.LeaseTTL <= 0 {
		return fmt.Errorf("etcd.lease_ttl must be positive, got %d", c.Etcd.LeaseTTL)
	}
	if c.Etcd.Prefix == "" {
		return fmt.Errorf("etcd.prefix is required")
	}
	return nil
}
