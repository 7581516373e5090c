package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"contract-rpc/config"
	"contract-rpc/contracts/player"
	"contract-rpc/contracts/player/fb"

	"go.uber.org/zap/zaptest"
)

func TestParseStates(t *testing.T) {
	got, err := parseStates("online, InGame,,away")
	if err != nil {
		t.Fatal(err)
	}
	want := []fb.PlayerState{fb.PlayerStateOnline, fb.PlayerStateInGame, fb.PlayerStateAway}
	if len(got) != len(want) {
		t.Fatalf("expect %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expect %v, got %v", want, got)
		}
	}
	if _, err := parseStates("Online,Sleeping"); err == nil {
		t.Fatal("expect error for unknown state")
	}
}

func TestCallLocal(t *testing.T) {
	cfg := config.Default()
	cfg.Transport.Kind = config.TransportLocal
	logger := zaptest.NewLogger(t)

	if err := call(context.Background(), cfg, logger, []string{"-states", "Online,InGame", "InGame"}); err != nil {
		t.Fatalf("call: %v", err)
	}
	if err := call(context.Background(), cfg, logger, []string{"Sleeping"}); err == nil {
		t.Fatal("expect unknown state name to be rejected")
	}
	if err := call(context.Background(), cfg, logger, nil); err == nil {
		t.Fatal("expect usage error without a state")
	}
}

func startServe(t *testing.T, cfg config.Config, states ...fb.PlayerState) string {
	t.Helper()
	logger := zaptest.NewLogger(t)
	cfg.Transport.Listen = "127.0.0.1:0"
	b, err := newBus(cfg, logger, roleServe)
	if err != nil {
		t.Fatal(err)
	}
	d, err := newDispatcher(b.transport, cfg.Handler, nil, logger)
	if err != nil {
		t.Fatal(err)
	}
	if err := player.Register(d, player.NewService(states...)); err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() { done <- b.run() }()
	t.Cleanup(func() {
		b.close()
		if err := <-done; err != nil {
			t.Errorf("serve: %v", err)
		}
	})
	return b.addr.String()
}

func hasState(t *testing.T, cfg config.Config, state fb.PlayerState) bool {
	t.Helper()
	logger := zaptest.NewLogger(t)
	b, err := newBus(cfg, logger, roleCall)
	if err != nil {
		t.Fatal(err)
	}
	defer b.close()
	d, err := newDispatcher(b.transport, cfg.Handler, nil, logger)
	if err != nil {
		t.Fatal(err)
	}
	ok, err := player.NewController(d).HasState(context.Background(), state)
	if err != nil {
		t.Fatalf("hasState %s: %v", state, err)
	}
	return ok
}

func TestServeAndCallTCP(t *testing.T) {
	cfg := config.Default()
	cfg.Transport.Dial = startServe(t, cfg, fb.PlayerStateInGame)

	if !hasState(t, cfg, fb.PlayerStateInGame) {
		t.Fatal("expect InGame held")
	}
	if hasState(t, cfg, fb.PlayerStateAway) {
		t.Fatal("expect Away not held")
	}
}

func TestCallBalancedServers(t *testing.T) {
	cfg := config.Default()
	cfg.Transport.Codec = "zstd"
	cfg.Transport.Balancer = "consistent_hash"
	for i := 0; i < 2; i++ {
		addr := startServe(t, cfg, fb.PlayerStateOnline)
		cfg.Transport.Servers = append(cfg.Transport.Servers, config.ServerConfig{Addr: addr})
	}
	cfg.Transport.Dial = ""

	for i := 0; i < 3; i++ {
		if !hasState(t, cfg, fb.PlayerStateOnline) {
			t.Fatal("expect Online held")
		}
	}
}

func TestTelemetryDisabled(t *testing.T) {
	tel, err := newTelemetry(config.TelemetryConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := newDispatcher(nil, config.Default().Handler, tel, zaptest.NewLogger(t)); err != nil {
		t.Fatal(err)
	}
	if err := tel.shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestRunRejectsBadInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[transport]\nkind = \"smoke\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := run([]string{"-config", path, "call", "Online"}); err == nil {
		t.Fatal("expect config error")
	}
	if err := run(nil); err == nil {
		t.Fatal("expect usage error")
	}
	if err := run([]string{"dance"}); err == nil {
		t.Fatal("expect unknown command error")
	}
}
