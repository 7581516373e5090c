// Command playerd serves or calls the Player contracts over the configured bus.
//
//	playerd [-config file] serve [-states Online,InGame]
//	playerd [-config file] call [-states Online] <state>
//
// call with transport.kind = "local" registers an in-process service holding
// -states and calls it, which is handy for checking a build end to end.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"contract-rpc/config"
	"contract-rpc/contracts/player"
	"contract-rpc/contracts/player/fb"
	"contract-rpc/logging"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "playerd: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("playerd", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a TOML config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("usage: playerd [-config file] serve|call ...")
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd, rest := fs.Arg(0), fs.Args()[1:]; cmd {
	case "serve":
		return serve(ctx, cfg, logger, rest)
	case "call":
		return call(ctx, cfg, logger, rest)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func serve(ctx context.Context, cfg config.Config, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	states := fs.String("states", "Online", "comma separated states the player holds")
	if err := fs.Parse(args); err != nil {
		return err
	}
	held, err := parseStates(*states)
	if err != nil {
		return err
	}

	tel, err := newTelemetry(cfg.Telemetry)
	if err != nil {
		return err
	}
	defer tel.shutdown(context.WithoutCancel(ctx))

	b, err := newBus(cfg, logger, roleServe)
	if err != nil {
		return err
	}
	defer b.close()

	d, err := newDispatcher(b.transport, cfg.Handler, tel, logger)
	if err != nil {
		return err
	}
	if err := player.Register(d, player.NewService(held...)); err != nil {
		return err
	}
	logger.Info("player service registered",
		zap.Strings("calls", d.Names()),
		zap.String("transport", cfg.Transport.Kind),
		zap.Stringers("states", held))

	g, gctx := errgroup.WithContext(ctx)
	if b.run != nil {
		g.Go(b.run)
	}
	g.Go(func() error {
		<-gctx.Done()
		return b.close()
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func call(ctx context.Context, cfg config.Config, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("call", flag.ContinueOnError)
	states := fs.String("states", "Online", "states held by the in-process service (local transport only)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: playerd call <state>")
	}
	want, err := parseState(fs.Arg(0))
	if err != nil {
		return err
	}

	b, err := newBus(cfg, logger, roleCall)
	if err != nil {
		return err
	}
	defer b.close()

	d, err := newDispatcher(b.transport, cfg.Handler, nil, logger)
	if err != nil {
		return err
	}
	if cfg.Transport.Kind == config.TransportLocal {
		held, err := parseStates(*states)
		if err != nil {
			return err
		}
		if err := player.Register(d, player.NewService(held...)); err != nil {
			return err
		}
	}

	ok, err := player.NewController(d).HasState(ctx, want)
	if err != nil {
		return err
	}
	fmt.Println(ok)
	return nil
}

func parseState(name string) (fb.PlayerState, error) {
	name = strings.TrimSpace(name)
	for k, v := range fb.EnumValuesPlayerState {
		if strings.EqualFold(k, name) {
			return v, nil
		}
	}
	return 0, fmt.Errorf("unknown player state %q", name)
}

func parseStates(list string) ([]fb.PlayerState, error) {
	var out []fb.PlayerState
	for _, name := range strings.Split(list, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		st, err := parseState(name)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}
