package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Cameron-Kurotori/karmes/bot"
	"github.com/Cameron-Kurotori/karmes/logging"
	"github.com/Cameron-Kurotori/karmes/transport"
	"github.com/Cameron-Kurotori/karmes/world"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

type config struct {
	addr          string
	player        string
	maxExpansions int
	seed          int64
	dialTimeout   time.Duration
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// parseConfig reads flags with environment fallbacks. Positional [host] [port] [player]
// arguments override -addr and -player.
func parseConfig(args []string) (config, error) {
	cfg := config{}
	fs := flag.NewFlagSet("karmes", flag.ContinueOnError)
	fs.StringVar(&cfg.addr, "addr", getEnvOrDefault("KARMES_ADDR", "localhost:6969"), "game server host:port, or a ws:// URL")
	fs.StringVar(&cfg.player, "player", getEnvOrDefault("KARMES_PLAYER", "T0P1 (C1-10P)"), "player name")
	fs.IntVar(&cfg.maxExpansions, "max-expansions", getEnvIntOrDefault("KARMES_MAX_EXPANSIONS", bot.DefaultConfig().MaxExpansions), "cells a single path search may expand, 0 for unbounded")
	fs.Int64Var(&cfg.seed, "seed", int64(getEnvIntOrDefault("KARMES_SEED", 0)), "seed for the per round strategy choice, 0 for time based")
	fs.DurationVar(&cfg.dialTimeout, "dial-timeout", 10*time.Second, "connect timeout")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	rest := fs.Args()
	if len(rest) > 3 {
		return cfg, fmt.Errorf("unexpected arguments: %v", rest[3:])
	}
	if len(rest) >= 2 {
		cfg.addr = rest[0] + ":" + rest[1]
	} else if len(rest) == 1 {
		cfg.addr = rest[0] + ":6969"
	}
	if len(rest) == 3 {
		cfg.player = rest[2]
	}
	if cfg.seed == 0 {
		cfg.seed = time.Now().UnixNano()
	}
	return cfg, nil
}

func run(ctx context.Context, cfg config, logger log.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn, err := transport.Dial(ctx, cfg.addr, cfg.dialTimeout)
	if err != nil {
		return err
	}
	defer conn.Close()
	_ = level.Info(logger).Log("msg", "connected to server", "addr", cfg.addr)

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	engineConfig := bot.DefaultConfig()
	engineConfig.MaxExpansions = cfg.maxExpansions
	w := world.New(cfg.player, logger, rand.New(rand.NewSource(cfg.seed)))
	handler := bot.NewHandler(w, bot.NewEngine(engineConfig, nil), conn, logger)

	if err := handler.Join(); err != nil {
		return err
	}

	for {
		msg, err := conn.Read()
		if errors.Is(err, transport.ErrMalformed) {
			_ = level.Error(logger).Log("msg", "dropping message", "err", err)
			continue
		}
		if errors.Is(err, transport.ErrClosed) || ctx.Err() != nil {
			_ = level.Warn(logger).Log("msg", "stream ended")
			return nil
		}
		if err != nil {
			return err
		}
		if err := handler.Handle(msg); err != nil {
			return err
		}
	}
}

// Main Entrypoint

func main() {
	logger := logging.GlobalLogger()

	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		_ = level.Error(logger).Log("msg", "invalid arguments", "err", err)
		os.Exit(2)
	}
	_ = level.Info(logger).Log("msg", "starting bot", "addr", cfg.addr, "player", cfg.player, "seed", cfg.seed)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		_ = level.Error(logger).Log("msg", "bot stopped", "err", err)
		os.Exit(1)
	}
}
