package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Cameron-Kurotori/karmes/logging"
	"github.com/go-kit/log/level"
)

func main() {
	logger := logging.GlobalLogger()
	r := defaultRules()

	port := os.Getenv("PORT")
	if len(port) == 0 {
		port = "6969"
	}

	addr := flag.String("addr", "0.0.0.0:"+port, "listen address for WebSocket players")
	remotes := flag.Int("players", 1, "number of remote players to wait for")
	bots := flag.Int("bots", 3, "number of in-process opponents")
	rounds := flag.Int("rounds", 1, "rounds to play")
	tick := flag.Duration("tick", 200*time.Millisecond, "time between ticks")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	record := flag.Bool("record", false, "print every tick's positions as JSON when done")
	flag.IntVar(&r.Width, "width", r.Width, "board width")
	flag.IntVar(&r.Height, "height", r.Height, "board height")
	flag.IntVar(&r.MaxTicks, "max-ticks", r.MaxTicks, "tick limit per round")
	flag.Parse()

	s := newServer(r, logger)
	s.remotes = *remotes
	s.bots = *bots
	s.rounds = *rounds
	s.tick = *tick
	s.seed = *seed
	if *record {
		s.record = os.Stdout
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", *addr)
	if err != nil {
		_ = level.Error(logger).Log("msg", "failed to listen", "addr", *addr, "err", err)
		os.Exit(1)
	}
	httpServer := &http.Server{Handler: s}
	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = level.Error(logger).Log("msg", "server closed", "err", err)
		}
	}()
	_ = level.Info(logger).Log("msg", "starting simulator", "addr", "ws://"+listener.Addr().String(), "players", s.remotes, "bots", s.bots)

	err = s.Run(ctx)
	_ = httpServer.Close()
	if err != nil && !errors.Is(err, context.Canceled) {
		_ = level.Error(logger).Log("msg", "simulation failed", "err", err)
		os.Exit(1)
	}
}
