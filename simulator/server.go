package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/Cameron-Kurotori/karmes/bot"
	"github.com/Cameron-Kurotori/karmes/sdk"
	"github.com/Cameron-Kurotori/karmes/transport"
	"github.com/Cameron-Kurotori/karmes/world"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// player receives every broadcast and hands back at most one direction per tick.
type player interface {
	Name() string
	Deliver(msg sdk.Message) error
	Take() (sdk.Direction, bool)
}

// pending is the latest direction a player asked for.
type pending struct {
	mu  sync.Mutex
	dir sdk.Direction
	set bool
}

func (p *pending) put(dir sdk.Direction) {
	p.mu.Lock()
	p.dir, p.set = dir, true
	p.mu.Unlock()
}

func (p *pending) Take() (sdk.Direction, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	dir, ok := p.dir, p.set
	p.set = false
	return dir, ok
}

func (p *pending) control(msg sdk.Message) error {
	if msg.Msg != sdk.MessageControl {
		return nil
	}
	var control sdk.Control
	if err := msg.Decode(&control); err != nil {
		return err
	}
	p.put(control.Direction)
	return nil
}

// localPlayer is an in-process bot engine.
type localPlayer struct {
	pending
	name    string
	handler *bot.Handler
}

func newLocalPlayer(name string, seed int64, logger log.Logger) *localPlayer {
	p := &localPlayer{name: name}
	w := world.New(name, log.With(logger, "bot", name), rand.New(rand.NewSource(seed)))
	p.handler = bot.NewHandler(w, bot.NewEngine(bot.DefaultConfig(), nil), bot.SenderFunc(p.control), logger)
	return p
}

func (p *localPlayer) Name() string { return p.name }

func (p *localPlayer) Deliver(msg sdk.Message) error {
	return p.handler.Handle(msg)
}

// remotePlayer is a bot connected over WebSocket.
type remotePlayer struct {
	pending
	name   string
	conn   transport.Conn
	logger log.Logger
}

func (p *remotePlayer) Name() string { return p.name }

func (p *remotePlayer) Deliver(msg sdk.Message) error {
	return p.conn.Send(msg)
}

func (p *remotePlayer) readLoop() {
	for {
		msg, err := p.conn.Read()
		if errors.Is(err, transport.ErrMalformed) {
			continue
		}
		if err != nil {
			_ = level.Info(p.logger).Log("msg", "player disconnected", "player", p.name, "err", err)
			return
		}
		if err := p.control(msg); err != nil {
			_ = level.Warn(p.logger).Log("msg", "bad control message", "player", p.name, "err", err)
		}
	}
}

type server struct {
	rules   rules
	tick    time.Duration
	rounds  int
	bots    int
	remotes int
	seed    int64
	record  io.Writer
	logger  log.Logger

	upgrader websocket.Upgrader
	joined   chan *remotePlayer
}

func newServer(r rules, logger log.Logger) *server {
	return &server{
		rules:  r,
		tick:   200 * time.Millisecond,
		rounds: 1,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		joined: make(chan *remotePlayer),
	}
}

// ServeHTTP upgrades the request and waits for the player's join message.
func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		_ = level.Error(s.logger).Log("msg", "upgrade error", "err", err)
		return
	}
	conn := transport.NewWebSocket(c)

	msg, err := conn.Read()
	if err != nil || msg.Msg != sdk.MessageJoin {
		_ = level.Warn(s.logger).Log("msg", "expected join message", "got", msg.Msg, "err", err)
		_ = conn.Close()
		return
	}
	var join sdk.Join
	if err := msg.Decode(&join); err != nil || join.Player.Name == "" {
		_ = level.Warn(s.logger).Log("msg", "invalid join message", "err", err)
		_ = conn.Close()
		return
	}

	p := &remotePlayer{name: join.Player.Name, conn: conn, logger: s.logger}
	select {
	case s.joined <- p:
		_ = level.Info(s.logger).Log("msg", "player joined", "player", p.name, "source_ip", r.RemoteAddr)
		go p.readLoop()
	case <-r.Context().Done():
		_ = conn.Close()
	}
}

// Run waits for the remote players, adds the local bots and plays the rounds.
func (s *server) Run(ctx context.Context) error {
	players := []player{}
	for len(players) < s.remotes {
		select {
		case p := <-s.joined:
			players = append(players, p)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for i := 0; i < s.bots; i++ {
		name := fmt.Sprintf("sim-bot-%s", uuid.NewString()[:8])
		players = append(players, newLocalPlayer(name, s.seed+int64(i), s.logger))
	}
	if len(players) == 0 {
		return errors.New("no players")
	}

	rng := rand.New(rand.NewSource(s.seed))
	var history []sdk.Positions
	for round := 0; round < s.rounds; round++ {
		states, err := s.playRound(ctx, rng, players)
		history = append(history, states...)
		if err != nil {
			return err
		}
	}

	if s.record != nil {
		return json.NewEncoder(s.record).Encode(history)
	}
	return nil
}

func endMessage() (sdk.Message, error) {
	return sdk.Message{Msg: sdk.MessageEnd}, nil
}

func (s *server) broadcast(players []player, build func() (sdk.Message, error)) error {
	msg, err := build()
	if err != nil {
		return err
	}
	for _, p := range players {
		if err := p.Deliver(msg); err != nil {
			_ = level.Warn(s.logger).Log("msg", "failed to deliver", "player", p.Name(), "message", msg.Msg, "err", err)
		}
	}
	return nil
}

func (s *server) playRound(ctx context.Context, rng *rand.Rand, players []player) ([]sdk.Positions, error) {
	names := make([]string, len(players))
	for i, p := range players {
		names[i] = p.Name()
		p.Take()
	}
	m, err := newMatch(s.rules, names, rng)
	if err != nil {
		return nil, err
	}
	roundID := uuid.NewString()
	logger := log.With(s.logger, "round_id", roundID)
	_ = level.Info(logger).Log("msg", "round starting", "players", len(players), "width", s.rules.Width, "height", s.rules.Height)

	if err := s.broadcast(players, m.startMessage); err != nil {
		return nil, err
	}
	if err := s.broadcast(players, m.appleMessage); err != nil {
		return nil, err
	}

	history := []sdk.Positions{}
	for !m.done() {
		history = append(history, m.positions())
		if err := s.broadcast(players, m.positionsMessage); err != nil {
			return history, err
		}

		select {
		case <-time.After(s.tick):
		case <-ctx.Done():
			return history, ctx.Err()
		}

		for i, p := range players {
			if dir, ok := p.Take(); ok {
				m.control(i, dir)
			}
		}
		if m.step() {
			_ = level.Debug(logger).Log("msg", "goal eaten", "tick", m.tick, "next_goal", m.goal)
			if err := s.broadcast(players, m.appleMessage); err != nil {
				return history, err
			}
		}
	}

	history = append(history, m.positions())
	if err := s.broadcast(players, m.positionsMessage); err != nil {
		return history, err
	}
	if err := s.broadcast(players, endMessage); err != nil {
		return history, err
	}
	_ = level.Info(logger).Log("msg", "DONE", "ticks", m.tick, "winner", m.winner(), "alive", m.alive())
	return history, nil
}
