package bot

import (
	"fmt"
	"time"

	"github.com/Cameron-Kurotori/karmes/sdk"
	"github.com/Cameron-Kurotori/karmes/world"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Sender delivers outbound messages to the game server.
type Sender interface {
	Send(msg sdk.Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(msg sdk.Message) error

func (f SenderFunc) Send(msg sdk.Message) error {
	return f(msg)
}

// Handler routes decoded server messages into the world and the engine. Calls must be
// serialized: a positions message is fully handled, command included, before the next
// message is accepted.
type Handler struct {
	world  *world.World
	engine *Engine
	sender Sender
	logger log.Logger
}

func NewHandler(w *world.World, engine *Engine, sender Sender, logger log.Logger) *Handler {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Handler{
		world:  w,
		engine: engine,
		sender: sender,
		logger: logger,
	}
}

func (h *Handler) World() *world.World {
	return h.world
}

// Join announces the player to the server.
func (h *Handler) Join() error {
	msg, err := sdk.NewJoin(h.world.Player())
	if err != nil {
		return err
	}
	_ = level.Info(h.logger).Log("msg", "joining game", "player", h.world.Player())
	return h.send(msg)
}

// Handle processes one message. Malformed payloads are logged and dropped; the only
// errors returned come from sending.
func (h *Handler) Handle(msg sdk.Message) error {
	logger := log.With(h.logger, "message", msg.Msg)

	switch msg.Msg {
	case sdk.MessageJoin, sdk.MessageCreate:
		_ = level.Debug(logger).Log("msg", "game message")
	case sdk.MessageEnd:
		_ = level.Info(h.world.Logger()).Log("msg", "round ended")
	case sdk.MessageStart:
		var start sdk.RoundStart
		if err := msg.Decode(&start); err != nil {
			_ = level.Error(logger).Log("msg", "failed to decode start message", "err", err)
			return nil
		}
		h.world.InitializeRound(start.Level.Width, start.Level.Height, start.Names())
	case sdk.MessageApple:
		var goal sdk.Coord
		if err := msg.Decode(&goal); err != nil {
			_ = level.Error(logger).Log("msg", "failed to decode apple message", "err", err)
			return nil
		}
		h.world.SetGoal(goal)
	case sdk.MessagePositions:
		var positions sdk.Positions
		if err := msg.Decode(&positions); err != nil {
			_ = level.Error(logger).Log("msg", "failed to decode positions message", "err", err)
			return nil
		}
		return h.tick(positions)
	default:
		_ = level.Error(logger).Log("msg", "unknown message", "data", string(msg.Data))
	}
	return nil
}

func (h *Handler) tick(positions sdk.Positions) error {
	start := time.Now()

	h.world.ApplyTick(positions.Snakes, positions.TimeLeft)
	h.world.ComputePredictedMoves(h.world.SelfIndex)

	dir, ok := h.engine.Decide(h.world)
	logger := h.world.Logger()
	defer func() {
		_ = level.Debug(logger).Log("msg", "tick handled", "time_left", positions.TimeLeft, "took_ms", time.Since(start).Milliseconds())
	}()
	if !ok {
		return nil
	}

	msg, err := sdk.NewControl(dir)
	if err != nil {
		return err
	}
	return h.send(msg)
}

func (h *Handler) send(msg sdk.Message) error {
	if err := h.sender.Send(msg); err != nil {
		return fmt.Errorf("sending %s message: %w", msg.Msg, err)
	}
	return nil
}
