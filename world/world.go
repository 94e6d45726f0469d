package world

import (
	"math/rand"
	"time"

	"github.com/Cameron-Kurotori/karmes/sdk"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
)

// Board holds the round's dimensions and the shared goal cell.
type Board struct {
	Width   int
	Height  int
	Goal    sdk.Coord
	HasGoal bool
}

func (b Board) OutOfBounds(c sdk.Coord) bool {
	return c.X >= b.Width ||
		c.X < 0 ||
		c.Y >= b.Height ||
		c.Y < 0
}

// OnEdge reports whether c lies on the outermost ring of the board.
func (b Board) OnEdge(c sdk.Coord) bool {
	return !b.OutOfBounds(c) && (c.X == 0 || c.Y == 0 || c.X == b.Width-1 || c.Y == b.Height-1)
}

// Agent is one participant. Records are merged tick by tick so the name and the path
// history survive across ticks of the same round.
type Agent struct {
	Name           string
	Body           []sdk.Coord
	Heading        sdk.Direction
	Growth         int
	PreviousGrowth int
	Alive          bool

	// Path is the last computed route to the goal, excluding the head it started from.
	Path     []sdk.Coord
	PathTime time.Duration
	// Ahead is true while this agent holds the shortest route to the current goal.
	Ahead bool

	// occupied is Body after the tail trim, computed once per tick
	occupied []sdk.Coord
}

func (a *Agent) Head() (sdk.Coord, bool) {
	if len(a.Body) == 0 {
		return sdk.Coord{}, false
	}
	return a.Body[0], true
}

func (a *Agent) Length() int {
	return len(a.Body)
}

// World is the reconciled per round state. It is mutated only from the single tick
// pipeline and needs no locking.
type World struct {
	Board     Board
	Agents    []*Agent
	SelfIndex int
	Strategy  Strategy
	TimeLeft  int
	Tick      int
	RoundID   string

	// GoalVersion increases every time the goal moves, across rounds.
	GoalVersion int

	player    string
	obstacles []sdk.Coord
	blocked   map[sdk.Coord]bool
	predicted []sdk.Coord
	rng       *rand.Rand
	logger    log.Logger
}

// New creates an empty world for the named player. rng drives the per round strategy
// choice.
func New(player string, logger log.Logger, rng *rand.Rand) *World {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &World{
		SelfIndex: -1,
		player:    player,
		blocked:   map[sdk.Coord]bool{},
		rng:       rng,
		logger:    logger,
	}
}

func (w *World) Player() string {
	return w.player
}

// Logger returns the world's logger with round context attached.
func (w *World) Logger() log.Logger {
	return log.With(w.logger, "round_id", w.RoundID, "player", w.player, "tick", w.Tick, "alive_agents", w.aliveCount())
}

func (w *World) aliveCount() int {
	n := 0
	for _, a := range w.Agents {
		if a.Alive {
			n++
		}
	}
	return n
}

// InitializeRound resets the board and creates one empty agent per name. The order of
// names is the agent index used by ApplyTick.
func (w *World) InitializeRound(width, height int, names []string) {
	w.Board = Board{Width: width, Height: height}
	w.Agents = make([]*Agent, len(names))
	w.SelfIndex = -1
	for i, name := range names {
		w.Agents[i] = &Agent{Name: name, Alive: true}
		if name == w.player && w.SelfIndex < 0 {
			w.SelfIndex = i
		}
	}
	w.Strategy = Strategy{}
	w.TimeLeft = 0
	w.Tick = 0
	w.RoundID = uuid.NewString()
	w.obstacles = nil
	w.blocked = map[sdk.Coord]bool{}
	w.predicted = nil

	logger := w.Logger()
	_ = level.Info(logger).Log("msg", "round initialized", "width", width, "height", height, "agents", len(names), "self_index", w.SelfIndex)
	if w.SelfIndex < 0 {
		_ = level.Warn(logger).Log("msg", "player not listed in round", "names", len(names))
	}
}

// SetGoal moves the goal, rerolls the round's search strategy and clears every agent's
// Ahead flag.
func (w *World) SetGoal(goal sdk.Coord) {
	w.Board.Goal = goal
	w.Board.HasGoal = true
	w.GoalVersion++
	w.Strategy = randomStrategy(w.rng)
	for _, a := range w.Agents {
		a.Ahead = false
	}
	_ = level.Info(w.Logger()).Log("msg", "goal set", "goal", goal, "strategy", w.Strategy)
}

// ApplyTick merges one positions snapshot into the tracked agents and recomputes the
// obstacle set. Entries without a tracked agent are logged and skipped.
func (w *World) ApplyTick(snapshots []sdk.AgentSnapshot, timeLeft int) {
	w.Tick++
	w.TimeLeft = timeLeft
	logger := w.Logger()

	for i, snap := range snapshots {
		if i >= len(w.Agents) {
			_ = level.Warn(logger).Log("msg", "snapshot for untracked agent skipped", "index", i, "tracked", len(w.Agents))
			continue
		}
		agent := w.Agents[i]
		agent.PreviousGrowth = agent.Growth
		agent.Body = append(agent.Body[:0:0], snap.Body...)
		switch heading, ok := neckHeading(agent.Body); {
		case snap.Direction.Valid():
			agent.Heading = snap.Direction
		case ok:
			agent.Heading = heading
			_ = level.Warn(logger).Log("msg", "snapshot with unknown heading, using the neck", "agent", agent.Name, "direction", int(snap.Direction), "heading", heading)
		default:
			_ = level.Warn(logger).Log("msg", "snapshot with unknown heading", "agent", agent.Name, "direction", int(snap.Direction))
		}
		agent.Growth = snap.GrowLength
		agent.Alive = snap.Alive
		agent.occupied = trimTail(agent.Body, agent.Growth)
	}

	w.rebuildObstacles()
}

// neckHeading is the direction of the last step, from the second body cell to the head.
func neckHeading(body []sdk.Coord) (sdk.Direction, bool) {
	if len(body) < 2 {
		return sdk.DirectionNone, false
	}
	return sdk.DirectionBetween(body[1], body[0])
}

// trimTail drops the tail cell when the growth counter equals the body length and the
// body is longer than two cells: the server retracts that cell on its next move.
func trimTail(body []sdk.Coord, growth int) []sdk.Coord {
	if growth == len(body) && len(body) > 2 {
		return body[:len(body)-1]
	}
	return body
}

func (w *World) rebuildObstacles() {
	w.obstacles = w.obstacles[:0]
	w.blocked = make(map[sdk.Coord]bool, len(w.blocked))
	for _, agent := range w.Agents {
		for _, cell := range agent.occupied {
			if w.Board.OutOfBounds(cell) {
				_ = level.Warn(w.Logger()).Log("msg", "obstacle out of board, agent has probably left the round", "agent", agent.Name, "cell", cell)
				continue
			}
			w.obstacles = append(w.obstacles, cell)
			w.blocked[cell] = true
		}
	}
}

// Obstacles is the flattened union of all agents' trimmed bodies.
func (w *World) Obstacles() []sdk.Coord {
	return w.obstacles
}

// Blocked reports whether c is a member of the obstacle set.
func (w *World) Blocked(c sdk.Coord) bool {
	return w.blocked[c]
}

// ComputePredictedMoves projects every living opponent one step along its heading and adds the
// two cells beside that step.
func (w *World) ComputePredictedMoves(self int) {
	w.predicted = w.predicted[:0]
	for i, agent := range w.Agents {
		if i == self {
			continue
		}
		head, ok := agent.Head()
		if !ok || !agent.Alive || !agent.Heading.Valid() {
			continue
		}
		next := head.Move(agent.Heading)
		side := agent.Heading.Perpendicular()
		w.predicted = append(w.predicted, next, next.Add(side), next.Add(side.Reverse()))
	}
}

func (w *World) PredictedMoves() []sdk.Coord {
	return w.predicted
}

// Self is the agent this process plays, nil if the player is not part of the round.
func (w *World) Self() *Agent {
	if w.SelfIndex < 0 || w.SelfIndex >= len(w.Agents) {
		return nil
	}
	return w.Agents[w.SelfIndex]
}

func (w *World) Opponents() []*Agent {
	others := make([]*Agent, 0, len(w.Agents))
	for i, agent := range w.Agents {
		if i != w.SelfIndex {
			others = append(others, agent)
		}
	}
	return others
}
