package bot

import (
	"errors"
	"time"

	"github.com/Cameron-Kurotori/karmes/grid"
	"github.com/Cameron-Kurotori/karmes/pathfind"
	"github.com/Cameron-Kurotori/karmes/sdk"
	"github.com/Cameron-Kurotori/karmes/world"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Config holds the engine tunables.
type Config struct {
	Costs grid.Costs
	// MinGoalEntries is the number of free cells around the goal below which the goal is
	// considered rotten.
	MinGoalEntries int
	// MaxExpansions bounds every path search; 0 leaves it unbounded.
	MaxExpansions int
	// TrackRace computes opponents' routes after every goal change to maintain the
	// Ahead flags.
	TrackRace bool
}

func DefaultConfig() Config {
	return Config{
		Costs:          grid.DefaultCosts(),
		MinGoalEntries: 2,
		MaxExpansions:  4096,
		TrackRace:      true,
	}
}

// Engine makes one decision per tick for the world's own agent.
type Engine struct {
	config     Config
	finder     pathfind.Finder
	raceGoal   int
	lastSearch bool
}

// NewEngine builds an engine. A nil finder uses pathfind.Search bounded by
// config.MaxExpansions.
func NewEngine(config Config, finder pathfind.Finder) *Engine {
	if finder == nil {
		finder = pathfind.Search{MaxExpansions: config.MaxExpansions}
	}
	return &Engine{
		config: config,
		finder: finder,
	}
}

// Searched reports whether the last Decide call ran a fresh path search.
func (e *Engine) Searched() bool {
	return e.lastSearch
}

// Decide runs the tick pipeline: rotten goal check, path reuse or recompute, move
// translation and the panic fallback. The boolean is false when no command should be
// sent this tick.
func (e *Engine) Decide(w *world.World) (sdk.Direction, bool) {
	start := time.Now()
	e.lastSearch = false
	logger := w.Logger()

	self := w.Self()
	if self == nil || !self.Alive {
		_ = level.Debug(logger).Log("msg", "no living agent to move")
		return sdk.DirectionNone, false
	}
	head, ok := self.Head()
	if !ok {
		_ = level.Warn(logger).Log("msg", "own agent has no body yet")
		return sdk.DirectionNone, false
	}
	logger = log.With(logger, "head", head, "heading", self.Heading)

	var (
		dir    sdk.Direction
		issued bool
		reason string
	)
	switch {
	case !w.Board.HasGoal:
		reason = "no goal"
		dir, issued = e.panicMove(logger, w, self, head)
	case e.goalRotten(w, head):
		_ = level.Warn(logger).Log("msg", "goal is rotten, keeping away", "goal", w.Board.Goal)
		self.Path = nil
		reason = "rotten goal"
		dir, issued = e.panicMove(logger, w, self, head)
	default:
		e.plan(logger, w, self, head)
		if len(self.Path) == 0 {
			_ = level.Warn(logger).Log("msg", "no route to the goal", "goal", w.Board.Goal)
			reason = "no route"
			dir, issued = e.panicMove(logger, w, self, head)
			break
		}
		next := self.Path[0]
		self.Path = self.Path[1:]
		reason = "path"
		dir, issued = translate(self.Heading, head, next)
	}

	if !issued {
		_ = level.Error(logger).Log("msg", "no move available", "reason", reason, "took_ms", time.Since(start).Milliseconds())
		return sdk.DirectionNone, false
	}

	err := level.Info(logger).Log("msg", "making move", "move", dir, "reason", reason, "path_left", len(self.Path), "ahead", self.Ahead, "took_ms", time.Since(start).Milliseconds())
	if err != nil {
		_ = level.Error(logger).Log("msg", "error while logging", "err", err)
	}
	return dir, true
}

// goalRotten counts the goal's entry cells that are in bounds, free, and not the own
// head. Fewer than MinGoalEntries makes the goal unsafe for this tick.
func (e *Engine) goalRotten(w *world.World, head sdk.Coord) bool {
	entries := 0
	for _, c := range w.Board.Goal.Neighbors() {
		if w.Board.OutOfBounds(c) || w.Blocked(c) || c == head {
			continue
		}
		entries++
	}
	return entries < e.config.MinGoalEntries
}

// plan keeps the cached path while it still leads from the head to the goal through
// free cells, and searches a new one otherwise.
func (e *Engine) plan(logger log.Logger, w *world.World, self *world.Agent, head sdk.Coord) {
	path := self.Path
	if len(path) > 0 && path[0] == head {
		path = path[1:]
	}
	if reusable(w, head, path) {
		self.Path = path
		_ = level.Debug(logger).Log("msg", "reusing path", "path_left", len(path))
	} else {
		e.route(logger, w, self, true)
		e.lastSearch = true
	}

	if e.config.TrackRace && e.raceGoal != w.GoalVersion {
		e.race(logger, w)
	}
}

func reusable(w *world.World, head sdk.Coord, path []sdk.Coord) bool {
	if len(path) == 0 || !head.Adjacent(path[0]) || path[len(path)-1] != w.Board.Goal {
		return false
	}
	for _, c := range path {
		if w.Blocked(c) {
			return false
		}
	}
	return true
}

// route stores a fresh path from the agent's head to the goal, without the head.
func (e *Engine) route(logger log.Logger, w *world.World, agent *world.Agent, forSelf bool) {
	head, ok := agent.Head()
	if !ok {
		agent.Path = nil
		return
	}
	start := time.Now()
	g := grid.Build(grid.Input{
		Board:          w.Board,
		Obstacles:      w.Obstacles(),
		PredictedMoves: w.PredictedMoves(),
		Goal:           w.Board.Goal,
		ForSelf:        forSelf,
		BodyLength:     agent.Length(),
		Costs:          e.config.Costs,
	})
	path, err := e.finder.FindPath(g, head, w.Board.Goal, w.Strategy)
	if err != nil {
		if !errors.Is(err, pathfind.ErrBudgetExceeded) {
			_ = level.Error(logger).Log("msg", "path search failed", "agent", agent.Name, "err", err)
		} else {
			_ = level.Warn(logger).Log("msg", "path search gave up", "agent", agent.Name, "err", err)
		}
		path = nil
	}
	cost := pathfind.Cost(g, path)
	if len(path) > 0 {
		path = path[1:]
	}
	agent.Path = path
	agent.PathTime = time.Since(start)
	_ = level.Debug(logger).Log("msg", "path calculated", "agent", agent.Name, "length", len(path), "cost", cost, "strategy", w.Strategy, "took", agent.PathTime)
}

// race routes every living opponent to the goal and marks the agent with the strictly
// shortest route as ahead.
func (e *Engine) race(logger log.Logger, w *world.World) {
	e.raceGoal = w.GoalVersion
	for _, agent := range w.Opponents() {
		if agent.Alive {
			e.route(logger, w, agent, false)
		} else {
			agent.Path = nil
		}
	}

	const unreachable = int(^uint(0) >> 1)
	distance := func(a *world.Agent) int {
		if !a.Alive || len(a.Path) == 0 {
			return unreachable
		}
		return len(a.Path)
	}
	for _, agent := range w.Agents {
		d := distance(agent)
		agent.Ahead = d != unreachable
		for _, other := range w.Agents {
			if other != agent && distance(other) <= d {
				agent.Ahead = false
				break
			}
		}
		if agent.Ahead {
			_ = level.Info(logger).Log("msg", "agent ahead in the race", "agent", agent.Name, "distance", d)
		}
	}
}

// translate turns a target cell into a heading. It only ever turns onto the other
// axis or keeps going, so it can never reverse.
func translate(heading sdk.Direction, from, to sdk.Coord) (sdk.Direction, bool) {
	switch {
	case from.X != to.X && !heading.Horizontal():
		if from.X < to.X {
			return sdk.Direction_Right, true
		}
		return sdk.Direction_Left, true
	case from.Y != to.Y && !heading.Vertical():
		if from.Y < to.Y {
			return sdk.Direction_Down, true
		}
		return sdk.Direction_Up, true
	}
	return heading, heading.Valid()
}

func (e *Engine) panicMove(logger log.Logger, w *world.World, self *world.Agent, head sdk.Coord) (sdk.Direction, bool) {
	target, ok := panicTarget(w, head, self.Heading)
	if !ok {
		_ = level.Error(logger).Log("msg", "panic move found no escape")
		return sdk.DirectionNone, false
	}
	_ = level.Warn(logger).Log("msg", "panic move", "target", target)
	return translate(self.Heading, head, target)
}
