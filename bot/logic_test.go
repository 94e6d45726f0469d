package bot

import (
	"math/rand"
	"testing"

	"github.com/Cameron-Kurotori/karmes/grid"
	"github.com/Cameron-Kurotori/karmes/pathfind"
	"github.com/Cameron-Kurotori/karmes/sdk"
	"github.com/Cameron-Kurotori/karmes/world"
	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFinder struct {
	pathfind.Finder
	calls int
}

func (f *countingFinder) FindPath(g pathfind.Graph, start, goal sdk.Coord, strategy world.Strategy) ([]sdk.Coord, error) {
	f.calls++
	return f.Finder.FindPath(g, start, goal, strategy)
}

func newTestWorld(width, height int, names ...string) *world.World {
	w := world.New(names[0], log.NewNopLogger(), rand.New(rand.NewSource(7)))
	w.InitializeRound(width, height, names)
	return w
}

func snake(dir sdk.Direction, body ...sdk.Coord) sdk.AgentSnapshot {
	return sdk.AgentSnapshot{Alive: true, Body: body, Direction: dir, GrowLength: 100}
}

func applyTick(w *world.World, snaps ...sdk.AgentSnapshot) {
	w.ApplyTick(snaps, 100)
	w.ComputePredictedMoves(w.SelfIndex)
}

func TestRottenGoalSkipsSearch(t *testing.T) {
	w := newTestWorld(10, 10, "me", "wall")
	w.SetGoal(sdk.Coord{X: 5, Y: 5})
	applyTick(w,
		snake(sdk.Direction_Right, sdk.Coord{X: 0, Y: 0}),
		// blocks (4,5), (5,4) and (6,5); only (5,6) stays open
		snake(sdk.Direction_Down, sdk.Coord{X: 4, Y: 5}, sdk.Coord{X: 4, Y: 4}, sdk.Coord{X: 5, Y: 4}, sdk.Coord{X: 6, Y: 4}, sdk.Coord{X: 6, Y: 5}),
	)
	w.Self().Path = []sdk.Coord{{X: 1, Y: 0}, {X: 2, Y: 0}}

	finder := &countingFinder{Finder: pathfind.Search{}}
	engine := NewEngine(DefaultConfig(), finder)

	assert.True(t, engine.goalRotten(w, sdk.Coord{X: 0, Y: 0}))
	dir, ok := engine.Decide(w)
	require.True(t, ok)
	assert.Equal(t, sdk.Direction_Right, dir)
	assert.Equal(t, 0, finder.calls)
	assert.False(t, engine.Searched())
	assert.Empty(t, w.Self().Path)
}

func TestRottenGoalEntries(t *testing.T) {
	type testCase struct {
		name   string
		goal   sdk.Coord
		head   sdk.Coord
		rotten bool
	}

	test := func(tc testCase) func(*testing.T) {
		return func(t *testing.T) {
			w := newTestWorld(6, 6, "me")
			w.SetGoal(tc.goal)
			applyTick(w, snake(sdk.Direction_Up, tc.head))
			assert.Equal(t, tc.rotten, NewEngine(DefaultConfig(), nil).goalRotten(w, tc.head))
		}
	}

	testCases := []testCase{
		{"open", sdk.Coord{X: 3, Y: 3}, sdk.Coord{X: 0, Y: 0}, false},
		{"corner", sdk.Coord{X: 0, Y: 0}, sdk.Coord{X: 4, Y: 4}, false},
		{"corner-with-head", sdk.Coord{X: 0, Y: 0}, sdk.Coord{X: 1, Y: 0}, true},
		{"edge-with-head", sdk.Coord{X: 0, Y: 3}, sdk.Coord{X: 1, Y: 3}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, test(tc))
	}
}

func TestTranslateNeverReverses(t *testing.T) {
	from := sdk.Coord{X: 5, Y: 5}
	for _, heading := range sdk.Directions {
		for dx := -2; dx <= 2; dx++ {
			for dy := -2; dy <= 2; dy++ {
				to := from.Add(sdk.Coord{X: dx, Y: dy})
				dir, ok := translate(heading, from, to)
				assert.True(t, ok)
				assert.NotEqual(t, heading.Opposite(), dir, "heading %s to %v", heading, to)
			}
		}
	}
}

func TestTranslate(t *testing.T) {
	from := sdk.Coord{X: 3, Y: 3}

	type testCase struct {
		name     string
		heading  sdk.Direction
		to       sdk.Coord
		expected sdk.Direction
	}
	test := func(tc testCase) func(*testing.T) {
		return func(t *testing.T) {
			dir, ok := translate(tc.heading, from, tc.to)
			assert.True(t, ok)
			assert.Equal(t, tc.expected, dir)
		}
	}

	testCases := []testCase{
		{"turn-right", sdk.Direction_Up, sdk.Coord{X: 4, Y: 3}, sdk.Direction_Right},
		{"turn-left", sdk.Direction_Down, sdk.Coord{X: 2, Y: 3}, sdk.Direction_Left},
		{"turn-down", sdk.Direction_Left, sdk.Coord{X: 3, Y: 4}, sdk.Direction_Down},
		{"turn-up", sdk.Direction_Right, sdk.Coord{X: 3, Y: 2}, sdk.Direction_Up},
		{"straight", sdk.Direction_Right, sdk.Coord{X: 4, Y: 3}, sdk.Direction_Right},
		{"behind-keeps-going", sdk.Direction_Right, sdk.Coord{X: 2, Y: 3}, sdk.Direction_Right},
		{"x-first", sdk.Direction_Up, sdk.Coord{X: 5, Y: 5}, sdk.Direction_Right},
	}
	for _, tc := range testCases {
		t.Run(tc.name, test(tc))
	}

	_, ok := translate(sdk.DirectionNone, from, from)
	assert.False(t, ok)
}

func TestPanicPicksOnlyFreeRegion(t *testing.T) {
	w := newTestWorld(10, 10, "me", "east", "west")
	applyTick(w,
		snake(sdk.Direction_Up, sdk.Coord{X: 5, Y: 5}, sdk.Coord{X: 5, Y: 6}, sdk.Coord{X: 5, Y: 7}),
		snake(sdk.Direction_Left, sdk.Coord{X: 6, Y: 5}, sdk.Coord{X: 7, Y: 5}, sdk.Coord{X: 8, Y: 5}),
		snake(sdk.Direction_Right, sdk.Coord{X: 4, Y: 5}, sdk.Coord{X: 3, Y: 5}, sdk.Coord{X: 2, Y: 5}),
	)

	target, ok := panicTarget(w, sdk.Coord{X: 5, Y: 5}, sdk.Direction_Up)
	require.True(t, ok)
	assert.Equal(t, sdk.Coord{X: 5, Y: 4}, target)

	engine := NewEngine(DefaultConfig(), nil)
	dir, ok := engine.panicMove(log.NewNopLogger(), w, w.Self(), sdk.Coord{X: 5, Y: 5})
	require.True(t, ok)
	assert.Equal(t, sdk.Direction_Up, dir)
}

func TestPanicRanksByFreeCells(t *testing.T) {
	w := newTestWorld(10, 10, "me", "other")
	// head in the top row: up is out of the board, the body blocks left
	applyTick(w,
		snake(sdk.Direction_Right, sdk.Coord{X: 4, Y: 0}, sdk.Coord{X: 3, Y: 0}),
		snake(sdk.Direction_Up, sdk.Coord{X: 6, Y: 1}, sdk.Coord{X: 6, Y: 2}, sdk.Coord{X: 7, Y: 2}),
	)

	regions := escapeRegions(sdk.Coord{X: 4, Y: 0})
	require.Len(t, regions, 4)
	for i, dir := range sdk.Directions {
		assert.Equal(t, dir, regions[i].dir)
		assert.Len(t, regions[i].cells, 6)
		assert.Equal(t, sdk.Coord{X: 4, Y: 0}.Move(dir), regions[i].cells[0])
	}

	// right keeps three cells next to the other agent; down keeps all six
	target, ok := panicTarget(w, sdk.Coord{X: 4, Y: 0}, sdk.Direction_Right)
	require.True(t, ok)
	assert.Equal(t, sdk.Coord{X: 4, Y: 1}, target)
}

func TestNoEscapeIssuesNothing(t *testing.T) {
	w := newTestWorld(3, 3, "me", "other")
	w.SetGoal(sdk.Coord{X: 2, Y: 2})
	applyTick(w,
		sdk.AgentSnapshot{Alive: true, Body: []sdk.Coord{{X: 1, Y: 1}, {X: 1, Y: 2}}, Direction: sdk.Direction_Up, GrowLength: 2},
		snake(sdk.Direction_Down, sdk.Coord{X: 0, Y: 1}, sdk.Coord{X: 0, Y: 0}, sdk.Coord{X: 1, Y: 0}, sdk.Coord{X: 2, Y: 0}, sdk.Coord{X: 2, Y: 1}),
	)

	_, ok := panicTarget(w, sdk.Coord{X: 1, Y: 1}, sdk.Direction_Up)
	assert.False(t, ok)

	_, ok = NewEngine(DefaultConfig(), nil).Decide(w)
	assert.False(t, ok)
}

func TestPanicIgnoresRegionBehind(t *testing.T) {
	w := newTestWorld(10, 10, "me", "other")
	// a single cell body leaves the cell behind the head free
	applyTick(w,
		snake(sdk.Direction_Left, sdk.Coord{X: 4, Y: 5}),
		snake(sdk.Direction_Down, sdk.Coord{X: 3, Y: 5}, sdk.Coord{X: 3, Y: 4}, sdk.Coord{X: 3, Y: 3}, sdk.Coord{X: 4, Y: 3}),
	)

	target, ok := panicTarget(w, sdk.Coord{X: 4, Y: 5}, sdk.Direction_Left)
	require.True(t, ok)
	assert.Equal(t, sdk.Coord{X: 4, Y: 6}, target)

	dir, ok := NewEngine(DefaultConfig(), nil).Decide(w)
	require.True(t, ok)
	assert.Equal(t, sdk.Direction_Down, dir)
	assert.False(t, w.Blocked(sdk.Coord{X: 4, Y: 5}.Move(dir)))
}

func TestPanicStepIsAlwaysFree(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 200; i++ {
		w := newTestWorld(8, 8, "me", "clutter")
		head := sdk.Coord{X: rng.Intn(8), Y: rng.Intn(8)}
		heading := sdk.Directions[rng.Intn(len(sdk.Directions))]

		clutter := []sdk.Coord{}
		for len(clutter) < 16 {
			c := sdk.Coord{X: rng.Intn(8), Y: rng.Intn(8)}
			if c != head && !sdk.CoordSliceContains(c, clutter) {
				clutter = append(clutter, c)
			}
		}
		applyTick(w, snake(heading, head), snake(sdk.Direction_Up, clutter...))

		dir, ok := NewEngine(DefaultConfig(), nil).panicMove(log.NewNopLogger(), w, w.Self(), head)
		if !ok {
			continue
		}
		next := head.Move(dir)
		assert.NotEqual(t, heading.Opposite(), dir)
		assert.False(t, w.Board.OutOfBounds(next), "head %v heading %s moved %s", head, heading, dir)
		assert.False(t, w.Blocked(next), "head %v heading %s moved %s", head, heading, dir)
	}
}

func TestPathReusePolicy(t *testing.T) {
	w := newTestWorld(10, 10, "me", "other")
	w.SetGoal(sdk.Coord{X: 8, Y: 5})
	finder := &countingFinder{Finder: pathfind.Search{}}
	engine := NewEngine(DefaultConfig(), finder)

	opponent := snake(sdk.Direction_Up, sdk.Coord{X: 9, Y: 0}, sdk.Coord{X: 9, Y: 1})

	applyTick(w, snake(sdk.Direction_Right, sdk.Coord{X: 1, Y: 5}), opponent)
	dir, ok := engine.Decide(w)
	require.True(t, ok)
	assert.Equal(t, sdk.Direction_Right, dir)
	assert.True(t, engine.Searched())
	assert.Equal(t, []sdk.Coord{{X: 3, Y: 5}, {X: 4, Y: 5}, {X: 5, Y: 5}, {X: 6, Y: 5}, {X: 7, Y: 5}, {X: 8, Y: 5}}, w.Self().Path)
	assert.Equal(t, 2, finder.calls, "own route plus the opponent's race route")
	assert.True(t, w.Agents[1].Ahead)
	assert.False(t, w.Self().Ahead)

	// moved along the path: reuse it
	applyTick(w, snake(sdk.Direction_Right, sdk.Coord{X: 2, Y: 5}, sdk.Coord{X: 1, Y: 5}), opponent)
	dir, ok = engine.Decide(w)
	require.True(t, ok)
	assert.Equal(t, sdk.Direction_Right, dir)
	assert.False(t, engine.Searched())
	assert.Equal(t, 2, finder.calls)
	assert.Equal(t, []sdk.Coord{{X: 4, Y: 5}, {X: 5, Y: 5}, {X: 6, Y: 5}, {X: 7, Y: 5}, {X: 8, Y: 5}}, w.Self().Path)

	// an agent now sits on the cached path: recompute around it
	applyTick(w,
		snake(sdk.Direction_Right, sdk.Coord{X: 3, Y: 5}, sdk.Coord{X: 2, Y: 5}),
		snake(sdk.Direction_Down, sdk.Coord{X: 6, Y: 5}, sdk.Coord{X: 6, Y: 4}, sdk.Coord{X: 6, Y: 3}),
	)
	_, ok = engine.Decide(w)
	require.True(t, ok)
	assert.True(t, engine.Searched())
	assert.Equal(t, 3, finder.calls)
	assert.NotContains(t, w.Self().Path, sdk.Coord{X: 6, Y: 5})
	assert.Equal(t, sdk.Coord{X: 8, Y: 5}, w.Self().Path[len(w.Self().Path)-1])

	// a new goal invalidates the cached path
	w.SetGoal(sdk.Coord{X: 3, Y: 8})
	applyTick(w,
		snake(sdk.Direction_Down, sdk.Coord{X: 3, Y: 6}, sdk.Coord{X: 3, Y: 5}),
		snake(sdk.Direction_Down, sdk.Coord{X: 6, Y: 6}, sdk.Coord{X: 6, Y: 5}, sdk.Coord{X: 6, Y: 4}),
	)
	dir, ok = engine.Decide(w)
	require.True(t, ok)
	assert.True(t, engine.Searched())
	assert.Equal(t, sdk.Direction_Down, dir)
	assert.Equal(t, []sdk.Coord{{X: 3, Y: 8}}, w.Self().Path)
	assert.True(t, w.Self().Ahead)
}

func TestNoRouteFallsBackToPanic(t *testing.T) {
	w := newTestWorld(10, 10, "me", "other")
	w.SetGoal(sdk.Coord{X: 8, Y: 8})
	// the opponent walls off the right side of the board
	wall := []sdk.Coord{}
	for y := 9; y >= 0; y-- {
		wall = append(wall, sdk.Coord{X: 5, Y: y})
	}
	applyTick(w,
		snake(sdk.Direction_Down, sdk.Coord{X: 2, Y: 2}, sdk.Coord{X: 2, Y: 1}),
		snake(sdk.Direction_Up, wall...),
	)

	engine := NewEngine(DefaultConfig(), nil)
	dir, ok := engine.Decide(w)
	require.True(t, ok)
	assert.True(t, engine.Searched())
	assert.Empty(t, w.Self().Path)
	assert.NotEqual(t, sdk.Direction_Up, dir)
}

func TestSearchBudgetFallsBackToPanic(t *testing.T) {
	w := newTestWorld(20, 20, "me")
	w.SetGoal(sdk.Coord{X: 18, Y: 18})
	applyTick(w, snake(sdk.Direction_Down, sdk.Coord{X: 1, Y: 1}, sdk.Coord{X: 1, Y: 0}))

	config := DefaultConfig()
	config.MaxExpansions = 2
	engine := NewEngine(config, nil)
	dir, ok := engine.Decide(w)
	require.True(t, ok)
	assert.Empty(t, w.Self().Path)
	assert.NotEqual(t, sdk.Direction_Up, dir)
}

func TestDeadOrMissingSelf(t *testing.T) {
	engine := NewEngine(DefaultConfig(), nil)

	w := world.New("nobody", log.NewNopLogger(), nil)
	w.InitializeRound(5, 5, []string{"a"})
	_, ok := engine.Decide(w)
	assert.False(t, ok)

	w = newTestWorld(5, 5, "me")
	applyTick(w, sdk.AgentSnapshot{Alive: false, Body: []sdk.Coord{{X: 1, Y: 1}}, Direction: sdk.Direction_Up})
	_, ok = engine.Decide(w)
	assert.False(t, ok)
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, grid.DefaultCosts(), config.Costs)
	assert.Equal(t, 2, config.MinGoalEntries)
	assert.Equal(t, 4096, config.MaxExpansions)
}
