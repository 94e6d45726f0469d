// Package grid turns the world state into a weighted, search ready map.
package grid

import (
	"github.com/Cameron-Kurotori/karmes/sdk"
	"github.com/Cameron-Kurotori/karmes/world"
)

// Costs are the traversal costs assigned while building a grid.
type Costs struct {
	Base          int
	BaseEdge      int
	PredictedMove int
}

func DefaultCosts() Costs {
	return Costs{
		Base:          1,
		BaseEdge:      2,
		PredictedMove: 5,
	}
}

// Input is everything Build needs. ForSelf adds the predicted opponent moves as a soft
// cost; grids built for opponents ignore them.
type Input struct {
	Board          world.Board
	Obstacles      []sdk.Coord
	PredictedMoves []sdk.Coord
	Goal           sdk.Coord
	ForSelf        bool
	BodyLength     int
	Costs          Costs
}

// Grid is a 4-connected weighted map. Cost is the price of entering a cell.
type Grid struct {
	Width    int
	Height   int
	walkable []bool
	cost     []int
}

func New(width, height, cost int) *Grid {
	g := &Grid{
		Width:    width,
		Height:   height,
		walkable: make([]bool, width*height),
		cost:     make([]int, width*height),
	}
	for i := range g.walkable {
		g.walkable[i] = true
		g.cost[i] = cost
	}
	return g
}

// Build initializes every cell at base cost, raises the border by the edge cost (longer
// agents stay further from the walls), forces the goal back to base cost, adds the
// predicted move deterrent for self (never lowering a cell's cost), and finally blocks every obstacle except the goal.
func Build(in Input) *Grid {
	g := New(in.Board.Width, in.Board.Height, in.Costs.Base)

	edgeCost := in.Costs.BaseEdge + in.BodyLength/2
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			c := sdk.Coord{X: x, Y: y}
			if in.Board.OnEdge(c) {
				g.SetCost(c, edgeCost)
			}
		}
	}

	g.SetCost(in.Goal, in.Costs.Base)

	if in.ForSelf {
		for _, c := range in.PredictedMoves {
			if c != in.Goal && g.Cost(c) < in.Costs.PredictedMove {
				g.SetCost(c, in.Costs.PredictedMove)
			}
		}
	}

	for _, c := range in.Obstacles {
		if c != in.Goal {
			g.SetWalkable(c, false)
		}
	}
	g.SetWalkable(in.Goal, true)

	return g
}

func (g *Grid) InBounds(c sdk.Coord) bool {
	return c.X >= 0 && c.Y >= 0 && c.X < g.Width && c.Y < g.Height
}

func (g *Grid) index(c sdk.Coord) int {
	return c.Y*g.Width + c.X
}

// Walkable is false out of bounds.
func (g *Grid) Walkable(c sdk.Coord) bool {
	return g.InBounds(c) && g.walkable[g.index(c)]
}

func (g *Grid) SetWalkable(c sdk.Coord, walkable bool) {
	if g.InBounds(c) {
		g.walkable[g.index(c)] = walkable
	}
}

// Cost of entering c, zero out of bounds.
func (g *Grid) Cost(c sdk.Coord) int {
	if !g.InBounds(c) {
		return 0
	}
	return g.cost[g.index(c)]
}

func (g *Grid) SetCost(c sdk.Coord, cost int) {
	if g.InBounds(c) {
		g.cost[g.index(c)] = cost
	}
}

// Neighbors returns the walkable orthogonal neighbours of c.
func (g *Grid) Neighbors(c sdk.Coord) []sdk.Coord {
	out := make([]sdk.Coord, 0, 4)
	for _, n := range c.Neighbors() {
		if g.Walkable(n) {
			out = append(out, n)
		}
	}
	return out
}
