// Package pathfind finds cheapest 4-directional routes over a weighted grid.
package pathfind

import (
	"container/heap"
	"errors"

	"github.com/Cameron-Kurotori/karmes/sdk"
	"github.com/Cameron-Kurotori/karmes/world"
)

// ErrBudgetExceeded is returned when a search expands more cells than allowed.
var ErrBudgetExceeded = errors.New("path search exceeded its expansion budget")

// Graph is the weighted map searched. Cost is the price of entering a cell; Neighbors
// returns only walkable orthogonal neighbours.
type Graph interface {
	Neighbors(c sdk.Coord) []sdk.Coord
	Cost(c sdk.Coord) int
}

// Finder returns the cheapest path from start to goal inclusive of both ends, or an
// empty path when goal is unreachable.
type Finder interface {
	FindPath(g Graph, start, goal sdk.Coord, strategy world.Strategy) ([]sdk.Coord, error)
}

// Search is a best-first weighted search: uniform-cost when the strategy asks for it,
// A* with the strategy's heuristic otherwise. Both heuristics never overestimate since
// every cell costs at least one, so the returned path is cheapest either way.
type Search struct {
	// MaxExpansions caps the number of cells taken off the frontier, 0 means unbounded.
	MaxExpansions int
}

var _ Finder = Search{}

type node struct {
	coord    sdk.Coord
	cost     int
	priority float64
	seq      int
	index    int
}

type frontier []*node

func (f frontier) Len() int { return len(f) }

func (f frontier) Less(i, j int) bool {
	if f[i].priority == f[j].priority {
		return f[i].seq < f[j].seq
	}
	return f[i].priority < f[j].priority
}

func (f frontier) Swap(i, j int) {
	f[i], f[j] = f[j], f[i]
	f[i].index = i
	f[j].index = j
}

func (f *frontier) Push(x interface{}) {
	n := x.(*node)
	n.index = len(*f)
	*f = append(*f, n)
}

func (f *frontier) Pop() interface{} {
	old := *f
	n := old[len(old)-1]
	old[len(old)-1] = nil
	n.index = -1
	*f = old[:len(old)-1]
	return n
}

func estimate(strategy world.Strategy, from, to sdk.Coord) float64 {
	if strategy.Algorithm != world.AStar {
		return 0
	}
	if strategy.Heuristic == world.Euclidean {
		return from.Euclidean(to)
	}
	return float64(from.Manhattan(to))
}

func (s Search) FindPath(g Graph, start, goal sdk.Coord, strategy world.Strategy) ([]sdk.Coord, error) {
	if start == goal {
		return []sdk.Coord{start}, nil
	}

	parents := map[sdk.Coord]sdk.Coord{}
	best := map[sdk.Coord]int{start: 0}
	closed := map[sdk.Coord]bool{}

	seq := 0
	open := &frontier{}
	heap.Push(open, &node{coord: start, priority: estimate(strategy, start, goal)})

	expanded := 0
	for open.Len() > 0 {
		curr := heap.Pop(open).(*node)
		if closed[curr.coord] {
			continue
		}
		if curr.coord == goal {
			return reconstruct(parents, start, goal), nil
		}
		closed[curr.coord] = true

		expanded++
		if s.MaxExpansions > 0 && expanded > s.MaxExpansions {
			return nil, ErrBudgetExceeded
		}

		for _, next := range g.Neighbors(curr.coord) {
			if closed[next] {
				continue
			}
			cost := curr.cost + g.Cost(next)
			if known, ok := best[next]; ok && known <= cost {
				continue
			}
			best[next] = cost
			parents[next] = curr.coord
			seq++
			heap.Push(open, &node{
				coord:    next,
				cost:     cost,
				priority: float64(cost) + estimate(strategy, next, goal),
				seq:      seq,
			})
		}
	}
	return nil, nil
}

func reconstruct(parents map[sdk.Coord]sdk.Coord, start, goal sdk.Coord) []sdk.Coord {
	path := []sdk.Coord{goal}
	for c := goal; c != start; {
		c = parents[c]
		path = append(path, c)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// Cost sums the entry cost of every cell after the first.
func Cost(g Graph, path []sdk.Coord) int {
	total := 0
	for i := 1; i < len(path); i++ {
		total += g.Cost(path[i])
	}
	return total
}
