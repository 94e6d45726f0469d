package world

import (
	"fmt"
	"math/rand"
)

// Algorithm selects the weighted search used for a round.
type Algorithm int

const (
	UniformCost Algorithm = iota
	AStar
)

func (a Algorithm) String() string {
	switch a {
	case UniformCost:
		return "uniform-cost"
	case AStar:
		return "a-star"
	}
	return fmt.Sprintf("algorithm(%d)", int(a))
}

// Heuristic selects the distance estimate used by AStar.
type Heuristic int

const (
	Manhattan Heuristic = iota
	Euclidean
)

func (h Heuristic) String() string {
	switch h {
	case Manhattan:
		return "manhattan"
	case Euclidean:
		return "euclidean"
	}
	return fmt.Sprintf("heuristic(%d)", int(h))
}

// Strategy is the search configuration of the current round. It is picked at random
// for variety whenever the goal moves and handed by value to the path finder.
type Strategy struct {
	Algorithm Algorithm
	Heuristic Heuristic
}

func (s Strategy) String() string {
	return s.Algorithm.String() + "/" + s.Heuristic.String()
}

var (
	algorithms = []Algorithm{UniformCost, AStar}
	heuristics = []Heuristic{Manhattan, Euclidean}
)

func randomStrategy(rng *rand.Rand) Strategy {
	return Strategy{
		Algorithm: algorithms[rng.Intn(len(algorithms))],
		Heuristic: heuristics[rng.Intn(len(heuristics))],
	}
}
