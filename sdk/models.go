package sdk

import (
	"encoding/json"
	"fmt"
	"math"
)

// Coord is a board cell. (0,0) is the top-left corner, X grows to the right and Y grows
// downwards.
type Coord struct {
	X int
	Y int
}

// MarshalJSON encodes the coordinate as the server does: [x, y]
func (c Coord) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{c.X, c.Y})
}

func (c *Coord) UnmarshalJSON(data []byte) error {
	var pair []int
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("decoding coordinate: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("decoding coordinate: expected 2 values, got %d", len(pair))
	}
	c.X, c.Y = pair[0], pair[1]
	return nil
}

func (c Coord) String() string {
	return fmt.Sprintf("[%d,%d]", c.X, c.Y)
}

// Add gets the sum of the individual axis of this coordinate and another: {x1 + x2, y1 + y2}
func (c Coord) Add(other Coord) Coord {
	return Coord{c.X + other.X, c.Y + other.Y}
}

// Reverse reverses the coordinate: {-1 * x, -1 * y}
func (c Coord) Reverse() Coord {
	return Coord{-c.X, -c.Y}
}

// Move returns the neighbouring cell in the given direction.
func (c Coord) Move(dir Direction) Coord {
	return c.Add(dir.Vector())
}

// Adjacent reports whether other is one orthogonal step away.
func (c Coord) Adjacent(other Coord) bool {
	return c.Manhattan(other) == 1
}

// Neighbors returns the four orthogonal neighbours in Directions order.
func (c Coord) Neighbors() []Coord {
	out := make([]Coord, 0, len(Directions))
	for _, dir := range Directions {
		out = append(out, c.Move(dir))
	}
	return out
}

// Euclidean calculates the euclidean (actual) distance: ((x2 - x1)^2) + (y2 - y1)^2)^0.5
func (c Coord) Euclidean(other Coord) float64 {
	diff := c.Add(other.Reverse())
	return math.Sqrt(math.Pow(float64(diff.X), 2) + math.Pow(float64(diff.Y), 2))
}

// Manhattan calculates the manhattan distance: |x2 - x1| + |y2 - y1|
func (c Coord) Manhattan(other Coord) int {
	diff := c.Add(other.Reverse())
	return int(math.Abs(float64(diff.X)) + math.Abs(float64(diff.Y)))
}

// CoordSliceContains returns back whether elem is contained in slice
func CoordSliceContains(elem Coord, slice []Coord) bool {
	for _, coord := range slice {
		if elem == coord {
			return true
		}
	}
	return false
}

// Direction is a heading as the server numbers it.
type Direction int

const (
	DirectionNone Direction = iota
	Direction_Up
	Direction_Down
	Direction_Left
	Direction_Right
)

// Directions is the fixed enumeration order used wherever ties are broken: up, right,
// down, left.
var Directions = []Direction{Direction_Up, Direction_Right, Direction_Down, Direction_Left}

var directionToVector = map[Direction]Coord{
	Direction_Up:    {0, -1},
	Direction_Down:  {0, 1},
	Direction_Left:  {-1, 0},
	Direction_Right: {1, 0},
}

var directionNames = map[Direction]string{
	Direction_Up:    "up",
	Direction_Down:  "down",
	Direction_Left:  "left",
	Direction_Right: "right",
}

func (d Direction) Valid() bool {
	_, ok := directionToVector[d]
	return ok
}

// Vector is the unit step of the direction, zero for an unknown direction.
func (d Direction) Vector() Coord {
	return directionToVector[d]
}

func (d Direction) Opposite() Direction {
	switch d {
	case Direction_Up:
		return Direction_Down
	case Direction_Down:
		return Direction_Up
	case Direction_Left:
		return Direction_Right
	case Direction_Right:
		return Direction_Left
	}
	return DirectionNone
}

// Horizontal reports whether the direction moves along the X axis.
func (d Direction) Horizontal() bool {
	return d == Direction_Left || d == Direction_Right
}

// Vertical reports whether the direction moves along the Y axis.
func (d Direction) Vertical() bool {
	return d == Direction_Up || d == Direction_Down
}

// Perpendicular returns the unit vector rotated a quarter turn.
func (d Direction) Perpendicular() Coord {
	v := d.Vector()
	return Coord{-v.Y, v.X}
}

func (d Direction) String() string {
	if name, ok := directionNames[d]; ok {
		return name
	}
	return fmt.Sprintf("direction(%d)", int(d))
}

// DirectionBetween returns the direction of a single orthogonal step from -> to.
func DirectionBetween(from, to Coord) (Direction, bool) {
	diff := to.Add(from.Reverse())
	for dir, vec := range directionToVector {
		if vec == diff {
			return dir, true
		}
	}
	return DirectionNone, false
}
