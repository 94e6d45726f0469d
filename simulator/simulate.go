package main

import (
	"fmt"
	"math/rand"

	"github.com/Cameron-Kurotori/karmes/sdk"
)

// rules of a simulated round
type rules struct {
	Width       int
	Height      int
	StartLength int
	GrowBy      int
	MaxTicks    int
}

func defaultRules() rules {
	return rules{
		Width:       20,
		Height:      20,
		StartLength: 3,
		GrowBy:      2,
		MaxTicks:    500,
	}
}

type snake struct {
	name       string
	body       []sdk.Coord
	heading    sdk.Direction
	next       sdk.Direction
	growLength int
	alive      bool
}

func (s *snake) snapshot() sdk.AgentSnapshot {
	return sdk.AgentSnapshot{
		Alive:      s.alive,
		Body:       append([]sdk.Coord{}, s.body...),
		Direction:  s.heading,
		GrowLength: s.growLength,
	}
}

// match is one simulated round. It is driven by a single goroutine.
type match struct {
	rules  rules
	snakes []*snake
	goal   sdk.Coord
	tick   int
	rng    *rand.Rand
}

func newNonCollidingHead(r rules, rng *rand.Rand, padding int, snakes []*snake) sdk.Coord {
	for attempt := 0; ; attempt++ {
		c := sdk.Coord{X: 1 + rng.Intn(r.Width-2), Y: 1 + rng.Intn(r.Height-2)}
		ok := true
		for _, s := range snakes {
			if s.body[0].Manhattan(c) < padding {
				ok = false
				break
			}
		}
		if ok || attempt > 100 {
			return c
		}
	}
}

func newMatch(r rules, names []string, rng *rand.Rand) (*match, error) {
	if r.Width < 3 || r.Height < 3 {
		return nil, fmt.Errorf("board %dx%d is too small", r.Width, r.Height)
	}
	m := &match{rules: r, rng: rng}
	padding := 5
	for _, name := range names {
		head := newNonCollidingHead(r, rng, padding, m.snakes)
		m.snakes = append(m.snakes, &snake{
			name:       name,
			body:       []sdk.Coord{head},
			heading:    sdk.Directions[rng.Intn(len(sdk.Directions))],
			growLength: r.StartLength,
			alive:      true,
		})
	}
	for _, s := range m.snakes {
		s.next = s.heading
	}
	m.placeGoal()
	return m, nil
}

func (m *match) occupied(c sdk.Coord) bool {
	for _, s := range m.snakes {
		if sdk.CoordSliceContains(c, s.body) {
			return true
		}
	}
	return false
}

func (m *match) outOfBounds(c sdk.Coord) bool {
	return c.X < 0 || c.Y < 0 || c.X >= m.rules.Width || c.Y >= m.rules.Height
}

func (m *match) placeGoal() {
	free := []sdk.Coord{}
	for y := 0; y < m.rules.Height; y++ {
		for x := 0; x < m.rules.Width; x++ {
			c := sdk.Coord{X: x, Y: y}
			if !m.occupied(c) {
				free = append(free, c)
			}
		}
	}
	if len(free) > 0 {
		m.goal = free[m.rng.Intn(len(free))]
	}
}

// control records the requested heading for the next step. Reversal is ignored.
func (m *match) control(index int, dir sdk.Direction) {
	if index < 0 || index >= len(m.snakes) || !dir.Valid() {
		return
	}
	s := m.snakes[index]
	if dir == s.heading.Opposite() {
		return
	}
	s.next = dir
}

// step advances every living snake one cell and resolves collisions. It reports
// whether the goal was eaten and moved.
func (m *match) step() bool {
	m.tick++
	for _, s := range m.snakes {
		if !s.alive {
			continue
		}
		s.heading = s.next
		s.body = append([]sdk.Coord{s.body[0].Move(s.heading)}, s.body...)
		if len(s.body) > s.growLength {
			s.body = s.body[:len(s.body)-1]
		}
	}

	dead := map[*snake]bool{}
	for _, s := range m.snakes {
		if !s.alive {
			continue
		}
		head := s.body[0]
		if m.outOfBounds(head) {
			dead[s] = true
			continue
		}
		for _, other := range m.snakes {
			if !other.alive {
				continue
			}
			body := other.body
			if other == s {
				body = body[1:]
			} else if other.body[0] == head {
				dead[s] = true
				break
			}
			if sdk.CoordSliceContains(head, body) {
				dead[s] = true
				break
			}
		}
	}

	eaten := false
	for _, s := range m.snakes {
		if !s.alive {
			continue
		}
		if dead[s] {
			s.alive = false
			s.body = nil
			continue
		}
		if s.body[0] == m.goal {
			s.growLength += m.rules.GrowBy
			eaten = true
		}
	}
	if eaten {
		m.placeGoal()
	}
	return eaten
}

func (m *match) alive() int {
	n := 0
	for _, s := range m.snakes {
		if s.alive {
			n++
		}
	}
	return n
}

func (m *match) done() bool {
	if m.tick >= m.rules.MaxTicks {
		return true
	}
	if len(m.snakes) > 1 {
		return m.alive() <= 1
	}
	return m.alive() == 0
}

func (m *match) startMessage() (sdk.Message, error) {
	players := make([]sdk.Player, len(m.snakes))
	for i, s := range m.snakes {
		players[i] = sdk.Player{Name: s.name}
	}
	return sdk.NewMessage(sdk.MessageStart, sdk.RoundStart{
		Players: players,
		Level:   sdk.Level{Width: m.rules.Width, Height: m.rules.Height},
	})
}

func (m *match) appleMessage() (sdk.Message, error) {
	return sdk.NewMessage(sdk.MessageApple, m.goal)
}

func (m *match) positions() sdk.Positions {
	snaps := make([]sdk.AgentSnapshot, len(m.snakes))
	for i, s := range m.snakes {
		snaps[i] = s.snapshot()
	}
	return sdk.Positions{Snakes: snaps, TimeLeft: m.rules.MaxTicks - m.tick}
}

func (m *match) positionsMessage() (sdk.Message, error) {
	return sdk.NewMessage(sdk.MessagePositions, m.positions())
}

// winner is the longest living snake, empty on a draw.
func (m *match) winner() string {
	best, bestLen, tie := "", -1, false
	for _, s := range m.snakes {
		if !s.alive {
			continue
		}
		switch {
		case len(s.body) > bestLen:
			best, bestLen, tie = s.name, len(s.body), false
		case len(s.body) == bestLen:
			tie = true
		}
	}
	if tie {
		return ""
	}
	return best
}
