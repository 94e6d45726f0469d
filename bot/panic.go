package bot

import (
	"sort"

	"github.com/Cameron-Kurotori/karmes/sdk"
	"github.com/Cameron-Kurotori/karmes/world"
)

type escapeRegion struct {
	dir   sdk.Direction
	cells []sdk.Coord
}

// escapeRegions builds the 2x3 / 3x2 block in front of the head for every direction.
// The first cell is always the one next to the head.
func escapeRegions(head sdk.Coord) []escapeRegion {
	regions := make([]escapeRegion, 0, len(sdk.Directions))
	for _, dir := range sdk.Directions {
		step := dir.Vector()
		side := dir.Perpendicular()
		near := head.Add(step)
		far := near.Add(step)
		regions = append(regions, escapeRegion{
			dir: dir,
			cells: []sdk.Coord{
				near,
				near.Add(side.Reverse()),
				far.Add(side.Reverse()),
				far,
				far.Add(side),
				near.Add(side),
			},
		})
	}
	return regions
}

// panicTarget picks the escape region with the most free cells and returns its first
// free cell. The region behind the heading and regions whose nearest cell is blocked
// are dropped whole; ties keep the up, right, down, left order.
func panicTarget(w *world.World, head sdk.Coord, heading sdk.Direction) (sdk.Coord, bool) {
	free := func(c sdk.Coord) bool {
		return !w.Board.OutOfBounds(c) && !w.Blocked(c)
	}

	candidates := []escapeRegion{}
	for _, region := range escapeRegions(head) {
		if region.dir == heading.Opposite() || !free(region.cells[0]) {
			continue
		}
		cells := region.cells[:0:0]
		for _, c := range region.cells {
			if free(c) {
				cells = append(cells, c)
			}
		}
		candidates = append(candidates, escapeRegion{dir: region.dir, cells: cells})
	}
	if len(candidates) == 0 {
		return sdk.Coord{}, false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return len(candidates[i].cells) > len(candidates[j].cells)
	})
	return candidates[0].cells[0], true
}
