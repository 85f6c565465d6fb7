package world

// Heuristic estimates the remaining cost from a cell to the search target.
// It only orders the frontier; a heuristic that overestimates the remaining
// hex distance can yield a path longer than the shortest one.
type Heuristic func(c *Cell) float64

// PathOption configures ShortestPath.
type PathOption func(*pathConfig)

type pathConfig struct {
	heuristic Heuristic
	passable  func(c *Cell) bool
}

// WithHeuristic adds h to each frontier entry's priority.
func WithHeuristic(h Heuristic) PathOption {
	return func(cfg *pathConfig) { cfg.heuristic = h }
}

// WithPassable restricts the search to cells for which ok returns true.
// The start cell is always allowed.
func WithPassable(ok func(c *Cell) bool) PathOption {
	return func(cfg *pathConfig) { cfg.passable = ok }
}

// DistanceHeuristic returns the hex distance to target; it never
// overestimates.
func DistanceHeuristic(target HexCoord) Heuristic {
	return func(c *Cell) float64 {
		return float64(Distance(c.Coord, target))
	}
}

// ShortestPath returns the cells from start to end inclusive, or an empty
// slice when end cannot be reached. A cell whose distance from start exceeds
// Distance(start, end) is never explored: on an unobstructed hex lattice every
// cell of a shortest path lies within that radius, so the bound only prunes
// detours.
func (g *Grid) ShortestPath(start, end HexCoord, opts ...PathOption) ([]*Cell, error) {
	var cfg pathConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	si, err := g.Index(start)
	if err != nil {
		return nil, err
	}
	ei, err := g.Index(end)
	if err != nil {
		return nil, err
	}
	if si == ei {
		return []*Cell{&g.cells[si]}, nil
	}

	maxDistance := Distance(start, end)
	frontier := newBucketQueue()
	previous := make(map[int]int)
	scores := map[int]int{si: 0}
	frontier.Enqueue(si, 0)

	for frontier.Len() > 0 {
		current, _ := frontier.Dequeue()
		if current == ei {
			return g.reconstructPath(si, ei, previous), nil
		}

		for _, n := range g.cells[current].neighbors {
			if n < 0 {
				continue
			}
			nc := &g.cells[n]
			if cfg.passable != nil && !cfg.passable(nc) {
				continue
			}

			distance := Distance(start, nc.Coord)
			if distance > maxDistance {
				continue
			}

			// Recorded distance is positional: the first discovery is final.
			if _, seen := scores[n]; seen {
				continue
			}

			scores[n] = distance
			previous[n] = current

			priority := float64(distance)
			if cfg.heuristic != nil {
				priority += cfg.heuristic(nc)
			}
			frontier.Enqueue(n, priority)
		}
	}

	return []*Cell{}, nil
}

func (g *Grid) reconstructPath(start, end int, previous map[int]int) []*Cell {
	path := []*Cell{&g.cells[end]}
	for end != start {
		end = previous[end]
		path = append(path, &g.cells[end])
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
