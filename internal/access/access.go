// Package access computes per-cell access levels over the road network:
// how many roads touch a cell, and how large a labor pool and which
// production pools are reachable along the road component next to it.
package access

import (
	"log/slog"
	"sort"

	"github.com/talgya/hexburg/internal/economy"
	"github.com/talgya/hexburg/internal/world"
)

// Occupant is what the index needs to know about a cell's content.
type Occupant struct {
	Road     bool
	Housing  int                // residents the housing tier holds; 0 if not housing
	Produces []economy.Resource // outputs of a production tier
}

// Relevant reports whether adding or removing the occupant changes
// worker or resource access.
func (o Occupant) Relevant() bool {
	return o.Road || o.Housing > 0 || len(o.Produces) > 0
}

// Occupancy reports the current occupant of a cell.
type Occupancy interface {
	Occupant(cell int) (Occupant, bool)
}

// Index holds road, worker, and per-resource access levels for every cell.
type Index struct {
	grid *world.Grid
	occ  Occupancy

	roads     map[int]struct{}
	road      []int
	workers   []int
	resources map[economy.Resource][]int

	deferred   int
	dirty      bool
	recomputes int
}

// New creates an index sized to the grid.
func New(grid *world.Grid, occ Occupancy) *Index {
	ix := &Index{grid: grid, occ: occ}
	ix.Reset()
	return ix
}

// Reset clears all levels and the road registry, resizing to the grid.
func (ix *Index) Reset() {
	n := ix.grid.Len()
	ix.roads = make(map[int]struct{})
	ix.road = make([]int, n)
	ix.workers = make([]int, n)
	ix.resources = make(map[economy.Resource][]int)
	ix.dirty = false
}

// OnContentAdded registers new content on a cell.
func (ix *Index) OnContentAdded(cell int) {
	o, ok := ix.occ.Occupant(cell)
	if !ok {
		return
	}
	if o.Road {
		ix.addRoad(cell)
	}
	if o.Relevant() {
		ix.invalidate()
	}
}

// OnContentRemoved unregisters content that occupied a cell.
func (ix *Index) OnContentRemoved(cell int, prev Occupant) {
	if prev.Road {
		ix.removeRoad(cell)
	}
	if prev.Relevant() {
		ix.invalidate()
	}
}

// OnContentChanged handles an in-place tier change from prev to the
// cell's current occupant.
func (ix *Index) OnContentChanged(cell int, prev Occupant) {
	next, _ := ix.occ.Occupant(cell)
	switch {
	case prev.Road && !next.Road:
		ix.removeRoad(cell)
	case !prev.Road && next.Road:
		ix.addRoad(cell)
	}
	if prev.Relevant() || next.Relevant() {
		ix.invalidate()
	}
}

func (ix *Index) addRoad(cell int) {
	if _, ok := ix.roads[cell]; ok {
		slog.Error("access: road registered twice", "cell", cell)
		return
	}
	ix.roads[cell] = struct{}{}
	ix.bumpRoad(cell, 1)
}

func (ix *Index) removeRoad(cell int) {
	if _, ok := ix.roads[cell]; !ok {
		slog.Error("access: removing unregistered road", "cell", cell)
		return
	}
	delete(ix.roads, cell)
	ix.bumpRoad(cell, -1)
}

// bumpRoad adjusts road access for a road cell and its neighbors.
func (ix *Index) bumpRoad(cell, delta int) {
	c, err := ix.grid.CellAt(cell)
	if err != nil {
		return
	}
	ix.adjustRoad(cell, delta)
	for _, n := range c.NeighborIndices() {
		if n >= 0 {
			ix.adjustRoad(n, delta)
		}
	}
}

func (ix *Index) adjustRoad(cell, delta int) {
	ix.road[cell] += delta
	if ix.road[cell] < 0 {
		slog.Error("access: negative road access", "cell", cell)
		ix.road[cell] = 0
	}
}

func (ix *Index) invalidate() {
	if ix.deferred > 0 {
		ix.dirty = true
		return
	}
	ix.RecomputeAll()
}

// Defer suspends recomputation until the returned flush is called; changes
// made in between trigger a single RecomputeAll. Calls nest.
func (ix *Index) Defer() (flush func()) {
	ix.deferred++
	done := false
	return func() {
		if done {
			return
		}
		done = true
		ix.deferred--
		if ix.deferred == 0 && ix.dirty {
			ix.dirty = false
			ix.RecomputeAll()
		}
	}
}

// RecomputeAll rebuilds worker and resource access from scratch. Road cells
// are grouped into connected components; every cell within one step of a
// component's roads receives that component's totals.
func (ix *Index) RecomputeAll() {
	ix.recomputes++
	clear(ix.workers)
	ix.resources = make(map[economy.Resource][]int)

	pending := make([]int, 0, len(ix.roads))
	for cell := range ix.roads {
		pending = append(pending, cell)
	}
	sort.Ints(pending)
	processed := make(map[int]bool, len(pending))

	for _, start := range pending {
		if processed[start] {
			continue
		}
		visited, workers, produced := ix.component(start, processed)

		for _, cell := range visited {
			if workers > ix.workers[cell] {
				ix.workers[cell] = workers
			}
			for r, n := range produced {
				ix.resourceLevels(r)[cell] = n
			}
		}
	}
}

// component walks the road component containing start. It returns every
// cell within one step of its roads, in discovery order, plus the labor
// and production totals of those cells.
func (ix *Index) component(start int, processed map[int]bool) (visited []int, workers int, produced map[economy.Resource]int) {
	produced = make(map[economy.Resource]int)
	seen := map[int]bool{start: true}
	visited = append(visited, start)
	queue := []int{start}
	processed[start] = true

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		c, err := ix.grid.CellAt(cur)
		if err != nil {
			continue
		}
		for _, n := range c.NeighborIndices() {
			if n < 0 || seen[n] {
				continue
			}
			seen[n] = true
			visited = append(visited, n)
			if _, road := ix.roads[n]; road {
				processed[n] = true
				queue = append(queue, n)
			}
		}
	}

	for _, cell := range visited {
		o, ok := ix.occ.Occupant(cell)
		if !ok {
			continue
		}
		workers += o.Housing
		for _, r := range o.Produces {
			produced[r]++
		}
	}
	return visited, workers, produced
}

func (ix *Index) resourceLevels(r economy.Resource) []int {
	levels, ok := ix.resources[r]
	if !ok {
		levels = make([]int, ix.grid.Len())
		ix.resources[r] = levels
	}
	return levels
}

// Recomputes returns how many full recomputations have run.
func (ix *Index) Recomputes() int {
	return ix.recomputes
}

// Roads returns the registered road cells in ascending order.
func (ix *Index) Roads() []int {
	out := make([]int, 0, len(ix.roads))
	for cell := range ix.roads {
		out = append(out, cell)
	}
	sort.Ints(out)
	return out
}

// RoadAccess returns the number of road cells on or next to a cell.
func (ix *Index) RoadAccess(cell int) int {
	if cell < 0 || cell >= len(ix.road) {
		return 0
	}
	return ix.road[cell]
}

// WorkerAccess returns the labor pool reachable from a cell.
func (ix *Index) WorkerAccess(cell int) int {
	if cell < 0 || cell >= len(ix.workers) {
		return 0
	}
	return ix.workers[cell]
}

// ResourceAccess returns the number of producers of r reachable from a cell.
func (ix *Index) ResourceAccess(cell int, r economy.Resource) int {
	levels, ok := ix.resources[r]
	if !ok || cell < 0 || cell >= len(levels) {
		return 0
	}
	return levels[cell]
}

func (ix *Index) HasAccessToRoad(cell int) bool {
	return ix.RoadAccess(cell) > 0
}

func (ix *Index) HasAccessToWorkers(cell int) bool {
	return ix.WorkerAccess(cell) > 0
}

func (ix *Index) HasAccessToResource(cell int, r economy.Resource) bool {
	return ix.ResourceAccess(cell, r) > 0
}

// ResourceKinds lists the resources produced somewhere on the road network.
func (ix *Index) ResourceKinds() []economy.Resource {
	out := make([]economy.Resource, 0, len(ix.resources))
	for r := range ix.resources {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
