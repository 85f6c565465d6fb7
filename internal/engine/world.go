package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"

	"github.com/talgya/hexburg/internal/access"
	"github.com/talgya/hexburg/internal/catalog"
	"github.com/talgya/hexburg/internal/economy"
	"github.com/talgya/hexburg/internal/world"
)

var (
	ErrUnaffordable   = errors.New("not enough resources")
	ErrNoUpgrade      = errors.New("tier has no upgrade")
	ErrUpgradeBlocked = errors.New("upgrade requirements not met")
	ErrNotABuilding   = errors.New("no building")
	ErrBaseTier       = errors.New("building is at its base tier")
	ErrWrongKind      = errors.New("template kind not allowed here")
	ErrEmptyCell      = errors.New("cell is empty")
)

// Event categories.
const (
	CategoryBuild        = "build"
	CategoryDemolish     = "demolish"
	CategoryConstruction = "construction"
	CategoryUpgrade      = "upgrade"
	CategoryDowngrade    = "downgrade"
	CategoryStall        = "stall"
	CategoryTerrain      = "terrain"
)

// Event is a notable occurrence in the world.
type Event struct {
	Tick        uint64 `json:"tick"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// Config holds world construction parameters.
type Config struct {
	Seed              int64                    // facing RNG seed (0 = random)
	Strict            bool                     // panic on invariant violations
	StartingResources map[economy.Resource]int // initial ledger contents
}

// World is the explicit simulation context: grid, catalog, ledger, access
// index, population counters, and the building arena. Every placement and
// update goes through it; nothing is process-global.
type World struct {
	Grid    *world.Grid
	Catalog *catalog.Catalog
	Ledger  *economy.Ledger
	Access  *access.Index
	Pop     Population

	// Strict turns invariant violations into panics.
	Strict bool

	Tick uint64  // steps taken
	Time float64 // simulated seconds

	buildings []*Building // arena; nil slots are free
	free      []BuildingID
	rng       *rand.Rand
	events    []Event
}

// NewWorld creates a world over the given terrain rows.
func NewWorld(cat *catalog.Catalog, rows [][]world.Terrain, cfg Config) (*World, error) {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	w := &World{
		Grid:    world.NewGrid(),
		Catalog: cat,
		Ledger:  economy.NewLedger(),
		Strict:  cfg.Strict,
		rng:     rand.New(rand.NewSource(seed)),
	}
	if err := w.Grid.Generate(rows); err != nil {
		return nil, fmt.Errorf("generate grid: %w", err)
	}
	w.Access = access.New(w.Grid, w)
	for r, n := range cfg.StartingResources {
		w.Ledger.Set(r, n)
	}
	return w, nil
}

// Reset regenerates the grid from terrain rows and discards every building,
// counter, and access level. The ledger is left untouched.
func (w *World) Reset(rows [][]world.Terrain) error {
	if err := w.Grid.Generate(rows); err != nil {
		return fmt.Errorf("generate grid: %w", err)
	}
	w.Access.Reset()
	w.buildings = nil
	w.free = nil
	w.Pop = Population{}
	w.Tick = 0
	w.Time = 0
	return nil
}

// invariant reports a violated internal invariant. It panics in strict mode;
// otherwise it logs and returns false so the caller can clamp and continue.
func (w *World) invariant(ok bool, msg string, args ...any) bool {
	if ok {
		return true
	}
	if w.Strict {
		panic(fmt.Sprintf("engine: invariant violated: %s %v", msg, args))
	}
	slog.Error("invariant violated: "+msg, args...)
	return false
}

func (w *World) record(category, format string, args ...any) {
	e := Event{Tick: w.Tick, Description: fmt.Sprintf(format, args...), Category: category}
	slog.Debug("event", "category", e.Category, "description", e.Description, "tick", e.Tick)
	w.events = append(w.events, e)
}

// TakeEvents returns and clears events recorded since the last call.
func (w *World) TakeEvents() []Event {
	out := w.events
	w.events = nil
	return out
}

// Building returns the live building with the given handle, or nil.
func (w *World) Building(id BuildingID) *Building {
	if id < 0 || int(id) >= len(w.buildings) {
		return nil
	}
	return w.buildings[id]
}

// BuildingAt returns the building occupying a coordinate.
func (w *World) BuildingAt(coord world.HexCoord) (*Building, error) {
	c, err := w.Grid.Cell(coord)
	if err != nil {
		return nil, err
	}
	content, ok := c.Content()
	if !ok || content.Building == world.NoBuilding {
		return nil, fmt.Errorf("%v: %w", coord, ErrNotABuilding)
	}
	b := w.Building(BuildingID(content.Building))
	if b == nil {
		return nil, fmt.Errorf("%v: %w", coord, ErrNotABuilding)
	}
	return b, nil
}

// Buildings returns every live building in handle order.
func (w *World) Buildings() []*Building {
	out := make([]*Building, 0, len(w.buildings))
	for _, b := range w.buildings {
		if b != nil {
			out = append(out, b)
		}
	}
	return out
}

// Template returns the current tier of a building.
func (w *World) Template(b *Building) *catalog.Template {
	return w.Catalog.Tier(b.Tier())
}

func (w *World) allocate(cell int, tier catalog.TierID) *Building {
	var id BuildingID
	if n := len(w.free); n > 0 {
		sort.Slice(w.free, func(i, j int) bool { return w.free[i] < w.free[j] })
		id = w.free[0]
		w.free = w.free[1:]
	} else {
		id = BuildingID(len(w.buildings))
		w.buildings = append(w.buildings, nil)
	}
	b := &Building{ID: id, Cell: cell, Tiers: []catalog.TierID{tier}}
	w.buildings[id] = b
	return b
}

func (w *World) release(id BuildingID) {
	if !w.invariant(w.Building(id) != nil, "releasing free building slot", "id", id) {
		return
	}
	w.buildings[id] = nil
	w.free = append(w.free, id)
}

// contentAt returns the effective template and building on a cell.
func (w *World) contentAt(cell int) (*catalog.Template, *Building, bool) {
	c, err := w.Grid.CellAt(cell)
	if err != nil {
		return nil, nil, false
	}
	content, ok := c.Content()
	if !ok {
		return nil, nil, false
	}
	if content.Building != world.NoBuilding {
		if b := w.Building(BuildingID(content.Building)); b != nil {
			return w.Template(b), b, true
		}
	}
	return w.Catalog.Tier(catalog.TierID(content.Template)), nil, true
}

// Occupant describes a cell's content to the access index. Buildings still
// under construction contribute neither workers nor production.
func (w *World) Occupant(cell int) (access.Occupant, bool) {
	t, b, ok := w.contentAt(cell)
	if !ok || t == nil {
		return access.Occupant{}, ok
	}
	o := access.Occupant{Road: t.Kind == catalog.KindRoad}
	if b != nil && b.State != StateActive {
		return o, true
	}
	o.Housing = t.HousingCapacity()
	if t.Kind == catalog.KindProduction {
		o.Produces = t.Produces()
	}
	return o, true
}

func (w *World) occupantOrZero(cell int) access.Occupant {
	o, _ := w.Occupant(cell)
	return o
}

// Connections returns the directions of neighbors holding the same
// template as the cell, for road and tiling renderers.
func (w *World) Connections(coord world.HexCoord) ([]world.Direction, error) {
	c, err := w.Grid.Cell(coord)
	if err != nil {
		return nil, err
	}
	t, _, ok := w.contentAt(c.Index)
	if !ok || t == nil {
		return nil, nil
	}
	var dirs []world.Direction
	for _, d := range world.Directions() {
		n := c.Neighbor(d)
		if n < 0 {
			continue
		}
		if nt, _, ok := w.contentAt(n); ok && nt == t {
			dirs = append(dirs, d)
		}
	}
	return dirs, nil
}

// matchingNeighbors counts neighbors whose content is the given template.
func (w *World) matchingNeighbors(cell int, tier catalog.TierID) int {
	c, err := w.Grid.CellAt(cell)
	if err != nil {
		return 0
	}
	count := 0
	for _, n := range c.NeighborIndices() {
		if n < 0 {
			continue
		}
		if t, _, ok := w.contentAt(n); ok && t != nil && t.Tier() == tier {
			count++
		}
	}
	return count
}

// Step advances every building by dt simulated seconds, in handle order.
// Each building's update commits before the next one runs.
func (w *World) Step(dt float64) {
	w.Tick++
	w.Time += dt
	for i := 0; i < len(w.buildings); i++ {
		if b := w.buildings[i]; b != nil {
			w.update(b, dt)
		}
	}
}
