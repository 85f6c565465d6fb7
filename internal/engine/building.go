package engine

import (
	"github.com/talgya/hexburg/internal/catalog"
	"github.com/talgya/hexburg/internal/world"
)

// BuildingID is a handle into the world's building arena.
type BuildingID int

// NoBuilding marks content without a building instance.
const NoBuilding BuildingID = world.NoBuilding

// State is the construction state of a building.
type State uint8

const (
	StateUnderConstruction State = iota
	StateActive
)

func (s State) String() string {
	if s == StateActive {
		return "active"
	}
	return "under_construction"
}

// Building is a placed instance. Its tier stack runs from the placed base
// tier to the current tier and is never empty while placed.
type Building struct {
	ID     BuildingID       `json:"id"`
	Cell   int              `json:"cell"`
	Tiers  []catalog.TierID `json:"tiers"`
	State  State            `json:"state"`
	Facing world.Direction  `json:"facing"`

	// Residents for housing, staff for production.
	Workers int `json:"workers"`
	// Fraction of the current production cycle completed, in [0, 1).
	Progress float64 `json:"progress"`
	// Simulated seconds of construction completed.
	Built float64 `json:"built"`
	// Seconds stalled for missing input, and full stalled cycles since the
	// last completed one.
	Stalled  float64 `json:"stalled"`
	Failures int     `json:"failures"`
	Cycles   int     `json:"cycles"`
}

// Tier returns the current (top) tier.
func (b *Building) Tier() catalog.TierID {
	if len(b.Tiers) == 0 {
		return catalog.NoTier
	}
	return b.Tiers[len(b.Tiers)-1]
}

// Base returns the tier the building was placed as.
func (b *Building) Base() catalog.TierID {
	if len(b.Tiers) == 0 {
		return catalog.NoTier
	}
	return b.Tiers[0]
}

// CanBeDowngraded reports whether a tier sits above the base.
func (b *Building) CanBeDowngraded() bool {
	return len(b.Tiers) > 1
}

// occupancy returns how many residents or workers a tier holds.
func occupancy(t *catalog.Template) int {
	switch t.Kind {
	case catalog.KindHousing:
		return t.HousingCapacity()
	case catalog.KindProduction:
		return t.MaxWorkers()
	}
	return 0
}

func (w *World) addWorkers(b *Building, n int) {
	t := w.Template(b)
	if !w.invariant(n >= 0 && b.Workers+n <= occupancy(t), "worker overflow",
		"building", b.ID, "workers", b.Workers, "n", n, "max", occupancy(t)) {
		n = clampInt(n, 0, max(0, occupancy(t)-b.Workers))
	}
	b.Workers += n
	if t.Kind == catalog.KindHousing {
		w.addPopulation(n)
	} else {
		w.assignWorkers(n)
	}
}

func (w *World) removeWorkers(b *Building, n int) {
	if !w.invariant(n >= 0 && n <= b.Workers, "worker underflow",
		"building", b.ID, "workers", b.Workers, "n", n) {
		n = clampInt(n, 0, b.Workers)
	}
	b.Workers -= n
	if w.Template(b).Kind == catalog.KindHousing {
		w.removePopulation(n)
	} else {
		w.freeWorkers(n)
	}
}

// onBuilt registers the tier's residents or jobs.
func (w *World) onBuilt(t *catalog.Template) {
	switch t.Kind {
	case catalog.KindHousing:
		w.increaseMaxPopulation(t.HousingCapacity())
	case catalog.KindProduction:
		w.addJobs(t.MaxWorkers())
	}
}

// onDemolished reverses onBuilt. Workers must already be removed.
func (w *World) onDemolished(t *catalog.Template) {
	switch t.Kind {
	case catalog.KindHousing:
		w.decreaseMaxPopulation(t.HousingCapacity())
	case catalog.KindProduction:
		w.removeJobs(t.MaxWorkers())
	}
}

// retire runs before the top tier changes from cur to next. Between tiers of
// the same kind only the occupants beyond next's room are evicted; otherwise
// the building is emptied and cur's registration withdrawn.
func (w *World) retire(b *Building, cur, next *catalog.Template) {
	if cur.Kind != catalog.KindHousing && cur.Kind != catalog.KindProduction {
		return
	}
	if b.State != StateActive {
		return
	}
	if next.Kind == cur.Kind {
		if excess := b.Workers - occupancy(next); excess > 0 {
			w.removeWorkers(b, excess)
		}
		return
	}
	w.removeWorkers(b, b.Workers)
	w.onDemolished(cur)
}

// commission runs after the top tier changed from prev to next.
func (w *World) commission(b *Building, next, prev *catalog.Template) {
	if b.State != StateActive {
		return
	}
	if next.Kind != prev.Kind || (next.Kind != catalog.KindHousing && next.Kind != catalog.KindProduction) {
		w.onBuilt(next)
		return
	}
	delta := occupancy(next) - occupancy(prev)
	switch {
	case next.Kind == catalog.KindHousing && delta > 0:
		w.increaseMaxPopulation(delta)
	case next.Kind == catalog.KindHousing && delta < 0:
		w.decreaseMaxPopulation(-delta)
	case next.Kind == catalog.KindProduction && delta > 0:
		w.addJobs(delta)
	case next.Kind == catalog.KindProduction && delta < 0:
		w.removeJobs(-delta)
	}
}
