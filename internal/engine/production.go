// Per-tick building updates. Construction and production advance only
// while the building has the access its tier requires.

package engine

import (
	"math"

	"github.com/talgya/hexburg/internal/catalog"
	"github.com/talgya/hexburg/internal/economy"
)

// cycleEpsilon absorbs float drift so that n steps of 1/n complete a cycle.
const cycleEpsilon = 1e-9

// update advances one building by dt seconds.
func (w *World) update(b *Building, dt float64) {
	if b.State != StateActive {
		w.construct(b, dt)
		return
	}
	t := w.Template(b)
	switch t.Kind {
	case catalog.KindHousing:
		w.updateHousing(b, t)
	case catalog.KindProduction:
		w.updateProduction(b, t, dt)
	}
}

// construct accumulates build time while the site has road access.
func (w *World) construct(b *Building, dt float64) {
	t := w.Template(b)
	if t.RequiresRoad() && !w.Access.HasAccessToRoad(b.Cell) {
		return
	}
	b.Built += dt
	if b.Built+cycleEpsilon >= t.BuildSeconds {
		w.activate(b)
	}
}

// activate completes construction and registers the building's effects.
func (w *World) activate(b *Building) {
	prev := w.occupantOrZero(b.Cell)
	t := w.Template(b)
	b.State = StateActive
	b.Built = t.BuildSeconds
	w.onBuilt(t)
	w.Access.OnContentChanged(b.Cell, prev)
	if t.BuildSeconds > 0 {
		w.record(CategoryConstruction, "%s completed at %v", t.Name, w.coordOf(b.Cell))
	}
}

// updateHousing fills housing to capacity while it has road access and
// evicts everyone when it loses it.
func (w *World) updateHousing(b *Building, t *catalog.Template) {
	if !w.Access.HasAccessToRoad(b.Cell) {
		if b.Workers > 0 {
			w.removeWorkers(b, b.Workers)
		}
		return
	}
	if room := t.HousingCapacity() - b.Workers; room > 0 {
		w.addWorkers(b, room)
	}
	if b.Workers >= t.HousingCapacity() {
		w.tryAutoUpgrade(b, t)
	}
}

// updateProduction runs the production state machine for one tick.
func (w *World) updateProduction(b *Building, t *catalog.Template, dt float64) {
	maxWorkers := t.MaxWorkers()

	// Staff: an unreachable building cannot keep workers.
	if (t.RequiresRoad() && !w.Access.HasAccessToRoad(b.Cell)) || !w.Access.HasAccessToWorkers(b.Cell) {
		if b.Workers > 0 {
			w.removeWorkers(b, b.Workers)
		}
	} else if over := w.Pop.AssignedJobs - w.Pop.Population; over > 0 {
		if n := min(over, b.Workers); n > 0 {
			w.removeWorkers(b, n)
		}
	} else if idle := w.Pop.Idle(); b.Workers < maxWorkers && idle > 0 {
		w.addWorkers(b, min(idle, maxWorkers-b.Workers))
	}

	if b.Workers < t.MinWorkers || b.Workers == 0 {
		return
	}

	if !w.inputAvailable(b, t) {
		w.stall(b, t, dt)
		return
	}
	b.Stalled = 0

	b.Progress += w.efficiency(b, t) * dt / t.CycleSeconds
	if b.Progress+cycleEpsilon < 1 {
		return
	}

	if !w.Ledger.UseAll(t.Input) {
		w.invariant(false, "input vanished mid-cycle", "building", b.ID)
		b.Progress = 0
		return
	}
	output := t.Output
	if t.OutputPerWorker {
		output = economy.Scale(output, b.Workers)
	}
	w.Ledger.AddAll(output)
	b.Progress = math.Max(0, b.Progress-1)
	b.Failures = 0
	b.Cycles++

	w.tryAutoUpgrade(b, t)
}

// inputAvailable reports whether every input is reachable on the road
// network and the ledger holds the whole input list, repeated kinds summed.
func (w *World) inputAvailable(b *Building, t *catalog.Template) bool {
	for _, in := range t.Input {
		if !w.Access.HasAccessToResource(b.Cell, in.Resource) {
			return false
		}
	}
	return w.Ledger.HasAll(t.Input)
}

// stall zeroes the cycle and counts full cycle-durations spent waiting for
// input. Enough of them downgrade the building.
func (w *World) stall(b *Building, t *catalog.Template, dt float64) {
	b.Progress = 0
	if t.DowngradeAfterStalls <= 0 {
		return
	}
	b.Stalled += dt
	for b.Stalled+cycleEpsilon >= t.CycleSeconds {
		b.Stalled -= t.CycleSeconds
		b.Failures++
	}
	if b.Failures < t.DowngradeAfterStalls || !b.CanBeDowngraded() {
		return
	}
	w.record(CategoryStall, "%s at %v starved of input for %d cycles", t.Name, w.coordOf(b.Cell), b.Failures)
	w.downgrade(b)
}

// efficiency combines staffing and the neighbor-content requirement.
func (w *World) efficiency(b *Building, t *catalog.Template) float64 {
	maxWorkers := t.MaxWorkers()
	if maxWorkers <= 0 {
		return 0
	}
	eff := float64(b.Workers) / float64(maxWorkers)
	if tier, need, ok := t.NeighborRequirement(); ok {
		eff *= clamp01(float64(w.matchingNeighbors(b.Cell, tier)) / float64(need))
	}
	return eff
}

func (w *World) tryAutoUpgrade(b *Building, t *catalog.Template) {
	if t.Upgrade == nil || !t.Upgrade.Automatic {
		return
	}
	if w.checkUpgrade(b) == nil {
		w.upgrade(b)
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
