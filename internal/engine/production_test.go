package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/hexburg/internal/economy"
)

func TestScenario_RoadSplitDisconnectsWorkers(t *testing.T) {
	w := newTestWorld(t, 6, 2, nil)
	mustPlace(t, w, "hut", at(0, 0))
	for x := 1; x <= 3; x++ {
		mustPlace(t, w, "road", at(x, 0))
	}
	p := mustPlace(t, w, "farm", at(4, 0))
	pCell := cellIndex(t, w, at(4, 0))

	assert.GreaterOrEqual(t, w.Access.WorkerAccess(pCell), 4)
	w.Step(1)
	require.Equal(t, 2, w.Building(p).Workers)

	require.True(t, w.Demolish(at(2, 0)))
	assert.Equal(t, 0, w.Access.WorkerAccess(pCell))

	w.Step(1)
	assert.Equal(t, 0, w.Building(p).Workers)
	assert.Equal(t, 0, w.Pop.AssignedJobs)
}

func TestScenario_ProductionCycle(t *testing.T) {
	w := newTestWorld(t, 8, 3, map[economy.Resource]int{"grain": 3})
	mustPlace(t, w, "hut", at(0, 0))
	for x := 1; x <= 3; x++ {
		mustPlace(t, w, "road", at(x, 0))
	}
	// The farm puts grain on the road network; its cycle is too long to finish.
	mustPlace(t, w, "farm", at(2, 1))
	bakery := mustPlace(t, w, "bakery", at(4, 0))

	stepN(w, 4, 0.5)

	assert.Equal(t, map[economy.Resource]int{"grain": 2, "bread": 1}, w.Ledger.Snapshot())
	b := w.Building(bakery)
	assert.Equal(t, 1, b.Workers)
	assert.InDelta(t, 0, b.Progress, 1e-9)
	assert.Equal(t, 1, b.Cycles)
}

func TestProduction_PartialProgressKept(t *testing.T) {
	w := newTestWorld(t, 8, 3, map[economy.Resource]int{"grain": 3})
	mustPlace(t, w, "hut", at(0, 0))
	mustPlace(t, w, "road", at(1, 0))
	mustPlace(t, w, "road", at(2, 0))
	mustPlace(t, w, "farm", at(2, 1))
	bakery := mustPlace(t, w, "bakery", at(3, 0))

	stepN(w, 3, 0.5)
	b := w.Building(bakery)
	require.InDelta(t, 0.75, b.Progress, 1e-9)

	// Losing every worker halts the cycle but keeps its progress.
	require.True(t, w.Demolish(at(0, 0)))
	w.Step(0.5)
	assert.Equal(t, 0, b.Workers)
	assert.InDelta(t, 0.75, b.Progress, 1e-9)
	assert.Equal(t, 3, w.Ledger.Get("grain"))
}

func TestProduction_MissingInputZeroesProgress(t *testing.T) {
	w := newTestWorld(t, 8, 3, map[economy.Resource]int{"grain": 1})
	mustPlace(t, w, "hut", at(0, 0))
	mustPlace(t, w, "road", at(1, 0))
	mustPlace(t, w, "road", at(2, 0))
	mustPlace(t, w, "farm", at(2, 1))
	bakery := mustPlace(t, w, "bakery", at(3, 0))

	stepN(w, 3, 0.5)
	b := w.Building(bakery)
	require.InDelta(t, 0.75, b.Progress, 1e-9)

	w.Ledger.Clear()
	w.Step(0.5)
	assert.Equal(t, 0.0, b.Progress)
	assert.Equal(t, 0, w.Ledger.Get("bread"))

	// Input without network access also stalls.
	w.Ledger.Add("grain", 5)
	require.True(t, w.Demolish(at(2, 1)))
	w.Step(0.5)
	w.Step(0.5)
	assert.Equal(t, 0.0, b.Progress)
	assert.Equal(t, 5, w.Ledger.Get("grain"))
}

func TestProduction_RepeatedInputKindsSummed(t *testing.T) {
	w := newTestWorld(t, 8, 3, map[economy.Resource]int{"grain": 1})
	mustPlace(t, w, "hut", at(0, 0))
	mustPlace(t, w, "road", at(1, 0))
	mustPlace(t, w, "road", at(2, 0))
	mustPlace(t, w, "farm", at(2, 1))
	mill := mustPlace(t, w, "mill", at(3, 0))

	// The mill needs two grain per cycle; one in stock is not enough to start.
	stepN(w, 3, 0.5)
	b := w.Building(mill)
	require.Equal(t, 1, b.Workers)
	assert.InDelta(t, 0, b.Progress, 1e-9)
	assert.Equal(t, 1, w.Ledger.Get("grain"))

	w.Ledger.Add("grain", 1)
	stepN(w, 4, 0.5)
	assert.Equal(t, map[economy.Resource]int{"flour": 1}, w.Ledger.Snapshot())
	assert.Equal(t, 1, b.Cycles)
	assert.InDelta(t, 0, b.Progress, 1e-9)
}

func TestProduction_AutomaticUpgradeAfterCycle(t *testing.T) {
	w := newTestWorld(t, 4, 1, nil)
	mustPlace(t, w, "hut", at(0, 0))
	mustPlace(t, w, "road", at(1, 0))
	kiln := mustPlace(t, w, "kiln", at(2, 0))

	w.Step(0.5)
	b := w.Building(kiln)
	require.Equal(t, 1, b.Workers)
	assert.Len(t, b.Tiers, 1)
	assert.Equal(t, 0, b.Cycles)

	w.Step(0.5)
	assert.Equal(t, 1, b.Cycles)
	assert.Equal(t, 1, w.Ledger.Get("brick"))
	assert.Len(t, b.Tiers, 2)
	assert.Equal(t, "kilnworks", w.Template(b).ID)

	var upgrades int
	for _, e := range w.TakeEvents() {
		if e.Category == CategoryUpgrade {
			upgrades++
		}
	}
	assert.Equal(t, 1, upgrades)
}

func TestProduction_StallDowngrade(t *testing.T) {
	w := newTestWorld(t, 8, 3, nil)
	mustPlace(t, w, "hut", at(0, 0))
	mustPlace(t, w, "road", at(1, 0))
	mustPlace(t, w, "road", at(2, 0))
	mustPlace(t, w, "farm", at(2, 1))
	bakery := mustPlace(t, w, "bakery", at(3, 0))
	require.True(t, w.Upgrade(bakery))
	b := w.Building(bakery)
	require.Len(t, b.Tiers, 2)

	// No grain in the ledger: each full cycle stalled is one failure.
	w.Step(1)
	assert.Equal(t, 1, b.Failures)
	assert.Len(t, b.Tiers, 2)

	w.Step(1)
	assert.Len(t, b.Tiers, 1)
	assert.Equal(t, "bakery", w.Template(b).ID)
	assert.Equal(t, 0, b.Failures)
	assert.LessOrEqual(t, b.Workers, 1)

	var stalls int
	for _, e := range w.TakeEvents() {
		if e.Category == CategoryStall {
			stalls++
		}
	}
	assert.Equal(t, 1, stalls)
}

func TestProduction_NeighborEfficiencyAndOutputPerWorker(t *testing.T) {
	w := newTestWorld(t, 6, 3, nil)
	mustPlace(t, w, "hut", at(0, 0))
	mustPlace(t, w, "road", at(1, 0))
	lj := mustPlace(t, w, "lumberjack", at(2, 0))
	mustPlace(t, w, "tree", at(3, 0))

	// One tree of two: half efficiency, two workers.
	w.Step(1)
	b := w.Building(lj)
	require.Equal(t, 2, b.Workers)
	assert.InDelta(t, 0.5, b.Progress, 1e-9)
	assert.Equal(t, 0, w.Ledger.Get("wood"))

	w.Step(1)
	assert.Equal(t, 2, w.Ledger.Get("wood"))

	// A second tree restores full speed.
	mustPlace(t, w, "tree", at(2, 1))
	w.Step(1)
	assert.Equal(t, 4, w.Ledger.Get("wood"))
}

func TestHousing_EvictsWithoutRoad(t *testing.T) {
	w := newTestWorld(t, 3, 1, nil)
	mustPlace(t, w, "road", at(0, 0))
	hut := mustPlace(t, w, "hut", at(1, 0))
	w.Step(1)
	require.Equal(t, 4, w.Building(hut).Workers)

	require.True(t, w.Demolish(at(0, 0)))
	w.Step(1)
	assert.Equal(t, 0, w.Building(hut).Workers)
	assert.Equal(t, 0, w.Pop.Population)
	assert.Equal(t, 4, w.Pop.MaxPopulation)
}

func TestHousing_AutomaticUpgradeWhenFull(t *testing.T) {
	w := newTestWorld(t, 3, 1, nil)
	mustPlace(t, w, "road", at(0, 0))
	tent := mustPlace(t, w, "tent", at(1, 0))

	w.Step(1)
	b := w.Building(tent)
	assert.Equal(t, "cabin", w.Template(b).ID)
	assert.Equal(t, 2, b.Workers)
	assert.Equal(t, 3, w.Pop.MaxPopulation)

	w.Step(1)
	assert.Equal(t, 3, b.Workers)
}

func TestConstruction_NeedsRoadAccess(t *testing.T) {
	w := newTestWorld(t, 4, 1, nil)
	shed := mustPlace(t, w, "shed", at(1, 0))
	b := w.Building(shed)
	require.Equal(t, StateUnderConstruction, b.State)

	stepN(w, 5, 1)
	assert.Equal(t, StateUnderConstruction, b.State)
	assert.Zero(t, b.Built)

	mustPlace(t, w, "road", at(0, 0))
	stepN(w, 2, 1)
	assert.Equal(t, StateUnderConstruction, b.State)
	w.Step(1)
	assert.Equal(t, StateActive, b.State)

	var done bool
	for _, e := range w.TakeEvents() {
		done = done || e.Category == CategoryConstruction
	}
	assert.True(t, done)
}

func TestStep_AdvancesClock(t *testing.T) {
	w := newTestWorld(t, 2, 2, nil)
	stepN(w, 4, 0.25)
	assert.Equal(t, uint64(4), w.Tick)
	assert.InDelta(t, 1.0, w.Time, 1e-9)
	assert.Equal(t, "1s", SimTime(w.Time))
}
