package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/hexburg/internal/catalog"
	"github.com/talgya/hexburg/internal/economy"
	"github.com/talgya/hexburg/internal/world"
)

func TestPlaceBuilding_AffordabilityGate(t *testing.T) {
	w := newTestWorld(t, 3, 3, map[economy.Resource]int{"wood": 5})
	statue := tier(t, w, "statue")

	assert.False(t, w.PlaceBuilding(statue, at(1, 1)))
	assert.Equal(t, map[economy.Resource]int{"wood": 5}, w.Ledger.Snapshot())
	assert.ErrorIs(t, w.CheckPlacement(statue, at(1, 1)), ErrUnaffordable)

	c, err := w.Grid.Cell(at(1, 1))
	require.NoError(t, err)
	assert.False(t, c.Occupied())
	assert.Empty(t, w.Buildings())
}

func TestPlaceBuilding_ChargesCost(t *testing.T) {
	w := newTestWorld(t, 3, 3, map[economy.Resource]int{"wood": 12})
	require.True(t, w.PlaceBuilding(tier(t, w, "statue"), at(1, 1)))
	assert.Equal(t, 2, w.Ledger.Get("wood"))

	b, err := w.BuildingAt(at(1, 1))
	require.NoError(t, err)
	assert.Equal(t, world.DirNE, b.Facing)
	assert.Equal(t, StateActive, b.State)
}

func TestCheckPlacement_Reasons(t *testing.T) {
	rows := flatRows(3, 1)
	rows[0][2] = world.TerrainWater
	cat, err := catalog.Parse([]byte(testCatalog))
	require.NoError(t, err)
	w, err := NewWorld(cat, rows, Config{Seed: 1, Strict: true})
	require.NoError(t, err)

	road := tier(t, w, "road")
	require.NoError(t, w.CheckPlacement(road, at(0, 0)))
	require.True(t, w.PlaceRoad(road, at(0, 0)))

	assert.ErrorIs(t, w.CheckPlacement(road, at(0, 0)), world.ErrOccupied)
	assert.ErrorIs(t, w.CheckPlacement(road, at(2, 0)), world.ErrIncompatibleTerrain)
	assert.ErrorIs(t, w.CheckPlacement(road, at(5, 0)), world.ErrOutOfBounds)
	assert.ErrorIs(t, w.CheckPlacement(catalog.TierID(99), at(1, 0)), catalog.ErrUnknownTemplate)

	assert.True(t, w.PlaceProp(tier(t, w, "reeds"), at(2, 0)))
	assert.False(t, w.PlaceProp(road, at(1, 0)))
	assert.False(t, w.PlaceRoad(tier(t, w, "tree"), at(1, 0)))
	assert.False(t, w.PlaceBuilding(tier(t, w, "tree"), at(1, 0)))
}

func TestPlaceProp_NoBuildingInstance(t *testing.T) {
	w := newTestWorld(t, 2, 1, nil)
	id, err := w.Place(tier(t, w, "tree"), at(0, 0))
	require.NoError(t, err)
	assert.Equal(t, NoBuilding, id)
	assert.Empty(t, w.Buildings())

	_, err = w.BuildingAt(at(0, 0))
	assert.ErrorIs(t, err, ErrNotABuilding)
	assert.True(t, w.Demolish(at(0, 0)))
}

func TestPlaceRoads_AlongPath(t *testing.T) {
	rows := flatRows(7, 1)
	rows[0][3] = world.TerrainWater
	cat, err := catalog.Parse([]byte(testCatalog))
	require.NoError(t, err)
	w, err := NewWorld(cat, rows, Config{Seed: 1, Strict: true, StartingResources: map[economy.Resource]int{"wood": 4}})
	require.NoError(t, err)

	mustPlace(t, w, "tree", at(1, 0))
	var path []world.HexCoord
	for x := 0; x < 7; x++ {
		path = append(path, at(x, 0))
	}

	before := w.Access.Recomputes()
	placed, err := w.PlaceRoads(tier(t, w, "paved"), path)
	require.NoError(t, err)

	// (1,0) holds a tree and (3,0) is water; four wood pays for 0, 2, 4, 5.
	assert.Equal(t, 4, placed)
	assert.Equal(t, 0, w.Ledger.Get("wood"))
	c, _ := w.Grid.Cell(at(6, 0))
	assert.False(t, c.Occupied())
	assert.Equal(t, before+1, w.Access.Recomputes())

	_, err = w.PlaceRoads(tier(t, w, "hut"), path)
	assert.ErrorIs(t, err, ErrWrongKind)
}

func TestPlaceRoads_StopsWhenUnaffordable(t *testing.T) {
	w := newTestWorld(t, 6, 1, map[economy.Resource]int{"wood": 2})
	placed, err := w.PlaceRoads(tier(t, w, "paved"), []world.HexCoord{at(0, 0), at(1, 0), at(2, 0), at(3, 0)})
	require.NoError(t, err)
	assert.Equal(t, 2, placed)
	c, _ := w.Grid.Cell(at(2, 0))
	assert.False(t, c.Occupied())
}

func TestDemolish_ReversesEffects(t *testing.T) {
	w := newTestWorld(t, 4, 2, nil)
	hut := mustPlace(t, w, "hut", at(0, 0))
	mustPlace(t, w, "road", at(1, 0))
	farm := mustPlace(t, w, "farm", at(2, 0))

	w.Step(1)
	require.Equal(t, 4, w.Pop.Population)
	require.Equal(t, 2, w.Pop.AssignedJobs)
	require.Equal(t, 2, w.Building(farm).Workers)

	assert.True(t, w.Demolish(at(2, 0)))
	assert.Nil(t, w.Building(farm))
	assert.Equal(t, 0, w.Pop.AssignedJobs)
	assert.Equal(t, 0, w.Pop.TotalJobs)
	assert.Equal(t, 0, w.Access.ResourceAccess(cellIndex(t, w, at(0, 0)), "grain"))

	assert.True(t, w.Demolish(at(0, 0)))
	assert.Nil(t, w.Building(hut))
	assert.Equal(t, Population{}, w.Pop)

	assert.False(t, w.Demolish(at(0, 0)))
	assert.ErrorIs(t, w.CheckDemolish(at(0, 0)), ErrEmptyCell)
	assert.False(t, w.Demolish(at(9, 9)))

	// Freed slots are reused lowest first.
	again := mustPlace(t, w, "hut", at(0, 0))
	assert.Equal(t, hut, again)
}

func TestDemolish_HomelessWorkersReleased(t *testing.T) {
	w := newTestWorld(t, 5, 2, nil)
	mustPlace(t, w, "hut", at(0, 0))
	mustPlace(t, w, "road", at(1, 0))
	mustPlace(t, w, "road", at(2, 0))
	farm := mustPlace(t, w, "farm", at(3, 0))
	mustPlace(t, w, "hut", at(2, 1))

	w.Step(1)
	require.Equal(t, 8, w.Pop.Population)
	require.Equal(t, 2, w.Pop.AssignedJobs)

	require.True(t, w.Demolish(at(0, 0)))
	require.True(t, w.Demolish(at(2, 1)))
	assert.Equal(t, 0, w.Pop.Population)
	assert.Equal(t, 2, w.Pop.AssignedJobs)

	// The farm loses access to workers and drops its staff.
	w.Step(1)
	assert.Equal(t, 0, w.Building(farm).Workers)
	assert.Equal(t, 0, w.Pop.AssignedJobs)
}

func TestSetTerrainType_ClearsIncompatible(t *testing.T) {
	w := newTestWorld(t, 3, 1, nil)
	mustPlace(t, w, "road", at(0, 0))
	hut := mustPlace(t, w, "hut", at(1, 0))
	w.Step(1)
	require.Equal(t, 4, w.Pop.Population)

	assert.True(t, w.SetTerrainType(at(1, 0), world.TerrainGround))
	assert.NotNil(t, w.Building(hut))

	assert.True(t, w.SetTerrainType(at(1, 0), world.TerrainWater))
	assert.Nil(t, w.Building(hut))
	assert.Equal(t, Population{}, w.Pop)
	c, _ := w.Grid.Cell(at(1, 0))
	assert.Equal(t, world.TerrainWater, c.Terrain)
	assert.False(t, c.Occupied())

	assert.True(t, w.SetTerrainType(at(0, 0), world.TerrainWater))
	assert.Equal(t, 0, w.Access.RoadAccess(cellIndex(t, w, at(1, 0))))
	assert.False(t, w.SetTerrainType(at(7, 0), world.TerrainWater))
}

func TestUpgradeDowngrade_InverseLaw(t *testing.T) {
	w := newTestWorld(t, 3, 1, map[economy.Resource]int{"stone": 2})
	mustPlace(t, w, "road", at(0, 0))
	id := mustPlace(t, w, "hut", at(1, 0))
	w.Step(1)

	require.True(t, w.Upgrade(id))
	b := w.Building(id)
	stack := append([]catalog.TierID(nil), b.Tiers...)
	require.Len(t, stack, 2)
	w.Step(1)
	pop := w.Pop
	require.Equal(t, 6, pop.Population)

	require.True(t, w.Upgrade(id))
	assert.Len(t, b.Tiers, 3)
	assert.Equal(t, 10, w.Pop.MaxPopulation)

	require.True(t, w.Downgrade(id))
	assert.Equal(t, stack, b.Tiers)
	assert.Equal(t, pop, w.Pop)
	assert.Equal(t, 6, w.Access.WorkerAccess(cellIndex(t, w, at(0, 0))))
}

func TestDowngrade_EvictsExcessResidents(t *testing.T) {
	w := newTestWorld(t, 3, 1, map[economy.Resource]int{"stone": 1})
	mustPlace(t, w, "road", at(0, 0))
	id := mustPlace(t, w, "hut", at(1, 0))
	w.Step(1)
	require.True(t, w.Upgrade(id))
	w.Step(1)
	require.Equal(t, 6, w.Pop.Population)

	require.True(t, w.Downgrade(id))
	assert.Equal(t, 4, w.Building(id).Workers)
	assert.Equal(t, Population{Population: 4, MaxPopulation: 4}, w.Pop)

	assert.False(t, w.Downgrade(id))
	assert.ErrorIs(t, w.CheckDowngrade(id), ErrBaseTier)
	assert.ErrorIs(t, w.CheckDowngrade(BuildingID(42)), ErrNotABuilding)
}

func TestUpgrade_Preconditions(t *testing.T) {
	w := newTestWorld(t, 4, 2, nil)
	hut := mustPlace(t, w, "hut", at(0, 0))

	// No stone.
	assert.ErrorIs(t, w.CheckUpgrade(hut), ErrUnaffordable)
	w.Ledger.Add("stone", 1)
	// No road access.
	assert.ErrorIs(t, w.CheckUpgrade(hut), ErrUpgradeBlocked)
	assert.False(t, w.CanUpgrade(hut))
	assert.False(t, w.Upgrade(hut))
	assert.Equal(t, 1, w.Ledger.Get("stone"))

	mustPlace(t, w, "road", at(1, 0))
	assert.True(t, w.CanUpgrade(hut))
	assert.True(t, w.Upgrade(hut))
	assert.Equal(t, 0, w.Ledger.Get("stone"))

	shed := mustPlace(t, w, "shed", at(2, 0))
	assert.ErrorIs(t, w.CheckUpgrade(shed), ErrNoUpgrade)
	assert.ErrorIs(t, w.CheckUpgrade(BuildingID(99)), ErrNotABuilding)
}

func TestUpgrade_AccessRequirements(t *testing.T) {
	w := newTestWorld(t, 6, 2, nil)
	mustPlace(t, w, "road", at(1, 0))
	bakery := mustPlace(t, w, "bakery", at(2, 0))

	// Road access, but no workers and no grain on the network.
	assert.ErrorIs(t, w.CheckUpgrade(bakery), ErrUpgradeBlocked)

	mustPlace(t, w, "hut", at(0, 0))
	assert.ErrorIs(t, w.CheckUpgrade(bakery), ErrUpgradeBlocked)

	mustPlace(t, w, "farm", at(1, 1))
	assert.NoError(t, w.CheckUpgrade(bakery))

	w.Step(1)
	jobs := w.Pop.TotalJobs
	require.True(t, w.Upgrade(bakery))
	assert.Equal(t, jobs+2, w.Pop.TotalJobs)
	assert.Equal(t, "bakehouse", w.Template(w.Building(bakery)).ID)
}

func TestUpgrade_KindChange(t *testing.T) {
	w := newTestWorld(t, 4, 1, nil)
	mustPlace(t, w, "hut", at(0, 0))
	mustPlace(t, w, "road", at(1, 0))
	conv := mustPlace(t, w, "converter", at(2, 0))
	w.Step(1)
	require.Equal(t, 1, w.Building(conv).Workers)
	require.Equal(t, 1, w.Pop.TotalJobs)

	require.True(t, w.Upgrade(conv))
	assert.Equal(t, 0, w.Pop.TotalJobs)
	assert.Equal(t, 0, w.Pop.AssignedJobs)
	assert.Equal(t, 9, w.Pop.MaxPopulation)
	assert.Equal(t, 0, w.Building(conv).Workers)

	w.Step(1)
	assert.Equal(t, 9, w.Pop.Population)

	require.True(t, w.Downgrade(conv))
	assert.Equal(t, 4, w.Pop.MaxPopulation)
	assert.Equal(t, 4, w.Pop.Population)
	assert.Equal(t, 1, w.Pop.TotalJobs)
}
