package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/hexburg/internal/economy"
	"github.com/talgya/hexburg/internal/engine"
	"github.com/talgya/hexburg/internal/world"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "hexburg.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleState() engine.GameState {
	east := world.DirE
	return engine.GameState{
		Width: 3,
		Terrain: []world.Terrain{
			world.TerrainGround, world.TerrainGround, world.TerrainWater,
			world.TerrainGround, world.TerrainGround, world.TerrainGround,
		},
		Contents: []engine.SavedContent{
			{Coord: world.HexCoord{X: 0, Z: 0}, Template: "hut", Tiers: []string{"house"}, Facing: &east},
			{Coord: world.HexCoord{X: 1, Z: 0}, Template: "road", Facing: &east},
			{Coord: world.HexCoord{X: 2, Z: 0}, Template: "reeds"},
			{Coord: world.HexCoord{X: 0, Z: 1}, Template: "farm", Facing: &east, UnderConstruction: true, Built: 2.5},
		},
		Resources: map[economy.Resource]int{"wood": 12, "bread": 3},
		Tick:      42,
		Time:      4.2,
	}
}

func TestSaveLoadGame(t *testing.T) {
	db := openTestDB(t)
	gs := sampleState()

	info, err := db.SaveGame("first", gs)
	require.NoError(t, err)
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, 2, info.Height)
	assert.Equal(t, 4, info.Contents)

	loaded, err := db.LoadGame(info.ID)
	require.NoError(t, err)
	assert.Equal(t, gs, loaded)
}

func TestLoadGame_Missing(t *testing.T) {
	db := openTestDB(t)
	_, err := db.LoadGame("nope")
	assert.ErrorIs(t, err, ErrNoSave)
	_, err = db.LatestSave()
	assert.ErrorIs(t, err, ErrNoSave)
	assert.ErrorIs(t, db.DeleteSave("nope"), ErrNoSave)
}

func TestListAndLatest(t *testing.T) {
	db := openTestDB(t)
	gs := sampleState()

	first, err := db.SaveGame("a", gs)
	require.NoError(t, err)
	gs.Tick = 99
	second, err := db.SaveGame("b", gs)
	require.NoError(t, err)

	latest, err := db.LatestSave()
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	assert.Equal(t, uint64(99), latest.Tick)
	assert.WithinDuration(t, second.CreatedAt, latest.CreatedAt, time.Second)

	saves, err := db.ListSaves()
	require.NoError(t, err)
	require.Len(t, saves, 2)
	assert.Equal(t, []string{second.ID, first.ID}, []string{saves[0].ID, saves[1].ID})

	require.NoError(t, db.DeleteSave(second.ID))
	latest, err = db.LatestSave()
	require.NoError(t, err)
	assert.Equal(t, first.ID, latest.ID)
	_, err = db.LoadGame(second.ID)
	assert.ErrorIs(t, err, ErrNoSave)
}

func TestEventsAndMeta(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.SaveEvents(nil))
	require.NoError(t, db.SaveEvents([]engine.Event{
		{Tick: 1, Description: "Hut placed", Category: engine.CategoryBuild},
		{Tick: 2, Description: "Hut upgraded", Category: engine.CategoryUpgrade},
		{Tick: 3, Description: "Road demolished", Category: engine.CategoryDemolish},
	}))

	events, err := db.RecentEvents(2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, uint64(3), events[0].Tick)
	assert.Equal(t, "Hut upgraded", events[1].Description)

	require.NoError(t, db.SaveMeta("last_tick", "10"))
	require.NoError(t, db.SaveMeta("last_tick", "11"))
	v, err := db.GetMeta("last_tick")
	require.NoError(t, err)
	assert.Equal(t, "11", v)

	_, err = db.GetMeta("missing")
	assert.Error(t, err)
}
