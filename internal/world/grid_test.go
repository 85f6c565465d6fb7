package world

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func groundRows(width, height int) [][]Terrain {
	rows := make([][]Terrain, height)
	for z := range rows {
		rows[z] = make([]Terrain, width)
		for x := range rows[z] {
			rows[z][x] = TerrainGround
		}
	}
	return rows
}

func TestGenerate_AdjacencySymmetry(t *testing.T) {
	g := NewGrid()
	require.NoError(t, g.Generate(groundRows(7, 6)))
	require.Equal(t, 42, g.Len())

	for i := range g.Cells() {
		c := &g.Cells()[i]
		for _, d := range Directions() {
			n := c.Neighbor(d)
			if n < 0 {
				continue
			}
			other, err := g.CellAt(n)
			require.NoError(t, err)
			assert.Equal(t, i, other.Neighbor(d.Opposite()), "cell %v dir %v", c.Coord, d)
		}
	}
}

func TestGenerate_NeighborsMatchDirectionOffsets(t *testing.T) {
	g := NewGrid()
	require.NoError(t, g.Generate(groundRows(6, 5)))

	for i := range g.Cells() {
		c := &g.Cells()[i]
		for _, d := range Directions() {
			want := c.Coord.Neighbor(d)
			n := c.Neighbor(d)
			wantIdx, err := g.Index(want)
			if err != nil {
				assert.Equal(t, -1, n, "cell %v dir %v should be open", c.Coord, d)
				continue
			}
			assert.Equal(t, wantIdx, n, "cell %v dir %v", c.Coord, d)
		}
	}
}

func TestGenerate_InteriorCellsHaveSixNeighbors(t *testing.T) {
	g := NewGrid()
	require.NoError(t, g.Generate(groundRows(5, 5)))
	c, err := g.CellAtOffset(2, 2)
	require.NoError(t, err)
	for _, n := range c.NeighborIndices() {
		assert.NotEqual(t, -1, n)
	}
	corner, err := g.CellAtOffset(0, 0)
	require.NoError(t, err)
	assert.Equal(t, -1, corner.Neighbor(DirW))
	assert.Equal(t, -1, corner.Neighbor(DirNE))
}

func TestGenerate_Idempotent(t *testing.T) {
	g := NewGrid()
	require.NoError(t, g.Generate(groundRows(4, 4)))
	require.NoError(t, g.SetContent(3, Content{Template: 1, Building: 0, Terrain: TerrainGround}))

	require.NoError(t, g.Generate(groundRows(3, 2)))
	assert.Equal(t, 3, g.Width)
	assert.Equal(t, 2, g.Height)
	assert.Equal(t, 6, g.Len())
	for i := range g.Cells() {
		assert.False(t, g.Cells()[i].Occupied())
	}
}

func TestGenerate_RejectsBadInput(t *testing.T) {
	g := NewGrid()
	assert.ErrorIs(t, g.Generate(nil), ErrEmptyTerrain)
	assert.ErrorIs(t, g.Generate([][]Terrain{{TerrainGround}, {}}), ErrRaggedTerrain)
}

func TestGrid_IndexRoundTrip(t *testing.T) {
	g := NewGrid()
	require.NoError(t, g.Generate(groundRows(5, 4)))
	for i := 0; i < g.Len(); i++ {
		coord, err := g.Coord(i)
		require.NoError(t, err)
		idx, err := g.Index(coord)
		require.NoError(t, err)
		assert.Equal(t, i, idx)
	}
}

func TestGrid_OutOfBounds(t *testing.T) {
	g := NewGrid()
	require.NoError(t, g.Generate(groundRows(3, 3)))

	for _, c := range []HexCoord{{X: -1, Z: 0}, {X: 3, Z: 0}, {X: 0, Z: 3}, {X: 0, Z: -1}} {
		_, err := g.Cell(c)
		assert.ErrorIs(t, err, ErrOutOfBounds, "coord %v", c)
	}
	_, err := g.CellAt(9)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestGrid_SetContentValidates(t *testing.T) {
	rows := groundRows(3, 1)
	rows[0][2] = TerrainWater
	g := NewGrid()
	require.NoError(t, g.Generate(rows))

	ground := Content{Template: 0, Building: NoBuilding, Terrain: TerrainGround}
	require.NoError(t, g.SetContent(0, ground))
	assert.ErrorIs(t, g.SetContent(0, ground), ErrOccupied)
	assert.ErrorIs(t, g.SetContent(2, ground), ErrIncompatibleTerrain)
	assert.False(t, g.Cells()[2].Occupied())

	prev, ok := g.ClearContent(0)
	assert.True(t, ok)
	assert.Equal(t, ground, prev)
	_, ok = g.ClearContent(0)
	assert.False(t, ok)
}

func TestGrid_SetTerrainClearsIncompatibleOccupant(t *testing.T) {
	g := NewGrid()
	require.NoError(t, g.Generate(groundRows(2, 1)))
	require.NoError(t, g.SetContent(1, Content{Template: 4, Building: 2, Terrain: TerrainGround}))

	cleared, err := g.SetTerrain(1, TerrainGround)
	require.NoError(t, err)
	assert.Nil(t, cleared)

	cleared, err = g.SetTerrain(1, TerrainWater)
	require.NoError(t, err)
	require.NotNil(t, cleared)
	assert.Equal(t, 2, cleared.Building)
	assert.False(t, g.Cells()[1].Occupied())
}

func TestTerrainRows_FromFlat(t *testing.T) {
	flat := []Terrain{TerrainGround, TerrainWater, TerrainGround, TerrainGround}
	rows, err := TerrainRows(2, flat)
	require.NoError(t, err)
	assert.Equal(t, [][]Terrain{{TerrainGround, TerrainWater}, {TerrainGround, TerrainGround}}, rows)

	_, err = TerrainRows(3, flat)
	assert.ErrorIs(t, err, ErrRaggedTerrain)

	g := NewGrid()
	require.NoError(t, g.Generate(rows))
	assert.Equal(t, flat, g.FlatTerrain())
}

func TestTerrainFromInts(t *testing.T) {
	rows := TerrainFromInts([][]int{{1, 0}, {0, 2}})
	assert.Equal(t, [][]Terrain{{TerrainGround, TerrainWater}, {TerrainWater, TerrainGround}}, rows)
}

func TestGenerateTerrain_Deterministic(t *testing.T) {
	cfg := SmallTestConfig()
	a := GenerateTerrain(cfg)
	b := GenerateTerrain(cfg)
	require.Len(t, a, cfg.Height)
	require.Len(t, a[0], cfg.Width)
	assert.Equal(t, a, b)

	counts := TerrainCounts(a)
	assert.Equal(t, cfg.Width*cfg.Height, counts[TerrainWater]+counts[TerrainGround])
}

func TestGenerateTerrain_NoLakes(t *testing.T) {
	cfg := SmallTestConfig()
	cfg.Lakes = false
	rows := GenerateTerrain(cfg)

	g := NewGrid()
	require.NoError(t, g.Generate(rows))

	// Flood from border water; every water cell must be reached.
	reached := make([]bool, g.Len())
	var queue []int
	for i := range g.Cells() {
		c := &g.Cells()[i]
		if c.Terrain != TerrainWater {
			continue
		}
		for _, n := range c.NeighborIndices() {
			if n < 0 {
				reached[i] = true
				queue = append(queue, i)
				break
			}
		}
	}
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		for _, n := range g.Cells()[i].NeighborIndices() {
			if n >= 0 && !reached[n] && g.Cells()[n].Terrain == TerrainWater {
				reached[n] = true
				queue = append(queue, n)
			}
		}
	}
	for i := range g.Cells() {
		if g.Cells()[i].Terrain == TerrainWater {
			assert.True(t, reached[i], "landlocked water at %v", g.Cells()[i].Coord)
		}
	}
}

func TestReadTerrain(t *testing.T) {
	rows, err := ReadTerrain(strings.NewReader("~~..\n\n 1 1 0 0 \n"))
	require.NoError(t, err)
	assert.Equal(t, [][]Terrain{
		{TerrainWater, TerrainWater, TerrainGround, TerrainGround},
		{TerrainGround, TerrainGround, TerrainWater, TerrainWater},
	}, rows)

	_, err = ReadTerrain(strings.NewReader("..x.\n"))
	assert.ErrorContains(t, err, "line 1")

	_, err = ReadTerrain(strings.NewReader("\n\n"))
	assert.ErrorIs(t, err, ErrEmptyTerrain)
}
