package world

import (
	"errors"
	"fmt"
)

var (
	ErrOutOfBounds         = errors.New("coordinate outside grid")
	ErrOccupied            = errors.New("cell is occupied")
	ErrIncompatibleTerrain = errors.New("terrain incompatible with content")
	ErrEmptyTerrain        = errors.New("terrain data is empty")
	ErrRaggedTerrain       = errors.New("terrain rows differ in width")
)

// Grid holds every cell of the map in row-major order.
// Cells are created by Generate and never resized afterwards.
type Grid struct {
	Width  int `json:"width"`
	Height int `json:"height"`

	cells []Cell
}

// NewGrid creates an empty grid. Call Generate to populate it.
func NewGrid() *Grid {
	return &Grid{}
}

// Generate builds width × height cells from terrain rows (rows[z][x]) and
// wires neighbor links. Odd rows sit half a cell east of even rows, so the
// links toward the previous row depend on row parity. Calling Generate again
// discards every existing cell.
func (g *Grid) Generate(rows [][]Terrain) error {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return ErrEmptyTerrain
	}
	width := len(rows[0])
	for z, row := range rows {
		if len(row) != width {
			return fmt.Errorf("row %d has %d cells, want %d: %w", z, len(row), width, ErrRaggedTerrain)
		}
	}

	g.Width = width
	g.Height = len(rows)
	g.cells = make([]Cell, width*len(rows))

	for i := range g.cells {
		x := i % g.Width
		z := i / g.Width

		c := &g.cells[i]
		c.Index = i
		c.Coord = offsetToAxial(x, z)
		c.Terrain = rows[z][x]
		c.neighbors = [6]int{-1, -1, -1, -1, -1, -1}

		if x > 0 {
			g.setNeighbor(i, i-1, DirW)
		}
		if z > 0 {
			if z&1 == 0 {
				g.setNeighbor(i, i-g.Width, DirNE)
				if x > 0 {
					g.setNeighbor(i, i-g.Width-1, DirNW)
				}
			} else {
				g.setNeighbor(i, i-g.Width, DirNW)
				if x < g.Width-1 {
					g.setNeighbor(i, i-g.Width+1, DirNE)
				}
			}
		}
	}
	return nil
}

// setNeighbor links a→b in direction d and b→a in the opposite direction.
func (g *Grid) setNeighbor(a, b int, d Direction) {
	ca, cb := &g.cells[a], &g.cells[b]
	op := d.Opposite()
	if ca.neighbors[d] != -1 || cb.neighbors[op] != -1 {
		panic(fmt.Sprintf("world: neighbor slot set twice: %v %v / %v %v", ca.Coord, d, cb.Coord, op))
	}
	ca.neighbors[d] = b
	cb.neighbors[op] = a
}

// Len returns the number of cells.
func (g *Grid) Len() int {
	return len(g.cells)
}

// Index converts a coordinate to its row-major array index.
func (g *Grid) Index(coord HexCoord) (int, error) {
	x, z := axialToOffset(coord)
	if x < 0 || z < 0 || x >= g.Width || z >= g.Height {
		return -1, fmt.Errorf("%v: %w", coord, ErrOutOfBounds)
	}
	return z*g.Width + x, nil
}

// Coord converts an array index to its coordinate.
func (g *Grid) Coord(index int) (HexCoord, error) {
	if index < 0 || index >= len(g.cells) {
		return HexCoord{}, fmt.Errorf("index %d: %w", index, ErrOutOfBounds)
	}
	return g.cells[index].Coord, nil
}

// Cell returns the cell at the given coordinate.
func (g *Grid) Cell(coord HexCoord) (*Cell, error) {
	i, err := g.Index(coord)
	if err != nil {
		return nil, err
	}
	return &g.cells[i], nil
}

// CellAt returns the cell at the given array index.
func (g *Grid) CellAt(index int) (*Cell, error) {
	if index < 0 || index >= len(g.cells) {
		return nil, fmt.Errorf("index %d: %w", index, ErrOutOfBounds)
	}
	return &g.cells[index], nil
}

// CellAtOffset returns the cell at column x, row z.
func (g *Grid) CellAtOffset(x, z int) (*Cell, error) {
	if x < 0 || z < 0 || x >= g.Width || z >= g.Height {
		return nil, fmt.Errorf("offset (%d, %d): %w", x, z, ErrOutOfBounds)
	}
	return &g.cells[z*g.Width+x], nil
}

// Cells returns the backing cell slice. Callers must not reslice it.
func (g *Grid) Cells() []Cell {
	return g.cells
}

// SetContent places content on a cell. Fails without mutation when the cell
// is occupied or its terrain does not match the content's requirement.
func (g *Grid) SetContent(index int, content Content) error {
	c, err := g.CellAt(index)
	if err != nil {
		return err
	}
	if c.content != nil {
		return fmt.Errorf("%v: %w", c.Coord, ErrOccupied)
	}
	if c.Terrain != content.Terrain {
		return fmt.Errorf("%v is %s: %w", c.Coord, TerrainName(c.Terrain), ErrIncompatibleTerrain)
	}
	cc := content
	c.content = &cc
	return nil
}

// ClearContent removes the cell's occupant and returns it.
func (g *Grid) ClearContent(index int) (Content, bool) {
	c, err := g.CellAt(index)
	if err != nil || c.content == nil {
		return Content{}, false
	}
	prev := *c.content
	c.content = nil
	return prev, true
}

// SetTerrain changes a cell's terrain. An occupant that requires a different
// terrain is forcibly cleared and returned.
func (g *Grid) SetTerrain(index int, t Terrain) (*Content, error) {
	c, err := g.CellAt(index)
	if err != nil {
		return nil, err
	}
	c.Terrain = t

	var cleared *Content
	if c.content != nil && c.content.Terrain != t {
		cleared = c.content
		c.content = nil
	}
	return cleared, nil
}

// FlatTerrain returns every cell's terrain in row-major order.
func (g *Grid) FlatTerrain() []Terrain {
	out := make([]Terrain, len(g.cells))
	for i := range g.cells {
		out[i] = g.cells[i].Terrain
	}
	return out
}

// TerrainRows splits a row-major terrain slice into rows of the given width.
func TerrainRows(width int, flat []Terrain) ([][]Terrain, error) {
	if width <= 0 || len(flat) == 0 {
		return nil, ErrEmptyTerrain
	}
	if len(flat)%width != 0 {
		return nil, fmt.Errorf("%d cells do not divide into rows of %d: %w", len(flat), width, ErrRaggedTerrain)
	}
	rows := make([][]Terrain, 0, len(flat)/width)
	for i := 0; i < len(flat); i += width {
		row := make([]Terrain, width)
		copy(row, flat[i:i+width])
		rows = append(rows, row)
	}
	return rows, nil
}

// TerrainFromInts converts integer rows (0 = water, anything else = ground).
func TerrainFromInts(data [][]int) [][]Terrain {
	rows := make([][]Terrain, len(data))
	for z, src := range data {
		rows[z] = make([]Terrain, len(src))
		for x, v := range src {
			if v != 0 {
				rows[z][x] = TerrainGround
			}
		}
	}
	return rows
}

// offsetToAxial converts column/row offset coordinates to axial.
func offsetToAxial(x, z int) HexCoord {
	return HexCoord{X: x - (z-(z&1))/2, Z: z}
}

func axialToOffset(h HexCoord) (x, z int) {
	return h.X + (h.Z-(h.Z&1))/2, h.Z
}
