package world

// Terrain types for hex cells.
type Terrain uint8

const (
	TerrainWater  Terrain = iota // Only water-bound content may be placed
	TerrainGround                // Roads, buildings, and most props
)

// TerrainName returns a human-readable name for a terrain type.
func TerrainName(t Terrain) string {
	switch t {
	case TerrainWater:
		return "Water"
	case TerrainGround:
		return "Ground"
	default:
		return "Unknown"
	}
}

// NoBuilding marks content that has no building instance (props).
const NoBuilding = -1

// Content is the occupant of a cell. Templates and buildings are referenced
// by handle; the catalog and the building arena own the data.
type Content struct {
	Template int     `json:"template"`
	Building int     `json:"building"`
	Terrain  Terrain `json:"terrain"` // terrain the occupant requires
}

// Cell is a single tile of the grid.
type Cell struct {
	Coord   HexCoord `json:"coord"`
	Index   int      `json:"index"`
	Terrain Terrain  `json:"terrain"`

	content   *Content
	neighbors [6]int
}

// Content returns the cell's occupant, if any.
func (c *Cell) Content() (Content, bool) {
	if c.content == nil {
		return Content{}, false
	}
	return *c.content, true
}

// Occupied reports whether the cell holds content.
func (c *Cell) Occupied() bool {
	return c.content != nil
}

// Neighbor returns the index of the neighbor in direction d, or -1.
func (c *Cell) Neighbor(d Direction) int {
	return c.neighbors[d%6]
}

// NeighborIndices returns the neighbor table indexed by Direction; -1 marks
// a missing neighbor at the grid edge.
func (c *Cell) NeighborIndices() [6]int {
	return c.neighbors
}

// DistanceTo returns the hex distance between two cells.
func (c *Cell) DistanceTo(o *Cell) int {
	return Distance(c.Coord, o.Coord)
}
