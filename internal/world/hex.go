// Package world provides the hex grid, terrain, and spatial data structures.
// Uses axial coordinates (x, z) for the hex grid; y is derived.
package world

import (
	"fmt"
	"math"
)

// HexCoord represents a position on the hex grid using axial coordinates.
// The third cube coordinate y is derived: y = -x - z.
type HexCoord struct {
	X int `json:"x"`
	Z int `json:"z"`
}

// Y returns the implicit third cube coordinate.
func (h HexCoord) Y() int {
	return -h.X - h.Z
}

// Add returns the component-wise sum of two coordinates.
func (h HexCoord) Add(o HexCoord) HexCoord {
	return HexCoord{X: h.X + o.X, Z: h.Z + o.Z}
}

// Sub returns the component-wise difference of two coordinates.
func (h HexCoord) Sub(o HexCoord) HexCoord {
	return HexCoord{X: h.X - o.X, Z: h.Z - o.Z}
}

// Neighbor returns the adjacent coordinate in the given direction.
func (h HexCoord) Neighbor(d Direction) HexCoord {
	return h.Add(d.Offset())
}

// Neighbors returns the six adjacent hex coordinates, indexed by Direction.
func (h HexCoord) Neighbors() [6]HexCoord {
	var result [6]HexCoord
	for i, off := range neighborOffsets {
		result[i] = h.Add(off)
	}
	return result
}

func (h HexCoord) String() string {
	return fmt.Sprintf("(%d; %d; %d)", h.X, h.Y(), h.Z)
}

// Distance returns the hex distance between two coordinates.
func Distance(a, b HexCoord) int {
	return (abs(a.X-b.X) + abs(a.Y()-b.Y()) + abs(a.Z-b.Z)) / 2
}

// Direction enumerates the six hex neighbor directions.
type Direction uint8

const (
	DirE Direction = iota
	DirSE
	DirSW
	DirW
	DirNW
	DirNE
)

// neighborOffsets is indexed by Direction. Rows grow southward.
var neighborOffsets = [6]HexCoord{
	{X: 1, Z: 0},  // E
	{X: 0, Z: 1},  // SE
	{X: -1, Z: 1}, // SW
	{X: -1, Z: 0}, // W
	{X: 0, Z: -1}, // NW
	{X: 1, Z: -1}, // NE
}

var directionNames = [6]string{"E", "SE", "SW", "W", "NW", "NE"}

// Directions lists all directions in enum order.
func Directions() [6]Direction {
	return [6]Direction{DirE, DirSE, DirSW, DirW, DirNW, DirNE}
}

// Offset returns the axial offset of one step in this direction.
func (d Direction) Offset() HexCoord {
	return neighborOffsets[d%6]
}

// Opposite returns the direction rotated by 180 degrees.
func (d Direction) Opposite() Direction {
	return d.Rotate(3)
}

// Rotate turns the direction by k sixths of a turn (positive is clockwise).
func (d Direction) Rotate(k int) Direction {
	r := (int(d) + k) % 6
	if r < 0 {
		r += 6
	}
	return Direction(r)
}

// DistanceTo returns the signed number of rotation steps from d to o.
func (d Direction) DistanceTo(o Direction) int {
	return int(o) - int(d)
}

// FlipVertically mirrors the direction across the east-west axis.
func (d Direction) FlipVertically() Direction {
	switch d {
	case DirSE:
		return DirNE
	case DirSW:
		return DirNW
	case DirNW:
		return DirSW
	case DirNE:
		return DirSE
	}
	return d
}

// Angle returns the direction's angle from east in degrees, in (-180, 180].
func (d Direction) Angle() float64 {
	return StepsToAngle(int(d))
}

// StepsToAngle converts rotation steps to degrees clamped to (-180, 180].
func StepsToAngle(steps int) float64 {
	a := steps % 6
	switch {
	case a > 3:
		a -= 6
	case a <= -3:
		a += 6
	}
	return float64(a) * 60
}

func (d Direction) String() string {
	if int(d) < len(directionNames) {
		return directionNames[d]
	}
	return "?"
}

// Cell geometry used by the world position mapping.
const (
	OuterToInner = 0.86602540378
	OuterRadius  = 0.5
	InnerRadius  = OuterRadius * OuterToInner
)

// ToPosition returns the world-space (x, z) center of the hex.
// Odd rows sit half a cell to the east; rows advance toward negative z.
func (h HexCoord) ToPosition() (x, z float64) {
	x = (float64(h.X) + float64(h.Z)*0.5) * (InnerRadius * 2)
	z = -float64(h.Z) * OuterRadius * 1.5
	return x, z
}

// FromPosition returns the hex containing the world-space point (x, z).
func FromPosition(x, z float64) HexCoord {
	fz := -z / (OuterRadius * 1.5)
	fx := x/(InnerRadius*2) - fz*0.5
	fy := -fx - fz

	ix := math.Round(fx)
	iy := math.Round(fy)
	iz := math.Round(fz)

	dx := math.Abs(ix - fx)
	dy := math.Abs(iy - fy)
	dz := math.Abs(iz - fz)

	// Re-derive the coordinate with the largest rounding error.
	if dx > dy && dx > dz {
		ix = -iy - iz
	} else if dz > dy {
		iz = -ix - iy
	}
	return HexCoord{X: int(ix), Z: int(iz)}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
