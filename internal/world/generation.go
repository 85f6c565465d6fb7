// Terrain generation using layered simplex noise.
// Produces water/ground rows for Grid.Generate: a noise elevation field,
// shaped so the map edges sink, thresholded at the water level.

package world

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"math/rand"
	"strings"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds terrain generation parameters.
type GenConfig struct {
	Width      int     // Cells per row
	Height     int     // Rows
	Seed       int64   // Random seed (0 = random)
	WaterLevel float64 // Elevation threshold for water (0.0–1.0)
	Lakes      bool    // Keep inland water; when false only edge-connected water remains
}

// DefaultGenConfig returns a reasonable starting configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Width:      32,
		Height:     32,
		Seed:       0,
		WaterLevel: 0.28,
		Lakes:      true,
	}
}

// SmallTestConfig returns a tiny map for rapid iteration.
func SmallTestConfig() GenConfig {
	return GenConfig{
		Width:      10,
		Height:     10,
		Seed:       42,
		WaterLevel: 0.25,
		Lakes:      true,
	}
}

// GenerateTerrain returns Height rows of Width terrain values.
func GenerateTerrain(cfg GenConfig) [][]Terrain {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	elevNoise := opensimplex.NewNormalized(seed)

	halfW := float64(cfg.Width) / 2
	halfH := float64(cfg.Height) / 2
	radius := math.Max(halfW, halfH)

	rows := make([][]Terrain, cfg.Height)
	for z := 0; z < cfg.Height; z++ {
		rows[z] = make([]Terrain, cfg.Width)
		for x := 0; x < cfg.Width; x++ {
			px, pz := offsetToAxial(x, z).ToPosition()
			elev := octaveNoise(elevNoise, px, pz, 4, 0.12, 0.5)

			// Continental shaping: sink elevation toward the map border.
			dx := (float64(x) + 0.5 - halfW) / radius
			dz := (float64(z) + 0.5 - halfH) / radius
			edgeFalloff := 1.0 - math.Pow(math.Sqrt(dx*dx+dz*dz), 3.5)
			if edgeFalloff < 0 {
				edgeFalloff = 0
			}
			elev *= edgeFalloff

			if elev >= cfg.WaterLevel {
				rows[z][x] = TerrainGround
			}
		}
	}

	if !cfg.Lakes {
		fillLakes(rows)
	}
	return rows
}

// fillLakes turns water cells that cannot reach the map edge through other
// water cells into ground.
func fillLakes(rows [][]Terrain) {
	g := NewGrid()
	if err := g.Generate(rows); err != nil {
		return
	}

	open := make([]bool, g.Len())
	var queue []int
	for i := range g.cells {
		c := &g.cells[i]
		if c.Terrain != TerrainWater {
			continue
		}
		for _, n := range c.neighbors {
			if n < 0 {
				open[i] = true
				queue = append(queue, i)
				break
			}
		}
	}
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		for _, n := range g.cells[i].neighbors {
			if n < 0 || open[n] || g.cells[n].Terrain != TerrainWater {
				continue
			}
			open[n] = true
			queue = append(queue, n)
		}
	}

	for i := range g.cells {
		if g.cells[i].Terrain == TerrainWater && !open[i] {
			rows[i/g.Width][i%g.Width] = TerrainGround
		}
	}
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

// TerrainCounts returns a summary of terrain type distribution.
func TerrainCounts(rows [][]Terrain) map[Terrain]int {
	counts := make(map[Terrain]int)
	for _, row := range rows {
		for _, t := range row {
			counts[t]++
		}
	}
	return counts
}

// ReadTerrain parses a text map: one row per line, '0' or '~' for water and
// '1' or '.' for ground. Blank lines and spaces are ignored.
func ReadTerrain(r io.Reader) ([][]Terrain, error) {
	var rows [][]Terrain
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.ReplaceAll(strings.TrimSpace(sc.Text()), " ", "")
		if text == "" {
			continue
		}
		row := make([]Terrain, 0, len(text))
		for _, ch := range text {
			switch ch {
			case '0', '~':
				row = append(row, TerrainWater)
			case '1', '.':
				row = append(row, TerrainGround)
			default:
				return nil, fmt.Errorf("line %d: unexpected %q", line, ch)
			}
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrEmptyTerrain
	}
	return rows, nil
}
