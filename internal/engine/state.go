package engine

import (
	"fmt"

	"github.com/talgya/hexburg/internal/catalog"
	"github.com/talgya/hexburg/internal/economy"
	"github.com/talgya/hexburg/internal/world"
)

// GameState is the save contract: grid width, row-major terrain, placed
// content in cell order, and the ledger. Loading replays placements against
// a freshly generated grid.
type GameState struct {
	Width     int                      `json:"width"`
	Terrain   []world.Terrain          `json:"terrain"`
	Contents  []SavedContent           `json:"contents"`
	Resources map[economy.Resource]int `json:"resources"`
	Tick      uint64                   `json:"tick"`
	Time      float64                  `json:"time"`
}

// SavedContent is one placed template. Tiers lists the upgrade stack above
// the placed template, lowest first.
type SavedContent struct {
	Coord             world.HexCoord   `json:"coord"`
	Template          string           `json:"template"`
	Tiers             []string         `json:"tiers,omitempty"`
	Facing            *world.Direction `json:"facing,omitempty"`
	UnderConstruction bool             `json:"under_construction,omitempty"`
	Built             float64          `json:"built,omitempty"`
}

// Capture snapshots the world into a GameState.
func (w *World) Capture() GameState {
	gs := GameState{
		Width:     w.Grid.Width,
		Terrain:   w.Grid.FlatTerrain(),
		Resources: w.Ledger.Snapshot(),
		Tick:      w.Tick,
		Time:      w.Time,
	}
	cells := w.Grid.Cells()
	for i := range cells {
		content, ok := cells[i].Content()
		if !ok {
			continue
		}
		sc := SavedContent{Coord: cells[i].Coord}
		if b := w.Building(BuildingID(content.Building)); content.Building != world.NoBuilding && b != nil {
			sc.Template = w.Catalog.Tier(b.Base()).ID
			for _, tier := range b.Tiers[1:] {
				sc.Tiers = append(sc.Tiers, w.Catalog.Tier(tier).ID)
			}
			facing := b.Facing
			sc.Facing = &facing
			if b.State != StateActive {
				sc.UnderConstruction = true
				sc.Built = b.Built
			}
		} else {
			sc.Template = w.Catalog.Tier(catalog.TierID(content.Template)).ID
		}
		gs.Contents = append(gs.Contents, sc)
	}
	return gs
}

// Restore replaces the world with a saved state. Placement is replayed in
// list order without charging costs; upgrade stacks are rebuilt tier by
// tier. On error the world holds whatever was restored so far.
func (w *World) Restore(gs GameState) error {
	rows, err := world.TerrainRows(gs.Width, gs.Terrain)
	if err != nil {
		return fmt.Errorf("restore terrain: %w", err)
	}
	if err := w.Reset(rows); err != nil {
		return err
	}

	flush := w.Access.Defer()
	defer flush()

	for i, sc := range gs.Contents {
		if err := w.restoreContent(sc); err != nil {
			return fmt.Errorf("restore content %d (%s at %v): %w", i, sc.Template, sc.Coord, err)
		}
	}
	w.Ledger.Restore(gs.Resources)
	w.Tick = gs.Tick
	w.Time = gs.Time
	w.events = nil
	return nil
}

func (w *World) restoreContent(sc SavedContent) error {
	t, err := w.Catalog.Get(sc.Template)
	if err != nil {
		return err
	}
	c, err := w.Grid.Cell(sc.Coord)
	if err != nil {
		return err
	}
	if !t.CanBePlacedOn(c) {
		return fmt.Errorf("%v: %w", sc.Coord, world.ErrIncompatibleTerrain)
	}

	if sc.UnderConstruction && t.Kind.IsBuilding() && t.BuildSeconds > 0 {
		// Keep the site unfinished: put activates instantly only when
		// BuildSeconds is zero.
		id, err := w.put(t, sc.Coord)
		if err != nil {
			return err
		}
		b := w.Building(id)
		b.Built = sc.Built
		if sc.Facing != nil {
			b.Facing = *sc.Facing
		}
		return nil
	}

	id, err := w.putActive(t, sc.Coord)
	if err != nil {
		return err
	}
	b := w.Building(id)
	if b == nil {
		return nil
	}
	if sc.Facing != nil {
		b.Facing = *sc.Facing
	}
	for _, tierID := range sc.Tiers {
		cur := w.Template(b)
		if cur.Upgrade == nil {
			return fmt.Errorf("%s has no upgrade to %s: %w", cur.ID, tierID, ErrNoUpgrade)
		}
		next := w.Catalog.Tier(cur.Upgrade.TargetTier())
		if next.ID != tierID {
			return fmt.Errorf("%s upgrades to %s, not %s: %w", cur.ID, next.ID, tierID, ErrNoUpgrade)
		}
		w.swapTier(b, cur, next, func() { b.Tiers = append(b.Tiers, next.Tier()) })
	}
	return nil
}

// putActive places content and completes any construction immediately.
func (w *World) putActive(t *catalog.Template, coord world.HexCoord) (BuildingID, error) {
	id, err := w.put(t, coord)
	if err != nil {
		return NoBuilding, err
	}
	if b := w.Building(id); b != nil && b.State != StateActive {
		w.activate(b)
	}
	return id, nil
}
