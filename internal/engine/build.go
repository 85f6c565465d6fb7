// Build-mode operations: the mutation surface used by placement tools.
// Each public operation returns false without touching state when its
// preconditions fail; the Check variants return the reason.

package engine

import (
	"errors"
	"fmt"

	"github.com/talgya/hexburg/internal/catalog"
	"github.com/talgya/hexburg/internal/world"
)

func (w *World) coordOf(cell int) world.HexCoord {
	coord, _ := w.Grid.Coord(cell)
	return coord
}

func (w *World) template(tier catalog.TierID) (*catalog.Template, error) {
	t := w.Catalog.Tier(tier)
	if t == nil {
		return nil, fmt.Errorf("tier %d: %w", tier, catalog.ErrUnknownTemplate)
	}
	return t, nil
}

// CheckPlacement reports why a template cannot be placed at coord, or nil.
func (w *World) CheckPlacement(tier catalog.TierID, coord world.HexCoord) error {
	t, err := w.template(tier)
	if err != nil {
		return err
	}
	return w.checkPlacement(t, coord)
}

func (w *World) checkPlacement(t *catalog.Template, coord world.HexCoord) error {
	c, err := w.Grid.Cell(coord)
	if err != nil {
		return err
	}
	if c.Occupied() {
		return fmt.Errorf("%v: %w", coord, world.ErrOccupied)
	}
	if !t.CanBePlacedOn(c) {
		return fmt.Errorf("%s on %s: %w", t.ID, world.TerrainName(c.Terrain), world.ErrIncompatibleTerrain)
	}
	if !w.Ledger.HasAll(t.Cost) {
		return fmt.Errorf("%s: %w", t.ID, ErrUnaffordable)
	}
	return nil
}

// Place puts a template on a cell, paying its cost. It returns the new
// building's handle, or NoBuilding for props.
func (w *World) Place(tier catalog.TierID, coord world.HexCoord) (BuildingID, error) {
	t, err := w.template(tier)
	if err != nil {
		return NoBuilding, err
	}
	if err := w.checkPlacement(t, coord); err != nil {
		return NoBuilding, err
	}
	id, err := w.put(t, coord)
	if err != nil {
		return NoBuilding, err
	}
	if !w.Ledger.UseAll(t.Cost) {
		w.invariant(false, "cost unaffordable after check", "template", t.ID)
	}
	w.record(CategoryBuild, "%s placed at %v", t.Name, coord)
	return id, nil
}

// put sets content and creates the building instance without charging.
func (w *World) put(t *catalog.Template, coord world.HexCoord) (BuildingID, error) {
	idx, err := w.Grid.Index(coord)
	if err != nil {
		return NoBuilding, err
	}
	id := NoBuilding
	var b *Building
	if t.Kind.IsBuilding() {
		b = w.allocate(idx, t.Tier())
		id = b.ID
		if d, fixed := t.FixedFacing(); fixed {
			b.Facing = d
		} else {
			b.Facing = world.Direction(w.rng.Intn(6))
		}
	}
	content := world.Content{Template: int(t.Tier()), Building: int(id), Terrain: t.RequiredTerrain()}
	if err := w.Grid.SetContent(idx, content); err != nil {
		if b != nil {
			w.release(id)
		}
		return NoBuilding, err
	}
	w.Access.OnContentAdded(idx)
	if b != nil && t.BuildSeconds <= 0 {
		w.activate(b)
	}
	return id, nil
}

func (w *World) placeKind(tier catalog.TierID, coord world.HexCoord, allowed func(catalog.Kind) bool) bool {
	t := w.Catalog.Tier(tier)
	if t == nil || !allowed(t.Kind) {
		return false
	}
	_, err := w.Place(tier, coord)
	return err == nil
}

// PlaceBuilding places any non-prop template.
func (w *World) PlaceBuilding(tier catalog.TierID, coord world.HexCoord) bool {
	return w.placeKind(tier, coord, catalog.Kind.IsBuilding)
}

// PlaceRoad places a road template.
func (w *World) PlaceRoad(tier catalog.TierID, coord world.HexCoord) bool {
	return w.placeKind(tier, coord, func(k catalog.Kind) bool { return k == catalog.KindRoad })
}

// PlaceProp places a prop template.
func (w *World) PlaceProp(tier catalog.TierID, coord world.HexCoord) bool {
	return w.placeKind(tier, coord, func(k catalog.Kind) bool { return k == catalog.KindProp })
}

// PlaceRoads places a road or tiling template along a previewed path.
// Cells that cannot take it are skipped; placement stops at the first cell
// the ledger cannot pay for. Access is recomputed once for the whole path.
func (w *World) PlaceRoads(tier catalog.TierID, path []world.HexCoord) (int, error) {
	t, err := w.template(tier)
	if err != nil {
		return 0, err
	}
	if t.Kind != catalog.KindRoad && t.Kind != catalog.KindTiling {
		return 0, fmt.Errorf("%s is %s: %w", t.ID, t.Kind, ErrWrongKind)
	}

	flush := w.Access.Defer()
	defer flush()

	placed := 0
	for _, coord := range path {
		err := w.checkPlacement(t, coord)
		if errors.Is(err, ErrUnaffordable) {
			break
		}
		if err != nil {
			continue
		}
		if _, err := w.Place(tier, coord); err == nil {
			placed++
		}
	}
	return placed, nil
}

// CheckDemolish reports why the content at coord cannot be removed, or nil.
func (w *World) CheckDemolish(coord world.HexCoord) error {
	c, err := w.Grid.Cell(coord)
	if err != nil {
		return err
	}
	if !c.Occupied() {
		return fmt.Errorf("%v: %w", coord, ErrEmptyCell)
	}
	return nil
}

// Demolish removes whatever occupies coord.
func (w *World) Demolish(coord world.HexCoord) bool {
	if w.CheckDemolish(coord) != nil {
		return false
	}
	idx, _ := w.Grid.Index(coord)
	w.demolish(idx)
	return true
}

// demolish evicts workers, reverses the tier's registration, clears the
// cell, and frees the arena slot.
func (w *World) demolish(cell int) {
	t, b, ok := w.contentAt(cell)
	if !ok {
		return
	}
	prev := w.occupantOrZero(cell)
	if b != nil {
		if b.Workers > 0 {
			w.removeWorkers(b, b.Workers)
		}
		if b.State == StateActive {
			w.onDemolished(t)
		}
		w.release(b.ID)
	}
	w.Grid.ClearContent(cell)
	w.Access.OnContentRemoved(cell, prev)

	name := "content"
	if t != nil {
		name = t.Name
	}
	w.record(CategoryDemolish, "%s demolished at %v", name, w.coordOf(cell))
}

// SetTerrainType changes a cell's terrain, demolishing an occupant that
// needs the other terrain.
func (w *World) SetTerrainType(coord world.HexCoord, terrain world.Terrain) bool {
	c, err := w.Grid.Cell(coord)
	if err != nil {
		return false
	}
	if content, ok := c.Content(); ok && content.Terrain != terrain {
		w.demolish(c.Index)
	}
	if _, err := w.Grid.SetTerrain(c.Index, terrain); err != nil {
		return false
	}
	w.record(CategoryTerrain, "%v is now %s", coord, world.TerrainName(terrain))
	return true
}

// CheckUpgrade reports why a building cannot upgrade, or nil.
func (w *World) CheckUpgrade(id BuildingID) error {
	b := w.Building(id)
	if b == nil {
		return fmt.Errorf("building %d: %w", id, ErrNotABuilding)
	}
	return w.checkUpgrade(b)
}

func (w *World) checkUpgrade(b *Building) error {
	t := w.Template(b)
	if t.Upgrade == nil || w.Catalog.Tier(t.Upgrade.TargetTier()) == nil {
		return fmt.Errorf("%s: %w", t.ID, ErrNoUpgrade)
	}
	if b.State != StateActive {
		return fmt.Errorf("%s under construction: %w", t.ID, ErrUpgradeBlocked)
	}
	up := t.Upgrade
	if !w.Ledger.HasAll(up.Cost) {
		return fmt.Errorf("%s upgrade: %w", t.ID, ErrUnaffordable)
	}
	if !w.Access.HasAccessToRoad(b.Cell) {
		return fmt.Errorf("%s: no road access: %w", t.ID, ErrUpgradeBlocked)
	}
	if up.RequiresWorkerAccess && !w.Access.HasAccessToWorkers(b.Cell) {
		return fmt.Errorf("%s: no worker access: %w", t.ID, ErrUpgradeBlocked)
	}
	for _, r := range up.RequiredResourceAccess {
		if !w.Access.HasAccessToResource(b.Cell, r) {
			return fmt.Errorf("%s: no %s access: %w", t.ID, r, ErrUpgradeBlocked)
		}
	}
	return nil
}

// CanUpgrade reports whether Upgrade would succeed.
func (w *World) CanUpgrade(id BuildingID) bool {
	return w.CheckUpgrade(id) == nil
}

// Upgrade moves a building to its next tier, paying the upgrade cost.
func (w *World) Upgrade(id BuildingID) bool {
	if w.CheckUpgrade(id) != nil {
		return false
	}
	w.upgrade(w.Building(id))
	return true
}

func (w *World) upgrade(b *Building) {
	cur := w.Template(b)
	next := w.Catalog.Tier(cur.Upgrade.TargetTier())
	w.swapTier(b, cur, next, func() {
		b.Tiers = append(b.Tiers, next.Tier())
		if !w.Ledger.UseAll(cur.Upgrade.Cost) {
			w.invariant(false, "upgrade cost unaffordable after check", "building", b.ID)
		}
	})
	w.record(CategoryUpgrade, "%s upgraded to %s at %v", cur.Name, next.Name, w.coordOf(b.Cell))
}

// CheckDowngrade reports why a building cannot downgrade, or nil.
func (w *World) CheckDowngrade(id BuildingID) error {
	b := w.Building(id)
	if b == nil {
		return fmt.Errorf("building %d: %w", id, ErrNotABuilding)
	}
	if !b.CanBeDowngraded() {
		return fmt.Errorf("building %d: %w", id, ErrBaseTier)
	}
	return nil
}

// Downgrade pops a building's top tier. No resources are refunded.
func (w *World) Downgrade(id BuildingID) bool {
	if w.CheckDowngrade(id) != nil {
		return false
	}
	w.downgrade(w.Building(id))
	return true
}

func (w *World) downgrade(b *Building) {
	if !w.invariant(b.CanBeDowngraded(), "downgrading base tier", "building", b.ID) {
		return
	}
	cur := w.Template(b)
	prev := w.Catalog.Tier(b.Tiers[len(b.Tiers)-2])
	w.swapTier(b, cur, prev, func() { b.Tiers = b.Tiers[:len(b.Tiers)-1] })
	w.record(CategoryDowngrade, "%s downgraded to %s at %v", cur.Name, prev.Name, w.coordOf(b.Cell))
}

// swapTier runs the retire/commission hooks around a tier stack change and
// refreshes access levels.
func (w *World) swapTier(b *Building, from, to *catalog.Template, change func()) {
	before := w.occupantOrZero(b.Cell)
	w.retire(b, from, to)
	change()
	w.commission(b, to, from)
	b.Stalled = 0
	b.Failures = 0
	w.Access.OnContentChanged(b.Cell, before)
}
