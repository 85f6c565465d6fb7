// Package catalog holds the immutable content templates: every road, prop,
// and building tier that can occupy a cell, with placement rules, costs,
// production parameters, and upgrade links.
package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/talgya/hexburg/internal/economy"
	"github.com/talgya/hexburg/internal/world"
)

var ErrUnknownTemplate = errors.New("unknown template")

// Kind tags the template variant. Update behavior is dispatched on it.
type Kind string

const (
	KindProp       Kind = "prop"
	KindBasic      Kind = "basic"
	KindHousing    Kind = "housing"
	KindProduction Kind = "production"
	KindRoad       Kind = "road"
	KindTiling     Kind = "tiling"
)

// IsBuilding reports whether placing the template creates a building instance.
func (k Kind) IsBuilding() bool {
	return k != KindProp
}

// TierID is a dense handle into the catalog's template table.
type TierID int

// NoTier marks an absent template reference.
const NoTier TierID = -1

// Upgrade describes the transition from one tier to the next.
type Upgrade struct {
	Target                 string             `yaml:"target" json:"target"`
	Automatic              bool               `yaml:"automatic,omitempty" json:"automatic,omitempty"`
	RequiresWorkerAccess   bool               `yaml:"requires_worker_access,omitempty" json:"requires_worker_access,omitempty"`
	RequiredResourceAccess []economy.Resource `yaml:"required_resource_access,omitempty" json:"required_resource_access,omitempty"`
	Cost                   []economy.Amount   `yaml:"cost,omitempty" json:"cost,omitempty"`

	target TierID
}

// TargetTier returns the resolved handle of the upgrade target.
func (u *Upgrade) TargetTier() TierID {
	return u.target
}

// Template is one immutable content definition.
type Template struct {
	ID      string           `yaml:"id" json:"id"`
	Name    string           `yaml:"name" json:"name"`
	Kind    Kind             `yaml:"kind" json:"kind"`
	Terrain string           `yaml:"terrain,omitempty" json:"terrain,omitempty"`
	Cost    []economy.Amount `yaml:"cost,omitempty" json:"cost,omitempty"`

	// Construction time in simulated seconds; zero builds instantly.
	BuildSeconds float64 `yaml:"build_seconds,omitempty" json:"build_seconds,omitempty"`
	// Fixed facing ("E", "SE", ...); empty picks a random facing on placement.
	Facing string `yaml:"facing,omitempty" json:"facing,omitempty"`

	// Housing
	Capacity int `yaml:"capacity,omitempty" json:"capacity,omitempty"`

	// Production
	MinWorkers            int              `yaml:"min_workers,omitempty" json:"min_workers,omitempty"`
	Workers               int              `yaml:"max_workers,omitempty" json:"max_workers,omitempty"`
	CycleSeconds          float64          `yaml:"cycle_seconds,omitempty" json:"cycle_seconds,omitempty"`
	Input                 []economy.Amount `yaml:"input,omitempty" json:"input,omitempty"`
	Output                []economy.Amount `yaml:"output,omitempty" json:"output,omitempty"`
	OutputPerWorker       bool             `yaml:"output_per_worker,omitempty" json:"output_per_worker,omitempty"`
	RequiredNeighbor      string           `yaml:"required_neighbor,omitempty" json:"required_neighbor,omitempty"`
	RequiredNeighborCount int              `yaml:"required_neighbor_count,omitempty" json:"required_neighbor_count,omitempty"`
	DowngradeAfterStalls  int              `yaml:"downgrade_after_stalls,omitempty" json:"downgrade_after_stalls,omitempty"`

	Upgrade *Upgrade `yaml:"upgrade,omitempty" json:"upgrade,omitempty"`

	tier             TierID
	terrain          world.Terrain
	facing           world.Direction
	fixedFacing      bool
	requiredNeighbor TierID
}

// Tier returns the template's handle in its catalog.
func (t *Template) Tier() TierID {
	return t.tier
}

// RequiredTerrain returns the terrain the template must be placed on.
func (t *Template) RequiredTerrain() world.Terrain {
	return t.terrain
}

// CanBePlacedOn reports whether the cell is unoccupied and has the required terrain.
func (t *Template) CanBePlacedOn(c *world.Cell) bool {
	return c != nil && !c.Occupied() && c.Terrain == t.terrain
}

// MaxWorkers returns the job slots of a production tier; zero otherwise.
func (t *Template) MaxWorkers() int {
	if t.Kind != KindProduction {
		return 0
	}
	return t.Workers
}

// HousingCapacity returns the residents a housing tier holds; zero otherwise.
func (t *Template) HousingCapacity() int {
	if t.Kind != KindHousing {
		return 0
	}
	return t.Capacity
}

// RequiresRoad reports whether the tier needs road access to operate.
func (t *Template) RequiresRoad() bool {
	switch t.Kind {
	case KindBasic, KindHousing, KindProduction:
		return true
	}
	return false
}

// FixedFacing returns the fixed facing direction, if the template has one.
func (t *Template) FixedFacing() (world.Direction, bool) {
	return t.facing, t.fixedFacing
}

// NeighborRequirement returns the template matching neighbors must hold and
// how many are needed for full efficiency. ok is false when unconstrained.
func (t *Template) NeighborRequirement() (tier TierID, count int, ok bool) {
	if t.requiredNeighbor == NoTier || t.RequiredNeighborCount <= 0 {
		return NoTier, 0, false
	}
	return t.requiredNeighbor, t.RequiredNeighborCount, true
}

// Produces returns the resources the tier emits.
func (t *Template) Produces() []economy.Resource {
	out := make([]economy.Resource, 0, len(t.Output))
	for _, a := range t.Output {
		out = append(out, a.Resource)
	}
	return out
}

// Catalog is the static tier table.
type Catalog struct {
	templates []*Template
	byID      map[string]TierID
}

// Len returns the number of templates.
func (c *Catalog) Len() int {
	return len(c.templates)
}

// Tier returns the template for a handle, or nil if the handle is invalid.
func (c *Catalog) Tier(id TierID) *Template {
	if id < 0 || int(id) >= len(c.templates) {
		return nil
	}
	return c.templates[id]
}

// Lookup resolves a template id to its handle.
func (c *Catalog) Lookup(id string) (TierID, error) {
	tier, ok := c.byID[id]
	if !ok {
		return NoTier, fmt.Errorf("%q: %w", id, ErrUnknownTemplate)
	}
	return tier, nil
}

// Get resolves a template id to its template.
func (c *Catalog) Get(id string) (*Template, error) {
	tier, err := c.Lookup(id)
	if err != nil {
		return nil, err
	}
	return c.templates[tier], nil
}

// Templates returns every template in declaration order.
func (c *Catalog) Templates() []*Template {
	out := make([]*Template, len(c.templates))
	copy(out, c.templates)
	return out
}

// OfKind returns the templates of one kind in declaration order.
func (c *Catalog) OfKind(k Kind) []*Template {
	var out []*Template
	for _, t := range c.templates {
		if t.Kind == k {
			out = append(out, t)
		}
	}
	return out
}

// Lineage returns the upgrade chain starting at id, base first.
func (c *Catalog) Lineage(id TierID) []TierID {
	var out []TierID
	for t := c.Tier(id); t != nil; {
		out = append(out, t.tier)
		if t.Upgrade == nil {
			break
		}
		t = c.Tier(t.Upgrade.target)
	}
	return out
}

// build resolves cross references and checks rules the schema cannot express.
func build(templates []*Template) (*Catalog, error) {
	c := &Catalog{
		templates: templates,
		byID:      make(map[string]TierID, len(templates)),
	}
	for i, t := range templates {
		if _, dup := c.byID[t.ID]; dup {
			return nil, fmt.Errorf("template %q declared twice", t.ID)
		}
		t.tier = TierID(i)
		c.byID[t.ID] = t.tier
		if err := t.resolveTerrain(); err != nil {
			return nil, fmt.Errorf("template %q: %w", t.ID, err)
		}
	}

	for _, t := range templates {
		if err := c.resolve(t); err != nil {
			return nil, fmt.Errorf("template %q: %w", t.ID, err)
		}
	}

	// Upgrade paths are linear; a cycle would make the stack unbounded.
	for _, t := range templates {
		seen := map[TierID]bool{}
		for cur := t; cur != nil && cur.Upgrade != nil; cur = c.Tier(cur.Upgrade.target) {
			if seen[cur.tier] {
				return nil, fmt.Errorf("template %q: upgrade cycle", t.ID)
			}
			seen[cur.tier] = true
		}
	}
	return c, nil
}

func (t *Template) resolveTerrain() error {
	switch strings.ToLower(t.Terrain) {
	case "", "ground":
		t.terrain = world.TerrainGround
	case "water":
		t.terrain = world.TerrainWater
	default:
		return fmt.Errorf("unknown terrain %q", t.Terrain)
	}
	return nil
}

func (c *Catalog) resolve(t *Template) error {
	if t.Facing != "" {
		d, ok := parseDirection(t.Facing)
		if !ok {
			return fmt.Errorf("unknown facing %q", t.Facing)
		}
		t.facing, t.fixedFacing = d, true
	}

	t.requiredNeighbor = NoTier
	if t.RequiredNeighbor != "" {
		tier, err := c.Lookup(t.RequiredNeighbor)
		if err != nil {
			return fmt.Errorf("required neighbor: %w", err)
		}
		t.requiredNeighbor = tier
	}

	switch t.Kind {
	case KindHousing:
		if t.Capacity <= 0 {
			return errors.New("housing needs a positive capacity")
		}
	case KindProduction:
		if t.Workers <= 0 || t.MinWorkers > t.Workers {
			return fmt.Errorf("worker bounds [%d, %d] invalid", t.MinWorkers, t.Workers)
		}
		if t.CycleSeconds <= 0 {
			return errors.New("production needs a positive cycle")
		}
	}

	if t.Upgrade != nil {
		if !t.Kind.IsBuilding() {
			return errors.New("props cannot upgrade")
		}
		tier, err := c.Lookup(t.Upgrade.Target)
		if err != nil {
			return fmt.Errorf("upgrade: %w", err)
		}
		target := c.templates[tier]
		if target.Kind == KindProp {
			return fmt.Errorf("upgrade target %q is a prop", target.ID)
		}
		if target.terrain != t.terrain {
			return fmt.Errorf("upgrade target %q needs different terrain", target.ID)
		}
		if (t.Kind == KindRoad) != (target.Kind == KindRoad) {
			return fmt.Errorf("upgrade %q changes road membership", target.ID)
		}
		t.Upgrade.target = tier
	}
	return nil
}

func parseDirection(s string) (world.Direction, bool) {
	for _, d := range world.Directions() {
		if strings.EqualFold(d.String(), s) {
			return d, true
		}
	}
	return 0, false
}
