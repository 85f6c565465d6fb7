package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/talgya/hexburg/internal/catalog"
	"github.com/talgya/hexburg/internal/engine"
	"github.com/talgya/hexburg/internal/persistence"
	"github.com/talgya/hexburg/internal/world"
)

type placeRequest struct {
	Template string `json:"template"`
	X        int    `json:"x"`
	Z        int    `json:"z"`
}

type cellRequest struct {
	X int `json:"x"`
	Z int `json:"z"`
}

func (c cellRequest) coord() world.HexCoord {
	return world.HexCoord{X: c.X, Z: c.Z}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	return true
}

// place handles build and prop requests; allowed restricts the template kind.
func (s *Server) place(w http.ResponseWriter, r *http.Request, allowed func(catalog.Kind) bool) {
	var req placeRequest
	if !decode(w, r, &req) {
		return
	}
	coord := world.HexCoord{X: req.X, Z: req.Z}

	var id engine.BuildingID
	err := s.Sim.Do(func(wd *engine.World) error {
		t, err := wd.Catalog.Get(req.Template)
		if err != nil {
			return err
		}
		if !allowed(t.Kind) {
			return fmt.Errorf("%s is %s: %w", t.ID, t.Kind, engine.ErrWrongKind)
		}
		id, err = wd.Place(t.Tier(), coord)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	resp := map[string]any{"template": req.Template, "x": req.X, "z": req.Z}
	if id != engine.NoBuilding {
		resp["building"] = id
	}
	writeJSON(w, resp)
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	s.place(w, r, catalog.Kind.IsBuilding)
}

func (s *Server) handleProp(w http.ResponseWriter, r *http.Request) {
	s.place(w, r, func(k catalog.Kind) bool { return k == catalog.KindProp })
}

// handleRoads places a road template along the shortest path between two
// cells.
func (s *Server) handleRoads(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Template string      `json:"template"`
		From     cellRequest `json:"from"`
		To       cellRequest `json:"to"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Template == "" {
		req.Template = "road"
	}

	var placed, length int
	err := s.Sim.Do(func(wd *engine.World) error {
		tier, err := wd.Catalog.Lookup(req.Template)
		if err != nil {
			return err
		}
		to := req.To.coord()
		path, err := wd.Grid.ShortestPath(req.From.coord(), to, world.WithHeuristic(world.DistanceHeuristic(to)))
		if err != nil {
			return err
		}
		coords := make([]world.HexCoord, len(path))
		for i, c := range path {
			coords[i] = c.Coord
		}
		length = len(coords)
		placed, err = wd.PlaceRoads(tier, coords)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"template": req.Template, "path_length": length, "placed": placed})
}

func (s *Server) handleDemolish(w http.ResponseWriter, r *http.Request) {
	var req cellRequest
	if !decode(w, r, &req) {
		return
	}
	err := s.Sim.Do(func(wd *engine.World) error {
		if err := wd.CheckDemolish(req.coord()); err != nil {
			return err
		}
		wd.Demolish(req.coord())
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"x": req.X, "z": req.Z, "demolished": true})
}

func (s *Server) handleTerrain(w http.ResponseWriter, r *http.Request) {
	var req struct {
		cellRequest
		Terrain string `json:"terrain"`
	}
	if !decode(w, r, &req) {
		return
	}
	var terrain world.Terrain
	switch strings.ToLower(req.Terrain) {
	case "water":
		terrain = world.TerrainWater
	case "ground":
		terrain = world.TerrainGround
	default:
		http.Error(w, "terrain must be water or ground", http.StatusBadRequest)
		return
	}

	err := s.Sim.Do(func(wd *engine.World) error {
		if _, err := wd.Grid.Cell(req.coord()); err != nil {
			return err
		}
		wd.SetTerrainType(req.coord(), terrain)
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"x": req.X, "z": req.Z, "terrain": world.TerrainName(terrain)})
}

// tierChange runs an upgrade or downgrade on the building at the requested cell.
func (s *Server) tierChange(w http.ResponseWriter, r *http.Request, check func(*engine.World, engine.BuildingID) error, apply func(*engine.World, engine.BuildingID) bool) {
	var req cellRequest
	if !decode(w, r, &req) {
		return
	}
	var current string
	err := s.Sim.Do(func(wd *engine.World) error {
		b, err := wd.BuildingAt(req.coord())
		if err != nil {
			return err
		}
		if err := check(wd, b.ID); err != nil {
			return err
		}
		apply(wd, b.ID)
		current = wd.Template(b).ID
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"x": req.X, "z": req.Z, "template": current})
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	s.tierChange(w, r, (*engine.World).CheckUpgrade, (*engine.World).Upgrade)
}

func (s *Server) handleDowngrade(w http.ResponseWriter, r *http.Request) {
	s.tierChange(w, r, (*engine.World).CheckDowngrade, (*engine.World).Downgrade)
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if !decode(w, r, &req) {
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

// handleSave captures the world into a new save slot and, when configured,
// a snapshot file.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}

	var gs engine.GameState
	_ = s.Sim.Do(func(wd *engine.World) error {
		gs = wd.Capture()
		return nil
	})
	if req.Name == "" {
		req.Name = fmt.Sprintf("manual tick %d", gs.Tick)
	}

	info, err := SaveAll(s.DB, s.SnapshotDir, req.Name, gs)
	if err != nil {
		slog.Error("save failed", "error", err)
		http.Error(w, "save failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"id":      info.ID,
		"tick":    info.Tick,
		"message": "game saved",
	})
}

// SaveAll writes gs to a save slot and, when dir is set, a snapshot file.
func SaveAll(db *persistence.DB, dir, name string, gs engine.GameState) (persistence.SaveInfo, error) {
	info, err := db.SaveGame(name, gs)
	if err != nil {
		return info, err
	}
	if err := db.SaveMeta("last_tick", fmt.Sprintf("%d", gs.Tick)); err != nil {
		return info, fmt.Errorf("save meta: %w", err)
	}
	if dir == "" {
		return info, nil
	}
	path := persistence.SnapshotPath(dir, gs.Tick)
	snap := persistence.Snapshot{
		Header: persistence.Header{SaveID: info.ID, Tick: gs.Tick, CreatedAt: time.Now().UTC()},
		State:  gs,
	}
	if err := persistence.WriteSnapshot(path, snap); err != nil {
		return info, fmt.Errorf("snapshot: %w", err)
	}
	slog.Info("snapshot written", "path", path, "size", persistence.SnapshotSize(path))
	return info, nil
}
