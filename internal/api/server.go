// Package api provides the HTTP API for observing and building the city.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (build mode).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/hexburg/internal/catalog"
	"github.com/talgya/hexburg/internal/engine"
	"github.com/talgya/hexburg/internal/persistence"
	"github.com/talgya/hexburg/internal/world"
)

// Server serves the city over HTTP.
type Server struct {
	Sim         *engine.Simulation
	Eng         *engine.Engine
	DB          *persistence.DB // nil = saves disabled
	Hub         *Hub            // nil = streaming disabled
	Port        int
	AdminKey    string // Bearer token for POST endpoints. Empty = POST disabled.
	SnapshotDir string // Empty = no snapshot file written on save.

	limiter *RateLimiter
	srv     *http.Server
}

// Handler builds the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	if s.limiter == nil {
		s.limiter = NewRateLimiter(120, time.Minute)
	}
	mutate := func(h http.HandlerFunc) http.HandlerFunc {
		return s.adminOnly(RateLimitMiddleware(s.limiter, h))
	}

	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/map", s.handleMap)
	mux.HandleFunc("GET /api/v1/cell/{x}/{z}", s.handleCell)
	mux.HandleFunc("GET /api/v1/path", s.handlePath)
	mux.HandleFunc("GET /api/v1/catalog", s.handleCatalog)
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)
	mux.HandleFunc("GET /api/v1/saves", s.handleSaves)
	mux.HandleFunc("GET /api/v1/stream", s.handleStream)

	// Build mode (POST, require bearer token).
	mux.HandleFunc("POST /api/v1/build", mutate(s.handleBuild))
	mux.HandleFunc("POST /api/v1/roads", mutate(s.handleRoads))
	mux.HandleFunc("POST /api/v1/prop", mutate(s.handleProp))
	mux.HandleFunc("POST /api/v1/demolish", mutate(s.handleDemolish))
	mux.HandleFunc("POST /api/v1/terrain", mutate(s.handleTerrain))
	mux.HandleFunc("POST /api/v1/upgrade", mutate(s.handleUpgrade))
	mux.HandleFunc("POST /api/v1/downgrade", mutate(s.handleDowngrade))
	mux.HandleFunc("POST /api/v1/save", mutate(s.handleSave))
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown stops the listener and the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// HEXBURG_CORS_ORIGINS adds a comma-separated list to the localhost defaults.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("HEXBURG_CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && token == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "build endpoints disabled (no HEXBURG_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"name":    "hexburg",
		"speed":   s.Eng.Speed(),
		"running": s.Eng.Running(),
		"summary": s.Sim.Summary(),
	})
}

type contentView struct {
	Template string `json:"template"`
	Kind     string `json:"kind"`
	Building *int   `json:"building,omitempty"`
	State    string `json:"state,omitempty"`
	Facing   string `json:"facing,omitempty"`
}

func describeContent(w *engine.World, c *world.Cell) *contentView {
	content, ok := c.Content()
	if !ok {
		return nil
	}
	if content.Building != world.NoBuilding {
		if b := w.Building(engine.BuildingID(content.Building)); b != nil {
			t := w.Template(b)
			id := int(b.ID)
			return &contentView{
				Template: t.ID,
				Kind:     string(t.Kind),
				Building: &id,
				State:    b.State.String(),
				Facing:   b.Facing.String(),
			}
		}
	}
	t := w.Catalog.Tier(catalog.TierID(content.Template))
	if t == nil {
		return nil
	}
	return &contentView{Template: t.ID, Kind: string(t.Kind)}
}

// handleMap returns every cell for the hex map renderer.
func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	type cellEntry struct {
		X       int          `json:"x"`
		Z       int          `json:"z"`
		Terrain uint8        `json:"terrain"`
		Content *contentView `json:"content,omitempty"`
	}

	var resp map[string]any
	_ = s.Sim.Do(func(wd *engine.World) error {
		cells := wd.Grid.Cells()
		entries := make([]cellEntry, 0, len(cells))
		for i := range cells {
			c := &cells[i]
			entries = append(entries, cellEntry{
				X:       c.Coord.X,
				Z:       c.Coord.Z,
				Terrain: uint8(c.Terrain),
				Content: describeContent(wd, c),
			})
		}
		resp = map[string]any{
			"width":  wd.Grid.Width,
			"height": wd.Grid.Height,
			"cells":  entries,
		}
		return nil
	})
	writeJSON(w, resp)
}

// handleCell returns one cell with its building and access levels.
func (s *Server) handleCell(w http.ResponseWriter, r *http.Request) {
	x, errX := strconv.Atoi(r.PathValue("x"))
	z, errZ := strconv.Atoi(r.PathValue("z"))
	if errX != nil || errZ != nil {
		http.Error(w, "invalid coordinate", http.StatusBadRequest)
		return
	}
	coord := world.HexCoord{X: x, Z: z}

	type buildingView struct {
		ID         int      `json:"id"`
		Tiers      []string `json:"tiers"`
		Workers    int      `json:"workers"`
		MaxWorkers int      `json:"max_workers"`
		Progress   float64  `json:"progress"`
		Built      float64  `json:"built"`
		Cycles     int      `json:"cycles"`
		Failures   int      `json:"failures"`
		Upgrade    string   `json:"upgrade,omitempty"`
		Blocked    string   `json:"upgrade_blocked,omitempty"`
	}

	var resp map[string]any
	err := s.Sim.Do(func(wd *engine.World) error {
		c, err := wd.Grid.Cell(coord)
		if err != nil {
			return err
		}
		resources := map[string]int{}
		for _, kind := range wd.Access.ResourceKinds() {
			if lvl := wd.Access.ResourceAccess(c.Index, kind); lvl > 0 {
				resources[string(kind)] = lvl
			}
		}
		conns, _ := wd.Connections(coord)
		dirs := make([]string, 0, len(conns))
		for _, d := range conns {
			dirs = append(dirs, d.String())
		}
		resp = map[string]any{
			"x":               c.Coord.X,
			"z":               c.Coord.Z,
			"index":           c.Index,
			"terrain":         world.TerrainName(c.Terrain),
			"content":         describeContent(wd, c),
			"road_access":     wd.Access.RoadAccess(c.Index),
			"worker_access":   wd.Access.WorkerAccess(c.Index),
			"resource_access": resources,
			"connections":     dirs,
		}

		b, err := wd.BuildingAt(coord)
		if err != nil {
			return nil
		}
		t := wd.Template(b)
		view := buildingView{
			ID:         int(b.ID),
			Workers:    b.Workers,
			MaxWorkers: t.MaxWorkers(),
			Progress:   b.Progress,
			Built:      b.Built,
			Cycles:     b.Cycles,
			Failures:   b.Failures,
		}
		for _, tier := range b.Tiers {
			view.Tiers = append(view.Tiers, wd.Catalog.Tier(tier).ID)
		}
		if t.Upgrade != nil {
			view.Upgrade = t.Upgrade.Target
			if err := wd.CheckUpgrade(b.ID); err != nil {
				view.Blocked = err.Error()
			}
		}
		resp["building"] = view
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, resp)
}

// handlePath previews a road path: GET /api/v1/path?from=x,z&to=x,z&template=road.
// Each cell reports whether the template could be placed there.
func (s *Server) handlePath(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseCoord(q.Get("from"))
	if err != nil {
		http.Error(w, "invalid from", http.StatusBadRequest)
		return
	}
	to, err := parseCoord(q.Get("to"))
	if err != nil {
		http.Error(w, "invalid to", http.StatusBadRequest)
		return
	}
	templateID := q.Get("template")
	if templateID == "" {
		templateID = "road"
	}

	type pathCell struct {
		X      int    `json:"x"`
		Z      int    `json:"z"`
		Valid  bool   `json:"valid"`
		Reason string `json:"reason,omitempty"`
	}

	var cells []pathCell
	err = s.Sim.Do(func(wd *engine.World) error {
		tier, err := wd.Catalog.Lookup(templateID)
		if err != nil {
			return err
		}
		path, err := wd.Grid.ShortestPath(from, to, world.WithHeuristic(world.DistanceHeuristic(to)))
		if err != nil {
			return err
		}
		cells = make([]pathCell, 0, len(path))
		for _, c := range path {
			pc := pathCell{X: c.Coord.X, Z: c.Coord.Z, Valid: true}
			if err := wd.CheckPlacement(tier, c.Coord); err != nil {
				pc.Valid = false
				pc.Reason = err.Error()
			}
			cells = append(cells, pc)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"template": templateID, "cells": cells})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	var templates []*catalog.Template
	_ = s.Sim.Do(func(wd *engine.World) error {
		templates = wd.Catalog.Templates()
		return nil
	})
	if kind := r.URL.Query().Get("kind"); kind != "" {
		filtered := templates[:0:0]
		for _, t := range templates {
			if string(t.Kind) == kind {
				filtered = append(filtered, t)
			}
		}
		templates = filtered
	}
	writeJSON(w, templates)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= engine.MaxEvents {
			limit = n
		}
	}

	events := s.Sim.RecentEvents(0)

	// Optional category filter.
	if category := r.URL.Query().Get("category"); category != "" {
		filtered := []engine.Event{}
		for _, e := range events {
			if e.Category == category {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}

	start := 0
	if len(events) > limit {
		start = len(events) - limit
	}
	writeJSON(w, events[start:])
}

func (s *Server) handleSaves(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	saves, err := s.DB.ListSaves()
	if err != nil {
		slog.Error("list saves failed", "error", err)
		http.Error(w, "list saves failed", http.StatusInternalServerError)
		return
	}

	type saveEntry struct {
		persistence.SaveInfo
		Age string `json:"age"`
	}
	out := make([]saveEntry, 0, len(saves))
	for _, sv := range saves {
		out = append(out, saveEntry{SaveInfo: sv, Age: humanize.Time(sv.CreatedAt)})
	}
	writeJSON(w, out)
}

// parseCoord parses "x,z" axial coordinates.
func parseCoord(s string) (world.HexCoord, error) {
	xs, zs, ok := strings.Cut(s, ",")
	if !ok {
		return world.HexCoord{}, fmt.Errorf("coordinate %q: want x,z", s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(xs))
	if err != nil {
		return world.HexCoord{}, err
	}
	z, err := strconv.Atoi(strings.TrimSpace(zs))
	if err != nil {
		return world.HexCoord{}, err
	}
	return world.HexCoord{X: x, Z: z}, nil
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, world.ErrOutOfBounds),
		errors.Is(err, engine.ErrNotABuilding),
		errors.Is(err, engine.ErrEmptyCell),
		errors.Is(err, persistence.ErrNoSave):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrUnknownTemplate),
		errors.Is(err, engine.ErrWrongKind):
		return http.StatusBadRequest
	case errors.Is(err, world.ErrOccupied),
		errors.Is(err, world.ErrIncompatibleTerrain),
		errors.Is(err, engine.ErrUnaffordable),
		errors.Is(err, engine.ErrNoUpgrade),
		errors.Is(err, engine.ErrUpgradeBlocked),
		errors.Is(err, engine.ErrBaseTier):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
