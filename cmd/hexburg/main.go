// Command hexburg runs the hex city simulation with its HTTP build API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/hexburg/internal/api"
	"github.com/talgya/hexburg/internal/catalog"
	"github.com/talgya/hexburg/internal/config"
	"github.com/talgya/hexburg/internal/engine"
	"github.com/talgya/hexburg/internal/persistence"
	"github.com/talgya/hexburg/internal/world"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults if empty)")
	fresh := flag.Bool("fresh", false, "ignore saved games and start a new city")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	level, _ := cfg.Level()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	slog.Info("hexburg starting", "config", *configPath, "log_level", level)

	// ── Catalog ───────────────────────────────────────────────────────
	var cat *catalog.Catalog
	if cfg.CatalogFile != "" {
		cat, err = catalog.Load(cfg.CatalogFile)
		if err != nil {
			slog.Error("failed to load catalog", "path", cfg.CatalogFile, "error", err)
			os.Exit(1)
		}
	} else {
		cat = catalog.Default()
	}
	slog.Info("catalog loaded", "templates", cat.Len())

	// ── Terrain ───────────────────────────────────────────────────────
	rows, err := terrainRows(cfg)
	if err != nil {
		slog.Error("failed to build terrain", "error", err)
		os.Exit(1)
	}
	for t, c := range world.TerrainCounts(rows) {
		slog.Info("terrain", "type", world.TerrainName(t), "count", c)
	}

	w, err := engine.NewWorld(cat, rows, engine.Config{
		Seed:              cfg.Simulation.Seed,
		Strict:            cfg.Simulation.StrictInvariants,
		StartingResources: cfg.StartingResources,
	})
	if err != nil {
		slog.Error("failed to create world", "error", err)
		os.Exit(1)
	}

	// ── Database ──────────────────────────────────────────────────────
	var db *persistence.DB
	if cfg.DatabasePath != "" {
		if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
			os.MkdirAll(dir, 0o755)
		}
		db, err = persistence.Open(cfg.DatabasePath)
		if err != nil {
			slog.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("database opened", "path", cfg.DatabasePath)

		if !*fresh {
			restoreLatest(db, w)
		}
	} else {
		slog.Warn("database_path not set, saves disabled")
	}

	// ── Simulation ────────────────────────────────────────────────────
	sim := engine.NewSimulation(w, cfg.Simulation.StepSeconds)
	hub := api.NewHub()
	sim.OnStep = hub.Broadcast

	eng := engine.NewEngine()
	eng.Interval = cfg.Simulation.TickInterval
	eng.SetSpeed(cfg.Simulation.Speed)
	eng.SetTick(w.Tick)
	eng.ReportEvery = cfg.Simulation.ReportEveryTicks
	eng.AutosaveEvery = cfg.Simulation.AutosaveEveryTicks

	save := func(name string) {
		if db == nil {
			return
		}
		if err := db.SaveEvents(sim.PendingEvents()); err != nil {
			slog.Error("event save failed", "error", err)
		}
		var gs engine.GameState
		_ = sim.Do(func(w *engine.World) error {
			gs = w.Capture()
			return nil
		})
		if _, err := api.SaveAll(db, cfg.SnapshotDir, name, gs); err != nil {
			slog.Error("save failed", "name", name, "error", err)
		}
	}

	eng.OnTick = sim.Step
	eng.OnReport = sim.Report
	eng.OnAutosave = func(tick uint64) { save("autosave") }

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.Server.AdminKey == "" {
		slog.Warn("HEXBURG_ADMIN_KEY not set, build endpoints will be disabled")
	}
	apiServer := &api.Server{
		Sim:         sim,
		Eng:         eng,
		DB:          db,
		Hub:         hub,
		Port:        cfg.Server.Port,
		AdminKey:    cfg.Server.AdminKey,
		SnapshotDir: cfg.SnapshotDir,
	}
	apiServer.Start()

	// ── Start ─────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		eng.Stop()
	}()

	sum := sim.Summary()
	fmt.Printf("\nhexburg is up: %d×%d cells, %s buildings, %s residents.\n",
		w.Grid.Width, w.Grid.Height, humanize.Comma(int64(sum.Buildings)), humanize.Comma(int64(sum.Population)))
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.Server.Port)
	if sum.Tick > 0 {
		fmt.Printf("Resuming from tick %d (%s)\n", sum.Tick, sum.SimTime)
	}
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}

	slog.Info("final save...")
	save("shutdown")
	fmt.Println("Simulation stopped.")
}

// terrainRows reads the configured terrain file or generates terrain.
func terrainRows(cfg config.Config) ([][]world.Terrain, error) {
	if cfg.World.TerrainFile != "" {
		f, err := os.Open(cfg.World.TerrainFile)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return world.ReadTerrain(f)
	}
	gen := world.DefaultGenConfig()
	gen.Width = cfg.World.Width
	gen.Height = cfg.World.Height
	gen.Seed = cfg.Simulation.Seed
	gen.WaterLevel = cfg.World.WaterLevel
	gen.Lakes = cfg.World.Lakes
	return world.GenerateTerrain(gen), nil
}

// restoreLatest loads the newest save slot into w. A failed restore leaves
// a fresh world behind.
func restoreLatest(db *persistence.DB, w *engine.World) {
	info, err := db.LatestSave()
	if errors.Is(err, persistence.ErrNoSave) {
		slog.Info("no saved game found, starting a new city")
		return
	}
	if err != nil {
		slog.Error("failed to read saves", "error", err)
		return
	}

	fallback := w.Capture()
	gs, err := db.LoadGame(info.ID)
	if err == nil {
		err = w.Restore(gs)
	}
	if err != nil {
		slog.Error("failed to restore save, starting fresh", "id", info.ID, "error", err)
		if err := w.Restore(fallback); err != nil {
			slog.Error("failed to reset world", "error", err)
			os.Exit(1)
		}
		return
	}
	slog.Info("saved game restored",
		"id", info.ID,
		"name", info.Name,
		"tick", info.Tick,
		"contents", info.Contents,
		"saved", humanize.Time(info.CreatedAt),
	)
}
