// Package persistence provides SQLite-based save slots and compressed
// snapshot files for the city state.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/hexburg/internal/economy"
	"github.com/talgya/hexburg/internal/engine"
	"github.com/talgya/hexburg/internal/world"
)

// ErrNoSave is returned when a requested save slot does not exist.
var ErrNoSave = errors.New("save not found")

// DB wraps a SQLite connection for city persistence.
type DB struct {
	conn *sqlx.DB
}

// SaveInfo describes one save slot.
type SaveInfo struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Tick      uint64    `db:"tick" json:"tick"`
	Width     int       `db:"width" json:"width"`
	Height    int       `db:"height" json:"height"`
	Contents  int       `db:"contents" json:"contents"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type saveRow struct {
	SaveInfo
	Terrain   []byte  `db:"terrain"`
	Resources string  `db:"resources_json"`
	Time      float64 `db:"sim_time"`
}

type contentRow struct {
	Seq               int     `db:"seq"`
	X                 int     `db:"x"`
	Z                 int     `db:"z"`
	Template          string  `db:"template"`
	Tiers             string  `db:"tiers_json"`
	Facing            *int    `db:"facing"`
	UnderConstruction bool    `db:"under_construction"`
	Built             float64 `db:"built"`
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS saves (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		tick INTEGER NOT NULL,
		sim_time REAL NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		contents INTEGER NOT NULL,
		terrain BLOB NOT NULL,
		resources_json TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS save_contents (
		save_id TEXT NOT NULL REFERENCES saves(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		x INTEGER NOT NULL,
		z INTEGER NOT NULL,
		template TEXT NOT NULL,
		tiers_json TEXT NOT NULL,
		facing INTEGER,
		under_construction INTEGER NOT NULL,
		built REAL NOT NULL,
		PRIMARY KEY (save_id, seq)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tick INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(tick);
	CREATE INDEX IF NOT EXISTS idx_saves_created ON saves(created_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveGame writes the state into a new save slot and returns its info.
func (db *DB) SaveGame(name string, gs engine.GameState) (SaveInfo, error) {
	resources, err := json.Marshal(gs.Resources)
	if err != nil {
		return SaveInfo{}, fmt.Errorf("encode resources: %w", err)
	}
	terrain := make([]byte, len(gs.Terrain))
	for i, t := range gs.Terrain {
		terrain[i] = byte(t)
	}
	height := 0
	if gs.Width > 0 {
		height = len(gs.Terrain) / gs.Width
	}
	info := SaveInfo{
		ID:        uuid.NewString(),
		Name:      name,
		Tick:      gs.Tick,
		Width:     gs.Width,
		Height:    height,
		Contents:  len(gs.Contents),
		CreatedAt: time.Now().UTC(),
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return SaveInfo{}, err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO saves
		(id, name, tick, sim_time, width, height, contents, terrain, resources_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		info.ID, info.Name, info.Tick, gs.Time, info.Width, info.Height,
		info.Contents, terrain, string(resources), info.CreatedAt,
	)
	if err != nil {
		return SaveInfo{}, fmt.Errorf("insert save: %w", err)
	}

	stmt, err := tx.Preparex(`INSERT INTO save_contents
		(save_id, seq, x, z, template, tiers_json, facing, under_construction, built)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return SaveInfo{}, err
	}
	defer stmt.Close()

	for i, sc := range gs.Contents {
		tiers, _ := json.Marshal(sc.Tiers)
		var facing *int
		if sc.Facing != nil {
			f := int(*sc.Facing)
			facing = &f
		}
		_, err := stmt.Exec(info.ID, i, sc.Coord.X, sc.Coord.Z, sc.Template,
			string(tiers), facing, sc.UnderConstruction, sc.Built)
		if err != nil {
			return SaveInfo{}, fmt.Errorf("insert content %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return SaveInfo{}, err
	}
	slog.Info("game saved", "id", info.ID, "name", name, "tick", info.Tick, "contents", info.Contents)
	return info, nil
}

// LoadGame reads a save slot back into a GameState.
func (db *DB) LoadGame(id string) (engine.GameState, error) {
	var row saveRow
	err := db.conn.Get(&row, `SELECT id, name, tick, sim_time, width, height, contents,
		terrain, resources_json, created_at FROM saves WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.GameState{}, fmt.Errorf("save %s: %w", id, ErrNoSave)
	}
	if err != nil {
		return engine.GameState{}, err
	}

	gs := engine.GameState{
		Width:   row.Width,
		Terrain: make([]world.Terrain, len(row.Terrain)),
		Tick:    row.Tick,
		Time:    row.Time,
	}
	for i, b := range row.Terrain {
		gs.Terrain[i] = world.Terrain(b)
	}
	gs.Resources = map[economy.Resource]int{}
	if err := json.Unmarshal([]byte(row.Resources), &gs.Resources); err != nil {
		return engine.GameState{}, fmt.Errorf("decode resources: %w", err)
	}

	var contents []contentRow
	err = db.conn.Select(&contents, `SELECT seq, x, z, template, tiers_json, facing,
		under_construction, built FROM save_contents WHERE save_id = ? ORDER BY seq`, id)
	if err != nil {
		return engine.GameState{}, err
	}
	for _, c := range contents {
		sc := engine.SavedContent{
			Coord:             world.HexCoord{X: c.X, Z: c.Z},
			Template:          c.Template,
			UnderConstruction: c.UnderConstruction,
			Built:             c.Built,
		}
		if err := json.Unmarshal([]byte(c.Tiers), &sc.Tiers); err != nil {
			return engine.GameState{}, fmt.Errorf("decode tiers %d: %w", c.Seq, err)
		}
		if c.Facing != nil {
			d := world.Direction(*c.Facing)
			sc.Facing = &d
		}
		gs.Contents = append(gs.Contents, sc)
	}
	return gs, nil
}

// LatestSave returns the most recently created save slot.
func (db *DB) LatestSave() (SaveInfo, error) {
	var info SaveInfo
	err := db.conn.Get(&info, `SELECT id, name, tick, width, height, contents, created_at
		FROM saves ORDER BY created_at DESC, rowid DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return SaveInfo{}, ErrNoSave
	}
	return info, err
}

// ListSaves returns every save slot, newest first.
func (db *DB) ListSaves() ([]SaveInfo, error) {
	saves := []SaveInfo{}
	err := db.conn.Select(&saves, `SELECT id, name, tick, width, height, contents, created_at
		FROM saves ORDER BY created_at DESC, rowid DESC`)
	return saves, err
}

// DeleteSave removes a save slot and its contents.
func (db *DB) DeleteSave(id string) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM save_contents WHERE save_id = ?", id); err != nil {
		return err
	}
	res, err := tx.Exec("DELETE FROM saves WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("save %s: %w", id, ErrNoSave)
	}
	return tx.Commit()
}

// SaveEvents appends events to the database.
func (db *DB) SaveEvents(events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		_, err := tx.Exec(
			"INSERT INTO events (tick, description, category) VALUES (?, ?, ?)",
			e.Tick, e.Description, e.Category,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecentEvents returns the most recent N events, newest first.
func (db *DB) RecentEvents(limit int) ([]engine.Event, error) {
	events := []engine.Event{}
	err := db.conn.Select(&events,
		"SELECT tick, description, category FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	return events, err
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}
