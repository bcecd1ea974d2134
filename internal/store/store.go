// Package store persists panels, slots, templates, and wires in an
// embedded SQLite database behind database/sql. Placement mutations run
// through one write transaction per panel so validation and span writes
// commit together.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS panel_templates (
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL,
	model             TEXT NOT NULL DEFAULT '',
	manufacturer      TEXT NOT NULL DEFAULT '',
	series            TEXT NOT NULL DEFAULT '',
	rows              INTEGER NOT NULL,
	slots_per_row     INTEGER NOT NULL,
	voltage           REAL NOT NULL DEFAULT 0,
	max_current       REAL NOT NULL DEFAULT 0,
	enclosure_type    TEXT NOT NULL DEFAULT '',
	protection_rating TEXT NOT NULL DEFAULT '',
	description       TEXT NOT NULL DEFAULT '',
	is_active         INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS device_templates (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	model          TEXT NOT NULL DEFAULT '',
	manufacturer   TEXT NOT NULL DEFAULT '',
	series         TEXT NOT NULL DEFAULT '',
	device_type    TEXT NOT NULL DEFAULT '',
	category       TEXT NOT NULL DEFAULT '',
	slots_required INTEGER NOT NULL,
	rated_current  REAL NOT NULL DEFAULT 0,
	max_current    REAL NOT NULL DEFAULT 0,
	voltage_range  TEXT NOT NULL DEFAULT '',
	pole_count     INTEGER NOT NULL DEFAULT 0,
	description    TEXT NOT NULL DEFAULT '',
	is_active      INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS panels (
	id             TEXT PRIMARY KEY,
	template_id    TEXT NOT NULL REFERENCES panel_templates(id),
	name           TEXT NOT NULL,
	manufacturer   TEXT NOT NULL DEFAULT '',
	model          TEXT NOT NULL DEFAULT '',
	rows           INTEGER NOT NULL,
	slots_per_row  INTEGER NOT NULL,
	voltage        REAL NOT NULL DEFAULT 0,
	current_rating REAL NOT NULL DEFAULT 0,
	description    TEXT NOT NULL DEFAULT '',
	created_at     TEXT NOT NULL,
	updated_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS panel_slots (
	id                 TEXT PRIMARY KEY,
	panel_id           TEXT NOT NULL REFERENCES panels(id) ON DELETE CASCADE,
	slot_number        INTEGER NOT NULL,
	grid_row           INTEGER NOT NULL,
	grid_col           INTEGER NOT NULL,
	is_occupied        INTEGER NOT NULL DEFAULT 0,
	device_template_id TEXT,
	device_label       TEXT NOT NULL DEFAULT '',
	current_setting    REAL,
	spans_slots        INTEGER NOT NULL DEFAULT 1,
	custom_properties  TEXT NOT NULL DEFAULT '{}',
	UNIQUE (panel_id, slot_number)
);

CREATE TABLE IF NOT EXISTS wires (
	id                   TEXT PRIMARY KEY,
	panel_id             TEXT NOT NULL REFERENCES panels(id) ON DELETE CASCADE,
	label                TEXT NOT NULL,
	wire_type            TEXT NOT NULL,
	cross_section        REAL NOT NULL DEFAULT 0,
	color                TEXT NOT NULL DEFAULT '',
	source_slot_id       TEXT REFERENCES panel_slots(id),
	destination_slot_id  TEXT REFERENCES panel_slots(id),
	external_source      TEXT NOT NULL DEFAULT '',
	external_destination TEXT NOT NULL DEFAULT '',
	length               REAL,
	is_orphaned          INTEGER NOT NULL DEFAULT 0,
	created_at           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_panel_slots_panel ON panel_slots(panel_id, slot_number);
CREATE INDEX IF NOT EXISTS idx_wires_panel ON wires(panel_id);
CREATE INDEX IF NOT EXISTS idx_wires_source_slot ON wires(source_slot_id);
CREATE INDEX IF NOT EXISTS idx_wires_destination_slot ON wires(destination_slot_id);
`

// Store wraps the SQL database with panel-domain operations.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// Open creates or opens the SQLite database at path and ensures the
// schema exists.
func Open(path string, log *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// The sqlite driver serializes writers; a single connection avoids
	// SQLITE_BUSY churn between concurrent transactions.
	db.SetMaxOpenConns(1)

	s := New(db, log)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

// New wraps an already-open database without touching the schema. Tests
// hand in sqlmock or in-memory connections through here.
func New(db *sql.DB, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{db: db, log: log}
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// beginTx starts a write transaction with the caller's context.
func (s *Store) beginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return tx, nil
}
