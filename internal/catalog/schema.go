// Package catalog provides the SQLite-backed store for materials,
// annotations and the index of saved layout files.
package catalog

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS materials (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	description  TEXT NOT NULL,
	brand        TEXT NOT NULL DEFAULT '',
	sub_category TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_materials_sub_category ON materials(sub_category);

CREATE TABLE IF NOT EXISTS annotations (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	node_type       TEXT NOT NULL,
	node_identifier TEXT NOT NULL,
	annotation_type TEXT NOT NULL,
	content         TEXT NOT NULL DEFAULT '',
	question        TEXT NOT NULL DEFAULT '',
	answer          TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_annotations_node ON annotations(node_type, node_identifier);

CREATE TABLE IF NOT EXISTS layouts (
	file       TEXT PRIMARY KEY,
	category   TEXT NOT NULL,
	checksum   TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_layouts_category ON layouts(category);
`

// DB wraps a sql.DB with catalog operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("catalog: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Ping checks that the database is reachable.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
