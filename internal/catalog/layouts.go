package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/matcluster/internal/apperr"
)

// LayoutRow represents a row in the layouts table.
type LayoutRow struct {
	File      string
	Category  string
	Checksum  string
	UpdatedAt time.Time
}

// UpsertLayout inserts or replaces the index entry of a layout file.
func (db *DB) UpsertLayout(row LayoutRow) error {
	_, err := db.conn.Exec(`
		INSERT INTO layouts (file, category, checksum, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(file) DO UPDATE SET
			category   = excluded.category,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, row.File, row.Category, row.Checksum, row.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("catalog: upsert layout: %w", err)
	}
	return nil
}

// DeleteLayout removes the index entry of a layout file.
func (db *DB) DeleteLayout(file string) error {
	if _, err := db.conn.Exec(`DELETE FROM layouts WHERE file = ?`, file); err != nil {
		return fmt.Errorf("catalog: delete layout: %w", err)
	}
	return nil
}

// LayoutByCategory returns the most recently updated layout of a category.
func (db *DB) LayoutByCategory(category string) (*LayoutRow, error) {
	var r LayoutRow
	err := db.conn.QueryRow(`SELECT file, category, checksum, updated_at FROM layouts
		WHERE category = ? ORDER BY updated_at DESC LIMIT 1`, category).
		Scan(&r.File, &r.Category, &r.Checksum, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: layout by category: %w", err)
	}
	return &r, nil
}

// LayoutChecksums returns the stored checksum of every indexed layout file.
func (db *DB) LayoutChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT file, checksum FROM layouts`)
	if err != nil {
		return nil, fmt.Errorf("catalog: layout checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var f, cs string
		if err := rows.Scan(&f, &cs); err != nil {
			return nil, err
		}
		out[f] = cs
	}
	return out, rows.Err()
}
