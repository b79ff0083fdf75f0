package catalog

import (
	"fmt"
	"time"

	"github.com/starford/matcluster/internal/models"
)

// InsertMaterials adds rows to the catalog within one transaction and
// returns how many were inserted.
func (db *DB) InsertMaterials(rows []models.Material) (int, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.Prepare(`INSERT INTO materials (description, brand, sub_category, created_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("catalog: prepare material insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, m := range rows {
		if _, err := stmt.Exec(m.Description, m.Brand, m.SubCategory, now); err != nil {
			return 0, fmt.Errorf("catalog: insert material: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("catalog: commit: %w", err)
	}
	return len(rows), nil
}

// ListMaterials returns the materials of one sub-category, or all of them
// when subCategory is empty, in insertion order.
func (db *DB) ListMaterials(subCategory string) ([]models.Material, error) {
	query := `SELECT id, description, brand, sub_category, created_at FROM materials`
	var args []any
	if subCategory != "" {
		query += ` WHERE sub_category = ?`
		args = append(args, subCategory)
	}
	query += ` ORDER BY id`

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: list materials: %w", err)
	}
	defer rows.Close()

	var out []models.Material
	for rows.Next() {
		var m models.Material
		if err := rows.Scan(&m.ID, &m.Description, &m.Brand, &m.SubCategory, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Categories returns the distinct non-empty sub-categories, sorted.
func (db *DB) Categories() ([]string, error) {
	rows, err := db.conn.Query(`SELECT DISTINCT sub_category FROM materials WHERE sub_category != '' ORDER BY sub_category`)
	if err != nil {
		return nil, fmt.Errorf("catalog: categories: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
