package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/matcluster/internal/apperr"
	"github.com/starford/matcluster/internal/models"
)

const annotationColumns = `id, node_type, node_identifier, annotation_type, content, question, answer, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanAnnotation(s scanner) (models.Annotation, models.NodeKey, error) {
	var (
		a   models.Annotation
		key models.NodeKey
	)
	err := s.Scan(&a.ID, &key.Type, &key.Identifier, &a.Kind, &a.Content, &a.Question, &a.Answer, &a.CreatedAt)
	return a, key, err
}

// ListAnnotations returns the annotations of one node, oldest first.
func (db *DB) ListAnnotations(key models.NodeKey) ([]models.Annotation, error) {
	rows, err := db.conn.Query(`SELECT `+annotationColumns+` FROM annotations
		WHERE node_type = ? AND node_identifier = ? ORDER BY created_at, id`, key.Type, key.Identifier)
	if err != nil {
		return nil, fmt.Errorf("catalog: list annotations: %w", err)
	}
	defer rows.Close()

	out := []models.Annotation{}
	for rows.Next() {
		a, _, err := scanAnnotation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AllAnnotations returns every annotation grouped by node identity.
func (db *DB) AllAnnotations() (map[models.NodeKey][]models.Annotation, error) {
	rows, err := db.conn.Query(`SELECT ` + annotationColumns + ` FROM annotations ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("catalog: all annotations: %w", err)
	}
	defer rows.Close()

	out := make(map[models.NodeKey][]models.Annotation)
	for rows.Next() {
		a, key, err := scanAnnotation(rows)
		if err != nil {
			return nil, err
		}
		out[key] = append(out[key], a)
	}
	return out, rows.Err()
}

// CreateAnnotation stores a for the node and returns it with its id.
func (db *DB) CreateAnnotation(key models.NodeKey, a models.Annotation) (models.Annotation, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	res, err := db.conn.Exec(`INSERT INTO annotations
		(node_type, node_identifier, annotation_type, content, question, answer, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		key.Type, key.Identifier, a.Kind, a.Content, a.Question, a.Answer, a.CreatedAt)
	if err != nil {
		return models.Annotation{}, fmt.Errorf("catalog: create annotation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Annotation{}, fmt.Errorf("catalog: annotation id: %w", err)
	}
	a.ID = id
	return a, nil
}

// GetAnnotation returns one annotation and the node it belongs to.
func (db *DB) GetAnnotation(id int64) (models.Annotation, models.NodeKey, error) {
	a, key, err := scanAnnotation(db.conn.QueryRow(`SELECT `+annotationColumns+` FROM annotations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Annotation{}, models.NodeKey{}, apperr.ErrNotFound
	}
	if err != nil {
		return models.Annotation{}, models.NodeKey{}, fmt.Errorf("catalog: get annotation: %w", err)
	}
	return a, key, nil
}

// UpdateAnswer sets the answer of a question annotation. Notes carry no
// answer and are rejected with apperr.ErrInvalid.
func (db *DB) UpdateAnswer(id int64, answer string) (models.Annotation, error) {
	a, _, err := db.GetAnnotation(id)
	if err != nil {
		return models.Annotation{}, err
	}
	if a.Kind != models.KindQuestion {
		return models.Annotation{}, fmt.Errorf("%w: annotation %d is not a question", apperr.ErrInvalid, id)
	}
	if _, err := db.conn.Exec(`UPDATE annotations SET answer = ? WHERE id = ?`, answer, id); err != nil {
		return models.Annotation{}, fmt.Errorf("catalog: update answer: %w", err)
	}
	a.Answer = answer
	return a, nil
}

// DeleteAnnotation removes one annotation.
func (db *DB) DeleteAnnotation(id int64) error {
	res, err := db.conn.Exec(`DELETE FROM annotations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("catalog: delete annotation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
