// Package parser decodes the files the backend reads from disk: saved layout
// documents and material import sheets.
package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/matcluster/internal/models"
	"github.com/starford/matcluster/internal/tree"
)

// Layout is the on-disk form of a saved tree.
type Layout struct {
	Category string     `json:"category"`
	SavedAt  time.Time  `json:"saved_at"`
	Root     *tree.Node `json:"root"`
}

// ParseLayout decodes a layout document and checks the tree it carries.
func ParseLayout(data []byte) (*Layout, error) {
	var l Layout
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parser: decode layout: %w", err)
	}
	if l.Root == nil {
		return nil, errors.New("parser: layout has no root")
	}
	if l.Root.Type != models.TypeRoot {
		return nil, fmt.Errorf("parser: layout root has type %q", l.Root.Type)
	}
	if err := tree.Validate(l.Root); err != nil {
		return nil, fmt.Errorf("parser: %w", err)
	}
	return &l, nil
}

// EncodeLayout renders l as indented JSON.
func EncodeLayout(l Layout) ([]byte, error) {
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("parser: encode layout: %w", err)
	}
	return append(data, '\n'), nil
}
