// Package models defines the domain types shared by the backend and the editor.
package models

import (
	"strings"
	"time"
)

// BusinessType is the classification level of a tree node. It is independent
// of depth and is half of the key used to address annotations.
type BusinessType string

// Business types.
const (
	TypeRoot         BusinessType = "root"
	TypeBrand        BusinessType = "brand"
	TypeIntermediate BusinessType = "intermediate"
	TypeMaterial     BusinessType = "material"
)

// Valid reports whether t is a known business type.
func (t BusinessType) Valid() bool {
	switch t {
	case TypeRoot, TypeBrand, TypeIntermediate, TypeMaterial:
		return true
	}
	return false
}

// NodeKey is the business identity of a node. Unlike the structural id it
// survives a reload, so remote annotation records are addressed by it.
type NodeKey struct {
	Type       BusinessType `json:"node_type"`
	Identifier string       `json:"node_identifier"`
}

// String returns "type:identifier".
func (k NodeKey) String() string {
	return string(k.Type) + ":" + k.Identifier
}

// AnnotationKind distinguishes plain notes from question/answer pairs.
type AnnotationKind string

// Annotation kinds.
const (
	KindNote     AnnotationKind = "note"
	KindQuestion AnnotationKind = "question"
)

// Annotation is a note or question attached to a node. ID is assigned by the
// annotation store; zero means the entry has not been confirmed yet.
type Annotation struct {
	ID        int64          `json:"id,omitempty"`
	Kind      AnnotationKind `json:"annotation_type"`
	Content   string         `json:"content,omitempty"`
	Question  string         `json:"question,omitempty"`
	Answer    string         `json:"answer,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Open reports whether the annotation is a question still waiting for an answer.
func (a Annotation) Open() bool {
	return a.Kind == KindQuestion && strings.TrimSpace(a.Answer) == ""
}

// Text returns the single-line text shown for the annotation.
func (a Annotation) Text() string {
	if a.Kind == KindQuestion {
		return "Q: " + a.Question
	}
	return a.Content
}

// Material is one row of the material catalog.
type Material struct {
	ID          int64     `json:"id"`
	Description string    `json:"description"`
	Brand       string    `json:"brand"`
	SubCategory string    `json:"sub_category"`
	CreatedAt   time.Time `json:"created_at"`
}

// LayoutMetadata describes a saved layout file.
type LayoutMetadata struct {
	Category  string    `json:"category"`
	Revision  string    `json:"revision"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LayoutFile describes one layout file on disk.
type LayoutFile struct {
	Name      string    `json:"name"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
