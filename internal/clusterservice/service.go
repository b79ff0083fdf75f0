// Package clusterservice builds classification trees from the catalog and
// persists their layouts. It is the backend behind the editor's remote
// collaborators: load tree, save layout, annotation store and category list.
package clusterservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/matcluster/internal/apperr"
	"github.com/starford/matcluster/internal/catalog"
	"github.com/starford/matcluster/internal/checksum"
	"github.com/starford/matcluster/internal/models"
	"github.com/starford/matcluster/internal/parser"
	"github.com/starford/matcluster/internal/sse"
	"github.com/starford/matcluster/internal/storage"
	"github.com/starford/matcluster/internal/tree"
)

// Notifier receives change notifications.
type Notifier interface {
	PublishChange(c sse.Change)
}

type nopNotifier struct{}

func (nopNotifier) PublishChange(sse.Change) {}

// Service coordinates the catalog and the layout files.
type Service struct {
	db     catalog.Catalog
	store  storage.Provider
	events Notifier
	logger *slog.Logger
}

// NewService creates a new cluster service. events may be nil.
func NewService(db catalog.Catalog, store storage.Provider, events Notifier, logger *slog.Logger) *Service {
	if events == nil {
		events = nopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, store: store, events: events, logger: logger}
}

// Tree builds the tree for a category: the skeleton of the catalog,
// overlaid with the saved layout when there is one, decorated with
// annotations and given fresh ids.
func (s *Service) Tree(_ context.Context, category string) (*tree.Node, error) {
	category = normalizeCategory(category)
	mats, err := s.db.ListMaterials(category)
	if err != nil {
		return nil, err
	}
	root := Skeleton(category, mats)

	saved, err := s.savedLayout(category)
	if err != nil {
		return nil, err
	}
	if saved != nil {
		root = Overlay(saved.Root, root)
	}

	anns, err := s.db.AllAnnotations()
	if err != nil {
		return nil, err
	}
	Decorate(root, anns)
	AssignIDs(root)
	if err := tree.Validate(root); err != nil {
		return nil, fmt.Errorf("clusterservice: built tree: %w", err)
	}
	return root, nil
}

// savedLayout returns the saved layout of a category, or nil when none
// exists or the file can no longer be read.
func (s *Service) savedLayout(category string) (*parser.Layout, error) {
	row, err := s.db.LayoutByCategory(category)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	data, err := s.store.Read(row.File)
	if err != nil {
		s.logger.Warn("clusterservice: layout unreadable", slog.String("file", row.File), slog.String("error", err.Error()))
		return nil, nil
	}
	l, err := parser.ParseLayout(data)
	if err != nil {
		s.logger.Warn("clusterservice: layout invalid", slog.String("file", row.File), slog.String("error", err.Error()))
		return nil, nil
	}
	return l, nil
}

// SaveLayout stores root as the arrangement of category. Annotations and
// derived fields are not part of a layout. The returned revision is the
// checksum of the written file; it is informational and not checked on the
// next save, so concurrent editors overwrite each other.
func (s *Service) SaveLayout(_ context.Context, category string, root *tree.Node) (models.LayoutMetadata, error) {
	category = normalizeCategory(category)
	if err := tree.Validate(root); err != nil {
		return models.LayoutMetadata{}, fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}
	if root.Type != models.TypeRoot {
		return models.LayoutMetadata{}, fmt.Errorf("%w: root has type %q", apperr.ErrInvalid, root.Type)
	}

	layout := tree.Clone(root)
	Strip(layout)
	now := time.Now().UTC()
	data, err := parser.EncodeLayout(parser.Layout{Category: category, SavedAt: now, Root: layout})
	if err != nil {
		return models.LayoutMetadata{}, err
	}

	// Index before writing; the layout watcher skips content it already knows.
	name := storage.FileName(category)
	rev := checksum.Sum(data)
	if err := s.db.UpsertLayout(catalog.LayoutRow{File: name, Category: category, Checksum: rev, UpdatedAt: now}); err != nil {
		return models.LayoutMetadata{}, err
	}
	if err := s.store.Write(name, data); err != nil {
		s.reindex(name)
		return models.LayoutMetadata{}, err
	}

	s.events.PublishChange(sse.Change{Resource: "layout", Kind: sse.Saved, Data: map[string]any{
		"category": category, "file": name, "revision": rev,
	}})
	return models.LayoutMetadata{Category: category, Revision: rev, UpdatedAt: now}, nil
}

// reindex makes the index entry of name match the file on disk again.
func (s *Service) reindex(name string) {
	data, err := s.store.Read(name)
	if err != nil {
		if derr := s.db.DeleteLayout(name); derr != nil {
			s.logger.Warn("clusterservice: drop index entry", slog.String("file", name), slog.String("error", derr.Error()))
		}
		return
	}
	if err := catalog.IndexLayout(s.db, name, data, time.Time{}); err != nil {
		s.logger.Warn("clusterservice: reindex layout", slog.String("file", name), slog.String("error", err.Error()))
	}
}

// LayoutFile returns the raw content of a saved layout file.
func (s *Service) LayoutFile(_ context.Context, name string) ([]byte, error) {
	if !storage.IsLayout(name) {
		return nil, apperr.ErrNotFound
	}
	data, err := s.store.Read(name)
	if errors.Is(err, os.ErrNotExist) {
		return nil, apperr.ErrNotFound
	}
	return data, err
}

// Categories returns the known category filters.
func (s *Service) Categories(_ context.Context) ([]string, error) {
	return s.db.Categories()
}

// ImportMaterials adds rows to the catalog.
func (s *Service) ImportMaterials(_ context.Context, rows []models.Material) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := s.db.InsertMaterials(rows)
	if err != nil {
		return 0, err
	}
	s.events.PublishChange(sse.Change{Resource: "materials", Kind: sse.Created, Data: map[string]any{"count": n}})
	return n, nil
}

func validateKey(key models.NodeKey) error {
	return validation.ValidateStruct(&key,
		validation.Field(&key.Type, validation.Required, validation.In(
			models.TypeRoot, models.TypeBrand, models.TypeIntermediate, models.TypeMaterial)),
		validation.Field(&key.Identifier, validation.Required, validation.Length(1, 500)),
	)
}

func validateAnnotation(a models.Annotation) error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Kind, validation.Required, validation.In(models.KindNote, models.KindQuestion)),
		validation.Field(&a.Content, validation.When(a.Kind == models.KindNote, validation.Required), validation.Length(0, 4000)),
		validation.Field(&a.Question, validation.When(a.Kind == models.KindQuestion, validation.Required), validation.Length(0, 4000)),
		validation.Field(&a.Answer, validation.When(a.Kind == models.KindNote, validation.Empty), validation.Length(0, 4000)),
	)
}

// ListAnnotations returns the annotations of one node.
func (s *Service) ListAnnotations(_ context.Context, key models.NodeKey) ([]models.Annotation, error) {
	if err := validateKey(key); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}
	return s.db.ListAnnotations(key)
}

// CreateAnnotation stores a new annotation for a node.
func (s *Service) CreateAnnotation(_ context.Context, key models.NodeKey, a models.Annotation) (models.Annotation, error) {
	a.Content = strings.TrimSpace(a.Content)
	a.Question = strings.TrimSpace(a.Question)
	a.Answer = strings.TrimSpace(a.Answer)
	if err := validateKey(key); err != nil {
		return models.Annotation{}, fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}
	if err := validateAnnotation(a); err != nil {
		return models.Annotation{}, fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}
	a.ID = 0
	a.CreatedAt = time.Now().UTC()

	created, err := s.db.CreateAnnotation(key, a)
	if err != nil {
		return models.Annotation{}, err
	}
	s.publishAnnotation(sse.Created, created.ID, key)
	return created, nil
}

// AnswerAnnotation sets the answer of a question. An empty answer reopens it.
func (s *Service) AnswerAnnotation(_ context.Context, id int64, answer string) (models.Annotation, error) {
	updated, err := s.db.UpdateAnswer(id, strings.TrimSpace(answer))
	if err != nil {
		return models.Annotation{}, err
	}
	if _, key, err := s.db.GetAnnotation(id); err == nil {
		s.publishAnnotation(sse.Updated, id, key)
	}
	return updated, nil
}

// DeleteAnnotation removes an annotation.
func (s *Service) DeleteAnnotation(_ context.Context, id int64) error {
	_, key, err := s.db.GetAnnotation(id)
	if err != nil {
		return err
	}
	if err := s.db.DeleteAnnotation(id); err != nil {
		return err
	}
	s.publishAnnotation(sse.Deleted, id, key)
	return nil
}

func (s *Service) publishAnnotation(kind string, id int64, key models.NodeKey) {
	s.events.PublishChange(sse.Change{Resource: "annotation", Kind: kind, Data: map[string]any{
		"id": id, "node_type": key.Type, "node_identifier": key.Identifier,
	}})
}
