// Package annotation manages notes and questions attached to tree nodes.
//
// Annotations live in a remote store addressed by a node's business identity
// (type, identifier), never by its structural id, since structural ids are
// reassigned whenever the tree is reloaded. The local tree only caches them.
package annotation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/matcluster/internal/models"
)

// ErrNoIdentity is returned for nodes without a usable business identity.
var ErrNoIdentity = errors.New("annotation: node has no business identity")

// Store is the remote annotation collaborator.
type Store interface {
	List(ctx context.Context, key models.NodeKey) ([]models.Annotation, error)
	Create(ctx context.Context, key models.NodeKey, a models.Annotation) (models.Annotation, error)
	UpdateAnswer(ctx context.Context, id int64, answer string) (models.Annotation, error)
	Delete(ctx context.Context, id int64) error
}

// Tree is the local cache the service writes confirmed results into. Each
// method reports false when the node is no longer present.
type Tree interface {
	AttachAnnotation(nodeID string, a models.Annotation) bool
	RemoveAnnotation(nodeID string, annotationID int64) bool
	UpdateAnnotation(nodeID string, a models.Annotation) bool
	SetAnnotations(nodeID string, anns []models.Annotation) bool
}

// Node carries both identities of the annotated node.
type Node struct {
	ID  string
	Key models.NodeKey
}

func (n Node) validate() error {
	if !n.Key.Type.Valid() || strings.TrimSpace(n.Key.Identifier) == "" {
		return fmt.Errorf("%w: %q", ErrNoIdentity, n.ID)
	}
	return nil
}

// Draft is an annotation the user is composing.
type Draft struct {
	Kind   models.AnnotationKind
	Text   string
	Answer string
}

// Validate checks that the draft can be submitted. Text is checked as it
// will be sent, without surrounding whitespace.
func (d Draft) Validate() error {
	d.Text = strings.TrimSpace(d.Text)
	d.Answer = strings.TrimSpace(d.Answer)
	return validation.ValidateStruct(&d,
		validation.Field(&d.Kind, validation.Required, validation.In(models.KindNote, models.KindQuestion)),
		validation.Field(&d.Text, validation.Required, validation.Length(1, 4000)),
		validation.Field(&d.Answer, validation.When(d.Kind == models.KindNote, validation.Empty)),
	)
}

// Annotation converts the draft into an unconfirmed annotation.
func (d Draft) Annotation() models.Annotation {
	a := models.Annotation{Kind: d.Kind, CreatedAt: time.Now().UTC()}
	if d.Kind == models.KindQuestion {
		a.Question = strings.TrimSpace(d.Text)
		a.Answer = strings.TrimSpace(d.Answer)
	} else {
		a.Content = strings.TrimSpace(d.Text)
	}
	return a
}

// State is the lifecycle of a submitted draft.
type State int

// Submission states.
const (
	StateDraft State = iota
	StateSubmitting
	StateConfirmed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDraft:
		return "draft"
	case StateSubmitting:
		return "submitting"
	case StateConfirmed:
		return "confirmed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Submission tracks one draft through the remote store.
type Submission struct {
	State      State
	Draft      Draft
	Annotation models.Annotation
	Err        error
}

// Service coordinates the remote store and the local tree.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a new annotation service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// Add submits draft for node. Only a confirmed annotation, carrying the id
// assigned by the store, reaches the tree; a failed submission leaves the
// tree as it was and is not retried.
func (s *Service) Add(ctx context.Context, t Tree, node Node, d Draft) (*Submission, error) {
	sub := &Submission{State: StateDraft, Draft: d}
	if err := node.validate(); err != nil {
		sub.State, sub.Err = StateFailed, err
		return sub, err
	}
	if err := d.Validate(); err != nil {
		sub.State = StateFailed
		sub.Err = fmt.Errorf("annotation: invalid draft: %w", err)
		return sub, sub.Err
	}

	sub.State = StateSubmitting
	created, err := s.store.Create(ctx, node.Key, d.Annotation())
	if err != nil {
		sub.State = StateFailed
		sub.Err = fmt.Errorf("annotation: create for %s: %w", node.Key, err)
		return sub, sub.Err
	}

	sub.State = StateConfirmed
	sub.Annotation = created
	if !t.AttachAnnotation(node.ID, created) {
		s.logger.Debug("annotation: dropped confirmation for missing node",
			slog.String("node_id", node.ID), slog.Int64("annotation_id", created.ID))
	}
	return sub, nil
}

// Remove drops the annotation locally at once and then deletes it remotely.
// A remote failure is returned but the local removal stands.
func (s *Service) Remove(ctx context.Context, t Tree, node Node, annotationID int64) error {
	t.RemoveAnnotation(node.ID, annotationID)
	if annotationID == 0 {
		return nil
	}
	if err := s.store.Delete(ctx, annotationID); err != nil {
		return fmt.Errorf("annotation: delete %d: %w", annotationID, err)
	}
	return nil
}

// Answer stores an answer for a question and refreshes the local copy from
// the store's response.
func (s *Service) Answer(ctx context.Context, t Tree, node Node, annotationID int64, answer string) (models.Annotation, error) {
	updated, err := s.store.UpdateAnswer(ctx, annotationID, strings.TrimSpace(answer))
	if err != nil {
		return models.Annotation{}, fmt.Errorf("annotation: answer %d: %w", annotationID, err)
	}
	if !t.UpdateAnnotation(node.ID, updated) {
		s.logger.Debug("annotation: dropped answer for missing node",
			slog.String("node_id", node.ID), slog.Int64("annotation_id", annotationID))
	}
	return updated, nil
}

// Refresh replaces the node's cached annotations with the store's list.
func (s *Service) Refresh(ctx context.Context, t Tree, node Node) ([]models.Annotation, error) {
	if err := node.validate(); err != nil {
		return nil, err
	}
	anns, err := s.store.List(ctx, node.Key)
	if err != nil {
		return nil, fmt.Errorf("annotation: list for %s: %w", node.Key, err)
	}
	t.SetAnnotations(node.ID, anns)
	return anns, nil
}
