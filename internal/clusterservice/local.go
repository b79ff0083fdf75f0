package clusterservice

import (
	"context"

	"github.com/starford/matcluster/internal/models"
	"github.com/starford/matcluster/internal/tree"
)

// Local adapts a Service to the editor's tree source and annotation store
// so an editor can run in-process against the catalog.
type Local struct {
	svc *Service
}

// NewLocal wraps svc.
func NewLocal(svc *Service) *Local {
	return &Local{svc: svc}
}

// LoadTree builds the tree of a category.
func (l *Local) LoadTree(ctx context.Context, category string) (*tree.Node, error) {
	return l.svc.Tree(ctx, category)
}

// SaveLayout stores the arrangement of a category.
func (l *Local) SaveLayout(ctx context.Context, category string, root *tree.Node) (models.LayoutMetadata, error) {
	return l.svc.SaveLayout(ctx, category, root)
}

// Categories lists the category filters.
func (l *Local) Categories(ctx context.Context) ([]string, error) {
	return l.svc.Categories(ctx)
}

// List returns the annotations of a node.
func (l *Local) List(ctx context.Context, key models.NodeKey) ([]models.Annotation, error) {
	return l.svc.ListAnnotations(ctx, key)
}

// Create stores a new annotation.
func (l *Local) Create(ctx context.Context, key models.NodeKey, a models.Annotation) (models.Annotation, error) {
	return l.svc.CreateAnnotation(ctx, key, a)
}

// UpdateAnswer sets the answer of a question.
func (l *Local) UpdateAnswer(ctx context.Context, id int64, answer string) (models.Annotation, error) {
	return l.svc.AnswerAnnotation(ctx, id, answer)
}

// Delete removes an annotation.
func (l *Local) Delete(ctx context.Context, id int64) error {
	return l.svc.DeleteAnnotation(ctx, id)
}
