package api

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/matcluster/internal/models"
)

// CreateAnnotationRequest is the request body for creating an annotation.
type CreateAnnotationRequest struct {
	NodeType       models.BusinessType   `json:"node_type" example:"material" validate:"required"`
	NodeIdentifier string                `json:"node_identifier" example:"42" validate:"required"`
	AnnotationType models.AnnotationKind `json:"annotation_type" example:"question" validate:"required"`
	Content        string                `json:"content,omitempty" example:"check supplier"`
	Question       string                `json:"question,omitempty" example:"Is this a duplicate?"`
	Answer         string                `json:"answer,omitempty" example:"No"`
}

// Validate checks the shape of the request. Field rules that depend on the
// stored record are enforced by the service.
func (r CreateAnnotationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.NodeType, validation.Required),
		validation.Field(&r.NodeIdentifier, validation.Required),
		validation.Field(&r.AnnotationType, validation.Required, validation.In(models.KindNote, models.KindQuestion)),
	)
}

// Key returns the node the annotation is attached to.
func (r CreateAnnotationRequest) Key() models.NodeKey {
	return models.NodeKey{Type: r.NodeType, Identifier: strings.TrimSpace(r.NodeIdentifier)}
}

// Annotation converts the request into an unsaved annotation.
func (r CreateAnnotationRequest) Annotation() models.Annotation {
	return models.Annotation{Kind: r.AnnotationType, Content: r.Content, Question: r.Question, Answer: r.Answer}
}

// AnswerRequest is the request body for answering a question.
type AnswerRequest struct {
	Answer string `json:"answer" example:"Yes, merge it"`
}

// Annotation is a single annotation in a response (aliased from the domain layer).
type Annotation = models.Annotation

// LayoutMetadata is returned after a layout is saved (aliased from the domain layer).
type LayoutMetadata = models.LayoutMetadata

// AnnotationListResponse wraps the annotations of one node.
type AnnotationListResponse struct {
	Annotations []Annotation `json:"annotations" validate:"required"`
}

// CategoryListResponse wraps the category filters.
type CategoryListResponse struct {
	Categories []string `json:"categories" validate:"required"`
}
