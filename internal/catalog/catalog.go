package catalog

import "github.com/starford/matcluster/internal/models"

// Catalog defines the persistence operations of the backend.
// Consumers depend on this interface rather than the concrete *DB type.
type Catalog interface {
	InsertMaterials(rows []models.Material) (int, error)
	ListMaterials(subCategory string) ([]models.Material, error)
	Categories() ([]string, error)

	ListAnnotations(key models.NodeKey) ([]models.Annotation, error)
	AllAnnotations() (map[models.NodeKey][]models.Annotation, error)
	CreateAnnotation(key models.NodeKey, a models.Annotation) (models.Annotation, error)
	GetAnnotation(id int64) (models.Annotation, models.NodeKey, error)
	UpdateAnswer(id int64, answer string) (models.Annotation, error)
	DeleteAnnotation(id int64) error

	UpsertLayout(row LayoutRow) error
	DeleteLayout(file string) error
	LayoutByCategory(category string) (*LayoutRow, error)
	LayoutChecksums() (map[string]string, error)

	Close() error
}

// Verify *DB satisfies Catalog at compile time.
var _ Catalog = (*DB)(nil)
