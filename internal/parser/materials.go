package parser

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/starford/matcluster/internal/models"
)

// MaterialRow is one entry of an import sheet.
type MaterialRow struct {
	Description string `yaml:"description"`
	Brand       string `yaml:"brand"`
	SubCategory string `yaml:"sub_category"`
}

// Validate checks a single row.
func (r MaterialRow) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Description, validation.Required, validation.Length(1, 500)),
		validation.Field(&r.Brand, validation.Length(0, 200)),
		validation.Field(&r.SubCategory, validation.Length(0, 200)),
	)
}

type materialSheet struct {
	Materials []MaterialRow `yaml:"materials"`
}

// ParseMaterials decodes a YAML import sheet. The sheet is either a mapping
// with a "materials" list or a bare list of rows. Every row is validated and
// the first invalid one fails the whole sheet.
func ParseMaterials(data []byte) ([]models.Material, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("parser: empty material sheet")
	}

	var rows []MaterialRow
	if data[0] == '-' {
		if err := yaml.Unmarshal(data, &rows); err != nil {
			return nil, fmt.Errorf("parser: decode materials: %w", err)
		}
	} else {
		var sheet materialSheet
		if err := yaml.Unmarshal(data, &sheet); err != nil {
			return nil, fmt.Errorf("parser: decode materials: %w", err)
		}
		rows = sheet.Materials
	}
	if len(rows) == 0 {
		return nil, errors.New("parser: material sheet has no rows")
	}

	out := make([]models.Material, 0, len(rows))
	for i, r := range rows {
		r.Description = strings.TrimSpace(r.Description)
		r.Brand = strings.TrimSpace(r.Brand)
		r.SubCategory = strings.TrimSpace(r.SubCategory)
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("parser: row %d: %w", i+1, err)
		}
		out = append(out, models.Material{
			Description: r.Description,
			Brand:       r.Brand,
			SubCategory: r.SubCategory,
		})
	}
	return out, nil
}
