// Package storage defines the layout directory abstraction.
package storage

import (
	"strings"
	"unicode"

	"github.com/starford/matcluster/internal/checksum"
	"github.com/starford/matcluster/internal/models"
)

// Ext is the extension of layout files.
const Ext = ".json"

// Provider is the interface for layout file operations.
type Provider interface {
	// List returns metadata for every layout file in the directory.
	List() ([]models.LayoutFile, error)
	// Read returns the raw bytes of the named file.
	Read(name string) ([]byte, error)
	// Write atomically writes content to the named file.
	Write(name string, content []byte) error
	// Delete removes the named file.
	Delete(name string) error
}

// FileName returns the layout file name for a category. The readable slug
// is followed by a short digest of the exact category so that categories
// differing only in punctuation or case do not share a file.
func FileName(category string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(category)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		slug = "all"
	}
	return slug + "-" + checksum.Short([]byte(category)) + Ext
}
