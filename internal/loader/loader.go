// Package loader extracts page text from uploaded documents.
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"

	"pdfqa/internal/domain"
)

// FileLoader loads PDF and plain-text files.
type FileLoader struct{}

// New creates a file loader.
func New() *FileLoader { return &FileLoader{} }

// SupportedExtensions lists the file extensions Load accepts.
func SupportedExtensions() []string {
	return []string{".pdf", ".txt", ".md"}
}

// Supported reports whether path has a loadable extension.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SupportedExtensions() {
		if ext == e {
			return true
		}
	}
	return false
}

// Load returns the document pages in order. Failures are classified as
// domain.ErrIngestion; no partial result is returned.
func (l *FileLoader) Load(ctx context.Context, path string) ([]domain.Page, error) {
	if !Supported(path) {
		return nil, domain.E(domain.ErrIngestion, "load", fmt.Errorf("unsupported file type %q", filepath.Ext(path)))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, domain.E(domain.ErrIngestion, "load", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, domain.E(domain.ErrIngestion, "load", err)
	}

	var docs []schema.Document
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		docs, err = loadPDF(ctx, f, info.Size())
	} else {
		docs, err = documentloaders.NewText(f).Load(ctx)
	}
	if err != nil {
		return nil, domain.E(domain.ErrIngestion, "load", fmt.Errorf("%s: %w", filepath.Base(path), err))
	}
	return toPages(docs), nil
}

// loadPDF guards against panics inside the PDF parser on corrupt input.
func loadPDF(ctx context.Context, f *os.File, size int64) (docs []schema.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	return documentloaders.NewPDF(f, size).Load(ctx)
}

func toPages(docs []schema.Document) []domain.Page {
	pages := make([]domain.Page, 0, len(docs))
	for i, d := range docs {
		num := i + 1
		if v, ok := d.Metadata["page"].(int); ok && v > 0 {
			num = v
		}
		pages = append(pages, domain.Page{Number: num, Text: d.PageContent})
	}
	return pages
}
