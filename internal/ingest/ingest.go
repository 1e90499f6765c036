// Package ingest turns a document file into ordered, overlapping segments.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"pdfqa/internal/domain"
)

// Ingester combines a document loader with a chunker.
type Ingester struct {
	loader  domain.Loader
	chunker domain.Chunker
	log     zerolog.Logger
}

// New creates an Ingester.
func New(loader domain.Loader, chunker domain.Chunker, log zerolog.Logger) *Ingester {
	return &Ingester{loader: loader, chunker: chunker, log: log}
}

// Ingest extracts and splits the document at path. It only reads the file.
func (i *Ingester) Ingest(ctx context.Context, path string) ([]domain.Segment, error) {
	start := time.Now()
	pages, err := i.loader.Load(ctx, path)
	if err != nil {
		i.log.Error().Err(err).Str("path", path).Msg("load failed")
		return nil, err
	}
	segments, err := i.chunker.Chunk(pages)
	if err != nil {
		i.log.Error().Err(err).Str("path", path).Msg("chunking failed")
		return nil, domain.E(domain.ErrIngestion, "chunk", fmt.Errorf("%s: %w", path, err))
	}
	i.log.Info().
		Str("path", path).
		Int("pages", len(pages)).
		Int("segments", len(segments)).
		Dur("took", time.Since(start)).
		Msg("document ingested")
	return segments, nil
}
