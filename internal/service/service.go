// Package service is the application core used by the shell and the CLI:
// uploading a document replaces the index, asking runs the orchestrator.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pdfqa/internal/domain"
	"pdfqa/internal/loader"
	"pdfqa/internal/orchestrator"
	"pdfqa/internal/session"
	"pdfqa/internal/watcher"
)

// Ingester is the ingestion adapter.
type Ingester interface {
	Ingest(ctx context.Context, path string) ([]domain.Segment, error)
}

// Indexer is the write side of the index.
type Indexer interface {
	Reindex(ctx context.Context, segments []domain.Segment) error
	Ready() bool
}

// Asker runs one question for a session.
type Asker interface {
	Ask(ctx context.Context, sess *session.Session, question string) (orchestrator.Result, error)
}

// ReindexObserver records upload outcomes. Metrics implement it.
type ReindexObserver interface {
	ObserveReindex(segments int, err error)
}

// Service is safe for concurrent use. Uploads are serialized with each
// other; the index itself serializes them against queries.
type Service struct {
	ingester Ingester
	index    Indexer
	asker    Asker
	observer ReindexObserver
	log      zerolog.Logger

	uploadMu sync.Mutex

	mu       sync.Mutex
	document string
	last     orchestrator.Result
}

func New(ingester Ingester, index Indexer, asker Asker, observer ReindexObserver, log zerolog.Logger) *Service {
	return &Service{ingester: ingester, index: index, asker: asker, observer: observer, log: log}
}

// Upload ingests path and replaces the index with its segments. If the
// document cannot be read the index is left untouched.
func (s *Service) Upload(ctx context.Context, path string) (n int, err error) {
	s.uploadMu.Lock()
	defer s.uploadMu.Unlock()

	start := time.Now()
	defer func() {
		if s.observer != nil {
			s.observer.ObserveReindex(n, err)
		}
	}()

	if !loader.Supported(path) {
		return 0, domain.E(domain.ErrIngestion, "upload", fmt.Errorf("unsupported file type: %s", path))
	}
	if _, statErr := os.Stat(path); statErr != nil {
		return 0, domain.E(domain.ErrIngestion, "upload", statErr)
	}
	segments, err := s.ingester.Ingest(ctx, path)
	if err != nil {
		return 0, classify(domain.ErrIngestion, "upload", err)
	}
	if err := s.index.Reindex(ctx, segments); err != nil {
		s.log.Error().Err(err).Str("path", path).Msg("reindex failed, index must be rebuilt")
		return 0, err
	}

	s.mu.Lock()
	s.document = path
	s.last = orchestrator.Result{}
	s.mu.Unlock()
	s.log.Info().Str("path", path).Int("segments", len(segments)).Dur("took", time.Since(start)).Msg("document uploaded")
	return len(segments), nil
}

// Ask answers question for sess and remembers the context it used.
func (s *Service) Ask(ctx context.Context, sess *session.Session, question string) (string, error) {
	res, err := s.asker.Ask(ctx, sess, question)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.last = res
	s.mu.Unlock()
	return res.Answer, nil
}

// Sources returns the segments and web results behind the last answer.
func (s *Service) Sources() ([]domain.Segment, []domain.WebResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last.Segments, s.last.Web
}

// Document is the path of the last successful upload.
func (s *Service) Document() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.document
}

// Ready reports whether an index exists.
func (s *Service) Ready() bool { return s.index.Ready() }

// Watch re-uploads path whenever it changes until ctx is done. onReindex,
// if set, receives the outcome of each re-upload.
func (s *Service) Watch(ctx context.Context, path string, onReindex func(n int, err error)) error {
	w, err := watcher.New(path, watcher.DefaultDebounce, s.log)
	if err != nil {
		return err
	}
	return w.Run(ctx, func(ctx context.Context) {
		n, err := s.Upload(ctx, path)
		if err != nil {
			s.log.Error().Err(err).Str("path", path).Msg("re-upload failed")
		}
		if onReindex != nil {
			onReindex(n, err)
		}
	})
}

func classify(kind error, op string, err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return domain.E(kind, op, err)
}
