package memory

import (
	"context"
	"errors"
	"sync"

	"pdfqa/internal/domain"
	"pdfqa/internal/vectorstore"
)

// Storage is a simple in-memory vector store using brute-force cosine similarity.
// Nothing survives the process.
type Storage struct {
	mu        sync.RWMutex
	created   bool
	dimension int
	vectors   [][]float32
	segments  []domain.Segment
}

func NewStorage() *Storage { return &Storage{} }

func (s *Storage) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = false
	s.dimension = 0
	s.vectors = nil
	s.segments = nil
	return nil
}

func (s *Storage) Upsert(_ context.Context, segments []domain.Segment, vectors [][]float32) error {
	if len(segments) != len(vectors) {
		return domain.E(domain.ErrStorage, "memory upsert", errors.New("segments and vectors length mismatch"))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vectors {
		if s.dimension == 0 {
			s.dimension = len(v)
		}
		if len(v) != s.dimension {
			return domain.E(domain.ErrStorage, "memory upsert", errors.New("vector dimension mismatch"))
		}
	}
	s.segments = append(s.segments, segments...)
	s.vectors = append(s.vectors, vectors...)
	s.created = true
	return nil
}

func (s *Storage) Search(_ context.Context, vector []float32, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pool := make([]vectorstore.Candidate, len(s.vectors))
	for i := range s.vectors {
		pool[i] = vectorstore.Candidate{
			Segment: s.segments[i],
			Vector:  s.vectors[i],
			Score:   vectorstore.Cosine(s.vectors[i], vector),
		}
	}
	pool = vectorstore.TopN(pool, max(opts.FetchK, opts.K))
	return vectorstore.Select(pool, opts), nil
}

func (s *Storage) Exists(_ context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.created, nil
}

func (s *Storage) Close() error { return nil }
