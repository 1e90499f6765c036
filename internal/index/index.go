// Package index owns the single persisted document index: Reindex replaces
// it wholesale and Retrieve runs the diversity-aware search over it.
package index

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pdfqa/internal/domain"
)

// Options configures retrieval.
type Options struct {
	K        int
	FetchK   int
	Strategy domain.SearchStrategy
	Lambda   float64
}

// DefaultOptions returns K=5, FetchK=20 with MMR.
func DefaultOptions() Options {
	return Options{K: 5, FetchK: 20, Strategy: domain.StrategyMMR, Lambda: 0.5}
}

// Index serializes reindexing against retrieval with a single RW lock.
type Index struct {
	mu       sync.RWMutex
	store    domain.VectorStore
	embedder domain.Embedder
	opts     Options
	ready    bool
	size     int
	log      zerolog.Logger
}

// New wraps store. An index already persisted by a previous run counts as ready.
func New(ctx context.Context, store domain.VectorStore, embedder domain.Embedder, opts Options, log zerolog.Logger) (*Index, error) {
	if opts.K <= 0 || opts.FetchK < opts.K {
		return nil, domain.E(domain.ErrConfiguration, "index", errors.New("need 0 < k <= fetch_k"))
	}
	ready, err := store.Exists(ctx)
	if err != nil {
		return nil, err
	}
	return &Index{store: store, embedder: embedder, opts: opts, ready: ready, log: log}, nil
}

// Reindex destroys the current index and stores segments as the new one.
// On failure the index is left absent and the upload has to be retried.
func (ix *Index) Reindex(ctx context.Context, segments []domain.Segment) error {
	start := time.Now()
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.ready = false
	ix.size = 0
	if err := ix.store.Reset(ctx); err != nil {
		return classify(domain.ErrStorage, "reset index", err)
	}

	var vectors [][]float32
	if len(segments) > 0 {
		texts := make([]string, len(segments))
		for i, s := range segments {
			texts[i] = s.Text
		}
		var err error
		vectors, err = ix.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return classify(domain.ErrEmbedding, "embed segments", err)
		}
		if len(vectors) != len(segments) {
			return domain.E(domain.ErrEmbedding, "embed segments", errors.New("embedding count does not match segment count"))
		}
	}
	if err := ix.store.Upsert(ctx, segments, vectors); err != nil {
		return classify(domain.ErrStorage, "store segments", err)
	}

	ix.ready = true
	ix.size = len(segments)
	ix.log.Info().Int("segments", len(segments)).Dur("took", time.Since(start)).Msg("index rebuilt")
	return nil
}

// Retrieve returns the selected segments for query in final ranking order.
// With no index it returns nothing and makes no external call.
func (ix *Index) Retrieve(ctx context.Context, query string) ([]domain.Segment, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if !ix.ready {
		ix.log.Debug().Msg("retrieve without index, returning empty context")
		return nil, nil
	}
	return ix.search(ctx, query)
}

// RetrieveIndexed is Retrieve for callers that need an index: with none it
// fails with ErrNoIndex. The check and the search share one read lock, so a
// concurrent Reindex cannot slip between them.
func (ix *Index) RetrieveIndexed(ctx context.Context, query string) ([]domain.Segment, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if !ix.ready {
		return nil, domain.E(domain.ErrNoIndex, "retrieve", nil)
	}
	return ix.search(ctx, query)
}

// search expects the read lock to be held.
func (ix *Index) search(ctx context.Context, query string) ([]domain.Segment, error) {
	start := time.Now()
	vec, err := ix.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, classify(domain.ErrEmbedding, "embed query", err)
	}
	results, err := ix.store.Search(ctx, vec, domain.SearchOptions{
		K:        ix.opts.K,
		FetchK:   ix.opts.FetchK,
		Strategy: ix.opts.Strategy,
		Lambda:   ix.opts.Lambda,
	})
	if err != nil {
		return nil, domain.E(domain.ErrRetrieval, "search index", err)
	}
	segments := make([]domain.Segment, len(results))
	for i, r := range results {
		segments[i] = r.Segment
	}
	ix.log.Debug().Int("results", len(segments)).Dur("took", time.Since(start)).Msg("retrieved")
	return segments, nil
}

// Ready reports whether an index exists.
func (ix *Index) Ready() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.ready
}

// Size is the number of segments stored by the last Reindex in this process.
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.size
}

// classify keeps an existing classification and otherwise applies kind.
func classify(kind error, op string, err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return domain.E(kind, op, err)
}
