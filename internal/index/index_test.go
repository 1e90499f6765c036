package index

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfqa/internal/domain"
	"pdfqa/internal/vectorstore/memory"
)

type fakeEmbedder struct {
	mu         sync.Mutex
	docCalls   int
	queryCalls int
	err        error
}

func (f *fakeEmbedder) Name() string { return "fake" }

// vec places each text on an axis chosen by its first letter.
func vec(text string) []float32 {
	v := make([]float32, 26)
	if text != "" {
		c := strings.ToLower(text)[0]
		if c >= 'a' && c <= 'z' {
			v[c-'a'] = 1
		}
	}
	v[0] += 0.01
	return v
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.docCalls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = vec(t)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.queryCalls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return vec(text), nil
}

type recordingStore struct {
	*memory.Storage
	searches []domain.SearchOptions
}

func (r *recordingStore) Search(ctx context.Context, v []float32, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	r.searches = append(r.searches, opts)
	return r.Storage.Search(ctx, v, opts)
}

func segments(texts ...string) []domain.Segment {
	out := make([]domain.Segment, len(texts))
	for i, t := range texts {
		out[i] = domain.Segment{Text: t, SourceOffset: i * 800, Page: 1}
	}
	return out
}

func newIndex(t *testing.T, store domain.VectorStore, emb domain.Embedder) *Index {
	t.Helper()
	ix, err := New(context.Background(), store, emb, DefaultOptions(), zerolog.Nop())
	require.NoError(t, err)
	return ix
}

func TestReindex_ReplacesNeverMerges(t *testing.T) {
	ctx := context.Background()
	ix := newIndex(t, memory.NewStorage(), &fakeEmbedder{})

	require.NoError(t, ix.Reindex(ctx, segments("alpha from A", "beta from A", "gamma from A")))
	require.NoError(t, ix.Reindex(ctx, segments("apple from B", "banana from B")))
	assert.Equal(t, 2, ix.Size())

	for _, q := range []string{"alpha", "beta", "gamma", "apple", "zzz"} {
		got, err := ix.Retrieve(ctx, q)
		require.NoError(t, err)
		require.NotEmpty(t, got)
		for _, s := range got {
			assert.True(t, strings.HasSuffix(s.Text, "from B"), "query %q returned %q", q, s.Text)
		}
	}
}

func TestRetrieve_WithoutIndexMakesNoCalls(t *testing.T) {
	emb := &fakeEmbedder{}
	store := &recordingStore{Storage: memory.NewStorage()}
	ix := newIndex(t, store, emb)

	assert.False(t, ix.Ready())
	got, err := ix.Retrieve(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, emb.queryCalls)
	assert.Empty(t, store.searches)
}

func TestRetrieve_UsesConfiguredCardinalities(t *testing.T) {
	ctx := context.Background()
	emb := &fakeEmbedder{}
	store := &recordingStore{Storage: memory.NewStorage()}
	ix := newIndex(t, store, emb)

	require.NoError(t, ix.Reindex(ctx, segments("one", "two", "three")))
	got, err := ix.Retrieve(ctx, "what is one?")
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, 1, emb.queryCalls)
	require.Len(t, store.searches, 1)
	assert.Equal(t, 5, store.searches[0].K)
	assert.Equal(t, 20, store.searches[0].FetchK)
	assert.Equal(t, domain.StrategyMMR, store.searches[0].Strategy)
}

func TestReindex_ZeroSegmentsCreatesEmptyIndex(t *testing.T) {
	emb := &fakeEmbedder{}
	ix := newIndex(t, memory.NewStorage(), emb)

	require.NoError(t, ix.Reindex(context.Background(), nil))
	assert.True(t, ix.Ready())
	assert.Equal(t, 0, emb.docCalls)
}

func TestReindex_EmbeddingFailureLeavesNoIndex(t *testing.T) {
	ctx := context.Background()
	emb := &fakeEmbedder{}
	ix := newIndex(t, memory.NewStorage(), emb)
	require.NoError(t, ix.Reindex(ctx, segments("a")))

	emb.err = errors.New("quota exceeded")
	err := ix.Reindex(ctx, segments("b"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEmbedding))
	assert.False(t, ix.Ready())
}

func TestRetrieve_EmbeddingFailure(t *testing.T) {
	ctx := context.Background()
	emb := &fakeEmbedder{}
	ix := newIndex(t, memory.NewStorage(), emb)
	require.NoError(t, ix.Reindex(ctx, segments("a")))

	emb.err = errors.New("network down")
	_, err := ix.Retrieve(ctx, "q")
	assert.True(t, errors.Is(err, domain.ErrEmbedding))
}

func TestNew_PicksUpPersistedIndex(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStorage()
	require.NoError(t, store.Upsert(ctx, nil, nil))

	ix := newIndex(t, store, &fakeEmbedder{})
	assert.True(t, ix.Ready())

	_, err := New(ctx, store, &fakeEmbedder{}, Options{K: 5, FetchK: 2}, zerolog.Nop())
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestConcurrentReindexAndRetrieve(t *testing.T) {
	ctx := context.Background()
	ix := newIndex(t, memory.NewStorage(), &fakeEmbedder{})
	require.NoError(t, ix.Reindex(ctx, segments("a1", "a2")))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, ix.Reindex(ctx, segments("b1", "b2", "b3")))
		}()
		go func() {
			defer wg.Done()
			got, err := ix.Retrieve(ctx, "b")
			assert.NoError(t, err)
			// Never observes a half-built index.
			assert.Contains(t, []int{2, 3}, len(got))
		}()
	}
	wg.Wait()
}

func TestRetrieveIndexed_WithoutIndex(t *testing.T) {
	emb := &fakeEmbedder{}
	store := &recordingStore{Storage: memory.NewStorage()}
	ix := newIndex(t, store, emb)

	got, err := ix.RetrieveIndexed(context.Background(), "anything")
	assert.True(t, errors.Is(err, domain.ErrNoIndex))
	assert.Nil(t, got)
	assert.Equal(t, 0, emb.queryCalls)
	assert.Empty(t, store.searches)
}

func TestRetrieveIndexed_AfterFailedReindex(t *testing.T) {
	ctx := context.Background()
	emb := &fakeEmbedder{}
	ix := newIndex(t, memory.NewStorage(), emb)
	require.NoError(t, ix.Reindex(ctx, segments("a")))

	got, err := ix.RetrieveIndexed(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	emb.err = errors.New("quota exceeded")
	require.Error(t, ix.Reindex(ctx, segments("b")))
	emb.err = nil

	_, err = ix.RetrieveIndexed(ctx, "a")
	assert.True(t, errors.Is(err, domain.ErrNoIndex))
}

// docFailEmbedder answers queries but cannot embed documents.
type docFailEmbedder struct{ fakeEmbedder }

func (f *docFailEmbedder) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("quota exceeded")
}

func TestRetrieveIndexed_ConcurrentFailedReindex(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStorage()
	good, err := New(ctx, store, &fakeEmbedder{}, DefaultOptions(), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, good.Reindex(ctx, segments("a1", "a2")))

	ix, err := New(ctx, store, &docFailEmbedder{}, DefaultOptions(), zerolog.Nop())
	require.NoError(t, err)
	require.True(t, ix.Ready())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.Error(t, ix.Reindex(ctx, segments("b1")))
		}()
		go func() {
			defer wg.Done()
			got, err := ix.RetrieveIndexed(ctx, "a")
			if err != nil {
				assert.True(t, errors.Is(err, domain.ErrNoIndex), "unexpected error %v", err)
				return
			}
			// An index was seen, so its segments come back.
			assert.Len(t, got, 2)
		}()
	}
	wg.Wait()
	assert.False(t, ix.Ready())
}
