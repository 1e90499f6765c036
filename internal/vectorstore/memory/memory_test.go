package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfqa/internal/domain"
)

func seg(text string, off int) domain.Segment {
	return domain.Segment{Text: text, SourceOffset: off, Page: 1}
}

func TestStorage_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()

	ok, err := s.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Upsert(ctx, nil, nil))
	ok, _ = s.Exists(ctx)
	assert.True(t, ok, "an empty upsert still creates the index")

	require.NoError(t, s.Upsert(ctx,
		[]domain.Segment{seg("north", 0), seg("east", 10)},
		[][]float32{{0, 1}, {1, 0}}))

	res, err := s.Search(ctx, []float32{0.1, 1}, domain.SearchOptions{K: 1, FetchK: 2, Strategy: domain.StrategyMMR, Lambda: 0.5})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "north", res[0].Segment.Text)

	require.NoError(t, s.Reset(ctx))
	ok, _ = s.Exists(ctx)
	assert.False(t, ok)
	res, err = s.Search(ctx, []float32{0, 1}, domain.SearchOptions{K: 5, FetchK: 20})
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestStorage_Mismatch(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	err := s.Upsert(ctx, []domain.Segment{seg("a", 0)}, nil)
	assert.True(t, errors.Is(err, domain.ErrStorage))

	err = s.Upsert(ctx, []domain.Segment{seg("a", 0), seg("b", 1)}, [][]float32{{1, 0}, {1}})
	assert.True(t, errors.Is(err, domain.ErrStorage))
}
