package qdrant

import (
	"context"
	"errors"
	"testing"

	qd "github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfqa/internal/domain"
)

type fakeClient struct {
	exists    bool
	created   []*qd.CreateCollection
	deleted   int
	upserts   []*qd.UpsertPoints
	queries   []*qd.QueryPoints
	result    []*qd.ScoredPoint
	existsErr error
}

func (f *fakeClient) CollectionExists(context.Context, string) (bool, error) {
	return f.exists, f.existsErr
}

func (f *fakeClient) CreateCollection(_ context.Context, req *qd.CreateCollection) error {
	f.created = append(f.created, req)
	f.exists = true
	return nil
}

func (f *fakeClient) DeleteCollection(context.Context, string) error {
	f.deleted++
	f.exists = false
	return nil
}

func (f *fakeClient) Upsert(_ context.Context, req *qd.UpsertPoints) (*qd.UpdateResult, error) {
	f.upserts = append(f.upserts, req)
	return &qd.UpdateResult{}, nil
}

func (f *fakeClient) Query(_ context.Context, req *qd.QueryPoints) ([]*qd.ScoredPoint, error) {
	f.queries = append(f.queries, req)
	return f.result, nil
}

func (f *fakeClient) Close() error { return nil }

func scored(text string, offset int, score float32, vec ...float32) *qd.ScoredPoint {
	return &qd.ScoredPoint{
		Id:    pointID(offset),
		Score: score,
		Payload: map[string]*qd.Value{
			"text":   qd.NewValueString(text),
			"offset": qd.NewValueInt(int64(offset)),
			"page":   qd.NewValueInt(1),
		},
		Vectors: &qd.VectorsOutput{VectorsOptions: &qd.VectorsOutput_Vector{Vector: &qd.VectorOutput{Data: vec}}},
	}
}

func TestStorage_ResetAndUpsert(t *testing.T) {
	ctx := context.Background()
	fc := &fakeClient{exists: true}
	s := newStorage(fc, Config{Collection: "docs", Dimension: 3})

	require.NoError(t, s.Reset(ctx))
	assert.Equal(t, 1, fc.deleted)
	ok, err := s.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	segs := []domain.Segment{{Text: "a", SourceOffset: 0}, {Text: "b", SourceOffset: 800}}
	require.NoError(t, s.Upsert(ctx, segs, [][]float32{{1, 0}, {0, 1}}))
	require.Len(t, fc.created, 1)
	assert.Equal(t, uint64(2), fc.created[0].GetVectorsConfig().GetParams().GetSize())
	require.Len(t, fc.upserts, 1)
	assert.Len(t, fc.upserts[0].Points, 2)
	assert.NotEqual(t, fc.upserts[0].Points[0].Id.GetUuid(), fc.upserts[0].Points[1].Id.GetUuid())
}

func TestStorage_EmptyUpsertCreatesCollection(t *testing.T) {
	fc := &fakeClient{}
	s := newStorage(fc, Config{Dimension: 3072})
	require.NoError(t, s.Upsert(context.Background(), nil, nil))
	require.Len(t, fc.created, 1)
	assert.Equal(t, uint64(3072), fc.created[0].GetVectorsConfig().GetParams().GetSize())
	assert.Empty(t, fc.upserts)
}

func TestStorage_SearchAppliesMMR(t *testing.T) {
	fc := &fakeClient{exists: true, result: []*qd.ScoredPoint{
		scored("a", 0, 0.95, 1, 0),
		scored("a-dup", 800, 0.94, 0.99, 0.01),
		scored("c", 1600, 0.70, 0, 1),
	}}
	s := newStorage(fc, Config{})

	res, err := s.Search(context.Background(), []float32{1, 0}, domain.SearchOptions{K: 2, FetchK: 20, Strategy: domain.StrategyMMR, Lambda: 0.5})
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "a", res[0].Segment.Text)
	assert.Equal(t, "c", res[1].Segment.Text)
	assert.Equal(t, 1600, res[1].Segment.SourceOffset)

	require.Len(t, fc.queries, 1)
	assert.Equal(t, uint64(20), fc.queries[0].GetLimit())
}

func TestStorage_SearchWithoutCollection(t *testing.T) {
	fc := &fakeClient{}
	s := newStorage(fc, Config{})
	res, err := s.Search(context.Background(), []float32{1}, domain.SearchOptions{K: 5, FetchK: 20})
	require.NoError(t, err)
	assert.Empty(t, res)
	assert.Empty(t, fc.queries)
}

func TestStorage_Errors(t *testing.T) {
	fc := &fakeClient{existsErr: errors.New("unavailable")}
	s := newStorage(fc, Config{})
	_, err := s.Exists(context.Background())
	assert.True(t, errors.Is(err, domain.ErrStorage))

	_, err = NewStorage(Config{URL: "::bad"})
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}
