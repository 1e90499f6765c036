package qdrant

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	qd "github.com/qdrant/go-client/qdrant"

	"pdfqa/internal/domain"
	"pdfqa/internal/vectorstore"
)

// pointsAPI is the part of the qdrant gRPC client the store uses.
type pointsAPI interface {
	CollectionExists(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, req *qd.CreateCollection) error
	DeleteCollection(ctx context.Context, name string) error
	Upsert(ctx context.Context, req *qd.UpsertPoints) (*qd.UpdateResult, error)
	Query(ctx context.Context, req *qd.QueryPoints) ([]*qd.ScoredPoint, error)
	Close() error
}

// Storage keeps the index in a single qdrant collection. Reset drops the
// collection and Upsert recreates it, so the collection's existence is the
// "index exists" flag.
type Storage struct {
	client     pointsAPI
	collection string
	dimension  int
}

type Config struct {
	// URL of the gRPC endpoint, e.g. http://localhost:6334.
	URL        string
	APIKey     string
	Collection string
	// Dimension is used when an empty index is created.
	Dimension int
}

func NewStorage(cfg Config) (*Storage, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Hostname() == "" {
		return nil, domain.E(domain.ErrConfiguration, "qdrant", fmt.Errorf("invalid url %q", cfg.URL))
	}
	port := 6334
	if p := u.Port(); p != "" {
		if port, err = strconv.Atoi(p); err != nil {
			return nil, domain.E(domain.ErrConfiguration, "qdrant", fmt.Errorf("invalid port %q", p))
		}
	}
	client, err := qd.NewClient(&qd.Config{
		Host:   u.Hostname(),
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: u.Scheme == "https",
	})
	if err != nil {
		return nil, domain.E(domain.ErrStorage, "qdrant connect", err)
	}
	return newStorage(client, cfg), nil
}

func newStorage(client pointsAPI, cfg Config) *Storage {
	if cfg.Collection == "" {
		cfg.Collection = "pdfqa"
	}
	return &Storage{client: client, collection: cfg.Collection, dimension: cfg.Dimension}
}

func (s *Storage) Reset(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return domain.E(domain.ErrStorage, "qdrant reset", err)
	}
	if !exists {
		return nil
	}
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return domain.E(domain.ErrStorage, "qdrant reset", err)
	}
	return nil
}

func (s *Storage) Upsert(ctx context.Context, segments []domain.Segment, vectors [][]float32) error {
	if len(segments) != len(vectors) {
		return domain.E(domain.ErrStorage, "qdrant upsert", errors.New("segments and vectors length mismatch"))
	}
	dim := s.dimension
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	if err := s.ensureCollection(ctx, dim); err != nil {
		return domain.E(domain.ErrStorage, "qdrant upsert", err)
	}
	if len(segments) == 0 {
		return nil
	}

	const batchSize = 100
	for start := 0; start < len(segments); start += batchSize {
		end := min(start+batchSize, len(segments))
		points := make([]*qd.PointStruct, 0, end-start)
		for i := start; i < end; i++ {
			points = append(points, &qd.PointStruct{
				Id:      pointID(segments[i].SourceOffset),
				Vectors: &qd.Vectors{VectorsOptions: &qd.Vectors_Vector{Vector: &qd.Vector{Data: vectors[i]}}},
				Payload: map[string]*qd.Value{
					"text":   qd.NewValueString(segments[i].Text),
					"offset": qd.NewValueInt(int64(segments[i].SourceOffset)),
					"page":   qd.NewValueInt(int64(segments[i].Page)),
				},
			})
		}
		wait := true
		if _, err := s.client.Upsert(ctx, &qd.UpsertPoints{CollectionName: s.collection, Points: points, Wait: &wait}); err != nil {
			return domain.E(domain.ErrStorage, "qdrant upsert", fmt.Errorf("batch %d-%d: %w", start, end-1, err))
		}
	}
	return nil
}

func (s *Storage) ensureCollection(ctx context.Context, dim int) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil || exists {
		return err
	}
	if dim <= 0 {
		return errors.New("vector dimension is unknown")
	}
	return s.client.CreateCollection(ctx, &qd.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qd.NewVectorsConfig(&qd.VectorParams{
			Size:     uint64(dim),
			Distance: qd.Distance_Cosine,
		}),
	})
}

// Search fetches the FetchK nearest points with their vectors and selects K locally.
func (s *Storage) Search(ctx context.Context, vector []float32, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return nil, domain.E(domain.ErrStorage, "qdrant search", err)
	}
	if !exists {
		return nil, nil
	}
	limit := uint64(max(opts.FetchK, opts.K))
	points, err := s.client.Query(ctx, &qd.QueryPoints{
		CollectionName: s.collection,
		Query:          qd.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qd.NewWithPayload(true),
		WithVectors:    qd.NewWithVectors(true),
	})
	if err != nil {
		return nil, domain.E(domain.ErrStorage, "qdrant search", err)
	}
	pool := make([]vectorstore.Candidate, 0, len(points))
	for _, p := range points {
		payload := p.GetPayload()
		pool = append(pool, vectorstore.Candidate{
			Segment: domain.Segment{
				Text:         payload["text"].GetStringValue(),
				SourceOffset: int(payload["offset"].GetIntegerValue()),
				Page:         int(payload["page"].GetIntegerValue()),
			},
			Vector: p.GetVectors().GetVector().GetData(),
			Score:  float64(p.GetScore()),
		})
	}
	return vectorstore.Select(pool, opts), nil
}

func (s *Storage) Exists(ctx context.Context) (bool, error) {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return false, domain.E(domain.ErrStorage, "qdrant exists", err)
	}
	return exists, nil
}

func (s *Storage) Close() error { return s.client.Close() }

var pointNamespace = uuid.MustParse("6ba7b811-9dad-11d1-80b4-00c04fd430c8")

// Offsets are unique within the document, so they make stable point ids.
func pointID(offset int) *qd.PointId {
	id := uuid.NewSHA1(pointNamespace, []byte(strconv.Itoa(offset)))
	return &qd.PointId{PointIdOptions: &qd.PointId_Uuid{Uuid: id.String()}}
}
