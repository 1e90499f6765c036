// Package badger stores the segment index in an embedded BadgerDB directory.
// Search is exhaustive over the stored vectors, which is fine for the one
// document the application indexes at a time.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"pdfqa/internal/domain"
	"pdfqa/internal/vectorstore"
)

var (
	segmentPrefix = []byte("seg/")
	createdKey    = []byte("meta/created")
)

type record struct {
	Text   string    `json:"text"`
	Offset int       `json:"offset"`
	Page   int       `json:"page"`
	Vector []float32 `json:"vector"`
}

// Store implements domain.VectorStore on top of BadgerDB.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the store at path.
func Open(path string, log zerolog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(badgerLogger{log: log})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, domain.E(domain.ErrStorage, "open badger", fmt.Errorf("%s: %w", path, err))
	}
	return &Store{db: db}, nil
}

// Reset drops every key, destroying the index.
func (s *Store) Reset(_ context.Context) error {
	if err := s.db.DropAll(); err != nil {
		return domain.E(domain.ErrStorage, "badger reset", err)
	}
	return nil
}

// Upsert writes the pairs and marks the index as created.
func (s *Store) Upsert(_ context.Context, segments []domain.Segment, vectors [][]float32) error {
	if len(segments) != len(vectors) {
		return domain.E(domain.ErrStorage, "badger upsert", errors.New("segments and vectors length mismatch"))
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for i, seg := range segments {
		val, err := json.Marshal(record{Text: seg.Text, Offset: seg.SourceOffset, Page: seg.Page, Vector: vectors[i]})
		if err != nil {
			return domain.E(domain.ErrStorage, "badger upsert", err)
		}
		if err := wb.Set(segmentKey(seg.SourceOffset), val); err != nil {
			return domain.E(domain.ErrStorage, "badger upsert", err)
		}
	}
	if err := wb.Set(createdKey, []byte{1}); err != nil {
		return domain.E(domain.ErrStorage, "badger upsert", err)
	}
	if err := wb.Flush(); err != nil {
		return domain.E(domain.ErrStorage, "badger upsert", err)
	}
	return nil
}

// Search scores every stored segment, keeps the FetchK best and selects K from them.
func (s *Store) Search(ctx context.Context, vector []float32, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	var pool []vectorstore.Candidate
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, PrefetchSize: 100, Prefix: segmentPrefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec record
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			pool = append(pool, vectorstore.Candidate{
				Segment: domain.Segment{Text: rec.Text, SourceOffset: rec.Offset, Page: rec.Page},
				Vector:  rec.Vector,
				Score:   vectorstore.Cosine(rec.Vector, vector),
			})
		}
		return nil
	})
	if err != nil {
		return nil, domain.E(domain.ErrStorage, "badger search", err)
	}
	pool = vectorstore.TopN(pool, max(opts.FetchK, opts.K))
	return vectorstore.Select(pool, opts), nil
}

// Exists reports whether Upsert has run since the last Reset.
func (s *Store) Exists(_ context.Context) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(createdKey)
		return err
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	default:
		return false, domain.E(domain.ErrStorage, "badger exists", err)
	}
}

func (s *Store) Close() error { return s.db.Close() }

// Offsets are unique within a document and sort in document order.
func segmentKey(offset int) []byte {
	return fmt.Appendf(nil, "%s%012d", segmentPrefix, offset)
}

// badgerLogger routes badger's internal logging into zerolog.
type badgerLogger struct {
	log zerolog.Logger
}

func (l badgerLogger) Errorf(f string, v ...interface{})   { l.log.Error().Msgf(f, v...) }
func (l badgerLogger) Warningf(f string, v ...interface{}) { l.log.Warn().Msgf(f, v...) }
func (l badgerLogger) Infof(f string, v ...interface{})    { l.log.Debug().Msgf(f, v...) }
func (l badgerLogger) Debugf(f string, v ...interface{})   { l.log.Trace().Msgf(f, v...) }
