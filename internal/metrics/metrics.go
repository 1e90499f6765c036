// Package metrics exposes prometheus counters for queries and reindexing.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pdfqa/internal/domain"
)

// Metrics owns its registry so tests and multiple instances do not collide.
type Metrics struct {
	Registry *prometheus.Registry

	QueriesTotal    *prometheus.CounterVec
	QueryDuration   *prometheus.HistogramVec
	ReindexTotal    *prometheus.CounterVec
	IndexedSegments prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		QueriesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdfqa_queries_total",
				Help: "Questions answered, by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		QueryDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pdfqa_query_duration_seconds",
				Help:    "Time to answer a question",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~1min
			},
			[]string{"mode"},
		),
		ReindexTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdfqa_reindex_total",
				Help: "Document uploads, by outcome",
			},
			[]string{"outcome"},
		),
		IndexedSegments: f.NewGauge(prometheus.GaugeOpts{
			Name: "pdfqa_indexed_segments",
			Help: "Segments in the current index",
		}),
	}
}

// ObserveQuery records one orchestrator run.
func (m *Metrics) ObserveQuery(mode domain.Mode, err error, took time.Duration) {
	m.QueriesTotal.WithLabelValues(mode.String(), Outcome(err)).Inc()
	m.QueryDuration.WithLabelValues(mode.String()).Observe(took.Seconds())
}

// ObserveReindex records one upload; segments is ignored on failure.
func (m *Metrics) ObserveReindex(segments int, err error) {
	m.ReindexTotal.WithLabelValues(Outcome(err)).Inc()
	if err == nil {
		m.IndexedSegments.Set(float64(segments))
	}
}

// Outcome maps an error to a low-cardinality label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNoIndex):
		return "no_index"
	case errors.Is(err, domain.ErrIngestion):
		return "ingestion_error"
	case errors.Is(err, domain.ErrEmbedding):
		return "embedding_error"
	case errors.Is(err, domain.ErrStorage):
		return "storage_error"
	case errors.Is(err, domain.ErrRetrieval):
		return "retrieval_error"
	case errors.Is(err, domain.ErrSearchService):
		return "search_error"
	case errors.Is(err, domain.ErrGeneration):
		return "generation_error"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
