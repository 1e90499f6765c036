package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"pdfqa/internal/chunker"
	"pdfqa/internal/config"
	"pdfqa/internal/domain"
	"pdfqa/internal/index"
	"pdfqa/internal/ingest"
	"pdfqa/internal/loader"
	"pdfqa/internal/logging"
	"pdfqa/internal/metrics"
	"pdfqa/internal/orchestrator"
	"pdfqa/internal/provider/gemini"
	"pdfqa/internal/provider/openai"
	"pdfqa/internal/service"
	"pdfqa/internal/session"
	"pdfqa/internal/vectorstore/badger"
	"pdfqa/internal/vectorstore/memory"
	"pdfqa/internal/vectorstore/qdrant"
	"pdfqa/internal/websearch/tavily"
)

// app holds the wired components for one process.
type app struct {
	cfg     *config.AppConfig
	log     zerolog.Logger
	metrics *metrics.Metrics
	service *service.Service
	session *session.Session
	closers []io.Closer
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
}

func loadConfig(path string) (*config.AppConfig, error) {
	if path == "" {
		cfg, _, err := config.LoadDefault()
		return cfg, err
	}
	return config.Load(path)
}

// buildApp assembles the pipeline from cfg. modeFlag overrides the
// configured mode; asking for pdf+web without a search key is fatal.
func buildApp(ctx context.Context, cfg *config.AppConfig, modeFlag string) (*app, error) {
	logger, logCloser := logging.New(cfg.Log)
	a := &app{cfg: cfg, log: logger, metrics: metrics.New(), closers: []io.Closer{logCloser}}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	modeName := cfg.Session.Mode
	if modeFlag != "" {
		modeName = modeFlag
	}
	mode, err := domain.ParseMode(modeName)
	if err != nil {
		return nil, domain.E(domain.ErrConfiguration, "mode", err)
	}

	emb, err := buildEmbedder(ctx, cfg.Embedder)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	gen, err := buildGenerator(ctx, cfg.Generator)
	if err != nil {
		return nil, fmt.Errorf("generator: %w", err)
	}
	store, err := buildStore(cfg.VectorStore, logging.Component(logger, "vectorstore"))
	if err != nil {
		return nil, fmt.Errorf("vector store: %w", err)
	}
	a.closers = append(a.closers, store)

	ix, err := index.New(ctx, store, emb, index.Options{
		K:        cfg.VectorStore.K,
		FetchK:   cfg.VectorStore.FetchK,
		Strategy: domain.SearchStrategy(cfg.VectorStore.SearchStrategy),
		Lambda:   cfg.VectorStore.Lambda,
	}, logging.Component(logger, "index"))
	if err != nil {
		return nil, err
	}

	opts := []orchestrator.Option{
		orchestrator.WithTimeout(cfg.QueryTimeout()),
		orchestrator.WithRecorder(a.metrics),
	}
	web, err := tavily.New(tavily.Config{
		APIKey:      os.Getenv(cfg.WebSearch.APIKeyEnv),
		BaseURL:     cfg.WebSearch.BaseURL,
		MaxResults:  cfg.WebSearch.ResultCount,
		SearchDepth: cfg.WebSearch.SearchDepth,
		Timeout:     time.Duration(cfg.WebSearch.TimeoutSecs) * time.Second,
	})
	switch {
	case err == nil:
		opts = append(opts, orchestrator.WithWebSearcher(web))
	case mode == domain.ModePDFAndWeb:
		return nil, err
	default:
		logger.Warn().Err(err).Msg("web search disabled")
	}

	sess, err := session.New(mode, web != nil)
	if err != nil {
		return nil, err
	}

	orch := orchestrator.New(ix, gen, logging.Component(logger, "orchestrator"), opts...)
	ing := ingest.New(loader.New(), chunker.NewRecursive(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap), logging.Component(logger, "ingest"))
	a.service = service.New(ing, ix, orch, a.metrics, logging.Component(logger, "service"))
	a.session = sess

	logger.Info().
		Str("embedder", emb.Name()).
		Str("generator", gen.Name()).
		Str("store", cfg.VectorStore.Type).
		Str("mode", mode.String()).
		Bool("index_ready", ix.Ready()).
		Msg("started")
	ok = true
	return a, nil
}

func buildEmbedder(ctx context.Context, cfg config.EmbedderConfig) (domain.Embedder, error) {
	switch cfg.Type {
	case "gemini":
		client, err := gemini.New(ctx, os.Getenv(cfg.Gemini.APIKeyEnv))
		if err != nil {
			return nil, err
		}
		return client.Embedder(cfg.Model, cfg.BatchSize), nil
	case "openai":
		client, err := openai.New(openAIConfig(cfg.OpenAI))
		if err != nil {
			return nil, err
		}
		return client.Embedder(cfg.Model, cfg.BatchSize), nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
}

func buildGenerator(ctx context.Context, cfg config.GeneratorConfig) (domain.Generator, error) {
	switch cfg.Type {
	case "gemini":
		client, err := gemini.New(ctx, os.Getenv(cfg.Gemini.APIKeyEnv))
		if err != nil {
			return nil, err
		}
		return client.Generator(cfg.Model, cfg.Temperature), nil
	case "openai":
		client, err := openai.New(openAIConfig(cfg.OpenAI))
		if err != nil {
			return nil, err
		}
		return client.Generator(cfg.Model, cfg.Temperature), nil
	default:
		return nil, fmt.Errorf("unknown generator: %s", cfg.Type)
	}
}

func openAIConfig(c *config.OpenAIConfig) openai.Config {
	return openai.Config{
		BaseURL: c.BaseURL,
		APIKey:  os.Getenv(c.APIKeyEnv),
		Timeout: time.Duration(c.TimeoutSecs) * time.Second,
	}
}

func buildStore(cfg config.VectorStoreConfig, log zerolog.Logger) (domain.VectorStore, error) {
	switch cfg.Type {
	case "badger":
		return badger.Open(cfg.Badger.Path, log)
	case "qdrant":
		return qdrant.NewStorage(qdrant.Config{
			URL:        cfg.Qdrant.URL,
			APIKey:     os.Getenv(cfg.Qdrant.APIKeyEnv),
			Collection: cfg.Qdrant.Collection,
			Dimension:  cfg.Qdrant.Dimension,
		})
	case "memory":
		return memory.NewStorage(), nil
	default:
		return nil, errors.New("unknown vector store: " + cfg.Type)
	}
}
