package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// GeminiConfig holds configuration for the Google Gemini API.
type GeminiConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
}

// OpenAIConfig holds configuration for an OpenAI-compatible API (OpenAI, Ollama, vLLM...).
type OpenAIConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbedderConfig selects and configures the embedding service.
type EmbedderConfig struct {
	Type      string        `yaml:"type"`
	Model     string        `yaml:"model"`
	BatchSize int           `yaml:"batch_size"`
	Gemini    *GeminiConfig `yaml:"gemini,omitempty"`
	OpenAI    *OpenAIConfig `yaml:"openai,omitempty"`
}

// GeneratorConfig selects and configures the text-generation service.
type GeneratorConfig struct {
	Type        string        `yaml:"type"`
	Model       string        `yaml:"model"`
	Temperature float32       `yaml:"temperature"`
	Gemini      *GeminiConfig `yaml:"gemini,omitempty"`
	OpenAI      *OpenAIConfig `yaml:"openai,omitempty"`
}

// ChunkerConfig configures how documents are split into segments.
type ChunkerConfig struct {
	Type         string `yaml:"type"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
}

// VectorStoreConfig selects the vector store and the retrieval options.
type VectorStoreConfig struct {
	Type           string        `yaml:"type"`
	K              int           `yaml:"k"`
	FetchK         int           `yaml:"fetch_k"`
	SearchStrategy string        `yaml:"search_strategy"`
	Lambda         float64       `yaml:"lambda"`
	Badger         *BadgerConfig `yaml:"badger,omitempty"`
	Qdrant         *QdrantConfig `yaml:"qdrant,omitempty"`
}

// BadgerConfig locates the on-disk index.
type BadgerConfig struct {
	Path string `yaml:"path"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL        string `yaml:"url"`
	APIKeyEnv  string `yaml:"api_key_env"`
	Collection string `yaml:"collection"`
	// Dimension is only used to create an empty collection; otherwise the
	// dimension of the first vector wins.
	Dimension int `yaml:"dimension"`
}

// WebSearchConfig configures the web search service.
type WebSearchConfig struct {
	Type        string `yaml:"type"`
	APIKeyEnv   string `yaml:"api_key_env"`
	BaseURL     string `yaml:"base_url"`
	ResultCount int    `yaml:"result_count"`
	SearchDepth string `yaml:"search_depth"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// OrchestratorConfig configures the answer pipelines.
type OrchestratorConfig struct {
	// QueryTimeoutSecs bounds a whole query, join included. 0 disables it.
	QueryTimeoutSecs int `yaml:"query_timeout_secs"`
}

// SessionConfig holds the shell defaults.
type SessionConfig struct {
	Mode string `yaml:"mode"`
}

// LogConfig configures the application log.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder     EmbedderConfig     `yaml:"embedder"`
	Generator    GeneratorConfig    `yaml:"generator"`
	Chunker      ChunkerConfig      `yaml:"chunker"`
	VectorStore  VectorStoreConfig  `yaml:"vector_store"`
	WebSearch    WebSearchConfig    `yaml:"web_search"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Session      SessionConfig      `yaml:"session"`
	Log          LogConfig          `yaml:"log"`
	Metrics      MetricsConfig      `yaml:"metrics"`
}

// QueryTimeout returns the configured join timeout.
func (c *AppConfig) QueryTimeout() time.Duration {
	return time.Duration(c.Orchestrator.QueryTimeoutSecs) * time.Second
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML config data and fills in defaults.
func Parse(data []byte) (*AppConfig, error) {
	cfg := baseConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyConfigDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/pdfqa/config.yaml.
// If neither exists, it writes defaults to ~/.config/pdfqa/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects settings no component can run with.
func (c *AppConfig) Validate() error {
	switch c.Embedder.Type {
	case "gemini", "openai":
	default:
		return fmt.Errorf("unknown embedder: %s", c.Embedder.Type)
	}
	switch c.Generator.Type {
	case "gemini", "openai":
	default:
		return fmt.Errorf("unknown generator: %s", c.Generator.Type)
	}
	if c.Chunker.Type != "recursive" {
		return fmt.Errorf("unknown chunker: %s", c.Chunker.Type)
	}
	if c.Chunker.ChunkOverlap < 0 || c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		return fmt.Errorf("chunk_overlap (%d) must be smaller than chunk_size (%d)", c.Chunker.ChunkOverlap, c.Chunker.ChunkSize)
	}
	switch c.VectorStore.Type {
	case "badger", "memory":
	case "qdrant":
		if c.VectorStore.Qdrant == nil || c.VectorStore.Qdrant.URL == "" {
			return errors.New("qdrant config missing url")
		}
	default:
		return fmt.Errorf("unknown vector store: %s", c.VectorStore.Type)
	}
	if c.VectorStore.K <= 0 {
		return fmt.Errorf("vector_store.k must be positive, got %d", c.VectorStore.K)
	}
	if c.VectorStore.FetchK < c.VectorStore.K {
		return fmt.Errorf("vector_store.fetch_k (%d) must be at least k (%d)", c.VectorStore.FetchK, c.VectorStore.K)
	}
	if c.VectorStore.Lambda < 0 || c.VectorStore.Lambda > 1 {
		return fmt.Errorf("vector_store.lambda must be within [0, 1], got %g", c.VectorStore.Lambda)
	}
	switch c.VectorStore.SearchStrategy {
	case "mmr", "similarity":
	default:
		return fmt.Errorf("unknown search strategy: %s", c.VectorStore.SearchStrategy)
	}
	if c.WebSearch.Type != "tavily" {
		return fmt.Errorf("unknown web search: %s", c.WebSearch.Type)
	}
	if c.Orchestrator.QueryTimeoutSecs < 0 {
		return errors.New("orchestrator.query_timeout_secs must not be negative")
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "pdfqa", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := baseConfig()
	applyConfigDefaults(cfg)
	return cfg
}

// baseConfig presets the fields whose zero value is a valid setting, so
// only a key missing from the YAML falls back to the default.
func baseConfig() *AppConfig {
	return &AppConfig{
		Chunker:     ChunkerConfig{ChunkOverlap: 200},
		VectorStore: VectorStoreConfig{Lambda: 0.5},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "gemini"
	}
	if cfg.Embedder.BatchSize == 0 {
		cfg.Embedder.BatchSize = 100
	}
	switch cfg.Embedder.Type {
	case "gemini":
		if cfg.Embedder.Model == "" {
			cfg.Embedder.Model = "gemini-embedding-001"
		}
		cfg.Embedder.Gemini = geminiDefaults(cfg.Embedder.Gemini)
	case "openai":
		if cfg.Embedder.Model == "" {
			cfg.Embedder.Model = "text-embedding-3-small"
		}
		cfg.Embedder.OpenAI = openAIDefaults(cfg.Embedder.OpenAI)
	}

	if cfg.Generator.Type == "" {
		cfg.Generator.Type = "gemini"
	}
	switch cfg.Generator.Type {
	case "gemini":
		if cfg.Generator.Model == "" {
			cfg.Generator.Model = "gemini-2.5-flash"
		}
		cfg.Generator.Gemini = geminiDefaults(cfg.Generator.Gemini)
	case "openai":
		if cfg.Generator.Model == "" {
			cfg.Generator.Model = "gpt-4o-mini"
		}
		cfg.Generator.OpenAI = openAIDefaults(cfg.Generator.OpenAI)
	}

	if cfg.Chunker.Type == "" {
		cfg.Chunker.Type = "recursive"
	}
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 1000
	}

	vs := &cfg.VectorStore
	if vs.Type == "" {
		vs.Type = "badger"
	}
	if vs.K == 0 {
		vs.K = 5
	}
	if vs.FetchK == 0 {
		vs.FetchK = 20
	}
	if vs.SearchStrategy == "" {
		vs.SearchStrategy = "mmr"
	}
	switch vs.Type {
	case "badger":
		if vs.Badger == nil {
			vs.Badger = &BadgerConfig{}
		}
		if vs.Badger.Path == "" {
			vs.Badger.Path = "./vector_db"
		}
	case "qdrant":
		if vs.Qdrant == nil {
			vs.Qdrant = &QdrantConfig{}
		}
		if vs.Qdrant.URL == "" {
			vs.Qdrant.URL = "http://localhost:6334"
		}
		if vs.Qdrant.APIKeyEnv == "" {
			vs.Qdrant.APIKeyEnv = "QDRANT_API_KEY"
		}
		if vs.Qdrant.Collection == "" {
			vs.Qdrant.Collection = "pdfqa"
		}
		if vs.Qdrant.Dimension == 0 {
			vs.Qdrant.Dimension = 3072
		}
	}

	ws := &cfg.WebSearch
	if ws.Type == "" {
		ws.Type = "tavily"
	}
	if ws.APIKeyEnv == "" {
		ws.APIKeyEnv = "TAVILY_API_KEY"
	}
	if ws.BaseURL == "" {
		ws.BaseURL = "https://api.tavily.com"
	}
	if ws.ResultCount == 0 {
		ws.ResultCount = 3
	}
	if ws.SearchDepth == "" {
		ws.SearchDepth = "basic"
	}
	if ws.TimeoutSecs == 0 {
		ws.TimeoutSecs = 30
	}

	if cfg.Session.Mode == "" {
		cfg.Session.Mode = "pdf"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.File == "" {
		cfg.Log.File = "pdfqa.log"
	}
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 10
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 3
	}
}

func geminiDefaults(g *GeminiConfig) *GeminiConfig {
	if g == nil {
		g = &GeminiConfig{}
	}
	if g.APIKeyEnv == "" {
		g.APIKeyEnv = "GOOGLE_API_KEY"
	}
	return g
}

func openAIDefaults(o *OpenAIConfig) *OpenAIConfig {
	if o == nil {
		o = &OpenAIConfig{}
	}
	if o.BaseURL == "" {
		o.BaseURL = "https://api.openai.com/v1"
	}
	if o.APIKeyEnv == "" {
		o.APIKeyEnv = "OPENAI_API_KEY"
	}
	if o.TimeoutSecs == 0 {
		o.TimeoutSecs = 60
	}
	return o
}
