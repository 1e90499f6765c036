// Package openai provides embedding and text generation against any
// OpenAI-compatible API (OpenAI, Ollama, vLLM, LM Studio).
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"

	"pdfqa/internal/domain"
)

// DefaultBaseURL is the public OpenAI endpoint.
const DefaultBaseURL = "https://api.openai.com/v1"

// Config configures the OpenAI-compatible client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client holds an API connection shared by the embedder and generator.
type Client struct {
	client openai.Client
}

// New creates a client. The key is only required for the public endpoint;
// local servers usually accept any key.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.APIKey == "" {
		if cfg.BaseURL == DefaultBaseURL {
			return nil, domain.E(domain.ErrConfiguration, "openai", errors.New("API key is not set"))
		}
		cfg.APIKey = "unused"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(0),
	)
	return &Client{client: client}, nil
}

// Embedder implements domain.Embedder.
type Embedder struct {
	client    *openai.Client
	model     string
	batchSize int
}

// Embedder returns an embedder for model.
func (c *Client) Embedder(model string, batchSize int) *Embedder {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Embedder{client: &c.client, model: model, batchSize: batchSize}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "openai/" + e.model }

// EmbedDocuments embeds segment texts in batches. Any failed batch fails the call.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		vecs, err := e.embed(ctx, texts[start:end])
		if err != nil {
			return nil, domain.E(domain.ErrEmbedding, "embed documents", fmt.Errorf("batch %d-%d: %w", start, end-1, err))
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// EmbedQuery embeds a single question.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.embed(ctx, []string{text})
	if err != nil {
		return nil, domain.E(domain.ErrEmbedding, "embed query", err)
	}
	return vecs[0], nil
}

func (e *Embedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}
	vecs := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(texts) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vecs[d.Index] = toFloat32(d.Embedding)
	}
	for i, v := range vecs {
		if len(v) == 0 {
			return nil, fmt.Errorf("empty embedding at position %d", i)
		}
	}
	return vecs, nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

// Generator implements domain.Generator with single chat completions.
type Generator struct {
	client      *openai.Client
	model       string
	temperature float32
}

// Generator returns a generator for model at the given temperature.
func (c *Client) Generator(model string, temperature float32) *Generator {
	return &Generator{client: &c.client, model: model, temperature: temperature}
}

// Name returns the identifier of this generator implementation.
func (g *Generator) Name() string { return "openai/" + g.model }

// Generate sends prompt as a single user message and returns the reply text.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(g.model),
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Temperature: openai.Float(float64(g.temperature)),
	})
	if err != nil {
		return "", domain.E(domain.ErrGeneration, "generate", err)
	}
	if len(resp.Choices) == 0 {
		return "", domain.E(domain.ErrGeneration, "generate", errors.New("no response choices returned"))
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
