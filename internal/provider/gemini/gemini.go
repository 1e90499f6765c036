// Package gemini provides embedding and text generation backed by the
// Google Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"pdfqa/internal/domain"
)

// Gemini accepts at most this many contents per embedding request.
const maxBatchSize = 100

// Task types understood by the embedding models.
const (
	taskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	taskRetrievalQuery    = "RETRIEVAL_QUERY"
)

// modelsAPI is the subset of genai.Models used here.
type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Client holds a Gemini API connection shared by the embedder and generator.
type Client struct {
	models modelsAPI
}

// New connects to the Gemini API. A missing key is a configuration error.
func New(ctx context.Context, apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, domain.E(domain.ErrConfiguration, "gemini", errors.New("API key is not set"))
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, domain.E(domain.ErrConfiguration, "gemini", fmt.Errorf("failed to create genai client: %w", err))
	}
	return &Client{models: client.Models}, nil
}

// Embedder implements domain.Embedder.
type Embedder struct {
	models    modelsAPI
	model     string
	batchSize int
}

// Embedder returns an embedder for model.
func (c *Client) Embedder(model string, batchSize int) *Embedder {
	if batchSize <= 0 || batchSize > maxBatchSize {
		batchSize = maxBatchSize
	}
	return &Embedder{models: c.models, model: model, batchSize: batchSize}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "gemini/" + e.model }

// EmbedDocuments embeds segment texts in batches. Any failed batch fails the call.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		vecs, err := e.embed(ctx, texts[start:end], taskRetrievalDocument)
		if err != nil {
			return nil, domain.E(domain.ErrEmbedding, "embed documents", fmt.Errorf("batch %d-%d: %w", start, end-1, err))
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// EmbedQuery embeds a single question.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.embed(ctx, []string{text}, taskRetrievalQuery)
	if err != nil {
		return nil, domain.E(domain.ErrEmbedding, "embed query", err)
	}
	return vecs[0], nil
}

func (e *Embedder) embed(ctx context.Context, texts []string, task string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}
	resp, err := e.models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{TaskType: task})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}
	vecs := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("empty embedding at position %d", i)
		}
		vecs[i] = emb.Values
	}
	return vecs, nil
}

// Generator implements domain.Generator with single-shot GenerateContent calls.
type Generator struct {
	models      modelsAPI
	model       string
	temperature float32
}

// Generator returns a generator for model at the given temperature.
func (c *Client) Generator(model string, temperature float32) *Generator {
	return &Generator{models: c.models, model: model, temperature: temperature}
}

// Name returns the identifier of this generator implementation.
func (g *Generator) Name() string { return "gemini/" + g.model }

// Generate sends prompt and returns the plain response text.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr(g.temperature),
	})
	if err != nil {
		return "", domain.E(domain.ErrGeneration, "generate", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		reason := "no candidates returned"
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			reason = "prompt blocked: " + string(resp.PromptFeedback.BlockReason)
		}
		return "", domain.E(domain.ErrGeneration, "generate", errors.New(reason))
	}
	return strings.TrimSpace(resp.Text()), nil
}
