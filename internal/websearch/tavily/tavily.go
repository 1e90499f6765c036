// Package tavily is a minimal client for the Tavily search API.
package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pdfqa/internal/domain"
)

const DefaultBaseURL = "https://api.tavily.com"

// Config configures the Tavily client.
type Config struct {
	APIKey      string
	BaseURL     string
	MaxResults  int
	SearchDepth string
	Timeout     time.Duration
}

// Client implements domain.WebSearcher. One request per query, no retries.
type Client struct {
	baseURL     string
	apiKey      string
	maxResults  int
	searchDepth string
	client      *http.Client
}

// New fails with domain.ErrConfiguration when the API key is missing so the
// web mode can be disabled at startup.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, domain.E(domain.ErrConfiguration, "tavily", errors.New("TAVILY_API_KEY is not set"))
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 3
	}
	if cfg.SearchDepth == "" {
		cfg.SearchDepth = "basic"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		maxResults:  cfg.MaxResults,
		searchDepth: cfg.SearchDepth,
		client:      &http.Client{Timeout: t},
	}, nil
}

type searchRequest struct {
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
}

type searchResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Search returns at most MaxResults results in the order Tavily ranks them.
func (c *Client) Search(ctx context.Context, query string) ([]domain.WebResult, error) {
	data, err := json.Marshal(searchRequest{Query: query, MaxResults: c.maxResults, SearchDepth: c.searchDepth})
	if err != nil {
		return nil, domain.E(domain.ErrSearchService, "tavily search", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(data))
	if err != nil {
		return nil, domain.E(domain.ErrSearchService, "tavily search", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, domain.E(domain.ErrSearchService, "tavily search", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.E(domain.ErrSearchService, "tavily search", err)
	}
	if resp.StatusCode >= 300 {
		return nil, domain.E(domain.ErrSearchService, "tavily search", fmt.Errorf("%s: %s", resp.Status, bytes.TrimSpace(payload)))
	}

	var out searchResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, domain.E(domain.ErrSearchService, "tavily search", fmt.Errorf("decode response: %w", err))
	}
	results := make([]domain.WebResult, 0, min(len(out.Results), c.maxResults))
	for _, r := range out.Results {
		if len(results) == c.maxResults {
			break
		}
		results = append(results, domain.WebResult{Title: r.Title, URL: r.URL, Content: r.Content, Score: r.Score})
	}
	return results, nil
}
