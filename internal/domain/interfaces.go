package domain

import "context"

// Loader extracts ordered page text from a document on disk.
type Loader interface {
	Load(ctx context.Context, path string) ([]Page, error)
}

// Chunker splits extracted pages into overlapping segments.
type Chunker interface {
	Chunk(pages []Page) ([]Segment, error)
}

// Embedder converts free text into a numeric vector representation.
// Documents and queries are embedded separately because some providers
// tune the vector for its role in retrieval.
type Embedder interface {
	Name() string
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore persists segment vectors for exactly one document and
// supports similarity search over them.
type VectorStore interface {
	// Reset destroys the stored index, if any.
	Reset(ctx context.Context) error
	// Upsert creates the index if needed and stores the pairs.
	Upsert(ctx context.Context, segments []Segment, vectors [][]float32) error
	Search(ctx context.Context, vector []float32, opts SearchOptions) ([]SearchResult, error)
	// Exists reports whether an index has been created since the last Reset.
	Exists(ctx context.Context) (bool, error)
	Close() error
}

// Generator turns a prompt into answer text.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// WebSearcher returns external search results for a query.
type WebSearcher interface {
	Search(ctx context.Context, query string) ([]WebResult, error)
}
