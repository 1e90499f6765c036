package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every adapter failure is classified as one of these so the
// shell can report it and tests can match it with errors.Is.
var (
	ErrIngestion     = errors.New("document could not be ingested")
	ErrEmbedding     = errors.New("embedding service error")
	ErrStorage       = errors.New("vector store error")
	ErrNoIndex       = errors.New("no document has been indexed")
	ErrRetrieval     = errors.New("retrieval error")
	ErrSearchService = errors.New("web search error")
	ErrGeneration    = errors.New("generation service error")
	ErrConfiguration = errors.New("configuration error")
)

// Error records the operation that failed, its kind and the underlying cause.
type Error struct {
	Kind error
	Op   string
	Err  error
}

// E classifies err under kind. A nil err yields a bare kind error.
func E(kind error, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	case e.Op == "":
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// UserMessage renders err as the single message shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrNoIndex) {
		return "Upload a PDF to use PDF-only mode."
	}
	return "Chain error: " + err.Error()
}
