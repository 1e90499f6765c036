package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"

	"pdfqa/internal/domain"
)

const (
	// DefaultChunkSize is the target segment length in characters.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is the number of characters shared by consecutive segments.
	DefaultChunkOverlap = 200
)

// Recursive splits text on paragraph, line, word and character boundaries
// until each piece fits the chunk size, and tags every segment with its
// character offset in the whole document.
type Recursive struct {
	chunkSize int
	overlap   int
	splitter  textsplitter.RecursiveCharacter
}

// NewRecursive creates a recursive character chunker.
func NewRecursive(chunkSize, overlap int) *Recursive {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	return &Recursive{
		chunkSize: chunkSize,
		overlap:   overlap,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(overlap),
		),
	}
}

// Chunk splits each page and concatenates the results in page order.
func (c *Recursive) Chunk(pages []domain.Page) ([]domain.Segment, error) {
	var segments []domain.Segment
	docOffset := 0
	for _, page := range pages {
		chunks, err := c.splitter.SplitText(page.Text)
		if err != nil {
			return nil, fmt.Errorf("split page %d: %w", page.Number, err)
		}
		index, prev := -1, ""
		for _, text := range chunks {
			if strings.TrimSpace(text) == "" {
				continue
			}
			index = c.locate(page.Text, text, index, prev)
			prev = text
			segments = append(segments, domain.Segment{
				Text:         text,
				SourceOffset: docOffset + utf8.RuneCountInString(page.Text[:index]),
				Page:         page.Number,
			})
		}
		docOffset += utf8.RuneCountInString(page.Text)
	}
	return segments, nil
}

// locate finds the byte index of chunk in text. The search starts where the
// chunk can begin at the earliest: the previous chunk's start plus its
// length minus the overlap.
func (c *Recursive) locate(text, chunk string, prevIndex int, prevChunk string) int {
	from := 0
	if prevIndex >= 0 {
		keep := utf8.RuneCountInString(prevChunk) - c.overlap
		from = prevIndex + prefixBytes(prevChunk, keep)
	}
	if from > len(text) {
		from = len(text)
	}
	if i := strings.Index(text[from:], chunk); i >= 0 {
		return from + i
	}
	if i := strings.Index(text, chunk); i >= 0 {
		return i
	}
	// The splitter trims whitespace, so a chunk can fail to match verbatim.
	return max(prevIndex, 0)
}

// prefixBytes returns the byte length of the first n runes of s.
func prefixBytes(s string, n int) int {
	if n <= 0 {
		return 0
	}
	for i := range s {
		if n == 0 {
			return i
		}
		n--
	}
	return len(s)
}
