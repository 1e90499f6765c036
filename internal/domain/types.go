package domain

import (
	"fmt"
	"strings"
)

// Page is the text of one page as returned by the document loader.
type Page struct {
	Number int
	Text   string
}

// Segment is a contiguous span of extracted document text.
type Segment struct {
	Text string
	// SourceOffset is the character offset of Text in the whole document.
	SourceOffset int
	Page         int
}

// SearchResult represents a matching segment with a relevance score.
type SearchResult struct {
	Segment Segment
	Score   float64
}

// SearchStrategy selects how the vector store picks results from its candidates.
type SearchStrategy string

const (
	// StrategyMMR selects diverse yet relevant results (maximal marginal relevance).
	StrategyMMR SearchStrategy = "mmr"
	// StrategySimilarity returns the plain top-K by similarity.
	StrategySimilarity SearchStrategy = "similarity"
)

// SearchOptions configures a single vector search.
type SearchOptions struct {
	K        int
	FetchK   int
	Strategy SearchStrategy
	// Lambda weighs relevance against diversity for StrategyMMR (1 = relevance only).
	Lambda float64
}

// WebResult is a single external search snippet.
type WebResult struct {
	Title   string
	URL     string
	Content string
	Score   float64
}

// Mode selects the execution graph used to answer a question.
type Mode int

const (
	ModePDFOnly Mode = iota
	ModePDFAndWeb
)

func (m Mode) String() string {
	switch m {
	case ModePDFOnly:
		return "pdf"
	case ModePDFAndWeb:
		return "pdf+web"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Label is the human readable name shown in the shell.
func (m Mode) Label() string {
	if m == ModePDFAndWeb {
		return "PDF + Web"
	}
	return "PDF Only"
}

// ParseMode accepts the config and flag spellings of a mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pdf", "pdf-only", "pdf_only":
		return ModePDFOnly, nil
	case "pdf+web", "web", "pdf-and-web", "pdf_and_web":
		return ModePDFAndWeb, nil
	default:
		return ModePDFOnly, fmt.Errorf("unknown mode %q (want pdf or pdf+web)", s)
	}
}

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is one entry of the session history.
type ConversationTurn struct {
	Role    Role
	Content string
}
