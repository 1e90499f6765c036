package orchestrator

import (
	"fmt"
	"strings"

	"pdfqa/internal/domain"
)

const pdfOnlyTemplate = `You are a helpful assistant. Use only the provided context to answer the question.
If the answer is not in the context, say you don't know.

Context:
%s

Question: %s
`

const pdfAndWebTemplate = `You are a helpful assistant. Use the provided context to answer the question.
If the answer is in neither context, say you don't know.

--- PDF CONTEXT ---
%s

--- WEB CONTEXT ---
%s

Question: %s
`

// formatSegments joins segment texts in result order.
func formatSegments(segments []domain.Segment) string {
	parts := make([]string, len(segments))
	for i, s := range segments {
		parts[i] = s.Text
	}
	return strings.Join(parts, "\n\n")
}

func formatWeb(results []domain.WebResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		var b strings.Builder
		if r.Title != "" {
			b.WriteString(r.Title)
			if r.URL != "" {
				fmt.Fprintf(&b, " (%s)", r.URL)
			}
			b.WriteString("\n")
		} else if r.URL != "" {
			b.WriteString(r.URL + "\n")
		}
		b.WriteString(r.Content)
		parts = append(parts, b.String())
	}
	return strings.Join(parts, "\n\n")
}

func pdfOnlyPrompt(context, question string) string {
	return fmt.Sprintf(pdfOnlyTemplate, context, question)
}

func pdfAndWebPrompt(pdfContext, webContext, question string) string {
	return fmt.Sprintf(pdfAndWebTemplate, pdfContext, webContext, question)
}
