// Package vectorstore holds the ranking helpers shared by the vector store
// backends: cosine similarity, top-N candidate selection and maximal
// marginal relevance.
package vectorstore

import (
	"math"
	"sort"

	"pdfqa/internal/domain"
)

// Candidate is a stored segment together with its vector and its
// similarity to the query.
type Candidate struct {
	Segment domain.Segment
	Vector  []float32
	Score   float64
}

// Cosine returns the cosine similarity of a and b, or 0 if either is a zero vector.
func Cosine(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// TopN sorts candidates by descending score and keeps the first n.
// Ties keep document order.
func TopN(cands []Candidate, n int) []Candidate {
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].Score > cands[j].Score })
	if n >= 0 && n < len(cands) {
		cands = cands[:n]
	}
	return cands
}

// Select applies opts to a candidate pool already ranked by similarity
// and returns at most opts.K results in final order.
func Select(pool []Candidate, opts domain.SearchOptions) []domain.SearchResult {
	if opts.Strategy == domain.StrategySimilarity {
		pool = TopN(pool, opts.K)
		out := make([]domain.SearchResult, len(pool))
		for i, c := range pool {
			out[i] = domain.SearchResult{Segment: c.Segment, Score: c.Score}
		}
		return out
	}
	return SelectMMR(pool, opts.K, opts.Lambda)
}

// SelectMMR greedily picks k candidates maximising
// lambda*sim(query) - (1-lambda)*max sim(selected). The returned order is
// the selection order and Score is the MMR score at selection time.
func SelectMMR(pool []Candidate, k int, lambda float64) []domain.SearchResult {
	if k <= 0 || len(pool) == 0 {
		return nil
	}
	k = min(k, len(pool))
	remaining := make([]Candidate, len(pool))
	copy(remaining, pool)

	selected := make([]Candidate, 0, k)
	out := make([]domain.SearchResult, 0, k)
	for len(selected) < k {
		best, bestScore := -1, math.Inf(-1)
		for i, c := range remaining {
			redundancy := 0.0
			for _, s := range selected {
				if sim := Cosine(c.Vector, s.Vector); sim > redundancy {
					redundancy = sim
				}
			}
			score := lambda*c.Score - (1-lambda)*redundancy
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		selected = append(selected, remaining[best])
		out = append(out, domain.SearchResult{Segment: remaining[best].Segment, Score: bestScore})
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return out
}
