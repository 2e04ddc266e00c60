// ABOUTME: Retrieval orchestrator that embeds a query and ranks vector-index matches
// ABOUTME: Produces RetrievedHit values consumed by the evidence gate and prompt construction
package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/harper/policy-rag/internal/llm"
	"github.com/harper/policy-rag/internal/models"
)

// ErrEmptyQuery is returned when a query has no content
var ErrEmptyQuery = errors.New("query cannot be empty")

// VectorIndex is the narrow boundary to the similarity index
type VectorIndex interface {
	Upsert(ctx context.Context, ids, texts []string, embeddings [][]float64, metadatas []models.ChunkMetadata) error
	Query(ctx context.Context, embedding []float64, topK int, filter models.Filter) ([]models.QueryResult, error)
	Delete(ctx context.Context, filter models.Filter) (int64, error)
	Count(ctx context.Context) (int, error)
	Get(ctx context.Context, filter models.Filter, limit int) ([]models.StoredChunk, error)
}

// Retriever embeds queries and turns index matches into ranked hits
type Retriever struct {
	embedder llm.Embedder
	index    VectorIndex
}

// NewRetriever creates a new Retriever
func NewRetriever(embedder llm.Embedder, index VectorIndex) *Retriever {
	return &Retriever{
		embedder: embedder,
		index:    index,
	}
}

// Retrieve returns up to topK hits ranked 1..n by ascending distance
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int, filter models.Filter) ([]models.RetrievedHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if topK < 1 {
		return nil, fmt.Errorf("top_k must be >= 1, got %d", topK)
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for 1 query", len(vectors))
	}

	results, err := r.index.Query(ctx, vectors[0], topK, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}

	return rankResults(results), nil
}

// rankResults orders results by ascending distance, missing distances last
func rankResults(results []models.QueryResult) []models.RetrievedHit {
	sorted := make([]models.QueryResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		di, dj := sorted[i].Distance, sorted[j].Distance
		if math.IsNaN(dj) {
			return !math.IsNaN(di)
		}
		if math.IsNaN(di) {
			return false
		}
		return di < dj
	})

	hits := make([]models.RetrievedHit, len(sorted))
	for i, res := range sorted {
		hits[i] = models.RetrievedHit{
			Rank:     i + 1,
			ChunkID:  res.ID,
			Distance: res.Distance,
			Text:     res.Text,
			Metadata: res.Metadata,
		}
	}
	return hits
}

// MakeSnippet renders text as a single line of at most n runes
func MakeSnippet(text string, n int) string {
	s := collapseWhitespace(text)
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimRight(string(runes[:n]), " ") + "…"
}
