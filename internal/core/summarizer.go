// ABOUTME: Summarizer renders a whole indexed document as a cited policy card
// ABOUTME: Picks one representative chunk per page, prompts the model and verifies citations
package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/harper/policy-rag/internal/llm"
	"github.com/harper/policy-rag/internal/models"
)

// ErrUnknownDocument is returned when a document has no indexed chunks
var ErrUnknownDocument = errors.New("unknown document")

// DefaultSummaryMaxSources bounds the sources sent for a policy card
const DefaultSummaryMaxSources = 16

// SummarizerConfig holds policy card settings
type SummarizerConfig struct {
	MaxSources     int
	SourceMaxChars int
}

// Summarizer builds policy cards from indexed documents
type Summarizer struct {
	index  VectorIndex
	chat   llm.ChatModel
	cfg    SummarizerConfig
	logger *log.Logger
}

// NewSummarizer creates a new Summarizer; a nil logger discards output
func NewSummarizer(index VectorIndex, chat llm.ChatModel, cfg SummarizerConfig, logger *log.Logger) *Summarizer {
	if cfg.MaxSources <= 0 {
		cfg.MaxSources = DefaultSummaryMaxSources
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Summarizer{
		index:  index,
		chat:   chat,
		cfg:    cfg,
		logger: logger,
	}
}

// SummarizeRequest names the document to summarise
type SummarizeRequest struct {
	DocID      string
	MaxSources int
}

// SummaryResult is a policy card plus the sources it was built from.
// Refusal is set only when the model declines.
type SummaryResult struct {
	RunID           string                   `json:"run_id" yaml:"run_id"`
	DocID           string                   `json:"doc_id" yaml:"doc_id"`
	Title           string                   `json:"title" yaml:"title"`
	Category        string                   `json:"category" yaml:"category"`
	Sources         []models.RetrievedHit    `json:"sources" yaml:"sources"`
	Answer          *models.StructuredAnswer `json:"answer,omitempty" yaml:"answer,omitempty"`
	Refusal         *models.Refusal          `json:"refusal,omitempty" yaml:"refusal,omitempty"`
	Citations       []models.CitationCheck   `json:"citations,omitempty" yaml:"citations,omitempty"`
	CitationSummary CitationSummary          `json:"citation_summary" yaml:"citation_summary"`
}

// Summarize builds the policy card of one document
func (s *Summarizer) Summarize(ctx context.Context, req SummarizeRequest) (*SummaryResult, error) {
	docID := strings.TrimSpace(req.DocID)
	if docID == "" {
		return nil, errors.New("doc_id cannot be empty")
	}
	maxSources := req.MaxSources
	if maxSources <= 0 {
		maxSources = s.cfg.MaxSources
	}

	chunks, err := s.index.Get(ctx, models.DocFilter(docID), 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks of %s: %w", docID, err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s has no indexed chunks", ErrUnknownDocument, docID)
	}

	sources := PickRepresentativeSources(chunks, maxSources)
	title, category := docID, ""
	if md := chunks[0].Metadata; md.Title != "" || md.Category != "" {
		if md.Title != "" {
			title = md.Title
		}
		category = md.Category
	}

	result := &SummaryResult{
		RunID:    uuid.New().String(),
		DocID:    docID,
		Title:    title,
		Category: category,
		Sources:  sources,
	}

	messages := PolicyCardMessages(docID, title, category, FormatSources(sources, s.cfg.SourceMaxChars))
	raw, err := s.chat.Chat(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("failed to generate policy card: %w", err)
	}

	gen, err := ParseGeneration(raw, title)
	if err != nil {
		return nil, err
	}
	if gen.Refusal != nil {
		result.Refusal = gen.Refusal
		return result, nil
	}

	if len(gen.Answer.Warnings) == 0 {
		gen.Answer.Warnings = []string{DefaultWarning}
	}
	result.Answer = gen.Answer
	result.Citations = CheckCitations(gen.Answer, sources)
	result.CitationSummary = SummarizeCitations(result.Citations)

	s.logger.Debug("policy card generated",
		"doc_id", docID,
		"sources", len(sources),
		"items", gen.Answer.ItemCount(),
		"citations_ok", result.CitationSummary.OK)
	return result, nil
}

// PickRepresentativeSources keeps the longest chunk of each page in page order, up to limit.
// Without any page numbers it falls back to the first non-empty chunks.
func PickRepresentativeSources(chunks []models.StoredChunk, limit int) []models.RetrievedHit {
	byPage := make(map[int]models.StoredChunk)
	var fallback []models.StoredChunk

	for _, c := range chunks {
		c.Text = strings.TrimSpace(c.Text)
		if c.Text == "" {
			continue
		}
		fallback = append(fallback, c)

		page := c.Metadata.PageNumber
		if page <= 0 {
			continue
		}
		cur, ok := byPage[page]
		if !ok || utf8.RuneCountInString(c.Text) > utf8.RuneCountInString(cur.Text) {
			byPage[page] = c
		}
	}

	var picked []models.StoredChunk
	if len(byPage) > 0 {
		pages := make([]int, 0, len(byPage))
		for p := range byPage {
			pages = append(pages, p)
		}
		sort.Ints(pages)
		for _, p := range pages {
			picked = append(picked, byPage[p])
		}
	} else {
		picked = fallback
	}
	if limit > 0 && len(picked) > limit {
		picked = picked[:limit]
	}

	hits := make([]models.RetrievedHit, len(picked))
	for i, c := range picked {
		hits[i] = models.RetrievedHit{
			Rank:     i + 1,
			ChunkID:  c.ID,
			Distance: math.NaN(),
			Text:     c.Text,
			Metadata: c.Metadata,
		}
	}
	return hits
}
