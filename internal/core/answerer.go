// ABOUTME: Evidence-gated answer pipeline: retrieve, gate, generate, extract, verify citations
// ABOUTME: A rejected gate produces a refusal without ever calling the generative model
package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/harper/policy-rag/internal/llm"
	"github.com/harper/policy-rag/internal/models"
)

// ErrEmptyIndex is returned when asking against an index with no chunks
var ErrEmptyIndex = errors.New("vector index is empty, ingest documents first")

// AnswererConfig holds the retrieval and prompt settings of the Answerer
type AnswererConfig struct {
	TopK           int
	SourceMaxChars int
	Gate           GateThresholds
}

// Answerer answers questions from indexed policy documents
type Answerer struct {
	retriever *Retriever
	index     VectorIndex
	chat      llm.ChatModel
	cfg       AnswererConfig
	logger    *log.Logger
}

// NewAnswerer creates a new Answerer; a nil logger discards output
func NewAnswerer(retriever *Retriever, index VectorIndex, chat llm.ChatModel, cfg AnswererConfig, logger *log.Logger) *Answerer {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Answerer{
		retriever: retriever,
		index:     index,
		chat:      chat,
		cfg:       cfg,
		logger:    logger,
	}
}

// AskRequest is one question plus optional scope
type AskRequest struct {
	Question string
	TopK     int
	DocID    string
	Category string
	SkipGate bool
}

// AskResult is everything produced while answering one question.
// Exactly one of Answer and Refusal is set.
type AskResult struct {
	QueryID         string                   `json:"query_id" yaml:"query_id"`
	Question        string                   `json:"question" yaml:"question"`
	Hits            []models.RetrievedHit    `json:"hits" yaml:"hits"`
	Decision        models.EvidenceDecision  `json:"gate" yaml:"gate"`
	GateSkipped     bool                     `json:"gate_skipped" yaml:"gate_skipped"`
	Answer          *models.StructuredAnswer `json:"answer,omitempty" yaml:"answer,omitempty"`
	Refusal         *models.Refusal          `json:"refusal,omitempty" yaml:"refusal,omitempty"`
	Citations       []models.CitationCheck   `json:"citations,omitempty" yaml:"citations,omitempty"`
	CitationSummary CitationSummary          `json:"citation_summary" yaml:"citation_summary"`
}

// BuildFilter ANDs the optional document and category scopes
func BuildFilter(docID, category string) models.Filter {
	filter := models.Filter{}
	if docID = strings.TrimSpace(docID); docID != "" {
		filter[models.FieldDocumentID] = docID
	}
	if category = strings.TrimSpace(category); category != "" {
		filter[models.FieldCategory] = category
	}
	if len(filter) == 0 {
		return nil
	}
	return filter
}

// Ask runs the evidence-gated pipeline for one question
func (a *Answerer) Ask(ctx context.Context, req AskRequest) (*AskResult, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, ErrEmptyQuery
	}

	count, err := a.index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count indexed chunks: %w", err)
	}
	if count == 0 {
		return nil, ErrEmptyIndex
	}

	topK := req.TopK
	if topK <= 0 {
		topK = a.cfg.TopK
	}

	result := &AskResult{
		QueryID:     uuid.New().String(),
		Question:    question,
		GateSkipped: req.SkipGate,
	}

	filter := BuildFilter(req.DocID, req.Category)
	hits, err := a.retriever.Retrieve(ctx, question, topK, filter)
	if err != nil {
		return nil, err
	}
	result.Hits = hits
	result.Decision = AssessEvidence(hits, a.cfg.Gate)

	a.logger.Debug("evidence assessed",
		"query_id", result.QueryID,
		"hits", len(hits),
		"ok", result.Decision.OK,
		"top1", result.Decision.Stats[models.StatTop1],
		"gap", result.Decision.Stats[models.StatGap])

	if (!result.Decision.OK && !req.SkipGate) || len(hits) == 0 {
		result.Refusal = GateRefusal(question, result.Decision)
		return result, nil
	}

	messages := AskMessages(question, FormatSources(hits, a.cfg.SourceMaxChars))
	raw, err := a.chat.Chat(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	gen, err := ParseGeneration(raw, question)
	if err != nil {
		a.logger.Warn("model output rejected", "query_id", result.QueryID, "err", err)
		return nil, err
	}

	if gen.Refusal != nil {
		result.Refusal = gen.Refusal
		return result, nil
	}

	result.Answer = gen.Answer
	result.Citations = CheckCitations(gen.Answer, hits)
	result.CitationSummary = SummarizeCitations(result.Citations)
	if !result.CitationSummary.AllVerified() {
		a.logger.Warn("unverified citations",
			"query_id", result.QueryID,
			"missing", result.CitationSummary.Missing,
			"out_of_range", result.CitationSummary.OutOfRange)
	}

	return result, nil
}
