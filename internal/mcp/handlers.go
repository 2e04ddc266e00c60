// ABOUTME: MCP tool handler implementations for the policy server
// ABOUTME: Each handler returns JSON text or a tool error, never a transport error
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/harper/policy-rag/internal/core"
	"github.com/harper/policy-rag/internal/models"
)

const (
	defaultTopK = 8
	maxTopK     = 30
)

// Asker runs the evidence-gated answer pipeline
type Asker interface {
	Ask(ctx context.Context, req core.AskRequest) (*core.AskResult, error)
}

// CardBuilder builds policy cards
type CardBuilder interface {
	Summarize(ctx context.Context, req core.SummarizeRequest) (*core.SummaryResult, error)
}

// Searcher retrieves ranked hits
type Searcher interface {
	Retrieve(ctx context.Context, query string, topK int, filter models.Filter) ([]models.RetrievedHit, error)
}

// Catalog lists indexed documents
type Catalog interface {
	Documents(ctx context.Context) ([]models.DocumentInfo, error)
}

// Handlers contains the handler functions for all MCP tools
type Handlers struct {
	answerer   Asker
	summarizer CardBuilder
	retriever  Searcher
	catalog    Catalog
	gate       core.GateThresholds
	topK       int
	logger     *log.Logger
}

// NewHandlers creates handlers over the given services
func NewHandlers(svc Services) *Handlers {
	topK := svc.TopK
	if topK < 1 {
		topK = defaultTopK
	}
	logger := svc.Logger
	if logger == nil {
		logger = discardLogger()
	}
	return &Handlers{
		answerer:   svc.Answerer,
		summarizer: svc.Summarizer,
		retriever:  svc.Retriever,
		catalog:    svc.Catalog,
		gate:       svc.Gate,
		topK:       topK,
		logger:     logger,
	}
}

// SearchResult is the search_policy response
type SearchResult struct {
	Query string                  `json:"query"`
	Hits  []models.RetrievedHit   `json:"hits"`
	Gate  models.EvidenceDecision `json:"gate"`
}

// AskPolicy handles the ask_policy tool
func (h *Handlers) AskPolicy(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("question argument is required and must be a string"), nil
	}
	if h.answerer == nil {
		return mcp.NewToolResultError("answering is not configured"), nil
	}
	topK, err := h.topKArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := h.answerer.Ask(ctx, core.AskRequest{
		Question: question,
		TopK:     topK,
		DocID:    request.GetString("doc_id", ""),
		Category: request.GetString("category", ""),
	})
	if err != nil {
		if errors.Is(err, core.ErrEmptyIndex) {
			return mcp.NewToolResultError("the policy index is empty; ingest documents first"), nil
		}
		h.logger.Error("ask_policy failed", "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("ask failed: %v", err)), nil
	}

	return jsonResult(result)
}

// SearchPolicy handles the search_policy tool
func (h *Handlers) SearchPolicy(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query argument is required and must be a string"), nil
	}
	if h.retriever == nil {
		return mcp.NewToolResultError("search is not configured"), nil
	}
	topK, err := h.topKArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	filter := core.BuildFilter(request.GetString("doc_id", ""), request.GetString("category", ""))
	hits, err := h.retriever.Retrieve(ctx, query, topK, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	return jsonResult(SearchResult{
		Query: query,
		Hits:  hits,
		Gate:  core.AssessEvidence(hits, h.gate),
	})
}

// SummarizePolicy handles the summarize_policy tool
func (h *Handlers) SummarizePolicy(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docID, err := request.RequireString("doc_id")
	if err != nil {
		return mcp.NewToolResultError("doc_id argument is required and must be a string"), nil
	}
	if h.summarizer == nil {
		return mcp.NewToolResultError("summaries are not configured"), nil
	}

	result, err := h.summarizer.Summarize(ctx, core.SummarizeRequest{
		DocID:      docID,
		MaxSources: request.GetInt("max_sources", 0),
	})
	if err != nil {
		if errors.Is(err, core.ErrUnknownDocument) {
			return mcp.NewToolResultError(fmt.Sprintf("document %q is not indexed", docID)), nil
		}
		h.logger.Error("summarize_policy failed", "doc_id", docID, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("summarize failed: %v", err)), nil
	}

	return jsonResult(result)
}

// ListDocuments handles the list_documents tool
func (h *Handlers) ListDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.catalog == nil {
		return mcp.NewToolResultError("document listing is not configured"), nil
	}
	docs, err := h.catalog.Documents(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list documents: %v", err)), nil
	}
	if docs == nil {
		docs = []models.DocumentInfo{}
	}

	return jsonResult(map[string]interface{}{
		"documents": docs,
		"count":     len(docs),
	})
}

func (h *Handlers) topKArg(request mcp.CallToolRequest) (int, error) {
	topK := request.GetInt("top_k", h.topK)
	if topK < 1 || topK > maxTopK {
		return 0, fmt.Errorf("top_k must be between 1 and %d, got %d", maxTopK, topK)
	}
	return topK, nil
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	responseJSON, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(responseJSON)), nil
}
