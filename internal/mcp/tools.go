// ABOUTME: MCP tool definitions and registration for the policy server
// ABOUTME: Defines JSON schemas for the ask, search, summarize and list tools
package mcp

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/harper/policy-rag/internal/core"
)

// ServerName is the name announced to MCP clients
const ServerName = "Policy RAG"

// Services are the components the tools delegate to
type Services struct {
	Answerer   Asker
	Summarizer CardBuilder
	Retriever  Searcher
	Catalog    Catalog
	Gate       core.GateThresholds
	TopK       int
	Logger     *log.Logger
}

// NewServer creates an MCP server with every policy tool registered
func NewServer(version string, svc Services) (*mcpserver.MCPServer, *Handlers) {
	server := mcpserver.NewMCPServer(ServerName, version)
	return server, RegisterTools(server, svc)
}

// RegisterTools registers all MCP tools with the server
func RegisterTools(server *mcpserver.MCPServer, svc Services) *Handlers {
	handlers := NewHandlers(svc)

	filterProps := map[string]interface{}{
		"top_k": map[string]interface{}{
			"type":        "number",
			"description": "Number of chunks to retrieve (1-30)",
			"default":     handlers.topK,
		},
		"doc_id": map[string]interface{}{
			"type":        "string",
			"description": "Restrict retrieval to one document",
		},
		"category": map[string]interface{}{
			"type":        "string",
			"description": "Restrict retrieval to one document category",
		},
	}

	// 1. ask_policy - evidence-gated answer with verified citations
	askProps := map[string]interface{}{
		"question": map[string]interface{}{
			"type":        "string",
			"description": "Question about the indexed policy documents",
		},
	}
	for k, v := range filterProps {
		askProps[k] = v
	}
	server.AddTool(mcp.Tool{
		Name:        "ask_policy",
		Description: "Answer a question from the indexed policy documents. Returns a structured answer with per-citation quote verification, or a refusal when the retrieved evidence is insufficient.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: askProps,
			Required:   []string{"question"},
		},
	}, handlers.AskPolicy)

	// 2. search_policy - raw retrieval plus the evidence gate decision
	searchProps := map[string]interface{}{
		"query": map[string]interface{}{
			"type":        "string",
			"description": "Search query",
		},
	}
	for k, v := range filterProps {
		searchProps[k] = v
	}
	server.AddTool(mcp.Tool{
		Name:        "search_policy",
		Description: "Retrieve the closest policy chunks for a query together with the evidence gate decision. Does not call a language model.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: searchProps,
			Required:   []string{"query"},
		},
	}, handlers.SearchPolicy)

	// 3. summarize_policy - policy card for one document
	server.AddTool(mcp.Tool{
		Name:        "summarize_policy",
		Description: "Build a structured policy card for one indexed document, with verified citations.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"doc_id": map[string]interface{}{
					"type":        "string",
					"description": "Document to summarize",
				},
				"max_sources": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of page excerpts to show the model",
					"default":     core.DefaultSummaryMaxSources,
				},
			},
			Required: []string{"doc_id"},
		},
	}, handlers.SummarizePolicy)

	// 4. list_documents - indexed documents
	server.AddTool(mcp.Tool{
		Name:        "list_documents",
		Description: "List the indexed policy documents with their titles, categories, chunk and page counts.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handlers.ListDocuments)

	return handlers
}

func discardLogger() *log.Logger {
	return log.New(io.Discard)
}
