// ABOUTME: MCP command starts Model Context Protocol server
// ABOUTME: Enables LLM agents like Claude to query policies via stdio
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harper/policy-rag/internal/core"
	"github.com/harper/policy-rag/internal/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// NewMCPCmd creates the MCP command
func NewMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for LLM agents",
		Long: `Start MCP server for LLM agents

Runs the policy index as an MCP (Model Context Protocol) server,
enabling LLM agents like Claude to ask evidence-gated questions,
search chunks, build policy cards and list documents via stdio.

Configure in Claude Desktop's config file to enable policy tools.`,
		RunE: runMCP,
		Example: `  # Start MCP server (typically called by Claude Desktop)
  policy mcp

  # Configure in claude_desktop_config.json:
  # {
  #   "mcpServers": {
  #     "policy": {
  #       "command": "policy",
  #       "args": ["mcp"]
  #     }
  #   }
  # }`,
	}

	return cmd
}

// runMCP starts the MCP server
func runMCP(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return ServeMCP(ctx, cmd)
}

// ServeMCP serves the policy tools over stdio until ctx is done or stdin closes
func ServeMCP(ctx context.Context, cmd *cobra.Command) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.APIKey == "" && a.cfg.BaseURL == "" {
		a.logger.Warn("OPENAI_API_KEY not set - ask, search and summarize tools will fail")
	}

	emb, err := a.embedder(ctx)
	if err != nil {
		return err
	}

	chat, err := a.chatModel()
	if err != nil {
		return err
	}

	server, _ := mcp.NewServer(versionInfo.Version, mcp.Services{
		Answerer:   a.answerer(emb, chat),
		Summarizer: a.summarizer(chat),
		Retriever:  core.NewRetriever(emb, a.index),
		Catalog:    a.index,
		Gate:       a.cfg.GateThresholds(),
		TopK:       a.cfg.TopK,
		Logger:     a.logger,
	})

	a.logger.Info("policy MCP server starting on stdio", "data_dir", a.cfg.DataDir)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- mcpserver.ServeStdio(server)
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}
	return nil
}
