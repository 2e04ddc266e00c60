// ABOUTME: Wires configuration, logs, the SQLite index and model clients for commands
// ABOUTME: Every command opens one app and closes it when done
package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/harper/policy-rag/internal/config"
	"github.com/harper/policy-rag/internal/core"
	"github.com/harper/policy-rag/internal/llm"
	"github.com/harper/policy-rag/internal/logging"
	"github.com/harper/policy-rag/internal/storage"
	"github.com/harper/policy-rag/internal/storage/sqlite"
)

// embedderFactory builds the registry factory; tests swap it for a fake
var embedderFactory = llm.OpenAIEmbedderFactory

type app struct {
	cfg       *config.Config
	logger    *log.Logger
	logs      *storage.Logs
	db        *sqlite.DB
	index     *sqlite.Index
	embedders *llm.EmbedderRegistry
	releases  []func()
}

// openApp loads .env and configuration, then opens the data directory
func openApp(cmd *cobra.Command) (*app, error) {
	// Load .env for API keys
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	logger := logging.New(cmd.ErrOrStderr(), verbose, quiet)

	logs, err := storage.NewLogs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("initializing data directory: %w", err)
	}
	db, err := sqlite.Open(filepath.Join(cfg.DataDir, sqlite.DBFileName))
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}

	logger.Debug("opened data directory", "path", cfg.DataDir)
	return &app{
		cfg:       cfg,
		logger:    logger,
		logs:      logs,
		db:        db,
		index:     sqlite.NewIndex(db, cfg.EmbeddingModel),
		embedders: llm.NewEmbedderRegistry(embedderFactory(cfg.ClientConfig())),
	}, nil
}

// Close releases acquired embedders and the index database
func (a *app) Close() error {
	for _, release := range a.releases {
		release()
	}
	a.releases = nil
	return a.db.Close()
}

// embedder acquires the configured embedding model from the app's registry
func (a *app) embedder(ctx context.Context) (llm.Embedder, error) {
	emb, release, err := a.embedders.Acquire(ctx, a.cfg.EmbeddingModel)
	if err != nil {
		return nil, err
	}
	a.releases = append(a.releases, release)
	a.logger.Debug("embedder acquired", "model", a.cfg.EmbeddingModel, "refs", a.embedders.RefCount(a.cfg.EmbeddingModel))
	return emb, nil
}

func (a *app) chatModel() (llm.ChatModel, error) {
	client, err := llm.NewOpenAIClient(a.cfg.ClientConfig())
	if err != nil {
		return nil, fmt.Errorf("initializing chat model: %w", err)
	}
	return client, nil
}

func (a *app) chunkEngine() (*core.ChunkEngine, error) {
	return core.NewChunkEngine(a.cfg.ChunkParams())
}

func (a *app) ingestor(emb llm.Embedder) (*core.Ingestor, error) {
	engine, err := a.chunkEngine()
	if err != nil {
		return nil, err
	}
	return core.NewIngestor(engine, emb, a.index, a.logs, a.cfg.IngestWorkers, a.logger), nil
}

func (a *app) answerer(emb llm.Embedder, chat llm.ChatModel) *core.Answerer {
	return core.NewAnswerer(core.NewRetriever(emb, a.index), a.index, chat, a.cfg.AnswererConfig(), a.logger)
}

func (a *app) summarizer(chat llm.ChatModel) *core.Summarizer {
	return core.NewSummarizer(a.index, chat, a.cfg.SummarizerConfig(), a.logger)
}

// describe returns the indexed title and category of a document, if any
func (a *app) describe(ctx context.Context, docID string) (string, string) {
	docs, err := a.index.Documents(ctx)
	if err != nil {
		a.logger.Warn("failed to look up document metadata", "doc_id", docID, "error", err)
		return "", ""
	}
	for _, d := range docs {
		if d.DocID == docID {
			return d.Title, d.Category
		}
	}
	return "", ""
}
