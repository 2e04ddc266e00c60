// ABOUTME: CLI command to watch the pages directory and re-ingest changed page logs
// ABOUTME: Runs until interrupted
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harper/policy-rag/internal/core"
	"github.com/harper/policy-rag/internal/storage"
	"github.com/harper/policy-rag/internal/watcher"
)

var (
	watchInitial bool
)

// NewWatchCmd creates watch command
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-ingest page logs when they change",
		Long: `Watch <data>/pages for *.pages.jsonl files and re-ingest them on change.

Changes are debounced, unchanged content is skipped, and removing a
page log drops the document from the index. With --initial every
existing page log is ingested before watching starts.

Examples:
  policy watch
  policy watch --initial --verbose`,
		Args: cobra.NoArgs,
		RunE: runWatch,
	}

	cmd.Flags().BoolVar(&watchInitial, "initial", false, "Ingest every existing page log first")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	emb, err := a.embedder(cmd.Context())
	if err != nil {
		return err
	}
	ing, err := a.ingestor(emb)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := watcher.New(watcher.Config{
		PagesDir: a.logs.PagesDir(),
		Ingester: ing,
		Remover:  a.index,
		Describe: a.describe,
		Logger:   a.logger,
	})
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer w.Stop()

	if watchInitial {
		if err := ingestExisting(ctx, a, ing); err != nil {
			return err
		}
	}
	if err := w.Seed(); err != nil {
		return fmt.Errorf("hashing page logs: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}

	<-ctx.Done()
	a.logger.Info("watch stopped")
	return nil
}

// ingestExisting ingests every page log in the data directory
func ingestExisting(ctx context.Context, a *app, ing *core.Ingestor) error {
	paths, err := a.logs.PageLogPaths()
	if err != nil {
		return err
	}
	docs := make([]core.DocumentInput, 0, len(paths))
	for _, path := range paths {
		pages, err := storage.ReadPages(path)
		if err != nil {
			return err
		}
		docID, pages, err := assignDocID(pages, "")
		if err != nil {
			a.logger.Warn("skipping page log", "path", path, "error", err)
			continue
		}
		title, category := a.describe(ctx, docID)
		docs = append(docs, core.DocumentInput{DocID: docID, Title: title, Category: category, Pages: pages})
	}
	reports, err := ing.IngestAll(ctx, docs)
	if err != nil {
		return fmt.Errorf("initial ingest: %w", err)
	}
	a.logger.Info("initial ingest complete", "documents", len(reports))
	return nil
}
