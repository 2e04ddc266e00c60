// ABOUTME: Ingestor chunks documents, writes chunk logs, embeds chunks and indexes them
// ABOUTME: Delete+upsert of one document is serialised; different documents run in parallel
package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/harper/policy-rag/internal/llm"
	"github.com/harper/policy-rag/internal/models"
	"github.com/harper/policy-rag/internal/util"
)

// ChunkWriter persists the chunk log of one document
type ChunkWriter interface {
	WriteChunks(docID string, chunks []models.ChunkRecord) error
}

// DocumentInput is one document to ingest
type DocumentInput struct {
	DocID    string
	Title    string
	Category string
	Pages    []models.PageRecord
}

// IngestReport describes the outcome of ingesting one document
type IngestReport struct {
	DocID        string        `json:"doc_id" yaml:"doc_id"`
	Pages        int           `json:"pages" yaml:"pages"`
	SkippedPages int           `json:"skipped_pages" yaml:"skipped_pages"`
	Chunks       int           `json:"chunks" yaml:"chunks"`
	Replaced     int64         `json:"replaced" yaml:"replaced"`
	Duration     time.Duration `json:"duration" yaml:"duration"`
}

// Ingestor turns pages into indexed chunks
type Ingestor struct {
	engine   *ChunkEngine
	embedder llm.Embedder
	index    VectorIndex
	writer   ChunkWriter
	locks    *util.KeyedMutex
	workers  int
	logger   *log.Logger
}

// NewIngestor creates a new Ingestor. writer may be nil to skip chunk logs;
// workers bounds IngestAll parallelism.
func NewIngestor(engine *ChunkEngine, embedder llm.Embedder, index VectorIndex, writer ChunkWriter, workers int, logger *log.Logger) *Ingestor {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Ingestor{
		engine:   engine,
		embedder: embedder,
		index:    index,
		writer:   writer,
		locks:    util.NewKeyedMutex(),
		workers:  workers,
		logger:   logger,
	}
}

// Ingest chunks, logs, embeds and indexes one document, replacing any earlier version
func (ing *Ingestor) Ingest(ctx context.Context, doc DocumentInput) (IngestReport, error) {
	start := time.Now()
	docID := strings.TrimSpace(doc.DocID)
	report := IngestReport{DocID: docID, Pages: len(doc.Pages)}

	if docID == "" {
		return report, errors.New("doc_id cannot be empty")
	}
	for i, p := range doc.Pages {
		if err := p.Validate(); err != nil {
			return report, fmt.Errorf("page %d of %s: %w", i+1, docID, err)
		}
		if p.DocID != docID {
			return report, fmt.Errorf("page %d belongs to %q, not %q", p.PageNumber, p.DocID, docID)
		}
		if NormalizePageText(p.Text) == "" {
			report.SkippedPages++
		}
	}

	chunks := ing.engine.ChunkPages(doc.Pages)
	report.Chunks = len(chunks)

	if ing.writer != nil {
		if err := ing.writer.WriteChunks(docID, chunks); err != nil {
			return report, fmt.Errorf("failed to write chunk log for %s: %w", docID, err)
		}
	}

	replaced, err := ing.IndexChunks(ctx, docID, doc.Title, doc.Category, chunks)
	report.Replaced = replaced
	report.Duration = time.Since(start)
	if err != nil {
		return report, err
	}

	ing.logger.Info("ingested document",
		"doc_id", docID,
		"pages", report.Pages,
		"chunks", report.Chunks,
		"skipped_pages", report.SkippedPages,
		"duration", report.Duration.Round(time.Millisecond))
	return report, nil
}

// IndexChunks embeds chunks and replaces the document's entries in the index.
// It returns the number of entries removed before the upsert.
func (ing *Ingestor) IndexChunks(ctx context.Context, docID, title, category string, chunks []models.ChunkRecord) (int64, error) {
	ids := make([]string, len(chunks))
	texts := make([]string, len(chunks))
	metas := make([]models.ChunkMetadata, len(chunks))
	for i, c := range chunks {
		if c.DocID != docID {
			return 0, fmt.Errorf("chunk %s does not belong to %q", c.ID(), docID)
		}
		ids[i] = c.ID()
		texts[i] = c.Text
		metas[i] = c.Metadata(title, category)
	}

	var embeddings [][]float64
	if len(texts) > 0 {
		var err error
		embeddings, err = ing.embedder.Embed(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("failed to embed chunks of %s: %w", docID, err)
		}
		if len(embeddings) != len(texts) {
			return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(embeddings), len(texts))
		}
	}

	unlock := ing.locks.Lock(docID)
	defer unlock()

	deleted, err := ing.index.Delete(ctx, models.DocFilter(docID))
	if err != nil {
		return 0, fmt.Errorf("failed to delete previous chunks of %s: %w", docID, err)
	}
	if len(ids) == 0 {
		return deleted, nil
	}
	if err := ing.index.Upsert(ctx, ids, texts, embeddings, metas); err != nil {
		return deleted, fmt.Errorf("failed to upsert chunks of %s: %w", docID, err)
	}

	ing.logger.Debug("indexed chunks", "doc_id", docID, "chunks", len(ids), "replaced", deleted)
	return deleted, nil
}

// IngestAll ingests documents in parallel; reports keep input order
func (ing *Ingestor) IngestAll(ctx context.Context, docs []DocumentInput) ([]IngestReport, error) {
	reports := make([]IngestReport, len(docs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(ing.workers)
	for i, doc := range docs {
		g.Go(func() error {
			report, err := ing.Ingest(ctx, doc)
			reports[i] = report
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return reports, err
	}
	return reports, nil
}
