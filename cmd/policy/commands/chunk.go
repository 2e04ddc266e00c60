// ABOUTME: CLI command to chunk a page log into a chunk log
// ABOUTME: Runs the sliding-window chunker without calling any model
package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/policy-rag/internal/core"
	"github.com/harper/policy-rag/internal/models"
	"github.com/harper/policy-rag/internal/storage"
)

var (
	chunkDocID string
)

// ChunkStats summarizes one chunking run
type ChunkStats struct {
	DocID        string `json:"doc_id" yaml:"doc_id"`
	Pages        int    `json:"pages" yaml:"pages"`
	SkippedPages int    `json:"skipped_pages" yaml:"skipped_pages"`
	Chunks       int    `json:"chunks" yaml:"chunks"`
	ChunkLog     string `json:"chunk_log" yaml:"chunk_log"`
}

// NewChunkCmd creates chunk command
func NewChunkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chunk <pages.jsonl>",
		Short: "Split a page log into overlapping chunks",
		Long: `Split a page log into overlapping, offset-addressed chunks.

Each line of the page log is {"doc_id", "page_number", "text"}. Page
text is normalized, cut into windows of CHUNK_SIZE characters with
CHUNK_OVERLAP overlap, and windows shorter than MIN_CHUNK_CHARS are
dropped. The chunk log is written to <data>/chunks/<doc_id>.chunks.jsonl.

Examples:
  policy chunk leave.pages.jsonl
  policy chunk --doc-id hr-leave scanned.pages.jsonl
  policy chunk --format json leave.pages.jsonl`,
		Args: cobra.ExactArgs(1),
		RunE: runChunk,
	}

	cmd.Flags().StringVar(&chunkDocID, "doc-id", "", "Document id (default: doc_id of the pages)")

	return cmd
}

func runChunk(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	pages, err := storage.ReadPages(args[0])
	if err != nil {
		return fmt.Errorf("reading pages: %w", err)
	}
	docID, pages, err := assignDocID(pages, chunkDocID)
	if err != nil {
		return err
	}

	engine, err := a.chunkEngine()
	if err != nil {
		return err
	}
	chunks := engine.ChunkPages(pages)
	if err := a.logs.WriteChunks(docID, chunks); err != nil {
		return fmt.Errorf("writing chunk log: %w", err)
	}

	stats := ChunkStats{
		DocID:        docID,
		Pages:        len(pages),
		SkippedPages: countSkippedPages(pages),
		Chunks:       len(chunks),
		ChunkLog:     a.logs.ChunksPath(docID),
	}

	if format := structuredFormat(); format != "" {
		return writeStructured(cmd.OutOrStdout(), format, stats)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Document:\t%s\n", stats.DocID)
	fmt.Fprintf(w, "Pages:\t%d (%d empty)\n", stats.Pages, stats.SkippedPages)
	fmt.Fprintf(w, "Chunks:\t%d\n", stats.Chunks)
	fmt.Fprintf(w, "Chunk log:\t%s\n", stats.ChunkLog)
	return w.Flush()
}

// assignDocID resolves the document id of a page set, applying an override.
// Pages must all belong to one document.
func assignDocID(pages []models.PageRecord, override string) (string, []models.PageRecord, error) {
	if len(pages) == 0 {
		return "", nil, fmt.Errorf("page log is empty")
	}
	docID := pages[0].DocID
	for _, p := range pages[1:] {
		if p.DocID != docID {
			return "", nil, fmt.Errorf("page log mixes documents %q and %q", docID, p.DocID)
		}
	}
	if override == "" || override == docID {
		return docID, pages, nil
	}
	out := make([]models.PageRecord, len(pages))
	for i, p := range pages {
		p.DocID = override
		out[i] = p
	}
	return override, out, nil
}

func countSkippedPages(pages []models.PageRecord) int {
	n := 0
	for _, p := range pages {
		if core.NormalizePageText(p.Text) == "" {
			n++
		}
	}
	return n
}
