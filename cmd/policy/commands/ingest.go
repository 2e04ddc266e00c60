// ABOUTME: CLI command to chunk and index one or more page logs
// ABOUTME: Copies pages into the data directory and ingests documents in parallel
package commands

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/harper/policy-rag/internal/core"
	"github.com/harper/policy-rag/internal/storage"
)

var (
	ingestTitle    string
	ingestCategory string
)

// NewIngestCmd creates ingest command
func NewIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <pages.jsonl>...",
		Short: "Chunk, embed and index page logs",
		Long: `Chunk, embed and index one or more page logs.

Each page log is copied to <data>/pages/ so "policy watch" can pick up
later edits, its chunk log is rewritten, and the document's previous
chunks are replaced in the index. Documents are ingested in parallel
(INGEST_WORKERS).

Examples:
  policy ingest leave.pages.jsonl --title "Leave Policy" --category hr
  policy ingest pages/*.pages.jsonl
  policy ingest --format json travel.pages.jsonl`,
		Args: cobra.MinimumNArgs(1),
		RunE: runIngest,
	}

	cmd.Flags().StringVar(&ingestTitle, "title", "", "Document title (single document only)")
	cmd.Flags().StringVar(&ingestCategory, "category", "", "Category applied to every document")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestTitle != "" && len(args) > 1 {
		return fmt.Errorf("--title can only be used with a single page log")
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	docs := make([]core.DocumentInput, 0, len(args))
	for _, path := range args {
		pages, err := storage.ReadPages(path)
		if err != nil {
			return fmt.Errorf("reading pages: %w", err)
		}
		docID, pages, err := assignDocID(pages, "")
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if !samePath(path, a.logs.PagesPath(docID)) {
			if err := a.logs.WritePages(docID, pages); err != nil {
				return fmt.Errorf("copying pages of %s: %w", docID, err)
			}
		}

		title, category := a.describe(cmd.Context(), docID)
		if ingestTitle != "" {
			title = ingestTitle
		}
		if ingestCategory != "" {
			category = ingestCategory
		}
		docs = append(docs, core.DocumentInput{DocID: docID, Title: title, Category: category, Pages: pages})
	}

	emb, err := a.embedder(cmd.Context())
	if err != nil {
		return err
	}
	ing, err := a.ingestor(emb)
	if err != nil {
		return err
	}

	reports, err := ing.IngestAll(cmd.Context(), docs)
	if err != nil {
		return fmt.Errorf("ingesting: %w", err)
	}

	if format := structuredFormat(); format != "" {
		return writeStructured(cmd.OutOrStdout(), format, reports)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "DOC ID\tPAGES\tEMPTY\tCHUNKS\tREPLACED\tTIME\n")
	fmt.Fprintf(w, "------\t-----\t-----\t------\t--------\t----\n")
	for _, r := range reports {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%s\n",
			truncate(r.DocID, 30), r.Pages, r.SkippedPages, r.Chunks, r.Replaced, r.Duration.Round(time.Millisecond))
	}
	return w.Flush()
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}
