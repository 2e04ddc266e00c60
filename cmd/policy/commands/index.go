// ABOUTME: CLI command to index an existing chunk log
// ABOUTME: Embeds the chunks and replaces the document in the vector index
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	indexTitle    string
	indexCategory string
)

// NewIndexCmd creates index command
func NewIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index <doc_id>",
		Short: "Embed and index a document's chunk log",
		Long: `Embed and index the chunk log written by "policy chunk".

Any chunks previously indexed for the document are removed first, so
re-indexing never leaves stale chunks behind.

Examples:
  policy index hr-leave
  policy index hr-leave --title "Leave Policy" --category hr`,
		Args: cobra.ExactArgs(1),
		RunE: runIndex,
	}

	cmd.Flags().StringVar(&indexTitle, "title", "", "Document title stored with every chunk")
	cmd.Flags().StringVar(&indexCategory, "category", "", "Document category stored with every chunk")

	return cmd
}

func runIndex(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	docID := args[0]
	chunks, err := a.logs.ReadChunks(docID)
	if err != nil {
		return fmt.Errorf("reading chunk log: %w", err)
	}

	emb, err := a.embedder(cmd.Context())
	if err != nil {
		return err
	}
	ing, err := a.ingestor(emb)
	if err != nil {
		return err
	}

	title, category := indexTitle, indexCategory
	if title == "" || category == "" {
		oldTitle, oldCategory := a.describe(cmd.Context(), docID)
		if title == "" {
			title = oldTitle
		}
		if category == "" {
			category = oldCategory
		}
	}

	replaced, err := ing.IndexChunks(cmd.Context(), docID, title, category, chunks)
	if err != nil {
		return err
	}

	result := map[string]interface{}{
		"doc_id":   docID,
		"chunks":   len(chunks),
		"replaced": replaced,
	}
	if format := structuredFormat(); format != "" {
		return writeStructured(cmd.OutOrStdout(), format, result)
	}
	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d chunk(s) for %s (replaced %d)\n", len(chunks), docID, replaced)
	}
	return nil
}
