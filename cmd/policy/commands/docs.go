// ABOUTME: CLI command to list indexed documents
// ABOUTME: Shows title, category, chunk and page counts per document
package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/policy-rag/internal/models"
)

// NewDocsCmd creates docs command
func NewDocsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "List indexed documents",
		Long: `List the documents in the vector index.

Examples:
  policy docs
  policy docs --format json`,
		Args: cobra.NoArgs,
		RunE: runDocs,
	}

	return cmd
}

func runDocs(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	docs, err := a.index.Documents(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing documents: %w", err)
	}
	if docs == nil {
		docs = []models.DocumentInfo{}
	}

	if format := structuredFormat(); format != "" {
		return writeStructured(cmd.OutOrStdout(), format, docs)
	}

	if len(docs) == 0 {
		if !quiet {
			fmt.Fprintln(cmd.OutOrStdout(), "No documents indexed")
		}
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "DOC ID\tTITLE\tCATEGORY\tPAGES\tCHUNKS\n")
	fmt.Fprintf(w, "------\t-----\t--------\t-----\t------\n")
	for _, d := range docs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n",
			truncate(d.DocID, 30),
			truncate(orDash(d.Title), 40),
			orDash(d.Category),
			d.Pages,
			d.Chunks)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "\nTotal: %d document(s)\n", len(docs))
	}
	return nil
}
