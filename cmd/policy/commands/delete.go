// ABOUTME: CLI command to delete a document from the index
// ABOUTME: Optionally keeps the page and chunk logs for re-indexing
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harper/policy-rag/internal/models"
)

var (
	deleteKeepLogs bool
)

// NewDeleteCmd creates delete command
func NewDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <doc_id>",
		Short: "Remove a document from the index",
		Long: `Remove every indexed chunk of a document.

The document's page and chunk logs are removed too unless --keep-logs
is given, in which case "policy index <doc_id>" restores it.

Examples:
  policy delete hr-leave
  policy delete hr-leave --keep-logs`,
		Args: cobra.ExactArgs(1),
		RunE: runDelete,
	}

	cmd.Flags().BoolVar(&deleteKeepLogs, "keep-logs", false, "Keep page and chunk logs on disk")

	return cmd
}

func runDelete(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	docID := args[0]
	removed, err := a.index.Delete(cmd.Context(), models.DocFilter(docID))
	if err != nil {
		return fmt.Errorf("deleting %s: %w", docID, err)
	}
	if !deleteKeepLogs {
		if err := a.logs.DeleteDocument(docID); err != nil {
			return err
		}
	}

	if format := structuredFormat(); format != "" {
		return writeStructured(cmd.OutOrStdout(), format, map[string]interface{}{
			"doc_id":  docID,
			"removed": removed,
		})
	}
	if removed == 0 {
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "No indexed chunks for %s\n", docID)
		}
		return nil
	}
	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d chunk(s) of %s\n", removed, docID)
	}
	return nil
}
