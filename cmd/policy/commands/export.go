// ABOUTME: CLI command to export the index contents
// ABOUTME: Writes documents and chunks, without vectors, as YAML or JSON
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harper/policy-rag/internal/core"
	"github.com/harper/policy-rag/internal/storage/sqlite"
)

var (
	exportOutput string
	exportFormat string
	exportDocID  string
)

// NewExportCmd creates export command
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export indexed documents and chunks",
		Long: `Export indexed documents and chunks for inspection or backup.

Vectors are not exported; re-running "policy index" regenerates them.
Supported formats are yaml (default) and json.

Examples:
  policy export
  policy export -o backup.yaml
  policy export -f json -o backup.json
  policy export --doc-id hr-leave -f json`,
		Args: cobra.NoArgs,
		RunE: runExport,
	}

	cmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVarP(&exportFormat, "format", "f", sqlite.FormatYAML, "Export format: yaml or json")
	cmd.Flags().StringVar(&exportDocID, "doc-id", "", "Export a single document")

	return cmd
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportFormat != sqlite.FormatYAML && exportFormat != sqlite.FormatJSON {
		return fmt.Errorf("unsupported export format %q (use yaml or json)", exportFormat)
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	filter := core.BuildFilter(exportDocID, "")

	if exportOutput != "" {
		if err := a.index.ExportToFile(cmd.Context(), exportOutput, exportFormat, filter); err != nil {
			return fmt.Errorf("exporting: %w", err)
		}
		if !quiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported to %s\n", exportOutput)
		}
		return nil
	}

	data, err := a.index.Export(cmd.Context(), filter)
	if err != nil {
		return fmt.Errorf("exporting: %w", err)
	}
	return sqlite.WriteExport(cmd.OutOrStdout(), data, exportFormat)
}
