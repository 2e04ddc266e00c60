// ABOUTME: CLI command to build a policy card for one document
// ABOUTME: Picks one representative chunk per page and verifies the card's quotes
package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harper/policy-rag/internal/core"
)

var (
	summarizeMaxSources int
)

// NewSummarizeCmd creates summarize command
func NewSummarizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summarize <doc_id>",
		Short: "Build a structured policy card for a document",
		Long: `Build a structured policy card for one indexed document.

The longest chunk of each page is used as a source, in page order, up
to --max-sources. The card covers scope, key conclusions, conditions,
materials, procedure, deadlines, exceptions and contact channels, and
every quote is verified against its source.

Examples:
  policy summarize hr-leave
  policy summarize hr-leave --max-sources 24 --format yaml`,
		Args: cobra.ExactArgs(1),
		RunE: runSummarize,
	}

	cmd.Flags().IntVar(&summarizeMaxSources, "max-sources", 0, "Maximum page excerpts (default SUMMARY_MAX_SOURCES)")

	return cmd
}

func runSummarize(cmd *cobra.Command, args []string) error {
	if summarizeMaxSources < 0 {
		return validatePositiveInt(summarizeMaxSources, "max-sources")
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	chat, err := a.chatModel()
	if err != nil {
		return err
	}

	result, err := a.summarizer(chat).Summarize(cmd.Context(), core.SummarizeRequest{
		DocID:      args[0],
		MaxSources: summarizeMaxSources,
	})
	if err != nil {
		if errors.Is(err, core.ErrUnknownDocument) {
			return fmt.Errorf("document %q is not indexed; see \"policy docs\"", args[0])
		}
		return err
	}

	if format := structuredFormat(); format != "" {
		return writeStructured(cmd.OutOrStdout(), format, result)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%s, %s) from %d source(s)\n\n", orDash(result.Title), result.DocID, orDash(result.Category), len(result.Sources))
	switch {
	case result.Refusal != nil:
		renderRefusal(out, result.Refusal)
	case result.Answer != nil:
		renderAnswer(out, result.Answer, result.Citations)
		renderCitationSummary(out, result.CitationSummary)
	}
	return nil
}
