// ABOUTME: CLI command to ask a question against the indexed policies
// ABOUTME: Gates the evidence, generates a cited answer and verifies every quote
package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harper/policy-rag/internal/core"
)

var (
	askTopK         int
	askDocID        string
	askCategory     string
	askNoGate       bool
	askShowEvidence bool
)

// NewAskCmd creates ask command
func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question and get a cited, verified answer",
		Long: `Ask a question about the indexed policy documents.

The closest chunks are retrieved and checked by the evidence gate. If
the evidence is too weak the command prints a refusal with concrete
suggestions and no model is called. Otherwise the model answers in a
structured policy-card shape and every cited quote is verified against
its source. Refusals are results, not errors: the exit status is 0.

Examples:
  policy ask "How many days of annual leave can be carried over?"
  policy ask --doc-id hr-leave --show-evidence "Who approves unpaid leave?"
  policy ask --top-k 12 --category finance --format json "What is the per diem?"`,
		Args: cobra.ExactArgs(1),
		RunE: runAsk,
	}

	cmd.Flags().IntVar(&askTopK, "top-k", 0, "Chunks to retrieve (default RETRIEVAL_TOP_K)")
	cmd.Flags().StringVar(&askDocID, "doc-id", "", "Restrict to one document")
	cmd.Flags().StringVar(&askCategory, "category", "", "Restrict to one category")
	cmd.Flags().BoolVar(&askNoGate, "no-gate", false, "Skip the evidence gate (debugging only)")
	cmd.Flags().BoolVar(&askShowEvidence, "show-evidence", false, "Print the retrieved chunks")

	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	if askTopK != 0 {
		if err := validateRange(askTopK, 1, 30, "top-k"); err != nil {
			return err
		}
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	emb, err := a.embedder(cmd.Context())
	if err != nil {
		return err
	}
	chat, err := a.chatModel()
	if err != nil {
		return err
	}

	result, err := a.answerer(emb, chat).Ask(cmd.Context(), core.AskRequest{
		Question: args[0],
		TopK:     askTopK,
		DocID:    askDocID,
		Category: askCategory,
		SkipGate: askNoGate,
	})
	if err != nil {
		if errors.Is(err, core.ErrEmptyIndex) {
			return fmt.Errorf("the index is empty; run \"policy ingest\" first")
		}
		return err
	}

	if format := structuredFormat(); format != "" {
		return writeStructured(cmd.OutOrStdout(), format, result)
	}
	renderAskResult(cmd, result)
	return nil
}

func renderAskResult(cmd *cobra.Command, result *core.AskResult) {
	out := cmd.OutOrStdout()

	if result.GateSkipped {
		fmt.Fprintln(out, "Evidence gate: skipped")
	} else {
		renderGate(out, result.Decision)
	}

	if askShowEvidence && len(result.Hits) > 0 {
		fmt.Fprintln(out)
		_ = renderHits(out, result.Hits)
	}
	fmt.Fprintln(out)

	switch {
	case result.Refusal != nil:
		renderRefusal(out, result.Refusal)
	case result.Answer != nil:
		renderAnswer(out, result.Answer, result.Citations)
		renderCitationSummary(out, result.CitationSummary)
	}

	if verbose {
		fmt.Fprintf(out, "\nQuery ID: %s\n", result.QueryID)
	}
}
