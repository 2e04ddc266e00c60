// ABOUTME: CLI command to search indexed policy chunks
// ABOUTME: Shows ranked hits and optionally the evidence gate decision
package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/policy-rag/internal/core"
	"github.com/harper/policy-rag/internal/models"
)

var (
	searchLimit    int
	searchDocID    string
	searchCategory string
	searchGate     bool
)

// SearchOutput is the structured result of a search
type SearchOutput struct {
	Query string                   `json:"query" yaml:"query"`
	Hits  []models.RetrievedHit    `json:"hits" yaml:"hits"`
	Gate  *models.EvidenceDecision `json:"gate,omitempty" yaml:"gate,omitempty"`
}

// NewSearchCmd creates search command
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed policy chunks",
		Long: `Search indexed policy chunks by semantic similarity.

Embeds the query and returns the closest chunks, smallest distance
first. With --gate the evidence gate decision for these hits is shown,
which is what "policy ask" would use to accept or refuse.

Examples:
  policy search "annual leave carry over"
  policy search --limit 10 --doc-id hr-leave "sick leave certificate"
  policy search --gate --format json "travel reimbursement deadline"`,
		Args: cobra.ExactArgs(1),
		RunE: runSearch,
	}

	cmd.Flags().IntVar(&searchLimit, "limit", 5, "Maximum results to return (1-30)")
	cmd.Flags().StringVar(&searchDocID, "doc-id", "", "Restrict to one document")
	cmd.Flags().StringVar(&searchCategory, "category", "", "Restrict to one category")
	cmd.Flags().BoolVar(&searchGate, "gate", false, "Show the evidence gate decision")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	if err := validateRange(searchLimit, 1, 30, "limit"); err != nil {
		return err
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
	retriever := core.NewRetriever(emb, a.index)

	query := args[0]
	hits, err := retriever.Retrieve(cmd.Context(), query, searchLimit, core.BuildFilter(searchDocID, searchCategory))
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	out := SearchOutput{Query: query, Hits: hits}
	if searchGate {
		decision := core.AssessEvidence(hits, a.cfg.GateThresholds())
		out.Gate = &decision
	}

	if format := structuredFormat(); format != "" {
		return writeStructured(cmd.OutOrStdout(), format, out)
	}

	if len(hits) == 0 {
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "No chunks found for query: %s\n", query)
		}
	} else {
		if err := renderHits(cmd.OutOrStdout(), hits); err != nil {
			return err
		}
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "\nFound %d result(s)\n", len(hits))
		}
	}

	if out.Gate != nil {
		fmt.Fprintln(cmd.OutOrStdout())
		renderGate(cmd.OutOrStdout(), *out.Gate)
	}
	return nil
}

// renderHits writes hits as a table
func renderHits(out io.Writer, hits []models.RetrievedHit) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "RANK\tDISTANCE\tDOC ID\tPAGE\tSECTION\tPREVIEW\n")
	fmt.Fprintf(w, "----\t--------\t------\t----\t-------\t-------\n")
	for _, h := range hits {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			h.Rank,
			formatDistance(h.Distance),
			truncate(orDash(h.Metadata.DocID), 25),
			formatPage(h.Metadata.PageNumber),
			truncate(orDash(h.Metadata.SectionPath), 20),
			core.MakeSnippet(h.Text, 60))
	}
	return w.Flush()
}

// renderGate writes the gate verdict, its stats and any reasons
func renderGate(out io.Writer, d models.EvidenceDecision) {
	verdict := "PASS"
	if !d.OK {
		verdict = "FAIL"
	}
	fmt.Fprintf(out, "Evidence gate: %s", verdict)
	if len(d.Stats) > 0 {
		fmt.Fprintf(out, " (top1=%s median=%s gap=%s good_hits=%d)",
			formatDistance(d.Stats[models.StatTop1]),
			formatDistance(d.Stats[models.StatMedian]),
			formatDistance(d.Stats[models.StatGap]),
			int(d.Stats[models.StatGoodHits]))
	}
	fmt.Fprintln(out)
	for _, r := range d.Reasons {
		fmt.Fprintf(out, "  - %s\n", r)
	}
	if !d.OK && len(d.Suggestions) > 0 {
		fmt.Fprintln(out, "  Suggestions:")
		for _, s := range d.Suggestions {
			fmt.Fprintf(out, "    * %s\n", s)
		}
	}
}
