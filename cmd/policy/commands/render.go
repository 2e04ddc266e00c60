// ABOUTME: Text rendering of structured answers, refusals and citation checks
// ABOUTME: Shared by the ask and summarize commands
package commands

import (
	"fmt"
	"io"

	"github.com/harper/policy-rag/internal/core"
	"github.com/harper/policy-rag/internal/models"
)

type itemKey struct {
	dimension string
	index     int
}

// groupChecks indexes citation checks by dimension and item, keeping citation order
func groupChecks(checks []models.CitationCheck) map[itemKey][]models.CitationCheck {
	grouped := make(map[itemKey][]models.CitationCheck)
	for _, c := range checks {
		k := itemKey{c.Dimension, c.ItemIndex}
		grouped[k] = append(grouped[k], c)
	}
	return grouped
}

// statusFlag renders a citation status for the terminal
func statusFlag(status models.CitationStatus) string {
	switch status {
	case models.CitationQuoteOK:
		return "✓ QUOTE_OK"
	case models.CitationQuoteMissing:
		return "✗ QUOTE_MISSING"
	case models.CitationOutOfRange:
		return "✗ OUT_OF_RANGE"
	}
	return string(status)
}

// renderAnswer writes every non-empty dimension with its citations
func renderAnswer(out io.Writer, ans *models.StructuredAnswer, checks []models.CitationCheck) {
	fmt.Fprintf(out, "Question: %s\n", ans.Question)
	grouped := groupChecks(checks)

	for _, dim := range ans.Dimensions() {
		if len(dim.Items) == 0 {
			continue
		}
		fmt.Fprintf(out, "\n%s\n", dim.Label)
		for i, item := range dim.Items {
			fmt.Fprintf(out, "  %d. %s [%s]\n", i+1, item.Text, item.Confidence)
			itemChecks := grouped[itemKey{dim.Name, i}]
			for j, cit := range item.Citations {
				line := fmt.Sprintf("     [%d] %q", cit.SourceID, truncate(cit.Quote, 80))
				if j < len(itemChecks) {
					c := itemChecks[j]
					line += "  " + statusFlag(c.Status)
					if c.DocID != "" {
						line += fmt.Sprintf("  %s p.%s", c.DocID, formatPage(c.PageNumber))
					}
				}
				fmt.Fprintln(out, line)
			}
		}
	}

	renderList(out, "Uncertainties", ans.Uncertainties)
	renderList(out, "Follow-up questions", ans.FollowUpQuestions)
	renderList(out, "Warnings", ans.Warnings)
}

// renderRefusal writes a refusal with its follow-ups and warnings
func renderRefusal(out io.Writer, r *models.Refusal) {
	fmt.Fprintf(out, "Cannot answer definitively: %s\n", r.Question)
	fmt.Fprintf(out, "Reason: %s\n", r.Reason)
	renderList(out, "Follow-up questions", r.FollowUpQuestions)
	renderList(out, "Warnings", r.Warnings)
}

// renderCitationSummary writes the verification totals
func renderCitationSummary(out io.Writer, s core.CitationSummary) {
	if s.Total == 0 {
		return
	}
	fmt.Fprintf(out, "\nCitations: %d total, %d verified, %d missing, %d out of range\n",
		s.Total, s.OK, s.Missing, s.OutOfRange)
	if !s.AllVerified() {
		fmt.Fprintln(out, "Some quotes could not be found in the cited sources; check them before relying on the answer.")
	}
}

func renderList(out io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(out, "\n%s\n", title)
	for _, it := range items {
		fmt.Fprintf(out, "  - %s\n", it)
	}
}
