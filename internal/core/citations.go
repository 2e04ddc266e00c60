// ABOUTME: Verifies every citation of a structured answer against the sources it was given
// ABOUTME: Citation problems are reported per citation; the answer itself is still returned
package core

import "github.com/harper/policy-rag/internal/models"

// CitationSummary counts citation check outcomes
type CitationSummary struct {
	Total      int `json:"total" yaml:"total"`
	OK         int `json:"ok" yaml:"ok"`
	Missing    int `json:"missing" yaml:"missing"`
	OutOfRange int `json:"out_of_range" yaml:"out_of_range"`
}

// AllVerified reports whether every citation checked out
func (s CitationSummary) AllVerified() bool {
	return s.Missing == 0 && s.OutOfRange == 0
}

// CheckCitations checks each citation of each item against sources[source_id-1]
func CheckCitations(answer *models.StructuredAnswer, sources []models.RetrievedHit) []models.CitationCheck {
	if answer == nil {
		return nil
	}

	var checks []models.CitationCheck
	for _, dim := range answer.Dimensions() {
		for i, item := range dim.Items {
			for _, c := range item.Citations {
				check := models.CitationCheck{
					Dimension: dim.Name,
					ItemIndex: i,
					SourceID:  c.SourceID,
					Quote:     c.Quote,
				}
				if c.SourceID < 1 || c.SourceID > len(sources) {
					check.Status = models.CitationOutOfRange
					checks = append(checks, check)
					continue
				}

				src := sources[c.SourceID-1]
				check.DocID = src.Metadata.DocID
				check.PageNumber = src.Metadata.PageNumber
				check.Title = src.Metadata.Title
				if VerifyQuote(c.Quote, src.Text) {
					check.Status = models.CitationQuoteOK
				} else {
					check.Status = models.CitationQuoteMissing
				}
				checks = append(checks, check)
			}
		}
	}
	return checks
}

// SummarizeCitations counts outcomes by status
func SummarizeCitations(checks []models.CitationCheck) CitationSummary {
	s := CitationSummary{Total: len(checks)}
	for _, c := range checks {
		switch c.Status {
		case models.CitationQuoteOK:
			s.OK++
		case models.CitationQuoteMissing:
			s.Missing++
		case models.CitationOutOfRange:
			s.OutOfRange++
		}
	}
	return s
}
