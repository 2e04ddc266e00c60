// ABOUTME: Calibration cases: labelled questions with the pages that should answer them
// ABOUTME: Loaded from a JSON file; unanswerable cases measure how often the gate says no
package calibration

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Case is one labelled question
type Case struct {
	ID            string `json:"id"`
	Question      string `json:"question"`
	ExpectedDocID string `json:"expected_doc_id,omitempty"`
	ExpectedPages []int  `json:"expected_pages,omitempty"`
	Answerable    bool   `json:"answerable"`
	DocID         string `json:"doc_id,omitempty"`
	Category      string `json:"category,omitempty"`
}

// Validate checks that the case can be scored
func (c Case) Validate() error {
	if strings.TrimSpace(c.Question) == "" {
		return fmt.Errorf("case %q: question is empty", c.ID)
	}
	if c.Answerable && c.ExpectedDocID == "" && len(c.ExpectedPages) == 0 {
		return fmt.Errorf("case %q: answerable cases need expected_doc_id or expected_pages", c.ID)
	}
	return nil
}

// LoadCases reads a JSON array of cases, assigning ids to unnamed ones
func LoadCases(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cases: %w", err)
	}
	return ParseCases(data)
}

// ParseCases decodes and validates a JSON array of cases
func ParseCases(data []byte) ([]Case, error) {
	var cases []Case
	if err := json.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("failed to parse cases: %w", err)
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("no cases found")
	}
	for i := range cases {
		if cases[i].ID == "" {
			cases[i].ID = fmt.Sprintf("case-%d", i+1)
		}
		if err := cases[i].Validate(); err != nil {
			return nil, err
		}
	}
	return cases, nil
}
