// ABOUTME: PageRecord is one page of plain text extracted from a policy document
// ABOUTME: Produced once per page by the external PDF step, consumed only by the chunker
package models

import (
	"errors"
	"fmt"
	"strings"
)

// PageRecord is the per-page text of a document
type PageRecord struct {
	DocID      string `json:"doc_id" yaml:"doc_id"`
	PageNumber int    `json:"page_number" yaml:"page_number"`
	Text       string `json:"text" yaml:"text"`
}

// Validate checks that the page is addressable
func (p PageRecord) Validate() error {
	if strings.TrimSpace(p.DocID) == "" {
		return errors.New("doc_id cannot be empty")
	}
	if p.PageNumber < 1 {
		return fmt.Errorf("page_number must be >= 1, got %d", p.PageNumber)
	}
	return nil
}
