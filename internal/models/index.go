// ABOUTME: Shapes exchanged with the vector index: equality filters, query results, stored chunks
// ABOUTME: Filter keys name chunk metadata columns and are ANDed together
package models

import (
	"fmt"
	"sort"
	"strings"
)

// Filter field names accepted by the vector index
const (
	FieldDocumentID  = "document_id"
	FieldPageNumber  = "page_number"
	FieldCategory    = "category"
	FieldTitle       = "title"
	FieldSectionPath = "section_path"
)

// Filter is an AND of equality conditions over chunk metadata
type Filter map[string]any

// DocFilter returns a filter matching one document
func DocFilter(docID string) Filter {
	return Filter{FieldDocumentID: docID}
}

// Keys returns the filter fields in sorted order
func (f Filter) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate rejects unknown fields and values of the wrong kind
func (f Filter) Validate() error {
	for _, k := range f.Keys() {
		v := f[k]
		switch k {
		case FieldPageNumber:
			if _, ok := v.(int); !ok {
				return fmt.Errorf("filter %s must be an int, got %T", k, v)
			}
		case FieldDocumentID, FieldCategory, FieldTitle, FieldSectionPath:
			if _, ok := v.(string); !ok {
				return fmt.Errorf("filter %s must be a string, got %T", k, v)
			}
		default:
			return fmt.Errorf("unknown filter field %q", k)
		}
	}
	return nil
}

// String renders the filter as k=v pairs joined by " AND "
func (f Filter) String() string {
	parts := make([]string, 0, len(f))
	for _, k := range f.Keys() {
		parts = append(parts, fmt.Sprintf("%s=%v", k, f[k]))
	}
	return strings.Join(parts, " AND ")
}

// QueryResult is one raw similarity-search match. Distance is NaN when unusable.
type QueryResult struct {
	ID       string
	Text     string
	Distance float64
	Metadata ChunkMetadata
}

// StoredChunk is an indexed chunk without its vector
type StoredChunk struct {
	ID             string        `json:"id" yaml:"id"`
	Text           string        `json:"text" yaml:"text"`
	EmbeddingModel string        `json:"embedding_model" yaml:"embedding_model"`
	Metadata       ChunkMetadata `json:"metadata" yaml:"metadata"`
}

// DocumentInfo summarises one indexed document
type DocumentInfo struct {
	DocID    string `json:"doc_id" yaml:"doc_id"`
	Title    string `json:"title" yaml:"title"`
	Category string `json:"category" yaml:"category"`
	Chunks   int    `json:"chunks" yaml:"chunks"`
	Pages    int    `json:"pages" yaml:"pages"`
}
