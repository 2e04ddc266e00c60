// ABOUTME: ChunkRecord is an offset-addressed span of normalized page text
// ABOUTME: The atomic retrievable and citable unit persisted to per-document chunk logs
package models

import "fmt"

// ChunkRecord is one retained chunk of a page.
// CharStart/CharEnd are a half-open rune span into the page's normalized text.
type ChunkRecord struct {
	DocID       string `json:"doc_id" yaml:"doc_id"`
	PageNumber  int    `json:"page_number" yaml:"page_number"`
	ChunkIndex  int    `json:"chunk_index" yaml:"chunk_index"`
	CharStart   int    `json:"char_start" yaml:"char_start"`
	CharEnd     int    `json:"char_end" yaml:"char_end"`
	SectionPath string `json:"section_path" yaml:"section_path"`
	Text        string `json:"text" yaml:"text"`
}

// ID returns the storage identity of the chunk, stable for the same inputs
func (c ChunkRecord) ID() string {
	return fmt.Sprintf("%s:p%d:c%d:%d-%d", c.DocID, c.PageNumber, c.ChunkIndex, c.CharStart, c.CharEnd)
}

// Metadata builds the index metadata for the chunk
func (c ChunkRecord) Metadata(title, category string) ChunkMetadata {
	return ChunkMetadata{
		DocID:       c.DocID,
		PageNumber:  c.PageNumber,
		ChunkIndex:  c.ChunkIndex,
		CharStart:   c.CharStart,
		CharEnd:     c.CharEnd,
		SectionPath: c.SectionPath,
		Title:       title,
		Category:    category,
	}
}

// ChunkMetadata is the metadata attached to every indexed chunk.
// A zero PageNumber means the page is unknown.
type ChunkMetadata struct {
	DocID       string `json:"doc_id" yaml:"doc_id"`
	PageNumber  int    `json:"page_number,omitempty" yaml:"page_number,omitempty"`
	ChunkIndex  int    `json:"chunk_index" yaml:"chunk_index"`
	CharStart   int    `json:"char_start" yaml:"char_start"`
	CharEnd     int    `json:"char_end" yaml:"char_end"`
	SectionPath string `json:"section_path,omitempty" yaml:"section_path,omitempty"`
	Title       string `json:"title,omitempty" yaml:"title,omitempty"`
	Category    string `json:"category,omitempty" yaml:"category,omitempty"`
}
