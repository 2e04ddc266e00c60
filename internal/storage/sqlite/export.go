// ABOUTME: Export of the index contents without vectors
// ABOUTME: Supports JSON and YAML snapshots of documents and their chunks
package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harper/policy-rag/internal/models"
)

// Export formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ExportData represents the complete exportable index snapshot
type ExportData struct {
	Version        string                `yaml:"version" json:"version"`
	ExportedAt     string                `yaml:"exported_at" json:"exported_at"`
	Tool           string                `yaml:"tool" json:"tool"`
	EmbeddingModel string                `yaml:"embedding_model" json:"embedding_model"`
	Documents      []models.DocumentInfo `yaml:"documents" json:"documents"`
	Chunks         []models.StoredChunk  `yaml:"chunks" json:"chunks"`
}

// Export snapshots every document and chunk, optionally limited to filter
func (ix *Index) Export(ctx context.Context, filter models.Filter) (*ExportData, error) {
	data := &ExportData{
		Version:        "1.0",
		ExportedAt:     time.Now().Format(time.RFC3339),
		Tool:           "policy",
		EmbeddingModel: ix.model,
		Documents:      []models.DocumentInfo{},
		Chunks:         []models.StoredChunk{},
	}

	docs, err := ix.Documents(ctx)
	if err != nil {
		return nil, err
	}
	want := ""
	if v, ok := filter[models.FieldDocumentID].(string); ok {
		want = v
	}
	for _, d := range docs {
		if want == "" || d.DocID == want {
			data.Documents = append(data.Documents, d)
		}
	}

	chunks, err := ix.Get(ctx, filter, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get chunks: %w", err)
	}
	data.Chunks = append(data.Chunks, chunks...)

	return data, nil
}

// WriteExport encodes data to w in the given format
func WriteExport(w io.Writer, data *ExportData, format string) error {
	switch format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(data); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(data); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return encoder.Close()
	default:
		return fmt.Errorf("unsupported export format %q (use json or yaml)", format)
	}
	return nil
}

// ExportToFile writes a snapshot to outputPath in the given format
func (ix *Index) ExportToFile(ctx context.Context, outputPath, format string, filter models.Filter) error {
	data, err := ix.Export(ctx, filter)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(outputPath) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return WriteExport(file, data, format)
}
