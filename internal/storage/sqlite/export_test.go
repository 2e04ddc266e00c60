// ABOUTME: Tests for index export
// ABOUTME: Verifies JSON and YAML snapshots and document filtering
package sqlite

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/harper/policy-rag/internal/models"
)

func TestExport(t *testing.T) {
	ix := newTestIndex(t)
	seedIndex(t, ix)

	data, err := ix.Export(context.Background(), nil)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	if data.Version != "1.0" {
		t.Errorf("Version = %v, want 1.0", data.Version)
	}
	if data.Tool != "policy" {
		t.Errorf("Tool = %v, want policy", data.Tool)
	}
	if len(data.Documents) != 2 || len(data.Chunks) != 4 {
		t.Errorf("got %d documents and %d chunks, want 2 and 4", len(data.Documents), len(data.Chunks))
	}
}

func TestExport_FilteredByDocument(t *testing.T) {
	ix := newTestIndex(t)
	seedIndex(t, ix)

	data, err := ix.Export(context.Background(), models.DocFilter("dorm"))
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if len(data.Documents) != 1 || data.Documents[0].DocID != "dorm" {
		t.Errorf("unexpected documents: %+v", data.Documents)
	}
	if len(data.Chunks) != 1 {
		t.Errorf("len(Chunks) = %d, want 1", len(data.Chunks))
	}
}

func TestWriteExport_Formats(t *testing.T) {
	ix := newTestIndex(t)
	seedIndex(t, ix)
	data, _ := ix.Export(context.Background(), nil)

	var jsonBuf bytes.Buffer
	if err := WriteExport(&jsonBuf, data, FormatJSON); err != nil {
		t.Fatalf("WriteExport(json) error = %v", err)
	}
	var fromJSON ExportData
	if err := json.Unmarshal(jsonBuf.Bytes(), &fromJSON); err != nil {
		t.Fatalf("invalid JSON export: %v", err)
	}
	if len(fromJSON.Chunks) != 4 {
		t.Errorf("JSON chunks = %d, want 4", len(fromJSON.Chunks))
	}

	var yamlBuf bytes.Buffer
	if err := WriteExport(&yamlBuf, data, FormatYAML); err != nil {
		t.Fatalf("WriteExport(yaml) error = %v", err)
	}
	var fromYAML ExportData
	if err := yaml.Unmarshal(yamlBuf.Bytes(), &fromYAML); err != nil {
		t.Fatalf("invalid YAML export: %v", err)
	}
	if fromYAML.Documents[0].DocID != "dorm" {
		t.Errorf("YAML documents[0] = %+v", fromYAML.Documents[0])
	}

	if err := WriteExport(&bytes.Buffer{}, data, "markdown"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestExportToFile(t *testing.T) {
	ix := newTestIndex(t)
	seedIndex(t, ix)

	outputPath := filepath.Join(t.TempDir(), "nested", "export.yaml")
	if err := ix.ExportToFile(context.Background(), outputPath, FormatYAML, nil); err != nil {
		t.Fatalf("ExportToFile() error = %v", err)
	}

	content, err := os.ReadFile(outputPath) // #nosec G304
	if err != nil {
		t.Fatalf("failed to read export: %v", err)
	}
	if !bytes.Contains(content, []byte("embedding_model: text-embedding-3-small")) {
		t.Errorf("export missing embedding model:\n%s", content)
	}
}
