// ABOUTME: Tests for command structure and the commands that run without a model
// ABOUTME: Uses a temporary data directory through POLICY_DATA_DIR

package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/harper/policy-rag/internal/models"
	"github.com/harper/policy-rag/internal/storage/sqlite"
)

// setupDataDir points the CLI at a fresh data directory with default settings
func setupDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("POLICY_DATA_DIR", dir)
	for _, key := range []string{
		"OPENAI_API_KEY", "OPENAI_BASE_URL", "CHUNK_SIZE", "CHUNK_OVERLAP", "MIN_CHUNK_CHARS",
		"RETRIEVAL_TOP_K", "SOURCE_MAX_CHARS", "POLICY_EMBEDDING_MODEL",
	} {
		t.Setenv(key, "")
	}
	return dir
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func writePageLog(t *testing.T, dir, docID string, texts ...string) string {
	t.Helper()
	var b strings.Builder
	for i, text := range texts {
		line, err := json.Marshal(models.PageRecord{DocID: docID, PageNumber: i + 1, Text: text})
		if err != nil {
			t.Fatal(err)
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	path := filepath.Join(dir, docID+".pages.jsonl")
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func seedIndex(t *testing.T, dataDir string) {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(dataDir, sqlite.DBFileName))
	if err != nil {
		t.Fatalf("failed to open index: %v", err)
	}
	defer db.Close()

	ix := sqlite.NewIndex(db, "test-embedding")
	metas := []models.ChunkMetadata{
		{DocID: "hr-leave", PageNumber: 1, Title: "Leave Policy", Category: "hr"},
		{DocID: "hr-leave", PageNumber: 2, ChunkIndex: 0, Title: "Leave Policy", Category: "hr"},
	}
	err = ix.Upsert(context.Background(),
		[]string{"hr-leave:p1:c0:0-20", "hr-leave:p2:c0:0-20"},
		[]string{"Annual leave is 20 days.", "Sick leave needs a certificate."},
		[][]float64{{1, 0}, {0, 1}},
		metas)
	if err != nil {
		t.Fatalf("failed to seed index: %v", err)
	}
}

func TestCommandStructure(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{NewChunkCmd(), "chunk <pages.jsonl>", []string{"doc-id"}},
		{NewIndexCmd(), "index <doc_id>", []string{"title", "category"}},
		{NewIngestCmd(), "ingest <pages.jsonl>...", []string{"title", "category"}},
		{NewSearchCmd(), "search <query>", []string{"limit", "doc-id", "category", "gate"}},
		{NewAskCmd(), "ask <question>", []string{"top-k", "doc-id", "category", "no-gate", "show-evidence"}},
		{NewSummarizeCmd(), "summarize <doc_id>", []string{"max-sources"}},
		{NewDocsCmd(), "docs", nil},
		{NewDeleteCmd(), "delete <doc_id>", []string{"keep-logs"}},
		{NewExportCmd(), "export", []string{"output", "format", "doc-id"}},
		{NewWatchCmd(), "watch", []string{"initial"}},
	}

	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			if tt.cmd.Use != tt.use {
				t.Errorf("Use = %q, want %q", tt.cmd.Use, tt.use)
			}
			if tt.cmd.Short == "" || tt.cmd.Long == "" {
				t.Error("descriptions should not be empty")
			}
			if tt.cmd.RunE == nil {
				t.Error("RunE should be set")
			}
			if !strings.Contains(tt.cmd.Long, "policy ") {
				t.Error("Long description should contain examples")
			}
			for _, name := range tt.flags {
				if tt.cmd.Flags().Lookup(name) == nil {
					t.Errorf("--%s flag not found", name)
				}
			}
		})
	}
}

func TestSearchCmd_LimitDefault(t *testing.T) {
	flag := NewSearchCmd().Flags().Lookup("limit")
	if flag == nil || flag.DefValue != "5" {
		t.Errorf("--limit default should be 5, got %v", flag)
	}
}

func TestExportCmd_Flags(t *testing.T) {
	cmd := NewExportCmd()
	tests := []struct {
		flagName  string
		shorthand string
		defValue  string
	}{
		{"output", "o", ""},
		{"format", "f", "yaml"},
	}
	for _, tt := range tests {
		flag := cmd.Flags().Lookup(tt.flagName)
		if flag == nil {
			t.Fatalf("--%s flag not found", tt.flagName)
		}
		if flag.Shorthand != tt.shorthand || flag.DefValue != tt.defValue {
			t.Errorf("--%s = (%q, %q), want (%q, %q)", tt.flagName, flag.Shorthand, flag.DefValue, tt.shorthand, tt.defValue)
		}
	}
}

func TestMCPCmd(t *testing.T) {
	cmd := NewMCPCmd()
	if cmd.Use != "mcp" {
		t.Errorf("Use = %q, want %q", cmd.Use, "mcp")
	}
	if !strings.Contains(cmd.Long, "MCP") || !strings.Contains(cmd.Long, "stdio") {
		t.Error("Long description should mention MCP and stdio")
	}
	if !strings.Contains(cmd.Example, "policy mcp") || !strings.Contains(cmd.Example, "claude_desktop_config") {
		t.Error("Example should show how to run and configure the server")
	}
}

func TestChunkWritesChunkLog(t *testing.T) {
	dataDir := setupDataDir(t)
	t.Setenv("CHUNK_SIZE", "200")
	t.Setenv("CHUNK_OVERLAP", "50")
	t.Setenv("MIN_CHUNK_CHARS", "10")

	pagesPath := writePageLog(t, t.TempDir(), "hr-leave",
		strings.Repeat("Annual leave must be approved in advance. ", 12),
		"   ",
	)

	out, err := runRoot(t, "--format", "json", "chunk", pagesPath)
	if err != nil {
		t.Fatalf("chunk failed: %v", err)
	}

	var stats ChunkStats
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if stats.DocID != "hr-leave" || stats.Pages != 2 || stats.SkippedPages != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.Chunks < 2 {
		t.Errorf("expected several chunks, got %d", stats.Chunks)
	}

	chunkLog := filepath.Join(dataDir, "chunks", "hr-leave.chunks.jsonl")
	if stats.ChunkLog != chunkLog {
		t.Errorf("ChunkLog = %s, want %s", stats.ChunkLog, chunkLog)
	}
	if _, err := os.Stat(chunkLog); err != nil {
		t.Errorf("chunk log not written: %v", err)
	}
}

func TestChunkDocIDOverride(t *testing.T) {
	dataDir := setupDataDir(t)
	pagesPath := writePageLog(t, t.TempDir(), "scan", strings.Repeat("Travel must be booked early. ", 10))

	if _, err := runRoot(t, "--quiet", "chunk", "--doc-id", "travel", pagesPath); err != nil {
		t.Fatalf("chunk failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dataDir, "chunks", "travel.chunks.jsonl")); err != nil {
		t.Errorf("expected chunk log under overridden id: %v", err)
	}
}

func TestChunkRejectsInvalidConfig(t *testing.T) {
	setupDataDir(t)
	t.Setenv("CHUNK_SIZE", "100")
	t.Setenv("CHUNK_OVERLAP", "100")
	pagesPath := writePageLog(t, t.TempDir(), "x", "text")

	if _, err := runRoot(t, "chunk", pagesPath); err == nil {
		t.Fatal("expected configuration error")
	}
}

func TestDocsEmptyAndSeeded(t *testing.T) {
	dataDir := setupDataDir(t)

	out, err := runRoot(t, "--format", "json", "docs")
	if err != nil {
		t.Fatalf("docs failed: %v", err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Errorf("expected empty JSON list, got %q", out)
	}

	seedIndex(t, dataDir)
	out, err = runRoot(t, "docs")
	if err != nil {
		t.Fatalf("docs failed: %v", err)
	}
	for _, want := range []string{"hr-leave", "Leave Policy", "Total: 1 document(s)"} {
		if !strings.Contains(out, want) {
			t.Errorf("docs output should contain %q, got:\n%s", want, out)
		}
	}
}

func TestDeleteRemovesDocument(t *testing.T) {
	dataDir := setupDataDir(t)
	seedIndex(t, dataDir)

	out, err := runRoot(t, "delete", "hr-leave")
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if !strings.Contains(out, "Removed 2 chunk(s)") {
		t.Errorf("unexpected output %q", out)
	}

	out, err = runRoot(t, "delete", "hr-leave")
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if !strings.Contains(out, "No indexed chunks") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestExportJSON(t *testing.T) {
	dataDir := setupDataDir(t)
	seedIndex(t, dataDir)

	out, err := runRoot(t, "export", "-f", "json")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	var data sqlite.ExportData
	if err := json.Unmarshal([]byte(out), &data); err != nil {
		t.Fatalf("export is not JSON: %v", err)
	}
	if data.Tool != "policy" || len(data.Chunks) != 2 || len(data.Documents) != 1 {
		t.Errorf("unexpected export %+v", data)
	}

	outPath := filepath.Join(t.TempDir(), "backup.yaml")
	if _, err := runRoot(t, "--quiet", "export", "-o", outPath); err != nil {
		t.Fatalf("export to file failed: %v", err)
	}
	content, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(content), "tool: policy") {
		t.Errorf("expected YAML export, got:\n%s", content)
	}
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	setupDataDir(t)
	if _, err := runRoot(t, "export", "-f", "markdown"); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestSearchRequiresCredentials(t *testing.T) {
	setupDataDir(t)
	_, err := runRoot(t, "search", "annual leave")
	if err == nil || !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Fatalf("expected missing credentials error, got %v", err)
	}
}

func TestSearchValidatesLimit(t *testing.T) {
	setupDataDir(t)
	if _, err := runRoot(t, "search", "--limit", "0", "q"); err == nil {
		t.Fatal("expected error for --limit 0")
	}
}

func TestAssignDocID(t *testing.T) {
	pages := []models.PageRecord{{DocID: "a", PageNumber: 1}, {DocID: "a", PageNumber: 2}}

	id, got, err := assignDocID(pages, "")
	if err != nil || id != "a" || len(got) != 2 {
		t.Errorf("unexpected (%q, %v, %v)", id, got, err)
	}

	id, got, err = assignDocID(pages, "b")
	if err != nil || id != "b" || got[1].DocID != "b" {
		t.Errorf("override not applied: (%q, %v, %v)", id, got, err)
	}
	if pages[0].DocID != "a" {
		t.Error("override should not mutate the input")
	}

	mixed := []models.PageRecord{{DocID: "a", PageNumber: 1}, {DocID: "c", PageNumber: 2}}
	if _, _, err := assignDocID(mixed, ""); err == nil {
		t.Error("expected error for mixed documents")
	}
	if _, _, err := assignDocID(nil, ""); err == nil {
		t.Error("expected error for empty page log")
	}
}
