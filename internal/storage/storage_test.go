// ABOUTME: Tests for the page and chunk log layout
// ABOUTME: Covers reversible doc id paths, atomic rewrites, appends and malformed lines
package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harper/policy-rag/internal/models"
)

func newTestLogs(t *testing.T) *Logs {
	t.Helper()
	logs, err := NewLogs(t.TempDir())
	if err != nil {
		t.Fatalf("NewLogs failed: %v", err)
	}
	return logs
}

func TestNewLogsCreatesDirectories(t *testing.T) {
	logs := newTestLogs(t)
	for _, dir := range []string{logs.PagesDir(), logs.ChunksDir()} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected %s to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Errorf("expected %s to be a directory", dir)
		}
	}
}

func TestEncodeDocID(t *testing.T) {
	tests := map[string]string{
		"policy-2024_v1": "policy-2024_v1",
		"奖学金办法":          "奖学金办法",
		"rôle":           "rôle",
		"a/b c":          "a%2Fb%20c",
		"policy.v2":      "policy%2Ev2",
		"../etc":         "%2E%2E%2Fetc",
		"50%":            "50%25",
		"第3条（试行）":        "第3条%EF%BC%88试行%EF%BC%89",
	}
	for in, want := range tests {
		got := EncodeDocID(in)
		if got != want {
			t.Errorf("EncodeDocID(%q) = %q, want %q", in, got, want)
		}
		back, err := DecodeDocID(got)
		if err != nil || back != in {
			t.Errorf("DecodeDocID(%q) = %q, %v; want %q", got, back, err, in)
		}
	}
}

func TestPathsKeepDistinctIDsApart(t *testing.T) {
	logs := newTestLogs(t)

	ids := []string{"奖学金办法", "助学金办法", "policy.v2", "policy_v2", "a/b", "a_b"}
	seen := make(map[string]string)
	for _, id := range ids {
		p := logs.PagesPath(id)
		if other, ok := seen[p]; ok {
			t.Fatalf("%q and %q share page log %s", id, other, p)
		}
		seen[p] = id
		if filepath.Dir(p) != logs.PagesDir() {
			t.Errorf("page log of %q escapes the pages dir: %s", id, p)
		}
	}

	got := logs.PagesPath("hr/leave policy")
	want := filepath.Join(logs.BasePath(), "pages", "hr%2Fleave%20policy.pages.jsonl")
	if got != want {
		t.Errorf("PagesPath = %q, want %q", got, want)
	}
	if !strings.HasSuffix(logs.ChunksPath("x"), filepath.Join("chunks", "x.chunks.jsonl")) {
		t.Errorf("unexpected chunks path %q", logs.ChunksPath("x"))
	}
}

func TestNonASCIIDocumentsKeepSeparateLogs(t *testing.T) {
	logs := newTestLogs(t)

	for id, text := range map[string]string{"奖学金办法": "奖学金按月发放。", "助学金办法": "助学金按学期发放。"} {
		if err := logs.WritePages(id, []models.PageRecord{{DocID: id, PageNumber: 1, Text: text}}); err != nil {
			t.Fatalf("WritePages(%q) failed: %v", id, err)
		}
		if err := logs.WriteChunks(id, []models.ChunkRecord{{DocID: id, PageNumber: 1, CharStart: 0, CharEnd: 4, Text: text}}); err != nil {
			t.Fatalf("WriteChunks(%q) failed: %v", id, err)
		}
	}

	pages, err := logs.ReadPages("奖学金办法")
	if err != nil {
		t.Fatalf("ReadPages failed: %v", err)
	}
	if len(pages) != 1 || pages[0].DocID != "奖学金办法" || pages[0].Text != "奖学金按月发放。" {
		t.Errorf("page log was overwritten by another document: %+v", pages)
	}

	chunks, err := logs.ReadChunks("助学金办法")
	if err != nil {
		t.Fatalf("ReadChunks failed: %v", err)
	}
	if len(chunks) != 1 || chunks[0].DocID != "助学金办法" {
		t.Errorf("chunk log was overwritten by another document: %+v", chunks)
	}

	ids, err := logs.PageLogs()
	if err != nil {
		t.Fatalf("PageLogs failed: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("expected two page logs, got %v", ids)
	}
}

func TestDocIDFromPath(t *testing.T) {
	logs := newTestLogs(t)

	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"/data/pages/hr.pages.jsonl", "hr", true},
		{"hr.chunks.jsonl", "hr", true},
		{logs.PagesPath("policy.v2"), "policy.v2", true},
		{logs.ChunksPath("奖学金办法"), "奖学金办法", true},
		{logs.PagesPath("a/b c"), "a/b c", true},
		{"policy.v3.pages.jsonl", "policy.v3", true},
		{"50%off.pages.jsonl", "50%off", true},
		{"notes.txt", "", false},
		{".pages.jsonl", "", false},
	}
	for _, tt := range tests {
		id, ok := DocIDFromPath(tt.path)
		if id != tt.want || ok != tt.ok {
			t.Errorf("DocIDFromPath(%q) = %q, %v; want %q, %v", tt.path, id, ok, tt.want, tt.ok)
		}
	}
}

func TestWriteAndReadPages(t *testing.T) {
	logs := newTestLogs(t)
	pages := []models.PageRecord{
		{DocID: "hr", PageNumber: 1, Text: "Annual leave is 20 days."},
		{DocID: "hr", PageNumber: 2, Text: "Sick leave requires a \"certificate\"."},
	}
	if err := logs.WritePages("hr", pages); err != nil {
		t.Fatalf("WritePages failed: %v", err)
	}

	got, err := logs.ReadPages("hr")
	if err != nil {
		t.Fatalf("ReadPages failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(got))
	}
	if got[1] != pages[1] {
		t.Errorf("page mismatch: %+v vs %+v", got[1], pages[1])
	}
}

func TestReadPagesFillsDocIDAndSkipsBlankLines(t *testing.T) {
	logs := newTestLogs(t)
	content := "{\"page_number\":1,\"text\":\"one\"}\n\n   \n{\"page_number\":2,\"text\":\"two\"}\n"
	if err := os.WriteFile(logs.PagesPath("guide"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	pages, err := logs.ReadPages("guide")
	if err != nil {
		t.Fatalf("ReadPages failed: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}
	for _, p := range pages {
		if p.DocID != "guide" {
			t.Errorf("expected doc id from file name, got %q", p.DocID)
		}
	}
}

func TestReadPagesMalformedLine(t *testing.T) {
	logs := newTestLogs(t)
	content := "{\"doc_id\":\"hr\",\"page_number\":1,\"text\":\"ok\"}\n{not json}\n"
	if err := os.WriteFile(logs.PagesPath("hr"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := logs.ReadPages("hr")
	if err == nil {
		t.Fatal("expected error for malformed line")
	}
	if !strings.Contains(err.Error(), ":2:") {
		t.Errorf("expected error to name line 2, got %v", err)
	}
}

func TestReadPagesRejectsInvalidPage(t *testing.T) {
	logs := newTestLogs(t)
	content := "{\"doc_id\":\"hr\",\"page_number\":0,\"text\":\"ok\"}\n"
	if err := os.WriteFile(logs.PagesPath("hr"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := logs.ReadPages("hr"); err == nil {
		t.Fatal("expected error for page_number 0")
	}
}

func TestWriteChunksReplacesLog(t *testing.T) {
	logs := newTestLogs(t)
	first := []models.ChunkRecord{
		{DocID: "hr", PageNumber: 1, ChunkIndex: 0, CharStart: 0, CharEnd: 5, Text: "alpha"},
		{DocID: "hr", PageNumber: 1, ChunkIndex: 1, CharStart: 5, CharEnd: 9, Text: "beta"},
	}
	second := []models.ChunkRecord{
		{DocID: "hr", PageNumber: 2, ChunkIndex: 0, CharStart: 0, CharEnd: 5, Text: "gamma"},
	}

	if err := logs.WriteChunks("hr", first); err != nil {
		t.Fatalf("WriteChunks failed: %v", err)
	}
	if err := logs.WriteChunks("hr", second); err != nil {
		t.Fatalf("WriteChunks failed: %v", err)
	}

	got, err := logs.ReadChunks("hr")
	if err != nil {
		t.Fatalf("ReadChunks failed: %v", err)
	}
	if len(got) != 1 || got[0].Text != "gamma" {
		t.Errorf("expected only the second write, got %+v", got)
	}

	entries, err := os.ReadDir(logs.ChunksDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected no temp files left behind, got %d entries", len(entries))
	}
}

func TestAppendChunks(t *testing.T) {
	logs := newTestLogs(t)
	a := []models.ChunkRecord{{DocID: "hr", PageNumber: 1, Text: "a"}}
	b := []models.ChunkRecord{{DocID: "hr", PageNumber: 2, Text: "b"}}

	if err := logs.AppendChunks("hr", a); err != nil {
		t.Fatalf("AppendChunks failed: %v", err)
	}
	if err := logs.AppendChunks("hr", b); err != nil {
		t.Fatalf("AppendChunks failed: %v", err)
	}

	got, err := logs.ReadChunks("hr")
	if err != nil {
		t.Fatalf("ReadChunks failed: %v", err)
	}
	if len(got) != 2 || got[0].Text != "a" || got[1].Text != "b" {
		t.Errorf("unexpected chunks %+v", got)
	}
}

func TestReadChunksMissing(t *testing.T) {
	logs := newTestLogs(t)
	if _, err := logs.ReadChunks("nope"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestPageLogsAndDelete(t *testing.T) {
	logs := newTestLogs(t)
	page := []models.PageRecord{{DocID: "b", PageNumber: 1, Text: "x"}}
	if err := logs.WritePages("b", page); err != nil {
		t.Fatal(err)
	}
	page[0].DocID = "a"
	if err := logs.WritePages("a", page); err != nil {
		t.Fatal(err)
	}
	if err := logs.WriteChunks("a", []models.ChunkRecord{{DocID: "a", PageNumber: 1, Text: "x"}}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(logs.PagesDir(), "README.md"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	ids, err := logs.PageLogs()
	if err != nil {
		t.Fatalf("PageLogs failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("expected [a b], got %v", ids)
	}

	paths, err := logs.PageLogPaths()
	if err != nil {
		t.Fatalf("PageLogPaths failed: %v", err)
	}
	if len(paths) != 2 || paths[0] != logs.PagesPath("a") || paths[1] != logs.PagesPath("b") {
		t.Errorf("unexpected page log paths %v", paths)
	}

	if err := logs.DeleteDocument("a"); err != nil {
		t.Fatalf("DeleteDocument failed: %v", err)
	}
	if err := logs.DeleteDocument("a"); err != nil {
		t.Errorf("second delete should be a no-op, got %v", err)
	}
	if _, err := os.Stat(logs.ChunksPath("a")); !os.IsNotExist(err) {
		t.Error("expected chunk log to be removed")
	}
}
