// ABOUTME: Data directory layout and line-delimited JSON page/chunk logs
// ABOUTME: One pages log and one chunks log per document, re-derivable and never hand edited
package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/harper/policy-rag/internal/models"
)

const (
	// PagesSuffix is the file suffix of page logs
	PagesSuffix = ".pages.jsonl"
	// ChunksSuffix is the file suffix of chunk logs
	ChunksSuffix = ".chunks.jsonl"

	maxLineBytes = 16 * 1024 * 1024
)

// Logs manages the page and chunk logs below a data directory
type Logs struct {
	basePath string
}

// NewLogs creates the pages/ and chunks/ directories below basePath
func NewLogs(basePath string) (*Logs, error) {
	l := &Logs{basePath: basePath}
	for _, dir := range []string{l.PagesDir(), l.ChunksDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return l, nil
}

// BasePath returns the data directory
func (l *Logs) BasePath() string {
	return l.basePath
}

// PagesDir returns the directory holding page logs
func (l *Logs) PagesDir() string {
	return filepath.Join(l.basePath, "pages")
}

// ChunksDir returns the directory holding chunk logs
func (l *Logs) ChunksDir() string {
	return filepath.Join(l.basePath, "chunks")
}

// PagesPath returns the page log path of a document
func (l *Logs) PagesPath(docID string) string {
	return filepath.Join(l.PagesDir(), EncodeDocID(docID)+PagesSuffix)
}

// ChunksPath returns the chunk log path of a document
func (l *Logs) ChunksPath(docID string) string {
	return filepath.Join(l.ChunksDir(), EncodeDocID(docID)+ChunksSuffix)
}

// EncodeDocID maps a document id to a file name stem that DecodeDocID reverses.
// Letters, digits, '_' and '-' are kept; every other byte becomes %XX.
func EncodeDocID(docID string) string {
	var b strings.Builder
	for _, r := range docID {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' {
			b.WriteRune(r)
			continue
		}
		var buf [utf8.UTFMax]byte
		n := utf8.EncodeRune(buf[:], r)
		for _, c := range buf[:n] {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

// DecodeDocID reverses EncodeDocID
func DecodeDocID(stem string) (string, error) {
	return url.PathUnescape(stem)
}

// DocIDFromPath returns the document id encoded in a page or chunk log file name.
// A stem that is not a valid encoding is returned as is.
func DocIDFromPath(path string) (string, bool) {
	base := filepath.Base(path)
	for _, suffix := range []string{PagesSuffix, ChunksSuffix} {
		if stem, ok := strings.CutSuffix(base, suffix); ok && stem != "" {
			if id, err := DecodeDocID(stem); err == nil && id != "" {
				return id, true
			}
			return stem, true
		}
	}
	return "", false
}

// ReadPages reads a page log. Records without doc_id take the id from the file name.
func ReadPages(path string) ([]models.PageRecord, error) {
	pages, err := readJSONL[models.PageRecord](path)
	if err != nil {
		return nil, err
	}
	fallback, _ := DocIDFromPath(path)
	for i := range pages {
		if pages[i].DocID == "" {
			pages[i].DocID = fallback
		}
		if err := pages[i].Validate(); err != nil {
			return nil, fmt.Errorf("%s: record %d: %w", path, i+1, err)
		}
	}
	return pages, nil
}

// ReadPages reads the page log of a document
func (l *Logs) ReadPages(docID string) ([]models.PageRecord, error) {
	return ReadPages(l.PagesPath(docID))
}

// WritePages replaces the page log of a document
func (l *Logs) WritePages(docID string, pages []models.PageRecord) error {
	return writeJSONLAtomic(l.PagesPath(docID), pages)
}

// WriteChunks replaces the chunk log of a document
func (l *Logs) WriteChunks(docID string, chunks []models.ChunkRecord) error {
	return writeJSONLAtomic(l.ChunksPath(docID), chunks)
}

// AppendChunks appends records to the chunk log of a document
func (l *Logs) AppendChunks(docID string, chunks []models.ChunkRecord) error {
	file, err := os.OpenFile(l.ChunksPath(docID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to open chunk log: %w", err)
	}
	if err := encodeJSONL(file, chunks); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// ReadChunks reads the chunk log of a document
func (l *Logs) ReadChunks(docID string) ([]models.ChunkRecord, error) {
	return readJSONL[models.ChunkRecord](l.ChunksPath(docID))
}

// DeleteDocument removes the page and chunk logs of a document; missing logs are ignored
func (l *Logs) DeleteDocument(docID string) error {
	for _, path := range []string{l.PagesPath(docID), l.ChunksPath(docID)} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return nil
}

// PageLogPaths lists every page log in the pages directory, sorted
func (l *Logs) PageLogPaths() ([]string, error) {
	entries, err := os.ReadDir(l.PagesDir())
	if err != nil {
		return nil, fmt.Errorf("failed to list pages directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), PagesSuffix) {
			continue
		}
		paths = append(paths, filepath.Join(l.PagesDir(), e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// PageLogs lists the document ids named by the page logs, sorted
func (l *Logs) PageLogs() ([]string, error) {
	paths, err := l.PageLogPaths()
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, path := range paths {
		if id, ok := DocIDFromPath(path); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// readJSONL decodes one record per non-blank line
func readJSONL[T any](path string) ([]T, error) {
	file, err := os.Open(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var records []T
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var rec T
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("%s:%d: malformed record: %w", path, line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return records, nil
}

func encodeJSONL[T any](w io.Writer, records []T) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to encode record: %w", err)
		}
	}
	return bw.Flush()
}

// writeJSONLAtomic writes records to a temp file and renames it over path
func writeJSONLAtomic[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := encodeJSONL(tmp, records); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
