// ABOUTME: Watches the pages directory and re-ingests page logs when they change
// ABOUTME: Events are debounced and unchanged content is skipped by hash
package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/harper/policy-rag/internal/core"
	"github.com/harper/policy-rag/internal/models"
	"github.com/harper/policy-rag/internal/storage"
)

// DefaultDebounce is the quiet period before a changed file is processed
const DefaultDebounce = 500 * time.Millisecond

// Ingester indexes one document
type Ingester interface {
	Ingest(ctx context.Context, doc core.DocumentInput) (core.IngestReport, error)
}

// Remover drops index entries matching a filter
type Remover interface {
	Delete(ctx context.Context, filter models.Filter) (int64, error)
}

// DescribeFunc returns the title and category to index a document with
type DescribeFunc func(ctx context.Context, docID string) (title, category string)

// Config holds watcher configuration
type Config struct {
	PagesDir string
	Ingester Ingester
	Remover  Remover
	Describe DescribeFunc
	Debounce time.Duration
	Logger   *log.Logger
}

// Watcher re-ingests page logs as they change
type Watcher struct {
	pagesDir string
	ingester Ingester
	remover  Remover
	describe DescribeFunc
	logger   *log.Logger

	watcher  *fsnotify.Watcher
	debounce time.Duration
	pending  map[string]time.Time
	mu       sync.Mutex

	hashes map[string]string
	docIDs map[string]string
	hashMu sync.Mutex
}

// New creates a watcher for cfg.PagesDir
func New(cfg Config) (*Watcher, error) {
	if cfg.Ingester == nil {
		return nil, errors.New("watcher requires an ingester")
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &Watcher{
		pagesDir: cfg.PagesDir,
		ingester: cfg.Ingester,
		remover:  cfg.Remover,
		describe: cfg.Describe,
		logger:   logger,
		watcher:  fsWatcher,
		debounce: debounce,
		pending:  make(map[string]time.Time),
		hashes:   make(map[string]string),
		docIDs:   make(map[string]string),
	}, nil
}

// Start begins watching; event processing stops when ctx is cancelled
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.pagesDir); err != nil {
		return err
	}
	w.logger.Info("watching pages", "path", w.pagesDir)

	go w.processEvents(ctx)
	go w.processDebounced(ctx)
	return nil
}

// Stop closes the underlying file watcher
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

// Seed records the current hash and document id of every page log so unchanged
// files are not re-ingested and removed files drop the right document
func (w *Watcher) Seed() error {
	entries, err := os.ReadDir(w.pagesDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !isPagesLog(e.Name()) {
			continue
		}
		path := filepath.Join(w.pagesDir, e.Name())
		hash, err := fileHash(path)
		if err != nil {
			continue
		}
		w.setHash(path, hash)
		if docID, ok := logDocID(path); ok {
			w.setDocID(path, docID)
		}
	}
	return nil
}

func isPagesLog(name string) bool {
	return strings.HasSuffix(name, storage.PagesSuffix)
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isPagesLog(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.mu.Lock()
			w.pending[event.Name] = time.Now()
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) processDebounced(ctx context.Context) {
	ticker := time.NewTicker(w.debounce / 5)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			w.mu.Lock()
			now := time.Now()
			var ready []string
			for path, queued := range w.pending {
				if now.Sub(queued) >= w.debounce {
					ready = append(ready, path)
				}
			}
			for _, path := range ready {
				delete(w.pending, path)
			}
			w.mu.Unlock()

			for _, path := range ready {
				if err := w.HandleFile(ctx, path); err != nil {
					w.logger.Error("failed to process page log", "path", path, "error", err)
				}
			}
		}
	}
}

// HandleFile re-ingests one page log, or drops its document when the file is gone.
// It returns nil without ingesting when the content is unchanged.
func (w *Watcher) HandleFile(ctx context.Context, path string) error {
	docID, ok := storage.DocIDFromPath(path)
	if !ok {
		return nil
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if known, ok := w.forget(path); ok {
			docID = known
		}
		if w.remover == nil {
			return nil
		}
		removed, err := w.remover.Delete(ctx, models.DocFilter(docID))
		if err != nil {
			return err
		}
		w.logger.Info("page log removed, document dropped", "doc_id", docID, "chunks", removed)
		return nil
	}

	hash, err := fileHash(path)
	if err != nil {
		return err
	}
	if w.sameHash(path, hash) {
		w.logger.Debug("page log unchanged, skipping", "path", path)
		return nil
	}

	pages, err := storage.ReadPages(path)
	if err != nil {
		return err
	}
	if len(pages) > 0 {
		docID = pages[0].DocID
	}

	doc := core.DocumentInput{DocID: docID, Pages: pages}
	if w.describe != nil {
		doc.Title, doc.Category = w.describe(ctx, docID)
	}

	report, err := w.ingester.Ingest(ctx, doc)
	if err != nil {
		return err
	}
	w.setHash(path, hash)
	w.setDocID(path, docID)
	w.logger.Info("re-ingested document", "doc_id", docID, "chunks", report.Chunks)
	return nil
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (w *Watcher) sameHash(path, hash string) bool {
	w.hashMu.Lock()
	defer w.hashMu.Unlock()
	return w.hashes[path] == hash
}

func (w *Watcher) setHash(path, hash string) {
	w.hashMu.Lock()
	w.hashes[path] = hash
	w.hashMu.Unlock()
}

func (w *Watcher) setDocID(path, docID string) {
	w.hashMu.Lock()
	w.docIDs[path] = docID
	w.hashMu.Unlock()
}

// forget drops the state of a removed page log and returns the document id it held
func (w *Watcher) forget(path string) (string, bool) {
	w.hashMu.Lock()
	defer w.hashMu.Unlock()
	docID, ok := w.docIDs[path]
	delete(w.hashes, path)
	delete(w.docIDs, path)
	return docID, ok
}

// logDocID returns the document id recorded inside a page log, falling back to its file name
func logDocID(path string) (string, bool) {
	if pages, err := storage.ReadPages(path); err == nil && len(pages) > 0 {
		return pages[0].DocID, true
	}
	return storage.DocIDFromPath(path)
}
