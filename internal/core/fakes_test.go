// ABOUTME: In-memory fakes of the embedder, chat model and vector index for core tests
// ABOUTME: The fake index uses squared Euclidean distance like the SQLite index
package core

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"github.com/harper/policy-rag/internal/llm"
	"github.com/harper/policy-rag/internal/models"
)

type fakeEmbedder struct {
	mu       sync.Mutex
	vectors  map[string][]float64
	fallback []float64
	err      error
	calls    int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		if v, ok := f.vectors[t]; ok {
			out[i] = v
		} else {
			out[i] = f.fallback
		}
	}
	return out, nil
}

func (f *fakeEmbedder) Model() string { return "fake-embedding" }

type fakeChat struct {
	reply    string
	err      error
	calls    int
	messages []llm.ChatMessage
}

func (f *fakeChat) Chat(_ context.Context, messages []llm.ChatMessage) (string, error) {
	f.calls++
	f.messages = messages
	return f.reply, f.err
}

type memEntry struct {
	id     string
	text   string
	vector []float64
	meta   models.ChunkMetadata
}

type memIndex struct {
	mu      sync.Mutex
	entries map[string]memEntry
	deletes []models.Filter
}

func newMemIndex() *memIndex {
	return &memIndex{entries: make(map[string]memEntry)}
}

func (m *memIndex) Upsert(_ context.Context, ids, texts []string, embeddings [][]float64, metadatas []models.ChunkMetadata) error {
	if len(ids) != len(texts) || len(ids) != len(embeddings) || len(ids) != len(metadatas) {
		return errors.New("length mismatch")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, id := range ids {
		m.entries[id] = memEntry{id: id, text: texts[i], vector: embeddings[i], meta: metadatas[i]}
	}
	return nil
}

func (m *memIndex) Query(_ context.Context, embedding []float64, topK int, filter models.Filter) ([]models.QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.QueryResult
	for _, e := range m.entries {
		if !matches(e.meta, filter) {
			continue
		}
		out = append(out, models.QueryResult{ID: e.id, Text: e.text, Distance: sqDist(e.vector, embedding), Metadata: e.meta})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (m *memIndex) Delete(_ context.Context, filter models.Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, filter)
	var n int64
	for id, e := range m.entries {
		if matches(e.meta, filter) {
			delete(m.entries, id)
			n++
		}
	}
	return n, nil
}

func (m *memIndex) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries), nil
}

func (m *memIndex) Get(_ context.Context, filter models.Filter, limit int) ([]models.StoredChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.StoredChunk
	for _, e := range m.entries {
		if matches(e.meta, filter) {
			out = append(out, models.StoredChunk{ID: e.id, Text: e.text, Metadata: e.meta})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Metadata, out[j].Metadata
		if a.PageNumber != b.PageNumber {
			return a.PageNumber < b.PageNumber
		}
		return a.ChunkIndex < b.ChunkIndex
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memIndex) add(id, text string, vector []float64, meta models.ChunkMetadata) {
	m.entries[id] = memEntry{id: id, text: text, vector: vector, meta: meta}
}

func matches(md models.ChunkMetadata, filter models.Filter) bool {
	for k, v := range filter {
		switch k {
		case models.FieldDocumentID:
			if md.DocID != v {
				return false
			}
		case models.FieldPageNumber:
			if md.PageNumber != v {
				return false
			}
		case models.FieldCategory:
			if md.Category != v {
				return false
			}
		case models.FieldTitle:
			if md.Title != v {
				return false
			}
		case models.FieldSectionPath:
			if md.SectionPath != v {
				return false
			}
		}
	}
	return true
}

func sqDist(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.NaN()
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

type recordingWriter struct {
	mu     sync.Mutex
	chunks map[string][]models.ChunkRecord
	err    error
}

func (w *recordingWriter) WriteChunks(docID string, chunks []models.ChunkRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	if w.chunks == nil {
		w.chunks = make(map[string][]models.ChunkRecord)
	}
	w.chunks[docID] = chunks
	return nil
}
