// ABOUTME: Vector index over the chunks table with metadata filters
// ABOUTME: Brute-force squared Euclidean search; mismatched dimensions yield NaN and sort last
package sqlite

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/harper/policy-rag/internal/models"
)

// filterColumns maps filter fields to chunk columns
var filterColumns = map[string]string{
	models.FieldDocumentID:  "document_id",
	models.FieldPageNumber:  "page_number",
	models.FieldCategory:    "category",
	models.FieldTitle:       "title",
	models.FieldSectionPath: "section_path",
}

// Index stores chunk vectors and answers similarity queries
type Index struct {
	db    *DB
	model string
}

// NewIndex creates an Index whose upserts are tagged with embeddingModel
func NewIndex(db *DB, embeddingModel string) *Index {
	return &Index{db: db, model: embeddingModel}
}

// Upsert inserts or replaces chunks; all slices must have the same length
func (ix *Index) Upsert(ctx context.Context, ids, texts []string, embeddings [][]float64, metadatas []models.ChunkMetadata) error {
	n := len(ids)
	if len(texts) != n || len(embeddings) != n || len(metadatas) != n {
		return fmt.Errorf("upsert length mismatch: %d ids, %d texts, %d embeddings, %d metadatas",
			n, len(texts), len(embeddings), len(metadatas))
	}

	tx, err := ix.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, page_number, chunk_index, char_start, char_end,
			section_path, title, category, text, embedding_model, dimension, vector, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document_id = excluded.document_id,
			page_number = excluded.page_number,
			chunk_index = excluded.chunk_index,
			char_start = excluded.char_start,
			char_end = excluded.char_end,
			section_path = excluded.section_path,
			title = excluded.title,
			category = excluded.category,
			text = excluded.text,
			embedding_model = excluded.embedding_model,
			dimension = excluded.dimension,
			vector = excluded.vector,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now()
	for i, id := range ids {
		if id == "" {
			return errors.New("chunk id cannot be empty")
		}
		md := metadatas[i]
		if md.DocID == "" {
			return fmt.Errorf("chunk %s has no document id", id)
		}
		if _, err := stmt.ExecContext(ctx, id, md.DocID, md.PageNumber, md.ChunkIndex, md.CharStart, md.CharEnd,
			md.SectionPath, md.Title, md.Category, texts[i], ix.model, len(embeddings[i]),
			vectorToBlob(embeddings[i]), now, now); err != nil {
			return fmt.Errorf("failed to upsert chunk %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// Query returns up to topK chunks matching filter, closest first
func (ix *Index) Query(ctx context.Context, embedding []float64, topK int, filter models.Filter) ([]models.QueryResult, error) {
	if topK < 1 {
		return nil, fmt.Errorf("top_k must be >= 1, got %d", topK)
	}
	where, args, err := whereClause(filter)
	if err != nil {
		return nil, err
	}

	rows, err := ix.db.QueryContext(ctx, `
		SELECT id, document_id, page_number, chunk_index, char_start, char_end,
			section_path, title, category, text, vector
		FROM chunks`+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []models.QueryResult
	for rows.Next() {
		var (
			res  models.QueryResult
			md   models.ChunkMetadata
			blob []byte
		)
		if err := rows.Scan(&res.ID, &md.DocID, &md.PageNumber, &md.ChunkIndex, &md.CharStart, &md.CharEnd,
			&md.SectionPath, &md.Title, &md.Category, &res.Text, &blob); err != nil {
			return nil, err
		}
		res.Metadata = md
		res.Distance = SquaredL2(embedding, blobToVector(blob))
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		di, dj := results[i].Distance, results[j].Distance
		if math.IsNaN(dj) {
			return !math.IsNaN(di)
		}
		if math.IsNaN(di) {
			return false
		}
		if di != dj {
			return di < dj
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Delete removes chunks matching filter; an empty filter removes everything
func (ix *Index) Delete(ctx context.Context, filter models.Filter) (int64, error) {
	where, args, err := whereClause(filter)
	if err != nil {
		return 0, err
	}
	res, err := ix.db.ExecContext(ctx, "DELETE FROM chunks"+where, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of indexed chunks
func (ix *Index) Count(ctx context.Context) (int, error) {
	var n int
	err := ix.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n)
	return n, err
}

// Get returns chunks matching filter ordered by document, page and chunk index; limit <= 0 means all
func (ix *Index) Get(ctx context.Context, filter models.Filter, limit int) ([]models.StoredChunk, error) {
	where, args, err := whereClause(filter)
	if err != nil {
		return nil, err
	}
	query := `
		SELECT id, document_id, page_number, chunk_index, char_start, char_end,
			section_path, title, category, text, embedding_model
		FROM chunks` + where + `
		ORDER BY document_id, page_number, chunk_index, char_start`
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := ix.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var chunks []models.StoredChunk
	for rows.Next() {
		var c models.StoredChunk
		md := &c.Metadata
		if err := rows.Scan(&c.ID, &md.DocID, &md.PageNumber, &md.ChunkIndex, &md.CharStart, &md.CharEnd,
			&md.SectionPath, &md.Title, &md.Category, &c.Text, &c.EmbeddingModel); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// Documents lists indexed documents with chunk and page counts
func (ix *Index) Documents(ctx context.Context) ([]models.DocumentInfo, error) {
	rows, err := ix.db.QueryContext(ctx, `
		SELECT document_id, MAX(title), MAX(category), COUNT(*),
			COUNT(DISTINCT CASE WHEN page_number > 0 THEN page_number END)
		FROM chunks
		GROUP BY document_id
		ORDER BY document_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []models.DocumentInfo
	for rows.Next() {
		var d models.DocumentInfo
		if err := rows.Scan(&d.DocID, &d.Title, &d.Category, &d.Chunks, &d.Pages); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// whereClause renders filter as a parameterised WHERE clause
func whereClause(filter models.Filter) (string, []any, error) {
	if len(filter) == 0 {
		return "", nil, nil
	}
	if err := filter.Validate(); err != nil {
		return "", nil, err
	}

	conds := make([]string, 0, len(filter))
	args := make([]any, 0, len(filter))
	for _, k := range filter.Keys() {
		conds = append(conds, filterColumns[k]+" = ?")
		args = append(args, filter[k])
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// SquaredL2 returns the squared Euclidean distance, or NaN when dimensions differ
func SquaredL2(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.NaN()
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// vectorToBlob converts a float64 slice to binary blob
func vectorToBlob(vector []float64) []byte {
	blob := make([]byte, len(vector)*8)
	for i, v := range vector {
		binary.LittleEndian.PutUint64(blob[i*8:], math.Float64bits(v))
	}
	return blob
}

// blobToVector converts a binary blob to float64 slice
func blobToVector(blob []byte) []float64 {
	count := len(blob) / 8
	vector := make([]float64, count)
	for i := 0; i < count; i++ {
		bits := binary.LittleEndian.Uint64(blob[i*8:])
		vector[i] = math.Float64frombits(bits)
	}
	return vector
}
