// ABOUTME: ChunkEngine splits normalized page text into fixed-size overlapping windows
// ABOUTME: Offsets are rune positions in the normalized text so quotes stay traceable
package core

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/harper/policy-rag/internal/models"
)

// ErrInvalidChunkConfig is returned for unusable chunking parameters
var ErrInvalidChunkConfig = errors.New("invalid chunk configuration")

// Default chunking parameters
const (
	DefaultChunkSize     = 1000
	DefaultChunkOverlap  = 150
	DefaultMinChunkChars = 80
)

// ChunkParams controls the sliding window
type ChunkParams struct {
	ChunkSize     int
	Overlap       int
	MinChunkChars int
}

// DefaultChunkParams returns the default window parameters
func DefaultChunkParams() ChunkParams {
	return ChunkParams{
		ChunkSize:     DefaultChunkSize,
		Overlap:       DefaultChunkOverlap,
		MinChunkChars: DefaultMinChunkChars,
	}
}

// Validate rejects parameter combinations instead of clamping them
func (p ChunkParams) Validate() error {
	if p.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be > 0, got %d", ErrInvalidChunkConfig, p.ChunkSize)
	}
	if p.Overlap < 0 {
		return fmt.Errorf("%w: overlap must be >= 0, got %d", ErrInvalidChunkConfig, p.Overlap)
	}
	if p.Overlap >= p.ChunkSize {
		return fmt.Errorf("%w: overlap must be < chunk_size, got overlap=%d chunk_size=%d", ErrInvalidChunkConfig, p.Overlap, p.ChunkSize)
	}
	if p.MinChunkChars < 0 {
		return fmt.Errorf("%w: min_chunk_chars must be >= 0, got %d", ErrInvalidChunkConfig, p.MinChunkChars)
	}
	return nil
}

// ChunkEngine turns pages into chunk records
type ChunkEngine struct {
	params ChunkParams
}

// NewChunkEngine creates a ChunkEngine, failing fast on invalid parameters
func NewChunkEngine(params ChunkParams) (*ChunkEngine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &ChunkEngine{params: params}, nil
}

// Params returns the engine's window parameters
func (ce *ChunkEngine) Params() ChunkParams {
	return ce.params
}

// ChunkPages chunks every page in order
func (ce *ChunkEngine) ChunkPages(pages []models.PageRecord) []models.ChunkRecord {
	var chunks []models.ChunkRecord

	for _, page := range pages {
		normalized := NormalizePageText(page.Text)
		if normalized == "" {
			continue
		}

		chunkIndex := 0
		for _, sp := range windowSpans(normalized, ce.params.ChunkSize, ce.params.Overlap) {
			if utf8.RuneCountInString(sp.text) < ce.params.MinChunkChars {
				continue
			}
			chunks = append(chunks, models.ChunkRecord{
				DocID:      page.DocID,
				PageNumber: page.PageNumber,
				ChunkIndex: chunkIndex,
				CharStart:  sp.start,
				CharEnd:    sp.end,
				Text:       sp.text,
			})
			chunkIndex++
		}
	}

	return chunks
}

// ChunkPages validates params and chunks pages in one call
func ChunkPages(pages []models.PageRecord, params ChunkParams) ([]models.ChunkRecord, error) {
	ce, err := NewChunkEngine(params)
	if err != nil {
		return nil, err
	}
	return ce.ChunkPages(pages), nil
}

// NormalizePageText unifies line endings, trims every line, drops blank lines
// and joins the rest with a single newline
func NormalizePageText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			kept = append(kept, line)
		}
	}

	return strings.TrimSpace(strings.Join(kept, "\n"))
}

type span struct {
	start int
	end   int
	text  string
}

// windowSpans slides a chunkSize window with stride chunkSize-overlap.
// Windows that trim to nothing are dropped.
func windowSpans(text string, chunkSize, overlap int) []span {
	runes := []rune(text)
	n := len(runes)
	step := chunkSize - overlap

	var spans []span
	for start := 0; start < n; start += step {
		end := min(start+chunkSize, n)
		trimmed := strings.TrimSpace(string(runes[start:end]))
		if trimmed != "" {
			spans = append(spans, span{start: start, end: end, text: trimmed})
		}
	}

	return spans
}
