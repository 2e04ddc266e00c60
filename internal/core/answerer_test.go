// ABOUTME: Tests for the evidence-gated answer pipeline
// ABOUTME: Verifies gate refusals skip generation and citations are checked on answers
package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harper/policy-rag/internal/models"
)

const payQuestion = "When is the scholarship paid?"

func newPolicyIndex() *memIndex {
	idx := newMemIndex()
	idx.add("pay", "The scholarship is paid monthly until 31 December.", []float64{1, 0, 0},
		models.ChunkMetadata{DocID: "sch", PageNumber: 1, Title: "Scholarship Rules", Category: "funding"})
	idx.add("pay2", "Payments stop when enrolment ends.", []float64{0.9, 0.1, 0},
		models.ChunkMetadata{DocID: "sch", PageNumber: 2, Title: "Scholarship Rules", Category: "funding"})
	idx.add("dorm", "Dormitory quiet hours start at 23:00.", []float64{0, 1, 0},
		models.ChunkMetadata{DocID: "dorm", PageNumber: 1, Title: "Dormitory Rules", Category: "housing"})
	idx.add("lib", "Library books are loaned for 30 days.", []float64{0, 0, 1},
		models.ChunkMetadata{DocID: "lib", PageNumber: 5, Title: "Library Rules", Category: "services"})
	return idx
}

func newTestAnswerer(idx *memIndex, emb *fakeEmbedder, chat *fakeChat) *Answerer {
	cfg := AnswererConfig{TopK: 4, SourceMaxChars: 900, Gate: DefaultGateThresholds()}
	return NewAnswerer(NewRetriever(emb, idx), idx, chat, cfg, nil)
}

func TestAnswerer_AnswersAndChecksCitations(t *testing.T) {
	chat := &fakeChat{reply: `{"key_conclusions": [{"text": "Paid monthly", "confidence": "high",
		"citations": [{"source_id": 1, "quote": "paid monthly until 31 December..."}, {"source_id": 9, "quote": "x"}]}]}`}
	emb := &fakeEmbedder{vectors: map[string][]float64{payQuestion: {1, 0, 0}}}
	a := newTestAnswerer(newPolicyIndex(), emb, chat)

	res, err := a.Ask(context.Background(), AskRequest{Question: payQuestion})
	require.NoError(t, err)

	assert.NotEmpty(t, res.QueryID)
	assert.True(t, res.Decision.OK, "gate reasons: %v", res.Decision.Reasons)
	require.Len(t, res.Hits, 4)
	assert.Equal(t, "pay", res.Hits[0].ChunkID)
	assert.Nil(t, res.Refusal)
	require.NotNil(t, res.Answer)
	assert.Equal(t, payQuestion, res.Answer.Question)
	assert.Equal(t, 1, chat.calls)
	assert.Contains(t, chat.messages[1].Content, "[1] doc_id=sch title=Scholarship Rules page=1")

	require.Len(t, res.Citations, 2)
	assert.Equal(t, models.CitationQuoteOK, res.Citations[0].Status)
	assert.Equal(t, models.CitationOutOfRange, res.Citations[1].Status)
	assert.Equal(t, CitationSummary{Total: 2, OK: 1, OutOfRange: 1}, res.CitationSummary)
}

func TestAnswerer_GateRefusalSkipsGeneration(t *testing.T) {
	chat := &fakeChat{reply: `{}`}
	emb := &fakeEmbedder{fallback: []float64{0, 0, -1}}
	a := newTestAnswerer(newPolicyIndex(), emb, chat)

	res, err := a.Ask(context.Background(), AskRequest{Question: "Unrelated question"})
	require.NoError(t, err)

	assert.False(t, res.Decision.OK)
	require.NotNil(t, res.Refusal)
	assert.Nil(t, res.Answer)
	assert.Contains(t, res.Refusal.Reason, "top1 too far")
	assert.Equal(t, res.Decision.Suggestions, res.Refusal.FollowUpQuestions)
	assert.Equal(t, 0, chat.calls)
}

func TestAnswerer_SkipGateStillGenerates(t *testing.T) {
	chat := &fakeChat{reply: `{"refusal": true, "reason": "not covered"}`}
	emb := &fakeEmbedder{fallback: []float64{0, 0, -1}}
	a := newTestAnswerer(newPolicyIndex(), emb, chat)

	res, err := a.Ask(context.Background(), AskRequest{Question: "Unrelated question", SkipGate: true})
	require.NoError(t, err)

	assert.True(t, res.GateSkipped)
	assert.False(t, res.Decision.OK)
	assert.Equal(t, 1, chat.calls)
	require.NotNil(t, res.Refusal)
	assert.Equal(t, "not covered", res.Refusal.Reason)
	assert.Equal(t, []string{DefaultWarning}, res.Refusal.Warnings)
}

func TestAnswerer_FilterScopesRetrieval(t *testing.T) {
	chat := &fakeChat{reply: `{}`}
	emb := &fakeEmbedder{fallback: []float64{1, 0, 0}}
	a := newTestAnswerer(newPolicyIndex(), emb, chat)

	res, err := a.Ask(context.Background(), AskRequest{Question: "q", Category: "housing"})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "dorm", res.Hits[0].ChunkID)
	assert.NotNil(t, res.Refusal)
}

func TestAnswerer_EmptyIndex(t *testing.T) {
	chat := &fakeChat{}
	a := newTestAnswerer(newMemIndex(), &fakeEmbedder{}, chat)

	_, err := a.Ask(context.Background(), AskRequest{Question: "q"})
	assert.ErrorIs(t, err, ErrEmptyIndex)
	assert.Equal(t, 0, chat.calls)
}

func TestAnswerer_MalformedOutputIsRetryable(t *testing.T) {
	chat := &fakeChat{reply: `{"key_conclusions": [ {"text": "x", `}
	emb := &fakeEmbedder{vectors: map[string][]float64{payQuestion: {1, 0, 0}}}
	a := newTestAnswerer(newPolicyIndex(), emb, chat)

	_, err := a.Ask(context.Background(), AskRequest{Question: payQuestion})
	require.Error(t, err)

	var extractErr *ExtractError
	require.True(t, errors.As(err, &extractErr))
	assert.True(t, extractErr.Retryable())
}

func TestAnswerer_ChatFailurePropagates(t *testing.T) {
	boom := errors.New("model unavailable")
	emb := &fakeEmbedder{vectors: map[string][]float64{payQuestion: {1, 0, 0}}}
	a := newTestAnswerer(newPolicyIndex(), emb, &fakeChat{err: boom})

	_, err := a.Ask(context.Background(), AskRequest{Question: payQuestion})
	assert.ErrorIs(t, err, boom)
}

func TestBuildFilter(t *testing.T) {
	assert.Nil(t, BuildFilter("", " "))
	assert.Equal(t, models.Filter{models.FieldDocumentID: "d"}, BuildFilter("d", ""))
	assert.Equal(t, models.Filter{models.FieldDocumentID: "d", models.FieldCategory: "c"}, BuildFilter(" d ", "c"))
}
