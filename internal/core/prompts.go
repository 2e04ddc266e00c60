// ABOUTME: Prompt templates and source formatting for grounded answers and policy cards
// ABOUTME: Sources are numbered from 1 so citations can refer back to them by source_id
package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/harper/policy-rag/internal/llm"
	"github.com/harper/policy-rag/internal/models"
)

// DefaultWarning is attached to every refusal and policy card
const DefaultWarning = "Verify against the latest official version of the policy; if it has been revised or supplemented, ingest or name the newest document."

const sourceSeparator = "\n\n---\n\n"

const answerShape = `{
  "question": "...",
  "applicable_to": [{"text":"...","citations":[{"source_id":1,"quote":"..."}],"confidence":"high|medium|low"}],
  "key_conclusions": [{"text":"...","citations":[{"source_id":1,"quote":"..."}],"confidence":"high|medium|low"}],
  "conditions": [{"text":"...","citations":[{"source_id":1,"quote":"..."}],"confidence":"high|medium|low"}],
  "materials": [{"text":"...","citations":[{"source_id":1,"quote":"..."}],"confidence":"high|medium|low"}],
  "procedure": [{"text":"...","citations":[{"source_id":1,"quote":"..."}],"confidence":"high|medium|low"}],
  "time_nodes": [{"text":"...","citations":[{"source_id":1,"quote":"..."}],"confidence":"high|medium|low"}],
  "exceptions_pitfalls": [{"text":"...","citations":[{"source_id":1,"quote":"..."}],"confidence":"high|medium|low"}],
  "contact_channel": [{"text":"...","citations":[{"source_id":1,"quote":"..."}],"confidence":"high|medium|low"}],
  "uncertainties": ["..."],
  "follow_up_questions": ["..."],
  "warnings": ["..."]
}`

const refusalShape = `{
  "question": "...",
  "refusal": true,
  "reason": "...",
  "follow_up_questions": ["..."],
  "warnings": ["..."]
}`

const askSystemPrompt = `You are an assistant for institutional regulations and scholarship policies. Follow these rules strictly:
1) Use only the SOURCES provided as evidence. Never fill gaps with general knowledge and never invent anything.
2) In a structured answer, every item of every field must carry at least one citation (source_id + quote).
3) A quote must be a verbatim excerpt of the cited source, kept short (at most 40 CJK characters or 25 English words).
4) If the evidence cannot support a structured answer, output the Refusal JSON (refusal=true) and list what the user should add.
5) Output JSON only. No extra text, Markdown or explanation.`

const askUserTemplate = `Question:
%s

SOURCES (each has a source_id; cite only these source_id values):
%s

Output requirements:
- JSON only
- Exactly one of the two shapes below:

A) StructuredAnswer:
%s

B) Refusal:
%s

Key rules:
- Any field without enough supporting evidence must be an empty array [], never a guess.
- If the evidence as a whole cannot support a structured answer, output the Refusal.`

const cardSystemPrompt = `You are an assistant for institutional regulations and scholarship policies. Follow these rules strictly:
1) Use only the SOURCES provided as evidence. Never fill gaps with general knowledge and never invent anything.
2) In the policy card, every item of every field must carry at least one citation (source_id + quote).
3) A quote must be a verbatim excerpt of the cited source, kept short (at most 40 CJK characters or 25 English words).
4) If the evidence cannot support a field, output an empty array [] for it.
5) Output JSON only (a single JSON object). No extra text.`

const cardUserTemplate = `Summarise this policy document as a policy card. Output a StructuredAnswer JSON object and set its question field to: %s

Document metadata:
- doc_id: %s
- title: %s
- category: %s

SOURCES (each has a source_id; cite only these source_id values):
%s

Output requirements:
- StructuredAnswer JSON only (a single JSON object)
- Every item must have citations (source_id + quote)
- Fields without evidence are [], never invented
- warnings must remind the reader to check the latest official version

StructuredAnswer shape:
%s`

// FormatSources renders hits as numbered source blocks, truncating each text to maxChars runes
func FormatSources(hits []models.RetrievedHit, maxChars int) string {
	blocks := make([]string, 0, len(hits))
	for i, h := range hits {
		md := h.Metadata
		page := ""
		if md.PageNumber > 0 {
			page = strconv.Itoa(md.PageNumber)
		}
		header := strings.TrimSpace(fmt.Sprintf("[%d] doc_id=%s title=%s page=%s section=%s",
			i+1, md.DocID, md.Title, page, md.SectionPath))
		blocks = append(blocks, header+"\n"+truncateRunes(strings.TrimSpace(h.Text), maxChars))
	}
	return strings.Join(blocks, sourceSeparator)
}

// AskMessages builds the messages for a grounded question
func AskMessages(question, sources string) []llm.ChatMessage {
	return []llm.ChatMessage{
		{Role: llm.RoleSystem, Content: askSystemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf(askUserTemplate, question, sources, answerShape, refusalShape)},
	}
}

// PolicyCardMessages builds the messages for a whole-document policy card
func PolicyCardMessages(docID, title, category, sources string) []llm.ChatMessage {
	return []llm.ChatMessage{
		{Role: llm.RoleSystem, Content: cardSystemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf(cardUserTemplate, title, docID, title, category, sources, answerShape)},
	}
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimRightFunc(string(runes[:n]), isSpaceRune) + "…"
}

func isSpaceRune(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '　'
}
