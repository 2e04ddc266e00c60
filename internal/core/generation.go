// ABOUTME: Turns raw generative output into exactly one of StructuredAnswer or Refusal
// ABOUTME: Discriminates on "refusal": true, then validates the answer's citation invariants
package core

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harper/policy-rag/internal/models"
)

const defaultModelRefusalReason = "the model judged the evidence insufficient to answer"

// AnswerValidationError reports JSON that was recovered but does not form a valid answer
type AnswerValidationError struct {
	Problems []string
}

func (e *AnswerValidationError) Error() string {
	return "model output failed answer validation: " + strings.Join(e.Problems, "; ")
}

// Retryable reports that re-asking the model may succeed
func (e *AnswerValidationError) Retryable() bool {
	return true
}

// Generation is the terminal result of one generation call; exactly one field is set
type Generation struct {
	Answer  *models.StructuredAnswer
	Refusal *models.Refusal
}

// ParseGeneration extracts, discriminates and validates raw model output for question
func ParseGeneration(raw, question string) (*Generation, error) {
	msg, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(msg, &fields); err != nil {
		return nil, &AnswerValidationError{Problems: []string{"top-level value must be a JSON object"}}
	}

	if isRefusal(fields["refusal"]) {
		var r models.Refusal
		if err := json.Unmarshal(msg, &r); err != nil {
			return nil, &AnswerValidationError{Problems: []string{fmt.Sprintf("refusal: %v", err)}}
		}
		return &Generation{Refusal: normalizeRefusal(r, question)}, nil
	}

	var answer models.StructuredAnswer
	if err := json.Unmarshal(msg, &answer); err != nil {
		return nil, &AnswerValidationError{Problems: []string{fmt.Sprintf("structured answer: %v", err)}}
	}
	if problems := answer.Problems(); len(problems) > 0 {
		return nil, &AnswerValidationError{Problems: problems}
	}
	if strings.TrimSpace(answer.Question) == "" {
		answer.Question = question
	}
	answer.Normalize()

	return &Generation{Answer: &answer}, nil
}

func isRefusal(raw json.RawMessage) bool {
	var b bool
	return len(raw) > 0 && json.Unmarshal(raw, &b) == nil && b
}

func normalizeRefusal(r models.Refusal, question string) *models.Refusal {
	r.Question = question
	r.Refusal = true
	if strings.TrimSpace(r.Reason) == "" {
		r.Reason = defaultModelRefusalReason
	}
	if r.FollowUpQuestions == nil {
		r.FollowUpQuestions = []string{}
	}
	if len(r.Warnings) == 0 {
		r.Warnings = []string{DefaultWarning}
	}
	return &r
}

// GateRefusal builds the refusal returned when the evidence gate rejects a query
func GateRefusal(question string, decision models.EvidenceDecision) *models.Refusal {
	reason := "no reliable clause matched"
	if len(decision.Reasons) > 0 {
		reason = strings.Join(decision.Reasons, "; ")
	}
	followUps := append([]string{}, decision.Suggestions...)
	return &models.Refusal{
		Question:          question,
		Refusal:           true,
		Reason:            "insufficient evidence for a definite answer: " + reason,
		FollowUpQuestions: followUps,
		Warnings:          []string{DefaultWarning},
	}
}
