// ABOUTME: Structured answer, refusal and citation models for generated policy answers
// ABOUTME: Every answer item must cite at least one retrieved source with a verbatim quote
package models

import (
	"fmt"
	"strings"
)

// Confidence is the model's self-reported confidence for an item
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Valid reports whether c is one of the allowed levels
func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	}
	return false
}

// Citation points a claim at a 1-based source with a verbatim quote
type Citation struct {
	SourceID int    `json:"source_id" yaml:"source_id"`
	Quote    string `json:"quote" yaml:"quote"`
}

// AnswerItem is one actionable policy point with its evidence
type AnswerItem struct {
	Text       string     `json:"text" yaml:"text"`
	Citations  []Citation `json:"citations" yaml:"citations"`
	Confidence Confidence `json:"confidence" yaml:"confidence"`
}

// StructuredAnswer is the policy-card shaped answer to a question
type StructuredAnswer struct {
	Question           string       `json:"question" yaml:"question"`
	ApplicableTo       []AnswerItem `json:"applicable_to" yaml:"applicable_to"`
	KeyConclusions     []AnswerItem `json:"key_conclusions" yaml:"key_conclusions"`
	Conditions         []AnswerItem `json:"conditions" yaml:"conditions"`
	Materials          []AnswerItem `json:"materials" yaml:"materials"`
	Procedure          []AnswerItem `json:"procedure" yaml:"procedure"`
	TimeNodes          []AnswerItem `json:"time_nodes" yaml:"time_nodes"`
	ExceptionsPitfalls []AnswerItem `json:"exceptions_pitfalls" yaml:"exceptions_pitfalls"`
	ContactChannel     []AnswerItem `json:"contact_channel" yaml:"contact_channel"`
	Uncertainties      []string     `json:"uncertainties" yaml:"uncertainties"`
	FollowUpQuestions  []string     `json:"follow_up_questions" yaml:"follow_up_questions"`
	Warnings           []string     `json:"warnings" yaml:"warnings"`
}

// Dimension is one named list of items in a StructuredAnswer
type Dimension struct {
	Name  string
	Label string
	Items []AnswerItem
}

// Dimensions returns the eight policy-card dimensions in display order
func (a *StructuredAnswer) Dimensions() []Dimension {
	return []Dimension{
		{Name: "applicable_to", Label: "Applicable to / scope", Items: a.ApplicableTo},
		{Name: "key_conclusions", Label: "Key conclusions", Items: a.KeyConclusions},
		{Name: "conditions", Label: "Conditions / eligibility", Items: a.Conditions},
		{Name: "materials", Label: "Required materials", Items: a.Materials},
		{Name: "procedure", Label: "Procedure", Items: a.Procedure},
		{Name: "time_nodes", Label: "Deadlines / time nodes", Items: a.TimeNodes},
		{Name: "exceptions_pitfalls", Label: "Exceptions / pitfalls", Items: a.ExceptionsPitfalls},
		{Name: "contact_channel", Label: "Contact channels", Items: a.ContactChannel},
	}
}

// ItemCount returns the number of items across all dimensions
func (a *StructuredAnswer) ItemCount() int {
	n := 0
	for _, d := range a.Dimensions() {
		n += len(d.Items)
	}
	return n
}

// Normalize fills defaults: missing confidence becomes medium, nil lists become empty
func (a *StructuredAnswer) Normalize() {
	for _, list := range []*[]AnswerItem{
		&a.ApplicableTo, &a.KeyConclusions, &a.Conditions, &a.Materials,
		&a.Procedure, &a.TimeNodes, &a.ExceptionsPitfalls, &a.ContactChannel,
	} {
		if *list == nil {
			*list = []AnswerItem{}
		}
		for i := range *list {
			if (*list)[i].Confidence == "" {
				(*list)[i].Confidence = ConfidenceMedium
			}
		}
	}
	if a.Uncertainties == nil {
		a.Uncertainties = []string{}
	}
	if a.FollowUpQuestions == nil {
		a.FollowUpQuestions = []string{}
	}
	if a.Warnings == nil {
		a.Warnings = []string{}
	}
}

// Problems lists every schema violation in the answer; empty means valid
func (a *StructuredAnswer) Problems() []string {
	var problems []string
	for _, d := range a.Dimensions() {
		for i, item := range d.Items {
			path := fmt.Sprintf("%s[%d]", d.Name, i)
			if strings.TrimSpace(item.Text) == "" {
				problems = append(problems, path+".text is empty")
			}
			if len(item.Citations) == 0 {
				problems = append(problems, path+".citations is empty")
			}
			if item.Confidence != "" && !item.Confidence.Valid() {
				problems = append(problems, fmt.Sprintf("%s.confidence %q is not high|medium|low", path, item.Confidence))
			}
			for j, c := range item.Citations {
				if c.SourceID < 1 {
					problems = append(problems, fmt.Sprintf("%s.citations[%d].source_id must be >= 1, got %d", path, j, c.SourceID))
				}
				if strings.TrimSpace(c.Quote) == "" {
					problems = append(problems, fmt.Sprintf("%s.citations[%d].quote is empty", path, j))
				}
			}
		}
	}
	return problems
}

// Refusal is the structured "insufficient evidence" response
type Refusal struct {
	Question          string   `json:"question" yaml:"question"`
	Refusal           bool     `json:"refusal" yaml:"refusal"`
	Reason            string   `json:"reason" yaml:"reason"`
	FollowUpQuestions []string `json:"follow_up_questions" yaml:"follow_up_questions"`
	Warnings          []string `json:"warnings" yaml:"warnings"`
}

// CitationStatus is the verification outcome of a single citation
type CitationStatus string

const (
	CitationQuoteOK      CitationStatus = "QUOTE_OK"
	CitationQuoteMissing CitationStatus = "QUOTE_MISSING"
	CitationOutOfRange   CitationStatus = "OUT_OF_RANGE"
)

// CitationCheck records the verification of one citation of one item
type CitationCheck struct {
	Dimension  string         `json:"dimension" yaml:"dimension"`
	ItemIndex  int            `json:"item_index" yaml:"item_index"`
	SourceID   int            `json:"source_id" yaml:"source_id"`
	Quote      string         `json:"quote" yaml:"quote"`
	Status     CitationStatus `json:"status" yaml:"status"`
	DocID      string         `json:"doc_id,omitempty" yaml:"doc_id,omitempty"`
	PageNumber int            `json:"page_number,omitempty" yaml:"page_number,omitempty"`
	Title      string         `json:"title,omitempty" yaml:"title,omitempty"`
}
