// ABOUTME: Calibration runner: retrieves and gates every case across a sweep of top_k values
// ABOUTME: Reports accept rates, context recall and mean distance stats; never calls the chat model
package calibration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/harper/policy-rag/internal/core"
	"github.com/harper/policy-rag/internal/models"
)

// DefaultTopKs is the sweep used when none is given
var DefaultTopKs = []int{4, 8, 12, 16}

// Searcher retrieves ranked hits for a question
type Searcher interface {
	Retrieve(ctx context.Context, query string, topK int, filter models.Filter) ([]models.RetrievedHit, error)
}

// CaseResult is the outcome of one case at one top_k
type CaseResult struct {
	CaseID     string   `json:"case_id"`
	Answerable bool     `json:"answerable"`
	Accepted   bool     `json:"accepted"`
	Recalled   bool     `json:"recalled"`
	Hits       int      `json:"hits"`
	Top1       float64  `json:"top1"`
	Median     float64  `json:"median"`
	Gap        float64  `json:"gap"`
	Reasons    []string `json:"reasons,omitempty"`
}

// TopKResult aggregates every case at one top_k
type TopKResult struct {
	TopK                   int          `json:"top_k"`
	AnswerableAcceptRate   float64      `json:"answerable_accept_rate"`
	UnanswerableAcceptRate float64      `json:"unanswerable_accept_rate"`
	ContextRecall          float64      `json:"context_recall"`
	MeanTop1               float64      `json:"mean_top1"`
	MeanMedian             float64      `json:"mean_median"`
	MeanGap                float64      `json:"mean_gap"`
	Cases                  []CaseResult `json:"cases"`
}

// Report is one full calibration run
type Report struct {
	RunID      string              `json:"run_id"`
	Timestamp  string              `json:"timestamp"`
	Thresholds core.GateThresholds `json:"thresholds"`
	TotalCases int                 `json:"total_cases"`
	Results    []TopKResult        `json:"results"`
}

// Runner executes calibration sweeps
type Runner struct {
	searcher Searcher
	gate     core.GateThresholds
	logger   *log.Logger
}

// NewRunner creates a runner; a nil logger discards output
func NewRunner(searcher Searcher, gate core.GateThresholds, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Runner{searcher: searcher, gate: gate, logger: logger}
}

// Run retrieves each case once at the largest top_k and scores every prefix.
// Ranked prefixes of an exact search equal the results of a smaller top_k.
func (r *Runner) Run(ctx context.Context, cases []Case, topKs []int) (*Report, error) {
	if len(cases) == 0 {
		return nil, fmt.Errorf("no cases to run")
	}
	if len(topKs) == 0 {
		topKs = DefaultTopKs
	}
	ks := slices.Clone(topKs)
	slices.Sort(ks)
	ks = slices.Compact(ks)
	if ks[0] < 1 {
		return nil, fmt.Errorf("top_k values must be positive, got %d", ks[0])
	}
	maxK := ks[len(ks)-1]

	perCase := make([][]models.RetrievedHit, len(cases))
	for i, c := range cases {
		hits, err := r.searcher.Retrieve(ctx, c.Question, maxK, core.BuildFilter(c.DocID, c.Category))
		if err != nil {
			return nil, fmt.Errorf("case %s: %w", c.ID, err)
		}
		perCase[i] = hits
		r.logger.Debug("retrieved", "case", c.ID, "hits", len(hits))
	}

	report := &Report{
		RunID:      uuid.New().String(),
		Timestamp:  time.Now().Format(time.RFC3339),
		Thresholds: r.gate,
		TotalCases: len(cases),
	}
	for _, k := range ks {
		report.Results = append(report.Results, r.score(cases, perCase, k))
	}
	return report, nil
}

func (r *Runner) score(cases []Case, perCase [][]models.RetrievedHit, k int) TopKResult {
	res := TopKResult{TopK: k}
	var top1s, medians, gaps []float64
	var answerable, answerableOK, unanswerable, unanswerableOK, recalled int

	for i, c := range cases {
		hits := perCase[i]
		if len(hits) > k {
			hits = hits[:k]
		}
		decision := core.AssessEvidence(hits, r.gate)
		cr := CaseResult{
			CaseID:     c.ID,
			Answerable: c.Answerable,
			Accepted:   decision.OK,
			Hits:       len(hits),
			Top1:       statOrNaN(decision.Stats, models.StatTop1),
			Median:     statOrNaN(decision.Stats, models.StatMedian),
			Gap:        statOrNaN(decision.Stats, models.StatGap),
		}
		if !decision.OK {
			cr.Reasons = decision.Reasons
		}
		top1s = append(top1s, cr.Top1)
		medians = append(medians, cr.Median)
		gaps = append(gaps, cr.Gap)

		if c.Answerable {
			answerable++
			if cr.Accepted {
				answerableOK++
			}
			cr.Recalled = ContextRecall(hits, c)
			if cr.Recalled {
				recalled++
			}
		} else {
			unanswerable++
			if cr.Accepted {
				unanswerableOK++
			}
		}
		res.Cases = append(res.Cases, cr)
	}

	res.AnswerableAcceptRate = rate(answerableOK, answerable)
	res.UnanswerableAcceptRate = rate(unanswerableOK, unanswerable)
	res.ContextRecall = rate(recalled, answerable)
	res.MeanTop1 = meanOf(top1s)
	res.MeanMedian = meanOf(medians)
	res.MeanGap = meanOf(gaps)
	return res
}

// WriteReport encodes the report as indented JSON; missing values become null
func WriteReport(w io.Writer, report *Report) error {
	data, err := json.MarshalIndent(sanitize(report), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// ExportResults writes the report to outputPath
func ExportResults(report *Report, outputPath string) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create results file: %w", err)
	}
	if err := WriteReport(f, report); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// sanitize copies the report with NaN replaced by nil-able pointers
func sanitize(report *Report) any {
	type caseOut struct {
		CaseResult
		Top1   *float64 `json:"top1"`
		Median *float64 `json:"median"`
		Gap    *float64 `json:"gap"`
	}
	type topKOut struct {
		TopKResult
		AnswerableAcceptRate   *float64  `json:"answerable_accept_rate"`
		UnanswerableAcceptRate *float64  `json:"unanswerable_accept_rate"`
		ContextRecall          *float64  `json:"context_recall"`
		MeanTop1               *float64  `json:"mean_top1"`
		MeanMedian             *float64  `json:"mean_median"`
		MeanGap                *float64  `json:"mean_gap"`
		Cases                  []caseOut `json:"cases"`
	}
	type reportOut struct {
		*Report
		Results []topKOut `json:"results"`
	}

	out := reportOut{Report: report}
	for _, tk := range report.Results {
		t := topKOut{
			TopKResult:             tk,
			AnswerableAcceptRate:   finite(tk.AnswerableAcceptRate),
			UnanswerableAcceptRate: finite(tk.UnanswerableAcceptRate),
			ContextRecall:          finite(tk.ContextRecall),
			MeanTop1:               finite(tk.MeanTop1),
			MeanMedian:             finite(tk.MeanMedian),
			MeanGap:                finite(tk.MeanGap),
			Cases:                  []caseOut{},
		}
		for _, c := range tk.Cases {
			t.Cases = append(t.Cases, caseOut{
				CaseResult: c,
				Top1:       finite(c.Top1),
				Median:     finite(c.Median),
				Gap:        finite(c.Gap),
			})
		}
		out.Results = append(out.Results, t)
	}
	return out
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
