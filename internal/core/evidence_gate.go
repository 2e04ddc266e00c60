// ABOUTME: Evidence gate that decides whether retrieved hits can support a grounded answer
// ABOUTME: Independent sufficiency rules over distances; every failing rule is reported
package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/harper/policy-rag/internal/models"
)

// GateThresholds are the distance thresholds of the evidence gate.
// Distances are "smaller is closer".
type GateThresholds struct {
	Top1MaxDist    float64 `json:"top1_max_dist" yaml:"top1_max_dist"`
	GoodHitMaxDist float64 `json:"good_hit_max_dist" yaml:"good_hit_max_dist"`
	MinGoodHits    int     `json:"min_good_hits" yaml:"min_good_hits"`
	MinGap         float64 `json:"min_gap" yaml:"min_gap"`
}

// DefaultGateThresholds returns thresholds calibrated for unit-normalized embeddings
// under squared Euclidean distance
func DefaultGateThresholds() GateThresholds {
	return GateThresholds{
		Top1MaxDist:    0.95,
		GoodHitMaxDist: 1.05,
		MinGoodHits:    2,
		MinGap:         0.03,
	}
}

const (
	reasonNoHits      = "no candidate evidence was retrieved (top-k is empty)"
	reasonNoDistances = "retrieved hits carry no distance, evidence strength cannot be judged"
	reasonNoPages     = "candidate evidence has no page numbers, citations cannot be verified"
	reasonNoDocIDs    = "candidate evidence has no document ids, sources cannot be traced"

	suggestCheckIndex     = "confirm the documents were indexed and the collection is not empty"
	suggestRephrase       = "rephrase the question using wording closer to the policy text"
	suggestNarrowScope    = "restrict the search with --doc-id or --category"
	suggestCheckEmbedding = "check that embeddings are generated correctly"
	suggestCheckQuery     = "check that the vector index query returns distances"
	suggestBeSpecific     = "make the question more specific: add the policy name, award, role, year or key condition"
	suggestClauseStyle    = "ask in clause form, e.g. which hard requirements, materials, deadlines or exceptions apply"
	suggestReindexPages   = "make sure page and chunk logs carry page_number, then re-index"
	suggestReindexDocIDs  = "check that chunks are indexed with doc_id metadata"
)

// AssessEvidence applies every sufficiency rule to hits and collects all violations.
// Hits without a usable distance are ignored for distance statistics.
func AssessEvidence(hits []models.RetrievedHit, th GateThresholds) models.EvidenceDecision {
	if len(hits) == 0 {
		return models.EvidenceDecision{
			OK:          false,
			Reasons:     []string{reasonNoHits},
			Suggestions: []string{suggestCheckIndex, suggestRephrase, suggestNarrowScope},
			Stats:       map[string]float64{},
		}
	}

	dists := make([]float64, 0, len(hits))
	for _, h := range hits {
		if h.HasDistance() {
			dists = append(dists, h.Distance)
		}
	}
	if len(dists) == 0 {
		return models.EvidenceDecision{
			OK:          false,
			Reasons:     []string{reasonNoDistances},
			Suggestions: []string{suggestCheckEmbedding, suggestCheckQuery},
			Stats:       map[string]float64{},
		}
	}

	sort.Float64s(dists)
	top1 := dists[0]
	med := median(dists)
	gap := med - top1

	goodHits := 0
	for _, d := range dists {
		if d <= th.GoodHitMaxDist {
			goodHits++
		}
	}

	uniqDocs := make(map[string]struct{})
	uniqPages := make(map[int]struct{})
	for _, h := range hits {
		if id := strings.TrimSpace(h.Metadata.DocID); id != "" {
			uniqDocs[id] = struct{}{}
		}
		if h.Metadata.PageNumber > 0 {
			uniqPages[h.Metadata.PageNumber] = struct{}{}
		}
	}

	var reasons, suggestions []string

	if top1 > th.Top1MaxDist {
		reasons = append(reasons, fmt.Sprintf("top1 too far: best evidence distance %.4f > %.4f, relevance may be insufficient", top1, th.Top1MaxDist))
		suggestions = append(suggestions, suggestBeSpecific)
	}

	if goodHits < th.MinGoodHits {
		reasons = append(reasons, fmt.Sprintf("too few good hits: good_hits=%d < %d (distance threshold %.4f)", goodHits, th.MinGoodHits, th.GoodHitMaxDist))
		suggestions = append(suggestions, suggestNarrowScope)
	}

	if gap < th.MinGap {
		reasons = append(reasons, fmt.Sprintf("insufficient discrimination: median-top1 gap %.4f < %.4f, results look generically related rather than on-point", gap, th.MinGap))
		suggestions = append(suggestions, suggestClauseStyle)
	}

	if len(uniqPages) == 0 {
		reasons = append(reasons, reasonNoPages)
		suggestions = append(suggestions, suggestReindexPages)
	}

	if len(uniqDocs) == 0 {
		reasons = append(reasons, reasonNoDocIDs)
		suggestions = append(suggestions, suggestReindexDocIDs)
	}

	if reasons == nil {
		reasons = []string{}
	}

	return models.EvidenceDecision{
		OK:          len(reasons) == 0,
		Reasons:     reasons,
		Suggestions: dedupe(suggestions),
		Stats: map[string]float64{
			models.StatTop1:      top1,
			models.StatMedian:    med,
			models.StatGap:       gap,
			models.StatGoodHits:  float64(goodHits),
			models.StatUniqDocs:  float64(len(uniqDocs)),
			models.StatUniqPages: float64(len(uniqPages)),
		},
	}
}

// median of an ascending, non-empty slice
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// dedupe keeps the first occurrence of every string
func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, s := range items {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

