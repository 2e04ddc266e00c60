// ABOUTME: EvidenceDecision is the evidence gate's accept/refuse verdict for one query
// ABOUTME: Carries ordered reasons, deduplicated suggestions and numeric diagnostics
package models

// Stat keys reported in EvidenceDecision.Stats
const (
	StatTop1      = "top1"
	StatMedian    = "median"
	StatGap       = "gap"
	StatGoodHits  = "good_hits"
	StatUniqDocs  = "uniq_docs"
	StatUniqPages = "uniq_pages"
)

// EvidenceDecision is the result of assessing retrieved evidence
type EvidenceDecision struct {
	OK          bool               `json:"ok" yaml:"ok"`
	Reasons     []string           `json:"reasons" yaml:"reasons"`
	Suggestions []string           `json:"suggestions" yaml:"suggestions"`
	Stats       map[string]float64 `json:"stats" yaml:"stats"`
}
