// ABOUTME: Scoring helpers for calibration runs
// ABOUTME: Context recall against expected pages and NaN-aware means of gate statistics
package calibration

import (
	"math"

	"github.com/harper/policy-rag/internal/models"
)

// ContextRecall reports whether any hit lands on the expected document and page.
// An empty expectation on either axis matches anything on that axis.
func ContextRecall(hits []models.RetrievedHit, c Case) bool {
	for _, h := range hits {
		if c.ExpectedDocID != "" && h.Metadata.DocID != c.ExpectedDocID {
			continue
		}
		if len(c.ExpectedPages) == 0 {
			return true
		}
		for _, p := range c.ExpectedPages {
			if h.Metadata.PageNumber == p {
				return true
			}
		}
	}
	return false
}

// statOrNaN returns a gate statistic, or NaN when the gate did not compute it
func statOrNaN(stats map[string]float64, key string) float64 {
	v, ok := stats[key]
	if !ok {
		return math.NaN()
	}
	return v
}

// meanOf averages the finite values; NaN when there are none
func meanOf(values []float64) float64 {
	sum, n := 0.0, 0
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// rate is hits/total, NaN when total is zero
func rate(hits, total int) float64 {
	if total == 0 {
		return math.NaN()
	}
	return float64(hits) / float64(total)
}
