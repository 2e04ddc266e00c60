// ABOUTME: Shared utility functions for CLI commands
// ABOUTME: Truncation, numeric formatting and flag validation
package commands

import (
	"fmt"
	"math"
	"strconv"
)

// truncate shortens a string to maxLen, adding "..." if truncated
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// formatDistance renders a distance, or "-" when it is missing
func formatDistance(d float64) string {
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return "-"
	}
	return strconv.FormatFloat(d, 'f', 4, 64)
}

// formatPage renders a page number, or "-" when it is unknown
func formatPage(p int) string {
	if p <= 0 {
		return "-"
	}
	return strconv.Itoa(p)
}

// orDash returns s or "-" when empty
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// validatePositiveInt returns error if n is not positive
func validatePositiveInt(n int, name string) error {
	if n <= 0 {
		return fmt.Errorf("%s must be positive, got %d", name, n)
	}
	return nil
}

// validateRange returns error if n is outside [lo, hi]
func validateRange(n, lo, hi int, name string) error {
	if n < lo || n > hi {
		return fmt.Errorf("%s must be between %d and %d, got %d", name, lo, hi, n)
	}
	return nil
}
