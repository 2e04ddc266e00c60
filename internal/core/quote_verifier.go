// ABOUTME: Quote verifier that checks a claimed verbatim quote against its cited chunk
// ABOUTME: Containment only, tolerant of whitespace, wrapping quote marks and a trailing ellipsis
package core

import "strings"

// quoteMarks are stripped from both ends of a quote
const quoteMarks = "\"'“”‘’"

// VerifyQuote reports whether quote occurs in sourceText after whitespace
// normalization, or does so once a trailing ellipsis is removed
func VerifyQuote(quote, sourceText string) bool {
	q := collapseWhitespace(quote)
	if q == "" {
		return false
	}
	q = strings.TrimSpace(strings.Trim(q, quoteMarks))
	if q == "" {
		return false
	}

	t := collapseWhitespace(sourceText)
	if strings.Contains(t, q) {
		return true
	}

	q2 := strings.TrimSpace(stripTrailingEllipsis(q))
	return q2 != "" && q2 != q && strings.Contains(t, q2)
}

// collapseWhitespace replaces every whitespace run with one space and trims the ends
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// stripTrailingEllipsis removes trailing "…" glyphs and runs of three or more periods
func stripTrailingEllipsis(s string) string {
	for {
		trimmed := strings.TrimRight(s, " ")
		switch {
		case strings.HasSuffix(trimmed, "…"):
			s = strings.TrimSuffix(trimmed, "…")
		case strings.HasSuffix(trimmed, "..."):
			s = strings.TrimRight(trimmed, ".")
		default:
			return trimmed
		}
	}
}
