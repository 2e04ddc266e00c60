// ABOUTME: Recovers a JSON value from raw generative-model output
// ABOUTME: Strict parse first, then leading-prose skip, control-char escaping and bareword-key quoting
package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// ErrNoJSON is returned when the output contains no object or array start
var ErrNoJSON = errors.New("no JSON object or array found in model output")

// extractContextRadius is the number of bytes shown on each side of a failure
const extractContextRadius = 120

// ExtractError reports where JSON recovery finally failed.
// Offset is a byte offset into Candidate, the last text that was parsed.
type ExtractError struct {
	Offset    int
	Context   string
	Candidate string
	Err       error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extracting JSON from model output: %v at byte offset %d near %q", e.Err, e.Offset, e.Context)
}

func (e *ExtractError) Unwrap() error {
	return e.Err
}

// Retryable reports that re-asking the model may succeed
func (e *ExtractError) Retryable() bool {
	return true
}

// repair is one step of the repair chain; each applies on top of the previous result
type repair struct {
	name  string
	apply func(string) string
}

// repairChain order matters: keys are only quoted once string literals are well formed
var repairChain = []repair{
	{name: "escape-control-chars", apply: escapeControlChars},
	{name: "quote-bareword-keys", apply: quoteBarewordKeys},
}

// ExtractJSON returns the first JSON value recoverable from raw model output
func ExtractJSON(raw string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(raw)
	if json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed), nil
	}

	start := strings.IndexAny(trimmed, "{[")
	if start < 0 {
		return nil, &ExtractError{
			Offset:    0,
			Context:   contextWindow(trimmed, 0, extractContextRadius),
			Candidate: trimmed,
			Err:       ErrNoJSON,
		}
	}

	candidate := trimmed[start:]
	value, err := decodeFirstValue(candidate)
	if err == nil {
		return value, nil
	}

	for _, r := range repairChain {
		candidate = r.apply(candidate)
		value, err = decodeFirstValue(candidate)
		if err == nil {
			return value, nil
		}
	}

	offset := failureOffset(err, candidate)
	return nil, &ExtractError{
		Offset:    offset,
		Context:   contextWindow(candidate, offset, extractContextRadius),
		Candidate: candidate,
		Err:       err,
	}
}

// Extract returns the recovered JSON value decoded into generic Go values
func Extract(raw string) (any, error) {
	msg, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(msg, &v); err != nil {
		return nil, fmt.Errorf("decoding recovered JSON: %w", err)
	}
	return v, nil
}

// decodeFirstValue strictly parses the first complete JSON value and ignores the rest
func decodeFirstValue(s string) (json.RawMessage, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	var value json.RawMessage
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}
	return value, nil
}

// failureOffset maps a decoder error to a byte offset in s
func failureOffset(err error, s string) int {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return min(max(int(syntaxErr.Offset), 0), len(s))
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return len(s)
	}
	return 0
}

// contextWindow returns up to radius bytes either side of offset on rune boundaries
func contextWindow(s string, offset, radius int) string {
	lo := max(0, offset-radius)
	hi := min(len(s), offset+radius)
	for lo > 0 && !utf8.RuneStart(s[lo]) {
		lo--
	}
	for hi < len(s) && !utf8.RuneStart(s[hi]) {
		hi++
	}
	return s[lo:hi]
}

// escapeControlChars rewrites literal newlines, carriage returns and tabs found
// inside string literals to their escaped forms
func escapeControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 16)

	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			case c == '\n':
				b.WriteString(`\n`)
				continue
			case c == '\r':
				b.WriteString(`\r`)
				continue
			case c == '\t':
				b.WriteString(`\t`)
				continue
			}
		} else if c == '"' {
			inString = true
		}
		b.WriteByte(c)
	}

	return b.String()
}

// quoteBarewordKeys wraps unquoted identifiers that directly follow '{', '[' or ','
// and precede ':' in double quotes
func quoteBarewordKeys(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 32)

	inString, escaped, expectKey := false, false, false
	for i := 0; i < len(s); {
		c := s[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			b.WriteByte(c)
			i++
			continue
		}

		switch {
		case c == '"':
			inString = true
			expectKey = false
		case c == '{' || c == '[' || c == ',':
			expectKey = true
		case isJSONSpace(c):
			// whitespace keeps the key position
		case expectKey && isIdentStart(c):
			j := i + 1
			for j < len(s) && isIdentPart(s[j]) {
				j++
			}
			k := j
			for k < len(s) && isJSONSpace(s[k]) {
				k++
			}
			if k < len(s) && s[k] == ':' {
				b.WriteByte('"')
				b.WriteString(s[i:j])
				b.WriteByte('"')
			} else {
				b.WriteString(s[i:j])
			}
			i = j
			expectKey = false
			continue
		default:
			expectKey = false
		}

		b.WriteByte(c)
		i++
	}

	return b.String()
}

func isJSONSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
