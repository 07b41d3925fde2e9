// Package engine implements the SQL dialect: lexer, parser, predicate
// evaluation and the query executor.
//
// What: Structured error kinds for the request boundary. Every failure the
// engine can produce maps onto one of four kinds so callers can render a
// descriptor (kind, message, suggestion, position) instead of a bare string.
// How: Small concrete error types with errors.As support; suggestions come
// from a close-match scan over the candidate names (edit distance) or a
// fixed table of common keyword typos.
// Why: Parse errors and semantic errors are distinguishable failure modes;
// the boundary contract depends on telling them apart.
package engine

import "fmt"

// ErrorKind classifies an engine failure for the request boundary.
type ErrorKind string

const (
	KindParse         ErrorKind = "parse"
	KindSemantic      ErrorKind = "semantic"
	KindUnsupported   ErrorKind = "unsupported"
	KindLimitExceeded ErrorKind = "limit-exceeded"
)

// ParseError is a syntax failure with a source position.
type ParseError struct {
	Msg        string
	Suggestion string
	Line       int
	Col        int
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error at line %d, column %d: %s", e.Line, e.Col, e.Msg)
	}
	return "parse error: " + e.Msg
}

// SemanticError is a resolution failure: unknown table/column, ambiguous
// reference, or a type mismatch in a comparison.
type SemanticError struct {
	Msg        string
	Suggestion string
}

func (e *SemanticError) Error() string { return e.Msg }

// UnsupportedError marks syntactically valid SQL the engine does not
// implement.
type UnsupportedError struct {
	Feature    string
	Suggestion string
}

func (e *UnsupportedError) Error() string { return "unsupported: " + e.Feature }

// LimitExceededError reports a tripped execution guard (recursive CTE
// iteration cap or intermediate row budget).
type LimitExceededError struct {
	Msg string
}

func (e *LimitExceededError) Error() string { return e.Msg }

// KindOf maps an engine error to its boundary kind. Unknown errors are
// reported as semantic: they come from resolution or evaluation.
func KindOf(err error) ErrorKind {
	switch err.(type) {
	case *ParseError:
		return KindParse
	case *UnsupportedError:
		return KindUnsupported
	case *LimitExceededError:
		return KindLimitExceeded
	default:
		return KindSemantic
	}
}

// SuggestionOf extracts the optional "did you mean" hint from an error.
func SuggestionOf(err error) string {
	switch e := err.(type) {
	case *ParseError:
		return e.Suggestion
	case *SemanticError:
		return e.Suggestion
	case *UnsupportedError:
		return e.Suggestion
	}
	return ""
}

// PositionOf returns the line/column of a parse error, or zeros.
func PositionOf(err error) (int, int) {
	if pe, ok := err.(*ParseError); ok {
		return pe.Line, pe.Col
	}
	return 0, 0
}

// keywordTypos maps frequent misspellings to the intended keyword.
var keywordTypos = map[string]string{
	"selec": "SELECT",
	"slect": "SELECT",
	"form":  "FROM",
	"fom":   "FROM",
	"whre":  "WHERE",
	"wher":  "WHERE",
	"oder":  "ORDER",
	"ordr":  "ORDER",
	"gorup": "GROUP",
	"gruop": "GROUP",
}

// closestMatch returns the candidate within a small edit distance of name,
// or "". Distance threshold scales with the name length so short names do
// not match everything.
func closestMatch(name string, candidates []string) string {
	best := ""
	bestDist := len(name)/2 + 1
	for _, c := range candidates {
		if d := editDistance(lowered(name), lowered(c)); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func lowered(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if 'A' <= r && r <= 'Z' {
			r += 32
		}
		out = append(out, r)
	}
	return string(out)
}

// editDistance is plain Levenshtein over two short identifiers.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min3(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
