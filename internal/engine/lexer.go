// SQL lexer used by the parser.
//
// What: A minimal, whitespace- and comment-aware tokenizer that recognizes
// identifiers, keywords, numeric and string literals, and symbols, tracking
// line/column positions for error reporting.
// How: Single-pass rune-based scanner supporting -- and /* */ comments,
// uppercasing keywords, and preserving identifier case. Keywords are a fixed
// allow-list tailored to the supported dialect.
// Why: A compact lexer reduces parser complexity and keeps error messages
// local and actionable.
package engine

import (
	"strings"
	"unicode"
)

type tokenType int

const (
	tEOF tokenType = iota
	tIdent
	tNumber
	tString
	tSymbol
	tKeyword
)

type token struct {
	Typ  tokenType
	Val  string
	Line int
	Col  int
}

type lexer struct {
	s    string
	pos  int
	line int
	col  int
}

func newLexer(s string) *lexer { return &lexer{s: s, line: 1, col: 1} }

func (lx *lexer) peek() rune {
	if lx.pos >= len(lx.s) {
		return 0
	}
	return rune(lx.s[lx.pos])
}

func (lx *lexer) peekN(n int) rune {
	p := lx.pos + n
	if p >= len(lx.s) {
		return 0
	}
	return rune(lx.s[p])
}

func (lx *lexer) next() rune {
	if lx.pos >= len(lx.s) {
		return 0
	}
	r := rune(lx.s[lx.pos])
	lx.pos++
	if r == '\n' {
		lx.line++
		lx.col = 1
	} else {
		lx.col++
	}
	return r
}

func (lx *lexer) skipWS() {
	for {
		if lx.pos >= len(lx.s) {
			return
		}
		r := rune(lx.s[lx.pos])
		if unicode.IsSpace(r) {
			lx.next()
			continue
		}
		// -- line comment
		if r == '-' && lx.peekN(1) == '-' {
			for lx.pos < len(lx.s) && lx.s[lx.pos] != '\n' {
				lx.next()
			}
			continue
		}
		// /* block */
		if r == '/' && lx.peekN(1) == '*' {
			lx.next()
			lx.next()
			for lx.pos < len(lx.s) {
				if lx.s[lx.pos] == '*' && lx.peekN(1) == '/' {
					lx.next()
					lx.next()
					break
				}
				lx.next()
			}
			continue
		}
		return
	}
}

func (lx *lexer) nextToken() token {
	lx.skipWS()
	line, col := lx.line, lx.col
	if lx.pos >= len(lx.s) {
		return token{Typ: tEOF, Line: line, Col: col}
	}
	r := lx.peek()

	if r == '\'' {
		return lx.tokenizeString(line, col)
	}
	// double-quoted identifiers preserve case
	if r == '"' {
		return lx.tokenizeQuotedIdent(line, col)
	}
	if unicode.IsDigit(r) {
		return lx.tokenizeNumber(line, col)
	}
	if unicode.IsLetter(r) || r == '_' {
		return lx.tokenizeIdentOrKeyword(line, col)
	}
	return lx.tokenizeSymbol(line, col)
}

func (lx *lexer) tokenizeString(line, col int) token {
	lx.next() // opening quote
	var val strings.Builder
	for lx.pos < len(lx.s) {
		ch := lx.next()
		if ch == '\'' {
			if lx.peek() == '\'' {
				lx.next()
				val.WriteRune('\'')
				continue
			}
			break
		}
		val.WriteRune(ch)
	}
	return token{Typ: tString, Val: val.String(), Line: line, Col: col}
}

func (lx *lexer) tokenizeQuotedIdent(line, col int) token {
	lx.next()
	var val strings.Builder
	for lx.pos < len(lx.s) {
		ch := lx.next()
		if ch == '"' {
			if lx.peek() == '"' {
				lx.next()
				val.WriteRune('"')
				continue
			}
			break
		}
		val.WriteRune(ch)
	}
	return token{Typ: tIdent, Val: val.String(), Line: line, Col: col}
}

func (lx *lexer) tokenizeNumber(line, col int) token {
	var val strings.Builder
	dot := false
	for lx.pos < len(lx.s) {
		ch := lx.peek()
		if unicode.IsDigit(ch) || (!dot && ch == '.') {
			if ch == '.' {
				dot = true
			}
			val.WriteRune(ch)
			lx.next()
		} else {
			break
		}
	}
	return token{Typ: tNumber, Val: val.String(), Line: line, Col: col}
}

func (lx *lexer) tokenizeIdentOrKeyword(line, col int) token {
	var val strings.Builder
	for lx.pos < len(lx.s) {
		ch := lx.peek()
		if unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' || ch == '.' {
			val.WriteRune(ch)
			lx.next()
		} else {
			break
		}
	}
	up := strings.ToUpper(val.String())
	if isKeyword(up) {
		return token{Typ: tKeyword, Val: up, Line: line, Col: col}
	}
	return token{Typ: tIdent, Val: val.String(), Line: line, Col: col}
}

func (lx *lexer) tokenizeSymbol(line, col int) token {
	r := lx.peek()
	switch r {
	case '(', ')', ',', '*', '+', '-', '/', '.', ';':
		lx.next()
		return token{Typ: tSymbol, Val: string(r), Line: line, Col: col}
	case '=', '<', '>', '!':
		a := lx.next()
		b := lx.peek()
		if (a == '<' && (b == '=' || b == '>')) || (a == '>' && b == '=') || (a == '!' && b == '=') {
			lx.next()
			return token{Typ: tSymbol, Val: string(a) + string(b), Line: line, Col: col}
		}
		return token{Typ: tSymbol, Val: string(a), Line: line, Col: col}
	default:
		lx.next()
		return token{Typ: tSymbol, Val: string(r), Line: line, Col: col}
	}
}

func isKeyword(up string) bool {
	switch up {
	case "SELECT", "DISTINCT", "FROM", "WHERE", "GROUP", "BY", "HAVING",
		"ORDER", "ASC", "DESC", "LIMIT", "OFFSET",
		"JOIN", "INNER", "LEFT", "RIGHT", "CROSS", "OUTER", "ON", "AS",
		"WITH", "RECURSIVE", "UNION", "ALL",
		"AND", "OR", "NOT", "IS", "NULL", "TRUE", "FALSE",
		"IN", "LIKE", "BETWEEN", "EXISTS",
		"COUNT", "SUM", "AVG", "MIN", "MAX":
		return true
	default:
		return false
	}
}
