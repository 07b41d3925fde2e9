// Hand-written SQL parser.
//
// What: Parses the supported SELECT dialect into an AST used by the
// executor: projections, FROM/JOIN, WHERE predicate trees, GROUP BY,
// HAVING, ORDER BY, LIMIT/OFFSET, WITH [RECURSIVE] CTEs, and scalar/IN/
// EXISTS subqueries.
// How: A straightforward recursive-descent parser over a small token stream
// from the lexer. It favors clarity and precise error messages. Ident-like
// parsing accepts keywords as identifiers to keep the grammar practical for
// common column names.
// Why: Parsing stays purely syntactic; table and column names are resolved
// later by the executor so parse errors and semantic errors remain
// distinguishable failure kinds.
package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// Parser holds the lexer and current/peek tokens for recursive-descent
// parsing.
type Parser struct {
	lx   *lexer
	cur  token
	peek token
}

// NewParser creates a new SQL parser for the provided input string.
func NewParser(sql string) *Parser {
	p := &Parser{lx: newLexer(sql)}
	p.cur = p.lx.nextToken()
	p.peek = p.lx.nextToken()
	return p
}

func (p *Parser) next() { p.cur, p.peek = p.peek, p.lx.nextToken() }

func (p *Parser) expectSymbol(sym string) error {
	if p.cur.Typ == tSymbol && p.cur.Val == sym {
		p.next()
		return nil
	}
	return p.errf("expected %q", sym)
}

func (p *Parser) expectKeyword(kw string) error {
	if p.cur.Typ == tKeyword && p.cur.Val == kw {
		p.next()
		return nil
	}
	return p.errf("expected %s", kw)
}

func (p *Parser) errf(format string, a ...any) error {
	msg := fmt.Sprintf(format, a...)
	if p.cur.Val != "" {
		msg = fmt.Sprintf("%s, near %q", msg, p.cur.Val)
	}
	pe := &ParseError{Msg: msg, Line: p.cur.Line, Col: p.cur.Col}
	if fix, ok := keywordTypos[strings.ToLower(p.cur.Val)]; ok {
		pe.Suggestion = "did you mean " + fix + "?"
	}
	return pe
}

// ------------------------------ AST ------------------------------

type Expr interface{}

type (
	// VarRef refers to a column, optionally qualified (alias.column).
	VarRef struct{ Name string }
	// Literal holds a constant value (number, string, bool, NULL).
	Literal struct{ Val any }
	// Unary represents unary operators +, -, NOT.
	Unary struct {
		Op   string
		Expr Expr
	}
	// Binary represents binary operators (+,-,*,/, comparisons, AND/OR).
	Binary struct {
		Op          string
		Left, Right Expr
	}
	// IsNull represents IS [NOT] NULL.
	IsNull struct {
		Expr   Expr
		Negate bool
	}
	// Like represents [NOT] LIKE with % and _ wildcards.
	Like struct {
		Expr    Expr
		Pattern Expr
		Negate  bool
	}
	// InList represents [NOT] IN over a value list or a subquery.
	InList struct {
		Expr   Expr
		List   []Expr
		Sub    *SelectStmt
		Negate bool
	}
	// Between represents [NOT] BETWEEN lo AND hi.
	Between struct {
		Expr, Lo, Hi Expr
		Negate       bool
	}
	// Exists represents [NOT] EXISTS (subquery).
	Exists struct {
		Sub    *SelectStmt
		Negate bool
	}
	// Subquery is a scalar subquery in expression position.
	Subquery struct{ Sel *SelectStmt }
	// FuncCall represents an aggregate call, optionally COUNT(*).
	FuncCall struct {
		Name string
		Args []Expr
		Star bool
	}
)

// JoinType enumerates the supported join kinds.
type JoinType int

const (
	JoinInner JoinType = iota
	JoinLeft
	JoinRight
	JoinCross
)

func (jt JoinType) String() string {
	switch jt {
	case JoinLeft:
		return "LEFT"
	case JoinRight:
		return "RIGHT"
	case JoinCross:
		return "CROSS"
	default:
		return "INNER"
	}
}

// FromItem binds a source (base table, CTE reference, or subquery) and its
// alias.
type FromItem struct {
	Table string
	Alias string
	Sub   *SelectStmt
}

// JoinClause holds a join kind with the right side and join condition.
type JoinClause struct {
	Type  JoinType
	Right FromItem
	On    Expr
}

// SelectItem represents a projection item, optionally with alias or *.
type SelectItem struct {
	Expr  Expr
	Alias string
	Star  bool
}

// OrderItem specifies ordering column and direction.
type OrderItem struct {
	Col  string
	Desc bool
}

// CTE is a WITH-clause definition. Recursive CTEs carry an anchor term and
// a recursive term split on UNION ALL.
type CTE struct {
	Name      string
	Columns   []string
	Select    *SelectStmt
	Recursive bool
	Anchor    *SelectStmt
	Recur     *SelectStmt
}

// SelectStmt represents a SELECT query and its clauses.
type SelectStmt struct {
	Distinct bool
	Projs    []SelectItem
	From     FromItem
	Joins    []JoinClause
	Where    Expr
	GroupBy  []VarRef
	Having   Expr
	OrderBy  []OrderItem
	Limit    *int
	Offset   *int
	CTEs     []CTE
}

// ------------------------------ Parse ------------------------------

// Parse parses a single SELECT statement (optionally preceded by a WITH
// clause) and requires the input to be fully consumed.
func (p *Parser) Parse() (*SelectStmt, error) {
	if p.cur.Typ == tEOF {
		return nil, &ParseError{Msg: "empty query", Suggestion: "enter a query like: SELECT * FROM employees", Line: p.cur.Line, Col: p.cur.Col}
	}
	sel, err := p.parseSelectWithCTE()
	if err != nil {
		return nil, err
	}
	if p.cur.Typ == tSymbol && p.cur.Val == ";" {
		p.next()
	}
	if p.cur.Typ != tEOF {
		return nil, p.errf("unexpected trailing input")
	}
	return sel, nil
}

func (p *Parser) parseSelectWithCTE() (*SelectStmt, error) {
	var ctes []CTE
	if p.cur.Typ == tKeyword && p.cur.Val == "WITH" {
		p.next()
		recursive := false
		if p.cur.Typ == tKeyword && p.cur.Val == "RECURSIVE" {
			recursive = true
			p.next()
		}
		for {
			cte, err := p.parseCTE(recursive)
			if err != nil {
				return nil, err
			}
			ctes = append(ctes, cte)
			if p.cur.Typ == tSymbol && p.cur.Val == "," {
				p.next()
				continue
			}
			break
		}
	}
	sel, err := p.parseSelect()
	if err != nil {
		return nil, err
	}
	sel.CTEs = ctes
	return sel, nil
}

func (p *Parser) parseCTE(recursive bool) (CTE, error) {
	name := p.parseIdentLike()
	if name == "" {
		return CTE{}, p.errf("expected CTE name")
	}
	var cols []string
	if p.cur.Typ == tSymbol && p.cur.Val == "(" {
		p.next()
		for {
			id := p.parseIdentLike()
			if id == "" {
				return CTE{}, p.errf("expected CTE column name")
			}
			cols = append(cols, id)
			if p.cur.Typ == tSymbol && p.cur.Val == "," {
				p.next()
				continue
			}
			break
		}
		if err := p.expectSymbol(")"); err != nil {
			return CTE{}, err
		}
	}
	if err := p.expectKeyword("AS"); err != nil {
		return CTE{}, err
	}
	if err := p.expectSymbol("("); err != nil {
		return CTE{}, err
	}
	anchor, err := p.parseSelect()
	if err != nil {
		return CTE{}, err
	}
	cte := CTE{Name: name, Columns: cols, Select: anchor}
	if p.cur.Typ == tKeyword && p.cur.Val == "UNION" {
		p.next()
		if err := p.expectKeyword("ALL"); err != nil {
			return CTE{}, err
		}
		recur, err := p.parseSelect()
		if err != nil {
			return CTE{}, err
		}
		if !recursive {
			return CTE{}, &ParseError{
				Msg:        fmt.Sprintf("UNION ALL in CTE %q without RECURSIVE", name),
				Suggestion: "use WITH RECURSIVE for anchor/recursive CTEs",
				Line:       p.cur.Line, Col: p.cur.Col,
			}
		}
		cte.Recursive = true
		cte.Anchor = anchor
		cte.Recur = recur
	}
	if err := p.expectSymbol(")"); err != nil {
		return CTE{}, err
	}
	return cte, nil
}

func (p *Parser) parseSelect() (*SelectStmt, error) {
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	sel := &SelectStmt{}

	if p.cur.Typ == tKeyword && p.cur.Val == "DISTINCT" {
		sel.Distinct = true
		p.next()
	}
	if err := p.parseProjections(sel); err != nil {
		return nil, err
	}
	if err := p.parseFromClause(sel); err != nil {
		return nil, err
	}
	if err := p.parseJoinClauses(sel); err != nil {
		return nil, err
	}
	if p.cur.Typ == tKeyword && p.cur.Val == "WHERE" {
		p.next()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		sel.Where = e
	}
	if err := p.parseGroupByClause(sel); err != nil {
		return nil, err
	}
	if p.cur.Typ == tKeyword && p.cur.Val == "HAVING" {
		p.next()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		sel.Having = e
	}
	if err := p.parseOrderByClause(sel); err != nil {
		return nil, err
	}
	if err := p.parseLimitOffset(sel); err != nil {
		return nil, err
	}
	return sel, nil
}

func (p *Parser) parseProjections(sel *SelectStmt) error {
	for {
		if p.cur.Typ == tSymbol && p.cur.Val == "*" {
			p.next()
			sel.Projs = append(sel.Projs, SelectItem{Star: true})
		} else {
			e, err := p.parseExpr()
			if err != nil {
				return err
			}
			alias := ""
			if p.cur.Typ == tKeyword && p.cur.Val == "AS" {
				p.next()
				alias = p.parseIdentLike()
				if alias == "" {
					return p.errf("expected alias after AS")
				}
			} else if p.cur.Typ == tIdent {
				alias = p.cur.Val
				p.next()
			}
			sel.Projs = append(sel.Projs, SelectItem{Expr: e, Alias: alias})
		}
		if p.cur.Typ == tSymbol && p.cur.Val == "," {
			p.next()
			continue
		}
		break
	}
	return nil
}

func (p *Parser) parseFromClause(sel *SelectStmt) error {
	// FROM is optional: a literal SELECT projects over a single empty row
	if p.cur.Typ != tKeyword || p.cur.Val != "FROM" {
		return nil
	}
	p.next()
	item, err := p.parseFromItem()
	if err != nil {
		return err
	}
	sel.From = item
	return nil
}

// parseFromItem parses a base table or a parenthesized subquery, with an
// optional alias.
func (p *Parser) parseFromItem() (FromItem, error) {
	var item FromItem
	if p.cur.Typ == tSymbol && p.cur.Val == "(" {
		p.next()
		sub, err := p.parseSelectWithCTE()
		if err != nil {
			return item, err
		}
		if err := p.expectSymbol(")"); err != nil {
			return item, err
		}
		item.Sub = sub
	} else {
		name := p.parseIdentLike()
		if name == "" {
			return item, p.errf("expected table name")
		}
		item.Table = name
		item.Alias = name
	}
	if p.cur.Typ == tKeyword && p.cur.Val == "AS" {
		p.next()
		alias := p.parseIdentLike()
		if alias == "" {
			return item, p.errf("expected alias after AS")
		}
		item.Alias = alias
	} else if p.cur.Typ == tIdent {
		item.Alias = p.cur.Val
		p.next()
	}
	if item.Sub != nil && item.Alias == "" {
		return item, p.errf("subquery in FROM requires an alias")
	}
	return item, nil
}

func (p *Parser) parseJoinClauses(sel *SelectStmt) error {
	for {
		jt := JoinInner
		switch {
		case p.cur.Typ == tKeyword && p.cur.Val == "JOIN":
			p.next()
		case p.cur.Typ == tKeyword && p.cur.Val == "INNER":
			p.next()
			if err := p.expectKeyword("JOIN"); err != nil {
				return err
			}
		case p.cur.Typ == tKeyword && (p.cur.Val == "LEFT" || p.cur.Val == "RIGHT"):
			if p.cur.Val == "RIGHT" {
				jt = JoinRight
			} else {
				jt = JoinLeft
			}
			p.next()
			if p.cur.Typ == tKeyword && p.cur.Val == "OUTER" {
				p.next()
			}
			if err := p.expectKeyword("JOIN"); err != nil {
				return err
			}
		case p.cur.Typ == tKeyword && p.cur.Val == "CROSS":
			jt = JoinCross
			p.next()
			if err := p.expectKeyword("JOIN"); err != nil {
				return err
			}
		default:
			return nil
		}

		right, err := p.parseFromItem()
		if err != nil {
			return err
		}
		var on Expr
		if jt != JoinCross {
			if err := p.expectKeyword("ON"); err != nil {
				return err
			}
			on, err = p.parseExpr()
			if err != nil {
				return err
			}
		}
		sel.Joins = append(sel.Joins, JoinClause{Type: jt, Right: right, On: on})
	}
}

func (p *Parser) parseGroupByClause(sel *SelectStmt) error {
	if p.cur.Typ != tKeyword || p.cur.Val != "GROUP" {
		return nil
	}
	p.next()
	if err := p.expectKeyword("BY"); err != nil {
		return err
	}
	for {
		id := p.parseIdentLike()
		if id == "" {
			return p.errf("GROUP BY expects a column")
		}
		sel.GroupBy = append(sel.GroupBy, VarRef{Name: id})
		if p.cur.Typ == tSymbol && p.cur.Val == "," {
			p.next()
			continue
		}
		break
	}
	return nil
}

func (p *Parser) parseOrderByClause(sel *SelectStmt) error {
	if p.cur.Typ != tKeyword || p.cur.Val != "ORDER" {
		return nil
	}
	p.next()
	if err := p.expectKeyword("BY"); err != nil {
		return err
	}
	for {
		col := p.parseIdentLike()
		if col == "" {
			return p.errf("ORDER BY expects a column")
		}
		desc := false
		if p.cur.Typ == tKeyword && (p.cur.Val == "ASC" || p.cur.Val == "DESC") {
			desc = p.cur.Val == "DESC"
			p.next()
		}
		sel.OrderBy = append(sel.OrderBy, OrderItem{Col: col, Desc: desc})
		if p.cur.Typ == tSymbol && p.cur.Val == "," {
			p.next()
			continue
		}
		break
	}
	return nil
}

func (p *Parser) parseLimitOffset(sel *SelectStmt) error {
	if p.cur.Typ == tKeyword && p.cur.Val == "LIMIT" {
		p.next()
		n := p.parseIntLiteral()
		if n == nil {
			return p.errf("LIMIT expects an integer")
		}
		sel.Limit = n
	}
	if p.cur.Typ == tKeyword && p.cur.Val == "OFFSET" {
		p.next()
		n := p.parseIntLiteral()
		if n == nil {
			return p.errf("OFFSET expects an integer")
		}
		sel.Offset = n
	}
	return nil
}

func (p *Parser) parseIdentLike() string {
	// Accept keywords as identifier-like names so column names such as
	// "count" remain usable.
	if p.cur.Typ == tIdent || p.cur.Typ == tKeyword {
		s := p.cur.Val
		p.next()
		return s
	}
	return ""
}

func (p *Parser) parseIntLiteral() *int {
	if p.cur.Typ == tNumber && !strings.Contains(p.cur.Val, ".") {
		n, _ := strconv.Atoi(p.cur.Val)
		p.next()
		return &n
	}
	return nil
}

// ------------------------------ Expressions ------------------------------

func (p *Parser) parseExpr() (Expr, error) { return p.parseOr() }

func (p *Parser) parseOr() (Expr, error) {
	l, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur.Typ == tKeyword && p.cur.Val == "OR" {
		p.next()
		r, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		l = &Binary{Op: "OR", Left: l, Right: r}
	}
	return l, nil
}

func (p *Parser) parseAnd() (Expr, error) {
	l, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.cur.Typ == tKeyword && p.cur.Val == "AND" {
		p.next()
		r, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		l = &Binary{Op: "AND", Left: l, Right: r}
	}
	return l, nil
}

func (p *Parser) parseNot() (Expr, error) {
	if p.cur.Typ == tKeyword && p.cur.Val == "NOT" {
		p.next()
		e, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: "NOT", Expr: e}, nil
	}
	return p.parsePredicate()
}

// parsePredicate parses a comparison chain and the postfix predicate forms
// (IS NULL, LIKE, IN, BETWEEN).
func (p *Parser) parsePredicate() (Expr, error) {
	l, err := p.parseAddSub()
	if err != nil {
		return nil, err
	}
	for {
		if p.cur.Typ == tSymbol {
			switch p.cur.Val {
			case "=", "!=", "<>", "<", "<=", ">", ">=":
				op := p.cur.Val
				p.next()
				r, err := p.parseAddSub()
				if err != nil {
					return nil, err
				}
				l = &Binary{Op: op, Left: l, Right: r}
				continue
			}
		}
		if p.cur.Typ == tKeyword {
			negate := false
			kw := p.cur.Val
			if kw == "NOT" && p.peek.Typ == tKeyword &&
				(p.peek.Val == "LIKE" || p.peek.Val == "IN" || p.peek.Val == "BETWEEN") {
				negate = true
				p.next()
				kw = p.cur.Val
			}
			switch kw {
			case "IS":
				p.next()
				neg := false
				if p.cur.Typ == tKeyword && p.cur.Val == "NOT" {
					neg = true
					p.next()
				}
				if err := p.expectKeyword("NULL"); err != nil {
					return nil, err
				}
				l = &IsNull{Expr: l, Negate: neg}
				continue
			case "LIKE":
				p.next()
				pat, err := p.parseAddSub()
				if err != nil {
					return nil, err
				}
				l = &Like{Expr: l, Pattern: pat, Negate: negate}
				continue
			case "IN":
				p.next()
				in, err := p.parseInTail(l, negate)
				if err != nil {
					return nil, err
				}
				l = in
				continue
			case "BETWEEN":
				p.next()
				lo, err := p.parseAddSub()
				if err != nil {
					return nil, err
				}
				if err := p.expectKeyword("AND"); err != nil {
					return nil, err
				}
				hi, err := p.parseAddSub()
				if err != nil {
					return nil, err
				}
				l = &Between{Expr: l, Lo: lo, Hi: hi, Negate: negate}
				continue
			}
		}
		break
	}
	return l, nil
}

func (p *Parser) parseInTail(l Expr, negate bool) (Expr, error) {
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	if p.cur.Typ == tKeyword && (p.cur.Val == "SELECT" || p.cur.Val == "WITH") {
		sub, err := p.parseSelectWithCTE()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		return &InList{Expr: l, Sub: sub, Negate: negate}, nil
	}
	var list []Expr
	for {
		e, err := p.parseAddSub()
		if err != nil {
			return nil, err
		}
		list = append(list, e)
		if p.cur.Typ == tSymbol && p.cur.Val == "," {
			p.next()
			continue
		}
		break
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return &InList{Expr: l, List: list, Negate: negate}, nil
}

func (p *Parser) parseAddSub() (Expr, error) {
	l, err := p.parseMulDiv()
	if err != nil {
		return nil, err
	}
	for p.cur.Typ == tSymbol && (p.cur.Val == "+" || p.cur.Val == "-") {
		op := p.cur.Val
		p.next()
		r, err := p.parseMulDiv()
		if err != nil {
			return nil, err
		}
		l = &Binary{Op: op, Left: l, Right: r}
	}
	return l, nil
}

func (p *Parser) parseMulDiv() (Expr, error) {
	l, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur.Typ == tSymbol && (p.cur.Val == "*" || p.cur.Val == "/") {
		op := p.cur.Val
		p.next()
		r, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		l = &Binary{Op: op, Left: l, Right: r}
	}
	return l, nil
}

func (p *Parser) parseUnary() (Expr, error) {
	if p.cur.Typ == tSymbol && (p.cur.Val == "+" || p.cur.Val == "-") {
		op := p.cur.Val
		p.next()
		e, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: op, Expr: e}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (Expr, error) {
	switch p.cur.Typ {
	case tNumber:
		val := p.cur.Val
		p.next()
		if n, err := strconv.Atoi(val); err == nil {
			return &Literal{Val: n}, nil
		}
		f, _ := strconv.ParseFloat(val, 64)
		return &Literal{Val: f}, nil
	case tString:
		s := p.cur.Val
		p.next()
		return &Literal{Val: s}, nil
	case tKeyword:
		switch p.cur.Val {
		case "COUNT", "SUM", "AVG", "MIN", "MAX":
			return p.parseFuncCall()
		case "EXISTS":
			p.next()
			if err := p.expectSymbol("("); err != nil {
				return nil, err
			}
			sub, err := p.parseSelectWithCTE()
			if err != nil {
				return nil, err
			}
			if err := p.expectSymbol(")"); err != nil {
				return nil, err
			}
			return &Exists{Sub: sub}, nil
		case "TRUE":
			p.next()
			return &Literal{Val: true}, nil
		case "FALSE":
			p.next()
			return &Literal{Val: false}, nil
		case "NULL":
			p.next()
			return &Literal{Val: nil}, nil
		default:
			return nil, p.errf("unexpected keyword")
		}
	case tIdent:
		name := p.cur.Val
		p.next()
		return &VarRef{Name: name}, nil
	case tSymbol:
		if p.cur.Val == "(" {
			if p.peek.Typ == tKeyword && (p.peek.Val == "SELECT" || p.peek.Val == "WITH") {
				p.next()
				sub, err := p.parseSelectWithCTE()
				if err != nil {
					return nil, err
				}
				if err := p.expectSymbol(")"); err != nil {
					return nil, err
				}
				return &Subquery{Sel: sub}, nil
			}
			p.next()
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectSymbol(")"); err != nil {
				return nil, err
			}
			return e, nil
		}
	}
	return nil, p.errf("unexpected token")
}

func (p *Parser) parseFuncCall() (Expr, error) {
	name := p.cur.Val
	p.next()
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	if name == "COUNT" && p.cur.Typ == tSymbol && p.cur.Val == "*" {
		p.next()
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		return &FuncCall{Name: name, Star: true}, nil
	}
	var args []Expr
	if p.cur.Typ != tSymbol || p.cur.Val != ")" {
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, e)
			if p.cur.Typ == tSymbol && p.cur.Val == "," {
				p.next()
				continue
			}
			break
		}
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return &FuncCall{Name: name, Args: args}, nil
}
