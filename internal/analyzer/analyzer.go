// Package analyzer inspects parsed queries for performance anti-patterns.
//
// What: Produces an advisory report for one SELECT: detected issues with
// severity and fix hints, an overall rating, index recommendations with
// ready-to-run CREATE INDEX statements, suggested rewrites, and tips.
// How: Detection walks the parsed AST rather than the query text, so alias
// usage and nesting cannot fool the checks. Access rating reuses the access
// plan: a full scan rates bad, a range scan rates caution. Everything is
// advisory; analysis never fails a query.
// Why: The point of the engine is teaching how queries behave. Naming the
// anti-pattern next to the result is worth more than a silent slow scan.
package analyzer

import (
	"fmt"
	"strings"

	"github.com/SimonWaldherr/sqlvis/internal/dataset"
	"github.com/SimonWaldherr/sqlvis/internal/engine"
	"github.com/SimonWaldherr/sqlvis/internal/plan"
)

// Severity grades a single detected issue.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Issue is one detected anti-pattern.
type Issue struct {
	Severity    Severity `json:"severity"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Fix         string   `json:"fix,omitempty"`
}

// IndexRecommendation suggests an index the query could use.
type IndexRecommendation struct {
	Kind    string   `json:"kind"` // "filter", "sort" or "composite"
	Table   string   `json:"table"`
	Columns []string `json:"columns"`
	SQL     string   `json:"sql"`
	Reason  string   `json:"reason"`
}

// Rewrite pairs a problematic pattern with an equivalent faster form.
type Rewrite struct {
	Pattern     string `json:"pattern"`
	Rewritten   string `json:"rewritten"`
	Reason      string `json:"reason"`
	Improvement string `json:"improvement"`
}

// Analysis is the full advisory report for one query.
type Analysis struct {
	Issues          []Issue               `json:"issues"`
	Rating          string                `json:"rating"`        // "good", "warning" or "critical"
	AccessRating    string                `json:"access_rating"` // "good", "caution" or "bad"
	Recommendations []IndexRecommendation `json:"recommendations,omitempty"`
	Rewrites        []Rewrite             `json:"rewrites,omitempty"`
	Tips            []string              `json:"tips"`
}

const maxRecommendations = 3

// Analyze builds the advisory report for a parsed statement. A nil plan is
// computed on the spot.
func Analyze(ds *dataset.Dataset, sel *engine.SelectStmt, p *plan.Plan) *Analysis {
	if p == nil {
		p = plan.Explain(ds, sel)
	}
	a := &Analysis{
		Issues:       detectIssues(sel),
		AccessRating: accessRating(p),
	}
	a.Rating = overallRating(a.Issues)
	a.Recommendations = recommendIndexes(ds, sel)
	a.Rewrites = suggestRewrites(ds, sel)
	a.Tips = tips(a)
	return a
}

// detectIssues runs every anti-pattern check over the statement.
func detectIssues(sel *engine.SelectStmt) []Issue {
	var out []Issue

	if hasStar(sel) {
		out = append(out, Issue{
			Severity:    SeverityWarning,
			Title:       "SELECT * retrieves every column",
			Description: "The query fetches all columns even though most results need only a few.",
			Fix:         "List only the columns the caller actually uses.",
		})
	}
	if pat, ok := leadingWildcard(sel); ok {
		out = append(out, Issue{
			Severity:    SeverityError,
			Title:       "LIKE pattern starts with a wildcard",
			Description: fmt.Sprintf("The pattern %q begins with %%, which forces a full scan; no index can match a leading wildcard.", pat),
			Fix:         "Anchor the pattern at the start, e.g. 'abc%', or search a precomputed reversed column.",
		})
	}
	if l, r, ok := orAcrossColumns(sel.Where); ok {
		out = append(out, Issue{
			Severity:    SeverityWarning,
			Title:       "OR spans different columns",
			Description: fmt.Sprintf("OR between %s and %s prevents using a single index for the filter.", l, r),
			Fix:         "Split into two queries combined with UNION, one per column.",
		})
	}
	if hasNotInSubquery(sel) {
		out = append(out, Issue{
			Severity:    SeverityWarning,
			Title:       "NOT IN with a subquery",
			Description: "NOT IN evaluates the whole subquery result per row and yields no rows if the subquery returns NULL.",
			Fix:         "Use NOT EXISTS with a correlated subquery instead.",
		})
	}
	if len(sel.OrderBy) > 0 && sel.Limit == nil {
		out = append(out, Issue{
			Severity:    SeverityWarning,
			Title:       "ORDER BY without LIMIT",
			Description: "The whole result set is sorted even if the caller only looks at the first rows.",
			Fix:         "Add a LIMIT when only the top rows matter.",
		})
	}
	if sel.Distinct {
		out = append(out, Issue{
			Severity:    SeverityInfo,
			Title:       "DISTINCT requires deduplication",
			Description: "Every result row is hashed to drop duplicates; often a missing join condition is the real cause.",
			Fix:         "Check whether the join produces duplicates before reaching for DISTINCT.",
		})
	}
	if hasSubquery(sel) {
		out = append(out, Issue{
			Severity:    SeverityInfo,
			Title:       "Query contains a subquery",
			Description: "Subqueries are evaluated per outer row unless they are uncorrelated; a join is often simpler and faster.",
		})
	}
	if sel.Where == nil && sel.From.Table != "" && sel.From.Sub == nil {
		out = append(out, Issue{
			Severity:    SeverityInfo,
			Title:       "No WHERE clause",
			Description: "Every row of the table is read.",
			Fix:         "Add a filter if the caller does not need the full table.",
		})
	}
	return out
}

func overallRating(issues []Issue) string {
	rating := "good"
	for _, is := range issues {
		switch is.Severity {
		case SeverityError:
			return "critical"
		case SeverityWarning:
			rating = "warning"
		}
	}
	return rating
}

// accessRating maps the worst access type in the plan onto a rating.
func accessRating(p *plan.Plan) string {
	rating := "good"
	var walk func(n *plan.Node)
	walk = func(n *plan.Node) {
		if n == nil {
			return
		}
		switch n.Access {
		case plan.AccessAll:
			rating = "bad"
		case plan.AccessRange:
			if rating == "good" {
				rating = "caution"
			}
		}
		walk(n.Left)
		walk(n.Right)
	}
	if p != nil {
		walk(p.Root)
	}
	return rating
}

// recommendIndexes proposes at most three indexes for the primary FROM
// table: one per unindexed filter column, one for the sort column, and a
// composite when both exist.
func recommendIndexes(ds *dataset.Dataset, sel *engine.SelectStmt) []IndexRecommendation {
	t := baseTable(ds, sel)
	if t == nil {
		return nil
	}
	var out []IndexRecommendation
	filterCols := filterColumns(t, sel.From.Alias, sel.Where)
	for _, col := range filterCols {
		out = append(out, IndexRecommendation{
			Kind:    "filter",
			Table:   t.Name,
			Columns: []string{col},
			SQL:     indexSQL(t.Name, col),
			Reason:  fmt.Sprintf("WHERE filters on %s.%s, which has no index.", t.Name, col),
		})
	}
	var sortCol string
	for _, o := range sel.OrderBy {
		col := unqualify(o.Col, sel.From.Alias, t.Name)
		if col == "" {
			continue
		}
		if _, ok := t.ColIndex(col); !ok {
			continue
		}
		if _, ok := t.IndexOn(col); ok || strings.EqualFold(t.PrimaryKeyColumn(), col) {
			continue
		}
		sortCol = strings.ToLower(col)
		out = append(out, IndexRecommendation{
			Kind:    "sort",
			Table:   t.Name,
			Columns: []string{sortCol},
			SQL:     indexSQL(t.Name, sortCol),
			Reason:  fmt.Sprintf("ORDER BY %s.%s sorts the full result without an index.", t.Name, sortCol),
		})
		break
	}
	if len(filterCols) > 0 && sortCol != "" && filterCols[0] != sortCol {
		out = append(out, IndexRecommendation{
			Kind:    "composite",
			Table:   t.Name,
			Columns: []string{filterCols[0], sortCol},
			SQL:     fmt.Sprintf("CREATE INDEX idx_%s_%s_%s ON %s(%s, %s);", t.Name, filterCols[0], sortCol, t.Name, filterCols[0], sortCol),
			Reason:  "A composite index covers the filter and the sort in one pass.",
		})
	}
	if len(out) > maxRecommendations {
		out = out[:maxRecommendations]
	}
	return out
}

func indexSQL(table, col string) string {
	return fmt.Sprintf("CREATE INDEX idx_%s_%s ON %s(%s);", table, col, table, col)
}

// suggestRewrites pairs each detected pattern with an equivalent form.
func suggestRewrites(ds *dataset.Dataset, sel *engine.SelectStmt) []Rewrite {
	var out []Rewrite
	if hasStar(sel) {
		if t := baseTable(ds, sel); t != nil {
			out = append(out, Rewrite{
				Pattern:     "SELECT *",
				Rewritten:   "SELECT " + strings.Join(t.ColNames(), ", "),
				Reason:      "Naming columns avoids reading and transferring unused data.",
				Improvement: "Less data moved per row.",
			})
		}
	}
	if pat, ok := leadingWildcard(sel); ok {
		out = append(out, Rewrite{
			Pattern:     fmt.Sprintf("LIKE %q", pat),
			Rewritten:   fmt.Sprintf("LIKE %q", strings.TrimLeft(pat, "%")+"%"),
			Reason:      "A pattern anchored at the start can use an index on the column.",
			Improvement: "Index range scan instead of a full scan.",
		})
	}
	if hasNotInSubquery(sel) {
		out = append(out, Rewrite{
			Pattern:     "col NOT IN (SELECT ...)",
			Rewritten:   "NOT EXISTS (SELECT 1 FROM ... WHERE ... = col)",
			Reason:      "NOT EXISTS short-circuits per row and handles NULLs predictably.",
			Improvement: "Stops scanning the subquery at the first match.",
		})
	}
	if l, r, ok := orAcrossColumns(sel.Where); ok {
		out = append(out, Rewrite{
			Pattern:     fmt.Sprintf("WHERE %s ... OR %s ...", l, r),
			Rewritten:   "two SELECTs combined with UNION, one condition each",
			Reason:      "Each branch can use its own index; OR across columns cannot.",
			Improvement: "Two indexed lookups instead of a full scan.",
		})
	}
	return out
}

func tips(a *Analysis) []string {
	var out []string
	if a.AccessRating == "bad" {
		out = append(out, "The plan contains a full table scan; filter on an indexed column to avoid it.")
	}
	for _, is := range a.Issues {
		if is.Severity == SeverityError {
			out = append(out, "Fix the critical issue first; it dominates every other cost in this query.")
			break
		}
	}
	if len(a.Issues) == 0 {
		out = append(out, "Query looks reasonable. Consider adding LIMIT when exploring large results.")
	}
	return out
}

// ------------------------------ AST helpers ------------------------------

func hasStar(sel *engine.SelectStmt) bool {
	for _, p := range sel.Projs {
		if p.Star {
			return true
		}
	}
	return false
}

// leadingWildcard finds the first LIKE whose literal pattern starts with %.
func leadingWildcard(sel *engine.SelectStmt) (string, bool) {
	var found string
	walkExprs(sel, func(e engine.Expr) {
		lk, ok := e.(*engine.Like)
		if !ok || found != "" {
			return
		}
		lit, ok := lk.Pattern.(*engine.Literal)
		if !ok {
			return
		}
		s, ok := lit.Val.(string)
		if ok && strings.HasPrefix(s, "%") && strings.TrimLeft(s, "%_") != "" {
			found = s
		}
	})
	return found, found != ""
}

// orAcrossColumns reports an OR whose two sides filter different columns.
func orAcrossColumns(e engine.Expr) (string, string, bool) {
	b, ok := e.(*engine.Binary)
	if !ok {
		return "", "", false
	}
	if b.Op == "OR" {
		l := firstColumn(b.Left)
		r := firstColumn(b.Right)
		if l != "" && r != "" && !strings.EqualFold(l, r) {
			return l, r, true
		}
	}
	if l, r, ok := orAcrossColumns(b.Left); ok {
		return l, r, true
	}
	return orAcrossColumns(b.Right)
}

// firstColumn returns the first column reference under an expression.
func firstColumn(e engine.Expr) string {
	switch ex := e.(type) {
	case *engine.VarRef:
		return ex.Name
	case *engine.Binary:
		if c := firstColumn(ex.Left); c != "" {
			return c
		}
		return firstColumn(ex.Right)
	case *engine.Unary:
		return firstColumn(ex.Expr)
	case *engine.IsNull:
		return firstColumn(ex.Expr)
	case *engine.Like:
		return firstColumn(ex.Expr)
	case *engine.Between:
		return firstColumn(ex.Expr)
	case *engine.InList:
		return firstColumn(ex.Expr)
	}
	return ""
}

func hasNotInSubquery(sel *engine.SelectStmt) bool {
	found := false
	walkExprs(sel, func(e engine.Expr) {
		if in, ok := e.(*engine.InList); ok && in.Negate && in.Sub != nil {
			found = true
		}
	})
	return found
}

func hasSubquery(sel *engine.SelectStmt) bool {
	if sel.From.Sub != nil {
		return true
	}
	found := false
	walkExprs(sel, func(e engine.Expr) {
		switch ex := e.(type) {
		case *engine.Subquery:
			found = true
		case *engine.Exists:
			found = true
		case *engine.InList:
			if ex.Sub != nil {
				found = true
			}
		}
	})
	return found
}

// walkExprs visits every expression of the statement, without descending
// into subquery statements. Detection stays local to the query being rated.
func walkExprs(sel *engine.SelectStmt, fn func(engine.Expr)) {
	var walk func(e engine.Expr)
	walk = func(e engine.Expr) {
		if e == nil {
			return
		}
		fn(e)
		switch ex := e.(type) {
		case *engine.Binary:
			walk(ex.Left)
			walk(ex.Right)
		case *engine.Unary:
			walk(ex.Expr)
		case *engine.IsNull:
			walk(ex.Expr)
		case *engine.Like:
			walk(ex.Expr)
			walk(ex.Pattern)
		case *engine.Between:
			walk(ex.Expr)
			walk(ex.Lo)
			walk(ex.Hi)
		case *engine.InList:
			walk(ex.Expr)
			for _, it := range ex.List {
				walk(it)
			}
		case *engine.FuncCall:
			for _, arg := range ex.Args {
				walk(arg)
			}
		}
	}
	for _, p := range sel.Projs {
		walk(p.Expr)
	}
	walk(sel.Where)
	walk(sel.Having)
	for _, j := range sel.Joins {
		walk(j.On)
	}
}

// baseTable resolves the primary FROM table if it is a real base table.
func baseTable(ds *dataset.Dataset, sel *engine.SelectStmt) *dataset.Table {
	if sel.From.Table == "" || sel.From.Sub != nil {
		return nil
	}
	for _, c := range sel.CTEs {
		if strings.EqualFold(c.Name, sel.From.Table) {
			return nil
		}
	}
	t, ok := ds.Table(sel.From.Table)
	if !ok {
		return nil
	}
	return t
}

// filterColumns lists the table's columns compared in WHERE that have no
// index and are not the primary key, in first-seen order.
func filterColumns(t *dataset.Table, alias string, where engine.Expr) []string {
	var out []string
	seen := map[string]bool{}
	add := func(e engine.Expr) {
		v, ok := e.(*engine.VarRef)
		if !ok {
			return
		}
		col := unqualify(v.Name, alias, t.Name)
		if col == "" {
			return
		}
		key := strings.ToLower(col)
		if seen[key] {
			return
		}
		if _, ok := t.ColIndex(col); !ok {
			return
		}
		if strings.EqualFold(t.PrimaryKeyColumn(), col) {
			return
		}
		if _, ok := t.IndexOn(col); ok {
			return
		}
		seen[key] = true
		out = append(out, key)
	}
	var walk func(e engine.Expr)
	walk = func(e engine.Expr) {
		switch ex := e.(type) {
		case *engine.Binary:
			switch ex.Op {
			case "AND", "OR":
				walk(ex.Left)
				walk(ex.Right)
			case "=", "<", "<=", ">", ">=", "!=", "<>":
				add(ex.Left)
				add(ex.Right)
			}
		case *engine.Between:
			add(ex.Expr)
		case *engine.Like:
			add(ex.Expr)
		case *engine.InList:
			add(ex.Expr)
		case *engine.Unary:
			walk(ex.Expr)
		}
	}
	if where != nil {
		walk(where)
	}
	return out
}

// unqualify strips a matching qualifier prefix; a foreign qualifier
// yields "".
func unqualify(name string, quals ...string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return name
	}
	for _, q := range quals {
		if q != "" && strings.EqualFold(name[:i], q) {
			return name[i+1:]
		}
	}
	return ""
}
