// Query executor.
//
// What: Executes a parsed SELECT against the fixed dataset through the
// standard stage pipeline: FROM, JOIN, WHERE, GROUP BY, HAVING, SELECT,
// DISTINCT, ORDER BY, LIMIT. Records per-stage row counts for the
// execution-order trace.
// How: Rows travel as maps carrying both qualified (alias.column) and
// unqualified keys. Joins are nested loops; grouping hashes a composite key;
// ORDER BY is a stable sort so ties keep input order. Subqueries execute
// through a child environment whose outer row enables correlation;
// uncorrelated subqueries are materialized once and cached. Recursive CTEs
// iterate anchor/recursive terms to a fixed point under an iteration cap.
// Why: A naive pipeline in clause-execution order is the point of the
// exercise: the observable stage counts ARE the product, so no stage may be
// fused or reordered away.
package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/SimonWaldherr/sqlvis/internal/dataset"
)

// Execution stage names, in pipeline order.
const (
	StageFrom     = "FROM"
	StageJoin     = "JOIN"
	StageWhere    = "WHERE"
	StageGroupBy  = "GROUP BY"
	StageHaving   = "HAVING"
	StageSelect   = "SELECT"
	StageDistinct = "DISTINCT"
	StageOrderBy  = "ORDER BY"
	StageLimit    = "LIMIT"
)

// StageStat records what one pipeline stage did: rows in, rows out, whether
// the clause was present in the query, and a short clause rendering.
type StageStat struct {
	Stage   string
	InRows  int
	OutRows int
	Active  bool
	Note    string
}

// Result is an executed query: ordered output columns, rows keyed by
// lower-cased column name, and the per-stage statistics of the run.
type Result struct {
	Cols  []string
	Rows  []Row
	Stats []StageStat
}

// ValueRows flattens the result into ordered value slices, one per row,
// aligned with Cols.
func (r *Result) ValueRows() [][]any {
	out := make([][]any, len(r.Rows))
	for i, row := range r.Rows {
		vals := make([]any, len(r.Cols))
		for j, c := range r.Cols {
			vals[j] = row[strings.ToLower(c)]
		}
		out[i] = vals
	}
	return out
}

// Options bounds query execution. Zero values fall back to the defaults.
type Options struct {
	// MaxRecursionDepth caps recursive CTE iterations.
	MaxRecursionDepth int
	// MaxIntermediateRows caps the total rows produced by joins and CTE
	// expansion before the run is aborted.
	MaxIntermediateRows int
}

// DefaultOptions returns the standard execution limits.
func DefaultOptions() Options {
	return Options{MaxRecursionDepth: 100, MaxIntermediateRows: 1_000_000}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxRecursionDepth <= 0 {
		o.MaxRecursionDepth = d.MaxRecursionDepth
	}
	if o.MaxIntermediateRows <= 0 {
		o.MaxIntermediateRows = d.MaxIntermediateRows
	}
	return o
}

// Execute runs a parsed SELECT against the dataset.
func Execute(ctx context.Context, ds *dataset.Dataset, sel *SelectStmt, opts Options) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	budget := 0
	env := &execEnv{
		ctx:       ctx,
		ds:        ds,
		opts:      opts.withDefaults(),
		ctes:      map[string]*relation{},
		subCache:  map[*SelectStmt]*relation{},
		expanding: map[string]bool{},
		budget:    &budget,
		top:       true,
	}
	return env.executeSelect(sel)
}

// relation is a materialized intermediate result: display columns in order
// and rows keyed by lower-cased column name.
type relation struct {
	cols []string
	rows []Row
}

// source tracks one FROM/JOIN input for scope resolution and NULL padding.
type source struct {
	alias string
	cols  []string
}

type scopeInfo struct {
	// ambiguous marks unqualified column names present in more than one
	// source.
	ambiguous map[string]bool
}

type execEnv struct {
	ctx  context.Context
	ds   *dataset.Dataset
	opts Options

	ctes     map[string]*relation
	subCache map[*SelectStmt]*relation
	// expanding names the recursive CTEs currently being iterated; a
	// subquery reading one of them must not be cached across iterations.
	expanding map[string]bool
	budget    *int

	scope     *scopeInfo
	outer     Row
	outerUsed *bool

	top   bool
	stats []StageStat
}

func (env *execEnv) checkCtx() error {
	select {
	case <-env.ctx.Done():
		return env.ctx.Err()
	default:
		return nil
	}
}

func (env *execEnv) spend(n int) error {
	*env.budget += n
	if *env.budget > env.opts.MaxIntermediateRows {
		return &LimitExceededError{Msg: fmt.Sprintf("intermediate result exceeded %d rows", env.opts.MaxIntermediateRows)}
	}
	return nil
}

// child creates an environment for a nested query sharing the CTE scope,
// cache and row budget.
func (env *execEnv) child(outer Row, used *bool) *execEnv {
	ctes := make(map[string]*relation, len(env.ctes))
	for k, v := range env.ctes {
		ctes[k] = v
	}
	return &execEnv{
		ctx:       env.ctx,
		ds:        env.ds,
		opts:      env.opts,
		ctes:      ctes,
		subCache:  env.subCache,
		expanding: env.expanding,
		budget:    env.budget,
		outer:     outer,
		outerUsed: used,
	}
}

func (env *execEnv) record(stage string, in, out int, active bool, note string) {
	if !env.top {
		return
	}
	env.stats = append(env.stats, StageStat{Stage: stage, InRows: in, OutRows: out, Active: active, Note: note})
}

// ------------------------------ Pipeline ------------------------------

func (env *execEnv) executeSelect(sel *SelectStmt) (*Result, error) {
	if err := env.materializeCTEs(sel.CTEs); err != nil {
		return nil, err
	}

	// FROM
	var rows []Row
	var sources []source
	if sel.From.Table == "" && sel.From.Sub == nil {
		// literal SELECT without FROM: a single empty row to project over
		rows = []Row{{}}
		env.record(StageFrom, 0, 1, false, "")
	} else {
		r, src, baseCount, err := env.resolveFromItem(sel.From)
		if err != nil {
			return nil, err
		}
		rows = r
		sources = append(sources, src)
		env.record(StageFrom, baseCount, len(rows), true, fromItemText(sel.From))
	}
	env.scope = buildScope(sources)

	// JOIN
	joinIn := len(rows)
	for _, j := range sel.Joins {
		joined, rsrc, err := env.applyJoin(rows, sources, j)
		if err != nil {
			return nil, err
		}
		rows = joined
		sources = append(sources, rsrc)
	}
	if len(sel.Joins) > 0 {
		notes := make([]string, len(sel.Joins))
		for i, j := range sel.Joins {
			notes[i] = joinText(j)
		}
		env.record(StageJoin, joinIn, len(rows), true, strings.Join(notes, "; "))
	} else {
		env.record(StageJoin, joinIn, len(rows), false, "")
	}

	// WHERE
	whereIn := len(rows)
	if sel.Where != nil {
		kept := rows[:0:0]
		for _, r := range rows {
			v, err := env.evalExpr(sel.Where, r)
			if err != nil {
				return nil, err
			}
			if toTri(v) == tvTrue {
				kept = append(kept, r)
			}
		}
		rows = kept
		env.record(StageWhere, whereIn, len(rows), true, ExprText(sel.Where))
	} else {
		env.record(StageWhere, whereIn, len(rows), false, "")
	}

	grouped := len(sel.GroupBy) > 0 || anyAggInSelect(sel.Projs) || sel.Having != nil

	projCols, err := buildProjCols(sel, sources, grouped)
	if err != nil {
		return nil, err
	}

	var projected []projRow
	if grouped {
		projected, err = env.runGrouped(sel, rows, projCols)
		if err != nil {
			return nil, err
		}
	} else {
		env.record(StageGroupBy, len(rows), len(rows), false, "")
		env.record(StageHaving, len(rows), len(rows), false, "")
		projected, err = env.projectRows(rows, projCols)
		if err != nil {
			return nil, err
		}
		env.record(StageSelect, len(rows), len(projected), true, projectionText(sel.Projs))
	}

	cols := make([]string, len(projCols))
	for i, pc := range projCols {
		cols[i] = pc.name
	}

	// DISTINCT
	distinctIn := len(projected)
	if sel.Distinct {
		projected = dedupeProjected(projected, cols)
		env.record(StageDistinct, distinctIn, len(projected), true, "")
	} else {
		env.record(StageDistinct, distinctIn, len(projected), false, "")
	}

	// ORDER BY
	orderIn := len(projected)
	if len(sel.OrderBy) > 0 {
		if err := env.sortProjected(projected, sel.OrderBy); err != nil {
			return nil, err
		}
		env.record(StageOrderBy, orderIn, len(projected), true, orderByText(sel.OrderBy))
	} else {
		env.record(StageOrderBy, orderIn, len(projected), false, "")
	}

	// LIMIT / OFFSET
	limitIn := len(projected)
	if sel.Limit != nil || sel.Offset != nil {
		projected = applyLimit(projected, sel.Limit, sel.Offset)
		note := ""
		if sel.Limit != nil {
			note = fmt.Sprintf("LIMIT %d", *sel.Limit)
		}
		if sel.Offset != nil {
			if note != "" {
				note += " "
			}
			note += fmt.Sprintf("OFFSET %d", *sel.Offset)
		}
		env.record(StageLimit, limitIn, len(projected), true, note)
	} else {
		env.record(StageLimit, limitIn, len(projected), false, "")
	}

	out := make([]Row, len(projected))
	for i, pr := range projected {
		out[i] = pr.out
	}
	return &Result{Cols: cols, Rows: out, Stats: env.stats}, nil
}

// ------------------------------ Sources ------------------------------

func (env *execEnv) resolveFromItem(item FromItem) ([]Row, source, int, error) {
	if item.Sub != nil {
		res, err := env.child(env.outer, env.outerUsed).executeSelect(item.Sub)
		if err != nil {
			return nil, source{}, 0, err
		}
		rel := &relation{cols: res.Cols, rows: res.Rows}
		rows := qualifyRelation(rel, item.Alias)
		return rows, source{alias: item.Alias, cols: rel.cols}, len(rel.rows), nil
	}
	if rel, ok := env.ctes[strings.ToLower(item.Table)]; ok {
		rows := qualifyRelation(rel, item.Alias)
		return rows, source{alias: item.Alias, cols: rel.cols}, len(rel.rows), nil
	}
	t, ok := env.ds.Table(item.Table)
	if !ok {
		return nil, source{}, 0, env.unknownTableError(item.Table)
	}
	rows := rowsFromTable(t, item.Alias)
	return rows, source{alias: item.Alias, cols: t.ColNames()}, len(t.Rows), nil
}

func (env *execEnv) unknownTableError(name string) error {
	candidates := env.ds.TableNames()
	for c := range env.ctes {
		candidates = append(candidates, c)
	}
	se := &SemanticError{Msg: fmt.Sprintf("unknown table %q", name)}
	if m := closestMatch(name, candidates); m != "" {
		se.Suggestion = fmt.Sprintf("did you mean %q?", m)
	}
	return se
}

// rowsFromTable converts table storage into row maps keyed by both
// alias.column and plain column name.
func rowsFromTable(t *dataset.Table, alias string) []Row {
	cols := t.ColNames()
	rows := make([]Row, len(t.Rows))
	for i, vals := range t.Rows {
		r := make(Row, len(cols)*2)
		for j, c := range cols {
			putVal(r, alias+"."+c, vals[j])
			putVal(r, c, vals[j])
		}
		rows[i] = r
	}
	return rows
}

func qualifyRelation(rel *relation, alias string) []Row {
	rows := make([]Row, len(rel.rows))
	for i, src := range rel.rows {
		r := make(Row, len(rel.cols)*2)
		for _, c := range rel.cols {
			v := src[strings.ToLower(c)]
			putVal(r, alias+"."+c, v)
			putVal(r, c, v)
		}
		rows[i] = r
	}
	return rows
}

func buildScope(sources []source) *scopeInfo {
	seen := map[string]int{}
	for _, s := range sources {
		for _, c := range s.cols {
			seen[strings.ToLower(c)]++
		}
	}
	amb := map[string]bool{}
	for c, n := range seen {
		if n > 1 {
			amb[c] = true
		}
	}
	return &scopeInfo{ambiguous: amb}
}

// ------------------------------ Joins ------------------------------

func (env *execEnv) applyJoin(left []Row, leftSources []source, j JoinClause) ([]Row, source, error) {
	right, rsrc, _, err := env.resolveFromItem(j.Right)
	if err != nil {
		return nil, rsrc, err
	}
	// the ON predicate sees both sides, so ambiguity is checked against the
	// joined scope, not the final one
	env.scope = buildScope(append(append([]source(nil), leftSources...), rsrc))

	var out []Row
	emit := func(r Row) error {
		out = append(out, r)
		return env.spend(1)
	}

	switch j.Type {
	case JoinCross:
		for _, l := range left {
			for _, r := range right {
				if err := emit(mergeRows(l, r)); err != nil {
					return nil, rsrc, err
				}
			}
		}
	case JoinInner, JoinLeft:
		for _, l := range left {
			matched := false
			for _, r := range right {
				m := mergeRows(l, r)
				v, err := env.evalExpr(j.On, m)
				if err != nil {
					return nil, rsrc, err
				}
				if toTri(v) == tvTrue {
					matched = true
					if err := emit(m); err != nil {
						return nil, rsrc, err
					}
				}
			}
			if !matched && j.Type == JoinLeft {
				if err := emit(padRow(l, []source{rsrc})); err != nil {
					return nil, rsrc, err
				}
			}
		}
	case JoinRight:
		for _, r := range right {
			matched := false
			for _, l := range left {
				m := mergeRows(l, r)
				v, err := env.evalExpr(j.On, m)
				if err != nil {
					return nil, rsrc, err
				}
				if toTri(v) == tvTrue {
					matched = true
					if err := emit(m); err != nil {
						return nil, rsrc, err
					}
				}
			}
			if !matched {
				if err := emit(padRow(r, leftSources)); err != nil {
					return nil, rsrc, err
				}
			}
		}
	}
	return out, rsrc, nil
}

func mergeRows(l, r Row) Row {
	m := make(Row, len(l)+len(r))
	for k, v := range l {
		m[k] = v
	}
	for k, v := range r {
		m[k] = v
	}
	return m
}

// padRow extends a row with NULLs for the columns of the absent side of an
// outer join. Unqualified keys are only padded when not already bound, so an
// existing column of the present side is never clobbered.
func padRow(base Row, absent []source) Row {
	m := make(Row, len(base))
	for k, v := range base {
		m[k] = v
	}
	for _, s := range absent {
		for _, c := range s.cols {
			putVal(m, s.alias+"."+c, nil)
			key := strings.ToLower(c)
			if _, ok := m[key]; !ok {
				m[key] = nil
			}
		}
	}
	return m
}

// ------------------------------ CTEs ------------------------------

func (env *execEnv) materializeCTEs(ctes []CTE) error {
	for i := range ctes {
		cte := &ctes[i]
		var rel *relation
		var err error
		if cte.Recursive {
			rel, err = env.expandRecursiveCTE(cte)
		} else {
			rel, err = env.materializeSelect(cte.Select, cte.Columns)
		}
		if err != nil {
			return err
		}
		env.ctes[strings.ToLower(cte.Name)] = rel
	}
	return nil
}

func (env *execEnv) materializeSelect(sel *SelectStmt, rename []string) (*relation, error) {
	res, err := env.child(env.outer, env.outerUsed).executeSelect(sel)
	if err != nil {
		return nil, err
	}
	rel := &relation{cols: res.Cols, rows: res.Rows}
	if len(rename) > 0 {
		if len(rename) != len(rel.cols) {
			return nil, &SemanticError{
				Msg: fmt.Sprintf("CTE declares %d columns but its query produces %d", len(rename), len(rel.cols)),
			}
		}
		rel = renameRelation(rel, rename)
	}
	if err := env.spend(len(rel.rows)); err != nil {
		return nil, err
	}
	return rel, nil
}

func renameRelation(rel *relation, names []string) *relation {
	out := &relation{cols: names, rows: make([]Row, len(rel.rows))}
	for i, r := range rel.rows {
		nr := make(Row, len(names))
		for j, c := range rel.cols {
			putVal(nr, names[j], r[strings.ToLower(c)])
		}
		out.rows[i] = nr
	}
	return out
}

// expandRecursiveCTE iterates anchor and recursive terms to a fixed point.
// Each iteration sees the full accumulated result under the CTE's name; new
// rows are deduplicated by value signature so cycles in the data terminate.
// Hitting the iteration cap while still producing rows is an error.
func (env *execEnv) expandRecursiveCTE(cte *CTE) (*relation, error) {
	anchor, err := env.materializeSelect(cte.Anchor, cte.Columns)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	acc := &relation{cols: anchor.cols}
	for _, r := range anchor.rows {
		sig := rowSignature(r, acc.cols)
		if !seen[sig] {
			seen[sig] = true
			acc.rows = append(acc.rows, r)
		}
	}

	name := strings.ToLower(cte.Name)
	env.expanding[name] = true
	defer delete(env.expanding, name)
	for iter := 0; ; iter++ {
		if err := env.checkCtx(); err != nil {
			return nil, err
		}
		if iter >= env.opts.MaxRecursionDepth {
			return nil, &LimitExceededError{
				Msg: fmt.Sprintf("recursive CTE %q exceeded %d iterations", cte.Name, env.opts.MaxRecursionDepth),
			}
		}
		child := env.child(env.outer, env.outerUsed)
		child.ctes[name] = acc
		res, err := child.executeSelect(cte.Recur)
		if err != nil {
			return nil, err
		}
		if len(res.Cols) != len(acc.cols) {
			return nil, &SemanticError{
				Msg: fmt.Sprintf("recursive term of %q produces %d columns, anchor has %d", cte.Name, len(res.Cols), len(acc.cols)),
			}
		}
		step := &relation{cols: res.Cols, rows: res.Rows}
		if len(cte.Columns) > 0 {
			step = renameRelation(step, cte.Columns)
		} else {
			step = renameRelation(step, acc.cols)
		}
		added := 0
		for _, r := range step.rows {
			sig := rowSignature(r, acc.cols)
			if seen[sig] {
				continue
			}
			seen[sig] = true
			acc.rows = append(acc.rows, r)
			added++
			if err := env.spend(1); err != nil {
				return nil, err
			}
		}
		if added == 0 {
			return acc, nil
		}
	}
}

func rowSignature(r Row, cols []string) string {
	var b strings.Builder
	for _, c := range cols {
		v := r[strings.ToLower(c)]
		if v == nil {
			b.WriteString("\x00")
		} else {
			fmt.Fprintf(&b, "%T:%v", v, v)
		}
		b.WriteByte('\x1f')
	}
	return b.String()
}

// ------------------------------ Subqueries ------------------------------

// subqueryRows runs a nested SELECT with the current row as the outer scope.
// Uncorrelated subqueries are materialized once and reused across rows. A
// subquery reading a recursive CTE that is still being expanded bypasses the
// cache entirely: its source grows between iterations.
func (env *execEnv) subqueryRows(sel *SelectStmt, row Row) (*relation, error) {
	cacheable := len(env.expanding) == 0 || !selectReferences(sel, env.expanding)
	if cacheable {
		if rel, ok := env.subCache[sel]; ok {
			return rel, nil
		}
	}
	outer := overlayOuter(env.outer, row)
	used := false
	res, err := env.child(outer, &used).executeSelect(sel)
	if err != nil {
		return nil, err
	}
	rel := &relation{cols: res.Cols, rows: res.Rows}
	if cacheable && !used {
		env.subCache[sel] = rel
	}
	return rel, nil
}

// selectReferences reports whether a statement reads any of the named
// relations, directly or through nested subqueries.
func selectReferences(sel *SelectStmt, names map[string]bool) bool {
	if sel == nil {
		return false
	}
	if fromItemReferences(sel.From, names) {
		return true
	}
	for _, j := range sel.Joins {
		if fromItemReferences(j.Right, names) || exprReferences(j.On, names) {
			return true
		}
	}
	if exprReferences(sel.Where, names) || exprReferences(sel.Having, names) {
		return true
	}
	for _, it := range sel.Projs {
		if exprReferences(it.Expr, names) {
			return true
		}
	}
	for i := range sel.CTEs {
		c := &sel.CTEs[i]
		if selectReferences(c.Select, names) || selectReferences(c.Anchor, names) || selectReferences(c.Recur, names) {
			return true
		}
	}
	return false
}

func fromItemReferences(it FromItem, names map[string]bool) bool {
	if it.Sub != nil {
		return selectReferences(it.Sub, names)
	}
	return names[strings.ToLower(it.Table)]
}

func exprReferences(e Expr, names map[string]bool) bool {
	switch ex := e.(type) {
	case *Binary:
		return exprReferences(ex.Left, names) || exprReferences(ex.Right, names)
	case *Unary:
		return exprReferences(ex.Expr, names)
	case *IsNull:
		return exprReferences(ex.Expr, names)
	case *Like:
		return exprReferences(ex.Expr, names) || exprReferences(ex.Pattern, names)
	case *Between:
		return exprReferences(ex.Expr, names) || exprReferences(ex.Lo, names) || exprReferences(ex.Hi, names)
	case *InList:
		if ex.Sub != nil && selectReferences(ex.Sub, names) {
			return true
		}
		for _, it := range ex.List {
			if exprReferences(it, names) {
				return true
			}
		}
		return exprReferences(ex.Expr, names)
	case *Exists:
		return selectReferences(ex.Sub, names)
	case *Subquery:
		return selectReferences(ex.Sel, names)
	case *FuncCall:
		for _, a := range ex.Args {
			if exprReferences(a, names) {
				return true
			}
		}
	}
	return false
}

func overlayOuter(outer, row Row) Row {
	if outer == nil {
		return row
	}
	m := make(Row, len(outer)+len(row))
	for k, v := range outer {
		m[k] = v
	}
	for k, v := range row {
		m[k] = v
	}
	return m
}

func (env *execEnv) subqueryColumn(sel *SelectStmt, row Row) ([]any, error) {
	rel, err := env.subqueryRows(sel, row)
	if err != nil {
		return nil, err
	}
	if len(rel.cols) != 1 {
		return nil, &SemanticError{
			Msg:        fmt.Sprintf("IN subquery must return one column, got %d", len(rel.cols)),
			Suggestion: "select a single column in the subquery",
		}
	}
	key := strings.ToLower(rel.cols[0])
	vals := make([]any, len(rel.rows))
	for i, r := range rel.rows {
		vals[i] = r[key]
	}
	return vals, nil
}

func (env *execEnv) scalarSubquery(sel *SelectStmt, row Row) (any, error) {
	rel, err := env.subqueryRows(sel, row)
	if err != nil {
		return nil, err
	}
	if len(rel.cols) != 1 {
		return nil, &SemanticError{
			Msg:        fmt.Sprintf("scalar subquery must return one column, got %d", len(rel.cols)),
			Suggestion: "select a single column in the subquery",
		}
	}
	if len(rel.rows) == 0 {
		return nil, nil
	}
	if len(rel.rows) > 1 {
		return nil, &SemanticError{
			Msg:        fmt.Sprintf("scalar subquery returned %d rows", len(rel.rows)),
			Suggestion: "add a filter or LIMIT 1 so the subquery yields a single row",
		}
	}
	return rel.rows[0][strings.ToLower(rel.cols[0])], nil
}

// ------------------------------ Projection ------------------------------

type projCol struct {
	name   string
	expr   Expr
	srcKey string
	agg    bool
}

type projRow struct {
	out Row
	src Row
}

func buildProjCols(sel *SelectStmt, sources []source, grouped bool) ([]projCol, error) {
	var cols []projCol
	taken := map[string]bool{}
	for _, it := range sel.Projs {
		if it.Star {
			if grouped {
				return nil, &SemanticError{
					Msg:        "SELECT * cannot be combined with GROUP BY or aggregates",
					Suggestion: "list the grouped columns and aggregates explicitly",
				}
			}
			if len(sources) == 0 {
				return nil, &SemanticError{
					Msg:        "SELECT * requires a FROM clause",
					Suggestion: "name a table: SELECT * FROM employees",
				}
			}
			for _, s := range sources {
				for _, c := range s.cols {
					name := c
					if taken[strings.ToLower(name)] {
						name = s.alias + "." + c
					}
					taken[strings.ToLower(name)] = true
					cols = append(cols, projCol{name: name, srcKey: s.alias + "." + c})
				}
			}
			continue
		}
		name := it.Alias
		if name == "" {
			name = ExprText(it.Expr)
		}
		taken[strings.ToLower(name)] = true
		cols = append(cols, projCol{name: name, expr: it.Expr, agg: isAggregate(it.Expr)})
	}
	return cols, nil
}

func (env *execEnv) projectRows(rows []Row, cols []projCol) ([]projRow, error) {
	out := make([]projRow, 0, len(rows))
	for _, r := range rows {
		pr := projRow{out: make(Row, len(cols)), src: r}
		for _, pc := range cols {
			if pc.srcKey != "" {
				pr.out[strings.ToLower(pc.name)] = r[strings.ToLower(pc.srcKey)]
				continue
			}
			v, err := env.evalExpr(pc.expr, r)
			if err != nil {
				return nil, err
			}
			pr.out[strings.ToLower(pc.name)] = v
		}
		out = append(out, pr)
	}
	return out, nil
}

// runGrouped handles GROUP BY, implicit single-group aggregation, HAVING and
// the grouped SELECT stage.
func (env *execEnv) runGrouped(sel *SelectStmt, rows []Row, cols []projCol) ([]projRow, error) {
	groupIn := len(rows)

	var groups [][]Row
	if len(sel.GroupBy) > 0 {
		if err := env.checkGroupedProjection(sel, cols); err != nil {
			return nil, err
		}
		order := []string{}
		byKey := map[string][]Row{}
		for _, r := range rows {
			var b strings.Builder
			for _, g := range sel.GroupBy {
				v, err := env.evalVarRef(&VarRef{Name: g.Name}, r)
				if err != nil {
					return nil, err
				}
				if v == nil {
					b.WriteString("\x00")
				} else {
					fmt.Fprintf(&b, "%T:%v", v, v)
				}
				b.WriteByte('\x1f')
			}
			k := b.String()
			if _, ok := byKey[k]; !ok {
				order = append(order, k)
			}
			byKey[k] = append(byKey[k], r)
		}
		for _, k := range order {
			groups = append(groups, byKey[k])
		}
		env.record(StageGroupBy, groupIn, len(groups), true, groupByText(sel.GroupBy))
	} else {
		// aggregates without GROUP BY: one implicit group, even when empty
		groups = [][]Row{rows}
		env.record(StageGroupBy, groupIn, 1, false, "")
	}

	havingIn := len(groups)
	if sel.Having != nil {
		kept := groups[:0:0]
		for _, g := range groups {
			v, err := env.evalAggregate(sel.Having, g)
			if err != nil {
				return nil, err
			}
			if toTri(v) == tvTrue {
				kept = append(kept, g)
			}
		}
		groups = kept
		env.record(StageHaving, havingIn, len(groups), true, ExprText(sel.Having))
	} else {
		env.record(StageHaving, havingIn, len(groups), false, "")
	}

	out := make([]projRow, 0, len(groups))
	for _, g := range groups {
		pr := projRow{out: make(Row, len(cols))}
		if len(g) > 0 {
			pr.src = g[0]
		} else {
			pr.src = Row{}
		}
		for _, pc := range cols {
			v, err := env.evalAggregate(pc.expr, g)
			if err != nil {
				return nil, err
			}
			pr.out[strings.ToLower(pc.name)] = v
		}
		out = append(out, pr)
	}
	env.record(StageSelect, len(groups), len(out), true, projectionText(sel.Projs))
	return out, nil
}

// checkGroupedProjection rejects bare column references that are neither
// grouped nor aggregated.
func (env *execEnv) checkGroupedProjection(sel *SelectStmt, cols []projCol) error {
	grouped := map[string]bool{}
	for _, g := range sel.GroupBy {
		n := strings.ToLower(g.Name)
		grouped[n] = true
		if i := strings.LastIndexByte(n, '.'); i >= 0 {
			grouped[n[i+1:]] = true
		}
	}
	for _, pc := range cols {
		if pc.agg || pc.expr == nil {
			continue
		}
		for _, ref := range collectBareRefs(pc.expr) {
			n := strings.ToLower(ref)
			tail := n
			if i := strings.LastIndexByte(n, '.'); i >= 0 {
				tail = n[i+1:]
			}
			if !grouped[n] && !grouped[tail] {
				return &SemanticError{
					Msg:        fmt.Sprintf("column %q must appear in GROUP BY or inside an aggregate", ref),
					Suggestion: fmt.Sprintf("add %s to GROUP BY or wrap it in an aggregate", ref),
				}
			}
		}
	}
	return nil
}

// collectBareRefs gathers column references outside aggregate calls.
func collectBareRefs(e Expr) []string {
	switch ex := e.(type) {
	case *VarRef:
		return []string{ex.Name}
	case *Binary:
		return append(collectBareRefs(ex.Left), collectBareRefs(ex.Right)...)
	case *Unary:
		return collectBareRefs(ex.Expr)
	case *IsNull:
		return collectBareRefs(ex.Expr)
	case *Between:
		return append(collectBareRefs(ex.Expr), append(collectBareRefs(ex.Lo), collectBareRefs(ex.Hi)...)...)
	case *Like:
		return append(collectBareRefs(ex.Expr), collectBareRefs(ex.Pattern)...)
	}
	return nil
}

// ------------------------------ Output stages ------------------------------

func dedupeProjected(rows []projRow, cols []string) []projRow {
	seen := map[string]bool{}
	out := rows[:0:0]
	for _, pr := range rows {
		sig := rowSignature(pr.out, cols)
		if seen[sig] {
			continue
		}
		seen[sig] = true
		out = append(out, pr)
	}
	return out
}

// sortProjected orders rows by the ORDER BY keys. Keys resolve against the
// projected row first (aliases), then against the source row, so ordering by
// a non-projected column still works.
func (env *execEnv) sortProjected(rows []projRow, items []OrderItem) error {
	// validate the keys once up front
	for _, it := range items {
		if len(rows) == 0 {
			break
		}
		if _, err := env.orderKey(rows[0], it.Col); err != nil {
			return err
		}
	}
	var sortErr error
	sort.SliceStable(rows, func(i, j int) bool {
		for _, it := range items {
			a, err := env.orderKey(rows[i], it.Col)
			if err != nil {
				sortErr = err
				return false
			}
			b, err := env.orderKey(rows[j], it.Col)
			if err != nil {
				sortErr = err
				return false
			}
			c := compareForOrder(a, b, it.Desc)
			if c == 0 {
				continue
			}
			if it.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return sortErr
}

// orderKey resolves one ORDER BY key for a row. Projected names win, so an
// alias shadows a source column; an unqualified name that is ambiguous in
// the joined scope and not projected is an error, not a silent pick.
func (env *execEnv) orderKey(pr projRow, col string) (any, error) {
	key := strings.ToLower(col)
	if v, ok := pr.out[key]; ok {
		return v, nil
	}
	if env.scope != nil && !strings.Contains(key, ".") && env.scope.ambiguous[key] {
		return nil, &SemanticError{
			Msg:        fmt.Sprintf("ambiguous ORDER BY column %q: present in more than one joined table", col),
			Suggestion: "qualify the column with its table alias",
		}
	}
	if v, ok := pr.src[key]; ok {
		return v, nil
	}
	candidates := make([]string, 0, len(pr.out)+len(pr.src))
	for k := range pr.out {
		candidates = append(candidates, k)
	}
	for k := range pr.src {
		if !strings.Contains(k, ".") {
			candidates = append(candidates, k)
		}
	}
	se := &SemanticError{Msg: fmt.Sprintf("unknown ORDER BY column %q", col)}
	if m := closestMatch(col, candidates); m != "" {
		se.Suggestion = fmt.Sprintf("did you mean %q?", m)
	}
	return nil, se
}

func applyLimit(rows []projRow, limit, offset *int) []projRow {
	start := 0
	if offset != nil {
		start = *offset
	}
	if start >= len(rows) {
		return nil
	}
	rows = rows[start:]
	if limit != nil && *limit < len(rows) {
		rows = rows[:*limit]
	}
	return rows
}
