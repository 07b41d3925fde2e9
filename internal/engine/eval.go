// Expression and predicate evaluation.
//
// What: Recursive evaluation of the expression algebra (literals, column
// refs, arithmetic, comparisons, LIKE, IN, BETWEEN, IS NULL, EXISTS, scalar
// subqueries) against a row context, plus per-group aggregate evaluation.
// How: SQL three-valued logic is carried as Go values: nil is unknown,
// true/false are the definite outcomes. toTri/triAnd/triOr/triNot implement
// the propagation table; comparisons against NULL yield unknown. Filtering
// stages keep only rows that evaluate to true.
// Why: Tri-state evaluation is the one place NULL semantics can go wrong;
// concentrating it in a small algebra keeps every stage consistent.
package engine

import (
	"fmt"
	"strings"
	"time"
)

// Row is a single row context mapped by lower-cased column name. Keys hold
// both qualified (alias.column) and unqualified (column) names.
type Row map[string]any

func putVal(row Row, key string, val any) { row[strings.ToLower(key)] = val }

// tri-state
const (
	tvFalse   = 0
	tvTrue    = 1
	tvUnknown = 2
)

func toTri(v any) int {
	if v == nil {
		return tvUnknown
	}
	if b, ok := v.(bool); ok {
		if b {
			return tvTrue
		}
		return tvFalse
	}
	if f, ok := numeric(v); ok && f != 0 {
		return tvTrue
	}
	return tvFalse
}

func triNot(t int) int {
	switch t {
	case tvTrue:
		return tvFalse
	case tvFalse:
		return tvTrue
	}
	return tvUnknown
}

func triAnd(a, b int) int {
	if a == tvFalse || b == tvFalse {
		return tvFalse
	}
	if a == tvTrue && b == tvTrue {
		return tvTrue
	}
	return tvUnknown
}

func triOr(a, b int) int {
	if a == tvTrue || b == tvTrue {
		return tvTrue
	}
	if a == tvFalse && b == tvFalse {
		return tvFalse
	}
	return tvUnknown
}

func triToValue(t int) any {
	switch t {
	case tvTrue:
		return true
	case tvFalse:
		return false
	}
	return nil
}

func numeric(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

// compare orders two non-NULL values. Mixed numeric types compare as
// float64; anything else must match in type.
func compare(a, b any) (int, error) {
	if af, ok := numeric(a); ok {
		if bf, ok := numeric(b); ok {
			switch {
			case af < bf:
				return -1, nil
			case af > bf:
				return 1, nil
			}
			return 0, nil
		}
	}
	switch ax := a.(type) {
	case string:
		if bs, ok := b.(string); ok {
			return strings.Compare(ax, bs), nil
		}
	case bool:
		if bb, ok := b.(bool); ok {
			switch {
			case !ax && bb:
				return -1, nil
			case ax && !bb:
				return 1, nil
			}
			return 0, nil
		}
	case time.Time:
		if bt, ok := b.(time.Time); ok {
			switch {
			case ax.Before(bt):
				return -1, nil
			case ax.After(bt):
				return 1, nil
			}
			return 0, nil
		}
		// dates compare against their ISO text form
		if bs, ok := b.(string); ok {
			return strings.Compare(formatTime(ax), bs), nil
		}
	}
	if bt, ok := b.(time.Time); ok {
		if as, ok := a.(string); ok {
			return strings.Compare(as, formatTime(bt)), nil
		}
	}
	return 0, &SemanticError{Msg: fmt.Sprintf("type mismatch: cannot compare %T with %T", a, b)}
}

func formatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05")
}

// compareForOrder orders values for ORDER BY: NULLs sort last ascending,
// first descending, so they stay at the bottom either way.
func compareForOrder(a, b any, desc bool) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		if desc {
			return -1
		}
		return 1
	}
	if b == nil {
		if desc {
			return 1
		}
		return -1
	}
	c, err := compare(a, b)
	if err != nil {
		return 0
	}
	return c
}

func (env *execEnv) evalExpr(e Expr, row Row) (any, error) {
	if err := env.checkCtx(); err != nil {
		return nil, err
	}
	switch ex := e.(type) {
	case *Literal:
		return ex.Val, nil
	case *VarRef:
		return env.evalVarRef(ex, row)
	case *IsNull:
		v, err := env.evalExpr(ex.Expr, row)
		if err != nil {
			return nil, err
		}
		if ex.Negate {
			return v != nil, nil
		}
		return v == nil, nil
	case *Like:
		return env.evalLike(ex, row)
	case *InList:
		return env.evalIn(ex, row)
	case *Between:
		return env.evalBetween(ex, row)
	case *Exists:
		rel, err := env.subqueryRows(ex.Sub, row)
		if err != nil {
			return nil, err
		}
		found := len(rel.rows) > 0
		if ex.Negate {
			return !found, nil
		}
		return found, nil
	case *Subquery:
		return env.scalarSubquery(ex.Sel, row)
	case *Unary:
		return env.evalUnary(ex, row)
	case *Binary:
		return env.evalBinary(ex, row)
	case *FuncCall:
		return nil, &SemanticError{
			Msg:        fmt.Sprintf("aggregate %s is not allowed here", ex.Name),
			Suggestion: "aggregates belong in the SELECT list or HAVING of a grouped query",
		}
	}
	return nil, &SemanticError{Msg: "unknown expression"}
}

func (env *execEnv) evalVarRef(ex *VarRef, row Row) (any, error) {
	name := strings.ToLower(ex.Name)
	if env.scope != nil && !strings.Contains(name, ".") && env.scope.ambiguous[name] {
		return nil, &SemanticError{
			Msg:        fmt.Sprintf("ambiguous column %q: present in more than one joined table", ex.Name),
			Suggestion: "qualify the column with its table alias",
		}
	}
	if v, ok := row[name]; ok {
		return v, nil
	}
	// correlated subquery: fall back to the outer row
	if env.outer != nil {
		if v, ok := env.outer[name]; ok {
			if env.outerUsed != nil {
				*env.outerUsed = true
			}
			return v, nil
		}
	}
	return nil, env.unknownColumnError(ex.Name, row)
}

func (env *execEnv) unknownColumnError(name string, row Row) error {
	candidates := make([]string, 0, len(row))
	for k := range row {
		if !strings.Contains(k, ".") {
			candidates = append(candidates, k)
		}
	}
	se := &SemanticError{Msg: fmt.Sprintf("unknown column %q", name)}
	if m := closestMatch(name, candidates); m != "" {
		se.Suggestion = fmt.Sprintf("did you mean %q?", m)
	}
	return se
}

func (env *execEnv) evalLike(ex *Like, row Row) (any, error) {
	v, err := env.evalExpr(ex.Expr, row)
	if err != nil {
		return nil, err
	}
	pv, err := env.evalExpr(ex.Pattern, row)
	if err != nil {
		return nil, err
	}
	if v == nil || pv == nil {
		return nil, nil
	}
	pat, ok := pv.(string)
	if !ok {
		return nil, &SemanticError{Msg: "LIKE pattern must be a string"}
	}
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprintf("%v", v)
	}
	m, err := matchLike(s, pat)
	if err != nil {
		return nil, err
	}
	if ex.Negate {
		return !m, nil
	}
	return m, nil
}

func (env *execEnv) evalIn(ex *InList, row Row) (any, error) {
	v, err := env.evalExpr(ex.Expr, row)
	if err != nil {
		return nil, err
	}
	var list []any
	if ex.Sub != nil {
		list, err = env.subqueryColumn(ex.Sub, row)
		if err != nil {
			return nil, err
		}
	} else {
		for _, e := range ex.List {
			ev, err := env.evalExpr(e, row)
			if err != nil {
				return nil, err
			}
			list = append(list, ev)
		}
	}
	if v == nil {
		return nil, nil
	}
	hasNull := false
	for _, item := range list {
		if item == nil {
			hasNull = true
			continue
		}
		cmp, err := compare(v, item)
		if err != nil {
			return nil, err
		}
		if cmp == 0 {
			if ex.Negate {
				return false, nil
			}
			return true, nil
		}
	}
	if hasNull {
		return nil, nil
	}
	if ex.Negate {
		return true, nil
	}
	return false, nil
}

func (env *execEnv) evalBetween(ex *Between, row Row) (any, error) {
	v, err := env.evalExpr(ex.Expr, row)
	if err != nil {
		return nil, err
	}
	lo, err := env.evalExpr(ex.Lo, row)
	if err != nil {
		return nil, err
	}
	hi, err := env.evalExpr(ex.Hi, row)
	if err != nil {
		return nil, err
	}
	if v == nil || lo == nil || hi == nil {
		return nil, nil
	}
	cl, err := compare(v, lo)
	if err != nil {
		return nil, err
	}
	ch, err := compare(v, hi)
	if err != nil {
		return nil, err
	}
	in := cl >= 0 && ch <= 0
	if ex.Negate {
		return !in, nil
	}
	return in, nil
}

func (env *execEnv) evalUnary(ex *Unary, row Row) (any, error) {
	v, err := env.evalExpr(ex.Expr, row)
	if err != nil {
		return nil, err
	}
	switch ex.Op {
	case "+":
		if v == nil {
			return nil, nil
		}
		if f, ok := numeric(v); ok {
			return f, nil
		}
		return nil, &SemanticError{Msg: "unary + expects a numeric operand"}
	case "-":
		if v == nil {
			return nil, nil
		}
		switch x := v.(type) {
		case int:
			return -x, nil
		case float64:
			return -x, nil
		}
		return nil, &SemanticError{Msg: "unary - expects a numeric operand"}
	case "NOT":
		return triToValue(triNot(toTri(v))), nil
	}
	return nil, &SemanticError{Msg: "unknown unary operator " + ex.Op}
}

func (env *execEnv) evalBinary(ex *Binary, row Row) (any, error) {
	if ex.Op == "AND" || ex.Op == "OR" {
		return env.evalLogical(ex, row)
	}
	lv, err := env.evalExpr(ex.Left, row)
	if err != nil {
		return nil, err
	}
	rv, err := env.evalExpr(ex.Right, row)
	if err != nil {
		return nil, err
	}
	switch ex.Op {
	case "+", "-", "*", "/":
		return evalArithmetic(ex.Op, lv, rv)
	case "=", "!=", "<>", "<", "<=", ">", ">=":
		return evalComparison(ex.Op, lv, rv)
	}
	return nil, &SemanticError{Msg: "unknown binary operator " + ex.Op}
}

func (env *execEnv) evalLogical(ex *Binary, row Row) (any, error) {
	lv, err := env.evalExpr(ex.Left, row)
	if err != nil {
		return nil, err
	}
	lt := toTri(lv)
	// short circuit on the dominant value
	if ex.Op == "AND" && lt == tvFalse {
		return false, nil
	}
	if ex.Op == "OR" && lt == tvTrue {
		return true, nil
	}
	rv, err := env.evalExpr(ex.Right, row)
	if err != nil {
		return nil, err
	}
	if ex.Op == "AND" {
		return triToValue(triAnd(lt, toTri(rv))), nil
	}
	return triToValue(triOr(lt, toTri(rv))), nil
}

func evalArithmetic(op string, lv, rv any) (any, error) {
	if lv == nil || rv == nil {
		return nil, nil
	}
	li, lIsInt := lv.(int)
	ri, rIsInt := rv.(int)
	if lIsInt && rIsInt && op != "/" {
		switch op {
		case "+":
			return li + ri, nil
		case "-":
			return li - ri, nil
		case "*":
			return li * ri, nil
		}
	}
	lf, lok := numeric(lv)
	rf, rok := numeric(rv)
	if !lok || !rok {
		return nil, &SemanticError{Msg: op + " expects numeric operands"}
	}
	switch op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, &SemanticError{Msg: "division by zero"}
		}
		return lf / rf, nil
	}
	return nil, &SemanticError{Msg: "unknown arithmetic operator " + op}
}

func evalComparison(op string, lv, rv any) (any, error) {
	// any comparison against NULL is unknown
	if lv == nil || rv == nil {
		return nil, nil
	}
	cmp, err := compare(lv, rv)
	if err != nil {
		return nil, err
	}
	switch op {
	case "=":
		return cmp == 0, nil
	case "!=", "<>":
		return cmp != 0, nil
	case "<":
		return cmp < 0, nil
	case "<=":
		return cmp <= 0, nil
	case ">":
		return cmp > 0, nil
	case ">=":
		return cmp >= 0, nil
	}
	return nil, &SemanticError{Msg: "unknown comparison operator " + op}
}

// ------------------------------ Aggregates ------------------------------

func isAggregate(e Expr) bool {
	switch ex := e.(type) {
	case *FuncCall:
		return true
	case *Binary:
		return isAggregate(ex.Left) || isAggregate(ex.Right)
	case *Unary:
		return isAggregate(ex.Expr)
	case *IsNull:
		return isAggregate(ex.Expr)
	}
	return false
}

func anyAggInSelect(items []SelectItem) bool {
	for _, it := range items {
		if it.Expr != nil && isAggregate(it.Expr) {
			return true
		}
	}
	return false
}

// evalAggregate evaluates an expression over a group of rows. Aggregate
// calls fold the group; everything else evaluates against the group's
// first row (the group key columns are constant within a group).
func (env *execEnv) evalAggregate(e Expr, rows []Row) (any, error) {
	switch ex := e.(type) {
	case *FuncCall:
		return env.foldAggregate(ex, rows)
	case *Binary:
		if ex.Op == "AND" || ex.Op == "OR" {
			lv, err := env.evalAggregate(ex.Left, rows)
			if err != nil {
				return nil, err
			}
			rv, err := env.evalAggregate(ex.Right, rows)
			if err != nil {
				return nil, err
			}
			if ex.Op == "AND" {
				return triToValue(triAnd(toTri(lv), toTri(rv))), nil
			}
			return triToValue(triOr(toTri(lv), toTri(rv))), nil
		}
		lv, err := env.evalAggregate(ex.Left, rows)
		if err != nil {
			return nil, err
		}
		rv, err := env.evalAggregate(ex.Right, rows)
		if err != nil {
			return nil, err
		}
		switch ex.Op {
		case "+", "-", "*", "/":
			return evalArithmetic(ex.Op, lv, rv)
		default:
			return evalComparison(ex.Op, lv, rv)
		}
	case *Unary:
		v, err := env.evalAggregate(ex.Expr, rows)
		if err != nil {
			return nil, err
		}
		switch ex.Op {
		case "NOT":
			return triToValue(triNot(toTri(v))), nil
		case "-":
			if f, ok := numeric(v); ok {
				return -f, nil
			}
			return nil, nil
		}
		return v, nil
	case *IsNull:
		v, err := env.evalAggregate(ex.Expr, rows)
		if err != nil {
			return nil, err
		}
		if ex.Negate {
			return v != nil, nil
		}
		return v == nil, nil
	default:
		if len(rows) == 0 {
			if lit, ok := e.(*Literal); ok {
				return lit.Val, nil
			}
			return nil, nil
		}
		return env.evalExpr(e, rows[0])
	}
}

// foldAggregate computes COUNT/SUM/AVG/MIN/MAX over a group. Over empty
// input COUNT yields 0 and the others yield NULL; NULL inputs are skipped.
func (env *execEnv) foldAggregate(ex *FuncCall, rows []Row) (any, error) {
	if ex.Name == "COUNT" && ex.Star {
		return len(rows), nil
	}
	if len(ex.Args) != 1 {
		return nil, &SemanticError{Msg: fmt.Sprintf("%s expects exactly one argument", ex.Name)}
	}
	var vals []any
	for _, r := range rows {
		v, err := env.evalExpr(ex.Args[0], r)
		if err != nil {
			return nil, err
		}
		if v != nil {
			vals = append(vals, v)
		}
	}
	switch ex.Name {
	case "COUNT":
		return len(vals), nil
	case "SUM":
		if len(vals) == 0 {
			return nil, nil
		}
		return sumValues(vals)
	case "AVG":
		if len(vals) == 0 {
			return nil, nil
		}
		var total float64
		for _, v := range vals {
			f, ok := numeric(v)
			if !ok {
				return nil, &SemanticError{Msg: "AVG expects numeric values"}
			}
			total += f
		}
		return total / float64(len(vals)), nil
	case "MIN", "MAX":
		if len(vals) == 0 {
			return nil, nil
		}
		best := vals[0]
		for _, v := range vals[1:] {
			cmp, err := compare(v, best)
			if err != nil {
				return nil, err
			}
			if (ex.Name == "MIN" && cmp < 0) || (ex.Name == "MAX" && cmp > 0) {
				best = v
			}
		}
		return best, nil
	}
	return nil, &UnsupportedError{Feature: "aggregate function " + ex.Name}
}

// sumValues keeps integer sums integral; any float input promotes the
// whole sum to float64.
func sumValues(vals []any) (any, error) {
	allInt := true
	for _, v := range vals {
		if _, ok := v.(int); !ok {
			allInt = false
			break
		}
	}
	if allInt {
		s := 0
		for _, v := range vals {
			s += v.(int)
		}
		return s, nil
	}
	var s float64
	for _, v := range vals {
		f, ok := numeric(v)
		if !ok {
			return nil, &SemanticError{Msg: "SUM expects numeric values"}
		}
		s += f
	}
	return s, nil
}
