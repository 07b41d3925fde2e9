package engine

// Rendering of AST nodes back into SQL-ish text, used for stage notes,
// projection names and EXPLAIN output. The text is for humans; it is not
// guaranteed to re-parse.

import (
	"fmt"
	"strings"
)

// ExprText renders an expression as display text.
func ExprText(e Expr) string {
	switch ex := e.(type) {
	case *VarRef:
		return ex.Name
	case *Literal:
		return literalText(ex.Val)
	case *Unary:
		if ex.Op == "NOT" {
			return "NOT " + ExprText(ex.Expr)
		}
		return ex.Op + ExprText(ex.Expr)
	case *Binary:
		if ex.Op == "AND" || ex.Op == "OR" {
			return "(" + ExprText(ex.Left) + " " + ex.Op + " " + ExprText(ex.Right) + ")"
		}
		return ExprText(ex.Left) + " " + ex.Op + " " + ExprText(ex.Right)
	case *IsNull:
		if ex.Negate {
			return ExprText(ex.Expr) + " IS NOT NULL"
		}
		return ExprText(ex.Expr) + " IS NULL"
	case *Like:
		if ex.Negate {
			return ExprText(ex.Expr) + " NOT LIKE " + ExprText(ex.Pattern)
		}
		return ExprText(ex.Expr) + " LIKE " + ExprText(ex.Pattern)
	case *InList:
		kw := " IN "
		if ex.Negate {
			kw = " NOT IN "
		}
		if ex.Sub != nil {
			return ExprText(ex.Expr) + kw + "(subquery)"
		}
		parts := make([]string, len(ex.List))
		for i, it := range ex.List {
			parts[i] = ExprText(it)
		}
		return ExprText(ex.Expr) + kw + "(" + strings.Join(parts, ", ") + ")"
	case *Between:
		kw := " BETWEEN "
		if ex.Negate {
			kw = " NOT BETWEEN "
		}
		return ExprText(ex.Expr) + kw + ExprText(ex.Lo) + " AND " + ExprText(ex.Hi)
	case *Exists:
		if ex.Negate {
			return "NOT EXISTS (subquery)"
		}
		return "EXISTS (subquery)"
	case *Subquery:
		return "(subquery)"
	case *FuncCall:
		if ex.Star {
			return ex.Name + "(*)"
		}
		args := make([]string, len(ex.Args))
		for i, a := range ex.Args {
			args[i] = ExprText(a)
		}
		return ex.Name + "(" + strings.Join(args, ", ") + ")"
	}
	return "?"
}

func literalText(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	}
	return fmt.Sprintf("%v", v)
}

func fromItemText(it FromItem) string {
	name := it.Table
	if it.Sub != nil {
		name = "(subquery)"
	}
	if it.Alias != "" && it.Alias != it.Table {
		return name + " AS " + it.Alias
	}
	return name
}

func joinText(j JoinClause) string {
	s := j.Type.String() + " JOIN " + fromItemText(j.Right)
	if j.On != nil {
		s += " ON " + ExprText(j.On)
	}
	return s
}

func orderByText(items []OrderItem) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = it.Col
		if it.Desc {
			parts[i] += " DESC"
		}
	}
	return strings.Join(parts, ", ")
}

func groupByText(cols []VarRef) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = c.Name
	}
	return strings.Join(parts, ", ")
}

func projectionText(items []SelectItem) string {
	parts := make([]string, len(items))
	for i, it := range items {
		switch {
		case it.Star:
			parts[i] = "*"
		case it.Alias != "":
			parts[i] = ExprText(it.Expr) + " AS " + it.Alias
		default:
			parts[i] = ExprText(it.Expr)
		}
	}
	return strings.Join(parts, ", ")
}
