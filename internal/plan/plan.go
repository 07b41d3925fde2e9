package plan

// EXPLAIN-style access plan generation.
//
// Access classification works from the parsed statement alone: an equality
// on a primary key is a const lookup, an equality on an indexed column is an
// index ref, an inequality or BETWEEN on an indexed column is a range scan,
// anything else is a full scan. Row estimates follow fixed ratios
// (const=1, ref=N/10, range=30% of N, full scan=N). The plan is purely
// descriptive: generation is best-effort and never fails a query.

import (
	"fmt"
	"strings"

	"github.com/SimonWaldherr/sqlvis/internal/dataset"
	"github.com/SimonWaldherr/sqlvis/internal/engine"
)

// AccessType classifies how a table is read.
type AccessType string

const (
	AccessConst AccessType = "const"
	AccessRef   AccessType = "ref"
	AccessRange AccessType = "range"
	AccessAll   AccessType = "ALL"
)

// Node is one element of the plan tree: either a table access leaf or a
// join over two children.
type Node struct {
	Kind     string     `json:"kind"` // "scan" or "join"
	Table    string     `json:"table,omitempty"`
	Alias    string     `json:"alias,omitempty"`
	Access   AccessType `json:"access,omitempty"`
	Key      string     `json:"key,omitempty"` // PRIMARY or index name
	Cond     string     `json:"cond,omitempty"`
	EstRows  int        `json:"est_rows"`
	JoinType string     `json:"join_type,omitempty"`
	Left     *Node      `json:"left,omitempty"`
	Right    *Node      `json:"right,omitempty"`
}

// Plan is the access plan of one SELECT.
type Plan struct {
	Root *Node `json:"root"`
}

// Explain builds the access plan for a parsed statement. It never returns
// an error: unknown or derived sources degrade to a full-scan node.
func Explain(ds *dataset.Dataset, sel *engine.SelectStmt) *Plan {
	preds := conjuncts(sel.Where)
	for _, j := range sel.Joins {
		preds = append(preds, conjuncts(j.On)...)
	}
	cteNames := map[string]bool{}
	for _, c := range sel.CTEs {
		cteNames[strings.ToLower(c.Name)] = true
	}

	root := scanNode(ds, sel.From, preds, cteNames)
	for _, j := range sel.Joins {
		right := scanNode(ds, j.Right, preds, cteNames)
		root = &Node{
			Kind:     "join",
			JoinType: j.Type.String(),
			Cond:     condText(j.On),
			EstRows:  estimateJoin(root.EstRows, right.EstRows, j.Type),
			Left:     root,
			Right:    right,
		}
	}
	return &Plan{Root: root}
}

// Lines renders the plan tree indented, joins before their inputs.
func (p *Plan) Lines() []string {
	var out []string
	var walk func(n *Node, depth int)
	walk = func(n *Node, depth int) {
		if n == nil {
			return
		}
		pad := strings.Repeat("  ", depth)
		if n.Kind == "join" {
			line := fmt.Sprintf("%s%s JOIN (est. %d rows)", pad, n.JoinType, n.EstRows)
			if n.Cond != "" {
				line += " ON " + n.Cond
			}
			out = append(out, line)
			walk(n.Left, depth+1)
			walk(n.Right, depth+1)
			return
		}
		line := fmt.Sprintf("%s%s", pad, n.Table)
		if n.Alias != "" && n.Alias != n.Table {
			line += " AS " + n.Alias
		}
		line += fmt.Sprintf(": %s", n.Access)
		if n.Key != "" {
			line += " using " + n.Key
		}
		line += fmt.Sprintf(" (est. %d rows)", n.EstRows)
		if n.Cond != "" {
			line += " [" + n.Cond + "]"
		}
		out = append(out, line)
	}
	walk(p.Root, 0)
	return out
}

func estimateJoin(l, r int, jt engine.JoinType) int {
	if jt == engine.JoinCross {
		return l * r
	}
	// assume the join predicate keeps roughly the larger side
	if l > r {
		return l
	}
	return r
}

// conjuncts splits an AND tree into its top-level predicates.
func conjuncts(e engine.Expr) []engine.Expr {
	b, ok := e.(*engine.Binary)
	if ok && b.Op == "AND" {
		return append(conjuncts(b.Left), conjuncts(b.Right)...)
	}
	if e == nil {
		return nil
	}
	return []engine.Expr{e}
}

func condText(e engine.Expr) string {
	if e == nil {
		return ""
	}
	return engine.ExprText(e)
}

func scanNode(ds *dataset.Dataset, item engine.FromItem, preds []engine.Expr, ctes map[string]bool) *Node {
	if item.Table == "" && item.Sub == nil {
		// FROM-less literal SELECT projects over one synthetic row
		return &Node{Kind: "scan", Table: "(literal)", Access: AccessConst, EstRows: 1}
	}
	if item.Sub != nil {
		return &Node{Kind: "scan", Table: "(derived)", Alias: item.Alias, Access: AccessAll}
	}
	if ctes[strings.ToLower(item.Table)] {
		return &Node{Kind: "scan", Table: item.Table, Alias: item.Alias, Access: AccessAll}
	}
	t, ok := ds.Table(item.Table)
	if !ok {
		return &Node{Kind: "scan", Table: item.Table, Alias: item.Alias, Access: AccessAll}
	}

	n := &Node{
		Kind:    "scan",
		Table:   t.Name,
		Alias:   item.Alias,
		Access:  AccessAll,
		EstRows: len(t.Rows),
	}
	for _, p := range preds {
		access, key, cond := classify(t, item.Alias, p)
		if better(access, n.Access) {
			n.Access, n.Key, n.Cond = access, key, cond
		}
	}
	switch n.Access {
	case AccessConst:
		n.EstRows = 1
	case AccessRef:
		n.EstRows = max1(len(t.Rows) / 10)
	case AccessRange:
		n.EstRows = max1(len(t.Rows) * 3 / 10)
	}
	return n
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func better(a, b AccessType) bool {
	rank := map[AccessType]int{AccessConst: 3, AccessRef: 2, AccessRange: 1, AccessAll: 0}
	return rank[a] > rank[b]
}

// classify inspects one predicate for an access opportunity on the given
// table/alias.
func classify(t *dataset.Table, alias string, p engine.Expr) (AccessType, string, string) {
	switch ex := p.(type) {
	case *engine.Binary:
		col, other := bindColumn(t, alias, ex.Left, ex.Right)
		if col == "" {
			return AccessAll, "", ""
		}
		switch ex.Op {
		case "=":
			if strings.EqualFold(t.PrimaryKeyColumn(), col) && isConstant(other) {
				return AccessConst, "PRIMARY", engine.ExprText(p)
			}
			if ix, ok := t.IndexOn(col); ok {
				return AccessRef, ix.Name, engine.ExprText(p)
			}
			if strings.EqualFold(t.PrimaryKeyColumn(), col) {
				// PK equality against another column, as in a join
				return AccessRef, "PRIMARY", engine.ExprText(p)
			}
		case "<", "<=", ">", ">=":
			if ix, ok := t.IndexOn(col); ok && isConstant(other) {
				return AccessRange, ix.Name, engine.ExprText(p)
			}
		}
	case *engine.Between:
		if col := ownColumn(t, alias, ex.Expr); col != "" {
			if ix, ok := t.IndexOn(col); ok {
				return AccessRange, ix.Name, engine.ExprText(p)
			}
		}
	}
	return AccessAll, "", ""
}

// bindColumn finds which side of a comparison names a column of this table
// and returns that column plus the opposite side.
func bindColumn(t *dataset.Table, alias string, l, r engine.Expr) (string, engine.Expr) {
	if col := ownColumn(t, alias, l); col != "" {
		return col, r
	}
	if col := ownColumn(t, alias, r); col != "" {
		return col, l
	}
	return "", nil
}

func ownColumn(t *dataset.Table, alias string, e engine.Expr) string {
	v, ok := e.(*engine.VarRef)
	if !ok {
		return ""
	}
	name := v.Name
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		if !strings.EqualFold(name[:i], alias) {
			return ""
		}
		name = name[i+1:]
	}
	if _, ok := t.ColIndex(name); ok {
		return name
	}
	return ""
}

func isConstant(e engine.Expr) bool {
	switch ex := e.(type) {
	case *engine.Literal:
		return true
	case *engine.Unary:
		return isConstant(ex.Expr)
	}
	return false
}
