// Package btree models the B-tree behind an index and narrates lookups.
//
// What: An order-m B-tree built from a table column, with point lookup and
// range search that return the full visited path (node ids, keys checked,
// a comparison narrative and an action per node).
// How: Classic top-down insertion with preemptive splits: a node holds at
// most order-1 keys, a full child is split around its median before descent,
// and the tree only grows in height at the root. Duplicate keys keep a list
// of row ids. There is no deletion; trees are built once from the fixed
// dataset.
// Why: The traversal path is the product here, not lookup speed. Returning
// it step by step makes the index narrative renderable by any front end.
package btree

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/SimonWaldherr/sqlvis/internal/dataset"
)

// DefaultOrder is the branching factor used for dataset-backed trees. Small
// on purpose so the trees have visible height.
const DefaultOrder = 4

// TraversalStep records one node visit during a lookup or range search.
type TraversalStep struct {
	NodeID int    `json:"node_id"`
	Keys   []any  `json:"keys"`
	Action string `json:"action"` // compare, descend, found, not_found
	Detail string `json:"detail,omitempty"`
}

// Pair is a key with the row ids that carry it.
type Pair struct {
	Key    any   `json:"key"`
	RowIDs []int `json:"row_ids"`
}

type node struct {
	id       int
	leaf     bool
	keys     []any
	rowIDs   [][]int
	children []*node
}

// Tree is an order-m B-tree over a single column.
type Tree struct {
	order  int
	root   *node
	nextID int
	count  int
}

// New creates an empty tree. Order is the maximum number of children; at
// least 4 so a split always leaves keys on both sides of the median.
func New(order int) *Tree {
	if order < 4 {
		order = 4
	}
	t := &Tree{order: order}
	t.root = t.newNode(true)
	return t
}

func (t *Tree) newNode(leaf bool) *node {
	t.nextID++
	return &node{id: t.nextID, leaf: leaf}
}

func (t *Tree) maxKeys() int { return t.order - 1 }

// Len returns the number of distinct keys.
func (t *Tree) Len() int { return t.count }

// Order returns the branching factor.
func (t *Tree) Order() int { return t.order }

// Height returns the number of levels in the tree.
func (t *Tree) Height() int {
	h := 0
	for n := t.root; n != nil; {
		h++
		if n.leaf {
			break
		}
		n = n.children[0]
	}
	return h
}

// cmpKey orders index keys. Numeric keys compare as float64; everything
// else compares by its text form.
func cmpKey(a, b any) int {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	return strings.Compare(keyText(a), keyText(b))
}

func toFloat(v any) (float64, bool) {
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

func keyText(v any) string {
	if tm, ok := v.(time.Time); ok {
		return tm.Format("2006-01-02 15:04:05")
	}
	return fmt.Sprintf("%v", v)
}

// Insert adds a key/row-id pair. Inserting an existing key appends the row
// id to that key's list.
func (t *Tree) Insert(key any, rowID int) {
	if len(t.root.keys) == t.maxKeys() {
		old := t.root
		t.root = t.newNode(false)
		t.root.children = []*node{old}
		t.splitChild(t.root, 0)
	}
	t.insertNonFull(t.root, key, rowID)
}

// splitChild splits the full i-th child of parent around its median key,
// which moves up into the parent.
func (t *Tree) splitChild(parent *node, i int) {
	full := parent.children[i]
	mid := len(full.keys) / 2

	right := t.newNode(full.leaf)
	right.keys = append(right.keys, full.keys[mid+1:]...)
	right.rowIDs = append(right.rowIDs, full.rowIDs[mid+1:]...)
	if !full.leaf {
		right.children = append(right.children, full.children[mid+1:]...)
	}

	medianKey := full.keys[mid]
	medianIDs := full.rowIDs[mid]
	full.keys = full.keys[:mid]
	full.rowIDs = full.rowIDs[:mid]
	if !full.leaf {
		full.children = full.children[:mid+1]
	}

	parent.keys = append(parent.keys, nil)
	copy(parent.keys[i+1:], parent.keys[i:])
	parent.keys[i] = medianKey

	parent.rowIDs = append(parent.rowIDs, nil)
	copy(parent.rowIDs[i+1:], parent.rowIDs[i:])
	parent.rowIDs[i] = medianIDs

	parent.children = append(parent.children, nil)
	copy(parent.children[i+2:], parent.children[i+1:])
	parent.children[i+1] = right
}

func (t *Tree) insertNonFull(n *node, key any, rowID int) {
	// existing key anywhere on the path: append the row id
	i := sort.Search(len(n.keys), func(j int) bool { return cmpKey(n.keys[j], key) >= 0 })
	if i < len(n.keys) && cmpKey(n.keys[i], key) == 0 {
		n.rowIDs[i] = append(n.rowIDs[i], rowID)
		return
	}
	if n.leaf {
		n.keys = append(n.keys, nil)
		copy(n.keys[i+1:], n.keys[i:])
		n.keys[i] = key
		n.rowIDs = append(n.rowIDs, nil)
		copy(n.rowIDs[i+1:], n.rowIDs[i:])
		n.rowIDs[i] = []int{rowID}
		t.count++
		return
	}
	if len(n.children[i].keys) == t.maxKeys() {
		t.splitChild(n, i)
		if cmpKey(key, n.keys[i]) == 0 {
			n.rowIDs[i] = append(n.rowIDs[i], rowID)
			return
		}
		if cmpKey(key, n.keys[i]) > 0 {
			i++
		}
	}
	t.insertNonFull(n.children[i], key, rowID)
}

// Lookup finds a key and returns its row ids plus the visited path. The
// path is returned even when the key is absent.
func (t *Tree) Lookup(key any) ([]int, []TraversalStep, bool) {
	var path []TraversalStep
	n := t.root
	for {
		i := 0
		var checks []string
		for i < len(n.keys) && cmpKey(key, n.keys[i]) > 0 {
			checks = append(checks, fmt.Sprintf("%s > %s", keyText(key), keyText(n.keys[i])))
			i++
		}
		if i < len(n.keys) && cmpKey(key, n.keys[i]) == 0 {
			checks = append(checks, fmt.Sprintf("%s = %s", keyText(key), keyText(n.keys[i])))
			path = append(path, TraversalStep{
				NodeID: n.id,
				Keys:   append([]any(nil), n.keys...),
				Action: "found",
				Detail: strings.Join(checks, ", "),
			})
			return append([]int(nil), n.rowIDs[i]...), path, true
		}
		if i < len(n.keys) {
			checks = append(checks, fmt.Sprintf("%s < %s", keyText(key), keyText(n.keys[i])))
		}
		if n.leaf {
			path = append(path, TraversalStep{
				NodeID: n.id,
				Keys:   append([]any(nil), n.keys...),
				Action: "not_found",
				Detail: strings.Join(checks, ", "),
			})
			return nil, path, false
		}
		path = append(path, TraversalStep{
			NodeID: n.id,
			Keys:   append([]any(nil), n.keys...),
			Action: "descend",
			Detail: fmt.Sprintf("%s; descend into child %d", strings.Join(checks, ", "), i),
		})
		n = n.children[i]
	}
}

// Range returns all pairs with lo <= key <= hi in key order, plus the
// descent path to the lower bound.
func (t *Tree) Range(lo, hi any) ([]Pair, []TraversalStep) {
	_, path, _ := t.Lookup(lo)
	for i := range path {
		if path[i].Action == "found" || path[i].Action == "not_found" {
			path[i].Action = "compare"
		}
	}
	var out []Pair
	t.walkRange(t.root, lo, hi, &out)
	return out, path
}

func (t *Tree) walkRange(n *node, lo, hi any, out *[]Pair) {
	for i := 0; i < len(n.keys); i++ {
		if !n.leaf && cmpKey(n.keys[i], lo) >= 0 {
			t.walkRange(n.children[i], lo, hi, out)
		}
		if cmpKey(n.keys[i], lo) >= 0 && cmpKey(n.keys[i], hi) <= 0 {
			*out = append(*out, Pair{Key: n.keys[i], RowIDs: append([]int(nil), n.rowIDs[i]...)})
		}
		if cmpKey(n.keys[i], hi) > 0 {
			return
		}
	}
	if !n.leaf {
		t.walkRange(n.children[len(n.keys)], lo, hi, out)
	}
}

// BuildFromColumn builds a tree over one column of a table, skipping NULLs.
// Row ids are zero-based positions in the table's row order.
func BuildFromColumn(t *dataset.Table, col string, order int) (*Tree, error) {
	ci, ok := t.ColIndex(col)
	if !ok {
		return nil, fmt.Errorf("btree: table %s has no column %q", t.Name, col)
	}
	type kv struct {
		key any
		row int
	}
	var pairs []kv
	for ri, r := range t.Rows {
		if r[ci] == nil {
			continue
		}
		pairs = append(pairs, kv{key: r[ci], row: ri})
	}
	sort.SliceStable(pairs, func(i, j int) bool { return cmpKey(pairs[i].key, pairs[j].key) < 0 })
	tree := New(order)
	for _, p := range pairs {
		tree.Insert(p.key, p.row)
	}
	return tree, nil
}
