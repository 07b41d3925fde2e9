package btree

import (
	"testing"

	"github.com/SimonWaldherr/sqlvis/internal/dataset"
)

func buildInts(t *testing.T, order int, keys []int) *Tree {
	t.Helper()
	tree := New(order)
	for i, k := range keys {
		tree.Insert(k, i)
	}
	return tree
}

func TestInsertAndLookup(t *testing.T) {
	keys := []int{50, 30, 70, 10, 40, 60, 80, 20, 90, 35, 45, 5}
	tree := buildInts(t, 4, keys)

	if tree.Len() != len(keys) {
		t.Fatalf("Len = %d, want %d", tree.Len(), len(keys))
	}
	for i, k := range keys {
		rows, path, found := tree.Lookup(k)
		if !found {
			t.Fatalf("key %d not found", k)
		}
		if len(rows) != 1 || rows[0] != i {
			t.Errorf("key %d: rows = %v, want [%d]", k, rows, i)
		}
		if len(path) == 0 {
			t.Errorf("key %d: empty path", k)
		}
		if path[len(path)-1].Action != "found" {
			t.Errorf("key %d: final action %q", k, path[len(path)-1].Action)
		}
	}
}

func TestLookupAbsentKey(t *testing.T) {
	tree := buildInts(t, 4, []int{10, 20, 30, 40, 50})
	rows, path, found := tree.Lookup(25)
	if found || rows != nil {
		t.Fatalf("found=%v rows=%v for absent key", found, rows)
	}
	if path[len(path)-1].Action != "not_found" {
		t.Fatalf("final action = %q", path[len(path)-1].Action)
	}
}

func TestDuplicateKeysAccumulateRowIDs(t *testing.T) {
	tree := New(4)
	tree.Insert(7, 0)
	tree.Insert(7, 3)
	tree.Insert(7, 9)
	rows, _, found := tree.Lookup(7)
	if !found || len(rows) != 3 {
		t.Fatalf("rows = %v", rows)
	}
	if tree.Len() != 1 {
		t.Fatalf("Len = %d, want 1 distinct key", tree.Len())
	}
}

func TestHeightGrowsAtRootOnly(t *testing.T) {
	tree := New(4)
	prev := tree.Height()
	for i := 1; i <= 50; i++ {
		tree.Insert(i, i)
		h := tree.Height()
		if h < prev {
			t.Fatalf("height shrank from %d to %d", prev, h)
		}
		if h > prev+1 {
			t.Fatalf("height jumped from %d to %d", prev, h)
		}
		prev = h
	}
	if prev < 3 {
		t.Fatalf("50 keys at order 4 should stack several levels, height = %d", prev)
	}
}

func TestLookupPathLengthEqualsDepth(t *testing.T) {
	tree := buildInts(t, 4, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15})
	height := tree.Height()
	for _, k := range []int{1, 8, 15} {
		_, path, found := tree.Lookup(k)
		if !found {
			t.Fatalf("key %d missing", k)
		}
		if len(path) > height {
			t.Errorf("key %d: path %d longer than height %d", k, len(path), height)
		}
	}
	// a leaf-resident key walks the full height
	_, path, _ := tree.Lookup(1)
	if len(path) != height {
		t.Errorf("leftmost key: path %d, want height %d", len(path), height)
	}
}

func TestRangeSearch(t *testing.T) {
	tree := buildInts(t, 4, []int{5, 10, 15, 20, 25, 30, 35, 40})
	pairs, path := tree.Range(12, 32)
	want := []int{15, 20, 25, 30}
	if len(pairs) != len(want) {
		t.Fatalf("got %d pairs, want %d: %v", len(pairs), len(want), pairs)
	}
	for i, p := range pairs {
		if p.Key != want[i] {
			t.Errorf("pair %d key = %v, want %d", i, p.Key, want[i])
		}
	}
	if len(path) == 0 {
		t.Fatal("range search must report the descent path")
	}
}

func TestBuildFromColumn(t *testing.T) {
	ds := dataset.MustLoad()
	emp, _ := ds.Table("employees")
	tree, err := BuildFromColumn(emp, "salary", DefaultOrder)
	if err != nil {
		t.Fatal(err)
	}
	if tree.Len() == 0 {
		t.Fatal("empty tree")
	}
	rows, _, found := tree.Lookup(85000.0)
	if !found {
		t.Fatal("85000 must be present")
	}
	if len(rows) != 2 {
		t.Fatalf("two employees earn 85000, got rows %v", rows)
	}

	// NULLs are skipped when indexing a nullable column
	mgr, err := BuildFromColumn(emp, "manager_id", DefaultOrder)
	if err != nil {
		t.Fatal(err)
	}
	if mgr.Len() != 6 {
		t.Fatalf("distinct manager ids = %d, want 6", mgr.Len())
	}
}

func TestBuildFromColumnUnknown(t *testing.T) {
	ds := dataset.MustLoad()
	emp, _ := ds.Table("employees")
	if _, err := BuildFromColumn(emp, "nope", DefaultOrder); err == nil {
		t.Fatal("expected error for unknown column")
	}
}
