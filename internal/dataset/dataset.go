// Package dataset provides the fixed relational dataset the query engine
// runs against.
//
// What: A read-only catalog of six typed tables (departments, employees,
// customers, products, orders, order_items) with primary/foreign keys and
// secondary index metadata used by the plan generator and B-tree views.
// How: Tables store rows as [][]any with a lower-cased column index for
// lookups, mirroring a compact columnar-catalog layout. Load constructs
// everything once and validates referential soundness before handing the
// dataset out.
// Why: A fixed dataset keeps every query reproducible; immutability after
// Load means any number of concurrent readers without locking.
package dataset

import (
	"fmt"
	"strings"
	"time"
)

// ColType enumerates the semantic column types in the dataset.
type ColType int

const (
	IntType ColType = iota
	DecimalType
	TextType
	DateType
	DateTimeType
	BoolType
)

var colTypeToString = map[ColType]string{
	IntType:      "INT",
	DecimalType:  "DECIMAL",
	TextType:     "TEXT",
	DateType:     "DATE",
	DateTimeType: "DATETIME",
	BoolType:     "BOOL",
}

func (t ColType) String() string {
	if s, ok := colTypeToString[t]; ok {
		return s
	}
	return "UNKNOWN"
}

// ForeignRef describes the target of a foreign key column.
type ForeignRef struct {
	Table  string
	Column string
}

// Column holds the schema of a single table column.
type Column struct {
	Name       string
	Type       ColType
	Nullable   bool
	PrimaryKey bool
	Ref        *ForeignRef
}

// Index names a secondary index over a single column. The engine never uses
// indexes for execution; they feed the EXPLAIN plan and the B-tree views.
type Index struct {
	Name   string
	Column string
}

// Table stores rows along with column metadata and index definitions.
type Table struct {
	Name    string
	Cols    []Column
	Indexes []Index
	Rows    [][]any

	colPos map[string]int
}

// NewTable creates a table with a case-insensitive column lookup index.
func NewTable(name string, cols []Column, indexes []Index) *Table {
	pos := make(map[string]int, len(cols))
	for i, c := range cols {
		pos[strings.ToLower(c.Name)] = i
	}
	return &Table{Name: name, Cols: cols, Indexes: indexes, colPos: pos}
}

// ColIndex returns the zero-based index of the named column.
func (t *Table) ColIndex(name string) (int, bool) {
	i, ok := t.colPos[strings.ToLower(name)]
	return i, ok
}

// ColNames returns the column names in declaration order.
func (t *Table) ColNames() []string {
	out := make([]string, len(t.Cols))
	for i, c := range t.Cols {
		out[i] = c.Name
	}
	return out
}

// PrimaryKeyColumn returns the primary key column name, or "".
func (t *Table) PrimaryKeyColumn() string {
	for _, c := range t.Cols {
		if c.PrimaryKey {
			return c.Name
		}
	}
	return ""
}

// IndexOn reports the index covering the named column, if any.
func (t *Table) IndexOn(col string) (Index, bool) {
	for _, ix := range t.Indexes {
		if strings.EqualFold(ix.Column, col) {
			return ix, true
		}
	}
	return Index{}, false
}

// Dataset is the fixed mapping from table name to table. It is constructed
// once by Load and never mutated afterwards.
type Dataset struct {
	tables map[string]*Table
	names  []string
}

// Load builds the fixed dataset and validates its referential soundness.
// A validation failure is a startup defect, not a query-time error.
func Load() (*Dataset, error) {
	ds := &Dataset{tables: map[string]*Table{}}
	for _, t := range buildTables() {
		ds.tables[strings.ToLower(t.Name)] = t
		ds.names = append(ds.names, t.Name)
	}
	if err := ds.validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

// MustLoad is Load for front ends where a broken dataset is fatal.
func MustLoad() *Dataset {
	ds, err := Load()
	if err != nil {
		panic(err)
	}
	return ds
}

// Table returns the named table.
func (ds *Dataset) Table(name string) (*Table, bool) {
	t, ok := ds.tables[strings.ToLower(name)]
	return t, ok
}

// TableNames returns all table names in load order.
func (ds *Dataset) TableNames() []string {
	out := make([]string, len(ds.names))
	copy(out, ds.names)
	return out
}

// validate checks that every non-NULL foreign key resolves to an existing
// row in the referenced table.
func (ds *Dataset) validate() error {
	for _, t := range ds.tables {
		for ci, c := range t.Cols {
			if c.Ref == nil {
				continue
			}
			target, ok := ds.tables[strings.ToLower(c.Ref.Table)]
			if !ok {
				return fmt.Errorf("dataset: %s.%s references unknown table %q", t.Name, c.Name, c.Ref.Table)
			}
			ti, ok := target.ColIndex(c.Ref.Column)
			if !ok {
				return fmt.Errorf("dataset: %s.%s references unknown column %s.%s", t.Name, c.Name, c.Ref.Table, c.Ref.Column)
			}
			seen := make(map[any]bool, len(target.Rows))
			for _, r := range target.Rows {
				seen[r[ti]] = true
			}
			for ri, r := range t.Rows {
				v := r[ci]
				if v == nil {
					continue
				}
				if !seen[v] {
					return fmt.Errorf("dataset: %s row %d: %s=%v has no match in %s.%s", t.Name, ri, c.Name, v, c.Ref.Table, c.Ref.Column)
				}
			}
		}
	}
	return nil
}

func d(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func dt(y int, m time.Month, day, h, min int) time.Time {
	return time.Date(y, m, day, h, min, 0, 0, time.UTC)
}
