// Package sqlvis is an explainable in-memory SQL query engine.
//
// sqlvis executes a constrained SQL dialect against a fixed six-table
// dataset and explains what it did: every query comes back with result
// rows, an execution-order trace of the clause pipeline, and an
// EXPLAIN-style access plan. A standalone B-tree model narrates index
// lookups key comparison by key comparison.
//
// # Basic Usage
//
// Open the dataset and run queries:
//
//	db, err := sqlvis.Open()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	resp := db.Query(context.Background(), "SELECT name, salary FROM employees WHERE salary > 70000 ORDER BY salary DESC")
//	if resp.Error != nil {
//	    fmt.Println(resp.Error.Message)
//	    return
//	}
//	for _, row := range resp.Rows {
//	    fmt.Println(row)
//	}
//
// # Execution trace
//
// The trace shows the stages in the order they actually ran:
//
//	for _, step := range resp.Trace {
//	    fmt.Printf("%d. %-9s %s\n", step.Order, step.Stage, step.Description)
//	}
//
// # Index trees
//
// Build the B-tree behind an index and follow a lookup:
//
//	tree, _ := db.IndexTree("employees", "salary")
//	_, path, found := tree.Lookup(72000.0)
//
// For more examples, see the example_test.go file in the repository.
package sqlvis

import (
	"context"

	"github.com/SimonWaldherr/sqlvis/internal/analyzer"
	"github.com/SimonWaldherr/sqlvis/internal/btree"
	"github.com/SimonWaldherr/sqlvis/internal/dataset"
	"github.com/SimonWaldherr/sqlvis/internal/engine"
	"github.com/SimonWaldherr/sqlvis/internal/service"
)

// Re-exported types forming the public API.
type (
	// Response is one executed query: rows, trace, plan or error descriptor.
	Response = service.Response
	// AnalysisResponse is a Response plus the anti-pattern analysis.
	AnalysisResponse = service.AnalysisResponse
	// Analysis is the advisory report over one query.
	Analysis = analyzer.Analysis
	// ErrorDescriptor is the structured failure contract.
	ErrorDescriptor = service.ErrorDescriptor
	// TableSchema describes a table for schema listings.
	TableSchema = service.TableSchema
	// Options bounds query execution.
	Options = engine.Options
	// Tree is a traced B-tree over an indexed column.
	Tree = btree.Tree
	// TraversalStep is one node visit of a B-tree lookup.
	TraversalStep = btree.TraversalStep
)

// DB is an opened dataset with its query service.
type DB struct {
	ds  *dataset.Dataset
	svc *service.Service
}

// Open loads and validates the fixed dataset.
func Open() (*DB, error) {
	return OpenWithOptions(engine.DefaultOptions())
}

// OpenWithOptions loads the dataset with explicit execution limits.
func OpenWithOptions(opts Options) (*DB, error) {
	ds, err := dataset.Load()
	if err != nil {
		return nil, err
	}
	return &DB{ds: ds, svc: service.NewWithOptions(ds, opts)}, nil
}

// MustOpen is Open for programs where a broken dataset is fatal.
func MustOpen() *DB {
	db, err := Open()
	if err != nil {
		panic(err)
	}
	return db
}

// Query parses and executes one SQL statement.
func (db *DB) Query(ctx context.Context, sql string) *Response {
	return db.svc.Query(ctx, sql)
}

// Analyze runs a query and attaches an advisory anti-pattern analysis.
func (db *DB) Analyze(ctx context.Context, sql string) *AnalysisResponse {
	return db.svc.Analyze(ctx, sql)
}

// Schema lists every table with columns, keys and indexes.
func (db *DB) Schema() []TableSchema { return db.svc.Schema() }

// IndexTree builds the B-tree view of one table column.
func (db *DB) IndexTree(table, column string) (*Tree, error) {
	t, ok := db.ds.Table(table)
	if !ok {
		return nil, &engine.SemanticError{Msg: "unknown table " + table}
	}
	return btree.BuildFromColumn(t, column, btree.DefaultOrder)
}

// Service exposes the underlying request/response boundary for front ends
// that need it directly.
func (db *DB) Service() *service.Service { return db.svc }
