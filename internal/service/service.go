// Package service is the request/response boundary over the query engine.
//
// What: Takes raw SQL and returns a self-contained response: request id,
// columns, rows, execution trace, access plan, elapsed time, or a structured
// error descriptor. Also exposes the dataset schema for front ends.
// How: Parsed statements are cached in an LRU keyed by query text; ASTs are
// read-only after parse so cached reuse across requests is safe. Engine
// failures map onto descriptors via the engine's error-kind helpers.
// Why: Front ends (REPL, HTTP) should render responses, not interpret engine
// internals. The descriptor is the whole failure contract.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/SimonWaldherr/sqlvis/internal/analyzer"
	"github.com/SimonWaldherr/sqlvis/internal/dataset"
	"github.com/SimonWaldherr/sqlvis/internal/engine"
	"github.com/SimonWaldherr/sqlvis/internal/plan"
)

const astCacheSize = 128

// Service executes queries against one dataset.
type Service struct {
	ds    *dataset.Dataset
	opts  engine.Options
	cache *lru.Cache[string, *engine.SelectStmt]
}

// New creates a service with default execution limits.
func New(ds *dataset.Dataset) *Service {
	return NewWithOptions(ds, engine.DefaultOptions())
}

// NewWithOptions creates a service with explicit execution limits.
func NewWithOptions(ds *dataset.Dataset, opts engine.Options) *Service {
	cache, _ := lru.New[string, *engine.SelectStmt](astCacheSize)
	return &Service{ds: ds, opts: opts, cache: cache}
}

// Dataset returns the dataset the service runs against.
func (s *Service) Dataset() *dataset.Dataset { return s.ds }

// ErrorDescriptor is the structured form of a query failure.
type ErrorDescriptor struct {
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
	Line       int    `json:"line,omitempty"`
	Column     int    `json:"column,omitempty"`
}

// Response carries everything a front end needs to render one query.
type Response struct {
	RequestID string           `json:"request_id"`
	Columns   []string         `json:"columns,omitempty"`
	Rows      [][]any          `json:"rows,omitempty"`
	Trace     []plan.Step      `json:"trace,omitempty"`
	Plan      *plan.Plan       `json:"plan,omitempty"`
	ElapsedMS float64          `json:"elapsed_ms"`
	Error     *ErrorDescriptor `json:"error,omitempty"`
}

// Query parses and executes one SQL statement. It never panics on bad
// input; every failure comes back as a descriptor.
func (s *Service) Query(ctx context.Context, sql string) (resp *Response) {
	start := time.Now()
	resp = &Response{RequestID: uuid.NewString()}
	defer func() {
		resp.ElapsedMS = float64(time.Since(start).Microseconds()) / 1000
		if r := recover(); r != nil {
			resp.Error = &ErrorDescriptor{
				Kind:    string(engine.KindSemantic),
				Message: fmt.Sprintf("internal evaluation failure: %v", r),
			}
		}
	}()

	sel, err := s.parse(sql)
	if err != nil {
		resp.Error = describe(err)
		return resp
	}
	res, err := engine.Execute(ctx, s.ds, sel, s.opts)
	if err != nil {
		resp.Error = describe(err)
		return resp
	}
	resp.Columns = res.Cols
	resp.Rows = res.ValueRows()
	resp.Trace = plan.Trace(res)
	resp.Plan = plan.Explain(s.ds, sel)
	return resp
}

// AnalysisResponse is a query response plus the advisory analysis.
type AnalysisResponse struct {
	Response
	Analysis *analyzer.Analysis `json:"analysis,omitempty"`
}

// Analyze runs the query and attaches the anti-pattern analysis. The
// analysis only needs a parsed statement, so execution failures still
// come back with advice attached.
func (s *Service) Analyze(ctx context.Context, sql string) *AnalysisResponse {
	resp := &AnalysisResponse{Response: *s.Query(ctx, sql)}
	sel, err := s.parse(sql)
	if err != nil {
		return resp
	}
	resp.Analysis = analyzer.Analyze(s.ds, sel, resp.Plan)
	return resp
}

func (s *Service) parse(sql string) (*engine.SelectStmt, error) {
	if sel, ok := s.cache.Get(sql); ok {
		return sel, nil
	}
	sel, err := engine.NewParser(sql).Parse()
	if err != nil {
		return nil, err
	}
	s.cache.Add(sql, sel)
	return sel, nil
}

func describe(err error) *ErrorDescriptor {
	line, col := engine.PositionOf(err)
	return &ErrorDescriptor{
		Kind:       string(engine.KindOf(err)),
		Message:    err.Error(),
		Suggestion: engine.SuggestionOf(err),
		Line:       line,
		Column:     col,
	}
}

// TableSchema describes one table for schema listings.
type TableSchema struct {
	Name    string         `json:"name"`
	Columns []ColumnSchema `json:"columns"`
	Indexes []string       `json:"indexes,omitempty"`
	Rows    int            `json:"rows"`
}

// ColumnSchema describes one column.
type ColumnSchema struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Nullable   bool   `json:"nullable"`
	PrimaryKey bool   `json:"primary_key,omitempty"`
	References string `json:"references,omitempty"`
}

// Schema lists every table with columns, keys and indexes.
func (s *Service) Schema() []TableSchema {
	var out []TableSchema
	for _, name := range s.ds.TableNames() {
		t, _ := s.ds.Table(name)
		ts := TableSchema{Name: t.Name, Rows: len(t.Rows)}
		for _, c := range t.Cols {
			cs := ColumnSchema{
				Name:       c.Name,
				Type:       c.Type.String(),
				Nullable:   c.Nullable,
				PrimaryKey: c.PrimaryKey,
			}
			if c.Ref != nil {
				cs.References = c.Ref.Table + "." + c.Ref.Column
			}
			ts.Columns = append(ts.Columns, cs)
		}
		for _, ix := range t.Indexes {
			ts.Indexes = append(ts.Indexes, ix.Name+"("+ix.Column+")")
		}
		out = append(out, ts)
	}
	return out
}
