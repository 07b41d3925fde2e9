package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SimonWaldherr/sqlvis/internal/dataset"
	"github.com/SimonWaldherr/sqlvis/internal/engine"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return New(dataset.MustLoad())
}

func TestQuerySuccess(t *testing.T) {
	svc := newTestService(t)
	resp := svc.Query(context.Background(), "SELECT name FROM employees WHERE salary > 90000 ORDER BY salary DESC")

	require.Nil(t, resp.Error)
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, []string{"name"}, resp.Columns)
	require.Len(t, resp.Rows, 4)
	assert.Equal(t, "Eva Martinez", resp.Rows[0][0])
	assert.Len(t, resp.Trace, 9)
	require.NotNil(t, resp.Plan)
	assert.GreaterOrEqual(t, resp.ElapsedMS, 0.0)
}

func TestQueryNullsAreExplicit(t *testing.T) {
	svc := newTestService(t)
	resp := svc.Query(context.Background(), "SELECT location FROM departments ORDER BY id")
	require.Nil(t, resp.Error)
	require.Len(t, resp.Rows, 6)
	assert.Nil(t, resp.Rows[3][0], "HR location is NULL")
	assert.Nil(t, resp.Rows[5][0], "Research location is NULL")
}

func TestQueryParseError(t *testing.T) {
	svc := newTestService(t)
	resp := svc.Query(context.Background(), "SELEC name FROM employees")

	require.NotNil(t, resp.Error)
	assert.Equal(t, string(engine.KindParse), resp.Error.Kind)
	assert.NotZero(t, resp.Error.Line)
	assert.NotEmpty(t, resp.RequestID)
	assert.Empty(t, resp.Rows)
}

func TestQueryParseErrorSuggestion(t *testing.T) {
	svc := newTestService(t)
	resp := svc.Query(context.Background(), "SELECT * FORM employees")
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Suggestion, "FROM")
}

func TestQuerySemanticError(t *testing.T) {
	svc := newTestService(t)
	resp := svc.Query(context.Background(), "SELECT salry FROM employees")
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(engine.KindSemantic), resp.Error.Kind)
	assert.Contains(t, resp.Error.Suggestion, "salary")
}

func TestQueryLimitExceeded(t *testing.T) {
	svc := newTestService(t)
	resp := svc.Query(context.Background(), `WITH RECURSIVE n(x) AS (
		SELECT id FROM departments WHERE id = 1
		UNION ALL
		SELECT x + 1 FROM n
	) SELECT x FROM n`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(engine.KindLimitExceeded), resp.Error.Kind)
}

func TestASTCacheReuse(t *testing.T) {
	svc := newTestService(t)
	const q = "SELECT id FROM employees WHERE id = 1"

	resp1 := svc.Query(context.Background(), q)
	require.Nil(t, resp1.Error)
	cached, ok := svc.cache.Get(q)
	require.True(t, ok, "AST must be cached after the first parse")

	resp2 := svc.Query(context.Background(), q)
	require.Nil(t, resp2.Error)
	again, _ := svc.cache.Get(q)
	assert.Same(t, cached, again)
	assert.Equal(t, resp1.Rows, resp2.Rows)
	assert.NotEqual(t, resp1.RequestID, resp2.RequestID)
}

func TestAnalyze(t *testing.T) {
	svc := newTestService(t)
	resp := svc.Analyze(context.Background(), "SELECT * FROM employees ORDER BY name")

	require.Nil(t, resp.Error)
	assert.NotEmpty(t, resp.Rows)
	require.NotNil(t, resp.Analysis)
	assert.Equal(t, "warning", resp.Analysis.Rating)
	assert.NotEmpty(t, resp.Analysis.Issues)
}

func TestAnalyzeSurvivesExecutionError(t *testing.T) {
	svc := newTestService(t)
	// parses fine, fails at execution: analysis still attached
	resp := svc.Analyze(context.Background(), `WITH RECURSIVE n(x) AS (
		SELECT id FROM departments WHERE id = 1
		UNION ALL
		SELECT x + 1 FROM n
	) SELECT * FROM n`)

	require.NotNil(t, resp.Error)
	require.NotNil(t, resp.Analysis)
}

func TestAnalyzeParseErrorHasNoAnalysis(t *testing.T) {
	svc := newTestService(t)
	resp := svc.Analyze(context.Background(), "SELEC name FROM employees")
	require.NotNil(t, resp.Error)
	assert.Nil(t, resp.Analysis)
}

func TestSchema(t *testing.T) {
	svc := newTestService(t)
	schema := svc.Schema()
	require.Len(t, schema, 6)

	var emp *TableSchema
	for i := range schema {
		if schema[i].Name == "employees" {
			emp = &schema[i]
		}
	}
	require.NotNil(t, emp)
	assert.Equal(t, 20, emp.Rows)
	assert.Equal(t, "id", emp.Columns[0].Name)
	assert.True(t, emp.Columns[0].PrimaryKey)

	var mgr *ColumnSchema
	for i := range emp.Columns {
		if emp.Columns[i].Name == "manager_id" {
			mgr = &emp.Columns[i]
		}
	}
	require.NotNil(t, mgr)
	assert.True(t, mgr.Nullable)
	assert.Equal(t, "employees.id", mgr.References)
	assert.Contains(t, emp.Indexes, "idx_salary(salary)")
}
