package plan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SimonWaldherr/sqlvis/internal/dataset"
	"github.com/SimonWaldherr/sqlvis/internal/engine"
)

var testDS = dataset.MustLoad()

func explain(t *testing.T, sql string) *Plan {
	t.Helper()
	sel, err := engine.NewParser(sql).Parse()
	require.NoError(t, err, sql)
	return Explain(testDS, sel)
}

func TestExplainPrimaryKeyEquality(t *testing.T) {
	p := explain(t, "SELECT * FROM employees WHERE id = 7")
	n := p.Root
	require.Equal(t, "scan", n.Kind)
	assert.Equal(t, AccessConst, n.Access)
	assert.Equal(t, "PRIMARY", n.Key)
	assert.Equal(t, 1, n.EstRows)
}

func TestExplainIndexedEquality(t *testing.T) {
	p := explain(t, "SELECT * FROM employees WHERE department_id = 2")
	n := p.Root
	assert.Equal(t, AccessRef, n.Access)
	assert.Equal(t, "idx_department", n.Key)
	assert.Equal(t, 2, n.EstRows, "N/10 of 20 rows")
}

func TestExplainIndexedRange(t *testing.T) {
	p := explain(t, "SELECT * FROM employees WHERE salary > 70000")
	n := p.Root
	assert.Equal(t, AccessRange, n.Access)
	assert.Equal(t, "idx_salary", n.Key)
	assert.Equal(t, 6, n.EstRows, "30% of 20 rows")

	p = explain(t, "SELECT * FROM employees WHERE salary BETWEEN 60000 AND 80000")
	assert.Equal(t, AccessRange, p.Root.Access)
}

func TestExplainFullScan(t *testing.T) {
	p := explain(t, "SELECT * FROM employees WHERE email LIKE '%@company.com'")
	n := p.Root
	assert.Equal(t, AccessAll, n.Access)
	assert.Equal(t, 20, n.EstRows)
}

func TestExplainJoinTree(t *testing.T) {
	p := explain(t, `SELECT e.name FROM employees e JOIN departments d ON e.department_id = d.id WHERE e.id = 3`)
	root := p.Root
	require.Equal(t, "join", root.Kind)
	assert.Equal(t, "INNER", root.JoinType)
	require.NotNil(t, root.Left)
	require.NotNil(t, root.Right)
	assert.Equal(t, AccessConst, root.Left.Access, "left side pinned by PK equality")
	assert.Equal(t, "departments", root.Right.Table)
	// join predicate reaches the departments PK
	assert.Equal(t, AccessRef, root.Right.Access)
}

func TestExplainDerivedSourceDegrades(t *testing.T) {
	p := explain(t, "SELECT * FROM (SELECT id FROM employees) t WHERE id = 1")
	assert.Equal(t, "(derived)", p.Root.Table)
	assert.Equal(t, AccessAll, p.Root.Access)
}

func TestExplainFromlessSelect(t *testing.T) {
	p := explain(t, "SELECT 1 AS n")
	require.NotNil(t, p.Root)
	assert.Equal(t, "(literal)", p.Root.Table)
	assert.Equal(t, AccessConst, p.Root.Access)
	assert.Equal(t, 1, p.Root.EstRows)
}

func TestExplainUnknownTableNeverFails(t *testing.T) {
	p := explain(t, "SELECT * FROM nonexistent")
	require.NotNil(t, p.Root)
	assert.Equal(t, AccessAll, p.Root.Access)
}

func TestTrace(t *testing.T) {
	sel, err := engine.NewParser("SELECT name FROM employees WHERE salary > 70000 ORDER BY name").Parse()
	require.NoError(t, err)
	res, err := engine.Execute(context.Background(), testDS, sel, engine.DefaultOptions())
	require.NoError(t, err)

	steps := Trace(res)
	require.Len(t, steps, 9)

	assert.Equal(t, engine.StageFrom, steps[0].Stage)
	assert.Equal(t, 1, steps[0].Order)
	assert.True(t, steps[0].Active)

	// WHERE is the second active stage (no JOIN clause)
	assert.Equal(t, engine.StageWhere, steps[2].Stage)
	assert.Equal(t, 2, steps[2].Order)
	assert.Equal(t, 20, steps[2].InRows)
	assert.Equal(t, 10, steps[2].OutRows)

	// inactive stages keep order 0 but stay listed
	assert.Equal(t, engine.StageJoin, steps[1].Stage)
	assert.False(t, steps[1].Active)
	assert.Zero(t, steps[1].Order)

	assert.Equal(t, engine.StageOrderBy, steps[7].Stage)
	assert.True(t, steps[7].Active)
}

func TestPlanLines(t *testing.T) {
	p := explain(t, "SELECT * FROM employees WHERE id = 7")
	lines := p.Lines()
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "employees")
	assert.Contains(t, lines[0], "const")
	assert.Contains(t, lines[0], "PRIMARY")
}
