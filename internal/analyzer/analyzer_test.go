package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SimonWaldherr/sqlvis/internal/dataset"
	"github.com/SimonWaldherr/sqlvis/internal/engine"
)

var testDS = dataset.MustLoad()

func analyze(t *testing.T, sql string) *Analysis {
	t.Helper()
	sel, err := engine.NewParser(sql).Parse()
	require.NoError(t, err, sql)
	return Analyze(testDS, sel, nil)
}

func titles(a *Analysis) []string {
	out := make([]string, len(a.Issues))
	for i, is := range a.Issues {
		out[i] = is.Title
	}
	return out
}

func TestSelectStarFlagged(t *testing.T) {
	a := analyze(t, "SELECT * FROM employees WHERE id = 1")
	assert.Contains(t, titles(a), "SELECT * retrieves every column")
	assert.Equal(t, "warning", a.Rating)

	require.NotEmpty(t, a.Rewrites)
	assert.Equal(t, "SELECT *", a.Rewrites[0].Pattern)
	assert.Contains(t, a.Rewrites[0].Rewritten, "salary", "rewrite names the table's columns")
}

func TestLeadingWildcardLike(t *testing.T) {
	a := analyze(t, "SELECT name FROM employees WHERE email LIKE '%@company.com'")
	assert.Equal(t, "critical", a.Rating)
	assert.Contains(t, titles(a), "LIKE pattern starts with a wildcard")
	assert.Equal(t, "bad", a.AccessRating, "a leading wildcard forces a full scan")
}

func TestNotInSuggestsNotExists(t *testing.T) {
	a := analyze(t, "SELECT name FROM customers WHERE id NOT IN (SELECT customer_id FROM orders)")
	assert.Contains(t, titles(a), "NOT IN with a subquery")

	var rewritten bool
	for _, rw := range a.Rewrites {
		if rw.Pattern == "col NOT IN (SELECT ...)" {
			rewritten = true
			assert.Contains(t, rw.Rewritten, "NOT EXISTS")
		}
	}
	assert.True(t, rewritten, "expected a NOT EXISTS rewrite")
}

func TestOrderByWithoutLimit(t *testing.T) {
	a := analyze(t, "SELECT name FROM employees ORDER BY salary DESC")
	assert.Contains(t, titles(a), "ORDER BY without LIMIT")

	a = analyze(t, "SELECT name FROM employees ORDER BY salary DESC LIMIT 5")
	assert.NotContains(t, titles(a), "ORDER BY without LIMIT")
}

func TestOrAcrossColumns(t *testing.T) {
	a := analyze(t, "SELECT id FROM employees WHERE name = 'Alice Chen' OR email = 'bob@company.com'")
	assert.Contains(t, titles(a), "OR spans different columns")

	// OR on the same column stays quiet
	a = analyze(t, "SELECT id FROM employees WHERE name = 'Alice Chen' OR name = 'Bob Smith'")
	assert.NotContains(t, titles(a), "OR spans different columns")
}

func TestIndexRecommendationForUnindexedFilter(t *testing.T) {
	a := analyze(t, "SELECT id FROM employees WHERE name = 'Alice Chen'")
	require.NotEmpty(t, a.Recommendations)
	rec := a.Recommendations[0]
	assert.Equal(t, "filter", rec.Kind)
	assert.Equal(t, "employees", rec.Table)
	assert.Equal(t, []string{"name"}, rec.Columns)
	assert.Equal(t, "CREATE INDEX idx_employees_name ON employees(name);", rec.SQL)

	// salary is already indexed, no recommendation for it
	a = analyze(t, "SELECT id FROM employees WHERE salary > 70000")
	assert.Empty(t, a.Recommendations)
}

func TestCompositeRecommendation(t *testing.T) {
	a := analyze(t, "SELECT id FROM employees WHERE name = 'Alice Chen' ORDER BY hire_date")
	var kinds []string
	for _, r := range a.Recommendations {
		kinds = append(kinds, r.Kind)
	}
	assert.Contains(t, kinds, "filter")
	assert.Contains(t, kinds, "sort")
	assert.Contains(t, kinds, "composite")
	assert.LessOrEqual(t, len(a.Recommendations), maxRecommendations)
}

func TestCleanQuery(t *testing.T) {
	a := analyze(t, "SELECT id FROM employees WHERE id = 1 LIMIT 1")
	assert.Empty(t, a.Issues)
	assert.Equal(t, "good", a.Rating)
	assert.Equal(t, "good", a.AccessRating)
	require.Len(t, a.Tips, 1)
	assert.Contains(t, a.Tips[0], "reasonable")
}
