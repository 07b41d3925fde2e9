package sqlvis_test

// Cross-engine parity: the same dataset and queries run through SQLite and
// through the engine must agree cell for cell. Queries carry a total ORDER BY
// so both engines produce a deterministic row order.

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/SimonWaldherr/sqlvis"
	"github.com/SimonWaldherr/sqlvis/internal/dataset"
)

var parityQueries = []string{
	"SELECT name, salary FROM employees WHERE salary > 70000 ORDER BY salary DESC, name",
	"SELECT department_id, COUNT(*), AVG(salary) FROM employees GROUP BY department_id ORDER BY department_id",
	"SELECT country, COUNT(*) FROM customers GROUP BY country HAVING COUNT(*) > 1 ORDER BY country",
	"SELECT e.name, d.name FROM employees e JOIN departments d ON e.department_id = d.id ORDER BY e.id",
	"SELECT d.name, COUNT(e.id) FROM departments d LEFT JOIN employees e ON e.department_id = d.id GROUP BY d.name ORDER BY d.name",
	"SELECT id FROM employees WHERE manager_id IS NULL ORDER BY id",
	"SELECT id FROM orders WHERE status LIKE 'deliv%' ORDER BY id",
	"SELECT id, salary FROM employees ORDER BY salary, id LIMIT 5 OFFSET 3",
	"SELECT name FROM products WHERE weight IS NULL ORDER BY id",
	"SELECT order_id, SUM(quantity * unit_price) FROM order_items GROUP BY order_id ORDER BY order_id",
	"SELECT DISTINCT category FROM products ORDER BY category",
	"SELECT id FROM employees WHERE salary BETWEEN 60000 AND 80000 ORDER BY id",
	"SELECT name FROM employees WHERE department_id IN (SELECT id FROM departments WHERE budget > 250000) ORDER BY id",
	"SELECT id FROM orders WHERE shipped_date IS NULL ORDER BY id",
}

func TestSQLiteParity(t *testing.T) {
	ref := openReference(t)
	defer ref.Close()

	db := sqlvis.MustOpen()
	for _, q := range parityQueries {
		t.Run(q, func(t *testing.T) {
			resp := db.Query(context.Background(), q)
			require.Nil(t, resp.Error, "engine: %v", resp.Error)
			got := normalizeRows(resp.Rows)

			want := queryReference(t, ref, q)
			require.Equal(t, want, got)
		})
	}
}

// openReference loads the fixed dataset into an in-memory SQLite database.
func openReference(t *testing.T) *sql.DB {
	t.Helper()
	ref, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)

	ds := dataset.MustLoad()
	for _, name := range ds.TableNames() {
		tab, _ := ds.Table(name)
		ddl := "CREATE TABLE " + tab.Name + " ("
		for i, c := range tab.Cols {
			if i > 0 {
				ddl += ", "
			}
			ddl += c.Name + " " + sqliteType(c.Type)
		}
		ddl += ")"
		_, err = ref.Exec(ddl)
		require.NoError(t, err, ddl)

		placeholders := ""
		for i := range tab.Cols {
			if i > 0 {
				placeholders += ", "
			}
			placeholders += "?"
		}
		ins := "INSERT INTO " + tab.Name + " VALUES (" + placeholders + ")"
		for _, row := range tab.Rows {
			args := make([]any, len(row))
			for i, v := range row {
				args[i] = sqliteValue(v, tab.Cols[i].Type)
			}
			_, err = ref.Exec(ins, args...)
			require.NoError(t, err, ins)
		}
	}
	return ref
}

func sqliteType(ct dataset.ColType) string {
	switch ct {
	case dataset.IntType, dataset.BoolType:
		return "INTEGER"
	case dataset.DecimalType:
		return "REAL"
	default:
		return "TEXT"
	}
}

func sqliteValue(v any, ct dataset.ColType) any {
	switch x := v.(type) {
	case nil:
		return nil
	case bool:
		if x {
			return 1
		}
		return 0
	case time.Time:
		if ct == dataset.DateTimeType {
			return x.Format("2006-01-02 15:04:05")
		}
		return x.Format("2006-01-02")
	}
	return v
}

func queryReference(t *testing.T, ref *sql.DB, q string) [][]string {
	t.Helper()
	rows, err := ref.Query(q)
	require.NoError(t, err, q)
	defer rows.Close()

	cols, err := rows.Columns()
	require.NoError(t, err)

	var out [][]string
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		require.NoError(t, rows.Scan(ptrs...))
		out = append(out, normalizeRow(vals))
	}
	require.NoError(t, rows.Err())
	return out
}

func normalizeRows(rows [][]any) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = normalizeRow(r)
	}
	return out
}

func normalizeRow(vals []any) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = normalizeCell(v)
	}
	return out
}

func normalizeCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if x {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', 4, 64)
	case []byte:
		return string(x)
	case string:
		return x
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format("2006-01-02 15:04:05")
	}
	return fmt.Sprintf("%v", v)
}
