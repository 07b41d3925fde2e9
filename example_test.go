package sqlvis_test

import (
	"context"
	"fmt"

	"github.com/SimonWaldherr/sqlvis"
)

func Example() {
	db := sqlvis.MustOpen()
	resp := db.Query(context.Background(), "SELECT name FROM employees WHERE salary > 100000 ORDER BY salary DESC")
	if resp.Error != nil {
		fmt.Println(resp.Error.Message)
		return
	}
	for _, row := range resp.Rows {
		fmt.Println(row[0])
	}
	// Output:
	// Eva Martinez
	// Carol Davis
}

func ExampleDB_Query_trace() {
	db := sqlvis.MustOpen()
	resp := db.Query(context.Background(), "SELECT name FROM employees WHERE salary > 90000 ORDER BY name")
	for _, step := range resp.Trace {
		if step.Active {
			fmt.Printf("%d. %s (%d -> %d rows)\n", step.Order, step.Stage, step.InRows, step.OutRows)
		}
	}
	// Output:
	// 1. FROM (20 -> 20 rows)
	// 2. WHERE (20 -> 4 rows)
	// 3. SELECT (4 -> 4 rows)
	// 4. ORDER BY (4 -> 4 rows)
}

func ExampleDB_IndexTree() {
	db := sqlvis.MustOpen()
	tree, err := db.IndexTree("employees", "department_id")
	if err != nil {
		fmt.Println(err)
		return
	}
	rows, _, found := tree.Lookup(4)
	fmt.Println(found, len(rows))
	// Output:
	// true 3
}
