package dataset

import "testing"

func TestLoad(t *testing.T) {
	ds, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := map[string]int{
		"departments": 6,
		"employees":   20,
		"customers":   10,
		"products":    12,
		"orders":      15,
		"order_items": 26,
	}
	names := ds.TableNames()
	if len(names) != len(want) {
		t.Fatalf("got %d tables, want %d", len(names), len(want))
	}
	for name, rows := range want {
		tab, ok := ds.Table(name)
		if !ok {
			t.Fatalf("missing table %q", name)
		}
		if len(tab.Rows) != rows {
			t.Errorf("%s: got %d rows, want %d", name, len(tab.Rows), rows)
		}
	}
}

func TestTableLookupIsCaseInsensitive(t *testing.T) {
	ds := MustLoad()
	for _, name := range []string{"employees", "EMPLOYEES", "Employees"} {
		if _, ok := ds.Table(name); !ok {
			t.Errorf("Table(%q) not found", name)
		}
	}
}

func TestColIndex(t *testing.T) {
	ds := MustLoad()
	emp, _ := ds.Table("employees")
	tests := []struct {
		col  string
		want int
		ok   bool
	}{
		{"id", 0, true},
		{"SALARY", 4, true},
		{"hire_date", 5, true},
		{"nope", 0, false},
	}
	for _, tc := range tests {
		i, ok := emp.ColIndex(tc.col)
		if ok != tc.ok || (ok && i != tc.want) {
			t.Errorf("ColIndex(%q) = %d,%v want %d,%v", tc.col, i, ok, tc.want, tc.ok)
		}
	}
}

func TestPrimaryKeyAndIndexes(t *testing.T) {
	ds := MustLoad()
	emp, _ := ds.Table("employees")
	if pk := emp.PrimaryKeyColumn(); pk != "id" {
		t.Fatalf("pk = %q, want id", pk)
	}
	ix, ok := emp.IndexOn("salary")
	if !ok || ix.Name != "idx_salary" {
		t.Fatalf("IndexOn(salary) = %+v,%v", ix, ok)
	}
	if _, ok := emp.IndexOn("email"); ok {
		t.Fatal("email should not be indexed")
	}
}

func TestStrategicNulls(t *testing.T) {
	ds := MustLoad()
	emp, _ := ds.Table("employees")
	mi, _ := emp.ColIndex("manager_id")
	nulls := 0
	for _, r := range emp.Rows {
		if r[mi] == nil {
			nulls++
		}
	}
	if nulls != 5 {
		t.Fatalf("got %d NULL manager_ids, want 5", nulls)
	}
}

func TestValidateCatchesBrokenReference(t *testing.T) {
	ds := MustLoad()
	emp, _ := ds.Table("employees")
	// a department_id outside departments must fail validation
	bad := append([][]any{}, emp.Rows...)
	bad = append(bad, []any{99, "Zed", 42, nil, 1000.0, d(2024, 1, 1), nil, nil})
	orig := emp.Rows
	emp.Rows = bad
	defer func() { emp.Rows = orig }()
	broken := &Dataset{tables: map[string]*Table{}, names: ds.names}
	for _, n := range ds.names {
		tab, _ := ds.Table(n)
		broken.tables[n] = tab
	}
	if err := broken.validate(); err == nil {
		t.Fatal("validate accepted a dangling foreign key")
	}
}
