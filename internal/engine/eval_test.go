package engine

import (
	"testing"
	"time"
)

func TestTriStateTables(t *testing.T) {
	states := []int{tvFalse, tvTrue, tvUnknown}
	for _, a := range states {
		for _, b := range states {
			and := triAnd(a, b)
			or := triOr(a, b)
			switch {
			case a == tvFalse || b == tvFalse:
				if and != tvFalse {
					t.Errorf("AND(%d,%d) = %d", a, b, and)
				}
			case a == tvTrue && b == tvTrue:
				if and != tvTrue {
					t.Errorf("AND(%d,%d) = %d", a, b, and)
				}
			default:
				if and != tvUnknown {
					t.Errorf("AND(%d,%d) = %d", a, b, and)
				}
			}
			switch {
			case a == tvTrue || b == tvTrue:
				if or != tvTrue {
					t.Errorf("OR(%d,%d) = %d", a, b, or)
				}
			case a == tvFalse && b == tvFalse:
				if or != tvFalse {
					t.Errorf("OR(%d,%d) = %d", a, b, or)
				}
			default:
				if or != tvUnknown {
					t.Errorf("OR(%d,%d) = %d", a, b, or)
				}
			}
		}
	}
	if triNot(tvUnknown) != tvUnknown {
		t.Error("NOT unknown must stay unknown")
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b any
		want int
	}{
		{1, 2, -1},
		{2.5, 2, 1},
		{3, 3.0, 0},
		{"abc", "abd", -1},
		{false, true, -1},
		{time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC), -1},
	}
	for _, tc := range tests {
		got, err := compare(tc.a, tc.b)
		if err != nil {
			t.Errorf("compare(%v,%v): %v", tc.a, tc.b, err)
			continue
		}
		if got != tc.want {
			t.Errorf("compare(%v,%v) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestCompareTypeMismatch(t *testing.T) {
	if _, err := compare(1, "one"); err == nil {
		t.Fatal("expected type mismatch error")
	} else if _, ok := err.(*SemanticError); !ok {
		t.Fatalf("got %T, want *SemanticError", err)
	}
}

func TestCompareForOrderNulls(t *testing.T) {
	// NULL sorts last ascending, first descending
	if compareForOrder(nil, 1, false) != 1 {
		t.Error("asc: NULL should come after values")
	}
	if compareForOrder(nil, 1, true) != -1 {
		t.Error("desc: NULL should come before larger rank")
	}
	if compareForOrder(nil, nil, false) != 0 {
		t.Error("NULL vs NULL")
	}
}

func TestComparisonWithNullIsUnknown(t *testing.T) {
	for _, op := range []string{"=", "!=", "<", ">="} {
		v, err := evalComparison(op, nil, 5)
		if err != nil || v != nil {
			t.Errorf("%s with NULL: v=%v err=%v, want nil,nil", op, v, err)
		}
	}
}

func TestArithmeticNullPropagation(t *testing.T) {
	v, err := evalArithmetic("+", nil, 2)
	if err != nil || v != nil {
		t.Fatalf("NULL + 2 = %v, %v", v, err)
	}
	if _, err := evalArithmetic("/", 1, 0); err == nil {
		t.Fatal("division by zero must error")
	}
}

func TestIntArithmeticStaysIntegral(t *testing.T) {
	v, err := evalArithmetic("*", 6, 7)
	if err != nil {
		t.Fatal(err)
	}
	if n, ok := v.(int); !ok || n != 42 {
		t.Fatalf("6*7 = %v (%T), want int 42", v, v)
	}
	v, _ = evalArithmetic("/", 6, 4)
	if f, ok := v.(float64); !ok || f != 1.5 {
		t.Fatalf("6/4 = %v (%T), want 1.5", v, v)
	}
}

func TestMatchLike(t *testing.T) {
	tests := []struct {
		s, pat string
		want   bool
	}{
		{"Alice Chen", "A%", true},
		{"Alice Chen", "%Chen", true},
		{"Alice Chen", "a%", false}, // case-sensitive
		{"Bob", "B_b", true},
		{"Bob", "B__b", false},
		{"100%", "100%", true},
		{"a.b", "a.b", true}, // glob metachars match literally
		{"axb", "a.b", false},
	}
	for _, tc := range tests {
		got, err := matchLike(tc.s, tc.pat)
		if err != nil {
			t.Errorf("matchLike(%q,%q): %v", tc.s, tc.pat, err)
			continue
		}
		if got != tc.want {
			t.Errorf("matchLike(%q,%q) = %v, want %v", tc.s, tc.pat, got, tc.want)
		}
	}
}

func TestClosestMatch(t *testing.T) {
	cands := []string{"salary", "name", "department_id", "hire_date"}
	if m := closestMatch("salry", cands); m != "salary" {
		t.Fatalf("closestMatch(salry) = %q", m)
	}
	if m := closestMatch("zzzzzz", cands); m != "" {
		t.Fatalf("closestMatch(zzzzzz) = %q, want none", m)
	}
}

func TestSumValues(t *testing.T) {
	v, err := sumValues([]any{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if n, ok := v.(int); !ok || n != 6 {
		t.Fatalf("int sum = %v (%T)", v, v)
	}
	v, _ = sumValues([]any{1, 2.5})
	if f, ok := v.(float64); !ok || f != 3.5 {
		t.Fatalf("mixed sum = %v (%T)", v, v)
	}
}
