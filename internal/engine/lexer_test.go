package engine

import "testing"

func lexAll(s string) []token {
	lx := newLexer(s)
	var out []token
	for {
		tk := lx.nextToken()
		if tk.Typ == tEOF {
			return out
		}
		out = append(out, tk)
	}
}

func TestLexerBasics(t *testing.T) {
	toks := lexAll("SELECT name, salary FROM employees WHERE salary >= 50000.5")
	want := []struct {
		typ tokenType
		val string
	}{
		{tKeyword, "SELECT"},
		{tIdent, "name"},
		{tSymbol, ","},
		{tIdent, "salary"},
		{tKeyword, "FROM"},
		{tIdent, "employees"},
		{tKeyword, "WHERE"},
		{tIdent, "salary"},
		{tSymbol, ">="},
		{tNumber, "50000.5"},
	}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(toks), len(want), toks)
	}
	for i, w := range want {
		if toks[i].Typ != w.typ || toks[i].Val != w.val {
			t.Errorf("token %d = {%d %q}, want {%d %q}", i, toks[i].Typ, toks[i].Val, w.typ, w.val)
		}
	}
}

func TestLexerQualifiedIdent(t *testing.T) {
	toks := lexAll("e.salary")
	if len(toks) != 1 || toks[0].Typ != tIdent || toks[0].Val != "e.salary" {
		t.Fatalf("got %v, want one qualified ident", toks)
	}
}

func TestLexerStringEscapes(t *testing.T) {
	toks := lexAll("'O''Brien'")
	if len(toks) != 1 || toks[0].Typ != tString || toks[0].Val != "O'Brien" {
		t.Fatalf("got %v", toks)
	}
}

func TestLexerComments(t *testing.T) {
	toks := lexAll("SELECT -- trailing\n/* block\ncomment */ 1")
	if len(toks) != 2 || toks[0].Val != "SELECT" || toks[1].Val != "1" {
		t.Fatalf("comments not skipped: %v", toks)
	}
}

func TestLexerPositions(t *testing.T) {
	toks := lexAll("SELECT\n  name")
	if toks[0].Line != 1 || toks[0].Col != 1 {
		t.Errorf("SELECT at %d:%d, want 1:1", toks[0].Line, toks[0].Col)
	}
	if toks[1].Line != 2 || toks[1].Col != 3 {
		t.Errorf("name at %d:%d, want 2:3", toks[1].Line, toks[1].Col)
	}
}

func TestLexerKeywordsCaseInsensitive(t *testing.T) {
	toks := lexAll("select From wHeRe")
	for _, tk := range toks {
		if tk.Typ != tKeyword {
			t.Errorf("%q lexed as %d, want keyword", tk.Val, tk.Typ)
		}
	}
}
