// Interactive REPL for the sqlvis query engine.
//
// Reads statements terminated by ';', executes them against the fixed
// dataset and prints the result table, the execution-order trace and the
// access plan. Meta commands start with '.'.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/SimonWaldherr/sqlvis"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	errColor    = color.New(color.FgRed, color.Bold)
	hintColor   = color.New(color.FgYellow)
	stageColor  = color.New(color.FgGreen)
	dimColor    = color.New(color.Faint)
)

func main() {
	db, err := sqlvis.Open()
	if err != nil {
		fmt.Fprintln(os.Stderr, "open error:", err)
		os.Exit(1)
	}

	sc := bufio.NewScanner(os.Stdin)
	sc.Buffer(make([]byte, 1024), 1024*1024)

	interactive := false
	if fi, err := os.Stdin.Stat(); err == nil {
		interactive = (fi.Mode() & os.ModeCharDevice) != 0
	}

	showTrace, showPlan := true, true
	analyzeMode := false

	if interactive {
		fmt.Println("sqlvis REPL. End statements with ';'. '.help' for help.")
	}

	var buf strings.Builder
	for {
		if interactive {
			if buf.Len() == 0 {
				fmt.Print("sql> ")
			} else {
				fmt.Print(" ... ")
			}
		}
		if !sc.Scan() {
			return
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		if buf.Len() == 0 && strings.HasPrefix(line, ".") {
			if line == ".quit" || line == ".exit" {
				return
			}
			handleMeta(db, line, &showTrace, &showPlan, &analyzeMode)
			continue
		}
		buf.WriteString(line)
		buf.WriteByte(' ')
		if !strings.HasSuffix(line, ";") {
			continue
		}
		sql := strings.TrimSpace(buf.String())
		buf.Reset()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if analyzeMode {
			resp := db.Analyze(ctx, sql)
			cancel()
			render(&resp.Response, showTrace, showPlan)
			renderAnalysis(resp.Analysis)
		} else {
			resp := db.Query(ctx, sql)
			cancel()
			render(resp, showTrace, showPlan)
		}
	}
}

func handleMeta(db *sqlvis.DB, line string, showTrace, showPlan, analyzeMode *bool) {
	fields := strings.Fields(line)
	switch fields[0] {
	case ".help":
		fmt.Println(`.tables              list tables
.schema [table]      show schema
.trace on|off        toggle execution trace
.plan on|off         toggle access plan
.analyze on|off      toggle anti-pattern analysis
.btree <table> <col> [key]   show B-tree lookup
.quit                exit`)
	case ".tables":
		for _, t := range db.Schema() {
			fmt.Printf("%-14s %d rows\n", t.Name, t.Rows)
		}
	case ".schema":
		for _, t := range db.Schema() {
			if len(fields) > 1 && !strings.EqualFold(fields[1], t.Name) {
				continue
			}
			headerColor.Println(t.Name)
			for _, c := range t.Columns {
				attrs := []string{c.Type}
				if c.PrimaryKey {
					attrs = append(attrs, "PRIMARY KEY")
				}
				if !c.Nullable {
					attrs = append(attrs, "NOT NULL")
				}
				if c.References != "" {
					attrs = append(attrs, "REFERENCES "+c.References)
				}
				fmt.Printf("  %-14s %s\n", c.Name, strings.Join(attrs, " "))
			}
			if len(t.Indexes) > 0 {
				dimColor.Printf("  indexes: %s\n", strings.Join(t.Indexes, ", "))
			}
		}
	case ".trace":
		*showTrace = len(fields) < 2 || fields[1] != "off"
	case ".plan":
		*showPlan = len(fields) < 2 || fields[1] != "off"
	case ".analyze":
		*analyzeMode = len(fields) < 2 || fields[1] != "off"
	case ".btree":
		if len(fields) < 3 {
			errColor.Println("usage: .btree <table> <column> [key]")
			return
		}
		showBTree(db, fields[1], fields[2], fields[3:])
	default:
		errColor.Println("unknown command, try .help")
	}
}

func showBTree(db *sqlvis.DB, table, col string, rest []string) {
	tree, err := db.IndexTree(table, col)
	if err != nil {
		errColor.Println(err)
		return
	}
	fmt.Printf("B-tree over %s.%s: order %d, height %d, %d keys\n",
		table, col, tree.Order(), tree.Height(), tree.Len())
	if len(rest) == 0 {
		return
	}
	key := parseKey(rest[0])
	rows, path, found := tree.Lookup(key)
	for i, st := range path {
		stageColor.Printf("  step %d ", i+1)
		fmt.Printf("node %d %v: %s", st.NodeID, st.Keys, st.Action)
		if st.Detail != "" {
			dimColor.Printf("  (%s)", st.Detail)
		}
		fmt.Println()
	}
	if found {
		fmt.Printf("found, row ids %v\n", rows)
	} else {
		fmt.Println("not found")
	}
}

func parseKey(s string) any {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func render(resp *sqlvis.Response, showTrace, showPlan bool) {
	if resp.Error != nil {
		errColor.Printf("%s error: %s\n", resp.Error.Kind, resp.Error.Message)
		if resp.Error.Line > 0 {
			dimColor.Printf("  at line %d, column %d\n", resp.Error.Line, resp.Error.Column)
		}
		if resp.Error.Suggestion != "" {
			hintColor.Println("  hint: " + resp.Error.Suggestion)
		}
		return
	}

	printTable(resp.Columns, resp.Rows)
	fmt.Printf("%d row(s) in %.2f ms\n", len(resp.Rows), resp.ElapsedMS)

	if showTrace && len(resp.Trace) > 0 {
		headerColor.Println("\nexecution order:")
		for _, st := range resp.Trace {
			if !st.Active {
				dimColor.Printf("   -  %-9s %s\n", st.Stage, st.Description)
				continue
			}
			stageColor.Printf("  %2d. ", st.Order)
			fmt.Printf("%-9s %s\n", st.Stage, st.Description)
		}
	}
	if showPlan && resp.Plan != nil {
		headerColor.Println("\naccess plan:")
		for _, line := range resp.Plan.Lines() {
			fmt.Println("  " + line)
		}
	}
}

func renderAnalysis(a *sqlvis.Analysis) {
	if a == nil {
		return
	}
	headerColor.Printf("\nanalysis: %s (access %s)\n", a.Rating, a.AccessRating)
	for _, is := range a.Issues {
		switch is.Severity {
		case "error":
			errColor.Printf("  [%s] ", is.Severity)
		case "warning":
			hintColor.Printf("  [%s] ", is.Severity)
		default:
			dimColor.Printf("  [%s] ", is.Severity)
		}
		fmt.Println(is.Title)
		dimColor.Println("        " + is.Description)
		if is.Fix != "" {
			fmt.Println("        fix: " + is.Fix)
		}
	}
	for _, rec := range a.Recommendations {
		stageColor.Print("  index ")
		fmt.Printf("%s: %s\n", rec.Reason, rec.SQL)
	}
	for _, rw := range a.Rewrites {
		stageColor.Print("  rewrite ")
		fmt.Printf("%s -> %s\n", rw.Pattern, rw.Rewritten)
		dimColor.Println("        " + rw.Reason)
	}
	for _, tip := range a.Tips {
		dimColor.Println("  tip: " + tip)
	}
}

func printTable(cols []string, rows [][]any) {
	if len(cols) == 0 {
		return
	}
	cells := make([][]string, len(rows))
	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = len(c)
	}
	for ri, row := range rows {
		cells[ri] = make([]string, len(cols))
		for ci := range cols {
			s := "NULL"
			if ci < len(row) && row[ci] != nil {
				s = fmt.Sprintf("%v", row[ci])
			}
			cells[ri][ci] = s
			if len(s) > widths[ci] {
				widths[ci] = len(s)
			}
		}
	}
	for i, c := range cols {
		headerColor.Printf("%-*s", widths[i], c)
		if i < len(cols)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
	for i := range cols {
		fmt.Print(strings.Repeat("-", widths[i]))
		if i < len(cols)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
	for _, row := range cells {
		for i, s := range row {
			fmt.Printf("%-*s", widths[i], s)
			if i < len(row)-1 {
				fmt.Print("  ")
			}
		}
		fmt.Println()
	}
}
