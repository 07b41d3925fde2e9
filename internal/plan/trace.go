// Package plan turns executed queries into explanatory metadata: the
// execution-order trace and the EXPLAIN-style access plan.
//
// What: The trace lists the fixed stage pipeline (FROM, JOIN, WHERE,
// GROUP BY, HAVING, SELECT, DISTINCT, ORDER BY, LIMIT) with clause text,
// a human description and input/output row counts. Inactive stages are
// still listed so the full clause-execution order stays visible.
// How: The executor already records per-stage statistics; this package only
// renders them. Keeping rendering out of the engine avoids an import cycle
// and keeps the executor free of presentation concerns.
// Why: The ordered trace is the teaching artifact: it shows that SQL
// clauses do not run in the order they are written.
package plan

import (
	"fmt"

	"github.com/SimonWaldherr/sqlvis/internal/engine"
)

// Step is one stage of the execution-order trace.
type Step struct {
	Order       int    `json:"order"`
	Stage       string `json:"stage"`
	Clause      string `json:"clause,omitempty"`
	Description string `json:"description"`
	Active      bool   `json:"active"`
	InRows      int    `json:"in_rows"`
	OutRows     int    `json:"out_rows"`
}

// Trace renders the stage statistics of an executed query. Active stages
// are numbered in execution order; skipped stages keep order 0.
func Trace(res *engine.Result) []Step {
	steps := make([]Step, 0, len(res.Stats))
	order := 0
	for _, st := range res.Stats {
		s := Step{
			Stage:   st.Stage,
			Clause:  st.Note,
			Active:  st.Active,
			InRows:  st.InRows,
			OutRows: st.OutRows,
		}
		if st.Active {
			order++
			s.Order = order
			s.Description = describe(st)
		} else {
			s.Description = fmt.Sprintf("no %s clause, %d rows pass through", st.Stage, st.OutRows)
		}
		steps = append(steps, s)
	}
	return steps
}

func describe(st engine.StageStat) string {
	switch st.Stage {
	case engine.StageFrom:
		return fmt.Sprintf("load %s: %d rows", st.Note, st.OutRows)
	case engine.StageJoin:
		return fmt.Sprintf("%s: %d rows in, %d rows out", st.Note, st.InRows, st.OutRows)
	case engine.StageWhere:
		return fmt.Sprintf("filter rows where %s: kept %d of %d", st.Note, st.OutRows, st.InRows)
	case engine.StageGroupBy:
		return fmt.Sprintf("group %d rows by %s into %d groups", st.InRows, st.Note, st.OutRows)
	case engine.StageHaving:
		return fmt.Sprintf("filter groups where %s: kept %d of %d", st.Note, st.OutRows, st.InRows)
	case engine.StageSelect:
		return fmt.Sprintf("project %s: %d rows", st.Note, st.OutRows)
	case engine.StageDistinct:
		return fmt.Sprintf("remove duplicates: %d of %d rows remain", st.OutRows, st.InRows)
	case engine.StageOrderBy:
		return fmt.Sprintf("sort %d rows by %s", st.OutRows, st.Note)
	case engine.StageLimit:
		return fmt.Sprintf("apply %s: %d of %d rows remain", st.Note, st.OutRows, st.InRows)
	}
	return st.Note
}
