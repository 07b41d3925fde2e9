// HTTP JSON API for the sqlvis query engine.
//
// Endpoints:
//
//	POST /query    {"sql": "..."} -> service response (rows, trace, plan)
//	POST /analyze  {"sql": "..."} -> query response plus anti-pattern analysis
//	GET  /schema   -> table schemas
//	GET  /btree    ?table=&column=[&key=] -> tree shape and lookup path
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/alecthomas/kong"

	"github.com/SimonWaldherr/sqlvis"
)

var cli struct {
	Listen  string        `help:"HTTP listen address." default:":8080"`
	Timeout time.Duration `help:"Per-query timeout." default:"10s"`
	MaxIter int           `help:"Recursive CTE iteration cap." default:"100"`
	MaxRows int           `help:"Intermediate row budget." default:"1000000"`
}

func main() {
	kong.Parse(&cli,
		kong.Name("sqlvis-server"),
		kong.Description("HTTP JSON API for the sqlvis query engine."))

	db, err := sqlvis.OpenWithOptions(sqlvis.Options{
		MaxRecursionDepth:   cli.MaxIter,
		MaxIntermediateRows: cli.MaxRows,
	})
	if err != nil {
		log.Fatalf("open dataset: %v", err)
	}

	srv := &server{db: db, timeout: cli.Timeout}
	mux := http.NewServeMux()
	mux.HandleFunc("/query", srv.handleQuery)
	mux.HandleFunc("/analyze", srv.handleAnalyze)
	mux.HandleFunc("/schema", srv.handleSchema)
	mux.HandleFunc("/btree", srv.handleBTree)

	log.Printf("listening on %s", cli.Listen)
	log.Fatal(http.ListenAndServe(cli.Listen, mux))
}

type server struct {
	db      *sqlvis.DB
	timeout time.Duration
}

type queryRequest struct {
	SQL string `json:"sql"`
}

func (s *server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	resp := s.db.Query(ctx, req.SQL)
	status := http.StatusOK
	if resp.Error != nil && resp.Error.Kind == "parse" {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, resp)
}

func (s *server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	resp := s.db.Analyze(ctx, req.SQL)
	status := http.StatusOK
	if resp.Error != nil && resp.Error.Kind == "parse" {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, resp)
}

func (s *server) handleSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.db.Schema())
}

type btreeResponse struct {
	Table  string                 `json:"table"`
	Column string                 `json:"column"`
	Order  int                    `json:"order"`
	Height int                    `json:"height"`
	Keys   int                    `json:"keys"`
	Found  *bool                  `json:"found,omitempty"`
	RowIDs []int                  `json:"row_ids,omitempty"`
	Path   []sqlvis.TraversalStep `json:"path,omitempty"`
}

func (s *server) handleBTree(w http.ResponseWriter, r *http.Request) {
	table := r.URL.Query().Get("table")
	column := r.URL.Query().Get("column")
	if table == "" || column == "" {
		http.Error(w, "table and column parameters are required", http.StatusBadRequest)
		return
	}
	tree, err := s.db.IndexTree(table, column)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	resp := btreeResponse{
		Table:  table,
		Column: column,
		Order:  tree.Order(),
		Height: tree.Height(),
		Keys:   tree.Len(),
	}
	if key := r.URL.Query().Get("key"); key != "" {
		rowIDs, path, found := tree.Lookup(parseKey(key))
		resp.Found = &found
		resp.RowIDs = rowIDs
		resp.Path = path
	}
	writeJSON(w, http.StatusOK, resp)
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

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}
