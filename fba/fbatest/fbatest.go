// Copyright 2025 FieldBase

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fbatest implements an in-process fake of the FieldBase record
// service for use in tests. The fake decodes the wire request of a
// collected query and actually evaluates the operation sequence - select
// patterns, ANDed equality filters, the single sort, left-to-right window
// slices, column style and paging - against in-memory datasets, so tests
// can verify query semantics end to end rather than just canned responses.
package fbatest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/fieldbase/fieldbase/fba"
	"github.com/fieldbase/fieldbase/table"
)

// Dataset is the record table of one fake form. IDs and RefCodes are
// row-aligned with Rows; RefCodes maps a reference field name to the code
// of the referenced record in each row.
type Dataset struct {
	Schema   fba.Schema
	Rows     [][]fba.Value
	IDs      []string
	RefCodes map[string][]fba.Value
}

// Server is a fake FieldBase deployment backed by an httptest.Server.
type Server struct {
	Token string // when non-empty, requests with a different token get a 401

	server   *httptest.Server
	mu       sync.Mutex
	datasets map[string]*Dataset
	requests int
}

// NewServer starts a new fake deployment with no datasets.
func NewServer() *Server {
	s := &Server{datasets: make(map[string]*Dataset)}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Close shuts the underlying HTTP server down.
func (s *Server) Close() { s.server.Close() }

// URL returns the base URL of the fake deployment.
func (s *Server) URL() string { return s.server.URL }

// Client returns an HTTP client connected to the fake deployment, suitable
// for fetch.UseClient.
func (s *Server) Client() *http.Client { return s.server.Client() }

// AddDataset registers the record table served for the given source.
func (s *Server) AddDataset(source string, d *Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.datasets[source] = d
}

// RequestCount returns the number of requests received so far. Tests use
// it to verify that grammar violations and cached Collect calls never
// reach the server.
func (s *Server) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// writeError reports a failure in the response envelope, the way the real
// record API does.
func writeError(w http.ResponseWriter, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(fba.TestErrorPayload(code, message)))
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests++
	s.mu.Unlock()

	path := r.URL.Path
	if !strings.HasPrefix(path, "/query/") || !strings.HasSuffix(path, "/table.json") {
		writeError(w, "NOT_FOUND", "unknown endpoint: "+path)
		return
	}
	source := strings.TrimSuffix(strings.TrimPrefix(path, "/query/"), "/table.json")

	q := r.URL.Query()
	if s.Token != "" && q.Get("token") != s.Token {
		writeError(w, "UNAUTHORIZED", "invalid API token")
		return
	}
	s.mu.Lock()
	d := s.datasets[source]
	s.mu.Unlock()
	if d == nil {
		writeError(w, "NOT_FOUND", "no such form: "+source)
		return
	}

	page, ok := evaluate(d, q)
	if !ok {
		writeError(w, "BAD_REQUEST", "malformed query")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(page)
}

// pageJSON mirrors the wire schema of a record page.
type pageJSON struct {
	Records struct {
		Schema fba.Schema    `json:"columns"`
		Rows   [][]fba.Value `json:"rows"`
	} `json:"records"`
	Meta struct {
		Cursor string `json:"next_cursor,omitempty"`
	} `json:"meta,omitempty"`
}

// evaluate applies the serialized operation sequence to the dataset and
// renders one page.
func evaluate(d *Dataset, q map[string][]string) (*pageJSON, bool) {
	fields := d.Schema.MapFields()
	names := make([]string, len(d.Schema))
	for i, f := range d.Schema {
		names[i] = f.Name
	}

	// Row indices survive filtering, sorting and slicing, keeping IDs and
	// reference codes aligned with their rows.
	idx := make([]int, len(d.Rows))
	for i := range idx {
		idx[i] = i
	}

	// Equality filters, ANDed.
	for key, values := range q {
		if !strings.HasPrefix(key, "filter.") {
			continue
		}
		col, ok := fields[strings.TrimPrefix(key, "filter.")]
		if !ok {
			return nil, false
		}
		for _, want := range values {
			var kept []int
			for _, i := range idx {
				if table.FormatValue(d.Rows[i][col]) == want {
					kept = append(kept, i)
				}
			}
			idx = kept
		}
	}

	// The single sort.
	if len(q["sort"]) > 0 {
		spec := q["sort"][0]
		dot := strings.LastIndex(spec, ".")
		if dot < 0 {
			return nil, false
		}
		col, ok := fields[spec[:dot]]
		if !ok {
			return nil, false
		}
		desc := spec[dot+1:] == "desc"
		sort.SliceStable(idx, func(a, b int) bool {
			less := lessValue(d.Rows[idx[a]][col], d.Rows[idx[b]][col])
			if desc {
				return lessValue(d.Rows[idx[b]][col], d.Rows[idx[a]][col])
			}
			return less
		})
	}

	// Window slices compose left to right.
	if len(q["window"]) > 0 {
		for _, op := range strings.Split(q["window"][0], ",") {
			parts := strings.Split(op, ":")
			var err error
			idx, err = applySlice(idx, parts)
			if err != nil {
				return nil, false
			}
		}
	}

	// Column projection: select patterns expanded in pattern order,
	// de-duplicated keeping the first occurrence.
	projected := names
	if len(q["select"]) > 0 {
		var patterns []fba.Pattern
		for _, raw := range strings.Split(q["select"][0], ",") {
			p, err := fba.CompilePattern(raw)
			if err != nil {
				return nil, false
			}
			patterns = append(patterns, p)
		}
		projected = fba.ExpandPatterns(patterns, names)
	}

	// Column style: metadata columns are added after all row operations,
	// so the style can never change which rows come back or their order.
	withIDs := q["style.ids"] != nil && d.IDs != nil
	withCodes := q["style.codes"] != nil

	var schema fba.Schema
	if withIDs {
		schema = append(schema, fba.SchemaField{Name: fba.IDColumn, Type: "id"})
	}
	for _, name := range projected {
		schema = append(schema, d.Schema[fields[name]])
		if withCodes && d.RefCodes[name] != nil {
			schema = append(schema,
				fba.SchemaField{Name: fba.CodeColumn(name), Type: "code"})
		}
	}

	rows := make([][]fba.Value, len(idx))
	for out, i := range idx {
		var row []fba.Value
		if withIDs {
			row = append(row, d.IDs[i])
		}
		for _, name := range projected {
			row = append(row, d.Rows[i][fields[name]])
			if withCodes && d.RefCodes[name] != nil {
				row = append(row, d.RefCodes[name][i])
			}
		}
		rows[out] = row
	}

	// Paging over the final row set.
	start := 0
	if len(q["cursor"]) > 0 {
		n, err := strconv.Atoi(q["cursor"][0])
		if err != nil || n < 0 {
			return nil, false
		}
		start = n
	}
	perPage := len(rows)
	if len(q["per_page"]) > 0 {
		n, err := strconv.Atoi(q["per_page"][0])
		if err != nil || n <= 0 {
			return nil, false
		}
		perPage = n
	}
	if start > len(rows) {
		start = len(rows)
	}
	end := start + perPage
	if end > len(rows) {
		end = len(rows)
	}

	var page pageJSON
	page.Records.Schema = schema
	page.Records.Rows = rows[start:end]
	if end < len(rows) {
		page.Meta.Cursor = strconv.Itoa(end)
	}
	return &page, true
}

// applySlice narrows the row window by one slice operation.
func applySlice(idx []int, parts []string) ([]int, error) {
	atoi := func(s string) (int, error) { return strconv.Atoi(s) }
	switch {
	case len(parts) == 2 && parts[0] == "head":
		n, err := atoi(parts[1])
		if err != nil {
			return nil, err
		}
		if n > len(idx) {
			n = len(idx)
		}
		return idx[:n], nil
	case len(parts) == 2 && parts[0] == "tail":
		n, err := atoi(parts[1])
		if err != nil {
			return nil, err
		}
		if n > len(idx) {
			n = len(idx)
		}
		return idx[len(idx)-n:], nil
	case len(parts) == 3 && parts[0] == "skip":
		offset, err := atoi(parts[1])
		if err != nil {
			return nil, err
		}
		limit, err := atoi(parts[2])
		if err != nil {
			return nil, err
		}
		if offset > len(idx) {
			offset = len(idx)
		}
		idx = idx[offset:]
		if limit < len(idx) {
			idx = idx[:limit]
		}
		return idx, nil
	}
	return nil, strconv.ErrSyntax
}

// lessValue orders two cell values the way the server's indexes do:
// numbers by value, everything else by its formatted form, nils first.
func lessValue(a, b fba.Value) bool {
	an, aok := a.(float64)
	bn, bok := b.(float64)
	if aok && bok {
		return an < bn
	}
	if a == nil || b == nil {
		return a == nil && b != nil
	}
	return table.FormatValue(a) < table.FormatValue(b)
}
