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

package fba

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Velocidex/ordereddict"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/fetch"
	"github.com/stockparfait/logging"

	"github.com/fieldbase/fieldbase/table"
)

// SortDirection of the single remote sort a query may carry.
type SortDirection string

const (
	Ascending  = SortDirection("asc")
	Descending = SortDirection("desc")
)

// queryState tracks the position of a Query in the fixed operation grammar.
type queryState int

const (
	stateEmpty queryState = iota
	stateSelected
	stateFiltered
	stateSliced
	stateCollected
)

func (s queryState) String() string {
	switch s {
	case stateEmpty:
		return "empty"
	case stateSelected:
		return "selected"
	case stateFiltered:
		return "filtered"
	case stateSliced:
		return "sliced"
	case stateCollected:
		return "collected"
	}
	return "unknown"
}

// sliceKind is the enum for the row-window slice variants.
type sliceKind string

const (
	sliceHead   = sliceKind("head")
	sliceTail   = sliceKind("tail")
	sliceWindow = sliceKind("skip")
)

// queryFilter is a single equality filter. All filters of a query are
// logically ANDed by the server.
type queryFilter struct {
	Column string
	Value  string
}

// querySort is the single-column sort of a query.
type querySort struct {
	Column    string
	Direction SortDirection
}

// querySlice is one row-window slice. Slices compose left to right, each
// narrowing the window established by the previous one.
type querySlice struct {
	Kind   sliceKind
	Count  int // head / tail count, or the window limit
	Offset int // window only
}

// queryOptions are options that do not participate in the grammar.
type queryOptions struct {
	Style   Style
	PerPage int // rows per page, up to the server cap (0 = server default)
}

// Query is a deferred request for the record table of a single form. It
// accumulates operations without contacting the server; Collect() executes
// the accumulated sequence in one batched request. Builder methods validate
// the operation order at append time and always return a deep copy, leaving
// the original intact.
type Query struct {
	source  string // form reference, e.g. "cxy123" or "tree:cxy123"
	state   queryState
	selects []Pattern
	filters []queryFilter
	sort    *querySort
	slices  []querySlice
	options queryOptions

	collected *table.Table // cached result; set by Collect
}

// NewQuery creates a new empty query for the given source form reference.
func NewQuery(source string) (*Query, error) {
	if strings.TrimSpace(source) == "" {
		return nil, &InvalidSourceError{Source: source}
	}
	return &Query{source: source}, nil
}

// Copy creates a deep copy of the query. The copy is not materialized even
// when the original is.
func (q *Query) Copy() *Query {
	q2 := Query{
		source:  q.source,
		state:   q.state,
		options: q.options,
	}
	q2.selects = append([]Pattern{}, q.selects...)
	q2.filters = append([]queryFilter{}, q.filters...)
	q2.slices = append([]querySlice{}, q.slices...)
	if q.sort != nil {
		s := *q.sort
		q2.sort = &s
	}
	return &q2
}

// Source returns the form reference the query reads from.
func (q *Query) Source() string { return q.source }

// orderError is a shorthand for the append-time grammar violation.
func (q *Query) orderError(op string) error {
	return &OperationOrderError{Op: op, State: q.state.String()}
}

// Select restricts and orders the result columns. Each pattern is an exact
// column name, a prefix pattern "Name*", or a suffix pattern "*Name";
// columns matched by more than one pattern keep their first position.
// Select may only be the first operation of a query, and at most one Select
// is allowed.
func (q *Query) Select(patterns ...string) (*Query, error) {
	if q.state != stateEmpty {
		return nil, q.orderError("select")
	}
	if len(patterns) == 0 {
		return nil, &UnsupportedOperationError{
			Op: "select", Reason: "at least one column pattern is required"}
	}
	q2 := q.Copy()
	for _, p := range patterns {
		pat, err := CompilePattern(p)
		if err != nil {
			return nil, err
		}
		q2.selects = append(q2.selects, pat)
	}
	q2.state = stateSelected
	return q2, nil
}

// Filter adds an equality filter: the value of the column must equal the
// given value. Filters may be combined freely before the first slice and
// are ANDed by the server.
func (q *Query) Filter(column, value string) (*Query, error) {
	switch q.state {
	case stateEmpty, stateSelected, stateFiltered:
	default:
		return nil, q.orderError("filter")
	}
	q2 := q.Copy()
	q2.filters = append(q2.filters, queryFilter{Column: column, Value: value})
	q2.state = stateFiltered
	return q2, nil
}

// Sort orders the result by a single column. The server supports at most
// one sort column per query; a second Sort fails with
// UnsupportedOperationError. Sort must precede all slices.
func (q *Query) Sort(column string, direction SortDirection) (*Query, error) {
	switch q.state {
	case stateEmpty, stateSelected, stateFiltered:
	default:
		return nil, q.orderError("sort")
	}
	if q.sort != nil {
		return nil, &UnsupportedOperationError{
			Op: "sort", Reason: "the server supports a single sort column"}
	}
	if direction != Ascending && direction != Descending {
		return nil, &UnsupportedOperationError{
			Op:     "sort",
			Reason: fmt.Sprintf("unknown direction %q", string(direction))}
	}
	q2 := q.Copy()
	q2.sort = &querySort{Column: column, Direction: direction}
	q2.state = stateFiltered
	return q2, nil
}

// appendSlice validates and appends one slice operation.
func (q *Query) appendSlice(s querySlice) (*Query, error) {
	if q.state == stateCollected {
		return nil, q.orderError(string(s.Kind))
	}
	if s.Count < 0 || s.Offset < 0 {
		return nil, &UnsupportedOperationError{
			Op: string(s.Kind), Reason: "negative row counts are not valid"}
	}
	q2 := q.Copy()
	q2.slices = append(q2.slices, s)
	q2.state = stateSliced
	return q2, nil
}

// Head keeps the first n rows of the current row window.
func (q *Query) Head(n int) (*Query, error) {
	return q.appendSlice(querySlice{Kind: sliceHead, Count: n})
}

// Tail keeps the last n rows of the current row window.
func (q *Query) Tail(n int) (*Query, error) {
	return q.appendSlice(querySlice{Kind: sliceTail, Count: n})
}

// Window skips offset rows of the current row window and keeps up to limit
// of the remaining rows.
func (q *Query) Window(offset, limit int) (*Query, error) {
	return q.appendSlice(querySlice{Kind: sliceWindow, Offset: offset, Count: limit})
}

// WithStyle sets the column style of the materialized table. The style only
// selects which metadata columns are present; it never affects filtering or
// sorting, and does not participate in the operation grammar.
func (q *Query) WithStyle(s Style) *Query {
	q2 := q.Copy()
	q2.options.Style = s
	return q2
}

// PerPage sets the maximum number of rows in a single response page,
// [0..maxPerPage]. It only affects paging, never the query semantics.
func (q *Query) PerPage(size int) *Query {
	if size < 0 {
		size = 0
	}
	if size > maxPerPage {
		size = maxPerPage
	}
	q2 := q.Copy()
	q2.options.PerPage = size
	return q2
}

// maxPerPage is the server's cap on rows per response page.
const maxPerPage = 1000

// Path returns the URL path of the query under the deployment base URL.
func (q *Query) Path() string {
	return "/query/" + q.source + "/table.json"
}

// Values returns the URL query values encoding the accumulated operation
// sequence. Each call creates a new object, so the caller is free to modify
// it without affecting the query.
func (q *Query) Values() url.Values {
	v := make(url.Values)
	if len(q.selects) > 0 {
		pats := make([]string, len(q.selects))
		for i, p := range q.selects {
			pats[i] = p.String()
		}
		v["select"] = []string{strings.Join(pats, ",")}
	}
	for _, f := range q.filters {
		v["filter."+f.Column] = append(v["filter."+f.Column], f.Value)
	}
	if q.sort != nil {
		v["sort"] = []string{q.sort.Column + "." + string(q.sort.Direction)}
	}
	if len(q.slices) > 0 {
		// Window ordering matters: slices narrow left to right.
		ops := make([]string, len(q.slices))
		for i, s := range q.slices {
			switch s.Kind {
			case sliceWindow:
				ops[i] = fmt.Sprintf("skip:%d:%d", s.Offset, s.Count)
			default:
				ops[i] = fmt.Sprintf("%s:%d", s.Kind, s.Count)
			}
		}
		v["window"] = []string{strings.Join(ops, ",")}
	}
	if q.options.Style.RecordIDs {
		v["style.ids"] = []string{"true"}
	}
	if q.options.Style.ReferenceCodes {
		v["style.codes"] = []string{"true"}
	}
	if q.options.PerPage != 0 {
		v["per_page"] = []string{fmt.Sprintf("%d", q.options.PerPage)}
	}
	return v
}

// readPage executes the query using the Client from the context and
// downloads one page of rows starting at the cursor.
func (q *Query) readPage(ctx context.Context, cursor string, page *recordsPage) error {
	client := GetClient(ctx)
	if client == nil {
		return errors.Reason("Query.readPage: no client in context")
	}
	uri := client.baseURL + q.Path()
	query := q.Values()
	query["token"] = []string{client.token}
	if cursor != "" {
		query["cursor"] = []string{cursor}
	}

	if err := fetch.FetchJSON(ctx, uri, page, query, nil); err != nil {
		return &RemoteQueryError{cause: errors.Annotate(
			err, "failed to fetch '%s'", uri)}
	}
	if page.Error != nil {
		return &RemoteQueryError{Code: page.Error.Code, Message: page.Error.Message}
	}
	return nil
}

// RowIterator iterates over query result rows as ordered column -> value
// dicts. Paging is handled transparently.
type RowIterator struct {
	context   context.Context
	query     *Query
	page      recordsPage
	index     int  // the row for Next() to return
	pageCount int  // which page number we're on, for logging
	started   bool // if at least one Next call was ever made
	err       error
}

// Rows sets up an iterator over the result rows, which executes the query
// as needed and pages transparently. It is a streaming alternative to
// Collect for results too large to hold in memory at once.
func (q *Query) Rows(ctx context.Context) *RowIterator {
	return &RowIterator{context: ctx, query: q}
}

// Schema of the rows seen so far. Only valid after the first Next call.
func (it *RowIterator) Schema() Schema {
	return it.page.Records.Schema
}

// nextPage fetches and populates the iterator with the next page of rows.
// When there are no more pages, or loading a page fails, the first return
// value becomes false.
func (it *RowIterator) nextPage() (bool, error) {
	if it.started && it.page.Meta.Cursor == "" {
		return false, nil
	}
	cursor := ""
	if it.started {
		cursor = it.page.Meta.Cursor
	}
	it.started = true
	// Clear the page, in case the decoder doesn't overwrite some parts.
	it.page = recordsPage{}
	if err := it.query.readPage(it.context, cursor, &it.page); err != nil {
		logging.Warningf(it.context, "FieldBase: page %d of '%s' failed: %s",
			it.pageCount+1, it.query.source, err.Error())
		return false, err
	}
	it.index = 0
	it.pageCount++
	logging.Debugf(it.context, "FieldBase: fetched page %d with %d rows; cursor: %s",
		it.pageCount, len(it.page.Records.Rows), it.page.Meta.Cursor)
	return true, nil
}

// Next returns the next result row. When there are no more rows the second
// value is false; Err() reports the first error encountered, if any.
func (it *RowIterator) Next() (*ordereddict.Dict, bool) {
	if it.err != nil {
		return nil, false
	}
	if !it.started || it.index >= len(it.page.Records.Rows) {
		ok, err := it.nextPage()
		if err != nil {
			it.err = err
			return nil, false
		}
		if !ok {
			return nil, false
		}
	}
	if it.index >= len(it.page.Records.Rows) {
		return nil, false
	}
	raw := it.page.Records.Rows[it.index]
	it.index++
	row := ordereddict.NewDict()
	for i, f := range it.page.Records.Schema {
		var v Value
		if i < len(raw) {
			v = raw[i]
		}
		row.Set(f.Name, v)
	}
	return row, true
}

// Err returns the first error encountered by Next, if any.
func (it *RowIterator) Err() error { return it.err }

// Collect executes the accumulated operation sequence on the server and
// materializes the result. The returned table is a plain in-memory value:
// further row operations on it are a client-side concern and are never
// delegated back to the server.
//
// Collect on an already-materialized query is idempotent: it returns the
// cached table without contacting the server. Build a fresh query to
// re-execute.
func (q *Query) Collect(ctx context.Context) (*table.Table, error) {
	if q.collected != nil {
		return q.collected, nil
	}
	it := q.Rows(ctx)
	var rows []*ordereddict.Dict
	for {
		row, ok := it.Next()
		if !ok {
			break
		}
		rows = append(rows, row)
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	columns := make([]string, len(it.Schema()))
	for i, f := range it.Schema() {
		columns[i] = f.Name
	}
	t := table.New(columns...)
	t.AddRow(rows...)
	q.collected = t
	q.state = stateCollected
	return t, nil
}
