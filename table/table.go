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

// Package table implements a materialized record table: an ordered list of
// columns and rows as ordered column -> value dicts. It is the result type
// of a collected fba.Query, and the place where row operations beyond the
// server-executable subset live: multi-column sorts and further predicates
// applied in memory rather than delegated to the server.
package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/Velocidex/ordereddict"
	"github.com/stockparfait/errors"
)

// Table container. The column order is significant and applies to all the
// writers; rows may omit columns, which read back as nil.
type Table struct {
	Columns []string
	Rows    []*ordereddict.Dict
}

// New creates a new Table instance with the given column order.
func New(columns ...string) *Table {
	return &Table{Columns: columns}
}

// AddRow adds one or more rows to the table.
func (t *Table) AddRow(rows ...*ordereddict.Dict) {
	t.Rows = append(t.Rows, rows...)
}

// copyWith creates a table with the same columns and the given rows.
func (t *Table) copyWith(rows []*ordereddict.Dict) *Table {
	return &Table{Columns: t.Columns, Rows: rows}
}

// Cell returns the value of the column in the given row, or nil when the
// row does not carry the column.
func (t *Table) Cell(row int, column string) interface{} {
	if row < 0 || row >= len(t.Rows) {
		return nil
	}
	v, ok := t.Rows[row].Get(column)
	if !ok {
		return nil
	}
	return v
}

// FormatValue renders a cell value the way the server renders it in CSV
// exports: numbers without a trailing ".0", booleans as true / false, nil
// as the empty string.
func FormatValue(v interface{}) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case float64:
		if c == float64(int64(c)) {
			return fmt.Sprintf("%d", int64(c))
		}
		return fmt.Sprintf("%g", c)
	case bool:
		return fmt.Sprintf("%t", c)
	default:
		return fmt.Sprintf("%v", c)
	}
}

// Where keeps only the rows whose column value formats to the given value.
// It is the client-side counterpart of the remote equality filter, for
// predicates applied after materialization.
func (t *Table) Where(column, value string) *Table {
	var rows []*ordereddict.Dict
	for _, r := range t.Rows {
		v, _ := r.Get(column)
		if FormatValue(v) == value {
			rows = append(rows, r)
		}
	}
	return t.copyWith(rows)
}

// SortKey is one column of a client-side sort.
type SortKey struct {
	Column string
	Desc   bool
}

// lessValue orders two cell values: nils first, numbers by value, anything
// else by its formatted form.
func lessValue(a, b interface{}) bool {
	an, aok := a.(float64)
	bn, bok := b.(float64)
	if aok && bok {
		return an < bn
	}
	if a == nil || b == nil {
		return a == nil && b != nil
	}
	return FormatValue(a) < FormatValue(b)
}

// SortBy sorts the rows by the given keys in order of significance. Unlike
// the remote sort, any number of keys may be supplied. The sort is stable.
func (t *Table) SortBy(keys ...SortKey) *Table {
	rows := append([]*ordereddict.Dict{}, t.Rows...)
	sort.SliceStable(rows, func(i, j int) bool {
		for _, k := range keys {
			a, _ := rows[i].Get(k.Column)
			b, _ := rows[j].Get(k.Column)
			if lessValue(a, b) {
				return !k.Desc
			}
			if lessValue(b, a) {
				return k.Desc
			}
		}
		return false
	})
	return t.copyWith(rows)
}

// Head keeps the first n rows.
func (t *Table) Head(n int) *Table {
	if n < 0 {
		n = 0
	}
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	return t.copyWith(append([]*ordereddict.Dict{}, t.Rows[:n]...))
}

// Tail keeps the last n rows.
func (t *Table) Tail(n int) *Table {
	if n < 0 {
		n = 0
	}
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	return t.copyWith(append([]*ordereddict.Dict{}, t.Rows[len(t.Rows)-n:]...))
}

// Params are parameters for pretty-printing or CSV export of Table data.
type Params struct {
	Rows        int  // max. number of rows to write; 0 = unlimited (default)
	NoHeader    bool // whether to print the header, default - yes
	MaxColWidth int  // for WriteText only; 0 = unlimited, otherwise must be >= 4
}

// csvRow renders one row in column order.
func (t *Table) csvRow(r *ordereddict.Dict) []string {
	row := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		v, _ := r.Get(c)
		row[i] = FormatValue(v)
	}
	return row
}

// WriteCSV writes the entire table to w in CSV format.
func (t *Table) WriteCSV(w io.Writer, p Params) error {
	cw := csv.NewWriter(w)
	if !p.NoHeader && len(t.Columns) > 0 {
		if err := cw.Write(t.Columns); err != nil {
			return errors.Annotate(err, "failed to write header")
		}
	}
	for i, r := range t.Rows {
		if p.Rows > 0 && i >= p.Rows {
			break
		}
		if err := cw.Write(t.csvRow(r)); err != nil {
			return errors.Annotate(err, "failed to write row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Annotate(err, "failed to flush written rows")
	}
	return nil
}

// WriteText writes the table as a text formatted for ease of reading.
func (t *Table) WriteText(w io.Writer, p Params) error {
	if p.MaxColWidth != 0 && p.MaxColWidth < 4 {
		return errors.Reason("MaxColWidth [%d] must be 0 or >= 4", p.MaxColWidth)
	}
	var widths []int
	update := func(row []string) error {
		if len(row) == 0 {
			return errors.Reason("row size = 0")
		}
		if len(widths) == 0 {
			widths = make([]int, len(row))
		}
		if len(row) != len(widths) {
			return errors.Reason("row size [%d] != expected size [%d]",
				len(row), len(widths))
		}
		for i := range widths {
			if widths[i] < len(row[i]) {
				widths[i] = len(row[i])
				if p.MaxColWidth > 0 && widths[i] > p.MaxColWidth {
					widths[i] = p.MaxColWidth
				}
			}
		}
		return nil
	}

	write := func(row []string) error {
		trimmed := make([]string, len(row))
		for i, s := range row {
			trimmed[i] = s
			if len([]rune(s)) > widths[i] {
				r := []rune(s)[:widths[i]-2]
				trimmed[i] = string(r) + ".."
			}
			trimmed[i] = fmt.Sprintf("%[2]*[1]s", trimmed[i], widths[i])
		}
		_, err := fmt.Fprintf(w, "%s\n", strings.Join(trimmed, " | "))
		return err
	}

	dashes := func(n int) string {
		b := make([]byte, n)
		for i := range b {
			b[i] = byte('-')
		}
		return string(b)
	}

	dashedRow := func() []string {
		row := make([]string, len(widths))
		for i, w := range widths {
			row[i] = dashes(w)
		}
		return row
	}

	if !p.NoHeader && len(t.Columns) > 0 {
		if err := update(t.Columns); err != nil {
			return errors.Annotate(err, "failed to update header widths")
		}
	}
	for i, r := range t.Rows {
		if p.Rows > 0 && i >= p.Rows {
			break
		}
		if err := update(t.csvRow(r)); err != nil {
			return errors.Annotate(err, "failed to update row widths")
		}
	}

	if !p.NoHeader && len(t.Columns) > 0 {
		if err := write(t.Columns); err != nil {
			return errors.Annotate(err, "failed to write header")
		}
		if err := write(dashedRow()); err != nil {
			return errors.Annotate(err, "failed to write header separator")
		}
	}
	for i, r := range t.Rows {
		if p.Rows > 0 && i >= p.Rows {
			break
		}
		if err := write(t.csvRow(r)); err != nil {
			return errors.Annotate(err, "failed to write row")
		}
	}
	return nil
}
