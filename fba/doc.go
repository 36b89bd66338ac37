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

// Package fba implements the record query API of the FieldBase platform.
//
// Each FieldBase form stores an ordered table of records. The table has a
// schema, which is the list of column names and their types, in the order
// they appear in the table. A Query accumulates a restricted sequence of
// read operations against such a table (column selection, equality filters,
// a single-column sort, and row-window slices) without performing any
// network I/O, and Collect() executes the accumulated sequence on the
// server in one batched request, materializing the result as a table.Table.
//
// The server only executes the narrow subset of relational operations it
// can serve from its indexes, so the Query validates the operation order
// locally and rejects anything outside that subset before a request is ever
// sent. The valid order is: an optional single Select first, then any
// number of Filters and at most one Sort, then any number of Slices, then
// Collect.
//
// The raw record API returns at most one page of rows per request, with a
// cursor for the next page. Collect and Rows handle the paging
// transparently.
package fba
