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

// Style selects which metadata columns the server includes in a
// materialized table. It affects only the schema of the result, never the
// filtering or sorting semantics.
type Style struct {
	// RecordIDs adds the record ID column "@id" as the first column.
	RecordIDs bool `toml:"ids"`
	// ReferenceCodes adds a "<field>.@code" column directly after each
	// reference field present in the result, holding the code of the
	// referenced form record.
	ReferenceCodes bool `toml:"codes"`
}

// IDColumn is the name of the record ID metadata column.
const IDColumn = "@id"

// CodeColumn returns the name of the reference-code metadata column for the
// given reference field.
func CodeColumn(field string) string {
	return field + ".@code"
}
