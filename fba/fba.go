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
	"encoding/json"
	"fmt"
	"strings"
)

type contextKey int

const (
	clientContextKey contextKey = iota
)

// Client for querying FieldBase record tables.
type Client struct {
	baseURL string // the base URL of the deployment, e.g. https://acme.fieldbase.org/api
	token   string // a pre-obtained API token for that deployment
}

// newClient creates a new client.
func newClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
	}
}

// GetClient extracts the Client from the context, if any.
func GetClient(ctx context.Context) *Client {
	c, ok := ctx.Value(clientContextKey).(*Client)
	if !ok {
		return nil
	}
	return c
}

// UseClient creates a new client for the deployment at baseURL,
// authenticated with the API token, and injects it into the context.
func UseClient(ctx context.Context, baseURL, token string) context.Context {
	return context.WithValue(ctx, clientContextKey, newClient(baseURL, token))
}

// Value is an arbitrary value of a record cell.
type Value interface{}

// SchemaField is the schema definition for a single record column.
type SchemaField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Schema definition for a record table.
type Schema []SchemaField

// Equal tests two schemas for exact equality, including the field ordering.
func (s Schema) Equal(s2 Schema) bool {
	if len(s) != len(s2) {
		return false
	}
	for i, f := range s {
		if f != s2[i] {
			return false
		}
	}
	return true
}

// MapFields creates a map of {field name -> field index} in the schema.
func (s Schema) MapFields() map[string]int {
	res := make(map[string]int)
	for i, f := range s {
		res[f.Name] = i
	}
	return res
}

// String prints a string representation of the schema.
func (s Schema) String() string {
	fields := []string{}
	for _, f := range s {
		fields = append(fields, fmt.Sprintf("%s: %s", f.Name, f.Type))
	}
	return "{" + strings.Join(fields, ", ") + "}"
}

// records holds the data and the schema of one page of a record table.
type records struct {
	Schema Schema    `json:"columns"`
	Rows   [][]Value `json:"rows"`
}

// metadata for a record page.
type metadata struct {
	Cursor string `json:"next_cursor,omitempty"`
}

// apiError is the diagnostic payload of a failed API call. The record API
// reports failures in the response envelope rather than via bare HTTP
// status codes, so the client always receives a structured payload.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// recordsPage is the format of a single page of record data.
type recordsPage struct {
	Records records   `json:"records"`
	Meta    metadata  `json:"meta,omitempty"`
	Error   *apiError `json:"error,omitempty"`
}

// TestRecordsPage generates the JSON string in the format returned by the
// FieldBase record API. For use in tests.
func TestRecordsPage(schema Schema, rows [][]Value, cursor string) (string, error) {
	bytes, err := json.Marshal(&recordsPage{
		Records: records{Schema: schema, Rows: rows},
		Meta:    metadata{Cursor: cursor},
	})
	return string(bytes), err
}

// TestErrorPayload generates the JSON string in the format of a FieldBase
// error response. For use in tests.
func TestErrorPayload(code, message string) string {
	p := recordsPage{Error: &apiError{Code: code, Message: message}}
	bytes, _ := json.Marshal(&p)
	return string(bytes)
}
