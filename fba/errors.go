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

import "fmt"

// InvalidSourceError indicates a statically invalid source reference, such
// as an empty form ID. Source references which are well-formed but unknown
// to the server are reported by the server and surface as RemoteQueryError.
type InvalidSourceError struct {
	Source string
}

func (e *InvalidSourceError) Error() string {
	return fmt.Sprintf("invalid query source: %q", e.Source)
}

// OperationOrderError indicates an operation appended out of the valid
// order, e.g. a Select after a Filter, or any operation after a Slice other
// than another Slice. It is detected locally, before any network call.
type OperationOrderError struct {
	Op    string // the rejected operation
	State string // the query state at the time of the append
}

func (e *OperationOrderError) Error() string {
	return fmt.Sprintf("operation %s is not valid for a query in state %s",
		e.Op, e.State)
}

// UnsupportedOperationError indicates an operation the server cannot
// execute regardless of its position, e.g. a second Sort or a negative
// slice count.
type UnsupportedOperationError struct {
	Op     string
	Reason string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("unsupported operation %s: %s", e.Op, e.Reason)
}

// RemoteQueryError is a read-path failure: transport, authorization or
// server-side error while executing a collected query. Code and Message
// preserve the server's diagnostic payload when one was received.
type RemoteQueryError struct {
	Code    string // server error code, e.g. "NOT_FOUND"
	Message string
	cause   error
}

func (e *RemoteQueryError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("remote query failed: %s", e.cause.Error())
	}
	return fmt.Sprintf("remote query failed: %s: %s", e.Code, e.Message)
}

func (e *RemoteQueryError) Unwrap() error { return e.cause }
