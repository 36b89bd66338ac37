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

// Package admin implements the administration API of a FieldBase
// deployment: form schemas, roles, grants and user accounts. Every call is
// an independent request/response with server-side validation; the package
// keeps no client-side state between calls and performs no retries, so the
// caller owns any retry or partial-failure policy. These operations are not
// idempotent in general.
package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/iterator"
	"github.com/stockparfait/logging"
)

// RemoteWriteError is a write-path failure: transport, authorization or
// server-side validation error from an administration call. Code and
// Message preserve the server's diagnostic payload when one was received.
type RemoteWriteError struct {
	Op      string // the failed call, e.g. "create form"
	Status  int    // HTTP status, 0 for transport failures
	Code    string
	Message string
	cause   error
}

func (e *RemoteWriteError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s failed: %s", e.Op, e.cause.Error())
	}
	return fmt.Sprintf("%s failed: %d %s: %s", e.Op, e.Status, e.Code, e.Message)
}

func (e *RemoteWriteError) Unwrap() error { return e.cause }

// Field kinds understood by the server.
const (
	KindText         = "text"
	KindQuantity     = "quantity"
	KindDate         = "date"
	KindSingleSelect = "single_select"
	KindReference    = "reference"
)

// FormField is one column of a form schema. ReferenceForm is required for
// reference fields and must name the code of the referenced form.
type FormField struct {
	Code          string   `json:"code" toml:"code"`
	Label         string   `json:"label" toml:"label"`
	Kind          string   `json:"kind" toml:"kind"`
	Required      bool     `json:"required,omitempty" toml:"required"`
	Choices       []string `json:"choices,omitempty" toml:"choices"`
	ReferenceForm string   `json:"referenceForm,omitempty" toml:"reference_form"`
}

// FormSchema describes one form: an ordered list of fields.
type FormSchema struct {
	ID     string      `json:"id" toml:"id"`
	Label  string      `json:"label" toml:"label"`
	Fields []FormField `json:"fields" toml:"fields"`
}

// Role is a named set of permissions a grant can assign.
type Role struct {
	ID          string   `json:"id" toml:"id"`
	Label       string   `json:"label" toml:"label"`
	Permissions []string `json:"permissions" toml:"permissions"`
}

// Grant assigns a role on one resource (a form or a folder of forms) with
// the given operation set, e.g. ["view", "edit_record"].
type Grant struct {
	Role       string   `json:"role" toml:"role"`
	Resource   string   `json:"resource" toml:"resource"`
	Operations []string `json:"operations" toml:"operations"`
}

// User is an account to invite to the deployment.
type User struct {
	Email  string `json:"email" toml:"email"`
	Name   string `json:"name" toml:"name"`
	Locale string `json:"locale,omitempty" toml:"locale"`
	Role   string `json:"role,omitempty" toml:"role"`
}

// Client for the administration API of one deployment.
type Client struct {
	baseURL string
	token   string
	http    *retryablehttp.Client
}

// NewClient creates an administration client for the deployment at baseURL
// with a pre-obtained API token. Retries are disabled: administration
// calls are not idempotent, so the caller decides what is safe to retry.
func NewClient(baseURL, token string) *Client {
	h := retryablehttp.NewClient()
	h.RetryMax = 0
	h.Logger = nil
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		http:    h,
	}
}

// errorPayload is the diagnostic payload of a failed API call.
type errorPayload struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// do performs one administration call. A nil body sends no payload.
func (c *Client) do(ctx context.Context, op, method, path string, body interface{}) error {
	var raw io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return &RemoteWriteError{Op: op, cause: errors.Annotate(
				err, "failed to encode request body")}
		}
		raw = bytes.NewReader(encoded)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, raw)
	if err != nil {
		return &RemoteWriteError{Op: op, cause: errors.Annotate(
			err, "failed to create request")}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return &RemoteWriteError{Op: op, cause: errors.Annotate(
			err, "failed to call '%s'", path)}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var payload errorPayload
		// A missing or malformed payload still yields a useful error.
		json.NewDecoder(resp.Body).Decode(&payload)
		return &RemoteWriteError{
			Op:      op,
			Status:  resp.StatusCode,
			Code:    payload.Error.Code,
			Message: payload.Error.Message,
		}
	}
	logging.Debugf(ctx, "FieldBase admin: %s %s succeeded", method, path)
	return nil
}

// CreateForm creates a new form schema.
func (c *Client) CreateForm(ctx context.Context, form FormSchema) error {
	return c.do(ctx, "create form", http.MethodPost, "/forms", &form)
}

// UpdateForm replaces the schema of an existing form.
func (c *Client) UpdateForm(ctx context.Context, form FormSchema) error {
	return c.do(ctx, "update form", http.MethodPut, "/forms/"+form.ID, &form)
}

// DeleteForm deletes a form and all of its records.
func (c *Client) DeleteForm(ctx context.Context, formID string) error {
	return c.do(ctx, "delete form", http.MethodDelete, "/forms/"+formID, nil)
}

// CreateRole creates a new role.
func (c *Client) CreateRole(ctx context.Context, role Role) error {
	return c.do(ctx, "create role", http.MethodPost, "/roles", &role)
}

// UpdateRole replaces an existing role.
func (c *Client) UpdateRole(ctx context.Context, role Role) error {
	return c.do(ctx, "update role", http.MethodPut, "/roles/"+role.ID, &role)
}

// AddGrant assigns a role on a resource.
func (c *Client) AddGrant(ctx context.Context, grant Grant) error {
	return c.do(ctx, "add grant", http.MethodPost,
		"/roles/"+grant.Role+"/grants", &grant)
}

// AddUser invites a single user to the deployment.
func (c *Client) AddUser(ctx context.Context, user User) error {
	return c.do(ctx, "add user", http.MethodPost, "/users", &user)
}

// UserResult is the outcome of one call in a bulk user invitation.
type UserResult struct {
	User User
	Err  error
}

// AddUsers invites the users one by one with independent sequential calls,
// and reports the per-user outcomes without aborting on failure. The
// caller decides which failed invitations to retry.
func (c *Client) AddUsers(ctx context.Context, users []User) []UserResult {
	f := func(u User) UserResult {
		err := c.AddUser(ctx, u)
		if err != nil {
			logging.Warningf(ctx, "failed to add user %s: %s", u.Email, err.Error())
		}
		return UserResult{User: u, Err: err}
	}
	pm := iterator.ParallelMap(ctx, 1, iterator.FromSlice(users), f)
	defer pm.Close()

	return iterator.Reduce[UserResult, []UserResult](pm, []UserResult{},
		func(r UserResult, rs []UserResult) []UserResult {
			return append(rs, r)
		})
}
