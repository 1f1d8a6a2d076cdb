/*******************************************************************************
*
* Copyright 2018 SAP SE
*
* Licensed under the Apache License, Version 2.0 (the "License");
* you may not use this file except in compliance with the License.
* You should have received a copy of the License along with this
* program. If not, you may obtain a copy of the License at
*
*     http://www.apache.org/licenses/LICENSE-2.0
*
* Unless required by applicable law or agreed to in writing, software
* distributed under the License is distributed on an "AS IS" BASIS,
* WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
* See the License for the specific language governing permissions and
* limitations under the License.
*
*******************************************************************************/

package okapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind is the closed set of error classes that pipeline primitives can
// raise. See spec.md §7.
type ErrorKind string

// Possible values for ErrorKind.
const (
	// ErrKindUser marks 4xx-class input/validation problems.
	ErrKindUser ErrorKind = "USER"
	// ErrKindNotFound marks an unknown id (module, tenant, deployment).
	ErrKindNotFound ErrorKind = "NOT_FOUND"
	// ErrKindInternal marks store/bus/connection failures.
	ErrKindInternal ErrorKind = "INTERNAL"
	// ErrKindForbidden marks a request that cannot be attributed to any
	// tenant (spec.md §6's status code convention).
	ErrKindForbidden ErrorKind = "FORBIDDEN"
	// ErrKindAny marks unclassified errors.
	ErrKindAny ErrorKind = "ANY"
)

var errorKindStatusCodes = map[ErrorKind]int{
	ErrKindUser:      http.StatusBadRequest,
	ErrKindNotFound:  http.StatusNotFound,
	ErrKindInternal:  http.StatusInternalServerError,
	ErrKindForbidden: http.StatusForbidden,
	ErrKindAny:       http.StatusInternalServerError,
}

// With is a convenience function for constructing a *GatewayError.
func (k ErrorKind) With(msg string, args ...interface{}) *GatewayError {
	var err error
	if msg != "" {
		if len(args) > 0 {
			err = fmt.Errorf(msg, args...)
		} else {
			err = errors.New(msg)
		}
	}
	return &GatewayError{Kind: k, Inner: err}
}

// GatewayError is the error type returned by pipeline primitives. It carries
// a Kind (see ErrorKind) alongside a human-readable message.
type GatewayError struct {
	Kind  ErrorKind
	Inner error
}

// Error implements the builtin error interface.
func (e *GatewayError) Error() string {
	if e.Inner == nil {
		return string(e.Kind)
	}
	return e.Inner.Error()
}

// StatusCode returns the HTTP status code that this error's Kind maps to.
func (e *GatewayError) StatusCode() int {
	code, ok := errorKindStatusCodes[e.Kind]
	if !ok {
		return http.StatusInternalServerError
	}
	return code
}

// WriteAsTextTo reports this error to the client as short plain text. 4xx
// bodies are kept short; 5xx bodies include the underlying message so
// operators can debug from the client-visible response, per spec.md §7.
func (e *GatewayError) WriteAsTextTo(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(e.StatusCode())
	fmt.Fprintln(w, e.Error())
}

// WriteAsJSONTo reports this error to the client as a JSON body, used by
// collaborators that expose a JSON admin surface on top of the core.
func (e *GatewayError) WriteAsJSONTo(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(e.StatusCode())
	buf, _ := json.Marshal(struct {
		Error string `json:"error"`
	}{Error: e.Error()})
	w.Write(append(buf, '\n'))
}

// IsNotFound is a convenience check used by callers that only care whether
// an operation failed because the referenced id does not exist.
func IsNotFound(err error) bool {
	var gerr *GatewayError
	if errors.As(err, &gerr) {
		return gerr.Kind == ErrKindNotFound
	}
	return false
}
