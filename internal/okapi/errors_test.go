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
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sapcc/go-bits/assert"
)

func TestGatewayErrorStatusCode(t *testing.T) {
	testCases := []struct {
		Kind     ErrorKind
		Expected int
	}{
		{ErrKindUser, http.StatusBadRequest},
		{ErrKindNotFound, http.StatusNotFound},
		{ErrKindInternal, http.StatusInternalServerError},
		{ErrKindForbidden, http.StatusForbidden},
		{ErrKindAny, http.StatusInternalServerError},
		{ErrorKind("SOMETHING_UNKNOWN"), http.StatusInternalServerError},
	}
	for _, tc := range testCases {
		err := tc.Kind.With("boom")
		assert.DeepEqual(t, string(tc.Kind)+" status code", err.StatusCode(), tc.Expected)
	}
}

func TestGatewayErrorMessage(t *testing.T) {
	err := ErrKindUser.With("module %s not found", "mod-a")
	assert.DeepEqual(t, "formatted message", err.Error(), "module mod-a not found")

	bare := ErrKindInternal.With("")
	assert.DeepEqual(t, "blank message falls back to kind", bare.Error(), "INTERNAL")
}

func TestGatewayErrorWriteAsTextTo(t *testing.T) {
	err := ErrKindNotFound.With("module mod-a not found")
	rec := httptest.NewRecorder()
	err.WriteAsTextTo(rec)

	assert.DeepEqual(t, "status code", rec.Code, http.StatusNotFound)
	assert.DeepEqual(t, "content type", rec.Header().Get("Content-Type"), "text/plain; charset=utf-8")
	assert.DeepEqual(t, "body", rec.Body.String(), "module mod-a not found\n")
}

func TestGatewayErrorWriteAsJSONTo(t *testing.T) {
	err := ErrKindUser.With("bad request")
	rec := httptest.NewRecorder()
	err.WriteAsJSONTo(rec)

	assert.DeepEqual(t, "status code", rec.Code, http.StatusBadRequest)
	assert.DeepEqual(t, "content type", rec.Header().Get("Content-Type"), "application/json; charset=utf-8")
	assert.DeepEqual(t, "body", rec.Body.String(), `{"error":"bad request"}`+"\n")
}

func TestIsNotFound(t *testing.T) {
	assert.DeepEqual(t, "not-found error matches", IsNotFound(ErrKindNotFound.With("x")), true)
	assert.DeepEqual(t, "user error does not match", IsNotFound(ErrKindUser.With("x")), false)
	assert.DeepEqual(t, "non-gateway error does not match", IsNotFound(errors.New("plain error")), false)
	assert.DeepEqual(t, "nil error does not match", IsNotFound(nil), false)
}
