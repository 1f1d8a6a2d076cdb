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
	"testing"

	"github.com/sapcc/go-bits/assert"
)

func TestRoutingEntryMatch(t *testing.T) {
	testCases := []struct {
		Pattern string
		Methods []string
		URI     string
		Method  string
		Matches bool
	}{
		{"/foo/*", nil, "/foo/bar", "GET", true},
		{"/foo/*", nil, "/foo/bar/baz", "GET", false}, // "*" does not cross "/"
		{"/foo/{id}", nil, "/foo/bar", "GET", true},
		{"/foo/{id}", nil, "/foo/bar/baz", "GET", false},
		{"/foo/{id}/bars/*", nil, "/foo/1/bars/2", "GET", true},
		{"/foo", nil, "/foo?x=1", "GET", true}, // query string is stripped before matching
		{"/foo", []string{"GET", "POST"}, "/foo", "POST", true},
		{"/foo", []string{"GET", "POST"}, "/foo", "DELETE", false},
		{"/foo", nil, "/foobar", "GET", false}, // anchored: no prefix matching
	}

	for _, tc := range testCases {
		entry := RoutingEntry{PathPattern: tc.Pattern, Methods: tc.Methods}
		desc := tc.Method + " " + tc.URI + " against " + tc.Pattern
		assert.DeepEqual(t, desc, entry.Match(tc.URI, tc.Method), tc.Matches)
	}
}

func TestRoutingEntryMatchWithoutExplicitCompile(t *testing.T) {
	// An entry that was never registered in a ModuleCatalog (e.g. because it
	// is being unit-tested directly) still matches correctly: Match falls
	// back to compiling on demand.
	entry := RoutingEntry{PathPattern: "/foo/{id}"}
	assert.DeepEqual(t, "uncompiled match", entry.Match("/foo/42", "GET"), true)
}

func TestRoutingEntryIsNonTrivial(t *testing.T) {
	bare := RoutingEntry{Path: "/"}
	named := RoutingEntry{Path: "/foo"}
	assert.DeepEqual(t, "bare slash", bare.IsNonTrivial(), false)
	assert.DeepEqual(t, "named path", named.IsNonTrivial(), true)
}

func TestRoutingEntryEffectiveType(t *testing.T) {
	assert.DeepEqual(t, "default type", (&RoutingEntry{}).EffectiveType(), ProxyTypeRequestResponse)
	assert.DeepEqual(t, "explicit type", (&RoutingEntry{Type: ProxyTypeHeaders}).EffectiveType(), ProxyTypeHeaders)
}
