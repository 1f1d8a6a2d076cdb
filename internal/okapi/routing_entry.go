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
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ProxyType is the closed set of ways a RoutingEntry can participate in a
// pipeline hop. See spec.md §3 and §4.5.
type ProxyType string

// Possible values for ProxyType. ProxyTypeRequestResponse is the default
// when a RoutingEntry's Type field is left blank.
const (
	ProxyTypeRequestResponse ProxyType = "REQUEST_RESPONSE"
	ProxyTypeRequestOnly     ProxyType = "REQUEST_ONLY"
	ProxyTypeHeaders         ProxyType = "HEADERS"
	ProxyTypeRedirect        ProxyType = "REDIRECT"
)

// RoutingEntry is a single rule selecting requests by path/method and
// describing how a module participates in the pipeline. See spec.md §3.
type RoutingEntry struct {
	Path        string   `json:"path,omitempty"`
	PathPattern string   `json:"pathPattern,omitempty"`
	Methods     []string `json:"methods,omitempty"`

	// PhaseLevel is a lexicographically-ordered sort key: earlier phases run
	// closer to auth, later phases run closer to the final handler.
	PhaseLevel string `json:"phase,omitempty"`

	Type         ProxyType `json:"type,omitempty"`
	RedirectPath string    `json:"redirectPath,omitempty"`

	PermissionsRequired []string `json:"permissionsRequired,omitempty"`
	PermissionsDesired  []string `json:"permissionsDesired,omitempty"`
	ModulePermissions   []string `json:"modulePermissions,omitempty"`

	// compiled is populated once by Compile() when a descriptor is inserted
	// into a ModuleCatalog snapshot (a single-writer step). Every subsequent
	// read happens against an immutable snapshot, so concurrent Match calls
	// from different request goroutines never race on this field.
	compiled *regexp.Regexp
}

// Compile precompiles this entry's PathPattern (if any) so that Match does
// not need to recompile a regular expression on every request. The
// ModuleCatalog calls this exactly once per entry, before the entry becomes
// reachable from a published snapshot.
func (e *RoutingEntry) Compile() {
	if e.PathPattern != "" {
		e.compiled = pathPatternToRegexp(e.PathPattern)
	}
}

// EffectiveType returns e.Type, defaulting to ProxyTypeRequestResponse.
func (e *RoutingEntry) EffectiveType() ProxyType {
	if e.Type == "" {
		return ProxyTypeRequestResponse
	}
	return e.Type
}

// pathPatternToRegexp converts a glob-style pathPattern (spec.md §4.1: "*"
// matches any non-"/" run, "{name}" matches a single path segment) into a
// fully-anchored regular expression. The result is cached on the entry
// itself since the same descriptor is matched against many requests out of
// a long-lived catalog snapshot.
func pathPatternToRegexp(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("^")
	i := 0
	for i < len(pattern) {
		c := pattern[i]
		switch c {
		case '*':
			b.WriteString("[^/]*")
			i++
		case '{':
			end := strings.IndexByte(pattern[i:], '}')
			if end < 0 {
				// malformed pattern: treat the rest as literal
				b.WriteString(regexp.QuoteMeta(pattern[i:]))
				i = len(pattern)
				continue
			}
			b.WriteString("[^/]+")
			i += end + 1
		default:
			// accumulate a run of literal bytes up to the next special char
			start := i
			for i < len(pattern) && pattern[i] != '*' && pattern[i] != '{' {
				i++
			}
			b.WriteString(regexp.QuoteMeta(pattern[start:i]))
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}

// Match reports whether this entry selects the given method and URI, per
// spec.md §4.1: the URI's query/fragment is stripped first; PathPattern (if
// set) is matched as an anchored glob-to-regex; otherwise the entry matches
// when the URI starts with e.Path. The method filter matches everything
// when Methods is empty or contains "*".
func (e *RoutingEntry) Match(rawURI, method string) bool {
	if !e.matchMethod(method) {
		return false
	}
	return e.matchPath(stripQueryAndFragment(rawURI))
}

func (e *RoutingEntry) matchMethod(method string) bool {
	if len(e.Methods) == 0 {
		return true
	}
	for _, m := range e.Methods {
		if m == "*" || strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

func (e *RoutingEntry) matchPath(uri string) bool {
	if e.PathPattern != "" {
		compiled := e.compiled
		if compiled == nil {
			// not (yet) registered in a catalog snapshot - compile on demand,
			// e.g. for a RoutingEntry under direct unit test.
			compiled = pathPatternToRegexp(e.PathPattern)
		}
		return compiled.MatchString(uri)
	}
	return strings.HasPrefix(uri, e.Path)
}

func stripQueryAndFragment(rawURI string) string {
	if u, err := url.Parse(rawURI); err == nil {
		return u.Path
	}
	// malformed URI: best effort, strip naively
	if idx := strings.IndexAny(rawURI, "?#"); idx >= 0 {
		return rawURI[:idx]
	}
	return rawURI
}

// String renders a RoutingEntry for log/trace messages.
func (e *RoutingEntry) String() string {
	selector := e.Path
	if e.PathPattern != "" {
		selector = e.PathPattern
	}
	return fmt.Sprintf("%s %s (phase %s)", e.EffectiveType(), selector, e.PhaseLevel)
}

// IsNonTrivial reports whether this entry's selector is longer than "/",
// used to enforce the invariant that a pipeline can't consist purely of
// filters/auth (spec.md §4.2 step 4 / §8 invariant 3).
func (e *RoutingEntry) IsNonTrivial() bool {
	selector := e.Path
	if e.PathPattern != "" {
		selector = e.PathPattern
	}
	return len(selector) > 1
}
