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
	"time"
)

// RedirectTraceStatus is the sentinel status code recorded in the trace for
// a REDIRECT hop that ends the pipeline. A REDIRECT hop never dispatches an
// upstream call; one that is followed by its target's hops adds no trace
// entry, since those hops carry the real status. See spec.md §9 (this
// value, 999, is preserved verbatim from the system this gateway is modeled
// on rather than redesigned, since trace consumers already key on it).
const RedirectTraceStatus = 999

// TraceEntry is one line of the X-Okapi-Trace response header: what module
// handled the hop, at what URL, with what result, and how long it took.
type TraceEntry struct {
	Method     string
	ModuleName string
	URL        string
	StatusCode int
	Duration   time.Duration
}

// String renders a trace entry as "<METHOD> <module> <url> : <status>
// <duration>us", matching the wire format in spec.md §6.
func (t TraceEntry) String() string {
	strippedURL := t.URL
	if u, err := url.Parse(t.URL); err == nil {
		u.RawQuery = ""
		strippedURL = u.String()
	}
	return fmt.Sprintf("%s %s %s : %d %dus", t.Method, t.ModuleName, strippedURL, t.StatusCode, t.Duration.Microseconds())
}

// traceModuleName returns the module's Name if set, falling back to its ID —
// mirroring how the rest of the gateway treats Name as a display-only,
// possibly-absent field.
func traceModuleName(m ModuleDescriptor) string {
	if m.Name != "" {
		return m.Name
	}
	return m.ID
}
