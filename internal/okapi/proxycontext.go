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
	"bytes"
	"io"
	"net/http"
	"strings"
)

// hopResponseHeadersToStrip are never copied from an upstream hop's response
// into the accumulated response: either because the next hop (or the final
// client response) computes its own, or because forwarding them verbatim
// would desynchronize the body the gateway is about to send. See spec.md
// §4.5.
var hopResponseHeadersToStrip = map[string]bool{
	"Content-Length":    true,
	"Transfer-Encoding": true,
	"Connection":        true,
}

// proxyState is the mutable state threaded through a pipeline's hops: the
// body flowing from one hop to the next, the response headers accumulated
// so far, the trace log, and whether a hop has asked to short-circuit the
// remaining pipeline. It exists so ProxyEngine.Execute's hop loop has
// somewhere to keep state without a dozen named return values.
type proxyState struct {
	body          []byte
	header        http.Header
	forwardHeader http.Header
	trace         []TraceEntry
	stopped       bool
	finalStatus   int
	clientHeader  http.Header
}

func newProxyState(clientBody []byte, clientHeader http.Header) *proxyState {
	return &proxyState{
		body:          clientBody,
		header:        http.Header{},
		forwardHeader: http.Header{},
		clientHeader:  clientHeader,
	}
}

// bodyReader returns a fresh reader over the current body, safe to hand to
// http.NewRequest: each hop gets its own reader over the same bytes.
func (s *proxyState) bodyReader() io.Reader {
	if len(s.body) == 0 {
		return nil
	}
	return bytes.NewReader(s.body)
}

// mergeResponseHeaders folds an upstream response's headers into the
// accumulated response headers, skipping the framing headers that must not
// survive a hop boundary. Later hops win on conflict, mirroring the
// last-hop-wins behavior of the headers actually sent to the client.
func (s *proxyState) mergeResponseHeaders(h http.Header) {
	for name, values := range h {
		if hopResponseHeadersToStrip[name] {
			continue
		}
		s.header[name] = values
	}
}

// mergeForwardHeaders accumulates an upstream response's X-*/x-* headers so
// callHop can replay them onto every subsequent hop's request, per spec.md
// §4.5 and §6: this is how an auth module returns a token and how a module
// injects a field for a later module to consume. X-Okapi-Module-Tokens is
// excluded because it is consumed specially via ApplyModuleTokens rather
// than forwarded verbatim.
func (s *proxyState) mergeForwardHeaders(h http.Header) {
	for name, values := range h {
		if !strings.HasPrefix(name, "X-") && !strings.HasPrefix(name, "x-") {
			continue
		}
		if http.CanonicalHeaderKey(name) == http.CanonicalHeaderKey(HeaderModuleTokens) {
			continue
		}
		s.forwardHeader[name] = values
	}
}

// recordTrace appends one trace entry, building up the X-Okapi-Trace log in
// hop execution order.
func (s *proxyState) recordTrace(entry TraceEntry) {
	s.trace = append(s.trace, entry)
}

// traceHeaderValues renders the accumulated trace as the one-value-per-hop
// form used for the (multi-valued) X-Okapi-Trace response header.
func (s *proxyState) traceHeaderValues() []string {
	values := make([]string, len(s.trace))
	for i, t := range s.trace {
		values[i] = t.String()
	}
	return values
}
