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
	"context"
	"io"
	"net/http"
	"time"

	"github.com/sapcc/go-bits/logg"
)

// clientForwardHeaders are copied from the original client request onto
// every outbound hop request, mirroring keppel's reverseProxyHeaders list
// (internal/keppel/reverse_proxy.go) generalized to the gateway's own
// header set.
var clientForwardHeaders = []string{
	"Accept",
	"Accept-Encoding",
	"Content-Type",
	"User-Agent",
}

// ProxyEngine dispatches an already-built, already-resolved pipeline: it
// performs the actual HTTP calls to each module instance, in order, wiring
// one hop's output into the next hop's input according to its proxy type.
// See spec.md §4.5.
type ProxyEngine struct {
	Discovery *DiscoveryManager
	Client    *http.Client
}

// NewProxyEngine returns a ProxyEngine that resolves upstream instances via
// discovery and issues requests with a client that does not follow
// redirects itself (the gateway's own REDIRECT routing entries already
// model 3xx-like hops; an upstream's raw 3xx must reach the client
// verbatim), mirroring keppel's reverse-proxy client setup.
func NewProxyEngine(discovery *DiscoveryManager) *ProxyEngine {
	client := *http.DefaultClient
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &ProxyEngine{Discovery: discovery, Client: &client}
}

// Execute runs every hop of the pipeline against clientBody/clientHeader in
// order, and returns the final status code, the accumulated response
// headers (including X-Okapi-Trace), and the final response body. A hop
// that sets X-Okapi-Stop in its response ends the pipeline early, per
// spec.md §4.5's early-termination rule. An upstream that cannot be reached
// at all fails the whole request with ErrKindInternal (mapped to 500).
func (p *ProxyEngine) Execute(ctx context.Context, hops []Hop, method string, clientBody []byte, clientHeader http.Header) (status int, header http.Header, body []byte, err error) {
	state := newProxyState(clientBody, clientHeader)
	finalStatus := http.StatusOK

	for i := range hops {
		hop := &hops[i]

		if hop.Entry.EffectiveType() == ProxyTypeRedirect {
			// a redirect hop only shows up in the trace when the pipeline ends on it
			if i == len(hops)-1 {
				state.recordTrace(TraceEntry{
					Method:     method,
					ModuleName: traceModuleName(hop.Module),
					URL:        hop.URL + hop.URI,
					StatusCode: RedirectTraceStatus,
				})
			}
			continue
		}

		deployments := p.Discovery.Resolve(hop.Module.ID)
		if len(deployments) == 0 {
			return 0, nil, nil, ErrKindNotFound.With("No running module instance found for %s", hop.Module.ID)
		}
		hop.URL = deployments[0].URL

		sendBody := hop.Entry.EffectiveType() != ProxyTypeHeaders

		start := time.Now()
		respStatus, respHeader, respBody, callErr := p.callHop(ctx, hop, method, state, sendBody)
		duration := time.Since(start)

		if callErr != nil {
			logg.Error("while calling module %s at %s: %s", hop.Module.ID, hop.URL, callErr.Error())
			return 0, nil, nil, ErrKindInternal.With("module %s did not respond: %s", hop.Module.ID, callErr.Error())
		}

		state.recordTrace(TraceEntry{
			Method:     method,
			ModuleName: traceModuleName(hop.Module),
			URL:        hop.URL + hop.URI,
			StatusCode: respStatus,
			Duration:   duration,
		})
		finalStatus = respStatus

		switch hop.Entry.EffectiveType() {
		case ProxyTypeRequestResponse:
			state.mergeResponseHeaders(respHeader)
			state.mergeForwardHeaders(respHeader)
			state.body = respBody
		case ProxyTypeHeaders:
			state.mergeResponseHeaders(respHeader)
			state.mergeForwardHeaders(respHeader)
			// body is left untouched: a HEADERS hop never contributes content.
		case ProxyTypeRequestOnly:
			state.mergeResponseHeaders(respHeader)
			// body is left untouched: downstream hops see what came in, not
			// what this hop answered with.
		}

		if moduleTokens := respHeader.Get(HeaderModuleTokens); moduleTokens != "" {
			NewAuthHeaderPlanner().ApplyModuleTokens(hops[i+1:], moduleTokens)
		}

		if respHeader.Get(HeaderStop) != "" {
			state.stopped = true
			break
		}
	}

	state.header.Set(HeaderTrace, "")
	delete(state.header, HeaderTrace)
	for _, v := range state.traceHeaderValues() {
		state.header.Add(HeaderTrace, v)
	}

	return finalStatus, state.header, state.body, nil
}

// callHop issues a single HTTP request for one hop and returns the
// upstream's status, headers and fully-read body. REQUEST_ONLY hops still
// receive the current body: only their effect on downstream state differs,
// per spec.md §4.5's per-type table. A HEADERS hop is dispatched with
// sendBody false, so it reaches the upstream with no body and no
// Content-Length.
func (p *ProxyEngine) callHop(ctx context.Context, hop *Hop, method string, state *proxyState, sendBody bool) (int, http.Header, []byte, error) {
	var bodyReader io.Reader
	if sendBody {
		bodyReader = state.bodyReader()
	}
	req, err := http.NewRequestWithContext(ctx, method, hop.URL+hop.URI, bodyReader)
	if err != nil {
		return 0, nil, nil, err
	}

	for _, name := range clientForwardHeaders {
		if v := state.clientHeader.Get(name); v != "" {
			req.Header.Set(name, v)
		}
	}
	req.Header.Set(HeaderURL, hop.URL)
	if hop.AuthToken != "" {
		req.Header.Set(HeaderToken, hop.AuthToken)
		req.Header.Set("Authorization", "Bearer "+hop.AuthToken)
	}
	if v := state.clientHeader.Get(HeaderTenant); v != "" {
		req.Header.Set(HeaderTenant, v)
	}
	if v := state.clientHeader.Get(HeaderPermissionsRequired); v != "" {
		req.Header.Set(HeaderPermissionsRequired, v)
	}
	if v := state.clientHeader.Get(HeaderPermissionsDesired); v != "" {
		req.Header.Set(HeaderPermissionsDesired, v)
	}
	if v := state.clientHeader.Get(HeaderModulePermissions); v != "" {
		req.Header.Set(HeaderModulePermissions, v)
	}
	if v := state.clientHeader.Get(HeaderExtraPermissions); v != "" {
		req.Header.Set(HeaderExtraPermissions, v)
	}
	for name, values := range state.forwardHeader {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, err
	}
	return resp.StatusCode, resp.Header, respBody, nil
}
