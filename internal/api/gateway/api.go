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

// Package gatewayv1 implements the okapi gateway's single catch-all HTTP
// entrypoint: it builds a pipeline for the incoming request, authenticates
// it, and proxies it through every matched module.
package gatewayv1

import (
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sapcc/go-bits/logg"

	"github.com/sapcc/okapi/internal/okapi"
)

// API contains the state needed to serve every incoming request: the
// catalog/tenant snapshots to build a pipeline from, and the collaborators
// that turn a built pipeline into an actual response. See spec.md §4.1.
type API struct {
	catalog      *okapi.ModuleCatalog
	tenants      *okapi.TenantRegistry
	builder      *okapi.PipelineBuilder
	planner      *okapi.AuthHeaderPlanner
	proxy        *okapi.ProxyEngine
	maxBodyBytes int64
}

// NewAPI constructs a new API instance. maxBodySize bounds how much of the
// client's request body okapi buffers into memory at once (spec.md's
// Non-goals exclude a streaming-body redesign; see DESIGN.md).
func NewAPI(catalog *okapi.ModuleCatalog, tenants *okapi.TenantRegistry, discovery *okapi.DiscoveryManager, maxBodySize int64) *API {
	return &API{
		catalog:      catalog,
		tenants:      tenants,
		builder:      okapi.NewPipelineBuilder(),
		planner:      okapi.NewAuthHeaderPlanner(),
		proxy:        okapi.NewProxyEngine(discovery),
		maxBodyBytes: maxBodySize,
	}
}

// AddTo implements the api.API interface (httpapi.API). A single
// catch-all route services every module's path: the pipeline itself decides
// what, if anything, handles a given method/path pair.
func (a *API) AddTo(r *mux.Router) {
	r.PathPrefix("/").HandlerFunc(a.handleRequest)
}

func (a *API) handleRequest(w http.ResponseWriter, r *http.Request) {
	clientBody, err := io.ReadAll(io.LimitReader(r.Body, a.maxBodyBytes+1))
	if err != nil {
		okapi.ErrKindUser.With("could not read request body: %s", err.Error()).WriteAsTextTo(w)
		return
	}
	defer r.Body.Close()
	if int64(len(clientBody)) > a.maxBodyBytes {
		okapi.ErrKindUser.With("request body exceeds the %d byte limit", a.maxBodyBytes).WriteAsTextTo(w)
		return
	}

	header := r.Header.Clone()

	clientToken, gErr := a.planner.SanitizeRequest(header)
	if gErr != nil {
		gErr.WriteAsTextTo(w)
		return
	}

	tenantID, gErr := a.planner.ResolveTenant(header, clientToken)
	if gErr != nil {
		gErr.WriteAsTextTo(w)
		return
	}

	tenant, ok := a.tenants.Get(tenantID)
	if !ok {
		okapi.ErrKindForbidden.With("unknown tenant %s", tenantID).WriteAsTextTo(w)
		return
	}

	hops, err := a.builder.Build(a.catalog.Snapshot(), tenant, r.Method, r.URL.RequestURI())
	if err != nil {
		writeErr(w, err)
		return
	}

	a.planner.Plan(hops, header, clientToken)

	status, respHeader, respBody, err := a.proxy.Execute(r.Context(), hops, r.Method, clientBody, header)
	if err != nil {
		writeErr(w, err)
		return
	}

	for name, values := range respHeader {
		w.Header()[name] = values
	}
	w.WriteHeader(status)
	if _, err := w.Write(respBody); err != nil {
		logg.Error("while writing response body to client: %s", err.Error())
	}
}

func writeErr(w http.ResponseWriter, err error) {
	var gErr *okapi.GatewayError
	if errors.As(err, &gErr) {
		gErr.WriteAsTextTo(w)
		return
	}
	okapi.ErrKindAny.With(err.Error()).WriteAsTextTo(w)
}
