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
	"net/url"
	"sort"
	"strings"
)

// Hop is a transient pipeline element ("ModuleInstance" in spec.md §3): the
// selected module descriptor, the routing entry that matched, the rewritten
// URI (after any redirect), a resolved upstream URL (filled in by the
// caller after discovery resolution), and a per-hop auth token.
type Hop struct {
	Module    ModuleDescriptor
	Entry     RoutingEntry
	URI       string
	URL       string
	AuthToken string
}

// PipelineBuilder composes an ordered list of module hops for a (tenant,
// request) pair. It is a pure function of (catalog, tenant, request): it
// never opens sockets, per spec.md §4.2.
type PipelineBuilder struct{}

// NewPipelineBuilder returns a PipelineBuilder. It carries no state; the
// type exists so the builder can gain fields (e.g. metrics) without
// changing call sites.
func NewPipelineBuilder() *PipelineBuilder {
	return &PipelineBuilder{}
}

// Build matches every proxy routing entry of every module enabled for the
// tenant against (method, uri), expands redirects, sorts by phase level, and
// rejects pipelines that consist purely of filters/auth. See spec.md §4.2
// and the invariants in spec.md §8.
func (b *PipelineBuilder) Build(catalog *CatalogSnapshot, tenant Tenant, method, uri string) ([]Hop, error) {
	var hops []Hop

	for _, m := range catalog.List() {
		if !tenant.IsEnabled(m.ID) {
			continue
		}
		for _, e := range m.ProxyRoutingEntries() {
			entry := e
			if !entry.Match(uri, method) {
				continue
			}
			expanded, err := expandRedirects(catalog, tenant, m, entry, uri, method, nil)
			if err != nil {
				return nil, err
			}
			hops = append(hops, expanded...)
		}
	}

	sort.SliceStable(hops, func(i, j int) bool {
		return hops[i].Entry.PhaseLevel < hops[j].Entry.PhaseLevel
	})

	if !anyNonTrivial(hops) {
		return nil, ErrKindNotFound.With("no module found to handle %s %s", method, uri)
	}

	return hops, nil
}

func anyNonTrivial(hops []Hop) bool {
	for i := range hops {
		if hops[i].Entry.IsNonTrivial() {
			return true
		}
	}
	return false
}

// expandRedirects appends a hop for (module, entry, uri). If the entry's
// proxy type is REDIRECT, it then searches all enabled modules for a proxy
// entry matching entry.RedirectPath under the original request method; for
// each target found it recurses with the rewritten URI and an extended
// trail. Fails if no target exists, or if RedirectPath already appears in
// the trail (a redirect cycle). See spec.md §4.2 step 2 and §9.
func expandRedirects(catalog *CatalogSnapshot, tenant Tenant, module ModuleDescriptor, entry RoutingEntry, uri, method string, trail []string) ([]Hop, error) {
	hop := Hop{Module: module, Entry: entry, URI: uri}

	if entry.EffectiveType() != ProxyTypeRedirect {
		return []Hop{hop}, nil
	}

	for _, seen := range trail {
		if seen == entry.RedirectPath {
			return nil, ErrKindInternal.With(
				"Redirect loop: %s -> %s", strings.Join(trail, " -> "), entry.RedirectPath)
		}
	}
	nextTrail := append(append([]string{}, trail...), entry.RedirectPath)

	hops := []Hop{hop}
	found := false
	for _, m2 := range catalog.List() {
		if !tenant.IsEnabled(m2.ID) {
			continue
		}
		for _, e := range m2.ProxyRoutingEntries() {
			target := e
			if !target.Match(entry.RedirectPath, method) {
				continue
			}
			found = true
			newURI := rewriteURI(uri, entry.RedirectPath)
			expanded, err := expandRedirects(catalog, tenant, m2, target, newURI, method, nextTrail)
			if err != nil {
				return nil, err
			}
			hops = append(hops, expanded...)
		}
	}

	if !found {
		return nil, ErrKindUser.With("no module registered to handle redirect target %s", entry.RedirectPath)
	}
	return hops, nil
}

// rewriteURI replaces the path of original with redirectPath, preserving
// the original's query string (spec.md §4.2: "uri := rewrite(uri,
// entry.redirectPath)").
func rewriteURI(original, redirectPath string) string {
	u, err := url.Parse(original)
	if err != nil || u.RawQuery == "" {
		return redirectPath
	}
	return redirectPath + "?" + u.RawQuery
}
