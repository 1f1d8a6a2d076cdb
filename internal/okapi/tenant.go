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
	"sync"
	"sync/atomic"
)

// Tenant is a namespace owning a subset of enabled modules. See spec.md §3.
type Tenant struct {
	ID      string
	Enabled map[string]struct{}
}

// IsEnabled reports whether the given module id is enabled for this tenant.
func (t Tenant) IsEnabled(moduleID string) bool {
	_, ok := t.Enabled[moduleID]
	return ok
}

type tenantSnapshot struct {
	byID map[string]Tenant
}

// TenantRegistry holds the per-tenant set of enabled module ids and answers
// IsEnabled(tenantID, moduleID). See spec.md §2. Like ModuleCatalog, it is
// copy-on-write: reads never lock.
type TenantRegistry struct {
	mu      sync.Mutex
	current atomic.Pointer[tenantSnapshot]
}

// NewTenantRegistry returns an empty registry.
func NewTenantRegistry() *TenantRegistry {
	r := &TenantRegistry{}
	r.current.Store(&tenantSnapshot{byID: map[string]Tenant{}})
	return r
}

// Get returns the tenant record for the given id, or (_, false) if unknown.
func (r *TenantRegistry) Get(tenantID string) (Tenant, bool) {
	snap := r.current.Load()
	t, ok := snap.byID[tenantID]
	return t, ok
}

// IsEnabled answers whether the given module id is enabled for the given
// tenant. An unknown tenant has nothing enabled.
func (r *TenantRegistry) IsEnabled(tenantID, moduleID string) bool {
	t, ok := r.Get(tenantID)
	if !ok {
		return false
	}
	return t.IsEnabled(moduleID)
}

// Enable adds moduleID to tenantID's enabled set, creating the tenant record
// if necessary. The catalog is consulted to enforce the invariant from
// spec.md §3 ("every enabled id refers to an existing module") — this check
// happens only at enable time, never re-validated per request.
func (r *TenantRegistry) Enable(catalog *ModuleCatalog, tenantID, moduleID string) error {
	if _, ok := catalog.Get(moduleID); !ok {
		return ErrKindNotFound.With("module %s does not exist", moduleID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.current.Load()
	next := &tenantSnapshot{byID: copyTenantMap(cur.byID)}
	t, ok := next.byID[tenantID]
	if !ok {
		t = Tenant{ID: tenantID, Enabled: map[string]struct{}{}}
	} else {
		t.Enabled = copyEnabledSet(t.Enabled)
	}
	t.Enabled[moduleID] = struct{}{}
	next.byID[tenantID] = t
	r.current.Store(next)
	return nil
}

// Disable removes moduleID from tenantID's enabled set. A no-op if the
// tenant or the module was not enabled.
func (r *TenantRegistry) Disable(tenantID, moduleID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.current.Load()
	t, ok := cur.byID[tenantID]
	if !ok {
		return nil
	}

	next := &tenantSnapshot{byID: copyTenantMap(cur.byID)}
	t.Enabled = copyEnabledSet(t.Enabled)
	delete(t.Enabled, moduleID)
	next.byID[tenantID] = t
	r.current.Store(next)
	return nil
}

// ReplaceAll atomically swaps the entire registry contents, used by
// ClusterSync when reloading from the store after a newer timestamp is
// observed (spec.md §4.6).
func (r *TenantRegistry) ReplaceAll(tenants []Tenant) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := &tenantSnapshot{byID: make(map[string]Tenant, len(tenants))}
	for _, t := range tenants {
		next.byID[t.ID] = t
	}
	r.current.Store(next)
}

func copyTenantMap(in map[string]Tenant) map[string]Tenant {
	out := make(map[string]Tenant, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyEnabledSet(in map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}
