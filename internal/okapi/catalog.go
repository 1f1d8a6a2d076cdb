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

// CatalogSnapshot is an immutable view of the module catalog at a point in
// time. Readers (in particular the PipelineBuilder) never lock: they just
// grab the current *CatalogSnapshot pointer and iterate it, per spec.md §5
// ("Implementations SHOULD use copy-on-write snapshots so readers never
// lock").
type CatalogSnapshot struct {
	// ids preserves catalog iteration order, which is the tie-break for hops
	// that share a PhaseLevel (spec.md §4.2 step 3 / §8).
	ids  []string
	byID map[string]ModuleDescriptor
}

// Get returns the module with the given id, or (_, false) if unknown.
func (s *CatalogSnapshot) Get(id string) (ModuleDescriptor, bool) {
	if s == nil {
		return ModuleDescriptor{}, false
	}
	m, ok := s.byID[id]
	return m, ok
}

// List returns every module in catalog iteration order.
func (s *CatalogSnapshot) List() []ModuleDescriptor {
	if s == nil {
		return nil
	}
	out := make([]ModuleDescriptor, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.byID[id])
	}
	return out
}

func emptySnapshot() *CatalogSnapshot {
	return &CatalogSnapshot{byID: map[string]ModuleDescriptor{}}
}

// ModuleCatalog is the set of known modules, indexed by id. See spec.md §2.
// All mutating methods are serialized through an internal mutex (mirroring
// "writes... serialized through the store" in spec.md §4.4, applied here to
// catalog mutation); all reads go through a lock-free atomic snapshot.
type ModuleCatalog struct {
	mu      sync.Mutex
	current atomic.Pointer[CatalogSnapshot]
}

// NewModuleCatalog returns an empty catalog.
func NewModuleCatalog() *ModuleCatalog {
	c := &ModuleCatalog{}
	c.current.Store(emptySnapshot())
	return c
}

// Snapshot returns the current immutable view of the catalog. Safe to call
// from any goroutine without locking.
func (c *ModuleCatalog) Snapshot() *CatalogSnapshot {
	return c.current.Load()
}

// Get is a convenience wrapper around Snapshot().Get(id).
func (c *ModuleCatalog) Get(id string) (ModuleDescriptor, bool) {
	return c.Snapshot().Get(id)
}

// List is a convenience wrapper around Snapshot().List().
func (c *ModuleCatalog) List() []ModuleDescriptor {
	return c.Snapshot().List()
}

// Insert adds a new module to the catalog. Fails with ErrKindUser if a
// module with the same id already exists, or if the descriptor does not
// validate (spec.md §3 invariants).
func (c *ModuleCatalog) Insert(m ModuleDescriptor) error {
	if errs := m.Validate(); len(errs) > 0 {
		return ErrKindUser.With(errs.Join("; "))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.current.Load()
	if _, exists := cur.byID[m.ID]; exists {
		return ErrKindUser.With("module %s already exists", m.ID)
	}

	compileRoutingEntries(&m)
	next := &CatalogSnapshot{
		ids:  append(append([]string{}, cur.ids...), m.ID),
		byID: copyModuleMap(cur.byID),
	}
	next.byID[m.ID] = m
	c.current.Store(next)
	return nil
}

// Update replaces an existing module's descriptor in place, preserving its
// position in catalog iteration order. Fails with ErrKindNotFound if the
// module does not exist.
func (c *ModuleCatalog) Update(m ModuleDescriptor) error {
	if errs := m.Validate(); len(errs) > 0 {
		return ErrKindUser.With(errs.Join("; "))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.current.Load()
	if _, exists := cur.byID[m.ID]; !exists {
		return ErrKindNotFound.With("module %s does not exist", m.ID)
	}

	compileRoutingEntries(&m)
	next := &CatalogSnapshot{
		ids:  append([]string{}, cur.ids...),
		byID: copyModuleMap(cur.byID),
	}
	next.byID[m.ID] = m
	c.current.Store(next)
	return nil
}

// Delete removes a module from the catalog. Fails with ErrKindNotFound if
// the module does not exist.
func (c *ModuleCatalog) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.current.Load()
	if _, exists := cur.byID[id]; !exists {
		return ErrKindNotFound.With("module %s does not exist", id)
	}

	ids := make([]string, 0, len(cur.ids)-1)
	for _, existingID := range cur.ids {
		if existingID != id {
			ids = append(ids, existingID)
		}
	}
	next := &CatalogSnapshot{
		ids:  ids,
		byID: copyModuleMap(cur.byID),
	}
	delete(next.byID, id)
	c.current.Store(next)
	return nil
}

// ReplaceAll atomically swaps the entire catalog contents, used by
// ClusterSync when reloading from the store after a newer timestamp is
// observed (spec.md §4.6). Order is taken from the given slice.
func (c *ModuleCatalog) ReplaceAll(modules []ModuleDescriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := &CatalogSnapshot{
		ids:  make([]string, 0, len(modules)),
		byID: make(map[string]ModuleDescriptor, len(modules)),
	}
	for _, m := range modules {
		compileRoutingEntries(&m)
		next.ids = append(next.ids, m.ID)
		next.byID[m.ID] = m
	}
	c.current.Store(next)
}

func copyModuleMap(in map[string]ModuleDescriptor) map[string]ModuleDescriptor {
	out := make(map[string]ModuleDescriptor, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}

// compileRoutingEntries precompiles every PathPattern reachable from this
// descriptor, so that RoutingEntry.Match never recompiles a regex on the
// request path. Called exactly once, right before a descriptor becomes
// reachable from a published snapshot.
func compileRoutingEntries(m *ModuleDescriptor) {
	for i := range m.RoutingEntries {
		m.RoutingEntries[i].Compile()
	}
	for i := range m.Filters {
		m.Filters[i].Compile()
	}
	for i := range m.Provides {
		for j := range m.Provides[i].RoutingEntries {
			m.Provides[i].RoutingEntries[j].Compile()
		}
	}
}
