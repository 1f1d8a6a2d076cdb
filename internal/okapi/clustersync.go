/*******************************************************************************
*
* Copyright 2020 SAP SE
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
	"sync"

	"github.com/sapcc/go-bits/logg"
)

// ClusterSync keeps this node's ModuleCatalog and TenantRegistry in lockstep
// with every other node's, by means of a monotonic logical clock per
// collection (stored in Store) and a best-effort gossip Bus that tells
// peers to go check that clock. See spec.md §4.6. Bus delivery is never
// assumed reliable: ResyncJob independently polls the same clocks on a
// timer, so a dropped message only costs latency, never consistency.
type ClusterSync struct {
	store   Store
	bus     Bus
	catalog *ModuleCatalog
	tenants *TenantRegistry
	nodeID  string

	mu            sync.Mutex
	lastModulesTs int64
	lastTenantsTs int64
}

// NewClusterSync wires a ClusterSync to the given store, bus and in-memory
// collections. Call Start to perform the initial load and begin listening.
func NewClusterSync(store Store, bus Bus, catalog *ModuleCatalog, tenants *TenantRegistry, nodeID string) *ClusterSync {
	return &ClusterSync{
		store:   store,
		bus:     bus,
		catalog: catalog,
		tenants: tenants,
		nodeID:  nodeID,
	}
}

// Start loads the current state from the store, then spawns a goroutine
// that listens for change notifications until ctx is canceled. Start itself
// returns as soon as the initial load completes.
func (c *ClusterSync) Start(ctx context.Context) error {
	if err := c.reload(ctx, TimestampKeyModules); err != nil {
		return err
	}
	if err := c.reload(ctx, TimestampKeyTenants); err != nil {
		return err
	}

	go func() {
		err := c.bus.Subscribe(ctx, c.handleNotification)
		if err != nil && ctx.Err() == nil {
			logg.Error("cluster sync subscription ended: %s", err.Error())
		}
	}()
	return nil
}

// NotifyChanged is called by the admin write-path after a local mutation to
// the module catalog or tenant registry: it advances the store's logical
// clock for kind and broadcasts the new value, so that other nodes reload
// promptly instead of waiting for ResyncJob's next tick.
func (c *ClusterSync) NotifyChanged(ctx context.Context, kind string) error {
	newTs, err := c.store.AdvanceTimestamp(ctx, kind)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.setLastSeen(kind, newTs)
	c.mu.Unlock()

	return c.bus.Publish(ctx, ChangeNotification{
		Kind:         kind,
		Timestamp:    newTs,
		OriginNodeID: c.nodeID,
	})
}

// CheckForUpdates polls the store's logical clocks directly, independent of
// the bus. ResyncJob calls this on a timer as the safety net described in
// spec.md §4.6.
func (c *ClusterSync) CheckForUpdates(ctx context.Context) error {
	for _, kind := range []string{TimestampKeyModules, TimestampKeyTenants} {
		ts, err := c.store.CurrentTimestamp(ctx, kind)
		if err != nil {
			return err
		}
		if ts > c.getLastSeen(kind) {
			if err := c.reload(ctx, kind); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *ClusterSync) handleNotification(n ChangeNotification) {
	if n.OriginNodeID == c.nodeID {
		return
	}
	if n.Timestamp <= c.getLastSeen(n.Kind) {
		return
	}

	ctx := context.Background()
	if err := c.reload(ctx, n.Kind); err != nil {
		logg.Error("while reloading %s after cluster change notification: %s", n.Kind, err.Error())
	}
}

func (c *ClusterSync) reload(ctx context.Context, kind string) error {
	switch kind {
	case TimestampKeyModules:
		modules, err := c.store.LoadModules(ctx)
		if err != nil {
			return err
		}
		c.catalog.ReplaceAll(modules)
	case TimestampKeyTenants:
		tenants, err := c.store.LoadTenants(ctx)
		if err != nil {
			return err
		}
		c.tenants.ReplaceAll(tenants)
	}

	ts, err := c.store.CurrentTimestamp(ctx, kind)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.setLastSeen(kind, ts)
	c.mu.Unlock()
	return nil
}

func (c *ClusterSync) getLastSeen(kind string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if kind == TimestampKeyModules {
		return c.lastModulesTs
	}
	return c.lastTenantsTs
}

// setLastSeen must be called with c.mu held.
func (c *ClusterSync) setLastSeen(kind string, ts int64) {
	if kind == TimestampKeyModules {
		c.lastModulesTs = ts
	} else {
		c.lastTenantsTs = ts
	}
}
