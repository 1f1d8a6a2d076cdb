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
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// DeploymentRecord describes one running instance of a module. See spec.md
// §3 ("DeploymentDescriptor"). InstID is assigned by the gateway on Deploy.
type DeploymentRecord struct {
	InstID string
	// SrvcID is the module id this deployment instance serves.
	SrvcID string
	// URL is the base URL at which the running instance serves requests.
	URL string
	// NodeID identifies the gateway node that orchestrated this deployment,
	// if any (process/container launch mechanics are out of scope; this
	// field is opaque bookkeeping for a launcher collaborator).
	NodeID string
	// Descriptor carries launch information passed through from the request
	// that created this deployment. Never interpreted by the core.
	Descriptor *LaunchDescriptor
}

type discoverySnapshot struct {
	byModuleID map[string][]DeploymentRecord
}

// DiscoveryManager maps a module id to one or more running deployment
// records. See spec.md §2 / §4.4. Writes are serialized through an internal
// mutex; reads are lock-free snapshots, exactly as ModuleCatalog.
type DiscoveryManager struct {
	mu      sync.Mutex
	current atomic.Pointer[discoverySnapshot]
}

// NewDiscoveryManager returns an empty discovery manager.
func NewDiscoveryManager() *DiscoveryManager {
	d := &DiscoveryManager{}
	d.current.Store(&discoverySnapshot{byModuleID: map[string][]DeploymentRecord{}})
	return d
}

// Resolve returns every known deployment record for the given module id, in
// the order they were registered. The pipeline uses the first entry
// (spec.md §4.4); an empty result means no running instance was found.
func (d *DiscoveryManager) Resolve(moduleID string) []DeploymentRecord {
	snap := d.current.Load()
	records := snap.byModuleID[moduleID]
	out := make([]DeploymentRecord, len(records))
	copy(out, records)
	return out
}

// Deploy registers a new running instance of a module and returns its
// gateway-assigned instance id.
func (d *DiscoveryManager) Deploy(srvcID, url, nodeID string, descriptor *LaunchDescriptor) DeploymentRecord {
	rec := DeploymentRecord{
		InstID:     uuid.NewString(),
		SrvcID:     srvcID,
		URL:        url,
		NodeID:     nodeID,
		Descriptor: descriptor,
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	cur := d.current.Load()
	next := &discoverySnapshot{byModuleID: copyDiscoveryMap(cur.byModuleID)}
	next.byModuleID[srvcID] = append(append([]DeploymentRecord{}, next.byModuleID[srvcID]...), rec)
	d.current.Store(next)
	return rec
}

// Undeploy removes a running instance by instance id. Fails with
// ErrKindNotFound if no such instance is registered under the given module.
func (d *DiscoveryManager) Undeploy(srvcID, instID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	cur := d.current.Load()
	records := cur.byModuleID[srvcID]
	idx := -1
	for i, rec := range records {
		if rec.InstID == instID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrKindNotFound.With("no deployment %s for module %s", instID, srvcID)
	}

	next := &discoverySnapshot{byModuleID: copyDiscoveryMap(cur.byModuleID)}
	remaining := make([]DeploymentRecord, 0, len(records)-1)
	remaining = append(remaining, records[:idx]...)
	remaining = append(remaining, records[idx+1:]...)
	if len(remaining) == 0 {
		delete(next.byModuleID, srvcID)
	} else {
		next.byModuleID[srvcID] = remaining
	}
	d.current.Store(next)
	return nil
}

func copyDiscoveryMap(in map[string][]DeploymentRecord) map[string][]DeploymentRecord {
	out := make(map[string][]DeploymentRecord, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}
