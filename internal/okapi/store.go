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

import "context"

// Store is the durable backing for everything the in-memory ModuleCatalog
// and TenantRegistry hold, plus the monotonic timestamp that drives cluster
// synchronization (spec.md §4.6). A node reloads its in-memory state from a
// Store at startup and whenever ClusterSync observes a newer timestamp.
type Store interface {
	// LoadModules returns every persisted module descriptor, in an
	// implementation-defined but stable order.
	LoadModules(ctx context.Context) ([]ModuleDescriptor, error)
	// SaveModule upserts a single module descriptor.
	SaveModule(ctx context.Context, m ModuleDescriptor) error
	// DeleteModule removes a module descriptor. A no-op if it does not exist.
	DeleteModule(ctx context.Context, id string) error

	// LoadTenants returns every persisted tenant record.
	LoadTenants(ctx context.Context) ([]Tenant, error)
	// SaveTenant upserts a single tenant's enabled-module set.
	SaveTenant(ctx context.Context, t Tenant) error

	// AdvanceTimestamp atomically increments and returns the named logical
	// clock, used to version the catalog/tenant state across the cluster.
	// See spec.md §4.6.
	AdvanceTimestamp(ctx context.Context, key string) (int64, error)
	// CurrentTimestamp returns the named logical clock's current value
	// without advancing it, for comparison against a node's last-seen value.
	CurrentTimestamp(ctx context.Context, key string) (int64, error)
}

// Timestamp keys for the two independently-versioned pieces of cluster
// state. See spec.md §4.6.
const (
	TimestampKeyModules = "modules"
	TimestampKeyTenants = "tenants"
)
