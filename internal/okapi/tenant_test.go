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
	"testing"

	"github.com/sapcc/go-bits/assert"
)

func TestTenantRegistryEnableRequiresExistingModule(t *testing.T) {
	catalog := NewModuleCatalog()
	r := NewTenantRegistry()

	err := r.Enable(catalog, "tenant-a", "mod-a")
	if err == nil {
		t.Fatal("expected an error enabling a nonexistent module")
	}
	assert.DeepEqual(t, "enable-missing error kind", err.(*GatewayError).Kind, ErrKindNotFound)
	assert.DeepEqual(t, "tenant not created on failed enable", r.IsEnabled("tenant-a", "mod-a"), false)
}

func TestTenantRegistryEnableDisable(t *testing.T) {
	catalog := NewModuleCatalog()
	if err := catalog.Insert(ModuleDescriptor{ID: "mod-a"}); err != nil {
		t.Fatal(err)
	}
	r := NewTenantRegistry()

	if err := r.Enable(catalog, "tenant-a", "mod-a"); err != nil {
		t.Fatal(err)
	}
	assert.DeepEqual(t, "enabled after Enable", r.IsEnabled("tenant-a", "mod-a"), true)

	if err := r.Disable("tenant-a", "mod-a"); err != nil {
		t.Fatal(err)
	}
	assert.DeepEqual(t, "disabled after Disable", r.IsEnabled("tenant-a", "mod-a"), false)
}

func TestTenantRegistryDisableUnknownTenantIsNoop(t *testing.T) {
	r := NewTenantRegistry()
	err := r.Disable("no-such-tenant", "mod-a")
	assert.DeepEqual(t, "disable on unknown tenant returns no error", err, error(nil))
}

func TestTenantRegistryIsEnabledUnknownTenant(t *testing.T) {
	r := NewTenantRegistry()
	assert.DeepEqual(t, "unknown tenant has nothing enabled", r.IsEnabled("ghost", "mod-a"), false)
}

func TestTenantRegistryEnableDoesNotMutateOlderSnapshot(t *testing.T) {
	catalog := NewModuleCatalog()
	if err := catalog.Insert(ModuleDescriptor{ID: "mod-a"}); err != nil {
		t.Fatal(err)
	}
	r := NewTenantRegistry()
	if err := r.Enable(catalog, "tenant-a", "mod-a"); err != nil {
		t.Fatal(err)
	}

	before, _ := r.Get("tenant-a")

	if err := catalog.Insert(ModuleDescriptor{ID: "mod-b"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Enable(catalog, "tenant-a", "mod-b"); err != nil {
		t.Fatal(err)
	}

	// the Tenant value fetched before the second Enable must not observe it
	assert.DeepEqual(t, "old tenant snapshot unaffected", before.IsEnabled("mod-b"), false)
	assert.DeepEqual(t, "registry reflects the second enable", r.IsEnabled("tenant-a", "mod-b"), true)
}

func TestTenantRegistryReplaceAll(t *testing.T) {
	r := NewTenantRegistry()
	catalog := NewModuleCatalog()
	if err := catalog.Insert(ModuleDescriptor{ID: "mod-a"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Enable(catalog, "tenant-a", "mod-a"); err != nil {
		t.Fatal(err)
	}

	r.ReplaceAll([]Tenant{
		{ID: "tenant-b", Enabled: map[string]struct{}{"mod-b": {}}},
	})

	assert.DeepEqual(t, "replaced registry drops tenant-a", r.IsEnabled("tenant-a", "mod-a"), false)
	assert.DeepEqual(t, "replaced registry carries tenant-b", r.IsEnabled("tenant-b", "mod-b"), true)
}
