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

func TestModuleDescriptorValidateRequiresID(t *testing.T) {
	errs := ModuleDescriptor{}.Validate()
	assert.DeepEqual(t, "blank id fails validation", len(errs) > 0, true)
}

func TestModuleDescriptorValidateRejectsInvalidID(t *testing.T) {
	errs := ModuleDescriptor{ID: "Has Spaces!"}.Validate()
	assert.DeepEqual(t, "invalid id fails validation", len(errs) > 0, true)
}

func TestModuleDescriptorValidateAcceptsWellFormedID(t *testing.T) {
	errs := ModuleDescriptor{ID: "mod-a.v2_test"}.Validate()
	assert.DeepEqual(t, "well formed id validates", len(errs), 0)
}

func TestModuleDescriptorValidateRejectsInterfaceWithoutID(t *testing.T) {
	m := ModuleDescriptor{ID: "mod-a", Provides: []Interface{{}}}
	errs := m.Validate()
	assert.DeepEqual(t, "interface without id fails validation", len(errs) > 0, true)
}

func TestModuleDescriptorValidateRejectsUnknownInterfaceType(t *testing.T) {
	m := ModuleDescriptor{ID: "mod-a", Provides: []Interface{{ID: "iface-a", InterfaceType: "bogus"}}}
	errs := m.Validate()
	assert.DeepEqual(t, "unknown interface type fails validation", len(errs) > 0, true)
}

func TestInterfaceEffectiveTypeDefaultsToProxy(t *testing.T) {
	assert.DeepEqual(t, "blank type defaults to proxy", Interface{}.EffectiveType(), InterfaceTypeProxy)
	assert.DeepEqual(t, "explicit system type", Interface{InterfaceType: InterfaceTypeSystem}.EffectiveType(), InterfaceTypeSystem)
}

func TestModuleDescriptorProxyRoutingEntriesAggregatesAllSources(t *testing.T) {
	m := ModuleDescriptor{
		ID:             "mod-a",
		RoutingEntries: []RoutingEntry{{Path: "/legacy"}},
		Filters:        []RoutingEntry{{Path: "/"}},
		Provides: []Interface{
			{ID: "main", InterfaceType: InterfaceTypeProxy, RoutingEntries: []RoutingEntry{{Path: "/v1"}}},
			{ID: "admin", InterfaceType: InterfaceTypeSystem, RoutingEntries: []RoutingEntry{{Path: "/internal"}}},
		},
	}

	entries := m.ProxyRoutingEntries()
	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
	}

	// system-typed interfaces are excluded: /internal must not appear
	assert.DeepEqual(t, "aggregated proxy-reachable paths", paths, []string{"/legacy", "/", "/v1"})
}
