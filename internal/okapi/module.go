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
	"regexp"

	"github.com/sapcc/go-bits/errext"
)

// moduleIDRx matches spec.md §3: lowercase alphanumeric, ".", "_", "-".
var moduleIDRx = regexp.MustCompile(`^[a-z0-9._-]+$`)

// EnvEntry is a single environment variable entry carried by a
// ModuleDescriptor or LaunchDescriptor. It is opaque to the core: launch
// mechanics that would interpret it are out of scope (spec.md §1).
type EnvEntry struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// LaunchDescriptor carries the information a process/container launcher
// (out of scope) would need to start a module's deployment. The core never
// interprets these fields; it only stores and returns them.
type LaunchDescriptor struct {
	Exec        []string   `json:"exec,omitempty"`
	DockerImage string     `json:"dockerImage,omitempty"`
	Env         []EnvEntry `json:"env,omitempty"`
}

// UIDescriptor carries metadata about a module's optional UI bundle. Opaque
// to the core, same as LaunchDescriptor.
type UIDescriptor struct {
	Module  string `json:"module,omitempty"`
	Version string `json:"version,omitempty"`
}

// Interface describes one of the named capabilities (requires/provides) of a
// module, per spec.md §3.
type Interface struct {
	ID            string         `json:"id"`
	Version       string         `json:"version,omitempty"`
	InterfaceType string         `json:"interfaceType,omitempty"`
	RoutingEntries []RoutingEntry `json:"handlers,omitempty"`
}

// InterfaceTypeProxy and InterfaceTypeSystem are the two valid values of
// Interface.InterfaceType. A blank InterfaceType defaults to "proxy".
const (
	InterfaceTypeProxy  = "proxy"
	InterfaceTypeSystem = "system"
)

// EffectiveType returns i.InterfaceType, defaulting to InterfaceTypeProxy.
func (i Interface) EffectiveType() string {
	if i.InterfaceType == "" {
		return InterfaceTypeProxy
	}
	return i.InterfaceType
}

// ModuleDescriptor is the static description of a module, as stored in the
// ModuleCatalog. See spec.md §3.
type ModuleDescriptor struct {
	ID       string     `json:"id"`
	Name     string     `json:"name,omitempty"`
	Tags     []string   `json:"tags,omitempty"`
	Env      []EnvEntry `json:"env,omitempty"`
	Requires []string   `json:"requires,omitempty"`
	Provides []Interface `json:"provides,omitempty"`

	// RoutingEntries are deprecated top-level handlers, kept for modules that
	// predate the provides/interfaces split (spec.md §3).
	RoutingEntries []RoutingEntry `json:"routingEntries,omitempty"`
	Filters        []RoutingEntry `json:"filters,omitempty"`

	PermissionSets []PermissionSet `json:"permissionSets,omitempty"`

	LaunchDescriptor *LaunchDescriptor `json:"launchDescriptor,omitempty"`
	UIDescriptor     *UIDescriptor     `json:"uiDescriptor,omitempty"`
}

// PermissionSet names a group of permissions a module defines, e.g. for
// admin UI purposes. Opaque to the pipeline itself.
type PermissionSet struct {
	PermissionName string   `json:"permissionName"`
	Replaces       []string `json:"replaces,omitempty"`
}

// Validate checks that the id is non-empty and matches the id pattern, and
// that every provided interface has a non-empty id and a known
// interfaceType. Interface ids are not checked against a pattern, and
// routing entries are not validated.
func (m ModuleDescriptor) Validate() (errs errext.ErrorSet) {
	if m.ID == "" {
		errs.Addf("module must have a non-empty id")
		return
	}
	if !moduleIDRx.MatchString(m.ID) {
		errs.Addf("module id %q must match %s", m.ID, moduleIDRx.String())
	}
	for idx, iface := range m.Provides {
		if iface.ID == "" {
			errs.Addf("module %s: provides[%d] must have a non-empty id", m.ID, idx)
		}
		if iface.EffectiveType() != InterfaceTypeProxy && iface.EffectiveType() != InterfaceTypeSystem {
			errs.Addf("module %s: provides[%d] has unknown interfaceType %q", m.ID, idx, iface.InterfaceType)
		}
	}
	return
}

// ProxyRoutingEntries yields every routing entry through which this module
// participates in a request pipeline: top-level (deprecated) entries, filter
// entries, and entries from every "proxy"-typed provided interface. System
// interfaces are excluded because they are never matched against inbound
// requests (spec.md §3 / §4.2).
func (m ModuleDescriptor) ProxyRoutingEntries() []RoutingEntry {
	var entries []RoutingEntry
	entries = append(entries, m.RoutingEntries...)
	entries = append(entries, m.Filters...)
	for _, iface := range m.Provides {
		if iface.EffectiveType() != InterfaceTypeProxy {
			continue
		}
		entries = append(entries, iface.RoutingEntries...)
	}
	return entries
}
