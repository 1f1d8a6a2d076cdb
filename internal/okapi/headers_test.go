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
	"net/http"
	"testing"

	"github.com/sapcc/go-bits/assert"
)

func TestAuthHeaderPlannerSanitizeRequestStripsForgedHeaders(t *testing.T) {
	header := http.Header{}
	header.Set(HeaderPermissionsRequired, "forged")
	header.Set(HeaderModuleTokens, `{"_":"forged"}`)

	p := NewAuthHeaderPlanner()
	token, err := p.SanitizeRequest(header)
	if err != nil {
		t.Fatal(err)
	}
	assert.DeepEqual(t, "no client token", token, "")
	assert.DeepEqual(t, "forged permissions header stripped", header.Get(HeaderPermissionsRequired), "")
	assert.DeepEqual(t, "forged module tokens header stripped", header.Get(HeaderModuleTokens), "")
}

func TestAuthHeaderPlannerSanitizeRequestBearerToken(t *testing.T) {
	header := http.Header{}
	header.Set("Authorization", "Bearer abc123")

	p := NewAuthHeaderPlanner()
	token, err := p.SanitizeRequest(header)
	if err != nil {
		t.Fatal(err)
	}
	assert.DeepEqual(t, "client token from bearer", token, "abc123")
	assert.DeepEqual(t, "x-okapi-token mirrors bearer", header.Get(HeaderToken), "abc123")
}

func TestAuthHeaderPlannerSanitizeRequestConflictingTokens(t *testing.T) {
	header := http.Header{}
	header.Set("Authorization", "Bearer abc123")
	header.Set(HeaderToken, "xyz789")

	p := NewAuthHeaderPlanner()
	_, err := p.SanitizeRequest(header)
	if err == nil {
		t.Fatal("expected an error for conflicting tokens")
	}
	assert.DeepEqual(t, "conflict error kind", err.Kind, ErrKindUser)
}

func TestAuthHeaderPlannerSanitizeRequestAgreeingTokensAreFine(t *testing.T) {
	header := http.Header{}
	header.Set("Authorization", "Bearer abc123")
	header.Set(HeaderToken, "abc123")

	p := NewAuthHeaderPlanner()
	token, err := p.SanitizeRequest(header)
	if err != nil {
		t.Fatal(err)
	}
	assert.DeepEqual(t, "client token", token, "abc123")
}

func TestAuthHeaderPlannerResolveTenantFromHeader(t *testing.T) {
	header := http.Header{}
	header.Set(HeaderTenant, "acme")

	p := NewAuthHeaderPlanner()
	tenant, err := p.ResolveTenant(header, "")
	if err != nil {
		t.Fatal(err)
	}
	assert.DeepEqual(t, "tenant from header", tenant, "acme")
}

func TestAuthHeaderPlannerResolveTenantFromToken(t *testing.T) {
	token := makeJWT(t, `{"tenant":"acme"}`, false)
	header := http.Header{}

	p := NewAuthHeaderPlanner()
	tenant, err := p.ResolveTenant(header, token)
	if err != nil {
		t.Fatal(err)
	}
	assert.DeepEqual(t, "tenant from token", tenant, "acme")
	assert.DeepEqual(t, "tenant header is populated for downstream hops", header.Get(HeaderTenant), "acme")
}

func TestAuthHeaderPlannerResolveTenantMissingIsForbidden(t *testing.T) {
	p := NewAuthHeaderPlanner()
	_, err := p.ResolveTenant(http.Header{}, "")
	if err == nil {
		t.Fatal("expected an error when no tenant can be resolved")
	}
	assert.DeepEqual(t, "missing tenant error kind", err.Kind, ErrKindForbidden)
}

func TestAuthHeaderPlannerPlanUnionsPermissionsAcrossHops(t *testing.T) {
	hops := []Hop{
		{Module: ModuleDescriptor{ID: "auth"}, Entry: RoutingEntry{
			PermissionsRequired: []string{"perm.a"},
			PermissionsDesired:  []string{"perm.x"},
		}},
		{Module: ModuleDescriptor{ID: "handler"}, Entry: RoutingEntry{
			PermissionsRequired: []string{"perm.a", "perm.b"},
			ModulePermissions:   []string{"handler.read"},
		}},
	}
	header := http.Header{}
	NewAuthHeaderPlanner().Plan(hops, header, "client-token")

	assert.DeepEqual(t, "required permissions deduped and unioned", header.Get(HeaderPermissionsRequired), "perm.a,perm.b")
	assert.DeepEqual(t, "desired permissions", header.Get(HeaderPermissionsDesired), "perm.x")
	assert.DeepEqual(t, "module permissions present", header.Get(HeaderModulePermissions), `{"handler":["handler.read"]}`)
	assert.DeepEqual(t, "every hop defaults to the client token", hops[0].AuthToken, "client-token")
	assert.DeepEqual(t, "every hop defaults to the client token", hops[1].AuthToken, "client-token")
}

func TestAuthHeaderPlannerPlanSetsEmptyModulePermissionsHeader(t *testing.T) {
	hops := []Hop{{Module: ModuleDescriptor{ID: "handler"}, Entry: RoutingEntry{}}}
	header := http.Header{}
	NewAuthHeaderPlanner().Plan(hops, header, "")

	assert.DeepEqual(t, "module permissions header always set", header.Get(HeaderModulePermissions), "{}")
}

func TestAuthHeaderPlannerPlanDivertsRedirectPermissionsToExtra(t *testing.T) {
	hops := []Hop{
		{Module: ModuleDescriptor{ID: "front"}, Entry: RoutingEntry{
			Type:              ProxyTypeRedirect,
			ModulePermissions: []string{"front.redirect"},
		}},
	}
	header := http.Header{}
	NewAuthHeaderPlanner().Plan(hops, header, "")

	assert.DeepEqual(t, "redirect hop contributes no module-permissions entry", header.Get(HeaderModulePermissions), "{}")
	assert.DeepEqual(t, "redirect permissions land in extra-permissions", header.Get(HeaderExtraPermissions), `["front.redirect"]`)
}

func TestAuthHeaderPlannerApplyModuleTokens(t *testing.T) {
	hops := []Hop{
		{Module: ModuleDescriptor{ID: "handler"}, AuthToken: "client-token"},
		{Module: ModuleDescriptor{ID: "other"}, AuthToken: "client-token"},
	}
	NewAuthHeaderPlanner().ApplyModuleTokens(hops, `{"handler":"handler-token","_":"default-token"}`)

	assert.DeepEqual(t, "matched module gets its specific token", hops[0].AuthToken, "handler-token")
	assert.DeepEqual(t, "unmatched module falls back to default", hops[1].AuthToken, "default-token")
}

func TestAuthHeaderPlannerApplyModuleTokensIgnoresMalformedJSON(t *testing.T) {
	hops := []Hop{{Module: ModuleDescriptor{ID: "handler"}, AuthToken: "client-token"}}
	NewAuthHeaderPlanner().ApplyModuleTokens(hops, `not json`)

	assert.DeepEqual(t, "token unchanged on malformed JSON", hops[0].AuthToken, "client-token")
}

func TestAuthHeaderPlannerApplyModuleTokensNoopOnEmptyString(t *testing.T) {
	hops := []Hop{{Module: ModuleDescriptor{ID: "handler"}, AuthToken: "client-token"}}
	NewAuthHeaderPlanner().ApplyModuleTokens(hops, "")

	assert.DeepEqual(t, "token unchanged when header absent", hops[0].AuthToken, "client-token")
}
