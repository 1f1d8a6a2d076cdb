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
	"encoding/json"
	"net/http"
	"strings"
)

// Header names consumed and produced by the gateway. See spec.md §6.
const (
	HeaderTenant              = "X-Okapi-Tenant"
	HeaderToken               = "X-Okapi-Token"
	HeaderURL                 = "X-Okapi-Url"
	HeaderPermissionsRequired = "X-Okapi-Permissions-Required"
	HeaderPermissionsDesired  = "X-Okapi-Permissions-Desired"
	HeaderModulePermissions   = "X-Okapi-Module-Permissions"
	HeaderExtraPermissions    = "X-Okapi-Extra-Permissions"
	HeaderModuleTokens        = "X-Okapi-Module-Tokens"
	HeaderStop                = "X-Okapi-Stop"
	HeaderTrace               = "X-Okapi-Trace"
)

// headersToSanitize are stripped from the inbound request before planning,
// so that a client can never inject them itself (spec.md §4.3).
var headersToSanitize = []string{
	HeaderPermissionsRequired,
	HeaderPermissionsDesired,
	HeaderModulePermissions,
	HeaderExtraPermissions,
	HeaderModuleTokens,
}

// AuthHeaderPlanner synthesizes the permission and module-token-plan headers
// from the pipeline before the first hop, and interprets the auth module's
// response to rewrite per-hop tokens. See spec.md §4.3.
type AuthHeaderPlanner struct{}

// NewAuthHeaderPlanner returns an AuthHeaderPlanner. It carries no state.
func NewAuthHeaderPlanner() *AuthHeaderPlanner {
	return &AuthHeaderPlanner{}
}

// SanitizeRequest removes every gateway-internal header the client may have
// forged, and normalizes Authorization/X-Okapi-Token, per spec.md §4.3's
// closing paragraph. It returns the resolved client token (possibly empty)
// or a *GatewayError if Authorization and X-Okapi-Token are both present and
// disagree.
func (p *AuthHeaderPlanner) SanitizeRequest(header http.Header) (clientToken string, err *GatewayError) {
	for _, name := range headersToSanitize {
		header.Del(name)
	}

	bearerToken := extractBearerToken(header.Get("Authorization"))
	okapiToken := header.Get(HeaderToken)

	switch {
	case bearerToken != "" && okapiToken != "" && bearerToken != okapiToken:
		return "", ErrKindUser.With("conflicting Authorization and %s headers", HeaderToken)
	case bearerToken != "":
		header.Set(HeaderToken, bearerToken)
		return bearerToken, nil
	default:
		return okapiToken, nil
	}
}

// ResolveTenant determines the tenant id for this request: the X-Okapi-Tenant
// header if present, otherwise a best-effort decode of the "tenant" claim
// from clientToken (see ParseTenantFromToken). Fails with ErrKindForbidden
// (mapped to 403) if neither source yields a tenant id.
func (p *AuthHeaderPlanner) ResolveTenant(header http.Header, clientToken string) (string, *GatewayError) {
	if tenantID := header.Get(HeaderTenant); tenantID != "" {
		return tenantID, nil
	}
	if tenantID, ok := ParseTenantFromToken(clientToken); ok {
		header.Set(HeaderTenant, tenantID)
		return tenantID, nil
	}
	return "", ErrKindForbidden.With("missing %s header and no tenant could be derived from the token", HeaderTenant)
}

// Plan computes the permission and module-permission headers from the given
// pipeline and installs them into header, and assigns every hop's AuthToken
// to clientToken as a default. See spec.md §4.3.
func (p *AuthHeaderPlanner) Plan(hops []Hop, header http.Header, clientToken string) {
	var required, desired []string
	modulePermissions := map[string][]string{}
	var extraPermissions []string

	for i := range hops {
		hops[i].AuthToken = clientToken

		entry := hops[i].Entry
		required = appendUnique(required, entry.PermissionsRequired...)
		desired = appendUnique(desired, entry.PermissionsDesired...)

		if entry.EffectiveType() == ProxyTypeRedirect {
			extraPermissions = appendUnique(extraPermissions, entry.ModulePermissions...)
			continue
		}
		if len(entry.ModulePermissions) > 0 {
			moduleID := hops[i].Module.ID
			modulePermissions[moduleID] = appendUnique(modulePermissions[moduleID], entry.ModulePermissions...)
		}
	}

	if len(required) > 0 {
		header.Set(HeaderPermissionsRequired, strings.Join(required, ","))
	}
	if len(desired) > 0 {
		header.Set(HeaderPermissionsDesired, strings.Join(desired, ","))
	}

	// Always set the module-permissions header, even when empty: the auth
	// module interprets its mere presence as "permissions plan already
	// sanctioned" (spec.md §4.3).
	modulePermJSON, _ := json.Marshal(modulePermissions)
	header.Set(HeaderModulePermissions, string(modulePermJSON))

	if len(extraPermissions) > 0 {
		extraJSON, _ := json.Marshal(extraPermissions)
		header.Set(HeaderExtraPermissions, string(extraJSON))
	}
}

// ApplyModuleTokens parses an X-Okapi-Module-Tokens response header (a JSON
// object {moduleId -> token}, "_" as default) and overwrites each hop's
// AuthToken accordingly. Malformed JSON is ignored (best-effort, mirroring
// the tolerant decoding posture spec.md §9 calls for with token payloads):
// the pipeline simply continues with tokens unchanged.
func (p *AuthHeaderPlanner) ApplyModuleTokens(hops []Hop, moduleTokensJSON string) {
	if moduleTokensJSON == "" {
		return
	}
	var tokens map[string]string
	if err := json.Unmarshal([]byte(moduleTokensJSON), &tokens); err != nil {
		return
	}

	defaultToken, hasDefault := tokens["_"]
	for i := range hops {
		if tok, ok := tokens[hops[i].Module.ID]; ok {
			hops[i].AuthToken = tok
		} else if hasDefault {
			hops[i].AuthToken = defaultToken
		}
	}
}

func extractBearerToken(authorizationHeader string) string {
	const prefix = "Bearer "
	if len(authorizationHeader) > len(prefix) && strings.EqualFold(authorizationHeader[:len(prefix)], prefix) {
		return authorizationHeader[len(prefix):]
	}
	return ""
}

func appendUnique(existing []string, values ...string) []string {
	for _, v := range values {
		found := false
		for _, e := range existing {
			if e == v {
				found = true
				break
			}
		}
		if !found {
			existing = append(existing, v)
		}
	}
	return existing
}
