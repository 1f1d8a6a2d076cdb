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
	"encoding/base64"
	"encoding/json"
	"strings"
)

// ParseTenantFromToken extracts the "tenant" claim from a JWT-shaped token's
// middle (payload) segment, on a strict best-effort basis: the gateway never
// verifies a signature and never requires a JWT library for this (see
// DESIGN.md, Open Question 1). Any malformed or non-JWT token simply yields
// (_, false). ResolveTenant consults the X-Okapi-Tenant header first, uses
// this function only when that header is absent, and rejects the request if
// neither yields a tenant.
func ParseTenantFromToken(token string) (tenant string, ok bool) {
	if token == "" {
		return "", false
	}

	segments := strings.Split(token, ".")
	if len(segments) != 3 {
		return "", false
	}

	payload, err := decodeSegment(segments[1])
	if err != nil {
		return "", false
	}

	var claims struct {
		Tenant string `json:"tenant"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return "", false
	}
	if claims.Tenant == "" {
		return "", false
	}
	return claims.Tenant, true
}

// decodeSegment decodes a base64url JWT segment, tolerating both the
// standard (padded) and raw (unpadded) encodings that different issuers
// produce.
func decodeSegment(segment string) ([]byte, error) {
	if data, err := base64.RawURLEncoding.DecodeString(segment); err == nil {
		return data, nil
	}
	return base64.URLEncoding.DecodeString(segment)
}
