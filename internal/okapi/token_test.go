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
	"testing"

	"github.com/sapcc/go-bits/assert"
)

func makeJWT(t *testing.T, payload string, padded bool) string {
	t.Helper()
	enc := base64.RawURLEncoding
	if padded {
		enc = base64.URLEncoding
	}
	header := enc.EncodeToString([]byte(`{"alg":"none"}`))
	body := enc.EncodeToString([]byte(payload))
	return header + "." + body + ".signature"
}

func TestParseTenantFromTokenRawBase64(t *testing.T) {
	token := makeJWT(t, `{"tenant":"acme"}`, false)
	tenant, ok := ParseTenantFromToken(token)
	assert.DeepEqual(t, "ok", ok, true)
	assert.DeepEqual(t, "tenant", tenant, "acme")
}

func TestParseTenantFromTokenPaddedBase64(t *testing.T) {
	token := makeJWT(t, `{"tenant":"acme"}`, true)
	tenant, ok := ParseTenantFromToken(token)
	assert.DeepEqual(t, "ok", ok, true)
	assert.DeepEqual(t, "tenant", tenant, "acme")
}

func TestParseTenantFromTokenMissingClaim(t *testing.T) {
	token := makeJWT(t, `{"sub":"user-1"}`, false)
	_, ok := ParseTenantFromToken(token)
	assert.DeepEqual(t, "ok", ok, false)
}

func TestParseTenantFromTokenMalformedJSON(t *testing.T) {
	token := makeJWT(t, `not json`, false)
	_, ok := ParseTenantFromToken(token)
	assert.DeepEqual(t, "ok", ok, false)
}

func TestParseTenantFromTokenWrongSegmentCount(t *testing.T) {
	_, ok := ParseTenantFromToken("only.two")
	assert.DeepEqual(t, "ok", ok, false)
}

func TestParseTenantFromTokenEmpty(t *testing.T) {
	_, ok := ParseTenantFromToken("")
	assert.DeepEqual(t, "ok", ok, false)
}

func TestParseTenantFromTokenBadBase64(t *testing.T) {
	_, ok := ParseTenantFromToken("header.not!!valid!!base64.sig")
	assert.DeepEqual(t, "ok", ok, false)
}
