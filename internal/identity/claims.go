// Copyright 2026 Province of British Columbia
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the identity and role claims the gateway consumes from
// an access token.
type Claims struct {
	Subject   string
	Email     string
	Roles     []string
	ExpiresAt time.Time
}

// DecodeClaims extracts claims from an access token. Tokens arrive
// directly from the identity provider's token endpoint over TLS, so the
// signature is not re-verified here; the upstream API verifies it on
// every resource request.
func DecodeClaims(token string) (*Claims, error) {
	parser := jwt.NewParser()
	parsed, _, err := parser.ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse access token: %w", err)
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type %T", parsed.Claims)
	}

	claims := &Claims{}
	if sub, err := mapClaims.GetSubject(); err == nil {
		claims.Subject = sub
	}
	if email, ok := mapClaims["email"].(string); ok {
		claims.Email = email
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	claims.Roles = extractRoles(mapClaims)

	return claims, nil
}

// extractRoles reads role claims. The provider issues either a flat
// "client_roles" claim or a Keycloak-style "realm_access.roles" object;
// both are accepted and deduplicated.
func extractRoles(claims jwt.MapClaims) []string {
	seen := make(map[string]bool)
	var roles []string

	appendRole := func(v any) {
		if role, ok := v.(string); ok && role != "" && !seen[role] {
			seen[role] = true
			roles = append(roles, role)
		}
	}

	if raw, ok := claims["client_roles"].([]any); ok {
		for _, v := range raw {
			appendRole(v)
		}
	}
	if realm, ok := claims["realm_access"].(map[string]any); ok {
		if raw, ok := realm["roles"].([]any); ok {
			for _, v := range raw {
				appendRole(v)
			}
		}
	}

	return roles
}
