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

package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bcgov/met-gateway/internal/session"
	"github.com/bcgov/met-gateway/internal/tenant"
)

// TestPurpose: Validates route-plan selection across every combination
// of session readiness and tenant resolution state.
// Scope: Unit Test
// Expected: The plan commits only when both inputs are terminal; tenant
// failure is terminal on its own.
func TestSelect(t *testing.T) {
	resolved := &tenant.Tenant{Slug: "gdx"}

	tests := []struct {
		name      string
		sess      *session.Session
		tenant    *tenant.Tenant
		tenantErr error
		want      Plan
	}{
		{
			name: "nothing resolved",
			want: PlanResolving,
		},
		{
			name:   "tenant resolved session unresolved",
			sess:   &session.Session{Readiness: session.ReadinessUnresolved},
			tenant: resolved,
			want:   PlanResolving,
		},
		{
			name:   "tenant resolved roles pending",
			sess:   &session.Session{Readiness: session.ReadinessPendingRoles},
			tenant: resolved,
			want:   PlanResolving,
		},
		{
			name: "session ready tenant pending",
			sess: &session.Session{Readiness: session.ReadinessReady, Roles: []string{"x"}},
			want: PlanResolving,
		},
		{
			name:   "both terminal unauthenticated",
			sess:   &session.Session{Readiness: session.ReadinessUnauthenticated},
			tenant: resolved,
			want:   PlanPublic,
		},
		{
			name:   "both terminal with roles",
			sess:   &session.Session{Readiness: session.ReadinessReady, Roles: []string{"x"}},
			tenant: resolved,
			want:   PlanAuthenticated,
		},
		{
			name:   "signed in with no roles",
			sess:   &session.Session{Readiness: session.ReadinessReady},
			tenant: resolved,
			want:   PlanNoRole,
		},
		{
			name:      "tenant failure is terminal alone",
			sess:      &session.Session{Readiness: session.ReadinessUnresolved},
			tenantErr: tenant.ErrTenantNotFound,
			want:      PlanTenantNotFound,
		},
		{
			name:      "tenant failure overrides authenticated session",
			sess:      &session.Session{Readiness: session.ReadinessReady, Roles: []string{"x"}},
			tenantErr: tenant.ErrTenantNotFound,
			want:      PlanTenantNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Select(tt.sess, tt.tenant, tt.tenantErr))
		})
	}
}

func TestPlanTerminal(t *testing.T) {
	assert.False(t, PlanResolving.Terminal())
	for _, p := range []Plan{PlanTenantNotFound, PlanPublic, PlanNoRole, PlanAuthenticated} {
		assert.True(t, p.Terminal(), p.String())
	}
}
