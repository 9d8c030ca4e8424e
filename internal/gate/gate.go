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

// Package gate selects which route tree the front end mounts, based on
// the combined state of session readiness and tenant resolution.
package gate

import (
	"github.com/bcgov/met-gateway/internal/session"
	"github.com/bcgov/met-gateway/internal/tenant"
)

// Plan is the tagged route-tree selection. It is computed once both the
// session and the tenant have reached a terminal state; until then the
// plan stays PlanResolving and the front end renders only a loading
// shell.
type Plan int

const (
	// PlanResolving means session or tenant resolution has not finished.
	// No route tree may be committed yet.
	PlanResolving Plan = iota

	// PlanTenantNotFound renders the 404 experience. Terminal.
	PlanTenantNotFound

	// PlanPublic mounts the unauthenticated route tree.
	PlanPublic

	// PlanNoRole mounts the "no access" shell inside the authenticated
	// chrome, for users who signed in but hold no roles.
	PlanNoRole

	// PlanAuthenticated mounts the full authenticated route tree.
	PlanAuthenticated
)

func (p Plan) String() string {
	switch p {
	case PlanResolving:
		return "resolving"
	case PlanTenantNotFound:
		return "tenant_not_found"
	case PlanPublic:
		return "public"
	case PlanNoRole:
		return "no_role"
	case PlanAuthenticated:
		return "authenticated"
	}
	return "unknown"
}

// Terminal reports whether the plan is committed.
func (p Plan) Terminal() bool { return p != PlanResolving }

// Select computes the route plan. tenantErr carries the terminal
// tenant-resolution failure, if any; t is nil while resolution is still
// in flight.
//
// A race where the tenant resolves first must not briefly mount the
// wrong tree, so the plan commits only on the combined condition: tenant
// terminal AND session terminal. The one exception is tenant failure,
// which is terminal on its own — a 404 does not depend on who is asking.
func Select(sess *session.Session, t *tenant.Tenant, tenantErr error) Plan {
	if tenant.IsNotFound(tenantErr) {
		return PlanTenantNotFound
	}
	if t == nil {
		return PlanResolving
	}
	if sess == nil || !sess.Readiness.Terminal() {
		return PlanResolving
	}

	switch sess.Readiness {
	case session.ReadinessUnauthenticated:
		return PlanPublic
	case session.ReadinessReady:
		if len(sess.Roles) == 0 {
			return PlanNoRole
		}
		return PlanAuthenticated
	}
	return PlanResolving
}
