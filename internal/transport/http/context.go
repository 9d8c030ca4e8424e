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

package http

import (
	"context"

	"github.com/bcgov/met-gateway/internal/gate"
	"github.com/bcgov/met-gateway/internal/session"
	"github.com/bcgov/met-gateway/internal/tenant"
)

type contextKey string

const (
	sessionKey contextKey = "session"
	tenantKey  contextKey = "tenant"
	planKey    contextKey = "route_plan"
)

// GetSession retrieves the session snapshot from context.
func GetSession(ctx context.Context) *session.Session {
	if val, ok := ctx.Value(sessionKey).(*session.Session); ok {
		return val
	}
	return nil
}

// GetTenant retrieves the resolved tenant from context, nil when
// resolution failed or has not run.
func GetTenant(ctx context.Context) *tenant.Tenant {
	if val, ok := ctx.Value(tenantKey).(*tenant.Tenant); ok {
		return val
	}
	return nil
}

// GetPlan retrieves the committed route plan from context.
func GetPlan(ctx context.Context) gate.Plan {
	if val, ok := ctx.Value(planKey).(gate.Plan); ok {
		return val
	}
	return gate.PlanResolving
}

func withSession(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

func withTenant(ctx context.Context, t *tenant.Tenant) context.Context {
	return context.WithValue(ctx, tenantKey, t)
}

func withPlan(ctx context.Context, p gate.Plan) context.Context {
	return context.WithValue(ctx, planKey, p)
}
