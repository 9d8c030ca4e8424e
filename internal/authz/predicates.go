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

// Package authz centralizes every "may the current user do X on
// engagement Y" decision. View surfaces and route loaders consume these
// predicates; nothing else in the system re-derives role logic.
package authz

import (
	"github.com/bcgov/met-gateway/internal/engagement"
	"github.com/bcgov/met-gateway/internal/session"
)

// Decision is the outcome of a predicate. Unresolved means authorization
// data has not finished loading and the caller must render a loading
// state, not an allow or a deny.
type Decision int

const (
	DecisionUnresolved Decision = iota
	DecisionDeny
	DecisionAllow
)

func (d Decision) String() string {
	switch d {
	case DecisionUnresolved:
		return "unresolved"
	case DecisionDeny:
		return "deny"
	case DecisionAllow:
		return "allow"
	}
	return "unknown"
}

// Allowed reports a definitive allow. An unresolved decision is not
// allowed.
func (d Decision) Allowed() bool { return d == DecisionAllow }

// ReportVariant selects which report surface is being requested.
type ReportVariant string

const (
	ReportPublic   ReportVariant = "public"
	ReportInternal ReportVariant = "internal"
)

// ExportScope selects how much data an export request covers.
type ExportScope string

const (
	ExportAll      ExportScope = "all"
	ExportAssigned ExportScope = "assigned"
)

// Engine evaluates authorization predicates. It holds only policy
// configuration; evaluation is pure.
type Engine struct {
	unknownLifecycle UnknownLifecyclePolicy
}

// NewEngine creates a predicate engine with the given unknown-lifecycle
// policy.
func NewEngine(policy UnknownLifecyclePolicy) *Engine {
	return &Engine{unknownLifecycle: policy}
}

// lifecycleEditRoles maps each known lifecycle state to the role that
// permits editing in that state.
var lifecycleEditRoles = map[engagement.Lifecycle]string{
	engagement.LifecycleDraft:     RoleEditDraftEngagement,
	engagement.LifecycleScheduled: RoleEditScheduledEngagement,
	engagement.LifecycleUpcoming:  RoleEditUpcomingEngagement,
	engagement.LifecycleOpen:      RoleEditOpenEngagement,
	engagement.LifecycleClosed:    RoleEditClosedEngagement,
}

// lifecycleEdit requires the edit role matching the engagement's current
// state. Unrecognized states resolve per the engine's policy.
func (en *Engine) lifecycleEdit() Check {
	return func(s *session.Session, e *engagement.Engagement) bool {
		if e == nil {
			return false
		}
		role, ok := lifecycleEditRoles[e.Lifecycle]
		if !ok {
			return bool(en.unknownLifecycle)
		}
		return s.HasRole(role)
	}
}

// evaluate guards a composed check behind the two-phase readiness
// invariant: while role data is still loading the answer is Unresolved,
// never a premature allow or deny.
func evaluate(check Check, s *session.Session, e *engagement.Engagement) Decision {
	if s == nil {
		return DecisionDeny
	}
	switch s.Readiness {
	case session.ReadinessUnresolved, session.ReadinessPendingRoles:
		return DecisionUnresolved
	}
	if check(s, e) {
		return DecisionAllow
	}
	return DecisionDeny
}

// CanEdit decides edit access: the lifecycle-specific edit role for the
// engagement's current state, or the baseline edit role combined with an
// explicit assignment.
func (en *Engine) CanEdit(s *session.Session, e *engagement.Engagement) Decision {
	return evaluate(Any(
		en.lifecycleEdit(),
		All(HasRole(RoleEditEngagement), Assigned()),
	), s, e)
}

// CanViewSurvey decides survey visibility. Draft engagements require the
// view-all-surveys role or an assignment; any published engagement with
// a linked survey is visible to signed-in users.
func (en *Engine) CanViewSurvey(s *session.Session, e *engagement.Engagement) Decision {
	return evaluate(Any(
		All(
			InLifecycle(engagement.LifecycleDraft),
			Any(HasRole(RoleViewAllSurveys), Assigned()),
		),
		All(
			Not(InLifecycle(engagement.LifecycleDraft)),
			HasSurvey(),
			Authenticated(),
		),
	), s, e)
}

// CanViewReport decides report access. Reports exist only once the
// submission phase has opened; the internal variant additionally
// requires the view-all-results role.
func (en *Engine) CanViewReport(s *session.Session, e *engagement.Engagement, variant ReportVariant) Decision {
	checks := []Check{
		SubmissionOpened(),
		HasRole(RoleAccessDashboard),
	}
	if variant == ReportInternal {
		checks = append(checks, HasRole(RoleViewAllSurveyResults))
	}
	return evaluate(All(checks...), s, e)
}

// CanExport decides data export. A full export needs the blanket export
// role; a scoped export also accepts the assigned-export role together
// with an explicit assignment.
func (en *Engine) CanExport(s *session.Session, e *engagement.Engagement, scope ExportScope) Decision {
	if scope == ExportAll {
		return evaluate(HasRole(RoleExportAllToCSV), s, e)
	}
	return evaluate(Any(
		HasRole(RoleExportAllToCSV),
		All(HasRole(RoleExportAssignedToCSV), Assigned()),
	), s, e)
}
