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

package authz

// -----------------------------------------------------------------------------
// Role Name Constants
// These are the canonical role claim values issued by the identity
// provider. The gateway never defines roles; it only consumes them.
// -----------------------------------------------------------------------------

const (
	// RoleEditEngagement is the baseline edit role. Combined with an
	// explicit assignment it grants edit access regardless of lifecycle.
	RoleEditEngagement = "EDIT_ENGAGEMENT"

	// Lifecycle-specific edit roles. Each grants edit access only while
	// the engagement is in the matching lifecycle state.
	RoleEditDraftEngagement     = "EDIT_DRAFT_ENGAGEMENT"
	RoleEditScheduledEngagement = "EDIT_SCHEDULED_ENGAGEMENT"
	RoleEditUpcomingEngagement  = "EDIT_UPCOMING_ENGAGEMENT"
	RoleEditOpenEngagement      = "EDIT_OPEN_ENGAGEMENT"
	RoleEditClosedEngagement    = "EDIT_CLOSED_ENGAGEMENT"

	// RoleViewAllSurveys grants survey visibility on draft engagements
	// without an assignment.
	RoleViewAllSurveys = "VIEW_ALL_SURVEYS"

	// RoleAccessDashboard is the report-access role required for any
	// report variant.
	RoleAccessDashboard = "ACCESS_DASHBOARD"

	// RoleViewAllSurveyResults additionally gates the internal report
	// variant.
	RoleViewAllSurveyResults = "VIEW_ALL_SURVEY_RESULTS"

	// RoleExportAllToCSV grants export of any engagement's data.
	RoleExportAllToCSV = "EXPORT_ALL_TO_CSV"

	// RoleExportAssignedToCSV grants export only for engagements the user
	// is explicitly assigned to.
	RoleExportAssignedToCSV = "EXPORT_ASSIGNED_TO_CSV"
)

// UnknownLifecyclePolicy decides how edit predicates treat an engagement
// whose lifecycle state this service does not recognize. The upstream
// application permitted edits in that case, which looks unintentional;
// product has not confirmed the intended policy, so both behaviors are
// implemented and tests pin each. Deny is the shipped default.
type UnknownLifecyclePolicy bool

const (
	// DenyUnknownLifecycle treats unrecognized lifecycle states
	// conservatively.
	DenyUnknownLifecycle UnknownLifecyclePolicy = false

	// PermitUnknownLifecycle reproduces the upstream fall-through.
	PermitUnknownLifecycle UnknownLifecyclePolicy = true
)
