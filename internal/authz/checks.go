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

import (
	"github.com/bcgov/met-gateway/internal/engagement"
	"github.com/bcgov/met-gateway/internal/session"
)

// Check is a single named authorization condition. Checks are pure: no
// I/O, no caching, deterministic given their inputs. Predicates are
// built by composing checks so new roles and lifecycle states slot in
// without rewriting call sites.
type Check func(s *session.Session, e *engagement.Engagement) bool

// All succeeds when every check succeeds.
func All(checks ...Check) Check {
	return func(s *session.Session, e *engagement.Engagement) bool {
		for _, c := range checks {
			if !c(s, e) {
				return false
			}
		}
		return true
	}
}

// Any succeeds when at least one check succeeds.
func Any(checks ...Check) Check {
	return func(s *session.Session, e *engagement.Engagement) bool {
		for _, c := range checks {
			if c(s, e) {
				return true
			}
		}
		return false
	}
}

// Not inverts a check.
func Not(c Check) Check {
	return func(s *session.Session, e *engagement.Engagement) bool {
		return !c(s, e)
	}
}

// HasRole succeeds when the session carries the role claim.
func HasRole(role string) Check {
	return func(s *session.Session, _ *engagement.Engagement) bool {
		return s.HasRole(role)
	}
}

// Assigned succeeds when the user is explicitly assigned to the
// engagement, independent of any role.
func Assigned() Check {
	return func(s *session.Session, e *engagement.Engagement) bool {
		return e != nil && s.AssignedTo(e.ID)
	}
}

// Authenticated succeeds for any signed-in user. This is the baseline
// access level for published content.
func Authenticated() Check {
	return func(s *session.Session, _ *engagement.Engagement) bool {
		return s.Authenticated()
	}
}

// InLifecycle succeeds when the engagement is in one of the given
// states.
func InLifecycle(states ...engagement.Lifecycle) Check {
	return func(_ *session.Session, e *engagement.Engagement) bool {
		if e == nil {
			return false
		}
		for _, st := range states {
			if e.Lifecycle == st {
				return true
			}
		}
		return false
	}
}

// HasSurvey succeeds when the engagement has at least one linked survey.
func HasSurvey() Check {
	return func(_ *session.Session, e *engagement.Engagement) bool {
		return e != nil && e.HasSurvey()
	}
}

// SubmissionOpened succeeds once the engagement's submission phase has
// been open at least once.
func SubmissionOpened() Check {
	return func(_ *session.Session, e *engagement.Engagement) bool {
		return e != nil && e.Lifecycle.SubmissionOpened()
	}
}
