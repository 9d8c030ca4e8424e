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

package engagement

import (
	"errors"
	"time"
)

var ErrEngagementNotFound = errors.New("engagement not found")

// Lifecycle is the publication state of an engagement.
type Lifecycle string

const (
	// LifecycleDraft is an engagement still being authored.
	LifecycleDraft Lifecycle = "draft"

	// LifecycleScheduled is published with a future start date set by a
	// scheduler.
	LifecycleScheduled Lifecycle = "scheduled"

	// LifecycleUpcoming is published but the submission window has not
	// opened yet.
	LifecycleUpcoming Lifecycle = "upcoming"

	// LifecycleOpen is published with the submission window open.
	LifecycleOpen Lifecycle = "open"

	// LifecycleClosed is published with the submission window closed.
	LifecycleClosed Lifecycle = "closed"
)

// Known reports whether the lifecycle value is one this service
// understands. Unknown values come from newer upstream API versions.
func (l Lifecycle) Known() bool {
	switch l {
	case LifecycleDraft, LifecycleScheduled, LifecycleUpcoming, LifecycleOpen, LifecycleClosed:
		return true
	}
	return false
}

// SubmissionOpened reports whether the submission phase has been open at
// least once. Reports are only meaningful after that point.
func (l Lifecycle) SubmissionOpened() bool {
	return l == LifecycleOpen || l == LifecycleClosed
}

// Engagement represents a public consultation fetched from the upstream
// engagement API.
type Engagement struct {
	ID          int       `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Name        string    `json:"name"`
	Lifecycle   Lifecycle `json:"status"`
	SurveyCount int       `json:"survey_count"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasSurvey reports whether at least one survey is linked.
func (e *Engagement) HasSurvey() bool {
	return e.SurveyCount > 0
}
