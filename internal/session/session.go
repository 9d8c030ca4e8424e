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

package session

import (
	"errors"
	"time"
)

// Domain errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrNotReady        = errors.New("authorization data not loaded")
)

// Readiness is the three-valued authorization readiness state.
// Role and assignment data on a Session are only trustworthy once the
// session reaches ReadinessReady; consumers must not branch on them
// before that point.
type Readiness int

const (
	// ReadinessUnresolved means the identity handshake has not finished.
	ReadinessUnresolved Readiness = iota

	// ReadinessPendingRoles means authentication succeeded but the
	// role/assignment fetch is still in flight.
	ReadinessPendingRoles

	// ReadinessReady means roles and assignments are loaded and safe to
	// branch on.
	ReadinessReady

	// ReadinessUnauthenticated means the handshake resolved with no
	// authenticated user. Terminal until an interactive login.
	ReadinessUnauthenticated
)

func (r Readiness) String() string {
	switch r {
	case ReadinessUnresolved:
		return "unresolved"
	case ReadinessPendingRoles:
		return "pending_roles"
	case ReadinessReady:
		return "ready"
	case ReadinessUnauthenticated:
		return "unauthenticated"
	}
	return "unknown"
}

// Terminal reports whether the readiness state is one the route gate may
// commit a route tree on.
func (r Readiness) Terminal() bool {
	return r == ReadinessReady || r == ReadinessUnauthenticated
}

// Session is the authentication/authorization snapshot for one browser
// session. It is mutated only by the identity client; every other
// component reads copies handed out by the store.
type Session struct {
	ID       string
	TenantID string
	UserID   string

	// Token is the current bearer credential, empty while unauthenticated.
	Token       string
	TokenExpiry time.Time

	// RefreshToken is the provider credential used for the silent
	// handshake and periodic refresh. Never leaves the gateway.
	RefreshToken string

	// Roles and AssignedEngagementIDs are only valid once Readiness is
	// ReadinessReady.
	Roles                 []string
	AssignedEngagementIDs []int

	Readiness Readiness

	IPAddress  string
	UserAgent  string
	CreatedAt  time.Time
	LastSeenAt time.Time
	ExpiresAt  time.Time
}

// Authenticated reports whether the handshake resolved with a user.
// Note this is true while roles are still loading; callers that branch
// on roles must check Readiness == ReadinessReady instead.
func (s *Session) Authenticated() bool {
	return s.Readiness == ReadinessPendingRoles || s.Readiness == ReadinessReady
}

// IsExpired checks if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// HasRole reports role membership. Only meaningful at ReadinessReady;
// callers guard on readiness first.
func (s *Session) HasRole(role string) bool {
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AssignedTo reports whether the user is explicitly assigned to the
// engagement, independent of role.
func (s *Session) AssignedTo(engagementID int) bool {
	for _, id := range s.AssignedEngagementIDs {
		if id == engagementID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to hand to readers while the identity
// client keeps mutating the original.
func (s *Session) Clone() *Session {
	cp := *s
	cp.Roles = append([]string(nil), s.Roles...)
	cp.AssignedEngagementIDs = append([]int(nil), s.AssignedEngagementIDs...)
	return &cp
}
