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
	"errors"

	"github.com/bcgov/met-gateway/internal/authz"
)

// Guard errors. Route loaders let these propagate so the router's error
// boundary renders them uniformly; a denied check is never a silent
// redirect.
var (
	ErrNotAuthorized = errors.New("not authorized")
	ErrNotReady      = errors.New("authorization data still loading")
)

// Guard converts a predicate decision into a loader-level error. Allow
// passes; Deny surfaces ErrNotAuthorized; Unresolved surfaces
// ErrNotReady, which the error boundary renders as a loading state
// rather than a denial.
func Guard(d authz.Decision) error {
	switch d {
	case authz.DecisionAllow:
		return nil
	case authz.DecisionUnresolved:
		return ErrNotReady
	default:
		return ErrNotAuthorized
	}
}
