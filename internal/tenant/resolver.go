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

package tenant

import (
	"strings"

	"github.com/bcgov/met-gateway/internal/session"
)

// reservedSegments are first path segments that can never be tenant
// slugs.
var reservedSegments = map[string]bool{
	"api":       true,
	"auth":      true,
	"metrics":   true,
	"health":    true,
	"static":    true,
	"assets":    true,
	"not-found": true,
}

// Resolver derives the active tenant slug from the URL path. Resolution
// is pure; the navigation policy for bare tenant paths lives in
// LandingRedirect, kept separate so neither concern hides the other.
type Resolver struct {
	defaultSlug string
}

// NewResolver creates a resolver. defaultSlug is used by single-tenant
// deployments when the path carries no slug; empty means multi-tenant
// (no slug resolves to nothing).
func NewResolver(defaultSlug string) *Resolver {
	return &Resolver{defaultSlug: defaultSlug}
}

// ResolveFromPath parses the first path segment into a tenant slug.
// Reserved segments and empty paths fall back to the configured default;
// ok is false when no slug can be determined at all.
func (r *Resolver) ResolveFromPath(path string) (slug string, ok bool) {
	seg := firstSegment(path)
	if seg == "" || reservedSegments[seg] {
		if r.defaultSlug == "" {
			return "", false
		}
		return r.defaultSlug, true
	}
	return seg, true
}

// LandingRedirect decides whether a request should be redirected to the
// default authenticated landing page: a bare tenant path visited by an
// already-authenticated user goes straight to the engagement list.
func (r *Resolver) LandingRedirect(t *Tenant, sess *session.Session, path string) (string, bool) {
	if t == nil || sess == nil || sess.Readiness != session.ReadinessReady {
		return "", false
	}
	rest := strings.TrimPrefix(strings.Trim(path, "/"), t.Slug)
	if strings.Trim(rest, "/") != "" {
		return "", false
	}
	return "/" + t.Slug + "/engagements", true
}

func firstSegment(path string) string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return ""
	}
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		return trimmed[:i]
	}
	return trimmed
}
