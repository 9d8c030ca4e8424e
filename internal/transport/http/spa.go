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
	"io/fs"
	"net/http"
	"strings"

	"github.com/bcgov/met-gateway/internal/gate"
)

// notFoundPath is the SPA route that renders the tenant not-found page.
// It is a reserved path segment, so it never resolves to a tenant.
const notFoundPath = "/not-found"

// SPA serves the public-engagement front end from a static filesystem.
// Static assets are served directly, regardless of route plan, so the
// shell can always load its scripts; every other path falls back to
// index.html so client-side routing works on deep links. Tenant-scoped
// navigation is applied before the fallback: a bare tenant path visited
// by a signed-in user is redirected to the engagement list, and the
// router basename cookie is refreshed so the front end mounts under the
// right prefix.
func (h *Handler) SPA(staticFS fs.FS) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if staticFile(staticFS, r.URL.Path) {
			http.FileServer(http.FS(staticFS)).ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		sess := GetSession(ctx)
		t := GetTenant(ctx)
		plan := GetPlan(ctx)

		if plan == gate.PlanTenantNotFound {
			// The not-found page itself resolves to no tenant, so it
			// must be served here rather than redirected to, or the
			// redirect never terminates.
			if strings.TrimSuffix(r.URL.Path, "/") == notFoundPath {
				serveIndex(w, staticFS, http.StatusNotFound)
				return
			}
			http.Redirect(w, r, notFoundPath, http.StatusFound)
			return
		}
		if t != nil {
			h.clientCookies.SetBasename(w, "/"+t.Slug)
			if target, ok := h.resolver.LandingRedirect(t, sess, r.URL.Path); ok {
				http.Redirect(w, r, target, http.StatusFound)
				return
			}
		}

		serveIndex(w, staticFS, http.StatusOK)
	}
}

// staticFile reports whether the request path names a regular file in
// the static filesystem.
func staticFile(staticFS fs.FS, urlPath string) bool {
	path := strings.TrimPrefix(urlPath, "/")
	if path == "" {
		return false
	}
	f, err := staticFS.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	stat, err := f.Stat()
	return err == nil && !stat.IsDir()
}

func serveIndex(w http.ResponseWriter, staticFS fs.FS, status int) {
	content, err := fs.ReadFile(staticFS, "index.html")
	if err != nil {
		http.Error(w, "index.html not found", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(content)
}
