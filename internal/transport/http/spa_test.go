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
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcgov/met-gateway/internal/clientstate"
	"github.com/bcgov/met-gateway/internal/session"
)

func testStaticFS() fstest.MapFS {
	return fstest.MapFS{
		"index.html":    &fstest.MapFile{Data: []byte(`<!doctype html><div id="root"></div>`)},
		"assets/app.js": &fstest.MapFile{Data: []byte(`console.log("met")`)},
	}
}

// TestPurpose: Validates that an unresolvable tenant terminates at the
// not-found page instead of redirecting forever.
// Scope: Unit Test
// Expected: An unknown slug redirects to /not-found exactly once, and
// /not-found itself answers with the application shell and status 404.
func TestSPA_TenantNotFound(t *testing.T) {
	api := fakeAPI(t)
	defer api.Close()
	// Multi-tenant mode: no default slug configured on the resolver.
	h, _ := newTestHandler(t, api.URL, "http://127.0.0.1:0")

	chain := h.TenantFromPath(h.SPA(testStaticFS()))

	run := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req = req.WithContext(withSession(req.Context(),
			&session.Session{Readiness: session.ReadinessUnauthenticated}))
		rec := httptest.NewRecorder()
		chain.ServeHTTP(rec, req)
		return rec
	}

	t.Run("unknown slug redirects to the not-found page", func(t *testing.T) {
		rec := run("/nope/engagements")
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/not-found", rec.Header().Get("Location"))
	})

	t.Run("not-found page is served, not redirected", func(t *testing.T) {
		rec := run("/not-found")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Empty(t, rec.Header().Get("Location"))
		assert.Contains(t, rec.Body.String(), `<div id="root">`,
			"the shell must render so the front end can show its not-found route")
	})

	t.Run("trailing slash", func(t *testing.T) {
		rec := run("/not-found/")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Empty(t, rec.Header().Get("Location"))
	})
}

func TestSPA_LandingRedirect(t *testing.T) {
	api := fakeAPI(t)
	defer api.Close()
	h, _ := newTestHandler(t, api.URL, "http://127.0.0.1:0")

	ready := &session.Session{
		UserID:      "u1",
		Token:       "tok",
		TokenExpiry: time.Now().Add(time.Hour),
		Roles:       []string{"ACCESS_DASHBOARD"},
		Readiness:   session.ReadinessReady,
	}

	chain := h.TenantFromPath(h.SPA(testStaticFS()))
	req := httptest.NewRequest(http.MethodGet, "/gdx", nil)
	req = req.WithContext(withSession(req.Context(), ready))
	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/gdx/engagements", rec.Header().Get("Location"))
	require.NotNil(t, cookieByName(rec.Result(), clientstate.CookieBasename))
}

func TestSPA_StaticAndFallback(t *testing.T) {
	api := fakeAPI(t)
	defer api.Close()
	h, _ := newTestHandler(t, api.URL, "http://127.0.0.1:0")

	chain := h.TenantFromPath(h.SPA(testStaticFS()))

	run := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req = req.WithContext(withSession(req.Context(),
			&session.Session{Readiness: session.ReadinessUnauthenticated}))
		rec := httptest.NewRecorder()
		chain.ServeHTTP(rec, req)
		return rec
	}

	t.Run("asset is served even without a resolved tenant", func(t *testing.T) {
		rec := run("/assets/app.js")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "console.log")
	})

	t.Run("deep link falls back to the shell", func(t *testing.T) {
		rec := run("/gdx/engagements/5/view")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `<div id="root">`)
	})
}
