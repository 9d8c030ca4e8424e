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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcgov/met-gateway/internal/audit"
	"github.com/bcgov/met-gateway/internal/authz"
	"github.com/bcgov/met-gateway/internal/clientstate"
	"github.com/bcgov/met-gateway/internal/engagement"
	"github.com/bcgov/met-gateway/internal/gate"
	"github.com/bcgov/met-gateway/internal/identity"
	"github.com/bcgov/met-gateway/internal/session"
	"github.com/bcgov/met-gateway/internal/tenant"
)

// fakeAPI serves the upstream endpoints the gateway consumes: tenant
// metadata and engagement details.
func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tenants/gdx", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"slug": "gdx", "name": "GDX"})
	})
	mux.HandleFunc("/api/engagements/5", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": 5, "status": "open", "survey_count": 1})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	return httptest.NewServer(mux)
}

func newTestHandler(t *testing.T, apiURL, idpURL string) (*Handler, session.Store) {
	t.Helper()
	store := session.NewMemoryStore()

	keyring, err := clientstate.NewKeyring("test-secret")
	require.NoError(t, err)

	h := NewHandler(Deps{
		Sessions: store,
		Identity: identity.NewClient(identity.Config{
			BaseURL:     idpURL,
			Realm:       "met",
			ClientID:    "met-web",
			RedirectURI: "https://gateway.test/auth/callback",
		}, store, identity.NewAPIAssignmentFetcher(apiURL)),
		Resolver:    tenant.NewResolver(""),
		Tenants:     tenant.NewLoader(apiURL, tenant.NewMemoryRepository(), time.Hour),
		TenantCache: tenant.NewMemoryRepository(),
		Engagements: engagement.NewClient(apiURL),
		Predicates:  authz.NewEngine(authz.DenyUnknownLifecycle),
		Audit:       audit.NewSlogLogger(),
		Keyring:     keyring,
		SessionConfig: SessionConfig{
			CookieName:     "met_session",
			CookiePath:     "/",
			CookieHTTPOnly: true,
		},
		DefaultLanguage: "en",
	})
	return h, store
}

// fakeIdP serves the provider token endpoint with a fixed token
// response.
func fakeIdP(t *testing.T, accessToken string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/realms/met/protocol/openid-connect/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  accessToken,
			"refresh_token": "refresh-2",
			"expires_in":    300,
		})
	})
	return httptest.NewServer(mux)
}

func mintAccessToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":          sub,
		"exp":          exp.Unix(),
		"client_roles": []string{"ACCESS_DASHBOARD"},
	})
	signed, err := tok.SignedString([]byte("test-key"))
	require.NoError(t, err)
	return signed
}

// recordingAudit captures audit events for assertions.
type recordingAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (l *recordingAudit) Log(_ context.Context, e audit.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *recordingAudit) byType(typ string) []audit.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []audit.Event
	for _, e := range l.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func cookieByName(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestSessionMiddleware_NewVisitor(t *testing.T) {
	api := fakeAPI(t)
	defer api.Close()
	// Unreachable IdP: the silent handshake fails open.
	h, _ := newTestHandler(t, api.URL, "http://127.0.0.1:0")

	var seen *session.Session
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetSession(r.Context())
	})

	rec := httptest.NewRecorder()
	h.SessionMiddleware(inner).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotNil(t, seen)
	assert.Equal(t, session.ReadinessUnauthenticated, seen.Readiness)

	c := cookieByName(rec.Result(), "met_session")
	require.NotNil(t, c, "a session cookie is set for the new visitor")
	assert.Equal(t, seen.ID, c.Value)
}

func TestSessionMiddleware_LoadsStoredSession(t *testing.T) {
	api := fakeAPI(t)
	defer api.Close()
	h, store := newTestHandler(t, api.URL, "http://127.0.0.1:0")

	stored := &session.Session{
		ID:          "s1",
		UserID:      "u1",
		Token:       "tok",
		TokenExpiry: time.Now().Add(time.Hour),
		Roles:       []string{"ACCESS_DASHBOARD"},
		Readiness:   session.ReadinessReady,
		ExpiresAt:   time.Now().Add(time.Hour),
	}
	require.NoError(t, store.Create(context.Background(), stored))

	var seen *session.Session
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetSession(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "met_session", Value: "s1"})
	h.SessionMiddleware(inner).ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, seen)
	assert.Equal(t, "u1", seen.UserID)
	assert.Equal(t, session.ReadinessReady, seen.Readiness)
}

// TestPurpose: Validates that a failed opportunistic refresh forces
// logout instead of serving a stale token.
// Scope: Unit Test
// Expected: The session cookie is replaced and the request proceeds
// with a fresh unauthenticated session.
func TestSessionMiddleware_RefreshFailureForcesLogout(t *testing.T) {
	api := fakeAPI(t)
	defer api.Close()
	h, store := newTestHandler(t, api.URL, "http://127.0.0.1:0")

	stored := &session.Session{
		ID:           "s1",
		UserID:       "u1",
		Token:        "tok",
		RefreshToken: "refresh-1",
		TokenExpiry:  time.Now().Add(30 * time.Second), // inside refresh skew
		Readiness:    session.ReadinessReady,
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	require.NoError(t, store.Create(context.Background(), stored))

	var seen *session.Session
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetSession(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "met_session", Value: "s1"})
	rec := httptest.NewRecorder()
	h.SessionMiddleware(inner).ServeHTTP(rec, req)

	require.NotNil(t, seen)
	assert.Equal(t, session.ReadinessUnauthenticated, seen.Readiness)
	assert.NotEqual(t, "s1", seen.ID)

	_, err := store.Get(context.Background(), "s1")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestTenantFromPath(t *testing.T) {
	api := fakeAPI(t)
	defer api.Close()
	h, _ := newTestHandler(t, api.URL, "http://127.0.0.1:0")

	ready := &session.Session{Readiness: session.ReadinessReady, Roles: []string{"x"}}

	run := func(sess *session.Session, path string) (gate.Plan, *tenant.Tenant, *httptest.ResponseRecorder) {
		var plan gate.Plan
		var resolved *tenant.Tenant
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			plan = GetPlan(r.Context())
			resolved = GetTenant(r.Context())
		})
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req = req.WithContext(withSession(req.Context(), sess))
		rec := httptest.NewRecorder()
		h.TenantFromPath(inner).ServeHTTP(rec, req)
		return plan, resolved, rec
	}

	t.Run("known slug with ready session", func(t *testing.T) {
		plan, resolved, rec := run(ready, "/gdx/engagements/5")
		assert.Equal(t, gate.PlanAuthenticated, plan)
		require.NotNil(t, resolved)
		assert.Equal(t, "gdx", resolved.Slug)
		require.NotNil(t, cookieByName(rec.Result(), clientstate.CookieTenant))
	})

	t.Run("unknown slug", func(t *testing.T) {
		plan, _, _ := run(ready, "/nope/engagements")
		assert.Equal(t, gate.PlanTenantNotFound, plan)
	})

	t.Run("tenant resolved but session still loading", func(t *testing.T) {
		plan, _, _ := run(&session.Session{Readiness: session.ReadinessPendingRoles}, "/gdx")
		assert.Equal(t, gate.PlanResolving, plan, "the plan must not commit before the session is terminal")
	})

	t.Run("no slug and no default", func(t *testing.T) {
		plan, _, _ := run(ready, "/")
		assert.Equal(t, gate.PlanTenantNotFound, plan)
	})
}

func TestTenantFromClient(t *testing.T) {
	api := fakeAPI(t)
	defer api.Close()
	h, _ := newTestHandler(t, api.URL, "http://127.0.0.1:0")

	ready := &session.Session{Readiness: session.ReadinessReady, Roles: []string{"x"}}

	run := func(prep func(*http.Request)) gate.Plan {
		var plan gate.Plan
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			plan = GetPlan(r.Context())
		})
		req := httptest.NewRequest(http.MethodGet, "/api/v1/bootstrap", nil)
		req = req.WithContext(withSession(req.Context(), ready))
		prep(req)
		h.TenantFromClient(inner).ServeHTTP(httptest.NewRecorder(), req)
		return plan
	}

	assert.Equal(t, gate.PlanAuthenticated, run(func(r *http.Request) {
		r.Header.Set(tenantHeader, "gdx")
	}), "header names the tenant")

	assert.Equal(t, gate.PlanAuthenticated, run(func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: clientstate.CookieTenant, Value: "gdx"})
	}), "cookie fallback")

	assert.Equal(t, gate.PlanTenantNotFound, run(func(r *http.Request) {}),
		"no slug anywhere and no default tenant")
}

func TestRequireAuthenticated(t *testing.T) {
	h, _ := newTestHandler(t, "http://127.0.0.1:0", "http://127.0.0.1:0")

	tests := []struct {
		plan gate.Plan
		want int
	}{
		{gate.PlanAuthenticated, http.StatusOK},
		{gate.PlanResolving, http.StatusAccepted},
		{gate.PlanTenantNotFound, http.StatusNotFound},
		{gate.PlanPublic, http.StatusForbidden},
		{gate.PlanNoRole, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.plan.String(), func(t *testing.T) {
			inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
			req := httptest.NewRequest(http.MethodGet, "/api/v1/thing", nil)
			req = req.WithContext(withPlan(req.Context(), tt.plan))
			rec := httptest.NewRecorder()
			h.RequireAuthenticated(inner).ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestSessionMiddleware_AuditsSilentAuth(t *testing.T) {
	api := fakeAPI(t)
	defer api.Close()
	h, _ := newTestHandler(t, api.URL, "http://127.0.0.1:0")
	auditRec := &recordingAudit{}
	h.auditLogger = auditRec

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	h.SessionMiddleware(inner).ServeHTTP(httptest.NewRecorder(),
		httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Len(t, auditRec.byType(audit.TypeSilentAuth), 1,
		"a new visitor's handshake is recorded")
}

// TestPurpose: Validates that a successful opportunistic refresh keeps
// the session and leaves an audit trail.
// Scope: Unit Test
// Expected: The session ID is unchanged, a token_refreshed event names
// the actor, and no forced logout is recorded.
func TestSessionMiddleware_AuditsTokenRefresh(t *testing.T) {
	api := fakeAPI(t)
	defer api.Close()
	idp := fakeIdP(t, mintAccessToken(t, "u1", time.Now().Add(time.Hour)))
	defer idp.Close()
	h, store := newTestHandler(t, api.URL, idp.URL)
	auditRec := &recordingAudit{}
	h.auditLogger = auditRec

	stored := &session.Session{
		ID:           "s1",
		UserID:       "u1",
		Token:        "tok",
		RefreshToken: "refresh-1",
		TokenExpiry:  time.Now().Add(30 * time.Second), // inside refresh skew
		Readiness:    session.ReadinessReady,
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	require.NoError(t, store.Create(context.Background(), stored))

	var seen *session.Session
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetSession(r.Context())
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "met_session", Value: "s1"})
	h.SessionMiddleware(inner).ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, seen)
	assert.Equal(t, "s1", seen.ID, "the session survives a successful refresh")

	events := auditRec.byType(audit.TypeTokenRefreshed)
	require.Len(t, events, 1)
	assert.Equal(t, "u1", events[0].ActorID)
	assert.Empty(t, auditRec.byType(audit.TypeForcedLogout))
}

func TestTenantFromPath_AuditsResolution(t *testing.T) {
	api := fakeAPI(t)
	defer api.Close()
	h, _ := newTestHandler(t, api.URL, "http://127.0.0.1:0")
	auditRec := &recordingAudit{}
	h.auditLogger = auditRec

	ready := &session.Session{Readiness: session.ReadinessReady, Roles: []string{"x"}, UserID: "u1"}

	run := func(path string) {
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req = req.WithContext(withSession(req.Context(), ready))
		h.TenantFromPath(inner).ServeHTTP(httptest.NewRecorder(), req)
	}

	run("/gdx/engagements")
	resolved := auditRec.byType(audit.TypeTenantResolved)
	require.Len(t, resolved, 1)
	assert.Equal(t, "gdx", resolved[0].TenantID)

	committed := auditRec.byType(audit.TypePlanCommitted)
	require.Len(t, committed, 1)
	assert.Equal(t, gate.PlanAuthenticated.String(), committed[0].Metadata["plan"])
	assert.Equal(t, "u1", committed[0].ActorID)

	run("/nope")
	require.Len(t, auditRec.byType(audit.TypeTenantNotFound), 1)
	assert.Len(t, auditRec.byType(audit.TypePlanCommitted), 2,
		"tenant not-found is a terminal plan and is committed too")
}
