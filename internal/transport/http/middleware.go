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
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/bcgov/met-gateway/internal/audit"
	"github.com/bcgov/met-gateway/internal/clientstate"
	"github.com/bcgov/met-gateway/internal/gate"
	"github.com/bcgov/met-gateway/internal/observability/logger"
	"github.com/bcgov/met-gateway/internal/session"
	"github.com/bcgov/met-gateway/internal/tenant"
)

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			slog.InfoContext(r.Context(), "http_request_start",
				logger.RequestID(middleware.GetReqID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.RemoteAddr(r.RemoteAddr),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request_end",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// SessionMiddleware attaches the session snapshot for the request's
// session cookie. A missing or expired session runs the silent
// handshake, which degrades to an unauthenticated session rather than
// failing. An authenticated session with a token close to expiry is
// refreshed opportunistically; refresh failure forces logout and the
// request proceeds unauthenticated.
func (h *Handler) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		sess := h.loadSession(r)
		if sess == nil {
			sess = h.identity.Initialize(ctx, nil)
			h.setSessionCookie(w, sess.ID)
			h.auditLogger.Log(ctx, audit.Event{
				Type:      audit.TypeSilentAuth,
				ActorID:   sess.UserID,
				IPAddress: getIPAddress(r),
			})
		} else if sess.Authenticated() && time.Until(sess.TokenExpiry) < h.refreshSkew {
			refreshed, err := h.identity.Refresh(ctx, sess.ID)
			if err != nil {
				h.metrics.ObserveRefresh("failed")
				h.auditLogger.Log(ctx, audit.Event{
					Type:      audit.TypeForcedLogout,
					ActorID:   sess.UserID,
					IPAddress: getIPAddress(r),
				})
				h.clearSessionCookie(w)
				sess = h.identity.Initialize(ctx, nil)
				h.setSessionCookie(w, sess.ID)
			} else {
				h.metrics.ObserveRefresh("refreshed")
				h.auditLogger.Log(ctx, audit.Event{
					Type:      audit.TypeTokenRefreshed,
					ActorID:   refreshed.UserID,
					IPAddress: getIPAddress(r),
				})
				sess = refreshed
			}
		}

		next.ServeHTTP(w, r.WithContext(withSession(ctx, sess)))
	})
}

func (h *Handler) loadSession(r *http.Request) *session.Session {
	cookie, err := r.Cookie(h.sessionConfig.CookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	sess, err := h.sessions.Get(r.Context(), cookie.Value)
	if err != nil {
		if !errors.Is(err, session.ErrSessionNotFound) && !errors.Is(err, session.ErrSessionExpired) {
			slog.WarnContext(r.Context(), "session lookup failed",
				logger.Component("http"), logger.Error(err))
		}
		return nil
	}
	return sess
}

// TenantFromPath resolves the tenant from the first URL path segment.
// Used on the SPA tree, where the browser address bar is the source of
// truth.
func (h *Handler) TenantFromPath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slug, ok := h.resolver.ResolveFromPath(r.URL.Path)
		if !ok {
			h.commitPlan(w, r, nil, tenant.ErrTenantNotFound, next)
			return
		}
		h.resolveTenant(w, r, slug, next)
	})
}

// TenantFromClient resolves the tenant for API requests, where the SPA
// carries the previously-resolved slug in a cookie (set at resolution
// time) or an explicit header.
func (h *Handler) TenantFromClient(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slug := r.Header.Get(tenantHeader)
		if slug == "" {
			if cookie, err := r.Cookie(clientstate.CookieTenant); err == nil {
				slug = cookie.Value
			}
		}
		if slug == "" {
			slug, _ = h.resolver.ResolveFromPath("/")
		}
		if slug == "" {
			h.commitPlan(w, r, nil, tenant.ErrTenantNotFound, next)
			return
		}
		h.resolveTenant(w, r, slug, next)
	})
}

func (h *Handler) resolveTenant(w http.ResponseWriter, r *http.Request, slug string, next http.Handler) {
	start := time.Now()
	t, err := h.tenants.Load(r.Context(), slug)
	h.metrics.ObserveTenantLoad(time.Since(start))
	if err != nil {
		h.metrics.ObserveTenantFailure()
	} else {
		h.clientCookies.SetTenant(w, t.Slug)
		h.auditLogger.Log(r.Context(), audit.Event{
			Type:      audit.TypeTenantResolved,
			TenantID:  t.Slug,
			IPAddress: getIPAddress(r),
		})
	}
	h.commitPlan(w, r, t, err, next)
}

// commitPlan computes the route plan from the combined session and
// tenant state and attaches both to the context. The plan is the single
// gating condition downstream; no handler branches on session or tenant
// readiness individually.
func (h *Handler) commitPlan(w http.ResponseWriter, r *http.Request, t *tenant.Tenant, tenantErr error, next http.Handler) {
	ctx := r.Context()
	sess := GetSession(ctx)
	plan := gate.Select(sess, t, tenantErr)

	if tenant.IsNotFound(tenantErr) {
		h.auditLogger.Log(ctx, audit.Event{
			Type:      audit.TypeTenantNotFound,
			Resource:  r.URL.Path,
			IPAddress: getIPAddress(r),
		})
	}
	if plan.Terminal() {
		h.metrics.ObservePlan(plan.String())
		actorID, tenantID := "", ""
		if sess != nil {
			actorID = sess.UserID
		}
		if t != nil {
			tenantID = t.Slug
		}
		h.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypePlanCommitted,
			TenantID: tenantID,
			ActorID:  actorID,
			Resource: r.URL.Path,
			Metadata: map[string]any{"plan": plan.String()},
		})
		slog.DebugContext(ctx, "route_plan_committed",
			logger.Component("http"), logger.Plan(plan.String()))
	}

	ctx = withTenant(ctx, t)
	ctx = withPlan(ctx, plan)
	next.ServeHTTP(w, r.WithContext(ctx))
}

// RequireAuthenticated blocks API routes that belong to the
// authenticated tree. The no-role shell and public tree get a uniform
// not-authorized error from the boundary, never partial data.
func (h *Handler) RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch GetPlan(r.Context()) {
		case gate.PlanAuthenticated:
			next.ServeHTTP(w, r)
		case gate.PlanResolving:
			respondError(w, http.StatusAccepted, "authorization data still loading")
		case gate.PlanTenantNotFound:
			respondError(w, http.StatusNotFound, "tenant not found")
		default:
			respondError(w, http.StatusForbidden, "not authorized")
		}
	})
}
