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
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bcgov/met-gateway/internal/audit"
	"github.com/bcgov/met-gateway/internal/authz"
	"github.com/bcgov/met-gateway/internal/clientstate"
	"github.com/bcgov/met-gateway/internal/engagement"
	"github.com/bcgov/met-gateway/internal/gate"
	"github.com/bcgov/met-gateway/internal/identity"
	"github.com/bcgov/met-gateway/internal/observability/logger"
	"github.com/bcgov/met-gateway/internal/observability/metrics"
	"github.com/bcgov/met-gateway/internal/session"
	"github.com/bcgov/met-gateway/internal/tenant"
)

const (
	tenantHeader = "X-Tenant-Id"

	stateCookie    = "met_auth_state"
	verifierCookie = "met_auth_verifier"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	sessions    session.Store
	identity    *identity.Client
	resolver    *tenant.Resolver
	tenants     *tenant.Loader
	tenantCache tenant.Repository
	engagements *engagement.Client
	predicates  *authz.Engine

	metrics       *metrics.Metrics
	auditLogger   audit.Logger
	validate      *validator.Validate
	keyring       *clientstate.Keyring
	clientCookies clientstate.Writer

	sessionConfig   SessionConfig
	defaultLanguage string
	refreshSkew     time.Duration

	baseCtx       context.Context
	refreshCancel sync.Map // session id -> context.CancelFunc
}

// SessionConfig holds session cookie configuration
type SessionConfig struct {
	CookieName     string
	CookieDomain   string
	CookiePath     string
	CookieSecure   bool
	CookieHTTPOnly bool
	CookieSameSite string
}

// Deps bundles handler dependencies.
type Deps struct {
	Sessions    session.Store
	Identity    *identity.Client
	Resolver    *tenant.Resolver
	Tenants     *tenant.Loader
	TenantCache tenant.Repository
	Engagements *engagement.Client
	Predicates  *authz.Engine
	Metrics     *metrics.Metrics
	Audit       audit.Logger
	Keyring     *clientstate.Keyring

	SessionConfig   SessionConfig
	DefaultLanguage string

	// BaseCtx bounds background refresh loops; cancelled on shutdown.
	BaseCtx context.Context
}

// NewHandler creates the gateway handler.
func NewHandler(d Deps) *Handler {
	baseCtx := d.BaseCtx
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Handler{
		sessions:    d.Sessions,
		identity:    d.Identity,
		resolver:    d.Resolver,
		tenants:     d.Tenants,
		tenantCache: d.TenantCache,
		engagements: d.Engagements,
		predicates:  d.Predicates,
		metrics:     d.Metrics,
		auditLogger: d.Audit,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		keyring:     d.Keyring,
		clientCookies: clientstate.Writer{
			Domain: d.SessionConfig.CookieDomain,
			Path:   "/",
			Secure: d.SessionConfig.CookieSecure,
		},
		sessionConfig:   d.SessionConfig,
		defaultLanguage: d.DefaultLanguage,
		refreshSkew:     2 * time.Minute,
		baseCtx:         baseCtx,
	}
}

// ----------------------------------------------------------------------------
// Auth flows
// ----------------------------------------------------------------------------

// Login starts the redirect-based login flow. The PKCE verifier and
// state are bound to the browser via short-lived cookies.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	req, err := h.identity.LoginURL()
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to build login redirect",
			logger.Component("http"), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "login unavailable")
		return
	}

	h.setFlowCookie(w, stateCookie, req.State)
	h.setFlowCookie(w, verifierCookie, req.Verifier)
	http.Redirect(w, r, req.URL, http.StatusFound)
}

// Callback completes the authorization-code flow at the well-known
// callback path.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	stored, err := r.Cookie(stateCookie)
	if err != nil || state == "" || stored.Value != state {
		respondError(w, http.StatusBadRequest, "invalid login state")
		return
	}
	verifier, err := r.Cookie(verifierCookie)
	if err != nil || verifier.Value == "" {
		respondError(w, http.StatusBadRequest, "missing login verifier")
		return
	}
	h.clearFlowCookie(w, stateCookie)
	h.clearFlowCookie(w, verifierCookie)

	sess, err := h.identity.Exchange(ctx, code, verifier.Value)
	if err != nil {
		slog.WarnContext(ctx, "code exchange failed",
			logger.Component("http"), logger.Error(err))
		respondError(w, http.StatusBadGateway, "login failed")
		return
	}

	h.setSessionCookie(w, sess.ID)
	h.startRefreshLoop(sess.ID)

	h.auditLogger.Log(ctx, audit.Event{
		Type:      audit.TypeLoginSuccess,
		ActorID:   sess.UserID,
		IPAddress: getIPAddress(r),
		UserAgent: r.UserAgent(),
	})

	target := "/"
	if slug, ok := h.resolver.ResolveFromPath("/"); ok {
		target = "/" + slug + "/engagements"
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// Logout revokes the stored session and sends the browser through the
// provider's front-channel logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := GetSession(ctx)

	if sess != nil {
		h.stopRefreshLoop(sess.ID)
		if err := h.identity.Logout(ctx, sess.ID); err != nil {
			slog.WarnContext(ctx, "failed to revoke session",
				logger.Component("http"), logger.SessionID(sess.ID), logger.Error(err))
		}
		h.auditLogger.Log(ctx, audit.Event{
			Type:      audit.TypeLogout,
			ActorID:   sess.UserID,
			IPAddress: getIPAddress(r),
		})
	}
	h.clearSessionCookie(w)

	http.Redirect(w, r, h.identity.LogoutURL(postLogoutRedirect(r)), http.StatusFound)
}

func postLogoutRedirect(r *http.Request) string {
	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}
	return scheme + "://" + r.Host + "/"
}

func (h *Handler) startRefreshLoop(sessionID string) {
	ctx, cancel := context.WithCancel(h.baseCtx)
	if prev, loaded := h.refreshCancel.Swap(sessionID, cancel); loaded {
		prev.(context.CancelFunc)()
	}
	go func() {
		defer h.stopRefreshLoop(sessionID)
		h.identity.RunRefreshLoop(ctx, sessionID)
	}()
}

func (h *Handler) stopRefreshLoop(sessionID string) {
	if cancel, loaded := h.refreshCancel.LoadAndDelete(sessionID); loaded {
		cancel.(context.CancelFunc)()
	}
}

// ----------------------------------------------------------------------------
// Bootstrap
// ----------------------------------------------------------------------------

type bootstrapResponse struct {
	Plan      string         `json:"plan"`
	Readiness string         `json:"readiness"`
	Tenant    *tenant.Tenant `json:"tenant,omitempty"`
	Roles     []string       `json:"roles,omitempty"`
	Redirect  string         `json:"redirect,omitempty"`
	Language  string         `json:"language"`
}

// Bootstrap reports the committed route plan for the requested SPA
// path. The front end mounts exactly the tree named here; role data is
// included only once authorization has finished loading.
func (h *Handler) Bootstrap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := GetSession(ctx)
	t := GetTenant(ctx)
	plan := GetPlan(ctx)

	resp := bootstrapResponse{
		Plan:      plan.String(),
		Readiness: session.ReadinessUnresolved.String(),
		Tenant:    t,
		Language:  h.language(r),
	}
	if sess != nil {
		resp.Readiness = sess.Readiness.String()
		if sess.Readiness == session.ReadinessReady {
			resp.Roles = sess.Roles
		}
	}
	if path := r.URL.Query().Get("path"); path != "" {
		if target, ok := h.resolver.LandingRedirect(t, sess, path); ok {
			resp.Redirect = target
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) language(r *http.Request) string {
	if cookie, err := r.Cookie(clientstate.CookieLanguage); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return h.defaultLanguage
}

// ----------------------------------------------------------------------------
// Authorization surface
// ----------------------------------------------------------------------------

type permissionsResponse struct {
	EngagementID int               `json:"engagement_id"`
	Decisions    map[string]string `json:"decisions"`
}

// EngagementPermissions evaluates every predicate for one engagement so
// the front end renders each control from a decision instead of
// re-deriving role logic.
func (h *Handler) EngagementPermissions(w http.ResponseWriter, r *http.Request) {
	h.boundary(func(w http.ResponseWriter, r *http.Request) error {
		ctx := r.Context()
		sess := GetSession(ctx)

		e, err := h.loadEngagement(r)
		if err != nil {
			return err
		}

		decisions := map[string]authz.Decision{
			"edit":            h.predicates.CanEdit(sess, e),
			"view_survey":     h.predicates.CanViewSurvey(sess, e),
			"view_report":     h.predicates.CanViewReport(sess, e, authz.ReportPublic),
			"view_report_int": h.predicates.CanViewReport(sess, e, authz.ReportInternal),
			"export_all":      h.predicates.CanExport(sess, e, authz.ExportAll),
			"export_assigned": h.predicates.CanExport(sess, e, authz.ExportAssigned),
		}

		resp := permissionsResponse{EngagementID: e.ID, Decisions: make(map[string]string, len(decisions))}
		for name, d := range decisions {
			h.metrics.ObservePredicate(name, d.String())
			slog.DebugContext(ctx, "predicate_evaluated",
				logger.Component("http"), logger.EngagementID(e.ID),
				logger.Predicate(name), logger.Decision(d.String()))
			resp.Decisions[name] = d.String()
		}

		respondJSON(w, http.StatusOK, resp)
		return nil
	})(w, r)
}

// EngagementReport is a guarded route loader: the predicate check runs
// before any data is returned and a denial propagates to the boundary.
func (h *Handler) EngagementReport(w http.ResponseWriter, r *http.Request) {
	h.boundary(func(w http.ResponseWriter, r *http.Request) error {
		ctx := r.Context()
		sess := GetSession(ctx)

		variant := authz.ReportVariant(r.URL.Query().Get("variant"))
		if variant == "" {
			variant = authz.ReportPublic
		}
		if variant != authz.ReportPublic && variant != authz.ReportInternal {
			respondError(w, http.StatusBadRequest, "unknown report variant")
			return nil
		}

		e, err := h.loadEngagement(r)
		if err != nil {
			return err
		}

		decision := h.predicates.CanViewReport(sess, e, variant)
		h.metrics.ObservePredicate("view_report", decision.String())
		if err := gate.Guard(decision); err != nil {
			return err
		}

		respondJSON(w, http.StatusOK, map[string]any{
			"engagement": e,
			"variant":    variant,
		})
		return nil
	})(w, r)
}

// EngagementExport guards data export the same way.
func (h *Handler) EngagementExport(w http.ResponseWriter, r *http.Request) {
	h.boundary(func(w http.ResponseWriter, r *http.Request) error {
		ctx := r.Context()
		sess := GetSession(ctx)

		scope := authz.ExportScope(r.URL.Query().Get("scope"))
		if scope == "" {
			scope = authz.ExportAssigned
		}
		if scope != authz.ExportAll && scope != authz.ExportAssigned {
			respondError(w, http.StatusBadRequest, "unknown export scope")
			return nil
		}

		e, err := h.loadEngagement(r)
		if err != nil {
			return err
		}

		decision := h.predicates.CanExport(sess, e, scope)
		h.metrics.ObservePredicate("export", decision.String())
		if err := gate.Guard(decision); err != nil {
			return err
		}

		respondJSON(w, http.StatusOK, map[string]any{
			"engagement_id": e.ID,
			"scope":         scope,
			"granted":       true,
		})
		return nil
	})(w, r)
}

func (h *Handler) loadEngagement(r *http.Request) (*engagement.Engagement, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "engagementID"))
	if err != nil {
		return nil, engagement.ErrEngagementNotFound
	}
	ctx := r.Context()
	sess := GetSession(ctx)
	t := GetTenant(ctx)

	token, tenantID := "", ""
	if sess != nil {
		token = sess.Token
	}
	if t != nil {
		tenantID = t.Slug
	}
	return h.engagements.Get(ctx, id, token, tenantID)
}

// boundary is the route-level error boundary. Guard errors surface as
// uniform responses; a denial is audited, never silently swallowed.
func (h *Handler) boundary(fn func(http.ResponseWriter, *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}

		ctx := r.Context()
		switch {
		case errors.Is(err, gate.ErrNotReady):
			respondJSON(w, http.StatusAccepted, map[string]string{"status": "loading"})
		case errors.Is(err, gate.ErrNotAuthorized):
			sess := GetSession(ctx)
			actorID := ""
			if sess != nil {
				actorID = sess.UserID
			}
			h.auditLogger.Log(ctx, audit.Event{
				Type:      audit.TypeAccessDenied,
				ActorID:   actorID,
				Resource:  r.URL.Path,
				IPAddress: getIPAddress(r),
			})
			respondError(w, http.StatusForbidden, "not authorized")
		case errors.Is(err, engagement.ErrEngagementNotFound):
			respondError(w, http.StatusNotFound, "engagement not found")
		case errors.Is(err, tenant.ErrTenantNotFound):
			respondError(w, http.StatusNotFound, "tenant not found")
		default:
			slog.ErrorContext(ctx, "request failed",
				logger.Component("http"), logger.Path(r.URL.Path), logger.Error(err))
			respondError(w, http.StatusInternalServerError, "internal error")
		}
	}
}

// ----------------------------------------------------------------------------
// Tenants, language, polls
// ----------------------------------------------------------------------------

// ListTenants serves the tenant picker from the metadata cache.
func (h *Handler) ListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.tenantCache.List(r.Context(), 100, 0)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list tenants",
			logger.Component("http"), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"tenants": tenants})
}

type languageRequest struct {
	LanguageID string `json:"language_id" validate:"required,bcp47_language_tag"`
}

// SetLanguage persists the selected language. A bad content load on the
// front end falls back to the default language, so this never fails the
// page.
func (h *Handler) SetLanguage(w http.ResponseWriter, r *http.Request) {
	var req languageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid language id")
		return
	}

	h.clientCookies.SetLanguage(w, req.LanguageID)
	respondJSON(w, http.StatusOK, map[string]string{"language_id": req.LanguageID})
}

// RecordPollSubmission marks a poll as submitted in the signed
// one-year cookie, preventing anonymous duplicate submissions.
func (h *Handler) RecordPollSubmission(w http.ResponseWriter, r *http.Request) {
	pollID, err := strconv.Atoi(chi.URLParam(r, "pollID"))
	if err != nil {
		respondError(w, http.StatusNotFound, "poll not found")
		return
	}

	var current string
	if cookie, err := r.Cookie(clientstate.CookieSubmittedPolls); err == nil {
		current = cookie.Value
	}

	for _, id := range h.keyring.VerifyPolls(current) {
		if id == pollID {
			respondError(w, http.StatusConflict, "poll already submitted")
			return
		}
	}

	h.clientCookies.SetSubmittedPolls(w, h.keyring.RecordPoll(current, pollID))
	respondJSON(w, http.StatusNoContent, nil)
}

// Health is the liveness endpoint.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ----------------------------------------------------------------------------
// Cookie helpers
// ----------------------------------------------------------------------------

func (h *Handler) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.sessionConfig.CookieName,
		Value:    sessionID,
		Domain:   h.sessionConfig.CookieDomain,
		Path:     h.sessionConfig.CookiePath,
		Secure:   h.sessionConfig.CookieSecure,
		HttpOnly: h.sessionConfig.CookieHTTPOnly,
		SameSite: sameSite(h.sessionConfig.CookieSameSite),
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.sessionConfig.CookieName,
		Value:    "",
		Path:     h.sessionConfig.CookiePath,
		MaxAge:   -1,
		HttpOnly: h.sessionConfig.CookieHTTPOnly,
	})
}

func (h *Handler) setFlowCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int((5 * time.Minute).Seconds()),
		Secure:   h.sessionConfig.CookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearFlowCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
}

func sameSite(mode string) http.SameSite {
	switch mode {
	case "Strict":
		return http.SameSiteStrictMode
	case "None":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// ----------------------------------------------------------------------------
// Response helpers
// ----------------------------------------------------------------------------

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

func getIPAddress(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
