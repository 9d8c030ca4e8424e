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
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewRouter creates the gateway router. The API tree resolves the
// tenant from the client header or cookie; the SPA tree resolves it
// from the URL path so deep links name their own tenant.
func NewRouter(h *Handler, rateLimiter *RateLimiter, staticFS fs.FS) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(rateLimiter.Middleware)
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	// Login flow endpoints carry no session yet.
	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", h.Login)
		r.Get("/callback", h.Callback)
		r.With(h.SessionMiddleware).Post("/logout", h.Logout)
		r.With(h.SessionMiddleware).Get("/logout", h.Logout)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.SessionMiddleware)
		r.Use(h.TenantFromClient)

		r.Get("/bootstrap", h.Bootstrap)
		r.Get("/tenants", h.ListTenants)
		r.Put("/language", h.SetLanguage)
		r.Post("/polls/{pollID}/submissions", h.RecordPollSubmission)

		// Authorization-gated surface. Responses before readiness are
		// non-committal (202), never a denial.
		r.Group(func(r chi.Router) {
			r.Get("/engagements/{engagementID}/permissions", h.EngagementPermissions)
			r.Get("/engagements/{engagementID}/report", h.EngagementReport)
			r.With(h.RequireAuthenticated).Get("/engagements/{engagementID}/export", h.EngagementExport)
		})
	})

	// Everything else is the SPA shell.
	r.Group(func(r chi.Router) {
		r.Use(h.SessionMiddleware)
		r.Use(h.TenantFromPath)
		r.NotFound(h.SPA(staticFS))
	})

	return r
}
