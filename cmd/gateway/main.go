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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bcgov/met-gateway/internal/audit"
	"github.com/bcgov/met-gateway/internal/authz"
	"github.com/bcgov/met-gateway/internal/clientstate"
	"github.com/bcgov/met-gateway/internal/config"
	"github.com/bcgov/met-gateway/internal/engagement"
	"github.com/bcgov/met-gateway/internal/identity"
	"github.com/bcgov/met-gateway/internal/observability/logger"
	"github.com/bcgov/met-gateway/internal/observability/metrics"
	"github.com/bcgov/met-gateway/internal/observability/tracing"
	"github.com/bcgov/met-gateway/internal/session"
	"github.com/bcgov/met-gateway/internal/store/postgres"
	redisstore "github.com/bcgov/met-gateway/internal/store/redis"
	"github.com/bcgov/met-gateway/internal/tenant"
	transportHTTP "github.com/bcgov/met-gateway/internal/transport/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
	slog.Info("starting met gateway")

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(cfg); err != nil {
			fmt.Printf("Migration failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	}
	defer tracer.Shutdown(context.Background())

	gatewayMetrics := metrics.New()
	auditLogger := audit.NewSlogLogger()

	// Session store and tenant cache backends
	var (
		sessions    session.Store
		tenantCache tenant.Repository
	)
	switch cfg.Session.Store {
	case "postgres":
		db, err := postgres.New(ctx, postgres.Config{
			Host:         cfg.Database.Host,
			Port:         cfg.Database.Port,
			User:         cfg.Database.User,
			Password:     cfg.Database.Password,
			Database:     cfg.Database.Database,
			SSLMode:      cfg.Database.SSLMode,
			MaxOpenConns: cfg.Database.MaxOpenConns,
			MaxIdleConns: cfg.Database.MaxIdleConns,
		})
		if err != nil {
			slog.Error("failed to connect to database", logger.Error(err))
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("connected to database")

		sessionRepo := postgres.NewSessionRepository(db)
		sessions = sessionRepo
		tenantCache = postgres.NewTenantRepository(db)

		// Expired sessions are swept hourly.
		go func() {
			ticker := time.NewTicker(1 * time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if _, err := sessionRepo.DeleteExpired(ctx); err != nil {
						slog.ErrorContext(ctx, "failed to delete expired sessions", logger.Error(err))
					}
				}
			}
		}()
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			slog.Error("failed to connect to redis", logger.Error(err))
			os.Exit(1)
		}
		defer client.Close()
		slog.Info("connected to redis")

		sessions = redisstore.NewSessionStore(client)
		tenantCache = tenant.NewMemoryRepository()
	default:
		sessions = session.NewMemoryStore()
		tenantCache = tenant.NewMemoryRepository()
	}

	// Identity client
	identityClient := identity.NewClient(identity.Config{
		BaseURL:         cfg.Identity.BaseURL,
		Realm:           cfg.Identity.Realm,
		ClientID:        cfg.Identity.ClientID,
		RedirectURI:     cfg.Identity.RedirectURI,
		RefreshInterval: cfg.Identity.RefreshInterval,
		MinValidity:     cfg.Identity.MinValidity,
		SessionLifetime: cfg.Session.Lifetime,
	}, sessions, identity.NewAPIAssignmentFetcher(cfg.API.BaseURL))

	// Tenant resolution
	resolver := tenant.NewResolver(cfg.Tenant.DefaultSlug)
	tenantLoader := tenant.NewLoader(cfg.API.BaseURL, tenantCache, cfg.Tenant.CacheTTL)

	// Authorization predicates
	predicates := authz.NewEngine(authz.DenyUnknownLifecycle)

	// Signed client-state cookies
	keyring, err := clientstate.NewKeyring(cfg.Session.Secret)
	if err != nil {
		slog.Error("failed to derive cookie keys", logger.Error(err))
		os.Exit(1)
	}

	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	handler := transportHTTP.NewHandler(transportHTTP.Deps{
		Sessions:    sessions,
		Identity:    identityClient,
		Resolver:    resolver,
		Tenants:     tenantLoader,
		TenantCache: tenantCache,
		Engagements: engagement.NewClient(cfg.API.BaseURL),
		Predicates:  predicates,
		Metrics:     gatewayMetrics,
		Audit:       auditLogger,
		Keyring:     keyring,
		SessionConfig: transportHTTP.SessionConfig{
			CookieName:     cfg.Session.CookieName,
			CookieDomain:   cfg.Session.CookieDomain,
			CookiePath:     cfg.Session.CookiePath,
			CookieSecure:   cfg.Session.CookieSecure,
			CookieHTTPOnly: cfg.Session.CookieHTTPOnly,
			CookieSameSite: cfg.Session.CookieSameSite,
		},
		DefaultLanguage: cfg.Tenant.DefaultLanguage,
		BaseCtx:         ctx,
	})

	router := transportHTTP.NewRouter(handler, rateLimiter, os.DirFS(cfg.Server.StaticDir))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info(fmt.Sprintf("listening on %s", addr), logger.Component("server"))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
}

func runMigrate(cfg *config.Config) error {
	ctx := context.Background()
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		return err
	}
	slog.Info("migrations applied")
	return nil
}
