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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"

	"github.com/bcgov/met-gateway/internal/observability/logger"
)

// Loader fetches tenant metadata once per slug. A failed load is
// terminal: the slug is remembered as not found and never refetched
// automatically, matching the Not-Found experience the front end renders
// for it. Concurrent loads of the same slug collapse into one request.
type Loader struct {
	baseURL  string
	http     *http.Client
	cache    Repository
	cacheTTL time.Duration

	group singleflight.Group

	mu     sync.RWMutex
	loaded map[string]*Tenant
	failed map[string]bool
}

// NewLoader creates a tenant loader against the upstream API, backed by
// the given metadata cache.
func NewLoader(baseURL string, cache Repository, cacheTTL time.Duration) *Loader {
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}
	return &Loader{
		baseURL:  baseURL,
		http:     &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport), Timeout: 10 * time.Second},
		cache:    cache,
		cacheTTL: cacheTTL,
		loaded:   make(map[string]*Tenant),
		failed:   make(map[string]bool),
	}
}

// Load resolves tenant metadata for a slug. Order of preference: memory,
// metadata cache (within TTL), upstream API. Failure marks the slug
// terminally unresolved.
func (l *Loader) Load(ctx context.Context, slug string) (*Tenant, error) {
	l.mu.RLock()
	if t, ok := l.loaded[slug]; ok {
		l.mu.RUnlock()
		return t, nil
	}
	if l.failed[slug] {
		l.mu.RUnlock()
		return nil, ErrTenantNotFound
	}
	l.mu.RUnlock()

	v, err, _ := l.group.Do(slug, func() (any, error) {
		return l.loadOnce(ctx, slug)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Tenant), nil
}

func (l *Loader) loadOnce(ctx context.Context, slug string) (*Tenant, error) {
	if l.cache != nil {
		if t, err := l.cache.GetBySlug(ctx, slug); err == nil && time.Since(t.FetchedAt) < l.cacheTTL {
			l.remember(t)
			return t, nil
		}
	}

	t, err := l.fetch(ctx, slug)
	if err != nil {
		l.mu.Lock()
		l.failed[slug] = true
		l.mu.Unlock()
		slog.WarnContext(ctx, "tenant resolution failed",
			logger.Component("tenant"), logger.TenantSlug(slug), logger.Error(err))
		return nil, ErrTenantNotFound
	}

	if l.cache != nil {
		if err := l.cache.Upsert(ctx, t); err != nil {
			slog.WarnContext(ctx, "failed to cache tenant metadata",
				logger.Component("tenant"), logger.TenantSlug(slug), logger.Error(err))
		}
	}
	l.remember(t)
	return t, nil
}

func (l *Loader) remember(t *Tenant) {
	l.mu.Lock()
	l.loaded[t.Slug] = t
	l.mu.Unlock()
}

// Forget clears the in-memory record for a slug, including a terminal
// failure. Operators call this after fixing tenant data; nothing in the
// request path does.
func (l *Loader) Forget(slug string) {
	l.mu.Lock()
	delete(l.loaded, slug)
	delete(l.failed, slug)
	l.mu.Unlock()
}

func (l *Loader) fetch(ctx context.Context, slug string) (*Tenant, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/tenants/%s", l.baseURL, slug), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build tenant request: %w", err)
	}

	resp, err := l.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tenant request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrTenantNotFound
	default:
		return nil, fmt.Errorf("tenant API returned status %d", resp.StatusCode)
	}

	var t Tenant
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return nil, fmt.Errorf("failed to decode tenant: %w", err)
	}
	if t.Slug == "" {
		t.Slug = slug
	}
	t.FetchedAt = time.Now()
	return &t, nil
}

// IsNotFound reports whether err is the terminal not-found condition.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTenantNotFound)
}
