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
	"errors"
	"time"
)

var ErrTenantNotFound = errors.New("tenant not found")

// Tenant is the active organizational namespace. Exactly one tenant is
// active per browser session; switching tenants is a navigation to a
// different base path, not an in-place mutation.
type Tenant struct {
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Title       string    `json:"title"`
	ShortName   string    `json:"short_name"`
	Description string    `json:"description"`
	LogoURL     string    `json:"logo_url"`
	FetchedAt   time.Time `json:"-"`
}

// Repository defines the interface for the tenant metadata cache.
type Repository interface {
	GetBySlug(ctx context.Context, slug string) (*Tenant, error)
	Upsert(ctx context.Context, t *Tenant) error
	List(ctx context.Context, limit, offset int) ([]*Tenant, error)
}
