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

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bcgov/met-gateway/internal/tenant"
)

// TenantRepository implements tenant.Repository as a metadata cache
type TenantRepository struct {
	db *DB
}

// NewTenantRepository creates a new tenant repository
func NewTenantRepository(db *DB) *TenantRepository {
	return &TenantRepository{db: db}
}

// GetBySlug retrieves cached tenant metadata
func (r *TenantRepository) GetBySlug(ctx context.Context, slug string) (*tenant.Tenant, error) {
	var t tenant.Tenant

	err := r.db.pool.QueryRow(ctx, `
		SELECT slug, name, title, short_name, description, logo_url, fetched_at
		FROM tenants
		WHERE slug = $1
	`, slug).Scan(
		&t.Slug, &t.Name, &t.Title, &t.ShortName, &t.Description, &t.LogoURL, &t.FetchedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tenant.ErrTenantNotFound
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}

	return &t, nil
}

// Upsert stores or refreshes cached tenant metadata
func (r *TenantRepository) Upsert(ctx context.Context, t *tenant.Tenant) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO tenants (slug, name, title, short_name, description, logo_url, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (slug) DO UPDATE SET
			name = EXCLUDED.name,
			title = EXCLUDED.title,
			short_name = EXCLUDED.short_name,
			description = EXCLUDED.description,
			logo_url = EXCLUDED.logo_url,
			fetched_at = EXCLUDED.fetched_at
	`,
		t.Slug, t.Name, t.Title, t.ShortName, t.Description, t.LogoURL, t.FetchedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert tenant: %w", err)
	}

	return nil
}

// List retrieves cached tenants with pagination
func (r *TenantRepository) List(ctx context.Context, limit, offset int) ([]*tenant.Tenant, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT slug, name, title, short_name, description, logo_url, fetched_at
		FROM tenants
		ORDER BY slug
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*tenant.Tenant
	for rows.Next() {
		var t tenant.Tenant
		if err := rows.Scan(&t.Slug, &t.Name, &t.Title, &t.ShortName, &t.Description, &t.LogoURL, &t.FetchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, &t)
	}

	return tenants, rows.Err()
}
