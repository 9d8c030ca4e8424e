package tenant

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepository is an in-memory tenant metadata cache for
// deployments that run without Postgres.
type MemoryRepository struct {
	mu      sync.RWMutex
	tenants map[string]*Tenant
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{tenants: make(map[string]*Tenant)}
}

func (r *MemoryRepository) GetBySlug(ctx context.Context, slug string) (*Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tenants[slug]
	if !ok {
		return nil, ErrTenantNotFound
	}
	copied := *t
	return &copied, nil
}

func (r *MemoryRepository) Upsert(ctx context.Context, t *Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *t
	r.tenants[t.Slug] = &copied
	return nil
}

func (r *MemoryRepository) List(ctx context.Context, limit, offset int) ([]*Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	slugs := make([]string, 0, len(r.tenants))
	for slug := range r.tenants {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	var out []*Tenant
	for i, slug := range slugs {
		if i < offset {
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		copied := *r.tenants[slug]
		out = append(out, &copied)
	}
	return out, nil
}
