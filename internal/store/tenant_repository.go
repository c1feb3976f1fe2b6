package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/teresa-solution/tenant-branding-service/internal/model"
)

// TenantRepository handles database operations for tenants
type TenantRepository struct {
	db    DBTX
	cache *TenantCache
}

// NewTenantRepository creates a TenantRepository. cache may be nil.
func NewTenantRepository(db DBTX, cache *TenantCache) *TenantRepository {
	return &TenantRepository{db: db, cache: cache}
}

// GetByID retrieves a tenant by ID, returning nil, nil when it does not exist
func (r *TenantRepository) GetByID(ctx context.Context, id string) (*model.Tenant, error) {
	var (
		gen       string
		cacheable bool
	)
	if r.cache != nil {
		if tenant, ok := r.cache.Get(ctx, id); ok {
			return tenant, nil
		}
		gen, cacheable = r.cache.Generation(ctx, id)
	}

	query := `SELECT id, name, brand_name, logo_url, created_at, updated_at
              FROM tenants WHERE id = $1`
	tenant := &model.Tenant{}
	err := r.db.QueryRow(ctx, query, id).Scan(&tenant.ID, &tenant.Name, &tenant.BrandName, &tenant.LogoURL, &tenant.CreatedAt, &tenant.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if cacheable {
		r.cache.Fill(ctx, tenant, gen)
	}
	return tenant, nil
}

// Ensure creates the tenant row if it does not exist yet. An existing row is left as is.
func (r *TenantRepository) Ensure(ctx context.Context, id, name string) error {
	query := `INSERT INTO tenants (id, name, created_at, updated_at)
              VALUES ($1, $2, $3, $3)
              ON CONFLICT (id) DO NOTHING`
	_, err := r.db.Exec(ctx, query, id, name, time.Now())
	return err
}

// UpsertBranding writes the present branding fields, creating the tenant if absent.
// Fields that are nil keep their stored value.
func (r *TenantRepository) UpsertBranding(ctx context.Context, id string, update model.BrandingUpdate) error {
	query := `INSERT INTO tenants (id, name, brand_name, logo_url, created_at, updated_at)
              VALUES ($1, '', $2, $3, $4, $4)
              ON CONFLICT (id) DO UPDATE SET
                  brand_name = COALESCE(EXCLUDED.brand_name, tenants.brand_name),
                  logo_url   = COALESCE(EXCLUDED.logo_url, tenants.logo_url),
                  updated_at = EXCLUDED.updated_at`
	if _, err := r.db.Exec(ctx, query, id, update.BrandName, update.LogoURL, time.Now()); err != nil {
		return err
	}

	// Invalidate cache
	if r.cache != nil {
		r.cache.Invalidate(ctx, id)
	}
	return nil
}
