// Package branding resolves, updates and observes per-tenant branding.
package branding

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/tenant-branding-service/internal/model"
	"github.com/teresa-solution/tenant-branding-service/internal/monitoring"
)

// TenantReader loads a tenant, returning nil, nil when it does not exist
type TenantReader interface {
	GetByID(ctx context.Context, id string) (*model.Tenant, error)
}

// Resolver turns an optional tenant ID into a fully populated BrandingRecord
type Resolver struct {
	tenants TenantReader
}

func NewResolver(tenants TenantReader) *Resolver {
	return &Resolver{tenants: tenants}
}

// Resolve never fails: a missing ID, a missing tenant, missing fields and
// lookup errors all fall back to the default branding, field by field.
func (r *Resolver) Resolve(ctx context.Context, tenantID string) model.BrandingRecord {
	if tenantID == "" {
		monitoring.BrandingLookups.WithLabelValues("no_tenant").Inc()
		return model.DefaultBranding()
	}

	tenant, err := r.tenants.GetByID(ctx, tenantID)
	if err != nil {
		log.Warn().Err(err).Str("tenant_id", tenantID).Msg("Tenant branding lookup failed, using defaults")
		monitoring.BrandingLookups.WithLabelValues("error").Inc()
		return model.DefaultBranding()
	}
	if tenant == nil {
		log.Debug().Str("tenant_id", tenantID).Msg("Tenant not found, using default branding")
		monitoring.BrandingLookups.WithLabelValues("not_found").Inc()
		return model.DefaultBranding()
	}

	monitoring.BrandingLookups.WithLabelValues("found").Inc()
	return tenant.Branding()
}
