package branding

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/tenant-branding-service/internal/apperr"
	"github.com/teresa-solution/tenant-branding-service/internal/model"
)

// TenantWriter merges branding fields into a tenant, creating it if absent
type TenantWriter interface {
	UpsertBranding(ctx context.Context, id string, update model.BrandingUpdate) error
}

// Mutator is the only write path for tenant branding
type Mutator struct {
	tenants TenantWriter
}

func NewMutator(tenants TenantWriter) *Mutator {
	return &Mutator{tenants: tenants}
}

// Upsert writes the non-blank fields present in update and nothing else.
// Failures are returned as *apperr.PersistenceError; retrying is up to the caller.
func (m *Mutator) Upsert(ctx context.Context, tenantID string, update model.BrandingUpdate) error {
	if tenantID == "" {
		return apperr.Invalid("tenant_id", "tenant id is required")
	}
	update = update.Normalize()
	if update.Empty() {
		return nil
	}

	if err := m.tenants.UpsertBranding(ctx, tenantID, update); err != nil {
		log.Error().Err(err).Str("tenant_id", tenantID).Msg("Failed to update tenant branding")
		return &apperr.PersistenceError{Op: "tenant branding", Err: err}
	}
	log.Info().
		Str("tenant_id", tenantID).
		Bool("brand_name", update.BrandName != nil).
		Bool("logo_url", update.LogoURL != nil).
		Msg("Tenant branding updated")
	return nil
}
