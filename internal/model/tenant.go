package model

import (
	"strings"
	"time"
)

const (
	DefaultBrandName = "Kydo Solutions"
	DefaultLogoURL   = "kydoicon.png"
)

// Tenant represents the tenants table
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	BrandName *string   `json:"brand_name,omitempty"`
	LogoURL   *string   `json:"logo_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BrandingRecord is the resolved, always fully populated branding of a tenant
type BrandingRecord struct {
	BrandName string `json:"brand_name"`
	LogoURL   string `json:"logo_url"`
}

// DefaultBranding returns the system branding used when a tenant has none
func DefaultBranding() BrandingRecord {
	return BrandingRecord{
		BrandName: DefaultBrandName,
		LogoURL:   DefaultLogoURL,
	}
}

// BrandingUpdate carries the branding fields to write. A nil field is left untouched.
type BrandingUpdate struct {
	BrandName *string `json:"brand_name,omitempty"`
	LogoURL   *string `json:"logo_url,omitempty"`
}

// Normalize trims the fields and drops the blank ones. A blank field means
// "not supplied", never "clear the stored value".
func (u BrandingUpdate) Normalize() BrandingUpdate {
	return BrandingUpdate{
		BrandName: nonBlank(u.BrandName),
		LogoURL:   nonBlank(u.LogoURL),
	}
}

func nonBlank(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// Empty reports whether the update carries no fields
func (u BrandingUpdate) Empty() bool {
	return u.BrandName == nil && u.LogoURL == nil
}

// Branding resolves the tenant's branding field by field against the defaults.
// A nil tenant resolves to the defaults.
func (t *Tenant) Branding() BrandingRecord {
	rec := DefaultBranding()
	if t == nil {
		return rec
	}
	if t.BrandName != nil && *t.BrandName != "" {
		rec.BrandName = *t.BrandName
	}
	if t.LogoURL != nil && *t.LogoURL != "" {
		rec.LogoURL = *t.LogoURL
	}
	return rec
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}
