package auth

import (
	"errors"

	"github.com/teresa-solution/tenant-branding-service/internal/model"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("not permitted for this session")
)

// AuthorizeTenant allows inv to act on tenantID only when it belongs to that tenant
func AuthorizeTenant(inv model.InvokerCredentials, tenantID string) error {
	if inv.UserID == "" && inv.TenantID == "" {
		return ErrUnauthenticated
	}
	if inv.TenantID == "" || inv.TenantID != tenantID {
		return ErrForbidden
	}
	return nil
}

// AuthorizeUser allows inv to act on userID only when it is that user
func AuthorizeUser(inv model.InvokerCredentials, userID string) error {
	if inv.UserID == "" {
		if inv.TenantID == "" {
			return ErrUnauthenticated
		}
		return ErrForbidden
	}
	if inv.UserID != userID {
		return ErrForbidden
	}
	return nil
}
