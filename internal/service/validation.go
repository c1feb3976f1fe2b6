package service

import (
	"strings"

	"github.com/teresa-solution/tenant-branding-service/internal/apperr"
	"github.com/teresa-solution/tenant-branding-service/internal/model"
)

// validateProvisioningRequest checks the admin form, stopping at the first defect
func validateProvisioningRequest(req *model.AdminProvisioningRequest, maxLogoBytes int64) error {
	if req.LoginMethod == "" {
		req.LoginMethod = model.LoginMethodEmail
	}
	if strings.TrimSpace(req.Name) == "" {
		return apperr.Invalid("name", "name is required")
	}
	if strings.TrimSpace(req.BusinessName) == "" {
		return apperr.Invalid("business_name", "business name is required")
	}
	if strings.TrimSpace(req.Phone) == "" {
		return apperr.Invalid("phone", "phone number is required")
	}
	if !req.LoginMethod.Valid() {
		return apperr.Invalid("login_method", "login method must be email or phone")
	}
	if req.LoginMethod == model.LoginMethodEmail {
		if strings.TrimSpace(req.Email) == "" {
			return apperr.Invalid("email", "email is required for email login")
		}
		if !isValidEmail(req.Email) {
			return apperr.Invalid("email", "invalid email format")
		}
	}
	if req.Logo != nil {
		if !strings.HasPrefix(req.Logo.ContentType, "image/") {
			return apperr.Invalid("logo", "logo must be an image")
		}
		if maxLogoBytes > 0 && int64(len(req.Logo.Data)) > maxLogoBytes {
			return apperr.Invalid("logo", "logo is too large")
		}
	}
	return nil
}

// isValidEmail performs a basic email validation
func isValidEmail(email string) bool {
	// Simple check: contains @ and .
	if len(email) < 3 || !strings.Contains(email, "@") || !strings.Contains(email, ".") {
		return false
	}
	return true
}
