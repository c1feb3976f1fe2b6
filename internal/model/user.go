package model

import (
	"time"
)

// LoginMethod is the admin's preferred way to sign in
type LoginMethod string

const (
	LoginMethodEmail LoginMethod = "email"
	LoginMethodPhone LoginMethod = "phone"
)

// Valid reports whether m is a known login method
func (m LoginMethod) Valid() bool {
	return m == LoginMethodEmail || m == LoginMethodPhone
}

const RoleAdmin = "admin"

// User represents the users table
type User struct {
	ID             string      `json:"id"`
	TenantID       string      `json:"tenant_id"`
	Name           string      `json:"name"`
	Company        string      `json:"company"`
	Email          string      `json:"email,omitempty"`
	Phone          string      `json:"-"` // Plaintext (transient, not stored in DB)
	EncryptedPhone []byte      `json:"-"` // Stored in DB
	PhoneIV        []byte      `json:"-"` // Stored in DB
	PasswordHash   []byte      `json:"-"`
	Role           string      `json:"role"`
	AuthMethod     LoginMethod `json:"auth_method"`
	PushTokens     []string    `json:"-"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// LogoFile is an uploaded logo image
type LogoFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// AdminProvisioningRequest is the input of the admin creation form
type AdminProvisioningRequest struct {
	Name            string      `json:"name"`
	BusinessName    string      `json:"business_name"`
	Phone           string      `json:"phone"`
	Email           string      `json:"email"`
	LoginMethod     LoginMethod `json:"login_method"`
	CustomBrandName string      `json:"custom_brand_name"`
	Logo            *LogoFile   `json:"-"`
}

// InvokerCredentials identifies the session that issues a request.
// The zero value means there is no active session.
type InvokerCredentials struct {
	UserID   string
	Email    string
	TenantID string
}
