// Package identity creates tenant-scoped user accounts.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/tenant-branding-service/internal/crypto"
	"github.com/teresa-solution/tenant-branding-service/internal/model"
	"github.com/teresa-solution/tenant-branding-service/internal/store"
)

// ErrDuplicate is returned when an account with the same login already exists
var ErrDuplicate = errors.New("identity already exists")

// UserStore persists user rows
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
}

// Profile describes the account to create
type Profile struct {
	TenantID   string
	Name       string
	Company    string
	Email      string
	Phone      string
	Role       string
	AuthMethod model.LoginMethod
	Credential string
}

// Provider creates identities backed by the users table
type Provider struct {
	users UserStore
}

func NewProvider(users UserStore) *Provider {
	return &Provider{users: users}
}

// Create stores a new identity with a hashed credential and returns its ID
func (p *Provider) Create(ctx context.Context, profile Profile) (string, error) {
	if profile.TenantID == "" {
		return "", errors.New("identity requires a tenant")
	}
	hash, err := crypto.HashCredential(profile.Credential)
	if err != nil {
		return "", fmt.Errorf("hash credential: %w", err)
	}

	role := profile.Role
	if role == "" {
		role = model.RoleAdmin
	}
	user := &model.User{
		TenantID:     profile.TenantID,
		Name:         profile.Name,
		Company:      profile.Company,
		Email:        profile.Email,
		Phone:        profile.Phone,
		PasswordHash: hash,
		Role:         role,
		AuthMethod:   profile.AuthMethod,
	}
	if err := p.users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicateUser) {
			return "", ErrDuplicate
		}
		return "", err
	}

	log.Info().
		Str("user_id", user.ID).
		Str("tenant_id", user.TenantID).
		Str("auth_method", string(user.AuthMethod)).
		Msg("Identity created")
	return user.ID, nil
}
