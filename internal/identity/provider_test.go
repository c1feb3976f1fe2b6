package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teresa-solution/tenant-branding-service/internal/crypto"
	"github.com/teresa-solution/tenant-branding-service/internal/model"
	"github.com/teresa-solution/tenant-branding-service/internal/store"
)

type fakeUsers struct {
	created []*model.User
	err     error
}

func (f *fakeUsers) Create(ctx context.Context, user *model.User) error {
	if f.err != nil {
		return f.err
	}
	user.ID = "user-1"
	f.created = append(f.created, user)
	return nil
}

func TestProvider_Create(t *testing.T) {
	users := &fakeUsers{}
	p := NewProvider(users)

	id, err := p.Create(context.Background(), Profile{
		TenantID:   "acme",
		Name:       "Rajesh Kumar",
		Company:    "Kydo Interiors",
		Phone:      "+91 9876543210",
		AuthMethod: model.LoginMethodPhone,
		Credential: "543210",
	})
	require.NoError(t, err)
	assert.Equal(t, "user-1", id)

	require.Len(t, users.created, 1)
	u := users.created[0]
	assert.Equal(t, "acme", u.TenantID)
	assert.Equal(t, model.RoleAdmin, u.Role)
	assert.True(t, crypto.CheckCredential(u.PasswordHash, "543210"))
}

func TestProvider_CreateErrors(t *testing.T) {
	_, err := NewProvider(&fakeUsers{}).Create(context.Background(), Profile{Credential: "x"})
	assert.Error(t, err)

	_, err = NewProvider(&fakeUsers{err: store.ErrDuplicateUser}).Create(context.Background(), Profile{TenantID: "t", Credential: "x"})
	assert.ErrorIs(t, err, ErrDuplicate)

	cause := errors.New("boom")
	_, err = NewProvider(&fakeUsers{err: cause}).Create(context.Background(), Profile{TenantID: "t", Credential: "x"})
	assert.ErrorIs(t, err, cause)
}
