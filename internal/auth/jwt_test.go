package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teresa-solution/tenant-branding-service/internal/model"
)

func TestJWTManager_RoundTrip(t *testing.T) {
	m := NewJWTManager("secret", "tenant-branding-service")
	inv := model.InvokerCredentials{UserID: "u1", Email: "a@example.com", TenantID: "acme"}

	token, err := m.Issue(inv, time.Hour)
	require.NoError(t, err)

	got, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, inv, got)
}

func TestJWTManager_Expired(t *testing.T) {
	m := NewJWTManager("secret", "tenant-branding-service")

	token, err := m.Issue(model.InvokerCredentials{UserID: "u1"}, -time.Minute)
	require.NoError(t, err)

	_, err = m.Validate(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestJWTManager_WrongSecretOrIssuer(t *testing.T) {
	token, err := NewJWTManager("secret", "issuer-a").Issue(model.InvokerCredentials{UserID: "u1"}, time.Hour)
	require.NoError(t, err)

	_, err = NewJWTManager("other", "issuer-a").Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewJWTManager("secret", "issuer-b").Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
