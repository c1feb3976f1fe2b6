package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teresa-solution/tenant-branding-service/internal/model"
)

// setupTestDB connects to the database named by TEST_DATABASE_DSN, which must
// have the migrations applied. Tests are skipped when it is unset.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}
	ctx := context.Background()
	pool, err := NewPool(ctx, dsn, PoolConfig{})
	require.NoError(t, err)

	// Clear the database before each test
	_, err = pool.Exec(ctx, "TRUNCATE TABLE tenant_provisioning_logs, provisioning_sagas, notifications, users, tenants")
	require.NoError(t, err)

	t.Cleanup(pool.Close)
	return pool
}

func setupTestRepo(t *testing.T) (*TenantRepository, *miniredis.Miniredis) {
	pool := setupTestDB(t)
	s := miniredis.RunT(t)
	cache := NewTenantCache(redis.NewClient(&redis.Options{Addr: s.Addr()}), time.Hour)
	return NewTenantRepository(pool, cache), s
}

func TestTenantRepository_UpsertCreatesTenant(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()

	got, err := repo.GetByID(ctx, "fresh")
	require.NoError(t, err)
	assert.Nil(t, got)

	err = repo.UpsertBranding(ctx, "fresh", model.BrandingUpdate{BrandName: model.StringPtr("Fresh Co")})
	require.NoError(t, err)

	got, err = repo.GetByID(ctx, "fresh")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Fresh Co", *got.BrandName)
	assert.Nil(t, got.LogoURL)
}

func TestTenantRepository_UpsertMergesFields(t *testing.T) {
	repo, s := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Ensure(ctx, "acme", "Acme Interiors"))
	require.NoError(t, repo.UpsertBranding(ctx, "acme", model.BrandingUpdate{LogoURL: model.StringPtr("https://cdn/logo.png")}))

	// Warm the cache, then make sure the next write invalidates it
	_, err := repo.GetByID(ctx, "acme")
	require.NoError(t, err)
	assert.True(t, s.Exists("tenant:acme"))

	require.NoError(t, repo.UpsertBranding(ctx, "acme", model.BrandingUpdate{BrandName: model.StringPtr("Acme")}))
	assert.False(t, s.Exists("tenant:acme"))

	got, err := repo.GetByID(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme Interiors", got.Name)
	assert.Equal(t, "Acme", *got.BrandName)
	assert.Equal(t, "https://cdn/logo.png", *got.LogoURL)
}

func TestTenantRepository_EnsureKeepsExisting(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Ensure(ctx, "acme", "First"))
	require.NoError(t, repo.Ensure(ctx, "acme", "Second"))

	got, err := repo.GetByID(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "First", got.Name)
}

func TestUserRepository_CreateAndPushTokens(t *testing.T) {
	pool := setupTestDB(t)
	tenants := NewTenantRepository(pool, nil)
	users := NewUserRepository(pool)
	ctx := context.Background()

	require.NoError(t, tenants.Ensure(ctx, "acme", "Acme"))
	user := &model.User{
		TenantID:     "acme",
		Name:         "Rajesh Kumar",
		Email:        "rajesh@example.com",
		Phone:        "+91 9876543210",
		PasswordHash: []byte("hash"),
		Role:         model.RoleAdmin,
		AuthMethod:   model.LoginMethodEmail,
	}
	require.NoError(t, users.Create(ctx, user))
	assert.NotEmpty(t, user.ID)

	dup := *user
	assert.ErrorIs(t, users.Create(ctx, &dup), ErrDuplicateUser)

	added, err := users.AddPushToken(ctx, user.ID, "token-1")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = users.AddPushToken(ctx, user.ID, "token-1")
	require.NoError(t, err)
	assert.False(t, added)

	got, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"token-1"}, got.PushTokens)
	assert.Equal(t, "+91 9876543210", got.Phone)

	_, err = users.AddPushToken(ctx, uuid.New().String(), "token-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNotificationRepository_Listen(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewNotificationRepository(pool)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *model.Notification, 1)
	done := make(chan error, 1)
	go func() {
		done <- repo.Listen(ctx, func(n *model.Notification) { received <- n })
	}()

	// Give the listener time to issue LISTEN
	time.Sleep(200 * time.Millisecond)

	n := &model.Notification{
		UserID:   "user-1",
		Title:    "Task assigned",
		Body:     "You have a new task",
		DeepLink: model.DeepLink{Path: "/projects/p1", ProjectID: "p1", TargetTab: "plan"},
	}
	require.NoError(t, repo.Create(context.Background(), n))

	select {
	case got := <-received:
		assert.Equal(t, n.ID, got.ID)
		assert.Equal(t, "plan", got.DeepLink.TargetTab)
	case <-time.After(5 * time.Second):
		t.Fatal("notification not received")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestProvisioningRepository_SagaRoundTrip(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewProvisioningRepository(pool)
	ctx := context.Background()

	saga := &model.ProvisioningSaga{
		ID:        uuid.New().String(),
		TenantID:  "acme",
		State:     model.SagaStarted,
		Completed: []model.ProvisioningStep{model.StepValidate},
	}
	require.NoError(t, repo.SaveSaga(ctx, saga))
	require.NoError(t, repo.CreateProvisioningLog(ctx, saga.ID, model.StepValidate, "success", nil))

	saga.State = model.SagaCompleted
	saga.UserID = "user-1"
	saga.Completed = append(saga.Completed, model.StepIdentity)
	require.NoError(t, repo.SaveSaga(ctx, saga))

	got, err := repo.GetSaga(ctx, saga.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SagaCompleted, got.State)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, []model.ProvisioningStep{model.StepValidate, model.StepIdentity}, got.Completed)
}
