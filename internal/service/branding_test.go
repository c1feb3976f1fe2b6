package service

import (
	"context"
	"encoding/base64"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teresa-solution/tenant-branding-service/internal/apperr"
	"github.com/teresa-solution/tenant-branding-service/internal/auth"
	"github.com/teresa-solution/tenant-branding-service/internal/branding"
	"github.com/teresa-solution/tenant-branding-service/internal/identity"
	"github.com/teresa-solution/tenant-branding-service/internal/model"
	"github.com/teresa-solution/tenant-branding-service/internal/notify"
	"github.com/teresa-solution/tenant-branding-service/internal/store"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type memoryTenantStore struct {
	mu      sync.Mutex
	tenants map[string]*model.Tenant
}

func (m *memoryTenantStore) GetByID(ctx context.Context, id string) (*model.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *memoryTenantStore) UpsertBranding(ctx context.Context, id string, update model.BrandingUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		t = &model.Tenant{ID: id}
		m.tenants[id] = t
	}
	if update.BrandName != nil {
		t.BrandName = update.BrandName
	}
	if update.LogoURL != nil {
		t.LogoURL = update.LogoURL
	}
	return nil
}

type recordingProvisioner struct {
	req     model.AdminProvisioningRequest
	invoker model.InvokerCredentials
	err     error
}

func (p *recordingProvisioner) Provision(ctx context.Context, req model.AdminProvisioningRequest, invoker model.InvokerCredentials) (string, error) {
	p.req = req
	p.invoker = invoker
	if p.err != nil {
		return "", p.err
	}
	return "user-42", nil
}

type memoryPushTokens struct {
	tokens map[string]map[string]bool
}

func (m *memoryPushTokens) Save(ctx context.Context, userID, token string) (bool, error) {
	set, ok := m.tokens[userID]
	if !ok {
		return false, store.ErrNotFound
	}
	if set[token] {
		return false, nil
	}
	set[token] = true
	return true, nil
}

type recordingNotifier struct {
	reqs []notify.SendRequest
}

func (n *recordingNotifier) Notify(ctx context.Context, req notify.SendRequest) (string, error) {
	if req.RecipientID == "" {
		return "", apperr.Invalid("recipient_id", "recipient is required")
	}
	n.reqs = append(n.reqs, req)
	return "n-1", nil
}

type windowRecorder struct {
	actions []notify.WindowAction
}

func (w *windowRecorder) ShowNotification(title, body string, data map[string]string) error {
	return nil
}

func (w *windowRecorder) OnNotificationClick(cb notify.ClickHandler) (func(), error) {
	return func() {}, nil
}

func (w *windowRecorder) SendWindowControl(action notify.WindowAction) error {
	w.actions = append(w.actions, action)
	return nil
}

type grpcFixture struct {
	conn        *grpc.ClientConn
	tenants     *memoryTenantStore
	provisioner *recordingProvisioner
	notifier    *recordingNotifier
	window      *windowRecorder
	jwt         *auth.JWTManager
}

func newGRPCFixture(t *testing.T) *grpcFixture {
	t.Helper()
	f := &grpcFixture{
		tenants:     &memoryTenantStore{tenants: make(map[string]*model.Tenant)},
		provisioner: &recordingProvisioner{},
		notifier:    &recordingNotifier{},
		window:      &windowRecorder{},
		jwt:         auth.NewJWTManager("test-secret", "branding-test"),
	}
	svc := NewBrandingService(BrandingDeps{
		Resolver:    branding.NewResolver(f.tenants),
		Mutator:     branding.NewMutator(f.tenants),
		Provisioner: f.provisioner,
		Tokens:      &memoryPushTokens{tokens: map[string]map[string]bool{"u1": {}}},
		Notifier:    f.notifier,
		Desktops: func(deviceID string) notify.DesktopBridge {
			if deviceID == "desk-1" {
				return f.window
			}
			return nil
		},
		Auth: f.jwt,
	})

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterBrandingService(srv, svc)
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	f.conn = conn
	return f
}

func (f *grpcFixture) call(ctx context.Context, t *testing.T, method string, in map[string]interface{}) (*structpb.Struct, error) {
	t.Helper()
	req, err := structpb.NewStruct(in)
	require.NoError(t, err)
	out := new(structpb.Struct)
	err = f.conn.Invoke(ctx, "/"+BrandingServiceName+"/"+method, req, out)
	return out, err
}

// as returns a context carrying a bearer token for inv
func (f *grpcFixture) as(t *testing.T, inv model.InvokerCredentials) context.Context {
	t.Helper()
	token, err := f.jwt.Issue(inv, time.Minute)
	require.NoError(t, err)
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+token)
}

func TestGRPCGetBrandingDefaults(t *testing.T) {
	f := newGRPCFixture(t)

	out, err := f.call(context.Background(), t, "GetBranding", map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, model.DefaultBrandName, out.Fields["brand_name"].GetStringValue())
	assert.Equal(t, model.DefaultLogoURL, out.Fields["logo_url"].GetStringValue())
}

func TestGRPCUpdateBrandingMerges(t *testing.T) {
	f := newGRPCFixture(t)
	ctx := f.as(t, model.InvokerCredentials{UserID: "u0", TenantID: "acme"})

	_, err := f.call(ctx, t, "UpdateBranding", map[string]interface{}{"tenant_id": "acme", "logo_url": "https://cdn/logo.png"})
	require.NoError(t, err)
	out, err := f.call(ctx, t, "UpdateBranding", map[string]interface{}{"tenant_id": "acme", "brand_name": "Acme"})
	require.NoError(t, err)

	assert.Equal(t, "Acme", out.Fields["brand_name"].GetStringValue())
	assert.Equal(t, "https://cdn/logo.png", out.Fields["logo_url"].GetStringValue())

	_, err = f.call(ctx, t, "UpdateBranding", map[string]interface{}{"brand_name": "Orphan"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPCUpdateBrandingRequiresOwnTenant(t *testing.T) {
	f := newGRPCFixture(t)
	f.tenants.tenants["globex"] = &model.Tenant{ID: "globex", BrandName: model.StringPtr("Globex")}

	_, err := f.call(context.Background(), t, "UpdateBranding", map[string]interface{}{"tenant_id": "globex", "brand_name": "Hijacked"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx := f.as(t, model.InvokerCredentials{UserID: "u0", TenantID: "acme"})
	_, err = f.call(ctx, t, "UpdateBranding", map[string]interface{}{"tenant_id": "globex", "brand_name": "Hijacked"})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	assert.Equal(t, "Globex", *f.tenants.tenants["globex"].BrandName)
}

func TestGRPCCreateAdminUsesInvokerTenant(t *testing.T) {
	f := newGRPCFixture(t)
	token, err := f.jwt.Issue(model.InvokerCredentials{UserID: "u0", Email: "boss@acme.test", TenantID: "acme"}, time.Minute)
	require.NoError(t, err)
	ctx := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+token)

	out, err := f.call(ctx, t, "CreateAdmin", map[string]interface{}{
		"name":              "Asha",
		"business_name":     "Acme",
		"phone":             "9876543210",
		"login_method":      "phone",
		"logo_base64":       base64.StdEncoding.EncodeToString([]byte{1, 2}),
		"logo_filename":     "logo.png",
		"logo_content_type": "image/png",
	})
	require.NoError(t, err)
	assert.Equal(t, "user-42", out.Fields["user_id"].GetStringValue())
	assert.Equal(t, "acme", f.provisioner.invoker.TenantID)
	assert.Equal(t, model.LoginMethodPhone, f.provisioner.req.LoginMethod)
	require.NotNil(t, f.provisioner.req.Logo)
	assert.Equal(t, []byte{1, 2}, f.provisioner.req.Logo.Data)
}

func TestGRPCCreateAdminRejectsBadToken(t *testing.T) {
	f := newGRPCFixture(t)
	ctx := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer nope")

	_, err := f.call(ctx, t, "CreateAdmin", map[string]interface{}{"name": "Asha"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestGRPCCreateAdminErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code codes.Code
	}{
		{"validation", apperr.Invalid("email", "email is required for email login"), codes.InvalidArgument},
		{"duplicate", &apperr.ProvisioningError{Step: model.StepIdentity, Err: identity.ErrDuplicate}, codes.AlreadyExists},
		{"partial", &apperr.ProvisioningError{Step: model.StepBranding, Partial: true, UserID: "u1",
			Err: &apperr.PersistenceError{Op: "tenant branding"}}, codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGRPCFixture(t)
			f.provisioner.err = tt.err
			_, err := f.call(context.Background(), t, "CreateAdmin", map[string]interface{}{"name": "Asha"})
			assert.Equal(t, tt.code, status.Code(err))
		})
	}
}

func TestGRPCRegisterPushToken(t *testing.T) {
	f := newGRPCFixture(t)
	ctx := f.as(t, model.InvokerCredentials{UserID: "u1", TenantID: "acme"})

	out, err := f.call(ctx, t, "RegisterPushToken", map[string]interface{}{"user_id": "u1", "token": "tok"})
	require.NoError(t, err)
	assert.True(t, out.Fields["added"].GetBoolValue())

	out, err = f.call(ctx, t, "RegisterPushToken", map[string]interface{}{"user_id": "u1", "token": "tok"})
	require.NoError(t, err)
	assert.False(t, out.Fields["added"].GetBoolValue())

	ghost := f.as(t, model.InvokerCredentials{UserID: "ghost"})
	_, err = f.call(ghost, t, "RegisterPushToken", map[string]interface{}{"user_id": "ghost", "token": "tok"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = f.call(ctx, t, "RegisterPushToken", map[string]interface{}{"user_id": "u1"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPCRegisterPushTokenRequiresSameUser(t *testing.T) {
	f := newGRPCFixture(t)

	_, err := f.call(context.Background(), t, "RegisterPushToken", map[string]interface{}{"user_id": "u1", "token": "tok"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx := f.as(t, model.InvokerCredentials{UserID: "u2", TenantID: "acme"})
	_, err = f.call(ctx, t, "RegisterPushToken", map[string]interface{}{"user_id": "u1", "token": "tok"})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestGRPCSendNotification(t *testing.T) {
	f := newGRPCFixture(t)

	out, err := f.call(context.Background(), t, "SendNotification", map[string]interface{}{
		"recipient_id": "u1",
		"title":        "Task due",
		"task_id":      "t7",
	})
	require.NoError(t, err)
	assert.Equal(t, "n-1", out.Fields["notification_id"].GetStringValue())
	require.Len(t, f.notifier.reqs, 1)
	assert.Equal(t, "t7", f.notifier.reqs[0].TaskID)

	_, err = f.call(context.Background(), t, "SendNotification", map[string]interface{}{"title": "x"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPCSendWindowControl(t *testing.T) {
	f := newGRPCFixture(t)
	ctx := context.Background()

	_, err := f.call(ctx, t, "SendWindowControl", map[string]interface{}{"device_id": "desk-1", "action": "minimize"})
	require.NoError(t, err)
	assert.Equal(t, []notify.WindowAction{notify.WindowMinimize}, f.window.actions)

	_, err = f.call(ctx, t, "SendWindowControl", map[string]interface{}{"device_id": "browser", "action": "close"})
	assert.NoError(t, err, "no desktop shell is a silent no-op")

	_, err = f.call(ctx, t, "SendWindowControl", map[string]interface{}{"device_id": "desk-1", "action": "shake"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
