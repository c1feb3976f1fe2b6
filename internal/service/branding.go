package service

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/tenant-branding-service/internal/apperr"
	"github.com/teresa-solution/tenant-branding-service/internal/auth"
	"github.com/teresa-solution/tenant-branding-service/internal/identity"
	"github.com/teresa-solution/tenant-branding-service/internal/model"
	"github.com/teresa-solution/tenant-branding-service/internal/notify"
	"github.com/teresa-solution/tenant-branding-service/internal/store"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const BrandingServiceName = "branding.v1.BrandingService"

type BrandingReader interface {
	Resolve(ctx context.Context, tenantID string) model.BrandingRecord
}

type AdminProvisioner interface {
	Provision(ctx context.Context, req model.AdminProvisioningRequest, invoker model.InvokerCredentials) (string, error)
}

type PushTokenSaver interface {
	Save(ctx context.Context, userID, token string) (bool, error)
}

type NotificationSender interface {
	Notify(ctx context.Context, req notify.SendRequest) (string, error)
}

type TokenValidator interface {
	Validate(token string) (model.InvokerCredentials, error)
}

// DesktopLocator returns the desktop bridge of a device, or nil when none is reachable
type DesktopLocator func(deviceID string) notify.DesktopBridge

// BrandingServer is the server API of branding.v1.BrandingService
type BrandingServer interface {
	GetBranding(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	UpdateBranding(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CreateAdmin(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	RegisterPushToken(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	SendNotification(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	SendWindowControl(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// BrandingService implements branding.v1.BrandingService
type BrandingService struct {
	resolver    BrandingReader
	mutator     BrandingWriter
	provisioner AdminProvisioner
	tokens      PushTokenSaver
	notifier    NotificationSender
	desktops    DesktopLocator
	auth        TokenValidator
}

// BrandingDeps collects the collaborators of BrandingService. Auth and
// Desktops are optional.
type BrandingDeps struct {
	Resolver    BrandingReader
	Mutator     BrandingWriter
	Provisioner AdminProvisioner
	Tokens      PushTokenSaver
	Notifier    NotificationSender
	Desktops    DesktopLocator
	Auth        TokenValidator
}

func NewBrandingService(deps BrandingDeps) *BrandingService {
	return &BrandingService{
		resolver:    deps.Resolver,
		mutator:     deps.Mutator,
		provisioner: deps.Provisioner,
		tokens:      deps.Tokens,
		notifier:    deps.Notifier,
		desktops:    deps.Desktops,
		auth:        deps.Auth,
	}
}

// RegisterBrandingService registers srv on s
func RegisterBrandingService(s grpc.ServiceRegistrar, srv BrandingServer) {
	s.RegisterService(&BrandingServiceDesc, srv)
}

// GetBranding resolves the branding of a tenant. It never fails.
func (s *BrandingService) GetBranding(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	rec := s.resolver.Resolve(ctx, stringField(req, "tenant_id"))
	return brandingResponse(rec)
}

// UpdateBranding merges the supplied branding fields into the tenant. With
// authentication configured the caller must belong to that tenant.
func (s *BrandingService) UpdateBranding(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	tenantID := stringField(req, "tenant_id")
	if tenantID == "" {
		return nil, status.Error(codes.InvalidArgument, "tenant_id is required")
	}
	if err := s.authorize(ctx, func(inv model.InvokerCredentials) error {
		return auth.AuthorizeTenant(inv, tenantID)
	}); err != nil {
		return nil, err
	}
	update := model.BrandingUpdate{
		BrandName: optionalStringField(req, "brand_name"),
		LogoURL:   optionalStringField(req, "logo_url"),
	}
	if err := s.mutator.Upsert(ctx, tenantID, update); err != nil {
		return nil, statusFromError(err)
	}
	return brandingResponse(s.resolver.Resolve(ctx, tenantID))
}

// CreateAdmin provisions an admin account. The caller's bearer token, when
// present, scopes the new admin to the caller's tenant.
func (s *BrandingService) CreateAdmin(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	invoker, err := s.invoker(ctx)
	if err != nil {
		return nil, err
	}

	in := model.AdminProvisioningRequest{
		Name:            stringField(req, "name"),
		BusinessName:    stringField(req, "business_name"),
		Phone:           stringField(req, "phone"),
		Email:           stringField(req, "email"),
		LoginMethod:     model.LoginMethod(stringField(req, "login_method")),
		CustomBrandName: stringField(req, "custom_brand_name"),
	}
	if encoded := stringField(req, "logo_base64"); encoded != "" {
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "logo_base64: invalid encoding")
		}
		in.Logo = &model.LogoFile{
			Filename:    stringField(req, "logo_filename"),
			ContentType: stringField(req, "logo_content_type"),
			Data:        data,
		}
	}

	userID, err := s.provisioner.Provision(ctx, in, invoker)
	if err != nil {
		return nil, statusFromError(err)
	}
	return structpb.NewStruct(map[string]interface{}{"user_id": userID})
}

// RegisterPushToken adds a delivery token to a user's token set
func (s *BrandingService) RegisterPushToken(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID := stringField(req, "user_id")
	token := stringField(req, "token")
	if userID == "" || token == "" {
		return nil, status.Error(codes.InvalidArgument, "user_id and token are required")
	}
	if err := s.authorize(ctx, func(inv model.InvokerCredentials) error {
		return auth.AuthorizeUser(inv, userID)
	}); err != nil {
		return nil, err
	}
	added, err := s.tokens.Save(ctx, userID, token)
	if err != nil {
		return nil, statusFromError(err)
	}
	return structpb.NewStruct(map[string]interface{}{"added": added})
}

// SendNotification records a notification and pushes it to the recipient
func (s *BrandingService) SendNotification(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := s.notifier.Notify(ctx, notify.SendRequest{
		RecipientID:  stringField(req, "recipient_id"),
		Title:        stringField(req, "title"),
		Body:         stringField(req, "body"),
		DeepLinkPath: stringField(req, "deep_link_path"),
		ProjectID:    stringField(req, "project_id"),
		TaskID:       stringField(req, "task_id"),
		MeetingID:    stringField(req, "meeting_id"),
		TargetTab:    stringField(req, "target_tab"),
		Icon:         stringField(req, "icon"),
	})
	if err != nil {
		return nil, statusFromError(err)
	}
	return structpb.NewStruct(map[string]interface{}{"notification_id": id})
}

// SendWindowControl forwards a window action to a desktop device. Devices
// without a reachable shell accept the call and do nothing.
func (s *BrandingService) SendWindowControl(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	deviceID := stringField(req, "device_id")
	if deviceID == "" {
		return nil, status.Error(codes.InvalidArgument, "device_id is required")
	}
	var bridge notify.DesktopBridge
	if s.desktops != nil {
		bridge = s.desktops(deviceID)
	}
	if err := notify.ControlWindow(bridge, stringField(req, "action")); err != nil {
		return nil, statusFromError(err)
	}
	return &structpb.Struct{}, nil
}

func (s *BrandingService) invoker(ctx context.Context) (model.InvokerCredentials, error) {
	if s.auth == nil {
		return model.InvokerCredentials{}, nil
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return model.InvokerCredentials{}, nil
	}
	values := md.Get("authorization")
	if len(values) == 0 {
		return model.InvokerCredentials{}, nil
	}
	token := strings.TrimSpace(strings.TrimPrefix(values[0], "Bearer "))
	inv, err := s.auth.Validate(token)
	if err != nil {
		return model.InvokerCredentials{}, status.Error(codes.Unauthenticated, "Invalid credentials")
	}
	return inv, nil
}

// authorize applies check to the caller when authentication is configured
func (s *BrandingService) authorize(ctx context.Context, check func(model.InvokerCredentials) error) error {
	if s.auth == nil {
		return nil
	}
	inv, err := s.invoker(ctx)
	if err != nil {
		return err
	}
	if err := check(inv); err != nil {
		return statusFromError(err)
	}
	return nil
}

// statusFromError maps service errors to gRPC status codes
func statusFromError(err error) error {
	var (
		verr *apperr.ValidationError
		prov *apperr.ProvisioningError
		perr *apperr.PersistenceError
	)
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, "Authentication required")
	case errors.Is(err, auth.ErrForbidden):
		return status.Error(codes.PermissionDenied, "Not permitted for this session")
	case errors.As(err, &verr):
		return status.Error(codes.InvalidArgument, verr.Error())
	case errors.Is(err, notify.ErrInvalidWindowAction):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, identity.ErrDuplicate):
		return status.Error(codes.AlreadyExists, "Account already exists")
	case errors.Is(err, store.ErrNotFound):
		return status.Error(codes.NotFound, "Not found")
	case errors.As(err, &prov):
		log.Error().Err(err).Str("saga_id", prov.SagaID).Bool("partial", prov.Partial).Msg("Admin provisioning failed")
		return status.Error(codes.Internal, prov.Error())
	case errors.As(err, &perr):
		log.Error().Err(err).Msg("Persistence failure")
		return status.Error(codes.Internal, "Failed to save changes")
	}
	log.Error().Err(err).Msg("Internal server error")
	return status.Error(codes.Internal, "Internal server error")
}

func brandingResponse(rec model.BrandingRecord) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		"brand_name": rec.BrandName,
		"logo_url":   rec.LogoURL,
	})
}

func stringField(s *structpb.Struct, key string) string {
	return strings.TrimSpace(s.GetFields()[key].GetStringValue())
}

// optionalStringField returns nil unless key holds a non-empty string
func optionalStringField(s *structpb.Struct, key string) *string {
	v := stringField(s, key)
	if v == "" {
		return nil
	}
	return &v
}

type brandingMethod func(s BrandingServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, call brandingMethod) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BrandingServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + BrandingServiceName + "/" + name,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(BrandingServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// BrandingServiceDesc describes branding.v1.BrandingService. Requests and
// responses are google.protobuf.Struct messages.
var BrandingServiceDesc = grpc.ServiceDesc{
	ServiceName: BrandingServiceName,
	HandlerType: (*BrandingServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetBranding", Handler: unaryHandler("GetBranding", BrandingServer.GetBranding)},
		{MethodName: "UpdateBranding", Handler: unaryHandler("UpdateBranding", BrandingServer.UpdateBranding)},
		{MethodName: "CreateAdmin", Handler: unaryHandler("CreateAdmin", BrandingServer.CreateAdmin)},
		{MethodName: "RegisterPushToken", Handler: unaryHandler("RegisterPushToken", BrandingServer.RegisterPushToken)},
		{MethodName: "SendNotification", Handler: unaryHandler("SendNotification", BrandingServer.SendNotification)},
		{MethodName: "SendWindowControl", Handler: unaryHandler("SendWindowControl", BrandingServer.SendWindowControl)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "branding/v1/branding.proto",
}
