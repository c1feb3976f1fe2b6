package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/tenant-branding-service/internal/apperr"
	"github.com/teresa-solution/tenant-branding-service/internal/crypto"
	"github.com/teresa-solution/tenant-branding-service/internal/identity"
	"github.com/teresa-solution/tenant-branding-service/internal/model"
	"github.com/teresa-solution/tenant-branding-service/internal/monitoring"
)

type LogoUploader interface {
	UploadLogo(ctx context.Context, tenantID string, logo *model.LogoFile) (string, error)
}

type IdentityCreator interface {
	Create(ctx context.Context, profile identity.Profile) (string, error)
}

type TenantEnsurer interface {
	Ensure(ctx context.Context, id, name string) error
}

type BrandingWriter interface {
	Upsert(ctx context.Context, tenantID string, update model.BrandingUpdate) error
}

// SagaStore records provisioning sagas and their step log
type SagaStore interface {
	SaveSaga(ctx context.Context, saga *model.ProvisioningSaga) error
	CreateProvisioningLog(ctx context.Context, sagaID string, step model.ProvisioningStep, status string, details interface{}) error
}

// ProvisioningOptions tune the provisioning flow
type ProvisioningOptions struct {
	MaxLogoBytes     int64
	BrandingAttempts int
	BrandingBackoff  time.Duration
	RepairQueueSize  int
}

// ProvisioningService creates tenant-scoped admin accounts.
//
// The steps are not transactional. A logo upload failure aborts the run
// before any account exists. A branding write that still fails after its
// retries leaves the account in place, returns a partial ProvisioningError
// and hands the saga to a background repair worker.
type ProvisioningService struct {
	uploader   LogoUploader
	identities IdentityCreator
	tenants    TenantEnsurer
	branding   BrandingWriter
	sagas      SagaStore
	opts       ProvisioningOptions
	repairs    chan *model.ProvisioningSaga // Channel for background branding repair
}

// NewProvisioningService creates a new ProvisioningService. uploader may be
// nil, in which case requests carrying a logo fail at the upload step.
func NewProvisioningService(uploader LogoUploader, identities IdentityCreator, tenants TenantEnsurer,
	branding BrandingWriter, sagas SagaStore, opts ProvisioningOptions) *ProvisioningService {
	if opts.BrandingAttempts < 1 {
		opts.BrandingAttempts = 1
	}
	if opts.RepairQueueSize < 1 {
		opts.RepairQueueSize = 10
	}
	return &ProvisioningService{
		uploader:   uploader,
		identities: identities,
		tenants:    tenants,
		branding:   branding,
		sagas:      sagas,
		opts:       opts,
		repairs:    make(chan *model.ProvisioningSaga, opts.RepairQueueSize),
	}
}

// Provision runs the admin provisioning saga and returns the new user's ID
func (ps *ProvisioningService) Provision(ctx context.Context, req model.AdminProvisioningRequest, invoker model.InvokerCredentials) (string, error) {
	start := time.Now()
	defer func() { monitoring.ProvisioningDuration.Observe(time.Since(start).Seconds()) }()

	if err := validateProvisioningRequest(&req, ps.opts.MaxLogoBytes); err != nil {
		monitoring.AdminsProvisioned.WithLabelValues("invalid").Inc()
		return "", err
	}

	credential := crypto.DefaultCredential(req.Phone)

	// An admin created from an existing session joins that session's tenant
	tenantID := invoker.TenantID
	if tenantID == "" {
		tenantID = uuid.New().String()
	}

	saga := &model.ProvisioningSaga{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		State:     model.SagaStarted,
		Completed: []model.ProvisioningStep{model.StepValidate, model.StepCredential, model.StepScope},
	}
	ps.saveSaga(ctx, saga)
	ps.logStep(ctx, saga, model.StepScope, "success", map[string]interface{}{
		"tenant_id": tenantID,
		"inherited": invoker.TenantID != "",
	})

	var logoURL string
	if req.Logo != nil {
		if ps.uploader == nil {
			return "", ps.fail(ctx, saga, model.StepUpload, errors.New("object storage is not configured"))
		}
		url, err := ps.uploader.UploadLogo(ctx, tenantID, req.Logo)
		if err != nil {
			return "", ps.fail(ctx, saga, model.StepUpload, err)
		}
		logoURL = url
		ps.advance(ctx, saga, model.StepUpload, map[string]interface{}{"logo_url": logoURL})
	}

	if err := ps.tenants.Ensure(ctx, tenantID, strings.TrimSpace(req.BusinessName)); err != nil {
		return "", ps.fail(ctx, saga, model.StepTenant, err)
	}
	ps.advance(ctx, saga, model.StepTenant, nil)

	email := ""
	if req.LoginMethod == model.LoginMethodEmail {
		email = strings.TrimSpace(req.Email)
	}
	userID, err := ps.identities.Create(ctx, identity.Profile{
		TenantID:   tenantID,
		Name:       strings.TrimSpace(req.Name),
		Company:    strings.TrimSpace(req.BusinessName),
		Email:      email,
		Phone:      strings.TrimSpace(req.Phone),
		Role:       model.RoleAdmin,
		AuthMethod: req.LoginMethod,
		Credential: credential,
	})
	if err != nil {
		return "", ps.fail(ctx, saga, model.StepIdentity, err)
	}
	saga.UserID = userID
	ps.advance(ctx, saga, model.StepIdentity, map[string]interface{}{"user_id": userID})

	var update model.BrandingUpdate
	if name := strings.TrimSpace(req.CustomBrandName); name != "" {
		update.BrandName = &name
	}
	if logoURL != "" {
		update.LogoURL = &logoURL
	}
	if !update.Empty() {
		if err := ps.writeBranding(ctx, tenantID, update); err != nil {
			return "", ps.partial(ctx, saga, update, err)
		}
		ps.advance(ctx, saga, model.StepBranding, nil)
	}

	saga.State = model.SagaCompleted
	ps.saveSaga(ctx, saga)
	monitoring.AdminsProvisioned.WithLabelValues("success").Inc()
	log.Info().
		Str("saga_id", saga.ID).
		Str("tenant_id", tenantID).
		Str("user_id", userID).
		Msg("Admin provisioned")
	return userID, nil
}

// writeBranding retries the branding write with linear backoff
func (ps *ProvisioningService) writeBranding(ctx context.Context, tenantID string, update model.BrandingUpdate) error {
	var err error
	for attempt := 1; attempt <= ps.opts.BrandingAttempts; attempt++ {
		if err = ps.branding.Upsert(ctx, tenantID, update); err == nil {
			return nil
		}
		var verr *apperr.ValidationError
		if errors.As(err, &verr) || attempt == ps.opts.BrandingAttempts {
			break
		}
		log.Warn().Err(err).Str("tenant_id", tenantID).Int("attempt", attempt).Msg("Branding write failed, retrying")
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(time.Duration(attempt) * ps.opts.BrandingBackoff):
		}
	}
	return err
}

func (ps *ProvisioningService) advance(ctx context.Context, saga *model.ProvisioningSaga, step model.ProvisioningStep, details interface{}) {
	saga.Completed = append(saga.Completed, step)
	ps.saveSaga(ctx, saga)
	ps.logStep(ctx, saga, step, "success", details)
}

func (ps *ProvisioningService) fail(ctx context.Context, saga *model.ProvisioningSaga, step model.ProvisioningStep, err error) error {
	saga.State = model.SagaFailed
	saga.ErrorMessage = err.Error()
	ps.saveSaga(ctx, saga)
	ps.logStep(ctx, saga, step, "failed", map[string]interface{}{"error": err.Error()})
	monitoring.AdminsProvisioned.WithLabelValues("failed").Inc()
	log.Error().Err(err).Str("saga_id", saga.ID).Str("step", string(step)).Msg("Admin provisioning failed")

	return &apperr.ProvisioningError{
		Step:      step,
		Completed: append([]model.ProvisioningStep(nil), saga.Completed...),
		SagaID:    saga.ID,
		TenantID:  saga.TenantID,
		Err:       err,
	}
}

func (ps *ProvisioningService) partial(ctx context.Context, saga *model.ProvisioningSaga, pending model.BrandingUpdate, err error) error {
	saga.State = model.SagaPartial
	saga.ErrorMessage = err.Error()
	saga.Pending = pending
	ps.saveSaga(ctx, saga)
	ps.logStep(ctx, saga, model.StepBranding, "failed", map[string]interface{}{"error": err.Error()})
	monitoring.AdminsProvisioned.WithLabelValues("partial").Inc()
	monitoring.Alert("Branding write failed after admin creation", map[string]string{
		"saga_id":   saga.ID,
		"tenant_id": saga.TenantID,
		"user_id":   saga.UserID,
	})
	ps.QueueForRepair(saga)

	return &apperr.ProvisioningError{
		Step:      model.StepBranding,
		Completed: append([]model.ProvisioningStep(nil), saga.Completed...),
		SagaID:    saga.ID,
		TenantID:  saga.TenantID,
		UserID:    saga.UserID,
		Partial:   true,
		Err:       err,
	}
}

func (ps *ProvisioningService) saveSaga(ctx context.Context, saga *model.ProvisioningSaga) {
	if ps.sagas == nil {
		return
	}
	if err := ps.sagas.SaveSaga(ctx, saga); err != nil {
		log.Warn().Err(err).Str("saga_id", saga.ID).Msg("Failed to record provisioning saga")
	}
}

func (ps *ProvisioningService) logStep(ctx context.Context, saga *model.ProvisioningSaga, step model.ProvisioningStep, status string, details interface{}) {
	if ps.sagas == nil {
		return
	}
	if err := ps.sagas.CreateProvisioningLog(ctx, saga.ID, step, status, details); err != nil {
		log.Warn().Err(err).Str("saga_id", saga.ID).Str("step", string(step)).Msg("Failed to record provisioning step")
	}
}

// QueueForRepair hands a partial saga to the repair worker. A full queue
// drops the saga; it stays partial in the store and is picked up on restart.
func (ps *ProvisioningService) QueueForRepair(saga *model.ProvisioningSaga) {
	cp := *saga
	cp.Completed = append([]model.ProvisioningStep(nil), saga.Completed...)
	select {
	case ps.repairs <- &cp:
	default:
		log.Warn().Str("saga_id", saga.ID).Msg("Repair queue full, saga left partial")
	}
}

// PartialSagaLister lists stored sagas by state
type PartialSagaLister interface {
	ListSagasByState(ctx context.Context, state model.SagaState, limit int) ([]*model.ProvisioningSaga, error)
}

// ResumePartial queues stored partial sagas for repair and returns how many were queued
func (ps *ProvisioningService) ResumePartial(ctx context.Context, lister PartialSagaLister) (int, error) {
	sagas, err := lister.ListSagasByState(ctx, model.SagaPartial, cap(ps.repairs))
	if err != nil {
		return 0, err
	}
	for _, saga := range sagas {
		ps.QueueForRepair(saga)
	}
	if len(sagas) > 0 {
		log.Info().Int("count", len(sagas)).Msg("Resuming partial provisioning sagas")
	}
	return len(sagas), nil
}

// RunRepairWorker retries pending branding writes of partial sagas until ctx is done
func (ps *ProvisioningService) RunRepairWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case saga := <-ps.repairs:
			ps.repair(ctx, saga)
		}
	}
}

func (ps *ProvisioningService) repair(ctx context.Context, saga *model.ProvisioningSaga) {
	log.Info().Str("saga_id", saga.ID).Str("tenant_id", saga.TenantID).Msg("Repairing partial provisioning")
	if saga.Done(model.StepBranding) || saga.Pending.Empty() {
		saga.State = model.SagaCompleted
		ps.saveSaga(ctx, saga)
		return
	}
	if err := ps.writeBranding(ctx, saga.TenantID, saga.Pending); err != nil {
		log.Error().Err(err).Str("saga_id", saga.ID).Msg("Provisioning repair failed")
		return
	}
	saga.Pending = model.BrandingUpdate{}
	saga.ErrorMessage = ""
	saga.State = model.SagaCompleted
	ps.advance(ctx, saga, model.StepBranding, map[string]interface{}{"repaired": true})
}
