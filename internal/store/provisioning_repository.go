package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/teresa-solution/tenant-branding-service/internal/model"
)

// ProvisioningRepository persists provisioning sagas and their step log
type ProvisioningRepository struct {
	db DBTX
}

func NewProvisioningRepository(db DBTX) *ProvisioningRepository {
	return &ProvisioningRepository{db: db}
}

// SaveSaga inserts or replaces a saga row
func (r *ProvisioningRepository) SaveSaga(ctx context.Context, saga *model.ProvisioningSaga) error {
	completed, err := json.Marshal(saga.Completed)
	if err != nil {
		return err
	}
	saga.UpdatedAt = time.Now()
	if saga.CreatedAt.IsZero() {
		saga.CreatedAt = saga.UpdatedAt
	}
	query := `INSERT INTO provisioning_sagas (id, tenant_id, user_id, state, completed, error_message, pending_brand_name, pending_logo_url, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
              ON CONFLICT (id) DO UPDATE SET
                  tenant_id = EXCLUDED.tenant_id,
                  user_id = EXCLUDED.user_id,
                  state = EXCLUDED.state,
                  completed = EXCLUDED.completed,
                  error_message = EXCLUDED.error_message,
                  pending_brand_name = EXCLUDED.pending_brand_name,
                  pending_logo_url = EXCLUDED.pending_logo_url,
                  updated_at = EXCLUDED.updated_at`
	_, err = r.db.Exec(ctx, query, saga.ID, saga.TenantID, saga.UserID, string(saga.State), completed,
		saga.ErrorMessage, saga.Pending.BrandName, saga.Pending.LogoURL, saga.CreatedAt, saga.UpdatedAt)
	return err
}

// GetSaga retrieves a saga by ID, returning nil, nil when it does not exist
func (r *ProvisioningRepository) GetSaga(ctx context.Context, id string) (*model.ProvisioningSaga, error) {
	query := `SELECT id, tenant_id, user_id, state, completed, error_message, pending_brand_name, pending_logo_url, created_at, updated_at
              FROM provisioning_sagas WHERE id = $1`
	saga := &model.ProvisioningSaga{}
	var state string
	var completed []byte
	err := r.db.QueryRow(ctx, query, id).Scan(&saga.ID, &saga.TenantID, &saga.UserID, &state, &completed,
		&saga.ErrorMessage, &saga.Pending.BrandName, &saga.Pending.LogoURL, &saga.CreatedAt, &saga.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	saga.State = model.SagaState(state)
	if err := json.Unmarshal(completed, &saga.Completed); err != nil {
		return nil, err
	}
	return saga, nil
}

// CreateProvisioningLog records one step transition of a saga
func (r *ProvisioningRepository) CreateProvisioningLog(ctx context.Context, sagaID string, step model.ProvisioningStep, status string, details interface{}) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return err
	}
	query := `INSERT INTO tenant_provisioning_logs (saga_id, step, status, details, created_at)
              VALUES ($1, $2, $3, $4, $5)`
	_, err = r.db.Exec(ctx, query, sagaID, string(step), status, detailsJSON, time.Now())
	return err
}

// ListSagasByState returns up to limit sagas in state, oldest first
func (r *ProvisioningRepository) ListSagasByState(ctx context.Context, state model.SagaState, limit int) ([]*model.ProvisioningSaga, error) {
	query := `SELECT id FROM provisioning_sagas WHERE state = $1 ORDER BY created_at LIMIT $2`
	rows, err := r.db.Query(ctx, query, string(state), limit)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}

	sagas := make([]*model.ProvisioningSaga, 0, len(ids))
	for _, id := range ids {
		saga, err := r.GetSaga(ctx, id)
		if err != nil {
			return nil, err
		}
		if saga != nil {
			sagas = append(sagas, saga)
		}
	}
	return sagas, nil
}
