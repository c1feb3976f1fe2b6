package model

import (
	"time"
)

// ProvisioningStep names one step of the admin provisioning saga
type ProvisioningStep string

const (
	StepValidate   ProvisioningStep = "validate"
	StepCredential ProvisioningStep = "credential"
	StepScope      ProvisioningStep = "scope"
	StepUpload     ProvisioningStep = "upload"
	StepTenant     ProvisioningStep = "tenant"
	StepIdentity   ProvisioningStep = "identity"
	StepBranding   ProvisioningStep = "branding"
)

// SagaState is the overall state of a provisioning saga
type SagaState string

const (
	SagaStarted   SagaState = "started"
	SagaCompleted SagaState = "completed"
	SagaPartial   SagaState = "partial"
	SagaFailed    SagaState = "failed"
)

// ProvisioningSaga tracks an admin provisioning run step by step
type ProvisioningSaga struct {
	ID           string             `json:"id"`
	TenantID     string             `json:"tenant_id"`
	UserID       string             `json:"user_id,omitempty"`
	State        SagaState          `json:"state"`
	Completed    []ProvisioningStep `json:"completed"`
	ErrorMessage string             `json:"error_message,omitempty"`
	// Branding still to be written when the saga is partial
	Pending      BrandingUpdate     `json:"pending_branding"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// Done reports whether step has completed
func (s *ProvisioningSaga) Done(step ProvisioningStep) bool {
	for _, c := range s.Completed {
		if c == step {
			return true
		}
	}
	return false
}
