// Package apperr defines the error taxonomy shared by the service layers.
package apperr

import (
	"fmt"
	"strings"

	"github.com/teresa-solution/tenant-branding-service/internal/model"
)

// ValidationError is a user-correctable input defect on a single field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func Invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// PersistenceError is a failed backend write
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ProvisioningError wraps a downstream failure of the admin provisioning flow.
// Partial is set when the identity was created but a later step failed.
type ProvisioningError struct {
	Step      model.ProvisioningStep
	Completed []model.ProvisioningStep
	SagaID    string
	TenantID  string
	UserID    string
	Partial   bool
	Err       error
}

func (e *ProvisioningError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "provisioning failed at %s", e.Step)
	if e.Partial {
		fmt.Fprintf(&b, " after creating user %s", e.UserID)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *ProvisioningError) Unwrap() error {
	return e.Err
}
