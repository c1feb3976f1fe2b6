package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/tenant-branding-service/internal/apperr"
	"github.com/teresa-solution/tenant-branding-service/internal/auth"
	"github.com/teresa-solution/tenant-branding-service/internal/identity"
	"github.com/teresa-solution/tenant-branding-service/internal/notify"
	"github.com/teresa-solution/tenant-branding-service/internal/store"
)

// Response is the envelope of every API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

type ErrorInfo struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

const (
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeDuplicateEntry   = "DUPLICATE_ENTRY"
	ErrCodePartialFailure   = "PARTIAL_FAILURE"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

var errorCodeToHTTPStatus = map[string]int{
	ErrCodeBadRequest:       http.StatusBadRequest,
	ErrCodeUnauthorized:     http.StatusUnauthorized,
	ErrCodeForbidden:        http.StatusForbidden,
	ErrCodeNotFound:         http.StatusNotFound,
	ErrCodeValidationFailed: http.StatusBadRequest,
	ErrCodeDuplicateEntry:   http.StatusConflict,
	ErrCodePartialFailure:   http.StatusInternalServerError,
	ErrCodeInternalError:    http.StatusInternalServerError,
}

func httpStatus(code string) int {
	if status, ok := errorCodeToHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(&Response{Success: true, Data: data}); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func respondError(w http.ResponseWriter, code, message string, details map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus(code))
	resp := &Response{
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// respondServiceError maps service errors onto the envelope
func respondServiceError(w http.ResponseWriter, err error) {
	var (
		verr *apperr.ValidationError
		prov *apperr.ProvisioningError
		perr *apperr.PersistenceError
	)
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		respondError(w, ErrCodeUnauthorized, "authentication required", nil)
	case errors.Is(err, auth.ErrForbidden):
		respondError(w, ErrCodeForbidden, "not permitted for this session", nil)
	case errors.As(err, &verr):
		respondError(w, ErrCodeValidationFailed, verr.Message, map[string]string{verr.Field: verr.Message})
	case errors.Is(err, notify.ErrInvalidWindowAction):
		respondError(w, ErrCodeBadRequest, err.Error(), nil)
	case errors.Is(err, identity.ErrDuplicate):
		respondError(w, ErrCodeDuplicateEntry, "An account with these details already exists", nil)
	case errors.Is(err, store.ErrNotFound):
		respondError(w, ErrCodeNotFound, "Resource not found", nil)
	case errors.As(err, &prov):
		log.Error().Err(err).Str("saga_id", prov.SagaID).Msg("Admin provisioning failed")
		code := ErrCodeInternalError
		if prov.Partial {
			code = ErrCodePartialFailure
		}
		respondError(w, code, prov.Error(), provisioningDetails(prov))
	case errors.As(err, &perr):
		log.Error().Err(err).Msg("Persistence failure")
		respondError(w, ErrCodeInternalError, "Failed to save changes", nil)
	default:
		log.Error().Err(err).Msg("Internal server error")
		respondError(w, ErrCodeInternalError, "Internal server error", nil)
	}
}

func provisioningDetails(e *apperr.ProvisioningError) map[string]string {
	completed := make([]string, 0, len(e.Completed))
	for _, step := range e.Completed {
		completed = append(completed, string(step))
	}
	details := map[string]string{
		"step":      string(e.Step),
		"completed": strings.Join(completed, ","),
		"saga_id":   e.SagaID,
	}
	if e.UserID != "" {
		details["user_id"] = e.UserID
	}
	return details
}
