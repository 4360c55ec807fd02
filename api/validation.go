// Package api exposes the duplicate finder over HTTP.
package api

import (
	"strings"

	"github.com/gcbaptista/go-dupfinder/model"
)

// ValidationError represents a validation error with field context
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult holds the result of validation operations
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// AddError adds a validation error to the result
func (vr *ValidationResult) AddError(field, message string) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, ValidationError{
		Field:   field,
		Message: message,
	})
}

// HasErrors returns true if there are validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// ValidateCredentialRequest validates an upstream credential hand-off
func ValidateCredentialRequest(req *CredentialRequest) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if req == nil {
		result.AddError("credential", "Credential is required")
		return result
	}

	if strings.TrimSpace(req.AccessToken) == "" {
		result.AddError("access_token", "Access token is required")
	} else if strings.TrimSpace(req.AccessToken) != req.AccessToken {
		result.AddError("access_token", "Access token cannot have leading or trailing whitespace")
	}

	if req.TokenType != "" && !strings.EqualFold(req.TokenType, "bearer") {
		result.AddError("token_type", "Only bearer tokens are supported")
	}

	return result
}

// ValidateJobStatus validates an optional job status filter
func ValidateJobStatus(status string) *ValidationResult {
	result := &ValidationResult{Valid: true}

	switch model.JobStatus(status) {
	case "", model.JobStatusPending, model.JobStatusRunning, model.JobStatusCompleted,
		model.JobStatusFailed, model.JobStatusCancelled:
	default:
		result.AddError("status", "Unknown job status '"+status+"'")
	}

	return result
}
