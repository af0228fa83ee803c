package onboarding

import (
	"errors"

	"github.com/directoryhub/onboarding-api/internal/domain"
	"github.com/directoryhub/onboarding-api/internal/ports/out/profilestore"
)

// Error is an application-layer error that can be mapped to an HTTP response.
type Error struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

const (
	CodeUnknownRole          = "UNKNOWN_ROLE"
	CodeValidation           = "VALIDATION_ERROR"
	CodeStepOutOfOrder       = "STEP_OUT_OF_ORDER"
	CodeRoleConflict         = "ROLE_CONFLICT"
	CodeRoleMismatch         = "ROLE_MISMATCH"
	CodeTransitionInProgress = "TRANSITION_IN_PROGRESS"
	CodeProfileNotFound      = "PROFILE_NOT_FOUND"
	CodeStorageUnavailable   = "STORAGE_UNAVAILABLE"
	CodeCompletionFailed     = "COMPLETION_FAILED"
)

func unknownRole(raw string, err error) *Error {
	return &Error{Status: 422, Code: CodeUnknownRole, Message: "unknown role", Details: map[string]any{"role": raw}, Err: err}
}

func outOfOrder(step domain.Step, msg string) *Error {
	return &Error{Status: 409, Code: CodeStepOutOfOrder, Message: msg, Details: map[string]any{"step": step.String()}}
}

func inProgress() *Error {
	return &Error{Status: 409, Code: CodeTransitionInProgress, Message: "another change to this profile is in progress"}
}

// storeError maps profile store failures to application errors. Unrecognized errors pass through.
func storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, profilestore.ErrNotFound):
		return &Error{Status: 404, Code: CodeProfileNotFound, Message: "profile not found", Err: err}
	case errors.Is(err, profilestore.ErrRoleConflict):
		return &Error{Status: 409, Code: CodeRoleConflict, Message: "a different role is already active; retire it before switching", Err: err}
	case errors.Is(err, profilestore.ErrRoleMismatch):
		return &Error{Status: 409, Code: CodeRoleMismatch, Message: "role changed while saving; review and try again", Err: err}
	case errors.Is(err, profilestore.ErrUnavailable):
		return &Error{Status: 503, Code: CodeStorageUnavailable, Message: "profile storage is unavailable", Err: err}
	case errors.Is(err, domain.ErrUnknownRole):
		return unknownRole("", err)
	default:
		return err
	}
}

// degradedError reports a degraded store read failure as unavailable storage.
func degradedError(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Status: 503, Code: CodeStorageUnavailable, Message: "pending profile storage is unavailable", Err: err}
}
