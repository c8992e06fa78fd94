package model

import "fmt"

// Standard error codes.
const (
	ErrBadRequest           = "BAD_REQUEST"
	ErrUnauthorized         = "UNAUTHORIZED"
	ErrForbidden            = "FORBIDDEN"
	ErrNotFound             = "NOT_FOUND"
	ErrConflict             = "CONFLICT"
	ErrValidationFailed     = "VALIDATION_FAILED"
	ErrInvalidConfiguration = "INVALID_CONFIGURATION"
	ErrEmptyForm            = "EMPTY_FORM"
	ErrInvalidTransition    = "INVALID_TRANSITION"
	ErrRemoteEndpoint       = "REMOTE_ENDPOINT_ERROR"
	ErrInternalError        = "INTERNAL_ERROR"
)

// ErrorEnvelope is the standard error envelope returned by the service.
// It implements the error interface.
type ErrorEnvelope struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *ErrorEnvelope) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError describes a question-level validation error.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewBadRequestError returns a BAD_REQUEST error.
func NewBadRequestError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrBadRequest, Message: msg}
}

// NewUnauthorizedError returns an UNAUTHORIZED error.
func NewUnauthorizedError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrUnauthorized, Message: msg}
}

// NewForbiddenError returns a FORBIDDEN error.
func NewForbiddenError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrForbidden, Message: msg}
}

// NewNotFoundError returns a NOT_FOUND error.
func NewNotFoundError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrNotFound, Message: msg}
}

// NewConflictError returns a CONFLICT error. Raised on an etag mismatch; the
// caller must re-fetch and may retry.
func NewConflictError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrConflict, Message: msg}
}

// NewInvalidConfigurationError returns an INVALID_CONFIGURATION error for a
// structural schema violation. Never retried automatically.
func NewInvalidConfigurationError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrInvalidConfiguration, Message: msg}
}

// NewValidationFailedError returns a VALIDATION_FAILED error with
// question-level details.
func NewValidationFailedError(details []FieldError) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrValidationFailed,
		Message: "One or more answers are invalid",
		Details: details,
	}
}

// NewEmptyFormError returns an EMPTY_FORM error, raised when publish is
// attempted on a form with no active content.
func NewEmptyFormError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrEmptyForm, Message: msg}
}

// NewInvalidTransitionError returns an INVALID_TRANSITION error.
func NewInvalidTransitionError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrInvalidTransition, Message: msg}
}

// NewRemoteEndpointError returns a REMOTE_ENDPOINT_ERROR. The options source
// degrades to "no dynamic options available"; it never crashes the engine.
func NewRemoteEndpointError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrRemoteEndpoint, Message: msg}
}

// NewInternalError returns an INTERNAL_ERROR.
func NewInternalError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrInternalError,
		Message: "An unexpected error occurred",
	}
}
