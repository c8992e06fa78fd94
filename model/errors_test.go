package model

import "testing"

func TestErrorEnvelope_Error(t *testing.T) {
	e := &ErrorEnvelope{Code: ErrNotFound, Message: "Form not found"}
	want := "NOT_FOUND: Form not found"
	if got := e.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestErrorEnvelope_implements_error(t *testing.T) {
	var _ error = (*ErrorEnvelope)(nil)
}

func TestNewNotFoundError(t *testing.T) {
	e := NewNotFoundError("resource missing")
	if e.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", e.Code, ErrNotFound)
	}
	if e.Message != "resource missing" {
		t.Errorf("Message = %q, want %q", e.Message, "resource missing")
	}
}

func TestNewConflictError(t *testing.T) {
	e := NewConflictError("etag mismatch")
	if e.Code != ErrConflict {
		t.Errorf("Code = %q, want %q", e.Code, ErrConflict)
	}
}

func TestNewInvalidConfigurationError(t *testing.T) {
	e := NewInvalidConfigurationError("duplicate tkey")
	if e.Code != ErrInvalidConfiguration {
		t.Errorf("Code = %q, want %q", e.Code, ErrInvalidConfiguration)
	}
}

func TestNewValidationFailedError(t *testing.T) {
	details := []FieldError{
		{Field: "email", Code: "REQUIRED", Message: "Email is required"},
	}
	e := NewValidationFailedError(details)
	if e.Code != ErrValidationFailed {
		t.Errorf("Code = %q, want %q", e.Code, ErrValidationFailed)
	}
	if len(e.Details) != 1 {
		t.Fatalf("Details length = %d, want 1", len(e.Details))
	}
	if e.Details[0].Field != "email" {
		t.Errorf("Details[0].Field = %q, want %q", e.Details[0].Field, "email")
	}
}

func TestNewEmptyFormError(t *testing.T) {
	e := NewEmptyFormError("form has no active sections")
	if e.Code != ErrEmptyForm {
		t.Errorf("Code = %q, want %q", e.Code, ErrEmptyForm)
	}
}

func TestNewRemoteEndpointError(t *testing.T) {
	e := NewRemoteEndpointError("endpoint unreachable")
	if e.Code != ErrRemoteEndpoint {
		t.Errorf("Code = %q, want %q", e.Code, ErrRemoteEndpoint)
	}
}

func TestNewInternalError(t *testing.T) {
	e := NewInternalError()
	if e.Code != ErrInternalError {
		t.Errorf("Code = %q, want %q", e.Code, ErrInternalError)
	}
}
