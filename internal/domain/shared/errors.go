package shared

import (
	"errors"
	"fmt"
)

// ErrorKind groups domain error codes into the classes callers act on
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindState      ErrorKind = "state"
	KindDatabase   ErrorKind = "database"
	KindPermission ErrorKind = "permission"
	KindBusiness   ErrorKind = "business"
	KindSystem     ErrorKind = "system"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Kind    ErrorKind `json:"kind"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches domain errors by code so sentinel values work with errors.Is
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// NewDomainError creates a business-kind domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Kind:    KindBusiness,
	}
}

// NewValidationError creates a validation-kind domain error
func NewValidationError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Kind: KindValidation}
}

// NewStateError creates a state-kind domain error
func NewStateError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Kind: KindState}
}

// Errorf builds a domain error of the given kind with a formatted message
func Errorf(kind ErrorKind, code, format string, args ...any) *DomainError {
	return &DomainError{Code: code, Message: fmt.Sprintf(format, args...), Kind: kind}
}

// AsDomainError unwraps err into a DomainError if it carries one
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// HasCode reports whether err carries a domain error with the given code
func HasCode(err error, code string) bool {
	de, ok := AsDomainError(err)
	return ok && de.Code == code
}

// Common domain errors
var (
	ErrNotFound      = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput  = &DomainError{Code: "INVALID_INPUT", Message: "Invalid input provided", Kind: KindValidation}
	ErrForbidden     = &DomainError{Code: "FORBIDDEN", Message: "Not allowed to perform this action", Kind: KindPermission}
	ErrInvalidState  = &DomainError{Code: "INVALID_STATE", Message: "Operation not allowed in current state", Kind: KindState}
)
