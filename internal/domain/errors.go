package domain

import (
	"context"
	"errors"
	"fmt"
)

// Error codes for the failure kinds surfaced to the user.
const (
	ErrValidation        = "VALIDATION_ERROR"
	ErrService           = "SERVICE_ERROR"
	ErrTransport         = "TRANSPORT_ERROR"
	ErrMalformedResponse = "MALFORMED_RESPONSE"
	ErrPending           = "REQUEST_PENDING"
	ErrClosed            = "SESSION_CLOSED"
	ErrCancelled         = "CANCELLED"
	ErrFileUnreadable    = "FILE_UNREADABLE"
	ErrInternal          = "INTERNAL_ERROR"
)

// User-visible messages for failures that carry no message of their own.
const (
	ValidationMessage        = "Upload a VCF file and enter a drug name"
	TransportFailureMessage  = "Unable to analyze file. Check your connection to the analysis service and try again."
	MalformedResponseMessage = "The analysis service returned a response that could not be read."
	CancelledMessage         = "Analysis was cancelled."
	FileUnreadableMessage    = "The selected file could not be read. Select it again and retry."
	PendingMessage           = "An analysis is already in progress."
	ClosedMessage            = "This analysis session has been closed."
)

var (
	// ErrRequestPending rejects a submission while another request is in flight.
	ErrRequestPending = errors.New("analysis request already in progress")

	// ErrSessionClosed rejects a submission on a torn-down session.
	ErrSessionClosed = errors.New("analysis session closed")
)

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// ServiceError is a non-success HTTP response from the analysis service.
// Generic is true when the body carried no readable message and Message is a fallback.
type ServiceError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	Generic    bool   `json:"generic"`
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	return fmt.Sprintf("analysis service returned status %d: %s", e.StatusCode, e.Message)
}

// GenericServiceMessage is the fallback for error bodies without an "error" field.
func GenericServiceMessage(status int) string {
	return fmt.Sprintf("analysis failed (HTTP %d)", status)
}

// TransportError is a request that could not be completed at all.
type TransportError struct {
	Op  string
	Err error
}

// Error implements the error interface
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// FileReadError is a staged file that could not be read before anything was sent.
type FileReadError struct {
	Name string
	Err  error
}

// Error implements the error interface
func (e *FileReadError) Error() string {
	return fmt.Sprintf("failed to read staged file %s: %v", e.Name, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FileReadError) Unwrap() error {
	return e.Err
}

// MalformedResponseError is a success response whose body is not a readable result.
type MalformedResponseError struct {
	StatusCode int
	Err        error
}

// Error implements the error interface
func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed analysis response (HTTP %d): %v", e.StatusCode, e.Err)
}

// Unwrap returns the underlying cause.
func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// ErrorCode classifies err into one of the error codes.
func ErrorCode(err error) string {
	var (
		validationErr *ValidationError
		serviceErr    *ServiceError
		transportErr  *TransportError
		malformedErr  *MalformedResponseError
		fileErr       *FileReadError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validationErr):
		return ErrValidation
	case errors.Is(err, ErrRequestPending):
		return ErrPending
	case errors.Is(err, ErrSessionClosed):
		return ErrClosed
	case errors.Is(err, context.Canceled):
		return ErrCancelled
	case errors.As(err, &fileErr):
		return ErrFileUnreadable
	case errors.As(err, &serviceErr):
		return ErrService
	case errors.As(err, &malformedErr):
		return ErrMalformedResponse
	case errors.As(err, &transportErr), errors.Is(err, context.DeadlineExceeded):
		return ErrTransport
	default:
		return ErrInternal
	}
}

// UserMessage returns the text shown to the user for err. Service messages are passed
// through verbatim.
func UserMessage(err error) string {
	var serviceErr *ServiceError
	switch ErrorCode(err) {
	case "":
		return ""
	case ErrValidation:
		return ValidationMessage
	case ErrPending:
		return PendingMessage
	case ErrClosed:
		return ClosedMessage
	case ErrCancelled:
		return CancelledMessage
	case ErrService:
		errors.As(err, &serviceErr)
		return serviceErr.Message
	case ErrFileUnreadable:
		return FileUnreadableMessage
	case ErrMalformedResponse:
		return MalformedResponseMessage
	case ErrTransport:
		return TransportFailureMessage
	default:
		return err.Error()
	}
}
