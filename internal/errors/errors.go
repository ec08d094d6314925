// Package errors provides standardized error handling for the NovaTube service.
package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode represents a standardized error code for the NovaTube service.
type ErrorCode string

const (
	// Validation errors
	NOVA_VALIDATION  ErrorCode = "NOVA_VALIDATION"  // General validation error
	NOVA_BAD_REQUEST ErrorCode = "NOVA_BAD_REQUEST" // Bad request
	NOVA_MEDIA_TYPE  ErrorCode = "NOVA_MEDIA_TYPE"  // Media type not allowed
	NOVA_MEDIA_SIZE  ErrorCode = "NOVA_MEDIA_SIZE"  // Media size limit exceeded

	// State errors
	NOVA_NOT_FOUND ErrorCode = "NOVA_NOT_FOUND" // Resource not found
	NOVA_CONFLICT  ErrorCode = "NOVA_CONFLICT"  // Operation not allowed in the current state
	NOVA_BUSY      ErrorCode = "NOVA_BUSY"      // A request of the same kind is still in flight

	// Server errors
	NOVA_INTERNAL    ErrorCode = "NOVA_INTERNAL"    // Internal server error
	NOVA_UNAVAILABLE ErrorCode = "NOVA_UNAVAILABLE" // Generative collaborator unavailable
)

// Error represents a standardized error response.
type Error struct {
	Code          ErrorCode   `json:"code"`
	Message       string      `json:"message"`
	CorrelationID string      `json:"correlationId"`
	Details       interface{} `json:"details,omitempty"`
	HTTPStatus    int         `json:"-"`
}

// New creates a new Error with the specified code and message.
func New(code ErrorCode, message string, correlationID string) *Error {
	return &Error{
		Code:          code,
		Message:       message,
		CorrelationID: correlationID,
		HTTPStatus:    httpStatusCodeForCode(code),
	}
}

// NewWithDetails creates a new Error with the specified code, message, and details.
func NewWithDetails(code ErrorCode, message string, correlationID string, details interface{}) *Error {
	return &Error{
		Code:          code,
		Message:       message,
		CorrelationID: correlationID,
		Details:       details,
		HTTPStatus:    httpStatusCodeForCode(code),
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Details != nil {
		return fmt.Sprintf("%s: %s (details: %v)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// httpStatusCodeForCode maps error codes to HTTP status codes.
func httpStatusCodeForCode(code ErrorCode) int {
	switch code {
	case NOVA_VALIDATION, NOVA_BAD_REQUEST, NOVA_MEDIA_TYPE, NOVA_MEDIA_SIZE:
		return http.StatusBadRequest
	case NOVA_NOT_FOUND:
		return http.StatusNotFound
	case NOVA_CONFLICT, NOVA_BUSY:
		return http.StatusConflict
	case NOVA_UNAVAILABLE:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
