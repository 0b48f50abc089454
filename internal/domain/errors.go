package domain

import (
	"errors"
	"fmt"
	"time"
)

// Error kinds. Every failure surfaced by the system wraps exactly one of these.
var (
	ErrConfiguration    = errors.New("configuration error")
	ErrValidation       = errors.New("validation error")
	ErrModelUnavailable = errors.New("model not loaded")
	ErrPrediction       = errors.New("prediction error")
	ErrStore            = errors.New("store error")
	ErrSchema           = errors.New("schema error")
	ErrQuery            = errors.New("query error")
)

// Error codes for different failure scenarios
const (
	CodeConfiguration    = "CONFIGURATION_ERROR"
	CodeValidation       = "VALIDATION_ERROR"
	CodeModelUnavailable = "MODEL_UNAVAILABLE"
	CodePrediction       = "PREDICTION_ERROR"
	CodeStore            = "STORE_ERROR"
	CodeSchema           = "SCHEMA_ERROR"
	CodeQuery            = "QUERY_ERROR"
	CodeInternal         = "INTERNAL_SERVER_ERROR"
)

// APIError represents a standardized error response
type APIError struct {
	Code      string    `json:"code"`
	Detail    string    `json:"detail"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// NewAPIError creates a new APIError with timestamp
func NewAPIError(code, detail, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Detail:    detail,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// CodeOf maps an error to its code. Unknown errors are internal.
func CodeOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrModelUnavailable):
		return CodeModelUnavailable
	case errors.Is(err, ErrPrediction):
		return CodePrediction
	case errors.Is(err, ErrConfiguration):
		return CodeConfiguration
	case errors.Is(err, ErrSchema):
		return CodeSchema
	case errors.Is(err, ErrQuery):
		return CodeQuery
	case errors.Is(err, ErrStore):
		return CodeStore
	default:
		return CodeInternal
	}
}
