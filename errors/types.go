package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Configuration errors
	ErrCodeConfigNotFound   ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    ErrorCode = "CONFIG_INVALID"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Channel and payload errors
	ErrCodePayloadMalformed ErrorCode = "PAYLOAD_MALFORMED"
	ErrCodeTransportFailed  ErrorCode = "TRANSPORT_FAILED"

	// Request errors
	ErrCodeRequestFailed    ErrorCode = "REQUEST_FAILED"
	ErrCodeRequestCancelled ErrorCode = "REQUEST_CANCELLED"

	// Persisted state errors
	ErrCodeStateIO ErrorCode = "STATE_IO"

	// General errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// MirrorError represents a structured error with context
type MirrorError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *MirrorError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *MirrorError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *MirrorError) WithDetail(key string, value interface{}) *MirrorError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *MirrorError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new MirrorError
func New(code ErrorCode, message string) *MirrorError {
	return &MirrorError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a MirrorError
func Wrap(err error, code ErrorCode, message string) *MirrorError {
	return &MirrorError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if an error is a specific MirrorError code
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	mirrorErr, ok := err.(*MirrorError)
	if !ok {
		// Try to unwrap
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return Is(unwrapper.Unwrap(), code)
		}
		return false
	}

	if mirrorErr.Code == code {
		return true
	}
	return mirrorErr.Cause != nil && Is(mirrorErr.Cause, code)
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	mirrorErr, ok := err.(*MirrorError)
	if !ok {
		// Try to unwrap
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return GetCode(unwrapper.Unwrap())
		}
		return ""
	}

	return mirrorErr.Code
}
