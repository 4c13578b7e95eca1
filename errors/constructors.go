package errors

import (
	"fmt"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *MirrorError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *MirrorError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// PayloadMalformed creates an error for a channel message that could not be decoded.
func PayloadMalformed(topic string, err error) *MirrorError {
	return Wrap(err, ErrCodePayloadMalformed, fmt.Sprintf("malformed payload on topic '%s'", topic)).
		WithDetail("topic", topic)
}

// RequestFailed creates a request failure error
func RequestFailed(call string, err error) *MirrorError {
	return Wrap(err, ErrCodeRequestFailed, fmt.Sprintf("request failed: %s", call)).
		WithDetail("call", call)
}

// RequestStatus creates a request failure error from an unexpected HTTP status.
func RequestStatus(call string, status int) *MirrorError {
	return New(ErrCodeRequestFailed, fmt.Sprintf("request %s returned status %d", call, status)).
		WithDetail("call", call).
		WithDetail("status", status)
}

// RequestCancelled creates an error for a request abandoned by its owner.
func RequestCancelled(call string) *MirrorError {
	return New(ErrCodeRequestCancelled, fmt.Sprintf("request cancelled: %s", call)).
		WithDetail("call", call)
}

// TransportFailed creates a push-channel transport error
func TransportFailed(endpoint string, err error) *MirrorError {
	return Wrap(err, ErrCodeTransportFailed, fmt.Sprintf("channel transport failed: %s", endpoint)).
		WithDetail("endpoint", endpoint)
}

// StateIO creates an error for reading or writing persisted session state.
func StateIO(path string, err error) *MirrorError {
	return Wrap(err, ErrCodeStateIO, fmt.Sprintf("persisted state unavailable: %s", path)).
		WithDetail("path", path)
}
