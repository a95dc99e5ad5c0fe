package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// Code identifies an error class in API responses.
type Code string

const (
	CodeServerConfig       Code = "SERVER_CONFIG_ERROR"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeNetwork            Code = "NETWORK_ERROR"
	CodeTimeout            Code = "TIMEOUT_ERROR"
	CodeInvalidRequest     Code = "INVALID_REQUEST"
)

var (
	// ErrServerConfig is returned when the issuer base URL is not configured
	ErrServerConfig = errors.New("issuer base URL is not configured")

	// ErrUnauthorized is returned when a credential is missing, expired or rejected
	ErrUnauthorized = errors.New("credential is missing, expired or invalid")

	// ErrInvalidCredentials is returned when the issuer rejects a login attempt
	ErrInvalidCredentials = errors.New("invalid identifier or secret")

	// ErrNetwork is returned when a call to the issuer or backend fails in transport
	ErrNetwork = errors.New("upstream request failed")

	// ErrTimeout is returned when a call to the issuer or backend times out
	ErrTimeout = errors.New("upstream request timed out")

	// ErrEnvelopeNotFound is returned when a session envelope handoff misses
	ErrEnvelopeNotFound = errors.New("session envelope not found")

	// ErrInvalidEnvelope is returned when a session envelope fails signature or shape checks
	ErrInvalidEnvelope = errors.New("invalid session envelope")
)

// CodeOf maps an error to its taxonomy code.
func CodeOf(err error) Code {
	switch {
	case errors.Is(err, ErrServerConfig):
		return CodeServerConfig
	case errors.Is(err, ErrInvalidCredentials):
		return CodeInvalidCredentials
	case errors.Is(err, ErrTimeout):
		return CodeTimeout
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrEnvelopeNotFound), errors.Is(err, ErrInvalidEnvelope):
		return CodeUnauthorized
	default:
		return CodeNetwork
	}
}

// HTTPStatus maps a taxonomy code to the status used when surfacing it.
func HTTPStatus(code Code) int {
	switch code {
	case CodeServerConfig:
		return http.StatusInternalServerError
	case CodeUnauthorized, CodeInvalidCredentials:
		return http.StatusUnauthorized
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

// MapTransportError classifies an outbound HTTP failure as timeout or
// network, wrapping so callers can branch with errors.Is.
func MapTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}

// ErrorEnvelope is the structured error body returned by API endpoints.
type ErrorEnvelope struct {
	Code       Code     `json:"code"`
	Status     int      `json:"status"`
	Message    string   `json:"message"`
	Violations []string `json:"violations,omitempty"`
}

// NewErrorEnvelope builds the response envelope for an error.
func NewErrorEnvelope(err error) ErrorEnvelope {
	code := CodeOf(err)
	return ErrorEnvelope{
		Code:    code,
		Status:  HTTPStatus(code),
		Message: err.Error(),
	}
}
