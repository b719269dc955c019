package core

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrorType represents the type of error that occurred
type ErrorType string

const (
	// ErrorTypeConfiguration indicates missing or invalid process configuration (e.g. a blank API key)
	ErrorTypeConfiguration ErrorType = "configuration_error"
	// ErrorTypeTransport indicates the connection to the vendor failed or broke mid-stream
	ErrorTypeTransport ErrorType = "transport_error"
	// ErrorTypeUpstream indicates the vendor reported a failure inside the event stream
	ErrorTypeUpstream ErrorType = "upstream_error"
	// ErrorTypeProvider indicates an upstream provider error (5xx)
	ErrorTypeProvider ErrorType = "provider_error"
	// ErrorTypeRateLimit indicates a rate limit error (429)
	ErrorTypeRateLimit ErrorType = "rate_limit_error"
	// ErrorTypeInvalidRequest indicates a client error (4xx)
	ErrorTypeInvalidRequest ErrorType = "invalid_request_error"
	// ErrorTypeAuthentication indicates an authentication error (401)
	ErrorTypeAuthentication ErrorType = "authentication_error"
	// ErrorTypeForbidden indicates the caller is authenticated but not allowed (403)
	ErrorTypeForbidden ErrorType = "forbidden_error"
	// ErrorTypeNotFound indicates a not found error (404)
	ErrorTypeNotFound ErrorType = "not_found_error"
)

// GatewayError is the base error type for all service errors
type GatewayError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code"`
	Provider   string    `json:"provider,omitempty"`
	// Original error for debugging (not exposed to clients)
	Err error `json:"-"`
}

// Error implements the error interface
func (e *GatewayError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Provider, e.Type, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the error unwrapping interface
func (e *GatewayError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the appropriate HTTP status code for this error
func (e *GatewayError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	switch e.Type {
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypeForbidden:
		return http.StatusForbidden
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeProvider, ErrorTypeTransport, ErrorTypeUpstream:
		return http.StatusBadGateway
	case ErrorTypeConfiguration:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ToJSON converts the error to a JSON-compatible map
func (e *GatewayError) ToJSON() map[string]interface{} {
	return map[string]interface{}{
		"error": map[string]interface{}{
			"type":    e.Type,
			"message": e.Message,
		},
	}
}

// NewConfigurationError creates an error for missing or blank configuration.
// It is raised before any network call is attempted.
func NewConfigurationError(provider string, message string) *GatewayError {
	return &GatewayError{
		Type:     ErrorTypeConfiguration,
		Message:  message,
		Provider: provider,
	}
}

// NewTransportError creates an error for a failed or broken vendor connection
func NewTransportError(provider string, message string, err error) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeTransport,
		Message:    message,
		StatusCode: http.StatusBadGateway,
		Provider:   provider,
		Err:        err,
	}
}

// NewUpstreamError creates an error for a failure reported by the vendor mid-stream
func NewUpstreamError(provider string, message string) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeUpstream,
		Message:    message,
		StatusCode: http.StatusBadGateway,
		Provider:   provider,
	}
}

// NewProviderError creates a new provider error (upstream 5xx)
func NewProviderError(provider string, statusCode int, message string, err error) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeProvider,
		Message:    message,
		StatusCode: statusCode,
		Provider:   provider,
		Err:        err,
	}
}

// NewRateLimitError creates a new rate limit error (429)
func NewRateLimitError(provider string, message string) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeRateLimit,
		Message:    message,
		StatusCode: http.StatusTooManyRequests,
		Provider:   provider,
	}
}

// NewInvalidRequestError creates a new invalid request error (400)
func NewInvalidRequestError(message string, err error) *GatewayError {
	return NewInvalidRequestErrorWithStatus(http.StatusBadRequest, message, err)
}

// NewInvalidRequestErrorWithStatus creates a new invalid request error with a specific status code
func NewInvalidRequestErrorWithStatus(statusCode int, message string, err error) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeInvalidRequest,
		Message:    message,
		StatusCode: statusCode,
		Err:        err,
	}
}

// NewAuthenticationError creates a new authentication error (401)
func NewAuthenticationError(provider string, message string) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeAuthentication,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
		Provider:   provider,
	}
}

// NewForbiddenError creates a new forbidden error (403)
func NewForbiddenError(message string) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeForbidden,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

// NewNotFoundError creates a new not found error (404)
func NewNotFoundError(message string) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

// ParseProviderError parses a non-2xx response from a vendor and returns an appropriate GatewayError.
// The message always references the upstream status code.
func ParseProviderError(provider string, statusCode int, body []byte, originalErr error) *GatewayError {
	message := vendorErrorMessage(body)
	if message == "" {
		message = http.StatusText(statusCode)
	}
	message = fmt.Sprintf("upstream returned status %d: %s", statusCode, message)

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		err := NewAuthenticationError(provider, message)
		err.Err = originalErr
		return err
	case statusCode == http.StatusTooManyRequests:
		err := NewRateLimitError(provider, message)
		err.Err = originalErr
		return err
	case statusCode >= 400 && statusCode < 500:
		err := NewInvalidRequestErrorWithStatus(statusCode, message, originalErr)
		err.Provider = provider
		return err
	case statusCode >= 500:
		return NewProviderError(provider, statusCode, message, originalErr)
	default:
		return NewProviderError(provider, http.StatusBadGateway, message, originalErr)
	}
}

// vendorErrorMessage extracts the human-readable message from a vendor error body.
// OpenAI-compatible vendors use {"error":{"message":...}}; Gemini sometimes wraps it in an array.
func vendorErrorMessage(body []byte) string {
	if !gjson.ValidBytes(body) {
		return strings.TrimSpace(string(body))
	}
	for _, path := range []string{"error.message", "0.error.message", "message"} {
		if msg := gjson.GetBytes(body, path); msg.Exists() && msg.String() != "" {
			return msg.String()
		}
	}
	return strings.TrimSpace(string(body))
}
