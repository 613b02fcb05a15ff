package errors

import (
	"fmt"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeConnection represents connection-related errors
	ErrTypeConnection ErrorType = "connection"
	// ErrTypeValidation represents validation errors
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeConfig represents configuration errors
	ErrTypeConfig ErrorType = "config"
	// ErrTypeAuth represents authentication errors
	ErrTypeAuth ErrorType = "authentication"
	// ErrTypeNotFound represents resource not found errors
	ErrTypeNotFound ErrorType = "not_found"
	// ErrTypeInternal represents internal system errors
	ErrTypeInternal ErrorType = "internal"
	// ErrTypeTimeout represents timeout errors
	ErrTypeTimeout ErrorType = "timeout"
)

// Error codes for the OAuth2/mail credential domain. Handlers map these to
// user-safe messages; the full error (with cause) goes to the operator log.
const (
	// CodeUnknownProvider means the requested provider key is not registered
	CodeUnknownProvider = "unknown_provider"
	// CodeMissingClientCredentials means no OAuth2 client id/secret is configured
	CodeMissingClientCredentials = "missing_client_credentials"
	// CodeInvalidState means the callback state token was missing, mismatched or expired
	CodeInvalidState = "invalid_state"
	// CodeTokenExchangeFailed means the provider rejected a code or refresh exchange
	CodeTokenExchangeFailed = "token_exchange_failed"
	// CodeCredentialUnavailable means no usable OAuth2 token could be produced for a send
	CodeCredentialUnavailable = "oauth_credential_unavailable"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	parts := []string{string(e.Type), e.Message}

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}

	if len(e.Context) > 0 {
		contextParts := make([]string, 0, len(e.Context))
		for k, v := range e.Context {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(contextParts, ", ")))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// ConnectionError creates a new connection error
func ConnectionError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeConnection,
		Message: msg,
		Cause:   cause,
	}
}

// ValidationError creates a new validation error
func ValidationError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeValidation,
		Message: msg,
	}
}

// ConfigError creates a new configuration error
func ConfigError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeConfig,
		Message: msg,
	}
}

// AuthError creates a new authentication error
func AuthError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeAuth,
		Message: msg,
	}
}

// NotFoundError creates a new not found error
func NotFoundError(resource string) *AppError {
	return &AppError{
		Type:    ErrTypeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// InternalError creates a new internal error
func InternalError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeInternal,
		Message: msg,
		Cause:   cause,
	}
}

// TimeoutError creates a new timeout error
func TimeoutError(operation string) *AppError {
	return &AppError{
		Type:    ErrTypeTimeout,
		Message: fmt.Sprintf("timeout during %s", operation),
	}
}

// UnknownProviderError reports an unregistered mail provider key
func UnknownProviderError(key string) *AppError {
	return &AppError{
		Type:    ErrTypeValidation,
		Message: fmt.Sprintf("unknown mail provider %q", key),
		Code:    CodeUnknownProvider,
	}
}

// MissingClientCredentialsError reports an install without OAuth2 client credentials
func MissingClientCredentialsError(provider string) *AppError {
	return &AppError{
		Type:    ErrTypeConfig,
		Message: fmt.Sprintf("client id and secret are not configured for provider %q", provider),
		Code:    CodeMissingClientCredentials,
	}
}

// InvalidStateError reports a missing, mismatched or expired anti-forgery state token
func InvalidStateError(reason string) *AppError {
	return &AppError{
		Type:    ErrTypeAuth,
		Message: fmt.Sprintf("authorization state rejected: %s", reason),
		Code:    CodeInvalidState,
	}
}

// TokenExchangeError reports a failed code or refresh exchange with the provider
func TokenExchangeError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeAuth,
		Message: msg,
		Code:    CodeTokenExchangeFailed,
		Cause:   cause,
	}
}

// CredentialUnavailableError reports that no usable OAuth2 token can be produced.
// Raised before any SMTP connection is attempted.
func CredentialUnavailableError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeAuth,
		Message: msg,
		Code:    CodeCredentialUnavailable,
	}
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	if err == nil {
		return false
	}

	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}

	return appErr.Type == errType
}

// IsCode checks if an error carries a specific domain code
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}

	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}

	return appErr.Code == code
}

// GetType returns the error type if it's an AppError, otherwise returns ErrTypeInternal
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}

	appErr, ok := err.(*AppError)
	if !ok {
		return ErrTypeInternal
	}

	return appErr.Type
}
