package descopeauth

import (
	"fmt"
	"net/http"
)

// OAuth error codes as constants
const (
	ErrorCodeInvalidRequest        = "invalid_request"
	ErrorCodeServerError           = "server_error"
	ErrorCodeInvalidToken          = "invalid_token"
	ErrorCodeMethodNotAllowed      = "method_not_allowed"
	ErrorCodeInvalidClientMetadata = "invalid_client_metadata"
	ErrorCodeInsufficientScope     = "insufficient_scope"
)

// statusByCode maps every error code to exactly one HTTP status.
var statusByCode = map[string]int{
	ErrorCodeInvalidRequest:        http.StatusBadRequest,
	ErrorCodeServerError:           http.StatusInternalServerError,
	ErrorCodeInvalidToken:          http.StatusUnauthorized,
	ErrorCodeMethodNotAllowed:      http.StatusMethodNotAllowed,
	ErrorCodeInvalidClientMetadata: http.StatusBadRequest,
	ErrorCodeInsufficientScope:     http.StatusForbidden,
}

// StatusForCode returns the HTTP status for an OAuth error code.
// Unknown codes map to 500 so nothing outside the taxonomy leaks a
// misleading status.
func StatusForCode(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// OAuthError represents an OAuth 2.0 error response per RFC 6749 Section 5.2.
// It is the only error kind that crosses the system boundary; everything else
// is wrapped into one of the fixed codes before response construction.
type OAuthError struct {
	Code        string // OAuth error code (e.g., "invalid_request", "invalid_token")
	Description string // Human-readable error description
	URI         string // Optional URI with additional error information
}

// Error implements the error interface
func (e *OAuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Status returns the HTTP status associated with the error's code.
func (e *OAuthError) Status() int {
	return StatusForCode(e.Code)
}

// ToResponseObject converts the error to the RFC 6749 wire format.
// The error_uri member is omitted entirely when not supplied.
func (e *OAuthError) ToResponseObject() *ErrorResponse {
	return &ErrorResponse{
		Error:            e.Code,
		ErrorDescription: e.Description,
		ErrorURI:         e.URI,
	}
}

// NewOAuthError creates a new OAuth error
func NewOAuthError(code, description string) *OAuthError {
	return &OAuthError{
		Code:        code,
		Description: description,
	}
}

// Common OAuth errors as reusable constructors
var (
	// ErrInvalidRequest indicates the request is malformed or missing required parameters
	ErrInvalidRequest = func(desc string) *OAuthError {
		return NewOAuthError(ErrorCodeInvalidRequest, desc)
	}

	// ErrServerError indicates an unexpected server condition
	ErrServerError = func(desc string) *OAuthError {
		return NewOAuthError(ErrorCodeServerError, desc)
	}

	// ErrInvalidToken indicates the access token is invalid or expired
	ErrInvalidToken = func(desc string) *OAuthError {
		return NewOAuthError(ErrorCodeInvalidToken, desc)
	}

	// ErrMethodNotAllowed indicates the HTTP method is not supported for the endpoint
	ErrMethodNotAllowed = func(desc string) *OAuthError {
		return NewOAuthError(ErrorCodeMethodNotAllowed, desc)
	}

	// ErrInvalidClientMetadata indicates registration metadata is invalid per RFC 7591
	ErrInvalidClientMetadata = func(desc string) *OAuthError {
		return NewOAuthError(ErrorCodeInvalidClientMetadata, desc)
	}

	// ErrInsufficientScope indicates the token lacks required permissions
	ErrInsufficientScope = func(desc string) *OAuthError {
		return NewOAuthError(ErrorCodeInsufficientScope, desc)
	}
)
