package descopeauth

import (
	"net/http"
	"testing"
)

func TestOAuthError_Error(t *testing.T) {
	tests := []struct {
		name        string
		code        string
		description string
		want        string
	}{
		{
			name:        "simple error",
			code:        "invalid_request",
			description: "Missing required parameter",
			want:        "invalid_request: Missing required parameter",
		},
		{
			name:        "error with empty description",
			code:        "server_error",
			description: "",
			want:        "server_error: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &OAuthError{
				Code:        tt.code,
				Description: tt.description,
			}
			if got := e.Error(); got != tt.want {
				t.Errorf("OAuthError.Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStatusForCode(t *testing.T) {
	tests := []struct {
		name string
		code string
		want int
	}{
		{name: "invalid_request", code: ErrorCodeInvalidRequest, want: http.StatusBadRequest},
		{name: "server_error", code: ErrorCodeServerError, want: http.StatusInternalServerError},
		{name: "invalid_token", code: ErrorCodeInvalidToken, want: http.StatusUnauthorized},
		{name: "method_not_allowed", code: ErrorCodeMethodNotAllowed, want: http.StatusMethodNotAllowed},
		{name: "invalid_client_metadata", code: ErrorCodeInvalidClientMetadata, want: http.StatusBadRequest},
		{name: "insufficient_scope", code: ErrorCodeInsufficientScope, want: http.StatusForbidden},
		{name: "unknown code maps to 500", code: "not_a_code", want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusForCode(tt.code); got != tt.want {
				t.Errorf("StatusForCode(%q) = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
}

func TestOAuthError_Status(t *testing.T) {
	err := ErrInsufficientScope("Missing required scopes: admin")
	if got := err.Status(); got != http.StatusForbidden {
		t.Errorf("Status() = %d, want %d", got, http.StatusForbidden)
	}
}

func TestOAuthError_ToResponseObject(t *testing.T) {
	tests := []struct {
		name string
		err  *OAuthError
		want ErrorResponse
	}{
		{
			name: "code and description",
			err:  ErrInvalidRequest("redirect_uris is required"),
			want: ErrorResponse{Error: "invalid_request", ErrorDescription: "redirect_uris is required"},
		},
		{
			name: "with uri",
			err:  &OAuthError{Code: "invalid_token", Description: "expired", URI: "https://example.com/errors"},
			want: ErrorResponse{Error: "invalid_token", ErrorDescription: "expired", ErrorURI: "https://example.com/errors"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.ToResponseObject()
			if *got != tt.want {
				t.Errorf("ToResponseObject() = %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name        string
		constructor func(string) *OAuthError
		wantCode    string
	}{
		{name: "invalid request", constructor: ErrInvalidRequest, wantCode: ErrorCodeInvalidRequest},
		{name: "server error", constructor: ErrServerError, wantCode: ErrorCodeServerError},
		{name: "invalid token", constructor: ErrInvalidToken, wantCode: ErrorCodeInvalidToken},
		{name: "method not allowed", constructor: ErrMethodNotAllowed, wantCode: ErrorCodeMethodNotAllowed},
		{name: "invalid client metadata", constructor: ErrInvalidClientMetadata, wantCode: ErrorCodeInvalidClientMetadata},
		{name: "insufficient scope", constructor: ErrInsufficientScope, wantCode: ErrorCodeInsufficientScope},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.constructor("description")
			if err.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", err.Code, tt.wantCode)
			}
			if err.Description != "description" {
				t.Errorf("Description = %q, want %q", err.Description, "description")
			}
		})
	}
}
