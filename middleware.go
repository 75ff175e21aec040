package descopeauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type contextKey int

const authInfoKey contextKey = iota

// ContextWithAuthInfo returns a context carrying the auth info.
func ContextWithAuthInfo(ctx context.Context, info *AuthInfo) context.Context {
	return context.WithValue(ctx, authInfoKey, info)
}

// AuthInfoFromContext retrieves the auth info attached by BearerAuth.
func AuthInfoFromContext(ctx context.Context) (*AuthInfo, bool) {
	info, ok := ctx.Value(authInfoKey).(*AuthInfo)
	return info, ok
}

// BearerAuth is middleware that requires a valid bearer token in the
// Authorization header. The token is verified against the provider's key set
// and policy; on success the resulting auth info is attached to the request
// context for downstream handlers.
//
// Failure responses are terminal for the request: invalid_token yields 401 and
// insufficient_scope 403, both with a WWW-Authenticate challenge reproducing
// the error; server_error yields 500 without a challenge; any other OAuth
// error yields 400.
func (h *Handler) BearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, tokenErr := extractBearerToken(r)
		if tokenErr != nil {
			h.logger.Debug("Bearer token extraction failed", "error", tokenErr)
			h.writeAuthError(w, tokenErr)
			return
		}

		authInfo, err := h.verifier.Verify(r.Context(), token)
		if err != nil {
			h.logger.Warn("Token verification failed", "error", err)
			h.writeAuthError(w, err)
			return
		}

		ctx := ContextWithAuthInfo(r.Context(), authInfo)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractBearerToken extracts the bearer token from the Authorization header.
// The scheme comparison is case-insensitive and the token must be non-empty.
func extractBearerToken(r *http.Request) (string, *OAuthError) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrInvalidToken("Missing Authorization header")
	}

	scheme, token, found := strings.Cut(authHeader, " ")
	if !found || !strings.EqualFold(scheme, "bearer") || token == "" {
		return "", ErrInvalidToken("Invalid Authorization header format, expected 'Bearer TOKEN'")
	}

	return token, nil
}

// writeAuthError terminates the request with the OAuth error mapping of the
// authentication gate. Unexpected errors are logged and converted to a
// generic server_error so internals never reach the response body.
func (h *Handler) writeAuthError(w http.ResponseWriter, err error) {
	var oauthErr *OAuthError
	if !errors.As(err, &oauthErr) {
		h.logger.Error("Unexpected error authenticating bearer token", "error", err)
		h.writeOAuthError(w, ErrServerError("Internal Server Error"))
		return
	}

	switch oauthErr.Code {
	case ErrorCodeInvalidToken, ErrorCodeInsufficientScope:
		w.Header().Set("WWW-Authenticate", formatWWWAuthenticate(oauthErr))
	}

	h.writeOAuthError(w, oauthErr)
}

// formatWWWAuthenticate builds the RFC 6750 challenge header value.
func formatWWWAuthenticate(err *OAuthError) string {
	return fmt.Sprintf(`Bearer error="%s", error_description="%s"`,
		err.Code, escapeQuotes(err.Description))
}

// escapeQuotes escapes backslashes and quotes for HTTP quoted-string values.
// Backslashes first, then quotes; the order matters.
func escapeQuotes(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
