package descopeauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/descope-community/descope-mcp-auth/descope"
	"github.com/descope-community/descope-mcp-auth/instrumentation"
)

// Verifier validates access tokens against the Descope project's published
// key set and enforces the configured audience and scope policy.
//
// By default the key set is fetched on every verification, trading latency
// for statelessness and freshness. VerifyTokenOptions.CacheKeySet switches to
// an auto-refreshing cache keyed by the key-set URL.
type Verifier struct {
	provider *Provider
	client   *descope.Client
	cache    *jwk.Cache
	logger   *slog.Logger
	inst     *instrumentation.Instrumentation
}

// NewVerifier creates a token verifier for the provider. The context governs
// the lifetime of the key-set cache when caching is enabled.
func NewVerifier(ctx context.Context, provider *Provider) (*Verifier, error) {
	client := descope.NewClient(descope.Config{
		BaseURL:       provider.BaseURL(),
		ProjectID:     provider.ProjectID(),
		ManagementKey: provider.ManagementKey(),
		HTTPClient:    provider.httpClient,
		Logger:        provider.logger,
	})

	v := &Verifier{
		provider: provider,
		client:   client,
		logger:   provider.logger,
		inst:     provider.options.Instrumentation,
	}

	if provider.options.VerifyToken.CacheKeySet {
		httprcClient := httprc.NewClient(httprc.WithHTTPClient(provider.httpClient))
		cache, err := jwk.NewCache(ctx, httprcClient)
		if err != nil {
			return nil, fmt.Errorf("failed to create key set cache: %w", err)
		}
		if err := cache.Register(ctx, client.KeySetURL()); err != nil {
			return nil, fmt.Errorf("failed to register key set URL: %w", err)
		}
		v.cache = cache
	}

	return v, nil
}

// Verify validates a bearer token and returns the resulting auth info.
//
// Every failure is one of the fixed OAuth error kinds: policy violations are
// invalid_token (audience) or insufficient_scope (missing scopes), and any
// transport, parsing, or cryptographic failure is folded into a generic
// invalid_token so raw internals never cross the boundary.
func (v *Verifier) Verify(ctx context.Context, token string) (*AuthInfo, error) {
	start := time.Now()

	authInfo, err := v.verify(ctx, token)

	if v.inst != nil {
		v.inst.Metrics().RecordTokenVerification(ctx, err == nil, time.Since(start))
	}

	if err != nil {
		var oauthErr *OAuthError
		if errors.As(err, &oauthErr) {
			return nil, oauthErr
		}
		v.logger.Debug("Token verification failed", "error", err)
		return nil, ErrInvalidToken("Failed to validate token")
	}

	return authInfo, nil
}

func (v *Verifier) verify(ctx context.Context, token string) (*AuthInfo, error) {
	keySet, err := v.fetchKeySet(ctx)
	if err != nil {
		return nil, err
	}

	kid, err := parseHeaderKeyID(token)
	if err != nil {
		return nil, err
	}

	key, found := keySet.LookupKeyID(kid)
	if !found {
		return nil, fmt.Errorf("no matching key found for token")
	}

	claims, err := verifySignature(token, key)
	if err != nil {
		return nil, err
	}

	return v.validateClaims(token, claims)
}

// fetchKeySet returns the project key set, from the cache when enabled.
func (v *Verifier) fetchKeySet(ctx context.Context) (jwk.Set, error) {
	if v.cache != nil {
		keySet, err := v.cache.Lookup(ctx, v.client.KeySetURL())
		if err != nil {
			return nil, fmt.Errorf("failed to lookup key set: %w", err)
		}
		if keySet.Len() == 0 {
			return nil, fmt.Errorf("no valid keys found in key set")
		}
		return keySet, nil
	}
	return v.client.FetchKeySet(ctx)
}

// parseHeaderKeyID decodes the token's header segment without verifying the
// signature and returns its key identifier.
func parseHeaderKeyID(token string) (string, error) {
	headerSegment, _, found := strings.Cut(token, ".")
	if !found {
		return "", fmt.Errorf("malformed token")
	}

	decoded, err := decodeBase64URL(headerSegment)
	if err != nil {
		return "", fmt.Errorf("failed to decode token header: %w", err)
	}

	var header struct {
		Kid string `json:"kid"`
	}
	if err := json.Unmarshal(decoded, &header); err != nil {
		return "", fmt.Errorf("failed to parse token header: %w", err)
	}
	if header.Kid == "" {
		return "", fmt.Errorf("token header missing kid")
	}

	return header.Kid, nil
}

// decodeBase64URL decodes a base64url segment, restoring standard alphabet
// and padding.
func decodeBase64URL(segment string) ([]byte, error) {
	standard := strings.ReplaceAll(segment, "-", "+")
	standard = strings.ReplaceAll(standard, "_", "/")
	if pad := len(standard) % 4; pad != 0 {
		standard += strings.Repeat("=", 4-pad)
	}
	return base64.StdEncoding.DecodeString(standard)
}

// verifySignature verifies the full token against the selected key and
// returns its claims. Expiry is enforced here by the parser and re-checked
// explicitly during claim validation.
func verifySignature(token string, key jwk.Key) (jwt.MapClaims, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		switch t.Method.(type) {
		case *jwt.SigningMethodRSA, *jwt.SigningMethodRSAPSS, *jwt.SigningMethodECDSA:
		default:
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}

		var rawKey any
		if err := jwk.Export(key, &rawKey); err != nil {
			return nil, fmt.Errorf("failed to export raw key: %w", err)
		}
		return rawKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to verify token: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("failed to get claims from token")
	}

	return claims, nil
}

// validateClaims enforces required claims, the audience policy, and the
// required-scope policy, in that order, then builds the auth info.
func (v *Verifier) validateClaims(token string, claims jwt.MapClaims) (*AuthInfo, error) {
	if _, present := claims["aud"]; !present {
		return nil, fmt.Errorf("token missing required claims")
	}
	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, fmt.Errorf("token missing required claims")
	}
	expiration, err := claims.GetExpirationTime()
	if err != nil || expiration == nil {
		return nil, fmt.Errorf("token missing required claims")
	}
	if expiration.Before(time.Now()) {
		return nil, fmt.Errorf("token expired")
	}

	policy := v.provider.options.VerifyToken

	if len(policy.Audience) > 0 {
		audiences, err := claims.GetAudience()
		if err != nil {
			return nil, fmt.Errorf("token missing required claims")
		}
		if !audienceIntersects(audiences, policy.Audience) {
			return nil, ErrInvalidToken(fmt.Sprintf("Invalid token audience. Expected one of: %s", strings.Join(policy.Audience, ", ")))
		}
	}

	scopes := extractScopes(claims)
	if missing := missingScopes(scopes, policy.RequiredScopes); len(missing) > 0 {
		return nil, ErrInsufficientScope(fmt.Sprintf("Missing required scopes: %s", strings.Join(missing, ", ")))
	}

	return &AuthInfo{
		Token:     token,
		ClientID:  subject,
		Scopes:    scopes,
		ExpiresAt: expiration.Unix(),
	}, nil
}

// audienceIntersects reports whether the token's audience (scalar or list,
// normalized by the claims accessor) shares at least one value with the policy.
func audienceIntersects(tokenAudience jwt.ClaimStrings, expected []string) bool {
	for _, want := range expected {
		for _, aud := range tokenAudience {
			if aud == want {
				return true
			}
		}
	}
	return false
}

// extractScopes splits the space-delimited scope claim, dropping empty tokens.
func extractScopes(claims jwt.MapClaims) []string {
	raw, _ := claims["scope"].(string)
	if raw == "" {
		return []string{}
	}

	scopes := make([]string, 0)
	for _, scope := range strings.Split(raw, " ") {
		if scope != "" {
			scopes = append(scopes, scope)
		}
	}
	return scopes
}

// missingScopes returns the required scopes absent from the token's scopes.
func missingScopes(scopes, required []string) []string {
	var missing []string
	for _, want := range required {
		found := false
		for _, scope := range scopes {
			if scope == want {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, want)
		}
	}
	return missing
}
