package descopeauth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/descope-community/descope-mcp-auth/internal/testutil"
)

// newTestVerifier builds a verifier backed by an httptest JWKS server.
func newTestVerifier(t *testing.T, key *testutil.SigningKey, verify VerifyTokenOptions) *Verifier {
	t.Helper()

	server := testutil.NewJWKSServer(t, key)

	provider, err := NewProvider(Options{
		ProjectID:     "P2abc",
		ManagementKey: "K2xyz",
		BaseURL:       server.URL,
		ServerURL:     "http://localhost:8080",
		VerifyToken:   verify,
		Env:           noEnv,
	})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}

	verifier, err := NewVerifier(context.Background(), provider)
	if err != nil {
		t.Fatalf("NewVerifier() error = %v", err)
	}
	return verifier
}

func TestVerify_ValidToken(t *testing.T) {
	key := testutil.NewSigningKey(t, "key-1")
	verifier := newTestVerifier(t, key, VerifyTokenOptions{})

	expiry := time.Now().Add(time.Hour)
	token := key.Sign(t, jwt.MapClaims{
		"sub":   "client-123",
		"aud":   "https://mcp.example.com",
		"exp":   expiry.Unix(),
		"scope": "openid profile",
	})

	info, err := verifier.Verify(context.Background(), token)
	testutil.AssertNoError(t, err)

	if info.ClientID != "client-123" {
		t.Errorf("ClientID = %q, want %q", info.ClientID, "client-123")
	}
	if info.Token != token {
		t.Error("AuthInfo.Token does not round-trip the raw token")
	}
	if info.ExpiresAt != expiry.Unix() {
		t.Errorf("ExpiresAt = %d, want %d", info.ExpiresAt, expiry.Unix())
	}
	if len(info.Scopes) != 2 || info.Scopes[0] != "openid" || info.Scopes[1] != "profile" {
		t.Errorf("Scopes = %v, want [openid profile]", info.Scopes)
	}
}

func TestVerify_NoScopeClaim(t *testing.T) {
	key := testutil.NewSigningKey(t, "key-1")
	verifier := newTestVerifier(t, key, VerifyTokenOptions{})

	token := key.Sign(t, testutil.ValidClaims("https://mcp.example.com"))

	info, err := verifier.Verify(context.Background(), token)
	testutil.AssertNoError(t, err)

	if info.Scopes == nil {
		t.Error("Scopes is nil, want empty slice")
	}
	if len(info.Scopes) != 0 {
		t.Errorf("Scopes = %v, want empty", info.Scopes)
	}
}

func TestVerify_InvalidTokens(t *testing.T) {
	key := testutil.NewSigningKey(t, "key-1")
	strangerKey := testutil.NewSigningKey(t, "key-1")
	unknownKid := testutil.NewSigningKey(t, "key-2")
	verifier := newTestVerifier(t, key, VerifyTokenOptions{})

	tests := []struct {
		name  string
		token string
	}{
		{
			name:  "garbage token",
			token: "not-a-token",
		},
		{
			name:  "header without kid",
			token: "eyJhbGciOiJSUzI1NiJ9.e30.sig",
		},
		{
			name:  "unknown key ID",
			token: unknownKid.Sign(t, testutil.ValidClaims("aud")),
		},
		{
			name:  "wrong signing key",
			token: strangerKey.Sign(t, testutil.ValidClaims("aud")),
		},
		{
			name: "expired token",
			token: key.Sign(t, jwt.MapClaims{
				"sub": "client-123",
				"aud": "aud",
				"exp": time.Now().Add(-time.Hour).Unix(),
			}),
		},
		{
			name: "missing subject",
			token: key.Sign(t, jwt.MapClaims{
				"aud": "aud",
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
		},
		{
			name: "missing audience",
			token: key.Sign(t, jwt.MapClaims{
				"sub": "client-123",
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
		},
		{
			name: "missing expiration",
			token: key.Sign(t, jwt.MapClaims{
				"sub": "client-123",
				"aud": "aud",
			}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(context.Background(), tt.token)
			testutil.AssertError(t, err)

			var oauthErr *OAuthError
			if !errors.As(err, &oauthErr) {
				t.Fatalf("error type = %T, want *OAuthError", err)
			}
			if oauthErr.Code != ErrorCodeInvalidToken {
				t.Errorf("Code = %q, want %q", oauthErr.Code, ErrorCodeInvalidToken)
			}
			if oauthErr.Description != "Failed to validate token" {
				t.Errorf("Description = %q, want generic validation failure", oauthErr.Description)
			}
		})
	}
}

func TestVerify_AudiencePolicy(t *testing.T) {
	key := testutil.NewSigningKey(t, "key-1")

	tests := []struct {
		name     string
		audience any
		policy   []string
		wantErr  bool
	}{
		{
			name:     "scalar audience matches",
			audience: "https://mcp.example.com",
			policy:   []string{"https://mcp.example.com"},
		},
		{
			name:     "list audience intersects",
			audience: []string{"other", "https://mcp.example.com"},
			policy:   []string{"https://mcp.example.com"},
		},
		{
			name:     "no intersection",
			audience: "https://evil.example.com",
			policy:   []string{"https://mcp.example.com", "https://alt.example.com"},
			wantErr:  true,
		},
		{
			name:     "empty policy accepts any audience",
			audience: "anything",
			policy:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := newTestVerifier(t, key, VerifyTokenOptions{Audience: tt.policy})

			token := key.Sign(t, jwt.MapClaims{
				"sub": "client-123",
				"aud": tt.audience,
				"exp": time.Now().Add(time.Hour).Unix(),
			})

			_, err := verifier.Verify(context.Background(), token)
			if !tt.wantErr {
				testutil.AssertNoError(t, err)
				return
			}

			var oauthErr *OAuthError
			if !errors.As(err, &oauthErr) {
				t.Fatalf("error type = %T, want *OAuthError", err)
			}
			if oauthErr.Code != ErrorCodeInvalidToken {
				t.Errorf("Code = %q, want %q", oauthErr.Code, ErrorCodeInvalidToken)
			}
			want := "Invalid token audience. Expected one of: " + strings.Join(tt.policy, ", ")
			if oauthErr.Description != want {
				t.Errorf("Description = %q, want %q", oauthErr.Description, want)
			}
		})
	}
}

func TestVerify_RequiredScopes(t *testing.T) {
	key := testutil.NewSigningKey(t, "key-1")

	tests := []struct {
		name        string
		scope       string
		required    []string
		wantMissing string
	}{
		{
			name:     "all present",
			scope:    "openid profile admin",
			required: []string{"openid", "admin"},
		},
		{
			name:        "one missing",
			scope:       "openid",
			required:    []string{"openid", "admin"},
			wantMissing: "admin",
		},
		{
			name:        "all missing",
			scope:       "",
			required:    []string{"openid", "admin"},
			wantMissing: "openid, admin",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := newTestVerifier(t, key, VerifyTokenOptions{RequiredScopes: tt.required})

			claims := jwt.MapClaims{
				"sub": "client-123",
				"aud": "aud",
				"exp": time.Now().Add(time.Hour).Unix(),
			}
			if tt.scope != "" {
				claims["scope"] = tt.scope
			}
			token := key.Sign(t, claims)

			_, err := verifier.Verify(context.Background(), token)
			if tt.wantMissing == "" {
				testutil.AssertNoError(t, err)
				return
			}

			var oauthErr *OAuthError
			if !errors.As(err, &oauthErr) {
				t.Fatalf("error type = %T, want *OAuthError", err)
			}
			if oauthErr.Code != ErrorCodeInsufficientScope {
				t.Errorf("Code = %q, want %q", oauthErr.Code, ErrorCodeInsufficientScope)
			}
			want := "Missing required scopes: " + tt.wantMissing
			if oauthErr.Description != want {
				t.Errorf("Description = %q, want %q", oauthErr.Description, want)
			}
		})
	}
}

func TestVerify_CachedKeySet(t *testing.T) {
	key := testutil.NewSigningKey(t, "key-1")
	verifier := newTestVerifier(t, key, VerifyTokenOptions{CacheKeySet: true})

	token := key.Sign(t, testutil.ValidClaims("aud"))

	for i := 0; i < 3; i++ {
		info, err := verifier.Verify(context.Background(), token)
		testutil.AssertNoError(t, err)
		if info.ClientID != "test-user-123" {
			t.Errorf("ClientID = %q, want %q", info.ClientID, "test-user-123")
		}
	}
}

func TestExtractScopes(t *testing.T) {
	tests := []struct {
		name  string
		claim any
		want  []string
	}{
		{name: "absent claim", claim: nil, want: []string{}},
		{name: "empty string", claim: "", want: []string{}},
		{name: "single scope", claim: "openid", want: []string{"openid"}},
		{name: "multiple scopes", claim: "openid profile", want: []string{"openid", "profile"}},
		{name: "repeated separators dropped", claim: "openid  profile ", want: []string{"openid", "profile"}},
		{name: "non-string claim ignored", claim: 42, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := jwt.MapClaims{}
			if tt.claim != nil {
				claims["scope"] = tt.claim
			}

			got := extractScopes(claims)
			if len(got) != len(tt.want) {
				t.Fatalf("extractScopes() = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("scope[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseHeaderKeyID(t *testing.T) {
	key := testutil.NewSigningKey(t, "the-kid")
	token := key.Sign(t, testutil.ValidClaims("aud"))

	kid, err := parseHeaderKeyID(token)
	testutil.AssertNoError(t, err)
	if kid != "the-kid" {
		t.Errorf("kid = %q, want %q", kid, "the-kid")
	}

	errorCases := []struct {
		name  string
		token string
	}{
		{name: "no separator", token: "justonesegment"},
		{name: "not base64", token: "!!!.payload.sig"},
		{name: "not json", token: "bm90LWpzb24.payload.sig"},
		{name: "missing kid", token: "eyJhbGciOiJSUzI1NiJ9.payload.sig"},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseHeaderKeyID(tt.token)
			testutil.AssertError(t, err)
		})
	}
}
