package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v3/jwk"
)

// SigningKey is an RSA key pair used to mint and serve test tokens.
type SigningKey struct {
	KeyID   string
	Private *rsa.PrivateKey
}

// NewSigningKey generates a fresh RSA signing key with the given key ID.
func NewSigningKey(t *testing.T, keyID string) *SigningKey {
	t.Helper()
	private, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}
	return &SigningKey{KeyID: keyID, Private: private}
}

// Sign mints a signed RS256 token carrying the given claims, with the
// key ID in the header so verifiers can look the key up in a JWKS.
func (k *SigningKey) Sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = k.KeyID
	signed, err := token.SignedString(k.Private)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

// JWKS serializes the public halves of the keys as a JWKS document.
func JWKS(t *testing.T, keys ...*SigningKey) []byte {
	t.Helper()
	set := jwk.NewSet()
	for _, k := range keys {
		key, err := jwk.Import(k.Private.Public())
		if err != nil {
			t.Fatalf("failed to import public key: %v", err)
		}
		if err := key.Set(jwk.KeyIDKey, k.KeyID); err != nil {
			t.Fatalf("failed to set key ID: %v", err)
		}
		if err := key.Set(jwk.AlgorithmKey, "RS256"); err != nil {
			t.Fatalf("failed to set algorithm: %v", err)
		}
		if err := set.AddKey(key); err != nil {
			t.Fatalf("failed to add key to set: %v", err)
		}
	}
	data, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("failed to marshal key set: %v", err)
	}
	return data
}

// NewJWKSServer starts a test server that answers every GET with the
// public JWKS for the given keys.
func NewJWKSServer(t *testing.T, keys ...*SigningKey) *httptest.Server {
	t.Helper()
	body := JWKS(t, keys...)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server
}

// ValidClaims returns a claim set that passes verification against the
// given audience, expiring an hour from now.
func ValidClaims(audience string) jwt.MapClaims {
	return jwt.MapClaims{
		"sub": "test-user-123",
		"aud": audience,
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
	}
}

// GenerateRandomString generates a random base64url-encoded string.
func GenerateRandomString(length int) string {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("failed to generate random string: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)[:length]
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error but got nil")
	}
}

// AssertEqual fails the test if got != want.
func AssertEqual(t *testing.T, got, want interface{}) {
	t.Helper()
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

// AssertStringContains fails the test if s does not contain substr.
func AssertStringContains(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("string %q does not contain %q", s, substr)
	}
}
