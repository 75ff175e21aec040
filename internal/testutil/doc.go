// Package testutil provides testing utilities and fixtures for the
// descope-mcp-auth library: RSA signing keys, JWKS test servers, signed
// test tokens, and small assertion helpers for deterministic testing.
package testutil
