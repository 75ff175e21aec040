// Package security provides response hardening and abuse protection for the
// OAuth front door: standard security headers on every OAuth response, client
// IP extraction, and a token-bucket rate limiter used to protect the
// registration endpoint from mass client creation.
package security
