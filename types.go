package descopeauth

// ErrorResponse represents an OAuth error response
type ErrorResponse struct {
	// Error is the error code
	Error string `json:"error"`

	// ErrorDescription provides additional information
	ErrorDescription string `json:"error_description,omitempty"`

	// ErrorURI points to error documentation
	ErrorURI string `json:"error_uri,omitempty"`
}

// AuthorizationServerMetadata represents OAuth 2.0 Authorization Server Metadata (RFC 8414)
type AuthorizationServerMetadata struct {
	// Issuer is the authorization server's issuer identifier URL
	Issuer string `json:"issuer"`

	// ServiceDocumentation is a URL with human-readable documentation
	ServiceDocumentation string `json:"service_documentation,omitempty"`

	// AuthorizationEndpoint is the URL of the authorization endpoint
	AuthorizationEndpoint string `json:"authorization_endpoint"`

	// ResponseTypesSupported lists the OAuth response types supported
	ResponseTypesSupported []string `json:"response_types_supported"`

	// CodeChallengeMethodsSupported lists the PKCE code challenge methods supported
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported,omitempty"`

	// TokenEndpoint is the URL of the token endpoint
	TokenEndpoint string `json:"token_endpoint"`

	// TokenEndpointAuthMethodsSupported lists the client authentication methods supported at the token endpoint
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported,omitempty"`

	// GrantTypesSupported lists the OAuth grant types supported
	GrantTypesSupported []string `json:"grant_types_supported,omitempty"`

	// RevocationEndpoint is the URL of the OAuth 2.0 token revocation endpoint (RFC 7009)
	RevocationEndpoint string `json:"revocation_endpoint,omitempty"`

	// RevocationEndpointAuthMethodsSupported lists auth methods for the revocation endpoint
	RevocationEndpointAuthMethodsSupported []string `json:"revocation_endpoint_auth_methods_supported,omitempty"`

	// RegistrationEndpoint is the URL of the dynamic client registration endpoint (RFC 7591).
	// Omitted entirely when dynamic client registration is disabled.
	RegistrationEndpoint string `json:"registration_endpoint,omitempty"`

	// ScopesSupported lists the OAuth scopes supported
	ScopesSupported []string `json:"scopes_supported,omitempty"`

	// UserinfoEndpoint is the URL of the OpenID Connect userinfo endpoint
	UserinfoEndpoint string `json:"userinfo_endpoint,omitempty"`
}

// ==================== Dynamic Client Registration (RFC 7591) Types ====================

// ClientMetadata represents a dynamic client registration request
type ClientMetadata struct {
	// RedirectURIs is the array of redirection URIs for use in redirect-based flows (required)
	RedirectURIs []string `json:"redirect_uris"`

	// ClientName is the human-readable name of the client
	ClientName string `json:"client_name,omitempty"`

	// LogoURI is the URL of the client's logo image
	LogoURI string `json:"logo_uri,omitempty"`

	// ClientURI is the URL of the client's home page
	ClientURI string `json:"client_uri,omitempty"`

	// TokenEndpointAuthMethod is the requested authentication method for the token endpoint
	TokenEndpointAuthMethod string `json:"token_endpoint_auth_method,omitempty"`

	// GrantTypes is the array of OAuth 2.0 grant types the client will use
	GrantTypes []string `json:"grant_types,omitempty"`

	// ResponseTypes is the array of OAuth 2.0 response types the client will use
	ResponseTypes []string `json:"response_types,omitempty"`

	// Scope is the space-separated list of scope values
	Scope string `json:"scope,omitempty"`
}

// ClientInformation is the registration response: the validated metadata plus
// the client identifier assigned by the remote identity provider. The remote
// provider is the system of record; nothing is persisted locally.
type ClientInformation struct {
	// ClientID is the unique client identifier assigned by the provider
	ClientID string `json:"client_id"`

	ClientMetadata
}

// ==================== Token Verification Types ====================

// AuthInfo describes a validated access token, provided to request handlers.
type AuthInfo struct {
	// Token is the raw access token
	Token string `json:"token"`

	// ClientID is the client ID associated with this token (the subject claim)
	ClientID string `json:"clientId"`

	// Scopes associated with this token (parsed from the scope claim, may be empty)
	Scopes []string `json:"scopes"`

	// ExpiresAt is when the token expires, in seconds since epoch (0 if absent)
	ExpiresAt int64 `json:"expiresAt,omitempty"`
}
