package descopeauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/descope-community/descope-mcp-auth/descope"
	"github.com/descope-community/descope-mcp-auth/instrumentation"
	"github.com/descope-community/descope-mcp-auth/security"
)

// Handler is a thin HTTP adapter over the Provider. It serves the discovery
// document, the authorization redirect, and the registration proxy, and
// exposes the BearerAuth middleware for protected routes.
type Handler struct {
	provider *Provider
	verifier *Verifier
	descope  *descope.Client
	logger   *slog.Logger
	tracer   trace.Tracer
	inst     *instrumentation.Instrumentation

	registrationLimiter *security.RateLimiter
}

// NewHandler creates an HTTP handler for the provider. The context governs
// background resources such as the key-set cache.
func NewHandler(ctx context.Context, provider *Provider) (*Handler, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}

	verifier, err := NewVerifier(ctx, provider)
	if err != nil {
		return nil, err
	}

	h := &Handler{
		provider: provider,
		verifier: verifier,
		descope:  verifier.client,
		logger:   provider.logger,
		inst:     provider.options.Instrumentation,
	}

	if h.inst != nil {
		h.tracer = h.inst.Tracer("http")
	}

	if rate := provider.options.RegistrationRatePerMinute; rate > 0 {
		h.registrationLimiter = security.NewRateLimiter(rate, rate)
	}

	return h, nil
}

// Verifier returns the handler's token verifier.
func (h *Handler) Verifier() *Verifier {
	return h.verifier
}

// ServeMetadata serves the RFC 8414 authorization server metadata document.
//
// The authorization endpoint points at this server's own /authorize (so a
// default scope can be injected) while token, revocation, and userinfo point
// directly at Descope. registration_endpoint is omitted entirely when dynamic
// client registration is disabled.
func (h *Handler) ServeMetadata(w http.ResponseWriter, r *http.Request) {
	if h.handleCORSPreflight(w, r, http.MethodGet) {
		return
	}
	if !h.allowMethods(w, r, http.MethodGet) {
		return
	}

	setOpenCORSHeaders(w)
	security.SetSecurityHeaders(w, h.provider.ServerURL())

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.buildMetadata())
}

// buildMetadata assembles the discovery document from the provider config.
func (h *Handler) buildMetadata() *AuthorizationServerMetadata {
	endpoints := h.provider.Endpoints()
	registration := h.provider.options.DynamicClientRegistration

	// "openid" first, then attribute scopes, then permission scopes, in
	// configured order, without deduplication.
	scopesSupported := []string{"openid"}
	for _, scope := range registration.AttributeScopes {
		scopesSupported = append(scopesSupported, scope.Name)
	}
	for _, scope := range registration.PermissionScopes {
		scopesSupported = append(scopesSupported, scope.Name)
	}

	metadata := &AuthorizationServerMetadata{
		Issuer:               endpoints.Issuer.String(),
		ServiceDocumentation: h.provider.options.ServiceDocumentationURL,

		AuthorizationEndpoint:         h.provider.serverRelativeURL("/authorize"),
		ResponseTypesSupported:        []string{"code"},
		CodeChallengeMethodsSupported: []string{"S256"},

		TokenEndpoint:                     endpoints.Token.String(),
		TokenEndpointAuthMethodsSupported: []string{"client_secret_post"},
		GrantTypesSupported:               []string{"authorization_code", "refresh_token"},

		RevocationEndpoint:                     endpoints.Revocation.String(),
		RevocationEndpointAuthMethodsSupported: []string{"client_secret_post"},

		ScopesSupported:  scopesSupported,
		UserinfoEndpoint: endpoints.Userinfo.String(),
	}

	if !registration.Disabled {
		metadata.RegistrationEndpoint = h.provider.serverRelativeURL("/register")
	}

	return metadata
}

// ServeAuthorization redirects authorization requests to Descope.
//
// OAuth 2.1 Section 1.4.1 requires the authorization server to either process
// a scope-less request with a documented default or fail it. Descope fails
// such requests, so a default "openid" scope is injected here before
// forwarding all parameters verbatim.
func (h *Handler) ServeAuthorization(w http.ResponseWriter, r *http.Request) {
	if !h.allowMethods(w, r, http.MethodGet, http.MethodPost) {
		return
	}

	params := url.Values{}
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			h.writeOAuthError(w, ErrInvalidRequest("Failed to parse request parameters"))
			return
		}
		params = r.PostForm
	} else {
		params = r.URL.Query()
	}

	if params.Get("scope") == "" {
		params.Set("scope", "openid")
	}

	target := *h.provider.Endpoints().Authorization
	target.RawQuery = params.Encode()

	http.Redirect(w, r, target.String(), http.StatusFound)
}

// ServeRegistration proxies RFC 7591 dynamic client registration into the
// Descope management API: a create call mints the application, a load call
// fetches its generated client identifier, and the response merges that
// identifier into the validated request metadata.
func (h *Handler) ServeRegistration(w http.ResponseWriter, r *http.Request) {
	if h.handleCORSPreflight(w, r, http.MethodPost) {
		return
	}
	if !h.allowMethods(w, r, http.MethodPost) {
		return
	}

	setOpenCORSHeaders(w)
	security.SetSecurityHeaders(w, h.provider.ServerURL())
	w.Header().Set("Cache-Control", "no-store")

	ctx := r.Context()
	var span trace.Span
	if h.tracer != nil {
		ctx, span = h.tracer.Start(ctx, "oauth.http.client_registration")
		defer span.End()
	}

	if h.registrationLimiter != nil && !h.registrationLimiter.Allow(security.GetClientIP(r)) {
		w.Header().Set("Retry-After", "60")
		h.writeOAuthError(w, ErrInvalidRequest("Registration rate limit exceeded. Please try again later."))
		return
	}

	start := time.Now()
	info, err := h.registerClient(ctx, r)
	if h.inst != nil {
		h.inst.Metrics().RecordClientRegistration(ctx, err == nil, time.Since(start))
	}
	if err != nil {
		h.writeRegistrationError(w, span, err)
		return
	}

	if span != nil {
		instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrClientID, info.ClientID))
		instrumentation.SetSpanSuccess(span)
	}

	h.logger.Info("Registered new OAuth client", "client_id", info.ClientID, "client_name", info.ClientName)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(info)
}

// registerClient parses, validates, and executes a registration request.
func (h *Handler) registerClient(ctx context.Context, r *http.Request) (*ClientInformation, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, ErrInvalidRequest("Request body must be a JSON object")
	}
	trimmed := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(trimmed, "{") {
		return nil, ErrInvalidRequest("Request body must be a JSON object")
	}

	var metadata ClientMetadata
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return nil, ErrInvalidClientMetadata(fmt.Sprintf("Invalid client metadata: %v", err))
	}

	if err := validateClientMetadata(&metadata); err != nil {
		return nil, err
	}

	registration := h.provider.options.DynamicClientRegistration

	created, err := h.descope.CreateApp(ctx, &descope.CreateAppRequest{
		Name:                 metadata.ClientName,
		ApprovedCallbackURLs: metadata.RedirectURIs,
		Logo:                 metadata.LogoURI,
		LoginPageURL:         registration.AuthPageURL,
		PermissionsScopes:    permissionScopeSpecs(registration.PermissionScopes),
		AttributesScopes:     attributeScopeSpecs(registration.AttributeScopes),
	})
	if err != nil {
		return nil, wrapRegistrationError("Failed to create app", err)
	}

	// Not transactional: if the load fails here, the created app remains at
	// Descope with no client identifier returned to the caller.
	loaded, err := h.descope.LoadApp(ctx, created.ID)
	if err != nil {
		return nil, wrapRegistrationError("Failed to load app", err)
	}

	info := &ClientInformation{
		ClientID:       loaded.ClientID,
		ClientMetadata: metadata,
	}
	if err := validateClientInformation(info); err != nil {
		return nil, err
	}

	return info, nil
}

// wrapRegistrationError turns a management API failure into a server_error
// carrying the composed Descope error summary.
func wrapRegistrationError(prefix string, err error) error {
	var apiErr *descope.APIError
	if errors.As(err, &apiErr) {
		return ErrServerError(fmt.Sprintf("%s: %s", prefix, apiErr.Summary()))
	}
	return err
}

// writeRegistrationError maps registration failures onto the response.
// server_error maps to 500, every other OAuth error to 400, and anything
// outside the taxonomy is logged and converted to a generic server_error.
func (h *Handler) writeRegistrationError(w http.ResponseWriter, span trace.Span, err error) {
	if span != nil {
		instrumentation.SetSpanError(span, err)
	}

	var oauthErr *OAuthError
	if !errors.As(err, &oauthErr) {
		h.logger.Error("Unexpected error registering client", "error", err)
		h.writeOAuthErrorWithStatus(w, ErrServerError("Internal Server Error"), http.StatusInternalServerError)
		return
	}

	status := http.StatusBadRequest
	if oauthErr.Code == ErrorCodeServerError {
		status = http.StatusInternalServerError
	}
	h.writeOAuthErrorWithStatus(w, oauthErr, status)
}

// validateClientMetadata enforces the RFC 7591 client metadata schema.
func validateClientMetadata(metadata *ClientMetadata) *OAuthError {
	if len(metadata.RedirectURIs) == 0 {
		return ErrInvalidClientMetadata("redirect_uris is required and must contain at least one URI")
	}

	for _, raw := range metadata.RedirectURIs {
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Scheme == "" {
			return ErrInvalidClientMetadata(fmt.Sprintf("redirect_uris contains an invalid URI: %q", raw))
		}
	}

	if metadata.LogoURI != "" {
		if _, err := url.Parse(metadata.LogoURI); err != nil {
			return ErrInvalidClientMetadata("logo_uri must be a valid URI")
		}
	}

	return nil
}

// validateClientInformation validates the full client information object
// before it is returned as the registration response.
func validateClientInformation(info *ClientInformation) *OAuthError {
	if info.ClientID == "" {
		return ErrServerError("Provider returned no client identifier")
	}
	return validateClientMetadata(&info.ClientMetadata)
}

// permissionScopeSpecs translates configured permission scopes into the
// Descope app-create shape. A scope is optional unless explicitly required.
func permissionScopeSpecs(scopes []PermissionScope) []descope.ScopeSpec {
	specs := make([]descope.ScopeSpec, 0, len(scopes))
	for _, scope := range scopes {
		specs = append(specs, descope.ScopeSpec{
			Name:        scope.Name,
			Description: scope.Description,
			Optional:    !scope.Required,
			Values:      scope.Roles,
		})
	}
	return specs
}

// attributeScopeSpecs translates configured attribute scopes into the
// Descope app-create shape.
func attributeScopeSpecs(scopes []AttributeScope) []descope.ScopeSpec {
	specs := make([]descope.ScopeSpec, 0, len(scopes))
	for _, scope := range scopes {
		specs = append(specs, descope.ScopeSpec{
			Name:        scope.Name,
			Description: scope.Description,
			Optional:    !scope.Required,
			Values:      scope.Attributes,
		})
	}
	return specs
}

// allowMethods gates the request on the allowed methods. When the method is
// not allowed it writes a 405 with an Allow header listing exactly the
// permitted methods and returns false.
func (h *Handler) allowMethods(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, method := range methods {
		if r.Method == method {
			return true
		}
	}

	w.Header().Set("Allow", strings.Join(methods, ", "))
	h.writeOAuthError(w, ErrMethodNotAllowed(fmt.Sprintf("Method %q is not allowed", r.Method)))
	return false
}

// handleCORSPreflight answers browser preflight requests on endpoints with an
// open CORS policy. Returns true when the request was a preflight and a
// response has been written.
func (h *Handler) handleCORSPreflight(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	if r.Method != http.MethodOptions || r.Header.Get("Access-Control-Request-Method") == "" {
		return false
	}

	setOpenCORSHeaders(w)
	w.Header().Set("Access-Control-Allow-Methods", strings.Join(methods, ", "))
	if requested := r.Header.Get("Access-Control-Request-Headers"); requested != "" {
		w.Header().Set("Access-Control-Allow-Headers", requested)
	}
	w.WriteHeader(http.StatusNoContent)
	return true
}

// setOpenCORSHeaders allows any origin. The intended caller population is
// browser-based MCP clients on arbitrary origins.
func setOpenCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

// writeOAuthError writes the error's wire format with its mapped status.
func (h *Handler) writeOAuthError(w http.ResponseWriter, err *OAuthError) {
	h.writeOAuthErrorWithStatus(w, err, err.Status())
}

func (h *Handler) writeOAuthErrorWithStatus(w http.ResponseWriter, err *OAuthError, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err.ToResponseObject())
}
