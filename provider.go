// Package descopeauth implements an OAuth 2.1 front door that lets Descope
// issue and validate access tokens for an MCP server. It serves RFC 8414
// authorization server metadata, proxies RFC 7591 dynamic client registration
// into Descope management API calls, and validates bearer tokens against the
// project's published key set.
package descopeauth

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/descope-community/descope-mcp-auth/instrumentation"
)

// DefaultBaseURL is the Descope API base URL used when no override is configured.
const DefaultBaseURL = "https://api.descope.com"

// Descope OAuth API endpoint paths.
//
// Descope has no dynamic client registration endpoint of its own; the
// /register handler in this package fills that gap through the management API.
// Paths are appended to the base URL; the issuer additionally carries the
// project ID as its final segment.
const (
	issuerPath        = "/v1/apps/"
	authorizationPath = "/oauth2/v1/apps/authorize"
	tokenPath         = "/oauth2/v1/apps/token"
	revocationPath    = "/oauth2/v1/apps/revoke"
	userinfoPath      = "/oauth2/v1/apps/userinfo"
)

// Environment variables consulted when the corresponding option is empty.
const (
	EnvProjectID     = "DESCOPE_PROJECT_ID"
	EnvManagementKey = "DESCOPE_MANAGEMENT_KEY"
	EnvBaseURL       = "DESCOPE_BASE_URL"
	EnvServerURL     = "SERVER_URL"
)

// defaultOutboundTimeout bounds outbound calls to Descope when no custom
// HTTP client is supplied.
const defaultOutboundTimeout = 30 * time.Second

// AttributeScope declares an attribute-access scope offered to registering clients.
type AttributeScope struct {
	// Name of the scope
	Name string

	// Description of the scope
	Description string

	// Required marks the scope as mandatory; scopes are optional unless set
	Required bool

	// Attributes lists the user attributes the scope grants access to
	Attributes []string
}

// PermissionScope declares a permission scope offered to registering clients.
type PermissionScope struct {
	// Name of the scope
	Name string

	// Description of the scope
	Description string

	// Required marks the scope as mandatory; scopes are optional unless set
	Required bool

	// Roles lists the roles the scope maps to
	Roles []string
}

// DynamicClientRegistrationOptions configures the RFC 7591 registration proxy.
type DynamicClientRegistrationOptions struct {
	// Disabled turns off the /register endpoint and removes
	// registration_endpoint from the metadata document
	Disabled bool

	// AuthPageURL is the hosted authentication page URL passed to created apps
	AuthPageURL string

	// AttributeScopes are the attribute-access scopes advertised and granted
	AttributeScopes []AttributeScope

	// PermissionScopes are the permission scopes advertised and granted
	PermissionScopes []PermissionScope
}

// VerifyTokenOptions configures token verification policy.
type VerifyTokenOptions struct {
	// RequiredScopes must all be present in a token's scope claim
	RequiredScopes []string

	// Audience lists acceptable audiences; a token must match at least one
	Audience []string

	// CacheKeySet enables an auto-refreshing key-set cache instead of
	// fetching the key set on every verification
	CacheKeySet bool
}

// Options holds the raw configuration for a Provider. Explicit values take
// precedence over environment lookups; only BaseURL has a built-in default.
type Options struct {
	// ProjectID is the Descope project ID (or DESCOPE_PROJECT_ID)
	ProjectID string

	// ManagementKey is the Descope management key (or DESCOPE_MANAGEMENT_KEY)
	ManagementKey string

	// BaseURL is the Descope API base URL for custom domains (or DESCOPE_BASE_URL)
	BaseURL string

	// ServerURL is this server's externally reachable URL (or SERVER_URL).
	// Descope endpoints usually live on a different domain than the MCP
	// server; this URL anchors the locally served /authorize and /register.
	ServerURL string

	// DynamicClientRegistration configures the registration proxy
	DynamicClientRegistration DynamicClientRegistrationOptions

	// VerifyToken configures token verification policy
	VerifyToken VerifyTokenOptions

	// ServiceDocumentationURL is advertised as service_documentation metadata
	ServiceDocumentationURL string

	// RegistrationRatePerMinute limits /register calls per client IP.
	// Zero disables limiting.
	RegistrationRatePerMinute int

	// Logger for structured logging (optional, uses slog.Default if not provided)
	Logger *slog.Logger

	// HTTPClient is a custom HTTP client for outbound Descope calls.
	// If not provided, a client with a 30 second timeout is used.
	HTTPClient *http.Client

	// Instrumentation enables OpenTelemetry metrics and tracing (optional)
	Instrumentation *instrumentation.Instrumentation

	// Env overrides environment lookups, mainly for tests.
	// Defaults to os.LookupEnv.
	Env func(key string) (string, bool)
}

// Endpoints holds the derived absolute Descope OAuth endpoint URLs.
type Endpoints struct {
	Issuer        *url.URL
	Authorization *url.URL
	Token         *url.URL
	Revocation    *url.URL
	Userinfo      *url.URL
}

// defaultAttributeScopes is applied when registration options carry no
// attribute scopes.
var defaultAttributeScopes = []AttributeScope{
	{
		Name:        "profile",
		Description: "Access to basic profile information",
		Required:    true,
		Attributes:  []string{"login id", "display name", "picture"},
	},
}

// Provider holds resolved, validated Descope connection parameters and the
// derived OAuth endpoints. It is immutable after construction; construct one
// per process (or per request in stateless deployments) and pass it into the
// handlers and verifier explicitly.
type Provider struct {
	projectID     string
	managementKey string
	baseURL       string
	serverURL     string
	endpoints     Endpoints

	options    Options
	logger     *slog.Logger
	httpClient *http.Client
}

// NewProvider resolves Options into a Provider.
//
// Resolution precedence per field: explicit option, then environment, then
// default. ProjectID, ManagementKey, and ServerURL have no defaults and their
// absence is a fatal configuration error, not an OAuth error, since no request
// context exists yet. Every derived endpoint must use HTTPS unless its host is
// a loopback address.
func NewProvider(opts Options) (*Provider, error) {
	env := opts.Env
	if env == nil {
		env = os.LookupEnv
	}
	lookup := func(explicit, key string) string {
		if explicit != "" {
			return explicit
		}
		if v, ok := env(key); ok {
			return strings.TrimSpace(v)
		}
		return ""
	}

	projectID := lookup(opts.ProjectID, EnvProjectID)
	managementKey := lookup(opts.ManagementKey, EnvManagementKey)
	baseURL := lookup(opts.BaseURL, EnvBaseURL)
	serverURL := lookup(opts.ServerURL, EnvServerURL)

	if projectID == "" {
		return nil, fmt.Errorf("%s is not set", EnvProjectID)
	}
	if managementKey == "" {
		return nil, fmt.Errorf("%s is not set", EnvManagementKey)
	}
	if serverURL == "" {
		return nil, fmt.Errorf("%s is not set", EnvServerURL)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	if len(opts.DynamicClientRegistration.AttributeScopes) == 0 {
		opts.DynamicClientRegistration.AttributeScopes = defaultAttributeScopes
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultOutboundTimeout}
	}

	endpoints, err := deriveEndpoints(baseURL, projectID)
	if err != nil {
		return nil, err
	}

	return &Provider{
		projectID:     projectID,
		managementKey: managementKey,
		baseURL:       baseURL,
		serverURL:     serverURL,
		endpoints:     endpoints,
		options:       opts,
		logger:        logger,
		httpClient:    httpClient,
	}, nil
}

// deriveEndpoints builds and validates the five Descope OAuth endpoint URLs.
func deriveEndpoints(baseURL, projectID string) (Endpoints, error) {
	issuer, err := joinURL(baseURL, issuerPath, projectID)
	if err != nil {
		return Endpoints{}, err
	}
	authorization, err := joinURL(baseURL, authorizationPath)
	if err != nil {
		return Endpoints{}, err
	}
	token, err := joinURL(baseURL, tokenPath)
	if err != nil {
		return Endpoints{}, err
	}
	revocation, err := joinURL(baseURL, revocationPath)
	if err != nil {
		return Endpoints{}, err
	}
	userinfo, err := joinURL(baseURL, userinfoPath)
	if err != nil {
		return Endpoints{}, err
	}

	endpoints := Endpoints{
		Issuer:        issuer,
		Authorization: authorization,
		Token:         token,
		Revocation:    revocation,
		Userinfo:      userinfo,
	}

	for _, u := range []*url.URL{issuer, authorization, token, revocation, userinfo} {
		if err := validateEndpointURL(u); err != nil {
			return Endpoints{}, err
		}
	}

	return endpoints, nil
}

// joinURL joins a base URL with path segments, normalizing to exactly one
// slash between segments.
func joinURL(base string, segments ...string) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("failed to construct URL with base %s and paths %s: invalid base URL", base, strings.Join(segments, ", "))
	}

	parts := []string{strings.TrimRight(parsed.Path, "/")}
	for _, segment := range segments {
		trimmed := strings.Trim(segment, "/")
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	parsed.Path = strings.Join(parts, "/")

	return parsed, nil
}

// validateEndpointURL requires HTTPS for every endpoint except loopback hosts,
// which are exempt for development.
func validateEndpointURL(u *url.URL) error {
	hostname := strings.ToLower(u.Hostname())
	isLoopback := hostname == "localhost" || hostname == "127.0.0.1"

	if !isLoopback && u.Scheme != "https" {
		return fmt.Errorf("URL %s must use HTTPS protocol (except for localhost)", u.String())
	}
	return nil
}

// ProjectID returns the Descope project ID.
func (p *Provider) ProjectID() string { return p.projectID }

// ManagementKey returns the Descope management key.
func (p *Provider) ManagementKey() string { return p.managementKey }

// BaseURL returns the Descope API base URL.
func (p *Provider) BaseURL() string { return p.baseURL }

// ServerURL returns this server's externally reachable URL.
func (p *Provider) ServerURL() string { return p.serverURL }

// Endpoints returns the derived Descope OAuth endpoint URLs.
func (p *Provider) Endpoints() Endpoints { return p.endpoints }

// Options returns the resolved provider options.
func (p *Provider) Options() Options { return p.options }

// serverRelativeURL resolves a path against the configured server URL.
func (p *Provider) serverRelativeURL(path string) string {
	base := strings.TrimRight(p.serverURL, "/")
	return base + "/" + strings.TrimLeft(path, "/")
}
