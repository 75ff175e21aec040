// Package descope is a minimal client for the Descope HTTP APIs this module
// consumes: the published project key set and the third-party application
// management endpoints backing dynamic client registration.
package descope

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"
)

const (
	keysPath      = "/v2/keys/"
	createAppPath = "/v1/mgmt/thirdparty/app/create"
	loadAppPath   = "/v1/mgmt/thirdparty/app/load"
)

// Config holds the Descope API connection parameters.
type Config struct {
	// BaseURL is the Descope API base URL
	BaseURL string

	// ProjectID is the Descope project ID
	ProjectID string

	// ManagementKey authenticates management API calls
	ManagementKey string

	// HTTPClient is used for all outbound calls.
	// If nil, a client with a 30 second timeout is used.
	HTTPClient *http.Client

	// Logger for structured logging (optional)
	Logger *slog.Logger
}

// Client calls the Descope APIs. All methods take a context so in-flight
// calls are cancelled when the enclosing request is aborted. There is no
// retry policy; a transport failure is terminal for the request.
type Client struct {
	baseURL       string
	projectID     string
	managementKey string
	httpClient    *http.Client
	logger        *slog.Logger
}

// NewClient creates a Descope API client.
func NewClient(config Config) *Client {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:       strings.TrimRight(config.BaseURL, "/"),
		projectID:     config.ProjectID,
		managementKey: config.ManagementKey,
		httpClient:    httpClient,
		logger:        logger,
	}
}

// APIError is a non-success response from a management endpoint, decoded from
// the Descope error envelope. Both envelope fields are optional.
type APIError struct {
	// StatusCode is the HTTP status of the response
	StatusCode int

	// Code is the Descope error code (errorCode)
	Code string

	// Description is the Descope error description (errorDescription)
	Description string
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("descope api error: %s", e.Summary())
}

// Summary composes "{status}{ - description}{ (code)}", omitting each
// bracketed part when absent.
func (e *APIError) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d", e.StatusCode)
	if e.Description != "" {
		fmt.Fprintf(&b, " - %s", e.Description)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " (%s)", e.Code)
	}
	return b.String()
}

// errorEnvelope is the Descope error response shape.
type errorEnvelope struct {
	ErrorCode        string `json:"errorCode"`
	ErrorDescription string `json:"errorDescription"`
}

// ScopeSpec is the scope shape the app-create endpoint consumes. Optional is
// the logical negation of the registration option's Required flag.
type ScopeSpec struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Optional    bool     `json:"optional"`
	Values      []string `json:"values,omitempty"`
}

// CreateAppRequest is the payload for the third-party app create endpoint.
type CreateAppRequest struct {
	Name                 string      `json:"name,omitempty"`
	ApprovedCallbackURLs []string    `json:"approvedCallbackUrls,omitempty"`
	Logo                 string      `json:"logo,omitempty"`
	LoginPageURL         string      `json:"loginPageUrl,omitempty"`
	PermissionsScopes    []ScopeSpec `json:"permissionsScopes,omitempty"`
	AttributesScopes     []ScopeSpec `json:"attributesScopes,omitempty"`
}

// CreateAppResponse is the app-create response.
type CreateAppResponse struct {
	// ID is the new application's identifier
	ID string `json:"id"`

	// Cleartext is the application secret returned on creation
	Cleartext string `json:"cleartext"`
}

// LoadAppResponse is the app-load response.
type LoadAppResponse struct {
	// ClientID is the OAuth client identifier generated for the application
	ClientID string `json:"clientId"`
}

// CreateApp creates a third-party application via the management API.
func (c *Client) CreateApp(ctx context.Context, req *CreateAppRequest) (*CreateAppResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode create app request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+createAppPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", c.managementAuthorization())
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("create app call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.decodeError(resp)
	}

	var created CreateAppResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("failed to decode create app response: %w", err)
	}

	return &created, nil
}

// LoadApp fetches a third-party application by ID via the management API.
func (c *Client) LoadApp(ctx context.Context, appID string) (*LoadAppResponse, error) {
	loadURL := c.baseURL + loadAppPath + "?id=" + url.QueryEscape(appID)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, loadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", c.managementAuthorization())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("load app call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.decodeError(resp)
	}

	var loaded LoadAppResponse
	if err := json.NewDecoder(resp.Body).Decode(&loaded); err != nil {
		return nil, fmt.Errorf("failed to decode load app response: %w", err)
	}

	return &loaded, nil
}

// KeySetURL returns the URL of the project's published key set.
func (c *Client) KeySetURL() string {
	return c.baseURL + keysPath + c.projectID
}

// FetchKeySet fetches the project's published signing keys. The fetch speaks
// no OAuth vocabulary; callers wrap failures into the appropriate error kind.
func (c *Client) FetchKeySet(ctx context.Context) (jwk.Set, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.KeySetURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("key set fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("key set fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read key set response: %w", err)
	}

	keySet, err := jwk.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse key set: %w", err)
	}
	if keySet.Len() == 0 {
		return nil, fmt.Errorf("no valid keys found in key set")
	}

	return keySet, nil
}

// managementAuthorization builds the management bearer credential,
// "{projectId}:{managementKey}".
func (c *Client) managementAuthorization() string {
	return "Bearer " + c.projectID + ":" + c.managementKey
}

// decodeError decodes the Descope error envelope from a non-success response.
// A body that fails to parse yields an APIError carrying only the status.
func (c *Client) decodeError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var envelope errorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		c.logger.Debug("Failed to decode Descope error envelope", "status", resp.StatusCode, "error", err)
		return apiErr
	}

	apiErr.Code = envelope.ErrorCode
	apiErr.Description = envelope.ErrorDescription
	return apiErr
}
