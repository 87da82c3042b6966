// Package cloudflare implements the ipweaver provider interface against the
// Cloudflare v4 API.
package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"gitlab.bluewillows.net/root/ipweaver/pkg/provider"
)

const (
	// DefaultAPIEndpoint is the base URL for Cloudflare API v4.
	DefaultAPIEndpoint = "https://api.cloudflare.com/client/v4"

	// DefaultTimeout is the HTTP client timeout.
	DefaultTimeout = 30 * time.Second
)

// apiError represents an error from the Cloudflare API.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// apiResponse is the standard Cloudflare API response wrapper.
type apiResponse struct {
	Success  bool            `json:"success"`
	Errors   []apiError      `json:"errors"`
	Messages []string        `json:"messages"`
	Result   json.RawMessage `json:"result"`
}

// zoneResult represents a zone from the Cloudflare API.
type zoneResult struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// dnsRecord represents a DNS record from the Cloudflare API.
type dnsRecord struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
	Proxied bool   `json:"proxied"`
	ZoneID  string `json:"zone_id"`
}

// recordRequest is the request body for creating or updating a DNS record.
type recordRequest struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	Proxied bool   `json:"proxied"`
	TTL     int    `json:"ttl"`
}

// Client is a Cloudflare DNS API client implementing provider.Provider.
type Client struct {
	apiEndpoint string
	token       string
	accountID   string
	httpClient  *http.Client
	logger      *slog.Logger
}

var _ provider.Provider = (*Client)(nil)

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithAccountID scopes zone listings to one account. Useful for tokens
// with access to zones across several accounts.
func WithAccountID(accountID string) ClientOption {
	return func(c *Client) {
		c.accountID = accountID
	}
}

// WithAPIEndpoint sets a custom API base URL.
func WithAPIEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		if endpoint != "" {
			c.apiEndpoint = endpoint
		}
	}
}

// NewClient creates a new Cloudflare API client.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		apiEndpoint: DefaultAPIEndpoint,
		token:       token,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Name implements provider.Provider.
func (c *Client) Name() string {
	return "cloudflare"
}

// doRequest performs an HTTP request to the Cloudflare API and decodes the
// standard response envelope. Transport faults map to
// provider.ErrProviderUnavailable; rejected requests map to
// *provider.APIError carrying status and reason.
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) (*apiResponse, error) {
	reqURL := fmt.Sprintf("%s%s", c.apiEndpoint, path)

	c.logger.Debug("making API request",
		slog.String("method", method),
		slog.String("path", path),
	)

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response body: %v", provider.ErrProviderUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reason := resp.Status
		var apiResp apiResponse
		if err := json.Unmarshal(respBody, &apiResp); err == nil && len(apiResp.Errors) > 0 {
			reason = fmt.Sprintf("%s (code: %d)", apiResp.Errors[0].Message, apiResp.Errors[0].Code)
		}
		return nil, &provider.APIError{StatusCode: resp.StatusCode, Reason: reason}
	}

	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("parsing response JSON: %w", err)
	}

	if !apiResp.Success {
		reason := "request failed with success=false"
		if len(apiResp.Errors) > 0 {
			reason = fmt.Sprintf("%s (code: %d)", apiResp.Errors[0].Message, apiResp.Errors[0].Code)
		}
		return nil, &provider.APIError{StatusCode: resp.StatusCode, Reason: reason}
	}

	return &apiResp, nil
}

// Ping checks connectivity to the Cloudflare API.
// Uses the /user/tokens/verify endpoint which is lightweight.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodGet, "/user/tokens/verify", nil)
	return provider.WrapError(c.Name(), "ping", err)
}

// ZoneID returns the zone ID for the given domain name.
//
// The zone listing is filtered by name server-side, but the result set is
// still scanned for an exact match: Cloudflare treats the name parameter as
// a filter, not a guarantee.
func (c *Client) ZoneID(ctx context.Context, domain string) (string, error) {
	params := url.Values{}
	params.Set("name", domain)
	if c.accountID != "" {
		params.Set("account.id", c.accountID)
	}

	resp, err := c.doRequest(ctx, http.MethodGet, "/zones?"+params.Encode(), nil)
	if err != nil {
		return "", provider.WrapError(c.Name(), "list zones", err)
	}

	var zones []zoneResult
	if err := json.Unmarshal(resp.Result, &zones); err != nil {
		return "", provider.WrapError(c.Name(), "list zones", fmt.Errorf("parsing zones response: %w", err))
	}

	for _, z := range zones {
		if z.Name == domain {
			c.logger.Debug("found zone",
				slog.String("domain", domain),
				slog.String("zone_id", z.ID),
			)
			return z.ID, nil
		}
	}

	return "", provider.WrapError(c.Name(), "list zones",
		fmt.Errorf("no zone named %q: %w", domain, provider.ErrNotFound))
}

// FindRecord returns the ID of the record matching fqdn and recordType in
// the given zone.
//
// The record listing is requested unfiltered and scanned client-side, so
// cost is proportional to the number of records in the zone. Empty result
// sets are not an error; they map to ErrNotFound like any other miss.
func (c *Client) FindRecord(ctx context.Context, zoneID, fqdn string, recordType provider.RecordType) (string, error) {
	path := fmt.Sprintf("/zones/%s/dns_records", zoneID)
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", provider.WrapError(c.Name(), "list records", err)
	}

	var records []dnsRecord
	if err := json.Unmarshal(resp.Result, &records); err != nil {
		return "", provider.WrapError(c.Name(), "list records", fmt.Errorf("parsing records response: %w", err))
	}

	c.logger.Debug("listed records",
		slog.String("zone_id", zoneID),
		slog.Int("count", len(records)),
	)

	for _, r := range records {
		if r.Name == fqdn && r.Type == string(recordType) {
			return r.ID, nil
		}
	}

	return "", provider.WrapError(c.Name(), "list records",
		fmt.Errorf("no %s record for %q: %w", recordType, fqdn, provider.ErrNotFound))
}

// CreateRecord creates a new DNS record in the given zone and returns its ID.
func (c *Client) CreateRecord(ctx context.Context, zoneID string, record provider.Record) (string, error) {
	bodyBytes, err := json.Marshal(recordRequest{
		Type:    string(record.Type),
		Name:    record.Name,
		Content: record.Content,
		Proxied: record.Proxied,
		TTL:     record.TTL,
	})
	if err != nil {
		return "", provider.WrapError(c.Name(), "create record", fmt.Errorf("marshaling request: %w", err))
	}

	path := fmt.Sprintf("/zones/%s/dns_records", zoneID)
	resp, err := c.doRequest(ctx, http.MethodPost, path, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", provider.WrapError(c.Name(), "create record", err)
	}

	var created dnsRecord
	if err := json.Unmarshal(resp.Result, &created); err != nil {
		return "", provider.WrapError(c.Name(), "create record", fmt.Errorf("parsing create response: %w", err))
	}
	if created.ID == "" {
		return "", provider.WrapError(c.Name(), "create record", fmt.Errorf("response result carries no record id"))
	}

	c.logger.Debug("created DNS record",
		slog.String("zone_id", zoneID),
		slog.String("record_id", created.ID),
		slog.String("type", string(record.Type)),
	)

	return created.ID, nil
}

// UpdateRecord rewrites an existing record and returns its ID, confirming
// the ID is still valid on the provider side.
func (c *Client) UpdateRecord(ctx context.Context, zoneID, recordID string, record provider.Record) (string, error) {
	bodyBytes, err := json.Marshal(recordRequest{
		Type:    string(record.Type),
		Name:    record.Name,
		Content: record.Content,
		Proxied: record.Proxied,
		TTL:     record.TTL,
	})
	if err != nil {
		return "", provider.WrapError(c.Name(), "update record", fmt.Errorf("marshaling request: %w", err))
	}

	path := fmt.Sprintf("/zones/%s/dns_records/%s", zoneID, recordID)
	resp, err := c.doRequest(ctx, http.MethodPatch, path, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", provider.WrapError(c.Name(), "update record", err)
	}

	var updated dnsRecord
	if err := json.Unmarshal(resp.Result, &updated); err != nil {
		return "", provider.WrapError(c.Name(), "update record", fmt.Errorf("parsing update response: %w", err))
	}
	if updated.ID == "" {
		// Some API deployments omit the record body on update; the PATCH
		// succeeded against this ID, so it is still valid.
		return recordID, nil
	}

	return updated.ID, nil
}
