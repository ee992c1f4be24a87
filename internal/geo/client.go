package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"time"
)

// Client looks up continent codes for IP addresses and classifies them
// against a requested region.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	apacCodes  map[string]struct{}
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout overrides the default request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithAPACCodes overrides the continent codes treated as APAC.
func WithAPACCodes(codes ...string) Option {
	return func(c *Client) {
		set := make(map[string]struct{}, len(codes))
		for _, code := range codes {
			set[strings.ToUpper(strings.TrimSpace(code))] = struct{}{}
		}
		c.apacCodes = set
	}
}

// New creates a geolocation client. The API key is appended verbatim to each
// lookup URL; an empty key is allowed for keyless deployments.
func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("location base url required")
	}
	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apacCodes:  defaultAPACCodes(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type lookupResponse struct {
	Continent struct {
		Code string `json:"code"`
	} `json:"continent"`
	Message string `json:"message"`
}

// Lookup returns the continent code for the given address.
func (c *Client) Lookup(ctx context.Context, addr netip.Addr) (string, error) {
	url := fmt.Sprintf("%s/%s%s", c.baseURL, addr, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("lookup %s: %w", addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("lookup %s: endpoint returned %d", addr, resp.StatusCode)
	}

	var payload lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("lookup %s: decode response: %w", addr, err)
	}
	if payload.Continent.Code == "" {
		if payload.Message != "" {
			return "", fmt.Errorf("lookup %s: %s", addr, payload.Message)
		}
		return "", fmt.Errorf("lookup %s: response carried no continent", addr)
	}
	return strings.ToUpper(payload.Continent.Code), nil
}

// Allowed reports whether a continent code falls inside the requested region.
// RegionNone allows everything.
func (c *Client) Allowed(region Region, continent string) bool {
	switch region {
	case RegionNA:
		return continent == codeNA
	case RegionEU:
		return continent == codeEU
	case RegionAPAC:
		_, ok := c.apacCodes[continent]
		return ok
	default:
		return true
	}
}
