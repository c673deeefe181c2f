// Package ordiscan provides a minimal client for the Ordiscan address endpoints.
package ordiscan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	// DefaultBaseURL is the public API root.
	DefaultBaseURL = "https://api.ordiscan.com/v1"

	maxBodyBytes = 4 << 20
)

// Sort orders accepted by the activity endpoints.
const (
	SortNewest = "newest"
	SortOldest = "oldest"
)

// ErrMalformedResponse is returned when a 2xx body is not a JSON envelope with a data field.
var ErrMalformedResponse = errors.New("malformed ordiscan response")

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("ordiscan api status %d", e.StatusCode)
	}
	return fmt.Sprintf("ordiscan api status %d: %s", e.StatusCode, e.Message)
}

// ActivityOptions are the optional pagination and ordering parameters of the
// activity endpoints. Nil Page and empty Sort are not sent.
type ActivityOptions struct {
	Page *int
	Sort string
}

// Client is a minimal HTTP client for the Ordiscan API.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

// New returns a new client. If httpClient is nil, a default with 15s timeout is used.
func New(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), APIKey: apiKey, HTTP: httpClient}
}

// RuneBalances returns the Runes balances held by address.
func (c *Client) RuneBalances(ctx context.Context, address string) (json.RawMessage, error) {
	return c.get(ctx, addressPath(address, "runes"), nil)
}

// BRC20Balances returns the BRC-20 token balances held by address.
func (c *Client) BRC20Balances(ctx context.Context, address string) (json.RawMessage, error) {
	return c.get(ctx, addressPath(address, "brc20"), nil)
}

// RunesActivity returns the Runes transfer history of address.
func (c *Client) RunesActivity(ctx context.Context, address string, opts ActivityOptions) (json.RawMessage, error) {
	return c.get(ctx, addressPath(address, "activity", "runes"), opts.query())
}

// BRC20Activity returns the BRC-20 transfer history of address.
func (c *Client) BRC20Activity(ctx context.Context, address string, opts ActivityOptions) (json.RawMessage, error) {
	return c.get(ctx, addressPath(address, "activity", "brc20"), opts.query())
}

func (o ActivityOptions) query() url.Values {
	q := url.Values{}
	if o.Page != nil {
		q.Set("page", strconv.Itoa(*o.Page))
	}
	if o.Sort != "" {
		q.Set("sort", o.Sort)
	}
	return q
}

func addressPath(address string, segments ...string) string {
	parts := append([]string{"address", url.PathEscape(address)}, segments...)
	return "/" + strings.Join(parts, "/")
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	endpoint := c.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ordiscan request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}
	return extractData(body)
}

func extractData(body []byte) (json.RawMessage, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid json", ErrMalformedResponse)
	}
	data := gjson.GetBytes(body, "data")
	if !data.Exists() {
		return nil, fmt.Errorf("%w: missing data field", ErrMalformedResponse)
	}
	return json.RawMessage(data.Raw), nil
}

// errorMessage pulls a human readable message out of an error body. Ordiscan
// answers with {"error": "..."} or {"error": {"message": "..."}}; anything else
// falls back to the trimmed body text.
func errorMessage(body []byte) string {
	if gjson.ValidBytes(body) {
		for _, path := range []string{"error.message", "error", "message"} {
			if v := gjson.GetBytes(body, path); v.Exists() && v.Type == gjson.String {
				return v.String()
			}
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 512 {
		text = text[:512]
	}
	return text
}
