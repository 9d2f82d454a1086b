// Package aihttp is the JSON-over-HTTP client shared by the AI provider adapters.
// Every failure is reported as a *domain.ProviderError so callers can match
// domain.ErrProvider and domain.ErrRateLimited without knowing the provider.
package aihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

// maxErrorBody bounds how much of an error response is kept in the message.
const maxErrorBody = 512

// Client sends JSON requests to one provider's API.
type Client struct {
	http     *http.Client
	baseURL  string
	provider string
	headers  map[string]string
}

// Option configures a Client.
type Option func(*options)

type options struct {
	bearer     string
	headers    map[string]string
	httpClient *http.Client
}

// WithBearer authenticates every request with an Authorization: Bearer header.
func WithBearer(token string) Option {
	return func(o *options) { o.bearer = token }
}

// WithHeader adds a static header to every request.
func WithHeader(key, value string) Option {
	return func(o *options) { o.headers[key] = value }
}

// WithHTTPClient replaces the underlying HTTP client. Bearer auth is not applied to it.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// New creates a client for provider rooted at baseURL.
func New(provider, baseURL string, timeout time.Duration, opts ...Option) *Client {
	o := options{headers: make(map[string]string)}
	for _, opt := range opts {
		opt(&o)
	}

	hc := o.httpClient
	if hc == nil {
		if o.bearer != "" {
			hc = oauth2.NewClient(context.Background(),
				oauth2.StaticTokenSource(&oauth2.Token{AccessToken: o.bearer, TokenType: "Bearer"}))
		} else {
			hc = &http.Client{}
		}
		hc.Timeout = timeout
	}

	return &Client{
		http:     hc,
		baseURL:  strings.TrimRight(baseURL, "/"),
		provider: provider,
		headers:  o.headers,
	}
}

// BaseURL returns the API root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// PostJSON sends in as a JSON body to path and decodes the response into out.
// op names the operation in errors ("chat", "embed").
func (c *Client) PostJSON(ctx context.Context, op, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, op, out)
}

// Get issues a GET to path and decodes the response into out, which may be nil.
func (c *Client) Get(ctx context.Context, op, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("create %s request: %w", op, err)
	}
	return c.do(req, op, out)
}

func (c *Client) do(req *http.Request, op string, out any) error {
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &domain.ProviderError{Provider: c.provider, Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.ProviderError{Provider: c.provider, Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &domain.ProviderError{
			Provider:   c.provider,
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", errorMessage(body)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &domain.ProviderError{
			Provider:   c.provider,
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("decode response: %w", err),
		}
	}
	return nil
}

// errorMessage extracts a readable message from an error body.
// Handles {"error":{"message":...}}, {"error":"..."} and plain text.
func errorMessage(body []byte) string {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Error) > 0 {
		var text string
		if json.Unmarshal(envelope.Error, &text) == nil && text != "" {
			return text
		}
		var obj struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(envelope.Error, &obj) == nil && obj.Message != "" {
			return obj.Message
		}
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return "empty response"
	}
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody] + "..."
	}
	return msg
}
