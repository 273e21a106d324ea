package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nhle/marketbell/internal/source"
)

// TokenSource supplies the current bearer token. An empty token means
// the request is sent unauthenticated.
type TokenSource interface {
	Token() string
}

// Client is a thin HTTP client for the marketplace REST API.
// It handles Bearer token authentication and the uniform
// {success, data, message} response envelope. It never retries.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
}

// NewClient creates a new API client. The baseURL is the API root
// (e.g., https://market.example.com/api).
func NewClient(baseURL string, tokens TokenSource, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Get performs an HTTP GET request and decodes the envelope into result.
func (c *Client) Get(ctx context.Context, path string, result any) error {
	return c.do(ctx, http.MethodGet, path, nil, result)
}

// Put performs an HTTP PUT request with an optional JSON body.
func (c *Client) Put(ctx context.Context, path string, body any, result any) error {
	return c.do(ctx, http.MethodPut, path, body, result)
}

// Delete performs an HTTP DELETE request.
func (c *Client) Delete(ctx context.Context, path string, result any) error {
	return c.do(ctx, http.MethodDelete, path, nil, result)
}

// do builds the request, handles auth, and decodes the envelope. result
// must embed Envelope (or be nil, in which case a bare Envelope is used).
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body any,
	result any,
) error {
	op := method + " " + pathOnly(path)
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request %s: %w", op, err)
	}

	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return fmt.Errorf("reading response body: %w", readErr)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return &source.AuthError{
			Message: envelopeMessage(respBody, "session token rejected"),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &source.APIError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    envelopeMessage(respBody, strings.TrimSpace(string(respBody))),
		}
	}

	if result == nil {
		result = &Envelope{}
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("unmarshaling response from %s: %w", op, err)
	}

	env, ok := result.(enveloped)
	if !ok {
		return fmt.Errorf("response type for %s does not carry an envelope", op)
	}
	if !env.envelope().Success {
		return &source.APIError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    env.envelope().Message,
		}
	}

	return nil
}

// envelopeMessage pulls "message" out of an error body, falling back to
// fallback when the body is not an envelope.
func envelopeMessage(body []byte, fallback string) string {
	var env Envelope
	if json.Unmarshal(body, &env) == nil && env.Message != "" {
		return env.Message
	}
	return fallback
}

// pathOnly strips the query string for error messages.
func pathOnly(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}
