package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultBaseURL    = "https://api.anthropic.com"
	DefaultAPIVersion = "2023-06-01"
	DefaultBeta       = "prompt-tools-2025-04-02"

	messagesPath = "/v1/messages"
)

type ClientOption func(*Client)

func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		if u = strings.TrimRight(strings.TrimSpace(u), "/"); u != "" {
			c.baseURL = u
		}
	}
}

// WithAPIVersion overrides the anthropic-version header. Empty keeps the
// default.
func WithAPIVersion(v string) ClientOption {
	return func(c *Client) {
		if v != "" {
			c.version = v
		}
	}
}

// WithBeta sets the anthropic-beta header. Empty omits it.
func WithBeta(b string) ClientOption {
	return func(c *Client) { c.beta = b }
}

func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// Client talks to the Anthropic Messages endpoint. One Send is one POST; there
// is no retry and no timeout other than what the transport and ctx impose.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	version string
	beta    string
}

func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		version: DefaultAPIVersion,
		beta:    DefaultBeta,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) headers() map[string]string {
	h := map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": c.version,
		"content-type":      "application/json",
	}
	if c.beta != "" {
		h["anthropic-beta"] = c.beta
	}
	return h
}

type apiErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) Send(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding request: %w", ErrRequestFailed, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+messagesPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %w", ErrRequestFailed, err)
	}
	for k, v := range c.headers() {
		if v != "" {
			httpReq.Header.Set(k, v)
		}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", ErrRequestFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s", ErrRequestFailed, statusMessage(resp.StatusCode, raw))
	}

	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %w", ErrRequestFailed, err)
	}
	if err := out.validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid response: %w", ErrRequestFailed, err)
	}
	return &out, nil
}

func statusMessage(code int, body []byte) string {
	var apiErr apiErrorBody
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return fmt.Sprintf("status %d (%s): %s", code, apiErr.Error.Type, apiErr.Error.Message)
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 512 {
		text = text[:512]
	}
	if text == "" {
		text = http.StatusText(code)
	}
	return fmt.Sprintf("status %d: %s", code, text)
}
