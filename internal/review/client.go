package review

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultBaseURL   = "https://api.anthropic.com/v1/messages"
	defaultModel     = "claude-sonnet-4-20250514"
	anthropicVersion = "2023-06-01"
	maxResponseBytes = 1 << 20
)

// Completer sends one system+user exchange to a text-completion service.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// AnthropicClient calls the Messages API. It makes exactly one attempt per call.
type AnthropicClient struct {
	apiKey    string
	baseURL   string
	model     string
	maxTokens int
	client    *http.Client
}

// ClientOption customizes an AnthropicClient.
type ClientOption func(*AnthropicClient)

// WithBaseURL points the client at another endpoint (tests, proxies).
func WithBaseURL(u string) ClientOption { return func(c *AnthropicClient) { c.baseURL = u } }

// WithModel overrides the model id.
func WithModel(m string) ClientOption { return func(c *AnthropicClient) { c.model = m } }

// WithMaxTokens overrides the response token cap.
func WithMaxTokens(n int) ClientOption { return func(c *AnthropicClient) { c.maxTokens = n } }

// WithHTTPClient replaces the transport.
func WithHTTPClient(h *http.Client) ClientOption { return func(c *AnthropicClient) { c.client = h } }

// NewAnthropicClient creates a client for the Messages API.
func NewAnthropicClient(apiKey string, timeout time.Duration, opts ...ClientOption) *AnthropicClient {
	c := &AnthropicClient{
		apiKey:    apiKey,
		baseURL:   defaultBaseURL,
		model:     defaultModel,
		maxTokens: 1024,
		client:    &http.Client{Timeout: timeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Model returns the configured model id.
func (c *AnthropicClient) Model() string { return c.model }

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// StatusError reports a non-success HTTP status from the reviewer.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("reviewer returned HTTP %d", e.StatusCode)
}

// Complete sends one request. Any transport failure or non-200 status is an error.
func (c *AnthropicClient) Complete(ctx context.Context, system, user string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("reviewer api key not set")
	}

	body, err := json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    system,
		Messages:  []message{{Role: "user", Content: user}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{StatusCode: resp.StatusCode}
	}

	var apiResp messagesResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		// The call itself succeeded; an undecodable envelope is a parse problem.
		return string(respBody), nil
	}
	var out bytes.Buffer
	for _, part := range apiResp.Content {
		if part.Type == "text" || part.Type == "" {
			out.WriteString(part.Text)
		}
	}
	return out.String(), nil
}
