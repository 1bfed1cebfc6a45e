package triton

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	contentTypeJSON = "application/json"
	userAgent       = "nemo-guardrails-adapter/0.1"

	maxErrorBodyBytes = 64 * 1024
)

// GenerateRequest is the JSON body of the generate endpoint.
type GenerateRequest struct {
	TextInput  string     `json:"text_input"`
	Parameters Parameters `json:"parameters"`
}

// Parameters carries the sampling knobs the generate endpoint accepts.
// Stream is always sent as false by this adapter; Stop is a single scalar
// because the endpoint does not take a list.
type Parameters struct {
	Stream      bool    `json:"stream"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Stop        string  `json:"stop,omitempty"`
}

// GenerateResponse is the JSON body returned on success. A missing
// text_output decodes to the empty string.
type GenerateResponse struct {
	TextOutput string `json:"text_output"`
}

// StatusError reports a non-200 response from the backend, preserving the
// status code and raw body verbatim for the caller to surface.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("triton returned status %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Client issues generate calls against one Triton-style inference server.
type Client struct {
	baseURL string
	model   string
	client  *http.Client
}

// New constructs a client for the given server and model. The HTTP client's
// timeout bounds each generate call.
func New(baseURL, model string, client *http.Client) (*Client, error) {
	if client == nil {
		return nil, errors.New("http client must not be nil")
	}

	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return nil, errors.New("base url must not be empty")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("model name must not be empty")
	}

	return &Client{
		baseURL: baseURL,
		model:   model,
		client:  client,
	}, nil
}

// Model returns the configured backend model name.
func (c *Client) Model() string {
	return c.model
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Generate posts the request to /v2/models/{model}/generate and returns the
// decoded response along with the elapsed wall-clock time. Non-200 statuses
// come back as *StatusError with the raw body attached; transport failures
// are returned as-is, wrapped.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, time.Duration, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return GenerateResponse{}, 0, fmt.Errorf("marshal generate payload: %w", err)
	}

	url := fmt.Sprintf("%s/v2/models/%s/generate", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return GenerateResponse{}, 0, fmt.Errorf("construct generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentTypeJSON)
	httpReq.Header.Set("Accept", contentTypeJSON)
	httpReq.Header.Set("User-Agent", userAgent)

	start := time.Now()
	httpResp, err := c.client.Do(httpReq)
	elapsed := time.Since(start)
	if err != nil {
		return GenerateResponse{}, elapsed, fmt.Errorf("triton generate request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		raw, readErr := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBodyBytes))
		if readErr != nil {
			return GenerateResponse{}, elapsed, fmt.Errorf("triton status %d and failed to read body: %w", httpResp.StatusCode, readErr)
		}
		return GenerateResponse{}, elapsed, &StatusError{
			StatusCode: httpResp.StatusCode,
			Body:       string(raw),
		}
	}

	var resp GenerateResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return GenerateResponse{}, elapsed, fmt.Errorf("decode generate response: %w", err)
	}
	return resp, elapsed, nil
}
