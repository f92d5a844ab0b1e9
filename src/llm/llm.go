package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultTimeout = 45 * time.Second
	maxBodyBytes   = 8 << 20
)

var (
	// ErrMalformedResponse means the API body was not the JSON document we expect.
	ErrMalformedResponse = errors.New("malformed API response")
	// ErrNoCandidate means the API answered without any candidate.
	ErrNoCandidate = errors.New("no candidates in API response")
)

type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to the Gemini generative-language REST API.
type Client struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
}

func New(cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{apiKey: cfg.APIKey, model: cfg.Model, baseURL: base, http: hc}
}

func (c *Client) Model() string { return c.model }

// Gemini API structures
type Part struct {
	Text string `json:"text"`
}

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type Schema struct {
	Type       string            `json:"type"`
	Properties map[string]Schema `json:"properties,omitempty"`
}

type GenerationConfig struct {
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
	ResponseSchema   *Schema `json:"responseSchema,omitempty"`
}

type GenerateRequest struct {
	Contents         []Content         `json:"contents"`
	GenerationConfig *GenerationConfig `json:"generationConfig,omitempty"`
}

type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

type GenerateResponse struct {
	Candidates []Candidate      `json:"candidates"`
	Error      *json.RawMessage `json:"error,omitempty"`
}

// Text returns candidates[0].content.parts[0].text, or "" when any step is missing.
func (r *GenerateResponse) Text() string {
	if len(r.Candidates) == 0 || len(r.Candidates[0].Content.Parts) == 0 {
		return ""
	}
	return r.Candidates[0].Content.Parts[0].Text
}

// APIError is an error reported by the vendor in the response body.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
	// Raw holds the error value as sent when it is not the usual object.
	Raw string `json:"-"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API error: %s", e.Raw)
	}
	if e.Status != "" {
		return fmt.Sprintf("API error: %s (status: %s, code: %d)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("API error: %s", e.Message)
}

// parseAPIError decodes the vendor error field, which is usually an object but is
// accepted in any JSON shape.
func parseAPIError(raw json.RawMessage) *APIError {
	apiErr := &APIError{}
	if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Message == "" {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return &APIError{Message: s}
		}
		return &APIError{Raw: string(raw)}
	}
	return apiErr
}

// GenerateContent sends one generateContent request. No retries.
func (c *Client) GenerateContent(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if c.model == "" {
		return nil, fmt.Errorf("model is required")
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		c.baseURL, url.PathEscape(c.model), url.QueryEscape(c.apiKey))

	var resp GenerateResponse
	if err := c.do(ctx, http.MethodPost, endpoint, body, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil && string(*resp.Error) != "null" {
		return nil, parseAPIError(*resp.Error)
	}
	return &resp, nil
}

// do performs the HTTP exchange and decodes the body into out. A vendor error
// field is left for the caller; a non-2xx status without a decodable body is an
// HTTP failure.
func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, rdr)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", redactURLError(err, c.apiKey))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var probe struct {
		Error *json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return fmt.Errorf("API returned status %d", resp.StatusCode)
		}
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if resp.StatusCode >= http.StatusBadRequest && (probe.Error == nil || string(*probe.Error) == "null") {
		return fmt.Errorf("API returned status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// redactURLError keeps the API key (a query parameter) out of error strings.
func redactURLError(err error, key string) error {
	if key == "" {
		return err
	}
	msg := err.Error()
	redacted := strings.ReplaceAll(msg, url.QueryEscape(key), "REDACTED")
	redacted = strings.ReplaceAll(redacted, key, "REDACTED")
	if redacted == msg {
		return err
	}
	return errors.New(redacted)
}
