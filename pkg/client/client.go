// Package client provides a Go client for the contract verification service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrJobNotFound is returned when the service has no job for the given ID.
var ErrJobNotFound = errors.New("verification job not found")

// APIError represents an error response from the verification service.
type APIError struct {
	StatusCode int
	URL        string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP %d from %s: %s", e.StatusCode, e.URL, e.Message)
	}
	return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
}

// RateLimited reports whether the service rejected the request with 429.
func (e *APIError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// Client is a verification service API client.
type Client struct {
	base       *url.URL
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// New creates a new verification service client. The base URL must be
// absolute; path segments are appended to it.
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("base URL %q is not absolute", baseURL)
	}

	c := &Client{
		base: base,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// BaseURL returns the configured service endpoint.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// VerifyClass submits a verification request for the given class hash and
// returns the job ID assigned by the service.
func (c *Client) VerifyClass(ctx context.Context, classHash string, req *VerificationRequest) (string, error) {
	endpoint := c.base.JoinPath("class-verify", classHash)

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(req); err != nil {
		return "", fmt.Errorf("encoding verification request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), &buf)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("submitting verification: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusRequestEntityTooLarge:
		return "", &APIError{
			StatusCode: resp.StatusCode,
			URL:        endpoint.String(),
			Message:    "request payload too large; reduce file sizes or drop unnecessary files",
		}
	default:
		return "", c.parseError(resp, endpoint.String())
	}

	var d dispatch
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return "", fmt.Errorf("decoding submission response: %w", err)
	}
	if d.JobID == "" {
		return "", fmt.Errorf("service accepted submission but returned no job ID")
	}
	return d.JobID, nil
}

// GetJobStatus fetches the full snapshot of a verification job. Returns
// ErrJobNotFound when the service does not know the job ID.
func (c *Client) GetJobStatus(ctx context.Context, jobID string) (*Job, error) {
	endpoint := c.base.JoinPath("class-verify", "job", jobID)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetching job status: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	default:
		return nil, c.parseError(resp, endpoint.String())
	}

	var job Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, fmt.Errorf("decoding job status: %w", err)
	}
	return &job, nil
}

func (c *Client) parseError(resp *http.Response, endpoint string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var errResp struct {
		Error string `json:"error"`
	}
	msg := string(bytes.TrimSpace(body))
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		msg = errResp.Error
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		URL:        endpoint,
		Message:    msg,
	}
}
