package semantic

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

	"github.com/ShayCichocki/dagforge/pkg/models"
)

// DefaultTimeout bounds a single call to a remote semantic validator.
const DefaultTimeout = 5 * time.Second

// ErrUnexpectedStatus is returned when the service answers with a status
// other than 200 or 422.
var ErrUnexpectedStatus = errors.New("unexpected status from semantic validator")

// Client calls a remote semantic validator over HTTP.
//
// The service answers POST /validate/dag with 200 for a valid specification
// and 422 for an invalid one; both carry a ValidationResult body.
// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// NewClient creates a client for the service at baseURL,
// e.g. "http://localhost:8001".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		timeout: DefaultTimeout,
	}
}

// WithTimeout sets a custom timeout for requests.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if timeout > 0 {
		c.timeout = timeout
		c.httpClient.Timeout = timeout
	}
	return c
}

// WithHTTPClient replaces the underlying HTTP client. The client's own
// timeout is left untouched.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// validateRequest is the body for /validate/dag.
type validateRequest struct {
	DAGSpec *models.Specification `json:"dag_spec"`
}

// healthResponse is the body returned by /health.
type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// Validate sends spec to the service and returns its findings.
// Any transport failure, timeout, unexpected status or undecodable body is
// returned as an error.
func (c *Client) Validate(ctx context.Context, spec *models.Specification) (models.ValidationResult, error) {
	body, err := json.Marshal(validateRequest{DAGSpec: spec})
	if err != nil {
		return models.ValidationResult{}, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/validate/dag", bytes.NewReader(body))
	if err != nil {
		return models.ValidationResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.ValidationResult{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusUnprocessableEntity {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.ValidationResult{}, fmt.Errorf("%w: %d: %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result models.ValidationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return models.ValidationResult{}, fmt.Errorf("decode response: %w", err)
	}
	return result, nil
}

// Health checks that the service is up and returns its reported version.
func (c *Client) Health(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if health.Status != "ok" {
		return "", fmt.Errorf("semantic validator reports status %q", health.Status)
	}
	return health.Version, nil
}
