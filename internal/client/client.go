// Package client talks to the rule backend's REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"grimm.is/rulegate/internal/brand"
	"grimm.is/rulegate/internal/logging"
	"grimm.is/rulegate/internal/metrics"
	"grimm.is/rulegate/internal/rules"

	"github.com/google/uuid"
)

// RequestIDHeader carries a per-call id so backend logs can be correlated.
const RequestIDHeader = "X-Request-ID"

// ValidationError is a 400 answer to a rule creation. Message is the
// backend's explanation, meant to be shown next to the input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "rule rejected: " + e.Message
}

// StatusError is any other non-2xx answer.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend error (status %d)", e.Code)
	}
	return fmt.Sprintf("backend error (status %d): %s", e.Code, e.Message)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// HTTPClient is the backend client. It keeps the session cookie issued by
// Login in its own jar, so one HTTPClient is one backend session.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
	metrics    *metrics.Registry
}

// ClientOption configures the HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying http.Client. Its jar is used as is.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *logging.Logger) ClientOption {
	return func(c *HTTPClient) {
		c.logger = l
	}
}

// WithMetrics records request counts and latency into r.
func WithMetrics(r *metrics.Registry) ClientOption {
	return func(c *HTTPClient) {
		c.metrics = r
	}
}

// NewHTTPClient creates a new HTTPClient for the given base URL.
func NewHTTPClient(baseURL string, opts ...ClientOption) *HTTPClient {
	// cookiejar.New only fails on a bad PublicSuffixList, and we pass none.
	jar, _ := cookiejar.New(nil)

	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar,
		},
		logger: logging.WithComponent("client"),
	}

	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = metrics.Get()
	}
	return c
}

// BaseURL returns the backend address this client talks to.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// message is the backend's error body.
type message struct {
	Message string `json:"message"`
}

// doRequest performs an HTTP request and decodes the JSON response.
// Non-2xx answers come back as *StatusError.
func (c *HTTPClient) doRequest(ctx context.Context, endpoint, method, path string, body, result any) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	reqID := uuid.NewString()
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", brand.UserAgent())
	req.Header.Set(RequestIDHeader, reqID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordBackendRequest(endpoint, 0, time.Since(start))
		c.logger.Warn("backend request failed", "endpoint", endpoint, "request_id", reqID, "error", err)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.metrics.RecordBackendRequest(endpoint, resp.StatusCode, time.Since(start))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var m message
		if json.Unmarshal(respBody, &m) != nil || m.Message == "" {
			m.Message = strings.TrimSpace(string(respBody))
		}
		c.logger.Debug("backend rejected request",
			"endpoint", endpoint, "status", resp.StatusCode, "request_id", reqID, "message", m.Message)
		return &StatusError{Code: resp.StatusCode, Message: m.Message}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// Login exchanges the password for a backend session. The session cookie
// stays in the client's jar.
func (c *HTTPClient) Login(ctx context.Context, password string) error {
	return c.doRequest(ctx, "get_token", http.MethodPost, "/get_token", map[string]string{"password": password}, nil)
}

// ListServices returns the service names in backend order.
func (c *HTTPClient) ListServices(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.doRequest(ctx, "services", http.MethodGet, "/services", nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// ListRules returns the rules of one service in backend order.
func (c *HTTPClient) ListRules(ctx context.Context, service string) ([]rules.Rule, error) {
	var list []rules.Rule
	path := "/rules/filter/" + url.PathEscape(service)
	if err := c.doRequest(ctx, "rules_filter", http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// ListAllRules returns every rule of every service.
func (c *HTTPClient) ListAllRules(ctx context.Context) ([]rules.Rule, error) {
	var list []rules.Rule
	if err := c.doRequest(ctx, "rules_list", http.MethodGet, "/rules", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// CreateRule submits a new rule. A 400 answer is returned as
// *ValidationError.
func (c *HTTPClient) CreateRule(ctx context.Context, nr rules.NewRule) (*rules.Rule, error) {
	var created rules.Rule
	err := c.doRequest(ctx, "rules_create", http.MethodPost, "/rules", nr, &created)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusBadRequest {
			return nil, &ValidationError{Message: se.Message}
		}
		return nil, err
	}
	if created.ServiceName == "" {
		created.ServiceName = nr.ServiceName
	}
	return &created, nil
}

// DeleteRule removes a rule by id.
func (c *HTTPClient) DeleteRule(ctx context.Context, id int64) error {
	path := "/rules/" + strconv.FormatInt(id, 10)
	return c.doRequest(ctx, "rules_delete", http.MethodDelete, path, nil, nil)
}

// Ping checks that the backend answers HTTP at all. Any status counts:
// an unauthenticated client gets 401 from every route but /get_token.
func (c *HTTPClient) Ping(ctx context.Context) error {
	err := c.doRequest(ctx, "services", http.MethodGet, "/services", nil, nil)
	var se *StatusError
	if errors.As(err, &se) {
		return nil
	}
	return err
}
