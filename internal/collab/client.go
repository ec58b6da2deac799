// Package collab is the HTTP client for the coaching collaborator service.
package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultBackoff     = 500 * time.Millisecond
	maxBackoff         = 8 * time.Second
	defaultHealthPath  = "/health"
	maxErrorBodyLength = 512
)

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	HealthPath string
	Backoff    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the collaborator over HTTP/JSON and multipart.
type Client struct {
	baseURL    string
	healthPath string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	log        *slog.Logger
}

// New builds a Client from options, filling defaults for zero values.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("collaborator base url is required")
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse collaborator base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("collaborator base url must be http or https, got %q", parsed.Scheme)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	healthPath := strings.TrimSpace(opts.HealthPath)
	if healthPath == "" {
		healthPath = defaultHealthPath
	}
	retries := opts.MaxRetries
	if retries < 0 {
		retries = 0
	}

	return &Client{
		baseURL:    base,
		healthPath: healthPath,
		httpClient: httpClient,
		maxRetries: retries,
		backoff:    backoff,
		log:        opts.Logger,
	}, nil
}

// BaseURL returns the normalized collaborator root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// StatusError is returned for any non-2xx collaborator response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > maxErrorBodyLength {
		body = body[:maxErrorBodyLength] + "..."
	}
	if detail := detailFromBody(body); detail != "" {
		body = detail
	}
	if body == "" {
		return fmt.Sprintf("%s %s: http %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: http %d: %s", e.Method, e.Path, e.StatusCode, body)
}

// HTTPStatusCode exposes the response status for retry classification.
func (e *StatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// detailFromBody extracts the {"detail": "..."} message the collaborator uses for errors.
func detailFromBody(body string) string {
	if !strings.HasPrefix(body, "{") {
		return ""
	}
	var payload struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return ""
	}
	if s, ok := payload.Detail.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// request describes one logical collaborator call.
type request struct {
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
	retry       bool
}

func jsonRequest(method, path string, payload any) (request, error) {
	req := request{method: method, path: path}
	if payload == nil {
		return req, nil
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return request{}, fmt.Errorf("encode %s body: %w", path, err)
	}
	req.body = buf.Bytes()
	req.contentType = "application/json"
	return req, nil
}

// filePart is one file field of a multipart request.
type filePart struct {
	field    string
	filename string
	data     []byte
}

func multipartRequest(path string, fields map[string]string, files ...filePart) (request, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range files {
		fw, err := w.CreateFormFile(f.field, f.filename)
		if err != nil {
			return request{}, err
		}
		if _, err := fw.Write(f.data); err != nil {
			return request{}, err
		}
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return request{}, err
		}
	}
	if err := w.Close(); err != nil {
		return request{}, err
	}
	return request{
		method:      http.MethodPost,
		path:        path,
		body:        buf.Bytes(),
		contentType: w.FormDataContentType(),
	}, nil
}

func (c *Client) doOnce(ctx context.Context, r request) (*http.Response, []byte, error) {
	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return nil, nil, err
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &StatusError{Method: r.method, Path: r.path, StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

// do executes r, retrying transient failures when r.retry is set, and
// returns the raw response body.
func (c *Client) do(ctx context.Context, r request) ([]byte, http.Header, error) {
	attempts := 0
	if r.retry {
		attempts = c.maxRetries
	}
	backoff := c.backoff
	start := time.Now()

	for attempt := 0; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, r)
		if err == nil {
			c.debug("collaborator request", "method", r.method, "path", r.path, "duration", time.Since(start).String())
			return raw, resp.Header, nil
		}

		if attempt == attempts || !isRetryableError(ctx, err) {
			return nil, nil, err
		}

		sleepFor := jitter(retryAfter(resp, backoff, maxBackoff))
		c.warn("collaborator request retrying",
			"path", r.path,
			"attempt", attempt+1,
			"max_retries", attempts,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)

		timer := time.NewTimer(sleepFor)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, nil, ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}

	return nil, nil, fmt.Errorf("unreachable retry loop")
}

// doJSON executes r and decodes a JSON response into out.
func (c *Client) doJSON(ctx context.Context, r request, out any) error {
	raw, _, err := c.do(ctx, r)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", r.path, err)
	}
	return nil
}

func (c *Client) debug(msg string, args ...any) {
	if c.log == nil {
		return
	}
	c.log.Debug(msg, args...)
}

func (c *Client) warn(msg string, args ...any) {
	if c.log == nil {
		return
	}
	c.log.Warn(msg, args...)
}
