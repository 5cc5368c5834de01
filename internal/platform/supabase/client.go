// Package supabase is a small client for the Storage and PostgREST APIs of a
// Supabase project. It is constructed once from {endpoint, credential} and
// injected where needed.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type Options struct {
	Endpoint   string
	Credential string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Client struct {
	endpoint   string
	credential string
	http       *http.Client
}

// APIError carries the message the remote service reported. Storage puts
// its own status in the body (statusCode) and answers 400 for most of them.
type APIError struct {
	StatusCode   int
	RemoteStatus string
	Code         string
	Message      string
	// Err is the sentinel the error maps to, if any.
	Err error
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// status prefers the status reported in the body over the HTTP one.
func (e *APIError) status() string {
	if e.RemoteStatus != "" {
		return e.RemoteStatus
	}
	return strconv.Itoa(e.StatusCode)
}

func NewClient(opts Options) (*Client, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(opts.Endpoint), "/")
	if endpoint == "" {
		return nil, fmt.Errorf("supabase endpoint is required")
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("parse supabase endpoint failed: %w", err)
	}
	if opts.Credential == "" {
		return nil, fmt.Errorf("supabase credential is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		endpoint:   endpoint,
		credential: opts.Credential,
		http:       httpClient,
	}, nil
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	size        int64
	contentType string
	headers     map[string]string
}

func (c *Client) do(ctx context.Context, req request, out any) error {
	target := c.endpoint + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, req.body)
	if err != nil {
		return fmt.Errorf("build request failed: %w", err)
	}
	if req.size > 0 {
		httpReq.ContentLength = req.size
	}
	httpReq.Header.Set("apikey", c.credential)
	httpReq.Header.Set("Authorization", "Bearer "+c.credential)
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", req.method, req.path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response failed: %w", req.path, err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload any, headers map[string]string, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request payload failed: %w", err)
	}
	return c.do(ctx, request{
		method:      method,
		path:        path,
		body:        bytes.NewReader(body),
		contentType: "application/json",
		headers:     headers,
	}, out)
}

// decodeAPIError reads the error shapes used by Storage ({error, message})
// and PostgREST ({code, message, details, hint}).
func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var payload struct {
		StatusCode json.RawMessage `json:"statusCode"`
		Code       string          `json:"code"`
		Message    string          `json:"message"`
		Error      string          `json:"error"`
		Msg        string          `json:"msg"`
	}
	apiErr := &APIError{StatusCode: resp.StatusCode}
	message := ""
	if json.Unmarshal(raw, &payload) == nil {
		apiErr.RemoteStatus = strings.Trim(string(payload.StatusCode), `"`)
		apiErr.Code = payload.Code
		if apiErr.Code == "" {
			apiErr.Code = payload.Error
		}
		switch {
		case payload.Message != "":
			message = payload.Message
		case payload.Error != "":
			message = payload.Error
		case payload.Msg != "":
			message = payload.Msg
		}
	}
	if message == "" {
		message = strings.TrimSpace(string(raw))
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	apiErr.Message = message
	return apiErr
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
