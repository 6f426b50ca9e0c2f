// Package r2 is a minimal client for the Cloudflare R2 S3-compatible object
// API. Each logical operation issues exactly one signed HTTP exchange; there
// is no retrying, batching or caching. A Client is safe for concurrent use:
// its credentials and endpoint are fixed at construction and never mutated.
package r2

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/abhishekgoyaldev/SimpleR2/pkg/sigv4"
)

// DefaultTimeout bounds each HTTP exchange unless overridden via WithTimeout.
const DefaultTimeout = 5 * time.Second

// Response is the outcome of a successful exchange: the status code, the raw
// body and the response headers flattened to single values.
type Response struct {
	StatusCode int
	Body       []byte
	Header     map[string]string
}

// Client issues signed requests against a single R2 endpoint.
type Client struct {
	endpoint string
	creds    sigv4.Credentials
	timeout  time.Duration
	httpc    *http.Client
	now      func() time.Time
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithHTTPClient substitutes the underlying transport.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) {
		c.httpc = httpc
	}
}

// New creates a Client for the given endpoint, such as
// "https://<account>.r2.cloudflarestorage.com", using the given credentials.
func New(endpoint string, creds sigv4.Credentials, opts ...Option) (*Client, error) {
	endpoint = strings.TrimRight(endpoint, "/")
	if endpoint == "" {
		return nil, errors.New("endpoint must not be empty")
	}
	if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		return nil, errors.New("access key ID and secret access key must not be empty")
	}

	c := &Client{
		endpoint: endpoint,
		creds:    creds,
		timeout:  DefaultTimeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpc == nil {
		c.httpc = &http.Client{}
	}
	return c, nil
}

// CredentialsFromEnv loads credentials from the R2_ACCESS_KEY_ID,
// R2_SECRET_ACCESS_KEY and optional R2_SESSION_TOKEN environment variables.
func CredentialsFromEnv() (sigv4.Credentials, error) {
	creds := sigv4.Credentials{
		AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		SessionToken:    os.Getenv("R2_SESSION_TOKEN"),
	}
	if creds.AccessKeyID == "" {
		return sigv4.Credentials{}, errors.New("R2_ACCESS_KEY_ID is not set")
	}
	if creds.SecretAccessKey == "" {
		return sigv4.Credentials{}, errors.New("R2_SECRET_ACCESS_KEY is not set")
	}
	return creds, nil
}

// Hostname extracts the host from an endpoint URL by stripping the scheme
// prefix and any trailing slash.
func Hostname(endpoint string) string {
	host := strings.TrimPrefix(endpoint, "https://")
	host = strings.TrimPrefix(host, "http://")
	return strings.TrimRight(host, "/")
}

// Get retrieves an object. A 404 from the service is an error.
func (c *Client) Get(ctx context.Context, bucket, key string, headers map[string]string) (*Response, error) {
	return c.do(ctx, http.MethodGet, bucket, key, headers, nil, true)
}

// GetIfExists retrieves an object, treating a 404 as a normal result with
// StatusCode 404 rather than an error. This allows existence checks without
// error-driven control flow.
func (c *Client) GetIfExists(ctx context.Context, bucket, key string, headers map[string]string) (*Response, error) {
	return c.do(ctx, http.MethodGet, bucket, key, headers, nil, false)
}

// Put stores an object.
func (c *Client) Put(ctx context.Context, bucket, key string, body []byte, headers map[string]string) (*Response, error) {
	return c.do(ctx, http.MethodPut, bucket, key, headers, body, true)
}

// Delete removes an object.
func (c *Client) Delete(ctx context.Context, bucket, key string, headers map[string]string) (*Response, error) {
	return c.do(ctx, http.MethodDelete, bucket, key, headers, nil, true)
}

// do runs one logical operation end-to-end: build the path and headers, sign,
// perform the exchange and classify the result.
func (c *Client) do(ctx context.Context, verb, bucket, key string, headers map[string]string, body []byte, missingIsError bool) (*Response, error) {
	if bucket == "" || key == "" {
		return nil, errors.New("bucket and key must not be empty")
	}

	// The path is built by raw concatenation, matching what the signature
	// covers. Keys containing characters that require percent-encoding are
	// the caller's responsibility.
	uriPath := "/" + bucket + "/" + key
	const queryString = ""
	url := c.endpoint + uriPath

	hdrs := make(map[string]string, len(headers)+1)
	for name, value := range headers {
		hdrs[name] = value
	}
	hdrs["host"] = Hostname(c.endpoint)

	signed := sigv4.Sign(verb, uriPath, queryString, hdrs, body, c.creds, c.now())

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, verb, url, reader)
	if err != nil {
		return nil, &TransportError{Op: verb, URL: url, Err: err}
	}
	for name, value := range signed {
		if strings.EqualFold(name, "host") {
			req.Host = value
			continue
		}
		req.Header.Set(name, value)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		slog.Debug("exchange failed", "method", verb, "bucket", bucket, "key", key, "err", err)
		return nil, &TransportError{Op: verb, URL: url, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: verb, URL: url, Err: fmt.Errorf("read response body: %w", err)}
	}

	result := &Response{
		StatusCode: resp.StatusCode,
		Body:       respBody,
		Header:     flattenHeader(resp.Header),
	}

	switch {
	case resp.StatusCode == http.StatusNotFound && !missingIsError:
		return result, nil
	case resp.StatusCode == http.StatusNotFound,
		resp.StatusCode < 200,
		resp.StatusCode >= 400:
		slog.Debug("request rejected", "method", verb, "bucket", bucket, "key", key, "status", resp.StatusCode)
		return nil, statusError(resp.StatusCode, respBody)
	default:
		return result, nil
	}
}

// flattenHeader reduces an http.Header to single values, keeping the first
// value of each header.
func flattenHeader(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		if len(values) > 0 {
			out[name] = values[0]
		}
	}
	return out
}
