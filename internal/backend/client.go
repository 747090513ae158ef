// Package backend talks to the Dashboard Baker REST API. Every list screen and
// dashboard panel reads through Client.
package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxBodyBytes = 16 << 20

// Client wraps calls to the REST backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// NewClient constructs a client. defaultTimeout applies to calls that pass a
// zero timeout.
func NewClient(baseURL string, defaultTimeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		timeout:    defaultTimeout,
	}
}

// WithHTTPClient swaps the transport, mainly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// BaseURL exposes the configured backend root.
func (c *Client) BaseURL() string { return c.baseURL }

// Get issues a GET against path and decodes the JSON envelope. A response with
// `success: false` is returned as a KindApplication error.
func (c *Client) Get(ctx context.Context, path string, query url.Values, timeout time.Duration) (Envelope, error) {
	body, err := c.GetRaw(ctx, path, query, timeout)
	if err != nil {
		return Envelope{}, err
	}
	env, err := ParseEnvelope(body)
	if err != nil {
		return Envelope{}, err
	}
	if !env.Success() {
		return Envelope{}, &Error{Kind: KindApplication, Detail: env.ErrorText()}
	}
	return env, nil
}

// GetRaw issues a GET and returns the body of a 2xx response.
func (c *Client) GetRaw(ctx context.Context, path string, query url.Values, timeout time.Duration) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, query, timeout)
}

// Send issues a bodiless request with method, used by row actions such as
// delete or toggle-status. An empty 2xx body counts as success.
func (c *Client) Send(ctx context.Context, method, path string, timeout time.Duration) (Envelope, error) {
	body, err := c.do(ctx, method, path, nil, timeout)
	if err != nil {
		return Envelope{}, err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return Envelope{}, nil
	}
	env, err := ParseEnvelope(body)
	if err != nil {
		return Envelope{}, err
	}
	if !env.Success() {
		return Envelope{}, &Error{Kind: KindApplication, Detail: env.ErrorText()}
	}
	return env, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, timeout time.Duration) ([]byte, error) {
	if c == nil {
		return nil, errors.New("backend: client not configured")
	}
	if timeout <= 0 {
		timeout = c.timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path, query), nil)
	if err != nil {
		return nil, fmt.Errorf("backend: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classify(ctx, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, classify(ctx, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := ""
		if env, perr := ParseEnvelope(body); perr == nil {
			detail = env.ErrorText()
		}
		return nil, &Error{Kind: KindStatus, Status: resp.StatusCode, Detail: detail}
	}
	return body, nil
}

// URL builds the absolute backend URL for path and query. Export downloads use
// it to hand the browser a link instead of proxying the file.
func (c *Client) URL(path string, query url.Values) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := c.baseURL + path
	if encoded := query.Encode(); encoded != "" {
		u += "?" + encoded
	}
	return u
}

func classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return context.Canceled
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Err: err}
	}
	return &Error{Kind: KindTransport, Err: err}
}
