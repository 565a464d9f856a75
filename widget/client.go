package widget

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// maxResponseSize caps how much of a reply body is read.
const maxResponseSize = 1 << 20

// Sender performs one outbound exchange with the reply endpoint.
//
// Send returns the reply text, or an empty string when the endpoint answered
// with valid JSON that has no usable "response" string. Any failure to
// obtain such an answer is returned as an error.
type Sender interface {
	Send(ctx context.Context, message string) (string, error)
}

// Client is the HTTP Sender. It posts {"message": ...} and reads the
// "response" field of the JSON reply.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates a Client that posts to endpoint.
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint: endpoint,
		// The Controller bounds each request with its own timeout; this one
		// only guards callers that use the Client directly.
		httpClient: &http.Client{Timeout: 2 * DefaultRequestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the URL the client posts to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Send implements Sender.
func (c *Client) Send(ctx context.Context, message string) (string, error) {
	body, err := sjson.SetBytes([]byte(`{}`), "message", message)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &TransportError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &TransportError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", &TransportError{StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &TransportError{StatusCode: resp.StatusCode}
	}
	if !gjson.ValidBytes(data) {
		return "", ErrMalformedBody
	}

	reply := gjson.GetBytes(data, "response")
	if reply.Type != gjson.String {
		return "", nil
	}
	return reply.Str, nil
}

// DefaultRequestTimeout bounds a single outbound call when no timeout is
// configured.
const DefaultRequestTimeout = 30 * time.Second
