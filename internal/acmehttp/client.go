// Package acmehttp is the thin HTTP client of spec section 4.5: GET,
// HEAD and POST with a handle/await pair, no retry policy of its own.
// Grounded on the teacher's direct net/http usage throughout the pack
// (e.g. tls_on_demand.go's ExternalHostPolicy) — no example in the pack
// reaches for a higher-level HTTP client library for plain outbound
// calls like these.
package acmehttp

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/textproto"

	"github.com/mdacme/mdacme/internal/acmeerr"
)

// Response holds a fully-drained HTTP response: status, headers with
// case-insensitive lookup, and the body buffered in memory (spec section
// 4.5: "streamable body").
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// HeaderGet performs a case-insensitive header lookup (http.Header
// already canonicalizes keys; this normalizes caller input the same
// way).
func (r *Response) HeaderGet(name string) string {
	return r.Header.Get(textproto.CanonicalMIMEHeaderKey(name))
}

// Reader returns a fresh io.Reader over the buffered body.
func (r *Response) Reader() io.Reader {
	return bytes.NewReader(r.Body)
}

// Client performs the three verbs the ACME transport needs.
type Client struct {
	HTTP *http.Client
}

// New returns a Client wrapping http.DefaultClient's configuration
// unless a custom one is supplied.
func New(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{HTTP: httpClient}
}

// Handle represents an in-flight request; Await blocks until the
// response is fully read (spec section 4.5: "blocks until the response
// is complete").
type Handle struct {
	resp *http.Response
	err  error
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, url string, headers http.Header) *Handle {
	return c.do(ctx, http.MethodGet, url, nil, headers)
}

// Head issues a HEAD request.
func (c *Client) Head(ctx context.Context, url string, headers http.Header) *Handle {
	return c.do(ctx, http.MethodHead, url, nil, headers)
}

// Post issues a POST with the given body and content type.
func (c *Client) Post(ctx context.Context, url string, body []byte, contentType string, headers http.Header) *Handle {
	h := make(http.Header)
	for k, v := range headers {
		h[k] = v
	}
	h.Set("Content-Type", contentType)
	return c.do(ctx, http.MethodPost, url, body, h)
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, headers http.Header) *Handle {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return &Handle{err: acmeerr.Wrap(acmeerr.KindInvalidArgument, err, "build request")}
	}
	for k, values := range headers {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &Handle{err: acmeerr.Wrap(acmeerr.KindGeneral, err, "http request failed")}
	}
	return &Handle{resp: resp}
}

// Await blocks until the handle's response callback (body read) has run,
// returning the drained Response.
func (h *Handle) Await() (*Response, error) {
	if h.err != nil {
		return nil, h.err
	}
	defer h.resp.Body.Close()

	data, err := io.ReadAll(h.resp.Body)
	if err != nil {
		return nil, acmeerr.Wrap(acmeerr.KindGeneral, err, "read response body")
	}

	return &Response{
		StatusCode: h.resp.StatusCode,
		Header:     h.resp.Header,
		Body:       data,
	}, nil
}
