// Package acmeclient is the ACME transport of spec section 4.6, grounded
// on original_source/mod_md/md_acme.c: directory discovery, a
// single-slot nonce pool, the signed-request callback chain (collapsed
// here into a two-method interface per the design notes in spec section
// 9), and RFC 7807 problem-type mapping.
package acmeclient

import (
	"context"
	"net/http"
	"sync"

	"github.com/mdacme/mdacme/internal/acmeerr"
	"github.com/mdacme/mdacme/internal/acmehttp"
	"github.com/mdacme/mdacme/internal/acmejson"
	"github.com/mdacme/mdacme/internal/acmejws"
	"github.com/mdacme/mdacme/internal/metrics"
)

// Client drives one ACME CA. A mutex guards the single nonce slot, so
// each nonce is handed to exactly one signed request and two requests
// never share one (spec section 5). The mutex does not serialize whole
// requests: concurrent Do calls may be in flight at once, each with its
// own nonce.
type Client struct {
	http         *acmehttp.Client
	directoryURL string
	directory    *Directory

	mu    sync.Mutex
	nonce string
}

// New returns a Client targeting the ACME directory at directoryURL.
func New(directoryURL string, httpClient *acmehttp.Client) *Client {
	if httpClient == nil {
		httpClient = acmehttp.New(nil)
	}
	return &Client{directoryURL: directoryURL, http: httpClient}
}

// DirectoryURL returns the configured CA directory endpoint.
func (c *Client) DirectoryURL() string { return c.directoryURL }

// captureNonce records the Replay-Nonce header from any response, 2xx or
// not (spec section 4.6: "captured in every response, not only 2xx").
func (c *Client) captureNonce(resp *acmehttp.Response) {
	if n := resp.HeaderGet("Replay-Nonce"); n != "" {
		c.mu.Lock()
		c.nonce = n
		c.mu.Unlock()
	}
}

// newNonce issues a HEAD against new-reg to refill an empty nonce pool
// (spec section 4.6 "new_nonce()").
func (c *Client) newNonce(ctx context.Context) error {
	if err := c.setup(ctx); err != nil {
		return err
	}
	resp, err := c.http.Head(ctx, c.directory.NewReg, nil).Await()
	if err != nil {
		return acmeerr.Wrap(acmeerr.KindGeneral, err, "fetch new nonce")
	}
	c.captureNonce(resp)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nonce == "" {
		return acmeerr.New(acmeerr.KindGeneral, "ca did not supply a nonce")
	}
	return nil
}

// takeNonce consumes the current nonce, clearing it immediately (spec
// section 4.6: "After consuming a nonce in a request, it is immediately
// cleared").
func (c *Client) takeNonce(ctx context.Context) (string, error) {
	c.mu.Lock()
	nonce := c.nonce
	c.nonce = ""
	c.mu.Unlock()

	if nonce != "" {
		metrics.Tracker.TrackNonceRefill("hit")
		return nonce, nil
	}
	metrics.Tracker.TrackNonceRefill("miss")
	if err := c.newNonce(ctx); err != nil {
		return "", err
	}
	c.mu.Lock()
	nonce = c.nonce
	c.nonce = ""
	c.mu.Unlock()
	return nonce, nil
}

// SignedRequest is the two-method interface a caller implements in place
// of registering free-function callbacks (design note in spec section
// 9): URL names the target resource, Sign populates the payload and
// produces the JWS envelope once the transport has a nonce in hand.
type SignedRequest interface {
	URL() string
	Sign(nonce string) (*acmejws.Envelope, error)
}

// Result is what a successful signed request yields: the response
// headers (for Location/Link extraction) and the decoded JSON body, when
// present.
type Result struct {
	Header http.Header
	JSON   *acmejson.Container
	Raw    []byte
}
