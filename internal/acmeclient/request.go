package acmeclient

import (
	"context"
	"encoding/json"

	"github.com/mdacme/mdacme/internal/acmeerr"
	"github.com/mdacme/mdacme/internal/acmejson"
)

// Do performs one signed request end to end (spec section 4.6
// req_do): ensure the directory and a nonce are available, let req sign
// the payload with that nonce, POST it, and translate the response.
//
// takeNonce and captureNonce each take c.mu for their own short
// critical sections (setup does not lock); Do does not hold the lock
// itself, so a slow CA response never blocks unrelated nonce
// bookkeeping.
func (c *Client) Do(ctx context.Context, req SignedRequest) (*Result, error) {
	if err := c.setup(ctx); err != nil {
		return nil, err
	}

	nonce, err := c.takeNonce(ctx)
	if err != nil {
		return nil, err
	}

	envelope, err := req.Sign(nonce)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, acmeerr.Wrap(acmeerr.KindGeneral, err, "marshal jws envelope")
	}

	resp, err := c.http.Post(ctx, req.URL(), body, "application/jose+json", nil).Await()
	if err != nil {
		return nil, acmeerr.Wrap(acmeerr.KindGeneral, err, "post signed request")
	}
	c.captureNonce(resp)

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		// Redirects after a signed POST are treated as errors (spec
		// section 9, Open Question 3): the ACME resource model does not
		// expect them and following one would replay a consumed nonce
		// against an unverified second URL.
		return nil, acmeerr.Newf(acmeerr.KindGeneral, "unexpected redirect (status %d) from %s", resp.StatusCode, req.URL())
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, mapErrorResponse(resp)
	}

	result := &Result{Header: resp.Header, Raw: resp.Body}
	if len(resp.Body) > 0 {
		container, err := acmejson.FromBytes(resp.Body)
		if err == nil {
			result.JSON = container
		}
	}
	return result, nil
}

// retryAfterKey is the header carrying a retry hint on rate-limited or
// deferred responses (SPEC_FULL section 12 item 6).
const retryAfterKey = "Retry-After"
