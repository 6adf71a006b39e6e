package drive

import (
	"context"
	"crypto/x509"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/mdacme/mdacme/internal/account"
	"github.com/mdacme/mdacme/internal/acmecrypto"
	"github.com/mdacme/mdacme/internal/acmeerr"
	"github.com/mdacme/mdacme/internal/acmeutil"
)

// retryAfterBackOff wraps an exponential schedule with a one-shot floor
// raised by a CA-supplied Retry-After (spec section 12 item 6): the next
// tick is never shorter than the floor, which is cleared once consumed.
type retryAfterBackOff struct {
	inner backoff.BackOff
	floor time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	d := b.inner.NextBackOff()
	if b.floor > d {
		d = b.floor
	}
	b.floor = 0
	return d
}

// Reset restarts the inner schedule and drops any pending floor.
func (b *retryAfterBackOff) Reset() {
	b.inner.Reset()
	b.floor = 0
}

// SetFloor raises the wait before the next tick to at least d.
func (b *retryAfterBackOff) SetFloor(d time.Duration) {
	if d > b.floor {
		b.floor = d
	}
}

// parseIssuedCertificate accepts either a PEM-encoded certificate (the
// common case for ACME CAs) or a bare DER body.
func parseIssuedCertificate(body []byte) (*x509.Certificate, error) {
	if certs, err := acmecrypto.DecodeChainPEM(body); err == nil && len(certs) > 0 {
		return certs[0], nil
	}
	return x509.ParseCertificate(body)
}

func jsonMarshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, acmeerr.Wrap(acmeerr.KindGeneral, err, "marshal request payload")
	}
	return data, nil
}

// linkHeaderUp extracts the issuer URL from the "up" relation of a
// response's Link header(s) (spec section 4.9 phase 7: "find the issuer
// URL via HTTP Link header with relation up").
func linkHeaderUp(header http.Header) (string, bool) {
	for _, line := range header.Values("Link") {
		if url, ok := acmeutil.LinkHeader(line, "up"); ok {
			return url, true
		}
	}
	return "", false
}

type certPollResult struct {
	body   []byte
	header http.Header
}

// pollForCertificate GETs location on the configured schedule until the
// CA returns a non-empty certificate body (spec section 4.9 phase 7:
// "GET the location until a certificate body is returned, poll same
// schedule as challenges").
func (d *Driver) pollForCertificate(ctx context.Context, acct *account.Account, location string) ([]byte, http.Header, error) {
	b := d.pollBackOff()
	result, err := backoff.Retry(ctx, func() (certPollResult, error) {
		resp, err := d.client.Do(ctx, getRequest{url: location, key: acct.Key(), kid: acct.URL})
		if err != nil {
			if !acmeerr.Is(err, acmeerr.KindRetryLater) {
				return certPollResult{}, backoff.Permanent(err)
			}
			if floor, ok := acmeerr.RetryAfterOf(err); ok {
				b.SetFloor(floor)
			}
			return certPollResult{}, err
		}
		if len(resp.Raw) > 0 {
			return certPollResult{body: resp.Raw, header: resp.Header}, nil
		}
		return certPollResult{}, acmeerr.New(acmeerr.KindRetryLater, "certificate not yet issued")
	}, backoff.WithBackOff(b), backoff.WithMaxElapsedTime(d.opts.PollTimeout))

	if err != nil {
		if acmeerr.Is(err, acmeerr.KindRetryLater) {
			return nil, nil, acmeerr.New(acmeerr.KindTimeout, "certificate issuance did not complete within the allotted time")
		}
		return nil, nil, err
	}
	return result.body, result.header, nil
}

// fetchIssuerChain GETs issuerURL and decodes however many certificates
// the CA returns into a DER chain. The response is usually one or more
// PEM-encoded certificates; a bare DER body (no PEM markers) is treated
// as a single certificate.
func (d *Driver) fetchIssuerChain(ctx context.Context, acct *account.Account, issuerURL string) ([][]byte, error) {
	result, err := d.client.Do(ctx, getRequest{url: issuerURL, key: acct.Key(), kid: acct.URL})
	if err != nil {
		return nil, err
	}

	certs, err := acmecrypto.DecodeChainPEM(result.Raw)
	if err != nil {
		return nil, acmeerr.Wrap(acmeerr.KindGeneral, err, "decode issuer chain")
	}
	if len(certs) == 0 {
		return [][]byte{result.Raw}, nil
	}

	chain := make([][]byte, len(certs))
	for i, c := range certs {
		chain[i] = c.Raw
	}
	return chain, nil
}
