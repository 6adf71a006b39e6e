package acmeclient

import (
	"context"

	"github.com/mdacme/mdacme/internal/acmeerr"
	"github.com/mdacme/mdacme/internal/acmejson"
)

// Directory caches the ACME resource URLs this driver needs (spec
// section 4.6 "Directory fetch"). Only HTTP-01-relevant resources are
// cached; others are ignored.
type Directory struct {
	NewAuthz   string
	NewCert    string
	NewReg     string
	RevokeCert string
}

func (c *Client) setup(ctx context.Context) error {
	if c.directory != nil {
		return nil
	}

	resp, err := c.http.Get(ctx, c.directoryURL, nil).Await()
	if err != nil {
		return acmeerr.Wrap(acmeerr.KindGeneral, err, "fetch acme directory")
	}
	container, err := acmejson.FromBytes(resp.Body)
	if err != nil {
		return acmeerr.Wrap(acmeerr.KindGeneral, err, "decode acme directory")
	}

	dir := &Directory{}
	fields := map[string]*string{
		"new-authz":    &dir.NewAuthz,
		"new-cert":     &dir.NewCert,
		"new-reg":      &dir.NewReg,
		"revoke-cert":  &dir.RevokeCert,
	}
	for key, dest := range fields {
		v, ok := container.GetString(key)
		if !ok {
			return acmeerr.Newf(acmeerr.KindGeneral, "acme directory missing %q", key)
		}
		*dest = v
	}

	c.directory = dir
	return nil
}

// DirectoryURLs returns the cached directory, fetching it first if needed.
func (c *Client) DirectoryURLs(ctx context.Context) (*Directory, error) {
	if err := c.setup(ctx); err != nil {
		return nil, err
	}
	return c.directory, nil
}
