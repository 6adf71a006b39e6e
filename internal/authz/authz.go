// Package authz implements the per-domain Authorization subsystem of
// spec section 4.8, grounded on original_source/mod_md/md_acme_authz.c:
// the PENDING -> VALID/INVALID state machine, HTTP-01 challenge
// selection, and key-authorization publication.
package authz

import (
	"context"
	"crypto/rsa"

	"github.com/mdacme/mdacme/internal/account"
	"github.com/mdacme/mdacme/internal/acmeclient"
	"github.com/mdacme/mdacme/internal/acmeerr"
	"github.com/mdacme/mdacme/internal/acmejson"
	"github.com/mdacme/mdacme/internal/acmejws"
	"github.com/mdacme/mdacme/internal/acmeutil"
	"github.com/mdacme/mdacme/internal/store"
)

// State is the authorization's derived lifecycle state (spec section
// 4.8's state diagram).
type State string

const (
	StatePending State = "pending"
	StateValid   State = "valid"
	StateInvalid State = "invalid"
	StateRevoked State = "revoked"
)

// Identifier is the ACME identifier object the CA echoes back.
type Identifier struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Authz is one domain's authorization record within an MD's set.
type Authz struct {
	Identifier Identifier `json:"identifier"`
	Location   string     `json:"location"`
	Resource   any        `json:"resource,omitempty"`
	Expires    string     `json:"expires,omitempty"`
	State      State      `json:"state"`
}

// Set is the single JSON document persisted per MD (spec section 4.8:
// "persisted as a single JSON document per MD; mutations rewrite the
// whole document atomically").
type Set struct {
	Account        string  `json:"account"`
	Authorizations []Authz `json:"authorizations"`
}

const setAspect = "authz.json"

// Load reads the authz set for mdName, returning an empty Set if none
// exists yet.
func Load(s *store.Store, mdName string) (*Set, error) {
	var set Set
	err := s.LoadJSON(store.Domains, mdName, setAspect, &set)
	if acmeerr.IsNotFound(err) {
		return &Set{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &set, nil
}

// Save atomically rewrites the whole authz set document.
func Save(s *store.Store, mdName string, set *Set) error {
	return s.SaveJSON(store.Domains, mdName, setAspect, set, false)
}

type newAuthzRequest struct {
	url    string
	key    *rsa.PrivateKey
	kid    string
	domain string
}

func (r newAuthzRequest) URL() string { return r.url }

func (r newAuthzRequest) Sign(nonce string) (*acmejws.Envelope, error) {
	headers := acmejws.ProtectedHeaders{Kid: r.kid, Nonce: nonce, URL: r.url}
	payload := map[string]any{
		"identifier": map[string]string{"type": "dns", "value": r.domain},
	}
	data, err := jsonMarshal(payload)
	if err != nil {
		return nil, err
	}
	return acmejws.Sign(r.key, headers, data)
}

// Register creates a fresh authorization for domain (spec section 4.8
// "register").
func Register(ctx context.Context, client *acmeclient.Client, acct *account.Account, domain string) (*Authz, error) {
	dir, err := client.DirectoryURLs(ctx)
	if err != nil {
		return nil, err
	}
	result, err := client.Do(ctx, newAuthzRequest{url: dir.NewAuthz, key: acct.Key(), kid: acct.URL, domain: domain})
	if err != nil {
		return nil, err
	}

	location := result.Header.Get("Location")
	if location == "" {
		return nil, acmeerr.New(acmeerr.KindGeneral, "ca did not return an authorization location")
	}

	a := &Authz{
		Identifier: Identifier{Type: "dns", Value: domain},
		Location:   location,
		State:      StatePending,
	}
	if result.JSON != nil {
		applyResource(a, result.JSON)
	}
	return a, nil
}

type getRequest struct {
	url string
	key *rsa.PrivateKey
	kid string
}

func (r getRequest) URL() string { return r.url }

func (r getRequest) Sign(nonce string) (*acmejws.Envelope, error) {
	headers := acmejws.ProtectedHeaders{Kid: r.kid, Nonce: nonce, URL: r.url}
	return acmejws.Sign(r.key, headers, []byte(""))
}

// Update GETs authz.location and refreshes the resource and derived
// state (spec section 4.8 "update"). The CA requires no signature on
// authorization polling GETs, but the transport is used uniformly so
// nonce bookkeeping stays in one place.
func Update(ctx context.Context, client *acmeclient.Client, acct *account.Account, a *Authz) error {
	result, err := client.Do(ctx, getRequest{url: a.Location, key: acct.Key(), kid: acct.URL})
	if err != nil {
		if acmeerr.IsNotFound(err) {
			a.State = StateInvalid
			return nil
		}
		return err
	}
	if result.JSON != nil {
		applyResource(a, result.JSON)
	}
	return nil
}

func applyResource(a *Authz, container *acmejson.Container) {
	if root, ok := container.Get(""); ok {
		a.Resource = root
	}
	if status, ok := container.GetString("status"); ok {
		a.State = State(status)
	}
	if expires, ok := container.GetString("expires"); ok {
		a.Expires = expires
	}
}

type challenge struct {
	Type  string `json:"type"`
	URL   string `json:"url"`
	Token string `json:"token"`
}

func httpChallenge(container *acmejson.Container) (*challenge, bool) {
	raw, ok := container.Get("challenges")
	if !ok {
		return nil, false
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, false
	}
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if m["type"] != "http-01" {
			continue
		}
		url, _ := m["url"].(string)
		token, _ := m["token"].(string)
		if url == "" || token == "" {
			continue
		}
		return &challenge{Type: "http-01", URL: url, Token: token}, true
	}
	return nil, false
}

type respondRequest struct {
	url              string
	key              *rsa.PrivateKey
	kid              string
	keyAuthorization string
}

func (r respondRequest) URL() string { return r.url }

func (r respondRequest) Sign(nonce string) (*acmejws.Envelope, error) {
	headers := acmejws.ProtectedHeaders{Kid: r.kid, Nonce: nonce, URL: r.url}
	data, err := jsonMarshal(map[string]string{"keyAuthorization": r.keyAuthorization})
	if err != nil {
		return nil, err
	}
	return acmejws.Sign(r.key, headers, data)
}

// Respond selects the HTTP-01 challenge (the only type in scope),
// computes the key authorization, publishes it to the store, and POSTs
// acceptance to the challenge URL (spec section 4.8 "respond").
func Respond(ctx context.Context, client *acmeclient.Client, s *store.Store, acct *account.Account, a *Authz) error {
	container, err := acmejson.FromValue(a.Resource)
	if err != nil {
		return acmeerr.Wrap(acmeerr.KindGeneral, err, "decode authz resource")
	}

	ch, ok := httpChallenge(container)
	if !ok {
		return acmeerr.Newf(acmeerr.KindNotImplemented, "no http-01 challenge offered for %s", a.Identifier.Value)
	}

	thumbprint, err := acmejws.Thumbprint(&acct.Key().PublicKey)
	if err != nil {
		return err
	}
	keyAuth := ch.Token + "." + thumbprint

	if !acmeutil.SafeName(a.Identifier.Value) {
		return acmeerr.Newf(acmeerr.KindInvalidArgument, "unsafe domain name %q", a.Identifier.Value)
	}
	if err := s.SaveText(store.Challenges, a.Identifier.Value, "http-01", keyAuth, false); err != nil {
		return err
	}

	_, err = client.Do(ctx, respondRequest{url: ch.URL, key: acct.Key(), kid: acct.URL, keyAuthorization: keyAuth})
	return err
}
