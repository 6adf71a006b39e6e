// Package account implements the Account subsystem of spec section 4.7,
// grounded on original_source/mod_md/md_acme_acct.c: registration, ToS
// agreement, validation and local persistence of CA identities.
package account

import (
	"context"
	"crypto/rsa"

	"github.com/google/uuid"

	"github.com/mdacme/mdacme/internal/acmeclient"
	"github.com/mdacme/mdacme/internal/acmecrypto"
	"github.com/mdacme/mdacme/internal/acmeerr"
	"github.com/mdacme/mdacme/internal/acmejws"
	"github.com/mdacme/mdacme/internal/store"
)

// Account is an opaque CA-side identity (spec section 3's GLOSSARY
// entry "Account").
type Account struct {
	ID        string   `json:"id"`
	URL       string   `json:"url"`
	CAUrl     string   `json:"ca_url"`
	Contacts  []string `json:"contact"`
	Agreement string   `json:"agreement,omitempty"`
	Disabled  bool     `json:"disabled,omitempty"`

	key *rsa.PrivateKey
}

const pkeyAspect = "acct.pem"
const metaAspect = "acct.json"

// Key returns the account's private key.
func (a *Account) Key() *rsa.PrivateKey { return a.key }

// New builds an Account directly from its fields, used when the caller
// already holds a key and URL (e.g. the authz and drive packages
// operating on an account loaded elsewhere).
func New(id, url, caURL string, contacts []string, key *rsa.PrivateKey) *Account {
	return &Account{ID: id, URL: url, CAUrl: caURL, Contacts: contacts, key: key}
}

// registerRequest implements acmeclient.SignedRequest for the initial
// anonymous (JWK-embedded) new-reg POST.
type registerRequest struct {
	url       string
	key       *rsa.PrivateKey
	contacts  []string
	agreement string
}

func (r registerRequest) URL() string { return r.url }

func (r registerRequest) Sign(nonce string) (*acmejws.Envelope, error) {
	headers := acmejws.ProtectedHeaders{
		JWK:   acmejws.BuildJWK(&r.key.PublicKey),
		Nonce: nonce,
		URL:   r.url,
	}
	payload := map[string]any{"contact": r.contacts}
	if r.agreement != "" {
		payload["agreement"] = r.agreement
	}
	data, err := jsonMarshal(payload)
	if err != nil {
		return nil, err
	}
	return acmejws.Sign(r.key, headers, data)
}

// kidRequest implements acmeclient.SignedRequest for account-bound
// requests signed with kid rather than an embedded jwk.
type kidRequest struct {
	url     string
	key     *rsa.PrivateKey
	kid     string
	payload any
}

func (r kidRequest) URL() string { return r.url }

func (r kidRequest) Sign(nonce string) (*acmejws.Envelope, error) {
	headers := acmejws.ProtectedHeaders{
		Kid:   r.kid,
		Nonce: nonce,
		URL:   r.url,
	}
	data, err := jsonMarshal(r.payload)
	if err != nil {
		return nil, err
	}
	return acmejws.Sign(r.key, headers, data)
}

// Register generates a new account key, POSTs new-reg, and persists the
// resulting account under accounts/<id> (spec section 4.7 "register").
func Register(ctx context.Context, client *acmeclient.Client, s *store.Store, caURL string, contacts []string, agreement string) (*Account, error) {
	if len(contacts) == 0 {
		return nil, acmeerr.New(acmeerr.KindInvalidArgument, "account registration requires at least one contact")
	}

	dir, err := client.DirectoryURLs(ctx)
	if err != nil {
		return nil, err
	}

	key, err := acmecrypto.GenerateRSA(acmecrypto.DefaultKeyBits)
	if err != nil {
		return nil, err
	}

	result, err := client.Do(ctx, registerRequest{url: dir.NewReg, key: key, contacts: contacts, agreement: agreement})
	if err != nil {
		return nil, err
	}

	acctURL := result.Header.Get("Location")
	if acctURL == "" {
		return nil, acmeerr.New(acmeerr.KindGeneral, "ca did not return an account location")
	}
	tosURL, _ := linkHeaderTermsOfService(result.Header)

	acct := &Account{
		ID:        uuid.NewString(),
		URL:       acctURL,
		CAUrl:     caURL,
		Contacts:  contacts,
		Agreement: tosURL,
		key:       key,
	}

	if err := save(s, acct); err != nil {
		return nil, err
	}
	return acct, nil
}

// Load reads an account from the store by id.
func Load(s *store.Store, id string) (*Account, error) {
	var acct Account
	if err := s.LoadJSON(store.Accounts, id, metaAspect, &acct); err != nil {
		return nil, err
	}
	key, err := s.LoadPKey(store.Accounts, id, pkeyAspect)
	if err != nil {
		return nil, err
	}
	acct.ID = id
	acct.key = key
	return &acct, nil
}

// Find returns the first non-disabled stored account whose CAUrl matches
// caURL (spec section 4.7 "find").
func Find(s *store.Store, caURL string) (*Account, error) {
	ids, err := s.Names(store.Accounts)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		acct, err := Load(s, id)
		if err != nil {
			continue
		}
		if acct.Disabled || acct.CAUrl != caURL {
			continue
		}
		return acct, nil
	}
	return nil, acmeerr.NotFound("no account for ca_url " + caURL)
}

// Validate POSTs the account URL with a no-op payload; 200 means the
// account is still good at the CA, 403/404 means it was deleted there
// (spec section 4.7 "validate").
func Validate(ctx context.Context, client *acmeclient.Client, acct *Account) error {
	_, err := client.Do(ctx, kidRequest{url: acct.URL, key: acct.key, kid: acct.URL, payload: map[string]any{}})
	return err
}

// Agree POSTs an update with the accepted agreement URI and persists it
// on success (spec section 4.7 "agree").
func Agree(ctx context.Context, client *acmeclient.Client, s *store.Store, acct *Account, tosURI string) error {
	_, err := client.Do(ctx, kidRequest{
		url: acct.URL, key: acct.key, kid: acct.URL,
		payload: map[string]any{"agreement": tosURI},
	})
	if err != nil {
		return err
	}
	acct.Agreement = tosURI
	return save(s, acct)
}

// CheckAgreement calls Agree when acct's recorded agreement differs from
// requiredTOS (spec section 4.7 "check_agreement"). An empty requiredTOS
// requires nothing and never calls Agree.
func CheckAgreement(ctx context.Context, client *acmeclient.Client, s *store.Store, acct *Account, requiredTOS string) error {
	if requiredTOS == "" || acct.Agreement == requiredTOS {
		return nil
	}
	return Agree(ctx, client, s, acct, requiredTOS)
}

// Disable marks the account disabled without deleting its stored state
// (spec section 4.7 "disable" / section 3 invariant: "never deleted
// silently").
func Disable(s *store.Store, acct *Account) error {
	acct.Disabled = true
	return save(s, acct)
}

func save(s *store.Store, acct *Account) error {
	if err := s.SaveJSON(store.Accounts, acct.ID, metaAspect, acct, false); err != nil {
		return err
	}
	if acct.key != nil {
		if err := s.SavePKey(store.Accounts, acct.ID, pkeyAspect, acct.key, false); err != nil {
			return err
		}
	}
	return nil
}
