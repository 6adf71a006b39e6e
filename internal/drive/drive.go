// Package drive implements the per-MD drive state machine of spec
// section 4.9, grounded on original_source/mod_md/md.c's driving
// sequence: eight sequential, idempotent phases taking one MD from
// "known names" to "valid certificate on disk".
package drive

import (
	"context"
	"crypto/rsa"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/mdacme/mdacme/internal/account"
	"github.com/mdacme/mdacme/internal/acmeclient"
	"github.com/mdacme/mdacme/internal/acmecrypto"
	"github.com/mdacme/mdacme/internal/acmeerr"
	"github.com/mdacme/mdacme/internal/acmejws"
	"github.com/mdacme/mdacme/internal/authz"
	"github.com/mdacme/mdacme/internal/logging"
	"github.com/mdacme/mdacme/internal/md"
	"github.com/mdacme/mdacme/internal/metrics"
	"github.com/mdacme/mdacme/internal/store"
)

// Options configures the polling schedule and renewal policy, resolving
// Open Questions 1 and 2 from the spec's design notes (SPEC_FULL §12.7).
type Options struct {
	PollInitial time.Duration
	PollMax     time.Duration
	PollTimeout time.Duration

	// DefaultAgreement substitutes for md.CAAgreement when the MD has
	// never recorded one (spec section 4.9 phase 3: "a configured
	// default may substitute when absent").
	DefaultAgreement string

	// RenewalWindow is how long before expiry a certificate is considered
	// due for renewal (Open Question 1, SPEC_FULL §12.7), as reported by
	// Driver.NeedsRenewal. Drive itself does not consult it, and no caller
	// in this module checks NeedsRenewal before invoking Drive.
	RenewalWindow time.Duration
}

// DefaultOptions returns the schedule suggested by spec section 4.9
// phase 6: 1s -> 2s -> 4s, capped at 30s, 300s total timeout.
func DefaultOptions() Options {
	return Options{
		PollInitial:   time.Second,
		PollMax:       30 * time.Second,
		PollTimeout:   300 * time.Second,
		RenewalWindow: md.DefaultRenewalWindow,
	}
}

// Driver runs the eight-phase sequence against one ACME CA.
type Driver struct {
	client *acmeclient.Client
	store  *store.Store
	opts   Options
}

// New returns a Driver for the CA that client targets.
func New(s *store.Store, client *acmeclient.Client, opts Options) *Driver {
	return &Driver{client: client, store: s, opts: opts}
}

// NeedsRenewal reports whether the certificate on disk for m is due for
// renewal, loading it from the domains group if present.
func (d *Driver) NeedsRenewal(m *md.MD) bool {
	cert, err := d.store.LoadCert(store.Domains, m.Name, "cert.pem")
	if err != nil {
		return true
	}
	return md.NeedsRenewal(cert, d.opts.RenewalWindow)
}

// Drive runs all eight phases for m, persisting progress after each one
// so a crash mid-drive resumes cleanly on the next call (spec section
// 4.9: "each idempotent and resumable").
func (d *Driver) Drive(ctx context.Context, m *md.MD) error {
	if err := m.Validate(); err != nil {
		return err
	}

	// Phase 1: ACME setup.
	log := logging.Step(ctx, "acme-setup")
	if _, err := d.client.DirectoryURLs(ctx); err != nil {
		log.Error("directory fetch failed", "error", err)
		trackStep("acme-setup", err)
		return err
	}
	trackStep("acme-setup", nil)

	// Phase 2: choose account.
	acct, err := d.chooseAccount(ctx, m)
	if err != nil {
		logging.Step(ctx, "choose-account").Error("failed", "error", err)
		trackStep("choose-account", err)
		return err
	}
	trackStep("choose-account", nil)

	// Phase 3: check agreement.
	requiredTOS := m.CAAgreement
	if requiredTOS == "" {
		requiredTOS = d.opts.DefaultAgreement
	}
	if err := account.CheckAgreement(ctx, d.client, d.store, acct, requiredTOS); err != nil {
		logging.Step(ctx, "check-agreement").Error("failed", "error", err)
		trackStep("check-agreement", err)
		return err
	}
	m.CAAgreement = acct.Agreement
	trackStep("check-agreement", nil)

	// Phase 4: setup authorizations.
	set, err := d.setupAuthorizations(ctx, m, acct)
	if err != nil {
		logging.Step(ctx, "setup-authorizations").Error("failed", "error", err)
		trackStep("setup-authorizations", err)
		return err
	}
	trackStep("setup-authorizations", nil)

	// Phase 5: start challenges.
	if err := d.startChallenges(ctx, acct, set); err != nil {
		logging.Step(ctx, "start-challenges").Error("failed", "error", err)
		trackStep("start-challenges", err)
		return err
	}
	trackStep("start-challenges", nil)

	// Phase 6: monitor challenges.
	pollStart := time.Now()
	if err := d.monitorChallenges(ctx, acct, set); err != nil {
		logging.Step(ctx, "monitor-challenges").Error("failed", "error", err)
		trackStep("monitor-challenges", err)
		return err
	}
	metrics.Tracker.TrackPollDuration("monitor-challenges", time.Since(pollStart))
	trackStep("monitor-challenges", nil)

	// Phase 7: setup certificate.
	if err := d.setupCertificate(ctx, m, acct); err != nil {
		logging.Step(ctx, "setup-certificate").Error("failed", "error", err)
		trackStep("setup-certificate", err)
		return err
	}
	trackStep("setup-certificate", nil)

	// Phase 8: promote.
	if err := d.store.Move(store.Staging, store.Domains, m.Name); err != nil {
		logging.Step(ctx, "promote").Error("failed", "error", err)
		trackStep("promote", err)
		return err
	}

	m.State = md.StateComplete
	trackStep("promote", nil)
	logging.Step(ctx, "drive-complete").Info("md certificate ready", "md", m.Name)
	return nil
}

// trackStep reports a drive phase's outcome to metrics.Tracker.
func trackStep(step string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.Tracker.TrackDriveStep(step, outcome)
}

// chooseAccount implements spec section 4.9 phase 2.
func (d *Driver) chooseAccount(ctx context.Context, m *md.MD) (*account.Account, error) {
	if m.CAAccount != "" {
		acct, err := account.Load(d.store, m.CAAccount)
		if err == nil {
			if vErr := account.Validate(ctx, d.client, acct); vErr == nil {
				return acct, nil
			} else if acmeerr.Is(vErr, acmeerr.KindAccessDenied) || acmeerr.IsNotFound(vErr) {
				_ = account.Disable(d.store, acct)
				m.CAAccount = ""
			} else {
				return nil, vErr
			}
		}
	}

	if acct, err := account.Find(d.store, m.CAUrl); err == nil {
		if vErr := account.Validate(ctx, d.client, acct); vErr == nil {
			m.CAAccount = acct.ID
			return acct, nil
		}
	}

	acct, err := account.Register(ctx, d.client, d.store, m.CAUrl, m.Contacts, d.opts.DefaultAgreement)
	if err != nil {
		return nil, err
	}
	m.CAAccount = acct.ID
	return acct, nil
}

// setupAuthorizations implements spec section 4.9 phase 4.
func (d *Driver) setupAuthorizations(ctx context.Context, m *md.MD, acct *account.Account) (*authz.Set, error) {
	set, err := authz.Load(d.store, m.Name)
	if err != nil {
		return nil, err
	}
	set.Account = acct.ID

	byDomain := make(map[string]*authz.Authz, len(set.Authorizations))
	for i := range set.Authorizations {
		byDomain[set.Authorizations[i].Identifier.Value] = &set.Authorizations[i]
	}

	var fresh []authz.Authz
	for _, domain := range m.Domains {
		existing, ok := byDomain[domain]
		if ok {
			if updErr := authz.Update(ctx, d.client, acct, existing); updErr != nil {
				return nil, updErr
			}
			if existing.State == authz.StateValid || existing.State == authz.StatePending {
				fresh = append(fresh, *existing)
				continue
			}
			// invalid/revoked: discard and re-register below.
		}

		created, err := authz.Register(ctx, d.client, acct, domain)
		if err != nil {
			return nil, err
		}
		fresh = append(fresh, *created)

		set.Authorizations = fresh
		if saveErr := authz.Save(d.store, m.Name, set); saveErr != nil {
			return nil, saveErr
		}
	}

	set.Authorizations = fresh
	if err := authz.Save(d.store, m.Name, set); err != nil {
		return nil, err
	}
	return set, nil
}

// startChallenges implements spec section 4.9 phase 5.
func (d *Driver) startChallenges(ctx context.Context, acct *account.Account, set *authz.Set) error {
	for i := range set.Authorizations {
		a := &set.Authorizations[i]
		if err := authz.Update(ctx, d.client, acct, a); err != nil {
			return err
		}
		switch a.State {
		case authz.StateValid:
			continue
		case authz.StatePending:
			if err := authz.Respond(ctx, d.client, d.store, acct, a); err != nil {
				return err
			}
		default:
			return acmeerr.Newf(acmeerr.KindGeneral, "authorization for %s in unexpected state %s", a.Identifier.Value, a.State)
		}
	}
	return nil
}

// monitorChallenges implements spec section 4.9 phase 6: poll each
// PENDING authorization on the configured schedule (cenkalti/backoff/v5,
// exponential 1s->2s->4s capped at 30s) until all are VALID or one
// becomes INVALID.
func (d *Driver) monitorChallenges(ctx context.Context, acct *account.Account, set *authz.Set) error {
	b := d.pollBackOff()
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		allValid := true
		for i := range set.Authorizations {
			a := &set.Authorizations[i]
			if a.State == authz.StateValid {
				continue
			}
			if err := authz.Update(ctx, d.client, acct, a); err != nil {
				if !acmeerr.Is(err, acmeerr.KindRetryLater) {
					return struct{}{}, backoff.Permanent(err)
				}
				if floor, ok := acmeerr.RetryAfterOf(err); ok {
					b.SetFloor(floor)
				}
				return struct{}{}, err
			}
			switch a.State {
			case authz.StateValid:
			case authz.StatePending:
				allValid = false
			default:
				return struct{}{}, backoff.Permanent(acmeerr.Newf(acmeerr.KindGeneral, "authorization for %s failed validation (%s)", a.Identifier.Value, a.State))
			}
		}
		if !allValid {
			return struct{}{}, acmeerr.New(acmeerr.KindRetryLater, "authorizations still pending")
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(b), backoff.WithMaxElapsedTime(d.opts.PollTimeout))

	if err != nil {
		if acmeerr.Is(err, acmeerr.KindRetryLater) {
			return acmeerr.New(acmeerr.KindTimeout, "authorization validation did not complete within the allotted time")
		}
		return err
	}
	return nil
}

// pollBackOff builds the schedule shared by phase 6 and phase 7 polling.
// The returned backOff honors a CA-supplied Retry-After as a floor on its
// next tick (spec section 12 item 6) in addition to its own exponential
// schedule.
func (d *Driver) pollBackOff() *retryAfterBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.opts.PollInitial
	b.MaxInterval = d.opts.PollMax
	b.Multiplier = 2
	return &retryAfterBackOff{inner: b}
}

type newCertRequest struct {
	url string
	key *rsa.PrivateKey
	kid string
	csr string
}

func (r newCertRequest) URL() string { return r.url }

func (r newCertRequest) Sign(nonce string) (*acmejws.Envelope, error) {
	headers := acmejws.ProtectedHeaders{Kid: r.kid, Nonce: nonce, URL: r.url}
	data, err := jsonMarshal(map[string]string{"csr": r.csr})
	if err != nil {
		return nil, err
	}
	return acmejws.Sign(r.key, headers, data)
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

// setupCertificate implements spec section 4.9 phase 7.
func (d *Driver) setupCertificate(ctx context.Context, m *md.MD, acct *account.Account) error {
	key, err := d.loadOrCreateServiceKey(m)
	if err != nil {
		return err
	}

	csr, err := acmecrypto.BuildCSR(acmecrypto.CSRSubject{
		Name:       m.Name,
		Domains:    m.SortedDomainsCopy(),
		MustStaple: m.MustStaple,
	}, key)
	if err != nil {
		return err
	}

	dir, err := d.client.DirectoryURLs(ctx)
	if err != nil {
		return err
	}

	result, err := d.client.Do(ctx, newCertRequest{url: dir.NewCert, key: acct.Key(), kid: acct.URL, csr: csr})
	if err != nil {
		return err
	}
	certLocation := result.Header.Get("Location")
	if certLocation == "" {
		return acmeerr.New(acmeerr.KindGeneral, "ca did not return a certificate location")
	}

	certDER, certHeader, err := d.pollForCertificate(ctx, acct, certLocation)
	if err != nil {
		return err
	}

	cert, err := parseIssuedCertificate(certDER)
	if err != nil {
		return acmeerr.Wrap(acmeerr.KindGeneral, err, "parse issued certificate")
	}

	var chain [][]byte
	if issuerURL, ok := linkHeaderUp(certHeader); ok {
		chainDER, err := d.fetchIssuerChain(ctx, acct, issuerURL)
		if err != nil {
			return err
		}
		chain = chainDER
	}

	if err := d.store.SavePKey(store.Staging, m.Name, "pkey.pem", key, false); err != nil {
		return err
	}
	if err := d.store.SaveCert(store.Staging, m.Name, "cert.pem", cert.Raw, false); err != nil {
		return err
	}
	if err := d.store.SaveChain(store.Staging, m.Name, "chain.pem", chain, false); err != nil {
		return err
	}
	return nil
}

func (d *Driver) loadOrCreateServiceKey(m *md.MD) (*rsa.PrivateKey, error) {
	if d.store.Exists(store.Staging, m.Name, "pkey.pem") {
		return d.store.LoadPKey(store.Staging, m.Name, "pkey.pem")
	}
	return acmecrypto.GenerateRSA(acmecrypto.DefaultKeyBits)
}
