// Package md implements the Managed Domain aggregate of spec section 3,
// grounded on original_source/src/md.h's md_t struct.
package md

import (
	"crypto/x509"
	"sort"
	"strings"
	"time"

	"github.com/mdacme/mdacme/internal/acmeerr"
)

// State is the derived (never authoritative) lifecycle state of an MD.
type State string

const (
	StateUnknown    State = "UNKNOWN"
	StateIncomplete State = "INCOMPLETE"
	StateComplete   State = "COMPLETE"
	StateExpired    State = "EXPIRED"
	StateError      State = "ERROR"
)

// MD is the central aggregate: a named set of DNS names managed as a
// unit, sharing one certificate.
type MD struct {
	Name        string   `json:"name"`
	Domains     []string `json:"domains"`
	CAUrl       string   `json:"ca_url"`
	CAProto     string   `json:"ca_proto"`
	CAAccount   string   `json:"ca_account,omitempty"`
	CAAgreement string   `json:"ca_agreement,omitempty"`
	Contacts    []string `json:"contacts"`
	MustStaple  bool     `json:"must_staple,omitempty"`
	State       State    `json:"state"`

	DefnName       string `json:"defn_name,omitempty"`
	DefnLineNumber int    `json:"defn_line_number,omitempty"`
}

// New builds an MD from a name and a list of domains, normalizing
// domains (lowercased, deduplicated, order-preserving) and schemifying
// contacts to mailto: when no scheme is given (spec section 3). name
// defaults to the first listed domain when empty.
func New(name string, domains, contacts []string) (*MD, error) {
	normalized := normalizeDomains(domains)
	if len(normalized) == 0 {
		return nil, acmeerr.New(acmeerr.KindInvalidArgument, "md requires at least one domain")
	}

	if name == "" {
		name = normalized[0]
	}

	m := &MD{
		Name:     name,
		Domains:  normalized,
		CAProto:  "ACME",
		Contacts: normalizeContacts(contacts),
		State:    StateUnknown,
	}
	return m, nil
}

func normalizeDomains(domains []string) []string {
	seen := make(map[string]bool, len(domains))
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}

func normalizeContacts(contacts []string) []string {
	out := make([]string, 0, len(contacts))
	for _, c := range contacts {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if !strings.Contains(c, ":") {
			c = "mailto:" + c
		}
		out = append(out, c)
	}
	return out
}

// HasDomain reports whether name (case-insensitively) is one of m's
// domains.
func (m *MD) HasDomain(name string) bool {
	name = strings.ToLower(name)
	for _, d := range m.Domains {
		if d == name {
			return true
		}
	}
	return false
}

// Overlaps reports whether m and other share any domain, case
// insensitively (spec section 3 invariant: "disjoint domains sets").
func (m *MD) Overlaps(other *MD) bool {
	for _, d := range other.Domains {
		if m.HasDomain(d) {
			return true
		}
	}
	return false
}

// Validate checks the invariants from spec section 3: at least one
// domain, name present among domains once set.
func (m *MD) Validate() error {
	if len(m.Domains) == 0 {
		return acmeerr.New(acmeerr.KindInvalidArgument, "md must have at least one domain")
	}
	if m.Name == "" {
		return acmeerr.New(acmeerr.KindInvalidArgument, "md must have a name")
	}
	seen := make(map[string]bool, len(m.Domains))
	for _, d := range m.Domains {
		if seen[d] {
			return acmeerr.Newf(acmeerr.KindInvalidArgument, "duplicate domain %q", d)
		}
		seen[d] = true
	}
	if !m.HasDomain(m.Name) {
		return acmeerr.Newf(acmeerr.KindInvalidArgument, "md name %q is not among its domains", m.Name)
	}
	return nil
}

// Field identifies a single updatable attribute for Registry.Update
// (spec section 4.10).
type Field int

const (
	FieldDomains Field = iota
	FieldCAUrl
	FieldCAAccount
	FieldContacts
	FieldAgreement
)

// SortedDomainsCopy returns a sorted copy of m.Domains, used for stable
// certificate identifiers and CSR construction.
func (m *MD) SortedDomainsCopy() []string {
	out := make([]string, len(m.Domains))
	copy(out, m.Domains)
	sort.Strings(out)
	return out
}

// NeedsRenewal resolves Open Question 1 (spec section 9 / SPEC_FULL
// section 12.7): a conservative predicate that triggers re-drive within
// window of the certificate's expiry.
func NeedsRenewal(cert *x509.Certificate, window time.Duration) bool {
	if cert == nil {
		return true
	}
	return time.Until(cert.NotAfter) <= window
}

// DefaultRenewalWindow is the default NeedsRenewal window (30 days).
const DefaultRenewalWindow = 30 * 24 * time.Hour
