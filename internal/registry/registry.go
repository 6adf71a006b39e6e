// Package registry implements the MD Registry of spec section 4.10,
// grounded on original_source/src/md.h and md_store.c's reconciliation
// logic: the authoritative list of declared MDs checked against the
// store, with add/update/sync and protocol-driver dispatch.
package registry

import (
	"context"

	"github.com/mdacme/mdacme/internal/acmeerr"
	"github.com/mdacme/mdacme/internal/md"
	"github.com/mdacme/mdacme/internal/store"
)

const mdAspect = "md.json"

// Driver drives one MD through to a valid certificate; implemented by
// internal/drive.Driver for the "ACME" protocol.
type Driver interface {
	Drive(ctx context.Context, m *md.MD) error
}

// Registry maintains the authoritative list of declared MDs against the
// store, dispatching drive operations by md.CAProto (spec section 4.10:
// "protocols are looked up in a string-keyed dispatch table populated at
// startup").
type Registry struct {
	store   *store.Store
	drivers map[string]Driver
}

// New returns a Registry backed by s with no protocol drivers
// registered; call RegisterDriver to populate the dispatch table.
func New(s *store.Store) *Registry {
	return &Registry{store: s, drivers: map[string]Driver{}}
}

// RegisterDriver associates proto (e.g. "ACME") with a Driver.
func (r *Registry) RegisterDriver(proto string, d Driver) {
	r.drivers[proto] = d
}

// Add fails if m.Domains overlaps any existing MD (spec section 4.10
// "add").
func (r *Registry) Add(m *md.MD) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if err := r.checkOverlap(m, ""); err != nil {
		return err
	}
	return r.store.SaveJSON(store.Domains, m.Name, mdAspect, m, true)
}

// Get loads the MD named name.
func (r *Registry) Get(name string) (*md.MD, error) {
	var m md.MD
	if err := r.store.LoadJSON(store.Domains, name, mdAspect, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Iterate calls callback with every declared MD, in store iteration
// order, stopping early if callback returns an error.
func (r *Registry) Iterate(callback func(*md.MD) error) error {
	names, err := r.store.Names(store.Domains)
	if err != nil {
		return err
	}
	for _, name := range names {
		m, err := r.Get(name)
		if err != nil {
			if acmeerr.IsNotFound(err) {
				continue
			}
			return err
		}
		if err := callback(m); err != nil {
			return err
		}
	}
	return nil
}

// Field identifies an updatable MD attribute for Update's fields mask
// (spec section 4.10).
type Field = md.Field

const (
	FieldDomains   = md.FieldDomains
	FieldCAUrl     = md.FieldCAUrl
	FieldCAAccount = md.FieldCAAccount
	FieldContacts  = md.FieldContacts
	FieldAgreement = md.FieldAgreement
)

// Update writes only the fields listed in fields from newMD into the
// stored MD named name (spec section 4.10 "update"). Changing domains
// re-runs the overlap check.
func (r *Registry) Update(name string, newMD *md.MD, fields []Field) error {
	current, err := r.Get(name)
	if err != nil {
		return err
	}

	for _, f := range fields {
		switch f {
		case FieldDomains:
			if err := r.checkOverlap(newMD, name); err != nil {
				return err
			}
			current.Domains = newMD.Domains
		case FieldCAUrl:
			current.CAUrl = newMD.CAUrl
		case FieldCAAccount:
			current.CAAccount = newMD.CAAccount
		case FieldContacts:
			current.Contacts = newMD.Contacts
		case FieldAgreement:
			current.CAAgreement = newMD.CAAgreement
		}
	}

	if err := current.Validate(); err != nil {
		return err
	}
	return r.store.SaveJSON(store.Domains, name, mdAspect, current, false)
}

// checkOverlap fails if candidate's domains overlap any stored MD other
// than skipName (the MD being updated, exempt from colliding with
// itself).
func (r *Registry) checkOverlap(candidate *md.MD, skipName string) error {
	names, err := r.store.Names(store.Domains)
	if err != nil {
		return err
	}
	for _, name := range names {
		if name == skipName {
			continue
		}
		existing, err := r.Get(name)
		if err != nil {
			continue
		}
		if existing.Overlaps(candidate) {
			return acmeerr.Newf(acmeerr.KindAlreadyExists, "domains of %q overlap existing md %q", candidate.Name, name)
		}
	}
	return nil
}

// SyncResult reports what Sync did, including MDs present in the store
// but absent from the supplied list (spec section 4.10: "never deletes;
// orphaned MDs are reported, not removed").
type SyncResult struct {
	Added     []string
	Updated   []string
	Unchanged []string
	Orphaned  []string
}

// Sync reconciles a freshly computed configuration (declared, typically
// parsed from a config file) with the store: new MDs are added, changed
// MDs are updated, unchanged MDs are left untouched, and MDs present in
// the store but missing from declared are reported as orphaned rather
// than deleted.
func (r *Registry) Sync(declared []*md.MD) (*SyncResult, error) {
	result := &SyncResult{}
	seen := make(map[string]bool, len(declared))

	for _, m := range declared {
		seen[m.Name] = true
		existing, err := r.Get(m.Name)
		if acmeerr.IsNotFound(err) {
			if err := r.Add(m); err != nil {
				return nil, err
			}
			result.Added = append(result.Added, m.Name)
			continue
		}
		if err != nil {
			return nil, err
		}
		if definitionEqual(existing, m) {
			result.Unchanged = append(result.Unchanged, m.Name)
			continue
		}
		if err := r.checkOverlap(m, m.Name); err != nil {
			return nil, err
		}
		existing.Domains = m.Domains
		existing.CAUrl = m.CAUrl
		existing.Contacts = m.Contacts
		existing.MustStaple = m.MustStaple
		if err := r.store.SaveJSON(store.Domains, m.Name, mdAspect, existing, false); err != nil {
			return nil, err
		}
		result.Updated = append(result.Updated, m.Name)
	}

	names, err := r.store.Names(store.Domains)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		if !seen[name] {
			result.Orphaned = append(result.Orphaned, name)
		}
	}
	return result, nil
}

func definitionEqual(a, b *md.MD) bool {
	if a.CAUrl != b.CAUrl || a.MustStaple != b.MustStaple {
		return false
	}
	if len(a.Domains) != len(b.Domains) || len(a.Contacts) != len(b.Contacts) {
		return false
	}
	for i := range a.Domains {
		if a.Domains[i] != b.Domains[i] {
			return false
		}
	}
	for i := range a.Contacts {
		if a.Contacts[i] != b.Contacts[i] {
			return false
		}
	}
	return true
}

// Drive delegates to the protocol driver associated with m.CAProto
// (spec section 4.10 "drive"), then persists whatever state and account
// the drive run recorded on m regardless of success, so a crash or
// partial failure mid-drive is resumed on the next call.
func (r *Registry) Drive(ctx context.Context, m *md.MD) error {
	d, ok := r.drivers[m.CAProto]
	if !ok {
		return acmeerr.Newf(acmeerr.KindNotImplemented, "no driver registered for protocol %q", m.CAProto)
	}
	driveErr := d.Drive(ctx, m)
	if saveErr := r.store.SaveJSON(store.Domains, m.Name, mdAspect, m, false); saveErr != nil {
		if driveErr != nil {
			return driveErr
		}
		return saveErr
	}
	return driveErr
}
