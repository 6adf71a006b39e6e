package md

import (
	"crypto/x509"
	"testing"
	"time"

	"github.com/mdacme/mdacme/internal/acmeerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsNameToFirstDomain(t *testing.T) {
	m, err := New("", []string{"Example.org", "www.example.org", "example.org"}, []string{"admin@example.org"})
	require.NoError(t, err)

	assert.Equal(t, "example.org", m.Name)
	assert.Equal(t, []string{"example.org", "www.example.org"}, m.Domains)
	assert.Equal(t, []string{"mailto:admin@example.org"}, m.Contacts)
	assert.Equal(t, StateUnknown, m.State)
}

func TestNewRequiresADomain(t *testing.T) {
	_, err := New("name", nil, nil)
	require.Error(t, err)
	assert.True(t, acmeerr.Is(err, acmeerr.KindInvalidArgument))
}

func TestContactSchemePreserved(t *testing.T) {
	m, err := New("x", []string{"x.example"}, []string{"mailto:a@b", "tel:+1234"})
	require.NoError(t, err)
	assert.Equal(t, []string{"mailto:a@b", "tel:+1234"}, m.Contacts)
}

func TestOverlapsDetectsSharedDomain(t *testing.T) {
	a, _ := New("", []string{"x.com", "y.com"}, nil)
	b, _ := New("", []string{"y.com", "z.com"}, nil)
	c, _ := New("", []string{"p.com"}, nil)

	assert.True(t, a.Overlaps(b))
	assert.False(t, a.Overlaps(c))
}

func TestValidateRejectsDuplicateDomains(t *testing.T) {
	m := &MD{Name: "x", Domains: []string{"x.com", "x.com"}}
	err := m.Validate()
	require.Error(t, err)
}

func TestNeedsRenewal(t *testing.T) {
	expiringSoon := &x509.Certificate{NotAfter: time.Now().Add(10 * 24 * time.Hour)}
	farOut := &x509.Certificate{NotAfter: time.Now().Add(80 * 24 * time.Hour)}

	assert.True(t, NeedsRenewal(expiringSoon, DefaultRenewalWindow))
	assert.False(t, NeedsRenewal(farOut, DefaultRenewalWindow))
	assert.True(t, NeedsRenewal(nil, DefaultRenewalWindow))
}
