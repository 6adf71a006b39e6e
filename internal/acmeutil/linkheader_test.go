package acmeutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLinkHeaderSingle(t *testing.T) {
	header := `<https://ca.example/terms>; rel="terms-of-service"`
	url, ok := LinkHeader(header, "terms-of-service")
	assert.True(t, ok)
	assert.Equal(t, "https://ca.example/terms", url)
}

func TestLinkHeaderMultipleEntries(t *testing.T) {
	header := `<https://ca.example/issuer>; rel="up", <https://ca.example/terms>; rel="terms-of-service"`

	url, ok := LinkHeader(header, "up")
	assert.True(t, ok)
	assert.Equal(t, "https://ca.example/issuer", url)

	url, ok = LinkHeader(header, "terms-of-service")
	assert.True(t, ok)
	assert.Equal(t, "https://ca.example/terms", url)
}

func TestLinkHeaderCaseInsensitiveRelation(t *testing.T) {
	header := `<https://ca.example/issuer>; rel="UP"`
	_, ok := LinkHeader(header, "up")
	assert.True(t, ok)
}

func TestLinkHeaderMissingRelation(t *testing.T) {
	_, ok := LinkHeader(`<https://ca.example/issuer>; rel="up"`, "terms-of-service")
	assert.False(t, ok)
}

func TestLinkHeaderMalformed(t *testing.T) {
	_, ok := LinkHeader("not a link header", "up")
	assert.False(t, ok)
}
