package acmeutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeName(t *testing.T) {
	assert.True(t, SafeName("example.org"))
	assert.False(t, SafeName(""))
	assert.False(t, SafeName("."))
	assert.False(t, SafeName(".."))
	assert.False(t, SafeName("../escape"))
	assert.False(t, SafeName("a/b"))
}

func TestMatchName(t *testing.T) {
	assert.True(t, MatchName("", "example.org"))
	assert.True(t, MatchName("*", "example.org"))
	assert.True(t, MatchName("example.*", "example.org"))
	assert.False(t, MatchName("other.*", "example.org"))
}
