package acmeerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "NotFound", KindNotFound.String())
	assert.Equal(t, "General", Kind(99).String())
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(KindGeneral, cause, "failed")

	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "boom")
	assert.Contains(t, err.Error(), "failed")
}

func TestIsAndKindOf(t *testing.T) {
	err := NotFound("acct.json")

	assert.True(t, Is(err, KindNotFound))
	assert.True(t, IsNotFound(err))
	assert.False(t, Is(err, KindGeneral))
	assert.Equal(t, KindNotFound, KindOf(err))

	plain := errors.New("plain")
	assert.Equal(t, KindGeneral, KindOf(plain))
	assert.False(t, IsNotFound(plain))
}
