package drive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoolReusesDriverPerCAUrl(t *testing.T) {
	p := NewPool(nil, DefaultOptions())

	a := p.driverFor("https://ca-one.example/directory")
	b := p.driverFor("https://ca-one.example/directory")
	c := p.driverFor("https://ca-two.example/directory")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
}
