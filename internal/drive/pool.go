package drive

import (
	"context"
	"sync"

	"github.com/mdacme/mdacme/internal/acmeclient"
	"github.com/mdacme/mdacme/internal/acmehttp"
	"github.com/mdacme/mdacme/internal/md"
	"github.com/mdacme/mdacme/internal/store"
)

// Pool lazily builds and caches one Driver per distinct CA directory URL,
// so a single registry dispatch-table entry can drive MDs that point at
// different CAs (spec section 4.10's registry never assumes one CA per
// process). Satisfies registry.Driver.
type Pool struct {
	store *store.Store
	opts  Options

	mu      sync.Mutex
	drivers map[string]*Driver
}

// NewPool returns a Pool backed by s, building each Driver's
// acmeclient.Client with its own directory cache.
func NewPool(s *store.Store, opts Options) *Pool {
	return &Pool{store: s, opts: opts, drivers: map[string]*Driver{}}
}

// Drive looks up (or lazily builds) the Driver for m.CAUrl and delegates.
func (p *Pool) Drive(ctx context.Context, m *md.MD) error {
	return p.driverFor(m.CAUrl).Drive(ctx, m)
}

func (p *Pool) driverFor(caURL string) *Driver {
	p.mu.Lock()
	defer p.mu.Unlock()

	if d, ok := p.drivers[caURL]; ok {
		return d
	}
	d := New(p.store, acmeclient.New(caURL, acmehttp.New(nil)), p.opts)
	p.drivers[caURL] = d
	return d
}
