package cmd

import (
	"github.com/mdacme/mdacme/internal/drive"
	"github.com/mdacme/mdacme/internal/registry"
	"github.com/mdacme/mdacme/internal/store"
)

// openRegistry opens the configured store and returns a Registry with
// the ACME protocol driver wired in.
func openRegistry() (*registry.Registry, *store.Store, error) {
	baseDir, err := globalConfig.ResolveBaseDir()
	if err != nil {
		return nil, nil, err
	}

	s, err := store.Open(baseDir)
	if err != nil {
		return nil, nil, err
	}

	r := registry.New(s)
	r.RegisterDriver("ACME", drive.NewPool(s, drive.DefaultOptions()))
	return r, s, nil
}
