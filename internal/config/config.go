// Package config resolves the store's base directory and loads the
// declarative sync file, adapted from the teacher's
// internal/server/config.go XDG directory resolution (SPEC_FULL.md
// §10.3).
package config

import (
	"cmp"
	"os"
	"os/user"
	"path"

	"github.com/mdacme/mdacme/internal/acmeerr"
)

// Config holds the CLI-wide settings every subcommand shares.
type Config struct {
	BaseDir string
}

// ResolveBaseDir returns c.BaseDir if set, else the XDG state home (or
// ~/.local/state as a fallback) joined with "mdacme", creating it if
// missing. This collapses the teacher's three-directory (runtime/state/
// data) split into the store's single filesystem root (SPEC_FULL.md
// §10.3).
func (c Config) ResolveBaseDir() (string, error) {
	dir := c.BaseDir
	if dir == "" {
		dir = cmp.Or(os.Getenv("XDG_STATE_HOME"), "")
		if dir == "" {
			usr, err := user.Current()
			if err != nil {
				return "", acmeerr.Wrap(acmeerr.KindGeneral, err, "look up current user")
			}
			dir = path.Join(usr.HomeDir, ".local/state")
		}
		dir = path.Join(dir, "mdacme")
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", acmeerr.Wrap(acmeerr.KindGeneral, err, "create base directory "+dir)
	}
	return dir, nil
}
