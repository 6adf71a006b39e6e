package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveBaseDirHonorsExplicitSetting(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "explicit")
	c := Config{BaseDir: dir}

	got, err := c.ResolveBaseDir()
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	info, err := os.Stat(got)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestResolveBaseDirFallsBackToXDGStateHome(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	c := Config{}

	got, err := c.ResolveBaseDir()
	require.NoError(t, err)
	assert.Equal(t, "mdacme", filepath.Base(got))
}

func TestLoadSyncFileParsesDomainsList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.yaml")
	content := `
domains:
  - name: example.org
    domains: [example.org, www.example.org]
    contacts: [mailto:admin@example.org]
    ca_url: https://acme-staging-v02.api.letsencrypt.org/directory
    must_staple: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	mds, err := LoadSyncFile(path)
	require.NoError(t, err)
	require.Len(t, mds, 1)

	m := mds[0]
	assert.Equal(t, "example.org", m.Name)
	assert.Equal(t, []string{"example.org", "www.example.org"}, m.Domains)
	assert.Equal(t, []string{"mailto:admin@example.org"}, m.Contacts)
	assert.Equal(t, "https://acme-staging-v02.api.letsencrypt.org/directory", m.CAUrl)
	assert.True(t, m.MustStaple)
}

func TestLoadSyncFileMissingFile(t *testing.T) {
	_, err := LoadSyncFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
