package cmd

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withTestBaseDir(t *testing.T) {
	t.Helper()
	previous := globalConfig.BaseDir
	globalConfig.BaseDir = t.TempDir()
	t.Cleanup(func() { globalConfig.BaseDir = previous })
}

func TestAddListUpdateRoundTrip(t *testing.T) {
	withTestBaseDir(t)

	add := newAddCommand()
	add.domains = []string{"example.org", "www.example.org"}
	add.contacts = []string{"mailto:admin@example.org"}
	add.caURL = "https://ca.example/directory"

	var addOut bytes.Buffer
	add.cmd.SetOut(&addOut)
	require.NoError(t, add.run(add.cmd, nil))
	assert.Contains(t, addOut.String(), "example.org")

	list := newListCommand()
	var listOut bytes.Buffer
	list.cmd.SetOut(&listOut)
	require.NoError(t, list.run(list.cmd, nil))
	assert.Contains(t, listOut.String(), "example.org")
	assert.Contains(t, listOut.String(), "ACME")

	update := newUpdateCommand()
	update.cmd.Flags().Set("ca-url", "https://ca.example/v2/directory")
	update.caURL = "https://ca.example/v2/directory"

	var updateOut bytes.Buffer
	update.cmd.SetOut(&updateOut)
	require.NoError(t, update.run(update.cmd, []string{"example.org"}))

	r, _, err := openRegistry()
	require.NoError(t, err)
	got, err := r.Get("example.org")
	require.NoError(t, err)
	assert.Equal(t, "https://ca.example/v2/directory", got.CAUrl)
}

func TestUpdateRequiresAtLeastOneField(t *testing.T) {
	withTestBaseDir(t)

	add := newAddCommand()
	add.domains = []string{"example.org"}
	add.contacts = []string{"mailto:admin@example.org"}
	add.cmd.SetOut(&bytes.Buffer{})
	require.NoError(t, add.run(add.cmd, nil))

	update := newUpdateCommand()
	update.cmd.SetOut(&bytes.Buffer{})
	err := update.run(update.cmd, []string{"example.org"})
	require.Error(t, err)
}

func TestDriveCommandRequiresNameOrAll(t *testing.T) {
	withTestBaseDir(t)

	drive := newDriveCommand()
	var out bytes.Buffer
	drive.cmd.SetOut(&out)
	err := drive.run(drive.cmd, nil)
	require.Error(t, err)
}

func TestAuthzCommandListsStoredSet(t *testing.T) {
	withTestBaseDir(t)

	a := newAuthzCommand()
	var out bytes.Buffer
	a.cmd.SetOut(&out)
	require.NoError(t, a.run(a.cmd, []string{"no-such-md"}))
	assert.Empty(t, out.String())
}

func TestSyncCommandRegistersFileFlag(t *testing.T) {
	c := newSyncCommand()
	flag := c.cmd.Flags().Lookup("file")
	require.NotNil(t, flag)
	assert.True(t, isRequired(c.cmd, "file"))
}

func isRequired(cmd *cobra.Command, name string) bool {
	annotations := cmd.Flags().Lookup(name).Annotations
	_, ok := annotations[cobra.BashCompOneRequiredFlag]
	return ok
}
