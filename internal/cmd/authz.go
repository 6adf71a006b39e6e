package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mdacme/mdacme/internal/authz"
)

type authzCommand struct {
	cmd *cobra.Command
}

func newAuthzCommand() *authzCommand {
	c := &authzCommand{}
	c.cmd = &cobra.Command{
		Use:   "authz <name>",
		Short: "Show the stored authorization state for a managed domain",
		Args:  cobra.ExactArgs(1),
		RunE:  c.run,
	}
	return c
}

func (c *authzCommand) run(cmd *cobra.Command, args []string) error {
	_, s, err := openRegistry()
	if err != nil {
		return err
	}

	set, err := authz.Load(s, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, a := range set.Authorizations {
		fmt.Fprintf(out, "%-30s %-10s %s\n", a.Identifier.Value, a.State, a.Location)
	}
	return nil
}
