package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mdacme/mdacme/internal/account"
)

type delregCommand struct {
	cmd *cobra.Command
}

func newDelregCommand() *delregCommand {
	c := &delregCommand{}
	c.cmd = &cobra.Command{
		Use:   "delreg <account-id>",
		Short: "Disable a locally stored ACME account",
		Args:  cobra.ExactArgs(1),
		RunE:  c.run,
	}
	return c
}

func (c *delregCommand) run(cmd *cobra.Command, args []string) error {
	_, s, err := openRegistry()
	if err != nil {
		return err
	}

	acct, err := account.Load(s, args[0])
	if err != nil {
		return err
	}
	if err := account.Disable(s, acct); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "disabled account %s\n", acct.ID)
	return nil
}
