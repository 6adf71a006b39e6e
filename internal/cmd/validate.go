package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mdacme/mdacme/internal/account"
	"github.com/mdacme/mdacme/internal/acmeclient"
	"github.com/mdacme/mdacme/internal/acmehttp"
)

type validateCommand struct {
	cmd *cobra.Command
}

func newValidateCommand() *validateCommand {
	c := &validateCommand{}
	c.cmd = &cobra.Command{
		Use:   "validate <account-id>",
		Short: "Check that a stored account is still recognized by its CA",
		Args:  cobra.ExactArgs(1),
		RunE:  c.run,
	}
	return c
}

func (c *validateCommand) run(cmd *cobra.Command, args []string) error {
	_, s, err := openRegistry()
	if err != nil {
		return err
	}

	acct, err := account.Load(s, args[0])
	if err != nil {
		return err
	}

	client := acmeclient.New(acct.CAUrl, acmehttp.New(nil))
	if err := account.Validate(context.Background(), client, acct); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "account %s is valid\n", acct.ID)
	return nil
}
