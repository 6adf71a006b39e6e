package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mdacme/mdacme/internal/account"
	"github.com/mdacme/mdacme/internal/acmeclient"
	"github.com/mdacme/mdacme/internal/acmehttp"
)

type agreeCommand struct {
	cmd *cobra.Command
	tos string
}

func newAgreeCommand() *agreeCommand {
	c := &agreeCommand{}
	c.cmd = &cobra.Command{
		Use:   "agree <account-id>",
		Short: "Agree to a CA's terms of service on behalf of a stored account",
		Args:  cobra.ExactArgs(1),
		RunE:  c.run,
	}
	c.cmd.Flags().StringVar(&c.tos, "tos", "", "Terms-of-service URI to agree to (required)")
	_ = c.cmd.MarkFlagRequired("tos")
	return c
}

func (c *agreeCommand) run(cmd *cobra.Command, args []string) error {
	_, s, err := openRegistry()
	if err != nil {
		return err
	}

	acct, err := account.Load(s, args[0])
	if err != nil {
		return err
	}

	client := acmeclient.New(acct.CAUrl, acmehttp.New(nil))
	if err := account.Agree(context.Background(), client, s, acct, c.tos); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "account %s agreed to %s\n", acct.ID, c.tos)
	return nil
}
