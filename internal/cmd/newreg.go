package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mdacme/mdacme/internal/account"
	"github.com/mdacme/mdacme/internal/acmeclient"
	"github.com/mdacme/mdacme/internal/acmehttp"
)

type newregCommand struct {
	cmd       *cobra.Command
	caURL     string
	contacts  []string
	agreement string
}

func newNewregCommand() *newregCommand {
	c := &newregCommand{}
	c.cmd = &cobra.Command{
		Use:   "newreg",
		Short: "Register a new ACME account",
		RunE:  c.run,
	}
	c.cmd.Flags().StringVar(&c.caURL, "ca-url", "", "ACME directory URL (required)")
	c.cmd.Flags().StringSliceVar(&c.contacts, "contact", nil, "Contact URI, e.g. mailto:admin@example.org (repeatable, required)")
	c.cmd.Flags().StringVar(&c.agreement, "agreement", "", "Terms-of-service URI to agree to immediately")
	_ = c.cmd.MarkFlagRequired("ca-url")
	_ = c.cmd.MarkFlagRequired("contact")
	return c
}

func (c *newregCommand) run(cmd *cobra.Command, args []string) error {
	_, s, err := openRegistry()
	if err != nil {
		return err
	}

	client := acmeclient.New(c.caURL, acmehttp.New(nil))
	acct, err := account.Register(context.Background(), client, s, c.caURL, c.contacts, c.agreement)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "registered account %s at %s\n", acct.ID, acct.URL)
	return nil
}
