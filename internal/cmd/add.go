package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mdacme/mdacme/internal/md"
)

type addCommand struct {
	cmd      *cobra.Command
	domains  []string
	contacts []string
	caURL    string
}

func newAddCommand() *addCommand {
	c := &addCommand{}
	c.cmd = &cobra.Command{
		Use:   "add [name]",
		Short: "Declare a new managed domain",
		Args:  cobra.MaximumNArgs(1),
		RunE:  c.run,
	}

	c.cmd.Flags().StringSliceVar(&c.domains, "domain", nil, "Domain name (repeatable)")
	c.cmd.Flags().StringSliceVar(&c.contacts, "contact", nil, "Contact URI, e.g. mailto:admin@example.org (repeatable)")
	c.cmd.Flags().StringVar(&c.caURL, "ca-url", "", "ACME directory URL")

	return c
}

func (c *addCommand) run(cmd *cobra.Command, args []string) error {
	name := ""
	if len(args) == 1 {
		name = args[0]
	}

	m, err := md.New(name, c.domains, c.contacts)
	if err != nil {
		return err
	}
	m.CAUrl = c.caURL

	r, _, err := openRegistry()
	if err != nil {
		return err
	}
	if err := r.Add(m); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "added %s (%v)\n", m.Name, m.Domains)
	return nil
}
