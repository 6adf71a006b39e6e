package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mdacme/mdacme/internal/md"
	"github.com/mdacme/mdacme/internal/registry"
)

type updateCommand struct {
	cmd      *cobra.Command
	domains  []string
	contacts []string
	caURL    string
}

func newUpdateCommand() *updateCommand {
	c := &updateCommand{}
	c.cmd = &cobra.Command{
		Use:   "update <name>",
		Short: "Update fields of a declared managed domain",
		Args:  cobra.ExactArgs(1),
		RunE:  c.run,
	}

	c.cmd.Flags().StringSliceVar(&c.domains, "domain", nil, "Replace the domain list (repeatable)")
	c.cmd.Flags().StringSliceVar(&c.contacts, "contact", nil, "Replace the contact list (repeatable)")
	c.cmd.Flags().StringVar(&c.caURL, "ca-url", "", "Replace the ACME directory URL")

	return c
}

func (c *updateCommand) run(cmd *cobra.Command, args []string) error {
	name := args[0]

	var fields []registry.Field
	patch := &md.MD{Name: name}
	if c.cmd.Flags().Changed("domain") {
		patch.Domains = c.domains
		fields = append(fields, registry.FieldDomains)
	}
	if c.cmd.Flags().Changed("contact") {
		patch.Contacts = c.contacts
		fields = append(fields, registry.FieldContacts)
	}
	if c.cmd.Flags().Changed("ca-url") {
		patch.CAUrl = c.caURL
		fields = append(fields, registry.FieldCAUrl)
	}
	if len(fields) == 0 {
		return fmt.Errorf("no fields given to update; pass --domain, --contact or --ca-url")
	}

	r, _, err := openRegistry()
	if err != nil {
		return err
	}
	if err := r.Update(name, patch, fields); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "updated %s\n", name)
	return nil
}
