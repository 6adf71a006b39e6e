package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mdacme/mdacme/internal/md"
)

type listCommand struct {
	cmd *cobra.Command
}

func newListCommand() *listCommand {
	c := &listCommand{}
	c.cmd = &cobra.Command{
		Use:   "list",
		Short: "List the declared managed domains",
		RunE:  c.run,
	}
	return c
}

func (c *listCommand) run(cmd *cobra.Command, args []string) error {
	r, _, err := openRegistry()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	return r.Iterate(func(m *md.MD) error {
		fmt.Fprintf(out, "%-30s %-10s %-20s %s\n", m.Name, m.State, m.CAProto, strings.Join(m.Domains, ","))
		return nil
	})
}
