package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mdacme/mdacme/internal/logging"
	"github.com/mdacme/mdacme/internal/md"
)

type driveCommand struct {
	cmd *cobra.Command
	all bool
}

func newDriveCommand() *driveCommand {
	c := &driveCommand{}
	c.cmd = &cobra.Command{
		Use:   "drive [name]",
		Short: "Drive one (or, with --all, every) managed domain to a valid certificate",
		Args:  cobra.MaximumNArgs(1),
		RunE:  c.run,
	}
	c.cmd.Flags().BoolVar(&c.all, "all", false, "Drive every declared managed domain")
	return c
}

func (c *driveCommand) run(cmd *cobra.Command, args []string) error {
	if !c.all && len(args) != 1 {
		return fmt.Errorf("pass a managed domain name, or --all")
	}

	r, _, err := openRegistry()
	if err != nil {
		return err
	}

	ctx := logging.WithLogger(context.Background(), rootLogger())
	out := cmd.OutOrStdout()

	if c.all {
		return r.Iterate(func(m *md.MD) error {
			if err := r.Drive(ctx, m); err != nil {
				fmt.Fprintf(out, "%s: %v\n", m.Name, err)
				return nil
			}
			fmt.Fprintf(out, "%s: %s\n", m.Name, m.State)
			return nil
		})
	}

	m, err := r.Get(args[0])
	if err != nil {
		return err
	}
	if err := r.Drive(ctx, m); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %s\n", m.Name, m.State)
	return nil
}
