package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mdacme/mdacme/internal/config"
)

type syncCommand struct {
	cmd  *cobra.Command
	file string
}

func newSyncCommand() *syncCommand {
	c := &syncCommand{}
	c.cmd = &cobra.Command{
		Use:   "sync",
		Short: "Reconcile declared managed domains from a YAML file",
		RunE:  c.run,
	}
	c.cmd.Flags().StringVar(&c.file, "file", "", "Path to the sync YAML file (required)")
	_ = c.cmd.MarkFlagRequired("file")
	return c
}

func (c *syncCommand) run(cmd *cobra.Command, args []string) error {
	declared, err := config.LoadSyncFile(c.file)
	if err != nil {
		return err
	}

	r, _, err := openRegistry()
	if err != nil {
		return err
	}

	result, err := r.Sync(declared)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "added: %v\n", result.Added)
	fmt.Fprintf(out, "updated: %v\n", result.Updated)
	fmt.Fprintf(out, "unchanged: %v\n", result.Unchanged)
	if len(result.Orphaned) > 0 {
		fmt.Fprintf(out, "orphaned (not removed): %v\n", result.Orphaned)
	}
	return nil
}
