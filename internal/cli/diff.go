package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cargograph/cargograph/pkg/lockfile"
	"github.com/cargograph/cargograph/pkg/summaries"
)

// diffCommand creates the diff command with its lock and summary
// subcommands.
func (c *CLI) diffCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Compare two lockfiles or two resolution summaries",
	}
	cmd.AddCommand(c.diffLockCommand())
	cmd.AddCommand(c.diffSummaryCommand())
	return cmd
}

func (c *CLI) diffLockCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "lock <old.lock> <new.lock>",
		Short: "Compare two dependency lockfiles",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			old, err := lockfile.Load(args[0])
			if err != nil {
				return err
			}
			updated, err := lockfile.Load(args[1])
			if err != nil {
				return err
			}

			d := lockfile.Diff(old, updated)
			if d.Empty() {
				c.Logger.Info("Lockfiles pin identical package sets")
				return nil
			}
			fmt.Print(d.String())
			return nil
		},
	}
}

func (c *CLI) diffSummaryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "summary <old.toml> <new.toml>",
		Short: "Compare two resolution summaries",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			old, err := summaries.Load(args[0])
			if err != nil {
				return err
			}
			updated, err := summaries.Load(args[1])
			if err != nil {
				return err
			}

			d := summaries.Diff(old, updated)
			if d.Empty() {
				c.Logger.Info("Summaries resolved identically")
				return nil
			}
			for _, id := range d.Added {
				fmt.Printf("+ %s\n", id)
			}
			for _, id := range d.Removed {
				fmt.Printf("- %s\n", id)
			}
			for _, ch := range d.Changed {
				fmt.Printf("~ %s features %v -> %v\n", ch.PackageID, ch.Old, ch.New)
			}
			return nil
		},
	}
}
