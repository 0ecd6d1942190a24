package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cargograph/cargograph/pkg/depgraph"
)

// dependsCommand creates the depends command: answer one or more
// reachability questions against a single graph.
func (c *CLI) dependsCommand() *cobra.Command {
	opts := graphOpts{}

	cmd := &cobra.Command{
		Use:   "depends <metadata.json> <from-id> <to-id>...",
		Short: "Check whether one package transitively depends on others",
		Long: `Check whether the first package transitively depends on each of the
following ones. A package depends on itself. Repeated questions about the
same source package share one reachability computation.

Examples:
  cargograph depends metadata.json app-id libfoo-id
  cargograph depends metadata.json app-id libfoo-id libbar-id`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDepends(args[0], args[1], args[2:], &opts)
		},
	}

	opts.register(cmd)
	return cmd
}

func (c *CLI) runDepends(path, from string, targets []string, opts *graphOpts) error {
	g, err := c.loadGraph(path, opts)
	if err != nil {
		return err
	}

	cache := depgraph.NewDependsCache(g)
	for _, to := range targets {
		ok, err := cache.DependsOn(from, to)
		if err != nil {
			return err
		}
		fmt.Printf("%s -> %s: %v\n", from, to, ok)
	}
	return nil
}
