package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// cyclesOpts holds the command-line flags for the cycles command.
type cyclesOpts struct {
	graphOpts
	output string
}

// cyclesCommand creates the cycles command: list every cyclic component of
// the graph in dependency order.
func (c *CLI) cyclesCommand() *cobra.Command {
	opts := cyclesOpts{}

	cmd := &cobra.Command{
		Use:   "cycles <metadata.json>",
		Short: "List the cyclic components of the dependency graph",
		Long: `List every strongly connected component that contains a cycle. Members
are printed in the component's dev-aware order: when two members reach each
other only through dev-only edges, the non-dev side comes first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCycles(args[0], &opts)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (stdout if empty)")

	return cmd
}

func (c *CLI) runCycles(path string, opts *cyclesOpts) error {
	g, err := c.loadGraph(path, &opts.graphOpts)
	if err != nil {
		return err
	}

	cycles := g.Cycles().All()
	if len(cycles) == 0 {
		c.Logger.Info("No cycles found")
		return nil
	}

	var b strings.Builder
	for i, cycle := range cycles {
		members := make([]string, len(cycle))
		for j, p := range cycle {
			members[j] = p.Name()
		}
		fmt.Fprintf(&b, "cycle %d: %s\n", i+1, strings.Join(members, " -> "))
	}
	c.Logger.Warnf("Found %d cycles", len(cycles))
	return writeOutput(opts.output, []byte(b.String()))
}
