package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cargograph/cargograph/pkg/depgraph"
)

// selectOpts holds the command-line flags for the select command.
type selectOpts struct {
	graphOpts
	reverse   bool   // walk toward dependents instead of dependencies
	workspace bool   // root the query at every workspace member
	noDev     bool   // skip dev-only edges
	output    string // output file path (stdout if empty)
	idsOnly   bool   // print bare package ids
}

// selectCommand creates the select command: compute the transitive closure
// of a set of root packages and print it in dependency order.
func (c *CLI) selectCommand() *cobra.Command {
	opts := selectOpts{}

	cmd := &cobra.Command{
		Use:   "select <metadata.json> [package-id...]",
		Short: "Compute the transitive closure of a set of packages",
		Long: `Compute the set of packages reachable from the given roots and print it
in dependency order: roots first, leaf dependencies last (inverted with
--reverse). Without explicit roots, --workspace selects every workspace
member.

Examples:
  cargograph select metadata.json app-id
  cargograph select metadata.json --workspace --no-dev
  cargograph select metadata.json libfoo-id --reverse`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSelect(args[0], args[1:], &opts)
		},
	}

	opts.register(cmd)
	cmd.Flags().BoolVar(&opts.reverse, "reverse", false, "walk toward dependents instead of dependencies")
	cmd.Flags().BoolVar(&opts.workspace, "workspace", false, "root the query at every workspace member")
	cmd.Flags().BoolVar(&opts.noDev, "no-dev", false, "skip dev-only dependency edges")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (stdout if empty)")
	cmd.Flags().BoolVar(&opts.idsOnly, "ids", false, "print bare package ids")

	return cmd
}

func (c *CLI) runSelect(path string, roots []string, opts *selectOpts) error {
	g, err := c.loadGraph(path, &opts.graphOpts)
	if err != nil {
		return err
	}

	set, err := resolveSelection(g, roots, opts)
	if err != nil {
		return err
	}
	c.Logger.Debugf("selected %d of %d packages", set.Len(), g.PackageCount())

	var b strings.Builder
	for _, p := range set.Packages() {
		if opts.idsOnly {
			fmt.Fprintln(&b, p.ID())
			continue
		}
		marker := " "
		if p.InWorkspace() {
			marker = "*"
		}
		fmt.Fprintf(&b, "%s %s %s (%s)\n", marker, p.Name(), p.Version(), p.ID())
	}
	return writeOutput(opts.output, []byte(b.String()))
}

// resolveSelection turns the select flags into a resolved package set.
func resolveSelection(g *depgraph.Graph, roots []string, opts *selectOpts) (*depgraph.PackageSet, error) {
	dir := depgraph.Forward
	if opts.reverse {
		dir = depgraph.Reverse
	}

	var q *depgraph.PackageQuery
	var err error
	if opts.workspace && len(roots) == 0 {
		q = g.QueryWorkspace(dir)
	} else {
		q, err = g.QueryDirected(dir, roots...)
		if err != nil {
			return nil, err
		}
	}

	if opts.noDev {
		return q.ResolveWith(depgraph.LinkFilterFunc(func(l depgraph.PackageLink) bool {
			return !l.DevOnly()
		}))
	}
	return q.Resolve()
}

// writeOutput writes data to path, or stdout when path is empty.
func writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
