package cli

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/spf13/cobra"

	"github.com/cargograph/cargograph/pkg/depgraph"
)

// dotOpts holds the command-line flags for the dot command.
type dotOpts struct {
	selectOpts
	svg      bool // render SVG instead of emitting DOT text
	detailed bool // include kind labels on edges
}

// dotCommand creates the dot command: render a closure as Graphviz DOT or
// SVG.
func (c *CLI) dotCommand() *cobra.Command {
	opts := dotOpts{}

	cmd := &cobra.Command{
		Use:   "dot <metadata.json> [package-id...]",
		Short: "Render a dependency closure as Graphviz DOT or SVG",
		Long: `Render the transitive closure of the given roots as a Graphviz digraph.
Nodes are emitted in dependency order and identified by package id.

Examples:
  cargograph dot metadata.json app-id
  cargograph dot metadata.json --workspace --svg -o graph.svg
  cargograph dot metadata.json app-id --detailed`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDot(cmd.Context(), args[0], args[1:], &opts)
		},
	}

	opts.register(cmd)
	cmd.Flags().BoolVar(&opts.reverse, "reverse", false, "walk toward dependents instead of dependencies")
	cmd.Flags().BoolVar(&opts.workspace, "workspace", false, "root the query at every workspace member")
	cmd.Flags().BoolVar(&opts.noDev, "no-dev", false, "skip dev-only dependency edges")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (stdout if empty)")
	cmd.Flags().BoolVar(&opts.svg, "svg", false, "render SVG via Graphviz instead of DOT text")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "label edges with their dependency kinds")

	return cmd
}

func (c *CLI) runDot(ctx context.Context, path string, roots []string, opts *dotOpts) error {
	g, err := c.loadGraph(path, &opts.graphOpts)
	if err != nil {
		return err
	}
	set, err := resolveSelection(g, roots, &opts.selectOpts)
	if err != nil {
		return err
	}

	dot := set.Dot(dotVisitor{detailed: opts.detailed})
	if !opts.svg {
		return writeOutput(opts.output, []byte(dot))
	}

	prog := newProgress(c.Logger)
	svg, err := renderSVG(withLogger(ctx, c.Logger), dot)
	if err != nil {
		return err
	}
	prog.done("Rendered SVG")
	return writeOutput(opts.output, svg)
}

// dotVisitor labels nodes with name and version and, optionally, edges with
// the dependency kinds they carry.
type dotVisitor struct {
	detailed bool
}

func (v dotVisitor) NodeLabel(p depgraph.PackageMetadata) string {
	return p.Name() + "\n" + p.Version()
}

func (v dotVisitor) LinkLabel(l depgraph.PackageLink) string {
	if !v.detailed {
		return ""
	}
	var kinds []string
	for _, kind := range []depgraph.DependencyKind{
		depgraph.DependencyNormal, depgraph.DependencyBuild, depgraph.DependencyDev,
	} {
		if l.Req(kind).Present() {
			kinds = append(kinds, kind.String())
		}
	}
	if len(kinds) == 1 && kinds[0] == "normal" {
		return ""
	}
	return strings.Join(kinds, ",")
}

// renderSVG renders a DOT graph to SVG using Graphviz.
func renderSVG(ctx context.Context, dot string) ([]byte, error) {
	loggerFromContext(ctx).Debugf("rendering %d bytes of DOT", len(dot))

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
