// Package cli implements the cargograph command-line interface.
package cli

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/cargograph/cargograph/pkg/buildinfo"
	"github.com/cargograph/cargograph/pkg/depgraph"
	"github.com/cargograph/cargograph/pkg/metadata"
	"github.com/cargograph/cargograph/pkg/platform"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "cargograph",
		Short:        "Cargograph analyzes package dependency graphs",
		Long:         `Cargograph builds an in-memory dependency graph from a build tool's metadata document and answers queries over it: transitive closures, cycles, reachability, feature resolution and DOT rendering.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.selectCommand())
	root.AddCommand(c.dotCommand())
	root.AddCommand(c.cyclesCommand())
	root.AddCommand(c.dependsCommand())
	root.AddCommand(c.resolveCommand())
	root.AddCommand(c.diffCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// graphOpts holds the flags shared by every command that loads a graph.
type graphOpts struct {
	platform      string // platform identifier for edge filtering
	platformTable string // TOML truth table backing the evaluator
	hostPlatform  bool   // substitute the current machine's platform
}

func (o *graphOpts) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.platform, "platform", "", "platform identifier for conditional dependencies (empty keeps all)")
	cmd.Flags().StringVar(&o.platformTable, "platform-table", "", "TOML predicate table for platform evaluation")
	cmd.Flags().BoolVar(&o.hostPlatform, "current-platform", false, "use the current machine's platform identifier")
}

// evaluator loads the predicate table when one was given.
func (o *graphOpts) evaluator() (platform.Evaluator, error) {
	if o.platformTable == "" {
		return nil, nil
	}
	return platform.LoadTable(o.platformTable)
}

func (o *graphOpts) platformID() string {
	if o.hostPlatform {
		return platform.Current()
	}
	return o.platform
}

// loadGraph reads a metadata document and builds the graph from it.
func (c *CLI) loadGraph(path string, opts *graphOpts) (*depgraph.Graph, error) {
	prog := newProgress(c.Logger)

	doc, err := metadata.Load(path)
	if err != nil {
		return nil, err
	}

	eval, err := opts.evaluator()
	if err != nil {
		return nil, err
	}
	g, err := depgraph.Build(doc, &depgraph.BuildOptions{
		Platform:  opts.platformID(),
		Evaluator: eval,
	})
	if err != nil {
		return nil, err
	}

	prog.done("Built graph: " + path)
	c.Logger.Debugf("%d packages, %d links", g.PackageCount(), g.LinkCount())
	return g, nil
}
