package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cargograph/cargograph/pkg/depgraph/cargo"
	"github.com/cargograph/cargograph/pkg/summaries"
)

// resolveOpts holds the command-line flags for the resolve command.
type resolveOpts struct {
	graphOpts
	features     string // comma-separated feature names on the roots
	allFeatures  bool
	noDefaults   bool
	includeDev   bool
	v2           bool
	hostPlatform string // build machine platform for host-context edges
	summaryPath  string // write a TOML summary instead of plain text
	output       string
}

// resolveCommand creates the resolve command: run the feature-activation
// algorithm from a set of root packages.
func (c *CLI) resolveCommand() *cobra.Command {
	opts := resolveOpts{}

	cmd := &cobra.Command{
		Use:   "resolve <metadata.json> <package-id>...",
		Short: "Resolve feature activation from a set of root packages",
		Long: `Run the build tool's feature-activation algorithm from the given roots
and report the active features of every activated package. Version 2
resolution keeps build-host activation separate from the target.

Examples:
  cargograph resolve metadata.json app-id
  cargograph resolve metadata.json app-id --features tls,serde
  cargograph resolve metadata.json app-id --v2 --platform x86_64-unknown-linux-gnu --platform-table platforms.toml
  cargograph resolve metadata.json app-id --summary resolved.toml`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runResolve(args[0], args[1:], &opts)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&opts.features, "features", "", "comma-separated features to enable on the roots")
	cmd.Flags().BoolVar(&opts.allFeatures, "all-features", false, "enable every feature of the roots")
	cmd.Flags().BoolVar(&opts.noDefaults, "no-default-features", false, "do not enable the default feature")
	cmd.Flags().BoolVar(&opts.includeDev, "include-dev", false, "follow dev dependencies of the roots")
	cmd.Flags().BoolVar(&opts.v2, "v2", false, "use version 2 resolution with host separation")
	cmd.Flags().StringVar(&opts.hostPlatform, "host-platform", "", "build machine platform (defaults to --platform)")
	cmd.Flags().StringVar(&opts.summaryPath, "summary", "", "write a TOML resolution summary to this file")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (stdout if empty)")

	return cmd
}

func (c *CLI) runResolve(path string, roots []string, opts *resolveOpts) error {
	g, err := c.loadGraph(path, &opts.graphOpts)
	if err != nil {
		return err
	}

	var features []string
	if opts.features != "" {
		features = strings.Split(opts.features, ",")
	}
	selections := make([]cargo.PackageSelection, len(roots))
	for i, id := range roots {
		selections[i] = cargo.PackageSelection{
			ID:              id,
			DefaultFeatures: !opts.noDefaults,
			AllFeatures:     opts.allFeatures,
			Features:        features,
		}
	}

	version := cargo.V1
	if opts.v2 {
		version = cargo.V2
	}
	eval, err := opts.evaluator()
	if err != nil {
		return err
	}
	hostPlatform := opts.hostPlatform
	if hostPlatform == "" {
		hostPlatform = opts.platformID()
	}
	cargoOpts := cargo.Options{
		Version:        version,
		IncludeDev:     opts.includeDev,
		TargetPlatform: opts.platformID(),
		HostPlatform:   hostPlatform,
		Evaluator:      eval,
	}

	prog := newProgress(c.Logger)
	set, err := cargo.Resolve(g, selections, cargoOpts)
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Resolved %d target packages", len(set.Target().Packages())))

	for _, w := range g.FeatureGraph().Warnings() {
		c.Logger.Warnf("dangling feature reference %q in %s", w.Missing, w.PackageID)
	}

	if opts.summaryPath != "" {
		return summaries.New(set, cargoOpts).Write(opts.summaryPath)
	}

	var b strings.Builder
	for _, pkg := range set.Target().Packages() {
		features, _ := set.FeaturesFor(pkg.ID())
		fmt.Fprintf(&b, "%s %s [%s]\n", pkg.Name(), pkg.Version(), strings.Join(features, ", "))
	}
	if opts.v2 {
		fmt.Fprintln(&b, "host:")
		for _, pkg := range set.Host().Packages() {
			features, _ := set.Host().FeaturesFor(pkg.ID())
			fmt.Fprintf(&b, "%s %s [%s]\n", pkg.Name(), pkg.Version(), strings.Join(features, ", "))
		}
	}
	return writeOutput(opts.output, []byte(b.String()))
}
