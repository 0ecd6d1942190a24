// Package cargo emulates the build tool's feature-activation algorithm on
// top of the feature graph.
//
// Activation starts from a set of root packages with requested features and
// propagates to a fixed point: strong edges always activate their target,
// weak edges activate the target feature only once the target package's
// base is active through some non-weak path. Platform predicates on edges
// are delegated to an injected evaluator; an empty platform computes the
// conservative union over all platforms.
//
// Two resolver policies are supported. Version 1 unifies target-platform
// and build-host activation into one set. Version 2 keeps them separate:
// build dependencies and dependencies of procedural macros resolve in a
// host context evaluated against the build machine's platform.
package cargo

import (
	"github.com/cargograph/cargograph/pkg/depgraph"
	"github.com/cargograph/cargograph/pkg/errors"
	"github.com/cargograph/cargograph/pkg/platform"
)

// ResolverVersion selects the build tool's resolution policy revision.
type ResolverVersion int

const (
	// V1 unifies target and host activation into a single set.
	V1 ResolverVersion = 1
	// V2 resolves host-only edges against the build machine's platform,
	// keeping target and host feature sets separate.
	V2 ResolverVersion = 2
)

// PackageSelection names one root package and the features requested on it.
type PackageSelection struct {
	ID              string
	DefaultFeatures bool
	AllFeatures     bool
	Features        []string
}

// Options configures a resolution.
type Options struct {
	// Version is the resolver policy; the zero value means V1.
	Version ResolverVersion

	// IncludeDev follows dev dependencies of the root packages.
	IncludeDev bool

	// TargetPlatform is the platform being built for. Empty means no edge
	// is filtered: the conservative union over all platforms.
	TargetPlatform string

	// HostPlatform is the platform of the build machine, used for build
	// dependencies and, under V2, everything in the host context. Empty
	// falls back to the platform configured on the graph, if any.
	HostPlatform string

	// Evaluator answers platform predicates. Empty falls back to the
	// evaluator configured on the graph. Required when any platform is
	// set and the graph carries none.
	Evaluator platform.Evaluator
}

// Set is the result of a resolution: feature sets for the target and host
// contexts. Under V1 both views are the same set.
type Set struct {
	version ResolverVersion
	target  *depgraph.FeatureSet
	host    *depgraph.FeatureSet
}

// Version returns the resolver policy the set was computed under.
func (s *Set) Version() ResolverVersion { return s.version }

// Target returns the target-context feature set.
func (s *Set) Target() *depgraph.FeatureSet { return s.target }

// Host returns the host-context feature set.
func (s *Set) Host() *depgraph.FeatureSet { return s.host }

// FeaturesFor returns the target-context active features of a package; see
// FeatureSet.FeaturesFor.
func (s *Set) FeaturesFor(packageID string) ([]string, bool) {
	return s.target.FeaturesFor(packageID)
}

// contexts for the worklist. Under V1 only ctxTarget is used.
const (
	ctxTarget = 0
	ctxHost   = 1
)

// resolution carries the fixed-point state.
type resolution struct {
	fg       *depgraph.FeatureGraph
	opts     Options
	initials map[string]bool

	active  [2]map[depgraph.FeatureNode]bool
	queue   []workItem
	pending [2]map[depgraph.FeatureNode][]depgraph.FeatureNode // deferred weak targets keyed by base node
}

type workItem struct {
	node depgraph.FeatureNode
	ctx  int
}

// Resolve runs the feature-activation algorithm from the given roots.
// Unknown root packages or features fail with UNKNOWN_PACKAGE_ID or
// UNKNOWN_FEATURE; evaluator failures propagate unchanged.
func Resolve(g *depgraph.Graph, roots []PackageSelection, opts Options) (*Set, error) {
	if opts.Version == 0 {
		opts.Version = V1
	}
	if opts.Version != V1 && opts.Version != V2 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "unsupported resolver version %d", opts.Version)
	}
	if opts.HostPlatform == "" {
		opts.HostPlatform = g.Platform()
	}
	if opts.Evaluator == nil {
		opts.Evaluator = g.Evaluator()
	}
	if opts.Evaluator == nil && (opts.TargetPlatform != "" || opts.HostPlatform != "") {
		return nil, errors.New(errors.ErrCodeInvalidInput, "platform given without a predicate evaluator")
	}

	r := &resolution{
		fg:       g.FeatureGraph(),
		opts:     opts,
		initials: make(map[string]bool, len(roots)),
	}
	for ctx := range r.active {
		r.active[ctx] = map[depgraph.FeatureNode]bool{}
		r.pending[ctx] = map[depgraph.FeatureNode][]depgraph.FeatureNode{}
	}

	if err := r.seed(g, roots); err != nil {
		return nil, err
	}
	if err := r.run(); err != nil {
		return nil, err
	}
	return r.finish()
}

// seed activates each root package's base node, its default feature when
// requested, and the explicitly selected features, all in the target
// context.
func (r *resolution) seed(g *depgraph.Graph, roots []PackageSelection) error {
	for _, sel := range roots {
		pkg, ok := g.PackageByID(sel.ID)
		if !ok {
			return errors.New(errors.ErrCodeUnknownID, "unknown package id %q", sel.ID)
		}
		r.initials[sel.ID] = true

		base, err := r.fg.Node(depgraph.FeatureID{PackageID: sel.ID})
		if err != nil {
			return err
		}
		r.activate(base, ctxTarget)

		var names []string
		if sel.AllFeatures {
			names = pkg.FeatureNames()
		} else {
			if sel.DefaultFeatures && pkg.HasFeature("default") {
				names = append(names, "default")
			}
			names = append(names, sel.Features...)
		}
		for _, name := range names {
			n, err := r.fg.Node(depgraph.FeatureID{PackageID: sel.ID, Feature: name})
			if err != nil {
				return err
			}
			r.activate(n, ctxTarget)
		}
	}
	return nil
}

// activate marks a node active in a context, enqueues it for expansion,
// and flushes any weak activations that were waiting for it.
func (r *resolution) activate(n depgraph.FeatureNode, ctx int) {
	if r.active[ctx][n] {
		return
	}
	r.active[ctx][n] = true
	r.queue = append(r.queue, workItem{node: n, ctx: ctx})

	if deferred, ok := r.pending[ctx][n]; ok {
		delete(r.pending[ctx], n)
		for _, t := range deferred {
			r.activate(t, ctx)
		}
	}
}

// deliver activates the target of an edge in a context, deferring weak
// edges until the target package's base is active through a non-weak path.
func (r *resolution) deliver(e depgraph.FeatureEdge, ctx int) {
	to := e.To()
	if !e.Weak() {
		r.activate(to, ctx)
		return
	}
	base := to.Base()
	if r.active[ctx][base] {
		r.activate(to, ctx)
		return
	}
	r.pending[ctx][base] = append(r.pending[ctx][base], to)
}

// run drains the worklist to a fixed point. Termination is guaranteed:
// activation only ever adds nodes to a finite set.
func (r *resolution) run() error {
	for len(r.queue) > 0 {
		it := r.queue[len(r.queue)-1]
		r.queue = r.queue[:len(r.queue)-1]

		for _, e := range r.fg.OutEdges(it.node) {
			if e.Kind() != depgraph.FeatureEdgeCross {
				r.activate(e.To(), it.ctx)
				continue
			}
			if err := r.expandCross(it, e); err != nil {
				return err
			}
		}
	}
	return nil
}

// expandCross follows one cross-package edge from a worklist item,
// considering each dependency kind that carries it.
func (r *resolution) expandCross(it workItem, e depgraph.FeatureEdge) error {
	eval := r.opts.Evaluator

	if e.PresentFor(depgraph.DependencyNormal) {
		plat := r.contextPlatform(it.ctx)
		ok, err := e.EnabledOn(depgraph.DependencyNormal, plat, eval)
		if err != nil {
			return err
		}
		if ok {
			dest := it.ctx
			if r.opts.Version == V2 && e.To().Package().IsProcMacro() {
				dest = ctxHost
			}
			r.deliver(e, dest)
		}
	}

	// Build dependencies run on the build machine under either policy.
	if e.PresentFor(depgraph.DependencyBuild) {
		ok, err := e.EnabledOn(depgraph.DependencyBuild, r.opts.HostPlatform, eval)
		if err != nil {
			return err
		}
		if ok {
			dest := it.ctx
			if r.opts.Version == V2 {
				dest = ctxHost
			}
			r.deliver(e, dest)
		}
	}

	// Dev dependencies are followed only from the root packages.
	if r.opts.IncludeDev && it.ctx == ctxTarget && r.initials[it.node.Package().ID()] &&
		e.PresentFor(depgraph.DependencyDev) {
		ok, err := e.EnabledOn(depgraph.DependencyDev, r.opts.TargetPlatform, eval)
		if err != nil {
			return err
		}
		if ok {
			r.deliver(e, ctxTarget)
		}
	}
	return nil
}

func (r *resolution) contextPlatform(ctx int) string {
	if ctx == ctxHost {
		return r.opts.HostPlatform
	}
	return r.opts.TargetPlatform
}

// finish materializes the context sets. Under V1 the single unified set
// serves both views.
func (r *resolution) finish() (*Set, error) {
	target, err := r.newSet(ctxTarget)
	if err != nil {
		return nil, err
	}
	if r.opts.Version == V1 {
		return &Set{version: V1, target: target, host: target}, nil
	}
	host, err := r.newSet(ctxHost)
	if err != nil {
		return nil, err
	}
	return &Set{version: V2, target: target, host: host}, nil
}

func (r *resolution) newSet(ctx int) (*depgraph.FeatureSet, error) {
	nodes := make([]depgraph.FeatureNode, 0, len(r.active[ctx]))
	for n := range r.active[ctx] {
		nodes = append(nodes, n)
	}
	return r.fg.NewSet(nodes)
}
