package depgraph

import (
	"sort"
	"sync"

	"github.com/cargograph/cargograph/pkg/platform"
)

// Direction selects which way traversals walk dependency edges.
type Direction int

const (
	// Forward follows dependency edges from a package to what it depends on.
	Forward Direction = iota
	// Reverse follows dependency edges backward to find dependents.
	Reverse
)

// Flip returns the opposite direction.
func (d Direction) Flip() Direction {
	if d == Forward {
		return Reverse
	}
	return Forward
}

// String implements fmt.Stringer.
func (d Direction) String() string {
	if d == Forward {
		return "forward"
	}
	return "reverse"
}

// SourceKind classifies where a package comes from.
type SourceKind int

const (
	// SourceLocal is a package that lives inside the project tree.
	SourceLocal SourceKind = iota
	// SourceRegistry is a package fetched from a package registry.
	SourceRegistry
	// SourceVersionControl is a package fetched from a VCS repository.
	SourceVersionControl
)

// String implements fmt.Stringer.
func (s SourceKind) String() string {
	switch s {
	case SourceLocal:
		return "local"
	case SourceRegistry:
		return "registry"
	default:
		return "version-control"
	}
}

// DependencyKind is one of the three dependency edge kinds.
type DependencyKind int

const (
	// DependencyNormal links code needed at runtime.
	DependencyNormal DependencyKind = iota
	// DependencyBuild links code needed by build scripts on the build host.
	DependencyBuild
	// DependencyDev links code needed only for tests, examples and benches.
	DependencyDev
)

// String implements fmt.Stringer.
func (k DependencyKind) String() string {
	switch k {
	case DependencyNormal:
		return "normal"
	case DependencyBuild:
		return "build"
	default:
		return "dev"
	}
}

// Build target kinds.
const (
	TargetKindLib       = "lib"
	TargetKindBin       = "bin"
	TargetKindTest      = "test"
	TargetKindBench     = "bench"
	TargetKindExample   = "example"
	TargetKindProcMacro = "proc-macro"
)

// BuildTarget is one buildable artifact of a package.
type BuildTarget struct {
	Name       string
	Kinds      []string
	CrateTypes []string
}

// featureDecl is one entry in a package's feature namespace: either a named
// feature with its requirement list, or the implicit feature an optional
// dependency defines.
type featureDecl struct {
	name     string
	optional bool
	requires []string
}

// packageInner is the arena storage for one package.
type packageInner struct {
	id           string
	name         string
	version      string
	source       string
	sourceKind   SourceKind
	manifestPath string
	inWorkspace  bool
	procMacro    bool
	targets      []BuildTarget
	features     []featureDecl
	featureIx    map[string]int
}

// depInstance is one declared dependency record folded into a link kind.
// Multiple instances per kind appear when a dependency is declared once per
// platform predicate.
type depInstance struct {
	versionReq      string
	optional        bool
	defaultFeatures bool
	features        []string
	predicate       string // "" = all platforms
}

// kindStatus holds the declaration instances for one dependency kind.
// A nil instance list means the kind is absent from the link.
type kindStatus struct {
	instances []depInstance
}

func (s kindStatus) present() bool { return len(s.instances) > 0 }

// linkInner is the arena storage for one merged dependency edge.
type linkInner struct {
	from         int
	to           int
	depName      string
	resolvedName string
	normal       kindStatus
	build        kindStatus
	dev          kindStatus
}

func (l *linkInner) status(kind DependencyKind) *kindStatus {
	switch kind {
	case DependencyNormal:
		return &l.normal
	case DependencyBuild:
		return &l.build
	default:
		return &l.dev
	}
}

// devOnly reports whether the link exists only as a dev dependency.
func (l *linkInner) devOnly() bool {
	return !l.normal.present() && !l.build.present() && l.dev.present()
}

// Graph is an immutable in-memory dependency graph over the packages of one
// metadata document. The only permitted mutation is RetainEdges, which
// rebuilds the derived indexes. All other access is read-only and safe for
// concurrent use.
type Graph struct {
	packages  []packageInner
	byID      map[string]int
	links     []linkInner
	adj       *adjacency
	workspace *Workspace

	// Optional build configuration (see BuildOptions).
	platformID string
	evaluator  platform.Evaluator

	sccOnce  *sync.Once
	scc      *sccIndex
	featOnce *sync.Once
	feat     *FeatureGraph
}

// PackageCount returns the number of packages in the graph.
func (g *Graph) PackageCount() int { return len(g.packages) }

// LinkCount returns the number of merged dependency edges.
func (g *Graph) LinkCount() int { return len(g.links) }

// Packages returns every package in insertion order.
func (g *Graph) Packages() []PackageMetadata {
	out := make([]PackageMetadata, len(g.packages))
	for i := range g.packages {
		out[i] = PackageMetadata{g: g, ix: i}
	}
	return out
}

// PackageByID looks up a package by its unique id.
func (g *Graph) PackageByID(id string) (PackageMetadata, bool) {
	ix, ok := g.byID[id]
	if !ok {
		return PackageMetadata{}, false
	}
	return PackageMetadata{g: g, ix: ix}, true
}

// Workspace returns the workspace view of the graph.
func (g *Graph) Workspace() *Workspace { return g.workspace }

// Platform returns the platform identifier supplied at construction, or ""
// when none was configured.
func (g *Graph) Platform() string { return g.platformID }

// Evaluator returns the predicate evaluator supplied at construction, or nil.
func (g *Graph) Evaluator() platform.Evaluator { return g.evaluator }

// sccIndex lazily computes the SCC decomposition. Cyclic components are
// internally ordered ignoring dev-only edges so iteration still yields a
// usable build order.
func (g *Graph) sccIndex() *sccIndex {
	g.sccOnce.Do(func() {
		g.scc = computeSCCs(g.adj, func(e int) bool {
			return !g.links[e].devOnly()
		})
	})
	return g.scc
}

// RetainEdges drops every link for which keep returns false and rebuilds
// the derived indexes. Previously produced sets remain frozen snapshots of
// the prior edge set; depends caches must be discarded by their owners.
// The caller must guarantee exclusive access for the duration of the call.
func (g *Graph) RetainEdges(keep func(PackageLink) bool) {
	kept := make([]linkInner, 0, len(g.links))
	for ix := range g.links {
		if keep(PackageLink{g: g, ix: ix}) {
			kept = append(kept, g.links[ix])
		}
	}
	g.links = kept
	g.rebuildAdjacency()
	g.sccOnce = new(sync.Once)
	g.scc = nil
	g.featOnce = new(sync.Once)
	g.feat = nil
}

func (g *Graph) rebuildAdjacency() {
	from := make([]int, len(g.links))
	to := make([]int, len(g.links))
	for i := range g.links {
		from[i] = g.links[i].from
		to[i] = g.links[i].to
	}
	g.adj = newAdjacency(len(g.packages), from, to)
}

// PackageMetadata is a lightweight handle to one package in a Graph.
type PackageMetadata struct {
	g  *Graph
	ix int
}

func (p PackageMetadata) inner() *packageInner { return &p.g.packages[p.ix] }

// ID returns the unique package id.
func (p PackageMetadata) ID() string { return p.inner().id }

// Name returns the package name.
func (p PackageMetadata) Name() string { return p.inner().name }

// Version returns the package version string.
func (p PackageMetadata) Version() string { return p.inner().version }

// Source returns the package source kind.
func (p PackageMetadata) Source() SourceKind { return p.inner().sourceKind }

// SourceID returns the raw source identifier from the metadata document.
func (p PackageMetadata) SourceID() string { return p.inner().source }

// ManifestPath returns the path to the package manifest.
func (p PackageMetadata) ManifestPath() string { return p.inner().manifestPath }

// InWorkspace reports whether the package is a workspace member.
func (p PackageMetadata) InWorkspace() bool { return p.inner().inWorkspace }

// IsProcMacro reports whether the package's library target is a procedural
// macro, which is always compiled for the build host.
func (p PackageMetadata) IsProcMacro() bool { return p.inner().procMacro }

// BuildTargets returns the package's build targets.
func (p PackageMetadata) BuildTargets() []BuildTarget {
	out := make([]BuildTarget, len(p.inner().targets))
	copy(out, p.inner().targets)
	return out
}

// FeatureNames returns the package's feature namespace in sorted order,
// including the implicit features defined by optional dependencies.
func (p PackageMetadata) FeatureNames() []string {
	decls := p.inner().features
	out := make([]string, len(decls))
	for i, d := range decls {
		out[i] = d.name
	}
	return out
}

// HasFeature reports whether name is in the package's feature namespace.
func (p PackageMetadata) HasFeature(name string) bool {
	_, ok := p.inner().featureIx[name]
	return ok
}

// DirectLinks returns the package's direct links in dir: outgoing
// dependencies for Forward, incoming dependents for Reverse.
func (p PackageMetadata) DirectLinks(dir Direction) []PackageLink {
	edges := p.g.adj.edgesFrom(dir, p.ix)
	out := make([]PackageLink, len(edges))
	for i, e := range edges {
		out[i] = PackageLink{g: p.g, ix: e}
	}
	return out
}

// PackageLink is a lightweight handle to one merged dependency edge.
type PackageLink struct {
	g  *Graph
	ix int
}

func (l PackageLink) inner() *linkInner { return &l.g.links[l.ix] }

// From returns the depending package.
func (l PackageLink) From() PackageMetadata {
	return PackageMetadata{g: l.g, ix: l.inner().from}
}

// To returns the package depended upon.
func (l PackageLink) To() PackageMetadata {
	return PackageMetadata{g: l.g, ix: l.inner().to}
}

// DepName returns the dependency name as declared (rename applied).
func (l PackageLink) DepName() string { return l.inner().depName }

// ResolvedName returns the local name the dependency resolves to, with
// dashes replaced by underscores.
func (l PackageLink) ResolvedName() string { return l.inner().resolvedName }

// Normal returns the normal-kind requirement view.
func (l PackageLink) Normal() DependencyReq {
	return DependencyReq{g: l.g, link: l.ix, kind: DependencyNormal}
}

// Build returns the build-kind requirement view.
func (l PackageLink) Build() DependencyReq {
	return DependencyReq{g: l.g, link: l.ix, kind: DependencyBuild}
}

// Dev returns the dev-kind requirement view.
func (l PackageLink) Dev() DependencyReq {
	return DependencyReq{g: l.g, link: l.ix, kind: DependencyDev}
}

// Req returns the requirement view for kind.
func (l PackageLink) Req(kind DependencyKind) DependencyReq {
	return DependencyReq{g: l.g, link: l.ix, kind: kind}
}

// DevOnly reports whether the link exists only as a dev dependency.
func (l PackageLink) DevOnly() bool { return l.inner().devOnly() }

// DependencyReq is the per-kind view of one link.
type DependencyReq struct {
	g    *Graph
	link int
	kind DependencyKind
}

func (r DependencyReq) status() *kindStatus {
	return r.g.links[r.link].status(r.kind)
}

// Kind returns the dependency kind this view covers.
func (r DependencyReq) Kind() DependencyKind { return r.kind }

// Present reports whether the link carries this kind at all.
func (r DependencyReq) Present() bool { return r.status().present() }

// Optional reports whether any declaration of this kind is optional.
func (r DependencyReq) Optional() bool {
	for _, inst := range r.status().instances {
		if inst.optional {
			return true
		}
	}
	return false
}

// VersionReq returns the declared version requirement, if any.
func (r DependencyReq) VersionReq() string {
	if insts := r.status().instances; len(insts) > 0 {
		return insts[0].versionReq
	}
	return ""
}

// DefaultFeatures reports whether any declaration of this kind enables the
// dependency's default features.
func (r DependencyReq) DefaultFeatures() bool {
	for _, inst := range r.status().instances {
		if inst.defaultFeatures {
			return true
		}
	}
	return false
}

// Features returns the sorted union of features requested across all
// declarations of this kind.
func (r DependencyReq) Features() []string {
	seen := map[string]bool{}
	var out []string
	for _, inst := range r.status().instances {
		for _, f := range inst.features {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	sort.Strings(out)
	return out
}

// EnabledOn reports whether this kind applies on the given platform,
// delegating predicate evaluation to eval. An empty platform means "any
// platform": every present declaration matches. Declarations without a
// predicate apply everywhere.
func (r DependencyReq) EnabledOn(plat string, eval platform.Evaluator) (bool, error) {
	insts := r.status().instances
	if len(insts) == 0 {
		return false, nil
	}
	if plat == "" {
		return true, nil
	}
	for _, inst := range insts {
		if inst.predicate == "" {
			return true, nil
		}
		ok, err := eval.Eval(inst.predicate, plat)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Workspace is the set of packages developed together in the project.
type Workspace struct {
	g      *Graph
	root   string
	member []int // package indices sorted by package name
	byName map[string]int
	byPath map[string]int
}

// Root returns the workspace root directory.
func (w *Workspace) Root() string { return w.root }

// Members returns the workspace members sorted by name.
func (w *Workspace) Members() []PackageMetadata {
	out := make([]PackageMetadata, len(w.member))
	for i, ix := range w.member {
		out[i] = PackageMetadata{g: w.g, ix: ix}
	}
	return out
}

// MemberByName looks up a workspace member by package name.
func (w *Workspace) MemberByName(name string) (PackageMetadata, bool) {
	ix, ok := w.byName[name]
	if !ok {
		return PackageMetadata{}, false
	}
	return PackageMetadata{g: w.g, ix: ix}, true
}

// MemberByPath looks up a workspace member by its manifest directory.
func (w *Workspace) MemberByPath(path string) (PackageMetadata, bool) {
	ix, ok := w.byPath[path]
	if !ok {
		return PackageMetadata{}, false
	}
	return PackageMetadata{g: w.g, ix: ix}, true
}
