package depgraph

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cargograph/cargograph/pkg/errors"
	"github.com/cargograph/cargograph/pkg/metadata"
	"github.com/cargograph/cargograph/pkg/platform"
)

// BuildOptions carries optional construction-time configuration.
type BuildOptions struct {
	// Platform is the identifier of the machine running the analysis. It is
	// never read implicitly from the environment; tests inject fixed values
	// and the CLI passes platform.Current(). May be empty.
	Platform string

	// Evaluator answers platform predicates for Platform. May be nil when
	// Platform is empty.
	Evaluator platform.Evaluator
}

// Build constructs a Graph from a metadata document, joining each package's
// declared dependency records with the resolver's edges and validating the
// structural invariants. Any validation failure aborts construction; no
// partial graph is ever returned.
func Build(doc *metadata.Document, opts *BuildOptions) (*Graph, error) {
	if doc.Resolve == nil {
		return nil, errors.New(errors.ErrCodeConstruction, "metadata document has no resolved dependency graph")
	}

	g := &Graph{
		byID:     make(map[string]int, len(doc.Packages)),
		sccOnce:  new(sync.Once),
		featOnce: new(sync.Once),
	}
	if opts != nil {
		g.platformID = opts.Platform
		g.evaluator = opts.Evaluator
	}

	for i := range doc.Packages {
		p := &doc.Packages[i]
		if _, dup := g.byID[p.ID]; dup {
			return nil, errors.New(errors.ErrCodeConstruction, "duplicate package id %q", p.ID)
		}
		inner, err := buildPackage(p)
		if err != nil {
			return nil, err
		}
		g.byID[p.ID] = len(g.packages)
		g.packages = append(g.packages, inner)
	}

	if err := buildWorkspace(g, doc); err != nil {
		return nil, err
	}
	if err := joinResolve(g, doc); err != nil {
		return nil, err
	}
	if err := checkOptionalGates(g); err != nil {
		return nil, err
	}

	g.rebuildAdjacency()
	return g, nil
}

// buildPackage validates one package's targets and dependency declarations
// and assembles its feature namespace.
func buildPackage(p *metadata.Package) (packageInner, error) {
	inner := packageInner{
		id:           p.ID,
		name:         p.Name,
		version:      p.Version,
		source:       p.Source,
		manifestPath: p.ManifestPath,
	}

	var err error
	inner.sourceKind, err = classifySource(p)
	if err != nil {
		return packageInner{}, err
	}

	libTargets := 0
	for _, t := range p.Targets {
		if len(t.Kind) == 0 {
			return packageInner{}, errors.New(errors.ErrCodeConstruction,
				"build target %q of package %q has no kinds", t.Name, p.Name)
		}
		if err := checkTarget(p.Name, t); err != nil {
			return packageInner{}, err
		}
		if targetHasKind(t, TargetKindLib) || targetHasKind(t, TargetKindProcMacro) {
			libTargets++
		}
		if targetHasKind(t, TargetKindProcMacro) {
			inner.procMacro = true
		}
		inner.targets = append(inner.targets, BuildTarget{
			Name:       t.Name,
			Kinds:      append([]string(nil), t.Kind...),
			CrateTypes: append([]string(nil), t.CrateTypes...),
		})
	}
	if libTargets > 1 {
		return packageInner{}, errors.New(errors.ErrCodeConstruction,
			"package %q has %d library targets, at most one is allowed", p.Name, libTargets)
	}

	// Feature namespace: declared named features plus the implicit feature
	// each optional dependency defines, unless shadowed by a named feature.
	for name, requires := range p.Features {
		inner.features = append(inner.features, featureDecl{
			name:     name,
			requires: append([]string(nil), requires...),
		})
	}
	named := make(map[string]bool, len(p.Features))
	for name := range p.Features {
		named[name] = true
	}
	seenGate := map[string]bool{}
	for _, d := range p.Dependencies {
		if d.Kind == metadata.KindDev && d.Optional {
			return packageInner{}, errors.New(errors.ErrCodeConstruction,
				"for package %q: dev-dependency %q marked optional", p.Name, depGateName(d))
		}
		if !d.Optional {
			continue
		}
		gate := depGateName(d)
		if named[gate] || seenGate[gate] {
			continue
		}
		seenGate[gate] = true
		inner.features = append(inner.features, featureDecl{name: gate, optional: true})
	}
	sort.Slice(inner.features, func(i, j int) bool {
		return inner.features[i].name < inner.features[j].name
	})
	inner.featureIx = make(map[string]int, len(inner.features))
	for i, f := range inner.features {
		inner.featureIx[f.name] = i
	}

	return inner, nil
}

func classifySource(p *metadata.Package) (SourceKind, error) {
	switch {
	case p.Source == "" || strings.HasPrefix(p.Source, "path+"):
		return SourceLocal, nil
	case strings.HasPrefix(p.Source, "registry+"):
		return SourceRegistry, nil
	case strings.HasPrefix(p.Source, "git+"):
		return SourceVersionControl, nil
	default:
		return 0, errors.New(errors.ErrCodeConstruction,
			"package %q has unrecognized source %q", p.Name, p.Source)
	}
}

// checkTarget enforces kind/crate-type consistency for one build target.
func checkTarget(pkgName string, t metadata.Target) error {
	if targetHasKind(t, TargetKindProcMacro) {
		if len(t.Kind) > 1 {
			return errors.New(errors.ErrCodeConstruction,
				"target %q of package %q mixes proc-macro with other kinds", t.Name, pkgName)
		}
		for _, ct := range t.CrateTypes {
			if ct != TargetKindProcMacro {
				return errors.New(errors.ErrCodeConstruction,
					"target %q of package %q mixes proc-macro with crate type %q", t.Name, pkgName, ct)
			}
		}
		return nil
	}
	for _, kind := range t.Kind {
		switch kind {
		case TargetKindBin, TargetKindTest, TargetKindBench:
			for _, ct := range t.CrateTypes {
				if ct != "bin" {
					return errors.New(errors.ErrCodeConstruction,
						"target %q of package %q declares kind %q with crate type %q", t.Name, pkgName, kind, ct)
				}
			}
		case TargetKindLib:
			for _, ct := range t.CrateTypes {
				if ct == "bin" {
					return errors.New(errors.ErrCodeConstruction,
						"target %q of package %q declares a library kind with crate type \"bin\"", t.Name, pkgName)
				}
			}
		}
	}
	return nil
}

func targetHasKind(t metadata.Target, kind string) bool {
	for _, k := range t.Kind {
		if k == kind {
			return true
		}
	}
	return false
}

// depGateName returns the name a dependency is referred to by in its
// consumer: the rename when present, the package name otherwise.
func depGateName(d metadata.Dependency) string {
	if d.Rename != "" {
		return d.Rename
	}
	return d.Name
}

func underscore(s string) string {
	return strings.ReplaceAll(s, "-", "_")
}

func buildWorkspace(g *Graph, doc *metadata.Document) error {
	ws := &Workspace{
		g:      g,
		root:   doc.WorkspaceRoot,
		byName: map[string]int{},
		byPath: map[string]int{},
	}
	for _, id := range doc.WorkspaceMembers {
		ix, ok := g.byID[id]
		if !ok {
			return errors.New(errors.ErrCodeConstruction, "workspace member %q not found in package list", id)
		}
		inner := &g.packages[ix]
		if _, dup := ws.byName[inner.name]; dup {
			return errors.New(errors.ErrCodeConstruction, "duplicate workspace member name %q", inner.name)
		}
		inner.inWorkspace = true
		ws.byName[inner.name] = ix
		if inner.manifestPath != "" {
			ws.byPath[filepath.Dir(inner.manifestPath)] = ix
		}
		ws.member = append(ws.member, ix)
	}
	sort.Slice(ws.member, func(i, j int) bool {
		return g.packages[ws.member[i]].name < g.packages[ws.member[j]].name
	})
	g.workspace = ws
	return nil
}

// joinResolve merges the resolver's edges with the declared dependency
// records into linkInner entries, one per (from, to) package pair.
func joinResolve(g *Graph, doc *metadata.Document) error {
	nodes := make(map[string]*metadata.Node, len(doc.Resolve.Nodes))
	for i := range doc.Resolve.Nodes {
		n := &doc.Resolve.Nodes[i]
		if _, ok := g.byID[n.ID]; !ok {
			return errors.New(errors.ErrCodeConstruction, "resolved node references unknown package id %q", n.ID)
		}
		if _, dup := nodes[n.ID]; dup {
			return errors.New(errors.ErrCodeConstruction, "duplicate resolved node for package id %q", n.ID)
		}
		nodes[n.ID] = n
	}

	linkIx := map[[2]int]int{}
	for fromIx := range g.packages {
		from := &g.packages[fromIx]
		node, ok := nodes[from.id]
		if !ok {
			return errors.New(errors.ErrCodeConstruction, "package %q has no resolved dependency data", from.id)
		}
		declared := doc.Packages[fromIx].Dependencies

		for _, nd := range node.Deps {
			toIx, ok := g.byID[nd.Pkg]
			if !ok {
				return errors.New(errors.ErrCodeConstruction,
					"resolved dependency of %q references unknown package id %q", from.name, nd.Pkg)
			}
			to := &g.packages[toIx]

			matched := false
			for _, d := range declared {
				if d.Name != to.name || underscore(depGateName(d)) != nd.Name {
					continue
				}
				matched = true
				key := [2]int{fromIx, toIx}
				ix, ok := linkIx[key]
				if !ok {
					ix = len(g.links)
					linkIx[key] = ix
					g.links = append(g.links, linkInner{
						from:         fromIx,
						to:           toIx,
						depName:      depGateName(d),
						resolvedName: nd.Name,
					})
				}
				inst := depInstance{
					versionReq:      d.Req,
					optional:        d.Optional,
					defaultFeatures: d.DefaultFeatures,
					features:        append([]string(nil), d.Features...),
					predicate:       d.Target,
				}
				st := g.links[ix].status(declKind(d.Kind))
				st.instances = append(st.instances, inst)
			}
			if !matched {
				return errors.New(errors.ErrCodeConstruction,
					"for package %q: no declared dependency matches resolved dependency %q", from.name, nd.Name)
			}
		}
	}
	return nil
}

func declKind(kind string) DependencyKind {
	switch kind {
	case metadata.KindBuild:
		return DependencyBuild
	case metadata.KindDev:
		return DependencyDev
	default:
		return DependencyNormal
	}
}

// checkOptionalGates verifies that every optional edge has a feature gate in
// its source package's namespace.
func checkOptionalGates(g *Graph) error {
	for ix := range g.links {
		l := &g.links[ix]
		optional := false
		for _, kind := range []DependencyKind{DependencyNormal, DependencyBuild} {
			for _, inst := range l.status(kind).instances {
				if inst.optional {
					optional = true
				}
			}
		}
		if !optional {
			continue
		}
		from := &g.packages[l.from]
		if _, ok := from.featureIx[l.depName]; !ok {
			return errors.New(errors.ErrCodeConstruction,
				"optional dependency %q of package %q has no feature gate", l.depName, from.name)
		}
	}
	return nil
}
