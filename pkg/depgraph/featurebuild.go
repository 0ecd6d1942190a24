package depgraph

import "strings"

// featureEdgeKey dedupes edges while building: at most one edge per
// (from, to, weak) triple, with per-kind predicates merged onto it.
type featureEdgeKey struct {
	from, to int
	weak     bool
}

// featureGraphBuilder accumulates nodes and edges for one feature graph.
type featureGraphBuilder struct {
	fg     *FeatureGraph
	edgeIx map[featureEdgeKey]int
}

// buildFeatureGraph derives the feature-level graph from the package graph.
// Dangling feature references become warnings rather than errors.
func buildFeatureGraph(g *Graph) *FeatureGraph {
	fg := &FeatureGraph{
		g:      g,
		nodeIx: map[featureNodeInner]int{},
		base:   make([]int, len(g.packages)),
	}
	b := &featureGraphBuilder{fg: fg, edgeIx: map[featureEdgeKey]int{}}

	for pkgIx := range g.packages {
		fg.base[pkgIx] = b.addNode(featureNodeInner{pkg: pkgIx, feature: -1})
		for fIx := range g.packages[pkgIx].features {
			b.addNode(featureNodeInner{pkg: pkgIx, feature: fIx})
		}
	}

	for pkgIx := range g.packages {
		b.addPackageEdges(pkgIx)
	}

	from := make([]int, len(fg.edges))
	to := make([]int, len(fg.edges))
	for i := range fg.edges {
		from[i] = fg.edges[i].from
		to[i] = fg.edges[i].to
	}
	fg.adj = newAdjacency(len(fg.nodes), from, to)
	return fg
}

func (b *featureGraphBuilder) addNode(n featureNodeInner) int {
	ix := len(b.fg.nodes)
	b.fg.nodes = append(b.fg.nodes, n)
	b.fg.nodeIx[n] = ix
	return ix
}

func (b *featureGraphBuilder) node(pkg, feature int) int {
	return b.fg.nodeIx[featureNodeInner{pkg: pkg, feature: feature}]
}

// addPlain inserts an intra-package edge if no edge exists for the pair.
func (b *featureGraphBuilder) addPlain(from, to int, kind FeatureEdgeKind) {
	key := featureEdgeKey{from: from, to: to}
	if _, ok := b.edgeIx[key]; ok {
		return
	}
	b.edgeIx[key] = len(b.fg.edges)
	b.fg.edges = append(b.fg.edges, featureEdgeInner{from: from, to: to, kind: kind, link: -1})
}

// addCross inserts or extends a cross-package edge, recording the platform
// predicate of the declaration that produced it under the dependency kind.
func (b *featureGraphBuilder) addCross(from, to, link int, weak bool, kind DependencyKind, pred string) {
	key := featureEdgeKey{from: from, to: to, weak: weak}
	ix, ok := b.edgeIx[key]
	if !ok {
		ix = len(b.fg.edges)
		b.edgeIx[key] = ix
		b.fg.edges = append(b.fg.edges, featureEdgeInner{
			from: from, to: to, kind: FeatureEdgeCross, link: link, weak: weak,
		})
	}
	e := &b.fg.edges[ix]
	switch kind {
	case DependencyNormal:
		e.normal = appendPred(e.normal, pred)
	case DependencyBuild:
		e.build = appendPred(e.build, pred)
	default:
		e.dev = appendPred(e.dev, pred)
	}
}

func appendPred(preds []string, pred string) []string {
	for _, p := range preds {
		if p == pred {
			return preds
		}
	}
	return append(preds, pred)
}

func (b *featureGraphBuilder) warn(pkgIx int, feature, missing string) {
	b.fg.warnings = append(b.fg.warnings, FeatureWarning{
		PackageID: b.fg.g.packages[pkgIx].id,
		Feature:   feature,
		Missing:   missing,
	})
}

// addPackageEdges emits every feature edge originating in one package:
// feature-to-base edges, named-feature requirement edges, and the cross
// edges dependency declarations induce.
func (b *featureGraphBuilder) addPackageEdges(pkgIx int) {
	g := b.fg.g
	pkg := &g.packages[pkgIx]
	base := b.fg.base[pkgIx]

	// Links leaving this package, addressable by gate name.
	linkByGate := map[string]int{}
	for _, e := range g.adj.out[pkgIx] {
		linkByGate[g.links[e].depName] = e
	}

	// Activating any feature activates the package.
	for fIx := range pkg.features {
		b.addPlain(b.node(pkgIx, fIx), base, FeatureEdgeToBase)
	}

	// Named feature requirement lists.
	for fIx := range pkg.features {
		decl := &pkg.features[fIx]
		if decl.optional {
			continue
		}
		from := b.node(pkgIx, fIx)
		for _, req := range decl.requires {
			b.addRequirement(pkgIx, from, decl.name, req, linkByGate)
		}
	}

	// Dependency declarations: required deps hang off the base node,
	// optional deps off their gate feature.
	for _, e := range g.adj.out[pkgIx] {
		l := &g.links[e]
		for _, kind := range []DependencyKind{DependencyNormal, DependencyBuild, DependencyDev} {
			for _, inst := range l.status(kind).instances {
				from := base
				if inst.optional {
					gateIx, ok := pkg.featureIx[l.depName]
					if !ok {
						continue // validated during construction
					}
					from = b.node(pkgIx, gateIx)
				}
				b.addDependencyEdges(pkgIx, from, e, kind, inst)
			}
		}
	}
}

// addRequirement translates one entry of a named feature's requirement
// list. The grammar: "feat" activates a sibling feature, "dep:name"
// activates an optional dependency without its implicit feature semantics,
// "dep/feat" activates a dependency feature (and the dependency), and
// "dep?/feat" is the weak form that activates the feature only if the
// dependency is active through some other path.
func (b *featureGraphBuilder) addRequirement(pkgIx, from int, declName, req string, linkByGate map[string]int) {
	g := b.fg.g
	pkg := &g.packages[pkgIx]

	if name, ok := strings.CutPrefix(req, "dep:"); ok {
		gateIx, ok := pkg.featureIx[name]
		if !ok {
			b.warn(pkgIx, declName, req)
			return
		}
		b.addPlain(from, b.node(pkgIx, gateIx), FeatureEdgeRequires)
		return
	}

	depPart, featPart, isCross := strings.Cut(req, "/")
	if !isCross {
		fIx, ok := pkg.featureIx[req]
		if !ok {
			b.warn(pkgIx, declName, req)
			return
		}
		b.addPlain(from, b.node(pkgIx, fIx), FeatureEdgeRequires)
		return
	}

	weak := strings.HasSuffix(depPart, "?")
	depName := strings.TrimSuffix(depPart, "?")
	linkEdge, ok := linkByGate[depName]
	if !ok {
		b.warn(pkgIx, declName, req)
		return
	}
	l := &g.links[linkEdge]

	// The strong form also turns the dependency on through its gate.
	if !weak {
		if gateIx, ok := pkg.featureIx[depName]; ok {
			b.addPlain(from, b.node(pkgIx, gateIx), FeatureEdgeRequires)
		}
	}

	toPkg := &g.packages[l.to]
	fIx, ok := toPkg.featureIx[featPart]
	if !ok {
		b.warn(pkgIx, declName, req)
		return
	}
	to := b.node(l.to, fIx)
	for _, kind := range []DependencyKind{DependencyNormal, DependencyBuild, DependencyDev} {
		for _, inst := range l.status(kind).instances {
			b.addCross(from, to, linkEdge, weak, kind, inst.predicate)
		}
	}
}

// addDependencyEdges emits the cross edges one declaration instance
// induces: the dependency's base, its default feature when requested, and
// each explicitly listed feature.
func (b *featureGraphBuilder) addDependencyEdges(pkgIx, from, linkEdge int, kind DependencyKind, inst depInstance) {
	g := b.fg.g
	l := &g.links[linkEdge]
	toPkg := &g.packages[l.to]
	toBase := b.fg.base[l.to]

	b.addCross(from, toBase, linkEdge, false, kind, inst.predicate)

	if inst.defaultFeatures {
		if dIx, ok := toPkg.featureIx["default"]; ok {
			b.addCross(from, b.node(l.to, dIx), linkEdge, false, kind, inst.predicate)
		}
	}
	for _, f := range inst.features {
		fIx, ok := toPkg.featureIx[f]
		if !ok {
			b.warn(pkgIx, "", l.depName+"/"+f)
			continue
		}
		b.addCross(from, b.node(l.to, fIx), linkEdge, false, kind, inst.predicate)
	}
}
