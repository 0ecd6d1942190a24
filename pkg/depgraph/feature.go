package depgraph

import (
	"fmt"
	"sync"

	"github.com/cargograph/cargograph/pkg/errors"
	"github.com/cargograph/cargograph/pkg/platform"
)

// FeatureGraph is the feature-level view of a package graph: one base node
// per package plus one node per feature, with edges mirroring dependency
// edges at feature granularity. It is derived lazily from the package graph
// on first use and shared for the package graph's lifetime.
type FeatureGraph struct {
	g        *Graph
	nodes    []featureNodeInner
	nodeIx   map[featureNodeInner]int
	base     []int // package ix -> base node ix
	edges    []featureEdgeInner
	adj      *adjacency
	warnings []FeatureWarning

	sccOnce sync.Once
	scc     *sccIndex
}

// featureNodeInner identifies a feature node: a package index and the index
// of the feature in the package's namespace, or -1 for the base node.
type featureNodeInner struct {
	pkg     int
	feature int
}

// FeatureEdgeKind classifies feature-graph edges.
type FeatureEdgeKind int

const (
	// FeatureEdgeToBase connects a feature to its own package's base:
	// activating any feature activates the package.
	FeatureEdgeToBase FeatureEdgeKind = iota
	// FeatureEdgeRequires connects a named feature to another feature of
	// the same package that it lists as a requirement.
	FeatureEdgeRequires
	// FeatureEdgeCross connects nodes of different packages along a
	// dependency link.
	FeatureEdgeCross
)

// String implements fmt.Stringer.
func (k FeatureEdgeKind) String() string {
	switch k {
	case FeatureEdgeToBase:
		return "to-base"
	case FeatureEdgeRequires:
		return "requires"
	default:
		return "cross"
	}
}

// featureEdgeInner stores one feature edge. Cross edges carry, per
// dependency kind, the platform predicates of the declarations that
// produced them; a nil slice means the kind does not carry the edge.
type featureEdgeInner struct {
	from, to int
	kind     FeatureEdgeKind
	link     int // package link for cross edges, -1 otherwise
	weak     bool
	normal   []string
	build    []string
	dev      []string
}

func (e *featureEdgeInner) preds(kind DependencyKind) []string {
	switch kind {
	case DependencyNormal:
		return e.normal
	case DependencyBuild:
		return e.build
	default:
		return e.dev
	}
}

// devOnlyCross reports whether a cross edge exists only through dev
// declarations.
func (e *featureEdgeInner) devOnlyCross() bool {
	return e.kind == FeatureEdgeCross && e.normal == nil && e.build == nil && e.dev != nil
}

// FeatureWarning records a feature declaration that references something
// the graph does not know. Unknown references are warnings, not errors:
// registries contain packages whose feature lists drifted across versions.
type FeatureWarning struct {
	PackageID string // package whose declaration is dangling
	Feature   string // declaring feature, "" when from a dependency record
	Missing   string // the unresolved reference
}

// FeatureID names a feature node: a package id and a feature name, with ""
// meaning the package's base.
type FeatureID struct {
	PackageID string
	Feature   string
}

// String implements fmt.Stringer.
func (id FeatureID) String() string {
	if id.Feature == "" {
		return fmt.Sprintf("%s/[base]", id.PackageID)
	}
	return fmt.Sprintf("%s/%s", id.PackageID, id.Feature)
}

// FeatureGraph returns the feature-level view of the graph, building it on
// first use.
func (g *Graph) FeatureGraph() *FeatureGraph {
	g.featOnce.Do(func() {
		g.feat = buildFeatureGraph(g)
	})
	return g.feat
}

// PackageGraph returns the package graph this feature graph was derived
// from.
func (fg *FeatureGraph) PackageGraph() *Graph { return fg.g }

// NodeCount returns the number of feature nodes.
func (fg *FeatureGraph) NodeCount() int { return len(fg.nodes) }

// EdgeCount returns the number of feature edges.
func (fg *FeatureGraph) EdgeCount() int { return len(fg.edges) }

// Warnings returns the dangling references found while deriving the graph.
func (fg *FeatureGraph) Warnings() []FeatureWarning {
	out := make([]FeatureWarning, len(fg.warnings))
	copy(out, fg.warnings)
	return out
}

// Node looks up a feature node. An unknown package id fails with
// UNKNOWN_PACKAGE_ID, an unknown feature name with UNKNOWN_FEATURE.
func (fg *FeatureGraph) Node(id FeatureID) (FeatureNode, error) {
	pkgIx, ok := fg.g.byID[id.PackageID]
	if !ok {
		return FeatureNode{}, errors.New(errors.ErrCodeUnknownID, "unknown package id %q", id.PackageID)
	}
	if id.Feature == "" {
		return FeatureNode{fg: fg, ix: fg.base[pkgIx]}, nil
	}
	fIx, ok := fg.g.packages[pkgIx].featureIx[id.Feature]
	if !ok {
		return FeatureNode{}, errors.New(errors.ErrCodeUnknownFeature,
			"unknown feature %q of package %q", id.Feature, id.PackageID)
	}
	return FeatureNode{fg: fg, ix: fg.nodeIx[featureNodeInner{pkg: pkgIx, feature: fIx}]}, nil
}

// OutEdges returns the edges leaving n.
func (fg *FeatureGraph) OutEdges(n FeatureNode) []FeatureEdge {
	edges := fg.adj.out[n.ix]
	out := make([]FeatureEdge, len(edges))
	for i, e := range edges {
		out[i] = FeatureEdge{fg: fg, ix: e}
	}
	return out
}

// sccIndex lazily computes the feature-level SCC decomposition. Cyclic
// components are internally ordered ignoring dev-only cross edges.
func (fg *FeatureGraph) sccIndex() *sccIndex {
	fg.sccOnce.Do(func() {
		fg.scc = computeSCCs(fg.adj, func(e int) bool {
			return !fg.edges[e].devOnlyCross()
		})
	})
	return fg.scc
}

// FeatureNode is a lightweight handle to one node of a FeatureGraph.
type FeatureNode struct {
	fg *FeatureGraph
	ix int
}

func (n FeatureNode) inner() featureNodeInner { return n.fg.nodes[n.ix] }

// Package returns the package the node belongs to.
func (n FeatureNode) Package() PackageMetadata {
	return PackageMetadata{g: n.fg.g, ix: n.inner().pkg}
}

// IsBase reports whether the node is a package base node.
func (n FeatureNode) IsBase() bool { return n.inner().feature < 0 }

// Label returns the feature name, or "[base]" for a base node.
func (n FeatureNode) Label() string {
	inner := n.inner()
	if inner.feature < 0 {
		return "[base]"
	}
	return n.fg.g.packages[inner.pkg].features[inner.feature].name
}

// ID returns the node's FeatureID.
func (n FeatureNode) ID() FeatureID {
	inner := n.inner()
	id := FeatureID{PackageID: n.fg.g.packages[inner.pkg].id}
	if inner.feature >= 0 {
		id.Feature = n.fg.g.packages[inner.pkg].features[inner.feature].name
	}
	return id
}

// Base returns the base node of the same package.
func (n FeatureNode) Base() FeatureNode {
	return FeatureNode{fg: n.fg, ix: n.fg.base[n.inner().pkg]}
}

// FeatureEdge is a lightweight handle to one edge of a FeatureGraph.
type FeatureEdge struct {
	fg *FeatureGraph
	ix int
}

func (e FeatureEdge) inner() *featureEdgeInner { return &e.fg.edges[e.ix] }

// From returns the edge source.
func (e FeatureEdge) From() FeatureNode { return FeatureNode{fg: e.fg, ix: e.inner().from} }

// To returns the edge target.
func (e FeatureEdge) To() FeatureNode { return FeatureNode{fg: e.fg, ix: e.inner().to} }

// Kind returns the edge kind.
func (e FeatureEdge) Kind() FeatureEdgeKind { return e.inner().kind }

// Weak reports whether the edge is weak: activating the source does not by
// itself turn on the target package's base.
func (e FeatureEdge) Weak() bool { return e.inner().weak }

// Link returns the package link a cross edge follows.
func (e FeatureEdge) Link() (PackageLink, bool) {
	if e.inner().link < 0 {
		return PackageLink{}, false
	}
	return PackageLink{g: e.fg.g, ix: e.inner().link}, true
}

// PresentFor reports whether the edge is carried by the given dependency
// kind. Intra-package edges are carried unconditionally.
func (e FeatureEdge) PresentFor(kind DependencyKind) bool {
	inner := e.inner()
	if inner.kind != FeatureEdgeCross {
		return true
	}
	return inner.preds(kind) != nil
}

// EnabledOn reports whether the edge applies for the given dependency kind
// on the given platform. Intra-package edges always apply. An empty
// platform matches every present declaration; declarations without a
// predicate apply everywhere. Predicate evaluation is delegated to eval and
// its errors are propagated.
func (e FeatureEdge) EnabledOn(kind DependencyKind, plat string, eval platform.Evaluator) (bool, error) {
	inner := e.inner()
	if inner.kind != FeatureEdgeCross {
		return true, nil
	}
	preds := inner.preds(kind)
	if preds == nil {
		return false, nil
	}
	if plat == "" {
		return true, nil
	}
	for _, pred := range preds {
		if pred == "" {
			return true, nil
		}
		ok, err := eval.Eval(pred, plat)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
