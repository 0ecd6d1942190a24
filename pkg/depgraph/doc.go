// Package depgraph builds and queries in-memory dependency graphs.
//
// A [Graph] is constructed once from a metadata document via [Build], which
// joins declared dependency records with the resolver's edges and validates
// structural invariants. The graph is immutable afterwards except for
// [Graph.RetainEdges], which drops edges in place and rebuilds the derived
// indexes.
//
// # Queries
//
// Traversals start from a [PackageQuery]: a direction plus root packages.
// Resolving a query produces a [PackageSet], a frozen bitset of reachable
// packages supporting ordered iteration, set algebra, and DOT rendering.
// Edge filters plug in through the single-method [LinkFilter] capability.
//
//	q, err := g.QueryForward(id)
//	set, err := q.ResolveWith(depgraph.LinkFilterFunc(func(l depgraph.PackageLink) bool {
//	    return !l.DevOnly()
//	}))
//
// # Cycles and ordering
//
// Strongly connected components are computed once per graph snapshot.
// Iteration order is the component topological order: Forward yields edge
// sources before edge targets, Reverse the inverse. Members of a cyclic
// component are ordered ignoring dev-only edges, which keeps the order
// usable as a build order even through dev-induced cycles.
//
// # Feature graph
//
// [Graph.FeatureGraph] derives the feature-level view lazily: one base node
// per package plus one node per feature, with dependency edges mirrored at
// feature granularity and weak edges marked. The cargo subpackage drives
// this view to emulate the build tool's feature activation.
package depgraph
