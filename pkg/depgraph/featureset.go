package depgraph

import (
	"github.com/cargograph/cargograph/pkg/errors"
)

// FeatureFilter restricts which feature edges a traversal follows. Keep may
// fail, typically when predicate evaluation does; the error aborts the
// resolve.
type FeatureFilter interface {
	Keep(e FeatureEdge) (bool, error)
}

// FeatureFilterFunc adapts a function to the FeatureFilter interface.
type FeatureFilterFunc func(e FeatureEdge) (bool, error)

// Keep implements FeatureFilter.
func (f FeatureFilterFunc) Keep(e FeatureEdge) (bool, error) { return f(e) }

// FeatureQuery is a selection over the feature graph: a direction plus root
// feature nodes.
type FeatureQuery struct {
	fg    *FeatureGraph
	dir   Direction
	roots []int
}

// QueryForward selects the given feature nodes and everything they
// activate. Unknown ids fail with UNKNOWN_PACKAGE_ID or UNKNOWN_FEATURE.
func (fg *FeatureGraph) QueryForward(ids ...FeatureID) (*FeatureQuery, error) {
	return fg.query(Forward, ids)
}

// QueryReverse selects the given feature nodes and everything that
// activates them.
func (fg *FeatureGraph) QueryReverse(ids ...FeatureID) (*FeatureQuery, error) {
	return fg.query(Reverse, ids)
}

func (fg *FeatureGraph) query(dir Direction, ids []FeatureID) (*FeatureQuery, error) {
	roots := make([]int, 0, len(ids))
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		n, err := fg.Node(id)
		if err != nil {
			return nil, err
		}
		if !seen[n.ix] {
			seen[n.ix] = true
			roots = append(roots, n.ix)
		}
	}
	return &FeatureQuery{fg: fg, dir: dir, roots: roots}, nil
}

// Direction returns the query direction.
func (q *FeatureQuery) Direction() Direction { return q.dir }

// Resolve computes the full reachable feature set for the query.
func (q *FeatureQuery) Resolve() (*FeatureSet, error) {
	return q.ResolveWith(nil)
}

// ResolveWith computes the reachable set following only edges accepted by
// filter. A nil filter follows every edge, weak ones included.
func (q *FeatureQuery) ResolveWith(filter FeatureFilter) (*FeatureSet, error) {
	var keep func(edge int) (bool, error)
	if filter != nil {
		keep = func(edge int) (bool, error) {
			return filter.Keep(FeatureEdge{fg: q.fg, ix: edge})
		}
	}
	included, err := q.fg.adj.reachable(q.dir, q.roots, keep)
	if err != nil {
		return nil, err
	}
	return &FeatureSet{fg: q.fg, dir: q.dir, included: included}, nil
}

// FeatureSet is a frozen set of feature nodes with a direction for ordered
// iteration.
type FeatureSet struct {
	fg       *FeatureGraph
	dir      Direction
	included bitSet
}

// NewSet builds a set from explicit nodes, iterated in Forward order. All
// nodes must come from this feature graph.
func (fg *FeatureGraph) NewSet(nodes []FeatureNode) (*FeatureSet, error) {
	included := newBitSet(len(fg.nodes))
	for _, n := range nodes {
		if n.fg != fg {
			return nil, errors.New(errors.ErrCodeGraphMismatch, "feature node comes from a different graph")
		}
		included.set(n.ix)
	}
	return &FeatureSet{fg: fg, dir: Forward, included: included}, nil
}

// Len returns the number of feature nodes in the set.
func (s *FeatureSet) Len() int { return s.included.count() }

// Direction returns the direction the set iterates in.
func (s *FeatureSet) Direction() Direction { return s.dir }

// Contains reports whether the feature node with the given id is in the
// set. Unknown ids fail with UNKNOWN_PACKAGE_ID or UNKNOWN_FEATURE.
func (s *FeatureSet) Contains(id FeatureID) (bool, error) {
	n, err := s.fg.Node(id)
	if err != nil {
		return false, err
	}
	return s.included.has(n.ix), nil
}

// Nodes returns the members in topological order for the set's direction,
// derived from the graph-wide feature SCC order.
func (s *FeatureSet) Nodes() []FeatureNode {
	order := s.fg.sccIndex().order
	out := make([]FeatureNode, 0, s.Len())
	if s.dir == Forward {
		for _, ix := range order {
			if s.included.has(ix) {
				out = append(out, FeatureNode{fg: s.fg, ix: ix})
			}
		}
	} else {
		for i := len(order) - 1; i >= 0; i-- {
			if s.included.has(order[i]) {
				out = append(out, FeatureNode{fg: s.fg, ix: order[i]})
			}
		}
	}
	return out
}

// FeaturesFor returns the active feature names of the package with the
// given id, sorted. The second return is false only when the id is unknown
// to the graph; a known package with nothing active yields an empty list.
func (s *FeatureSet) FeaturesFor(packageID string) ([]string, bool) {
	pkgIx, ok := s.fg.g.byID[packageID]
	if !ok {
		return nil, false
	}
	var out []string
	for fIx, decl := range s.fg.g.packages[pkgIx].features {
		nodeIx := s.fg.nodeIx[featureNodeInner{pkg: pkgIx, feature: fIx}]
		if s.included.has(nodeIx) {
			out = append(out, decl.name)
		}
	}
	return out, true
}

// ContainsPackage reports whether the package's base node is active.
func (s *FeatureSet) ContainsPackage(packageID string) (bool, error) {
	pkgIx, ok := s.fg.g.byID[packageID]
	if !ok {
		return false, errors.New(errors.ErrCodeUnknownID, "unknown package id %q", packageID)
	}
	return s.included.has(s.fg.base[pkgIx]), nil
}

// Packages returns the packages whose base node is active, in package
// order.
func (s *FeatureSet) Packages() []PackageMetadata {
	var out []PackageMetadata
	for pkgIx := range s.fg.g.packages {
		if s.included.has(s.fg.base[pkgIx]) {
			out = append(out, PackageMetadata{g: s.fg.g, ix: pkgIx})
		}
	}
	return out
}

// Union returns a set containing nodes in either s or o. Both sets must
// come from the same feature graph; the result keeps s's direction.
func (s *FeatureSet) Union(o *FeatureSet) (*FeatureSet, error) {
	if err := s.sameGraph(o); err != nil {
		return nil, err
	}
	return &FeatureSet{fg: s.fg, dir: s.dir, included: s.included.union(o.included)}, nil
}

// Intersect returns a set containing nodes in both s and o.
func (s *FeatureSet) Intersect(o *FeatureSet) (*FeatureSet, error) {
	if err := s.sameGraph(o); err != nil {
		return nil, err
	}
	return &FeatureSet{fg: s.fg, dir: s.dir, included: s.included.intersect(o.included)}, nil
}

// Difference returns a set containing nodes in s but not in o.
func (s *FeatureSet) Difference(o *FeatureSet) (*FeatureSet, error) {
	if err := s.sameGraph(o); err != nil {
		return nil, err
	}
	return &FeatureSet{fg: s.fg, dir: s.dir, included: s.included.difference(o.included)}, nil
}

func (s *FeatureSet) sameGraph(o *FeatureSet) error {
	if s.fg != o.fg {
		return errors.New(errors.ErrCodeGraphMismatch, "feature sets come from different graphs")
	}
	return nil
}
