package depgraph

import (
	"github.com/cargograph/cargograph/pkg/errors"
)

// LinkFilter restricts which links a traversal follows. Any value with a
// single Keep method conforms; LinkFilterFunc adapts plain functions.
type LinkFilter interface {
	Keep(l PackageLink) bool
}

// LinkFilterFunc adapts a function to the LinkFilter interface.
type LinkFilterFunc func(l PackageLink) bool

// Keep implements LinkFilter.
func (f LinkFilterFunc) Keep(l PackageLink) bool { return f(l) }

// PackageQuery is a selection over the package graph: a direction plus a
// set of root packages. Resolving it computes the reachable set.
type PackageQuery struct {
	g     *Graph
	dir   Direction
	roots []int
}

// QueryForward selects the given packages and everything they depend on.
// An unknown id fails with UNKNOWN_PACKAGE_ID naming it. An empty id list
// is a valid query producing an empty set.
func (g *Graph) QueryForward(ids ...string) (*PackageQuery, error) {
	return g.query(Forward, ids)
}

// QueryReverse selects the given packages and everything that depends on
// them.
func (g *Graph) QueryReverse(ids ...string) (*PackageQuery, error) {
	return g.query(Reverse, ids)
}

// QueryDirected selects ids in an explicit direction.
func (g *Graph) QueryDirected(dir Direction, ids ...string) (*PackageQuery, error) {
	return g.query(dir, ids)
}

// QueryWorkspace selects all workspace members in the given direction.
func (g *Graph) QueryWorkspace(dir Direction) *PackageQuery {
	roots := make([]int, len(g.workspace.member))
	copy(roots, g.workspace.member)
	return &PackageQuery{g: g, dir: dir, roots: roots}
}

func (g *Graph) query(dir Direction, ids []string) (*PackageQuery, error) {
	roots := make([]int, 0, len(ids))
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		ix, ok := g.byID[id]
		if !ok {
			return nil, errors.New(errors.ErrCodeUnknownID, "unknown package id %q", id)
		}
		if !seen[ix] {
			seen[ix] = true
			roots = append(roots, ix)
		}
	}
	return &PackageQuery{g: g, dir: dir, roots: roots}, nil
}

// Direction returns the query direction.
func (q *PackageQuery) Direction() Direction { return q.dir }

// Roots returns the root packages of the query.
func (q *PackageQuery) Roots() []PackageMetadata {
	out := make([]PackageMetadata, len(q.roots))
	for i, ix := range q.roots {
		out[i] = PackageMetadata{g: q.g, ix: ix}
	}
	return out
}

// Resolve computes the full reachable set for the query.
func (q *PackageQuery) Resolve() (*PackageSet, error) {
	return q.ResolveWith(nil)
}

// ResolveWith computes the reachable set following only links accepted by
// filter. A nil filter follows every link. The filtered set is always a
// subset of the unfiltered one.
func (q *PackageQuery) ResolveWith(filter LinkFilter) (*PackageSet, error) {
	var keep func(edge int) (bool, error)
	if filter != nil {
		keep = func(edge int) (bool, error) {
			return filter.Keep(PackageLink{g: q.g, ix: edge}), nil
		}
	}
	included, err := q.g.adj.reachable(q.dir, q.roots, keep)
	if err != nil {
		return nil, err
	}
	return &PackageSet{g: q.g, dir: q.dir, included: included}, nil
}
