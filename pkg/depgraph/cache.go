package depgraph

import (
	"github.com/cargograph/cargograph/pkg/errors"
)

// DependsCache memoizes forward reachability per source package. The first
// DependsOn call for a given source computes and stores its full reachable
// bitset; later calls for the same source are O(1) membership tests.
//
// Entries grow unboundedly and are never invalidated automatically: after
// RetainEdges on the underlying graph the cache must be discarded and a new
// one created. The cache is not safe for concurrent use.
type DependsCache struct {
	g     *Graph
	reach map[int]bitSet
}

// NewDependsCache creates an empty cache over g.
func NewDependsCache(g *Graph) *DependsCache {
	return &DependsCache{g: g, reach: map[int]bitSet{}}
}

// DependsOn reports whether package a transitively depends on package b
// (a reaches b following dependency edges; a depends on itself). Unknown
// ids fail with UNKNOWN_PACKAGE_ID.
func (c *DependsCache) DependsOn(a, b string) (bool, error) {
	aIx, ok := c.g.byID[a]
	if !ok {
		return false, errors.New(errors.ErrCodeUnknownID, "unknown package id %q", a)
	}
	bIx, ok := c.g.byID[b]
	if !ok {
		return false, errors.New(errors.ErrCodeUnknownID, "unknown package id %q", b)
	}

	reach, ok := c.reach[aIx]
	if !ok {
		var err error
		reach, err = c.g.adj.reachable(Forward, []int{aIx}, nil)
		if err != nil {
			return false, err
		}
		c.reach[aIx] = reach
	}
	return reach.has(bIx), nil
}

// DependsOn answers a single uncached reachability query. Prefer a
// DependsCache when asking repeatedly about the same source package.
func (g *Graph) DependsOn(a, b string) (bool, error) {
	return NewDependsCache(g).DependsOn(a, b)
}
