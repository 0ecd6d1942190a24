package depgraph

import (
	"github.com/cargograph/cargograph/pkg/errors"
)

// Cycles is a view over the cyclic components of a graph.
type Cycles struct {
	g *Graph
}

// Cycles returns the cycle view of the graph.
func (g *Graph) Cycles() *Cycles { return &Cycles{g: g} }

// IsCyclic reports whether a and b sit on a common cycle: they belong to
// the same strongly connected component and that component is cyclic.
// The relation is symmetric and transitive within a component.
func (c *Cycles) IsCyclic(a, b string) (bool, error) {
	aIx, ok := c.g.byID[a]
	if !ok {
		return false, errors.New(errors.ErrCodeUnknownID, "unknown package id %q", a)
	}
	bIx, ok := c.g.byID[b]
	if !ok {
		return false, errors.New(errors.ErrCodeUnknownID, "unknown package id %q", b)
	}
	scc := c.g.sccIndex()
	return scc.sameComponent(aIx, bIx) && scc.isCyclic(aIx), nil
}

// All returns every cyclic component in topological order. Each cycle's
// members appear in the component's dev-aware order: when two members reach
// each other only through dev-only edges, the non-dev side comes first.
func (c *Cycles) All() [][]PackageMetadata {
	scc := c.g.sccIndex()
	var out [][]PackageMetadata
	for id, members := range scc.components {
		if !scc.cyclic[id] {
			continue
		}
		cycle := make([]PackageMetadata, len(members))
		for i, ix := range members {
			cycle[i] = PackageMetadata{g: c.g, ix: ix}
		}
		out = append(out, cycle)
	}
	return out
}
