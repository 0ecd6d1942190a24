package depgraph

import (
	"github.com/cargograph/cargograph/pkg/errors"
)

// PackageSet is the result of resolving a query: the graph reference, the
// reachable bitset, and the direction the set was computed in. Sets are
// frozen snapshots; they stay meaningful after RetainEdges only as views of
// the prior edge set.
type PackageSet struct {
	g        *Graph
	dir      Direction
	included bitSet
}

// Len returns the number of packages in the set.
func (s *PackageSet) Len() int { return s.included.count() }

// Direction returns the direction the set was resolved in.
func (s *PackageSet) Direction() Direction { return s.dir }

// Contains reports whether the package with the given id is in the set.
// An unknown id fails with UNKNOWN_PACKAGE_ID.
func (s *PackageSet) Contains(id string) (bool, error) {
	ix, ok := s.g.byID[id]
	if !ok {
		return false, errors.New(errors.ErrCodeUnknownID, "unknown package id %q", id)
	}
	return s.included.has(ix), nil
}

// Packages returns the members in topological order for the set's
// direction: Forward yields edge sources before edge targets (queried roots
// first, leaf dependencies last); Reverse yields the exact inverse. Members
// of a cyclic component appear in the component's dev-aware order. The
// order is derived from the graph-wide SCC order, not sorted per call.
func (s *PackageSet) Packages() []PackageMetadata {
	order := s.g.sccIndex().order
	out := make([]PackageMetadata, 0, s.Len())
	if s.dir == Forward {
		for _, ix := range order {
			if s.included.has(ix) {
				out = append(out, PackageMetadata{g: s.g, ix: ix})
			}
		}
	} else {
		for i := len(order) - 1; i >= 0; i-- {
			if s.included.has(order[i]) {
				out = append(out, PackageMetadata{g: s.g, ix: order[i]})
			}
		}
	}
	return out
}

// PackageIDs returns the member ids in the same order as Packages.
func (s *PackageSet) PackageIDs() []string {
	pkgs := s.Packages()
	out := make([]string, len(pkgs))
	for i, p := range pkgs {
		out[i] = p.ID()
	}
	return out
}

// Links returns every link whose two endpoints are both in the set, ordered
// by the set's package order on the source endpoint.
func (s *PackageSet) Links() []PackageLink {
	var out []PackageLink
	for _, p := range s.Packages() {
		for _, e := range s.g.adj.out[p.ix] {
			if s.included.has(s.g.links[e].to) {
				out = append(out, PackageLink{g: s.g, ix: e})
			}
		}
	}
	return out
}

// Union returns a set containing packages in either s or o. Both sets must
// come from the same graph; the result keeps s's direction.
func (s *PackageSet) Union(o *PackageSet) (*PackageSet, error) {
	if err := s.sameGraph(o); err != nil {
		return nil, err
	}
	return &PackageSet{g: s.g, dir: s.dir, included: s.included.union(o.included)}, nil
}

// Intersect returns a set containing packages in both s and o.
func (s *PackageSet) Intersect(o *PackageSet) (*PackageSet, error) {
	if err := s.sameGraph(o); err != nil {
		return nil, err
	}
	return &PackageSet{g: s.g, dir: s.dir, included: s.included.intersect(o.included)}, nil
}

// Difference returns a set containing packages in s but not in o.
func (s *PackageSet) Difference(o *PackageSet) (*PackageSet, error) {
	if err := s.sameGraph(o); err != nil {
		return nil, err
	}
	return &PackageSet{g: s.g, dir: s.dir, included: s.included.difference(o.included)}, nil
}

func (s *PackageSet) sameGraph(o *PackageSet) error {
	if s.g != o.g {
		return errors.New(errors.ErrCodeGraphMismatch, "package sets come from different graphs")
	}
	return nil
}
