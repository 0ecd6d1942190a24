package depgraph

import (
	"sort"

	"github.com/cargograph/cargograph/pkg/errors"
)

// adjacency is the arena view shared by the package graph and the feature
// graph: nodes are dense indices, edges are (from, to) index pairs with
// per-node incidence lists.
type adjacency struct {
	n    int
	from []int
	to   []int
	out  [][]int // edge indices with from == node
	in   [][]int // edge indices with to == node
}

func newAdjacency(n int, from, to []int) *adjacency {
	a := &adjacency{
		n:    n,
		from: from,
		to:   to,
		out:  make([][]int, n),
		in:   make([][]int, n),
	}
	for e := range from {
		a.out[from[e]] = append(a.out[from[e]], e)
		a.in[to[e]] = append(a.in[to[e]], e)
	}
	// Deterministic neighbor order regardless of edge insertion order.
	for v := 0; v < n; v++ {
		out, in := a.out[v], a.in[v]
		sort.Slice(out, func(i, j int) bool {
			if to[out[i]] != to[out[j]] {
				return to[out[i]] < to[out[j]]
			}
			return out[i] < out[j]
		})
		sort.Slice(in, func(i, j int) bool {
			if from[in[i]] != from[in[j]] {
				return from[in[i]] < from[in[j]]
			}
			return in[i] < in[j]
		})
	}
	return a
}

// edgesFrom returns the edges leaving node when walking in dir.
func (a *adjacency) edgesFrom(dir Direction, node int) []int {
	if dir == Forward {
		return a.out[node]
	}
	return a.in[node]
}

// head returns the node entered by following edge e in dir.
func (a *adjacency) head(dir Direction, e int) int {
	if dir == Forward {
		return a.to[e]
	}
	return a.from[e]
}

// reachable computes the set of nodes reachable from roots in dir via a
// depth-first search that tracks discovered and finished marks separately.
// Back-edges into discovered-but-unfinished nodes terminate without looping.
// keep, when non-nil, prunes edges before they are followed; it may fail,
// which aborts the traversal. At completion the discovered and finished sets
// must be equal; a mismatch reports an internal invariant violation.
func (a *adjacency) reachable(dir Direction, roots []int, keep func(edge int) (bool, error)) (bitSet, error) {
	discovered := newBitSet(a.n)
	finished := newBitSet(a.n)

	type frame struct {
		node int
		next int
	}
	var stack []frame

	for _, root := range roots {
		if discovered.has(root) {
			continue
		}
		discovered.set(root)
		stack = append(stack, frame{node: root})

		for len(stack) > 0 {
			f := &stack[len(stack)-1]
			edges := a.edgesFrom(dir, f.node)
			pushed := false
			for f.next < len(edges) {
				e := edges[f.next]
				f.next++
				if keep != nil {
					ok, err := keep(e)
					if err != nil {
						return bitSet{}, err
					}
					if !ok {
						continue
					}
				}
				next := a.head(dir, e)
				if !discovered.has(next) {
					discovered.set(next)
					stack = append(stack, frame{node: next})
					pushed = true
					break
				}
			}
			if !pushed && f.next >= len(edges) {
				finished.set(f.node)
				stack = stack[:len(stack)-1]
			}
		}
	}

	if !discovered.equals(finished) {
		return bitSet{}, errors.New(errors.ErrCodeInternal,
			"traversal invariant violated: %d discovered, %d finished", discovered.count(), finished.count())
	}
	return discovered, nil
}

// sccIndex is the strongly-connected-component decomposition of an
// adjacency, with components in topological order: a component producing an
// edge into another always precedes it, so forward iteration yields edge
// sources before edge targets.
type sccIndex struct {
	comp       []int   // node -> component id
	components [][]int // component id -> ordered members
	order      []int   // all nodes, components flattened in topo order
	pos        []int   // node -> position in order
	cyclic     []bool  // component id -> has a cycle
}

// computeSCCs runs Kosaraju's algorithm. Component ids are assigned in
// topological order. Within a cyclic component, members are ordered by a
// reverse postorder over the intra-component edges accepted by intraKeep,
// so that filtering out dev-only edges places the non-dev side first.
func computeSCCs(a *adjacency, intraKeep func(edge int) bool) *sccIndex {
	n := a.n

	// Pass 1: forward DFS postorder over every node.
	visited := newBitSet(n)
	post := make([]int, 0, n)
	type frame struct {
		node int
		next int
	}
	var stack []frame
	for root := 0; root < n; root++ {
		if visited.has(root) {
			continue
		}
		visited.set(root)
		stack = append(stack[:0], frame{node: root})
		for len(stack) > 0 {
			f := &stack[len(stack)-1]
			edges := a.out[f.node]
			pushed := false
			for f.next < len(edges) {
				next := a.to[edges[f.next]]
				f.next++
				if !visited.has(next) {
					visited.set(next)
					stack = append(stack, frame{node: next})
					pushed = true
					break
				}
			}
			if !pushed && f.next >= len(edges) {
				post = append(post, f.node)
				stack = stack[:len(stack)-1]
			}
		}
	}

	// Pass 2: reversed-edge DFS in reverse finish order. Each tree is one
	// component; discovery order is the topological order of the condensation.
	comp := make([]int, n)
	for i := range comp {
		comp[i] = -1
	}
	var components [][]int
	var work []int
	for i := len(post) - 1; i >= 0; i-- {
		v := post[i]
		if comp[v] >= 0 {
			continue
		}
		id := len(components)
		comp[v] = id
		members := []int{v}
		work = append(work[:0], v)
		for len(work) > 0 {
			u := work[len(work)-1]
			work = work[:len(work)-1]
			for _, e := range a.in[u] {
				w := a.from[e]
				if comp[w] < 0 {
					comp[w] = id
					members = append(members, w)
					work = append(work, w)
				}
			}
		}
		sort.Ints(members)
		components = append(components, members)
	}

	// Self-loops make a singleton component cyclic.
	selfLoop := newBitSet(n)
	for e := range a.from {
		if a.from[e] == a.to[e] {
			selfLoop.set(a.from[e])
		}
	}

	cyclic := make([]bool, len(components))
	for id, members := range components {
		cyclic[id] = len(members) > 1 || selfLoop.has(members[0])
		if len(members) > 1 {
			components[id] = orderWithin(a, comp, id, members, intraKeep)
		}
	}

	idx := &sccIndex{
		comp:       comp,
		components: components,
		order:      make([]int, 0, n),
		pos:        make([]int, n),
		cyclic:     cyclic,
	}
	for _, members := range components {
		idx.order = append(idx.order, members...)
	}
	for i, v := range idx.order {
		idx.pos[v] = i
	}
	return idx
}

// orderWithin orders the members of one cyclic component by reverse
// postorder over the intra-component edges accepted by intraKeep. Members
// unreachable through accepted edges start fresh DFS trees in ascending
// index order, keeping the result deterministic.
func orderWithin(a *adjacency, comp []int, id int, members []int, intraKeep func(edge int) bool) []int {
	seen := make(map[int]bool, len(members))
	post := make([]int, 0, len(members))
	type frame struct {
		node int
		next int
	}
	var stack []frame
	for _, root := range members {
		if seen[root] {
			continue
		}
		seen[root] = true
		stack = append(stack[:0], frame{node: root})
		for len(stack) > 0 {
			f := &stack[len(stack)-1]
			edges := a.out[f.node]
			pushed := false
			for f.next < len(edges) {
				e := edges[f.next]
				f.next++
				next := a.to[e]
				if comp[next] != id || seen[next] {
					continue
				}
				if intraKeep != nil && !intraKeep(e) {
					continue
				}
				seen[next] = true
				stack = append(stack, frame{node: next})
				pushed = true
				break
			}
			if !pushed && f.next >= len(edges) {
				post = append(post, f.node)
				stack = stack[:len(stack)-1]
			}
		}
	}
	ordered := make([]int, len(post))
	for i, v := range post {
		ordered[len(post)-1-i] = v
	}
	return ordered
}

func (s *sccIndex) sameComponent(a, b int) bool {
	return s.comp[a] == s.comp[b]
}

func (s *sccIndex) isCyclic(v int) bool {
	return s.cyclic[s.comp[v]]
}
