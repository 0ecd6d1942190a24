package depgraph

import (
	"bytes"
	"fmt"
)

// DotVisitor supplies the labels for DOT rendering. Implementations decide
// how much of a package or link to show.
type DotVisitor interface {
	// NodeLabel returns the label text for a package node.
	NodeLabel(p PackageMetadata) string
	// LinkLabel returns the label text for a dependency edge.
	// An empty label renders the edge without a label attribute.
	LinkLabel(l PackageLink) string
}

// Dot renders the set as a Graphviz DOT digraph using v for labels. Nodes
// are emitted in the set's iteration order and identified by package id;
// edges are emitted only when both endpoints are in the set.
func (s *PackageSet) Dot(v DotVisitor) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  node [shape=box];\n")
	buf.WriteString("\n")

	for _, p := range s.Packages() {
		fmt.Fprintf(&buf, "  %q [label=%q];\n", p.ID(), v.NodeLabel(p))
	}

	buf.WriteString("\n")
	for _, l := range s.Links() {
		if label := v.LinkLabel(l); label != "" {
			fmt.Fprintf(&buf, "  %q -> %q [label=%q];\n", l.From().ID(), l.To().ID(), label)
		} else {
			fmt.Fprintf(&buf, "  %q -> %q;\n", l.From().ID(), l.To().ID())
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}
