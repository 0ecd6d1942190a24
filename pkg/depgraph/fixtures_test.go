package depgraph

import (
	"testing"

	"github.com/cargograph/cargograph/pkg/metadata"
)

const testRegistry = "registry+https://example.com/index"

func libTarget(name string) metadata.Target {
	return metadata.Target{Name: name, Kind: []string{"lib"}, CrateTypes: []string{"lib"}}
}

func testPkg(name, source string, deps ...metadata.Dependency) metadata.Package {
	return metadata.Package{
		ID:           name,
		Name:         name,
		Version:      "1.0.0",
		Source:       source,
		ManifestPath: "/ws/" + name + "/Cargo.toml",
		Dependencies: deps,
		Targets:      []metadata.Target{libTarget(name)},
		Features:     map[string][]string{},
	}
}

func dep(name string) metadata.Dependency {
	return metadata.Dependency{Name: name, Req: "^1.0", DefaultFeatures: true}
}

func devDep(name string) metadata.Dependency {
	d := dep(name)
	d.Kind = metadata.KindDev
	return d
}

func node(id string, deps ...string) metadata.Node {
	n := metadata.Node{ID: id}
	for _, d := range deps {
		n.Deps = append(n.Deps, metadata.NodeDep{Name: underscore(d), Pkg: d})
	}
	return n
}

// diamondDoc is a workspace member a depending on b and c, which both
// depend on d.
func diamondDoc() *metadata.Document {
	return &metadata.Document{
		Packages: []metadata.Package{
			testPkg("a", "", dep("b"), dep("c")),
			testPkg("b", testRegistry, dep("d")),
			testPkg("c", testRegistry, dep("d")),
			testPkg("d", testRegistry),
		},
		WorkspaceMembers: []string{"a"},
		WorkspaceRoot:    "/ws",
		Resolve: &metadata.Resolve{Nodes: []metadata.Node{
			node("a", "b", "c"),
			node("b", "d"),
			node("c", "d"),
			node("d"),
		}},
	}
}

// chainDoc is the linear graph a -> b -> c -> d.
func chainDoc() *metadata.Document {
	return &metadata.Document{
		Packages: []metadata.Package{
			testPkg("a", "", dep("b")),
			testPkg("b", testRegistry, dep("c")),
			testPkg("c", testRegistry, dep("d")),
			testPkg("d", testRegistry),
		},
		WorkspaceMembers: []string{"a"},
		WorkspaceRoot:    "/ws",
		Resolve: &metadata.Resolve{Nodes: []metadata.Node{
			node("a", "b"),
			node("b", "c"),
			node("c", "d"),
			node("d"),
		}},
	}
}

// devCycleDoc has a -> b as a normal dependency and b -> a as a dev
// dependency, forming a single cyclic component.
func devCycleDoc() *metadata.Document {
	return &metadata.Document{
		Packages: []metadata.Package{
			testPkg("a", "", dep("b")),
			testPkg("b", "", devDep("a")),
		},
		WorkspaceMembers: []string{"a", "b"},
		WorkspaceRoot:    "/ws",
		Resolve: &metadata.Resolve{Nodes: []metadata.Node{
			node("a", "b"),
			node("b", "a"),
		}},
	}
}

// featureDoc exercises the feature grammar: an optional dependency, a weak
// reference and a strong dep: reference.
//
//	app features:
//	  default = []
//	  tls     = ["net?/tls"]
//	  full    = ["tls", "dep:net"]
func featureDoc() *metadata.Document {
	net := metadata.Dependency{Name: "net", Req: "^1.0", Optional: true, DefaultFeatures: true}
	app := testPkg("app", "", net, dep("util"))
	app.Features = map[string][]string{
		"default": {},
		"tls":     {"net?/tls"},
		"full":    {"tls", "dep:net"},
	}

	netPkg := testPkg("net", testRegistry)
	netPkg.Features = map[string][]string{
		"default": {},
		"tls":     {},
	}

	return &metadata.Document{
		Packages: []metadata.Package{
			app,
			netPkg,
			testPkg("util", testRegistry),
		},
		WorkspaceMembers: []string{"app"},
		WorkspaceRoot:    "/ws",
		Resolve: &metadata.Resolve{Nodes: []metadata.Node{
			node("app", "net", "util"),
			node("net"),
			node("util"),
		}},
	}
}

func mustBuild(t *testing.T, doc *metadata.Document) *Graph {
	t.Helper()
	g, err := Build(doc, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return g
}

func mustResolve(t *testing.T, q *PackageQuery, err error) *PackageSet {
	t.Helper()
	if err != nil {
		t.Fatalf("query error = %v", err)
	}
	set, err := q.Resolve()
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	return set
}
