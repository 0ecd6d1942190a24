package cargo

import (
	"reflect"
	"testing"

	"github.com/cargograph/cargograph/pkg/depgraph"
	"github.com/cargograph/cargograph/pkg/errors"
	"github.com/cargograph/cargograph/pkg/metadata"
	"github.com/cargograph/cargograph/pkg/platform"
)

const testRegistry = "registry+https://example.com/index"

func testPkg(name string, deps ...metadata.Dependency) metadata.Package {
	source := testRegistry
	if name == "app" {
		source = ""
	}
	return metadata.Package{
		ID:           name,
		Name:         name,
		Version:      "1.0.0",
		Source:       source,
		ManifestPath: "/ws/" + name + "/Cargo.toml",
		Dependencies: deps,
		Targets: []metadata.Target{
			{Name: name, Kind: []string{"lib"}, CrateTypes: []string{"lib"}},
		},
		Features: map[string][]string{},
	}
}

func dep(name, kind string) metadata.Dependency {
	return metadata.Dependency{Name: name, Req: "^1.0", Kind: kind, DefaultFeatures: true}
}

func node(id string, deps ...string) metadata.Node {
	n := metadata.Node{ID: id}
	for _, d := range deps {
		n.Deps = append(n.Deps, metadata.NodeDep{Name: d, Pkg: d})
	}
	return n
}

func mustBuild(t *testing.T, doc *metadata.Document) *depgraph.Graph {
	t.Helper()
	g, err := depgraph.Build(doc, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return g
}

// weakDoc exercises weak activation:
//
//	app features:
//	  tls  = ["net?/tls"]
//	  full = ["tls", "dep:net"]
//
// with net optional.
func weakDoc() *metadata.Document {
	net := metadata.Dependency{Name: "net", Req: "^1.0", Optional: true, DefaultFeatures: true}
	app := testPkg("app", net, dep("util", ""))
	app.Features = map[string][]string{
		"default": {},
		"tls":     {"net?/tls"},
		"full":    {"tls", "dep:net"},
	}

	netPkg := testPkg("net")
	netPkg.Features = map[string][]string{"default": {}, "tls": {}}

	return &metadata.Document{
		Packages:         []metadata.Package{app, netPkg, testPkg("util")},
		WorkspaceMembers: []string{"app"},
		WorkspaceRoot:    "/ws",
		Resolve: &metadata.Resolve{Nodes: []metadata.Node{
			node("app", "net", "util"),
			node("net"),
			node("util"),
		}},
	}
}

// hostDoc has a normal dependency, a build dependency and a proc-macro
// dependency hanging off app.
func hostDoc() *metadata.Document {
	pm := testPkg("pm")
	pm.Targets = []metadata.Target{
		{Name: "pm", Kind: []string{"proc-macro"}, CrateTypes: []string{"proc-macro"}},
	}

	app := testPkg("app", dep("lib", ""), dep("gen", metadata.KindBuild), dep("pm", ""))
	return &metadata.Document{
		Packages:         []metadata.Package{app, testPkg("lib"), testPkg("gen"), pm},
		WorkspaceMembers: []string{"app"},
		WorkspaceRoot:    "/ws",
		Resolve: &metadata.Resolve{Nodes: []metadata.Node{
			node("app", "lib", "gen", "pm"),
			node("lib"),
			node("gen"),
			node("pm"),
		}},
	}
}

// platformDoc gates one dependency on cfg(windows).
func platformDoc() *metadata.Document {
	win := dep("winonly", "")
	win.Target = "cfg(windows)"
	app := testPkg("app", win, dep("portable", ""))
	return &metadata.Document{
		Packages:         []metadata.Package{app, testPkg("winonly"), testPkg("portable")},
		WorkspaceMembers: []string{"app"},
		WorkspaceRoot:    "/ws",
		Resolve: &metadata.Resolve{Nodes: []metadata.Node{
			node("app", "winonly", "portable"),
			node("winonly"),
			node("portable"),
		}},
	}
}

// devDoc has a dev dependency on app and a transitive one further down.
func devDoc() *metadata.Document {
	app := testPkg("app", dep("lib", ""), dep("harness", metadata.KindDev))
	lib := testPkg("lib", dep("libtest", metadata.KindDev))
	return &metadata.Document{
		Packages:         []metadata.Package{app, lib, testPkg("harness"), testPkg("libtest")},
		WorkspaceMembers: []string{"app"},
		WorkspaceRoot:    "/ws",
		Resolve: &metadata.Resolve{Nodes: []metadata.Node{
			node("app", "lib", "harness"),
			node("lib", "libtest"),
			node("harness"),
			node("libtest"),
		}},
	}
}

func containsPackage(t *testing.T, fs *depgraph.FeatureSet, id string) bool {
	t.Helper()
	ok, err := fs.ContainsPackage(id)
	if err != nil {
		t.Fatalf("ContainsPackage(%q) error = %v", id, err)
	}
	return ok
}

func TestWeakFeatureNotActivating(t *testing.T) {
	g := mustBuild(t, weakDoc())

	set, err := Resolve(g, []PackageSelection{{ID: "app", Features: []string{"tls"}}}, Options{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	// tls only weakly references net, so net stays off entirely.
	if containsPackage(t, set.Target(), "net") {
		t.Error("net activated through a weak reference alone")
	}
	features, ok := set.FeaturesFor("app")
	if !ok || !reflect.DeepEqual(features, []string{"tls"}) {
		t.Errorf("FeaturesFor(app) = %v, %v, want [tls]", features, ok)
	}
}

func TestWeakFeatureFlushedByStrongPath(t *testing.T) {
	g := mustBuild(t, weakDoc())

	set, err := Resolve(g, []PackageSelection{{ID: "app", Features: []string{"full"}}}, Options{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	// full turns net on via dep:net, which releases the deferred weak
	// activation of net/tls.
	if !containsPackage(t, set.Target(), "net") {
		t.Fatal("net not activated by dep:net")
	}
	features, ok := set.FeaturesFor("net")
	if !ok {
		t.Fatal("FeaturesFor(net) not found")
	}
	if !reflect.DeepEqual(features, []string{"default", "tls"}) {
		t.Errorf("FeaturesFor(net) = %v, want [default tls]", features)
	}
}

func TestDefaultFeatures(t *testing.T) {
	g := mustBuild(t, weakDoc())

	with, err := Resolve(g, []PackageSelection{{ID: "app", DefaultFeatures: true}}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	features, _ := with.FeaturesFor("app")
	if !reflect.DeepEqual(features, []string{"default"}) {
		t.Errorf("FeaturesFor(app) = %v, want [default]", features)
	}

	without, err := Resolve(g, []PackageSelection{{ID: "app"}}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	features, _ = without.FeaturesFor("app")
	if len(features) != 0 {
		t.Errorf("FeaturesFor(app) without defaults = %v, want none", features)
	}
	if !containsPackage(t, without.Target(), "util") {
		t.Error("required dependency util not activated from the base node")
	}
}

func TestAllFeatures(t *testing.T) {
	g := mustBuild(t, weakDoc())

	set, err := Resolve(g, []PackageSelection{{ID: "app", AllFeatures: true}}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	features, _ := set.FeaturesFor("app")
	if !reflect.DeepEqual(features, []string{"default", "full", "net", "tls"}) {
		t.Errorf("FeaturesFor(app) = %v, want every feature", features)
	}
	if !containsPackage(t, set.Target(), "net") {
		t.Error("net not activated under AllFeatures")
	}
}

func TestResolveErrors(t *testing.T) {
	g := mustBuild(t, weakDoc())

	_, err := Resolve(g, []PackageSelection{{ID: "ghost"}}, Options{})
	if !errors.Is(err, errors.ErrCodeUnknownID) {
		t.Errorf("unknown root: code = %q, want %q", errors.GetCode(err), errors.ErrCodeUnknownID)
	}

	_, err = Resolve(g, []PackageSelection{{ID: "app", Features: []string{"ghost"}}}, Options{})
	if !errors.Is(err, errors.ErrCodeUnknownFeature) {
		t.Errorf("unknown feature: code = %q, want %q", errors.GetCode(err), errors.ErrCodeUnknownFeature)
	}

	_, err = Resolve(g, []PackageSelection{{ID: "app"}}, Options{Version: 7})
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("bad version: code = %q, want %q", errors.GetCode(err), errors.ErrCodeInvalidInput)
	}

	_, err = Resolve(g, []PackageSelection{{ID: "app"}}, Options{TargetPlatform: "x86_64-unknown-linux-gnu"})
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("platform without evaluator: code = %q, want %q", errors.GetCode(err), errors.ErrCodeInvalidInput)
	}
}

func TestV1Unified(t *testing.T) {
	g := mustBuild(t, hostDoc())

	set, err := Resolve(g, []PackageSelection{{ID: "app"}}, Options{Version: V1})
	if err != nil {
		t.Fatal(err)
	}
	if set.Version() != V1 {
		t.Errorf("Version() = %v, want V1", set.Version())
	}
	if set.Target() != set.Host() {
		t.Error("V1 target and host views differ")
	}
	for _, id := range []string{"app", "lib", "gen", "pm"} {
		if !containsPackage(t, set.Target(), id) {
			t.Errorf("V1 set missing %q", id)
		}
	}
}

func TestV2HostSeparation(t *testing.T) {
	g := mustBuild(t, hostDoc())

	set, err := Resolve(g, []PackageSelection{{ID: "app"}}, Options{Version: V2})
	if err != nil {
		t.Fatal(err)
	}

	// Normal dependencies stay in the target context.
	if !containsPackage(t, set.Target(), "lib") {
		t.Error("lib missing from target context")
	}
	if containsPackage(t, set.Host(), "lib") {
		t.Error("lib leaked into host context")
	}

	// Build dependencies and proc-macros move to the host context.
	for _, id := range []string{"gen", "pm"} {
		if containsPackage(t, set.Target(), id) {
			t.Errorf("%q in target context, want host only", id)
		}
		if !containsPackage(t, set.Host(), id) {
			t.Errorf("%q missing from host context", id)
		}
	}
}

func TestPlatformGating(t *testing.T) {
	g := mustBuild(t, platformDoc())
	eval := platform.NewTable(map[string]map[string]bool{
		"x86_64-pc-windows-msvc":   {"cfg(windows)": true},
		"x86_64-unknown-linux-gnu": {"cfg(windows)": false},
	})

	tests := []struct {
		platform string
		wantWin  bool
	}{
		{"x86_64-pc-windows-msvc", true},
		{"x86_64-unknown-linux-gnu", false},
		{"", true}, // no platform: union over all platforms
	}
	for _, tt := range tests {
		set, err := Resolve(g, []PackageSelection{{ID: "app"}}, Options{
			TargetPlatform: tt.platform,
			HostPlatform:   tt.platform,
			Evaluator:      eval,
		})
		if err != nil {
			t.Fatalf("Resolve(platform %q) error = %v", tt.platform, err)
		}
		if got := containsPackage(t, set.Target(), "winonly"); got != tt.wantWin {
			t.Errorf("platform %q: winonly active = %v, want %v", tt.platform, got, tt.wantWin)
		}
		if !containsPackage(t, set.Target(), "portable") {
			t.Errorf("platform %q: portable missing", tt.platform)
		}
	}
}

func TestPlatformEvaluatorErrors(t *testing.T) {
	g := mustBuild(t, platformDoc())
	eval := platform.NewTable(map[string]map[string]bool{})

	_, err := Resolve(g, []PackageSelection{{ID: "app"}}, Options{
		TargetPlatform: "riscv64gc-unknown-linux-gnu",
		Evaluator:      eval,
	})
	if !errors.Is(err, errors.ErrCodeUnknownPlatform) {
		t.Errorf("code = %q, want %q", errors.GetCode(err), errors.ErrCodeUnknownPlatform)
	}
}

func TestIncludeDev(t *testing.T) {
	g := mustBuild(t, devDoc())

	without, err := Resolve(g, []PackageSelection{{ID: "app"}}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if containsPackage(t, without.Target(), "harness") {
		t.Error("dev dependency followed without IncludeDev")
	}

	with, err := Resolve(g, []PackageSelection{{ID: "app"}}, Options{IncludeDev: true})
	if err != nil {
		t.Fatal(err)
	}
	if !containsPackage(t, with.Target(), "harness") {
		t.Error("dev dependency of a root not followed with IncludeDev")
	}
	// Dev dependencies of non-roots are never followed.
	if containsPackage(t, with.Target(), "libtest") {
		t.Error("transitive dev dependency followed")
	}
}

func TestResolutionGrowsMonotonically(t *testing.T) {
	g := mustBuild(t, weakDoc())

	narrow, err := Resolve(g, []PackageSelection{{ID: "app", Features: []string{"tls"}}}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	wide, err := Resolve(g, []PackageSelection{{ID: "app", Features: []string{"tls", "full"}}}, Options{})
	if err != nil {
		t.Fatal(err)
	}

	for _, n := range narrow.Target().Nodes() {
		ok, err := wide.Target().Contains(n.ID())
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Errorf("adding a root feature dropped %v from the set", n.ID())
		}
	}
}
