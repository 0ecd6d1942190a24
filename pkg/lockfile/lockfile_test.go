package lockfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cargograph/cargograph/pkg/errors"
)

const sampleLock = `
version = 3

[[package]]
name = "serde"
version = "1.0.200"
source = "registry+https://github.com/rust-lang/crates.io-index"
checksum = "abc123"
dependencies = ["serde_derive"]

[[package]]
name = "serde_derive"
version = "1.0.200"
source = "registry+https://github.com/rust-lang/crates.io-index"

[[package]]
name = "app"
version = "0.1.0"
`

func TestParse(t *testing.T) {
	l, err := Parse([]byte(sampleLock))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if l.Version != 3 {
		t.Errorf("Version = %d, want 3", l.Version)
	}
	if len(l.Packages) != 3 {
		t.Fatalf("len(Packages) = %d, want 3", len(l.Packages))
	}
	if got := l.Packages[0].Dependencies; len(got) != 1 || got[0] != "serde_derive" {
		t.Errorf("Packages[0].Dependencies = %v, want [serde_derive]", got)
	}
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse([]byte("version = [not toml"))
	if err == nil {
		t.Fatal("Parse() error = nil, want invalid document error")
	}
	if got := errors.GetCode(err); got != errors.ErrCodeInvalidDocument {
		t.Errorf("GetCode() = %q, want %q", got, errors.ErrCodeInvalidDocument)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Cargo.lock")
	if err := os.WriteFile(path, []byte(sampleLock), 0o644); err != nil {
		t.Fatal(err)
	}
	l, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(l.Packages) != 3 {
		t.Errorf("len(Packages) = %d, want 3", len(l.Packages))
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.lock")); err == nil {
		t.Error("Load() error = nil for missing file")
	}
}

func TestFind(t *testing.T) {
	l := &Lockfile{Packages: []Package{
		{Name: "rand", Version: "0.7.3"},
		{Name: "rand", Version: "0.8.5"},
		{Name: "log", Version: "0.4.21"},
	}}

	tests := []struct {
		name string
		want int
	}{
		{"rand", 2},
		{"log", 1},
		{"nope", 0},
	}
	for _, tt := range tests {
		if got := l.Find(tt.name); len(got) != tt.want {
			t.Errorf("Find(%q) returned %d entries, want %d", tt.name, len(got), tt.want)
		}
	}
}

func TestDiff(t *testing.T) {
	old := &Lockfile{Packages: []Package{
		{Name: "serde", Version: "1.0.100"},
		{Name: "dropped", Version: "0.1.0"},
		{Name: "stable", Version: "2.0.0"},
	}}
	updated := &Lockfile{Packages: []Package{
		{Name: "serde", Version: "1.0.200"},
		{Name: "fresh", Version: "0.3.0"},
		{Name: "stable", Version: "2.0.0"},
	}}

	d := Diff(old, updated)
	if d.Empty() {
		t.Fatal("Empty() = true, want false")
	}
	if len(d.Updated) != 1 || d.Updated[0].Name != "serde" || d.Updated[0].New != "1.0.200" {
		t.Errorf("Updated = %+v, want serde 1.0.100 -> 1.0.200", d.Updated)
	}
	if len(d.Added) != 1 || d.Added[0].Name != "fresh" {
		t.Errorf("Added = %+v, want [fresh]", d.Added)
	}
	if len(d.Removed) != 1 || d.Removed[0].Name != "dropped" {
		t.Errorf("Removed = %+v, want [dropped]", d.Removed)
	}

	s := d.String()
	for _, want := range []string{"~ serde 1.0.100 -> 1.0.200", "+ fresh 0.3.0", "- dropped 0.1.0"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() missing %q in:\n%s", want, s)
		}
	}
}

func TestDiffMultipleVersions(t *testing.T) {
	// Two coexisting versions on one side never collapse into an update.
	old := &Lockfile{Packages: []Package{
		{Name: "rand", Version: "0.7.3"},
		{Name: "rand", Version: "0.8.5"},
	}}
	updated := &Lockfile{Packages: []Package{
		{Name: "rand", Version: "0.8.5"},
	}}

	d := Diff(old, updated)
	if len(d.Updated) != 0 {
		t.Errorf("Updated = %+v, want none", d.Updated)
	}
	if len(d.Removed) != 1 || d.Removed[0].Version != "0.7.3" {
		t.Errorf("Removed = %+v, want [rand 0.7.3]", d.Removed)
	}
	if len(d.Added) != 0 {
		t.Errorf("Added = %+v, want none", d.Added)
	}
}

func TestDiffIdentical(t *testing.T) {
	l := &Lockfile{Packages: []Package{{Name: "a", Version: "1.0.0"}}}
	if d := Diff(l, l); !d.Empty() {
		t.Errorf("Diff of identical lockfiles not empty: %+v", d)
	}
}
