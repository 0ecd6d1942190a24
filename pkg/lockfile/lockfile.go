// Package lockfile reads dependency lockfiles and diffs two snapshots.
package lockfile

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/cargograph/cargograph/pkg/errors"
)

// Lockfile is a parsed lockfile: a flat list of pinned packages.
type Lockfile struct {
	Version  int       `toml:"version"`
	Packages []Package `toml:"package"`
}

// Package is one pinned package entry.
type Package struct {
	Name         string   `toml:"name"`
	Version      string   `toml:"version"`
	Source       string   `toml:"source"`
	Checksum     string   `toml:"checksum"`
	Dependencies []string `toml:"dependencies"`
}

func (p Package) key() string {
	return p.Name + " " + p.Version + " " + p.Source
}

// Parse decodes lockfile contents. Malformed TOML fails with
// INVALID_DOCUMENT.
func Parse(data []byte) (*Lockfile, error) {
	var l Lockfile
	if err := toml.Unmarshal(data, &l); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidDocument, err, "parse lockfile")
	}
	return &l, nil
}

// Load reads and parses a lockfile from disk.
func Load(path string) (*Lockfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read lockfile %s", path)
	}
	return Parse(data)
}

// Find returns the entries with the given name. Lockfiles can pin several
// versions of one name when distinct major versions coexist.
func (l *Lockfile) Find(name string) []Package {
	var out []Package
	for _, p := range l.Packages {
		if p.Name == name {
			out = append(out, p)
		}
	}
	return out
}

// Change records one package whose pinned version moved between snapshots.
type Change struct {
	Name string
	Old  string
	New  string
}

// DiffResult describes how two lockfiles differ. All slices are sorted by
// package name.
type DiffResult struct {
	Added   []Package
	Removed []Package
	Updated []Change
}

// Empty reports whether the two snapshots pin identical package sets.
func (d *DiffResult) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Updated) == 0
}

// String renders the diff one package per line: "+" for added, "-" for
// removed, "~" for version changes.
func (d *DiffResult) String() string {
	var b strings.Builder
	for _, c := range d.Updated {
		fmt.Fprintf(&b, "~ %s %s -> %s\n", c.Name, c.Old, c.New)
	}
	for _, p := range d.Added {
		fmt.Fprintf(&b, "+ %s %s\n", p.Name, p.Version)
	}
	for _, p := range d.Removed {
		fmt.Fprintf(&b, "- %s %s\n", p.Name, p.Version)
	}
	return b.String()
}

// Diff compares two lockfiles. A name pinned exactly once on each side with
// differing versions becomes an update; every other mismatch shows up as an
// add or a remove of the exact pinned entry.
func Diff(old, updated *Lockfile) *DiffResult {
	oldByName := byName(old)
	newByName := byName(updated)

	d := &DiffResult{}
	seen := map[string]bool{}

	for name, before := range oldByName {
		after := newByName[name]
		if len(before) == 1 && len(after) == 1 {
			seen[name] = true
			if before[0].Version != after[0].Version {
				d.Updated = append(d.Updated, Change{Name: name, Old: before[0].Version, New: after[0].Version})
			}
			continue
		}
	}

	oldKeys := keySet(old)
	newKeys := keySet(updated)
	for _, p := range updated.Packages {
		if !seen[p.Name] && !oldKeys[p.key()] {
			d.Added = append(d.Added, p)
		}
	}
	for _, p := range old.Packages {
		if !seen[p.Name] && !newKeys[p.key()] {
			d.Removed = append(d.Removed, p)
		}
	}

	sort.Slice(d.Added, func(i, j int) bool { return less(d.Added[i], d.Added[j]) })
	sort.Slice(d.Removed, func(i, j int) bool { return less(d.Removed[i], d.Removed[j]) })
	sort.Slice(d.Updated, func(i, j int) bool { return d.Updated[i].Name < d.Updated[j].Name })
	return d
}

func byName(l *Lockfile) map[string][]Package {
	out := map[string][]Package{}
	for _, p := range l.Packages {
		out[p.Name] = append(out[p.Name], p)
	}
	return out
}

func keySet(l *Lockfile) map[string]bool {
	out := make(map[string]bool, len(l.Packages))
	for _, p := range l.Packages {
		out[p.key()] = true
	}
	return out
}

func less(a, b Package) bool {
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.Version < b.Version
}
