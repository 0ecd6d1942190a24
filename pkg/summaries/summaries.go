// Package summaries serializes feature resolutions into TOML documents
// that can be stored next to a repository and diffed across runs.
package summaries

import (
	"bytes"
	"os"
	"sort"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"

	"github.com/cargograph/cargograph/pkg/depgraph"
	"github.com/cargograph/cargograph/pkg/depgraph/cargo"
	"github.com/cargograph/cargograph/pkg/errors"
)

// Summary is one recorded resolution: the options it ran under and the
// per-package feature sets it produced.
type Summary struct {
	ID              string    `toml:"id"`
	GeneratedAt     time.Time `toml:"generated_at"`
	ResolverVersion int       `toml:"resolver_version"`
	TargetPlatform  string    `toml:"target_platform,omitempty"`
	HostPlatform    string    `toml:"host_platform,omitempty"`
	IncludeDev      bool      `toml:"include_dev"`

	Target []PackageSummary `toml:"target"`
	// Host is recorded only for resolver version 2, where it can diverge
	// from the target list.
	Host []PackageSummary `toml:"host,omitempty"`
}

// PackageSummary is the resolved state of one package in one context.
type PackageSummary struct {
	ID       string   `toml:"id"`
	Name     string   `toml:"name"`
	Version  string   `toml:"version"`
	Features []string `toml:"features"`
}

// New captures a resolution as a summary. The platform and dev fields are
// taken from opts since the set does not retain them.
func New(set *cargo.Set, opts cargo.Options) *Summary {
	s := &Summary{
		ID:              uuid.NewString(),
		GeneratedAt:     time.Now().UTC().Truncate(time.Second),
		ResolverVersion: int(set.Version()),
		TargetPlatform:  opts.TargetPlatform,
		HostPlatform:    opts.HostPlatform,
		IncludeDev:      opts.IncludeDev,
		Target:          capture(set.Target()),
	}
	if set.Version() == cargo.V2 {
		s.Host = capture(set.Host())
	}
	return s
}

func capture(fs *depgraph.FeatureSet) []PackageSummary {
	pkgs := fs.Packages()
	out := make([]PackageSummary, 0, len(pkgs))
	for _, pkg := range pkgs {
		features, _ := fs.FeaturesFor(pkg.ID())
		if features == nil {
			features = []string{}
		}
		out = append(out, PackageSummary{
			ID:       pkg.ID(),
			Name:     pkg.Name(),
			Version:  pkg.Version(),
			Features: features,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Encode renders the summary as TOML.
func (s *Summary) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(s); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode summary")
	}
	return buf.Bytes(), nil
}

// Write encodes the summary and writes it to path.
func (s *Summary) Write(path string) error {
	data, err := s.Encode()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "write summary %s", path)
	}
	return nil
}

// Parse decodes a summary document. Malformed TOML fails with
// INVALID_DOCUMENT.
func Parse(data []byte) (*Summary, error) {
	var s Summary
	if err := toml.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidDocument, err, "parse summary")
	}
	return &s, nil
}

// Load reads and parses a summary from disk.
func Load(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read summary %s", path)
	}
	return Parse(data)
}

// FeatureChange records a package whose active feature set moved between
// two summaries.
type FeatureChange struct {
	PackageID string
	Old       []string
	New       []string
}

// DiffResult describes how the target contexts of two summaries differ.
type DiffResult struct {
	Added   []string // package ids only in the newer summary
	Removed []string // package ids only in the older summary
	Changed []FeatureChange
}

// Empty reports whether the two summaries resolved identically.
func (d *DiffResult) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Diff compares the target contexts of two summaries by package id.
func Diff(old, updated *Summary) *DiffResult {
	oldBy := indexByID(old.Target)
	newBy := indexByID(updated.Target)

	d := &DiffResult{}
	for id, before := range oldBy {
		after, ok := newBy[id]
		if !ok {
			d.Removed = append(d.Removed, id)
			continue
		}
		if !equalStrings(before.Features, after.Features) {
			d.Changed = append(d.Changed, FeatureChange{PackageID: id, Old: before.Features, New: after.Features})
		}
	}
	for id := range newBy {
		if _, ok := oldBy[id]; !ok {
			d.Added = append(d.Added, id)
		}
	}

	sort.Strings(d.Added)
	sort.Strings(d.Removed)
	sort.Slice(d.Changed, func(i, j int) bool { return d.Changed[i].PackageID < d.Changed[j].PackageID })
	return d
}

func indexByID(pkgs []PackageSummary) map[string]PackageSummary {
	out := make(map[string]PackageSummary, len(pkgs))
	for _, p := range pkgs {
		out[p.ID] = p
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
