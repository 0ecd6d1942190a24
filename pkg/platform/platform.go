// Package platform supplies platform identifiers and predicate evaluation
// for conditional dependency edges.
//
// Dependency declarations may be gated on a platform predicate expression
// (e.g. `cfg(unix)` or a full target triple). The graph core never parses
// predicate syntax; it consults an injected [Evaluator] that answers whether
// a predicate holds on a given platform. This keeps the predicate grammar
// outside the engine and lets tests supply fixed truth tables.
//
// # Usage
//
//	eval := platform.NewTable(map[string]map[string]bool{
//	    "x86_64-unknown-linux-gnu": {"cfg(unix)": true, "cfg(windows)": false},
//	})
//	ok, err := eval.Eval("cfg(unix)", "x86_64-unknown-linux-gnu")
package platform

import (
	"os"
	"runtime"

	"github.com/BurntSushi/toml"

	"github.com/cargograph/cargograph/pkg/errors"
)

// Evaluator answers whether a platform predicate expression holds on a
// platform. Implementations must distinguish an unknown platform from an
// unknown predicate term via error codes ErrCodeUnknownPlatform and
// ErrCodeUnknownPredicate.
type Evaluator interface {
	// Eval evaluates predicate on the given platform identifier.
	Eval(predicate, platform string) (bool, error)
}

// EvalFunc adapts a function to the Evaluator interface.
type EvalFunc func(predicate, platform string) (bool, error)

// Eval implements Evaluator.
func (f EvalFunc) Eval(predicate, platform string) (bool, error) {
	return f(predicate, platform)
}

// Table is an Evaluator backed by an explicit truth table:
// platform identifier -> predicate expression -> result.
// Lookups are strict: a platform absent from the table fails with
// UNKNOWN_PLATFORM, a predicate absent from a known platform's row fails
// with UNKNOWN_PREDICATE.
type Table struct {
	platforms map[string]map[string]bool
}

// NewTable creates a table evaluator from the given truth table.
func NewTable(platforms map[string]map[string]bool) *Table {
	return &Table{platforms: platforms}
}

// Eval implements Evaluator.
func (t *Table) Eval(predicate, platform string) (bool, error) {
	row, ok := t.platforms[platform]
	if !ok {
		return false, errors.New(errors.ErrCodeUnknownPlatform, "unknown platform %q", platform)
	}
	v, ok := row[predicate]
	if !ok {
		return false, errors.New(errors.ErrCodeUnknownPredicate, "unknown predicate %q for platform %q", predicate, platform)
	}
	return v, nil
}

// Platforms returns the platform identifiers known to the table.
func (t *Table) Platforms() []string {
	out := make([]string, 0, len(t.platforms))
	for p := range t.platforms {
		out = append(out, p)
	}
	return out
}

// tableFile is the on-disk TOML shape for a predicate table.
type tableFile struct {
	Platforms map[string]map[string]bool `toml:"platforms"`
}

// LoadTable reads a predicate truth table from a TOML file:
//
//	[platforms."x86_64-unknown-linux-gnu"]
//	"cfg(unix)" = true
//	"cfg(windows)" = false
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read platform table %s", path)
	}
	var f tableFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse platform table %s", path)
	}
	if f.Platforms == nil {
		f.Platforms = map[string]map[string]bool{}
	}
	return NewTable(f.Platforms), nil
}

// triples maps GOOS/GOARCH pairs to conventional target triples.
var triples = map[string]string{
	"linux/amd64":   "x86_64-unknown-linux-gnu",
	"linux/arm64":   "aarch64-unknown-linux-gnu",
	"darwin/amd64":  "x86_64-apple-darwin",
	"darwin/arm64":  "aarch64-apple-darwin",
	"windows/amd64": "x86_64-pc-windows-msvc",
	"windows/arm64": "aarch64-pc-windows-msvc",
}

// Current returns a target-triple identifier for the machine the process is
// running on. It is intended only as a CLI default; the core always receives
// platforms as explicit inputs.
func Current() string {
	if t, ok := triples[runtime.GOOS+"/"+runtime.GOARCH]; ok {
		return t
	}
	return runtime.GOARCH + "-" + runtime.GOOS
}
