// Package metadata models the machine-readable project description consumed
// by the graph builder.
//
// The document is the JSON output of the build tool's metadata command: the
// full package list with declared dependencies, build targets and feature
// declarations, the workspace member ids, and the resolved dependency graph.
// This package only decodes the document; structural validation happens
// during graph construction.
package metadata

import (
	"encoding/json"
	"os"

	"github.com/cargograph/cargograph/pkg/errors"
)

// Document is the top-level metadata document.
type Document struct {
	Packages         []Package `json:"packages"`
	WorkspaceMembers []string  `json:"workspace_members"`
	WorkspaceRoot    string    `json:"workspace_root"`
	Resolve          *Resolve  `json:"resolve"`
}

// Package describes one package: identity, declared dependencies, build
// targets, and feature declarations.
type Package struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Version      string              `json:"version"`
	Source       string              `json:"source"`
	ManifestPath string              `json:"manifest_path"`
	Dependencies []Dependency        `json:"dependencies"`
	Targets      []Target            `json:"targets"`
	Features     map[string][]string `json:"features"`
}

// Dependency kinds as they appear in the document.
const (
	KindNormal = ""
	KindDev    = "dev"
	KindBuild  = "build"
)

// Dependency is one declared dependency record.
type Dependency struct {
	Name            string   `json:"name"`
	Req             string   `json:"req"`
	Kind            string   `json:"kind"`
	Optional        bool     `json:"optional"`
	DefaultFeatures bool     `json:"uses_default_features"`
	Features        []string `json:"features"`
	Target          string   `json:"target"`
	Rename          string   `json:"rename"`
}

// Target is one build target of a package.
type Target struct {
	Name       string   `json:"name"`
	Kind       []string `json:"kind"`
	CrateTypes []string `json:"crate_types"`
}

// Resolve is the resolved dependency graph section.
type Resolve struct {
	Nodes []Node `json:"nodes"`
}

// Node is the resolved view of one package.
type Node struct {
	ID       string    `json:"id"`
	Deps     []NodeDep `json:"deps"`
	Features []string  `json:"features"`
}

// NodeDep is one resolved dependency reference. Name is the local name the
// dependency is imported under (renames applied, dashes underscored), Pkg is
// the target package id.
type NodeDep struct {
	Name string `json:"name"`
	Pkg  string `json:"pkg"`
}

// Parse decodes a metadata document from JSON.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidDocument, err, "decode metadata document")
	}
	return &doc, nil
}

// Load reads and decodes a metadata document from a file.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read metadata document %s", path)
	}
	return Parse(data)
}
