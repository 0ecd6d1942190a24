package metadata

import (
	"testing"

	"github.com/cargograph/cargograph/pkg/errors"
)

const sampleDoc = `{
  "packages": [
    {
      "id": "app 1.0.0 (path+file:///ws/app)",
      "name": "app",
      "version": "1.0.0",
      "source": "",
      "manifest_path": "/ws/app/Cargo.toml",
      "dependencies": [
        {"name": "lib", "req": "^0.2", "kind": "", "optional": false, "uses_default_features": true}
      ],
      "targets": [
        {"name": "app", "kind": ["bin"], "crate_types": ["bin"]}
      ],
      "features": {"extra": ["lib/fancy"]}
    },
    {
      "id": "lib 0.2.1 (registry+https://example.com/index)",
      "name": "lib",
      "version": "0.2.1",
      "source": "registry+https://example.com/index",
      "dependencies": [],
      "targets": [
        {"name": "lib", "kind": ["lib"], "crate_types": ["lib"]}
      ],
      "features": {"fancy": []}
    }
  ],
  "workspace_members": ["app 1.0.0 (path+file:///ws/app)"],
  "workspace_root": "/ws",
  "resolve": {
    "nodes": [
      {"id": "app 1.0.0 (path+file:///ws/app)", "deps": [{"name": "lib", "pkg": "lib 0.2.1 (registry+https://example.com/index)"}]},
      {"id": "lib 0.2.1 (registry+https://example.com/index)", "deps": []}
    ]
  }
}`

func TestParse(t *testing.T) {
	doc, err := Parse([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(doc.Packages) != 2 {
		t.Fatalf("len(Packages) = %d, want 2", len(doc.Packages))
	}
	if doc.Packages[0].Name != "app" {
		t.Errorf("Packages[0].Name = %q, want %q", doc.Packages[0].Name, "app")
	}
	if got := doc.Packages[0].Dependencies[0].Req; got != "^0.2" {
		t.Errorf("Dependencies[0].Req = %q, want %q", got, "^0.2")
	}
	if len(doc.WorkspaceMembers) != 1 {
		t.Errorf("len(WorkspaceMembers) = %d, want 1", len(doc.WorkspaceMembers))
	}
	if doc.Resolve == nil || len(doc.Resolve.Nodes) != 2 {
		t.Fatalf("Resolve.Nodes missing or wrong length: %+v", doc.Resolve)
	}
	if got := doc.Resolve.Nodes[0].Deps[0].Name; got != "lib" {
		t.Errorf("Resolve.Nodes[0].Deps[0].Name = %q, want %q", got, "lib")
	}
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse([]byte("{not json"))
	if !errors.Is(err, errors.ErrCodeInvalidDocument) {
		t.Errorf("Parse() error = %v, want code %v", err, errors.ErrCodeInvalidDocument)
	}
}

func TestParseMissingResolve(t *testing.T) {
	doc, err := Parse([]byte(`{"packages": [], "workspace_members": []}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if doc.Resolve != nil {
		t.Errorf("Resolve = %+v, want nil", doc.Resolve)
	}
}
