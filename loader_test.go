package hierconf

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoaderDetectsReferences(t *testing.T) {
	tree := mustLoad(t, `
plain: file://prompts/a.md
remote: https://example.com/b.txt
inline: "data:text/plain,hi"
self: ref:prompts.a
bare:
  uri: prompts/c.md
  content_type: text/markdown
  lang: en
underscore:
  _ref: ref:prompts.a
custom:
  uri: vault://secret/key
text: "just text"
`, "base")

	cases := []struct {
		path   string
		uri    string
		scheme Scheme
	}{
		{"plain", "file://prompts/a.md", SchemeFile},
		{"remote", "https://example.com/b.txt", SchemeHTTPS},
		{"inline", "data:text/plain,hi", SchemeData},
		{"self", "ref:prompts.a", SchemeRef},
		{"bare", "file://prompts/c.md", SchemeFile},
		{"underscore", "ref:prompts.a", SchemeRef},
		{"custom", "vault://secret/key", Scheme("vault")},
	}
	for _, tc := range cases {
		node, ok := tree.NodeAt(tc.path)
		if !ok {
			t.Fatalf("missing %q", tc.path)
		}
		ref, ok := node.Reference()
		if !ok {
			t.Fatalf("expected reference at %q, got %s", tc.path, node)
		}
		if ref.URI != tc.uri || ref.Scheme != tc.scheme {
			t.Fatalf("%q: got %s (%s), want %s (%s)", tc.path, ref.URI, ref.Scheme, tc.uri, tc.scheme)
		}
	}

	bare, _ := tree.NodeAt("bare")
	ref, _ := bare.Reference()
	if ref.ContentType != "text/markdown" {
		t.Fatalf("expected content type, got %q", ref.ContentType)
	}
	if diff := cmp.Diff(map[string]any{"lang": "en"}, ref.Metadata); diff != "" {
		t.Fatalf("reference metadata mismatch (-want +got):\n%s", diff)
	}

	text, _ := tree.NodeAt("text")
	if text.IsReference() {
		t.Fatalf("plain strings must stay scalars")
	}
}

func TestLoaderStampsPathsAndSource(t *testing.T) {
	tree := mustLoad(t, "a:\n  b:\n    - x\n", "team.yaml")
	node, ok := tree.NodeAt("a.b.0")
	if !ok {
		t.Fatalf("expected list item")
	}
	if node.Path != "a.b.0" || node.Source != "team.yaml" {
		t.Fatalf("unexpected path/source: %q %q", node.Path, node.Source)
	}
	list, _ := tree.NodeAt("a.b")
	if !list.IsList() {
		t.Fatalf("expected sequence to load as a list")
	}
}

func TestLoaderEmptyDocument(t *testing.T) {
	for _, doc := range []string{"", "   \n", "~\n"} {
		tree := mustLoad(t, doc, "empty")
		if !tree.IsContainer() || tree.Len() != 0 {
			t.Fatalf("expected empty container for %q, got %s", doc, tree)
		}
	}
}

func TestLoaderErrors(t *testing.T) {
	if _, err := NewLoader().Load([]byte("a: [1, 2\n"), "broken"); !errors.Is(err, ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
	if _, err := NewLoader().Load([]byte("a:\n  uri: 42\n"), "bad-ref"); !errors.Is(err, ErrParse) {
		t.Fatalf("expected ErrParse for non-string uri, got %v", err)
	}
	if _, err := NewLoader().LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoaderLoadFileRelativeToBaseDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "base.yaml"), []byte("name: svc\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	tree, err := NewLoader(WithLoaderBaseDir(dir)).LoadFile("base.yaml", "")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if tree.Source != "base.yaml" {
		t.Fatalf("expected source to default to the given path, got %q", tree.Source)
	}
	if value, _ := tree.ValueAt("name"); value != "svc" {
		t.Fatalf("unexpected value %v", value)
	}
}
