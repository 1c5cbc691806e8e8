package hierconf

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

func TestResolverFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "prompts"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "prompts", "system.md"), []byte("You are helpful."), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	resolver := NewResolver(ResolverWithBaseDir(dir))
	content, err := resolver.Resolve(context.Background(), MustParseReference("file://prompts/system.md"), nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if content != "You are helpful." {
		t.Fatalf("unexpected content %q", content)
	}

	_, err = resolver.Resolve(context.Background(), MustParseReference("file://prompts/missing.md"), nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var resErr *ResolutionError
	if !errors.As(err, &resErr) || resErr.Scheme != SchemeFile {
		t.Fatalf("expected ResolutionError for file scheme, got %v", err)
	}
}

func TestResolverFileRejectsBinary(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "blob.bin"), []byte{0xff, 0xfe, 0x00}, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := NewResolver(ResolverWithBaseDir(dir)).Resolve(context.Background(), MustParseReference("file://blob.bin"), nil)
	if !errors.Is(err, ErrFormat) {
		t.Fatalf("expected ErrFormat, got %v", err)
	}
}

func TestResolverHTTP(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/prompt":
			if got := r.Header.Get("Accept"); got != "text/markdown" {
				http.Error(w, "bad accept "+got, http.StatusBadRequest)
				return
			}
			_, _ = w.Write([]byte("# remote"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	resolver := NewResolver(ResolverWithHTTPClient(server.Client()))
	ref := MustParseReference(server.URL + "/prompt")
	ref.ContentType = "text/markdown"

	for i := 0; i < 2; i++ {
		content, err := resolver.Resolve(context.Background(), ref, nil)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if content != "# remote" {
			t.Fatalf("unexpected content %q", content)
		}
	}
	if hits.Load() != 1 {
		t.Fatalf("expected cached second resolution, got %d requests", hits.Load())
	}

	resolver.ClearCache()
	if _, err := resolver.Resolve(context.Background(), ref, nil); err != nil {
		t.Fatalf("Resolve after ClearCache: %v", err)
	}
	if hits.Load() != 2 {
		t.Fatalf("expected refetch after ClearCache, got %d requests", hits.Load())
	}

	_, err := resolver.Resolve(context.Background(), MustParseReference(server.URL+"/missing"), nil)
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	var transportErr *TransportError
	if !errors.As(err, &transportErr) || transportErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 TransportError, got %v", err)
	}
}

func TestResolverData(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("héllo"))
	cases := []struct {
		uri     string
		want    string
		wantErr error
	}{
		{uri: "data:text/plain,hello%20world", want: "hello world"},
		{uri: "data:,plain", want: "plain"},
		{uri: "data:text/plain;base64," + encoded, want: "héllo"},
		{uri: "data:text/plain;base64,aGk", want: "hi"},
		{uri: "data:text/plain", wantErr: ErrFormat},
		{uri: "data:;base64,@@@", wantErr: ErrFormat},
	}
	resolver := NewResolver()
	for _, tc := range cases {
		got, err := resolver.Resolve(context.Background(), MustParseReference(tc.uri), nil)
		if tc.wantErr != nil {
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("%s: expected %v, got %v", tc.uri, tc.wantErr, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: %v", tc.uri, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %q, want %q", tc.uri, got, tc.want)
		}
	}
}

func TestResolverSelfReferences(t *testing.T) {
	tree := mustLoad(t, `
prompts:
  base: "Be concise."
  alias: ref:prompts.base
  chained: ref:prompts.alias
  loop_a: ref:prompts.loop_b
  loop_b: ref:prompts.loop_a
  number: 3
  dangling: ref:prompts.gone
  via_dangling: ref:prompts.dangling
`, "base")
	resolver := NewResolver()

	content, err := resolver.Resolve(context.Background(), MustParseReference("ref:prompts.chained"), tree)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if content != "Be concise." {
		t.Fatalf("unexpected content %q", content)
	}

	cases := []struct {
		uri  string
		want error
	}{
		{"ref:prompts.loop_a", ErrCircularReference},
		{"ref:prompts.missing", ErrNotFound},
		{"ref:prompts.number", ErrUsage},
		{"ref:prompts", ErrUsage},
	}
	for _, tc := range cases {
		_, err := resolver.Resolve(context.Background(), MustParseReference(tc.uri), tree)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.uri, tc.want, err)
		}
	}

	_, err = resolver.Resolve(context.Background(), MustParseReference("ref:prompts.via_dangling"), tree)
	var resErr *ResolutionError
	if !errors.As(err, &resErr) || resErr.URI != "ref:prompts.via_dangling" || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected failure reported for the requested uri, got %v", err)
	}

	// cached content needs no tree
	if content, err := resolver.Resolve(context.Background(), MustParseReference("ref:prompts.base"), nil); err != nil || content != "Be concise." {
		t.Fatalf("expected cached content without a tree, got %q, %v", content, err)
	}

	resolver.ClearCache()
	if _, err := resolver.Resolve(context.Background(), MustParseReference("ref:prompts.base"), nil); !errors.Is(err, ErrUsage) {
		t.Fatalf("expected ErrUsage without a tree, got %v", err)
	}
}

func TestResolverCustomSchemes(t *testing.T) {
	resolver := NewResolver(ResolverWithScheme("vault", func(_ context.Context, ref Reference) (string, error) {
		return "secret:" + ref.Location(), nil
	}))

	content, err := resolver.Resolve(context.Background(), MustParseReference("vault://db/password"), nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if content != "secret://db/password" {
		t.Fatalf("unexpected content %q", content)
	}

	resolver.RegisterResolver("VAULT", nil)
	resolver.ClearCache()
	if _, err := resolver.Resolve(context.Background(), MustParseReference("vault://db/password"), nil); !errors.Is(err, ErrUnsupportedScheme) {
		t.Fatalf("expected ErrUnsupportedScheme after removal, got %v", err)
	}

	resolver.RegisterResolver("file", func(context.Context, Reference) (string, error) {
		return "custom", nil
	})
	if _, err := resolver.Resolve(context.Background(), MustParseReference("file://nope.txt"), nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("built-in schemes must take precedence, got %v", err)
	}
}

func TestResolverLogsEvents(t *testing.T) {
	var events []ResolutionLogEvent
	resolver := NewResolver(ResolverWithLogger(ResolutionLoggerFunc(func(event ResolutionLogEvent) {
		events = append(events, event)
	})))
	ref := MustParseReference("data:,x")
	for i := 0; i < 2; i++ {
		if _, err := resolver.Resolve(context.Background(), ref, nil); err != nil {
			t.Fatalf("Resolve: %v", err)
		}
	}
	if len(events) != 2 || events[0].Cached || !events[1].Cached {
		t.Fatalf("expected fresh then cached events, got %+v", events)
	}
}
