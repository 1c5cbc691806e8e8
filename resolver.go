package hierconf

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// SchemeResolver fetches content for references whose scheme has no built-in
// handler.
type SchemeResolver func(ctx context.Context, ref Reference) (string, error)

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// ResolverWithBaseDir sets the directory relative file references resolve against.
// Defaults to the working directory at construction time.
func ResolverWithBaseDir(dir string) ResolverOption {
	return func(r *Resolver) {
		r.baseDir = dir
	}
}

// ResolverWithHTTPClient sets the client used for http and https references.
func ResolverWithHTTPClient(client *http.Client) ResolverOption {
	return func(r *Resolver) {
		if client != nil {
			r.client = client
		}
	}
}

// ResolverWithScheme registers fn for scheme at construction time.
func ResolverWithScheme(scheme string, fn SchemeResolver) ResolverOption {
	return func(r *Resolver) {
		r.RegisterResolver(scheme, fn)
	}
}

// Resolver turns references into string content, caching results by URI.
// A Resolver is not safe for concurrent use.
type Resolver struct {
	baseDir string
	client  *http.Client
	cache   ContentCache
	schemes map[Scheme]SchemeResolver
	logger  ResolutionLogger
}

// NewResolver constructs a Resolver with an empty cache.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		client:  http.DefaultClient,
		schemes: map[Scheme]SchemeResolver{},
		logger:  noopResolutionLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.cache == nil {
		r.cache = NewMemoryContentCache()
	}
	if r.baseDir == "" {
		if wd, err := os.Getwd(); err == nil {
			r.baseDir = wd
		}
	}
	return r
}

// BaseDir returns the directory relative file references resolve against.
func (r *Resolver) BaseDir() string {
	return r.baseDir
}

// RegisterResolver installs or replaces the handler for scheme. A nil fn
// removes it. Built-in schemes always use their own handlers.
func (r *Resolver) RegisterResolver(scheme string, fn SchemeResolver) {
	key := Scheme(strings.ToLower(strings.TrimSpace(scheme)))
	if fn == nil {
		delete(r.schemes, key)
		return
	}
	r.schemes[key] = fn
}

// Schemes returns the registered custom scheme tokens sorted alphabetically.
func (r *Resolver) Schemes() []string {
	out := make([]string, 0, len(r.schemes))
	for scheme := range r.schemes {
		out = append(out, string(scheme))
	}
	sort.Strings(out)
	return out
}

// ClearCache drops every cached entry.
func (r *Resolver) ClearCache() {
	r.cache.Clear()
}

// Resolve returns the content ref points at. tree is the hierarchy ref:
// references are looked up in, normally the merged tree; it may be nil when
// no self-references are involved.
func (r *Resolver) Resolve(ctx context.Context, ref Reference, tree *Node) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return r.resolve(ctx, ref, tree, nil)
}

func (r *Resolver) resolve(ctx context.Context, ref Reference, tree *Node, visiting map[string]struct{}) (string, error) {
	start := time.Now()
	if content, ok := r.cache.Get(ref.URI); ok {
		r.logger.LogResolution(ResolutionLogEvent{
			URI:      ref.URI,
			Scheme:   ref.Scheme,
			Cached:   true,
			Duration: time.Since(start),
		})
		return content, nil
	}

	content, err := r.dispatch(ctx, ref, tree, visiting)
	err = wrapResolutionError(ref, err)
	r.logger.LogResolution(ResolutionLogEvent{
		URI:      ref.URI,
		Scheme:   ref.Scheme,
		Duration: time.Since(start),
		Err:      err,
	})
	if err != nil {
		return "", err
	}
	r.cache.Set(ref.URI, content)
	return content, nil
}

func (r *Resolver) dispatch(ctx context.Context, ref Reference, tree *Node, visiting map[string]struct{}) (string, error) {
	switch ref.Scheme {
	case SchemeFile:
		return r.resolveFile(ref)
	case SchemeHTTP, SchemeHTTPS:
		return r.resolveHTTP(ctx, ref)
	case SchemeData:
		return resolveData(ref)
	case SchemeRef:
		return r.resolveRef(ctx, ref, tree, visiting)
	}
	fn, ok := r.schemes[ref.Scheme]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, ref.Scheme)
	}
	return fn(ctx, ref)
}

func (r *Resolver) resolveFile(ref Reference) (string, error) {
	path := ref.Location()
	if path == "" {
		return "", fmt.Errorf("%w: file reference has no path", ErrNotFound)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.baseDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: file %q", ErrNotFound, path)
		}
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: file %q is not valid UTF-8", ErrFormat, path)
	}
	return string(data), nil
}

func (r *Resolver) resolveHTTP(ctx context.Context, ref Reference) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.URI, nil)
	if err != nil {
		return "", &TransportError{URI: ref.URI, Err: err}
	}
	if ref.ContentType != "" {
		req.Header.Set("Accept", ref.ContentType)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", &TransportError{URI: ref.URI, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", &TransportError{
			URI:        ref.URI,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{URI: ref.URI, Err: err}
	}
	if !utf8.Valid(body) {
		return "", fmt.Errorf("%w: response body is not valid UTF-8", ErrFormat)
	}
	return string(body), nil
}

// resolveData decodes data:[<mediatype>][;base64],<data>.
func resolveData(ref Reference) (string, error) {
	header, payload, ok := strings.Cut(ref.Location(), ",")
	if !ok {
		return "", fmt.Errorf("%w: data uri has no ',' separator", ErrFormat)
	}
	if strings.Contains(strings.ToLower(header), ";base64") {
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			decoded, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		}
		if err != nil {
			return "", fmt.Errorf("%w: data uri base64 payload: %w", ErrFormat, err)
		}
		if !utf8.Valid(decoded) {
			return "", fmt.Errorf("%w: data uri payload is not valid UTF-8", ErrFormat)
		}
		return string(decoded), nil
	}
	decoded, err := url.PathUnescape(payload)
	if err != nil {
		return "", fmt.Errorf("%w: data uri payload: %w", ErrFormat, err)
	}
	return decoded, nil
}

func (r *Resolver) resolveRef(ctx context.Context, ref Reference, tree *Node, visiting map[string]struct{}) (string, error) {
	if tree == nil {
		return "", fmt.Errorf("%w: ref reference needs a tree to resolve against", ErrUsage)
	}
	if visiting == nil {
		visiting = map[string]struct{}{}
	}
	if _, seen := visiting[ref.URI]; seen {
		return "", fmt.Errorf("%w: %q is already being resolved", ErrCircularReference, ref.URI)
	}
	visiting[ref.URI] = struct{}{}

	target := ref.Location()
	node, ok := tree.NodeAt(target)
	if !ok {
		return "", fmt.Errorf("%w: reference target %q", ErrNotFound, target)
	}
	if next, ok := node.Reference(); ok {
		return r.resolve(ctx, next, tree, visiting)
	}
	if value, ok := node.Value(); ok {
		if s, ok := value.(string); ok {
			return s, nil
		}
		return "", fmt.Errorf("%w: reference target %q holds %T, not a string", ErrUsage, target, value)
	}
	return "", fmt.Errorf("%w: reference target %q is a container", ErrUsage, target)
}
