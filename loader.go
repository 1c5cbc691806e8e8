package hierconf

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
)

// referenceKeys are the mapping keys that turn a mapping into a reference
// declaration, in lookup order.
var referenceKeys = []string{"uri", "_uri", "ref", "_ref"}

const contentTypeKey = "content_type"

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLoaderBaseDir resolves relative file paths passed to LoadFile against
// dir.
func WithLoaderBaseDir(dir string) LoaderOption {
	return func(l *Loader) {
		l.baseDir = dir
	}
}

// Loader parses YAML documents into Node trees, detecting references.
type Loader struct {
	baseDir string
}

// NewLoader constructs a Loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// LoadFile reads and parses the YAML file at path. source defaults to path.
func (l *Loader) LoadFile(path, source string) (*Node, error) {
	if source == "" {
		source = path
	}
	if !filepath.IsAbs(path) && l.baseDir != "" {
		path = filepath.Join(l.baseDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: configuration file %q", ErrNotFound, path)
		}
		return nil, fmt.Errorf("hierconf: read %q: %w", path, err)
	}
	return l.Load(data, source)
}

// Load parses a YAML document. An empty document yields an empty root
// container.
func (l *Loader) Load(data []byte, source string) (*Node, error) {
	if strings.TrimSpace(string(data)) == "" {
		return NewContainer("", source), nil
	}
	var doc any
	if err := yaml.UnmarshalWithOptions(data, &doc, yaml.UseOrderedMap()); err != nil {
		return nil, fmt.Errorf("%w: decode %q: %w", ErrParse, source, err)
	}
	if doc == nil {
		return NewContainer("", source), nil
	}
	return l.Build(doc, source)
}

// Build converts an already decoded value (yaml.MapSlice, map[string]any,
// []any, scalars) into a tree rooted at the empty path.
func (l *Loader) Build(value any, source string) (*Node, error) {
	return buildNode(value, "", source)
}

type mapEntry struct {
	key   string
	value any
}

func buildNode(value any, path, source string) (*Node, error) {
	if entries, ok := mappingEntries(value); ok {
		if ref, ok, err := referenceFromEntries(entries, path); err != nil {
			return nil, err
		} else if ok {
			return NewReferenceNode(path, ref, source), nil
		}
		node := NewContainer(path, source)
		for _, entry := range entries {
			child, err := buildNode(entry.value, joinPath(path, entry.key), source)
			if err != nil {
				return nil, err
			}
			node.SetChild(entry.key, child)
		}
		return node, nil
	}

	switch typed := value.(type) {
	case []any:
		node := NewList(path, source)
		for i, item := range typed {
			child, err := buildNode(item, joinPath(path, strconv.Itoa(i)), source)
			if err != nil {
				return nil, err
			}
			node.Append(child)
		}
		return node, nil
	case []string:
		node := NewList(path, source)
		for i, item := range typed {
			child, err := buildNode(item, joinPath(path, strconv.Itoa(i)), source)
			if err != nil {
				return nil, err
			}
			node.Append(child)
		}
		return node, nil
	case string:
		if IsReferenceString(typed) {
			ref, err := ParseReference(typed)
			if err != nil {
				return nil, err
			}
			return NewReferenceNode(path, ref, source), nil
		}
		return NewScalar(path, typed, source), nil
	case Reference:
		return NewReferenceNode(path, typed, source), nil
	case *Node:
		clone := typed.Clone()
		rebase(clone, path)
		return clone, nil
	default:
		return NewScalar(path, typed, source), nil
	}
}

// rebase rewrites the paths of a subtree so it can be grafted at path.
func rebase(node *Node, path string) {
	node.Path = path
	for _, key := range node.keys {
		rebase(node.children[key], joinPath(path, key))
	}
}

func mappingEntries(value any) ([]mapEntry, bool) {
	switch typed := value.(type) {
	case yaml.MapSlice:
		entries := make([]mapEntry, 0, len(typed))
		for _, item := range typed {
			entries = append(entries, mapEntry{key: keyString(item.Key), value: item.Value})
		}
		return entries, true
	case map[string]any:
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		entries := make([]mapEntry, 0, len(keys))
		for _, key := range keys {
			entries = append(entries, mapEntry{key: key, value: typed[key]})
		}
		return entries, true
	case map[any]any:
		entries := make([]mapEntry, 0, len(typed))
		for key, item := range typed {
			entries = append(entries, mapEntry{key: keyString(key), value: item})
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })
		return entries, true
	default:
		return nil, false
	}
}

func keyString(key any) string {
	if s, ok := key.(string); ok {
		return s
	}
	return fmt.Sprint(key)
}

// referenceFromEntries recognizes a reference declaration: a mapping holding
// one of the reference keys. Mappings without any of them are ordinary
// containers.
func referenceFromEntries(entries []mapEntry, path string) (Reference, bool, error) {
	index := make(map[string]any, len(entries))
	for _, entry := range entries {
		index[entry.key] = entry.value
	}
	uriKey := ""
	for _, key := range referenceKeys {
		if _, ok := index[key]; ok {
			uriKey = key
			break
		}
	}
	if uriKey == "" {
		return Reference{}, false, nil
	}
	raw, ok := index[uriKey].(string)
	if !ok || strings.TrimSpace(raw) == "" {
		return Reference{}, false, fmt.Errorf("%w: reference at %q: %s must be a non-empty string", ErrParse, path, uriKey)
	}
	ref, err := ParseReference(raw)
	if err != nil {
		return Reference{}, false, err
	}
	for _, entry := range entries {
		if isReferenceKey(entry.key) {
			continue
		}
		if entry.key == contentTypeKey {
			if contentType, ok := entry.value.(string); ok {
				ref.ContentType = contentType
				continue
			}
		}
		if ref.Metadata == nil {
			ref.Metadata = map[string]any{}
		}
		ref.Metadata[entry.key] = plainValue(entry.value)
	}
	return ref, true, nil
}

func isReferenceKey(key string) bool {
	for _, candidate := range referenceKeys {
		if key == candidate {
			return true
		}
	}
	return false
}

// plainValue converts ordered YAML mappings into map[string]any so metadata
// stays independent of the decoder's types.
func plainValue(value any) any {
	if entries, ok := mappingEntries(value); ok {
		out := make(map[string]any, len(entries))
		for _, entry := range entries {
			out[entry.key] = plainValue(entry.value)
		}
		return out
	}
	if list, ok := value.([]any); ok {
		out := make([]any, len(list))
		for i, item := range list {
			out[i] = plainValue(item)
		}
		return out
	}
	return normalizeScalar(value)
}
