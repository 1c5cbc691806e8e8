package hierconf

import (
	"fmt"
	"sort"

	"github.com/goccy/go-yaml"
)

// Encode renders node as a YAML document that Load reads back into an
// equivalent tree. Reference leaves are written as their URI string when the
// loader would detect it again, otherwise as a `uri:` mapping carrying the
// content type and metadata. Plain strings that happen to start with a
// reference prefix come back as references.
func Encode(node *Node) ([]byte, error) {
	if node == nil {
		return []byte{}, nil
	}
	if node.IsContainer() && node.Len() == 0 {
		return []byte{}, nil
	}
	out, err := yaml.Marshal(EncodeValue(node))
	if err != nil {
		return nil, fmt.Errorf("hierconf: encode %q: %w", node.Path, err)
	}
	return out, nil
}

// EncodeValue converts node into ordered YAML values (yaml.MapSlice, []any,
// scalars) suitable for yaml.Marshal.
func EncodeValue(node *Node) any {
	if node == nil {
		return nil
	}
	switch node.Kind() {
	case KindScalar:
		return node.scalar
	case KindReference:
		return encodeReference(node.ref)
	}
	if node.list && node.hasIndexKeys() {
		out := make([]any, 0, node.Len())
		for _, key := range node.keys {
			out = append(out, EncodeValue(node.children[key]))
		}
		return out
	}
	out := make(yaml.MapSlice, 0, node.Len())
	for _, key := range node.keys {
		out = append(out, yaml.MapItem{Key: key, Value: EncodeValue(node.children[key])})
	}
	return out
}

func encodeReference(ref Reference) any {
	if ref.ContentType == "" && len(ref.Metadata) == 0 && IsReferenceString(ref.URI) {
		return ref.URI
	}
	out := yaml.MapSlice{{Key: "uri", Value: ref.URI}}
	if ref.ContentType != "" {
		out = append(out, yaml.MapItem{Key: contentTypeKey, Value: ref.ContentType})
	}
	keys := make([]string, 0, len(ref.Metadata))
	for key := range ref.Metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		out = append(out, yaml.MapItem{Key: key, Value: ref.Metadata[key]})
	}
	return out
}
