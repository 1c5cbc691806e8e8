package hierconf

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-hierconf/layering"
)

// Scheme is the lower-cased token before the first ':' of a reference URI.
// Tokens outside the built-in set are kept as-is so callers can register
// resolvers for them.
type Scheme string

const (
	SchemeFile  Scheme = "file"
	SchemeHTTP  Scheme = "http"
	SchemeHTTPS Scheme = "https"
	SchemeData  Scheme = "data"
	SchemeRef   Scheme = "ref"
)

// referencePrefixes are the string prefixes the loader treats as references.
var referencePrefixes = []string{"file://", "http://", "https://", "data:", "ref:"}

// BuiltIn reports whether s is handled without a registered resolver.
func (s Scheme) BuiltIn() bool {
	switch s {
	case SchemeFile, SchemeHTTP, SchemeHTTPS, SchemeData, SchemeRef:
		return true
	default:
		return false
	}
}

func (s Scheme) String() string {
	return string(s)
}

// Reference points at content that lives outside the tree.
type Reference struct {
	URI         string
	Scheme      Scheme
	ContentType string
	Metadata    map[string]any
}

// ParseReference normalizes uri into a Reference. Strings without a scheme
// are treated as local file paths. Unknown schemes are accepted; whether they
// can be resolved is decided at resolve time.
func ParseReference(uri string) (Reference, error) {
	if strings.TrimSpace(uri) == "" {
		return Reference{}, fmt.Errorf("%w: reference uri must not be empty", ErrParse)
	}
	token, ok := schemeToken(uri)
	if !ok {
		uri = "file://" + uri
		token = string(SchemeFile)
	}
	return Reference{
		URI:    uri,
		Scheme: Scheme(strings.ToLower(token)),
	}, nil
}

// MustParseReference is ParseReference for literals known to be valid.
func MustParseReference(uri string) Reference {
	ref, err := ParseReference(uri)
	if err != nil {
		panic(err)
	}
	return ref
}

// IsReferenceString reports whether value starts with one of the built-in
// reference prefixes.
func IsReferenceString(value string) bool {
	for _, prefix := range referencePrefixes {
		if strings.HasPrefix(value, prefix) {
			return true
		}
	}
	return false
}

// schemeToken extracts the text before the first ':' when it forms a valid
// RFC 3986 scheme (ALPHA *( ALPHA / DIGIT / "+" / "-" / "." )).
func schemeToken(uri string) (string, bool) {
	idx := strings.IndexByte(uri, ':')
	if idx <= 0 {
		return "", false
	}
	token := uri[:idx]
	// C:\docs\x.md and C:/docs/x.md are drive-letter paths.
	if idx == 1 && len(uri) > 2 && (uri[2] == '\\' || uri[2] == '/') && !strings.HasPrefix(uri[2:], "//") {
		return "", false
	}
	for i, r := range token {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return "", false
		}
	}
	return token, true
}

// Clone returns a copy whose Metadata is detached from r.
func (r Reference) Clone() Reference {
	out := r
	out.Metadata = layering.CloneMap(r.Metadata)
	return out
}

// IsZero reports whether r carries no URI.
func (r Reference) IsZero() bool {
	return r.URI == ""
}

// Location returns the URI without its scheme prefix: the file path for
// file://, the dotted target for ref:, the payload for data:.
func (r Reference) Location() string {
	rest := r.URI
	if idx := strings.IndexByte(rest, ':'); idx >= 0 {
		rest = rest[idx+1:]
	}
	switch r.Scheme {
	case SchemeFile, SchemeRef:
		return strings.TrimPrefix(rest, "//")
	case SchemeHTTP, SchemeHTTPS:
		return r.URI
	default:
		return rest
	}
}

func (r Reference) String() string {
	return fmt.Sprintf("Reference(%s)", r.URI)
}
