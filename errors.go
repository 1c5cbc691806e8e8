package hierconf

import (
	"errors"
	"fmt"
)

var (
	// ErrParse reports a malformed source document.
	ErrParse = errors.New("hierconf: parse error")
	// ErrNotFound reports a missing file or a missing self-reference target.
	// Path lookups never return it.
	ErrNotFound = errors.New("hierconf: not found")
	// ErrUnsupportedScheme reports a reference scheme with no built-in or
	// registered resolver.
	ErrUnsupportedScheme = errors.New("hierconf: unsupported scheme")
	// ErrFormat reports a malformed inline data payload or undecodable content.
	ErrFormat = errors.New("hierconf: format error")
	// ErrTransport reports a network failure or a non-success HTTP status.
	ErrTransport = errors.New("hierconf: transport error")
	// ErrUsage reports an API contract violation by the caller.
	ErrUsage = errors.New("hierconf: usage error")
	// ErrCircularReference reports a ref: chain that visits the same URI twice.
	ErrCircularReference = errors.New("hierconf: circular reference")

	ErrNotMerged      = fmt.Errorf("%w: configuration not merged, call Merge first", ErrUsage)
	ErrNothingToMerge = fmt.Errorf("%w: no configuration trees loaded", ErrUsage)
	ErrEmptyMerge     = fmt.Errorf("%w: cannot merge an empty list of trees", ErrUsage)
	ErrInvalidPath    = fmt.Errorf("%w: invalid path", ErrUsage)
)

// ResolutionError captures the reference being resolved alongside the
// originating error.
type ResolutionError struct {
	URI    string
	Scheme Scheme
	Err    error
}

func (e *ResolutionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("hierconf: resolve %s scheme=%s: %v", describeURI(e.URI), e.Scheme, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// TransportError describes a failed HTTP fetch. StatusCode is zero when the
// request never produced a response.
type TransportError struct {
	URI        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("hierconf: fetch %q: status %d", e.URI, e.StatusCode)
	}
	return fmt.Sprintf("hierconf: fetch %q: %v", e.URI, e.Err)
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is lets errors.Is(err, ErrTransport) match any TransportError.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

func describeURI(uri string) string {
	if uri == "" {
		return "uri=<empty>"
	}
	return fmt.Sprintf("uri=%q", uri)
}

func wrapResolutionError(ref Reference, err error) error {
	if err == nil {
		return nil
	}

	var resErr *ResolutionError
	if errors.As(err, &resErr) {
		if resErr.URI == "" || resErr.URI == ref.URI {
			if resErr.URI == "" {
				resErr.URI = ref.URI
			}
			if resErr.Scheme == "" {
				resErr.Scheme = ref.Scheme
			}
			return resErr
		}
	}

	return &ResolutionError{
		URI:    ref.URI,
		Scheme: ref.Scheme,
		Err:    err,
	}
}
