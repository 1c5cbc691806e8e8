// Package hydrate turns plain configuration values (maps, slices, scalars)
// into typed Go values through their yaml struct tags.
package hydrate

import (
	"errors"
	"fmt"

	"github.com/goccy/go-yaml"
)

// Target names the subtree a payload was taken from.
type Target struct {
	Path   string
	Source string
}

func (t Target) String() string {
	if t.Path == "" {
		return "<root>"
	}
	return t.Path
}

// Hook rewrites a payload before it is decoded. Hooks receive a private copy
// and may modify it in place.
type Hook func(Target, any) (any, error)

// Validator is implemented by decoded types that check themselves.
type Validator interface {
	Validate() error
}

// Options controls one Into call.
type Options struct {
	// Strict rejects mapping keys with no matching field.
	Strict bool
	Hooks  []Hook
}

// Stages reported by Error.
const (
	StageCopy     = "copy"
	StageHook     = "hook"
	StageDecode   = "decode"
	StageValidate = "validate"
)

var ErrNilPayload = errors.New("hydrate: nil payload")

// Error reports which stage failed for which target.
type Error struct {
	Target Target
	Stage  string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("hydrate: %s %s: %v", e.Stage, e.Target, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Into decodes payload into a new T. The payload is copied first, then
// passed through opts.Hooks in order. When *T or T implements Validator the
// decoded value is validated last.
func Into[T any](target Target, payload any, opts Options) (T, error) {
	var out T
	if payload == nil {
		return out, &Error{Target: target, Stage: StageCopy, Err: ErrNilPayload}
	}
	encoded, err := yaml.Marshal(payload)
	if err != nil {
		return out, &Error{Target: target, Stage: StageCopy, Err: err}
	}

	if len(opts.Hooks) > 0 {
		var current any
		if err := yaml.Unmarshal(encoded, &current); err != nil {
			return out, &Error{Target: target, Stage: StageCopy, Err: err}
		}
		for _, hook := range opts.Hooks {
			if hook == nil {
				continue
			}
			next, err := hook(target, current)
			if err != nil {
				return out, &Error{Target: target, Stage: StageHook, Err: err}
			}
			if next != nil {
				current = next
			}
		}
		if encoded, err = yaml.Marshal(current); err != nil {
			return out, &Error{Target: target, Stage: StageHook, Err: err}
		}
	}

	var decodeOpts []yaml.DecodeOption
	if opts.Strict {
		decodeOpts = append(decodeOpts, yaml.DisallowUnknownField())
	}
	if err := yaml.UnmarshalWithOptions(encoded, &out, decodeOpts...); err != nil {
		return out, &Error{Target: target, Stage: StageDecode, Err: err}
	}
	if err := validate(&out); err != nil {
		return out, &Error{Target: target, Stage: StageValidate, Err: err}
	}
	return out, nil
}

func validate(value any) error {
	if v, ok := value.(Validator); ok {
		return v.Validate()
	}
	return nil
}
