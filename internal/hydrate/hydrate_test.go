package hydrate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type agentSettings struct {
	Model    string          `yaml:"model"`
	Fallback []string        `yaml:"fallback"`
	Retry    retryPolicy     `yaml:"retry"`
	Limits   tokenLimits     `yaml:"limits"`
	Tools    map[string]bool `yaml:"tools"`
}

type retryPolicy struct {
	Attempts int    `yaml:"attempts"`
	Backoff  string `yaml:"backoff"`
}

type tokenLimits struct {
	Input  int `yaml:"input"`
	Output int `yaml:"output"`
}

func (l tokenLimits) Validate() error {
	if l.Output > l.Input {
		return fmt.Errorf("output limit %d exceeds input limit %d", l.Output, l.Input)
	}
	return nil
}

func agentPayload() map[string]any {
	return map[string]any{
		"model":    "gpt",
		"fallback": []any{"small", "tiny"},
		"retry":    map[string]any{"attempts": 3, "backoff": "1s"},
		"tools":    map[string]any{"search": true},
	}
}

// retryShorthand expands `retry: "3x1s"` into the mapping form.
func retryShorthand(_ Target, payload any) (any, error) {
	settings, ok := payload.(map[string]any)
	if !ok {
		return payload, nil
	}
	short, ok := settings["retry"].(string)
	if !ok {
		return payload, nil
	}
	count, backoff, found := strings.Cut(short, "x")
	attempts, err := strconv.Atoi(count)
	if !found || err != nil {
		return nil, fmt.Errorf("retry shorthand %q is not <attempts>x<backoff>", short)
	}
	settings["retry"] = map[string]any{"attempts": attempts, "backoff": backoff}
	return settings, nil
}

func TestInto(t *testing.T) {
	tests := []struct {
		name    string
		payload func() map[string]any
		opts    Options
		want    agentSettings
		stage   string
	}{
		{
			name:    "plain",
			payload: agentPayload,
			want: agentSettings{
				Model:    "gpt",
				Fallback: []string{"small", "tiny"},
				Retry:    retryPolicy{Attempts: 3, Backoff: "1s"},
				Tools:    map[string]bool{"search": true},
			},
		},
		{
			name: "hook expands shorthand",
			payload: func() map[string]any {
				payload := agentPayload()
				payload["retry"] = "5x2s"
				return payload
			},
			opts: Options{Hooks: []Hook{nil, retryShorthand}},
			want: agentSettings{
				Model:    "gpt",
				Fallback: []string{"small", "tiny"},
				Retry:    retryPolicy{Attempts: 5, Backoff: "2s"},
				Tools:    map[string]bool{"search": true},
			},
		},
		{
			name: "hook failure",
			payload: func() map[string]any {
				payload := agentPayload()
				payload["retry"] = "often"
				return payload
			},
			opts:  Options{Hooks: []Hook{retryShorthand}},
			stage: StageHook,
		},
		{
			name: "strict rejects unknown keys",
			payload: func() map[string]any {
				payload := agentPayload()
				payload["temperature"] = 0.3
				return payload
			},
			opts:  Options{Strict: true},
			stage: StageDecode,
		},
		{
			name: "nested values are not validated",
			payload: func() map[string]any {
				payload := agentPayload()
				payload["limits"] = map[string]any{"input": 100, "output": 200}
				return payload
			},
			want: agentSettings{
				Model:    "gpt",
				Fallback: []string{"small", "tiny"},
				Retry:    retryPolicy{Attempts: 3, Backoff: "1s"},
				Limits:   tokenLimits{Input: 100, Output: 200},
				Tools:    map[string]bool{"search": true},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Into[agentSettings](Target{Path: "agent", Source: "team.yaml"}, tc.payload(), tc.opts)
			if tc.stage != "" {
				var hydrateErr *Error
				if !errors.As(err, &hydrateErr) || hydrateErr.Stage != tc.stage {
					t.Fatalf("expected %s failure, got %v", tc.stage, err)
				}
				if hydrateErr.Target.Path != "agent" {
					t.Fatalf("expected target in error, got %+v", hydrateErr.Target)
				}
				return
			}
			if err != nil {
				t.Fatalf("Into: %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("decoded mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIntoValidatesTopLevel(t *testing.T) {
	_, err := Into[tokenLimits](Target{Path: "agent.limits"}, map[string]any{"input": 10, "output": 20}, Options{})
	var hydrateErr *Error
	if !errors.As(err, &hydrateErr) || hydrateErr.Stage != StageValidate {
		t.Fatalf("expected validate failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "hydrate: validate agent.limits:") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestIntoLeavesPayloadAlone(t *testing.T) {
	payload := agentPayload()
	payload["retry"] = "2x5s"
	if _, err := Into[agentSettings](Target{Path: "agent"}, payload, Options{Hooks: []Hook{retryShorthand}}); err != nil {
		t.Fatalf("Into: %v", err)
	}
	if payload["retry"] != "2x5s" {
		t.Fatalf("expected caller payload untouched, got %v", payload["retry"])
	}
}

func TestIntoScalarsAndNil(t *testing.T) {
	attempts, err := Into[int](Target{Path: "retry.attempts"}, uint64(4), Options{})
	if err != nil || attempts != 4 {
		t.Fatalf("Into scalar = %d, %v", attempts, err)
	}
	if _, err := Into[agentSettings](Target{}, nil, Options{}); !errors.Is(err, ErrNilPayload) {
		t.Fatalf("expected ErrNilPayload, got %v", err)
	}
	if got := (Target{}).String(); got != "<root>" {
		t.Fatalf("expected <root>, got %q", got)
	}
}
