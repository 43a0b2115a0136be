// Package interp embeds the interpreted runtime the demo compares against the
// WASM sandbox. Scripts are Starlark; the host decides which capabilities the
// builtins grant.
package interp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

const defaultMaxAlloc = 64 * 1024 * 1024

var fileOptions = &syntax.FileOptions{Set: true, While: true, TopLevelControl: true, GlobalReassign: true}

// DeniedError is raised by a builtin whose capability was not granted.
type DeniedError struct {
	Capability string
	Kind       string
	Detail     string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%s access denied: %s", e.Capability, e.Detail)
}

// Runtime executes scripts with the sensor worker's builtins.
type Runtime struct {
	maxAlloc int

	mu     sync.Mutex
	output []string
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithMaxAlloc caps the allocation size alloc() will accept.
func WithMaxAlloc(n int) Option {
	return func(r *Runtime) { r.maxAlloc = n }
}

// New returns a Runtime with no network or filesystem capability.
func New(opts ...Option) *Runtime {
	r := &Runtime{maxAlloc: defaultMaxAlloc}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run executes src and returns the string bound to the global `result`.
// Evaluation errors are turned into a CRASHED or BLOCKED outcome the same way
// an exception handler in the script would report them. Syntax errors,
// cancellation and a missing result are returned as errors.
func (r *Runtime) Run(ctx context.Context, name, src string) (string, error) {
	start := time.Now()
	thread := &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			r.mu.Lock()
			r.output = append(r.output, msg)
			r.mu.Unlock()
		},
	}
	if ctx.Done() != nil {
		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-ctx.Done():
				thread.Cancel(ctx.Err().Error())
			case <-done:
			}
		}()
	}

	globals, err := starlark.ExecFileOptions(fileOptions, thread, name, src, r.builtins(start))
	if err != nil {
		var evalErr *starlark.EvalError
		if errors.As(err, &evalErr) && ctx.Err() == nil {
			return crashOutcome(evalErr, time.Since(start)).String(), nil
		}
		return "", fmt.Errorf("run %s: %w", name, err)
	}
	v, ok := globals["result"]
	if !ok {
		return "", fmt.Errorf("run %s: script did not bind result", name)
	}
	if s, ok := starlark.AsString(v); ok {
		return s, nil
	}
	return v.String(), nil
}

// Output drains the lines printed by scripts since the last call.
func (r *Runtime) Output() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.output
	r.output = nil
	return out
}

func (r *Runtime) builtins(start time.Time) starlark.StringDict {
	return starlark.StringDict{
		"alloc": starlark.NewBuiltin("alloc", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var n int
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &n); err != nil {
				return nil, err
			}
			if n > r.maxAlloc {
				return starlark.None, nil
			}
			return starlark.True, nil
		}),
		"resolve": starlark.NewBuiltin("resolve", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var host string
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &host); err != nil {
				return nil, err
			}
			return starlark.None, nil
		}),
		"connect": starlark.NewBuiltin("connect", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var addr, payload string
			if err := starlark.UnpackArgs(b.Name(), args, kwargs, "addr", &addr, "payload?", &payload); err != nil {
				return nil, err
			}
			return nil, &DeniedError{Capability: "network", Kind: "socket.error", Detail: "Network access denied"}
		}),
		"exists": starlark.NewBuiltin("exists", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var path string
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &path); err != nil {
				return nil, err
			}
			return starlark.False, nil
		}),
		"read_file": starlark.NewBuiltin("read_file", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var path string
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &path); err != nil {
				return nil, err
			}
			return nil, &DeniedError{Capability: "filesystem", Kind: "PermissionError", Detail: path + " not readable"}
		}),
		"elapsed": starlark.NewBuiltin("elapsed", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			return starlark.String(FormatMS(time.Since(start))), nil
		}),
		"now_ms": starlark.NewBuiltin("now_ms", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			return starlark.Float(float64(time.Since(start)) / float64(time.Millisecond)), nil
		}),
	}
}

func crashOutcome(err *starlark.EvalError, elapsed time.Duration) Outcome {
	var denied *DeniedError
	if errors.As(err, &denied) {
		return Outcome{Status: StatusBlocked, Kind: denied.Kind, Detail: denied.Detail, Elapsed: FormatMS(elapsed)}
	}
	msg := err.Msg
	kind := "Exception"
	switch {
	case strings.Contains(msg, "out of range"):
		kind = "IndexError"
	case strings.Contains(msg, "division by zero"):
		kind = "ZeroDivisionError"
	case strings.Contains(msg, "key") && strings.Contains(msg, "not in"):
		kind = "KeyError"
	case strings.Contains(msg, "access denied"):
		kind = "PermissionError"
	}
	return Outcome{Status: StatusCrashed, Kind: kind, Detail: msg, Elapsed: FormatMS(elapsed)}
}

// FormatMS renders a duration as milliseconds with one decimal.
func FormatMS(d time.Duration) string {
	return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
}
