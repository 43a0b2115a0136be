// Package sandbox measures WebAssembly instantiation with wazero. The module
// is the smallest useful sensor kernel: a single exported add(i32, i32).
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// DefaultIterations is how many instantiations Measure averages over.
const DefaultIterations = 10

// addModule is (module (func (export "add") (param i32 i32) (result i32)
// local.get 0 local.get 1 i32.add)).
var addModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x07, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f,
	0x03, 0x02, 0x01, 0x00,
	0x07, 0x07, 0x01, 0x03, 0x61, 0x64, 0x64, 0x00, 0x00,
	0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b,
}

// ErrNoExport is returned when the module lacks the add export.
var ErrNoExport = errors.New("sandbox: add export missing")

// Sandbox holds a runtime with the module compiled once.
type Sandbox struct {
	runtime    wazero.Runtime
	compiled   wazero.CompiledModule
	iterations int
}

// Option configures a Sandbox.
type Option func(*Sandbox)

// WithIterations sets the number of instantiations Measure averages.
func WithIterations(n int) Option {
	return func(s *Sandbox) {
		if n > 0 {
			s.iterations = n
		}
	}
}

// New creates a runtime and compiles the module.
func New(ctx context.Context, opts ...Option) (*Sandbox, error) {
	s := &Sandbox{iterations: DefaultIterations}
	for _, o := range opts {
		o(s)
	}
	s.runtime = wazero.NewRuntime(ctx)
	cm, err := s.runtime.CompileModule(ctx, addModule)
	if err != nil {
		_ = s.runtime.Close(ctx)
		return nil, fmt.Errorf("compile module: %w", err)
	}
	s.compiled = cm
	return s, nil
}

// Close releases the runtime and every module it compiled.
func (s *Sandbox) Close(ctx context.Context) error {
	return s.runtime.Close(ctx)
}

func (s *Sandbox) instantiate(ctx context.Context) (api.Module, error) {
	// Anonymous instances may coexist in one runtime.
	return s.runtime.InstantiateModule(ctx, s.compiled, wazero.NewModuleConfig().WithName(""))
}

// Measure returns the mean latency of instantiating a fresh module instance.
func (s *Sandbox) Measure(ctx context.Context) (time.Duration, error) {
	var total time.Duration
	for i := 0; i < s.iterations; i++ {
		start := time.Now()
		m, err := s.instantiate(ctx)
		if err != nil {
			return 0, fmt.Errorf("instantiate: %w", err)
		}
		total += time.Since(start)
		_ = m.Close(ctx)
	}
	return total / time.Duration(s.iterations), nil
}

// Invoke instantiates a fresh instance and calls add(a, b) on it.
func (s *Sandbox) Invoke(ctx context.Context, a, b int32) (int32, error) {
	m, err := s.instantiate(ctx)
	if err != nil {
		return 0, fmt.Errorf("instantiate: %w", err)
	}
	defer m.Close(ctx)
	fn := m.ExportedFunction("add")
	if fn == nil {
		return 0, ErrNoExport
	}
	res, err := fn.Call(ctx, api.EncodeI32(a), api.EncodeI32(b))
	if err != nil {
		return 0, fmt.Errorf("call add: %w", err)
	}
	return api.DecodeI32(res[0]), nil
}
