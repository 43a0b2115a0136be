// Package proof runs the side-by-side startup measurement: a fresh WASM
// instantiation against a fresh interpreter cold start.
package proof

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"triad-console/internal/interp"
	"triad-console/internal/logging"
	"triad-console/internal/sandbox"
)

// HungThreshold is the cold start above which the runtime is considered hung.
const HungThreshold = 10 * time.Second

var (
	// ErrBusy is returned while another measurement run is in flight.
	ErrBusy = errors.New("proof: measurement already running")

	// ErrNegative flags a measurement below zero.
	ErrNegative = errors.New("proof: negative measurement")

	// ErrHung flags a cold start above HungThreshold.
	ErrHung = errors.New("proof: interpreter cold start exceeded threshold")
)

// MeasureFunc returns a single timing.
type MeasureFunc func(ctx context.Context) (time.Duration, error)

// Publisher receives the fresh cold start so later restarts use it.
type Publisher interface {
	Set(d time.Duration)
}

// Result is one measurement run.
type Result struct {
	Run           int           `json:"run"`
	Instantiate   time.Duration `json:"instantiate_ns"`
	ColdStart     time.Duration `json:"cold_start_ns"`
	StartupFactor float64       `json:"startup_factor"`
	At            time.Time     `json:"at"`
}

// Runner serialises measurement runs.
type Runner struct {
	Instantiate MeasureFunc
	ColdStart   MeasureFunc
	Publisher   Publisher

	mu      sync.Mutex
	running bool
	runs    int
	last    *Result
}

// NewRunner measures with a freshly compiled sandbox and a fresh interpreter
// each run and publishes cold starts to pub.
func NewRunner(pub Publisher) *Runner {
	return &Runner{
		Instantiate: FreshInstantiate,
		ColdStart:   interp.ColdStart,
		Publisher:   pub,
	}
}

// FreshInstantiate compiles the sandbox module from scratch and returns its
// mean instantiation time.
func FreshInstantiate(ctx context.Context) (time.Duration, error) {
	sb, err := sandbox.New(ctx)
	if err != nil {
		return 0, err
	}
	defer sb.Close(ctx)
	return sb.Measure(ctx)
}

// Run performs one measurement. It returns ErrBusy if another run is in
// flight.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return Result{}, ErrBusy
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	log := logging.FromContext(ctx)
	inst, err := r.Instantiate(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("measure instantiate: %w", err)
	}
	cold, err := r.ColdStart(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("measure cold start: %w", err)
	}
	res := Result{Instantiate: inst, ColdStart: cold, At: time.Now().UTC()}
	if err := Validate(res); err != nil {
		return Result{}, err
	}
	if f, ok := Speedup(ms(cold), ms(inst)); ok {
		res.StartupFactor = f
	}
	if r.Publisher != nil {
		r.Publisher.Set(cold)
	}

	r.mu.Lock()
	r.runs++
	res.Run = r.runs
	r.last = &res
	r.mu.Unlock()
	log.Info("proof run complete", "run", res.Run, "instantiate", inst, "cold_start", cold, "factor", res.StartupFactor)
	return res, nil
}

// Running reports whether a run is in flight.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Last returns the most recent result.
func (r *Runner) Last() (Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return Result{}, false
	}
	return *r.last, true
}

// Speedup is slowMS/fastMS. It reports false when fastMS is not positive.
func Speedup(slowMS, fastMS float64) (float64, bool) {
	if fastMS <= 0 {
		return 0, false
	}
	return slowMS / fastMS, true
}

// Validate rejects negative timings and flags a hung interpreter.
func Validate(r Result) error {
	if r.Instantiate < 0 || r.ColdStart < 0 {
		return ErrNegative
	}
	if r.ColdStart > HungThreshold {
		return fmt.Errorf("%w: %v", ErrHung, r.ColdStart)
	}
	return nil
}

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }
