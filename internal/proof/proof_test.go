package proof

import (
	"context"
	"errors"
	"testing"
	"time"

	"triad-console/internal/interp"
)

func fixed(d time.Duration) MeasureFunc {
	return func(context.Context) (time.Duration, error) { return d, nil }
}

func TestRunPublishesColdStart(t *testing.T) {
	var probe interp.Probe
	r := &Runner{Instantiate: fixed(2 * time.Millisecond), ColdStart: fixed(1200 * time.Millisecond), Publisher: &probe}
	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Run != 1 || res.StartupFactor != 600 {
		t.Fatalf("result = %+v", res)
	}
	if probe.LoadTime() != 1200*time.Millisecond || !probe.Ready() {
		t.Fatalf("probe not updated: %v", probe.LoadTime())
	}
	res, _ = r.Run(context.Background())
	if res.Run != 2 {
		t.Fatalf("run counter = %d", res.Run)
	}
	if last, ok := r.Last(); !ok || last.Run != 2 {
		t.Fatalf("last = %+v %v", last, ok)
	}
}

func TestRunBusy(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	r := &Runner{
		Instantiate: func(context.Context) (time.Duration, error) {
			close(started)
			<-release
			return time.Millisecond, nil
		},
		ColdStart: fixed(time.Second),
	}
	done := make(chan error, 1)
	go func() {
		_, err := r.Run(context.Background())
		done <- err
	}()
	<-started
	if !r.Running() {
		t.Fatalf("runner not marked running")
	}
	if _, err := r.Run(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("second run err = %v, want ErrBusy", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}
}

func TestRunRejectsHungRuntime(t *testing.T) {
	r := &Runner{Instantiate: fixed(time.Millisecond), ColdStart: fixed(11 * time.Second)}
	if _, err := r.Run(context.Background()); !errors.Is(err, ErrHung) {
		t.Fatalf("err = %v, want ErrHung", err)
	}
}

func TestValidateNegative(t *testing.T) {
	if err := Validate(Result{Instantiate: -1}); !errors.Is(err, ErrNegative) {
		t.Fatalf("err = %v", err)
	}
}

func TestSpeedup(t *testing.T) {
	if f, ok := Speedup(1500, 3); !ok || f != 500 {
		t.Fatalf("Speedup = %v %v", f, ok)
	}
	if _, ok := Speedup(1500, 0); ok {
		t.Fatalf("zero fast time should not yield a factor")
	}
}

func TestNewRunnerRealMeasurement(t *testing.T) {
	var probe interp.Probe
	res, err := NewRunner(&probe).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Instantiate <= 0 || res.ColdStart <= 0 {
		t.Fatalf("measurements = %+v", res)
	}
	if !probe.Ready() {
		t.Fatalf("probe not ready after run")
	}
}
