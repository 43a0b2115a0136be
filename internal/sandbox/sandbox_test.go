package sandbox

import (
	"context"
	"sync"
	"testing"
)

func newSandbox(t *testing.T, opts ...Option) *Sandbox {
	t.Helper()
	ctx := context.Background()
	s, err := New(ctx, opts...)
	if err != nil {
		t.Fatalf("new sandbox: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(ctx) })
	return s
}

func TestMeasure(t *testing.T) {
	s := newSandbox(t, WithIterations(3))
	d, err := s.Measure(context.Background())
	if err != nil {
		t.Fatalf("measure: %v", err)
	}
	if d <= 0 {
		t.Fatalf("mean instantiation = %v, want > 0", d)
	}
}

func TestInvokeAdds(t *testing.T) {
	s := newSandbox(t)
	got, err := s.Invoke(context.Background(), 2, 3)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if got != 5 {
		t.Fatalf("add(2, 3) = %d", got)
	}
	got, err = s.Invoke(context.Background(), -7, 4)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if got != -3 {
		t.Fatalf("add(-7, 4) = %d", got)
	}
}

func TestConcurrentInstances(t *testing.T) {
	s := newSandbox(t)
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int32) {
			defer wg.Done()
			if _, err := s.Invoke(context.Background(), n, n); err != nil {
				errs <- err
			}
		}(int32(i))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent invoke: %v", err)
	}
}

func TestWithIterationsIgnoresNonPositive(t *testing.T) {
	s := newSandbox(t, WithIterations(0))
	if s.iterations != DefaultIterations {
		t.Fatalf("iterations = %d", s.iterations)
	}
}
