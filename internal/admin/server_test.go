package admin

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"triad-console/internal/attacks"
	"triad-console/internal/config"
	"triad-console/internal/demo"
	"triad-console/internal/ota"
	"triad-console/internal/proof"
)

type stubRunner struct{}

func (stubRunner) Run(context.Context, string, string) (string, error) {
	return "CRASHED|IndexError|list index 64 out of range|0.2ms", nil
}

type stubSandbox struct{}

func (stubSandbox) Measure(context.Context) (time.Duration, error) { return time.Millisecond, nil }

type stubProbe struct{ ready bool }

func (p stubProbe) Ready() bool             { return p.ready }
func (p stubProbe) LoadTime() time.Duration { return 20 * time.Millisecond }

type stubProof struct{ err error }

func (p stubProof) Run(context.Context) (proof.Result, error) {
	return proof.Result{Run: 1, StartupFactor: 42}, p.err
}

func newTestServer(t *testing.T, ready bool) (*Server, *demo.ManualScheduler) {
	t.Helper()
	sched := demo.NewManualScheduler()
	e := demo.NewEngine(demo.Options{
		SessionID: "admin-test",
		Runner:    stubRunner{},
		Sandbox:   stubSandbox{},
		Probe:     stubProbe{ready: ready},
		Scheduler: sched,
		Rand:      rand.New(rand.NewSource(1)),
	})
	e.Start(context.Background())
	return NewServer(e, stubProof{}, config.Default().OTA, nil), sched
}

func do(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestIndex(t *testing.T) {
	s, _ := newTestServer(t, true)
	w := do(t, s, http.MethodGet, "/")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Buffer Overflow") {
		t.Fatalf("index missing attack buttons")
	}
}

func TestAttackAndState(t *testing.T) {
	s, sched := newTestServer(t, true)
	w := do(t, s, http.MethodPost, "/attack?id="+attacks.DataExfil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d body %s", w.Code, w.Body.String())
	}
	if w = do(t, s, http.MethodPost, "/attack?id="+attacks.DataExfil); w.Code != http.StatusConflict {
		t.Fatalf("second attack status = %d, want 409", w.Code)
	}
	if w = do(t, s, http.MethodPost, "/reset"); w.Code != http.StatusConflict {
		t.Fatalf("reset while running = %d, want 409", w.Code)
	}
	sched.Advance(3 * time.Second)

	w = do(t, s, http.MethodGet, "/state")
	var snap demo.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if snap.Counters.InterpretedCrashed != 1 || snap.Counters.SandboxRejected != 1 {
		t.Fatalf("counters = %+v", snap.Counters)
	}
	if w = do(t, s, http.MethodPost, "/reset"); w.Code != http.StatusNoContent {
		t.Fatalf("reset status = %d", w.Code)
	}
}

func TestAttackRefusedDuringRunAll(t *testing.T) {
	s, sched := newTestServer(t, true)
	if w := do(t, s, http.MethodPost, "/run-all"); w.Code != http.StatusAccepted {
		t.Fatalf("run-all status = %d", w.Code)
	}
	sched.Advance(200 * time.Millisecond)
	if w := do(t, s, http.MethodPost, "/attack?id="+attacks.KillLeader); w.Code != http.StatusConflict {
		t.Fatalf("attack during run-all = %d, want 409", w.Code)
	}
	sched.Advance(1400 * time.Millisecond)
	w := do(t, s, http.MethodGet, "/state")
	var snap demo.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	dead := 0
	for _, alive := range snap.Workers {
		if !alive {
			dead++
		}
	}
	if dead > 1 {
		t.Fatalf("workers = %v, at most one may be down", snap.Workers)
	}
	sched.Advance(20 * time.Second)
	if w := do(t, s, http.MethodPost, "/attack?id="+attacks.KillLeader); w.Code != http.StatusAccepted {
		t.Fatalf("attack after run-all = %d, want 202", w.Code)
	}
	sched.Advance(3 * time.Second)
}

func TestUnknownAttack(t *testing.T) {
	s, _ := newTestServer(t, true)
	if w := do(t, s, http.MethodPost, "/attack?id=rowhammer"); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t, true)
	if w := do(t, s, http.MethodGet, "/reset"); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", w.Code)
	}
}

func TestSensorNotReady(t *testing.T) {
	s, _ := newTestServer(t, false)
	if w := do(t, s, http.MethodPost, "/sensor"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestOTA(t *testing.T) {
	s, _ := newTestServer(t, true)
	w := do(t, s, http.MethodGet, "/ota?fleet=1000&network=cellular")
	var res ota.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.YearlySavings != 59940 || res.InterpretedTimeSecs != 40 {
		t.Fatalf("result = %+v", res)
	}
	if w = do(t, s, http.MethodGet, "/ota?fleet=zero"); w.Code != http.StatusBadRequest {
		t.Fatalf("bad fleet status = %d", w.Code)
	}
}

func TestProof(t *testing.T) {
	s, _ := newTestServer(t, true)
	w := do(t, s, http.MethodPost, "/proof")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"startup_factor":42`) {
		t.Fatalf("status = %d body %s", w.Code, w.Body.String())
	}
	s.Proof = stubProof{err: proof.ErrBusy}
	if w = do(t, s, http.MethodPost, "/proof"); w.Code != http.StatusConflict {
		t.Fatalf("busy proof status = %d", w.Code)
	}
}

func TestStartShutsDown(t *testing.T) {
	s, _ := newTestServer(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("server did not shut down")
	}
}
