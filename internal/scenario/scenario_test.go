package scenario

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"triad-console/internal/attacks"
)

func TestDefaultSchedule(t *testing.T) {
	s := Default()
	if err := s.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	want := []Firing{
		{At: 100 * time.Millisecond, Attack: attacks.BufferOverflow},
		{At: 3600 * time.Millisecond, Attack: attacks.DataExfil},
		{At: 7100 * time.Millisecond, Attack: attacks.PathTraversal},
		{At: 10600 * time.Millisecond, Attack: attacks.KillLeader},
		{At: 14100 * time.Millisecond, Attack: attacks.HeartbeatTimeout},
	}
	if diff := cmp.Diff(want, s.Schedule()); diff != "" {
		t.Fatalf("schedule mismatch (-want +got):\n%s", diff)
	}
	if s.Settle() != 20500*time.Millisecond {
		t.Fatalf("settle = %v", s.Settle())
	}
}

func TestLoadScenario(t *testing.T) {
	sc, err := Load("testdata/simple.yaml")
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	if sc.Name != "example" {
		t.Fatalf("unexpected name %s", sc.Name)
	}
	if sc.SpacingMS != 1000 || sc.SelectDelayMS != 100 || sc.SettleMS != 20500 {
		t.Fatalf("timings not defaulted: %+v", sc)
	}
	if len(sc.Steps) != 2 || sc.Steps[1].Attack != attacks.KillLeader {
		t.Fatalf("unexpected steps %+v", sc.Steps)
	}
}

func TestLoadRejectsUnknownAttack(t *testing.T) {
	if _, err := Load("testdata/unknown.yaml"); err == nil {
		t.Fatalf("expected error for unknown attack")
	}
}

func TestValidateEmpty(t *testing.T) {
	s := Scenario{Name: "empty"}
	if err := s.Validate(); err != ErrEmpty {
		t.Fatalf("err = %v, want ErrEmpty", err)
	}
}

func TestBuiltInSequences(t *testing.T) {
	for name, s := range BuiltIn() {
		if err := s.Validate(); err != nil {
			t.Fatalf("built-in %s invalid: %v", name, err)
		}
		last := s.Schedule()[len(s.Steps)-1].At
		if s.Settle() <= last {
			t.Fatalf("built-in %s settles at %v before last firing %v", name, s.Settle(), last)
		}
	}
}

func TestLoadShippedScenario(t *testing.T) {
	sc, err := Load("../../scenarios/run-all.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := Default()
	if diff := cmp.Diff(want.Steps, sc.Steps); diff != "" {
		t.Fatalf("shipped steps differ (-want +got):\n%s", diff)
	}
}

func TestValidateRejectsEarlySettle(t *testing.T) {
	s := Scenario{
		Name:          "short",
		SpacingMS:     3500,
		SelectDelayMS: 100,
		SettleMS:      3000,
		Steps:         steps(attacks.BufferOverflow, attacks.KillLeader),
	}
	// killLeader fires at 3600ms and respawns 1500ms later.
	if got := s.MinSettle(); got != 5100*time.Millisecond {
		t.Fatalf("MinSettle = %v, want 5.1s", got)
	}
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for settle before the last restart")
	}
	s.SettleMS = 5100
	if err := s.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}
