package attacks

import (
	"strings"
	"testing"
)

func TestLookupKnownAttacks(t *testing.T) {
	for _, id := range Known() {
		c := Lookup(id)
		if c.Name == "" || c.Name == Unknown.Name {
			t.Errorf("Lookup(%q) returned default record %+v", id, c)
		}
		if c.ID != id {
			t.Errorf("Lookup(%q).ID = %q", id, c.ID)
		}
		if !IsKnown(id) {
			t.Errorf("IsKnown(%q) = false", id)
		}
	}
}

func TestLookupUnknownFallsBack(t *testing.T) {
	for _, id := range []string{"", "nonexistent_attack_xyz", "BufferOverflow", " dataExfil"} {
		c := Lookup(id)
		if c != Unknown {
			t.Errorf("Lookup(%q) = %+v, want Unknown", id, c)
		}
		if IsKnown(id) {
			t.Errorf("IsKnown(%q) = true", id)
		}
	}
	if Unknown.Name != "Unknown Attack" || Unknown.RestartMS != 1000 {
		t.Fatalf("unexpected default record %+v", Unknown)
	}
}

func TestKnownOrder(t *testing.T) {
	want := []string{BufferOverflow, DataExfil, PathTraversal, KillLeader, HeartbeatTimeout}
	got := Known()
	if len(got) != len(want) {
		t.Fatalf("Known() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Known()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestBlockedCapabilities(t *testing.T) {
	if got := Lookup(BufferOverflow).BlockedCapability; got != "malloc-large()" {
		t.Errorf("buffer overflow capability = %q", got)
	}
	if !strings.Contains(strings.ToLower(Lookup(DataExfil).Trap), "network") {
		t.Errorf("data exfil trap should mention network")
	}
	if !strings.Contains(strings.ToLower(Lookup(PathTraversal).Trap), "filesystem") {
		t.Errorf("path traversal trap should mention filesystem")
	}
}

func TestSecurityAttacksHaveRestartTime(t *testing.T) {
	for _, c := range All() {
		if c.Kind != Security {
			continue
		}
		if c.RestartMS <= 500 {
			t.Errorf("%s restart_ms = %d, want > 500", c.ID, c.RestartMS)
		}
	}
}

func TestKinds(t *testing.T) {
	if Lookup(KillLeader).Kind != Availability || Lookup(HeartbeatTimeout).Kind != Availability {
		t.Fatalf("leader attacks must be availability attacks")
	}
	if Lookup(DataExfil).Kind != Security {
		t.Fatalf("data exfil must be a security attack")
	}
	if Availability.String() != "availability" || Security.String() != "security" {
		t.Fatalf("unexpected kind names")
	}
}

func TestNamesUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, c := range All() {
		if seen[c.Name] {
			t.Fatalf("duplicate attack name %q", c.Name)
		}
		seen[c.Name] = true
	}
}

func TestScriptsBindResult(t *testing.T) {
	for _, id := range append(Known(), "bogus") {
		src := strings.TrimSpace(Script(id))
		if !strings.Contains(src, "result = ") {
			t.Errorf("script for %q does not bind result", id)
		}
	}
	if Script("bogus") != Script(KillLeader) {
		t.Errorf("attacks without a script should share the invalid-attack script")
	}
}
