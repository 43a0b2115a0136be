package interp

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseOutcome(t *testing.T) {
	cases := []struct {
		in   string
		want Outcome
	}{
		{"BLOCKED|socket.error|Network access denied|3.2ms", Outcome{StatusBlocked, "socket.error", "Network access denied", "3.2ms"}},
		{"ERROR|InvalidAttack|Unknown attack type", Outcome{StatusError, "InvalidAttack", "Unknown attack type", ""}},
		{"garbage", Outcome{StatusCrashed, "Exception", "garbage", ""}},
		{"A|B", Outcome{StatusCrashed, "Exception", "A|B", ""}},
	}
	for _, c := range cases {
		if diff := cmp.Diff(c.want, ParseOutcome(c.in)); diff != "" {
			t.Errorf("ParseOutcome(%q) mismatch (-want +got):\n%s", c.in, diff)
		}
	}
}

func TestOutcomeString(t *testing.T) {
	o := Outcome{Status: StatusBlocked, Kind: "OSError", Detail: "All 6 paths blocked by sandbox", Elapsed: "0.4ms"}
	if got := o.String(); got != "BLOCKED|OSError|All 6 paths blocked by sandbox|0.4ms" {
		t.Fatalf("String = %q", got)
	}
}
