package demo

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"triad-console/internal/attacks"
	"triad-console/internal/events"
	"triad-console/internal/proof"
)

type fakeProgram struct{ msgs []tea.Msg }

func (f *fakeProgram) Send(msg tea.Msg) { f.msgs = append(f.msgs, msg) }

type fakeController struct {
	triggered []string
	resetErr  error
	snap      Snapshot
}

func (f *fakeController) Trigger(_ context.Context, id string) error {
	f.triggered = append(f.triggered, id)
	return nil
}
func (f *fakeController) RunAll(context.Context) error      { return ErrBusy }
func (f *fakeController) SensorCheck(context.Context) error { return nil }
func (f *fakeController) Reset() error                      { return f.resetErr }
func (f *fakeController) Snapshot() Snapshot                { return f.snap }

type fakeProof struct{ res proof.Result }

func (f fakeProof) Run(context.Context) (proof.Result, error) { return f.res, nil }

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m tuiModel, msg tea.Msg) (tuiModel, tea.Cmd) {
	t.Helper()
	mi, cmd := m.Update(msg)
	return mi.(tuiModel), cmd
}

func TestTUIWriterMessages(t *testing.T) {
	p := &fakeProgram{}
	w := &TUIWriter{program: p}
	if err := w.WriteEvent(testRow); err != nil {
		t.Fatalf("WriteEvent: %v", err)
	}
	if _, ok := p.msgs[0].(eventMsg); !ok {
		t.Fatalf("expected eventMsg, got %T", p.msgs[0])
	}
	if err := w.WriteState(testState); err != nil {
		t.Fatalf("WriteState: %v", err)
	}
	if _, ok := p.msgs[1].(stateMsg); !ok {
		t.Fatalf("expected stateMsg, got %T", p.msgs[1])
	}
	w.SetAdminStatus(true)
	if _, ok := p.msgs[2].(adminMsg); !ok {
		t.Fatalf("expected adminMsg, got %T", p.msgs[2])
	}
	w.SetController(&fakeController{})
	if _, ok := p.msgs[3].(setControllerMsg); !ok {
		t.Fatalf("expected setControllerMsg, got %T", p.msgs[3])
	}
}

func TestTUIEventsWithoutController(t *testing.T) {
	m := newTUIModel(TUIOptions{})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	m, _ = update(t, m, eventMsg{testRow})
	interp := testRow
	interp.Side = events.SideInterpreted
	interp.Message = "W0 CRASHED - process terminated!"
	m, _ = update(t, m, eventMsg{interp})
	if len(m.sandboxLines) != 1 || len(m.interpLines) != 1 {
		t.Fatalf("lines = %d/%d, want 1/1", len(m.interpLines), len(m.sandboxLines))
	}
	if !strings.Contains(m.View(), "WASM 2oo3") {
		t.Fatalf("demo view missing sandbox box")
	}
}

func TestTUITabs(t *testing.T) {
	m := newTUIModel(TUIOptions{})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	if m.tab != tabDemo {
		t.Fatalf("console should open on the demo tab")
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.tab != tabProof {
		t.Fatalf("tab = %d, want proof", m.tab)
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.tab != tabProblem {
		t.Fatalf("tab should wrap to problem")
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	if m.tab != tabProof {
		t.Fatalf("shift+tab should go back")
	}
	m, _ = update(t, m, key("2"))
	if m.tab != tabHardware {
		t.Fatalf("2 should select hardware")
	}
	if !strings.Contains(m.View(), "Modbus") {
		t.Fatalf("hardware tab should describe the sensor gateway")
	}
}

func TestTUIDemoKeys(t *testing.T) {
	c := &fakeController{snap: Snapshot{
		Faulty:          -1,
		Workers:         [3]bool{true, true, true},
		InterpretedLogs: []LogEntry{{Level: events.LevelInfo, Message: "seed"}},
	}}
	m := newTUIModel(TUIOptions{})
	m, _ = update(t, m, setControllerMsg{ctrl: c})
	if len(m.interpLines) != 1 {
		t.Fatalf("snapshot logs not applied")
	}
	_, cmd := update(t, m, key("k"))
	if cmd == nil {
		t.Fatalf("expected a trigger command")
	}
	if msg := cmd(); msg != nil {
		t.Fatalf("unexpected message %v", msg)
	}
	if len(c.triggered) != 1 || c.triggered[0] != attacks.KillLeader {
		t.Fatalf("triggered = %v", c.triggered)
	}

	_, cmd = update(t, m, key("a"))
	msg := cmd()
	em, ok := msg.(errMsg)
	if !ok || !errors.Is(em.err, ErrBusy) {
		t.Fatalf("expected busy error, got %v", msg)
	}
	m, _ = update(t, m, msg)
	if !strings.Contains(m.View(), ErrBusy.Error()) {
		t.Fatalf("status line should show the error")
	}
}

func TestTUIProofTab(t *testing.T) {
	res := proof.Result{Run: 1, Instantiate: 50 * time.Microsecond, ColdStart: 5 * time.Millisecond, StartupFactor: 100}
	m := newTUIModel(TUIOptions{Proof: fakeProof{res: res}, FleetSize: 1000, Network: "cellular"})
	m, _ = update(t, m, key("4"))

	if got := m.otaResult.YearlySavings; got != 59940 {
		t.Fatalf("yearly savings = %v, want 59940", got)
	}
	m, _ = update(t, m, key("n"))
	if m.network != "satellite" {
		t.Fatalf("network = %s, want satellite", m.network)
	}

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if !m.proofRunning || cmd == nil {
		t.Fatalf("enter should start a measurement")
	}
	m, _ = update(t, m, cmd())
	if m.proofRes == nil || m.proofRes.StartupFactor != 100 {
		t.Fatalf("proof result not stored")
	}
	if !strings.Contains(m.View(), "100x faster") {
		t.Fatalf("factor not rendered")
	}
}

func TestTUIFleetEdit(t *testing.T) {
	m := newTUIModel(TUIOptions{FleetSize: 1000})
	m, _ = update(t, m, key("4"))
	m, _ = update(t, m, key("f"))
	if !m.editingFleet {
		t.Fatalf("f should open the fleet input")
	}
	m.fleetInput.SetValue("")
	m, _ = update(t, m, key("250"))
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.editingFleet || m.fleet != 250 {
		t.Fatalf("fleet = %d editing = %v", m.fleet, m.editingFleet)
	}
	if m.otaResult.FleetSize != 250 {
		t.Fatalf("ota not recalculated")
	}

	m, _ = update(t, m, key("f"))
	m.fleetInput.SetValue("-3")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.fleet != 250 || m.status == "" {
		t.Fatalf("invalid fleet should be rejected")
	}
}

func TestTUIWrapToggle(t *testing.T) {
	m := newTUIModel(TUIOptions{})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 40, Height: 30})
	long := events.LogRow{Side: events.SideInterpreted, Level: events.LevelInfo, Message: strings.Repeat("word ", 20)}
	m, _ = update(t, m, eventMsg{long})
	before := strings.Count(m.interpVP.View(), "word")
	m, _ = update(t, m, key("w"))
	if !m.wrap {
		t.Fatalf("wrap not toggled")
	}
	if after := strings.Count(m.interpVP.View(), "word"); after <= before {
		t.Fatalf("wrapping should reveal more words: %d -> %d", before, after)
	}
}
