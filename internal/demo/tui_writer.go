package demo

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"triad-console/internal/attacks"
	"triad-console/internal/events"
	"triad-console/internal/ota"
	"triad-console/internal/proof"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

// Controller is the engine surface the console drives.
type Controller interface {
	Trigger(ctx context.Context, id string) error
	RunAll(ctx context.Context) error
	SensorCheck(ctx context.Context) error
	Reset() error
	Snapshot() Snapshot
}

// ProofRunner performs one measurement for the Proof tab.
type ProofRunner interface {
	Run(ctx context.Context) (proof.Result, error)
}

type eventMsg struct{ events.LogRow }

type stateMsg struct{ events.StateRow }

type setControllerMsg struct{ ctrl Controller }

type adminMsg struct{ active bool }

type errMsg struct{ err error }

type proofMsg struct {
	res proof.Result
	err error
}

const (
	tabProblem = iota
	tabHardware
	tabDemo
	tabProof
)

var tabNames = []string{"Problem", "Hardware", "Demo", "Proof"}

var attackKeys = map[string]string{
	"b": attacks.BufferOverflow,
	"d": attacks.DataExfil,
	"p": attacks.PathTraversal,
	"k": attacks.KillLeader,
	"h": attacks.HeartbeatTimeout,
}

var (
	activeTabStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Padding(0, 1)
	inactiveTabStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Padding(0, 1)
	boxStyle         = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
	titleStyle       = lipgloss.NewStyle().Bold(true)
	okStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// TUIOptions configures the console model.
type TUIOptions struct {
	Context       context.Context
	Proof         ProofRunner
	FleetSize     int
	Network       string
	InterpretedMB float64
	WasmMB        float64
}

// TUIWriter renders the demo using a bubbletea TUI.
type TUIWriter struct {
	program    teaProgram
	done       chan struct{}
	sendSignal atomic.Bool
}

// NewTUIWriter starts a bubbletea program and returns a TUIWriter. When the
// user quits the process receives an interrupt.
func NewTUIWriter(opts TUIOptions) *TUIWriter {
	w := &TUIWriter{done: make(chan struct{})}
	w.sendSignal.Store(true)
	p := tea.NewProgram(newTUIModel(opts), tea.WithAltScreen())
	w.program = p
	go func() {
		_, _ = p.Run()
		close(w.done)
		if w.sendSignal.Load() {
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				_ = proc.Signal(os.Interrupt)
			}
		}
	}()
	return w
}

// WriteEvent implements EventWriter.
func (w *TUIWriter) WriteEvent(row events.LogRow) error {
	w.program.Send(eventMsg{row})
	return nil
}

// WriteState implements StateWriter.
func (w *TUIWriter) WriteState(row events.StateRow) error {
	w.program.Send(stateMsg{row})
	return nil
}

// SetController hands the engine to the console once it exists.
func (w *TUIWriter) SetController(c Controller) {
	w.program.Send(setControllerMsg{ctrl: c})
}

// SetAdminStatus updates the admin server indicator.
func (w *TUIWriter) SetAdminStatus(active bool) {
	w.program.Send(adminMsg{active: active})
}

// Done is closed when the program exits.
func (w *TUIWriter) Done() <-chan struct{} { return w.done }

// Close shuts down the TUI program and waits for cleanup.
func (w *TUIWriter) Close() error {
	w.sendSignal.Store(false)
	if w.program != nil {
		w.program.Send(tea.Quit())
	}
	if w.done != nil {
		<-w.done
	}
	return nil
}

type tuiModel struct {
	ctx   context.Context
	ctrl  Controller
	proof ProofRunner

	tab    int
	width  int
	height int

	interpVP     viewport.Model
	sandboxVP    viewport.Model
	interpLines  []string
	sandboxLines []string
	wrap         bool
	state        events.StateRow
	snap         Snapshot
	haveSnap     bool
	admin        bool

	docs  [2]string
	docVP viewport.Model

	spinner      spinner.Model
	otaTable     table.Model
	otaResult    ota.Result
	fleetInput   textinput.Model
	editingFleet bool
	fleet        int
	network      string
	interpMB     float64
	wasmMB       float64
	proofRes     *proof.Result
	proofRunning bool

	status string
}

func newTUIModel(opts TUIOptions) tuiModel {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	ti := textinput.New()
	ti.Placeholder = "fleet size"
	ti.CharLimit = 7
	ti.Width = 10

	cols := []table.Column{
		{Title: "Metric", Width: 22},
		{Title: "Container", Width: 14},
		{Title: "WASM", Width: 14},
	}
	t := table.New(table.WithColumns(cols), table.WithHeight(6))

	m := tuiModel{
		ctx:        ctx,
		proof:      opts.Proof,
		tab:        tabDemo,
		interpVP:   viewport.New(0, 0),
		sandboxVP:  viewport.New(0, 0),
		docVP:      viewport.New(0, 0),
		docs:       [2]string{problemMarkdown, hardwareMarkdown},
		spinner:    sp,
		otaTable:   t,
		fleetInput: ti,
		fleet:      opts.FleetSize,
		network:    ota.Lookup(opts.Network).Name,
		interpMB:   opts.InterpretedMB,
		wasmMB:     opts.WasmMB,
		state:      events.StateRow{Faulty: -1, Instances: "HHH", Workers: "111"},
	}
	if m.fleet <= 0 {
		m.fleet = 1000
	}
	m.recalcOTA()
	return m
}

func (m tuiModel) Init() tea.Cmd { return m.spinner.Tick }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		m.renderDocs()
		m.refreshLogs()
	case setControllerMsg:
		m.ctrl = msg.ctrl
		m.applySnapshot(m.ctrl.Snapshot())
	case eventMsg:
		if m.ctrl == nil {
			line := styleEntry(msg.Level, msg.Message)
			if msg.Side == events.SideSandbox {
				m.sandboxLines = append(m.sandboxLines, line)
			} else {
				m.interpLines = append(m.interpLines, line)
			}
			m.refreshLogs()
		}
	case stateMsg:
		m.state = msg.StateRow
		if m.ctrl != nil {
			m.applySnapshot(m.ctrl.Snapshot())
		}
	case adminMsg:
		m.admin = msg.active
	case errMsg:
		m.status = msg.err.Error()
	case proofMsg:
		m.proofRunning = false
		if msg.err != nil {
			m.status = "proof: " + msg.err.Error()
		} else {
			res := msg.res
			m.proofRes = &res
			m.status = ""
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.editingFleet {
		switch msg.Type {
		case tea.KeyEnter:
			n, err := strconv.Atoi(strings.TrimSpace(m.fleetInput.Value()))
			if err != nil || n <= 0 {
				m.status = "fleet size must be a positive integer"
			} else {
				m.fleet = n
				m.status = ""
				m.recalcOTA()
			}
			m.editingFleet = false
			m.fleetInput.Blur()
			return m, nil
		case tea.KeyEsc:
			m.editingFleet = false
			m.fleetInput.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.fleetInput, cmd = m.fleetInput.Update(msg)
		return m, cmd
	}

	key := msg.String()
	switch key {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "tab":
		m.setTab((m.tab + 1) % len(tabNames))
		return m, nil
	case "shift+tab":
		m.setTab((m.tab + len(tabNames) - 1) % len(tabNames))
		return m, nil
	case "1", "2", "3", "4":
		m.setTab(int(key[0] - '1'))
		return m, nil
	case "w":
		m.wrap = !m.wrap
		m.refreshLogs()
		return m, nil
	}

	switch m.tab {
	case tabProblem, tabHardware:
		var cmd tea.Cmd
		m.docVP, cmd = m.docVP.Update(msg)
		return m, cmd
	case tabDemo:
		if id, ok := attackKeys[key]; ok {
			return m, m.engineCmd(func(ctx context.Context, c Controller) error { return c.Trigger(ctx, id) })
		}
		switch key {
		case "a":
			return m, m.engineCmd(func(ctx context.Context, c Controller) error { return c.RunAll(ctx) })
		case "s":
			return m, m.engineCmd(func(ctx context.Context, c Controller) error { return c.SensorCheck(ctx) })
		case "r":
			return m, m.engineCmd(func(_ context.Context, c Controller) error { return c.Reset() })
		case "up", "down", "pgup", "pgdown":
			var c1, c2 tea.Cmd
			m.interpVP, c1 = m.interpVP.Update(msg)
			m.sandboxVP, c2 = m.sandboxVP.Update(msg)
			return m, tea.Batch(c1, c2)
		}
	case tabProof:
		switch key {
		case "enter":
			if m.proof == nil || m.proofRunning {
				return m, nil
			}
			m.proofRunning = true
			ctx, runner := m.ctx, m.proof
			return m, func() tea.Msg {
				res, err := runner.Run(ctx)
				return proofMsg{res: res, err: err}
			}
		case "n":
			m.network = ota.Next(m.network).Name
			m.recalcOTA()
		case "f":
			m.editingFleet = true
			m.fleetInput.SetValue(strconv.Itoa(m.fleet))
			cmd := m.fleetInput.Focus()
			return m, cmd
		}
	}
	return m, nil
}

// engineCmd runs f off the update loop and reports failures in the status line.
func (m tuiModel) engineCmd(f func(context.Context, Controller) error) tea.Cmd {
	if m.ctrl == nil {
		return nil
	}
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		if err := f(ctx, ctrl); err != nil {
			return errMsg{err: err}
		}
		return nil
	}
}

func (m *tuiModel) setTab(tab int) {
	m.tab = tab
	if tab == tabProblem || tab == tabHardware {
		m.docVP.SetContent(m.docs[tab])
		m.docVP.GotoTop()
	}
}

func (m *tuiModel) applySnapshot(s Snapshot) {
	m.snap = s
	m.haveSnap = true
	m.state = s.StateRow(time.Now())
	m.interpLines = nil
	for _, e := range s.InterpretedLogs {
		m.interpLines = append(m.interpLines, styleEntry(e.Level, e.Message))
	}
	m.sandboxLines = nil
	for _, e := range s.SandboxLogs {
		m.sandboxLines = append(m.sandboxLines, styleEntry(e.Level, e.Message))
	}
	m.refreshLogs()
}

func charAt(s string, i int) byte {
	if i < len(s) {
		return s[i]
	}
	return 0
}

func styleEntry(level, msg string) string {
	switch level {
	case events.LevelSuccess:
		return okStyle.Render(msg)
	case events.LevelWarn:
		return warnStyle.Render(msg)
	case events.LevelError:
		return errStyle.Render(msg)
	}
	return msg
}

func (m *tuiModel) resize() {
	body := m.height - 4
	if body < 8 {
		body = 8
	}
	boxW := m.width/2 - 2
	if boxW < 20 {
		boxW = 20
	}
	vpH := body - 7
	if vpH < 3 {
		vpH = 3
	}
	m.interpVP.Width, m.interpVP.Height = boxW-4, vpH
	m.sandboxVP.Width, m.sandboxVP.Height = boxW-4, vpH
	m.docVP.Width, m.docVP.Height = m.width, body
}

func (m *tuiModel) renderDocs() {
	width := m.width - 4
	if width < 20 {
		width = 20
	}
	r, err := glamour.NewTermRenderer(glamour.WithStylePath("dark"), glamour.WithWordWrap(width))
	for i, md := range []string{problemMarkdown, hardwareMarkdown} {
		if err != nil {
			m.docs[i] = md
			continue
		}
		out, rerr := r.Render(md)
		if rerr != nil {
			out = md
		}
		m.docs[i] = out
	}
	if m.tab == tabProblem || m.tab == tabHardware {
		m.docVP.SetContent(m.docs[m.tab])
	}
}

func (m *tuiModel) refreshLogs() {
	set := func(vp *viewport.Model, lines []string) {
		content := strings.Join(lines, "\n")
		if m.wrap && vp.Width > 0 {
			content = wordwrap.String(content, vp.Width)
		}
		vp.SetContent(content)
		vp.GotoBottom()
	}
	set(&m.interpVP, m.interpLines)
	set(&m.sandboxVP, m.sandboxLines)
}

func (m *tuiModel) recalcOTA() {
	r := ota.Calculate(ota.Inputs{
		FleetSize:     m.fleet,
		Network:       ota.Lookup(m.network),
		InterpretedMB: m.interpMB,
		WasmMB:        m.wasmMB,
	})
	m.otaResult = r
	m.otaTable.SetRows([]table.Row{
		{"Per-device download", ota.FormatTime(r.InterpretedTimeSecs), ota.FormatTime(r.WasmTimeSecs)},
		{"Fleet bandwidth", ota.FormatBandwidth(r.InterpretedTotalMB), ota.FormatBandwidth(r.WasmTotalMB)},
		{"Cost per update", ota.FormatCurrency(r.InterpretedCost), ota.FormatCurrency(r.WasmCost)},
		{"Yearly savings", "", ota.FormatCurrency(r.YearlySavings)},
		{"Bandwidth ratio", "", fmt.Sprintf("%.0fx", r.BandwidthRatio)},
	})
}

func (m tuiModel) View() string {
	tabs := make([]string, len(tabNames))
	for i, name := range tabNames {
		label := fmt.Sprintf("%d %s", i+1, name)
		if i == m.tab {
			tabs[i] = activeTabStyle.Render(label)
		} else {
			tabs[i] = inactiveTabStyle.Render(label)
		}
	}
	header := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
	if m.admin {
		header += "  " + okStyle.Render("admin ●")
	}

	var body string
	switch m.tab {
	case tabProblem, tabHardware:
		body = m.docVP.View()
	case tabDemo:
		body = m.demoView()
	case tabProof:
		body = m.proofView()
	}

	footer := dimStyle.Render(m.helpLine())
	if m.status != "" {
		footer = errStyle.Render(m.status) + "\n" + footer
	}
	return header + "\n\n" + body + "\n" + footer
}

func (m tuiModel) helpLine() string {
	switch m.tab {
	case tabDemo:
		return "b/d/p/k/h attack • a run all • s sensor • r reset • w wrap • tab switch • q quit"
	case tabProof:
		return "enter measure • n network • f fleet size • tab switch • q quit"
	}
	return "↑/↓ scroll • tab switch • q quit"
}

func (m tuiModel) demoView() string {
	var workers []string
	for i := 0; i < 3; i++ {
		label := fmt.Sprintf("W%d", i)
		switch {
		case charAt(m.state.Workers, i) == '0':
			workers = append(workers, errStyle.Render(label+" ✗"))
		case i == m.state.ActiveWorker:
			workers = append(workers, okStyle.Bold(true).Render(label+" ●"))
		default:
			workers = append(workers, dimStyle.Render(label+" ○"))
		}
	}
	poolLine := strings.Join(workers, "  ")
	if m.state.Restarting {
		poolLine += "  " + m.spinner.View() + warnStyle.Render("respawning")
	}

	var instances []string
	for i := 0; i < 3; i++ {
		label := fmt.Sprintf("I%d", i)
		if i == m.state.Leader {
			label += "*"
		}
		if charAt(m.state.Instances, i) == 'F' {
			instances = append(instances, errStyle.Render(label+" TRAP"))
		} else {
			instances = append(instances, okStyle.Render(label+" OK"))
		}
	}

	interpMetrics := dimStyle.Render("runtime loading...")
	sandboxMetrics := ""
	if m.haveSnap {
		if m.snap.Metrics.RuntimeReady {
			interpMetrics = fmt.Sprintf("cold start %.2fms", m.snap.Metrics.ColdStartMS)
		}
		sandboxMetrics = fmt.Sprintf("instantiate %.2fms", m.snap.Metrics.InstantiateMS)
	}

	left := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Interpreted worker pool (starlark)"),
		poolLine,
		fmt.Sprintf("processed %d  crashed %d  downtime %dms",
			m.state.InterpretedProcessed, m.state.InterpretedCrashed, m.state.InterpretedDowntime),
		interpMetrics,
		m.interpVP.View(),
	))
	right := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("WASM 2oo3 (wazero)"),
		strings.Join(instances, "  "),
		fmt.Sprintf("processed %d  rejected %d  downtime %dms",
			m.state.SandboxProcessed, m.state.SandboxRejected, m.state.SandboxDowntime),
		sandboxMetrics,
		m.sandboxVP.View(),
	))
	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}

func (m tuiModel) proofView() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Startup measurement") + "\n")
	switch {
	case m.proofRunning:
		sb.WriteString(m.spinner.View() + " measuring...\n")
	case m.proofRes != nil:
		r := m.proofRes
		fmt.Fprintf(&sb, "run %d  instantiate %.3fms  cold start %.3fms",
			r.Run, float64(r.Instantiate)/float64(time.Millisecond), float64(r.ColdStart)/float64(time.Millisecond))
		if r.StartupFactor > 0 {
			fmt.Fprintf(&sb, "  %s", okStyle.Render(fmt.Sprintf("%.0fx faster", r.StartupFactor)))
		}
		sb.WriteString("\n")
	default:
		sb.WriteString(dimStyle.Render("press enter to measure") + "\n")
	}

	sb.WriteString("\n" + titleStyle.Render("OTA update cost") + "\n")
	fleet := strconv.Itoa(m.fleet)
	if m.editingFleet {
		fleet = m.fleetInput.View()
	}
	fmt.Fprintf(&sb, "fleet %s devices  network %s\n", fleet, ota.Lookup(m.network).Label)
	sb.WriteString(m.otaTable.View())
	return sb.String()
}
