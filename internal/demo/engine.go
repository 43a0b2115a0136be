// Engine driving both sides of the demo
package demo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"triad-console/internal/attacks"
	"triad-console/internal/events"
	"triad-console/internal/interp"
	"triad-console/internal/scenario"
	"triad-console/internal/sensor"
)

var (
	// ErrBusy is returned when an attack, run-all or sensor check is in flight.
	ErrBusy = errors.New("demo: an attack is already running")

	// ErrRuntimeNotReady is returned before the interpreter finished loading.
	ErrRuntimeNotReady = errors.New("demo: interpreter runtime not ready")
)

const (
	defaultTrapDelay       = 100 * time.Millisecond
	defaultFollowerRebuild = 50 * time.Millisecond
	defaultPollInterval    = 500 * time.Millisecond
	uncaughtLimit          = 80
)

// ScriptRunner executes interpreter source and returns the bound result.
type ScriptRunner interface {
	Run(ctx context.Context, name, src string) (string, error)
}

// Instantiator measures a fresh sandbox instantiation.
type Instantiator interface {
	Measure(ctx context.Context) (time.Duration, error)
}

// SensorKernel is implemented by sandboxes that can run the sensor kernel.
type SensorKernel interface {
	Invoke(ctx context.Context, a, b int32) (int32, error)
}

// RuntimeProbe reports whether the interpreter finished loading.
type RuntimeProbe interface {
	Ready() bool
	LoadTime() time.Duration
}

type outputDrainer interface {
	Output() []string
}

// Options wires an Engine. Zero delays take the engine defaults, except
// Jitter where zero disables jitter.
type Options struct {
	SessionID               string
	Runner                  ScriptRunner
	Sandbox                 Instantiator
	Probe                   RuntimeProbe
	Scheduler               Scheduler
	Rand                    *rand.Rand
	Sensor                  *sensor.Generator
	Scenario                *scenario.Scenario
	Events                  EventWriter
	States                  StateWriter
	Logger                  *slog.Logger
	Jitter                  time.Duration
	MinRestart              time.Duration
	TrapDelay               time.Duration
	FollowerRebuild         time.Duration
	PollInterval            time.Duration
	PreferMeasuredColdStart bool
	// OnChange is called after every state change, outside the engine lock.
	OnChange func()
}

// Engine holds the demo state and runs both simulated sides. All state is
// guarded by mu; callbacks arrive through the Scheduler.
type Engine struct {
	sessionID       string
	runner          ScriptRunner
	sandbox         Instantiator
	probe           RuntimeProbe
	sched           Scheduler
	sensor          *sensor.Generator
	scenario        scenario.Scenario
	events          EventWriter
	states          StateWriter
	log             *slog.Logger
	jitter          time.Duration
	minRestart      time.Duration
	trapDelay       time.Duration
	followerRebuild time.Duration
	pollInterval    time.Duration
	preferMeasured  bool
	onChange        func()

	mu            sync.Mutex
	rng           *rand.Rand
	interpLogs    []LogEntry
	sandboxLogs   []LogEntry
	instances     [3]InstanceState
	faulty        int
	leader        int
	workers       [3]bool
	activeWorker  int
	restarting    bool
	counters      Counters
	running       bool
	runningAll    bool
	sensorRunning bool
	selected      string
	metrics       Metrics
	runID         string
	seq           int
}

// NewEngine creates an engine with all instances healthy and all workers
// alive.
func NewEngine(opts Options) *Engine {
	e := &Engine{
		sessionID:       opts.SessionID,
		runner:          opts.Runner,
		sandbox:         opts.Sandbox,
		probe:           opts.Probe,
		sched:           opts.Scheduler,
		sensor:          opts.Sensor,
		events:          opts.Events,
		states:          opts.States,
		log:             opts.Logger,
		jitter:          opts.Jitter,
		minRestart:      opts.MinRestart,
		trapDelay:       opts.TrapDelay,
		followerRebuild: opts.FollowerRebuild,
		pollInterval:    opts.PollInterval,
		preferMeasured:  opts.PreferMeasuredColdStart,
		onChange:        opts.OnChange,
		rng:             opts.Rand,
		faulty:          -1,
		workers:         [3]bool{true, true, true},
		selected:        attacks.BufferOverflow,
	}
	if e.sched == nil {
		e.sched = NewRealScheduler()
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if e.sensor == nil {
		e.sensor = sensor.NewGenerator(nil)
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	if e.minRestart == 0 {
		e.minRestart = DefaultMinRestart
	}
	if e.trapDelay == 0 {
		e.trapDelay = defaultTrapDelay
	}
	if e.followerRebuild == 0 {
		e.followerRebuild = defaultFollowerRebuild
	}
	if e.pollInterval == 0 {
		e.pollInterval = defaultPollInterval
	}
	if opts.Scenario != nil {
		e.scenario = *opts.Scenario
	} else {
		e.scenario = scenario.Default()
	}
	return e
}

// batch collects rows produced under the lock so they can be written after
// it is released.
type batch struct {
	rows  []events.LogRow
	state bool
}

func (e *Engine) logLocked(b *batch, side, level, msg string) {
	entry := LogEntry{Level: level, Message: msg}
	if side == events.SideInterpreted {
		e.interpLogs = append(e.interpLogs, entry)
	} else {
		e.sandboxLogs = append(e.sandboxLogs, entry)
	}
	e.seq++
	b.rows = append(b.rows, events.LogRow{
		SessionID: e.sessionID,
		RunID:     e.runID,
		Side:      side,
		Seq:       e.seq,
		Level:     level,
		Message:   msg,
		Timestamp: time.Now().UTC(),
	})
}

func (e *Engine) interpLocked(b *batch, level, format string, args ...any) {
	e.logLocked(b, events.SideInterpreted, level, fmt.Sprintf(format, args...))
}

func (e *Engine) sandboxLocked(b *batch, level, format string, args ...any) {
	e.logLocked(b, events.SideSandbox, level, fmt.Sprintf(format, args...))
}

// emit writes collected rows and the current state to the sinks. It must be
// called without holding mu.
func (e *Engine) emit(b *batch) {
	if e.events != nil && len(b.rows) > 0 {
		if bw, ok := e.events.(batchEventWriter); ok {
			if err := bw.WriteEvents(b.rows); err != nil {
				e.log.Error("write events", "err", err)
			}
		} else {
			for _, r := range b.rows {
				if err := e.events.WriteEvent(r); err != nil {
					e.log.Error("write event", "err", err)
					break
				}
			}
		}
	}
	if e.states != nil && (b.state || len(b.rows) > 0) {
		if err := e.states.WriteState(e.Snapshot().StateRow(time.Now())); err != nil {
			e.log.Error("write state", "err", err)
		}
	}
	if e.onChange != nil {
		e.onChange()
	}
}

// Start measures the sandbox instantiation once and polls the runtime probe
// until the interpreter is ready or ctx is done.
func (e *Engine) Start(ctx context.Context) {
	e.sched.Go(func() { e.measureInstantiate(ctx) })
	e.pollRuntime(ctx)
}

func (e *Engine) measureInstantiate(ctx context.Context) {
	if e.sandbox == nil {
		return
	}
	d, err := e.sandbox.Measure(ctx)
	b := batch{state: true}
	e.mu.Lock()
	if err != nil {
		e.sandboxLocked(&b, events.LevelError, "[ERR] Instantiate failed: %v", err)
	} else {
		e.metrics.InstantiateMS = ms(d)
	}
	e.mu.Unlock()
	if err == nil {
		e.log.Info("sandbox instantiation measured", "mean", d)
	}
	e.emit(&b)
}

func (e *Engine) pollRuntime(ctx context.Context) {
	if ctx.Err() != nil || e.probe == nil {
		return
	}
	if e.probe.Ready() {
		e.mu.Lock()
		e.metrics.RuntimeReady = true
		e.mu.Unlock()
		e.log.Info("interpreter runtime ready", "cold_start", e.probe.LoadTime())
		e.emit(&batch{state: true})
		return
	}
	e.sched.AfterFunc(e.pollInterval, func() { e.pollRuntime(ctx) })
}

// coldStartLocked is the captured interpreter load time, or zero.
func (e *Engine) coldStartLocked() time.Duration {
	if !e.metrics.RuntimeReady || e.probe == nil {
		return 0
	}
	return e.probe.LoadTime()
}

func (e *Engine) restartDelayLocked(nominal time.Duration) time.Duration {
	base := nominal
	if cs := e.coldStartLocked(); e.preferMeasured && cs > 0 {
		base = cs.Truncate(time.Millisecond)
	}
	return RestartDelay(base, DrawJitter(e.rng, e.jitter), e.minRestart)
}

func (e *Engine) seedLocked(b *batch) {
	if len(e.interpLogs) == 0 {
		e.interpLocked(b, events.LevelInfo, "$ starlark gateway.star --workers 3")
		e.interpLocked(b, events.LevelSuccess, "[OK] Worker pool: W0 active, W1/W2 standby")
		e.counters.InterpretedProcessed += 5
	}
	if len(e.sandboxLogs) == 0 {
		e.sandboxLocked(b, events.LevelInfo, "$ wazero run gateway.wasm --mode 2oo3")
		e.sandboxLocked(b, events.LevelSuccess, "[OK] 2oo3 TMR: I0, I1, I2 initialized")
		e.sandboxLocked(b, events.LevelInfo, "[METRICS] Instantiate: %.2fms (real)", e.metrics.InstantiateMS)
		e.counters.SandboxProcessed += 5
	}
}

// beginLocked applies the busy check shared by both attack paths. Only the
// steps of a run-all get past it while the run-all is in flight.
func (e *Engine) beginLocked(id string, scripted bool) error {
	if e.sensorRunning || (e.running && !(scripted && e.runningAll)) {
		return ErrBusy
	}
	if !e.runningAll {
		e.running = true
	}
	e.selected = id
	e.runID = uuid.NewString()
	return nil
}

// markFaultyLocked marks idx faulty, healing any previously faulty instance.
func (e *Engine) markFaultyLocked(idx int) {
	if e.faulty >= 0 && e.faulty != idx {
		e.instances[e.faulty] = Healthy
	}
	e.instances[idx] = Faulty
	e.faulty = idx
}

func (e *Engine) healLocked(idx int) {
	e.instances[idx] = Healthy
	if e.faulty == idx {
		e.faulty = -1
	}
}

func (e *Engine) finishLocked() {
	if !e.runningAll {
		e.running = false
	}
}

// Select records the attack shown as selected.
func (e *Engine) Select(id string) {
	e.mu.Lock()
	e.selected = id
	e.mu.Unlock()
	e.emit(&batch{})
}

// Trigger fires an attack on the path matching its kind. It returns ErrBusy
// while an attack, a run-all or a sensor check is in flight.
func (e *Engine) Trigger(ctx context.Context, id string) error {
	return e.trigger(ctx, id, false)
}

func (e *Engine) trigger(ctx context.Context, id string, scripted bool) error {
	if attacks.Lookup(id).Kind == attacks.Availability {
		return e.triggerLeaderCrash(ctx, id, scripted)
	}
	return e.triggerAttack(ctx, id, scripted)
}

// TriggerAttack runs a capability attack: the interpreted worker executes the
// attack script and crashes, the sandbox traps on one instance and is outvoted.
func (e *Engine) TriggerAttack(ctx context.Context, id string) error {
	return e.triggerAttack(ctx, id, false)
}

func (e *Engine) triggerAttack(ctx context.Context, id string, scripted bool) error {
	cfg := attacks.Lookup(id)
	var b batch
	e.mu.Lock()
	if err := e.beginLocked(id, scripted); err != nil {
		e.mu.Unlock()
		return err
	}
	e.seedLocked(&b)
	active := e.activeWorker
	e.interpLocked(&b, events.LevelWarn, "[ATTACK] Incoming: %s", cfg.Name)
	e.interpLocked(&b, events.LevelInfo, "[EXEC] Running attack script on the embedded interpreter...")
	e.sandboxLocked(&b, events.LevelWarn, "[ATTACK] Incoming: %s", cfg.Name)
	delay := e.restartDelayLocked(time.Duration(cfg.RestartMS) * time.Millisecond)
	e.mu.Unlock()
	e.emit(&b)

	e.log.Info("attack triggered", "attack", id, "restart_delay", delay)
	e.sched.Go(func() { e.runAttackScript(ctx, id, active, delay) })
	e.sched.AfterFunc(e.trapDelay, func() { e.sandboxTrap(ctx, cfg) })
	return nil
}

func (e *Engine) runAttackScript(ctx context.Context, id string, active int, delay time.Duration) {
	var out string
	var err error
	start := time.Now()
	if e.runner == nil {
		err = errors.New("no interpreter runtime")
	} else {
		out, err = e.runner.Run(ctx, id+".star", attacks.Script(id))
	}
	elapsed := time.Since(start)
	var printed []string
	if d, ok := e.runner.(outputDrainer); ok {
		printed = d.Output()
	}

	next := (active + 1) % 3
	b := batch{state: true}
	e.mu.Lock()
	for _, line := range printed {
		e.interpLocked(&b, events.LevelInfo, "%s", line)
	}
	if err != nil {
		e.interpLocked(&b, events.LevelError, "[FATAL] Uncaught: %s", truncate(err.Error(), uncaughtLimit))
		e.interpLocked(&b, events.LevelError, "W%d CRASHED - process terminated!", active)
	} else {
		o := interp.ParseOutcome(out)
		e.interpLocked(&b, events.LevelError, "[%s] %s: %s", o.Status, o.Kind, o.Detail)
		e.interpLocked(&b, events.LevelError, "W%d CRASHED after %.1fms - real interpreter exception!", active, ms(elapsed))
	}
	e.interpLocked(&b, events.LevelWarn, "[POOL] Failing over to W%d (standby → active)", next)
	e.workers = [3]bool{true, true, true}
	e.workers[active] = false
	e.activeWorker = next
	e.restarting = true
	e.mu.Unlock()
	e.emit(&b)

	if err != nil {
		e.log.Error("attack script failed", "attack", id, "err", err)
	}
	e.sched.AfterFunc(delay, func() { e.respawnWorker(active, delay) })
}

func (e *Engine) respawnWorker(crashed int, delay time.Duration) {
	b := batch{state: true}
	e.mu.Lock()
	e.workers = [3]bool{true, true, true}
	e.restarting = false
	e.counters.InterpretedDowntimeMS += uint64(delay.Milliseconds())
	e.counters.InterpretedCrashed++
	e.interpLocked(&b, events.LevelSuccess, "[OK] W%d respawned (%dms) - pool restored", crashed, delay.Milliseconds())
	e.interpLocked(&b, events.LevelInfo, "[VOTE] 3/3 workers ready - voting now possible")
	e.finishLocked()
	e.mu.Unlock()
	e.emit(&b)
}

func (e *Engine) sandboxTrap(ctx context.Context, cfg attacks.Config) {
	b := batch{state: true}
	e.mu.Lock()
	idx := e.rng.Intn(3)
	e.markFaultyLocked(idx)
	var healthy []int
	for i := 0; i < 3; i++ {
		if i != idx {
			healthy = append(healthy, i)
		}
	}
	val := 42 + e.rng.Float64()*0.5
	e.sandboxLocked(&b, events.LevelWarn, "[TRAP] I%d: %s", idx, cfg.Trap)
	e.sandboxLocked(&b, events.LevelInfo, "[WIT] attack-surface.%s blocked → capability not imported", cfg.BlockedCapability)
	e.sandboxLocked(&b, events.LevelInfo, "[OUT] I%d: TRAP | I%d: %.1f°C | I%d: %.1f°C", idx, healthy[0], val, healthy[1], val)
	e.sandboxLocked(&b, events.LevelSuccess, "[VOTE] 2/3 outputs agree (%.1f°C) - using majority value", val)
	e.sandboxLocked(&b, events.LevelSuccess, "[OK] Zero downtime - continues with valid output")
	e.counters.SandboxRejected++
	e.mu.Unlock()
	e.emit(&b)

	e.sched.Go(func() { e.rebuildInstance(ctx, idx) })
}

func (e *Engine) rebuildInstance(ctx context.Context, idx int) {
	d, err := e.measure(ctx)
	b := batch{state: true}
	e.mu.Lock()
	e.healLocked(idx)
	if err != nil {
		e.sandboxLocked(&b, events.LevelError, "[ERR] I%d rebuild measurement failed: %v", idx, err)
	} else {
		e.sandboxLocked(&b, events.LevelSuccess, "[OK] I%d rebuilt in %.2fms (real) - pool healthy", idx, ms(d))
	}
	e.mu.Unlock()
	e.emit(&b)
}

func (e *Engine) measure(ctx context.Context) (time.Duration, error) {
	if e.sandbox == nil {
		return 0, errors.New("no sandbox")
	}
	return e.sandbox.Measure(ctx)
}

// TriggerLeaderCrash takes the current leader down on both sides. The
// interpreted pool cannot elect until the dead worker respawns; the sandbox
// elects a new leader in one instantiation.
func (e *Engine) TriggerLeaderCrash(ctx context.Context, id string) error {
	return e.triggerLeaderCrash(ctx, id, false)
}

func (e *Engine) triggerLeaderCrash(ctx context.Context, id string, scripted bool) error {
	cfg := attacks.Lookup(id)
	timeout := id == attacks.HeartbeatTimeout
	var b batch
	b.state = true
	e.mu.Lock()
	if err := e.beginLocked(id, scripted); err != nil {
		e.mu.Unlock()
		return err
	}
	e.seedLocked(&b)

	leaderW := e.activeWorker
	how := "crashed"
	if timeout {
		how = "unresponsive"
	}
	e.interpLocked(&b, events.LevelError, "[RAFT] Leader W%d %s!", leaderW, how)
	e.interpLocked(&b, events.LevelWarn, "[RAFT] Starting election...")
	e.interpLocked(&b, events.LevelError, "[RAFT] Election BLOCKED - need leader respawn first")
	e.workers[leaderW] = false
	e.restarting = true
	delay := e.restartDelayLocked(time.Duration(cfg.RestartMS) * time.Millisecond)
	nextW := (leaderW + 1) % 3

	old := e.leader
	newLeader := (old + 1) % 3
	e.markFaultyLocked(old)
	how = "crashed"
	if timeout {
		how = "missed heartbeat"
	}
	e.sandboxLocked(&b, events.LevelError, "[RAFT] Leader I%d %s!", old, how)
	e.sandboxLocked(&b, events.LevelInfo, "[RAFT] Election started...")
	e.mu.Unlock()
	e.emit(&b)

	e.log.Info("leader crash triggered", "attack", id, "restart_delay", delay)
	e.sched.AfterFunc(delay, func() { e.respawnLeader(leaderW, nextW, delay) })
	e.sched.Go(func() { e.electLeader(ctx, old, newLeader) })
	return nil
}

func (e *Engine) respawnLeader(crashed, next int, delay time.Duration) {
	b := batch{state: true}
	e.mu.Lock()
	e.workers = [3]bool{true, true, true}
	e.activeWorker = next
	e.restarting = false
	e.counters.InterpretedDowntimeMS += uint64(delay.Milliseconds())
	e.counters.InterpretedCrashed++
	e.interpLocked(&b, events.LevelSuccess, "[OK] W%d respawned (%dms) - W%d elected as leader", crashed, delay.Milliseconds(), next)
	e.finishLocked()
	e.mu.Unlock()
	e.emit(&b)
}

func (e *Engine) electLeader(ctx context.Context, old, newLeader int) {
	d, err := e.measure(ctx)
	b := batch{state: true}
	e.mu.Lock()
	e.leader = newLeader
	e.counters.SandboxRejected++
	if err != nil {
		e.sandboxLocked(&b, events.LevelError, "[ERR] Election timing failed: %v", err)
	} else {
		e.sandboxLocked(&b, events.LevelSuccess, "[RAFT] I%d elected as new leader in %.2fms", newLeader, ms(d))
	}
	e.sandboxLocked(&b, events.LevelSuccess, "[OK] Zero downtime - new leader accepting writes")
	e.mu.Unlock()
	e.emit(&b)

	e.sched.AfterFunc(e.followerRebuild, func() {
		b := batch{state: true}
		e.mu.Lock()
		e.healLocked(old)
		e.sandboxLocked(&b, events.LevelInfo, "[OK] I%d rebuilt as follower - pool healthy", old)
		e.mu.Unlock()
		e.emit(&b)
	})
}

// RunAll fires the scenario's attacks in order and clears the busy flags
// once the scenario has settled.
func (e *Engine) RunAll(ctx context.Context) error {
	e.mu.Lock()
	if e.running || e.runningAll || e.sensorRunning {
		e.mu.Unlock()
		return ErrBusy
	}
	e.running = true
	e.runningAll = true
	sc := e.scenario
	e.mu.Unlock()
	e.emit(&batch{state: true})

	selectDelay := time.Duration(sc.SelectDelayMS) * time.Millisecond
	for _, f := range sc.Schedule() {
		f := f
		e.sched.AfterFunc(f.At-selectDelay, func() {
			e.Select(f.Attack)
			e.sched.AfterFunc(selectDelay, func() {
				if err := e.trigger(ctx, f.Attack, true); err != nil {
					e.log.Error("run-all step failed", "attack", f.Attack, "err", err)
				}
			})
		})
	}
	e.sched.AfterFunc(sc.Settle(), func() {
		e.mu.Lock()
		e.running = false
		e.runningAll = false
		e.mu.Unlock()
		e.log.Info("run-all finished", "scenario", sc.Name)
		e.emit(&batch{state: true})
	})
	return nil
}

// SetScenario replaces the run-all sequence. A run in progress keeps the
// sequence it started with.
func (e *Engine) SetScenario(sc *scenario.Scenario) {
	if sc == nil {
		return
	}
	e.mu.Lock()
	e.scenario = *sc
	e.mu.Unlock()
	e.log.Info("run-all scenario replaced", "scenario", sc.Name)
}

// Reset clears logs and counters and restores the pools. It is refused while
// an attack or a sensor check is running.
func (e *Engine) Reset() error {
	e.mu.Lock()
	if e.running || e.runningAll || e.sensorRunning {
		e.mu.Unlock()
		return ErrBusy
	}
	e.interpLogs = nil
	e.sandboxLogs = nil
	e.counters = Counters{}
	e.instances = [3]InstanceState{}
	e.faulty = -1
	e.leader = 0
	e.workers = [3]bool{true, true, true}
	e.activeWorker = 0
	e.restarting = false
	e.mu.Unlock()
	e.emit(&batch{state: true})
	return nil
}

// Snapshot returns a deep copy of the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := Snapshot{
		SessionID:       e.sessionID,
		InterpretedLogs: append([]LogEntry(nil), e.interpLogs...),
		SandboxLogs:     append([]LogEntry(nil), e.sandboxLogs...),
		Instances:       e.instances,
		Faulty:          e.faulty,
		Leader:          e.leader,
		Workers:         e.workers,
		ActiveWorker:    e.activeWorker,
		Restarting:      e.restarting,
		Counters:        e.counters,
		Running:         e.running,
		RunningAll:      e.runningAll,
		SensorRunning:   e.sensorRunning,
		Selected:        e.selected,
		Metrics:         e.metrics,
	}
	s.Metrics.ColdStartMS = ms(e.coldStartLocked())
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
