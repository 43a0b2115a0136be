package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"triad-console/internal/config"
	"triad-console/internal/demo"
	"triad-console/internal/interp"
	"triad-console/internal/logging"
	"triad-console/internal/proof"
	"triad-console/internal/sandbox"
	"triad-console/internal/scenario"
)

// loadConfig reads the config file when it exists, falling back to the
// defaults, then applies environment overrides.
func loadConfig(path, schema string) (*config.Config, error) {
	var cfg *config.Config
	_, err := os.Stat(path)
	switch {
	case err == nil:
		if _, serr := os.Stat(schema); serr != nil {
			schema = ""
		}
		cfg, err = config.Load(path, schema)
		if err != nil {
			return nil, err
		}
	case errors.Is(err, fs.ErrNotExist):
		d := config.Default()
		cfg = &d
	default:
		return nil, fmt.Errorf("stat config: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	return cfg, nil
}

// newLogger sends text records to console and JSON records to the
// configured log file. With logging.journal set the journal replaces the
// console. The returned func closes the file.
func newLogger(cfg *config.Config, console io.Writer) (*slog.Logger, func(), error) {
	opts := logging.Options{Console: console, Journal: cfg.Logging.Journal, Level: logging.ParseLevel(cfg.Logging.Level)}
	if opts.Journal {
		opts.Console = nil
	}
	closeFn := func() {}
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		opts.File = f
		closeFn = func() { f.Close() }
	}
	l := logging.New(opts).With("session_id", cfg.SessionID)
	slog.SetDefault(l)
	return l, closeFn, nil
}

// signalContext is cancelled on SIGINT or SIGTERM and carries the logger.
func signalContext(log *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return logging.NewContext(ctx, log), stop
}

// loadScenario resolves a built-in scenario by name, or the configured file.
// Nil means the engine default.
func loadScenario(path, name string) (*scenario.Scenario, error) {
	if name != "" {
		sc, ok := scenario.BuiltIn()[name]
		if !ok {
			return nil, fmt.Errorf("unknown scenario %q", name)
		}
		return &sc, nil
	}
	if path == "" {
		return nil, nil
	}
	return scenario.Load(path)
}

// app holds the runtimes shared by every command that drives the engine.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	sandbox  *sandbox.Sandbox
	probe    *interp.Probe
	proof    *proof.Runner
	scenario *scenario.Scenario
}

// newApp compiles the sandbox and measures the interpreter cold start in
// parallel. Without waitRuntime the cold start is measured in the background
// and the engine polls the probe until it is ready.
func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger, scenarioName string, waitRuntime bool) (*app, error) {
	sc, err := loadScenario(cfg.Scenario, scenarioName)
	if err != nil {
		return nil, err
	}
	probe := &interp.Probe{}
	a := &app{
		cfg:      cfg,
		log:      log,
		probe:    probe,
		proof:    proof.NewRunner(probe),
		scenario: sc,
	}

	compile := func(ctx context.Context) error {
		sb, err := sandbox.New(ctx, sandbox.WithIterations(cfg.Demo.SandboxIterations))
		if err != nil {
			return err
		}
		a.sandbox = sb
		return nil
	}
	var load func(context.Context) error
	if waitRuntime {
		load = probe.Load
	}
	if err := prepareRuntimes(ctx, compile, load); err != nil {
		if a.sandbox != nil {
			a.Close(ctx)
		}
		return nil, err
	}
	if !waitRuntime {
		go func() {
			if err := probe.Load(ctx); err != nil {
				log.Warn("interpreter load failed", "err", err)
			}
		}()
	}
	return a, nil
}

// prepareRuntimes runs compile and, when given, load in parallel. The first
// failure cancels the other.
func prepareRuntimes(ctx context.Context, compile, load func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return compile(gctx) })
	if load != nil {
		g.Go(func() error { return load(gctx) })
	}
	return g.Wait()
}

func (a *app) newEngine(ew demo.EventWriter, sw demo.StateWriter, sched demo.Scheduler) *demo.Engine {
	d := a.cfg.Demo
	return demo.NewEngine(demo.Options{
		SessionID:               a.cfg.SessionID,
		Runner:                  interp.New(interp.WithMaxAlloc(d.MaxAllocMB << 20)),
		Sandbox:                 a.sandbox,
		Probe:                   a.probe,
		Scheduler:               sched,
		Scenario:                a.scenario,
		Events:                  ew,
		States:                  sw,
		Logger:                  a.log,
		Jitter:                  millis(d.JitterMS),
		MinRestart:              millis(d.MinRestartMS),
		TrapDelay:               millis(d.TrapDelayMS),
		FollowerRebuild:         millis(d.FollowerRebuildMS),
		PollInterval:            d.PollInterval(),
		PreferMeasuredColdStart: d.PreferMeasuredColdStart,
	})
}

// watchScenario hot-reloads the configured scenario file into eng. A
// built-in scenario picked by flag is not watched.
func (a *app) watchScenario(ctx context.Context, eng *demo.Engine, scenarioName string) {
	if scenarioName != "" || a.cfg.Scenario == "" {
		return
	}
	w, err := scenario.NewWatcher(a.cfg.Scenario, eng.SetScenario, a.log)
	if err != nil {
		a.log.Warn("scenario reload disabled", "err", err)
		return
	}
	go w.Run(ctx)
}

func (a *app) Close(ctx context.Context) {
	if err := a.sandbox.Close(ctx); err != nil {
		a.log.Warn("close sandbox", "err", err)
	}
}

func millis(n int) time.Duration { return time.Duration(n) * time.Millisecond }
