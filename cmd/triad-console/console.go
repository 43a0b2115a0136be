package main

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"triad-console/internal/admin"
	"triad-console/internal/demo"
)

var (
	consoleAdmin    bool
	consoleScenario string
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Run the interactive demo console",
	Long:  "console opens the tabbed terminal UI: problem statement, hardware, live demo and proof.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath, schemaPath)
		if err != nil {
			return err
		}
		// The alternate screen owns the terminal, so slog only goes to the file.
		log, closeLog, err := newLogger(cfg, nil)
		if err != nil {
			return err
		}
		defer closeLog()

		ctx, stop := signalContext(log)
		defer stop()

		a, err := newApp(ctx, cfg, log, consoleScenario, false)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		tui := demo.NewTUIWriter(demo.TUIOptions{
			Context:       ctx,
			Proof:         a.proof,
			FleetSize:     cfg.OTA.FleetSize,
			Network:       cfg.OTA.Network,
			InterpretedMB: cfg.OTA.InterpretedMB,
			WasmMB:        cfg.OTA.WasmMB,
		})
		defer tui.Close()

		ew, sw, cleanup, err := newWriters(cfg, printOnly, logFile, log, tui)
		if err != nil {
			return err
		}
		defer cleanup()

		eng := a.newEngine(ew, sw, nil)
		tui.SetController(eng)
		eng.Start(ctx)
		a.watchScenario(ctx, eng, consoleScenario)

		if consoleAdmin {
			srv := admin.NewServer(eng, a.proof, cfg.OTA, log)
			tui.SetAdminStatus(true)
			go func() {
				log.Info("admin UI listening", "addr", cfg.Admin.Addr)
				if err := srv.Start(ctx, cfg.Admin.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("admin server failed", "err", err)
					tui.SetAdminStatus(false)
				}
			}()
		}

		select {
		case <-ctx.Done():
		case <-tui.Done():
		}
		log.Info("console stopped")
		return nil
	},
}

func init() {
	consoleCmd.Flags().BoolVar(&consoleAdmin, "admin", false, "Also serve the admin HTTP API")
	consoleCmd.Flags().StringVar(&consoleScenario, "scenario", "", "Built-in run-all scenario (run-all, security, availability)")
}
