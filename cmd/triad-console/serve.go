package main

import (
	"os"

	"github.com/spf13/cobra"

	"triad-console/internal/admin"
)

var (
	serveAddr     string
	serveScenario string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the demo engine behind the admin HTTP API",
	Long:  "serve runs the engine headless and exposes attacks, sensor check, OTA and proof over HTTP.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath, schemaPath)
		if err != nil {
			return err
		}
		if serveAddr != "" {
			cfg.Admin.Addr = serveAddr
		}
		log, closeLog, err := newLogger(cfg, os.Stderr)
		if err != nil {
			return err
		}
		defer closeLog()

		ctx, stop := signalContext(log)
		defer stop()

		a, err := newApp(ctx, cfg, log, serveScenario, false)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		ew, sw, cleanup, err := newWriters(cfg, printOnly, logFile, log, nil)
		if err != nil {
			return err
		}
		defer cleanup()

		eng := a.newEngine(ew, sw, nil)
		eng.Start(ctx)
		a.watchScenario(ctx, eng, serveScenario)

		srv := admin.NewServer(eng, a.proof, cfg.OTA, log)
		log.Info("admin API listening", "addr", cfg.Admin.Addr)
		if err := srv.Start(ctx, cfg.Admin.Addr); err != nil {
			return err
		}
		log.Info("admin API stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (defaults to admin.addr or ADMIN_ADDR)")
	serveCmd.Flags().StringVar(&serveScenario, "scenario", "", "Built-in run-all scenario (run-all, security, availability)")
}
