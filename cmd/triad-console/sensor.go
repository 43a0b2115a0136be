package main

import (
	"context"

	"github.com/spf13/cobra"

	"triad-console/internal/demo"
)

var sensorCmd = &cobra.Command{
	Use:   "sensor",
	Short: "Decode one BME280 Modbus frame on both runtimes",
	Long:  "sensor runs the sensor check: the same frame is decoded by the WASM kernel and by the interpreted driver.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHeadless(cmd.OutOrStdout(), "", func(ctx context.Context, eng *demo.Engine) error {
			return eng.SensorCheck(ctx)
		})
	},
}
