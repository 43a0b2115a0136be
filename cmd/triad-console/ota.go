package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"triad-console/internal/ota"
)

var (
	otaFleet   int
	otaNetwork string
	otaJSON    bool
)

var otaCmd = &cobra.Command{
	Use:   "ota",
	Short: "Compare OTA update cost for a fleet",
	Long:  "ota computes per-device download time, fleet bandwidth and yearly savings of shipping WASM modules instead of interpreter bundles.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath, schemaPath)
		if err != nil {
			return err
		}
		in := ota.Inputs{
			FleetSize:     cfg.OTA.FleetSize,
			Network:       ota.Lookup(cfg.OTA.Network),
			InterpretedMB: cfg.OTA.InterpretedMB,
			WasmMB:        cfg.OTA.WasmMB,
		}
		if cmd.Flags().Changed("fleet") {
			if otaFleet < 0 {
				return fmt.Errorf("fleet size must not be negative, got %d", otaFleet)
			}
			in.FleetSize = otaFleet
		}
		if cmd.Flags().Changed("network") {
			in.Network = ota.Lookup(otaNetwork)
		}
		res := ota.Calculate(in)
		if otaJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		return printOTA(cmd.OutOrStdout(), res)
	},
}

func printOTA(out io.Writer, r ota.Result) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Fleet: %d devices over %s\n\n", r.FleetSize, r.Network.Label)
	fmt.Fprintln(tw, "\tINTERPRETED\tWASM")
	fmt.Fprintf(tw, "per-device download\t%s\t%s\n", ota.FormatTime(r.InterpretedTimeSecs), ota.FormatTime(r.WasmTimeSecs))
	fmt.Fprintf(tw, "fleet bandwidth\t%s\t%s\n", ota.FormatBandwidth(r.InterpretedTotalMB), ota.FormatBandwidth(r.WasmTotalMB))
	fmt.Fprintf(tw, "cost per update\t%s\t%s\n", ota.FormatCurrency(r.InterpretedCost), ota.FormatCurrency(r.WasmCost))
	fmt.Fprintf(tw, "\nyearly savings\t%s\t(%.0fx less bandwidth)\n", ota.FormatCurrency(r.YearlySavings), r.BandwidthRatio)
	return tw.Flush()
}

func init() {
	otaCmd.Flags().IntVar(&otaFleet, "fleet", 0, "Fleet size (defaults to ota.fleet_size)")
	otaCmd.Flags().StringVar(&otaNetwork, "network", "", "Network profile: ethernet, cellular or satellite")
	otaCmd.Flags().BoolVar(&otaJSON, "json", false, "Print the result as JSON")
}
