// Package ota compares over-the-air update cost for a container image and a
// WASM module across a fleet.
package ota

import (
	"fmt"
	"strings"
)

const (
	// InterpretedUpdateMB is a minimal alpine + python application image.
	InterpretedUpdateMB = 50.0
	// WasmUpdateMB is a compiled sensor module.
	WasmUpdateMB = 0.05
	// UpdatesPerYear is the assumed monthly release cadence.
	UpdatesPerYear = 12
)

// Network is a link profile.
type Network struct {
	Name      string  `json:"name"`
	Label     string  `json:"label"`
	Mbps      float64 `json:"mbps"`
	CostPerMB float64 `json:"cost_per_mb"`
}

var networks = []Network{
	{Name: "ethernet", Label: "Ethernet (100 Mbps)", Mbps: 100, CostPerMB: 0.001},
	{Name: "cellular", Label: "Cellular (10 Mbps)", Mbps: 10, CostPerMB: 0.10},
	{Name: "satellite", Label: "Satellite (1 Mbps)", Mbps: 1, CostPerMB: 10},
}

// Networks returns the profiles in display order.
func Networks() []Network {
	out := make([]Network, len(networks))
	copy(out, networks)
	return out
}

// Lookup returns the named profile. Unknown names get cellular.
func Lookup(name string) Network {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, p := range networks {
		if p.Name == n {
			return p
		}
	}
	return networks[1]
}

// Next returns the profile after name, wrapping around.
func Next(name string) Network {
	cur := Lookup(name)
	for i, p := range networks {
		if p.Name == cur.Name {
			return networks[(i+1)%len(networks)]
		}
	}
	return networks[0]
}

// Inputs parameterise a calculation. Zero sizes take the package defaults.
type Inputs struct {
	FleetSize     int
	Network       Network
	InterpretedMB float64
	WasmMB        float64
}

// Result holds the derived figures.
type Result struct {
	Network             Network `json:"network"`
	FleetSize           int     `json:"fleet_size"`
	InterpretedTimeSecs float64 `json:"interpreted_time_secs"`
	WasmTimeSecs        float64 `json:"wasm_time_secs"`
	InterpretedTotalMB  float64 `json:"interpreted_total_mb"`
	WasmTotalMB         float64 `json:"wasm_total_mb"`
	InterpretedCost     float64 `json:"interpreted_cost"`
	WasmCost            float64 `json:"wasm_cost"`
	YearlySavings       float64 `json:"yearly_savings"`
	BandwidthRatio      float64 `json:"bandwidth_ratio"`
}

// DownloadTimeSecs is the transfer time of sizeMB over a mbps link.
func DownloadTimeSecs(sizeMB, mbps float64) float64 {
	return sizeMB * 8 / mbps
}

// Calculate derives per-device times, fleet bandwidth and cost.
func Calculate(in Inputs) Result {
	if in.InterpretedMB == 0 {
		in.InterpretedMB = InterpretedUpdateMB
	}
	if in.WasmMB == 0 {
		in.WasmMB = WasmUpdateMB
	}
	if in.Network.Mbps == 0 {
		in.Network = Lookup("")
	}
	fleet := float64(in.FleetSize)
	r := Result{
		Network:             in.Network,
		FleetSize:           in.FleetSize,
		InterpretedTimeSecs: DownloadTimeSecs(in.InterpretedMB, in.Network.Mbps),
		WasmTimeSecs:        DownloadTimeSecs(in.WasmMB, in.Network.Mbps),
		InterpretedTotalMB:  in.InterpretedMB * fleet,
		WasmTotalMB:         in.WasmMB * fleet,
	}
	r.InterpretedCost = r.InterpretedTotalMB * in.Network.CostPerMB
	r.WasmCost = r.WasmTotalMB * in.Network.CostPerMB
	r.YearlySavings = (r.InterpretedCost - r.WasmCost) * UpdatesPerYear
	r.BandwidthRatio = in.InterpretedMB / in.WasmMB
	return r
}

// FormatTime renders seconds as ms, s, min or hrs.
func FormatTime(secs float64) string {
	switch {
	case secs < 1:
		return fmt.Sprintf("%.0fms", secs*1000)
	case secs < 60:
		return fmt.Sprintf("%.1fs", secs)
	case secs < 3600:
		return fmt.Sprintf("%.1f min", secs/60)
	}
	return fmt.Sprintf("%.1f hrs", secs/3600)
}

// FormatCurrency renders dollars with K and M suffixes for large amounts.
func FormatCurrency(amount float64) string {
	switch {
	case amount < 1:
		return fmt.Sprintf("$%.2f", amount)
	case amount < 1000:
		return fmt.Sprintf("$%.0f", amount)
	case amount < 1_000_000:
		return fmt.Sprintf("$%.1fK", amount/1000)
	}
	return fmt.Sprintf("$%.2fM", amount/1_000_000)
}

// FormatBandwidth renders megabytes, switching to GB at 1000.
func FormatBandwidth(mb float64) string {
	if mb >= 1000 {
		return fmt.Sprintf("%.0f GB", mb/1000)
	}
	return fmt.Sprintf("%.0f MB", mb)
}
