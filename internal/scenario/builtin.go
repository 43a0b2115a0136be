package scenario

import "triad-console/internal/attacks"

// Default is the full sequence: the three security attacks, then the two
// availability attacks, 3.5s apart so each worker can respawn.
func Default() Scenario {
	return Scenario{
		Name:          "run-all",
		Description:   "All five attacks: security first, then availability.",
		SpacingMS:     3500,
		SelectDelayMS: 100,
		SettleMS:      20500,
		Steps:         steps(attacks.Known()...),
	}
}

// BuiltIn returns the predefined sequences by name.
func BuiltIn() map[string]Scenario {
	return map[string]Scenario{
		"run-all": Default(),
		"security": {
			Name:          "security",
			Description:   "Capability attacks only.",
			SpacingMS:     3500,
			SelectDelayMS: 100,
			SettleMS:      13000,
			Steps:         steps(attacks.BufferOverflow, attacks.DataExfil, attacks.PathTraversal),
		},
		"availability": {
			Name:          "availability",
			Description:   "Leader failures only.",
			SpacingMS:     3500,
			SelectDelayMS: 100,
			SettleMS:      6500,
			Steps:         steps(attacks.KillLeader, attacks.HeartbeatTimeout),
		},
	}
}

func steps(ids ...string) []Step {
	out := make([]Step, len(ids))
	for i, id := range ids {
		out[i] = Step{Attack: id}
	}
	return out
}
