// Package attacks holds the static attack table used by the demo engine.
package attacks

// Kind separates attacks that hit the capability boundary from attacks that
// take the leader down.
type Kind int

const (
	Security Kind = iota
	Availability
)

func (k Kind) String() string {
	if k == Availability {
		return "availability"
	}
	return "security"
}

// Attack identifiers, in run-all order.
const (
	BufferOverflow   = "bufferOverflow"
	DataExfil        = "dataExfil"
	PathTraversal    = "pathTraversal"
	KillLeader       = "killLeader"
	HeartbeatTimeout = "heartbeatTimeout"
)

// Config describes how one attack plays out on both sides of the demo.
type Config struct {
	ID                string `json:"id" yaml:"id"`
	Name              string `json:"name" yaml:"name"`
	RestartMS         int    `json:"restart_ms" yaml:"restart_ms"`
	Trap              string `json:"trap" yaml:"trap"`
	BlockedCapability string `json:"blocked_capability" yaml:"blocked_capability"`
	Kind              Kind   `json:"kind" yaml:"kind"`
}

// Unknown is returned for identifiers not in the table.
var Unknown = Config{
	Name:              "Unknown Attack",
	RestartMS:         1000,
	Trap:              "trap",
	BlockedCapability: "unknown()",
	Kind:              Security,
}

var table = []Config{
	{
		ID:                BufferOverflow,
		Name:              "Buffer Overflow",
		RestartMS:         1800,
		Trap:              "out of bounds memory access",
		BlockedCapability: "malloc-large()",
		Kind:              Security,
	},
	{
		ID:                DataExfil,
		Name:              "Data Exfiltration",
		RestartMS:         2100,
		Trap:              "capability not granted: network",
		BlockedCapability: "open-socket()",
		Kind:              Security,
	},
	{
		ID:                PathTraversal,
		Name:              "Path Traversal",
		RestartMS:         1500,
		Trap:              "capability not granted: filesystem",
		BlockedCapability: "read-file()",
		Kind:              Security,
	},
	{
		ID:                KillLeader,
		Name:              "Kill Leader",
		RestartMS:         1500,
		Trap:              "leader instance terminated",
		BlockedCapability: "(N/A - crash scenario)",
		Kind:              Availability,
	},
	{
		ID:                HeartbeatTimeout,
		Name:              "Heartbeat Timeout",
		RestartMS:         2000,
		Trap:              "leader unresponsive",
		BlockedCapability: "(N/A - network scenario)",
		Kind:              Availability,
	},
}

// Lookup returns the configuration for id, or Unknown.
func Lookup(id string) Config {
	for _, c := range table {
		if c.ID == id {
			return c
		}
	}
	return Unknown
}

// IsKnown reports whether id names an attack in the table.
func IsKnown(id string) bool {
	for _, c := range table {
		if c.ID == id {
			return true
		}
	}
	return false
}

// Known returns every attack identifier in run-all order.
func Known() []string {
	ids := make([]string, len(table))
	for i, c := range table {
		ids[i] = c.ID
	}
	return ids
}

// All returns a copy of the attack table.
func All() []Config {
	out := make([]Config, len(table))
	copy(out, table)
	return out
}
