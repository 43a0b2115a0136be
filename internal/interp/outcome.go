package interp

import "strings"

// Outcome statuses reported by attack scripts.
const (
	StatusCrashed    = "CRASHED"
	StatusBlocked    = "BLOCKED"
	StatusVulnerable = "VULNERABLE"
	StatusError      = "ERROR"
)

// Outcome is the parsed form of STATUS|Kind|detail|elapsed.
type Outcome struct {
	Status  string `json:"status"`
	Kind    string `json:"kind"`
	Detail  string `json:"detail"`
	Elapsed string `json:"elapsed,omitempty"`
}

// ParseOutcome splits a pipe-delimited result. Anything with fewer than three
// fields is reported as a generic crash carrying the raw text.
func ParseOutcome(s string) Outcome {
	parts := strings.Split(s, "|")
	if len(parts) < 3 {
		return Outcome{Status: StatusCrashed, Kind: "Exception", Detail: s}
	}
	o := Outcome{Status: parts[0], Kind: parts[1], Detail: parts[2]}
	if len(parts) > 3 {
		o.Elapsed = parts[3]
	}
	return o
}

func (o Outcome) String() string {
	s := o.Status + "|" + o.Kind + "|" + o.Detail
	if o.Elapsed != "" {
		s += "|" + o.Elapsed
	}
	return s
}
