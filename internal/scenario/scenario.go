package scenario

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"triad-console/internal/attacks"
)

// Scenario is a timed sequence of attacks fired by "run all".
type Scenario struct {
	Name          string `yaml:"name,omitempty"`
	Description   string `yaml:"description,omitempty"`
	SpacingMS     int    `yaml:"spacing_ms"`
	SelectDelayMS int    `yaml:"select_delay_ms"`
	SettleMS      int    `yaml:"settle_ms"`
	Steps         []Step `yaml:"steps"`
}

// Step fires one attack.
type Step struct {
	Attack string `yaml:"attack"`
}

// Firing is a step resolved to an offset from the start of the run.
type Firing struct {
	At     time.Duration
	Attack string
}

// ErrEmpty is returned for a scenario without steps.
var ErrEmpty = errors.New("scenario has no steps")

// Load reads a YAML scenario definition from disk. Missing timings take the
// defaults of the built-in run.
func Load(path string) (*Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	s.applyDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Scenario) applyDefaults() {
	d := Default()
	if s.SpacingMS == 0 {
		s.SpacingMS = d.SpacingMS
	}
	if s.SelectDelayMS == 0 {
		s.SelectDelayMS = d.SelectDelayMS
	}
	if s.SettleMS == 0 {
		s.SettleMS = d.SettleMS
	}
}

// Validate rejects empty scenarios, negative timings, unknown attacks and a
// settle time that would clear the run before its last restart.
func (s *Scenario) Validate() error {
	if len(s.Steps) == 0 {
		return ErrEmpty
	}
	if s.SpacingMS < 0 || s.SelectDelayMS < 0 || s.SettleMS < 0 {
		return fmt.Errorf("scenario %q: negative timing", s.Name)
	}
	for i, st := range s.Steps {
		if !attacks.IsKnown(st.Attack) {
			return fmt.Errorf("scenario %q step %d: unknown attack %q", s.Name, i, st.Attack)
		}
	}
	if min := s.MinSettle(); s.Settle() < min {
		return fmt.Errorf("scenario %q: settle_ms %d ends the run before the last restart at %dms", s.Name, s.SettleMS, min.Milliseconds())
	}
	return nil
}

// MinSettle is the earliest settle time that still covers every firing and
// the nominal restart it causes.
func (s *Scenario) MinSettle() time.Duration {
	var min time.Duration
	for _, f := range s.Schedule() {
		end := f.At + time.Duration(attacks.Lookup(f.Attack).RestartMS)*time.Millisecond
		if end > min {
			min = end
		}
	}
	return min
}

// Schedule returns the firings in order. Each attack fires SelectDelay after
// its slot opens.
func (s *Scenario) Schedule() []Firing {
	out := make([]Firing, 0, len(s.Steps))
	for i, st := range s.Steps {
		at := time.Duration(i*s.SpacingMS+s.SelectDelayMS) * time.Millisecond
		out = append(out, Firing{At: at, Attack: st.Attack})
	}
	return out
}

// Settle is when the run-all flags clear.
func (s *Scenario) Settle() time.Duration {
	return time.Duration(s.SettleMS) * time.Millisecond
}
