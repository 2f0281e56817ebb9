// Package machinery loads the fixed per-process machinery specification
// used by the scoring engine, following the same gopkg.in/yaml.v3
// load-once-at-startup shape the AleutianLocal config loader uses.
package machinery

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Process describes one production process's power draw, target climate
// envelope, and the hours of day it runs.
type Process struct {
	Name               string  `yaml:"name"`
	PowerKW            float64 `yaml:"power_kw"`
	DurationHours      float64 `yaml:"duration_hours"`
	OptimalTempC       float64 `yaml:"optimal_temp_c"`
	OptimalHumidityPct float64 `yaml:"optimal_humidity_pct"`
	ActiveHours        []int   `yaml:"active_hours"`
}

// Spec is the full machinery configuration, immutable for the lifetime of
// the process once loaded.
type Spec struct {
	Processes []Process `yaml:"processes"`
}

// Load reads and parses a machinery spec from path. It is called once at
// startup; there is no hot reload.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("machinery: read %s: %w", path, err)
	}
	var s Spec
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("machinery: parse %s: %w", path, err)
	}
	if len(s.Processes) == 0 {
		return nil, fmt.Errorf("machinery: %s defines no processes", path)
	}
	return &s, nil
}

// ActiveAt returns every process active during hour (0-23) of the given
// timestamp's local representation. Callers pass an hour already resolved
// to the plant's time zone.
func (s *Spec) ActiveAt(hour int) []Process {
	var active []Process
	for _, p := range s.Processes {
		for _, h := range p.ActiveHours {
			if h == hour {
				active = append(active, p)
				break
			}
		}
	}
	return active
}

// PrimaryAt returns the first process active at hour, used when the
// scoring engine needs a single representative T_opt/H_opt for the hour.
// It reports false if no process is scheduled.
func (s *Spec) PrimaryAt(hour int) (Process, bool) {
	active := s.ActiveAt(hour)
	if len(active) == 0 {
		return Process{}, false
	}
	return active[0], true
}

// TotalPowerAt sums the power draw of every process active at hour.
func (s *Spec) TotalPowerAt(hour int) float64 {
	var total float64
	for _, p := range s.ActiveAt(hour) {
		total += p.PowerKW
	}
	return total
}

// EstimatedCost returns the energy cost of running every process active at
// hour for one hour at the given price.
func (s *Spec) EstimatedCost(hour int, priceEurKWh float64) float64 {
	return s.TotalPowerAt(hour) * priceEurKWh
}

// DummySpec builds a minimal single-process spec for tests and local
// development when no config/machinery.yaml is present.
func DummySpec() *Spec {
	hours := make([]int, 24)
	for i := range hours {
		hours[i] = i
	}
	return &Spec{Processes: []Process{{
		Name:               "default",
		PowerKW:            50,
		DurationHours:      24,
		OptimalTempC:       20,
		OptimalHumidityPct: 55,
		ActiveHours:        hours,
	}}}
}
