package model

import (
	"fmt"
	"math"
	"strings"
)

// ItemDiscretization selects the grain at which fractional item demands are
// accumulated into whole units.
type ItemDiscretization int

const (
	DiscretizeNone ItemDiscretization = iota
	DiscretizeByElement
	DiscretizeByLocation
	DiscretizeByScenario
)

func (d ItemDiscretization) String() string {
	switch d {
	case DiscretizeByElement:
		return "element"
	case DiscretizeByLocation:
		return "location"
	case DiscretizeByScenario:
		return "scenario"
	default:
		return "none"
	}
}

// ParseItemDiscretization accepts "none", "element", "location" or
// "scenario" (case-insensitive, with an optional "by_" prefix).
func ParseItemDiscretization(s string) (ItemDiscretization, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "by_") {
	case "", "none":
		return DiscretizeNone, nil
	case "element":
		return DiscretizeByElement, nil
	case "location":
		return DiscretizeByLocation, nil
	case "scenario":
		return DiscretizeByScenario, nil
	default:
		return DiscretizeNone, fmt.Errorf("unknown item discretization %q", s)
	}
}

// Config holds the simulation flags and numeric precisions. It is
// constructed once per scenario and passed explicitly to the simulator.
type Config struct {
	ItemDiscretization ItemDiscretization
	ItemAggregation    float64 // in [0,1]

	ScavengeSpares         bool
	PackingDemandsAdded    bool
	DemandsSatisfied       bool
	EnvironmentConstrained bool
	VolumeConstrained      bool
	DetailedEVA            bool // schedule crew moves and demands for each EVA

	TimePrecision   float64 // days
	DemandPrecision float64
	MassPrecision   float64 // kg
	VolumePrecision float64 // m^3
}

// DefaultConfig returns the default flags and precisions.
func DefaultConfig() Config {
	return Config{
		ItemDiscretization: DiscretizeNone,
		ItemAggregation:    0,
		DetailedEVA:        true,
		TimePrecision:      0.05,
		DemandPrecision:    0.01,
		MassPrecision:      0.01,
		VolumePrecision:    0.000001,
	}
}

// Validate checks ranges that would otherwise produce meaningless results.
func (c Config) Validate() error {
	if c.ItemAggregation < 0 || c.ItemAggregation > 1 || math.IsNaN(c.ItemAggregation) {
		return fmt.Errorf("item aggregation %v outside [0,1]", c.ItemAggregation)
	}
	precisions := []struct {
		name  string
		value float64
	}{
		{"time", c.TimePrecision},
		{"demand", c.DemandPrecision},
		{"mass", c.MassPrecision},
		{"volume", c.VolumePrecision},
	}
	for _, p := range precisions {
		if p.value < 0 || math.IsNaN(p.value) {
			return fmt.Errorf("%s precision %v is negative", p.name, p.value)
		}
	}
	return nil
}

// RoundTime rounds t to the time precision, trimming floating point noise
// to millidays.
func (c Config) RoundTime(t float64) float64 {
	if c.TimePrecision <= 0 {
		return t
	}
	return math.Round(math.Round(t/c.TimePrecision)*c.TimePrecision*1000) / 1000
}

// RoundDemand rounds an amount to the demand precision.
func (c Config) RoundDemand(v float64) float64 { return roundTo(v, c.DemandPrecision) }

// RoundMass rounds a mass to the mass precision.
func (c Config) RoundMass(v float64) float64 { return roundTo(v, c.MassPrecision) }

// RoundVolume rounds a volume to the volume precision.
func (c Config) RoundVolume(v float64) float64 { return roundTo(v, c.VolumePrecision) }

func roundTo(v, p float64) float64 {
	if p <= 0 {
		return v
	}
	return math.Round(v/p) * p
}
