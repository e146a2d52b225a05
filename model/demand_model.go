package model

// DemandModelKind selects how a demand model generates demands.
type DemandModelKind int

const (
	// DemandRated scales each demand by the elapsed duration in days.
	DemandRated DemandModelKind = iota
	// DemandTimedImpulse emits its demands once per simulation run.
	DemandTimedImpulse
	// DemandSparingByMass demands spares as an annual fraction of element mass.
	DemandSparingByMass
)

// DemandModel generates resource demands over elapsed simulation time.
type DemandModel struct {
	Name string
	Kind DemandModelKind

	// Demands holds per-day rates for rated models and the impulse amounts
	// for timed impulse models.
	Demands []Demand

	// Sparing by mass: fraction of element mass demanded per year.
	PressurizedRate   float64
	UnpressurizedRate float64
	PartsListEnabled  bool
}
