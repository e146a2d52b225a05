package model

// ElementID identifies an element within a scenario.
type ElementID int

// ElementKind selects the behaviour an element supports.
type ElementKind int

const (
	KindElement ElementKind = iota
	KindCrewMember
	KindResourceContainer
	KindResourceTank
	KindCarrier
	KindPropulsiveVehicle
	KindSurfaceVehicle
)

func (k ElementKind) String() string {
	switch k {
	case KindCrewMember:
		return "crew_member"
	case KindResourceContainer:
		return "resource_container"
	case KindResourceTank:
		return "resource_tank"
	case KindCarrier:
		return "carrier"
	case KindPropulsiveVehicle:
		return "propulsive_vehicle"
	case KindSurfaceVehicle:
		return "surface_vehicle"
	default:
		return "element"
	}
}

// IsCarrier reports whether elements of this kind may hold other elements.
func (k ElementKind) IsCarrier() bool {
	return k == KindCarrier || k == KindPropulsiveVehicle || k == KindSurfaceVehicle
}

// HoldsResources reports whether elements of this kind keep a resource
// ledger that Add and Transfer events may change.
func (k ElementKind) HoldsResources() bool {
	return k == KindResourceContainer || k == KindResourceTank
}

// StateType classifies operational states.
type StateType int

const (
	StateActive StateType = iota
	StateSpecial
	StateQuiescent
	StateDormant
	StateDecommissioned
)

func (t StateType) String() string {
	switch t {
	case StateSpecial:
		return "special"
	case StateQuiescent:
		return "quiescent"
	case StateDormant:
		return "dormant"
	case StateDecommissioned:
		return "decommissioned"
	default:
		return "active"
	}
}

// State is one declared operational state of an element.
type State struct {
	Name         string
	Type         StateType
	DemandModels []DemandModel
}

// PartApplication describes a part installed in an element and its failure
// and repair characteristics.
type PartApplication struct {
	Part         Resource
	MTTF         float64 // hours
	MTTR         float64 // hours per unit
	MassToRepair float64 // kg per unit
	Quantity     float64
	DutyCycle    float64
}

// Tank is a single-resource store attached to a vehicle or standing alone as
// a resource tank.
type Tank struct {
	Resource  Resource
	MaxAmount float64
	Amount    float64
}

// Element is the static definition of a physical object. Runtime placement
// and ledgers live in the simulator's world arena; definitions are never
// mutated by a run.
type Element struct {
	ID            ElementID
	Name          string
	Kind          ElementKind
	ClassOfSupply ClassOfSupply
	Environment   Environment
	Mass          float64
	Volume        float64

	Parts        []PartApplication
	States       []State
	InitialState int // index into States; ignored when States is empty

	// Contents are nested elements instantiated together with this one.
	Contents []ElementID
	// Resources is the initial resource ledger of a container.
	Resources []Demand

	MaxCargoMass     float64
	MaxCargoVolume   float64
	CargoEnvironment Environment
	MaxCrewSize      int

	AvailableTimeFraction float64 // crew members

	Tank *Tank // resource tanks

	OMSIsp  float64
	RCSIsp  float64
	OMSTank *Tank
	RCSTank *Tank

	MaxSpeed float64 // km/h, surface vehicles
	FuelTank *Tank
}

// StateIndex returns the index of the first state of type t, or -1.
func (e *Element) StateIndex(t StateType) int {
	for i, s := range e.States {
		if s.Type == t {
			return i
		}
	}
	return -1
}

// Part returns the part application for resource r.
func (e *Element) Part(r Resource) (*PartApplication, bool) {
	for i := range e.Parts {
		if e.Parts[i].Part == r {
			return &e.Parts[i], true
		}
	}
	return nil, false
}
