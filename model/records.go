package model

import (
	"fmt"
	"math"
)

// SimState is a snapshot of where every live element is at one instant.
type SimState struct {
	Time      float64                    `json:"time"`
	Locations map[ElementID]LocationID   `json:"locations"`
	Parents   map[ElementID]ContainerRef `json:"parents,omitempty"`
}

// LocationOf returns the location of an element in this snapshot.
func (s SimState) LocationOf(id ElementID) (LocationID, bool) {
	loc, ok := s.Locations[id]
	return loc, ok
}

// SimDemand is one occurrence of demand left unmet after satisfaction.
// Element is zero for location-level demands.
type SimDemand struct {
	Time     float64    `json:"time"`
	Location LocationID `json:"location"`
	Element  ElementID  `json:"element,omitempty"`
	Event    string     `json:"event,omitempty"`
	Demands  []Demand   `json:"demands"`
}

// TotalAmount sums the amounts of all demands in the record.
func (d SimDemand) TotalAmount() float64 {
	total := 0.0
	for _, x := range d.Demands {
		total += x.Amount
	}
	return total
}

// TotalMass sums the mass of all demands in the record.
func (d SimDemand) TotalMass() float64 {
	total := 0.0
	for _, x := range d.Demands {
		total += x.Mass()
	}
	return total
}

// SpatialError records an event whose location precondition failed. Replay
// continues after one is recorded.
type SpatialError struct {
	Time    float64   `json:"time"`
	Event   string    `json:"event"`
	Kind    EventKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *SpatialError) Error() string {
	return fmt.Sprintf("t=%.3f %s (%s): %s", e.Time, e.Event, e.Kind, e.Message)
}

// Warning flags a permissive outcome such as a capacity overage.
type Warning struct {
	Time    float64 `json:"time"`
	Event   string  `json:"event"`
	Message string  `json:"message"`
}

// SimScavenge records parts taken from a decommissioned element.
type SimScavenge struct {
	Time     float64    `json:"time"`
	Location LocationID `json:"location"`
	Part     Resource   `json:"part"`
	Amount   float64    `json:"amount"`
	Source   ElementID  `json:"source"`
	Consumer ElementID  `json:"consumer,omitempty"`
}

// SimRepair records item demand avoided by repairing failed parts.
type SimRepair struct {
	Time       float64    `json:"time"`
	Location   LocationID `json:"location"`
	Element    ElementID  `json:"element"`
	Part       Resource   `json:"part"`
	Amount     float64    `json:"amount"`
	RepairTime float64    `json:"repair_time"`
	RepairMass float64    `json:"repair_mass"`
}

// SupplyEdge identifies one transport leg and the capacity travelling on it.
type SupplyEdge struct {
	Edge        LocationID  `json:"edge"`
	Origin      LocationID  `json:"origin"`
	Destination LocationID  `json:"destination"`
	Reversed    bool        `json:"reversed,omitempty"`
	Start       float64     `json:"start"`
	End         float64     `json:"end"`
	Mission     int         `json:"mission"`
	Carriers    []ElementID `json:"carriers"`

	// Mass is the total mass of the stack that departed on the leg.
	Mass         float64 `json:"mass"`
	MaxCargoMass float64 `json:"max_cargo_mass"`
	CargoMass    float64 `json:"cargo_mass"`
	Crew         int     `json:"crew,omitempty"`
}

// RemainingCapacity returns the unused cargo mass on the leg.
func (e SupplyEdge) RemainingCapacity() float64 { return e.MaxCargoMass - e.CargoMass }

// Point returns the arrival point of the leg.
func (e SupplyEdge) Point() SupplyPoint { return SupplyPoint{Node: e.Destination, Time: e.End} }

// SupplyPoint identifies an arrival instant at a node.
type SupplyPoint struct {
	Node LocationID `json:"node"`
	Time float64    `json:"time"`
}

// RepairItem is the cost-benefit record of repairing a failed part instead
// of resupplying it.
type RepairItem struct {
	Element          ElementID `json:"element"`
	Demand           Demand    `json:"demand"`
	UnitMTTR         float64   `json:"unit_mttr"`
	UnitMassToRepair float64   `json:"unit_mass_to_repair"`
}

// MeanRepairTime is the crew time needed to repair the full amount.
func (r RepairItem) MeanRepairTime() float64 { return r.UnitMTTR * r.Demand.Amount }

// MassToRepair is the repair material mass for the full amount.
func (r RepairItem) MassToRepair() float64 { return r.UnitMassToRepair * r.Demand.Amount }

// MassSaved is the resupply mass avoided by repairing the full amount.
func (r RepairItem) MassSaved() float64 { return r.Demand.Mass() - r.MassToRepair() }

// RepairValue is repair time per unit of mass saved; lower is better. Items
// that save no mass have infinite value.
func (r RepairItem) RepairValue() float64 {
	saved := r.Demand.Resource.UnitMass - r.UnitMassToRepair
	if saved <= 0 {
		return math.Inf(1)
	}
	return r.UnitMTTR / saved
}

// RepairLedger holds the items chosen for repair, keyed by mission index.
type RepairLedger map[int][]RepairItem

// Merge adds items to a mission's ledger, summing amounts of entries that
// share an element and resource.
func (l RepairLedger) Merge(mission int, items ...RepairItem) {
	for _, item := range items {
		existing := l[mission]
		merged := false
		for i := range existing {
			if existing[i].Element == item.Element && existing[i].Demand.Resource == item.Demand.Resource {
				existing[i].Demand.Amount += item.Demand.Amount
				merged = true
				break
			}
		}
		if !merged {
			existing = append(existing, item)
		}
		l[mission] = existing
	}
}

// Clear drops a mission's ledger.
func (l RepairLedger) Clear(mission int) { delete(l, mission) }

// Clone returns a deep copy of the ledger.
func (l RepairLedger) Clone() RepairLedger {
	out := make(RepairLedger, len(l))
	for k, v := range l {
		out[k] = append([]RepairItem(nil), v...)
	}
	return out
}
