package model

import "time"

// Mission is an ordered list of events sharing a start date. Deleting a
// mission deletes its events; events are never shared across missions.
type Mission struct {
	Name      string
	StartDate time.Time

	Origin            LocationID
	Destination       LocationID
	ReturnOrigin      LocationID
	ReturnDestination LocationID

	Events       []Event
	DemandModels []DemandModel
}

// Scenario is the complete simulator input: the network, the element
// inventory, the missions and the repaired-items ledger.
type Scenario struct {
	Name      string
	StartDate time.Time

	Network  Network
	Elements []Element
	Missions []Mission

	Config        Config
	RepairedItems RepairLedger
}

// Element returns the definition with the given ID.
func (s *Scenario) Element(id ElementID) (*Element, bool) {
	for i := range s.Elements {
		if s.Elements[i].ID == id {
			return &s.Elements[i], true
		}
	}
	return nil, false
}
