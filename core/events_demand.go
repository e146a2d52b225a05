package core

import (
	"math"

	"github.com/signalsfoundry/logistics-simulator/model"
)

// executeDemand consumes demands on behalf of element (zero for a
// location-level demand) and records what is left unmet. Explicit demand
// events always leave a record, even when everything was satisfied;
// implicit ones only when some mass remains.
func (r *run) executeDemand(ev model.Event, element model.ElementID, demands []model.Demand, implicit bool) {
	if element != 0 && !r.locate(ev, element) {
		return
	}

	set := model.NewDemandSet()
	for _, d := range demands {
		if implicit && d.Amount == 0 {
			continue
		}
		set.Add(d)
	}
	if implicit && set.Len() == 0 {
		return
	}

	if r.cfg.DemandsSatisfied {
		r.satisfy(set, element, ev.Location)
	}
	if r.cfg.ScavengeSpares {
		r.scavenge(set, element, ev.Location)
	}

	if mass := set.TotalMass(); mass > 0 && r.cfg.PackingDemandsAdded {
		packing := 0.0
		for _, d := range set.Demands() {
			if d.Mass() > 0 && d.Resource.PackingFactor > 0 {
				packing += d.Amount * d.Resource.PackingFactor
			}
		}
		if packing > 0 {
			set.Add(model.Demand{Resource: model.GenericResource(model.COS5, ""), Amount: packing})
		}
	}

	if implicit && math.Abs(set.TotalMass()) <= 0 {
		return
	}
	out := set.Demands()
	for i := range out {
		out[i].Amount = r.cfg.RoundDemand(out[i].Amount)
	}
	r.result.Demands = append(r.result.Demands, model.SimDemand{
		Time:     r.now,
		Location: ev.Location,
		Element:  element,
		Event:    ev.Name,
		Demands:  out,
	})
}

// satisfy draws positive demands from on-hand stock and stores production
// (negative demands). Sources are searched in order: the element itself,
// its parent container, then every resource-holding element at the
// location in ascending ID.
func (r *run) satisfy(set *model.DemandSet, element model.ElementID, loc model.LocationID) {
	var sources []model.ElementID
	seen := make(map[model.ElementID]bool)
	add := func(id model.ElementID) {
		if !seen[id] {
			seen[id] = true
			sources = append(sources, id)
		}
	}
	if element != 0 {
		add(element)
		if parent, ok := r.world.ParentOf(element); ok && parent.IsElement() {
			add(parent.Element)
		}
	}
	for _, id := range r.world.LiveIDs() {
		st := r.world.live[id]
		if st.location == loc && r.holdsResources(st) {
			add(id)
		}
	}

	for i := 0; i < set.Len(); i++ {
		d := set.At(i)
		for _, id := range sources {
			switch {
			case d.Amount > 0:
				r.world.consume(id, d)
			case d.Amount < 0:
				r.world.produce(id, d)
			}
			if d.Amount == 0 {
				break
			}
		}
	}
}

func (r *run) holdsResources(st *elementState) bool {
	if st.def.Kind.HoldsResources() || len(st.ledger) > 0 {
		return true
	}
	return st.omsTank != nil || st.rcsTank != nil || st.fuelTank != nil
}

// scavenge takes remaining item demands from decommissioned elements at the
// same location or in the consumer's stack. Candidates are searched in
// ascending ID and their parts in declaration order. Only the run-local part
// quantities change.
func (r *run) scavenge(set *model.DemandSet, consumer model.ElementID, loc model.LocationID) {
	var top model.ElementID
	if consumer != 0 {
		top = r.world.TopLevel(consumer)
	}
	candidates := r.world.LiveIDs()

	for i := 0; i < set.Len(); i++ {
		d := set.At(i)
		if !d.Resource.IsItem() || d.Amount <= 0 {
			continue
		}
		for _, id := range candidates {
			if d.Amount <= 0 {
				break
			}
			if id == consumer {
				continue
			}
			st := r.world.live[id]
			if !st.decommissioned() {
				continue
			}
			if st.location != loc && (consumer == 0 || r.world.TopLevel(id) != top) {
				continue
			}
			for pi := range st.parts {
				part := &st.parts[pi]
				if part.Part.ID != d.Resource.ID || part.Quantity <= 0 || d.Amount <= 0 {
					continue
				}
				taken := math.Min(d.Amount, part.Quantity)
				part.Quantity -= taken
				d.Amount -= taken
				r.result.Scavenges = append(r.result.Scavenges, model.SimScavenge{
					Time:     r.now,
					Location: st.location,
					Part:     d.Resource,
					Amount:   taken,
					Source:   id,
					Consumer: consumer,
				})
			}
		}
	}
}
