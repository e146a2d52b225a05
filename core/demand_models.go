package core

import (
	"math"

	"github.com/signalsfoundry/logistics-simulator/model"
)

const daysPerYear = 365

// generate evaluates one demand model over duration days. Timed impulse
// models fire once per run for each key. Sparing by mass needs the owning
// element and yields nothing for mission-level models.
func (r *run) generate(dm model.DemandModel, key impulseKey, duration float64, el *elementState) []model.Demand {
	switch dm.Kind {
	case model.DemandRated:
		out := make([]model.Demand, 0, len(dm.Demands))
		for _, d := range dm.Demands {
			out = append(out, model.Demand{Resource: d.Resource, Amount: d.Amount * duration})
		}
		return out
	case model.DemandTimedImpulse:
		if r.impulses[key] {
			return nil
		}
		r.impulses[key] = true
		return append([]model.Demand(nil), dm.Demands...)
	case model.DemandSparingByMass:
		if el == nil {
			return nil
		}
		return sparingByMass(dm, duration, el.def.Mass, el.parts)
	default:
		return nil
	}
}

// sparingByMass demands spares as an annual fraction of element mass. With
// the parts list enabled, the pressurized and unpressurized part masses get
// their own item demands and the remainder becomes generic maintenance.
func sparingByMass(dm model.DemandModel, duration, mass float64, parts []model.PartApplication) []model.Demand {
	var pressMass, unpressMass float64
	genericMass := mass
	var out []model.Demand

	if dm.PartsListEnabled {
		for _, p := range parts {
			if p.Quantity <= 0 {
				continue
			}
			switch p.Part.Environment {
			case model.EnvPressurized:
				pressMass += p.Quantity * p.Part.UnitMass
			case model.EnvUnpressurized:
				unpressMass += p.Quantity * p.Part.UnitMass
			}
		}
		genericMass = math.Max(0, mass-pressMass-unpressMass)
		for _, p := range parts {
			if p.Quantity <= 0 {
				continue
			}
			var amount float64
			switch p.Part.Environment {
			case model.EnvPressurized:
				amount = safeRatio(duration*dm.PressurizedRate/daysPerYear*mass*p.Quantity, genericMass+pressMass)
			case model.EnvUnpressurized:
				amount = safeRatio(duration*dm.UnpressurizedRate/daysPerYear*mass*p.Quantity, genericMass+unpressMass)
			}
			out = append(out, model.Demand{Resource: p.Part, Amount: amount})
		}
	}

	out = append(out,
		model.Demand{
			Resource: model.GenericResource(model.COS4, model.EnvUnpressurized),
			Amount:   safeRatio(duration*dm.UnpressurizedRate/daysPerYear*mass*genericMass, genericMass+unpressMass),
		},
		model.Demand{
			Resource: model.GenericResource(model.COS4, model.EnvPressurized),
			Amount:   safeRatio(duration*dm.PressurizedRate/daysPerYear*mass*genericMass, genericMass+pressMass),
		},
	)
	return out
}

// safeRatio returns 0 instead of NaN or Inf for a zero denominator.
func safeRatio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// generateElementDemands runs every live element's current-state demand
// models over the elapsed duration and executes the result as implicit
// demands at the element's location.
func (r *run) generateElementDemands(duration float64) {
	for _, id := range r.world.LiveIDs() {
		st, ok := r.world.live[id]
		if !ok {
			continue
		}
		state := st.currentState()
		if state == nil || len(state.DemandModels) == 0 {
			continue
		}
		set := model.NewDemandSet()
		for i, dm := range state.DemandModels {
			key := impulseKey{element: id, state: st.state, model: i}
			for _, d := range r.generate(dm, key, duration, st) {
				set.Add(d)
			}
		}
		demands := r.repair(r.discretize(set.Demands(), id, st.location), id, st.location)
		if len(demands) == 0 {
			continue
		}
		ev := model.Event{
			Name:     "Demand Event for " + st.def.Name,
			Location: st.location,
			Payload:  model.DemandPayload{Element: id, Demands: demands},
		}
		r.executeDemand(ev, id, demands, true)
	}
}

// discretize rounds item demands to whole units by accumulating fractional
// amounts per grain. A unit is emitted once the accumulator reaches the
// aggregation point.
func (r *run) discretize(demands []model.Demand, element model.ElementID, loc model.LocationID) []model.Demand {
	mode := r.cfg.ItemDiscretization
	if mode == model.DiscretizeNone || (mode == model.DiscretizeByElement && element == 0) {
		return cleanDemands(demands)
	}
	for i := range demands {
		d := &demands[i]
		if !d.Resource.IsItem() {
			continue
		}
		key := grainKey{item: d.Resource.ID}
		switch mode {
		case model.DiscretizeByElement:
			key.element = element
		case model.DiscretizeByLocation:
			key.location = loc
		}
		acc := r.grains[key] + d.Amount
		d.Amount = 0
		for acc >= r.cfg.ItemAggregation && acc > 0 {
			d.Amount++
			acc--
		}
		r.grains[key] = acc
	}
	return cleanDemands(demands)
}

// repair applies the repaired-items ledger to an element's generated item
// demands. Repaired units are replaced by the generic maintenance mass
// needed to repair them.
func (r *run) repair(demands []model.Demand, element model.ElementID, loc model.LocationID) []model.Demand {
	if len(r.repairs) == 0 {
		return demands
	}
	set := model.NewDemandSet(demands...)
	lastTime := 0.0
	for _, idx := range r.order {
		w := r.windows[idx]
		items := r.repairs[idx]
		if len(items) == 0 || r.now >= w.End || r.now < lastTime {
			continue
		}
		if w.Crewed {
			lastTime = w.End
		}
		for ii := range items {
			item := &items[ii]
			if item.Element != element || !item.Demand.Resource.IsItem() || item.Demand.Amount <= 0 {
				continue
			}
			for di := 0; di < set.Len(); di++ {
				d := set.At(di)
				if d.Resource != item.Demand.Resource || d.Amount <= 0 {
					continue
				}
				amount := math.Min(d.Amount, item.Demand.Amount)
				r.result.Repairs = append(r.result.Repairs, model.SimRepair{
					Time:       r.now,
					Location:   loc,
					Element:    element,
					Part:       d.Resource,
					Amount:     amount,
					RepairTime: amount * item.UnitMTTR,
					RepairMass: amount * item.UnitMassToRepair,
				})
				d.Amount -= amount
				item.Demand.Amount -= amount
				if mass := amount * item.UnitMassToRepair; mass > 0 {
					set.Add(model.Demand{Resource: model.GenericResource(model.COS4, ""), Amount: mass})
				}
			}
		}
	}
	set.Clean()
	return set.Demands()
}

func cleanDemands(demands []model.Demand) []model.Demand {
	out := demands[:0]
	for _, d := range demands {
		if d.Amount != 0 {
			out = append(out, d)
		}
	}
	return out
}
