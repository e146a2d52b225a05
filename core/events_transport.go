package core

import (
	"math"

	"github.com/signalsfoundry/logistics-simulator/model"
)

// StandardGravity converts specific impulse in seconds to exhaust velocity.
const StandardGravity = 9.81

// RequiredFuelMass returns the propellant needed to give a stack of mass
// stackMass the velocity change deltaV (m/s) with specific impulse isp (s).
func RequiredFuelMass(stackMass, deltaV, isp float64) float64 {
	if isp <= 0 {
		return math.Inf(1)
	}
	return stackMass * (1 - math.Exp(-deltaV/(isp*StandardGravity)))
}

// AchievedDeltaV returns the velocity change obtained by burning fuel from a
// stack of mass stackMass.
func AchievedDeltaV(stackMass, isp, fuel float64) float64 {
	if isp <= 0 || stackMass <= 0 || fuel <= 0 {
		return 0
	}
	if fuel >= stackMass {
		return math.Inf(1)
	}
	return isp * StandardGravity * math.Log(stackMass/(stackMass-fuel))
}

// departLeg collects the elements present at the event location, moves them
// onto the edge and records the supply edge. It returns the moved elements.
func (r *run) departLeg(ev model.Event, leg transportLeg, elements []model.ElementID) []model.ElementID {
	var moving []model.ElementID
	for _, id := range elements {
		if r.locate(ev, id) {
			moving = append(moving, id)
		}
	}
	if len(moving) == 0 {
		return nil
	}

	supply := model.SupplyEdge{
		Edge:        leg.edge.ID,
		Origin:      leg.origin,
		Destination: leg.destination,
		Reversed:    leg.reversed,
		Start:       r.now,
		End:         r.cfg.RoundTime(r.now + leg.duration),
		Mission:     r.cur.mission,
	}
	for _, id := range moving {
		st := r.world.live[id]
		supply.Mass += r.world.TotalMass(id)
		supply.Crew += r.world.CrewCount(id)
		if st.def.Kind == model.KindCrewMember {
			supply.Crew++
			continue
		}
		if st.def.Kind.IsCarrier() {
			supply.Carriers = append(supply.Carriers, id)
			supply.MaxCargoMass += st.def.MaxCargoMass
			supply.CargoMass += r.world.CargoMass(id)
		}
	}
	r.result.SupplyEdges = append(r.result.SupplyEdges, supply)
	r.result.SupplyPoints = append(r.result.SupplyPoints, supply.Point())

	for _, id := range moving {
		if err := r.world.move(id, model.InLocation(leg.edge.ID)); err != nil {
			r.spatial(ev, "%v", err)
		}
	}
	return moving
}

// scheduleArrival moves the elements off the edge once the leg completes.
func (r *run) scheduleArrival(ev model.Event, leg transportLeg, elements []model.ElementID, priority int) {
	r.schedule(leg.duration, priority, model.Event{
		Name:     ev.Name + " arrival",
		Location: leg.edge.ID,
		Payload: model.MovePayload{
			Container: model.InLocation(leg.destination),
			Elements:  elements,
		},
	}, skippingRemoved)
}

func (r *run) handleSpaceTransport(ev model.Event, p model.SpaceTransportPayload) {
	if len(p.Elements) == 0 {
		r.warn(ev, "no elements defined")
	}
	leg, ok := transportLegOf(&r.scn.Network, r.world.defs, ev)
	if !ok || leg.edge.Type != model.EdgeSpace {
		r.spatial(ev, "no space edge defined")
		return
	}
	if ev.Location != leg.edge.Origin {
		r.spatial(ev, "space transport must depart from %d", leg.edge.Origin)
		return
	}
	moving := r.departLeg(ev, leg, p.Elements)
	if len(moving) == 0 {
		return
	}

	burns := leg.edge.Burns
	for i, b := range burns {
		var seq []model.BurnStageItem
		if i < len(p.Burns) {
			seq = p.Burns[i]
		}
		r.schedule(b.Time, -len(burns)+i, model.Event{
			Name:     ev.Name + " burn",
			Location: leg.edge.ID,
			Payload: model.BurnPayload{
				Elements: append([]model.ElementID(nil), moving...),
				Burn:     b,
				Sequence: seq,
			},
		})
	}
	r.scheduleArrival(ev, leg, moving, 0)
}

func (r *run) handleFlightTransport(ev model.Event, p model.FlightTransportPayload) {
	if len(p.Elements) == 0 {
		r.warn(ev, "no elements defined")
	}
	leg, ok := transportLegOf(&r.scn.Network, r.world.defs, ev)
	if !ok || leg.edge.Type != model.EdgeFlight {
		r.spatial(ev, "no flight edge defined")
		return
	}
	if ev.Location != leg.edge.Origin {
		r.spatial(ev, "flight must depart from %d", leg.edge.Origin)
		return
	}
	moving := r.departLeg(ev, leg, p.Elements)
	if len(moving) == 0 {
		return
	}

	supply := r.result.SupplyEdges[len(r.result.SupplyEdges)-1]
	if leg.edge.MaxCargoMass > 0 && supply.Mass-leg.edge.MaxCargoMass > r.cfg.MassPrecision/2 {
		r.warn(ev, "flight cargo mass over capacity: %.1f/%.1f kg", supply.Mass, leg.edge.MaxCargoMass)
	}
	if leg.edge.MaxCrew > 0 && supply.Crew > leg.edge.MaxCrew {
		r.warn(ev, "flight crew size over capacity: %d/%d", supply.Crew, leg.edge.MaxCrew)
	}
	r.scheduleArrival(ev, leg, moving, 0)
}

// handleSurfaceTransport drives a surface vehicle and its contents along a
// surface edge. The direction reverses when the vehicle starts at the edge's
// destination. The transport state applies for the drive only.
func (r *run) handleSurfaceTransport(ev model.Event, p model.SurfaceTransportPayload) {
	leg, ok := transportLegOf(&r.scn.Network, r.world.defs, ev)
	if !ok || leg.edge.Type != model.EdgeSurface {
		r.spatial(ev, "no surface edge defined")
		return
	}
	if ev.Location != leg.edge.Origin && ev.Location != leg.edge.Destination {
		r.spatial(ev, "surface transport must depart from an end of edge %d", leg.edge.ID)
		return
	}
	if !r.locate(ev, p.Vehicle) {
		return
	}
	if leg.duration <= 0 {
		r.spatial(ev, "infinite travel duration")
		return
	}

	st := r.world.live[p.Vehicle]
	previous := st.state
	if p.TransportState >= 0 && p.TransportState < len(st.def.States) {
		st.state = p.TransportState
	}

	if moving := r.departLeg(ev, leg, []model.ElementID{p.Vehicle}); len(moving) == 0 {
		return
	}
	r.scheduleArrival(ev, leg, []model.ElementID{p.Vehicle}, -1)

	if previous >= 0 {
		vehicle := p.Vehicle
		r.schedule(leg.duration, 0, model.Event{Name: ev.Name + " restore state", Location: leg.destination},
			func(s *scheduled) {
				s.step = func(r *run) {
					if st, ok := r.world.live[vehicle]; ok && previous < len(st.def.States) {
						st.state = previous
					}
				}
			})
	}
}

// handleBurn walks a burn/stage sequence. Burns consume propellant from the
// OMS or RCS tank of the vehicle, as the burn type selects. Staging
// removes the element from the stack. Any delta-v left at the end is a
// spatial error.
func (r *run) handleBurn(ev model.Event, p model.BurnPayload) {
	remaining := p.Burn.DeltaV
	stack := append([]model.ElementID(nil), p.Elements...)

	for _, item := range p.Sequence {
		switch item.Action {
		case model.ActionBurn:
			if remaining <= 0 {
				continue
			}
			st, ok := r.world.live[item.Element]
			if !ok {
				r.spatial(ev, "element %d was not found", item.Element)
				continue
			}
			tank, isp := st.omsTank, st.def.OMSIsp
			if p.Burn.Type == model.BurnRCS {
				tank, isp = st.rcsTank, st.def.RCSIsp
			}
			if tank == nil || isp <= 0 {
				r.spatial(ev, "element %d has no %s propulsion", item.Element, p.Burn.Type)
				continue
			}
			stackMass := 0.0
			for _, id := range stack {
				stackMass += r.world.TotalMass(id)
			}
			required := RequiredFuelMass(stackMass, remaining, isp)
			burned := required
			if required > tank.Amount {
				burned = tank.Amount
				remaining -= AchievedDeltaV(stackMass, isp, burned)
			} else {
				remaining = 0
			}
			tank.Amount -= burned
			if burned > 0 && !r.cfg.DemandsSatisfied {
				r.result.Demands = append(r.result.Demands, model.SimDemand{
					Time:     r.now,
					Location: ev.Location,
					Element:  item.Element,
					Event:    ev.Name,
					Demands:  []model.Demand{{Resource: tank.Resource, Amount: r.cfg.RoundDemand(burned)}},
				})
			}
		case model.ActionStage:
			if !r.locate(ev, item.Element) {
				continue
			}
			if err := r.world.remove(item.Element); err != nil {
				r.spatial(ev, "%v", err)
				continue
			}
			stack = removeID(stack, item.Element)
		}
	}
	if remaining > 0 {
		r.spatial(ev, "insufficient delta-v achieved, remaining delta-v: %.1f m/s", remaining)
	}
}
