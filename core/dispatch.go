package core

import "github.com/signalsfoundry/logistics-simulator/model"

// dispatch applies one scheduled event to the world. Every payload kind is
// handled here; adding a kind means adding a case.
func (r *run) dispatch(item *scheduled) {
	ev := item.event
	if ev.Location != 0 && !r.scn.Network.HasLocation(ev.Location) {
		r.spatial(ev, "location %d is not part of the network", ev.Location)
		return
	}

	switch p := ev.Payload.(type) {
	case model.CreatePayload:
		r.handleCreate(ev, p)
	case model.AddPayload:
		r.handleAdd(ev, p)
	case model.MovePayload:
		r.handleMove(ev, p, item.skipRemoved)
	case model.TransferPayload:
		r.handleTransfer(ev, p)
	case model.RemovePayload:
		r.handleRemove(ev, p)
	case model.ReconfigurePayload:
		r.handleReconfigure(ev, p)
	case model.ReconfigureGroupPayload:
		r.handleReconfigureGroup(ev, p)
	case model.DemandPayload:
		r.executeDemand(ev, p.Element, p.Demands, item.implicit)
	case model.BurnPayload:
		r.handleBurn(ev, p)
	case model.EVAPayload:
		r.handleEVA(ev, p)
	case model.ExplorationPayload:
		r.handleExploration(ev, p)
	case model.SpaceTransportPayload:
		r.handleSpaceTransport(ev, p)
	case model.SurfaceTransportPayload:
		r.handleSurfaceTransport(ev, p)
	case model.FlightTransportPayload:
		r.handleFlightTransport(ev, p)
	default:
		r.spatial(ev, "event has no payload")
	}
}

// locate checks that id is live and at the event's location, recording a
// spatial error when it is not.
func (r *run) locate(ev model.Event, id model.ElementID) bool {
	loc, ok := r.world.LocationOf(id)
	if !ok {
		r.spatial(ev, "element %d was not found", id)
		return false
	}
	if loc != ev.Location {
		r.spatial(ev, "element %d is located at %d instead of %d", id, loc, ev.Location)
		return false
	}
	return true
}
