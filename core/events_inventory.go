package core

import (
	"github.com/signalsfoundry/logistics-simulator/model"
)

func (r *run) handleCreate(ev model.Event, p model.CreatePayload) {
	ref := p.Container
	if ref.IsZero() {
		ref = model.InLocation(ev.Location)
	}
	if len(p.Elements) == 0 {
		r.warn(ev, "no elements defined")
	}
	if ref.IsElement() && !r.locate(ev, ref.Element) {
		return
	}
	for _, id := range p.Elements {
		if err := r.world.create(id, ref); err != nil {
			r.spatial(ev, "%v", err)
		}
	}
	r.checkCapacity(ev, ref)
}

func (r *run) handleAdd(ev model.Event, p model.AddPayload) {
	if !r.locate(ev, p.Container) {
		return
	}
	for _, d := range p.Demands {
		over, err := r.world.addResource(p.Container, d.Resource, d.Amount)
		if err != nil {
			r.spatial(ev, "%v", err)
			continue
		}
		if over > r.cfg.MassPrecision/2 {
			r.warn(ev, "container %d over capacity by %.2f kg", p.Container, over)
		}
	}
	if parent, ok := r.world.ParentOf(p.Container); ok {
		r.checkCapacity(ev, parent)
	}
}

// handleMove relocates each element independently; one failing element does
// not stop the others. Arrivals of transports tolerate elements that were
// removed while in transit.
func (r *run) handleMove(ev model.Event, p model.MovePayload, skipRemoved bool) {
	ref := p.Container
	if ref.IsZero() {
		ref = model.InLocation(ev.Location)
	}
	for _, id := range p.Elements {
		if skipRemoved && r.world.removed[id] && !r.world.Exists(id) {
			continue
		}
		if !r.locate(ev, id) {
			continue
		}
		if err := r.world.move(id, ref); err != nil {
			r.spatial(ev, "%v", err)
		}
	}
	r.checkCapacity(ev, ref)
}

type ledgerChange struct {
	element  model.ElementID
	resource model.Resource
	amount   float64
}

// handleTransfer moves resources between two co-located containers. Any
// failure rolls back every change made by the event.
func (r *run) handleTransfer(ev model.Event, p model.TransferPayload) {
	if !r.locate(ev, p.Origin) || !r.locate(ev, p.Destination) {
		return
	}
	var applied []ledgerChange
	rollback := func() {
		for i := len(applied) - 1; i >= 0; i-- {
			c := applied[i]
			_, _ = r.world.addResource(c.element, c.resource, -c.amount)
		}
	}
	for _, d := range p.Demands {
		if _, err := r.world.addResource(p.Origin, d.Resource, -d.Amount); err != nil {
			rollback()
			r.spatial(ev, "transfer from %d: %v", p.Origin, err)
			return
		}
		applied = append(applied, ledgerChange{p.Origin, d.Resource, -d.Amount})

		over, err := r.world.addResource(p.Destination, d.Resource, d.Amount)
		if err != nil {
			rollback()
			r.spatial(ev, "transfer to %d: %v", p.Destination, err)
			return
		}
		applied = append(applied, ledgerChange{p.Destination, d.Resource, d.Amount})
		if over > r.cfg.MassPrecision/2 {
			r.warn(ev, "container %d over capacity by %.2f kg", p.Destination, over)
		}
	}
}

func (r *run) handleRemove(ev model.Event, p model.RemovePayload) {
	for _, id := range p.Elements {
		if !r.locate(ev, id) {
			continue
		}
		if err := r.world.remove(id); err != nil {
			r.spatial(ev, "%v", err)
		}
	}
}

func (r *run) handleReconfigure(ev model.Event, p model.ReconfigurePayload) {
	if !r.locate(ev, p.Element) {
		return
	}
	r.setState(ev, p.Element, p.State)
}

func (r *run) handleReconfigureGroup(ev model.Event, p model.ReconfigureGroupPayload) {
	for _, id := range p.Elements {
		if !r.locate(ev, id) {
			continue
		}
		st := r.world.live[id]
		idx := st.def.StateIndex(p.StateType)
		if idx < 0 {
			r.warn(ev, "element %d has no %s state", id, p.StateType)
			continue
		}
		st.state = idx
	}
}

func (r *run) setState(ev model.Event, id model.ElementID, idx int) {
	st, ok := r.world.live[id]
	if !ok {
		r.spatial(ev, "element %d was not found", id)
		return
	}
	if idx < 0 || idx >= len(st.def.States) {
		r.spatial(ev, "element %d has no state %d", id, idx)
		return
	}
	st.state = idx
}

// checkCapacity warns when a carrier holds more than it declares. Overage
// is never rejected.
func (r *run) checkCapacity(ev model.Event, ref model.ContainerRef) {
	if !ref.IsElement() {
		return
	}
	st, ok := r.world.live[ref.Element]
	if !ok || !st.def.Kind.IsCarrier() {
		return
	}
	def := st.def
	if def.MaxCargoMass > 0 {
		if cargo := r.world.CargoMass(def.ID); cargo-def.MaxCargoMass > r.cfg.MassPrecision/2 {
			r.warn(ev, "carrier %d cargo mass %.2f kg exceeds capacity %.2f kg", def.ID, cargo, def.MaxCargoMass)
		}
	}
	if r.cfg.VolumeConstrained && def.MaxCargoVolume > 0 {
		if volume := r.world.CargoVolume(def.ID); volume-def.MaxCargoVolume > r.cfg.VolumePrecision/2 {
			r.warn(ev, "carrier %d cargo volume %.3f m3 exceeds capacity %.3f m3", def.ID, volume, def.MaxCargoVolume)
		}
	}
	if def.MaxCrewSize > 0 {
		if crew := r.world.CrewCount(def.ID); crew > def.MaxCrewSize {
			r.warn(ev, "carrier %d crew %d exceeds capacity %d", def.ID, crew, def.MaxCrewSize)
		}
	}
	if r.cfg.EnvironmentConstrained && def.CargoEnvironment == model.EnvUnpressurized {
		for _, child := range st.contents {
			if r.world.live[child].def.Environment == model.EnvPressurized {
				r.warn(ev, "carrier %d cannot hold pressurized element %d", def.ID, child)
			}
		}
	}
}
