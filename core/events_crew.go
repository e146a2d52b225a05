package core

import (
	"math"

	"github.com/signalsfoundry/logistics-simulator/model"
)

const defaultEVAHours = 8

// handleEVA takes crew out of their vehicle for the EVA duration. With
// detailed EVAs enabled the crew are reconfigured and moved out now, then
// moved back, restored and charged the EVA demands on return.
func (r *run) handleEVA(ev model.Event, p model.EVAPayload) {
	if len(p.Crew) == 0 {
		r.warn(ev, "no crew members defined")
	}
	if !r.locate(ev, p.Vehicle) {
		return
	}
	for _, c := range p.Crew {
		if !r.locate(ev, c.Crew) {
			return
		}
	}
	if !r.cfg.DetailedEVA {
		return
	}

	hours := evaHours(p.Duration)
	back := hours / 24
	crew := make([]model.ElementID, 0, len(p.Crew))
	previous := make(map[model.ElementID]int, len(p.Crew))

	for _, c := range p.Crew {
		crew = append(crew, c.Crew)
		if c.State < 0 {
			continue
		}
		previous[c.Crew] = r.world.CurrentState(c.Crew)
		r.schedule(0, ev.Priority, model.Event{
			Name:     ev.Name + " egress state",
			Location: ev.Location,
			Payload:  model.ReconfigurePayload{Element: c.Crew, State: c.State},
		})
	}
	r.schedule(0, ev.Priority, model.Event{
		Name:     ev.Name + " egress",
		Location: ev.Location,
		Payload:  model.MovePayload{Container: model.InLocation(ev.Location), Elements: crew},
	})

	r.schedule(back, 0, model.Event{
		Name:     ev.Name + " ingress",
		Location: ev.Location,
		Payload:  model.MovePayload{Container: model.InElement(p.Vehicle), Elements: crew},
	})
	for _, c := range p.Crew {
		state, ok := previous[c.Crew]
		if !ok || state < 0 {
			continue
		}
		r.schedule(back, 0, model.Event{
			Name:     ev.Name + " ingress state",
			Location: ev.Location,
			Payload:  model.ReconfigurePayload{Element: c.Crew, State: state},
		})
	}
	if len(p.Demands) > 0 {
		r.schedule(back, 0, model.Event{
			Name:     ev.Name + " demands",
			Location: ev.Location,
			Payload:  model.DemandPayload{Element: p.Vehicle, Demands: p.Demands},
		})
	}
}

// handleExploration spreads EVAs evenly over the exploration period. With n
// EVAs of h hours in d days, the idle gap is (24d - nh)/(n+1) hours and EVA
// i starts after i+1 gaps and i completed EVAs.
func (r *run) handleExploration(ev model.Event, p model.ExplorationPayload) {
	if !r.locate(ev, p.Vehicle) {
		return
	}
	hours := evaHours(p.EVADuration)
	n := int(math.Floor(p.Duration * p.EVAsPerWeek / 7))
	if n <= 0 {
		r.warn(ev, "no EVAs fit in %.2f days", p.Duration)
		return
	}
	gap := (p.Duration*24 - hours*float64(n)) / float64(n+1)
	if gap < 0 {
		r.warn(ev, "EVAs exceed the exploration period")
		gap = 0
	}
	for i := 0; i < n; i++ {
		offset := (float64(i+1)*gap + float64(i)*hours) / 24
		r.schedule(offset, ev.Priority, model.Event{
			Name:     ev.Name + " EVA",
			Location: ev.Location,
			Payload: model.EVAPayload{
				Vehicle:  p.Vehicle,
				Crew:     p.Crew,
				Duration: hours,
				Demands:  p.Demands,
			},
		})
	}
}
