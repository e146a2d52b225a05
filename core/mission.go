package core

import (
	"sort"

	"github.com/signalsfoundry/logistics-simulator/model"
	"github.com/signalsfoundry/logistics-simulator/timectrl"
)

// MissionWindow summarises when a mission runs relative to the scenario
// start. All values are in days and rounded to the time precision.
type MissionWindow struct {
	Index   int
	Name    string
	Start   float64
	End     float64
	Transit float64
	Crewed  bool
}

// Duration is the time from mission start to mission end.
func (w MissionWindow) Duration() float64 { return w.End - w.Start }

// MissionTimeline returns one window per mission, in the order the missions
// appear in the scenario. A mission lasts until the next mission starts; the
// last mission lasts until its final event or process completes.
func MissionTimeline(s *model.Scenario) []MissionWindow {
	cfg := s.Config
	windows := make([]MissionWindow, len(s.Missions))
	order := missionOrder(s)

	defs := make(map[model.ElementID]*model.Element, len(s.Elements))
	for i := range s.Elements {
		defs[s.Elements[i].ID] = &s.Elements[i]
	}

	for pos, idx := range order {
		m := &s.Missions[idx]
		start := cfg.RoundTime(timectrl.DaysBetween(s.StartDate, m.StartDate))
		end := start
		if pos+1 < len(order) {
			next := &s.Missions[order[pos+1]]
			end = cfg.RoundTime(timectrl.DaysBetween(s.StartDate, next.StartDate))
		} else {
			for _, ev := range m.Events {
				if t := start + ev.Time + eventDuration(&s.Network, defs, ev); t > end {
					end = t
				}
			}
			end = cfg.RoundTime(end)
		}

		transit := end - start
		for _, ev := range m.Events {
			leg, ok := transportLegOf(&s.Network, defs, ev)
			if ok && leg.destination == m.Destination {
				transit = ev.Time + leg.duration
				break
			}
		}

		windows[idx] = MissionWindow{
			Index:   idx,
			Name:    m.Name,
			Start:   start,
			End:     end,
			Transit: cfg.RoundTime(transit),
			Crewed:  missionIsCrewed(m, defs),
		}
	}
	return windows
}

// missionOrder returns mission indices sorted by start date then name.
func missionOrder(s *model.Scenario) []int {
	order := make([]int, len(s.Missions))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := &s.Missions[order[i]], &s.Missions[order[j]]
		if !a.StartDate.Equal(b.StartDate) {
			return a.StartDate.Before(b.StartDate)
		}
		return a.Name < b.Name
	})
	return order
}

func missionIsCrewed(m *model.Mission, defs map[model.ElementID]*model.Element) bool {
	var walk func(id model.ElementID, depth int) bool
	walk = func(id model.ElementID, depth int) bool {
		def, ok := defs[id]
		if !ok || depth > len(defs) {
			return false
		}
		if def.Kind == model.KindCrewMember {
			return true
		}
		for _, child := range def.Contents {
			if walk(child, depth+1) {
				return true
			}
		}
		return false
	}
	for _, ev := range m.Events {
		create, ok := ev.Payload.(model.CreatePayload)
		if !ok {
			continue
		}
		for _, id := range create.Elements {
			if walk(id, 0) {
				return true
			}
		}
	}
	return false
}

type transportLeg struct {
	edge        *model.Edge
	origin      model.LocationID
	destination model.LocationID
	reversed    bool
	duration    float64
}

// transportLegOf resolves the direction and duration of a transport event.
func transportLegOf(net *model.Network, defs map[model.ElementID]*model.Element, ev model.Event) (transportLeg, bool) {
	var edgeID model.LocationID
	switch p := ev.Payload.(type) {
	case model.SpaceTransportPayload:
		edgeID = p.Edge
	case model.FlightTransportPayload:
		edgeID = p.Edge
	case model.SurfaceTransportPayload:
		edgeID = p.Edge
	default:
		return transportLeg{}, false
	}
	edge, ok := net.Edge(edgeID)
	if !ok {
		return transportLeg{}, false
	}
	leg := transportLeg{edge: edge, origin: edge.Origin, destination: edge.Destination, duration: edge.Duration}
	if p, ok := ev.Payload.(model.SurfaceTransportPayload); ok {
		if ev.Location == edge.Destination {
			leg.origin, leg.destination, leg.reversed = edge.Destination, edge.Origin, true
		}
		speed := p.Speed
		if speed <= 0 {
			if v, ok := defs[p.Vehicle]; ok {
				speed = v.MaxSpeed
			}
		}
		leg.duration = surfaceDuration(edge.Distance, speed, p.DutyCycle)
	}
	return leg, true
}

// surfaceDuration converts a drive into days. It returns 0 when no positive
// speed is available.
func surfaceDuration(distance, speed, dutyCycle float64) float64 {
	if dutyCycle <= 0 {
		dutyCycle = 1
	}
	if speed <= 0 {
		return 0
	}
	return distance / (speed * dutyCycle * 24)
}

// eventDuration is the span of a process event in days; instantaneous events
// return 0.
func eventDuration(net *model.Network, defs map[model.ElementID]*model.Element, ev model.Event) float64 {
	switch p := ev.Payload.(type) {
	case model.EVAPayload:
		return evaHours(p.Duration) / 24
	case model.ExplorationPayload:
		return p.Duration
	case model.SpaceTransportPayload, model.FlightTransportPayload, model.SurfaceTransportPayload:
		if leg, ok := transportLegOf(net, defs, ev); ok {
			return leg.duration
		}
	}
	return 0
}

func evaHours(h float64) float64 {
	if h <= 0 {
		return defaultEVAHours
	}
	return h
}
