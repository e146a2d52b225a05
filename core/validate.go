package core

import (
	"fmt"

	"github.com/signalsfoundry/logistics-simulator/model"
)

// Validate checks that every reference in the scenario resolves and that
// identities are unique. All problems are reported together in a
// *ConfigurationError; nil means the scenario can be replayed.
func Validate(s *model.Scenario) error {
	v := &validator{
		scn:     s,
		locs:    make(map[model.LocationID]bool),
		defs:    make(map[model.ElementID]*model.Element),
		created: make(map[model.ElementID]string),
	}
	v.network()
	v.elements()
	for i := range s.Missions {
		v.mission(&s.Missions[i])
	}
	if len(v.problems) == 0 {
		return nil
	}
	return &ConfigurationError{Problems: v.problems}
}

type validator struct {
	scn      *model.Scenario
	locs     map[model.LocationID]bool
	defs     map[model.ElementID]*model.Element
	created  map[model.ElementID]string
	problems []error
}

func (v *validator) fail(sentinel error, format string, args ...any) {
	v.problems = append(v.problems, fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...)))
}

func (v *validator) network() {
	for _, n := range v.scn.Network.Nodes {
		if n.ID == 0 || v.locs[n.ID] {
			v.fail(ErrDuplicateLocation, "node %q has id %d", n.Name, n.ID)
			continue
		}
		v.locs[n.ID] = true
	}
	for _, e := range v.scn.Network.Edges {
		if e.ID == 0 || v.locs[e.ID] {
			v.fail(ErrDuplicateLocation, "edge %q has id %d", e.Name, e.ID)
			continue
		}
		v.locs[e.ID] = true
	}
	for _, e := range v.scn.Network.Edges {
		if _, ok := v.scn.Network.Node(e.Origin); !ok {
			v.fail(ErrUnknownLocation, "edge %q origin %d is not a node", e.Name, e.Origin)
		}
		if _, ok := v.scn.Network.Node(e.Destination); !ok {
			v.fail(ErrUnknownLocation, "edge %q destination %d is not a node", e.Name, e.Destination)
		}
	}
}

func (v *validator) elements() {
	for i := range v.scn.Elements {
		el := &v.scn.Elements[i]
		if el.ID == 0 {
			v.fail(ErrUnknownElement, "element %q has no id", el.Name)
			continue
		}
		if _, dup := v.defs[el.ID]; dup {
			v.fail(ErrDuplicateElement, "element id %d is defined twice", el.ID)
			continue
		}
		v.defs[el.ID] = el
	}
	for i := range v.scn.Elements {
		el := &v.scn.Elements[i]
		if len(el.States) > 0 && (el.InitialState < 0 || el.InitialState >= len(el.States)) {
			v.fail(ErrInvalidEvent, "element %d initial state %d out of range", el.ID, el.InitialState)
		}
		for _, child := range el.Contents {
			if _, ok := v.defs[child]; !ok {
				v.fail(ErrUnknownElement, "element %d contains unknown element %d", el.ID, child)
				continue
			}
			v.claim(child, fmt.Sprintf("contents of element %d", el.ID))
		}
	}
}

// claim records that id is instantiated by source; an element may only be
// instantiated once.
func (v *validator) claim(id model.ElementID, source string) {
	if prev, ok := v.created[id]; ok {
		v.fail(ErrDuplicateElement, "element %d created by %s and %s", id, prev, source)
		return
	}
	v.created[id] = source
}

func (v *validator) mission(m *model.Mission) {
	for _, loc := range []model.LocationID{m.Origin, m.Destination, m.ReturnOrigin, m.ReturnDestination} {
		if loc != 0 && !v.locs[loc] {
			v.fail(ErrUnknownLocation, "mission %q endpoint %d", m.Name, loc)
		}
	}
	for _, ev := range m.Events {
		v.event(m, ev)
	}
}

func (v *validator) event(m *model.Mission, ev model.Event) {
	where := fmt.Sprintf("mission %q event %q", m.Name, ev.Name)
	if ev.Payload == nil {
		v.fail(ErrInvalidEvent, "%s has no payload", where)
		return
	}
	if !v.locs[ev.Location] {
		v.fail(ErrUnknownLocation, "%s location %d", where, ev.Location)
	}

	elem := func(id model.ElementID) *model.Element {
		def, ok := v.defs[id]
		if !ok {
			v.fail(ErrUnknownElement, "%s references element %d", where, id)
		}
		return def
	}
	container := func(ref model.ContainerRef) {
		switch {
		case ref.IsElement():
			elem(ref.Element)
		case ref.Location != 0 && !v.locs[ref.Location]:
			v.fail(ErrUnknownLocation, "%s container location %d", where, ref.Location)
		}
	}
	edge := func(id model.LocationID, want model.EdgeType) {
		e, ok := v.scn.Network.Edge(id)
		if !ok || e.Type != want {
			v.fail(ErrUnknownEdge, "%s references %s edge %d", where, want, id)
		}
	}
	state := func(id model.ElementID, idx int) {
		if def := elem(id); def != nil && (idx < 0 || idx >= len(def.States)) {
			v.fail(ErrInvalidEvent, "%s sets element %d to state %d", where, id, idx)
		}
	}

	switch p := ev.Payload.(type) {
	case model.CreatePayload:
		container(p.Container)
		for _, id := range p.Elements {
			if elem(id) != nil {
				v.claim(id, where)
			}
		}
	case model.AddPayload:
		elem(p.Container)
	case model.MovePayload:
		container(p.Container)
		for _, id := range p.Elements {
			elem(id)
		}
	case model.TransferPayload:
		elem(p.Origin)
		elem(p.Destination)
	case model.RemovePayload:
		for _, id := range p.Elements {
			elem(id)
		}
	case model.ReconfigurePayload:
		state(p.Element, p.State)
	case model.ReconfigureGroupPayload:
		for _, id := range p.Elements {
			elem(id)
		}
	case model.DemandPayload:
		if p.Element != 0 {
			elem(p.Element)
		}
	case model.BurnPayload:
		for _, id := range p.Elements {
			elem(id)
		}
		for _, item := range p.Sequence {
			elem(item.Element)
		}
	case model.EVAPayload:
		elem(p.Vehicle)
		for _, c := range p.Crew {
			if c.State >= 0 {
				state(c.Crew, c.State)
			} else {
				elem(c.Crew)
			}
		}
	case model.ExplorationPayload:
		elem(p.Vehicle)
		for _, c := range p.Crew {
			if c.State >= 0 {
				state(c.Crew, c.State)
			} else {
				elem(c.Crew)
			}
		}
	case model.SpaceTransportPayload:
		edge(p.Edge, model.EdgeSpace)
		for _, id := range p.Elements {
			elem(id)
		}
		for _, seq := range p.Burns {
			for _, item := range seq {
				elem(item.Element)
			}
		}
	case model.SurfaceTransportPayload:
		edge(p.Edge, model.EdgeSurface)
		if def := elem(p.Vehicle); def != nil && p.TransportState >= len(def.States) {
			v.fail(ErrInvalidEvent, "%s transport state %d out of range", where, p.TransportState)
		}
	case model.FlightTransportPayload:
		edge(p.Edge, model.EdgeFlight)
		for _, id := range p.Elements {
			elem(id)
		}
	}
}
