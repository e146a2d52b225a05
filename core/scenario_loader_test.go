package core

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/logistics-simulator/kb"
	"github.com/signalsfoundry/logistics-simulator/model"
)

const lunarOutpostYAML = `
name: lunar outpost
start_date: 2030-01-01
config:
  demands_satisfied: true
  item_discretization: by_element
  item_aggregation: 0.5
resources:
  - {id: 1, name: water, cos: 201, unit_mass: 1, packing_factor: 0.5}
  - {id: 4, name: pump, kind: item, cos: 401, unit_mass: 5}
nodes:
  - {id: 1, name: KSC, type: surface, body: earth}
  - {id: 2, name: LEO, type: orbital, body: earth}
edges:
  - id: 10
    name: ascent
    type: space
    origin: 1
    destination: 2
    duration: 3
    burns:
      - {time: 0, type: rcs, delta_v: 9000}
elements:
  - id: 1
    name: capsule
    kind: carrier
    mass: 8000
    max_crew_size: 3
    contents: [2]
    states:
      - name: active
        demand_models:
          - {name: spares, type: sparing_by_mass, pressurized_rate: 0.05, unpressurized_rate: 0.01}
  - id: 2
    name: commander
    kind: crew_member
    mass: 80
  - id: 3
    name: water tank
    kind: resource_container
    resources:
      - {resource: 1, amount: 100}
missions:
  - name: sortie
    start_date: 2030-01-11
    origin: 1
    destination: 2
    demand_models:
      - name: crew provisions
        demands:
          - {cos: 2, environment: pressurized, amount: 2}
    events:
      - {name: stack, type: create, location: 1, elements: [1, 3]}
      - name: launch
        type: space_transport
        location: 1
        edge: 10
        elements: [1]
        burns:
          - []
      - name: drink
        type: demand
        time: 1
        location: 1
        element: 3
        demands:
          - {resource: 1, amount: 10}
repaired_items:
  - {mission: 0, element: 1, resource: 4, amount: 2, unit_mttr: 3, unit_mass_to_repair: 0.5}
`

func TestLoadScenarioYAML(t *testing.T) {
	catalog := kb.NewKnowledgeBase()
	s, err := LoadScenario(catalog, strings.NewReader(lunarOutpostYAML))
	if err != nil {
		t.Fatalf("LoadScenario error: %v", err)
	}

	if s.Name != "lunar outpost" || !s.StartDate.Equal(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("scenario header = %q %v", s.Name, s.StartDate)
	}
	if !s.Config.DemandsSatisfied || s.Config.ItemDiscretization != model.DiscretizeByElement || s.Config.ItemAggregation != 0.5 {
		t.Fatalf("Config = %#v, want overrides applied", s.Config)
	}
	if !s.Config.DetailedEVA || s.Config.TimePrecision != 0.05 {
		t.Fatalf("Config = %#v, want defaults kept", s.Config)
	}
	if n, _, _ := catalog.Counts(); n != 2 {
		t.Fatalf("catalog holds %d resources, want 2", n)
	}
	if node, _ := s.Network.Node(1); node == nil || !node.IsEarthSurface() {
		t.Fatalf("node 1 = %#v, want Earth surface", node)
	}
	if edge, _ := s.Network.Edge(10); edge == nil || len(edge.Burns) != 1 || edge.Burns[0].DeltaV != 9000 || edge.Burns[0].Type != model.BurnRCS {
		t.Fatalf("edge 10 = %#v, want one 9000 m/s RCS burn", edge)
	}

	capsule, ok := s.Element(1)
	if !ok || capsule.Kind != model.KindCarrier || capsule.InitialState != 0 {
		t.Fatalf("capsule = %#v", capsule)
	}
	if dm := capsule.States[0].DemandModels[0]; dm.Kind != model.DemandSparingByMass || dm.PressurizedRate != 0.05 {
		t.Fatalf("capsule demand model = %#v", dm)
	}
	crew, _ := s.Element(2)
	if crew.InitialState != -1 {
		t.Fatalf("stateless element InitialState = %d, want -1", crew.InitialState)
	}
	tank, _ := s.Element(3)
	if tank.Resources[0].Resource.Name != "water" {
		t.Fatalf("tank stock = %#v, want water from the catalog", tank.Resources)
	}

	m := s.Missions[0]
	if !m.StartDate.Equal(time.Date(2030, 1, 11, 0, 0, 0, 0, time.UTC)) || len(m.Events) != 3 {
		t.Fatalf("mission = %#v", m)
	}
	create, ok := m.Events[0].Payload.(model.CreatePayload)
	if !ok || create.Container != model.InLocation(1) || len(create.Elements) != 2 {
		t.Fatalf("create payload = %#v", m.Events[0].Payload)
	}
	if generic := m.DemandModels[0].Demands[0].Resource; !generic.IsGeneric() || generic.Environment != model.EnvPressurized {
		t.Fatalf("mission demand resource = %#v, want pressurized generic COS2", generic)
	}
	if got := s.RepairedItems[0][0]; got.Demand.Resource.ID != 4 || got.Demand.Amount != 2 {
		t.Fatalf("repaired item = %#v", got)
	}

	if err := Validate(s); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	res, err := NewSimulator(s).Simulate(context.Background())
	if err != nil {
		t.Fatalf("Simulate error: %v", err)
	}
	windows := MissionTimeline(s)
	if windows[0].Start != 10 || windows[0].End != 13 || !windows[0].Crewed {
		t.Fatalf("window = %#v, want crewed mission from day 10 to 13", windows[0])
	}
	if res.FinalTime != 13 {
		t.Fatalf("FinalTime = %v, want 13", res.FinalTime)
	}
}

const shuttleJSON = `{
  "name": "shuttle",
  "start_date": "2030-01-01T00:00:00Z",
  "nodes": [{"id": 1, "name": "A"}, {"id": 2, "name": "B", "type": "orbital"}],
  "edges": [{"id": 3, "type": "flight", "origin": 1, "destination": 2, "duration": 0.5, "max_crew": 4}],
  "elements": [{"id": 7, "name": "rover", "kind": "surface_vehicle", "max_speed": 12,
                "states": [{"name": "idle"}, {"name": "drive", "type": "active"}]}],
  "missions": [{
    "name": "hop",
    "start_date": "2030-01-01",
    "events": [
      {"name": "make", "type": "create", "location": 1, "elements": [7]},
      {"name": "fly", "type": "flight_transport", "location": 1, "edge": 3, "elements": [7]},
      {"name": "toggle", "type": "reconfigure", "time": 1, "location": 2, "element": 7, "state": 1}
    ]
  }]
}`

func TestLoadScenarioJSON(t *testing.T) {
	s, err := LoadScenario(kb.NewKnowledgeBase(), strings.NewReader(shuttleJSON))
	if err != nil {
		t.Fatalf("LoadScenario error: %v", err)
	}
	if s.Network.Edges[0].Type != model.EdgeFlight || s.Network.Nodes[1].Type != model.NodeOrbital {
		t.Fatalf("network = %#v", s.Network)
	}
	if p, ok := s.Missions[0].Events[2].Payload.(model.ReconfigurePayload); !ok || p.State != 1 {
		t.Fatalf("reconfigure payload = %#v", s.Missions[0].Events[2].Payload)
	}

	res, err := NewSimulator(s).Simulate(context.Background())
	if err != nil {
		t.Fatalf("Simulate error: %v", err)
	}
	if len(res.SpatialErrors) != 0 {
		t.Fatalf("SpatialErrors = %v, want none", res.SpatialErrors)
	}
	if loc, _ := res.States[len(res.States)-1].LocationOf(7); loc != 2 {
		t.Fatalf("rover ended at %d, want 2", loc)
	}
}

func TestLoadScenarioDefaultsAbsentStates(t *testing.T) {
	doc := `
nodes: [{id: 1}, {id: 2}]
edges: [{id: 3, type: surface, origin: 1, destination: 2, distance: 10}]
elements: [{id: 1, kind: surface_vehicle, max_speed: 5}, {id: 2, kind: crew_member}]
missions:
  - name: m
    events:
      - {name: drive, type: surface_transport, location: 1, edge: 3, vehicle: 1}
      - {name: walk, type: eva, location: 1, vehicle: 1, crew: [{crew: 2}]}
`
	s, err := LoadScenario(kb.NewKnowledgeBase(), strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadScenario error: %v", err)
	}
	drive := s.Missions[0].Events[0].Payload.(model.SurfaceTransportPayload)
	if drive.TransportState != -1 {
		t.Fatalf("TransportState = %d, want -1 when absent", drive.TransportState)
	}
	walk := s.Missions[0].Events[1].Payload.(model.EVAPayload)
	if walk.Crew[0].State != -1 {
		t.Fatalf("crew State = %d, want -1 when absent", walk.Crew[0].State)
	}
	if !s.StartDate.IsZero() {
		t.Fatalf("StartDate = %v, want zero when absent", s.StartDate)
	}
}

func TestLoadScenarioErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"decode", "missions: [", "decode failed"},
		{"event type", "missions: [{name: m, events: [{name: e, type: teleport}]}]", `unknown event type "teleport"`},
		{"resource", "elements: [{id: 1, resources: [{resource: 9, amount: 1}]}]", "resource not found"},
		{"element kind", "elements: [{id: 1, kind: starship}]", `unknown kind "starship"`},
		{"date", "start_date: someday", "unrecognised date"},
		{"discretization", "config: {item_discretization: galaxy}", "unknown item discretization"},
		{"burn type", "edges: [{id: 1, burns: [{type: ion, delta_v: 5}]}]", `unknown burn type "ion"`},
		{"generic", "elements: [{id: 1, resources: [{amount: 1}]}]", "neither a resource nor a class of supply"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadScenario(kb.NewKnowledgeBase(), strings.NewReader(tc.doc))
			if err == nil {
				t.Fatalf("LoadScenario succeeded, want error containing %q", tc.want)
			}
			if !strings.HasPrefix(err.Error(), "LoadScenario: ") || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("LoadScenario error = %q, want prefix and %q", err, tc.want)
			}
		})
	}
}

func TestLoadScenarioSharedCatalog(t *testing.T) {
	catalog := kb.NewKnowledgeBase()
	if err := catalog.AddResource(model.Resource{ID: 1, Name: "water", ClassOfSupply: model.COS201,
		Environment: model.EnvUnpressurized, UnitMass: 1, PackingFactor: 0.5}); err != nil {
		t.Fatalf("AddResource error: %v", err)
	}
	if _, err := LoadScenario(catalog, strings.NewReader(lunarOutpostYAML)); err != nil {
		t.Fatalf("identical catalog entry rejected: %v", err)
	}

	conflicting := "resources: [{id: 1, name: brine, unit_mass: 1.2}]"
	if _, err := LoadScenario(catalog, strings.NewReader(conflicting)); err == nil || !strings.Contains(err.Error(), "conflicts") {
		t.Fatalf("conflicting resource error = %v, want conflict", err)
	}
	if _, err := LoadScenario(nil, strings.NewReader("")); err == nil {
		t.Fatalf("nil catalog accepted")
	}
}

func TestLoadScenarioFileMissing(t *testing.T) {
	_, err := LoadScenarioFile("testdata/does-not-exist.yaml")
	if err == nil || !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("LoadScenarioFile error = %v, want not-exist", err)
	}
}
