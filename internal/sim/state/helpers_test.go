package state

import (
	"context"
	"strings"
	"testing"

	"github.com/signalsfoundry/logistics-simulator/internal/logging"
	"github.com/signalsfoundry/logistics-simulator/kb"
)

const depotYAML = `
name: depot
start_date: 2030-01-01
resources:
  - {id: 1, name: water, cos: 201, unit_mass: 1}
nodes:
  - {id: 1, name: KSC, type: surface, body: earth}
  - {id: 2, name: Station, type: orbital, body: earth}
edges:
  - {id: 10, name: shuttle, type: flight, origin: 1, destination: 2, duration: 1, max_cargo_mass: 400}
elements:
  - {id: 1, name: capsule, kind: carrier, mass: 500, max_cargo_mass: 400}
missions:
  - name: resupply
    start_date: 2030-01-02
    origin: 1
    destination: 2
    events:
      - {name: stack, type: create, location: 1, elements: [1]}
      - {name: fly, type: flight_transport, location: 1, edge: 10, elements: [1]}
      - name: drink
        type: demand
        time: 2
        location: 2
        demands:
          - {resource: 1, amount: 10}
`

func newTestState(t *testing.T, opts ...ScenarioStateOption) *ScenarioState {
	t.Helper()
	return NewScenarioState(kb.NewKnowledgeBase(), logging.Noop(), opts...)
}

func newLoadedState(t *testing.T, opts ...ScenarioStateOption) *ScenarioState {
	t.Helper()
	s := newTestState(t, opts...)
	if _, err := s.LoadScenario(context.Background(), strings.NewReader(depotYAML)); err != nil {
		t.Fatalf("LoadScenario() error = %v", err)
	}
	return s
}

// relabelledYAML reuses ID 2 for an edge instead of the station node.
const relabelledYAML = `
name: relabelled
start_date: 2030-01-01
resources:
  - {id: 1, name: water, cos: 201, unit_mass: 1}
nodes:
  - {id: 1, name: KSC, type: surface, body: earth}
  - {id: 3, name: Gateway, type: orbital, body: moon}
edges:
  - {id: 2, name: cruise, type: flight, origin: 1, destination: 3, duration: 4}
elements:
  - {id: 1, name: capsule, kind: carrier, mass: 500}
missions:
  - name: transit
    start_date: 2030-01-02
    origin: 1
    destination: 3
    events:
      - {name: stack, type: create, location: 1, elements: [1]}
`

// outpostYAML is a crewed mission whose habitat needs three pumps, each
// taking ten crew hours to repair.
const outpostYAML = `
name: outpost
start_date: 2030-01-01
config:
  item_discretization: by_element
resources:
  - {id: 4, name: pump, kind: item, cos: 401, unit_mass: 5}
nodes:
  - {id: 1, name: Shackleton, type: surface, body: moon}
elements:
  - id: 1
    name: habitat
    kind: carrier
    mass: 9000
    max_crew_size: 2
    contents: [2]
    parts:
      - {resource: 4, mttr: 10, mass_to_repair: 1, quantity: 3}
  - {id: 2, name: commander, kind: crew_member, mass: 80}
missions:
  - name: stay
    start_date: 2030-01-01
    origin: 1
    destination: 1
    events:
      - {name: land, type: create, location: 1, elements: [1]}
      - name: wear
        type: demand
        time: 1
        location: 1
        element: 1
        demands:
          - {resource: 4, amount: 3}
`
