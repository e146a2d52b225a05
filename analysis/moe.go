package analysis

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/logistics-simulator/core"
	"github.com/signalsfoundry/logistics-simulator/model"
)

// Launch is the mass that left an Earth surface node on one transport leg.
type Launch struct {
	Time    float64          `json:"time"`
	Origin  model.LocationID `json:"origin"`
	Mission int              `json:"mission"`
	Mass    float64          `json:"mass"`
}

// CapacityUse is the cargo carried against the cargo capacity of one leg.
type CapacityUse struct {
	Time     float64          `json:"time"`
	Location model.LocationID `json:"location"`
	Mission  int              `json:"mission"`
	Amount   float64          `json:"amount"`
	Capacity float64          `json:"capacity"`
}

// Utilization returns Amount/Capacity, or 1 when the leg declares no
// capacity.
func (c CapacityUse) Utilization() float64 { return utilization(c.Amount, c.Capacity) }

// MissionUtilization sums the up and down capacity use of one mission.
type MissionUtilization struct {
	Mission int         `json:"mission"`
	Up      CapacityUse `json:"up"`
	Down    CapacityUse `json:"down"`
}

// Measures are the campaign-level measures of effectiveness of one run.
type Measures struct {
	Launches        []Launch             `json:"launches"`
	TotalLaunchMass float64              `json:"total_launch_mass"`
	Up              []CapacityUse        `json:"up"`
	Down            []CapacityUse        `json:"down"`
	ByMission       []MissionUtilization `json:"by_mission"`
	CrewSurfaceDays float64              `json:"crew_surface_days"`
}

// MeasuresOfEffectiveness derives launch mass, up and down mass capacity
// utilization and crew surface days from a replay.
//
// Launches and up mass are space or flight legs departing an Earth surface
// node; down mass is legs arriving at one. Crew surface days accrue for each
// crew member held at a surface node away from Earth, at a node orbiting the
// Sun, or on a surface edge away from Earth, integrated over the state
// history up to the run's final time.
func MeasuresOfEffectiveness(ctx context.Context, s *model.Scenario, res *core.Result) Measures {
	_, span := tracer().Start(ctx, "analysis.MeasuresOfEffectiveness",
		trace.WithAttributes(attribute.Int("supply_edges", len(res.SupplyEdges))))
	defer span.End()

	net := &s.Network
	m := Measures{}
	byMission := make(map[int]*MissionUtilization)
	var missionOrder []int
	mission := func(idx int) *MissionUtilization {
		mu, ok := byMission[idx]
		if !ok {
			mu = &MissionUtilization{
				Mission: idx,
				Up:      CapacityUse{Mission: idx},
				Down:    CapacityUse{Mission: idx},
			}
			byMission[idx] = mu
			missionOrder = append(missionOrder, idx)
		}
		return mu
	}

	for _, e := range res.SupplyEdges {
		edge, ok := net.Edge(e.Edge)
		if !ok || edge.Type == model.EdgeSurface {
			continue
		}
		capacity := e.MaxCargoMass
		if edge.Type == model.EdgeFlight {
			capacity = edge.MaxCargoMass
		}
		use := CapacityUse{Time: e.Start, Mission: e.Mission, Amount: e.CargoMass, Capacity: capacity}

		origin, _ := net.Node(e.Origin)
		destination, _ := net.Node(e.Destination)
		switch {
		case origin.IsEarthSurface():
			m.Launches = append(m.Launches, Launch{Time: e.Start, Origin: e.Origin, Mission: e.Mission, Mass: e.Mass})
			m.TotalLaunchMass += e.Mass
			use.Location = e.Origin
			m.Up = append(m.Up, use)
			mu := mission(e.Mission)
			mu.Up.Amount += use.Amount
			mu.Up.Capacity += use.Capacity
		case destination.IsEarthSurface():
			use.Location = e.Destination
			m.Down = append(m.Down, use)
			mu := mission(e.Mission)
			mu.Down.Amount += use.Amount
			mu.Down.Capacity += use.Capacity
		}
	}
	for _, idx := range missionOrder {
		m.ByMission = append(m.ByMission, *byMission[idx])
	}

	m.CrewSurfaceDays = crewSurfaceDays(s, res)
	span.SetAttributes(
		attribute.Float64("launch_mass", m.TotalLaunchMass),
		attribute.Float64("crew_surface_days", m.CrewSurfaceDays),
	)
	return m
}

func crewSurfaceDays(s *model.Scenario, res *core.Result) float64 {
	crew := make(map[model.ElementID]bool)
	for _, e := range s.Elements {
		if e.Kind == model.KindCrewMember {
			crew[e.ID] = true
		}
	}
	if len(crew) == 0 {
		return 0
	}

	total := 0.0
	for i, st := range res.States {
		end := res.FinalTime
		if i+1 < len(res.States) {
			end = res.States[i+1].Time
		}
		dt := end - st.Time
		if dt <= 0 {
			continue
		}
		for id, loc := range st.Locations {
			if crew[id] && awayFromEarth(&s.Network, loc) {
				total += dt
			}
		}
	}
	return total
}

func awayFromEarth(net *model.Network, loc model.LocationID) bool {
	if node, ok := net.Node(loc); ok {
		switch node.Type {
		case model.NodeSurface:
			return node.Body != model.BodyEarth
		case model.NodeOrbital:
			return node.Body == model.BodySun
		}
		return false
	}
	edge, ok := net.Edge(loc)
	if !ok || edge.Type != model.EdgeSurface {
		return false
	}
	origin, ok := net.Node(edge.Origin)
	return ok && origin.Body != model.BodyEarth
}

func withRunConfig(s *model.Scenario, res *core.Result) *model.Scenario {
	if res.Config.TimePrecision <= 0 {
		return s
	}
	cp := *s
	cp.Config = res.Config
	return &cp
}
