// Package analysis derives aggregated demand, repair candidates and measures
// of effectiveness from a completed replay. Every function here is a pure
// transform of its inputs.
package analysis

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/logistics-simulator/core"
	"github.com/signalsfoundry/logistics-simulator/model"
)

const tracerName = "github.com/signalsfoundry/logistics-simulator/analysis"

func tracer() trace.Tracer { return otel.Tracer(tracerName) }

// EdgeDemand is the unmet demand accrued by elements travelling one
// transport leg.
type EdgeDemand struct {
	Edge    model.SupplyEdge `json:"edge"`
	Demands []model.Demand   `json:"demands"`
}

// TotalMass sums the demanded mass on the leg.
func (e EdgeDemand) TotalMass() float64 { return sumMass(e.Demands) }

// PointDemand is the unmet demand accrued at a node between one arrival and
// the next.
type PointDemand struct {
	Point   model.SupplyPoint `json:"point"`
	Demands []model.Demand    `json:"demands"`
}

// TotalMass sums the demanded mass at the point.
func (p PointDemand) TotalMass() float64 { return sumMass(p.Demands) }

// Aggregation groups a run's demand records by the transport leg or arrival
// point that would have to supply them.
type Aggregation struct {
	// EdgeDemands has one entry per supply edge, in departure order.
	EdgeDemands []EdgeDemand `json:"edge_demands"`
	// PointDemands has one entry per distinct supply point, ordered by time
	// then node.
	PointDemands []PointDemand `json:"point_demands"`
	// Unassigned holds records no leg or arrival could supply. Records at
	// Earth surface nodes are dropped instead.
	Unassigned []model.SimDemand `json:"unassigned,omitempty"`
}

// Aggregate buckets res.Demands by supply edge and supply point.
//
// A record on an edge belongs to the leg over that edge whose window
// [start, end) contains it; a record stamped exactly at a leg's arrival
// falls back to that leg, since it is accrued while travelling. A record at
// a node belongs to the latest arrival at that node at or before it.
func Aggregate(ctx context.Context, net *model.Network, res *core.Result) Aggregation {
	_, span := tracer().Start(ctx, "analysis.Aggregate",
		trace.WithAttributes(
			attribute.Int("demands", len(res.Demands)),
			attribute.Int("supply_edges", len(res.SupplyEdges)),
		))
	defer span.End()

	edgeSets := make([]*model.DemandSet, len(res.SupplyEdges))
	for i := range edgeSets {
		edgeSets[i] = model.NewDemandSet()
	}

	points := distinctPoints(res.SupplyPoints)
	pointSets := make([]*model.DemandSet, len(points))
	for i := range pointSets {
		pointSets[i] = model.NewDemandSet()
	}

	var out Aggregation
	for _, d := range res.Demands {
		if _, isEdge := net.Edge(d.Location); isEdge {
			if i := findEdge(res.SupplyEdges, d); i >= 0 {
				addAll(edgeSets[i], d.Demands)
				continue
			}
			out.Unassigned = append(out.Unassigned, d)
			continue
		}
		if i := findPoint(points, d); i >= 0 {
			addAll(pointSets[i], d.Demands)
			continue
		}
		if node, ok := net.Node(d.Location); ok && node.IsEarthSurface() {
			continue
		}
		out.Unassigned = append(out.Unassigned, d)
	}

	out.EdgeDemands = make([]EdgeDemand, len(res.SupplyEdges))
	for i, e := range res.SupplyEdges {
		out.EdgeDemands[i] = EdgeDemand{Edge: e, Demands: edgeSets[i].Demands()}
	}
	out.PointDemands = make([]PointDemand, len(points))
	for i, p := range points {
		out.PointDemands[i] = PointDemand{Point: p, Demands: pointSets[i].Demands()}
	}
	span.SetAttributes(attribute.Int("unassigned", len(out.Unassigned)))
	return out
}

// CapacityUtilization is the fraction of a leg's cargo capacity in use. A
// leg with no declared capacity reports 1.
func CapacityUtilization(e model.SupplyEdge) float64 {
	return utilization(e.CargoMass, e.MaxCargoMass)
}

func utilization(amount, capacity float64) float64 {
	if capacity == 0 {
		return 1
	}
	return amount / capacity
}

func findEdge(edges []model.SupplyEdge, d model.SimDemand) int {
	arrived := -1
	for i := len(edges) - 1; i >= 0; i-- {
		e := edges[i]
		if e.Edge != d.Location {
			continue
		}
		if d.Time >= e.Start && d.Time < e.End {
			return i
		}
		if d.Time == e.End && arrived < 0 {
			arrived = i
		}
	}
	return arrived
}

func findPoint(points []model.SupplyPoint, d model.SimDemand) int {
	found := -1
	for i, p := range points {
		if p.Node != d.Location || p.Time > d.Time {
			continue
		}
		if found < 0 || p.Time > points[found].Time {
			found = i
		}
	}
	return found
}

func distinctPoints(in []model.SupplyPoint) []model.SupplyPoint {
	seen := make(map[model.SupplyPoint]bool, len(in))
	out := make([]model.SupplyPoint, 0, len(in))
	for _, p := range in {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].Node < out[j].Node
	})
	return out
}

func addAll(set *model.DemandSet, demands []model.Demand) {
	for _, d := range demands {
		set.Add(d)
	}
}

func sumMass(demands []model.Demand) float64 {
	total := 0.0
	for _, d := range demands {
		total += d.Mass()
	}
	return total
}
