package analysis

import (
	"context"
	"math"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/logistics-simulator/core"
	"github.com/signalsfoundry/logistics-simulator/model"
)

// RepairTable lists the repairable item demands of one crewed mission.
type RepairTable struct {
	Mission int     `json:"mission"`
	Name    string  `json:"name"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`

	// Unsorted is in discovery order: by demand record, then by demand.
	Unsorted []model.RepairItem `json:"unsorted"`
	// Sorted puts the most mass saved per hour of repair first.
	Sorted []model.RepairItem `json:"sorted"`
}

// TotalRepairTime sums the crew hours needed to repair every item.
func (t RepairTable) TotalRepairTime() float64 {
	total := 0.0
	for _, item := range t.Unsorted {
		total += item.MeanRepairTime()
	}
	return total
}

// TabulateRepairItems builds one table per crewed mission. A crewed
// mission's window runs from the end of the previous crewed mission
// (exclusive) to its own end (inclusive). Only item demands charged to an
// element whose matching part has a positive repair time are listed.
func TabulateRepairItems(ctx context.Context, s *model.Scenario, res *core.Result) []RepairTable {
	_, span := tracer().Start(ctx, "analysis.TabulateRepairItems",
		trace.WithAttributes(attribute.Int("demands", len(res.Demands))))
	defer span.End()

	windows := core.MissionTimeline(withRunConfig(s, res))
	sort.SliceStable(windows, func(i, j int) bool { return windows[i].Start < windows[j].Start })

	var tables []RepairTable
	last := 0.0
	for _, w := range windows {
		if !w.Crewed {
			continue
		}
		start := last
		last = w.End

		table := RepairTable{Mission: w.Index, Name: w.Name, Start: start, End: w.End}
		for _, rec := range res.Demands {
			if rec.Element == 0 || rec.Time <= start || rec.Time > w.End {
				continue
			}
			def, ok := s.Element(rec.Element)
			if !ok {
				continue
			}
			for _, d := range rec.Demands {
				if !d.Resource.IsItem() {
					continue
				}
				part, ok := def.Part(d.Resource)
				if !ok || part.MTTR <= 0 {
					continue
				}
				table.Unsorted = append(table.Unsorted, model.RepairItem{
					Element:          rec.Element,
					Demand:           d,
					UnitMTTR:         part.MTTR,
					UnitMassToRepair: part.MassToRepair,
				})
			}
		}
		table.Sorted = SortRepairItems(table.Unsorted)
		tables = append(tables, table)
	}
	span.SetAttributes(attribute.Int("crewed_missions", len(tables)))
	return tables
}

// SortRepairItems returns a copy of items ordered by ascending repair time
// per unit of mass saved. Items that take no time to repair come first and
// items that save no mass come last; ties keep their input order.
func SortRepairItems(items []model.RepairItem) []model.RepairItem {
	out := append([]model.RepairItem(nil), items...)
	sort.SliceStable(out, func(i, j int) bool {
		return repairRank(out[i]) < repairRank(out[j])
	})
	return out
}

func repairRank(item model.RepairItem) float64 {
	if item.UnitMTTR == 0 {
		return math.Inf(-1)
	}
	return item.RepairValue()
}

// AutoRepair greedily chooses how much of each item to repair within a
// budget of crew hours. Items are taken in SortRepairItems order. Items with
// no repair time are always repaired in full. When the whole item does not
// fit, continuous demand (no discretization) is repaired pro rata with the
// remaining budget; otherwise only whole units are repaired. The returned
// items carry the repaired amounts and never need more than budget hours.
func AutoRepair(items []model.RepairItem, budget float64, discretization model.ItemDiscretization) []model.RepairItem {
	var repaired []model.RepairItem
	take := func(item model.RepairItem, amount float64) {
		if amount <= 0 {
			return
		}
		item.Demand.Amount = amount
		repaired = append(repaired, item)
	}

	for _, item := range SortRepairItems(items) {
		amount := item.Demand.Amount
		if amount <= 0 {
			continue
		}
		need := item.MeanRepairTime()
		switch {
		case item.UnitMTTR == 0:
			take(item, amount)
		case need <= budget:
			budget -= need
			take(item, amount)
		case discretization == model.DiscretizeNone && budget > 0:
			take(item, amount*budget/need)
			budget = 0
		case budget >= item.UnitMTTR:
			units := math.Floor(math.Min(amount, budget/item.UnitMTTR))
			budget -= units * item.UnitMTTR
			take(item, units)
		}
	}
	return repaired
}

// ApplyAutoRepair runs AutoRepair over one mission's table and merges the
// result into ledger. It returns the crew hours spent.
func ApplyAutoRepair(ledger model.RepairLedger, table RepairTable, budget float64, discretization model.ItemDiscretization) float64 {
	repaired := AutoRepair(table.Sorted, budget, discretization)
	spent := 0.0
	for _, item := range repaired {
		spent += item.MeanRepairTime()
	}
	if len(repaired) > 0 {
		ledger.Merge(table.Mission, repaired...)
	}
	return spent
}
