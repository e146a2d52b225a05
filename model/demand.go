package model

// Demand is a requirement for an amount of a resource. A negative amount is
// production or return rather than consumption.
type Demand struct {
	Resource Resource `json:"resource"`
	Amount   float64  `json:"amount"`
}

// Mass returns the demanded mass.
func (d Demand) Mass() float64 { return d.Amount * d.Resource.UnitMass }

// Volume returns the demanded volume.
func (d Demand) Volume() float64 { return d.Amount * d.Resource.UnitVolume }

// DemandSet is an ordered collection of demands with at most one entry per
// resource. Adding a demand for a resource already present merges amounts.
type DemandSet struct {
	items []Demand
}

// NewDemandSet builds a set from the given demands, merging duplicates.
func NewDemandSet(demands ...Demand) *DemandSet {
	s := &DemandSet{}
	for _, d := range demands {
		s.Add(d)
	}
	return s
}

// Add merges d into the set.
func (s *DemandSet) Add(d Demand) {
	for i := range s.items {
		if s.items[i].Resource == d.Resource {
			s.items[i].Amount += d.Amount
			return
		}
	}
	s.items = append(s.items, d)
}

// AddAll merges every demand of other into the set.
func (s *DemandSet) AddAll(other *DemandSet) {
	if other == nil {
		return
	}
	for _, d := range other.items {
		s.Add(d)
	}
}

// Len returns the number of distinct resources in the set.
func (s *DemandSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// At returns a pointer to the i-th demand so callers can adjust amounts in
// place.
func (s *DemandSet) At(i int) *Demand { return &s.items[i] }

// Demands returns a copy of the demands in insertion order.
func (s *DemandSet) Demands() []Demand {
	if s == nil {
		return nil
	}
	out := make([]Demand, len(s.items))
	copy(out, s.items)
	return out
}

// Amount returns the amount demanded for r.
func (s *DemandSet) Amount(r Resource) float64 {
	if s == nil {
		return 0
	}
	for _, d := range s.items {
		if d.Resource == r {
			return d.Amount
		}
	}
	return 0
}

// TotalAmount sums amounts across all resources.
func (s *DemandSet) TotalAmount() float64 {
	if s == nil {
		return 0
	}
	total := 0.0
	for _, d := range s.items {
		total += d.Amount
	}
	return total
}

// TotalMass sums demanded mass across all resources.
func (s *DemandSet) TotalMass() float64 {
	if s == nil {
		return 0
	}
	total := 0.0
	for _, d := range s.items {
		total += d.Mass()
	}
	return total
}

// Clean removes entries whose amount is zero.
func (s *DemandSet) Clean() {
	kept := s.items[:0]
	for _, d := range s.items {
		if d.Amount != 0 {
			kept = append(kept, d)
		}
	}
	s.items = kept
}

// Clone returns an independent copy of the set.
func (s *DemandSet) Clone() *DemandSet {
	if s == nil {
		return &DemandSet{}
	}
	return &DemandSet{items: s.Demands()}
}
