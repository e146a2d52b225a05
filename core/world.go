package core

import (
	"errors"
	"fmt"
	"sort"

	"github.com/signalsfoundry/logistics-simulator/model"
)

var (
	errNotFound       = errors.New("was not found")
	errAlreadyExists  = errors.New("already exists")
	errNotContainer   = errors.New("cannot hold resources")
	errNotCarrier     = errors.New("cannot carry elements")
	errIncompatible   = errors.New("incompatible resource")
	errInsufficient   = errors.New("insufficient resources")
	errContainmentCyc = errors.New("cannot be placed inside itself")
)

// elementState is the run-local, mutable side of an element definition.
type elementState struct {
	def      *model.Element
	parent   model.ContainerRef
	location model.LocationID
	contents []model.ElementID
	state    int

	parts  []model.PartApplication
	ledger []model.Demand

	tank     *model.Tank
	omsTank  *model.Tank
	rcsTank  *model.Tank
	fuelTank *model.Tank
}

func newElementState(def *model.Element) *elementState {
	st := &elementState{
		def:   def,
		state: -1,
		parts: append([]model.PartApplication(nil), def.Parts...),
	}
	if len(def.States) > 0 && def.InitialState >= 0 && def.InitialState < len(def.States) {
		st.state = def.InitialState
	}
	for _, d := range def.Resources {
		st.ledger = addToLedger(st.ledger, d.Resource, d.Amount)
	}
	st.tank = cloneTank(def.Tank)
	st.omsTank = cloneTank(def.OMSTank)
	st.rcsTank = cloneTank(def.RCSTank)
	st.fuelTank = cloneTank(def.FuelTank)
	return st
}

func cloneTank(t *model.Tank) *model.Tank {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func (st *elementState) currentState() *model.State {
	if st.state < 0 || st.state >= len(st.def.States) {
		return nil
	}
	return &st.def.States[st.state]
}

func (st *elementState) decommissioned() bool {
	s := st.currentState()
	return s != nil && s.Type == model.StateDecommissioned
}

// World is the arena holding every live element of one simulation run.
// Elements, containers and locations refer to each other by ID only.
type World struct {
	network    *model.Network
	defs       map[model.ElementID]*model.Element
	live       map[model.ElementID]*elementState
	removed    map[model.ElementID]bool
	byLocation map[model.LocationID][]model.ElementID

	// moved is set whenever a location binding changes and cleared by the
	// simulator after it takes a snapshot.
	moved bool
}

// NewWorld builds an empty arena over the network and element definitions.
// Definitions are copied so a run never mutates the scenario.
func NewWorld(network *model.Network, defs []model.Element) *World {
	w := &World{
		network:    network,
		defs:       make(map[model.ElementID]*model.Element, len(defs)),
		live:       make(map[model.ElementID]*elementState),
		removed:    make(map[model.ElementID]bool),
		byLocation: make(map[model.LocationID][]model.ElementID),
	}
	for i := range defs {
		def := defs[i]
		w.defs[def.ID] = &def
	}
	return w
}

// Exists reports whether the element is currently in the simulation.
func (w *World) Exists(id model.ElementID) bool {
	_, ok := w.live[id]
	return ok
}

// LocationOf returns the location of a live element.
func (w *World) LocationOf(id model.ElementID) (model.LocationID, bool) {
	st, ok := w.live[id]
	if !ok {
		return 0, false
	}
	return st.location, true
}

// ParentOf returns the container directly holding a live element.
func (w *World) ParentOf(id model.ElementID) (model.ContainerRef, bool) {
	st, ok := w.live[id]
	if !ok {
		return model.ContainerRef{}, false
	}
	return st.parent, true
}

// Contents returns the elements directly inside a container.
func (w *World) Contents(ref model.ContainerRef) []model.ElementID {
	if ref.IsElement() {
		if st, ok := w.live[ref.Element]; ok {
			return append([]model.ElementID(nil), st.contents...)
		}
		return nil
	}
	return append([]model.ElementID(nil), w.byLocation[ref.Location]...)
}

// CurrentState returns the state index of a live element, or -1.
func (w *World) CurrentState(id model.ElementID) int {
	if st, ok := w.live[id]; ok {
		return st.state
	}
	return -1
}

// LiveIDs returns every live element in ascending ID order.
func (w *World) LiveIDs() []model.ElementID {
	ids := make([]model.ElementID, 0, len(w.live))
	for id := range w.live {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// containerLocation resolves where a container is.
func (w *World) containerLocation(ref model.ContainerRef) (model.LocationID, error) {
	if ref.IsElement() {
		st, ok := w.live[ref.Element]
		if !ok {
			return 0, fmt.Errorf("container %d %w", ref.Element, errNotFound)
		}
		return st.location, nil
	}
	if !w.network.HasLocation(ref.Location) {
		return 0, fmt.Errorf("location %d %w", ref.Location, errNotFound)
	}
	return ref.Location, nil
}

// create instantiates an element and its declared contents inside ref.
func (w *World) create(id model.ElementID, ref model.ContainerRef) error {
	if st, ok := w.live[id]; ok {
		return fmt.Errorf("element %d %w at %d", id, errAlreadyExists, st.location)
	}
	def, ok := w.defs[id]
	if !ok {
		return fmt.Errorf("element %d %w", id, errNotFound)
	}
	if ref.IsElement() {
		parent, ok := w.live[ref.Element]
		if !ok {
			return fmt.Errorf("container %d %w", ref.Element, errNotFound)
		}
		if !parent.def.Kind.IsCarrier() {
			return fmt.Errorf("container %d %w", ref.Element, errNotCarrier)
		}
	} else if _, err := w.containerLocation(ref); err != nil {
		return err
	}

	st := newElementState(def)
	w.live[id] = st
	delete(w.removed, id)
	w.attach(id, ref)

	var errs []error
	for _, child := range def.Contents {
		if err := w.create(child, model.InElement(id)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// attach places a live, detached element inside ref.
func (w *World) attach(id model.ElementID, ref model.ContainerRef) {
	st := w.live[id]
	st.parent = ref
	if ref.IsElement() {
		parent := w.live[ref.Element]
		parent.contents = append(parent.contents, id)
		w.setLocation(id, parent.location)
	} else {
		w.byLocation[ref.Location] = append(w.byLocation[ref.Location], id)
		w.setLocation(id, ref.Location)
	}
	w.moved = true
}

func (w *World) detach(id model.ElementID) {
	st := w.live[id]
	if st.parent.IsElement() {
		if parent, ok := w.live[st.parent.Element]; ok {
			parent.contents = removeID(parent.contents, id)
		}
	} else {
		w.byLocation[st.parent.Location] = removeID(w.byLocation[st.parent.Location], id)
	}
	st.parent = model.ContainerRef{}
	w.moved = true
}

func (w *World) setLocation(id model.ElementID, loc model.LocationID) {
	st := w.live[id]
	if st.location != loc {
		w.moved = true
	}
	st.location = loc
	for _, child := range st.contents {
		w.setLocation(child, loc)
	}
}

// move relocates a live element into ref.
func (w *World) move(id model.ElementID, ref model.ContainerRef) error {
	if _, ok := w.live[id]; !ok {
		return fmt.Errorf("element %d %w", id, errNotFound)
	}
	if ref.IsElement() {
		parent, ok := w.live[ref.Element]
		if !ok {
			return fmt.Errorf("container %d %w", ref.Element, errNotFound)
		}
		if !parent.def.Kind.IsCarrier() {
			return fmt.Errorf("container %d %w", ref.Element, errNotCarrier)
		}
		if ref.Element == id || w.isDescendant(ref.Element, id) {
			return fmt.Errorf("element %d %w", id, errContainmentCyc)
		}
	} else if _, err := w.containerLocation(ref); err != nil {
		return err
	}
	w.detach(id)
	w.attach(id, ref)
	return nil
}

// isDescendant reports whether id is nested, at any depth, inside ancestor.
func (w *World) isDescendant(id, ancestor model.ElementID) bool {
	st, ok := w.live[id]
	for ok && st.parent.IsElement() {
		if st.parent.Element == ancestor {
			return true
		}
		st, ok = w.live[st.parent.Element]
	}
	return false
}

// remove takes an element and its nested contents out of the simulation.
func (w *World) remove(id model.ElementID) error {
	if _, ok := w.live[id]; !ok {
		return fmt.Errorf("element %d %w", id, errNotFound)
	}
	w.detach(id)
	w.unregister(id)
	return nil
}

func (w *World) unregister(id model.ElementID) {
	st := w.live[id]
	for _, child := range st.contents {
		w.unregister(child)
	}
	delete(w.live, id)
	w.removed[id] = true
}

// TopLevel returns the outermost element of the stack containing id.
func (w *World) TopLevel(id model.ElementID) model.ElementID {
	st, ok := w.live[id]
	for ok && st.parent.IsElement() {
		id = st.parent.Element
		st, ok = w.live[id]
	}
	return id
}

// descendants returns every element nested inside id, depth first.
func (w *World) descendants(id model.ElementID) []model.ElementID {
	st, ok := w.live[id]
	if !ok {
		return nil
	}
	var out []model.ElementID
	for _, child := range st.contents {
		out = append(out, child)
		out = append(out, w.descendants(child)...)
	}
	return out
}

// TotalMass returns the mass of an element including its resources, tanks
// and nested elements.
func (w *World) TotalMass(id model.ElementID) float64 {
	st, ok := w.live[id]
	if !ok {
		return 0
	}
	mass := st.def.Mass + ledgerMass(st.ledger)
	for _, t := range []*model.Tank{st.tank, st.omsTank, st.rcsTank, st.fuelTank} {
		if t != nil {
			mass += t.Amount * unitMass(t.Resource)
		}
	}
	for _, child := range st.contents {
		mass += w.TotalMass(child)
	}
	return mass
}

// CargoMass returns the mass carried by an element, excluding crew.
func (w *World) CargoMass(id model.ElementID) float64 {
	st, ok := w.live[id]
	if !ok {
		return 0
	}
	mass := ledgerMass(st.ledger)
	for _, child := range st.contents {
		if w.live[child].def.Kind == model.KindCrewMember {
			continue
		}
		mass += w.TotalMass(child)
	}
	return mass
}

// CargoVolume returns the volume carried by an element, excluding crew.
func (w *World) CargoVolume(id model.ElementID) float64 {
	st, ok := w.live[id]
	if !ok {
		return 0
	}
	volume := 0.0
	for _, d := range st.ledger {
		volume += d.Volume()
	}
	for _, child := range st.contents {
		cs := w.live[child]
		if cs.def.Kind == model.KindCrewMember {
			continue
		}
		volume += cs.def.Volume
	}
	return volume
}

// CrewCount returns the number of crew members nested inside id.
func (w *World) CrewCount(id model.ElementID) int {
	n := 0
	for _, d := range w.descendants(id) {
		if w.live[d].def.Kind == model.KindCrewMember {
			n++
		}
	}
	return n
}

// ResourceAmount returns the amount of r held by a live element's ledger or
// tanks.
func (w *World) ResourceAmount(id model.ElementID, r model.Resource) float64 {
	st, ok := w.live[id]
	if !ok {
		return 0
	}
	total := ledgerAmount(st.ledger, r)
	for _, t := range []*model.Tank{st.tank, st.omsTank, st.rcsTank, st.fuelTank} {
		if t != nil && t.Resource == r {
			total += t.Amount
		}
	}
	return total
}

// TotalResource sums r across every live element in the network.
func (w *World) TotalResource(r model.Resource) float64 {
	total := 0.0
	for _, id := range w.LiveIDs() {
		total += w.ResourceAmount(id, r)
	}
	return total
}

// addResource changes a container's stock of r by amount. A negative amount
// removes stock and fails when not enough is held. It returns the amount by
// which declared capacity is exceeded after the change; overage is allowed.
func (w *World) addResource(id model.ElementID, r model.Resource, amount float64) (float64, error) {
	st, ok := w.live[id]
	if !ok {
		return 0, fmt.Errorf("container %d %w", id, errNotFound)
	}
	switch st.def.Kind {
	case model.KindResourceTank:
		if st.tank == nil || st.tank.Resource != r {
			return 0, fmt.Errorf("%s into tank %d: %w", r, id, errIncompatible)
		}
		if st.tank.Amount+amount < 0 {
			return 0, fmt.Errorf("%s from tank %d: %w", r, id, errInsufficient)
		}
		st.tank.Amount += amount
		if st.tank.MaxAmount > 0 && st.tank.Amount > st.tank.MaxAmount {
			return (st.tank.Amount - st.tank.MaxAmount) * unitMass(r), nil
		}
		return 0, nil
	case model.KindResourceContainer:
		if ledgerAmount(st.ledger, r)+amount < 0 {
			return 0, fmt.Errorf("%s from container %d: %w", r, id, errInsufficient)
		}
		st.ledger = addToLedger(st.ledger, r, amount)
		if st.def.MaxCargoMass > 0 {
			if over := ledgerMass(st.ledger) - st.def.MaxCargoMass; over > 0 {
				return over, nil
			}
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("element %d %w", id, errNotContainer)
	}
}

// consume satisfies as much of d as the element's stock allows. Stock of any
// substitutable resource counts. Exploration and research demands (COS6) are
// satisfied without drawing the stock down.
func (w *World) consume(id model.ElementID, d *model.Demand) {
	st, ok := w.live[id]
	if !ok || d.Amount <= 0 {
		return
	}
	keep := d.Resource.ClassOfSupply.IsInstanceOf(model.COS6)
	draw := func(held *float64) {
		if *held <= 0 || d.Amount <= 0 {
			return
		}
		used := d.Amount
		if *held < used {
			used = *held
		}
		d.Amount -= used
		if !keep {
			*held -= used
		}
	}
	for i := range st.ledger {
		if st.ledger[i].Resource.SubstitutesFor(d.Resource) {
			draw(&st.ledger[i].Amount)
		}
	}
	for _, t := range []*model.Tank{st.tank, st.omsTank, st.rcsTank, st.fuelTank} {
		if t != nil && t.Resource.SubstitutesFor(d.Resource) {
			draw(&t.Amount)
		}
	}
}

// produce absorbs a negative demand (production) into the element's stock
// up to its remaining capacity.
func (w *World) produce(id model.ElementID, d *model.Demand) {
	st, ok := w.live[id]
	if !ok || d.Amount >= 0 {
		return
	}
	switch st.def.Kind {
	case model.KindResourceContainer:
		room := -d.Amount
		if st.def.MaxCargoMass > 0 {
			free := (st.def.MaxCargoMass - ledgerMass(st.ledger)) / unitMass(d.Resource)
			if free < room {
				room = free
			}
		}
		if room <= 0 {
			return
		}
		st.ledger = addToLedger(st.ledger, d.Resource, room)
		d.Amount += room
	case model.KindResourceTank:
		if st.tank == nil || st.tank.Resource != d.Resource {
			return
		}
		room := -d.Amount
		if st.tank.MaxAmount > 0 && st.tank.MaxAmount-st.tank.Amount < room {
			room = st.tank.MaxAmount - st.tank.Amount
		}
		if room <= 0 {
			return
		}
		st.tank.Amount += room
		d.Amount += room
	}
}

// Snapshot captures the current location bindings.
func (w *World) Snapshot(t float64) model.SimState {
	s := model.SimState{
		Time:      t,
		Locations: make(map[model.ElementID]model.LocationID, len(w.live)),
		Parents:   make(map[model.ElementID]model.ContainerRef, len(w.live)),
	}
	for id, st := range w.live {
		s.Locations[id] = st.location
		s.Parents[id] = st.parent
	}
	return s
}

func addToLedger(ledger []model.Demand, r model.Resource, amount float64) []model.Demand {
	for i := range ledger {
		if ledger[i].Resource == r {
			ledger[i].Amount += amount
			return ledger
		}
	}
	return append(ledger, model.Demand{Resource: r, Amount: amount})
}

func ledgerAmount(ledger []model.Demand, r model.Resource) float64 {
	for _, d := range ledger {
		if d.Resource == r {
			return d.Amount
		}
	}
	return 0
}

func ledgerMass(ledger []model.Demand) float64 {
	total := 0.0
	for _, d := range ledger {
		total += d.Mass()
	}
	return total
}

func unitMass(r model.Resource) float64 {
	if r.UnitMass <= 0 {
		return 1
	}
	return r.UnitMass
}

func removeID(ids []model.ElementID, id model.ElementID) []model.ElementID {
	for i, x := range ids {
		if x == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
