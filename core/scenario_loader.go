// core/scenario_loader.go
package core

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/logistics-simulator/kb"
	"github.com/signalsfoundry/logistics-simulator/model"
)

// internal document shapes, kept unexported so the file format can evolve
// independently of the model. JSON documents decode through the same tags.
type scenarioDoc struct {
	Name          string          `yaml:"name"`
	StartDate     string          `yaml:"start_date"`
	Config        configDoc       `yaml:"config"`
	Resources     []resourceDoc   `yaml:"resources"`
	Nodes         []nodeDoc       `yaml:"nodes"`
	Edges         []edgeDoc       `yaml:"edges"`
	Elements      []elementDoc    `yaml:"elements"`
	Missions      []missionDoc    `yaml:"missions"`
	RepairedItems []repairItemDoc `yaml:"repaired_items"`
}

type configDoc struct {
	ItemDiscretization     string   `yaml:"item_discretization"`
	ItemAggregation        *float64 `yaml:"item_aggregation"`
	ScavengeSpares         *bool    `yaml:"scavenge_spares"`
	PackingDemandsAdded    *bool    `yaml:"packing_demands_added"`
	DemandsSatisfied       *bool    `yaml:"demands_satisfied"`
	EnvironmentConstrained *bool    `yaml:"environment_constrained"`
	VolumeConstrained      *bool    `yaml:"volume_constrained"`
	DetailedEVA            *bool    `yaml:"detailed_eva"`
	TimePrecision          *float64 `yaml:"time_precision"`
	DemandPrecision        *float64 `yaml:"demand_precision"`
	MassPrecision          *float64 `yaml:"mass_precision"`
	VolumePrecision        *float64 `yaml:"volume_precision"`
}

type resourceDoc struct {
	ID            int     `yaml:"id"`
	Name          string  `yaml:"name"`
	Kind          string  `yaml:"kind"` // "continuous" | "item"
	COS           int     `yaml:"cos"`
	Environment   string  `yaml:"environment"`
	Units         string  `yaml:"units"`
	UnitMass      float64 `yaml:"unit_mass"`
	UnitVolume    float64 `yaml:"unit_volume"`
	PackingFactor float64 `yaml:"packing_factor"`
}

// demandDoc names either a catalogued resource by id or a generic class of
// supply by cos and environment.
type demandDoc struct {
	Resource    int     `yaml:"resource"`
	COS         int     `yaml:"cos"`
	Environment string  `yaml:"environment"`
	Amount      float64 `yaml:"amount"`
}

type nodeDoc struct {
	ID   int    `yaml:"id"`
	Name string `yaml:"name"`
	Type string `yaml:"type"` // "surface" | "orbital" | "lagrange"
	Body string `yaml:"body"`
}

type burnDoc struct {
	Time   float64 `yaml:"time"`
	Type   string  `yaml:"type"` // "oms" | "rcs"
	DeltaV float64 `yaml:"delta_v"`
}

type edgeDoc struct {
	ID           int       `yaml:"id"`
	Name         string    `yaml:"name"`
	Type         string    `yaml:"type"` // "space" | "surface" | "flight"
	Origin       int       `yaml:"origin"`
	Destination  int       `yaml:"destination"`
	Duration     float64   `yaml:"duration"`
	Burns        []burnDoc `yaml:"burns"`
	Distance     float64   `yaml:"distance"`
	MaxCrew      int       `yaml:"max_crew"`
	MaxCargoMass float64   `yaml:"max_cargo_mass"`
}

type demandModelDoc struct {
	Name              string      `yaml:"name"`
	Type              string      `yaml:"type"` // "rated" | "timed_impulse" | "sparing_by_mass"
	Demands           []demandDoc `yaml:"demands"`
	PressurizedRate   float64     `yaml:"pressurized_rate"`
	UnpressurizedRate float64     `yaml:"unpressurized_rate"`
	PartsListEnabled  bool        `yaml:"parts_list_enabled"`
}

type stateDoc struct {
	Name         string           `yaml:"name"`
	Type         string           `yaml:"type"`
	DemandModels []demandModelDoc `yaml:"demand_models"`
}

type partDoc struct {
	Resource     int     `yaml:"resource"`
	MTTF         float64 `yaml:"mttf"`
	MTTR         float64 `yaml:"mttr"`
	MassToRepair float64 `yaml:"mass_to_repair"`
	Quantity     float64 `yaml:"quantity"`
	DutyCycle    float64 `yaml:"duty_cycle"`
}

type tankDoc struct {
	Resource  int     `yaml:"resource"`
	MaxAmount float64 `yaml:"max_amount"`
	Amount    float64 `yaml:"amount"`
}

type elementDoc struct {
	ID           int         `yaml:"id"`
	Name         string      `yaml:"name"`
	Kind         string      `yaml:"kind"`
	COS          int         `yaml:"cos"`
	Environment  string      `yaml:"environment"`
	Mass         float64     `yaml:"mass"`
	Volume       float64     `yaml:"volume"`
	Parts        []partDoc   `yaml:"parts"`
	States       []stateDoc  `yaml:"states"`
	InitialState *int        `yaml:"initial_state"`
	Contents     []int       `yaml:"contents"`
	Resources    []demandDoc `yaml:"resources"`

	MaxCargoMass          float64 `yaml:"max_cargo_mass"`
	MaxCargoVolume        float64 `yaml:"max_cargo_volume"`
	CargoEnvironment      string  `yaml:"cargo_environment"`
	MaxCrewSize           int     `yaml:"max_crew_size"`
	AvailableTimeFraction float64 `yaml:"available_time_fraction"`

	Tank     *tankDoc `yaml:"tank"`
	OMSIsp   float64  `yaml:"oms_isp"`
	RCSIsp   float64  `yaml:"rcs_isp"`
	OMSTank  *tankDoc `yaml:"oms_tank"`
	RCSTank  *tankDoc `yaml:"rcs_tank"`
	MaxSpeed float64  `yaml:"max_speed"`
	FuelTank *tankDoc `yaml:"fuel_tank"`
}

type containerDoc struct {
	Location int `yaml:"location"`
	Element  int `yaml:"element"`
}

type crewDoc struct {
	Crew  int  `yaml:"crew"`
	State *int `yaml:"state"`
}

type burnItemDoc struct {
	Action  string `yaml:"action"` // "burn" | "stage"
	Element int    `yaml:"element"`
}

// eventDoc is flat: Type selects which of the optional fields apply.
type eventDoc struct {
	Name     string  `yaml:"name"`
	Type     string  `yaml:"type"`
	Time     float64 `yaml:"time"`
	Priority int     `yaml:"priority"`
	Location int     `yaml:"location"`

	Container   containerDoc  `yaml:"container"`
	Elements    []int         `yaml:"elements"`
	Element     int           `yaml:"element"`
	Demands     []demandDoc   `yaml:"demands"`
	Origin      int           `yaml:"origin"`
	Destination int           `yaml:"destination"`
	State       *int          `yaml:"state"`
	StateType   string        `yaml:"state_type"`
	Burn        burnDoc       `yaml:"burn"`
	Sequence    []burnItemDoc `yaml:"sequence"`

	Vehicle     int       `yaml:"vehicle"`
	Crew        []crewDoc `yaml:"crew"`
	Duration    float64   `yaml:"duration"`
	EVAsPerWeek float64   `yaml:"evas_per_week"`
	EVADuration float64   `yaml:"eva_duration"`

	Edge           int             `yaml:"edge"`
	Burns          [][]burnItemDoc `yaml:"burns"`
	TransportState *int            `yaml:"transport_state"`
	Speed          float64         `yaml:"speed"`
	DutyCycle      float64         `yaml:"duty_cycle"`
}

type missionDoc struct {
	Name              string           `yaml:"name"`
	StartDate         string           `yaml:"start_date"`
	Origin            int              `yaml:"origin"`
	Destination       int              `yaml:"destination"`
	ReturnOrigin      int              `yaml:"return_origin"`
	ReturnDestination int              `yaml:"return_destination"`
	DemandModels      []demandModelDoc `yaml:"demand_models"`
	Events            []eventDoc       `yaml:"events"`
}

type repairItemDoc struct {
	Mission          int     `yaml:"mission"`
	Element          int     `yaml:"element"`
	Resource         int     `yaml:"resource"`
	Amount           float64 `yaml:"amount"`
	UnitMTTR         float64 `yaml:"unit_mttr"`
	UnitMassToRepair float64 `yaml:"unit_mass_to_repair"`
}

// LoadScenarioFile opens path and loads it with a fresh catalog.
func LoadScenarioFile(path string) (*model.Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("LoadScenario: %w", err)
	}
	defer f.Close()
	return LoadScenario(kb.NewKnowledgeBase(), f)
}

// LoadScenario reads a YAML or JSON scenario from r. Resources declared in
// the document are added to the catalog; demands, parts and tanks resolve
// their resources through it, so a catalog pre-seeded with a shared resource
// library may be reused across scenarios.
//
// It fails on decode errors and unresolvable names. Reference integrity
// between events, elements and locations is checked later by Validate.
func LoadScenario(catalog *kb.KnowledgeBase, r io.Reader) (*model.Scenario, error) {
	if catalog == nil {
		return nil, fmt.Errorf("LoadScenario: catalog is nil")
	}

	var doc scenarioDoc
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("LoadScenario: decode failed: %w", err)
	}

	l := &loader{catalog: catalog}
	scn, err := l.scenario(&doc)
	if err != nil {
		return nil, fmt.Errorf("LoadScenario: %w", err)
	}
	return scn, nil
}

type loader struct {
	catalog *kb.KnowledgeBase
}

func (l *loader) scenario(doc *scenarioDoc) (*model.Scenario, error) {
	scn := &model.Scenario{Name: doc.Name}

	start, err := parseDate(doc.StartDate)
	if err != nil {
		return nil, fmt.Errorf("scenario start date: %w", err)
	}
	scn.StartDate = start

	if scn.Config, err = doc.Config.toModel(); err != nil {
		return nil, err
	}

	// 1) Resources
	for _, rd := range doc.Resources {
		if err := l.addResource(rd); err != nil {
			return nil, err
		}
	}

	// 2) Network
	for _, nd := range doc.Nodes {
		n, err := nd.toModel()
		if err != nil {
			return nil, err
		}
		scn.Network.Nodes = append(scn.Network.Nodes, n)
	}
	for _, ed := range doc.Edges {
		e, err := ed.toModel()
		if err != nil {
			return nil, err
		}
		scn.Network.Edges = append(scn.Network.Edges, e)
	}

	// 3) Elements
	for i := range doc.Elements {
		el, err := l.element(&doc.Elements[i])
		if err != nil {
			return nil, err
		}
		scn.Elements = append(scn.Elements, el)
	}

	// 4) Missions
	for i := range doc.Missions {
		m, err := l.mission(&doc.Missions[i])
		if err != nil {
			return nil, err
		}
		scn.Missions = append(scn.Missions, m)
	}

	// 5) Repaired items
	if len(doc.RepairedItems) > 0 {
		scn.RepairedItems = make(model.RepairLedger)
		for _, ri := range doc.RepairedItems {
			res, err := l.catalog.Resource(ri.Resource)
			if err != nil {
				return nil, fmt.Errorf("repaired item for element %d: %w", ri.Element, err)
			}
			scn.RepairedItems.Merge(ri.Mission, model.RepairItem{
				Element:          model.ElementID(ri.Element),
				Demand:           model.Demand{Resource: res, Amount: ri.Amount},
				UnitMTTR:         ri.UnitMTTR,
				UnitMassToRepair: ri.UnitMassToRepair,
			})
		}
	}
	return scn, nil
}

// addResource registers rd, tolerating an identical entry already present in
// a shared catalog.
func (l *loader) addResource(rd resourceDoc) error {
	kind := model.ResourceContinuous
	switch strings.ToLower(strings.TrimSpace(rd.Kind)) {
	case "", "continuous":
	case "item", "discrete":
		kind = model.ResourceItem
	default:
		return fmt.Errorf("resource %d: unknown kind %q", rd.ID, rd.Kind)
	}
	res := model.Resource{
		ID:            rd.ID,
		Name:          rd.Name,
		Kind:          kind,
		ClassOfSupply: model.ClassOfSupply(rd.COS),
		Environment:   environmentFromString(rd.Environment),
		Units:         rd.Units,
		UnitMass:      rd.UnitMass,
		UnitVolume:    rd.UnitVolume,
		PackingFactor: rd.PackingFactor,
	}
	if existing, err := l.catalog.Resource(res.ID); err == nil {
		if existing != res {
			return fmt.Errorf("resource %d: conflicts with catalog entry %q", res.ID, existing.Name)
		}
		return nil
	}
	return l.catalog.AddResource(res)
}

func (l *loader) demands(docs []demandDoc) ([]model.Demand, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	out := make([]model.Demand, 0, len(docs))
	for _, d := range docs {
		var res model.Resource
		switch {
		case d.Resource != 0:
			r, err := l.catalog.Resource(d.Resource)
			if err != nil {
				return nil, err
			}
			res = r
		case d.COS != 0:
			res = model.GenericResource(model.ClassOfSupply(d.COS), environmentFromString(d.Environment))
		default:
			return nil, fmt.Errorf("demand names neither a resource nor a class of supply")
		}
		out = append(out, model.Demand{Resource: res, Amount: d.Amount})
	}
	return out, nil
}

func (l *loader) tank(td *tankDoc) (*model.Tank, error) {
	if td == nil {
		return nil, nil
	}
	res, err := l.catalog.Resource(td.Resource)
	if err != nil {
		return nil, err
	}
	return &model.Tank{Resource: res, MaxAmount: td.MaxAmount, Amount: td.Amount}, nil
}

func (l *loader) demandModels(docs []demandModelDoc) ([]model.DemandModel, error) {
	out := make([]model.DemandModel, 0, len(docs))
	for _, d := range docs {
		dm := model.DemandModel{
			Name:              d.Name,
			PressurizedRate:   d.PressurizedRate,
			UnpressurizedRate: d.UnpressurizedRate,
			PartsListEnabled:  d.PartsListEnabled,
		}
		switch strings.ToLower(strings.TrimSpace(d.Type)) {
		case "", "rated":
			dm.Kind = model.DemandRated
		case "timed_impulse", "impulse":
			dm.Kind = model.DemandTimedImpulse
		case "sparing_by_mass":
			dm.Kind = model.DemandSparingByMass
		default:
			return nil, fmt.Errorf("demand model %q: unknown type %q", d.Name, d.Type)
		}
		demands, err := l.demands(d.Demands)
		if err != nil {
			return nil, fmt.Errorf("demand model %q: %w", d.Name, err)
		}
		dm.Demands = demands
		out = append(out, dm)
	}
	return out, nil
}

func (l *loader) element(ed *elementDoc) (model.Element, error) {
	kind, ok := elementKinds[strings.ToLower(strings.TrimSpace(ed.Kind))]
	if !ok {
		return model.Element{}, fmt.Errorf("element %d: unknown kind %q", ed.ID, ed.Kind)
	}
	el := model.Element{
		ID:                    model.ElementID(ed.ID),
		Name:                  ed.Name,
		Kind:                  kind,
		ClassOfSupply:         model.ClassOfSupply(ed.COS),
		Environment:           environmentFromString(ed.Environment),
		Mass:                  ed.Mass,
		Volume:                ed.Volume,
		MaxCargoMass:          ed.MaxCargoMass,
		MaxCargoVolume:        ed.MaxCargoVolume,
		CargoEnvironment:      environmentFromString(ed.CargoEnvironment),
		MaxCrewSize:           ed.MaxCrewSize,
		AvailableTimeFraction: ed.AvailableTimeFraction,
		OMSIsp:                ed.OMSIsp,
		RCSIsp:                ed.RCSIsp,
		MaxSpeed:              ed.MaxSpeed,
	}
	wrap := func(err error) error { return fmt.Errorf("element %d: %w", ed.ID, err) }

	for _, pd := range ed.Parts {
		res, err := l.catalog.Resource(pd.Resource)
		if err != nil {
			return model.Element{}, wrap(err)
		}
		el.Parts = append(el.Parts, model.PartApplication{
			Part:         res,
			MTTF:         pd.MTTF,
			MTTR:         pd.MTTR,
			MassToRepair: pd.MassToRepair,
			Quantity:     pd.Quantity,
			DutyCycle:    pd.DutyCycle,
		})
	}
	for _, sd := range ed.States {
		st, ok := stateTypes[strings.ToLower(strings.TrimSpace(sd.Type))]
		if !ok {
			return model.Element{}, wrap(fmt.Errorf("state %q: unknown type %q", sd.Name, sd.Type))
		}
		models, err := l.demandModels(sd.DemandModels)
		if err != nil {
			return model.Element{}, wrap(err)
		}
		el.States = append(el.States, model.State{Name: sd.Name, Type: st, DemandModels: models})
	}
	el.InitialState = -1
	if ed.InitialState != nil {
		el.InitialState = *ed.InitialState
	} else if len(el.States) > 0 {
		el.InitialState = 0
	}
	for _, c := range ed.Contents {
		el.Contents = append(el.Contents, model.ElementID(c))
	}

	var err error
	if el.Resources, err = l.demands(ed.Resources); err != nil {
		return model.Element{}, wrap(err)
	}
	if el.Tank, err = l.tank(ed.Tank); err != nil {
		return model.Element{}, wrap(err)
	}
	if el.OMSTank, err = l.tank(ed.OMSTank); err != nil {
		return model.Element{}, wrap(err)
	}
	if el.RCSTank, err = l.tank(ed.RCSTank); err != nil {
		return model.Element{}, wrap(err)
	}
	if el.FuelTank, err = l.tank(ed.FuelTank); err != nil {
		return model.Element{}, wrap(err)
	}
	return el, nil
}

func (l *loader) mission(md *missionDoc) (model.Mission, error) {
	start, err := parseDate(md.StartDate)
	if err != nil {
		return model.Mission{}, fmt.Errorf("mission %q start date: %w", md.Name, err)
	}
	m := model.Mission{
		Name:              md.Name,
		StartDate:         start,
		Origin:            model.LocationID(md.Origin),
		Destination:       model.LocationID(md.Destination),
		ReturnOrigin:      model.LocationID(md.ReturnOrigin),
		ReturnDestination: model.LocationID(md.ReturnDestination),
	}
	if m.DemandModels, err = l.demandModels(md.DemandModels); err != nil {
		return model.Mission{}, fmt.Errorf("mission %q: %w", md.Name, err)
	}
	for i := range md.Events {
		ev, err := l.event(&md.Events[i])
		if err != nil {
			return model.Mission{}, fmt.Errorf("mission %q event %q: %w", md.Name, md.Events[i].Name, err)
		}
		m.Events = append(m.Events, ev)
	}
	return m, nil
}

func (l *loader) event(ed *eventDoc) (model.Event, error) {
	kind, ok := model.ParseEventKind(strings.ToLower(strings.TrimSpace(ed.Type)))
	if !ok {
		return model.Event{}, fmt.Errorf("unknown event type %q", ed.Type)
	}
	ev := model.Event{
		Name:     ed.Name,
		Time:     ed.Time,
		Priority: ed.Priority,
		Location: model.LocationID(ed.Location),
	}
	demands, err := l.demands(ed.Demands)
	if err != nil {
		return model.Event{}, err
	}
	elements := elementIDs(ed.Elements)
	container := model.ContainerRef{
		Location: model.LocationID(ed.Container.Location),
		Element:  model.ElementID(ed.Container.Element),
	}
	if container.IsZero() {
		container = model.InLocation(ev.Location)
	}

	switch kind {
	case model.EventCreate:
		ev.Payload = model.CreatePayload{Container: container, Elements: elements}
	case model.EventAdd:
		ev.Payload = model.AddPayload{Container: container.Element, Demands: demands}
	case model.EventMove:
		ev.Payload = model.MovePayload{Container: container, Elements: elements}
	case model.EventTransfer:
		ev.Payload = model.TransferPayload{
			Origin:      model.ElementID(ed.Origin),
			Destination: model.ElementID(ed.Destination),
			Demands:     demands,
		}
	case model.EventRemove:
		ev.Payload = model.RemovePayload{Elements: elements}
	case model.EventReconfigure:
		ev.Payload = model.ReconfigurePayload{Element: model.ElementID(ed.Element), State: intOr(ed.State, -1)}
	case model.EventReconfigureGroup:
		st, ok := stateTypes[strings.ToLower(strings.TrimSpace(ed.StateType))]
		if !ok {
			return model.Event{}, fmt.Errorf("unknown state type %q", ed.StateType)
		}
		ev.Payload = model.ReconfigureGroupPayload{Elements: elements, StateType: st}
	case model.EventDemand:
		ev.Payload = model.DemandPayload{Element: model.ElementID(ed.Element), Demands: demands}
	case model.EventBurn:
		seq, err := burnSequence(ed.Sequence)
		if err != nil {
			return model.Event{}, err
		}
		burn, err := ed.Burn.burn()
		if err != nil {
			return model.Event{}, fmt.Errorf("event %q: %w", ed.Name, err)
		}
		ev.Payload = model.BurnPayload{
			Elements: elements,
			Burn:     burn,
			Sequence: seq,
		}
	case model.EventEVA:
		ev.Payload = model.EVAPayload{
			Vehicle:  model.ElementID(ed.Vehicle),
			Crew:     crewAssignments(ed.Crew),
			Duration: ed.Duration,
			Demands:  demands,
		}
	case model.EventExploration:
		ev.Payload = model.ExplorationPayload{
			Vehicle:     model.ElementID(ed.Vehicle),
			Crew:        crewAssignments(ed.Crew),
			Duration:    ed.Duration,
			EVAsPerWeek: ed.EVAsPerWeek,
			EVADuration: ed.EVADuration,
			Demands:     demands,
		}
	case model.EventSpaceTransport:
		p := model.SpaceTransportPayload{Edge: model.LocationID(ed.Edge), Elements: elements}
		for _, items := range ed.Burns {
			seq, err := burnSequence(items)
			if err != nil {
				return model.Event{}, err
			}
			p.Burns = append(p.Burns, seq)
		}
		ev.Payload = p
	case model.EventSurfaceTransport:
		ev.Payload = model.SurfaceTransportPayload{
			Edge:           model.LocationID(ed.Edge),
			Vehicle:        model.ElementID(ed.Vehicle),
			TransportState: intOr(ed.TransportState, -1),
			Speed:          ed.Speed,
			DutyCycle:      ed.DutyCycle,
		}
	case model.EventFlightTransport:
		ev.Payload = model.FlightTransportPayload{Edge: model.LocationID(ed.Edge), Elements: elements}
	}
	return ev, nil
}

func (c configDoc) toModel() (model.Config, error) {
	cfg := model.DefaultConfig()
	if c.ItemDiscretization != "" {
		d, err := model.ParseItemDiscretization(c.ItemDiscretization)
		if err != nil {
			return cfg, err
		}
		cfg.ItemDiscretization = d
	}
	setFloat(&cfg.ItemAggregation, c.ItemAggregation)
	setBool(&cfg.ScavengeSpares, c.ScavengeSpares)
	setBool(&cfg.PackingDemandsAdded, c.PackingDemandsAdded)
	setBool(&cfg.DemandsSatisfied, c.DemandsSatisfied)
	setBool(&cfg.EnvironmentConstrained, c.EnvironmentConstrained)
	setBool(&cfg.VolumeConstrained, c.VolumeConstrained)
	setBool(&cfg.DetailedEVA, c.DetailedEVA)
	setFloat(&cfg.TimePrecision, c.TimePrecision)
	setFloat(&cfg.DemandPrecision, c.DemandPrecision)
	setFloat(&cfg.MassPrecision, c.MassPrecision)
	setFloat(&cfg.VolumePrecision, c.VolumePrecision)
	return cfg, nil
}

func (nd nodeDoc) toModel() (model.Node, error) {
	n := model.Node{ID: model.LocationID(nd.ID), Name: nd.Name, Body: model.Body(strings.ToUpper(nd.Body))}
	switch strings.ToLower(strings.TrimSpace(nd.Type)) {
	case "", "surface":
		n.Type = model.NodeSurface
	case "orbital":
		n.Type = model.NodeOrbital
	case "lagrange":
		n.Type = model.NodeLagrange
	default:
		return n, fmt.Errorf("node %d: unknown type %q", nd.ID, nd.Type)
	}
	return n, nil
}

func (ed edgeDoc) toModel() (model.Edge, error) {
	e := model.Edge{
		ID:           model.LocationID(ed.ID),
		Name:         ed.Name,
		Origin:       model.LocationID(ed.Origin),
		Destination:  model.LocationID(ed.Destination),
		Duration:     ed.Duration,
		Distance:     ed.Distance,
		MaxCrew:      ed.MaxCrew,
		MaxCargoMass: ed.MaxCargoMass,
	}
	switch strings.ToLower(strings.TrimSpace(ed.Type)) {
	case "", "space":
		e.Type = model.EdgeSpace
	case "surface":
		e.Type = model.EdgeSurface
	case "flight":
		e.Type = model.EdgeFlight
	default:
		return e, fmt.Errorf("edge %d: unknown type %q", ed.ID, ed.Type)
	}
	for _, bd := range ed.Burns {
		b, err := bd.burn()
		if err != nil {
			return e, fmt.Errorf("edge %d: %w", ed.ID, err)
		}
		e.Burns = append(e.Burns, b)
	}
	return e, nil
}

func (bd burnDoc) burn() (model.Burn, error) {
	b := model.Burn{Time: bd.Time, DeltaV: bd.DeltaV}
	switch strings.ToLower(strings.TrimSpace(bd.Type)) {
	case "", "oms":
		b.Type = model.BurnOMS
	case "rcs":
		b.Type = model.BurnRCS
	default:
		return b, fmt.Errorf("unknown burn type %q", bd.Type)
	}
	return b, nil
}

var elementKinds = map[string]model.ElementKind{
	"":                   model.KindElement,
	"element":            model.KindElement,
	"crew_member":        model.KindCrewMember,
	"resource_container": model.KindResourceContainer,
	"resource_tank":      model.KindResourceTank,
	"carrier":            model.KindCarrier,
	"propulsive_vehicle": model.KindPropulsiveVehicle,
	"surface_vehicle":    model.KindSurfaceVehicle,
}

var stateTypes = map[string]model.StateType{
	"":               model.StateActive,
	"active":         model.StateActive,
	"special":        model.StateSpecial,
	"quiescent":      model.StateQuiescent,
	"dormant":        model.StateDormant,
	"decommissioned": model.StateDecommissioned,
}

func burnSequence(items []burnItemDoc) ([]model.BurnStageItem, error) {
	out := make([]model.BurnStageItem, 0, len(items))
	for _, it := range items {
		item := model.BurnStageItem{Element: model.ElementID(it.Element)}
		switch strings.ToLower(strings.TrimSpace(it.Action)) {
		case "", "burn":
			item.Action = model.ActionBurn
		case "stage":
			item.Action = model.ActionStage
		default:
			return nil, fmt.Errorf("unknown burn action %q", it.Action)
		}
		out = append(out, item)
	}
	return out, nil
}

func crewAssignments(docs []crewDoc) []model.CrewAssignment {
	out := make([]model.CrewAssignment, 0, len(docs))
	for _, c := range docs {
		out = append(out, model.CrewAssignment{Crew: model.ElementID(c.Crew), State: intOr(c.State, -1)})
	}
	return out
}

func elementIDs(ids []int) []model.ElementID {
	if len(ids) == 0 {
		return nil
	}
	out := make([]model.ElementID, len(ids))
	for i, id := range ids {
		out[i] = model.ElementID(id)
	}
	return out
}

// environmentFromString is tolerant: anything but "pressurized" is
// unpressurized.
func environmentFromString(s string) model.Environment {
	if strings.EqualFold(strings.TrimSpace(s), string(model.EnvPressurized)) {
		return model.EnvPressurized
	}
	return model.EnvUnpressurized
}

// parseDate accepts RFC 3339 timestamps or bare dates, which are taken as
// midnight UTC. An empty string yields the zero time.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}
