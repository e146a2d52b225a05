package model

// EventKind tags the variant held by an Event.
type EventKind int

const (
	EventCreate EventKind = iota
	EventAdd
	EventMove
	EventTransfer
	EventRemove
	EventReconfigure
	EventReconfigureGroup
	EventDemand
	EventBurn
	EventEVA
	EventExploration
	EventSpaceTransport
	EventSurfaceTransport
	EventFlightTransport
)

var eventKindNames = [...]string{
	EventCreate:           "create",
	EventAdd:              "add",
	EventMove:             "move",
	EventTransfer:         "transfer",
	EventRemove:           "remove",
	EventReconfigure:      "reconfigure",
	EventReconfigureGroup: "reconfigure_group",
	EventDemand:           "demand",
	EventBurn:             "burn",
	EventEVA:              "eva",
	EventExploration:      "exploration",
	EventSpaceTransport:   "space_transport",
	EventSurfaceTransport: "surface_transport",
	EventFlightTransport:  "flight_transport",
}

func (k EventKind) String() string {
	if k >= 0 && int(k) < len(eventKindNames) {
		return eventKindNames[k]
	}
	return "unknown"
}

// ParseEventKind maps a kind name back to its EventKind.
func ParseEventKind(name string) (EventKind, bool) {
	for i, n := range eventKindNames {
		if n == name {
			return EventKind(i), true
		}
	}
	return 0, false
}

// Event is one timed operation within a mission. Time is in days relative to
// the owning mission's start date. Lower priority values run first among
// events at the same instant.
type Event struct {
	Name     string
	Time     float64
	Priority int
	Location LocationID
	Payload  Payload
}

// Kind returns the tag of the event's payload.
func (e Event) Kind() EventKind {
	if e.Payload == nil {
		return -1
	}
	return e.Payload.Kind()
}

// Payload is the kind-specific data of an Event. The set of implementations
// is closed to this package.
type Payload interface {
	Kind() EventKind
	payload()
}

// ContainerRef points at either a location or an element acting as a
// container. The zero value means "the event's location".
type ContainerRef struct {
	Location LocationID `json:"location,omitempty"`
	Element  ElementID  `json:"element,omitempty"`
}

// IsElement reports whether the reference targets an element.
func (c ContainerRef) IsElement() bool { return c.Element != 0 }

// IsZero reports whether no container was given.
func (c ContainerRef) IsZero() bool { return c.Element == 0 && c.Location == 0 }

// InLocation returns a reference to a location container.
func InLocation(id LocationID) ContainerRef { return ContainerRef{Location: id} }

// InElement returns a reference to an element container.
func InElement(id ElementID) ContainerRef { return ContainerRef{Element: id} }

type CreatePayload struct {
	Container ContainerRef
	Elements  []ElementID
}

type AddPayload struct {
	Container ElementID
	Demands   []Demand
}

type MovePayload struct {
	Container ContainerRef
	Elements  []ElementID
}

type TransferPayload struct {
	Origin      ElementID
	Destination ElementID
	Demands     []Demand
}

type RemovePayload struct {
	Elements []ElementID
}

type ReconfigurePayload struct {
	Element ElementID
	State   int
}

type ReconfigureGroupPayload struct {
	Elements  []ElementID
	StateType StateType
}

// DemandPayload consumes resources on behalf of Element, which may be zero
// for location-level demands.
type DemandPayload struct {
	Element ElementID
	Demands []Demand
}

// BurnAction is one step of a burn sequence.
type BurnAction int

const (
	// ActionBurn fires the element's engines.
	ActionBurn BurnAction = iota
	// ActionStage drops the element from the stack.
	ActionStage
)

// BurnStageItem pairs an action with the element that performs it.
type BurnStageItem struct {
	Action  BurnAction
	Element ElementID
}

type BurnPayload struct {
	Elements []ElementID
	Burn     Burn
	Sequence []BurnStageItem
}

// CrewAssignment binds a crew member to the state it takes during an EVA.
type CrewAssignment struct {
	Crew  ElementID
	State int
}

type EVAPayload struct {
	Vehicle  ElementID
	Crew     []CrewAssignment
	Duration float64 // hours
	Demands  []Demand
}

type ExplorationPayload struct {
	Vehicle     ElementID
	Crew        []CrewAssignment
	Duration    float64 // days
	EVAsPerWeek float64
	EVADuration float64 // hours
	Demands     []Demand
}

// SpaceTransportPayload moves elements along a space edge. Burns holds one
// burn/stage sequence per burn declared on the edge.
type SpaceTransportPayload struct {
	Edge     LocationID
	Elements []ElementID
	Burns    [][]BurnStageItem
}

// SurfaceTransportPayload drives a surface vehicle, with its contents, along
// a surface edge. TransportState is the vehicle state used while driving; a
// negative value leaves the state unchanged.
type SurfaceTransportPayload struct {
	Edge           LocationID
	Vehicle        ElementID
	TransportState int
	Speed          float64 // km/h
	DutyCycle      float64
}

type FlightTransportPayload struct {
	Edge     LocationID
	Elements []ElementID
}

func (CreatePayload) Kind() EventKind           { return EventCreate }
func (AddPayload) Kind() EventKind              { return EventAdd }
func (MovePayload) Kind() EventKind             { return EventMove }
func (TransferPayload) Kind() EventKind         { return EventTransfer }
func (RemovePayload) Kind() EventKind           { return EventRemove }
func (ReconfigurePayload) Kind() EventKind      { return EventReconfigure }
func (ReconfigureGroupPayload) Kind() EventKind { return EventReconfigureGroup }
func (DemandPayload) Kind() EventKind           { return EventDemand }
func (BurnPayload) Kind() EventKind             { return EventBurn }
func (EVAPayload) Kind() EventKind              { return EventEVA }
func (ExplorationPayload) Kind() EventKind      { return EventExploration }
func (SpaceTransportPayload) Kind() EventKind   { return EventSpaceTransport }
func (SurfaceTransportPayload) Kind() EventKind { return EventSurfaceTransport }
func (FlightTransportPayload) Kind() EventKind  { return EventFlightTransport }

func (CreatePayload) payload()           {}
func (AddPayload) payload()              {}
func (MovePayload) payload()             {}
func (TransferPayload) payload()         {}
func (RemovePayload) payload()           {}
func (ReconfigurePayload) payload()      {}
func (ReconfigureGroupPayload) payload() {}
func (DemandPayload) payload()           {}
func (BurnPayload) payload()             {}
func (EVAPayload) payload()              {}
func (ExplorationPayload) payload()      {}
func (SpaceTransportPayload) payload()   {}
func (SurfaceTransportPayload) payload() {}
func (FlightTransportPayload) payload()  {}
