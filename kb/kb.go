package kb

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/signalsfoundry/logistics-simulator/model"
)

var (
	// ErrResourceExists indicates a resource type already exists.
	ErrResourceExists = errors.New("resource already exists")
	// ErrResourceNotFound indicates a requested resource type was not found.
	ErrResourceNotFound = errors.New("resource not found")
	// ErrNodeExists indicates a node or edge already uses the location ID.
	ErrNodeExists = errors.New("location already exists")
	// ErrNodeNotFound indicates a requested node was not found.
	ErrNodeNotFound = errors.New("node not found")
	// ErrEdgeNotFound indicates a requested edge was not found.
	ErrEdgeNotFound = errors.New("edge not found")
	// ErrElementExists indicates an element template already exists.
	ErrElementExists = errors.New("element already exists")
	// ErrElementNotFound indicates a requested element template was not found.
	ErrElementNotFound = errors.New("element not found")
)

// EventType indicates what kind of change happened in the KB.
type EventType int

const (
	EventResourceAdded EventType = iota
	EventNodeAdded
	EventEdgeAdded
	EventElementAdded
	EventCleared
)

// Event is emitted to subscribers when the catalog changes.
type Event struct {
	Type       EventType
	ResourceID int
	LocationID model.LocationID
	ElementID  model.ElementID
}

// KnowledgeBase is an in-memory, thread-safe catalog of resource types,
// network locations and element definitions. Scenarios are assembled from
// it; the simulator itself never reads it.
type KnowledgeBase struct {
	mu sync.RWMutex

	resources map[int]model.Resource
	nodes     map[model.LocationID]model.Node
	edges     map[model.LocationID]model.Edge
	elements  map[model.ElementID]model.Element

	subs map[int]func(Event)
	next int
}

// NewKnowledgeBase constructs an empty KB.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{
		resources: make(map[int]model.Resource),
		nodes:     make(map[model.LocationID]model.Node),
		edges:     make(map[model.LocationID]model.Edge),
		elements:  make(map[model.ElementID]model.Element),
		subs:      make(map[int]func(Event)),
	}
}

// AddResource adds a concrete resource type. Generic resources are derived
// on demand and cannot be added.
func (kb *KnowledgeBase) AddResource(r model.Resource) error {
	if r.ID <= 0 {
		return fmt.Errorf("resource %q: id must be positive", r.Name)
	}
	kb.mu.Lock()
	if _, exists := kb.resources[r.ID]; exists {
		kb.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrResourceExists, r.ID)
	}
	kb.resources[r.ID] = r
	kb.mu.Unlock()

	kb.publish(Event{Type: EventResourceAdded, ResourceID: r.ID})
	return nil
}

// Resource returns the resource type with the given ID. Negative IDs name
// generic class-of-supply resources.
func (kb *KnowledgeBase) Resource(id int) (model.Resource, error) {
	if id < 0 {
		return model.GenericResource(model.ClassOfSupply(-id), ""), nil
	}
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	r, ok := kb.resources[id]
	if !ok {
		return model.Resource{}, fmt.Errorf("%w: %d", ErrResourceNotFound, id)
	}
	return r, nil
}

// AddNode adds a network node. Nodes and edges share one ID space.
func (kb *KnowledgeBase) AddNode(n model.Node) error {
	kb.mu.Lock()
	if kb.locationUsed(n.ID) {
		kb.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNodeExists, n.ID)
	}
	kb.nodes[n.ID] = n
	kb.mu.Unlock()

	kb.publish(Event{Type: EventNodeAdded, LocationID: n.ID})
	return nil
}

// AddEdge adds an edge between two existing nodes.
func (kb *KnowledgeBase) AddEdge(e model.Edge) error {
	kb.mu.Lock()
	if kb.locationUsed(e.ID) {
		kb.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNodeExists, e.ID)
	}
	for _, end := range []model.LocationID{e.Origin, e.Destination} {
		if _, ok := kb.nodes[end]; !ok {
			kb.mu.Unlock()
			return fmt.Errorf("edge %d: %w: %d", e.ID, ErrNodeNotFound, end)
		}
	}
	kb.edges[e.ID] = e
	kb.mu.Unlock()

	kb.publish(Event{Type: EventEdgeAdded, LocationID: e.ID})
	return nil
}

func (kb *KnowledgeBase) locationUsed(id model.LocationID) bool {
	_, node := kb.nodes[id]
	_, edge := kb.edges[id]
	return node || edge
}

// Node returns the node with the given ID.
func (kb *KnowledgeBase) Node(id model.LocationID) (model.Node, error) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	n, ok := kb.nodes[id]
	if !ok {
		return model.Node{}, fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	return n, nil
}

// Edge returns the edge with the given ID.
func (kb *KnowledgeBase) Edge(id model.LocationID) (model.Edge, error) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	e, ok := kb.edges[id]
	if !ok {
		return model.Edge{}, fmt.Errorf("%w: %d", ErrEdgeNotFound, id)
	}
	return e, nil
}

// AddElement adds an element definition.
func (kb *KnowledgeBase) AddElement(e model.Element) error {
	kb.mu.Lock()
	if _, exists := kb.elements[e.ID]; exists {
		kb.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrElementExists, e.ID)
	}
	kb.elements[e.ID] = e
	kb.mu.Unlock()

	kb.publish(Event{Type: EventElementAdded, ElementID: e.ID})
	return nil
}

// Element returns the element definition with the given ID.
func (kb *KnowledgeBase) Element(id model.ElementID) (model.Element, error) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	e, ok := kb.elements[id]
	if !ok {
		return model.Element{}, fmt.Errorf("%w: %d", ErrElementNotFound, id)
	}
	return e, nil
}

// ListResources returns every resource type in ascending ID order.
func (kb *KnowledgeBase) ListResources() []model.Resource {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	res := make([]model.Resource, 0, len(kb.resources))
	for _, r := range kb.resources {
		res = append(res, r)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// ListElements returns every element definition in ascending ID order.
func (kb *KnowledgeBase) ListElements() []model.Element {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	res := make([]model.Element, 0, len(kb.elements))
	for _, e := range kb.elements {
		res = append(res, e)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// Network returns the catalogued nodes and edges, each in ascending ID
// order.
func (kb *KnowledgeBase) Network() model.Network {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	net := model.Network{
		Nodes: make([]model.Node, 0, len(kb.nodes)),
		Edges: make([]model.Edge, 0, len(kb.edges)),
	}
	for _, n := range kb.nodes {
		net.Nodes = append(net.Nodes, n)
	}
	for _, e := range kb.edges {
		net.Edges = append(net.Edges, e)
	}
	sort.Slice(net.Nodes, func(i, j int) bool { return net.Nodes[i].ID < net.Nodes[j].ID })
	sort.Slice(net.Edges, func(i, j int) bool { return net.Edges[i].ID < net.Edges[j].ID })
	return net
}

// Counts returns the number of catalogued resources, locations and elements.
func (kb *KnowledgeBase) Counts() (resources, locations, elements int) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return len(kb.resources), len(kb.nodes) + len(kb.edges), len(kb.elements)
}

// Clear drops every catalog entry.
func (kb *KnowledgeBase) Clear() {
	kb.mu.Lock()
	kb.resources = make(map[int]model.Resource)
	kb.nodes = make(map[model.LocationID]model.Node)
	kb.edges = make(map[model.LocationID]model.Edge)
	kb.elements = make(map[model.ElementID]model.Element)
	kb.mu.Unlock()

	kb.publish(Event{Type: EventCleared})
}

// Subscribe registers a callback for KB events. It returns an unsubscribe function.
func (kb *KnowledgeBase) Subscribe(fn func(Event)) (unsubscribe func()) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	id := kb.next
	kb.next++
	kb.subs[id] = fn

	return func() {
		kb.mu.Lock()
		defer kb.mu.Unlock()
		delete(kb.subs, id)
	}
}

// publish notifies subscribers outside the lock to avoid deadlocks.
func (kb *KnowledgeBase) publish(ev Event) {
	kb.mu.RLock()
	ids := make([]int, 0, len(kb.subs))
	for id := range kb.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, kb.subs[id])
	}
	kb.mu.RUnlock()

	for _, sub := range subs {
		sub(ev)
	}
}
