package kb

import (
	"errors"
	"sync"
	"testing"

	"github.com/signalsfoundry/logistics-simulator/model"
)

func water() model.Resource {
	return model.Resource{ID: 1, Name: "water", ClassOfSupply: model.COS201, UnitMass: 1}
}

func TestAddAndGetResource(t *testing.T) {
	store := NewKnowledgeBase()
	if err := store.AddResource(water()); err != nil {
		t.Fatalf("AddResource error: %v", err)
	}
	got, err := store.Resource(1)
	if err != nil {
		t.Fatalf("Resource error: %v", err)
	}
	if got != water() {
		t.Fatalf("Resource = %#v, want %#v", got, water())
	}
	if err := store.AddResource(water()); !errors.Is(err, ErrResourceExists) {
		t.Fatalf("duplicate AddResource error = %v, want ErrResourceExists", err)
	}
	if _, err := store.Resource(99); !errors.Is(err, ErrResourceNotFound) {
		t.Fatalf("Resource(99) error = %v, want ErrResourceNotFound", err)
	}
}

func TestGenericResourceIDs(t *testing.T) {
	store := NewKnowledgeBase()
	got, err := store.Resource(-4)
	if err != nil {
		t.Fatalf("Resource(-4) error: %v", err)
	}
	if !got.IsGeneric() || got.ClassOfSupply != model.COS4 {
		t.Fatalf("Resource(-4) = %#v, want generic COS4", got)
	}
	if err := store.AddResource(got); err == nil {
		t.Fatalf("AddResource(generic) succeeded, want error")
	}
}

func TestNodesAndEdgesShareIDs(t *testing.T) {
	store := NewKnowledgeBase()
	if err := store.AddNode(model.Node{ID: 1, Name: "KSC", Body: model.BodyEarth}); err != nil {
		t.Fatalf("AddNode error: %v", err)
	}
	if err := store.AddNode(model.Node{ID: 2, Name: "LEO", Type: model.NodeOrbital}); err != nil {
		t.Fatalf("AddNode error: %v", err)
	}
	if err := store.AddEdge(model.Edge{ID: 2, Origin: 1, Destination: 2}); !errors.Is(err, ErrNodeExists) {
		t.Fatalf("AddEdge with node id error = %v, want ErrNodeExists", err)
	}
	if err := store.AddEdge(model.Edge{ID: 3, Origin: 1, Destination: 7}); !errors.Is(err, ErrNodeNotFound) {
		t.Fatalf("AddEdge to missing node error = %v, want ErrNodeNotFound", err)
	}
	if err := store.AddEdge(model.Edge{ID: 3, Origin: 1, Destination: 2, Duration: 1}); err != nil {
		t.Fatalf("AddEdge error: %v", err)
	}

	net := store.Network()
	if len(net.Nodes) != 2 || len(net.Edges) != 1 {
		t.Fatalf("Network = %d nodes/%d edges, want 2/1", len(net.Nodes), len(net.Edges))
	}
	if net.Nodes[0].ID != 1 || net.Nodes[1].ID != 2 {
		t.Fatalf("Network nodes not sorted: %#v", net.Nodes)
	}
	if _, err := store.Edge(3); err != nil {
		t.Fatalf("Edge(3) error: %v", err)
	}
	if _, err := store.Edge(4); !errors.Is(err, ErrEdgeNotFound) {
		t.Fatalf("Edge(4) error = %v, want ErrEdgeNotFound", err)
	}
}

func TestElementsListedInIDOrder(t *testing.T) {
	store := NewKnowledgeBase()
	for _, id := range []model.ElementID{3, 1, 2} {
		if err := store.AddElement(model.Element{ID: id}); err != nil {
			t.Fatalf("AddElement error: %v", err)
		}
	}
	if err := store.AddElement(model.Element{ID: 2}); !errors.Is(err, ErrElementExists) {
		t.Fatalf("duplicate AddElement error = %v, want ErrElementExists", err)
	}
	list := store.ListElements()
	for i, el := range list {
		if el.ID != model.ElementID(i+1) {
			t.Fatalf("ListElements()[%d].ID = %d, want %d", i, el.ID, i+1)
		}
	}
	if _, err := store.Element(9); !errors.Is(err, ErrElementNotFound) {
		t.Fatalf("Element(9) error = %v, want ErrElementNotFound", err)
	}
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	store := NewKnowledgeBase()

	var got []Event
	unsubscribe := store.Subscribe(func(e Event) { got = append(got, e) })

	if err := store.AddResource(water()); err != nil {
		t.Fatalf("AddResource error: %v", err)
	}
	if err := store.AddNode(model.Node{ID: 5}); err != nil {
		t.Fatalf("AddNode error: %v", err)
	}
	unsubscribe()
	if err := store.AddElement(model.Element{ID: 1}); err != nil {
		t.Fatalf("AddElement error: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if got[0].Type != EventResourceAdded || got[0].ResourceID != 1 {
		t.Fatalf("first event = %#v, want resource 1 added", got[0])
	}
	if got[1].Type != EventNodeAdded || got[1].LocationID != 5 {
		t.Fatalf("second event = %#v, want node 5 added", got[1])
	}
}

func TestClearEmptiesCatalog(t *testing.T) {
	store := NewKnowledgeBase()
	_ = store.AddResource(water())
	_ = store.AddNode(model.Node{ID: 1})
	_ = store.AddElement(model.Element{ID: 1})

	store.Clear()
	r, l, e := store.Counts()
	if r != 0 || l != 0 || e != 0 {
		t.Fatalf("Counts after Clear = %d/%d/%d, want 0/0/0", r, l, e)
	}
}

func TestConcurrentAccess(t *testing.T) {
	store := NewKnowledgeBase()

	var wg sync.WaitGroup
	for i := 1; i <= 10; i++ {
		wg.Add(2)
		go func(id int) {
			defer wg.Done()
			_ = store.AddResource(model.Resource{ID: id, UnitMass: 1})
		}(i)
		go func() {
			defer wg.Done()
			_ = store.ListResources()
			_, _ = store.Resource(1)
		}()
	}
	wg.Wait()

	if got := len(store.ListResources()); got != 10 {
		t.Fatalf("ListResources len=%d, want 10", got)
	}
}
