package model

// LocationID identifies a node or an edge. Nodes and edges share one ID
// space so a bare LocationID is unambiguous.
type LocationID int

// NodeType classifies a fixed network node.
type NodeType int

const (
	NodeSurface NodeType = iota
	NodeOrbital
	NodeLagrange
)

// Body is the celestial body a node is attached to.
type Body string

const (
	BodyEarth Body = "EARTH"
	BodyMoon  Body = "MOON"
	BodyMars  Body = "MARS"
	BodySun   Body = "SUN"
)

// Node is a stationary point in the network.
type Node struct {
	ID   LocationID
	Name string
	Type NodeType
	Body Body
}

// IsEarthSurface reports whether the node sits on the Earth's surface.
func (n *Node) IsEarthSurface() bool {
	return n != nil && n.Type == NodeSurface && n.Body == BodyEarth
}

// EdgeType classifies how elements traverse an edge.
type EdgeType int

const (
	EdgeSpace EdgeType = iota
	EdgeSurface
	EdgeFlight
)

func (t EdgeType) String() string {
	switch t {
	case EdgeSurface:
		return "surface"
	case EdgeFlight:
		return "flight"
	default:
		return "space"
	}
}

// BurnType names the propulsion system a burn fires.
type BurnType int

const (
	// BurnOMS fires the orbital maneuvering system.
	BurnOMS BurnType = iota
	// BurnRCS fires the reaction control system.
	BurnRCS
)

func (t BurnType) String() string {
	if t == BurnRCS {
		return "RCS"
	}
	return "OMS"
}

// Burn is an impulsive velocity change scheduled relative to departure.
type Burn struct {
	Time   float64 // days after departure
	Type   BurnType
	DeltaV float64 // m/s
}

// Edge is a corridor between two nodes. While underway the edge itself holds
// the travelling elements.
type Edge struct {
	ID          LocationID
	Name        string
	Type        EdgeType
	Origin      LocationID
	Destination LocationID

	// Space edges.
	Duration float64 // days; also used by flight edges
	Burns    []Burn

	// Surface edges.
	Distance float64 // km

	// Flight edges.
	MaxCrew      int
	MaxCargoMass float64
}

// Network is the static scenario graph.
type Network struct {
	Nodes []Node
	Edges []Edge
}

// Node returns the node with the given ID.
func (n *Network) Node(id LocationID) (*Node, bool) {
	for i := range n.Nodes {
		if n.Nodes[i].ID == id {
			return &n.Nodes[i], true
		}
	}
	return nil, false
}

// Edge returns the edge with the given ID.
func (n *Network) Edge(id LocationID) (*Edge, bool) {
	for i := range n.Edges {
		if n.Edges[i].ID == id {
			return &n.Edges[i], true
		}
	}
	return nil, false
}

// HasLocation reports whether id names a node or an edge.
func (n *Network) HasLocation(id LocationID) bool {
	if _, ok := n.Node(id); ok {
		return true
	}
	_, ok := n.Edge(id)
	return ok
}
