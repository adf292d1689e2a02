package graph

import (
	"encoding/json"
	"sort"

	"github.com/rs/zerolog/log"
)

// ByOrdinal orders nodes by their execution order.
type ByOrdinal []*Node

func (a ByOrdinal) Len() int           { return len(a) }
func (a ByOrdinal) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a ByOrdinal) Less(i, j int) bool { return a[i].Order < a[j].Order }

// Graph is the live, mutable representation of a workflow document. Every
// mutation operates on a specific Graph instance; there is no ambient global
// graph. Node ids are unique within one Graph but independent across nesting
// levels.
type Graph struct {
	Nodes       []*Node
	Links       map[int]*Link
	Groups      []*Group
	Definitions *Definitions
	LastNodeID  int
	LastLinkID  int
	Version     float64
	Extra       map[string]interface{}

	nodesByID map[int]*Node
}

// New returns an empty graph with its indexes initialized.
func New() *Graph {
	return &Graph{
		Nodes:     make([]*Node, 0),
		Links:     make(map[int]*Link),
		Groups:    make([]*Group, 0),
		nodesByID: make(map[int]*Node),
	}
}

// BuildIndexes rebuilds the runtime lookup tables and node back-references.
func (t *Graph) BuildIndexes() {
	t.nodesByID = make(map[int]*Node, len(t.Nodes))
	for _, n := range t.Nodes {
		if prev, ok := t.nodesByID[n.ID]; ok && prev != n {
			log.Warn().Int("node_id", n.ID).Msg("duplicate node id in document")
		}
		t.nodesByID[n.ID] = n
		n.Graph = t
	}
	if t.Links == nil {
		t.Links = make(map[int]*Link)
	}
}

// NodeByID returns the node with the given id.
func (t *Graph) NodeByID(id int) (*Node, bool) {
	n, ok := t.nodesByID[id]
	return n, ok
}

// LinkByID returns the link with the given id.
func (t *Graph) LinkByID(id int) (*Link, bool) {
	l, ok := t.Links[id]
	return l, ok
}

// SubgraphByID returns a subgraph definition reachable from this graph.
func (t *Graph) SubgraphByID(id string) (*SubgraphDefinition, bool) {
	return t.Definitions.ByID(id)
}

// NodesInOrder returns the nodes sorted by execution ordinality.
func (t *Graph) NodesInOrder() []*Node {
	retv := make([]*Node, len(t.Nodes))
	copy(retv, t.Nodes)
	sort.Sort(ByOrdinal(retv))
	return retv
}

// AddNode inserts a node, allocating an id when the node carries none.
func (t *Graph) AddNode(n *Node) *Node {
	if n.ID == 0 {
		t.LastNodeID++
		n.ID = t.LastNodeID
	} else if n.ID > t.LastNodeID {
		t.LastNodeID = n.ID
	}
	n.Graph = t
	t.Nodes = append(t.Nodes, n)
	t.nodesByID[n.ID] = n
	return n
}

// RemoveNode removes a node structurally. It never touches link state; use
// RemoveNodeWithLinks for the combined operation.
func (t *Graph) RemoveNode(id int) error {
	if _, ok := t.nodesByID[id]; !ok {
		return ErrNodeNotFound
	}
	delete(t.nodesByID, id)
	for i, n := range t.Nodes {
		if n.ID == id {
			t.Nodes = append(t.Nodes[:i], t.Nodes[i+1:]...)
			break
		}
	}
	return nil
}

// SetPosition moves a node. Geometry changes never touch link state.
func (t *Graph) SetPosition(id int, pos Pos) error {
	n, ok := t.nodesByID[id]
	if !ok {
		return ErrNodeNotFound
	}
	n.Position = pos
	return nil
}

// SetSize resizes a node.
func (t *Graph) SetSize(id int, size Size) error {
	n, ok := t.nodesByID[id]
	if !ok {
		return ErrNodeNotFound
	}
	n.Size = size
	return nil
}

// SetCollapsed sets a node's collapsed flag.
func (t *Graph) SetCollapsed(id int, collapsed bool) error {
	n, ok := t.nodesByID[id]
	if !ok {
		return ErrNodeNotFound
	}
	n.Flags.Collapsed = collapsed
	return nil
}

// SetMode sets a node's execution mode. Values outside the closed five-value
// enum are rejected, never coerced.
func (t *Graph) SetMode(id int, mode NodeMode) error {
	if !mode.Valid() {
		return ErrInvalidMode
	}
	n, ok := t.nodesByID[id]
	if !ok {
		return ErrNodeNotFound
	}
	n.Mode = mode
	return nil
}

// SetTitle sets a node's display title.
func (t *Graph) SetTitle(id int, title string) error {
	n, ok := t.nodesByID[id]
	if !ok {
		return ErrNodeNotFound
	}
	n.Title = title
	return nil
}

// SetColor sets a node's display colors. Empty strings clear them.
func (t *Graph) SetColor(id int, color, bgcolor string) error {
	n, ok := t.nodesByID[id]
	if !ok {
		return ErrNodeNotFound
	}
	n.Color = color
	n.BGColor = bgcolor
	return nil
}

// AddGroup inserts a group, allocating an id when it carries none.
func (t *Graph) AddGroup(g *Group) *Group {
	if g.ID == 0 {
		maxID := 0
		for _, existing := range t.Groups {
			if existing.ID > maxID {
				maxID = existing.ID
			}
		}
		g.ID = maxID + 1
	}
	t.Groups = append(t.Groups, g)
	return g
}

// RemoveGroup deletes a group. Nodes inside it are untouched; membership is
// geometric.
func (t *Graph) RemoveGroup(id int) error {
	for i, g := range t.Groups {
		if g.ID == id {
			t.Groups = append(t.Groups[:i], t.Groups[i+1:]...)
			return nil
		}
	}
	return ErrGroupNotFound
}

// GroupWithTitle returns the first group with the given title.
func (t *Graph) GroupWithTitle(title string) *Group {
	for _, g := range t.Groups {
		if g.Title == title {
			return g
		}
	}
	return nil
}

// NodesInGroup returns the nodes geometrically inside the group.
func (t *Graph) NodesInGroup(g *Group) []*Node {
	retv := make([]*Node, 0)
	for _, n := range t.Nodes {
		if g.IntersectsOrContains(n) {
			retv = append(retv, n)
		}
	}
	return retv
}

// NodesWithType returns every node of the given type.
func (t *Graph) NodesWithType(nodeType string) []*Node {
	retv := make([]*Node, 0)
	for _, n := range t.Nodes {
		if n.Type == nodeType {
			retv = append(retv, n)
		}
	}
	return retv
}

// NodesWithTitle returns every node with the given title.
func (t *Graph) NodesWithTitle(title string) []*Node {
	retv := make([]*Node, 0)
	for _, n := range t.Nodes {
		if n.Title == title {
			retv = append(retv, n)
		}
	}
	return retv
}

// graphWire is the persisted document shape.
type graphWire struct {
	Nodes       []*Node                `json:"nodes"`
	Links       []*Link                `json:"links"`
	Groups      []*Group               `json:"groups,omitempty"`
	Definitions *Definitions           `json:"definitions,omitempty"`
	LastNodeID  int                    `json:"last_node_id"`
	LastLinkID  int                    `json:"last_link_id"`
	Version     float64                `json:"version,omitempty"`
	Extra       map[string]interface{} `json:"extra,omitempty"`
}

func (t *Graph) UnmarshalJSON(b []byte) error {
	var wire graphWire
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}

	t.Nodes = wire.Nodes
	if t.Nodes == nil {
		t.Nodes = make([]*Node, 0)
	}
	t.Groups = wire.Groups
	if t.Groups == nil {
		t.Groups = make([]*Group, 0)
	}
	t.Definitions = wire.Definitions
	t.LastNodeID = wire.LastNodeID
	t.LastLinkID = wire.LastLinkID
	t.Version = wire.Version
	t.Extra = wire.Extra

	t.Links = make(map[int]*Link, len(wire.Links))
	for _, l := range wire.Links {
		t.Links[l.ID] = l
		if l.ID > t.LastLinkID {
			t.LastLinkID = l.ID
		}
	}
	for _, n := range t.Nodes {
		if n.ID > t.LastNodeID {
			t.LastNodeID = n.ID
		}
	}

	t.BuildIndexes()
	return nil
}

func (t *Graph) MarshalJSON() ([]byte, error) {
	links := make([]*Link, 0, len(t.Links))
	for _, l := range t.Links {
		links = append(links, l)
	}
	sort.Slice(links, func(i, j int) bool { return links[i].ID < links[j].ID })

	return json.Marshal(graphWire{
		Nodes:       t.Nodes,
		Links:       links,
		Groups:      t.Groups,
		Definitions: t.Definitions,
		LastNodeID:  t.LastNodeID,
		LastLinkID:  t.LastLinkID,
		Version:     t.Version,
		Extra:       t.Extra,
	})
}

// FromJSON deserializes a workflow document into a live graph.
func FromJSON(data []byte) (*Graph, error) {
	g := &Graph{}
	if err := json.Unmarshal(data, g); err != nil {
		return nil, err
	}
	return g, nil
}

// ToJSON serializes the graph into its document form.
func (t *Graph) ToJSON() ([]byte, error) {
	return json.Marshal(t)
}
