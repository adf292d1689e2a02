package session

import (
	"github.com/jaeone94/comfy-mobile-graph/graph"
	"github.com/jaeone94/comfy-mobile-graph/registry"
	"github.com/rs/zerolog/log"
)

// Node types of the synthesized boundary nodes.
const (
	SubgraphInputType  = "SubgraphInputNode"
	SubgraphOutputType = "SubgraphOutputNode"
)

// BoundaryKind selects which side of a definition's interface a boundary
// node represents.
type BoundaryKind int

const (
	BoundaryInput BoundaryKind = iota
	BoundaryOutput
)

const boundarySlotHeight = 24

// MakeBoundaryNode synthesizes the node that represents one side of a
// subgraph definition's external interface inside its materialized graph. An
// input boundary node's outputs mirror the definition's promoted inputs; an
// output boundary node's inputs mirror the promoted outputs, each slot wired
// to the internal link ids the definition binds to that port. The function
// is pure and deterministic: the same definition always yields the same
// node.
func MakeBoundaryNode(kind BoundaryKind, def *graph.SubgraphDefinition) *graph.Node {
	var (
		id       int
		record   graph.IONodeRecord
		ports    []graph.BoundaryPort
		nodeType string
		title    string
	)
	switch kind {
	case BoundaryInput:
		id = def.InputNodeID()
		record = def.InputNode
		ports = def.Inputs
		nodeType = SubgraphInputType
		title = "Inputs"
	default:
		id = def.OutputNodeID()
		record = def.OutputNode
		ports = def.Outputs
		nodeType = SubgraphOutputType
		title = "Outputs"
	}

	n := &graph.Node{
		ID:    id,
		Type:  nodeType,
		Title: title,
	}
	if len(record.Bounding) >= 4 {
		n.Position = graph.Pos{X: record.Bounding[0], Y: record.Bounding[1]}
		n.Size = graph.Size{Width: record.Bounding[2], Height: record.Bounding[3]}
	} else {
		n.Size = graph.Size{Width: 120, Height: float64(boundarySlotHeight * (len(ports) + 1))}
		if kind == BoundaryOutput {
			n.Position = graph.Pos{X: 400, Y: 0}
		}
	}

	syncBoundarySlots(n, kind, ports)
	return n
}

// syncBoundarySlots rebuilds a boundary node's slots from the definition's
// promoted ports. It is also used to resync a boundary node the definition
// already materialized, so entering a subgraph twice never duplicates slots.
func syncBoundarySlots(n *graph.Node, kind BoundaryKind, ports []graph.BoundaryPort) {
	if kind == BoundaryInput {
		n.Outputs = make([]graph.Slot, len(ports))
		for i, p := range ports {
			n.Outputs[i] = graph.Slot{
				Name:  p.Name,
				Type:  p.Type,
				Links: append([]int(nil), p.LinkIDs...),
			}
		}
		n.Inputs = nil
		return
	}

	n.Inputs = make([]graph.Slot, len(ports))
	for i, p := range ports {
		s := graph.Slot{Name: p.Name, Type: p.Type}
		if len(p.LinkIDs) > 0 {
			s.Link = p.LinkIDs[0]
		}
		n.Inputs[i] = s
	}
	n.Outputs = nil
}

// PortParam resolves the parameter schema behind a promoted input port: the
// widget on the internal node the port's first link feeds. It is how a
// boundary slot surfaces the internal node's declared type and validation
// bounds. Returns false for output ports, unbound ports, and unknown
// classes.
func PortParam(def *graph.SubgraphDefinition, kind BoundaryKind, portIndex int, reg *registry.Registry) (registry.Param, bool) {
	if reg == nil || kind != BoundaryInput || portIndex < 0 || portIndex >= len(def.Inputs) {
		return nil, false
	}
	port := def.Inputs[portIndex]
	if len(port.LinkIDs) == 0 {
		return nil, false
	}
	l, ok := def.LinkByID(port.LinkIDs[0])
	if !ok {
		return nil, false
	}
	target, ok := def.NodeByID(l.TargetID)
	if !ok || l.TargetSlot < 0 || l.TargetSlot >= len(target.Inputs) {
		return nil, false
	}

	widgetName := port.Name
	if w := target.Inputs[l.TargetSlot].Widget; w != nil && w.Name != "" {
		widgetName = w.Name
	} else if target.Inputs[l.TargetSlot].Name != "" {
		widgetName = target.Inputs[l.TargetSlot].Name
	}

	class, ok := reg.Class(target.Type)
	if !ok {
		return nil, false
	}
	return class.Param(widgetName)
}

// Materialize builds an editable graph from a subgraph definition. Nodes,
// links and groups are shared by reference with the definition, so edits
// made while the subgraph session is active are already visible when the
// root document serializes; there is no merge-back on exit. Boundary nodes
// are synthesized (or resynced, when the definition already names them) and
// every link the definition binds to a promoted port is re-pointed at the
// boundary node's id and slot index, so the materialized wiring cannot
// desync from the definition's external interface.
func Materialize(def *graph.SubgraphDefinition) *graph.Graph {
	g := graph.New()

	for _, n := range def.Nodes {
		g.AddNode(n)
	}
	for _, l := range def.Links {
		g.Links[l.ID] = l
		if l.ID > g.LastLinkID {
			g.LastLinkID = l.ID
		}
	}
	g.Groups = append(g.Groups, def.Groups...)
	g.Definitions = def.Definitions

	if def.State.LastNodeID > g.LastNodeID {
		g.LastNodeID = def.State.LastNodeID
	}
	if def.State.LastLinkID > g.LastLinkID {
		g.LastLinkID = def.State.LastLinkID
	}

	// synthesize or resync the two boundary nodes
	inID := ensureBoundaryNode(g, def, BoundaryInput)
	outID := ensureBoundaryNode(g, def, BoundaryOutput)

	normalizeBoundaryLinks(g, def, inID, outID)
	return g
}

// ensureBoundaryNode installs or resyncs one boundary node and returns the id
// it lives under. A recorded id that collides with a regular node falls back
// to the reserved id rather than installing a second node under the same id.
func ensureBoundaryNode(g *graph.Graph, def *graph.SubgraphDefinition, kind BoundaryKind) int {
	id := def.InputNodeID()
	nodeType := SubgraphInputType
	reserved := graph.BoundaryInputID
	ports := def.Inputs
	if kind == BoundaryOutput {
		id = def.OutputNodeID()
		nodeType = SubgraphOutputType
		reserved = graph.BoundaryOutputID
		ports = def.Outputs
	}

	existing, ok := g.NodeByID(id)
	if ok && existing.Type == nodeType {
		syncBoundarySlots(existing, kind, ports)
		return id
	}
	if ok {
		log.Warn().Str("subgraph", def.ID).Int("node_id", id).Str("type", existing.Type).
			Msg("recorded boundary node id collides with a regular node")
		if id == reserved {
			return id
		}
		id = reserved
		if _, taken := g.NodeByID(id); taken {
			return id
		}
	}

	n := MakeBoundaryNode(kind, def)
	n.ID = id
	g.AddNode(n)
	return id
}

// normalizeBoundaryLinks re-points every link a promoted port binds so that
// it originates from (inputs) or targets (outputs) the boundary node at the
// port's slot index.
func normalizeBoundaryLinks(g *graph.Graph, def *graph.SubgraphDefinition, inID, outID int) {
	for i, port := range def.Inputs {
		for _, lid := range port.LinkIDs {
			if l, ok := g.LinkByID(lid); ok {
				l.OriginID = inID
				l.OriginSlot = i
			}
		}
	}
	for i, port := range def.Outputs {
		for _, lid := range port.LinkIDs {
			if l, ok := g.LinkByID(lid); ok {
				l.TargetID = outID
				l.TargetSlot = i
			}
		}
	}
}
