package session

import (
	"github.com/jaeone94/comfy-mobile-graph/graph"
	"github.com/jaeone94/comfy-mobile-graph/registry"
	"github.com/rs/zerolog/log"
)

// Overlay is a draft layer of uncommitted widget edits, keyed per node. It
// never touches the canonical graph: the live UI and execution submission
// read through it, and the document only changes on an explicit Commit.
type Overlay struct {
	staged map[int]map[string]graph.WidgetValue
}

func NewOverlay() *Overlay {
	return &Overlay{staged: make(map[int]map[string]graph.WidgetValue)}
}

// Set stages a value for a node's widget, overwriting any previous staged
// value. The node itself is never mutated.
func (o *Overlay) Set(nodeID int, name string, v graph.WidgetValue) {
	m, ok := o.staged[nodeID]
	if !ok {
		m = make(map[string]graph.WidgetValue)
		o.staged[nodeID] = m
	}
	m[name] = v
}

// Staged returns the staged value for a node's widget, if one exists.
func (o *Overlay) Staged(nodeID int, name string) (graph.WidgetValue, bool) {
	v, ok := o.staged[nodeID][name]
	return v, ok
}

// Get returns the staged value if present, else the node's stored value,
// else fallback.
func (o *Overlay) Get(g *graph.Graph, nodeID int, name string, fallback graph.WidgetValue) graph.WidgetValue {
	if v, ok := o.Staged(nodeID, name); ok {
		return v
	}
	if n, ok := g.NodeByID(nodeID); ok {
		if v, ok := n.WidgetValues.Get(name); ok {
			return v
		}
	}
	return fallback
}

// Empty reports whether nothing is staged.
func (o *Overlay) Empty() bool {
	return len(o.staged) == 0
}

// Clear discards all staged edits without committing them.
func (o *Overlay) Clear() {
	o.staged = make(map[int]map[string]graph.WidgetValue)
}

// Commit writes every staged value into its node's stored widget
// representation and clears the overlay. Name-keyed resolution is preferred;
// a positional write is used only when the node still carries a positional
// array and the registry knows the class's widget order. Values are coerced
// through the parameter's bounds when the registry knows them. reg may be
// nil. Nodes that no longer exist are skipped.
func (o *Overlay) Commit(g *graph.Graph, reg *registry.Registry) {
	for nodeID, params := range o.staged {
		n, ok := g.NodeByID(nodeID)
		if !ok {
			log.Warn().Int("node_id", nodeID).Msg("staged edit for missing node dropped")
			continue
		}
		if n.WidgetValues == nil {
			n.WidgetValues = graph.NewWidgetValues()
		}

		var class *registry.NodeClass
		if reg != nil {
			class, _ = reg.Class(n.Type)
		}

		for name, v := range params {
			if class != nil {
				if p, ok := class.Param(name); ok {
					coerced, err := p.Coerce(v)
					if err != nil {
						log.Warn().Int("node_id", nodeID).Str("widget", name).Err(err).Msg("staged value rejected")
						continue
					}
					v = coerced
				}
			}
			writeWidget(n, class, name, v)
		}
	}
	o.Clear()
}

func writeWidget(n *graph.Node, class *registry.NodeClass, name string, v graph.WidgetValue) {
	if _, ok := n.WidgetValues.Get(name); ok {
		n.WidgetValues.Set(name, v)
		return
	}
	// positional fallback, possible only when the widget order is known
	if !n.WidgetValues.Named() && class != nil {
		for i, wname := range class.WidgetOrder() {
			if wname == name {
				if err := n.WidgetValues.SetAt(i, v); err == nil {
					return
				}
				break
			}
		}
	}
	n.WidgetValues.Set(name, v)
}

// Resolver adapts the overlay for non-destructive prompt building.
func (o *Overlay) Resolver() graph.ValueResolver {
	return func(nodeID int, widget string) (graph.WidgetValue, bool) {
		return o.Staged(nodeID, widget)
	}
}
