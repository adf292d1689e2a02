package graph

import (
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
)

// Prompt is the payload enqueued to the execution server.
type Prompt struct {
	ClientID  string                `json:"client_id"`
	Nodes     map[string]PromptNode `json:"prompt"`
	ExtraData PromptExtraData       `json:"extra_data"`
}

// PromptNode inputs are either a widget value or a link reference expressed
// as [originNodeID string, originSlot int].
type PromptNode struct {
	Inputs    map[string]interface{} `json:"inputs"`
	ClassType string                 `json:"class_type"`
}

type PromptExtraData struct {
	PngInfo PromptWorkflow `json:"extra_pnginfo"`
}

// PromptWorkflow embeds the source graph so generated media carries enough
// information to recreate it.
type PromptWorkflow struct {
	Workflow *Graph `json:"workflow"`
}

// ValueResolver lets a caller substitute widget values while the prompt is
// built, without mutating the graph. It is how staged overlay edits reach
// execution without being committed. Returning false falls through to the
// node's stored value.
type ValueResolver func(nodeID int, widget string) (WidgetValue, bool)

// ToPrompt converts the graph into the execution wire format. Muted nodes
// and frontend-only nodes are skipped, and subgraph instances are expanded
// in place: their internal nodes appear under compound ids such as "57:30"
// (instance id, colon, internal id), nested arbitrarily deep. The graph is
// not mutated.
func (t *Graph) ToPrompt(clientID string, resolve ValueResolver) (*Prompt, error) {
	b := &promptBuilder{
		graph:   t,
		resolve: resolve,
		nodes:   make(map[string]PromptNode),
		outputs: make(map[string][]interface{}),
	}

	for _, node := range t.NodesInOrder() {
		if node.IsVirtual() || node.Mode == ModeMute {
			continue
		}
		if def, ok := t.SubgraphByID(node.Type); ok {
			bindings := b.instanceBindings(node, def, rootScope{t}, nil)
			if err := b.expandInstance(strconv.Itoa(node.ID), def, bindings); err != nil {
				return nil, err
			}
			continue
		}
		b.emitTopLevel(node)
	}

	return &Prompt{
		ClientID:  clientID,
		Nodes:     b.nodes,
		ExtraData: PromptExtraData{PngInfo: PromptWorkflow{Workflow: t}},
	}, nil
}

type promptBuilder struct {
	graph   *Graph
	resolve ValueResolver
	nodes   map[string]PromptNode
	// outputs maps "instanceCompoundID:outputSlot" to the resolved
	// [expandedOriginID, slot] pair behind that subgraph output
	outputs map[string][]interface{}
}

// linkScope abstracts where an instance node's incoming links live: the root
// graph for top-level instances, the enclosing definition for nested ones.
type linkScope interface {
	linkByID(id int) (*Link, bool)
	inputNodeID() int // boundary id of the enclosing definition; 0 at root
}

type rootScope struct{ g *Graph }

func (s rootScope) linkByID(id int) (*Link, bool) { return s.g.LinkByID(id) }
func (s rootScope) inputNodeID() int              { return 0 }

type defScope struct{ def *SubgraphDefinition }

func (s defScope) linkByID(id int) (*Link, bool) { return s.def.LinkByID(id) }
func (s defScope) inputNodeID() int              { return s.def.InputNodeID() }

// definitionsVisibleFrom resolves a nested instance's definition: a
// definition's own embedded definitions shadow the document's.
func (b *promptBuilder) definitionFor(typeID string, within *SubgraphDefinition) (*SubgraphDefinition, bool) {
	if within != nil {
		if sg, ok := within.Definitions.ByID(typeID); ok {
			return sg, true
		}
	}
	return b.graph.SubgraphByID(typeID)
}

// widgetInputs seeds a prompt node's inputs with the node's named widget
// values, with resolver overrides applied for top-level nodes.
func (b *promptBuilder) widgetInputs(node *Node, topLevel bool) map[string]interface{} {
	inputs := make(map[string]interface{})
	if node.WidgetValues == nil {
		return inputs
	}
	for _, name := range node.WidgetValues.Names() {
		if name == "" {
			continue
		}
		val, _ := node.WidgetValues.Get(name)
		if topLevel && b.resolve != nil {
			if staged, ok := b.resolve(node.ID, name); ok {
				val = staged
			}
		}
		inputs[name] = val.Interface()
	}
	return inputs
}

// emitTopLevel writes a prompt node for a regular root-graph node.
func (b *promptBuilder) emitTopLevel(node *Node) {
	pn := PromptNode{
		ClassType: node.Type,
		Inputs:    b.widgetInputs(node, true),
	}

	for i := range node.Inputs {
		slot := &node.Inputs[i]
		if slot.Link == 0 {
			continue
		}
		l, ok := b.graph.LinkByID(slot.Link)
		if !ok {
			log.Warn().Int("node_id", node.ID).Int("link_id", slot.Link).Msg("input references missing link")
			continue
		}
		origin, ok := b.graph.NodeByID(l.OriginID)
		if !ok {
			continue
		}
		if _, isInstance := b.graph.SubgraphByID(origin.Type); isInstance {
			if ref, ok := b.outputs[compoundKey(strconv.Itoa(l.OriginID), l.OriginSlot)]; ok {
				pn.Inputs[slot.Name] = ref
			}
			continue
		}
		pn.Inputs[slot.Name] = []interface{}{strconv.Itoa(l.OriginID), l.OriginSlot}
	}

	b.nodes[strconv.Itoa(node.ID)] = pn
}

// instanceBindings computes what each promoted input of a subgraph instance
// resolves to: a link reference into the enclosing scope, a cascaded binding
// from the parent instance, or the instance node's own widget value.
func (b *promptBuilder) instanceBindings(inst *Node, def *SubgraphDefinition, scope linkScope, parentBindings map[int]interface{}) map[int]interface{} {
	bindings := make(map[int]interface{})

	for i, port := range def.Inputs {
		var external *Link
		for s := range inst.Inputs {
			if inst.Inputs[s].Link == 0 {
				continue
			}
			if l, ok := scope.linkByID(inst.Inputs[s].Link); ok && l.TargetID == inst.ID && l.TargetSlot == i {
				external = l
				break
			}
		}

		if external == nil {
			// unconnected promoted input: the instance node carries the value
			if inst.WidgetValues != nil {
				if v, ok := inst.WidgetValues.Get(port.Name); ok {
					bindings[i] = v.Interface()
				} else if v, ok := inst.WidgetValues.At(i); ok {
					bindings[i] = v.Interface()
				}
			}
			continue
		}

		if external.OriginID == scope.inputNodeID() && scope.inputNodeID() != 0 {
			// wired through the parent definition's own input boundary
			if v, ok := parentBindings[external.OriginSlot]; ok {
				bindings[i] = v
			}
			continue
		}

		bindings[i] = b.resolveScopedOrigin(external, scope)
	}
	return bindings
}

// resolveScopedOrigin turns a link origin in the given scope into a wire
// reference, looking through sibling subgraph instances.
func (b *promptBuilder) resolveScopedOrigin(l *Link, scope linkScope) interface{} {
	switch s := scope.(type) {
	case rootScope:
		if origin, ok := s.g.NodeByID(l.OriginID); ok {
			if _, isInstance := b.graph.SubgraphByID(origin.Type); isInstance {
				if ref, ok := b.outputs[compoundKey(strconv.Itoa(l.OriginID), l.OriginSlot)]; ok {
					return ref
				}
			}
		}
		return []interface{}{strconv.Itoa(l.OriginID), l.OriginSlot}
	case defScope:
		// callers resolve nested sibling origins through expandInstance's
		// per-instance prefixes; this path only serves direct references
		return []interface{}{strconv.Itoa(l.OriginID), l.OriginSlot}
	}
	return nil
}

// expandInstance flattens one subgraph instance under the given compound id
// prefix, recursing into nested instances.
func (b *promptBuilder) expandInstance(prefix string, def *SubgraphDefinition, bindings map[int]interface{}) error {
	compound := func(internalID int) string {
		return prefix + ":" + strconv.Itoa(internalID)
	}
	isNested := func(n *Node) (*SubgraphDefinition, bool) {
		return b.definitionFor(n.Type, def)
	}

	for _, internal := range def.Nodes {
		if internal.IsVirtual() || internal.Mode == ModeMute {
			continue
		}

		if nestedDef, ok := isNested(internal); ok {
			nestedBindings := b.nestedBindings(internal, nestedDef, def, bindings, compound)
			if err := b.expandInstance(compound(internal.ID), nestedDef, nestedBindings); err != nil {
				return err
			}
			continue
		}

		pn := PromptNode{
			ClassType: internal.Type,
			Inputs:    b.widgetInputs(internal, false),
		}

		for i := range internal.Inputs {
			slot := &internal.Inputs[i]
			if slot.Link == 0 {
				continue
			}
			l, ok := def.LinkByID(slot.Link)
			if !ok {
				continue
			}
			switch {
			case l.OriginID == def.InputNodeID():
				if v, ok := bindings[l.OriginSlot]; ok {
					pn.Inputs[slot.Name] = v
				}
			default:
				origin, ok := def.NodeByID(l.OriginID)
				if ok {
					if _, nested := isNested(origin); nested {
						if ref, ok := b.outputs[compoundKey(compound(l.OriginID), l.OriginSlot)]; ok {
							pn.Inputs[slot.Name] = ref
						}
						continue
					}
				}
				pn.Inputs[slot.Name] = []interface{}{compound(l.OriginID), l.OriginSlot}
			}
		}

		b.nodes[compound(internal.ID)] = pn
	}

	// record what each promoted output resolves to, for consumers outside
	// the instance
	for s := range def.Outputs {
		l := def.LinkToOutput(s)
		if l == nil {
			continue
		}
		key := compoundKey(prefix, s)
		if origin, ok := def.NodeByID(l.OriginID); ok {
			if _, nested := isNested(origin); nested {
				if ref, ok := b.outputs[compoundKey(compound(l.OriginID), l.OriginSlot)]; ok {
					b.outputs[key] = ref
				}
				continue
			}
		}
		b.outputs[key] = []interface{}{compound(l.OriginID), l.OriginSlot}
	}

	return nil
}

// nestedBindings computes bindings for an instance nested inside another
// definition.
func (b *promptBuilder) nestedBindings(inst *Node, def *SubgraphDefinition, parent *SubgraphDefinition, parentBindings map[int]interface{}, parentCompound func(int) string) map[int]interface{} {
	bindings := make(map[int]interface{})

	for i, port := range def.Inputs {
		var external *Link
		for s := range inst.Inputs {
			if inst.Inputs[s].Link == 0 {
				continue
			}
			if l, ok := parent.LinkByID(inst.Inputs[s].Link); ok && l.TargetID == inst.ID && l.TargetSlot == i {
				external = l
				break
			}
		}

		if external == nil {
			if inst.WidgetValues != nil {
				if v, ok := inst.WidgetValues.Get(port.Name); ok {
					bindings[i] = v.Interface()
				} else if v, ok := inst.WidgetValues.At(i); ok {
					bindings[i] = v.Interface()
				}
			}
			continue
		}

		if external.OriginID == parent.InputNodeID() {
			if v, ok := parentBindings[external.OriginSlot]; ok {
				bindings[i] = v
			}
			continue
		}

		if origin, ok := parent.NodeByID(external.OriginID); ok {
			if _, nested := b.definitionFor(origin.Type, parent); nested {
				if ref, ok := b.outputs[compoundKey(parentCompound(external.OriginID), external.OriginSlot)]; ok {
					bindings[i] = ref
				}
				continue
			}
		}
		bindings[i] = []interface{}{parentCompound(external.OriginID), external.OriginSlot}
	}
	return bindings
}

func compoundKey(id string, slot int) string {
	return fmt.Sprintf("%s:%d", id, slot)
}
