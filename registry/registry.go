// Package registry models the capability metadata the execution server
// publishes for each node class: display information, output slots, and the
// ordered parameter schemas used to validate widget values and to bind names
// to positional widget arrays. The registry is read-only; the engine never
// mutates it.
package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/jaeone94/comfy-mobile-graph/graph"
	"github.com/rs/zerolog/log"
)

// NodeClass is the metadata for one node type.
type NodeClass struct {
	Name         string
	DisplayName  string
	Description  string
	Category     string
	OutputNode   bool
	OutputTypes  []string
	OutputNames  []string
	Params       []Param
	paramsByName map[string]Param
}

// Param returns the parameter schema with the given name.
func (c *NodeClass) Param(name string) (Param, bool) {
	p, ok := c.paramsByName[name]
	return p, ok
}

// WidgetOrder returns the names of the settable parameters in declaration
// order. This is the positional layout of a widgets_values array for this
// class.
func (c *NodeClass) WidgetOrder() []string {
	order := make([]string, 0, len(c.Params))
	for _, p := range c.Params {
		if p.Settable() {
			order = append(order, p.Name())
		}
	}
	return order
}

// Registry is the full node-class catalogue.
type Registry struct {
	classes map[string]*NodeClass
}

// Class returns the class metadata for a node type name.
func (r *Registry) Class(name string) (*NodeClass, bool) {
	c, ok := r.classes[name]
	return c, ok
}

// Len returns the number of known classes.
func (r *Registry) Len() int { return len(r.classes) }

// classWire mirrors one /object_info entry.
type classWire struct {
	Input        *inputWire `json:"input"`
	Output       []string   `json:"output"`
	OutputName   []string   `json:"output_name"`
	Name         string     `json:"name"`
	DisplayName  string     `json:"display_name"`
	Description  string     `json:"description"`
	Category     string     `json:"category"`
	OutputNode   bool       `json:"output_node"`
}

// inputWire decodes the required/optional parameter maps token-by-token so
// that declaration order survives; JSON maps would randomize it and the
// positional widget layout depends on it.
type inputWire struct {
	required []namedSpec
	optional []namedSpec
}

type namedSpec struct {
	name string
	spec interface{}
}

func (iw *inputWire) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	if _, err := dec.Token(); err != nil {
		return err
	}
	for dec.More() {
		t, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := t.(string)
		switch key {
		case "required", "optional":
			specs, err := decodeSpecMap(dec)
			if err != nil {
				return err
			}
			if key == "required" {
				iw.required = specs
			} else {
				iw.optional = specs
			}
		default:
			var skip interface{}
			if err := dec.Decode(&skip); err != nil {
				return err
			}
		}
	}
	return nil
}

func decodeSpecMap(dec *json.Decoder) ([]namedSpec, error) {
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	specs := make([]namedSpec, 0)
	for dec.More() {
		t, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, _ := t.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		var spec interface{}
		if err := json.Unmarshal(raw, &spec); err != nil {
			return nil, err
		}
		specs = append(specs, namedSpec{name: name, spec: spec})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return specs, nil
}

// Parse decodes an /object_info response body into a Registry.
func Parse(data []byte) (*Registry, error) {
	var wire map[string]*classWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decoding object info: %w", err)
	}

	r := &Registry{classes: make(map[string]*NodeClass, len(wire))}
	for name, cw := range wire {
		c := &NodeClass{
			Name:         name,
			DisplayName:  cw.DisplayName,
			Description:  cw.Description,
			Category:     cw.Category,
			OutputNode:   cw.OutputNode,
			OutputTypes:  cw.Output,
			OutputNames:  cw.OutputName,
			paramsByName: make(map[string]Param),
		}
		if cw.Name != "" {
			c.Name = cw.Name
		}
		if cw.Input != nil {
			for _, ns := range cw.Input.required {
				addParam(c, ns, false)
			}
			for _, ns := range cw.Input.optional {
				addParam(c, ns, true)
			}
		}
		r.classes[name] = c
	}
	return r, nil
}

func addParam(c *NodeClass, ns namedSpec, optional bool) {
	p := paramFromSpec(ns.name, optional, ns.spec)
	if p == nil {
		log.Debug().Str("class", c.Name).Str("param", ns.name).Msg("unparseable parameter spec")
		return
	}
	c.Params = append(c.Params, p)
	c.paramsByName[p.Name()] = p
}

// MissingTypes walks a graph, including every reachable subgraph definition,
// and returns the node type names the registry does not know. Frontend-only
// nodes and subgraph instances are not reported.
func (r *Registry) MissingTypes(g *graph.Graph) []string {
	missing := make([]string, 0)
	seen := make(map[string]bool)

	report := func(n *graph.Node, defs *graph.Definitions) {
		if n.IsVirtual() || seen[n.Type] {
			return
		}
		if _, ok := defs.ByID(n.Type); ok {
			return
		}
		if g.Definitions != nil {
			if _, ok := g.Definitions.ByID(n.Type); ok {
				return
			}
		}
		if _, ok := r.classes[n.Type]; ok {
			return
		}
		seen[n.Type] = true
		missing = append(missing, n.Type)
	}

	for _, n := range g.Nodes {
		report(n, nil)
	}
	if g.Definitions != nil {
		for _, sg := range g.Definitions.Subgraphs {
			for _, n := range sg.Nodes {
				report(n, sg.Definitions)
			}
		}
	}
	return missing
}

// BindWidgetNames normalizes every node's widget values to the canonical
// name-keyed form, using each class's settable-parameter order to name
// positional entries. Nodes of unknown type are left as loaded.
func (r *Registry) BindWidgetNames(g *graph.Graph) {
	bind := func(n *graph.Node) {
		if n.WidgetValues == nil || n.WidgetValues.Named() {
			return
		}
		c, ok := r.classes[n.Type]
		if !ok {
			return
		}
		n.WidgetValues.BindNames(c.WidgetOrder())
	}

	for _, n := range g.Nodes {
		bind(n)
	}
	if g.Definitions != nil {
		for _, sg := range g.Definitions.Subgraphs {
			for _, n := range sg.Nodes {
				bind(n)
			}
		}
	}
}
