package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Reserved node ids for the synthesized boundary nodes inside a materialized
// subgraph. These are the io-node ids the persisted format reserves.
const (
	BoundaryInputID  = -10
	BoundaryOutputID = -20
)

// SubgraphState carries the definition's id allocation watermarks.
type SubgraphState struct {
	LastGroupID   int `json:"lastGroupId"`
	LastNodeID    int `json:"lastNodeId"`
	LastLinkID    int `json:"lastLinkId"`
	LastRerouteID int `json:"lastRerouteId"`
}

// IONodeRecord names the boundary node a definition uses for one side of its
// interface. A zero ID means the definition never materialized one and a
// reserved id will be used instead.
type IONodeRecord struct {
	ID       int       `json:"id"`
	Bounding []float64 `json:"bounding,omitempty"`
}

// BoundaryPort is a promoted input or output declaration on a subgraph
// definition. LinkIDs are the internal links that bind to this port.
type BoundaryPort struct {
	ID      string    `json:"id,omitempty"`
	Name    string    `json:"name"`
	Type    string    `json:"type"`
	LinkIDs []int     `json:"linkIds,omitempty"`
	Pos     []float64 `json:"pos,omitempty"`
}

// SubgraphDefinition is a reusable nested pipeline. Instances reference it by
// using the definition id as their node type.
type SubgraphDefinition struct {
	ID         string                 `json:"id"`
	Version    int                    `json:"version,omitempty"`
	Revision   int                    `json:"revision,omitempty"`
	Name       string                 `json:"name"`
	State      SubgraphState          `json:"state"`
	InputNode  IONodeRecord           `json:"inputNode"`
	OutputNode IONodeRecord           `json:"outputNode"`
	Inputs     []BoundaryPort         `json:"inputs"`
	Outputs    []BoundaryPort         `json:"outputs"`
	Nodes      []*Node                `json:"nodes"`
	Groups     []*Group               `json:"groups,omitempty"`
	Links      []*Link                `json:"links"`
	Extra      map[string]interface{} `json:"extra,omitempty"`

	// a definition may embed its own definitions, which shadow outer ones
	// while a session inside it is active
	Definitions *Definitions `json:"definitions,omitempty"`
}

// InputNodeID returns the id the input boundary node must use.
func (sg *SubgraphDefinition) InputNodeID() int {
	if sg.InputNode.ID != 0 {
		return sg.InputNode.ID
	}
	return BoundaryInputID
}

// OutputNodeID returns the id the output boundary node must use.
func (sg *SubgraphDefinition) OutputNodeID() int {
	if sg.OutputNode.ID != 0 {
		return sg.OutputNode.ID
	}
	return BoundaryOutputID
}

// NodeByID returns the definition's node with the given id.
func (sg *SubgraphDefinition) NodeByID(id int) (*Node, bool) {
	for _, n := range sg.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return nil, false
}

// LinkByID returns the definition's link with the given id.
func (sg *SubgraphDefinition) LinkByID(id int) (*Link, bool) {
	for _, l := range sg.Links {
		if l.ID == id {
			return l, true
		}
	}
	return nil, false
}

// LinkFromInput returns the internal link driven by input port slot, if any.
func (sg *SubgraphDefinition) LinkFromInput(slot int) *Link {
	for _, l := range sg.Links {
		if l.OriginID == sg.InputNodeID() && l.OriginSlot == slot {
			return l
		}
	}
	return nil
}

// LinkToOutput returns the internal link feeding output port slot, if any.
func (sg *SubgraphDefinition) LinkToOutput(slot int) *Link {
	for _, l := range sg.Links {
		if l.TargetID == sg.OutputNodeID() && l.TargetSlot == slot {
			return l
		}
	}
	return nil
}

// Definitions is the document's collection of subgraph definitions. The wire
// form is either an array or an id-keyed map; both are accepted and the array
// form is written back.
type Definitions struct {
	Subgraphs []*SubgraphDefinition `json:"subgraphs,omitempty"`
}

// ByID returns the definition with the given id.
func (d *Definitions) ByID(id string) (*SubgraphDefinition, bool) {
	if d == nil {
		return nil, false
	}
	for _, sg := range d.Subgraphs {
		if sg.ID == id {
			return sg, true
		}
	}
	return nil, false
}

func (d *Definitions) UnmarshalJSON(b []byte) error {
	var outer struct {
		Subgraphs json.RawMessage `json:"subgraphs"`
	}
	if err := json.Unmarshal(b, &outer); err != nil {
		return err
	}
	if len(outer.Subgraphs) == 0 {
		return nil
	}

	trimmed := bytes.TrimSpace(outer.Subgraphs)
	switch {
	case len(trimmed) == 0 || string(trimmed) == "null":
		return nil
	case trimmed[0] == '[':
		return json.Unmarshal(trimmed, &d.Subgraphs)
	case trimmed[0] == '{':
		byID := make(map[string]*SubgraphDefinition)
		if err := json.Unmarshal(trimmed, &byID); err != nil {
			return err
		}
		d.Subgraphs = make([]*SubgraphDefinition, 0, len(byID))
		for id, sg := range byID {
			if sg.ID == "" {
				sg.ID = id
			}
			d.Subgraphs = append(d.Subgraphs, sg)
		}
		// map iteration order is random; keep output deterministic
		sort.Slice(d.Subgraphs, func(i, j int) bool {
			return d.Subgraphs[i].ID < d.Subgraphs[j].ID
		})
		return nil
	}
	return fmt.Errorf("subgraphs collection must be an array or a map")
}
