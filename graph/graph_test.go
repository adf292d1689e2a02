package graph

import (
	"encoding/json"
	"errors"
	"testing"
)

const flatWorkflow = `{
	"nodes": [
		{
			"id": 1,
			"type": "KSampler",
			"pos": [100, 200],
			"size": [300, 400],
			"flags": {},
			"order": 0,
			"mode": 0,
			"inputs": [{"name": "model", "type": "MODEL", "link": 1}],
			"outputs": [{"name": "LATENT", "type": "LATENT", "links": [2]}],
			"properties": {},
			"widgets_values": [42, "fixed", 20, 8.0, "euler", "normal", 1.0]
		},
		{
			"id": 2,
			"type": "VAEDecode",
			"pos": {"0": 500, "1": 200},
			"size": [200, 100],
			"flags": {},
			"order": 1,
			"mode": 0,
			"inputs": [{"name": "samples", "type": "LATENT", "link": 2}],
			"outputs": [],
			"properties": {},
			"widgets_values": []
		}
	],
	"links": [
		[1, 3, 0, 1, 0, "MODEL"],
		[2, 1, 0, 2, 0, "LATENT"]
	],
	"groups": [{"id": 1, "title": "sampling", "bounding": [0, 0, 800, 600], "color": "#3f789e"}],
	"last_node_id": 2,
	"last_link_id": 2,
	"version": 0.4
}`

func TestRoundtripFlatWorkflow(t *testing.T) {
	g, err := FromJSON([]byte(flatWorkflow))
	if err != nil {
		t.Fatalf("Failed to load workflow: %v", err)
	}

	if len(g.Nodes) != 2 {
		t.Errorf("Expected 2 nodes, got %d", len(g.Nodes))
	}
	if len(g.Links) != 2 {
		t.Errorf("Expected 2 links, got %d", len(g.Links))
	}
	if len(g.Groups) != 1 {
		t.Errorf("Expected 1 group, got %d", len(g.Groups))
	}

	// pos accepts both the array and the map form
	n2, ok := g.NodeByID(2)
	if !ok {
		t.Fatal("Node 2 missing")
	}
	if n2.Position.X != 500 || n2.Position.Y != 200 {
		t.Errorf("Expected node 2 at (500, 200), got (%v, %v)", n2.Position.X, n2.Position.Y)
	}

	out, err := g.ToJSON()
	if err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}

	var wire map[string]interface{}
	if err := json.Unmarshal(out, &wire); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}

	// tuple-form links stay tuples
	links := wire["links"].([]interface{})
	for i, l := range links {
		arr, ok := l.([]interface{})
		if !ok {
			t.Fatalf("Link %d should serialize as a tuple, got %T", i, l)
		}
		if len(arr) != 6 {
			t.Errorf("Link %d tuple should have 6 elements, got %d", i, len(arr))
		}
	}

	g2, err := FromJSON(out)
	if err != nil {
		t.Fatalf("Failed to reload serialized output: %v", err)
	}
	if len(g2.Nodes) != 2 || len(g2.Links) != 2 {
		t.Errorf("Roundtrip lost content: %d nodes, %d links", len(g2.Nodes), len(g2.Links))
	}
}

const subgraphWorkflow = `{
	"nodes": [
		{
			"id": 57,
			"type": "11111111-2222-3333-4444-555555555555",
			"pos": [400, 100],
			"size": [210, 80],
			"order": 0,
			"mode": 0,
			"inputs": [{"name": "image", "type": "IMAGE"}],
			"outputs": [{"name": "IMAGE", "type": "IMAGE"}]
		}
	],
	"links": [],
	"last_node_id": 57,
	"last_link_id": 0,
	"definitions": {
		"subgraphs": [
			{
				"id": "11111111-2222-3333-4444-555555555555",
				"name": "Upscale Pass",
				"state": {"lastNodeId": 30, "lastLinkId": 103},
				"inputNode": {"id": -10},
				"outputNode": {"id": -20},
				"inputs": [{"name": "image", "type": "IMAGE", "linkIds": [101]}],
				"outputs": [{"name": "IMAGE", "type": "IMAGE", "linkIds": [103]}],
				"nodes": [
					{
						"id": 30,
						"type": "ImageScale",
						"pos": [100, 100],
						"size": [200, 80],
						"order": 0,
						"mode": 0,
						"inputs": [{"name": "image", "type": "IMAGE", "link": 101}],
						"outputs": [{"name": "IMAGE", "type": "IMAGE", "links": [103]}]
					}
				],
				"links": [
					{"id": 101, "origin_id": -10, "origin_slot": 0, "target_id": 30, "target_slot": 0, "type": "IMAGE"},
					{"id": 103, "origin_id": 30, "origin_slot": 0, "target_id": -20, "target_slot": 0, "type": "IMAGE"}
				]
			}
		]
	}
}`

func TestRoundtripSubgraphLinkFormats(t *testing.T) {
	g, err := FromJSON([]byte(subgraphWorkflow))
	if err != nil {
		t.Fatalf("Failed to load workflow: %v", err)
	}

	def, ok := g.SubgraphByID("11111111-2222-3333-4444-555555555555")
	if !ok {
		t.Fatal("Subgraph definition missing")
	}
	if def.Name != "Upscale Pass" {
		t.Errorf("Expected definition name 'Upscale Pass', got %q", def.Name)
	}
	if def.State.LastNodeID != 30 || def.State.LastLinkID != 103 {
		t.Errorf("Definition watermarks not loaded: %+v", def.State)
	}

	out, err := g.ToJSON()
	if err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}

	var wire map[string]interface{}
	if err := json.Unmarshal(out, &wire); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}

	defs := wire["definitions"].(map[string]interface{})
	subgraphs := defs["subgraphs"].([]interface{})
	if len(subgraphs) != 1 {
		t.Fatalf("Expected 1 subgraph in output, got %d", len(subgraphs))
	}

	// definition links keep the object form they were loaded with
	sgLinks := subgraphs[0].(map[string]interface{})["links"].([]interface{})
	for i, l := range sgLinks {
		obj, ok := l.(map[string]interface{})
		if !ok {
			t.Fatalf("Subgraph link %d should serialize as an object, got %T", i, l)
		}
		if obj["id"] == nil || obj["origin_id"] == nil {
			t.Errorf("Subgraph link %d missing object fields: %v", i, obj)
		}
	}
}

func TestDefinitionsAcceptMapForm(t *testing.T) {
	input := `{
		"subgraphs": {
			"bbb": {"name": "second"},
			"aaa": {"name": "first"}
		}
	}`
	var defs Definitions
	if err := json.Unmarshal([]byte(input), &defs); err != nil {
		t.Fatalf("Failed to unmarshal map form: %v", err)
	}
	if len(defs.Subgraphs) != 2 {
		t.Fatalf("Expected 2 definitions, got %d", len(defs.Subgraphs))
	}
	// map keys become ids, normalized into a sorted array
	if defs.Subgraphs[0].ID != "aaa" || defs.Subgraphs[1].ID != "bbb" {
		t.Errorf("Expected sorted ids [aaa bbb], got [%s %s]", defs.Subgraphs[0].ID, defs.Subgraphs[1].ID)
	}
	if sg, ok := defs.ByID("bbb"); !ok || sg.Name != "second" {
		t.Error("ByID lookup failed after map normalization")
	}
}

func TestAddNodeAllocatesIDs(t *testing.T) {
	g := New()
	n1 := g.AddNode(&Node{Type: "LoadImage"})
	if n1.ID != 1 {
		t.Errorf("Expected allocated id 1, got %d", n1.ID)
	}
	n2 := g.AddNode(&Node{ID: 10, Type: "SaveImage"})
	if g.LastNodeID != 10 {
		t.Errorf("Watermark should advance to 10, got %d", g.LastNodeID)
	}
	if err := g.RemoveNode(n2.ID); err != nil {
		t.Fatalf("RemoveNode failed: %v", err)
	}
	// removal never rewinds the watermark, so ids are not reused
	n3 := g.AddNode(&Node{Type: "LoadImage"})
	if n3.ID != 11 {
		t.Errorf("Expected allocated id 11, got %d", n3.ID)
	}
}

func TestSetModeRejectsUnknownValues(t *testing.T) {
	g := New()
	n := g.AddNode(&Node{Type: "KSampler"})

	if err := g.SetMode(n.ID, ModeBypass); err != nil {
		t.Fatalf("SetMode failed: %v", err)
	}
	if err := g.SetMode(n.ID, NodeMode(7)); !errors.Is(err, ErrInvalidMode) {
		t.Errorf("Expected ErrInvalidMode, got %v", err)
	}
	if n.Mode != ModeBypass {
		t.Errorf("Rejected mode change must not alter the node, got %v", n.Mode)
	}
}

func TestGroupMembershipIsGeometric(t *testing.T) {
	g := New()
	inside := g.AddNode(&Node{Type: "KSampler", Position: Pos{X: 10, Y: 10}, Size: Size{Width: 50, Height: 50}})
	outside := g.AddNode(&Node{Type: "SaveImage", Position: Pos{X: 500, Y: 500}, Size: Size{Width: 50, Height: 50}})

	grp := g.AddGroup(&Group{Title: "sampling", Bounding: [4]float64{0, 0, 100, 100}})
	if grp.ID != 1 {
		t.Errorf("Expected allocated group id 1, got %d", grp.ID)
	}

	members := g.NodesInGroup(grp)
	if len(members) != 1 || members[0].ID != inside.ID {
		t.Errorf("Expected only node %d in group, got %v", inside.ID, members)
	}

	if err := g.RemoveGroup(grp.ID); err != nil {
		t.Fatalf("RemoveGroup failed: %v", err)
	}
	// deleting a group never touches nodes
	if _, ok := g.NodeByID(outside.ID); !ok {
		t.Error("Nodes must survive group removal")
	}
	if err := g.RemoveGroup(99); !errors.Is(err, ErrGroupNotFound) {
		t.Errorf("Expected ErrGroupNotFound, got %v", err)
	}
}
