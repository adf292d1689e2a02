package registry

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaeone94/comfy-mobile-graph/graph"
)

const objectInfo = `{
	"KSampler": {
		"input": {
			"required": {
				"model": ["MODEL"],
				"seed": ["INT", {"default": 0, "min": 0, "max": 4294967295}],
				"steps": ["INT", {"default": 20, "min": 1, "max": 100, "step": 1}],
				"cfg": ["FLOAT", {"default": 8.0, "min": 0.0, "max": 100.0}],
				"sampler_name": [["euler", "euler_ancestral", "ddim"]],
				"positive": ["CONDITIONING"],
				"latent_image": ["LATENT"]
			},
			"optional": {
				"denoise": ["FLOAT", {"default": 1.0, "min": 0.0, "max": 1.0}]
			}
		},
		"output": ["LATENT"],
		"output_name": ["LATENT"],
		"name": "KSampler",
		"display_name": "KSampler",
		"category": "sampling",
		"output_node": false
	},
	"SaveImage": {
		"input": {
			"required": {
				"images": ["IMAGE"],
				"filename_prefix": ["STRING", {"default": "ComfyUI", "multiline": false}]
			}
		},
		"output": [],
		"name": "SaveImage",
		"display_name": "Save Image",
		"category": "image",
		"output_node": true
	}
}`

func TestParseObjectInfo(t *testing.T) {
	reg, err := Parse([]byte(objectInfo))
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())

	ks, ok := reg.Class("KSampler")
	require.True(t, ok)
	assert.Equal(t, "sampling", ks.Category)
	assert.False(t, ks.OutputNode)
	assert.Equal(t, []string{"LATENT"}, ks.OutputTypes)

	save, ok := reg.Class("SaveImage")
	require.True(t, ok)
	assert.True(t, save.OutputNode)
}

func TestWidgetOrderSkipsConnectionInputs(t *testing.T) {
	reg, err := Parse([]byte(objectInfo))
	require.NoError(t, err)

	ks, _ := reg.Class("KSampler")
	// connection-typed inputs (MODEL, CONDITIONING, LATENT) carry no widget;
	// the rest keep their declaration order, required before optional
	assert.Equal(t, []string{"seed", "steps", "cfg", "sampler_name", "denoise"}, ks.WidgetOrder())
}

func TestIntParamClampsToRange(t *testing.T) {
	reg, err := Parse([]byte(objectInfo))
	require.NoError(t, err)
	ks, _ := reg.Class("KSampler")

	steps, ok := ks.Param("steps")
	require.True(t, ok)
	assert.Equal(t, "INT", steps.Kind())

	v, err := steps.Coerce(graph.IntValue(250))
	require.NoError(t, err)
	got, _ := v.Int()
	assert.EqualValues(t, 100, got, "values above max clamp to max")

	v, err = steps.Coerce(graph.IntValue(0))
	require.NoError(t, err)
	got, _ = v.Int()
	assert.EqualValues(t, 1, got, "values below min clamp to min")

	v, err = steps.Coerce(graph.StringValue("25"))
	require.NoError(t, err)
	got, _ = v.Int()
	assert.EqualValues(t, 25, got, "numeric strings parse")

	_, err = steps.Coerce(graph.StringValue("lots"))
	assert.Error(t, err)
}

func TestFloatParamClampsToRange(t *testing.T) {
	reg, err := Parse([]byte(objectInfo))
	require.NoError(t, err)
	ks, _ := reg.Class("KSampler")

	denoise, ok := ks.Param("denoise")
	require.True(t, ok)
	assert.True(t, denoise.Optional())

	v, err := denoise.Coerce(graph.FloatValue(2.5))
	require.NoError(t, err)
	got, _ := v.Float()
	assert.Equal(t, 1.0, got)
}

func TestComboParamRejectsUnknownChoice(t *testing.T) {
	reg, err := Parse([]byte(objectInfo))
	require.NoError(t, err)
	ks, _ := reg.Class("KSampler")

	sampler, ok := ks.Param("sampler_name")
	require.True(t, ok)
	assert.Equal(t, "COMBO", sampler.Kind())

	v, err := sampler.Coerce(graph.StringValue("ddim"))
	require.NoError(t, err)
	s, _ := v.Str()
	assert.Equal(t, "ddim", s)

	_, err = sampler.Coerce(graph.StringValue("not_a_sampler"))
	assert.Error(t, err)
}

func TestConnectionParamsAreNotSettable(t *testing.T) {
	reg, err := Parse([]byte(objectInfo))
	require.NoError(t, err)
	ks, _ := reg.Class("KSampler")

	model, ok := ks.Param("model")
	require.True(t, ok)
	assert.False(t, model.Settable())
	assert.Equal(t, "MODEL", model.Kind())
	_, err = model.Coerce(graph.StringValue("x"))
	assert.Error(t, err)
}

func TestMissingTypesWalksSubgraphDefinitions(t *testing.T) {
	reg, err := Parse([]byte(objectInfo))
	require.NoError(t, err)

	doc := `{
		"nodes": [
			{"id": 1, "type": "KSampler", "pos": [0,0], "size": [10,10]},
			{"id": 2, "type": "Note", "pos": [0,0], "size": [10,10]},
			{"id": 3, "type": "deadbeef-0000", "pos": [0,0], "size": [10,10]}
		],
		"links": [],
		"definitions": {
			"subgraphs": [
				{
					"id": "deadbeef-0000",
					"name": "inner",
					"inputNode": {"id": -10}, "outputNode": {"id": -20},
					"inputs": [], "outputs": [],
					"nodes": [
						{"id": 1, "type": "SaveImage", "pos": [0,0], "size": [10,10]},
						{"id": 2, "type": "SomeCustomNode", "pos": [0,0], "size": [10,10]}
					],
					"links": []
				}
			]
		}
	}`
	g, err := graph.FromJSON([]byte(doc))
	require.NoError(t, err)

	missing := reg.MissingTypes(g)
	// virtual nodes and subgraph instances are never missing; the unknown
	// type inside the definition is
	assert.Equal(t, []string{"SomeCustomNode"}, missing)
}

func TestBindWidgetNamesNormalizesPositionalValues(t *testing.T) {
	reg, err := Parse([]byte(objectInfo))
	require.NoError(t, err)

	doc := `{
		"nodes": [
			{
				"id": 1, "type": "KSampler", "pos": [0,0], "size": [10,10],
				"widgets_values": [7, 20, 8.0, "euler", 1.0]
			}
		],
		"links": []
	}`
	g, err := graph.FromJSON([]byte(doc))
	require.NoError(t, err)

	reg.BindWidgetNames(g)

	n, _ := g.NodeByID(1)
	require.True(t, n.WidgetValues.Named())

	seed, ok := n.WidgetValues.Get("seed")
	require.True(t, ok)
	got, _ := seed.Int()
	assert.EqualValues(t, 7, got)

	sampler, ok := n.WidgetValues.Get("sampler_name")
	require.True(t, ok)
	s, _ := sampler.Str()
	assert.Equal(t, "euler", s)

	out, err := json.Marshal(n.WidgetValues)
	require.NoError(t, err)
	assert.JSONEq(t, `{"seed":7,"steps":20,"cfg":8,"sampler_name":"euler","denoise":1}`, string(out))
}
