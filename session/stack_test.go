package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaeone94/comfy-mobile-graph/graph"
)

func simpleDefinition(id, name string) *graph.SubgraphDefinition {
	return &graph.SubgraphDefinition{
		ID:   id,
		Name: name,
		Inputs: []graph.BoundaryPort{
			{Name: "image", Type: "IMAGE", LinkIDs: []int{101}},
		},
		Outputs: []graph.BoundaryPort{
			{Name: "IMAGE", Type: "IMAGE", LinkIDs: []int{102}},
		},
		Nodes: []*graph.Node{
			{
				ID:      30,
				Type:    "ImageScale",
				Inputs:  []graph.Slot{{Name: "image", Type: "IMAGE", Link: 101}},
				Outputs: []graph.Slot{{Name: "IMAGE", Type: "IMAGE", Links: []int{102}}},
			},
		},
		Links: []*graph.Link{
			{ID: 101, OriginID: graph.BoundaryInputID, OriginSlot: 0, TargetID: 30, TargetSlot: 0, Type: "IMAGE"},
			{ID: 102, OriginID: 30, OriginSlot: 0, TargetID: graph.BoundaryOutputID, TargetSlot: 0, Type: "IMAGE"},
		},
		State: graph.SubgraphState{LastNodeID: 30, LastLinkID: 102},
	}
}

func rootWithDefinition(def *graph.SubgraphDefinition) *graph.Graph {
	g := graph.New()
	g.Definitions = &graph.Definitions{Subgraphs: []*graph.SubgraphDefinition{def}}
	return g
}

func TestEnterAndExitSubgraph(t *testing.T) {
	def := simpleDefinition("sg-1", "Upscale Pass")
	stack := NewStack(rootWithDefinition(def), "doc")

	root := stack.Root()
	assert.True(t, root.IsRoot())
	assert.Equal(t, 1, stack.Depth())

	sess, err := stack.EnterSubgraph("sg-1", "")
	require.NoError(t, err)
	assert.Equal(t, 2, stack.Depth())
	assert.Same(t, sess, stack.Active())
	assert.False(t, sess.IsRoot())
	assert.Equal(t, "Upscale Pass", sess.Title, "title defaults to the definition name")
	assert.Same(t, def, sess.Definition)

	restored, err := stack.Exit()
	require.NoError(t, err)
	// exiting restores the exact prior session, not a reconstruction
	assert.Same(t, root, restored)
	assert.Equal(t, 1, stack.Depth())
}

func TestExitRootFails(t *testing.T) {
	stack := NewStack(graph.New(), "doc")
	_, err := stack.Exit()
	assert.ErrorIs(t, err, ErrCannotExitRoot)
	assert.Equal(t, 1, stack.Depth())
}

func TestEnterUnknownDefinition(t *testing.T) {
	stack := NewStack(graph.New(), "doc")
	_, err := stack.EnterSubgraph("nope", "")
	assert.ErrorIs(t, err, ErrDefinitionNotFound)
	assert.Equal(t, 1, stack.Depth(), "a failed enter must not grow the stack")
}

func TestJumpToTruncates(t *testing.T) {
	inner := simpleDefinition("sg-inner", "Inner")
	outer := simpleDefinition("sg-outer", "Outer")
	outer.Definitions = &graph.Definitions{Subgraphs: []*graph.SubgraphDefinition{inner}}

	stack := NewStack(rootWithDefinition(outer), "doc")
	_, err := stack.EnterSubgraph("sg-outer", "")
	require.NoError(t, err)
	_, err = stack.EnterSubgraph("sg-inner", "")
	require.NoError(t, err)
	require.Equal(t, 3, stack.Depth())

	assert.Equal(t, []string{"doc", "Outer", "Inner"}, stack.Breadcrumbs())

	active, err := stack.JumpTo(0)
	require.NoError(t, err)
	assert.Same(t, stack.Root(), active)
	assert.Equal(t, 1, stack.Depth())

	_, err = stack.JumpTo(5)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestEmbeddedDefinitionShadowsOuter(t *testing.T) {
	shadowed := simpleDefinition("sg-shared", "Outer Version")
	embedded := simpleDefinition("sg-shared", "Embedded Version")
	outer := simpleDefinition("sg-outer", "Outer")
	outer.Definitions = &graph.Definitions{Subgraphs: []*graph.SubgraphDefinition{embedded}}

	g := graph.New()
	g.Definitions = &graph.Definitions{Subgraphs: []*graph.SubgraphDefinition{shadowed, outer}}
	stack := NewStack(g, "doc")

	// from the root, the outer version is visible
	sess, err := stack.EnterSubgraph("sg-shared", "")
	require.NoError(t, err)
	assert.Same(t, shadowed, sess.Definition)
	_, err = stack.Exit()
	require.NoError(t, err)

	// from inside sg-outer, the embedded definition wins
	_, err = stack.EnterSubgraph("sg-outer", "")
	require.NoError(t, err)
	sess, err = stack.EnterSubgraph("sg-shared", "")
	require.NoError(t, err)
	assert.Same(t, embedded, sess.Definition)
	assert.Equal(t, "Embedded Version", sess.Definition.Name)
}

func TestContainsTracksLiveSessions(t *testing.T) {
	def := simpleDefinition("sg-1", "Upscale Pass")
	stack := NewStack(rootWithDefinition(def), "doc")

	sess, err := stack.EnterSubgraph("sg-1", "")
	require.NoError(t, err)
	id := sess.ID
	assert.True(t, stack.Contains(id))

	_, err = stack.Exit()
	require.NoError(t, err)
	// an async result captured for the popped session must now be dropped
	assert.False(t, stack.Contains(id))
	assert.True(t, stack.Contains(stack.Root().ID))
}
