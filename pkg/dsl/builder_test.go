package dsl

import (
	"context"
	"testing"

	"github.com/aretw0/storygraph/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func caveStory() *Builder {
	b := NewStory("The Cave").Author("tester").Category("Adventure").Difficulty("easy").Published()

	b.Node("entrance").
		Title("Entrance").
		Text("You stand at the mouth of a cave.").
		Start().
		ChoiceWith("A", "Step inside", "hall", "It is cold.").
		Choice("B", "Walk away", "village")

	b.Node("hall").Text("Dripping water.").Go("lake")
	b.Node("lake").Text("An underground lake.").Ending()
	b.Node("village").Text("Perhaps another day.").Ending()
	return b
}

func TestBuilder_Build(t *testing.T) {
	doc, err := caveStory().Build()
	require.NoError(t, err)

	assert.Equal(t, "The Cave", doc.Story.Title)
	assert.True(t, doc.Story.IsPublished)

	require.Len(t, doc.Nodes, 4)
	assert.Equal(t, int64(1), doc.Nodes[0].ID)
	assert.Equal(t, domain.NodeTypeChoice, doc.Nodes[0].Type)
	assert.Equal(t, domain.NodeTypeStory, doc.Nodes[1].Type)
	assert.Equal(t, "hall", doc.Nodes[1].Title, "title defaults to the key")
	assert.Equal(t, domain.NodeTypeEnding, doc.Nodes[2].Type)

	require.Len(t, doc.Choices, 3)
	assert.Equal(t, domain.Choice{ID: 1, FromNodeID: 1, ToNodeID: 2, Text: "Step inside", Letter: "A", Consequences: "It is cold."}, doc.Choices[0])
	assert.Equal(t, int64(4), doc.Choices[1].ToNodeID)
	assert.Equal(t, "Continue", doc.Choices[2].Text)
}

func TestBuilder_UnknownTarget(t *testing.T) {
	b := NewStory("Broken")
	b.Node("start").Start().Choice("A", "Jump", "nowhere")

	_, err := b.Build()
	assert.ErrorContains(t, err, `unknown node "nowhere"`)
}

func TestBuilder_NodeIsIdempotent(t *testing.T) {
	b := NewStory("Same")
	first := b.Node("a")
	assert.Same(t, first, b.Node("a"))
	assert.Same(t, first, first.Node("b").Node("a"))
}

func TestBuilder_BuildGraph(t *testing.T) {
	ctx := context.Background()
	g, storyID, err := caveStory().BuildGraph(ctx)
	require.NoError(t, err)

	nodes, err := g.GetNodes(ctx, storyID)
	require.NoError(t, err)
	require.Len(t, nodes, 4)

	choices, err := g.GetChoicesFrom(ctx, nodes[0].ID)
	require.NoError(t, err)
	require.Len(t, choices, 2)
	assert.Equal(t, "A", choices[0].Letter)
}
