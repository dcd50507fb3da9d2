package storyfile_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aretw0/storygraph/pkg/adapters/memory"
	"github.com/aretw0/storygraph/pkg/domain"
	"github.com/aretw0/storygraph/pkg/ports"
	"github.com/aretw0/storygraph/pkg/storyfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_YAML(t *testing.T) {
	doc, err := storyfile.Load(filepath.Join("testdata", "cave.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "The Cave", doc.Story.Title)
	assert.Equal(t, "easy", doc.Story.Difficulty)
	assert.True(t, doc.Story.IsPublished)
	require.Len(t, doc.Nodes, 4)
	assert.True(t, doc.Nodes[0].IsStartingNode)
	assert.Equal(t, domain.NodeTypeChoice, doc.Nodes[0].Type)
	assert.Equal(t, domain.NodeTypeEnding, doc.Nodes[2].Type, "ending nodes default to the ending type")

	require.Len(t, doc.Choices, 4)
	assert.Equal(t, int64(1), doc.Choices[0].FromNodeID, "inline choices take their node as source")
	assert.Equal(t, int64(2), doc.Choices[0].ToNodeID)
	assert.Equal(t, "Your eyes slowly adjust to the dark.", doc.Choices[0].Consequences)
	assert.Equal(t, int64(4), doc.Choices[3].ID)
}

func TestLoad_JSON(t *testing.T) {
	doc, err := storyfile.Load(filepath.Join("testdata", "lighthouse.json"))
	require.NoError(t, err)

	assert.Equal(t, "Mystery", doc.Story.Category)
	require.Len(t, doc.Nodes, 3)
	assert.Equal(t, int64(10), doc.Nodes[0].ID)
	require.Len(t, doc.Choices, 2)
	assert.Equal(t, int64(11), doc.Choices[0].ToNodeID)
}

func TestParse_Errors(t *testing.T) {
	cases := map[string]string{
		"unknown key":     "story: {title: x}\nscenes: []\n",
		"missing title":   "story: {author: x}\n",
		"bad letter":      "story: {title: x}\nnodes:\n  - id: 1\n    choices: [{letter: E, to: 1}]\n",
		"duplicate id":    "story: {title: x}\nnodes:\n  - id: 1\n  - id: 1\n",
		"unknown field":   "story: {title: x}\nnodes:\n  - id: 1\n    colour: red\n",
		"bad node type":   "story: {title: x}\nnodes:\n  - id: 1\n    type: prologue\n",
		"nodes not list":  "story: {title: x}\nnodes: {a: 1}\n",
		"malformed yaml":  "story: [\n",
		"node not a map":  "story: {title: x}\nnodes: [1]\n",
		"choice not list": "story: {title: x}\nnodes:\n  - id: 1\n    choices: nope\n",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := storyfile.Parse([]byte(input), "yaml")
			assert.Error(t, err)
		})
	}
}

func TestParse_LowercaseLetterAndPositionalIDs(t *testing.T) {
	doc, err := storyfile.Parse([]byte(`
story: {title: Tiny, published: "true"}
nodes:
  - {title: a, start: true, choices: [{letter: a, to: 2}]}
  - {title: b, ending: true}
`), "yaml")
	require.NoError(t, err)

	assert.True(t, doc.Story.IsPublished, "weakly typed booleans are accepted")
	assert.Equal(t, int64(1), doc.Nodes[0].ID)
	assert.Equal(t, int64(2), doc.Nodes[1].ID)
	assert.Equal(t, "A", doc.Choices[0].Letter)
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	doc, err := storyfile.Load(filepath.Join("testdata", "cave.yaml"))
	require.NoError(t, err)

	g := memory.NewGraph()
	// Occupy the first IDs so local and store IDs differ.
	require.NoError(t, g.CreateStory(ctx, &domain.Story{Title: "placeholder"}))

	storyID, err := storyfile.Seed(ctx, g, doc)
	require.NoError(t, err)

	nodes, err := g.GetNodes(ctx, storyID)
	require.NoError(t, err)
	require.Len(t, nodes, 4)
	assert.Equal(t, "Entrance", nodes[0].Title)

	choices, err := g.GetChoicesFrom(ctx, nodes[1].ID)
	require.NoError(t, err)
	require.Len(t, choices, 2)
	assert.Equal(t, nodes[2].ID, choices[0].ToNodeID)
	assert.Equal(t, nodes[0].ID, choices[1].ToNodeID)
}

func TestSeed_DanglingChoice(t *testing.T) {
	doc, err := storyfile.Parse([]byte(`
story: {title: Broken}
nodes:
  - {id: 1, start: true, choices: [{letter: A, to: 9}]}
`), "yaml")
	require.NoError(t, err)

	_, err = storyfile.Seed(context.Background(), memory.NewGraph(), doc)
	assert.ErrorContains(t, err, "unknown target node 9")
}

func TestSeedDir(t *testing.T) {
	g := memory.NewGraph()

	ids, err := storyfile.SeedDir(context.Background(), g, "testdata")
	require.NoError(t, err)
	require.Len(t, ids, 2)

	stories, err := g.ListStories(context.Background(), ports.StoryFilter{})
	require.NoError(t, err)
	assert.Equal(t, "The Cave", stories[0].Title)
	assert.Equal(t, "The Lighthouse", stories[1].Title)
}
