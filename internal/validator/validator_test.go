package validator

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/storygraph/pkg/adapters/memory"
	"github.com/aretw0/storygraph/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	nodeS int64 = 1
	nodeM int64 = 2
	nodeE int64 = 3
)

func smallStory() ([]domain.Node, []domain.Choice) {
	nodes := []domain.Node{
		{ID: nodeS, StoryID: 1, Title: "S", IsStartingNode: true},
		{ID: nodeM, StoryID: 1, Title: "M"},
		{ID: nodeE, StoryID: 1, Title: "E", IsEndingNode: true, Type: domain.NodeTypeEnding},
	}
	choices := []domain.Choice{
		{ID: 10, FromNodeID: nodeS, ToNodeID: nodeM, Letter: "A"},
		{ID: 11, FromNodeID: nodeM, ToNodeID: nodeE, Letter: "A"},
	}
	return nodes, choices
}

func TestAnalyze_ValidStory(t *testing.T) {
	nodes, choices := smallStory()

	res := Analyze(nodes, choices)

	assert.True(t, res.IsValid)
	assert.Empty(t, res.Issues)
	assert.Equal(t, 3, res.TotalNodes)
	assert.Equal(t, 2, res.TotalChoices)
	assert.Equal(t, []int64{}, res.UnreachableNodes)
	assert.Equal(t, []int64{}, res.DeadEnds)
}

func TestAnalyze_DeadEnd(t *testing.T) {
	nodes, choices := smallStory()
	choices = choices[:1] // M has no way out

	res := Analyze(nodes, choices)

	assert.False(t, res.IsValid)
	assert.Equal(t, []int64{nodeM}, res.DeadEnds)
	assert.Equal(t, []int64{nodeE}, res.UnreachableNodes)
	assert.Equal(t, []string{
		"Unreachable nodes found: [3]",
		"Dead end nodes found: [2]",
	}, res.Issues)
}

func TestAnalyze_NoNodes(t *testing.T) {
	res := Analyze(nil, []domain.Choice{{ID: 1}})

	assert.False(t, res.IsValid)
	assert.Equal(t, []string{domain.IssueNoNodes}, res.Issues)
	assert.Zero(t, res.TotalNodes)
	assert.Zero(t, res.TotalChoices)
	assert.Empty(t, res.UnreachableNodes)
	assert.Empty(t, res.DeadEnds)
}

func TestAnalyze_StartAndEndingChecksAccumulate(t *testing.T) {
	nodes := []domain.Node{{ID: 1}, {ID: 2}}
	choices := []domain.Choice{{ID: 10, FromNodeID: 1, ToNodeID: 2, Letter: "A"}}

	res := Analyze(nodes, choices)

	assert.False(t, res.IsValid)
	require.Len(t, res.Issues, 4)
	assert.Equal(t, domain.IssueNoStartingNode, res.Issues[0])
	assert.Equal(t, domain.IssueNoEndingNodes, res.Issues[1])
	assert.Equal(t, "Unreachable nodes found: [1, 2]", res.Issues[2])
	assert.Equal(t, "Dead end nodes found: [2]", res.Issues[3])
}

func TestAnalyze_MultipleStarts(t *testing.T) {
	nodes := []domain.Node{
		{ID: 1, IsStartingNode: true},
		{ID: 2, IsStartingNode: true},
		{ID: 3, IsEndingNode: true},
	}
	choices := []domain.Choice{
		{ID: 10, FromNodeID: 1, ToNodeID: 3, Letter: "A"},
		{ID: 11, FromNodeID: 2, ToNodeID: 3, Letter: "A"},
	}

	res := Analyze(nodes, choices)

	assert.Contains(t, res.Issues, domain.IssueMultipleStarting)
	assert.Equal(t, []int64{2}, res.UnreachableNodes, "the first start is the root")
}

func TestAnalyze_LetterConflicts(t *testing.T) {
	nodes, choices := smallStory()
	choices = append(choices,
		domain.Choice{ID: 12, FromNodeID: nodeS, ToNodeID: nodeE, Letter: "A"},
		domain.Choice{ID: 13, FromNodeID: nodeM, ToNodeID: nodeS, Letter: "B"},
		domain.Choice{ID: 14, FromNodeID: nodeM, ToNodeID: nodeE, Letter: "B"},
		domain.Choice{ID: 15, FromNodeID: nodeM, ToNodeID: nodeE, Letter: "A"},
	)

	res := Analyze(nodes, choices)

	assert.False(t, res.IsValid)
	assert.Equal(t, []string{
		"Node 1 has duplicate choice letter 'A'",
		"Node 2 has duplicate choice letter 'A'",
		"Node 2 has duplicate choice letter 'B'",
	}, res.Issues)
}

func TestAnalyze_SingleConflictPerPair(t *testing.T) {
	nodes, choices := smallStory()
	choices = append(choices,
		domain.Choice{ID: 12, FromNodeID: nodeS, ToNodeID: nodeE, Letter: "A"},
		domain.Choice{ID: 13, FromNodeID: nodeS, ToNodeID: nodeE, Letter: "A"},
	)

	res := Analyze(nodes, choices)
	assert.Equal(t, []string{"Node 1 has duplicate choice letter 'A'"}, res.Issues)
}

func TestAnalyze_DanglingChoices(t *testing.T) {
	nodes, choices := smallStory()
	choices = append(choices, domain.Choice{ID: 20, FromNodeID: nodeM, ToNodeID: 404, Letter: "B"})

	res := Analyze(nodes, choices)

	assert.False(t, res.IsValid)
	assert.Equal(t, []int64{20}, res.DanglingChoices)
	assert.Equal(t, []string{"Choices pointing to missing nodes: [20]"}, res.Issues)
}

func TestAnalyze_Cycle(t *testing.T) {
	nodes, choices := smallStory()
	choices = append(choices, domain.Choice{ID: 12, FromNodeID: nodeM, ToNodeID: nodeS, Letter: "B"})

	res := Analyze(nodes, choices)
	assert.True(t, res.IsValid)
}

func TestAnalyze_Deterministic(t *testing.T) {
	nodes := []domain.Node{{ID: 1, IsStartingNode: true}, {ID: 2}, {ID: 3}, {ID: 4}}
	choices := []domain.Choice{
		{ID: 10, FromNodeID: 1, ToNodeID: 2, Letter: "A"},
		{ID: 11, FromNodeID: 1, ToNodeID: 3, Letter: "A"},
		{ID: 12, FromNodeID: 2, ToNodeID: 3, Letter: "C"},
		{ID: 13, FromNodeID: 2, ToNodeID: 3, Letter: "C"},
	}

	first := Analyze(nodes, choices)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Analyze(nodes, choices))
	}
}

func TestValidator_Validate(t *testing.T) {
	ctx := context.Background()
	g := memory.NewGraph()

	story := &domain.Story{Title: "Cave", IsPublished: true}
	require.NoError(t, g.CreateStory(ctx, story))
	s := &domain.Node{StoryID: story.ID, IsStartingNode: true}
	e := &domain.Node{StoryID: story.ID, IsEndingNode: true, Type: domain.NodeTypeEnding}
	require.NoError(t, g.AddNode(ctx, s))
	require.NoError(t, g.AddNode(ctx, e))
	require.NoError(t, g.AddChoice(ctx, &domain.Choice{FromNodeID: s.ID, ToNodeID: e.ID, Letter: "A"}))

	v := New(g)

	res, err := v.Validate(ctx, story.ID)
	require.NoError(t, err)
	assert.True(t, res.IsValid)
	assert.Equal(t, 2, res.TotalNodes)
	assert.Equal(t, 1, res.TotalChoices)

	t.Run("Unknown Story", func(t *testing.T) {
		res, err := v.Validate(ctx, 999)
		require.NoError(t, err)
		assert.False(t, res.IsValid)
		assert.Equal(t, []string{domain.IssueNoNodes}, res.Issues)
	})

	t.Run("Empty Story", func(t *testing.T) {
		empty := &domain.Story{Title: "Empty"}
		require.NoError(t, g.CreateStory(ctx, empty))

		res, err := v.Validate(ctx, empty.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{domain.IssueNoNodes}, res.Issues)
	})
}

type brokenGraph struct {
	*memory.Graph
}

func (brokenGraph) GetNodes(ctx context.Context, storyID int64) ([]domain.Node, error) {
	return nil, errors.New("connection refused")
}

func TestValidator_InfrastructureError(t *testing.T) {
	v := New(brokenGraph{memory.NewGraph()})

	_, err := v.Validate(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
