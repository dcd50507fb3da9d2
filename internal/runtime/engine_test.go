package runtime_test

import (
	"context"
	"testing"

	"github.com/aretw0/storygraph/internal/runtime"
	"github.com/aretw0/storygraph/pkg/adapters/memory"
	"github.com/aretw0/storygraph/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const player int64 = 7

// fixture is the S -> M -> E story, plus a second choice out of S.
type fixture struct {
	graph   *memory.Graph
	store   *memory.Store
	story   *domain.Story
	s, m, e *domain.Node
	sm, me  *domain.Choice
	se      *domain.Choice
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{graph: memory.NewGraph(), store: memory.NewStore()}

	f.story = &domain.Story{Title: "The Cave", Category: "Adventure", IsPublished: true}
	require.NoError(t, f.graph.CreateStory(ctx, f.story))

	f.s = &domain.Node{StoryID: f.story.ID, Title: "S", Content: "You stand at the mouth of a cave.", IsStartingNode: true, Type: domain.NodeTypeChoice}
	f.m = &domain.Node{StoryID: f.story.ID, Title: "M", Content: "It is dark.", Type: domain.NodeTypeStory}
	f.e = &domain.Node{StoryID: f.story.ID, Title: "E", Content: "Daylight.", IsEndingNode: true, Type: domain.NodeTypeEnding}
	for _, n := range []*domain.Node{f.s, f.m, f.e} {
		require.NoError(t, f.graph.AddNode(ctx, n))
	}

	f.se = &domain.Choice{FromNodeID: f.s.ID, ToNodeID: f.e.ID, Text: "Walk away", Letter: "B"}
	f.sm = &domain.Choice{FromNodeID: f.s.ID, ToNodeID: f.m.ID, Text: "Enter", Letter: "A", Consequences: "The air turns cold."}
	f.me = &domain.Choice{FromNodeID: f.m.ID, ToNodeID: f.e.ID, Text: "Keep going", Letter: "A"}
	for _, c := range []*domain.Choice{f.se, f.sm, f.me} {
		require.NoError(t, f.graph.AddChoice(ctx, c))
	}
	return f
}

func (f *fixture) engine(opts ...runtime.EngineOption) *runtime.Engine {
	return runtime.NewEngine(f.graph, f.store, opts...)
}

func TestEngine_Playthrough(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	engine := f.engine()

	view, err := engine.StartStory(ctx, f.story.ID, player)
	require.NoError(t, err)
	assert.Equal(t, f.s.ID, view.ID)
	require.Len(t, view.Choices, 2)
	assert.Equal(t, "A", view.Choices[0].Letter, "choices are ordered by letter")
	assert.Equal(t, "B", view.Choices[1].Letter)

	p, err := f.store.GetProgress(ctx, player, f.story.ID)
	require.NoError(t, err)
	assert.Equal(t, f.s.ID, p.CurrentNodeID)
	assert.False(t, p.IsCompleted)

	res, err := engine.MakeChoice(ctx, domain.ChoiceRequest{CurrentNodeID: f.s.ID, ChoiceID: f.sm.ID, PlayerID: player})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.ProgressSaved)
	assert.False(t, res.IsEnding)
	assert.Equal(t, "The air turns cold.", res.Consequences)
	assert.Equal(t, f.m.ID, res.NextNode.ID)

	p, err = f.store.GetProgress(ctx, player, f.story.ID)
	require.NoError(t, err)
	assert.Equal(t, f.m.ID, p.CurrentNodeID)
	assert.Equal(t, []domain.HistoryEntry{{NodeID: f.s.ID, ChoiceID: f.sm.ID}}, p.History.Entries())

	res, err = engine.MakeChoice(ctx, domain.ChoiceRequest{CurrentNodeID: f.m.ID, ChoiceID: f.me.ID, PlayerID: player})
	require.NoError(t, err)
	assert.True(t, res.IsEnding)
	assert.True(t, res.ProgressSaved)
	assert.Empty(t, res.NextNode.Choices)

	p, err = f.store.GetProgress(ctx, player, f.story.ID)
	require.NoError(t, err)
	assert.True(t, p.IsCompleted)
	assert.Equal(t, f.e.ID, p.CurrentNodeID)

	stats, err := engine.PlayerStats(ctx, player)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.StoriesCompleted)
	assert.Equal(t, "Adventure", stats.FavoriteCategory)
}

func TestEngine_StartStory_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("Unknown Story", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.engine().StartStory(ctx, 999, player)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Unpublished Story Writes Nothing", func(t *testing.T) {
		f := newFixture(t)
		draft := *f.story
		draft.IsPublished = false
		require.NoError(t, f.graph.UpdateStory(ctx, &draft))

		_, err := f.engine().StartStory(ctx, f.story.ID, player)
		assert.ErrorIs(t, err, domain.ErrPreconditionFailed)

		_, err = f.store.GetProgress(ctx, player, f.story.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("No Starting Node", func(t *testing.T) {
		f := newFixture(t)
		empty := &domain.Story{Title: "Empty", IsPublished: true}
		require.NoError(t, f.graph.CreateStory(ctx, empty))
		require.NoError(t, f.graph.AddNode(ctx, &domain.Node{StoryID: empty.ID, Title: "orphan"}))

		_, err := f.engine().StartStory(ctx, empty.ID, player)
		assert.ErrorIs(t, err, domain.ErrPreconditionFailed)

		_, err = f.store.GetProgress(ctx, player, empty.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestEngine_StartStory_ResetsProgress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	engine := f.engine()

	_, err := engine.StartStory(ctx, f.story.ID, player)
	require.NoError(t, err)
	_, err = engine.MakeChoice(ctx, domain.ChoiceRequest{CurrentNodeID: f.s.ID, ChoiceID: f.se.ID, PlayerID: player})
	require.NoError(t, err)

	_, err = engine.StartStory(ctx, f.story.ID, player)
	require.NoError(t, err)

	p, err := f.store.GetProgress(ctx, player, f.story.ID)
	require.NoError(t, err)
	assert.Equal(t, f.s.ID, p.CurrentNodeID)
	assert.False(t, p.IsCompleted)
}

func TestEngine_Anonymous(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	engine := f.engine()

	view, err := engine.StartStory(ctx, f.story.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, f.s.ID, view.ID)

	res, err := engine.MakeChoice(ctx, domain.ChoiceRequest{CurrentNodeID: f.s.ID, ChoiceID: f.se.ID})
	require.NoError(t, err)
	assert.True(t, res.IsEnding)
	assert.False(t, res.ProgressSaved)

	_, err = f.store.GetProgress(ctx, 0, f.story.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEngine_MakeChoice_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("Unknown Choice", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.engine().MakeChoice(ctx, domain.ChoiceRequest{CurrentNodeID: f.s.ID, ChoiceID: 999, PlayerID: player})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Invalid Transition Leaves Progress", func(t *testing.T) {
		f := newFixture(t)
		engine := f.engine()
		_, err := engine.StartStory(ctx, f.story.ID, player)
		require.NoError(t, err)
		before, err := f.store.GetProgress(ctx, player, f.story.ID)
		require.NoError(t, err)

		// me leaves M, but the player claims to be at S.
		_, err = engine.MakeChoice(ctx, domain.ChoiceRequest{CurrentNodeID: f.s.ID, ChoiceID: f.me.ID, PlayerID: player})
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)

		after, err := f.store.GetProgress(ctx, player, f.story.ID)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("Missing Destination", func(t *testing.T) {
		f := newFixture(t)
		graph := vanishingGraph{Graph: f.graph, missing: f.m.ID}
		engine := runtime.NewEngine(graph, f.store)

		_, err := engine.MakeChoice(ctx, domain.ChoiceRequest{CurrentNodeID: f.s.ID, ChoiceID: f.sm.ID})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestEngine_MakeChoice_WithoutStartedProgress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.engine().MakeChoice(ctx, domain.ChoiceRequest{CurrentNodeID: f.s.ID, ChoiceID: f.sm.ID, PlayerID: player})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.ProgressSaved)

	_, err = f.store.GetProgress(ctx, player, f.story.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEngine_RevisitOverwritesHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	back := &domain.Choice{FromNodeID: f.m.ID, ToNodeID: f.s.ID, Text: "Back out", Letter: "B"}
	require.NoError(t, f.graph.AddChoice(ctx, back))
	engine := f.engine()

	_, err := engine.StartStory(ctx, f.story.ID, player)
	require.NoError(t, err)
	steps := []domain.ChoiceRequest{
		{CurrentNodeID: f.s.ID, ChoiceID: f.sm.ID, PlayerID: player},
		{CurrentNodeID: f.m.ID, ChoiceID: back.ID, PlayerID: player},
		{CurrentNodeID: f.s.ID, ChoiceID: f.se.ID, PlayerID: player},
	}
	for _, step := range steps {
		res, err := engine.MakeChoice(ctx, step)
		require.NoError(t, err)
		require.True(t, res.ProgressSaved)
	}

	p, err := f.store.GetProgress(ctx, player, f.story.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.HistoryEntry{
		{NodeID: f.s.ID, ChoiceID: f.se.ID},
		{NodeID: f.m.ID, ChoiceID: back.ID},
	}, p.History.Entries())
}

func TestEngine_CompletionCountsOncePerTransition(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	engine := f.engine()

	_, err := engine.StartStory(ctx, f.story.ID, player)
	require.NoError(t, err)
	_, err = engine.MakeChoice(ctx, domain.ChoiceRequest{CurrentNodeID: f.s.ID, ChoiceID: f.se.ID, PlayerID: player})
	require.NoError(t, err)

	// Replaying the final choice on completed progress is not a new completion.
	res, err := engine.MakeChoice(ctx, domain.ChoiceRequest{CurrentNodeID: f.s.ID, ChoiceID: f.se.ID, PlayerID: player})
	require.NoError(t, err)
	assert.True(t, res.ProgressSaved)

	stats, err := engine.PlayerStats(ctx, player)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.StoriesCompleted)

	// A fresh start followed by another ending is.
	_, err = engine.StartStory(ctx, f.story.ID, player)
	require.NoError(t, err)
	_, err = engine.MakeChoice(ctx, domain.ChoiceRequest{CurrentNodeID: f.s.ID, ChoiceID: f.se.ID, PlayerID: player})
	require.NoError(t, err)

	stats, err = engine.PlayerStats(ctx, player)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.StoriesCompleted)
}

func TestEngine_CurrentNode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	engine := f.engine()

	t.Run("Starts When No Progress", func(t *testing.T) {
		view, err := engine.CurrentNode(ctx, f.story.ID, player)
		require.NoError(t, err)
		assert.Equal(t, f.s.ID, view.ID)

		_, err = f.store.GetActiveProgress(ctx, player, f.story.ID)
		assert.NoError(t, err, "delegating to StartStory creates progress")
	})

	t.Run("Returns Active Node", func(t *testing.T) {
		_, err := engine.MakeChoice(ctx, domain.ChoiceRequest{CurrentNodeID: f.s.ID, ChoiceID: f.sm.ID, PlayerID: player})
		require.NoError(t, err)

		view, err := engine.CurrentNode(ctx, f.story.ID, player)
		require.NoError(t, err)
		assert.Equal(t, f.m.ID, view.ID)
		require.Len(t, view.Choices, 1)
		assert.Equal(t, f.me.ID, view.Choices[0].ID)
	})

	t.Run("Completed Progress Restarts", func(t *testing.T) {
		_, err := engine.MakeChoice(ctx, domain.ChoiceRequest{CurrentNodeID: f.m.ID, ChoiceID: f.me.ID, PlayerID: player})
		require.NoError(t, err)

		view, err := engine.CurrentNode(ctx, f.story.ID, player)
		require.NoError(t, err)
		assert.Equal(t, f.s.ID, view.ID)
	})

	t.Run("Anonymous", func(t *testing.T) {
		view, err := engine.CurrentNode(ctx, f.story.ID, 0)
		require.NoError(t, err)
		assert.Equal(t, f.s.ID, view.ID)
	})
}

func TestEngine_CurrentNode_VanishedNode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.UpsertProgress(ctx, player, f.story.ID, 4242, false))

	_, err := f.engine().CurrentNode(ctx, f.story.ID, player)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
