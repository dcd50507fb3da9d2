package ports

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/storygraph/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunGraphAccessorContract verifies that a GraphStore implementation adheres to
// the GraphAccessor and GraphAuthor contracts. It seeds its own stories.
func RunGraphAccessorContract(t *testing.T, store GraphStore) {
	ctx := context.Background()
	suffix := time.Now().Format("20060102150405.000000000")

	story := &domain.Story{
		Title:       "Contract " + suffix,
		Description: "contract story",
		Author:      "contract",
		Difficulty:  "easy",
		Category:    "contract-" + suffix,
		IsPublished: true,
	}
	require.NoError(t, store.CreateStory(ctx, story))
	require.NotZero(t, story.ID, "CreateStory should assign an ID")
	require.False(t, story.CreatedAt.IsZero(), "CreateStory should set CreatedAt")

	start := &domain.Node{StoryID: story.ID, Title: "Start", Content: "begin", IsStartingNode: true, Type: domain.NodeTypeChoice}
	end := &domain.Node{StoryID: story.ID, Title: "End", Content: "fin", IsEndingNode: true, Type: domain.NodeTypeEnding}
	require.NoError(t, store.AddNode(ctx, start))
	require.NoError(t, store.AddNode(ctx, end))

	// Inserted out of letter order on purpose.
	choiceB := &domain.Choice{FromNodeID: start.ID, ToNodeID: end.ID, Text: "second", Letter: "B"}
	choiceA := &domain.Choice{FromNodeID: start.ID, ToNodeID: end.ID, Text: "first", Letter: "A", Consequences: "you chose A"}
	require.NoError(t, store.AddChoice(ctx, choiceB))
	require.NoError(t, store.AddChoice(ctx, choiceA))

	t.Run("GetStory", func(t *testing.T) {
		got, err := store.GetStory(ctx, story.ID)
		require.NoError(t, err)
		assert.Equal(t, story.Title, got.Title)
		assert.Equal(t, story.Category, got.Category)
		assert.True(t, got.IsPublished)
	})

	t.Run("GetStory Non-Existent", func(t *testing.T) {
		_, err := store.GetStory(ctx, story.ID+1_000_000)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("GetNodes", func(t *testing.T) {
		nodes, err := store.GetNodes(ctx, story.ID)
		require.NoError(t, err)
		require.Len(t, nodes, 2)
		assert.Equal(t, start.ID, nodes[0].ID)
		assert.True(t, nodes[0].IsStartingNode)
		assert.Equal(t, end.ID, nodes[1].ID)
		assert.True(t, nodes[1].IsEndingNode)
		assert.Equal(t, domain.NodeTypeEnding, nodes[1].Type)
	})

	t.Run("GetNodes Unknown Story", func(t *testing.T) {
		_, err := store.GetNodes(ctx, story.ID+1_000_000)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("GetStoryChoices", func(t *testing.T) {
		choices, err := store.GetStoryChoices(ctx, story.ID)
		require.NoError(t, err)
		assert.Len(t, choices, 2)
	})

	t.Run("GetChoicesFrom Is Ordered By Letter", func(t *testing.T) {
		choices, err := store.GetChoicesFrom(ctx, start.ID)
		require.NoError(t, err)
		require.Len(t, choices, 2)
		assert.Equal(t, "A", choices[0].Letter)
		assert.Equal(t, "you chose A", choices[0].Consequences)
		assert.Equal(t, "B", choices[1].Letter)

		none, err := store.GetChoicesFrom(ctx, end.ID)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("GetChoice And GetNode", func(t *testing.T) {
		c, err := store.GetChoice(ctx, choiceA.ID)
		require.NoError(t, err)
		assert.Equal(t, start.ID, c.FromNodeID)
		assert.Equal(t, end.ID, c.ToNodeID)

		_, err = store.GetChoice(ctx, choiceA.ID+1_000_000)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		n, err := store.GetNode(ctx, end.ID)
		require.NoError(t, err)
		assert.Equal(t, "End", n.Title)

		_, err = store.GetNode(ctx, end.ID+1_000_000)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("AddChoice Rejects Bad Letter", func(t *testing.T) {
		err := store.AddChoice(ctx, &domain.Choice{FromNodeID: start.ID, ToNodeID: end.ID, Text: "x", Letter: "E"})
		assert.ErrorIs(t, err, domain.ErrPreconditionFailed)
	})

	t.Run("AddNode Unknown Story", func(t *testing.T) {
		err := store.AddNode(ctx, &domain.Node{StoryID: story.ID + 1_000_000, Title: "orphan", Type: domain.NodeTypeStory})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("UpdateStory", func(t *testing.T) {
		updated := *story
		updated.Title = "Renamed " + suffix
		require.NoError(t, store.UpdateStory(ctx, &updated))

		got, err := store.GetStory(ctx, story.ID)
		require.NoError(t, err)
		assert.Equal(t, updated.Title, got.Title)

		missing := updated
		missing.ID = story.ID + 1_000_000
		assert.ErrorIs(t, store.UpdateStory(ctx, &missing), domain.ErrNotFound)
	})

	t.Run("ListStories And Categories", func(t *testing.T) {
		draft := &domain.Story{Title: "Draft " + suffix, Category: "draft-" + suffix}
		require.NoError(t, store.CreateStory(ctx, draft))
		defer func() { _ = store.DeleteStory(ctx, draft.ID) }()

		published, err := store.ListStories(ctx, StoryFilter{PublishedOnly: true})
		require.NoError(t, err)
		assert.True(t, containsStory(published, story.ID))
		assert.False(t, containsStory(published, draft.ID))

		byCategory, err := store.ListStories(ctx, StoryFilter{Category: draft.Category})
		require.NoError(t, err)
		require.Len(t, byCategory, 1)
		assert.Equal(t, draft.ID, byCategory[0].ID)

		all, err := store.Categories(ctx, false)
		require.NoError(t, err)
		assert.Contains(t, all, story.Category)
		assert.Contains(t, all, draft.Category)
		assert.IsIncreasing(t, all)

		pub, err := store.Categories(ctx, true)
		require.NoError(t, err)
		assert.Contains(t, pub, story.Category)
		assert.NotContains(t, pub, draft.Category)
	})

	t.Run("DeleteStory Cascades", func(t *testing.T) {
		require.NoError(t, store.DeleteStory(ctx, story.ID))

		_, err := store.GetStory(ctx, story.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = store.GetNode(ctx, start.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = store.GetChoice(ctx, choiceA.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		assert.ErrorIs(t, store.DeleteStory(ctx, story.ID), domain.ErrNotFound)
	})
}

// RunProgressStoreContract verifies that a SessionStore implementation adheres to
// the ProgressStore, StatsStore and Transactor contracts.
func RunProgressStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	// Distinct IDs per run so persistent backends can be reused.
	base := time.Now().UnixNano() % 1_000_000_000
	player := base
	storyID := base + 1

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.GetProgress(ctx, player, storyID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = store.GetActiveProgress(ctx, player, storyID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Upsert Creates", func(t *testing.T) {
		require.NoError(t, store.UpsertProgress(ctx, player, storyID, 10, false))

		p, err := store.GetActiveProgress(ctx, player, storyID)
		require.NoError(t, err)
		assert.NotZero(t, p.ID)
		assert.Equal(t, player, p.PlayerID)
		assert.Equal(t, storyID, p.StoryID)
		assert.Equal(t, int64(10), p.CurrentNodeID)
		assert.False(t, p.IsCompleted)
		assert.Equal(t, 0, p.History.Len())
	})

	t.Run("AppendChoiceHistory", func(t *testing.T) {
		p, err := store.GetProgress(ctx, player, storyID)
		require.NoError(t, err)

		require.NoError(t, store.AppendChoiceHistory(ctx, p, 10, 100))
		require.NoError(t, store.AppendChoiceHistory(ctx, p, 11, 101))
		require.NoError(t, store.AppendChoiceHistory(ctx, p, 10, 102))
		assert.Equal(t, []int64{10, 11}, p.History.Nodes())

		loaded, err := store.GetProgress(ctx, player, storyID)
		require.NoError(t, err)
		assert.Equal(t, []domain.HistoryEntry{{NodeID: 10, ChoiceID: 102}, {NodeID: 11, ChoiceID: 101}}, loaded.History.Entries())
	})

	t.Run("Upsert Updates In Place", func(t *testing.T) {
		before, err := store.GetProgress(ctx, player, storyID)
		require.NoError(t, err)

		require.NoError(t, store.UpsertProgress(ctx, player, storyID, 12, true))

		after, err := store.GetProgress(ctx, player, storyID)
		require.NoError(t, err)
		assert.Equal(t, before.ID, after.ID)
		assert.Equal(t, int64(12), after.CurrentNodeID)
		assert.True(t, after.IsCompleted)
		assert.Equal(t, 2, after.History.Len(), "history survives upsert")

		_, err = store.GetActiveProgress(ctx, player, storyID)
		assert.ErrorIs(t, err, domain.ErrNotFound, "completed progress is not active")
	})

	t.Run("Stats", func(t *testing.T) {
		statsPlayer := base + 2
		s, err := store.GetOrCreate(ctx, statsPlayer)
		require.NoError(t, err)
		assert.Equal(t, 0, s.StoriesCompleted)
		assert.Empty(t, s.FavoriteCategory)

		require.NoError(t, store.RecordCompletion(ctx, statsPlayer, "Fantasy"))
		require.NoError(t, store.RecordCompletion(ctx, statsPlayer, "Mystery"))

		s, err = store.GetOrCreate(ctx, statsPlayer)
		require.NoError(t, err)
		assert.Equal(t, 2, s.StoriesCompleted)
		assert.Equal(t, "Mystery", s.FavoriteCategory)
	})

	t.Run("Atomic Commit", func(t *testing.T) {
		txPlayer := base + 3
		err := store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
			if err := tx.Progress().UpsertProgress(ctx, txPlayer, storyID, 20, true); err != nil {
				return err
			}
			return tx.Stats().RecordCompletion(ctx, txPlayer, "Horror")
		})
		require.NoError(t, err)

		p, err := store.GetProgress(ctx, txPlayer, storyID)
		require.NoError(t, err)
		assert.True(t, p.IsCompleted)

		s, err := store.GetOrCreate(ctx, txPlayer)
		require.NoError(t, err)
		assert.Equal(t, 1, s.StoriesCompleted)
	})

	t.Run("Atomic Rollback", func(t *testing.T) {
		txPlayer := base + 4
		require.NoError(t, store.UpsertProgress(ctx, txPlayer, storyID, 30, false))

		boom := errors.New("boom")
		err := store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
			p, err := tx.Progress().GetProgress(ctx, txPlayer, storyID)
			if err != nil {
				return err
			}
			if err := tx.Progress().AppendChoiceHistory(ctx, p, 30, 300); err != nil {
				return err
			}
			if err := tx.Progress().UpsertProgress(ctx, txPlayer, storyID, 31, true); err != nil {
				return err
			}
			if err := tx.Stats().RecordCompletion(ctx, txPlayer, "Horror"); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		p, err := store.GetProgress(ctx, txPlayer, storyID)
		require.NoError(t, err)
		assert.Equal(t, int64(30), p.CurrentNodeID)
		assert.False(t, p.IsCompleted)
		assert.Equal(t, 0, p.History.Len())

		s, err := store.GetOrCreate(ctx, txPlayer)
		require.NoError(t, err)
		assert.Equal(t, 0, s.StoriesCompleted)
	})

	t.Run("Atomic Reads Own Writes", func(t *testing.T) {
		txPlayer := base + 5
		err := store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
			if err := tx.Progress().UpsertProgress(ctx, txPlayer, storyID, 40, false); err != nil {
				return err
			}
			p, err := tx.Progress().GetActiveProgress(ctx, txPlayer, storyID)
			if err != nil {
				return err
			}
			assert.Equal(t, int64(40), p.CurrentNodeID)
			return nil
		})
		require.NoError(t, err)
	})
}

func containsStory(stories []domain.Story, id int64) bool {
	for _, s := range stories {
		if s.ID == id {
			return true
		}
	}
	return false
}
