package storygraph_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/storygraph"
	"github.com/aretw0/storygraph/pkg/adapters/memory"
	"github.com/aretw0/storygraph/pkg/domain"
	"github.com/aretw0/storygraph/pkg/dsl"
	"github.com/aretw0/storygraph/pkg/ports"
	"github.com/aretw0/storygraph/pkg/storyfile"
)

func caveBuilder() *dsl.Builder {
	b := dsl.NewStory("The Cave").Category("Adventure").Published()
	b.Node("entrance").Title("Entrance").Start().
		ChoiceWith("A", "Step inside", "hall", "It is cold.").
		Choice("B", "Walk away", "home")
	b.Node("hall").Title("Hall").Choice("A", "Swim", "lake")
	b.Node("lake").Title("Lake").Ending()
	b.Node("home").Title("Home").Ending()
	b.Node("attic").Title("Attic").Ending()
	return b
}

func seedCave(t *testing.T, sg *storygraph.Storygraph) int64 {
	t.Helper()
	id, err := caveBuilder().Seed(context.Background(), sg.Graph())
	require.NoError(t, err)
	return id
}

func TestStorygraph_Defaults(t *testing.T) {
	sg := storygraph.New()
	require.NotNil(t, sg.Graph())

	ctx := context.Background()
	storyID := seedCave(t, sg)

	view, err := sg.StartStory(ctx, storyID, 3)
	require.NoError(t, err)
	assert.Equal(t, "Entrance", view.Title)

	progress, err := sg.Progress(ctx, storyID, 3)
	require.NoError(t, err)
	assert.Equal(t, view.ID, progress.CurrentNodeID)
}

func TestStorygraph_Playthrough(t *testing.T) {
	ctx := context.Background()
	sg := storygraph.New()
	storyID := seedCave(t, sg)

	view, err := sg.StartStory(ctx, storyID, 7)
	require.NoError(t, err)

	res, err := sg.MakeChoice(ctx, domain.ChoiceRequest{CurrentNodeID: view.ID, ChoiceID: view.Choices[0].ID, PlayerID: 7})
	require.NoError(t, err)
	assert.Equal(t, "It is cold.", res.Consequences)
	assert.True(t, res.ProgressSaved)

	current, err := sg.CurrentNode(ctx, storyID, 7)
	require.NoError(t, err)
	assert.Equal(t, "Hall", current.Title)

	res, err = sg.MakeChoice(ctx, domain.ChoiceRequest{CurrentNodeID: current.ID, ChoiceID: current.Choices[0].ID, PlayerID: 7})
	require.NoError(t, err)
	assert.True(t, res.IsEnding)

	stats, err := sg.PlayerStats(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.StoriesCompleted)
	assert.Equal(t, "Adventure", stats.FavoriteCategory)
}

func TestStorygraph_Mermaid(t *testing.T) {
	ctx := context.Background()
	sg := storygraph.New()
	storyID := seedCave(t, sg)

	out, err := sg.Mermaid(ctx, storyID, 0)
	require.NoError(t, err)
	assert.Contains(t, out, `n1 -- "A" --> n2`)
	assert.Contains(t, out, "class n5 unreachable;")
	assert.NotContains(t, out, "visited;")

	view, err := sg.StartStory(ctx, storyID, 7)
	require.NoError(t, err)
	_, err = sg.MakeChoice(ctx, domain.ChoiceRequest{CurrentNodeID: view.ID, ChoiceID: view.Choices[0].ID, PlayerID: 7})
	require.NoError(t, err)

	out, err = sg.Mermaid(ctx, storyID, 7)
	require.NoError(t, err)
	assert.Contains(t, out, "class n1 visited;")
	assert.Contains(t, out, "class n2 current;")

	out, err = sg.Mermaid(ctx, storyID, 99)
	require.NoError(t, err, "a player without progress gets no overlay")
	assert.NotContains(t, out, "current;")

	_, err = sg.Mermaid(ctx, 404, 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStorygraph_ValidateDocument(t *testing.T) {
	doc, err := caveBuilder().Build()
	require.NoError(t, err)

	result := storygraph.New().ValidateDocument(doc)
	assert.False(t, result.IsValid)
	assert.Equal(t, []int64{5}, result.UnreachableNodes)
}

func TestStorygraph_SeedDirAndCatalog(t *testing.T) {
	ctx := context.Background()
	sg := storygraph.New()

	ids, err := sg.SeedDir(ctx, "pkg/storyfile/testdata")
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	stories, err := sg.ListStories(ctx, ports.StoryFilter{PublishedOnly: true})
	require.NoError(t, err)
	assert.NotEmpty(t, stories)

	categories, err := sg.Categories(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Adventure", "Mystery"}, categories)
}

func TestStorygraph_SeedRejectsBrokenDocument(t *testing.T) {
	doc := &storyfile.Document{
		Story:   domain.Story{Title: "Broken", IsPublished: true},
		Nodes:   []domain.Node{{ID: 1, IsStartingNode: true}},
		Choices: []domain.Choice{{ID: 1, FromNodeID: 1, ToNodeID: 9, Letter: "A"}},
	}
	_, err := storygraph.New().Seed(context.Background(), doc)
	assert.ErrorContains(t, err, "unknown target node 9")
}

func TestStorygraph_HooksAccumulate(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	record := func(name string) domain.LifecycleHooks {
		return domain.LifecycleHooks{
			OnStoryStart: func(context.Context, *domain.SessionEvent) {
				mu.Lock()
				defer mu.Unlock()
				seen = append(seen, name)
			},
		}
	}

	sg := storygraph.New(
		storygraph.WithLifecycleHooks(record("first")),
		storygraph.WithLifecycleHooks(record("second")),
	)
	storyID := seedCave(t, sg)

	_, err := sg.StartStory(context.Background(), storyID, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, seen)
}

type countingLocker struct {
	mu    sync.Mutex
	keys  []string
	ttl   time.Duration
	freed int
}

func (l *countingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, key)
	l.ttl = ttl
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.freed++
		return nil
	}, nil
}

func TestStorygraph_WithLocker(t *testing.T) {
	locker := &countingLocker{}
	sg := storygraph.New(
		storygraph.WithGraph(memory.NewGraph()),
		storygraph.WithStore(memory.NewStore()),
		storygraph.WithLocker(locker),
		storygraph.WithLockTTL(5*time.Second),
	)
	storyID := seedCave(t, sg)

	_, err := sg.StartStory(context.Background(), storyID, 7)
	require.NoError(t, err)

	assert.Equal(t, []string{"progress:7:1"}, locker.keys)
	assert.Equal(t, 5*time.Second, locker.ttl)
	assert.Equal(t, 1, locker.freed)
}

func TestVersion(t *testing.T) {
	assert.NotEmpty(t, storygraph.Version)
	assert.NotContains(t, storygraph.Version, "\n")
}
