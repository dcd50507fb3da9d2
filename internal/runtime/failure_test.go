package runtime_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/storygraph/internal/runtime"
	"github.com/aretw0/storygraph/pkg/adapters/memory"
	"github.com/aretw0/storygraph/pkg/domain"
	"github.com/aretw0/storygraph/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// vanishingGraph hides one node, as if it had been deleted after a choice pointing
// to it was read.
type vanishingGraph struct {
	*memory.Graph
	missing int64
}

func (g vanishingGraph) GetNode(ctx context.Context, nodeID int64) (*domain.Node, error) {
	if nodeID == g.missing {
		return nil, domain.NotFound("get_node", domain.EntityNode, nodeID)
	}
	return g.Graph.GetNode(ctx, nodeID)
}

var errDiskFull = errors.New("disk full")

// flakyStore fails stats writes made inside a unit of work.
type flakyStore struct {
	*memory.Store
	failStats    bool
	failProgress bool
}

func (s *flakyStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	return s.Store.Atomic(ctx, func(ctx context.Context, tx ports.Tx) error {
		return fn(ctx, flakyTx{Tx: tx, store: s})
	})
}

func (s *flakyStore) UpsertProgress(ctx context.Context, playerID, storyID, nodeID int64, completed bool) error {
	if s.failProgress {
		return errDiskFull
	}
	return s.Store.UpsertProgress(ctx, playerID, storyID, nodeID, completed)
}

type flakyTx struct {
	ports.Tx
	store *flakyStore
}

func (tx flakyTx) Stats() ports.StatsStore {
	return flakyStats{StatsStore: tx.Tx.Stats(), fail: tx.store.failStats}
}

type flakyStats struct {
	ports.StatsStore
	fail bool
}

func (s flakyStats) RecordCompletion(ctx context.Context, playerID int64, category string) error {
	if s.fail {
		return errDiskFull
	}
	return s.StatsStore.RecordCompletion(ctx, playerID, category)
}

func TestEngine_StatsFailureRollsBackProgress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	store := &flakyStore{Store: f.store}

	var failures []*domain.SessionEvent
	engine := runtime.NewEngine(f.graph, store, runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnPersistenceFailure: func(ctx context.Context, e *domain.SessionEvent) {
			failures = append(failures, e)
		},
	}))

	_, err := engine.StartStory(ctx, f.story.ID, player)
	require.NoError(t, err)

	store.failStats = true
	res, err := engine.MakeChoice(ctx, domain.ChoiceRequest{CurrentNodeID: f.s.ID, ChoiceID: f.se.ID, PlayerID: player})
	require.NoError(t, err, "persistence failures do not fail the choice")
	assert.True(t, res.Success)
	assert.True(t, res.IsEnding)
	assert.False(t, res.ProgressSaved)

	p, err := f.store.GetProgress(ctx, player, f.story.ID)
	require.NoError(t, err)
	assert.Equal(t, f.s.ID, p.CurrentNodeID, "progress write rolled back")
	assert.False(t, p.IsCompleted)
	assert.Equal(t, 0, p.History.Len())

	stats, err := f.store.GetOrCreate(ctx, player)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.StoriesCompleted)

	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0].Err, errDiskFull)
	assert.Equal(t, domain.EventPersistenceFailure, failures[0].Type)
}

func TestEngine_StartStoryPersistenceFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	store := &flakyStore{Store: f.store, failProgress: true}

	_, err := runtime.NewEngine(f.graph, store).StartStory(ctx, f.story.ID, player)
	assert.ErrorIs(t, err, domain.ErrPersistenceFailed)
	assert.ErrorIs(t, err, errDiskFull)
}

func TestEngine_LifecycleHooks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var events []domain.EventType
	record := func(ctx context.Context, e *domain.SessionEvent) {
		events = append(events, e.Type)
	}
	var completion *domain.SessionEvent
	engine := f.engine(runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnStoryStart: record,
		OnChoice:     record,
		OnCompletion: func(ctx context.Context, e *domain.SessionEvent) {
			record(ctx, e)
			completion = e
		},
	}))

	_, err := engine.StartStory(ctx, f.story.ID, player)
	require.NoError(t, err)
	_, err = engine.MakeChoice(ctx, domain.ChoiceRequest{CurrentNodeID: f.s.ID, ChoiceID: f.sm.ID, PlayerID: player})
	require.NoError(t, err)
	_, err = engine.MakeChoice(ctx, domain.ChoiceRequest{CurrentNodeID: f.m.ID, ChoiceID: f.me.ID, PlayerID: player})
	require.NoError(t, err)

	assert.Equal(t, []domain.EventType{
		domain.EventStoryStart,
		domain.EventChoice,
		domain.EventChoice,
		domain.EventCompletion,
	}, events)
	require.NotNil(t, completion)
	assert.Equal(t, "Adventure", completion.Category)
	assert.Equal(t, player, completion.PlayerID)
	assert.False(t, completion.Timestamp.IsZero())
}
