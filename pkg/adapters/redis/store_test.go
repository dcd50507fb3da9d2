package redis_test

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/storygraph/pkg/adapters/redis"
	"github.com/aretw0/storygraph/pkg/domain"
	"github.com/aretw0/storygraph/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, opts ...redis.Option) (*redis.Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	return redis.NewFromClient(client, opts...), mr
}

func TestRedisStore_Contract(t *testing.T) {
	store, _ := newStore(t)
	ports.RunProgressStoreContract(t, store)
}

func TestRedisStore_KeyLayout(t *testing.T) {
	store, mr := newStore(t, redis.WithPrefix("test:"))
	ctx := context.Background()

	require.NoError(t, store.UpsertProgress(ctx, 7, 1, 3, false))
	require.NoError(t, store.RecordCompletion(ctx, 7, "Fantasy"))

	assert.True(t, mr.Exists("test:progress:7:1"))
	assert.True(t, mr.Exists("test:stats:7"))
	assert.True(t, mr.Exists("test:progress:seq"))
}

func TestRedisStore_RollbackWritesNothing(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.Atomic(ctx, func(ctx context.Context, tx ports.Tx) error {
		if err := tx.Progress().UpsertProgress(ctx, 9, 1, 3, true); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists(redis.DefaultPrefix+"progress:9:1"))
}

func TestRedisStore_ConflictAbortsCommit(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.UpsertProgress(ctx, 7, 1, 3, false))

	err := store.Atomic(ctx, func(ctx context.Context, tx ports.Tx) error {
		p, err := tx.Progress().GetProgress(ctx, 7, 1)
		if err != nil {
			return err
		}
		// Another replica writes the watched key mid-transaction.
		require.NoError(t, mr.Set(redis.DefaultPrefix+"progress:7:1", `{"progress_id":1,"player_id":7,"story_id":1,"current_node_id":4,"choice_history":[]}`))
		return tx.Progress().AppendChoiceHistory(ctx, p, 3, 30)
	})
	assert.ErrorIs(t, err, backend.TxFailedErr)

	p, err := store.GetProgress(ctx, 7, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(4), p.CurrentNodeID)
	assert.Equal(t, 0, p.History.Len())
}

func TestRedisStore_HistoryRoundTrip(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.UpsertProgress(ctx, 7, 1, 3, false))

	p, err := store.GetProgress(ctx, 7, 1)
	require.NoError(t, err)
	require.NoError(t, store.AppendChoiceHistory(ctx, p, 3, 30))
	require.NoError(t, store.AppendChoiceHistory(ctx, p, 1, 10))

	loaded, err := store.GetProgress(ctx, 7, 1)
	require.NoError(t, err)
	assert.Equal(t, []domain.HistoryEntry{{NodeID: 3, ChoiceID: 30}, {NodeID: 1, ChoiceID: 10}}, loaded.History.Entries())
}
