package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aretw0/storygraph/pkg/domain"
	"github.com/aretw0/storygraph/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by this package.
const DefaultPrefix = "storygraph:"

// Store implements ports.SessionStore using Redis.
// Units of work use WATCH/MULTI: a concurrent write to any key read inside
// Atomic aborts the commit with backend.TxFailedErr.
type Store struct {
	client *backend.Client
	prefix string
	now    func() time.Time
}

type Option func(*Store)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
		now:    func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

var _ ports.SessionStore = (*Store)(nil)

// Client exposes the underlying client, e.g. to share it with a Locker.
func (s *Store) Client() *backend.Client {
	return s.client
}

func (s *Store) progressKey(playerID, storyID int64) string {
	return s.prefix + "progress:" + strconv.FormatInt(playerID, 10) + ":" + strconv.FormatInt(storyID, 10)
}

func (s *Store) seqKey() string {
	return s.prefix + "progress:seq"
}

func (s *Store) statsKey(playerID int64) string {
	return s.prefix + "stats:" + strconv.FormatInt(playerID, 10)
}

// Atomic runs fn inside a WATCH/MULTI transaction. Writes are buffered and
// sent in one MULTI/EXEC only if fn succeeds.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	err := s.client.Watch(ctx, func(rtx *backend.Tx) error {
		u := &unit{
			store:  s,
			rtx:    rtx,
			writes: make(map[string][]byte),
			cache:  make(map[string][]byte),
		}
		if err := fn(ctx, u); err != nil {
			return err
		}
		if len(u.writes) == 0 {
			return nil
		}
		_, err := rtx.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
			for key, data := range u.writes {
				pipe.Set(ctx, key, data, 0)
			}
			return nil
		})
		return err
	})
	if errors.Is(err, backend.TxFailedErr) {
		return fmt.Errorf("concurrent modification: %w", err)
	}
	return err
}

func (s *Store) run(ctx context.Context, fn func(u *unit) error) error {
	return s.Atomic(ctx, func(_ context.Context, tx ports.Tx) error {
		return fn(tx.(*unit))
	})
}

// GetActiveProgress returns the player's incomplete progress for the story.
func (s *Store) GetActiveProgress(ctx context.Context, playerID, storyID int64) (p *domain.Progress, err error) {
	err = s.run(ctx, func(u *unit) error {
		p, err = u.GetActiveProgress(ctx, playerID, storyID)
		return err
	})
	return p, err
}

// GetProgress returns the player's progress for the story.
func (s *Store) GetProgress(ctx context.Context, playerID, storyID int64) (p *domain.Progress, err error) {
	err = s.run(ctx, func(u *unit) error {
		p, err = u.GetProgress(ctx, playerID, storyID)
		return err
	})
	return p, err
}

// UpsertProgress creates or moves the player's progress.
func (s *Store) UpsertProgress(ctx context.Context, playerID, storyID, nodeID int64, completed bool) error {
	return s.run(ctx, func(u *unit) error {
		return u.UpsertProgress(ctx, playerID, storyID, nodeID, completed)
	})
}

// AppendChoiceHistory records a choice in the player's history.
func (s *Store) AppendChoiceHistory(ctx context.Context, progress *domain.Progress, nodeID, choiceID int64) error {
	return s.run(ctx, func(u *unit) error {
		return u.AppendChoiceHistory(ctx, progress, nodeID, choiceID)
	})
}

// GetOrCreate returns the player's stats, creating them on first use.
func (s *Store) GetOrCreate(ctx context.Context, playerID int64) (st *domain.Stats, err error) {
	err = s.run(ctx, func(u *unit) error {
		st, err = u.GetOrCreate(ctx, playerID)
		return err
	})
	return st, err
}

// RecordCompletion applies one completion to the player's stats.
func (s *Store) RecordCompletion(ctx context.Context, playerID int64, category string) error {
	return s.run(ctx, func(u *unit) error {
		return u.RecordCompletion(ctx, playerID, category)
	})
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

// unit reads through a watched transaction and buffers writes until EXEC.
type unit struct {
	store  *Store
	rtx    *backend.Tx
	writes map[string][]byte
	cache  map[string][]byte
}

func (u *unit) Progress() ports.ProgressStore { return u }
func (u *unit) Stats() ports.StatsStore       { return u }

// get returns the staged value of key, or watches and reads it.
// A missing key yields nil data and no error.
func (u *unit) get(ctx context.Context, key string) ([]byte, error) {
	if data, ok := u.writes[key]; ok {
		return data, nil
	}
	if data, ok := u.cache[key]; ok {
		return data, nil
	}
	if err := u.rtx.Watch(ctx, key).Err(); err != nil {
		return nil, fmt.Errorf("failed to watch %s: %w", key, err)
	}
	data, err := u.rtx.Get(ctx, key).Bytes()
	if errors.Is(err, backend.Nil) {
		u.cache[key] = nil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}
	u.cache[key] = data
	return data, nil
}

func (u *unit) put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	u.writes[key] = data
	return nil
}

func (u *unit) loadProgress(ctx context.Context, playerID, storyID int64) (*domain.Progress, error) {
	data, err := u.get(ctx, u.store.progressKey(playerID, storyID))
	if err != nil || data == nil {
		return nil, err
	}
	var p domain.Progress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal progress: %w", err)
	}
	return &p, nil
}

func (u *unit) GetActiveProgress(ctx context.Context, playerID, storyID int64) (*domain.Progress, error) {
	p, err := u.loadProgress(ctx, playerID, storyID)
	if err != nil {
		return nil, err
	}
	if p == nil || p.IsCompleted {
		return nil, domain.NotFound("get_active_progress", domain.EntityProgress, storyID)
	}
	return p, nil
}

func (u *unit) GetProgress(ctx context.Context, playerID, storyID int64) (*domain.Progress, error) {
	p, err := u.loadProgress(ctx, playerID, storyID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.NotFound("get_progress", domain.EntityProgress, storyID)
	}
	return p, nil
}

func (u *unit) UpsertProgress(ctx context.Context, playerID, storyID, nodeID int64, completed bool) error {
	p, err := u.loadProgress(ctx, playerID, storyID)
	if err != nil {
		return err
	}
	now := u.store.now()
	if p == nil {
		// IDs come from a counter outside the transaction; a rollback leaves a gap.
		id, err := u.store.client.Incr(ctx, u.store.seqKey()).Result()
		if err != nil {
			return fmt.Errorf("failed to allocate progress id: %w", err)
		}
		p = &domain.Progress{ID: id, PlayerID: playerID, StoryID: storyID, StartedAt: now}
	}
	p.CurrentNodeID = nodeID
	p.IsCompleted = completed
	p.UpdatedAt = now
	return u.put(u.store.progressKey(playerID, storyID), p)
}

func (u *unit) AppendChoiceHistory(ctx context.Context, progress *domain.Progress, nodeID, choiceID int64) error {
	p, err := u.loadProgress(ctx, progress.PlayerID, progress.StoryID)
	if err != nil {
		return err
	}
	if p == nil {
		return domain.NotFound("append_choice_history", domain.EntityProgress, progress.StoryID)
	}
	p.History.Record(nodeID, choiceID)
	p.UpdatedAt = u.store.now()
	if err := u.put(u.store.progressKey(p.PlayerID, p.StoryID), p); err != nil {
		return err
	}
	progress.History.Record(nodeID, choiceID)
	return nil
}

func (u *unit) GetOrCreate(ctx context.Context, playerID int64) (*domain.Stats, error) {
	key := u.store.statsKey(playerID)
	data, err := u.get(ctx, key)
	if err != nil {
		return nil, err
	}
	if data == nil {
		st := &domain.Stats{PlayerID: playerID, UpdatedAt: u.store.now()}
		if err := u.put(key, st); err != nil {
			return nil, err
		}
		return st, nil
	}
	var st domain.Stats
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stats: %w", err)
	}
	return &st, nil
}

func (u *unit) RecordCompletion(ctx context.Context, playerID int64, category string) error {
	st, err := u.GetOrCreate(ctx, playerID)
	if err != nil {
		return err
	}
	st.RecordCompletion(category, u.store.now())
	return u.put(u.store.statsKey(playerID), st)
}
