package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/storygraph/pkg/domain"
	"github.com/aretw0/storygraph/pkg/ports"
)

type progressKey struct {
	player, story int64
}

// Store implements ports.SessionStore in memory.
// Each operation, and each Atomic block, runs against a staged copy that is
// applied only on success. Safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	progress map[progressKey]*domain.Progress
	stats    map[int64]*domain.Stats
	seq      int64
	now      func() time.Time
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		progress: make(map[progressKey]*domain.Progress),
		stats:    make(map[int64]*domain.Stats),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

var _ ports.SessionStore = (*Store)(nil)

// Atomic runs fn against a staged copy and applies it only if fn succeeds.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.begin()
	if err := fn(ctx, u); err != nil {
		return err
	}
	return s.commit(ctx, u)
}

func (s *Store) run(ctx context.Context, fn func(u *unit) error) error {
	return s.Atomic(ctx, func(_ context.Context, tx ports.Tx) error {
		return fn(tx.(*unit))
	})
}

func (s *Store) begin() *unit {
	return &unit{
		store:    s,
		progress: make(map[progressKey]*domain.Progress),
		stats:    make(map[int64]*domain.Stats),
		seq:      s.seq,
	}
}

func (s *Store) commit(ctx context.Context, u *unit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for k, p := range u.progress {
		s.progress[k] = p
	}
	for k, st := range u.stats {
		s.stats[k] = st
	}
	s.seq = u.seq
	return nil
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

// unit is a staged view over a Store. Reads fall through to the store;
// writes stay in the unit until commit. Callers hold Store.mu.
type unit struct {
	store    *Store
	progress map[progressKey]*domain.Progress
	stats    map[int64]*domain.Stats
	seq      int64
}

func (u *unit) Progress() ports.ProgressStore { return u }
func (u *unit) Stats() ports.StatsStore       { return u }

func (u *unit) lookupProgress(k progressKey) (*domain.Progress, bool) {
	if p, ok := u.progress[k]; ok {
		return p, true
	}
	p, ok := u.store.progress[k]
	return p, ok
}

func (u *unit) lookupStats(playerID int64) (*domain.Stats, bool) {
	if st, ok := u.stats[playerID]; ok {
		return st, true
	}
	st, ok := u.store.stats[playerID]
	return st, ok
}

func (u *unit) GetActiveProgress(ctx context.Context, playerID, storyID int64) (*domain.Progress, error) {
	p, ok := u.lookupProgress(progressKey{playerID, storyID})
	if !ok || p.IsCompleted {
		return nil, domain.NotFound("get_active_progress", domain.EntityProgress, storyID)
	}
	return p.Clone(), nil
}

func (u *unit) GetProgress(ctx context.Context, playerID, storyID int64) (*domain.Progress, error) {
	p, ok := u.lookupProgress(progressKey{playerID, storyID})
	if !ok {
		return nil, domain.NotFound("get_progress", domain.EntityProgress, storyID)
	}
	return p.Clone(), nil
}

func (u *unit) UpsertProgress(ctx context.Context, playerID, storyID, nodeID int64, completed bool) error {
	k := progressKey{playerID, storyID}
	now := u.store.now()

	var next *domain.Progress
	if p, ok := u.lookupProgress(k); ok {
		next = p.Clone()
	} else {
		u.seq++
		next = &domain.Progress{
			ID:        u.seq,
			PlayerID:  playerID,
			StoryID:   storyID,
			StartedAt: now,
		}
	}
	next.CurrentNodeID = nodeID
	next.IsCompleted = completed
	next.UpdatedAt = now
	u.progress[k] = next
	return nil
}

func (u *unit) AppendChoiceHistory(ctx context.Context, progress *domain.Progress, nodeID, choiceID int64) error {
	k := progressKey{progress.PlayerID, progress.StoryID}
	p, ok := u.lookupProgress(k)
	if !ok {
		return domain.NotFound("append_choice_history", domain.EntityProgress, progress.StoryID)
	}

	next := p.Clone()
	next.History.Record(nodeID, choiceID)
	next.UpdatedAt = u.store.now()
	u.progress[k] = next

	progress.History.Record(nodeID, choiceID)
	return nil
}

func (u *unit) GetOrCreate(ctx context.Context, playerID int64) (*domain.Stats, error) {
	if st, ok := u.lookupStats(playerID); ok {
		ret := *st
		return &ret, nil
	}
	st := &domain.Stats{PlayerID: playerID, UpdatedAt: u.store.now()}
	u.stats[playerID] = st
	ret := *st
	return &ret, nil
}

func (u *unit) RecordCompletion(ctx context.Context, playerID int64, category string) error {
	st, err := u.GetOrCreate(ctx, playerID)
	if err != nil {
		return err
	}
	st.RecordCompletion(category, u.store.now())
	u.stats[playerID] = st
	return nil
}
