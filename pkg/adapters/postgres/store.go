package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/storygraph/pkg/domain"
	"github.com/aretw0/storygraph/pkg/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Compile-time check to ensure implementation satisfies the interface.
var _ ports.SessionStore = (*Store)(nil)

// Store implements ports.SessionStore on PostgreSQL.
// Inside Atomic, reads lock the rows they return (SELECT ... FOR UPDATE).
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a progress and stats store over pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Atomic runs fn inside one database transaction.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	return withTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &queries{db: tx, forUpdate: true})
	})
}

func (s *Store) direct() *queries {
	return &queries{db: s.pool}
}

// GetActiveProgress returns the player's incomplete progress for the story.
func (s *Store) GetActiveProgress(ctx context.Context, playerID, storyID int64) (*domain.Progress, error) {
	return s.direct().GetActiveProgress(ctx, playerID, storyID)
}

// GetProgress returns the player's progress for the story.
func (s *Store) GetProgress(ctx context.Context, playerID, storyID int64) (*domain.Progress, error) {
	return s.direct().GetProgress(ctx, playerID, storyID)
}

// UpsertProgress creates or moves the player's progress.
func (s *Store) UpsertProgress(ctx context.Context, playerID, storyID, nodeID int64, completed bool) error {
	return s.direct().UpsertProgress(ctx, playerID, storyID, nodeID, completed)
}

// AppendChoiceHistory records a choice in the player's history.
func (s *Store) AppendChoiceHistory(ctx context.Context, progress *domain.Progress, nodeID, choiceID int64) error {
	return s.Atomic(ctx, func(ctx context.Context, tx ports.Tx) error {
		return tx.Progress().AppendChoiceHistory(ctx, progress, nodeID, choiceID)
	})
}

// GetOrCreate returns the player's stats, creating them on first use.
func (s *Store) GetOrCreate(ctx context.Context, playerID int64) (*domain.Stats, error) {
	return s.direct().GetOrCreate(ctx, playerID)
}

// RecordCompletion applies one completion to the player's stats.
func (s *Store) RecordCompletion(ctx context.Context, playerID int64, category string) error {
	return s.Atomic(ctx, func(ctx context.Context, tx ports.Tx) error {
		return tx.Stats().RecordCompletion(ctx, playerID, category)
	})
}

// queries runs the progress and stats statements against a pool or a transaction.
type queries struct {
	db        dbtx
	forUpdate bool
}

func (q *queries) Progress() ports.ProgressStore { return q }
func (q *queries) Stats() ports.StatsStore       { return q }

func (q *queries) lockClause() string {
	if q.forUpdate {
		return " FOR UPDATE"
	}
	return ""
}

const progressColumns = `progress_id, user_id, story_id, current_node_id, choice_history, is_completed, start_time, last_updated`

func (q *queries) getProgress(ctx context.Context, op string, playerID, storyID int64, activeOnly bool) (*domain.Progress, error) {
	sql := `SELECT ` + progressColumns + ` FROM user_progress WHERE user_id = $1 AND story_id = $2`
	if activeOnly {
		sql += ` AND NOT is_completed`
	}
	sql += q.lockClause()

	var p domain.Progress
	var history []byte
	err := q.db.QueryRow(ctx, sql, playerID, storyID).Scan(
		&p.ID, &p.PlayerID, &p.StoryID, &p.CurrentNodeID, &history, &p.IsCompleted, &p.StartedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound(op, domain.EntityProgress, storyID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	if err := json.Unmarshal(history, &p.History); err != nil {
		return nil, fmt.Errorf("failed to unmarshal choice history: %w", err)
	}
	return &p, nil
}

func (q *queries) GetActiveProgress(ctx context.Context, playerID, storyID int64) (*domain.Progress, error) {
	return q.getProgress(ctx, "get_active_progress", playerID, storyID, true)
}

func (q *queries) GetProgress(ctx context.Context, playerID, storyID int64) (*domain.Progress, error) {
	return q.getProgress(ctx, "get_progress", playerID, storyID, false)
}

const upsertProgressQuery = `
INSERT INTO user_progress (user_id, story_id, current_node_id, is_completed)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id, story_id) DO UPDATE SET
    current_node_id = EXCLUDED.current_node_id,
    is_completed = EXCLUDED.is_completed,
    last_updated = now()`

func (q *queries) UpsertProgress(ctx context.Context, playerID, storyID, nodeID int64, completed bool) error {
	if _, err := q.db.Exec(ctx, upsertProgressQuery, playerID, storyID, nodeID, completed); err != nil {
		return fmt.Errorf("failed to upsert progress: %w", err)
	}
	return nil
}

func (q *queries) AppendChoiceHistory(ctx context.Context, progress *domain.Progress, nodeID, choiceID int64) error {
	current, err := q.getProgress(ctx, "append_choice_history", progress.PlayerID, progress.StoryID, false)
	if err != nil {
		return err
	}
	current.History.Record(nodeID, choiceID)

	data, err := json.Marshal(current.History)
	if err != nil {
		return fmt.Errorf("failed to marshal choice history: %w", err)
	}
	_, err = q.db.Exec(ctx,
		`UPDATE user_progress SET choice_history = $3, last_updated = now() WHERE user_id = $1 AND story_id = $2`,
		progress.PlayerID, progress.StoryID, data,
	)
	if err != nil {
		return fmt.Errorf("failed to update choice history: %w", err)
	}

	progress.History.Record(nodeID, choiceID)
	return nil
}

func (q *queries) GetOrCreate(ctx context.Context, playerID int64) (*domain.Stats, error) {
	if _, err := q.db.Exec(ctx, `INSERT INTO user_stats (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, playerID); err != nil {
		return nil, fmt.Errorf("failed to create stats: %w", err)
	}

	var st domain.Stats
	err := q.db.QueryRow(ctx,
		`SELECT user_id, stories_completed, favorite_category, updated_at FROM user_stats WHERE user_id = $1`+q.lockClause(),
		playerID,
	).Scan(&st.PlayerID, &st.StoriesCompleted, &st.FavoriteCategory, &st.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return &st, nil
}

func (q *queries) RecordCompletion(ctx context.Context, playerID int64, category string) error {
	st, err := q.GetOrCreate(ctx, playerID)
	if err != nil {
		return err
	}
	st.RecordCompletion(category, st.UpdatedAt)

	_, err = q.db.Exec(ctx,
		`UPDATE user_stats SET stories_completed = $2, favorite_category = $3, updated_at = now() WHERE user_id = $1`,
		playerID, st.StoriesCompleted, st.FavoriteCategory,
	)
	if err != nil {
		return fmt.Errorf("failed to update stats: %w", err)
	}
	return nil
}
