package ports

import (
	"context"

	"github.com/aretw0/storygraph/pkg/domain"
)

// ProgressStore persists per-(player, story) progress.
type ProgressStore interface {
	// GetActiveProgress returns the player's not-yet-completed progress for the story.
	// Returns an error matching domain.ErrNotFound when there is none.
	GetActiveProgress(ctx context.Context, playerID, storyID int64) (*domain.Progress, error)

	// GetProgress returns the player's progress for the story regardless of completion.
	// Returns an error matching domain.ErrNotFound when there is none.
	GetProgress(ctx context.Context, playerID, storyID int64) (*domain.Progress, error)

	// UpsertProgress creates or updates the record for (player, story), setting its
	// current node and completion flag. History is left untouched.
	UpsertProgress(ctx context.Context, playerID, storyID, nodeID int64, completed bool) error

	// AppendChoiceHistory records choiceID as the choice taken at nodeID and persists
	// the updated history. progress.History is updated in place.
	AppendChoiceHistory(ctx context.Context, progress *domain.Progress, nodeID, choiceID int64) error
}

// StatsStore persists per-player aggregates.
type StatsStore interface {
	// GetOrCreate returns the player's stats, creating an empty record on first use.
	GetOrCreate(ctx context.Context, playerID int64) (*domain.Stats, error)

	// RecordCompletion applies one story completion in category.
	RecordCompletion(ctx context.Context, playerID int64, category string) error
}

// Tx exposes the stores bound to a single unit of work.
type Tx interface {
	Progress() ProgressStore
	Stats() StatsStore
}

// Transactor runs a function as one unit of work.
// If fn returns an error none of the writes made through tx are kept.
type Transactor interface {
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// SessionStore is the full persistence surface the session engine needs.
type SessionStore interface {
	ProgressStore
	StatsStore
	Transactor
}
