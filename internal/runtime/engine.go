// Package runtime drives players through story graphs.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/storygraph/internal/logging"
	"github.com/aretw0/storygraph/internal/reach"
	"github.com/aretw0/storygraph/pkg/domain"
	"github.com/aretw0/storygraph/pkg/ports"
	"github.com/aretw0/storygraph/pkg/session"
)

// Engine is the session state machine. Per (player, story) pair a session is
// NOT_STARTED, IN_PROGRESS or COMPLETED; anonymous players (ID 0) never touch
// the store.
type Engine struct {
	graph    ports.GraphAccessor
	store    ports.SessionStore
	sessions *session.Manager
	stats    statsUpdater
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	now      func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithSessionManager shares a session manager (and its distributed locker).
func WithSessionManager(m *session.Manager) EngineOption {
	return func(e *Engine) {
		e.sessions = m
	}
}

// WithClock overrides the time source used for event timestamps.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine reading graph and persisting to store.
// A nil store makes every player anonymous.
func NewEngine(graph ports.GraphAccessor, store ports.SessionStore, opts ...EngineOption) *Engine {
	e := &Engine{
		graph:  graph,
		store:  store,
		stats:  statsUpdater{graph: graph},
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.sessions == nil {
		e.sessions = session.NewManager(session.WithLogger(e.logger))
	}
	return e
}

func (e *Engine) tracks(playerID int64) bool {
	return playerID != 0 && e.store != nil
}

// StartStory positions the player at the story's starting node.
// With a player, progress is created or reset to the start (not completed).
func (e *Engine) StartStory(ctx context.Context, storyID, playerID int64) (domain.NodeView, error) {
	const op = "start_story"

	story, err := e.graph.GetStory(ctx, storyID)
	if err != nil {
		return domain.NodeView{}, lookupError(op, domain.EntityStory, storyID, err)
	}
	if !story.IsPublished {
		return domain.NodeView{}, domain.PreconditionFailed(op, domain.EntityStory, storyID, "story is not published")
	}

	nodes, err := e.graph.GetNodes(ctx, storyID)
	if err != nil {
		return domain.NodeView{}, lookupError(op, domain.EntityStory, storyID, err)
	}
	start, ok := reach.Start(nodes)
	if !ok {
		return domain.NodeView{}, domain.PreconditionFailed(op, domain.EntityStory, storyID, "story has no starting node")
	}
	if countStarts(nodes) > 1 {
		e.logger.Warn("Story has multiple starting nodes, using the first",
			"story_id", storyID,
			"node_id", start.ID,
		)
	}

	view, err := e.render(ctx, op, start)
	if err != nil {
		return domain.NodeView{}, err
	}

	if e.tracks(playerID) {
		err := e.sessions.WithLock(ctx, playerID, storyID, func(ctx context.Context) error {
			return e.store.UpsertProgress(ctx, playerID, storyID, start.ID, false)
		})
		if err != nil {
			e.emit(ctx, e.hooks.OnPersistenceFailure, domain.EventPersistenceFailure, &domain.SessionEvent{
				StoryID: storyID, PlayerID: playerID, NodeID: start.ID, Err: err,
			})
			return domain.NodeView{}, domain.PersistenceFailed(op, domain.EntityProgress, storyID, err)
		}
	}

	e.logger.Debug("story started", "story_id", storyID, "player_id", playerID, "node_id", start.ID)
	e.emit(ctx, e.hooks.OnStoryStart, domain.EventStoryStart, &domain.SessionEvent{
		StoryID: storyID, PlayerID: playerID, NodeID: start.ID, Category: story.Category,
	})
	return view, nil
}

// MakeChoice follows a choice out of the caller's current node.
// Progress persistence is best effort: a failed write yields
// ProgressSaved=false instead of an error.
func (e *Engine) MakeChoice(ctx context.Context, req domain.ChoiceRequest) (domain.ChoiceResult, error) {
	const op = "make_choice"

	choice, err := e.graph.GetChoice(ctx, req.ChoiceID)
	if err != nil {
		return domain.ChoiceResult{}, lookupError(op, domain.EntityChoice, req.ChoiceID, err)
	}
	if choice.FromNodeID != req.CurrentNodeID {
		return domain.ChoiceResult{}, domain.InvalidTransition(op, choice.ID, choice.FromNodeID, req.CurrentNodeID)
	}

	next, err := e.graph.GetNode(ctx, choice.ToNodeID)
	if err != nil {
		return domain.ChoiceResult{}, lookupError(op, domain.EntityNode, choice.ToNodeID, err)
	}

	view, err := e.render(ctx, op, *next)
	if err != nil {
		return domain.ChoiceResult{}, err
	}

	result := domain.ChoiceResult{
		Success:      true,
		NextNode:     view,
		Consequences: choice.Consequences,
		IsEnding:     next.IsEndingNode,
	}

	e.emit(ctx, e.hooks.OnChoice, domain.EventChoice, &domain.SessionEvent{
		StoryID: next.StoryID, PlayerID: req.PlayerID, NodeID: next.ID, ChoiceID: choice.ID,
	})

	if e.tracks(req.PlayerID) {
		result.ProgressSaved = e.advance(ctx, req.PlayerID, choice, next)
	}
	return result, nil
}

var errNoProgress = errors.New("no progress to advance")

// advance moves existing progress to next in one unit of work and reports
// whether it was saved.
func (e *Engine) advance(ctx context.Context, playerID int64, choice *domain.Choice, next *domain.Node) bool {
	storyID := next.StoryID
	var completedNow bool
	var category string

	err := e.sessions.WithLock(ctx, playerID, storyID, func(ctx context.Context) error {
		return e.store.Atomic(ctx, func(ctx context.Context, tx ports.Tx) error {
			progress, err := tx.Progress().GetProgress(ctx, playerID, storyID)
			if errors.Is(err, domain.ErrNotFound) {
				return errNoProgress
			}
			if err != nil {
				return err
			}

			wasCompleted := progress.IsCompleted
			if err := tx.Progress().AppendChoiceHistory(ctx, progress, choice.FromNodeID, choice.ID); err != nil {
				return err
			}
			if err := tx.Progress().UpsertProgress(ctx, playerID, storyID, next.ID, next.IsEndingNode); err != nil {
				return err
			}

			if !wasCompleted && next.IsEndingNode {
				category, err = e.stats.apply(ctx, tx.Stats(), playerID, storyID)
				if err != nil {
					return err
				}
				completedNow = true
			}
			return nil
		})
	})

	switch {
	case errors.Is(err, errNoProgress):
		e.logger.Debug("choice not saved, story was never started",
			"player_id", playerID,
			"story_id", storyID,
		)
		return false
	case err != nil:
		e.logger.Warn("Failed to save progress",
			"player_id", playerID,
			"story_id", storyID,
			"err", err,
		)
		e.emit(ctx, e.hooks.OnPersistenceFailure, domain.EventPersistenceFailure, &domain.SessionEvent{
			StoryID: storyID, PlayerID: playerID, NodeID: next.ID, ChoiceID: choice.ID, Err: err,
		})
		return false
	}

	if completedNow {
		e.emit(ctx, e.hooks.OnCompletion, domain.EventCompletion, &domain.SessionEvent{
			StoryID: storyID, PlayerID: playerID, NodeID: next.ID, ChoiceID: choice.ID, Category: category,
		})
	}
	return true
}

// CurrentNode returns the node of the player's active progress, or starts the
// story when there is none.
func (e *Engine) CurrentNode(ctx context.Context, storyID, playerID int64) (domain.NodeView, error) {
	const op = "current_node"

	if !e.tracks(playerID) {
		return e.StartStory(ctx, storyID, playerID)
	}

	progress, err := e.store.GetActiveProgress(ctx, playerID, storyID)
	if errors.Is(err, domain.ErrNotFound) {
		return e.StartStory(ctx, storyID, playerID)
	}
	if err != nil {
		return domain.NodeView{}, fmt.Errorf("%s: failed to load progress: %w", op, err)
	}

	node, err := e.graph.GetNode(ctx, progress.CurrentNodeID)
	if err != nil {
		return domain.NodeView{}, lookupError(op, domain.EntityNode, progress.CurrentNodeID, err)
	}
	return e.render(ctx, op, *node)
}

// Progress returns the player's progress for a story, completed or not.
func (e *Engine) Progress(ctx context.Context, storyID, playerID int64) (*domain.Progress, error) {
	if !e.tracks(playerID) {
		return nil, domain.NotFound("get_progress", domain.EntityProgress, storyID)
	}
	return e.store.GetProgress(ctx, playerID, storyID)
}

// PlayerStats returns the player's aggregate stats.
func (e *Engine) PlayerStats(ctx context.Context, playerID int64) (*domain.Stats, error) {
	if !e.tracks(playerID) {
		return nil, domain.NotFound("get_stats", domain.EntityStats, playerID)
	}
	return e.store.GetOrCreate(ctx, playerID)
}

func (e *Engine) emit(ctx context.Context, hook func(context.Context, *domain.SessionEvent), typ domain.EventType, ev *domain.SessionEvent) {
	if hook == nil {
		return
	}
	ev.Type = typ
	ev.Timestamp = e.now()
	hook(ctx, ev)
}

// lookupError keeps not-found errors typed and wraps anything else.
func lookupError(op, entity string, id int64, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NotFound(op, entity, id)
	}
	return fmt.Errorf("%s: failed to load %s %d: %w", op, entity, id, err)
}

func countStarts(nodes []domain.Node) int {
	n := 0
	for _, node := range nodes {
		if node.IsStartingNode {
			n++
		}
	}
	return n
}
