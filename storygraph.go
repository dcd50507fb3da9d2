package storygraph

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/storygraph/internal/logging"
	"github.com/aretw0/storygraph/internal/presentation/graph"
	"github.com/aretw0/storygraph/internal/reach"
	"github.com/aretw0/storygraph/internal/runtime"
	"github.com/aretw0/storygraph/internal/validator"
	"github.com/aretw0/storygraph/pkg/adapters/memory"
	"github.com/aretw0/storygraph/pkg/domain"
	"github.com/aretw0/storygraph/pkg/ports"
	"github.com/aretw0/storygraph/pkg/session"
	"github.com/aretw0/storygraph/pkg/storyfile"
)

//go:embed VERSION
var version string

// Version is the release of this module.
var Version = strings.TrimSpace(version)

// Storygraph is the high-level entry point of the library.
// It wires a story graph, a session store and the engine that drives players through it.
type Storygraph struct {
	graph     ports.GraphStore
	store     ports.SessionStore
	locker    ports.DistributedLocker
	lockTTL   time.Duration
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	engine    *runtime.Engine
	validator *validator.Validator
}

// Option defines a functional option for configuring Storygraph.
type Option func(*Storygraph)

// WithGraph sets the story graph. Defaults to an empty in-memory graph.
func WithGraph(g ports.GraphStore) Option {
	return func(s *Storygraph) {
		s.graph = g
	}
}

// WithStore sets where progress and stats are kept. Defaults to an in-memory store.
func WithStore(store ports.SessionStore) Option {
	return func(s *Storygraph) {
		s.store = store
	}
}

// WithLocker serializes sessions across processes with a distributed lock.
func WithLocker(l ports.DistributedLocker) Option {
	return func(s *Storygraph) {
		s.locker = l
	}
}

// WithLockTTL sets how long a distributed session lock is held at most.
func WithLockTTL(ttl time.Duration) Option {
	return func(s *Storygraph) {
		s.lockTTL = ttl
	}
}

// WithLifecycleHooks registers observability hooks. Repeated calls accumulate.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(s *Storygraph) {
		s.hooks = s.hooks.Merge(hooks)
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Storygraph) {
		s.logger = logger
	}
}

// New initializes a Storygraph.
func New(opts ...Option) *Storygraph {
	s := &Storygraph{}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logging.NewNop()
	}
	if s.graph == nil {
		s.graph = memory.NewGraph()
	}
	if s.store == nil {
		s.store = memory.NewStore()
	}

	sessionOpts := []session.Option{session.WithLogger(s.logger)}
	if s.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(s.locker))
	}
	if s.lockTTL > 0 {
		sessionOpts = append(sessionOpts, session.WithLockTTL(s.lockTTL))
	}

	s.engine = runtime.NewEngine(s.graph, s.store,
		runtime.WithLogger(s.logger),
		runtime.WithLifecycleHooks(s.hooks),
		runtime.WithSessionManager(session.NewManager(sessionOpts...)),
	)
	s.validator = validator.New(s.graph, validator.WithLogger(s.logger))
	return s
}

// Graph returns the underlying story graph.
func (s *Storygraph) Graph() ports.GraphStore {
	return s.graph
}

// StartStory positions the player at the story's starting node.
// Player 0 plays anonymously and nothing is saved.
func (s *Storygraph) StartStory(ctx context.Context, storyID, playerID int64) (domain.NodeView, error) {
	return s.engine.StartStory(ctx, storyID, playerID)
}

// MakeChoice follows a choice out of the current node.
func (s *Storygraph) MakeChoice(ctx context.Context, req domain.ChoiceRequest) (domain.ChoiceResult, error) {
	return s.engine.MakeChoice(ctx, req)
}

// CurrentNode resumes the player's active session, starting the story when there is none.
func (s *Storygraph) CurrentNode(ctx context.Context, storyID, playerID int64) (domain.NodeView, error) {
	return s.engine.CurrentNode(ctx, storyID, playerID)
}

// Progress returns the player's progress in a story.
func (s *Storygraph) Progress(ctx context.Context, storyID, playerID int64) (*domain.Progress, error) {
	return s.engine.Progress(ctx, storyID, playerID)
}

// PlayerStats returns the player's aggregate stats.
func (s *Storygraph) PlayerStats(ctx context.Context, playerID int64) (*domain.Stats, error) {
	return s.engine.PlayerStats(ctx, playerID)
}

// Validate reports the structural health of a stored story.
func (s *Storygraph) Validate(ctx context.Context, storyID int64) (domain.ValidationResult, error) {
	return s.validator.Validate(ctx, storyID)
}

// ValidateDocument checks a story document before it is seeded.
func (s *Storygraph) ValidateDocument(doc *storyfile.Document) domain.ValidationResult {
	return validator.Analyze(doc.Nodes, doc.Choices)
}

// ListStories lists the stories matching filter.
func (s *Storygraph) ListStories(ctx context.Context, filter ports.StoryFilter) ([]domain.Story, error) {
	return s.graph.ListStories(ctx, filter)
}

// Categories lists the distinct story categories.
func (s *Storygraph) Categories(ctx context.Context, publishedOnly bool) ([]string, error) {
	return s.graph.Categories(ctx, publishedOnly)
}

// Seed writes a story document into the graph and returns the new story ID.
func (s *Storygraph) Seed(ctx context.Context, doc *storyfile.Document) (int64, error) {
	id, err := storyfile.Seed(ctx, s.graph, doc)
	if err != nil {
		return 0, err
	}
	s.logger.Info("Story seeded", "story_id", id, "title", doc.Story.Title, "nodes", len(doc.Nodes))
	return id, nil
}

// SeedDir seeds every story file found in dir.
func (s *Storygraph) SeedDir(ctx context.Context, dir string) ([]int64, error) {
	ids, err := storyfile.SeedDir(ctx, s.graph, dir)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Stories seeded", "dir", dir, "count", len(ids))
	return ids, nil
}

// Mermaid renders a story as a Mermaid flowchart. Unreachable nodes are
// greyed out and, for a player with progress, visited and current nodes are
// highlighted.
func (s *Storygraph) Mermaid(ctx context.Context, storyID, playerID int64) (string, error) {
	nodes, err := s.graph.GetNodes(ctx, storyID)
	if err != nil {
		return "", err
	}
	choices, err := s.graph.GetStoryChoices(ctx, storyID)
	if err != nil {
		return "", err
	}

	overlay := &graph.GraphOverlay{}
	if playerID != 0 {
		progress, err := s.engine.Progress(ctx, storyID, playerID)
		switch {
		case err == nil:
			overlay = graph.OverlayFromProgress(progress)
		case !errors.Is(err, domain.ErrNotFound):
			return "", fmt.Errorf("failed to load progress overlay: %w", err)
		}
	}

	reachable := reach.Reachable(nodes, choices)
	for _, n := range nodes {
		if !reachable.Has(n.ID) {
			overlay.Unreachable = append(overlay.Unreachable, n.ID)
		}
	}
	return graph.GenerateMermaid(nodes, choices, overlay), nil
}
