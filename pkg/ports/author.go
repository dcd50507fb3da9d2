package ports

import (
	"context"

	"github.com/aretw0/storygraph/pkg/domain"
)

// StoryFilter narrows ListStories.
type StoryFilter struct {
	Category      string
	PublishedOnly bool
}

// GraphAuthor mutates the story graph. IDs are assigned by the store and
// written back into the argument.
type GraphAuthor interface {
	// CreateStory inserts a story. CreatedAt is set when zero.
	CreateStory(ctx context.Context, story *domain.Story) error

	// UpdateStory replaces the mutable fields of an existing story.
	UpdateStory(ctx context.Context, story *domain.Story) error

	// DeleteStory removes a story together with its nodes and their choices.
	DeleteStory(ctx context.Context, storyID int64) error

	// AddNode inserts a node into an existing story.
	AddNode(ctx context.Context, node *domain.Node) error

	// AddChoice inserts a choice between two existing nodes.
	// The letter must be one of domain.ChoiceLetters.
	AddChoice(ctx context.Context, choice *domain.Choice) error

	// ListStories returns stories ordered by ID.
	ListStories(ctx context.Context, filter StoryFilter) ([]domain.Story, error)

	// Categories returns the distinct non-empty story categories, sorted.
	Categories(ctx context.Context, publishedOnly bool) ([]string, error)
}

// GraphStore is a graph that can be both read and authored.
type GraphStore interface {
	GraphAccessor
	GraphAuthor
}
