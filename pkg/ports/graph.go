package ports

import (
	"context"

	"github.com/aretw0/storygraph/pkg/domain"
)

// GraphAccessor provides read-only access to the authored story graph.
// Lookups of absent entities return an error matching domain.ErrNotFound.
type GraphAccessor interface {
	// GetStory retrieves a story by ID.
	GetStory(ctx context.Context, storyID int64) (*domain.Story, error)

	// GetNodes returns every node of the story ordered by ID.
	GetNodes(ctx context.Context, storyID int64) ([]domain.Node, error)

	// GetStoryChoices returns every choice whose source node belongs to the story.
	GetStoryChoices(ctx context.Context, storyID int64) ([]domain.Choice, error)

	// GetChoicesFrom returns the outgoing choices of a node ordered by letter.
	GetChoicesFrom(ctx context.Context, nodeID int64) ([]domain.Choice, error)

	// GetChoice retrieves a choice by ID.
	GetChoice(ctx context.Context, choiceID int64) (*domain.Choice, error)

	// GetNode retrieves a node by ID.
	GetNode(ctx context.Context, nodeID int64) (*domain.Node, error)
}
