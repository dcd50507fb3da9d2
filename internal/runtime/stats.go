package runtime

import (
	"context"
	"fmt"

	"github.com/aretw0/storygraph/pkg/ports"
)

// statsUpdater applies a story completion to the player's stats.
type statsUpdater struct {
	graph ports.GraphAccessor
}

// apply increments the completion count and makes the story's category the
// favorite. It runs inside the caller's unit of work and returns the category.
func (u statsUpdater) apply(ctx context.Context, stats ports.StatsStore, playerID, storyID int64) (string, error) {
	story, err := u.graph.GetStory(ctx, storyID)
	if err != nil {
		return "", fmt.Errorf("failed to load story %d for stats: %w", storyID, err)
	}
	if err := stats.RecordCompletion(ctx, playerID, story.Category); err != nil {
		return "", fmt.Errorf("failed to record completion: %w", err)
	}
	return story.Category, nil
}
