package domain

import "time"

// Stats aggregates a player's achievements across all stories.
type Stats struct {
	PlayerID         int64     `json:"player_id"`
	StoriesCompleted int       `json:"stories_completed"`
	FavoriteCategory string    `json:"favorite_category"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// RecordCompletion applies a story completion in the given category.
// The most recently completed category becomes the favorite.
func (s *Stats) RecordCompletion(category string, at time.Time) {
	s.StoriesCompleted++
	s.FavoriteCategory = category
	s.UpdatedAt = at
}
