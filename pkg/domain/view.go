package domain

import "sort"

// ChoiceView is the caller-facing projection of an outgoing choice.
type ChoiceView struct {
	ID           int64  `json:"choice_id"`
	Text         string `json:"choice_text"`
	Letter       string `json:"choice_letter"`
	Consequences string `json:"consequences,omitempty"`
}

// NodeView is a node rendered together with its outgoing choices.
// It is computed on demand and never persisted.
type NodeView struct {
	ID             int64        `json:"node_id"`
	StoryID        int64        `json:"story_id"`
	Title          string       `json:"node_title"`
	Content        string       `json:"content"`
	IsStartingNode bool         `json:"is_starting_node"`
	IsEndingNode   bool         `json:"is_ending_node"`
	Type           NodeType     `json:"node_type"`
	Choices        []ChoiceView `json:"choices"`
}

// NewNodeView renders node with its outgoing choices ordered by letter.
func NewNodeView(node Node, choices []Choice) NodeView {
	ordered := make([]Choice, len(choices))
	copy(ordered, choices)
	SortChoices(ordered)

	views := make([]ChoiceView, 0, len(ordered))
	for _, c := range ordered {
		views = append(views, ChoiceView{
			ID:           c.ID,
			Text:         c.Text,
			Letter:       c.Letter,
			Consequences: c.Consequences,
		})
	}

	return NodeView{
		ID:             node.ID,
		StoryID:        node.StoryID,
		Title:          node.Title,
		Content:        node.Content,
		IsStartingNode: node.IsStartingNode,
		IsEndingNode:   node.IsEndingNode,
		Type:           node.Type,
		Choices:        views,
	}
}

// SortChoices orders choices by letter ascending, then by ID.
func SortChoices(choices []Choice) {
	sort.SliceStable(choices, func(i, j int) bool {
		if choices[i].Letter != choices[j].Letter {
			return choices[i].Letter < choices[j].Letter
		}
		return choices[i].ID < choices[j].ID
	})
}

// ChoiceRequest asks the engine to follow ChoiceID out of CurrentNodeID.
// PlayerID zero means an anonymous player.
type ChoiceRequest struct {
	CurrentNodeID int64 `json:"current_node_id"`
	ChoiceID      int64 `json:"choice_id"`
	PlayerID      int64 `json:"user_id,omitempty"`
}

// ChoiceResult is the outcome of applying a choice.
type ChoiceResult struct {
	Success       bool     `json:"success"`
	NextNode      NodeView `json:"next_node"`
	Consequences  string   `json:"consequences,omitempty"`
	IsEnding      bool     `json:"is_ending"`
	ProgressSaved bool     `json:"progress_saved"`
}
