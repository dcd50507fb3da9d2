package domain

import "time"

// NodeType tags the narrative role of a node.
type NodeType string

const (
	NodeTypeStory  NodeType = "story"
	NodeTypeChoice NodeType = "choice"
	NodeTypeEnding NodeType = "ending"
)

// Valid reports whether t is one of the known node types.
func (t NodeType) Valid() bool {
	switch t {
	case NodeTypeStory, NodeTypeChoice, NodeTypeEnding:
		return true
	}
	return false
}

// ChoiceLetters is the alphabet choices are labelled with, in display order.
var ChoiceLetters = []string{"A", "B", "C", "D"}

// ValidChoiceLetter reports whether letter belongs to ChoiceLetters.
func ValidChoiceLetter(letter string) bool {
	for _, l := range ChoiceLetters {
		if l == letter {
			return true
		}
	}
	return false
}

// Story is a complete branching narrative.
// Only published stories are playable.
type Story struct {
	ID          int64     `json:"story_id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Author      string    `json:"author" yaml:"author"`
	Difficulty  string    `json:"difficulty_level,omitempty" yaml:"difficulty,omitempty"`
	Category    string    `json:"category,omitempty" yaml:"category,omitempty"`
	IsPublished bool      `json:"is_published" yaml:"published"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
}

// Node is a narrative unit belonging to exactly one Story.
type Node struct {
	ID             int64    `json:"node_id" yaml:"id"`
	StoryID        int64    `json:"story_id" yaml:"-"`
	Title          string   `json:"node_title" yaml:"title"`
	Content        string   `json:"content" yaml:"content"`
	IsStartingNode bool     `json:"is_starting_node" yaml:"start,omitempty"`
	IsEndingNode   bool     `json:"is_ending_node" yaml:"ending,omitempty"`
	Type           NodeType `json:"node_type" yaml:"type"`
}

// Choice is a directed edge between two nodes of the same story.
type Choice struct {
	ID           int64  `json:"choice_id" yaml:"id"`
	FromNodeID   int64  `json:"from_node_id" yaml:"from"`
	ToNodeID     int64  `json:"to_node_id" yaml:"to"`
	Text         string `json:"choice_text" yaml:"text"`
	Letter       string `json:"choice_letter" yaml:"letter"`
	Consequences string `json:"consequences,omitempty" yaml:"consequences,omitempty"`
}
