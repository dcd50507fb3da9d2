package domain

import (
	"encoding/json"
	"time"
)

// Progress is a player's position within one story.
// There is at most one record per (player, story) pair; it is never deleted by the engine.
type Progress struct {
	ID            int64         `json:"progress_id"`
	PlayerID      int64         `json:"player_id"`
	StoryID       int64         `json:"story_id"`
	CurrentNodeID int64         `json:"current_node_id"`
	History       ChoiceHistory `json:"choice_history"`
	IsCompleted   bool          `json:"is_completed"`
	StartedAt     time.Time     `json:"start_time"`
	UpdatedAt     time.Time     `json:"last_updated"`
}

// Clone returns a deep copy of p.
func (p *Progress) Clone() *Progress {
	if p == nil {
		return nil
	}
	next := *p
	next.History = p.History.Clone()
	return &next
}

// HistoryEntry records the choice taken when leaving a node.
type HistoryEntry struct {
	NodeID   int64 `json:"node_id"`
	ChoiceID int64 `json:"choice_id"`
}

// ChoiceHistory maps a visited node to the choice taken there, preserving the
// order in which nodes were first left. Leaving a node again replaces its choice
// but keeps its original position.
type ChoiceHistory struct {
	entries []HistoryEntry
}

// NewChoiceHistory builds a history from entries, applying Record in order.
func NewChoiceHistory(entries ...HistoryEntry) ChoiceHistory {
	var h ChoiceHistory
	for _, e := range entries {
		h.Record(e.NodeID, e.ChoiceID)
	}
	return h
}

// Record stores choiceID as the choice taken at nodeID.
func (h *ChoiceHistory) Record(nodeID, choiceID int64) {
	for i := range h.entries {
		if h.entries[i].NodeID == nodeID {
			h.entries[i].ChoiceID = choiceID
			return
		}
	}
	h.entries = append(h.entries, HistoryEntry{NodeID: nodeID, ChoiceID: choiceID})
}

// Lookup returns the choice taken at nodeID.
func (h ChoiceHistory) Lookup(nodeID int64) (int64, bool) {
	for _, e := range h.entries {
		if e.NodeID == nodeID {
			return e.ChoiceID, true
		}
	}
	return 0, false
}

// Len returns the number of nodes recorded.
func (h ChoiceHistory) Len() int {
	return len(h.entries)
}

// Entries returns a copy of the ordered entries.
func (h ChoiceHistory) Entries() []HistoryEntry {
	out := make([]HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Nodes returns the visited node IDs in order.
func (h ChoiceHistory) Nodes() []int64 {
	out := make([]int64, len(h.entries))
	for i, e := range h.entries {
		out[i] = e.NodeID
	}
	return out
}

// Clone returns an independent copy.
func (h ChoiceHistory) Clone() ChoiceHistory {
	return ChoiceHistory{entries: h.Entries()}
}

// MarshalJSON encodes the history as an ordered list of entries.
func (h ChoiceHistory) MarshalJSON() ([]byte, error) {
	entries := h.entries
	if entries == nil {
		entries = []HistoryEntry{}
	}
	return json.Marshal(entries)
}

// UnmarshalJSON decodes an ordered list of entries.
func (h *ChoiceHistory) UnmarshalJSON(data []byte) error {
	var entries []HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	*h = NewChoiceHistory(entries...)
	return nil
}
