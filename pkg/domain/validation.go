package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Fixed validation issues.
const (
	IssueNoNodes          = "Story has no nodes"
	IssueNoStartingNode   = "Story has no starting node"
	IssueMultipleStarting = "Story has multiple starting nodes"
	IssueNoEndingNodes    = "Story has no ending nodes"
)

// ValidationResult reports the structural health of a story.
type ValidationResult struct {
	IsValid          bool     `json:"is_valid"`
	Issues           []string `json:"issues"`
	TotalNodes       int      `json:"total_nodes"`
	TotalChoices     int      `json:"total_choices"`
	UnreachableNodes []int64  `json:"unreachable_nodes"`
	DeadEnds         []int64  `json:"dead_ends"`
	DanglingChoices  []int64  `json:"dangling_choices,omitempty"`
}

// UnreachableIssue describes nodes that cannot be reached from the start.
func UnreachableIssue(ids []int64) string {
	return "Unreachable nodes found: " + formatIDs(ids)
}

// DeadEndIssue describes non-ending nodes with no way out.
func DeadEndIssue(ids []int64) string {
	return "Dead end nodes found: " + formatIDs(ids)
}

// LetterConflictIssue describes a node with more than one choice sharing letter.
func LetterConflictIssue(nodeID int64, letter string) string {
	return fmt.Sprintf("Node %d has duplicate choice letter '%s'", nodeID, letter)
}

// DanglingChoiceIssue describes choices leading to nodes outside the story.
func DanglingChoiceIssue(ids []int64) string {
	return "Choices pointing to missing nodes: " + formatIDs(ids)
}

func formatIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
