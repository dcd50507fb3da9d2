// Package validator checks the structural health of a story graph.
package validator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/aretw0/storygraph/internal/logging"
	"github.com/aretw0/storygraph/internal/reach"
	"github.com/aretw0/storygraph/pkg/domain"
	"github.com/aretw0/storygraph/pkg/ports"
)

// Analyze classifies the graph formed by nodes and choices.
// Findings are returned as data; Analyze never fails.
func Analyze(nodes []domain.Node, choices []domain.Choice) domain.ValidationResult {
	result := domain.ValidationResult{
		Issues:           []string{},
		UnreachableNodes: []int64{},
		DeadEnds:         []int64{},
	}

	if len(nodes) == 0 {
		result.Issues = append(result.Issues, domain.IssueNoNodes)
		return result
	}

	result.TotalNodes = len(nodes)
	result.TotalChoices = len(choices)

	var starts, endings int
	for _, n := range nodes {
		if n.IsStartingNode {
			starts++
		}
		if n.IsEndingNode {
			endings++
		}
	}
	switch {
	case starts == 0:
		result.Issues = append(result.Issues, domain.IssueNoStartingNode)
	case starts > 1:
		result.Issues = append(result.Issues, domain.IssueMultipleStarting)
	}
	if endings == 0 {
		result.Issues = append(result.Issues, domain.IssueNoEndingNodes)
	}

	reachable := reach.Reachable(nodes, choices)
	for _, n := range nodes {
		if !reachable.Has(n.ID) {
			result.UnreachableNodes = append(result.UnreachableNodes, n.ID)
		}
	}
	if len(result.UnreachableNodes) > 0 {
		result.Issues = append(result.Issues, domain.UnreachableIssue(result.UnreachableNodes))
	}

	idx := reach.NewIndex(choices)
	for _, n := range nodes {
		if len(idx[n.ID]) == 0 && !n.IsEndingNode {
			result.DeadEnds = append(result.DeadEnds, n.ID)
		}
	}
	if len(result.DeadEnds) > 0 {
		result.Issues = append(result.Issues, domain.DeadEndIssue(result.DeadEnds))
	}

	result.Issues = append(result.Issues, letterConflicts(idx)...)

	known := make(map[int64]struct{}, len(nodes))
	for _, n := range nodes {
		known[n.ID] = struct{}{}
	}
	for _, c := range choices {
		if _, ok := known[c.ToNodeID]; !ok {
			result.DanglingChoices = append(result.DanglingChoices, c.ID)
		}
	}
	if len(result.DanglingChoices) > 0 {
		sort.Slice(result.DanglingChoices, func(i, j int) bool { return result.DanglingChoices[i] < result.DanglingChoices[j] })
		result.Issues = append(result.Issues, domain.DanglingChoiceIssue(result.DanglingChoices))
	}

	result.IsValid = len(result.Issues) == 0
	return result
}

// letterConflicts returns one issue per (node, letter) pair used by more than
// one outgoing choice, ordered by node then letter.
func letterConflicts(idx reach.Index) []string {
	sources := make([]int64, 0, len(idx))
	for from := range idx {
		sources = append(sources, from)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })

	var issues []string
	for _, from := range sources {
		counts := make(map[string]int)
		for _, c := range idx[from] {
			counts[c.Letter]++
		}
		letters := make([]string, 0, len(counts))
		for letter, n := range counts {
			if n > 1 {
				letters = append(letters, letter)
			}
		}
		sort.Strings(letters)
		for _, letter := range letters {
			issues = append(issues, domain.LetterConflictIssue(from, letter))
		}
	}
	return issues
}

// Validator validates stories read through a GraphAccessor.
type Validator struct {
	graph  ports.GraphAccessor
	logger *slog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		v.logger = logger
	}
}

// New creates a Validator over graph.
func New(graph ports.GraphAccessor, opts ...Option) *Validator {
	v := &Validator{
		graph:  graph,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate loads the story graph and analyzes it. An unknown story validates
// as a story with no nodes. Only infrastructure failures are returned as errors.
func (v *Validator) Validate(ctx context.Context, storyID int64) (domain.ValidationResult, error) {
	nodes, err := v.graph.GetNodes(ctx, storyID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Analyze(nil, nil), nil
		}
		return domain.ValidationResult{}, fmt.Errorf("failed to load nodes of story %d: %w", storyID, err)
	}
	if len(nodes) == 0 {
		return Analyze(nil, nil), nil
	}

	choices, err := v.graph.GetStoryChoices(ctx, storyID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.ValidationResult{}, fmt.Errorf("failed to load choices of story %d: %w", storyID, err)
	}

	result := Analyze(nodes, choices)
	v.logger.Debug("story validated",
		"story_id", storyID,
		"valid", result.IsValid,
		"issues", len(result.Issues),
	)
	return result, nil
}
