// Package reach computes which nodes of a story can be reached from its start.
package reach

import "github.com/aretw0/storygraph/pkg/domain"

// Set is a set of node IDs.
type Set map[int64]struct{}

// Has reports whether id is in the set.
func (s Set) Has(id int64) bool {
	_, ok := s[id]
	return ok
}

// Index maps a source node ID to its outgoing choices, in input order.
type Index map[int64][]domain.Choice

// NewIndex groups choices by source node.
func NewIndex(choices []domain.Choice) Index {
	idx := make(Index, len(choices))
	for _, c := range choices {
		idx[c.FromNodeID] = append(idx[c.FromNodeID], c)
	}
	return idx
}

// Start returns the root of the traversal: the first starting node in node order.
func Start(nodes []domain.Node) (domain.Node, bool) {
	for _, n := range nodes {
		if n.IsStartingNode {
			return n, true
		}
	}
	return domain.Node{}, false
}

// Reachable returns the IDs of every node reachable from the starting node,
// the start included. With no starting node the set is empty.
// Cycles are safe: each node is expanded at most once.
func Reachable(nodes []domain.Node, choices []domain.Choice) Set {
	visited := make(Set, len(nodes))

	start, ok := Start(nodes)
	if !ok {
		return visited
	}

	idx := NewIndex(choices)
	queue := []int64{start.ID}
	visited[start.ID] = struct{}{}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, c := range idx[current] {
			if visited.Has(c.ToNodeID) {
				continue
			}
			visited[c.ToNodeID] = struct{}{}
			queue = append(queue, c.ToNodeID)
		}
	}

	return visited
}
