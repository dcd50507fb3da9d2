package dsl

import "github.com/aretw0/storygraph/pkg/domain"

type pendingChoice struct {
	choice domain.Choice
	target string
}

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	key     string
	node    domain.Node
	choices []pendingChoice
	builder *Builder
}

// Title sets the node title. It defaults to the node key.
func (n *NodeBuilder) Title(title string) *NodeBuilder {
	n.node.Title = title
	return n
}

// Text sets the narrative content of the node.
func (n *NodeBuilder) Text(content string) *NodeBuilder {
	n.node.Content = content
	return n
}

// Start marks the node as the story's starting node.
func (n *NodeBuilder) Start() *NodeBuilder {
	n.node.IsStartingNode = true
	return n
}

// Ending marks the node as an ending and drops any choices.
func (n *NodeBuilder) Ending() *NodeBuilder {
	n.node.IsEndingNode = true
	n.node.Type = domain.NodeTypeEnding
	n.choices = nil
	return n
}

// Choice adds a lettered choice leading to the node named target.
// The node type becomes "choice".
func (n *NodeBuilder) Choice(letter, text, target string) *NodeBuilder {
	return n.ChoiceWith(letter, text, target, "")
}

// ChoiceWith adds a choice that also reports consequences when taken.
func (n *NodeBuilder) ChoiceWith(letter, text, target, consequences string) *NodeBuilder {
	n.choices = append(n.choices, pendingChoice{
		choice: domain.Choice{Letter: letter, Text: text, Consequences: consequences},
		target: target,
	})
	if !n.node.IsEndingNode {
		n.node.Type = domain.NodeTypeChoice
	}
	return n
}

// Go adds a single "continue" choice (letter A) to target, keeping the
// node a plain story node.
func (n *NodeBuilder) Go(target string) *NodeBuilder {
	n.choices = append(n.choices, pendingChoice{
		choice: domain.Choice{Letter: "A", Text: "Continue"},
		target: target,
	})
	return n
}

// Node switches to another node of the same story.
func (n *NodeBuilder) Node(key string) *NodeBuilder {
	return n.builder.Node(key)
}
