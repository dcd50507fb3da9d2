package dsl

import (
	"context"
	"fmt"

	"github.com/aretw0/storygraph/pkg/adapters/memory"
	"github.com/aretw0/storygraph/pkg/domain"
	"github.com/aretw0/storygraph/pkg/ports"
	"github.com/aretw0/storygraph/pkg/storyfile"
)

// Builder manages the story construction.
type Builder struct {
	story domain.Story
	order []string
	nodes map[string]*NodeBuilder
}

// NewStory creates a new story builder.
func NewStory(title string) *Builder {
	return &Builder{
		story: domain.Story{Title: title},
		nodes: make(map[string]*NodeBuilder),
	}
}

// Description sets the story description.
func (b *Builder) Description(text string) *Builder {
	b.story.Description = text
	return b
}

// Author sets the story author.
func (b *Builder) Author(name string) *Builder {
	b.story.Author = name
	return b
}

// Difficulty sets the story difficulty level.
func (b *Builder) Difficulty(level string) *Builder {
	b.story.Difficulty = level
	return b
}

// Category sets the story category.
func (b *Builder) Category(category string) *Builder {
	b.story.Category = category
	return b
}

// Published marks the story as playable.
func (b *Builder) Published() *Builder {
	b.story.IsPublished = true
	return b
}

// Node creates a new node in the story.
// If the node already exists, it returns the existing builder.
func (b *Builder) Node(key string) *NodeBuilder {
	if nb, ok := b.nodes[key]; ok {
		return nb
	}
	nb := &NodeBuilder{
		key:     key,
		node:    domain.Node{Title: key, Type: domain.NodeTypeStory},
		builder: b,
	}
	b.nodes[key] = nb
	b.order = append(b.order, key)
	return nb
}

// Build resolves node keys into a storyfile.Document. Nodes are numbered in
// declaration order starting at 1.
func (b *Builder) Build() (*storyfile.Document, error) {
	doc := &storyfile.Document{Story: b.story}

	ids := make(map[string]int64, len(b.order))
	for i, key := range b.order {
		ids[key] = int64(i + 1)
	}

	for _, key := range b.order {
		nb := b.nodes[key]
		n := nb.node
		n.ID = ids[key]
		doc.Nodes = append(doc.Nodes, n)

		for _, c := range nb.choices {
			to, ok := ids[c.target]
			if !ok {
				return nil, fmt.Errorf("node %q: choice %s targets unknown node %q", key, c.choice.Letter, c.target)
			}
			choice := c.choice
			choice.ID = int64(len(doc.Choices) + 1)
			choice.FromNodeID = n.ID
			choice.ToNodeID = to
			doc.Choices = append(doc.Choices, choice)
		}
	}
	return doc, nil
}

// Seed builds the story and writes it into author.
func (b *Builder) Seed(ctx context.Context, author ports.GraphAuthor) (int64, error) {
	doc, err := b.Build()
	if err != nil {
		return 0, err
	}
	return storyfile.Seed(ctx, author, doc)
}

// BuildGraph builds the story into a fresh in-memory graph.
func (b *Builder) BuildGraph(ctx context.Context) (*memory.Graph, int64, error) {
	g := memory.NewGraph()
	id, err := b.Seed(ctx, g)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build memory graph: %w", err)
	}
	return g, id, nil
}
