package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/storygraph/pkg/domain"
	"github.com/aretw0/storygraph/pkg/ports"
)

// Graph implements ports.GraphStore in memory.
// Safe for concurrent use.
type Graph struct {
	mu      sync.RWMutex
	stories map[int64]*domain.Story
	nodes   map[int64]*domain.Node
	choices map[int64]*domain.Choice

	storySeq, nodeSeq, choiceSeq int64
}

// NewGraph creates an empty in-memory graph.
func NewGraph() *Graph {
	return &Graph{
		stories: make(map[int64]*domain.Story),
		nodes:   make(map[int64]*domain.Node),
		choices: make(map[int64]*domain.Choice),
	}
}

var _ ports.GraphStore = (*Graph)(nil)

// GetStory retrieves a story by ID.
func (g *Graph) GetStory(ctx context.Context, storyID int64) (*domain.Story, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	s, ok := g.stories[storyID]
	if !ok {
		return nil, domain.NotFound("get_story", domain.EntityStory, storyID)
	}
	ret := *s
	return &ret, nil
}

// GetNodes returns the nodes of a story ordered by ID.
func (g *Graph) GetNodes(ctx context.Context, storyID int64) ([]domain.Node, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.stories[storyID]; !ok {
		return nil, domain.NotFound("get_nodes", domain.EntityStory, storyID)
	}

	nodes := make([]domain.Node, 0)
	for _, n := range g.nodes {
		if n.StoryID == storyID {
			nodes = append(nodes, *n)
		}
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes, nil
}

// GetStoryChoices returns every choice leaving a node of the story, ordered by ID.
func (g *Graph) GetStoryChoices(ctx context.Context, storyID int64) ([]domain.Choice, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.stories[storyID]; !ok {
		return nil, domain.NotFound("get_story_choices", domain.EntityStory, storyID)
	}

	choices := make([]domain.Choice, 0)
	for _, c := range g.choices {
		if from, ok := g.nodes[c.FromNodeID]; ok && from.StoryID == storyID {
			choices = append(choices, *c)
		}
	}
	sort.Slice(choices, func(i, j int) bool { return choices[i].ID < choices[j].ID })
	return choices, nil
}

// GetChoicesFrom returns the outgoing choices of a node ordered by letter.
func (g *Graph) GetChoicesFrom(ctx context.Context, nodeID int64) ([]domain.Choice, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	choices := make([]domain.Choice, 0)
	for _, c := range g.choices {
		if c.FromNodeID == nodeID {
			choices = append(choices, *c)
		}
	}
	domain.SortChoices(choices)
	return choices, nil
}

// GetChoice retrieves a choice by ID.
func (g *Graph) GetChoice(ctx context.Context, choiceID int64) (*domain.Choice, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	c, ok := g.choices[choiceID]
	if !ok {
		return nil, domain.NotFound("get_choice", domain.EntityChoice, choiceID)
	}
	ret := *c
	return &ret, nil
}

// GetNode retrieves a node by ID.
func (g *Graph) GetNode(ctx context.Context, nodeID int64) (*domain.Node, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n, ok := g.nodes[nodeID]
	if !ok {
		return nil, domain.NotFound("get_node", domain.EntityNode, nodeID)
	}
	ret := *n
	return &ret, nil
}

// CreateStory inserts a story and assigns its ID.
func (g *Graph) CreateStory(ctx context.Context, story *domain.Story) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.storySeq++
	story.ID = g.storySeq
	if story.CreatedAt.IsZero() {
		story.CreatedAt = time.Now().UTC()
	}
	stored := *story
	g.stories[story.ID] = &stored
	return nil
}

// UpdateStory replaces the mutable fields of an existing story.
func (g *Graph) UpdateStory(ctx context.Context, story *domain.Story) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	existing, ok := g.stories[story.ID]
	if !ok {
		return domain.NotFound("update_story", domain.EntityStory, story.ID)
	}
	stored := *story
	stored.CreatedAt = existing.CreatedAt
	g.stories[story.ID] = &stored
	story.CreatedAt = existing.CreatedAt
	return nil
}

// DeleteStory removes a story with its nodes and every choice touching them.
func (g *Graph) DeleteStory(ctx context.Context, storyID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.stories[storyID]; !ok {
		return domain.NotFound("delete_story", domain.EntityStory, storyID)
	}

	for id, n := range g.nodes {
		if n.StoryID == storyID {
			delete(g.nodes, id)
		}
	}
	for id, c := range g.choices {
		_, fromOK := g.nodes[c.FromNodeID]
		_, toOK := g.nodes[c.ToNodeID]
		if !fromOK || !toOK {
			delete(g.choices, id)
		}
	}
	delete(g.stories, storyID)
	return nil
}

// AddNode inserts a node into an existing story.
func (g *Graph) AddNode(ctx context.Context, node *domain.Node) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.stories[node.StoryID]; !ok {
		return domain.NotFound("add_node", domain.EntityStory, node.StoryID)
	}
	if node.Type == "" {
		node.Type = domain.NodeTypeStory
	}
	if !node.Type.Valid() {
		return domain.PreconditionFailed("add_node", domain.EntityNode, node.ID, "invalid node type "+string(node.Type))
	}

	g.nodeSeq++
	node.ID = g.nodeSeq
	stored := *node
	g.nodes[node.ID] = &stored
	return nil
}

// AddChoice inserts a choice between two existing nodes.
func (g *Graph) AddChoice(ctx context.Context, choice *domain.Choice) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !domain.ValidChoiceLetter(choice.Letter) {
		return domain.PreconditionFailed("add_choice", domain.EntityChoice, choice.ID, "invalid choice letter "+choice.Letter)
	}
	if _, ok := g.nodes[choice.FromNodeID]; !ok {
		return domain.NotFound("add_choice", domain.EntityNode, choice.FromNodeID)
	}
	if _, ok := g.nodes[choice.ToNodeID]; !ok {
		return domain.NotFound("add_choice", domain.EntityNode, choice.ToNodeID)
	}

	g.choiceSeq++
	choice.ID = g.choiceSeq
	stored := *choice
	g.choices[choice.ID] = &stored
	return nil
}

// ListStories returns the stories matching filter, ordered by ID.
func (g *Graph) ListStories(ctx context.Context, filter ports.StoryFilter) ([]domain.Story, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	stories := make([]domain.Story, 0, len(g.stories))
	for _, s := range g.stories {
		if filter.PublishedOnly && !s.IsPublished {
			continue
		}
		if filter.Category != "" && s.Category != filter.Category {
			continue
		}
		stories = append(stories, *s)
	}
	sort.Slice(stories, func(i, j int) bool { return stories[i].ID < stories[j].ID })
	return stories, nil
}

// Categories returns the distinct non-empty categories, sorted.
func (g *Graph) Categories(ctx context.Context, publishedOnly bool) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, s := range g.stories {
		if s.Category == "" || (publishedOnly && !s.IsPublished) {
			continue
		}
		seen[s.Category] = struct{}{}
	}
	categories := make([]string, 0, len(seen))
	for c := range seen {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	return categories, nil
}
