package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/storygraph/pkg/domain"
	"github.com/aretw0/storygraph/pkg/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Compile-time check to ensure implementation satisfies the interface.
var _ ports.GraphStore = (*Graph)(nil)

// Graph implements ports.GraphStore on PostgreSQL.
type Graph struct {
	pool *pgxpool.Pool
}

// NewGraph creates a graph store over pool.
func NewGraph(pool *pgxpool.Pool) *Graph {
	return &Graph{pool: pool}
}

const storyColumns = `story_id, title, description, author, difficulty_level, category, is_published, created_at`

const nodeColumns = `node_id, story_id, node_title, content, is_starting_node, is_ending_node, node_type`

const choiceColumns = `c.choice_id, c.from_node_id, c.to_node_id, c.choice_text, c.choice_letter, c.consequences`

func scanStory(row pgx.Row) (*domain.Story, error) {
	var s domain.Story
	err := row.Scan(&s.ID, &s.Title, &s.Description, &s.Author, &s.Difficulty, &s.Category, &s.IsPublished, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func scanNode(row pgx.Row) (*domain.Node, error) {
	var n domain.Node
	var typ string
	err := row.Scan(&n.ID, &n.StoryID, &n.Title, &n.Content, &n.IsStartingNode, &n.IsEndingNode, &typ)
	if err != nil {
		return nil, err
	}
	n.Type = domain.NodeType(typ)
	return &n, nil
}

func scanChoice(row pgx.Row) (*domain.Choice, error) {
	var c domain.Choice
	err := row.Scan(&c.ID, &c.FromNodeID, &c.ToNodeID, &c.Text, &c.Letter, &c.Consequences)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetStory retrieves a story by ID.
func (g *Graph) GetStory(ctx context.Context, storyID int64) (*domain.Story, error) {
	s, err := scanStory(g.pool.QueryRow(ctx, `SELECT `+storyColumns+` FROM stories WHERE story_id = $1`, storyID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("get_story", domain.EntityStory, storyID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get story %d: %w", storyID, err)
	}
	return s, nil
}

func (g *Graph) storyExists(ctx context.Context, op string, storyID int64) error {
	var exists bool
	if err := g.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM stories WHERE story_id = $1)`, storyID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check story %d: %w", storyID, err)
	}
	if !exists {
		return domain.NotFound(op, domain.EntityStory, storyID)
	}
	return nil
}

// GetNodes returns the nodes of a story ordered by ID.
func (g *Graph) GetNodes(ctx context.Context, storyID int64) ([]domain.Node, error) {
	if err := g.storyExists(ctx, "get_nodes", storyID); err != nil {
		return nil, err
	}

	rows, err := g.pool.Query(ctx, `SELECT `+nodeColumns+` FROM story_nodes WHERE story_id = $1 ORDER BY node_id`, storyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes of story %d: %w", storyID, err)
	}
	defer rows.Close()

	nodes := make([]domain.Node, 0)
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		nodes = append(nodes, *n)
	}
	return nodes, rows.Err()
}

func (g *Graph) queryChoices(ctx context.Context, sql string, arg int64) ([]domain.Choice, error) {
	rows, err := g.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query choices: %w", err)
	}
	defer rows.Close()

	choices := make([]domain.Choice, 0)
	for rows.Next() {
		c, err := scanChoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan choice: %w", err)
		}
		choices = append(choices, *c)
	}
	return choices, rows.Err()
}

// GetStoryChoices returns every choice leaving a node of the story, ordered by ID.
func (g *Graph) GetStoryChoices(ctx context.Context, storyID int64) ([]domain.Choice, error) {
	if err := g.storyExists(ctx, "get_story_choices", storyID); err != nil {
		return nil, err
	}
	return g.queryChoices(ctx, `
SELECT `+choiceColumns+`
FROM choices c
JOIN story_nodes n ON n.node_id = c.from_node_id
WHERE n.story_id = $1
ORDER BY c.choice_id`, storyID)
}

// GetChoicesFrom returns the outgoing choices of a node ordered by letter.
func (g *Graph) GetChoicesFrom(ctx context.Context, nodeID int64) ([]domain.Choice, error) {
	return g.queryChoices(ctx, `
SELECT `+choiceColumns+`
FROM choices c
WHERE c.from_node_id = $1
ORDER BY c.choice_letter, c.choice_id`, nodeID)
}

// GetChoice retrieves a choice by ID.
func (g *Graph) GetChoice(ctx context.Context, choiceID int64) (*domain.Choice, error) {
	c, err := scanChoice(g.pool.QueryRow(ctx, `SELECT `+choiceColumns+` FROM choices c WHERE c.choice_id = $1`, choiceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("get_choice", domain.EntityChoice, choiceID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get choice %d: %w", choiceID, err)
	}
	return c, nil
}

// GetNode retrieves a node by ID.
func (g *Graph) GetNode(ctx context.Context, nodeID int64) (*domain.Node, error) {
	n, err := scanNode(g.pool.QueryRow(ctx, `SELECT `+nodeColumns+` FROM story_nodes WHERE node_id = $1`, nodeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("get_node", domain.EntityNode, nodeID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get node %d: %w", nodeID, err)
	}
	return n, nil
}

// CreateStory inserts a story and assigns its ID.
func (g *Graph) CreateStory(ctx context.Context, story *domain.Story) error {
	const q = `
INSERT INTO stories (title, description, author, difficulty_level, category, is_published, created_at)
VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, now()))
RETURNING story_id, created_at`

	var at any
	if !story.CreatedAt.IsZero() {
		at = story.CreatedAt
	}
	err := g.pool.QueryRow(ctx, q,
		story.Title, story.Description, story.Author, story.Difficulty, story.Category, story.IsPublished, at,
	).Scan(&story.ID, &story.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create story: %w", err)
	}
	return nil
}

// UpdateStory replaces the mutable fields of an existing story.
func (g *Graph) UpdateStory(ctx context.Context, story *domain.Story) error {
	const q = `
UPDATE stories
SET title = $2, description = $3, author = $4, difficulty_level = $5, category = $6, is_published = $7
WHERE story_id = $1
RETURNING created_at`

	err := g.pool.QueryRow(ctx, q,
		story.ID, story.Title, story.Description, story.Author, story.Difficulty, story.Category, story.IsPublished,
	).Scan(&story.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NotFound("update_story", domain.EntityStory, story.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to update story %d: %w", story.ID, err)
	}
	return nil
}

// DeleteStory removes a story; nodes and choices follow via ON DELETE CASCADE.
func (g *Graph) DeleteStory(ctx context.Context, storyID int64) error {
	tag, err := g.pool.Exec(ctx, `DELETE FROM stories WHERE story_id = $1`, storyID)
	if err != nil {
		return fmt.Errorf("failed to delete story %d: %w", storyID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("delete_story", domain.EntityStory, storyID)
	}
	return nil
}

// AddNode inserts a node into an existing story.
func (g *Graph) AddNode(ctx context.Context, node *domain.Node) error {
	if node.Type == "" {
		node.Type = domain.NodeTypeStory
	}
	if !node.Type.Valid() {
		return domain.PreconditionFailed("add_node", domain.EntityNode, node.ID, "invalid node type "+string(node.Type))
	}

	const q = `
INSERT INTO story_nodes (story_id, node_title, content, is_starting_node, is_ending_node, node_type)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING node_id`

	err := g.pool.QueryRow(ctx, q,
		node.StoryID, node.Title, node.Content, node.IsStartingNode, node.IsEndingNode, string(node.Type),
	).Scan(&node.ID)
	if isForeignKeyViolation(err) {
		return domain.NotFound("add_node", domain.EntityStory, node.StoryID)
	}
	if err != nil {
		return fmt.Errorf("failed to add node: %w", err)
	}
	return nil
}

// AddChoice inserts a choice between two existing nodes.
func (g *Graph) AddChoice(ctx context.Context, choice *domain.Choice) error {
	if !domain.ValidChoiceLetter(choice.Letter) {
		return domain.PreconditionFailed("add_choice", domain.EntityChoice, choice.ID, "invalid choice letter "+choice.Letter)
	}

	const q = `
INSERT INTO choices (from_node_id, to_node_id, choice_text, choice_letter, consequences)
VALUES ($1, $2, $3, $4, $5)
RETURNING choice_id`

	err := g.pool.QueryRow(ctx, q,
		choice.FromNodeID, choice.ToNodeID, choice.Text, choice.Letter, choice.Consequences,
	).Scan(&choice.ID)
	if isForeignKeyViolation(err) {
		return domain.NotFound("add_choice", domain.EntityNode, choice.FromNodeID)
	}
	if err != nil {
		return fmt.Errorf("failed to add choice: %w", err)
	}
	return nil
}

// ListStories returns the stories matching filter, ordered by ID.
func (g *Graph) ListStories(ctx context.Context, filter ports.StoryFilter) ([]domain.Story, error) {
	const q = `
SELECT ` + storyColumns + `
FROM stories
WHERE ($1 = '' OR category = $1)
  AND (NOT $2 OR is_published)
ORDER BY story_id`

	rows, err := g.pool.Query(ctx, q, filter.Category, filter.PublishedOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	defer rows.Close()

	stories := make([]domain.Story, 0)
	for rows.Next() {
		s, err := scanStory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan story: %w", err)
		}
		stories = append(stories, *s)
	}
	return stories, rows.Err()
}

// Categories returns the distinct non-empty categories, sorted.
func (g *Graph) Categories(ctx context.Context, publishedOnly bool) ([]string, error) {
	const q = `
SELECT category
FROM stories
WHERE category <> '' AND (NOT $1 OR is_published)
GROUP BY category
ORDER BY category COLLATE "C"`

	rows, err := g.pool.Query(ctx, q, publishedOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	categories, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan categories: %w", err)
	}
	return categories, nil
}
