// Package storyfile reads story graphs from YAML or JSON documents and seeds
// them into a graph store.
//
// A document has a story header, a list of nodes and a list of choices.
// Node and choice IDs are local to the file; stores assign their own on Seed.
// Choices may also be written inline under their source node:
//
//	story:
//	  title: The Cave
//	  category: Adventure
//	  published: true
//	nodes:
//	  - id: 1
//	    title: Entrance
//	    start: true
//	    choices:
//	      - {letter: A, text: Go in, to: 2}
//	  - id: 2
//	    title: Daylight
//	    ending: true
package storyfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/storygraph/pkg/domain"
	"github.com/aretw0/storygraph/pkg/ports"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Document is one story with file-local node and choice IDs.
type Document struct {
	Path    string
	Story   domain.Story
	Nodes   []domain.Node
	Choices []domain.Choice
}

// Load reads a document from path. Files ending in .json are parsed as JSON,
// anything else as YAML.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read story file: %w", err)
	}

	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = "json"
	}

	doc, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	doc.Path = path
	return doc, nil
}

// LoadDir reads every .yaml, .yml and .json file in dir, in name order.
func LoadDir(dir string) ([]*Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read stories dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml", ".json":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	docs := make([]*Document, 0, len(names))
	for _, name := range names {
		doc, err := Load(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Parse decodes a document in the given format ("yaml" or "json").
func Parse(data []byte, format string) (*Document, error) {
	var raw map[string]any
	switch format {
	case "json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse yaml: %w", err)
		}
	}
	return fromMap(raw)
}

func fromMap(raw map[string]any) (*Document, error) {
	doc := &Document{}

	for key := range raw {
		switch key {
		case "story", "nodes", "choices":
		default:
			return nil, fmt.Errorf("unknown top-level key %q", key)
		}
	}

	if err := decode(raw["story"], &doc.Story); err != nil {
		return nil, fmt.Errorf("invalid story: %w", err)
	}
	if doc.Story.Title == "" {
		return nil, fmt.Errorf("story title is required")
	}

	nodes, err := list(raw["nodes"], "nodes")
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]bool, len(nodes))
	for i, item := range nodes {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("node %d: expected a mapping, got %T", i+1, item)
		}
		inline := m["choices"]
		delete(m, "choices")

		var n domain.Node
		if err := decode(m, &n); err != nil {
			return nil, fmt.Errorf("node %d: %w", i+1, err)
		}
		if n.ID == 0 {
			n.ID = int64(i + 1)
		}
		if seen[n.ID] {
			return nil, fmt.Errorf("duplicate node id %d", n.ID)
		}
		seen[n.ID] = true
		if n.Type == "" {
			n.Type = defaultType(n)
		}
		if !n.Type.Valid() {
			return nil, fmt.Errorf("node %d: invalid type %q", n.ID, n.Type)
		}
		doc.Nodes = append(doc.Nodes, n)

		choices, err := list(inline, fmt.Sprintf("node %d choices", n.ID))
		if err != nil {
			return nil, err
		}
		for j, c := range choices {
			choice, err := decodeChoice(c)
			if err != nil {
				return nil, fmt.Errorf("node %d choice %d: %w", n.ID, j+1, err)
			}
			choice.FromNodeID = n.ID
			doc.Choices = append(doc.Choices, choice)
		}
	}

	choices, err := list(raw["choices"], "choices")
	if err != nil {
		return nil, err
	}
	for i, c := range choices {
		choice, err := decodeChoice(c)
		if err != nil {
			return nil, fmt.Errorf("choice %d: %w", i+1, err)
		}
		doc.Choices = append(doc.Choices, choice)
	}

	for i := range doc.Choices {
		if doc.Choices[i].ID == 0 {
			doc.Choices[i].ID = int64(i + 1)
		}
	}
	return doc, nil
}

func decodeChoice(item any) (domain.Choice, error) {
	var c domain.Choice
	if err := decode(item, &c); err != nil {
		return c, err
	}
	c.Letter = strings.ToUpper(strings.TrimSpace(c.Letter))
	if !domain.ValidChoiceLetter(c.Letter) {
		return c, fmt.Errorf("invalid letter %q (want one of %s)", c.Letter, strings.Join(domain.ChoiceLetters, ", "))
	}
	return c, nil
}

func defaultType(n domain.Node) domain.NodeType {
	if n.IsEndingNode {
		return domain.NodeTypeEnding
	}
	return domain.NodeTypeStory
}

func list(v any, what string) ([]any, error) {
	if v == nil {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%s: expected a list, got %T", what, v)
	}
	return items, nil
}

// decode maps loosely typed input onto out using its yaml tags.
func decode(input any, out any) error {
	if input == nil {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "yaml",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// Seed writes doc into author and returns the new story's ID.
// A choice pointing to a node outside the document fails the seed.
func Seed(ctx context.Context, author ports.GraphAuthor, doc *Document) (int64, error) {
	story := doc.Story
	story.ID = 0
	if err := author.CreateStory(ctx, &story); err != nil {
		return 0, fmt.Errorf("failed to create story %q: %w", story.Title, err)
	}

	ids := make(map[int64]int64, len(doc.Nodes))
	for _, n := range doc.Nodes {
		local := n.ID
		n.ID = 0
		n.StoryID = story.ID
		if err := author.AddNode(ctx, &n); err != nil {
			return 0, fmt.Errorf("failed to add node %d: %w", local, err)
		}
		ids[local] = n.ID
	}

	for _, c := range doc.Choices {
		from, ok := ids[c.FromNodeID]
		if !ok {
			return 0, fmt.Errorf("choice %d: unknown source node %d", c.ID, c.FromNodeID)
		}
		to, ok := ids[c.ToNodeID]
		if !ok {
			return 0, fmt.Errorf("choice %d: unknown target node %d", c.ID, c.ToNodeID)
		}
		local := c.ID
		c.ID, c.FromNodeID, c.ToNodeID = 0, from, to
		if err := author.AddChoice(ctx, &c); err != nil {
			return 0, fmt.Errorf("failed to add choice %d: %w", local, err)
		}
	}
	return story.ID, nil
}

// SeedDir loads every document in dir and seeds it, returning the new story IDs
// in file order.
func SeedDir(ctx context.Context, author ports.GraphAuthor, dir string) ([]int64, error) {
	docs, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(docs))
	for _, doc := range docs {
		id, err := Seed(ctx, author, doc)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", doc.Path, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
