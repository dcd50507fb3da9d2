/*
Package storygraph is a traversal and validation engine for branching stories.

A story is a directed graph: nodes hold narrative content and lettered choices
(A to D) lead from one node to another. Storygraph moves players through that
graph, persists their progress and aggregate stats, and checks stories for
structural defects such as unreachable nodes or dead ends.

# Architecture

The core is hexagonal. Stories are read through ports.GraphAccessor and
player state is written through ports.SessionStore; adapters exist for memory,
Redis and PostgreSQL. Transports (HTTP, MCP, the terminal player) sit on top of
the Storygraph facade and never reach into the engine directly.

# Usage

	sg := storygraph.New()

	doc, err := storyfile.Load("stories/cave.yaml")
	if err != nil {
		log.Fatal(err)
	}
	storyID, err := sg.Seed(ctx, doc)
	if err != nil {
		log.Fatal(err)
	}

	// Player 7 starts the story and takes the first choice.
	view, err := sg.StartStory(ctx, storyID, 7)
	if err != nil {
		log.Fatal(err)
	}
	result, err := sg.MakeChoice(ctx, domain.ChoiceRequest{
		CurrentNodeID: view.ID,
		ChoiceID:      view.Choices[0].ID,
		PlayerID:      7,
	})

Player 0 is anonymous: the engine renders nodes but never touches the store.

# Validation

Validate reports unreachable nodes, dead ends, missing or duplicated starting
nodes, missing endings, duplicate choice letters and choices that lead outside
the story. Validation never fails on a malformed story; only infrastructure
errors are returned.
*/
package storygraph
