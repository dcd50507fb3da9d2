/*
Package dsl provides a fluent Go builder for story graphs.

It is the programmatic twin of the storyfile format: nodes are named with
string keys, choices refer to their targets by key, and Build resolves the
keys into a storyfile.Document that can be validated or seeded into any graph
store. This is particularly useful for tests, fixtures and generated stories.

Example usage:

	b := dsl.NewStory("The Cave").Category("Adventure").Published()

	b.Node("entrance").
		Title("Entrance").
		Text("You stand at the mouth of a cave.").
		Start().
		Choice("A", "Step inside", "lake").
		Choice("B", "Walk away", "village")

	b.Node("lake").Text("An underground lake.").Ending()
	b.Node("village").Text("Perhaps another day.").Ending()

	graph, storyID, err := b.BuildGraph(ctx)
*/
package dsl
