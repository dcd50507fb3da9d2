/*
Package domain contains the core entities of the storygraph engine.

A Story is a directed graph: Nodes are narrative units and Choices are lettered,
directed edges between two Nodes of the same Story. Players move through a Story
one Choice at a time; their position is captured by a Progress record and their
lifetime achievements by Stats.

This package is pure: no I/O, no persistence, no logging. Adapters and the
runtime depend on it, never the other way around.

# Key Entities

  - Story, Node, Choice: the authored graph.
  - Progress, ChoiceHistory: a player's position and the path taken.
  - Stats: per-player aggregates updated on completion.
  - NodeView, ChoiceResult: what callers get back from the session engine.
  - ValidationResult: structural findings for a Story.
*/
package domain
