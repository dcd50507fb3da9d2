package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStoryStart         EventType = "story_start"
	EventChoice             EventType = "choice"
	EventCompletion         EventType = "completion"
	EventPersistenceFailure EventType = "persistence_failure"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// SessionEvent describes a step taken by a player (or an anonymous reader) in a story.
type SessionEvent struct {
	EventBase
	StoryID  int64  `json:"story_id"`
	PlayerID int64  `json:"player_id,omitempty"`
	NodeID   int64  `json:"node_id"`
	ChoiceID int64  `json:"choice_id,omitempty"`
	Category string `json:"category,omitempty"`
	Err      error  `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnStoryStart         func(context.Context, *SessionEvent)
	OnChoice             func(context.Context, *SessionEvent)
	OnCompletion         func(context.Context, *SessionEvent)
	OnPersistenceFailure func(context.Context, *SessionEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnStoryStart:         chain(h.OnStoryStart, other.OnStoryStart),
		OnChoice:             chain(h.OnChoice, other.OnChoice),
		OnCompletion:         chain(h.OnCompletion, other.OnCompletion),
		OnPersistenceFailure: chain(h.OnPersistenceFailure, other.OnPersistenceFailure),
	}
}

func chain(a, b func(context.Context, *SessionEvent)) func(context.Context, *SessionEvent) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e *SessionEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}
