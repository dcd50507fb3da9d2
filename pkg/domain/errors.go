package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	// ErrNotFound is returned when a story, node, choice or progress record is absent.
	ErrNotFound = errors.New("not found")

	// ErrPreconditionFailed is returned when a story cannot be played in its current shape
	// (unpublished, or without a starting node).
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrInvalidTransition is returned when a choice does not leave the stated current node.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrPersistenceFailed is returned when a progress or stats write fails.
	ErrPersistenceFailed = errors.New("persistence failed")
)

// Entity names used in OperationError.
const (
	EntityStory    = "story"
	EntityNode     = "node"
	EntityChoice   = "choice"
	EntityProgress = "progress"
	EntityStats    = "stats"
)

// OperationError carries the failing operation and entity along with the error kind.
type OperationError struct {
	Op     string // e.g. "start_story"
	Kind   error  // one of the Err* sentinels
	Entity string // e.g. "story"
	ID     int64
	Reason string
	Err    error // underlying cause, if any
}

func (e *OperationError) Error() string {
	msg := e.Op + ": "
	if e.Entity != "" {
		msg += fmt.Sprintf("%s %d: ", e.Entity, e.ID)
	}
	if e.Reason != "" {
		msg += e.Reason
	} else {
		msg += e.Kind.Error()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports whether target is the kind of this error.
func (e *OperationError) Is(target error) bool {
	return target == e.Kind
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// NotFound builds an ErrNotFound for entity id.
func NotFound(op, entity string, id int64) error {
	return &OperationError{Op: op, Kind: ErrNotFound, Entity: entity, ID: id, Reason: entity + " not found"}
}

// PreconditionFailed builds an ErrPreconditionFailed for entity id.
func PreconditionFailed(op, entity string, id int64, reason string) error {
	return &OperationError{Op: op, Kind: ErrPreconditionFailed, Entity: entity, ID: id, Reason: reason}
}

// InvalidTransition builds an ErrInvalidTransition for a choice.
func InvalidTransition(op string, choiceID, fromNodeID, currentNodeID int64) error {
	return &OperationError{
		Op:     op,
		Kind:   ErrInvalidTransition,
		Entity: EntityChoice,
		ID:     choiceID,
		Reason: fmt.Sprintf("leaves node %d, not current node %d", fromNodeID, currentNodeID),
	}
}

// PersistenceFailed wraps a store failure.
func PersistenceFailed(op, entity string, id int64, cause error) error {
	return &OperationError{Op: op, Kind: ErrPersistenceFailed, Entity: entity, ID: id, Reason: "write failed", Err: cause}
}
