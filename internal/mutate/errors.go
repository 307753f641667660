package mutate

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error code shared by CLI JSON output and the HTTP API.
type Code string

const (
	CodeNotFound          Code = "NOT_FOUND"
	CodeLocked            Code = "LOCKED"
	CodeInvalidTarget     Code = "INVALID_TARGET"
	CodeCycleDetected     Code = "CYCLE_DETECTED"
	CodeHasChildren       Code = "HAS_CHILDREN"
	CodeInvalidProperty   Code = "INVALID_PROPERTY"
	CodePersistenceFailed Code = "PERSISTENCE_FAILED"
	CodeInternal          Code = "INTERNAL_ERROR"
)

// Coder is implemented by errors that carry a Code. Errors from other packages
// (persistence failures) join the same code space by implementing it.
type Coder interface {
	ErrorCode() Code
}

// CodeOf walks err's chain and returns the first Code found, or CodeInternal.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var c Coder
	if errors.As(err, &c) {
		return c.ErrorCode()
	}
	return CodeInternal
}

type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (NotFoundError) ErrorCode() Code { return CodeNotFound }

type LockedError struct {
	NodeID string
}

func (e LockedError) Error() string {
	return fmt.Sprintf("node is locked: %s", e.NodeID)
}

func (LockedError) ErrorCode() Code { return CodeLocked }

type InvalidTargetError struct {
	NodeID   string
	TargetID string
	Reason   string
}

func (e InvalidTargetError) Error() string {
	if e.TargetID == "" {
		return fmt.Sprintf("invalid target for %s: %s", e.NodeID, e.Reason)
	}
	return fmt.Sprintf("invalid target %s for %s: %s", e.TargetID, e.NodeID, e.Reason)
}

func (InvalidTargetError) ErrorCode() Code { return CodeInvalidTarget }

type CycleError struct {
	NodeID   string
	TargetID string
}

func (e CycleError) Error() string {
	return fmt.Sprintf("cycle detected: %s is a descendant of %s", e.TargetID, e.NodeID)
}

func (CycleError) ErrorCode() Code { return CodeCycleDetected }

type HasChildrenError struct {
	NodeID string
	Count  int
}

func (e HasChildrenError) Error() string {
	return fmt.Sprintf("node %s has %d children (use cascade or promote)", e.NodeID, e.Count)
}

func (HasChildrenError) ErrorCode() Code { return CodeHasChildren }

type InvalidPropertyError struct {
	NodeID       string
	DefinitionID string
	Name         string
}

func (e InvalidPropertyError) Error() string {
	return fmt.Sprintf("property %q is not declared by %s (node %s)", e.Name, e.DefinitionID, e.NodeID)
}

func (InvalidPropertyError) ErrorCode() Code { return CodeInvalidProperty }
