package mutate

import (
	"strings"

	"pagetree-cli/internal/registry"
	"pagetree-cli/internal/store"
	"pagetree-cli/internal/tree"
)

// Target is a validated move destination.
type Target struct {
	ParentID *string
	Index    int
}

// ValidateMove gates move(nodeID, parentID, index). Checks run in a fixed order so the same
// bad request always reports the same error: NotFound, Locked, InvalidTarget, CycleDetected.
// On success the requested target is returned unchanged.
func ValidateMove(db *store.DB, reg registry.Registry, nodeID string, parentID *string, index int) (Target, error) {
	nodeID = strings.TrimSpace(nodeID)
	n, ok := db.FindNode(nodeID)
	if !ok {
		return Target{}, NotFoundError{Kind: "node", ID: nodeID}
	}
	if n.Locked {
		return Target{}, LockedError{NodeID: n.ID}
	}
	if parentID == nil {
		return Target{ParentID: nil, Index: index}, nil
	}

	pid := strings.TrimSpace(*parentID)
	if pid == n.ID {
		return Target{}, InvalidTargetError{NodeID: n.ID, TargetID: pid, Reason: "a node cannot be its own parent"}
	}
	parent, ok := db.FindNode(pid)
	if !ok {
		return Target{}, InvalidTargetError{NodeID: n.ID, TargetID: pid, Reason: "parent not found"}
	}
	if parent.PageID != n.PageID {
		return Target{}, InvalidTargetError{NodeID: n.ID, TargetID: pid, Reason: "parent is on another page"}
	}
	if !registry.AcceptsChildren(reg, parent.DefinitionID) {
		return Target{}, InvalidTargetError{NodeID: n.ID, TargetID: pid, Reason: "parent does not accept children"}
	}
	if tree.IsDescendant(db.NodesOnPage(n.PageID), n.ID, pid) {
		return Target{}, CycleError{NodeID: n.ID, TargetID: pid}
	}
	return Target{ParentID: &pid, Index: index}, nil
}

// validateParent checks that parentID can receive a new child on pageID.
func validateParent(db *store.DB, reg registry.Registry, nodeID, pageID string, parentID *string) (*string, error) {
	if parentID == nil {
		return nil, nil
	}
	pid := strings.TrimSpace(*parentID)
	parent, ok := db.FindNode(pid)
	if !ok {
		return nil, InvalidTargetError{NodeID: nodeID, TargetID: pid, Reason: "parent not found"}
	}
	if parent.PageID != pageID {
		return nil, InvalidTargetError{NodeID: nodeID, TargetID: pid, Reason: "parent is on another page"}
	}
	if !registry.AcceptsChildren(reg, parent.DefinitionID) {
		return nil, InvalidTargetError{NodeID: nodeID, TargetID: pid, Reason: "parent does not accept children"}
	}
	return &pid, nil
}
