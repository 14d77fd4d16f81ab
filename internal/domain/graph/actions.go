package graph

import (
	"tangent-backend/internal/domain/node"
)

// Action is the closed set of mutations the reducer understands.
type Action interface {
	isAction()
}

// AddNode inserts a node keyed by its id. Ids are generated fresh at
// creation, so no overwrite check is needed.
type AddNode struct {
	Node *node.Node
}

// PatchNode merges partial fields into an existing node. Missing id is a
// structural no-op.
type PatchNode struct {
	ID    string
	Patch node.Patch
}

// Link adds ToID to from's children and FromID to to's parents, each
// idempotently. Missing endpoints make it a no-op.
type Link struct {
	FromID string
	ToID   string
}

// MoveNode translates a node by a delta. When Pinned is non-nil the pinned
// flag is overwritten; a user drag pins on the first pixel, programmatic
// collision moves leave the flag alone.
type MoveNode struct {
	ID     string
	DX     float64
	DY     float64
	Pinned *bool
}

// DeleteCascade removes the target and everything exclusively dependent on
// it. A descendant with a surviving parent outside the sweep is kept, along
// with its whole subtree.
type DeleteCascade struct {
	ID string
}

// DeleteDetach removes exactly one node and scrubs it from every other
// node's link lists, leaving former neighbors intact.
type DeleteDetach struct {
	ID string
}

// Restore replaces the entire store with a deep copy of the snapshot.
type Restore struct {
	Snapshot *Graph
}

func (AddNode) isAction()       {}
func (PatchNode) isAction()     {}
func (Link) isAction()          {}
func (MoveNode) isAction()      {}
func (DeleteCascade) isAction() {}
func (DeleteDetach) isAction()  {}
func (Restore) isAction()       {}
