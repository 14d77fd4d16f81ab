// Package node defines the atomic unit of the conversation graph: a typed,
// positioned node carrying a string payload and ordered parent/child links.
package node

import (
	"github.com/google/uuid"
)

// Type discriminates how a node's value is interpreted and which chat role
// it contributes to a transcript. The set is closed; every switch over it
// must be exhaustive.
type Type string

const (
	TypeContext      Type = "context"
	TypeInput        Type = "input"
	TypeResponse     Type = "response"
	TypeImageContext Type = "image-context"
	TypeDocument     Type = "document"
)

// Valid reports whether t is one of the known node types.
func (t Type) Valid() bool {
	switch t {
	case TypeContext, TypeInput, TypeResponse, TypeImageContext, TypeDocument:
		return true
	}
	return false
}

// Role is a chat transcript role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatRole maps a node type to the transcript role it plays. Responses are
// model output; everything else is material the user put on the canvas.
func (t Type) ChatRole() Role {
	switch t {
	case TypeResponse:
		return RoleAssistant
	case TypeContext, TypeInput, TypeImageContext, TypeDocument:
		return RoleUser
	}
	return RoleUser
}

// Size is a rendered extent in canvas pixels.
type Size struct {
	Width  float64
	Height float64
}

// DefaultSize returns the fallback extent used before the view layer has
// reported a measurement for a node of this type.
func (t Type) DefaultSize() Size {
	switch t {
	case TypeContext:
		return Size{Width: 260, Height: 120}
	case TypeInput:
		return Size{Width: 260, Height: 90}
	case TypeResponse:
		return Size{Width: 320, Height: 180}
	case TypeImageContext:
		return Size{Width: 240, Height: 240}
	case TypeDocument:
		return Size{Width: 280, Height: 150}
	}
	return Size{Width: 260, Height: 120}
}

// Node is a single vertex of the conversation graph.
//
// ParentIDs and ChildrenIDs are ordered and must stay referentially
// symmetric: if A lists B as a child, B lists A as a parent. The graph
// reducer owns that invariant; Node itself is a plain data carrier.
type Node struct {
	ID          string   `json:"id"`
	Type        Type     `json:"type"`
	X           float64  `json:"x"`
	Y           float64  `json:"y"`
	Value       string   `json:"value"`
	ParentIDs   []string `json:"parentIds"`
	ChildrenIDs []string `json:"childrenIds"`
	Pinned      bool     `json:"pinned"`
	Err         string   `json:"error,omitempty"`
}

// New creates a node with a fresh id. An empty value is the canonical
// "not yet answered" state for response nodes.
func New(t Type, x, y float64, value string) *Node {
	return &Node{
		ID:          uuid.New().String(),
		Type:        t,
		X:           x,
		Y:           y,
		Value:       value,
		ParentIDs:   []string{},
		ChildrenIDs: []string{},
	}
}

// Clone returns a deep copy; link slices are never shared between copies.
func (n *Node) Clone() *Node {
	c := *n
	c.ParentIDs = append([]string(nil), n.ParentIDs...)
	c.ChildrenIDs = append([]string(nil), n.ChildrenIDs...)
	return &c
}

// HasParent reports whether id is already listed as a parent.
func (n *Node) HasParent(id string) bool {
	return contains(n.ParentIDs, id)
}

// HasChild reports whether id is already listed as a child.
func (n *Node) HasChild(id string) bool {
	return contains(n.ChildrenIDs, id)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// Patch is a partial-field update merged into an existing node. Nil pointer
// fields are left untouched; non-nil slices replace the node's slices.
type Patch struct {
	Value       *string
	X           *float64
	Y           *float64
	Pinned      *bool
	Err         *string
	ParentIDs   []string
	ChildrenIDs []string
}

// ApplyTo merges the patch into n in place.
func (p Patch) ApplyTo(n *Node) {
	if p.Value != nil {
		n.Value = *p.Value
	}
	if p.X != nil {
		n.X = *p.X
	}
	if p.Y != nil {
		n.Y = *p.Y
	}
	if p.Pinned != nil {
		n.Pinned = *p.Pinned
	}
	if p.Err != nil {
		n.Err = *p.Err
	}
	if p.ParentIDs != nil {
		n.ParentIDs = append([]string(nil), p.ParentIDs...)
	}
	if p.ChildrenIDs != nil {
		n.ChildrenIDs = append([]string(nil), p.ChildrenIDs...)
	}
}

// String-pointer helpers for building patches at call sites.

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// Float64Ptr returns a pointer to f.
func Float64Ptr(f float64) *float64 { return &f }

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool { return &b }
