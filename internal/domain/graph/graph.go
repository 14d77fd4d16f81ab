// Package graph holds the canonical node store and the pure reducer that is
// the only way the store changes. Every mutation kind is an Action; Apply
// returns a fresh graph value, so callers can keep point-in-time snapshots
// simply by keeping old references.
package graph

import (
	"sort"

	"tangent-backend/internal/domain/node"
)

// Graph maps node id to node. The zero value is not usable; construct with
// New or Restore.
type Graph struct {
	nodes map[string]*node.Node
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*node.Node)}
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id string) *node.Node {
	return g.nodes[id]
}

// Has reports whether a node with the given id exists.
func (g *Graph) Has(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Len returns the node count.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// IDs returns all node ids in stable (sorted) order.
func (g *Graph) IDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Nodes returns the nodes keyed by id. The map is a fresh copy but the
// node pointers are shared; treat them as read-only.
func (g *Graph) Nodes() map[string]*node.Node {
	out := make(map[string]*node.Node, len(g.nodes))
	for id, n := range g.nodes {
		out[id] = n
	}
	return out
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	c := &Graph{nodes: make(map[string]*node.Node, len(g.nodes))}
	for id, n := range g.nodes {
		c.nodes[id] = n.Clone()
	}
	return c
}
