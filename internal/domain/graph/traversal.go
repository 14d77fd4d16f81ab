package graph

import (
	"tangent-backend/internal/domain/node"
)

// ResponseLevels explores children breadth-first from startID and groups
// every reachable response node by response depth: the number of
// response-node boundaries crossed on the way from the start. Non-response
// nodes pass through without advancing depth. Level k holds the k-th
// "generation" of dependent answers, which lets a cascade refresh one
// generation in parallel before touching the next.
//
// The start node itself is never included. A visited set guards against
// cyclic references.
func (g *Graph) ResponseLevels(startID string) [][]string {
	start := g.Node(startID)
	if start == nil {
		return nil
	}

	type entry struct {
		id     string
		rdepth int
	}

	var levels [][]string
	visited := map[string]bool{startID: true}
	queue := make([]entry, 0, len(start.ChildrenIDs))
	for _, childID := range start.ChildrenIDs {
		queue = append(queue, entry{id: childID, rdepth: 0})
	}

	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]
		if visited[e.id] {
			continue
		}
		visited[e.id] = true

		n := g.Node(e.id)
		if n == nil {
			continue
		}

		next := e.rdepth
		if n.Type == node.TypeResponse {
			for len(levels) <= e.rdepth {
				levels = append(levels, nil)
			}
			levels[e.rdepth] = append(levels[e.rdepth], e.id)
			next = e.rdepth + 1
		}
		for _, childID := range n.ChildrenIDs {
			if !visited[childID] {
				queue = append(queue, entry{id: childID, rdepth: next})
			}
		}
	}

	return levels
}

// Ancestors returns every node reachable by walking ParentIDs transitively
// from startID, deduplicated, excluding the start node. Cycles are defended
// against with the visited set.
func (g *Graph) Ancestors(startID string) []string {
	start := g.Node(startID)
	if start == nil {
		return nil
	}
	var out []string
	visited := map[string]bool{startID: true}
	stack := append([]string(nil), start.ParentIDs...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		visited[id] = true
		n := g.Node(id)
		if n == nil {
			continue
		}
		out = append(out, id)
		stack = append(stack, n.ParentIDs...)
	}
	return out
}
