// Package chat turns a node's ancestor chain into the ordered, role-tagged
// transcript an LLM backend consumes.
package chat

import (
	"fmt"
	"strings"

	"tangent-backend/internal/domain/graph"
	"tangent-backend/internal/domain/node"
)

// SystemInstruction is the fixed first turn of every transcript.
const SystemInstruction = "You are the reasoning engine behind a branching " +
	"conversation canvas. Each user turn may merge several canvas nodes; every " +
	"node is wrapped in a <node> tag carrying its id, type and parent ids so " +
	"you can tell provenance apart. Answer the most recent question using all " +
	"provided context."

// separator joins merged node payloads inside one turn. It carries no
// semantic meaning of its own; provenance lives in the node tags.
const separator = "\n\n---\n\n"

// Part is one element of a mixed text/image turn.
type Part struct {
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// Turn is a single transcript entry. Content holds the payload for
// text-only turns; Parts replaces it when the merged level contains image
// nodes (one text part, then one image part per image node).
type Turn struct {
	Role    node.Role `json:"role"`
	Content string    `json:"content,omitempty"`
	Parts   []Part    `json:"parts,omitempty"`
}

// Transcript is the ordered turn list, root-most context first.
type Transcript []Turn

// BuildTranscript linearizes the ancestors of startID into a transcript.
//
// Ancestors are walked depth-first through ParentIDs: depth 0 is the start
// node, each parent hop increases depth, and multiple parents fan out at
// the same depth so merging branches collapse level by level. A node is
// recorded once per depth level (not globally); a visited set on the
// recursion path defends against cycles, which are not a valid input shape
// but must not hang the builder. Output is deterministic for a given graph.
func BuildTranscript(g *graph.Graph, startID string) Transcript {
	start := g.Node(startID)
	if start == nil {
		return Transcript{{Role: node.RoleSystem, Content: SystemInstruction}}
	}

	levels := collectLevels(g, start)

	turns := make(Transcript, 0, len(levels)+1)
	turns = append(turns, Turn{Role: node.RoleSystem, Content: SystemInstruction})
	// Deepest level first: root-most context opens the conversation and the
	// start node closes it.
	for i := len(levels) - 1; i >= 0; i-- {
		turns = append(turns, mergeLevel(levels[i]))
	}
	return turns
}

// collectLevels gathers ancestors grouped by parent-hop depth.
func collectLevels(g *graph.Graph, start *node.Node) [][]*node.Node {
	var levels [][]*node.Node
	seen := make([]map[string]bool, 0)

	var walk func(n *node.Node, depth int, path map[string]bool)
	walk = func(n *node.Node, depth int, path map[string]bool) {
		if path[n.ID] {
			return
		}
		for len(levels) <= depth {
			levels = append(levels, nil)
			seen = append(seen, make(map[string]bool))
		}
		if !seen[depth][n.ID] {
			seen[depth][n.ID] = true
			levels[depth] = append(levels[depth], n)
		}
		path[n.ID] = true
		for _, pid := range n.ParentIDs {
			if p := g.Node(pid); p != nil {
				walk(p, depth+1, path)
			}
		}
		delete(path, n.ID)
	}

	walk(start, 0, make(map[string]bool))
	return levels
}

// mergeLevel collapses all nodes sharing a depth into one turn. The turn is
// an assistant turn iff the level carries a response node; mixed levels do
// not occur in well-formed graphs, and a response wins when they do.
func mergeLevel(nodes []*node.Node) Turn {
	role := node.RoleUser
	var texts []string
	var images []*node.Node

	for _, n := range nodes {
		if n.Type.ChatRole() == node.RoleAssistant {
			role = node.RoleAssistant
		}
		if n.Type == node.TypeImageContext {
			images = append(images, n)
			continue
		}
		texts = append(texts, wrapNode(n))
	}

	content := strings.Join(texts, separator)
	if len(images) == 0 {
		return Turn{Role: role, Content: content}
	}

	parts := make([]Part, 0, len(images)+1)
	if content != "" {
		parts = append(parts, Part{Text: content})
	}
	for _, img := range images {
		parts = append(parts, Part{ImageURL: img.Value})
	}
	return Turn{Role: role, Parts: parts}
}

// wrapNode tags a node's payload with its provenance.
func wrapNode(n *node.Node) string {
	return fmt.Sprintf("<node id=%q type=%q parents=%q>\n%s\n</node>",
		n.ID, n.Type, strings.Join(n.ParentIDs, ","), n.Value)
}
