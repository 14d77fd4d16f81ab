package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tangent-backend/internal/domain/node"
)

// link builds a graph by applying Link for each parent->child pair.
func link(g *Graph, pairs ...[2]string) *Graph {
	for _, p := range pairs {
		g = g.Apply(Link{FromID: p[0], ToID: p[1]})
	}
	return g
}

func add(g *Graph, nodes ...*node.Node) *Graph {
	for _, n := range nodes {
		g = g.Apply(AddNode{Node: n})
	}
	return g
}

func namedNode(id string, t node.Type) *node.Node {
	n := node.New(t, 0, 0, "")
	n.ID = id
	return n
}

// assertSymmetry checks the referential symmetry invariant over the whole
// graph: every child reference has a matching parent reference and no link
// points at a missing node.
func assertSymmetry(t *testing.T, g *Graph) {
	t.Helper()
	for id, n := range g.Nodes() {
		for _, childID := range n.ChildrenIDs {
			child := g.Node(childID)
			require.NotNil(t, child, "node %s references missing child %s", id, childID)
			assert.True(t, child.HasParent(id), "child %s missing parent ref to %s", childID, id)
		}
		for _, parentID := range n.ParentIDs {
			parent := g.Node(parentID)
			require.NotNil(t, parent, "node %s references missing parent %s", id, parentID)
			assert.True(t, parent.HasChild(id), "parent %s missing child ref to %s", parentID, id)
		}
	}
}

func TestApply_AddAndLink(t *testing.T) {
	g := add(New(), namedNode("a", node.TypeContext), namedNode("b", node.TypeInput))
	g = link(g, [2]string{"a", "b"})

	require.Equal(t, 2, g.Len())
	assert.Equal(t, []string{"b"}, g.Node("a").ChildrenIDs)
	assert.Equal(t, []string{"a"}, g.Node("b").ParentIDs)
	assertSymmetry(t, g)

	// Linking again must not duplicate entries.
	again := g.Apply(Link{FromID: "a", ToID: "b"})
	assert.Equal(t, []string{"b"}, again.Node("a").ChildrenIDs)
	assert.Equal(t, []string{"a"}, again.Node("b").ParentIDs)
}

func TestApply_MissingIDsAreNoOps(t *testing.T) {
	g := add(New(), namedNode("a", node.TypeContext))

	tests := []struct {
		name   string
		action Action
	}{
		{"patch missing", PatchNode{ID: "nope", Patch: node.Patch{Value: node.StringPtr("x")}}},
		{"link missing from", Link{FromID: "nope", ToID: "a"}},
		{"link missing to", Link{FromID: "a", ToID: "nope"}},
		{"move missing", MoveNode{ID: "nope", DX: 1, DY: 1}},
		{"cascade missing", DeleteCascade{ID: "nope"}},
		{"detach missing", DeleteDetach{ID: "nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := g.Apply(tt.action)
			assert.Same(t, g, next, "no-op must return the same graph reference")
		})
	}
}

func TestApply_PatchMergesFields(t *testing.T) {
	g := add(New(), namedNode("a", node.TypeInput))
	g = g.Apply(PatchNode{ID: "a", Patch: node.Patch{
		Value:  node.StringPtr("hello"),
		Pinned: node.BoolPtr(true),
	}})

	n := g.Node("a")
	assert.Equal(t, "hello", n.Value)
	assert.True(t, n.Pinned)
	assert.Equal(t, 0.0, n.X, "unpatched fields keep their values")
}

func TestApply_MoveTranslatesAndPins(t *testing.T) {
	g := add(New(), namedNode("a", node.TypeResponse))

	moved := g.Apply(MoveNode{ID: "a", DX: 10, DY: -4})
	assert.Equal(t, 10.0, moved.Node("a").X)
	assert.Equal(t, -4.0, moved.Node("a").Y)
	assert.False(t, moved.Node("a").Pinned, "programmatic move leaves pinned untouched")

	dragged := moved.Apply(MoveNode{ID: "a", DX: 1, DY: 0, Pinned: node.BoolPtr(true)})
	assert.True(t, dragged.Node("a").Pinned)
}

func TestApply_DeleteCascade_SweepsExclusiveSubtree(t *testing.T) {
	// a -> b -> c, all exclusive to a.
	g := add(New(),
		namedNode("a", node.TypeContext),
		namedNode("b", node.TypeInput),
		namedNode("c", node.TypeResponse),
	)
	g = link(g, [2]string{"a", "b"}, [2]string{"b", "c"})

	g = g.Apply(DeleteCascade{ID: "a"})
	assert.Equal(t, 0, g.Len())
}

func TestApply_DeleteCascade_PreservesSharedSubtrees(t *testing.T) {
	// a and b are both parents of x; x has a child y.
	// Deleting a must keep x (reachable through b) and y, and scrub a
	// from x's parents.
	g := add(New(),
		namedNode("a", node.TypeContext),
		namedNode("b", node.TypeContext),
		namedNode("x", node.TypeInput),
		namedNode("y", node.TypeResponse),
	)
	g = link(g, [2]string{"a", "x"}, [2]string{"b", "x"}, [2]string{"x", "y"})

	g = g.Apply(DeleteCascade{ID: "a"})

	require.True(t, g.Has("x"), "shared node must survive")
	require.True(t, g.Has("y"), "shared node's subtree must survive")
	assert.False(t, g.Has("a"))
	assert.Equal(t, []string{"b"}, g.Node("x").ParentIDs)
	assertSymmetry(t, g)
}

func TestApply_DeleteCascade_DiamondCollapses(t *testing.T) {
	// a fans out to b and c which rejoin at d. Deleting a dooms b and c,
	// and once both parents are doomed d goes too, even though neither
	// branch alone dooms it.
	g := add(New(),
		namedNode("a", node.TypeContext),
		namedNode("b", node.TypeInput),
		namedNode("c", node.TypeInput),
		namedNode("d", node.TypeResponse),
	)
	g = link(g, [2]string{"a", "b"}, [2]string{"a", "c"}, [2]string{"b", "d"}, [2]string{"c", "d"})

	g = g.Apply(DeleteCascade{ID: "a"})
	assert.Equal(t, 0, g.Len())
}

func TestApply_DeleteDetach_RemovesExactlyOne(t *testing.T) {
	g := add(New(),
		namedNode("a", node.TypeContext),
		namedNode("x", node.TypeInput),
		namedNode("y", node.TypeResponse),
	)
	g = link(g, [2]string{"a", "x"}, [2]string{"x", "y"})

	before := g.Len()
	g = g.Apply(DeleteDetach{ID: "x"})

	assert.Equal(t, before-1, g.Len())
	assert.False(t, g.Has("x"))
	assert.Empty(t, g.Node("a").ChildrenIDs, "former parent scrubbed")
	assert.Empty(t, g.Node("y").ParentIDs, "former child scrubbed")
	assertSymmetry(t, g)
}

func TestApply_RestoreReplacesStore(t *testing.T) {
	snapshot := add(New(), namedNode("a", node.TypeContext))
	g := add(New(), namedNode("z", node.TypeResponse))

	g = g.Apply(Restore{Snapshot: snapshot})
	assert.True(t, g.Has("a"))
	assert.False(t, g.Has("z"))

	// The restored graph must be a deep copy, insulated from later edits
	// to the snapshot's nodes.
	snapshot.Node("a").Value = "mutated"
	assert.Equal(t, "", g.Node("a").Value)
}

func TestApply_NeverMutatesReceiver(t *testing.T) {
	g := add(New(), namedNode("a", node.TypeInput), namedNode("b", node.TypeResponse))
	g = link(g, [2]string{"a", "b"})

	_ = g.Apply(PatchNode{ID: "a", Patch: node.Patch{Value: node.StringPtr("changed")}})
	_ = g.Apply(DeleteCascade{ID: "a"})
	_ = g.Apply(MoveNode{ID: "b", DX: 100, DY: 100})

	assert.Equal(t, "", g.Node("a").Value)
	assert.True(t, g.Has("b"))
	assert.Equal(t, 0.0, g.Node("b").X)
	assertSymmetry(t, g)
}
