package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tangent-backend/internal/domain/history"
	"tangent-backend/internal/domain/layout"
	"tangent-backend/internal/domain/node"
)

type recordingBroadcaster struct {
	reasons []string
}

func (b *recordingBroadcaster) GraphChanged(reason string) {
	b.reasons = append(b.reasons, reason)
}

func newService(t *testing.T) (*GraphService, *layout.DimensionStore, *recordingBroadcaster) {
	t.Helper()
	hist := history.NewManager(history.DefaultCapacity, nil)
	dims := layout.NewDimensionStore()
	engine := layout.NewEngine(dims, layout.DefaultConfig(), nil, nil)
	b := &recordingBroadcaster{}
	return NewGraphService(hist, engine, dims, nil, b), dims, b
}

func seed(t *testing.T, svc *GraphService, id string, typ node.Type, x, y float64) {
	t.Helper()
	require.NoError(t, svc.AddNode(&node.Node{
		ID: id, Type: typ, X: x, Y: y,
		ParentIDs: []string{}, ChildrenIDs: []string{},
	}))
}

func TestAddNode_RejectsInvalidType(t *testing.T) {
	svc, _, _ := newService(t)
	err := svc.AddNode(&node.Node{ID: "x", Type: node.Type("bogus")})
	assert.Error(t, err)
	assert.Equal(t, 0, svc.Snapshot().Len())
}

func TestCreateNodeBelow_PlacesLinkedChild(t *testing.T) {
	svc, _, _ := newService(t)
	seed(t, svc, "parent", node.TypeInput, 100, 100)

	child, err := svc.CreateNodeBelow("parent", node.TypeResponse, "")
	require.NoError(t, err)

	g := svc.Snapshot()
	assert.True(t, g.Node("parent").HasChild(child.ID))
	assert.True(t, g.Node(child.ID).HasParent("parent"))
	assert.Greater(t, g.Node(child.ID).Y, 100.0)

	_, err = svc.CreateNodeBelow("missing", node.TypeResponse, "")
	assert.Error(t, err)
}

func TestNoOpMutationsNeitherSnapshotNorNotify(t *testing.T) {
	svc, _, b := newService(t)
	seed(t, svc, "a", node.TypeContext, 0, 0)
	baselineHist := svc.History().Len()
	baselineNotify := len(b.reasons)

	svc.PatchNode("missing", node.Patch{Value: node.StringPtr("x")})
	svc.MoveNode("missing", 5, 5, nil)
	svc.LinkNodes("a", "missing")

	assert.Equal(t, baselineHist, svc.History().Len())
	assert.Equal(t, baselineNotify, len(b.reasons))
}

func TestUndo_RoundTripsThroughHistory(t *testing.T) {
	svc, _, _ := newService(t)
	seed(t, svc, "a", node.TypeContext, 0, 0)
	svc.PatchNode("a", node.Patch{Value: node.StringPtr("edited")})

	require.True(t, svc.Undo())
	assert.Equal(t, "", svc.Snapshot().Node("a").Value)

	require.True(t, svc.Undo())
	assert.False(t, svc.Snapshot().Has("a"))

	assert.False(t, svc.Undo())
}

func TestDelete_ForgetsDimensionsOfRemovedNodes(t *testing.T) {
	svc, dims, _ := newService(t)
	seed(t, svc, "root", node.TypeInput, 0, 0)
	seed(t, svc, "child", node.TypeResponse, 0, 600)
	svc.LinkNodes("root", "child")
	dims.Report("root", node.Size{Width: 100, Height: 50})
	dims.Report("child", node.Size{Width: 100, Height: 50})

	svc.DeleteNode("root")

	_, ok := dims.Dimensions("root")
	assert.False(t, ok)
	_, ok = dims.Dimensions("child")
	assert.False(t, ok)
}

func TestDeleteDetach_ForgetsOnlyTheDetachedNode(t *testing.T) {
	svc, dims, _ := newService(t)
	seed(t, svc, "root", node.TypeInput, 0, 0)
	seed(t, svc, "child", node.TypeResponse, 0, 600)
	svc.LinkNodes("root", "child")
	dims.Report("root", node.Size{Width: 100, Height: 50})
	dims.Report("child", node.Size{Width: 100, Height: 50})

	svc.DeleteNodeDetach("root")

	_, ok := dims.Dimensions("root")
	assert.False(t, ok)
	_, ok = dims.Dimensions("child")
	assert.True(t, ok)
	assert.Empty(t, svc.Snapshot().Node("child").ParentIDs)
}

func TestReportDimensions_ResolvesOverlapWithoutHistory(t *testing.T) {
	svc, _, b := newService(t)
	// Two nodes close enough that a grown measurement overlaps the neighbor.
	seed(t, svc, "grower", node.TypeContext, 0, 0)
	seed(t, svc, "neighbor", node.TypeContext, 320, 0)
	baselineHist := svc.History().Len()

	svc.ReportDimensions("grower", node.Size{Width: 400, Height: 120})

	g := svc.Snapshot()
	assert.Greater(t, g.Node("neighbor").X, 320.0)
	// Corrective nudges are not undoable edits.
	assert.Equal(t, baselineHist, svc.History().Len())
	assert.Contains(t, b.reasons, "collision resolved")
}

func TestReportDimensions_SuppressedRightAfterUndo(t *testing.T) {
	svc, _, _ := newService(t)
	seed(t, svc, "grower", node.TypeContext, 0, 0)
	seed(t, svc, "neighbor", node.TypeContext, 320, 0)

	svc.PatchNode("grower", node.Patch{Value: node.StringPtr("edit")})
	require.True(t, svc.Undo())

	svc.ReportDimensions("grower", node.Size{Width: 400, Height: 120})

	// The re-render measurement right after undo must not shove neighbors.
	assert.Equal(t, 320.0, svc.Snapshot().Node("neighbor").X)
}

func TestSubmitQueryPatch_SnapshotsPostPatchState(t *testing.T) {
	svc, _, _ := newService(t)
	seed(t, svc, "input", node.TypeInput, 0, 0)

	hist := svc.History()
	hist.BeginSubmission()
	svc.SubmitQueryPatch("input", "what now?")
	svc.PatchNode("input", node.Patch{Err: node.StringPtr("transient")})
	hist.EndSubmission()

	require.True(t, svc.Undo())
	restored := svc.Snapshot().Node("input")
	assert.Equal(t, "what now?", restored.Value)
	assert.Empty(t, restored.Err)
}
