package cascade

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tangent-backend/internal/application/services"
	"tangent-backend/internal/domain/chat"
	"tangent-backend/internal/domain/history"
	"tangent-backend/internal/domain/layout"
	"tangent-backend/internal/domain/node"
	"tangent-backend/internal/infrastructure/llm"
	pkgerrors "tangent-backend/pkg/errors"
)

func newRig(t *testing.T) (*services.GraphService, *llm.MockStreamer, *Orchestrator) {
	t.Helper()
	hist := history.NewManager(history.DefaultCapacity, nil)
	dims := layout.NewDimensionStore()
	engine := layout.NewEngine(dims, layout.DefaultConfig(), nil, nil)
	svc := services.NewGraphService(hist, engine, dims, nil, nil)
	mock := llm.NewMockStreamer()
	orch := NewOrchestrator(svc, mock, Config{}, nil, nil)
	return svc, mock, orch
}

// seed inserts a node with a fixed id at a collision-free position.
func seed(t *testing.T, svc *services.GraphService, id string, typ node.Type, value string, y float64) {
	t.Helper()
	n := &node.Node{
		ID: id, Type: typ, Value: value, Y: y,
		ParentIDs: []string{}, ChildrenIDs: []string{},
	}
	require.NoError(t, svc.AddNode(n))
}

// lastUserContent flattens the final user turn of a transcript.
func lastUserContent(tr chat.Transcript) string {
	for i := len(tr) - 1; i >= 0; i-- {
		if tr[i].Role == node.RoleUser {
			return tr[i].Content
		}
	}
	return ""
}

func responseChild(t *testing.T, svc *services.GraphService, parentID string) *node.Node {
	t.Helper()
	g := svc.Snapshot()
	parent := g.Node(parentID)
	require.NotNil(t, parent)
	for _, cid := range parent.ChildrenIDs {
		if c := g.Node(cid); c != nil && c.Type == node.TypeResponse {
			return c
		}
	}
	return nil
}

func TestOnInputSubmit_AnswersAndExtendsBranch(t *testing.T) {
	svc, mock, orch := newRig(t)
	seed(t, svc, "ctx-1", node.TypeContext, "Today is Monday", 0)
	seed(t, svc, "input-1", node.TypeInput, "", 400)
	svc.LinkNodes("ctx-1", "input-1")

	mock.Reply = func(chat.Transcript) (string, error) { return "It is Monday.", nil }

	require.NoError(t, orch.OnInputSubmit(context.Background(), "What day is it?", "input-1"))

	g := svc.Snapshot()
	assert.Equal(t, "What day is it?", g.Node("input-1").Value)

	resp := responseChild(t, svc, "input-1")
	require.NotNil(t, resp)
	assert.Equal(t, "It is Monday.", resp.Value)
	assert.Empty(t, resp.Err)

	// A fresh empty input hangs under the answer so the branch can continue.
	var followUp *node.Node
	for _, cid := range resp.ChildrenIDs {
		if c := g.Node(cid); c != nil && c.Type == node.TypeInput {
			followUp = c
		}
	}
	require.NotNil(t, followUp)
	assert.Empty(t, followUp.Value)

	calls := mock.Calls()
	require.Len(t, calls, 1)
	tr := calls[0].Transcript
	require.Len(t, tr, 3)
	assert.Equal(t, node.RoleSystem, tr[0].Role)
	assert.Contains(t, tr[1].Content, "Today is Monday")
	assert.Contains(t, tr[2].Content, "What day is it?")
}

func TestOnInputSubmit_ValidatesCaller(t *testing.T) {
	svc, _, orch := newRig(t)
	seed(t, svc, "ctx-1", node.TypeContext, "background", 0)

	err := orch.OnInputSubmit(context.Background(), "q", "nope")
	assert.True(t, pkgerrors.IsNotFound(err))

	err = orch.OnInputSubmit(context.Background(), "q", "ctx-1")
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestOnInputSubmit_ReusesResponseChild(t *testing.T) {
	svc, mock, orch := newRig(t)
	seed(t, svc, "input-1", node.TypeInput, "", 0)

	mock.Reply = func(chat.Transcript) (string, error) { return "first", nil }
	require.NoError(t, orch.OnInputSubmit(context.Background(), "q1", "input-1"))
	first := responseChild(t, svc, "input-1")
	require.NotNil(t, first)

	mock.Reply = func(chat.Transcript) (string, error) { return "second", nil }
	require.NoError(t, orch.OnInputSubmit(context.Background(), "q1 edited", "input-1"))

	second := responseChild(t, svc, "input-1")
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "second", second.Value)

	// Still exactly one response child after the resubmission.
	count := 0
	g := svc.Snapshot()
	for _, cid := range g.Node("input-1").ChildrenIDs {
		if c := g.Node(cid); c != nil && c.Type == node.TypeResponse {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestCascade_RegeneratesGenerationsInOrder(t *testing.T) {
	svc, mock, orch := newRig(t)
	seed(t, svc, "input-1", node.TypeInput, "q1", 0)
	seed(t, svc, "resp-1", node.TypeResponse, "stale-1", 400)
	seed(t, svc, "input-2", node.TypeInput, "q2", 800)
	seed(t, svc, "resp-2", node.TypeResponse, "stale-2", 1200)
	seed(t, svc, "input-3", node.TypeInput, "q3", 1600)
	seed(t, svc, "resp-3", node.TypeResponse, "stale-3", 2000)
	svc.LinkNodes("input-1", "resp-1")
	svc.LinkNodes("resp-1", "input-2")
	svc.LinkNodes("input-2", "resp-2")
	svc.LinkNodes("resp-2", "input-3")
	svc.LinkNodes("input-3", "resp-3")

	mock.Reply = func(tr chat.Transcript) (string, error) {
		last := lastUserContent(tr)
		switch {
		case strings.Contains(last, "q3"):
			return "a3", nil
		case strings.Contains(last, "q2"):
			return "a2", nil
		default:
			return "a1", nil
		}
	}

	require.NoError(t, orch.OnInputSubmit(context.Background(), "q1", "input-1"))

	g := svc.Snapshot()
	assert.Equal(t, "a1", g.Node("resp-1").Value)
	assert.Equal(t, "a2", g.Node("resp-2").Value)
	assert.Equal(t, "a3", g.Node("resp-3").Value)

	calls := mock.Calls()
	require.Len(t, calls, 3)
	byQuestion := make(map[string]llm.RecordedCall)
	for _, c := range calls {
		last := lastUserContent(c.Transcript)
		switch {
		case strings.Contains(last, "q3"):
			byQuestion["q3"] = c
		case strings.Contains(last, "q2"):
			byQuestion["q2"] = c
		default:
			byQuestion["q1"] = c
		}
	}
	require.Len(t, byQuestion, 3)
	// Each generation settles before the next one starts.
	assert.False(t, byQuestion["q2"].StartedAt.Before(byQuestion["q1"].FinishedAt))
	assert.False(t, byQuestion["q3"].StartedAt.Before(byQuestion["q2"].FinishedAt))
}

func TestCascade_FailureIsIsolatedToItsSubtree(t *testing.T) {
	svc, mock, orch := newRig(t)
	seed(t, svc, "input-1", node.TypeInput, "q1", 0)
	seed(t, svc, "resp-1", node.TypeResponse, "stale-1", 400)
	seed(t, svc, "input-a", node.TypeInput, "qa", 800)
	seed(t, svc, "resp-a", node.TypeResponse, "stale-a", 1200)
	seed(t, svc, "input-a2", node.TypeInput, "qa2", 1600)
	seed(t, svc, "resp-a2", node.TypeResponse, "stale-a2", 2000)
	seed(t, svc, "input-b", node.TypeInput, "qb", 2400)
	seed(t, svc, "resp-b", node.TypeResponse, "stale-b", 2800)
	svc.LinkNodes("input-1", "resp-1")
	svc.LinkNodes("resp-1", "input-a")
	svc.LinkNodes("input-a", "resp-a")
	svc.LinkNodes("resp-a", "input-a2")
	svc.LinkNodes("input-a2", "resp-a2")
	svc.LinkNodes("resp-1", "input-b")
	svc.LinkNodes("input-b", "resp-b")

	mock.Reply = func(tr chat.Transcript) (string, error) {
		last := lastUserContent(tr)
		if strings.Contains(last, "qa") && !strings.Contains(last, "qa2") {
			return "", errors.New("backend down")
		}
		return "ok", nil
	}

	require.NoError(t, orch.OnInputSubmit(context.Background(), "q1", "input-1"))

	g := svc.Snapshot()
	assert.Equal(t, "backend down", g.Node("resp-a").Err)
	assert.Empty(t, g.Node("resp-a").Value)

	// The failed branch's descendant is skipped, not regenerated.
	assert.Equal(t, "stale-a2", g.Node("resp-a2").Value)
	for _, c := range mock.Calls() {
		assert.NotContains(t, lastUserContent(c.Transcript), "qa2")
	}

	// The sibling branch is untouched by the failure.
	assert.Equal(t, "ok", g.Node("resp-b").Value)
	assert.Empty(t, g.Node("resp-b").Err)
}

func TestCascade_SiblingBranchesOverlap(t *testing.T) {
	svc, mock, orch := newRig(t)
	seed(t, svc, "input-1", node.TypeInput, "q1", 0)
	seed(t, svc, "resp-1", node.TypeResponse, "stale-1", 400)
	seed(t, svc, "input-a", node.TypeInput, "qa", 800)
	seed(t, svc, "resp-a", node.TypeResponse, "stale-a", 1200)
	seed(t, svc, "input-b", node.TypeInput, "qb", 1600)
	seed(t, svc, "resp-b", node.TypeResponse, "stale-b", 2000)
	svc.LinkNodes("input-1", "resp-1")
	svc.LinkNodes("resp-1", "input-a")
	svc.LinkNodes("input-a", "resp-a")
	svc.LinkNodes("resp-1", "input-b")
	svc.LinkNodes("input-b", "resp-b")

	mock.Delay = 30 * time.Millisecond
	mock.Reply = func(chat.Transcript) (string, error) { return "ok", nil }

	require.NoError(t, orch.OnInputSubmit(context.Background(), "q1", "input-1"))

	require.Len(t, mock.Calls(), 3)
	assert.GreaterOrEqual(t, mock.PeakConcurrency(), 2)
}

func TestOnInputSubmit_StreamFailureLandsOnNode(t *testing.T) {
	svc, mock, orch := newRig(t)
	seed(t, svc, "input-1", node.TypeInput, "", 0)
	mock.FailWith = errors.New("no backend")

	require.NoError(t, orch.OnInputSubmit(context.Background(), "q1", "input-1"))

	resp := responseChild(t, svc, "input-1")
	require.NotNil(t, resp)
	assert.Equal(t, "no backend", resp.Err)
	assert.Empty(t, resp.Value)

	// No follow-up input under a failed response.
	g := svc.Snapshot()
	for _, cid := range resp.ChildrenIDs {
		if c := g.Node(cid); c != nil {
			assert.NotEqual(t, node.TypeInput, c.Type)
		}
	}
}

func TestOnInputSubmit_OneUndoStepPerSubmission(t *testing.T) {
	svc, mock, orch := newRig(t)
	seed(t, svc, "input-1", node.TypeInput, "", 0)
	mock.Reply = func(chat.Transcript) (string, error) { return "answer", nil }

	hist := svc.History()
	baseline := hist.Len()

	require.NoError(t, orch.OnInputSubmit(context.Background(), "q1", "input-1"))

	// The whole burst (patch, response node, link, streamed chunks,
	// follow-up input) collapses into a single snapshot.
	assert.Equal(t, baseline+1, hist.Len())

	require.True(t, svc.Undo())
	g := svc.Snapshot()
	input := g.Node("input-1")
	require.NotNil(t, input)
	assert.Equal(t, "q1", input.Value)
	assert.Empty(t, input.ChildrenIDs)
}

func TestRefresh_OneUndoStepPerRefresh(t *testing.T) {
	svc, mock, orch := newRig(t)
	input := &node.Node{
		ID: "input-1", Type: node.TypeInput, Value: "q1",
		ParentIDs: []string{}, ChildrenIDs: []string{"resp-1"},
	}
	resp := &node.Node{
		ID: "resp-1", Type: node.TypeResponse, Value: "old answer", Y: 400,
		ParentIDs: []string{"input-1"}, ChildrenIDs: []string{},
	}
	require.NoError(t, svc.AddNode(input))
	require.NoError(t, svc.AddNode(resp))

	// Single-byte chunks: every delivery lands as its own patch.
	mock.ChunkSize = 1
	mock.Reply = func(chat.Transcript) (string, error) { return "fresh", nil }

	hist := svc.History()
	baseline := hist.Len()

	require.NoError(t, orch.Refresh(context.Background(), "resp-1"))
	assert.Equal(t, "fresh", svc.Snapshot().Node("resp-1").Value)

	// The chunk burst collapses into a single snapshot.
	assert.Equal(t, baseline+1, hist.Len())

	// Undo restores the pre-refresh answer, not a partial chunk state.
	require.True(t, svc.Undo())
	g := svc.Snapshot()
	assert.Equal(t, "old answer", g.Node("resp-1").Value)
	assert.Empty(t, g.Node("resp-1").ChildrenIDs)
}

func TestSetConfig_SerializesSiblingsWhenRetuned(t *testing.T) {
	svc, mock, orch := newRig(t)
	seed(t, svc, "input-1", node.TypeInput, "q1", 0)
	seed(t, svc, "resp-1", node.TypeResponse, "stale-1", 400)
	seed(t, svc, "input-a", node.TypeInput, "qa", 800)
	seed(t, svc, "resp-a", node.TypeResponse, "stale-a", 1200)
	seed(t, svc, "input-b", node.TypeInput, "qb", 1600)
	seed(t, svc, "resp-b", node.TypeResponse, "stale-b", 2000)
	svc.LinkNodes("input-1", "resp-1")
	svc.LinkNodes("resp-1", "input-a")
	svc.LinkNodes("input-a", "resp-a")
	svc.LinkNodes("resp-1", "input-b")
	svc.LinkNodes("input-b", "resp-b")

	mock.Delay = 30 * time.Millisecond
	mock.Reply = func(chat.Transcript) (string, error) { return "ok", nil }

	orch.SetConfig(Config{MaxParallel: 1})

	require.NoError(t, orch.OnInputSubmit(context.Background(), "q1", "input-1"))

	require.Len(t, mock.Calls(), 3)
	assert.Equal(t, 1, mock.PeakConcurrency())
}

func TestRefresh_RebuildsOneResponseAndBelow(t *testing.T) {
	svc, mock, orch := newRig(t)
	seed(t, svc, "input-1", node.TypeInput, "q1", 0)
	seed(t, svc, "resp-1", node.TypeResponse, "stale-1", 400)
	seed(t, svc, "input-2", node.TypeInput, "q2", 800)
	seed(t, svc, "resp-2", node.TypeResponse, "stale-2", 1200)
	svc.LinkNodes("input-1", "resp-1")
	svc.LinkNodes("resp-1", "input-2")
	svc.LinkNodes("input-2", "resp-2")

	mock.Reply = func(tr chat.Transcript) (string, error) {
		if strings.Contains(lastUserContent(tr), "q2") {
			return "a2", nil
		}
		return "a1", nil
	}

	require.NoError(t, orch.Refresh(context.Background(), "resp-1"))

	g := svc.Snapshot()
	assert.Equal(t, "a1", g.Node("resp-1").Value)
	assert.Equal(t, "a2", g.Node("resp-2").Value)

	err := orch.Refresh(context.Background(), "input-1")
	assert.True(t, pkgerrors.IsValidation(err))
}
