// Package services wires the pure domain pieces into the editor's mutation
// API: every edit flows through here, picking up history snapshots, layout
// placement and change notifications on the way to the reducer.
package services

import (
	"sync"

	"go.uber.org/zap"

	"tangent-backend/internal/domain/chat"
	"tangent-backend/internal/domain/graph"
	"tangent-backend/internal/domain/history"
	"tangent-backend/internal/domain/layout"
	"tangent-backend/internal/domain/node"
	pkgerrors "tangent-backend/pkg/errors"
)

// Broadcaster is notified after every effective mutation so the view layer
// can re-pull the snapshot. Implementations must not block.
type Broadcaster interface {
	GraphChanged(reason string)
}

// GraphService owns the canonical graph and serializes every mutation
// through the reducer. There is a single logical mutator; the mutex only
// guards against the cascade orchestrator's goroutines patching streamed
// chunks concurrently with user edits.
type GraphService struct {
	mu        sync.Mutex
	current   *graph.Graph
	history   *history.Manager
	engine    *layout.Engine
	dims      *layout.DimensionStore
	logger    *zap.Logger
	broadcast Broadcaster
}

// NewGraphService creates a service over an empty graph.
func NewGraphService(
	hist *history.Manager,
	engine *layout.Engine,
	dims *layout.DimensionStore,
	logger *zap.Logger,
	broadcast Broadcaster,
) *GraphService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphService{
		current:   graph.New(),
		history:   hist,
		engine:    engine,
		dims:      dims,
		logger:    logger,
		broadcast: broadcast,
	}
}

// Snapshot returns the current graph. Graph values are never mutated in
// place, so the returned reference is a stable point-in-time view.
func (s *GraphService) Snapshot() *graph.Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// History exposes the undo manager, used by the cascade orchestrator to
// bracket submission bursts.
func (s *GraphService) History() *history.Manager {
	return s.history
}

// Engine exposes the placement engine for callers that need to position new
// nodes relative to existing ones.
func (s *GraphService) Engine() *layout.Engine {
	return s.engine
}

// AddNode inserts an already-constructed node.
func (s *GraphService) AddNode(n *node.Node) error {
	if n == nil || !n.Type.Valid() {
		return pkgerrors.NewValidation("node must have a valid type")
	}
	s.dispatch(graph.AddNode{Node: n}, "node added")
	return nil
}

// CreateNodeAt constructs a node of the given type, finds it a free
// position near the target via the placement engine, and inserts it.
func (s *GraphService) CreateNodeAt(t node.Type, x, y float64, value string, bias layout.Direction) (*node.Node, error) {
	if !t.Valid() {
		return nil, pkgerrors.NewValidation("unknown node type")
	}
	px, py := s.engine.FreePosition(s.Snapshot(), x, y, t.DefaultSize(), bias)
	n := node.New(t, px, py, value)
	s.dispatch(graph.AddNode{Node: n}, "node created")
	return n, nil
}

// CreateNodeBelow constructs a node of the given type placed under its
// parent and links it in one step.
func (s *GraphService) CreateNodeBelow(parentID string, t node.Type, value string) (*node.Node, error) {
	g := s.Snapshot()
	parent := g.Node(parentID)
	if parent == nil {
		return nil, pkgerrors.NewNotFound("parent node not found")
	}
	px, py := s.engine.PlaceBelow(g, parent, t)
	n := node.New(t, px, py, value)
	s.dispatch(graph.AddNode{Node: n}, "node created")
	s.dispatch(graph.Link{FromID: parentID, ToID: n.ID}, "nodes linked")
	return n, nil
}

// PatchNode merges partial fields into a node. Unknown ids are silent
// no-ops, matching the reducer's totality.
func (s *GraphService) PatchNode(id string, patch node.Patch) {
	s.dispatch(graph.PatchNode{ID: id, Patch: patch}, "node patched")
}

// LinkNodes connects fromID -> toID idempotently.
func (s *GraphService) LinkNodes(fromID, toID string) {
	s.dispatch(graph.Link{FromID: fromID, ToID: toID}, "nodes linked")
}

// MoveNode translates a node. pinned, when non-nil, overwrites the pinned
// flag; the view layer passes true on the first pixel of a user drag.
func (s *GraphService) MoveNode(id string, dx, dy float64, pinned *bool) {
	s.dispatch(graph.MoveNode{ID: id, DX: dx, DY: dy, Pinned: pinned}, "node moved")
}

// DeleteNode removes a node and everything exclusively dependent on it.
func (s *GraphService) DeleteNode(id string) {
	before := s.Snapshot()
	s.dispatch(graph.DeleteCascade{ID: id}, "cascade delete")
	s.forgetRemoved(before)
}

// DeleteNodeDetach removes exactly one node, reconnecting nothing but
// scrubbing the node from its neighbors' link lists.
func (s *GraphService) DeleteNodeDetach(id string) {
	before := s.Snapshot()
	s.dispatch(graph.DeleteDetach{ID: id}, "detach delete")
	s.forgetRemoved(before)
}

// Undo rewinds to the most recent snapshot. Returns false when history is
// empty.
func (s *GraphService) Undo() bool {
	snapshot, ok := s.history.Undo()
	if !ok {
		return false
	}
	s.mu.Lock()
	s.current = s.current.Apply(graph.Restore{Snapshot: snapshot})
	s.mu.Unlock()
	s.notify("undo")
	return true
}

// BuildTranscript linearizes startID's ancestors from the current graph.
func (s *GraphService) BuildTranscript(startID string) chat.Transcript {
	return chat.BuildTranscript(s.Snapshot(), startID)
}

// ResponseLevels groups the response descendants of startID by generation.
func (s *GraphService) ResponseLevels(startID string) [][]string {
	return s.Snapshot().ResponseLevels(startID)
}

// ReportDimensions records a fresh measurement from the view layer and
// resolves any collisions the growth introduced. Resolution is skipped in
// the brief window after an undo, when size changes are re-render artifacts
// rather than user intent.
func (s *GraphService) ReportDimensions(id string, size node.Size) {
	s.dims.Report(id, size)
	if s.history.LayoutSuppressed() {
		s.logger.Debug("collision resolution suppressed after undo", zap.String("node", id))
		return
	}
	moves := s.engine.ResolveCollisions(s.Snapshot(), id)
	if len(moves) == 0 {
		return
	}
	// Corrective moves are layout plumbing, not edits: they bypass history
	// so a capacity-bounded undo stack is not flooded by nudges.
	s.mu.Lock()
	for _, m := range moves {
		s.current = s.current.Apply(m)
	}
	s.mu.Unlock()
	s.notify("collision resolved")
}

// dispatch runs one action through the reducer with a pre-mutation history
// snapshot. No-ops (same graph reference back) neither snapshot nor notify.
func (s *GraphService) dispatch(a graph.Action, reason string) {
	s.mu.Lock()
	before := s.current
	next := before.Apply(a)
	if next == before {
		s.mu.Unlock()
		s.logger.Debug("ignored mutation for missing node", zap.String("reason", reason))
		return
	}
	s.history.BeforeMutation(before)
	s.current = next
	s.mu.Unlock()
	s.notify(reason)
}

// dispatchSubmitted is dispatch for the query patch of a submission: the
// history snapshot is deferred to after the patch so undo lands on the
// submitted query.
func (s *GraphService) dispatchSubmitted(a graph.Action, reason string) {
	s.mu.Lock()
	next := s.current.Apply(a)
	if next == s.current {
		s.mu.Unlock()
		return
	}
	s.current = next
	s.history.CaptureSubmitted(next)
	s.mu.Unlock()
	s.notify(reason)
}

// SubmitQueryPatch records the submitted query on an input node with the
// deferred-snapshot semantics of a submission bracket.
func (s *GraphService) SubmitQueryPatch(id, query string) {
	s.dispatchSubmitted(graph.PatchNode{
		ID:    id,
		Patch: node.Patch{Value: node.StringPtr(query)},
	}, "query submitted")
}

func (s *GraphService) forgetRemoved(before *graph.Graph) {
	after := s.Snapshot()
	if s.dims == nil {
		return
	}
	for _, id := range before.IDs() {
		if !after.Has(id) {
			s.dims.Forget(id)
		}
	}
}

func (s *GraphService) notify(reason string) {
	if s.broadcast != nil {
		s.broadcast.GraphChanged(reason)
	}
}
