package layout

import (
	"go.uber.org/zap"

	"tangent-backend/internal/domain/graph"
)

// ResolveCollisions computes corrective moves after the node with the given
// id has grown into its neighbors. Unpinned neighbors are pushed along the
// minimum-translation vector, capped to MaxStep so repeated calls converge
// smoothly. When every overlap is with pinned nodes the source itself is
// nudged away instead, respecting the user's manual placement. In the mixed
// case unpinned neighbors move normally and pinned ones receive only a
// PinnedNudge-capped correction.
//
// The returned actions carry no pinned overwrite; automatic moves never
// change a node's pinned flag.
func (e *Engine) ResolveCollisions(g *graph.Graph, id string) []graph.MoveNode {
	source := g.Node(id)
	if source == nil {
		return nil
	}
	sourceRect := RectFor(source, e.SizeOf(source))

	type hit struct {
		id     string
		dx, dy float64
		pinned bool
	}
	var hits []hit
	anyUnpinned := false

	for _, otherID := range g.IDs() {
		if otherID == id {
			continue
		}
		other := g.Node(otherID)
		otherRect := RectFor(other, e.SizeOf(other))
		dx, dy := otherRect.overlap(sourceRect, e.cfg.Gap)
		if dx == 0 && dy == 0 {
			continue
		}
		if !other.Pinned {
			anyUnpinned = true
		}
		hits = append(hits, hit{id: otherID, dx: dx, dy: dy, pinned: other.Pinned})
	}

	if len(hits) == 0 {
		return nil
	}

	if !anyUnpinned {
		// Only pinned overlaps: move the grown node out of the way instead.
		var dx, dy float64
		for _, h := range hits {
			dx -= h.dx
			dy -= h.dy
		}
		dx = clamp(dx, e.cfg.MaxStep)
		dy = clamp(dy, e.cfg.MaxStep)
		e.logger.Debug("nudging grown node away from pinned neighbors",
			zap.String("node", id), zap.Int("overlaps", len(hits)))
		return []graph.MoveNode{{ID: id, DX: dx, DY: dy}}
	}

	moves := make([]graph.MoveNode, 0, len(hits))
	for _, h := range hits {
		limit := e.cfg.MaxStep
		if h.pinned {
			limit = e.cfg.PinnedNudge
		}
		moves = append(moves, graph.MoveNode{
			ID: h.id,
			DX: clamp(h.dx, limit),
			DY: clamp(h.dy, limit),
		})
	}
	return moves
}

// clamp limits v to [-limit, limit].
func clamp(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}
