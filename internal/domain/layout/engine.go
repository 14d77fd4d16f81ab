package layout

import (
	"sort"

	"go.uber.org/zap"

	"tangent-backend/internal/domain/graph"
	"tangent-backend/internal/domain/node"
)

// Direction biases the spiral search toward one side of the target before
// the rest of a ring is explored.
type Direction string

const (
	DirBelow Direction = "below"
	DirRight Direction = "right"
	DirLeft  Direction = "left"
	DirAbove Direction = "above"
)

// Config tunes the placement engine.
type Config struct {
	// Gap is the minimum clearance between node rectangles.
	Gap float64
	// RingStep is the pixel spacing between successive search rings.
	RingStep float64
	// MaxRings bounds the spiral before falling back to the target.
	MaxRings int
	// MaxStep caps how far an unpinned neighbor is pushed per resolution
	// call; repeated calls converge smoothly instead of teleporting nodes.
	MaxStep float64
	// PinnedNudge caps the corrective move applied to pinned nodes.
	PinnedNudge float64
}

// DefaultConfig returns the tuning used by the editor.
func DefaultConfig() Config {
	return Config{
		Gap:         24,
		RingStep:    60,
		MaxRings:    8,
		MaxStep:     18,
		PinnedNudge: 2,
	}
}

// Engine performs free-position search and local collision resolution over
// a graph snapshot. It never mutates the graph; collision resolution
// returns move actions for the caller to dispatch.
type Engine struct {
	dims       DimensionSource
	cfg        Config
	logger     *zap.Logger
	onFallback func()
}

// NewEngine creates a placement engine. onFallback, if non-nil, is invoked
// whenever the spiral search gives up and accepts an overlap.
func NewEngine(dims DimensionSource, cfg Config, logger *zap.Logger, onFallback func()) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{dims: dims, cfg: cfg, logger: logger, onFallback: onFallback}
}

// SizeOf returns the measured size for a node, or its type default.
func (e *Engine) SizeOf(n *node.Node) node.Size {
	if e.dims != nil {
		if sz, ok := e.dims.Dimensions(n.ID); ok {
			return sz
		}
	}
	return n.Type.DefaultSize()
}

// FreePosition finds a non-overlapping position for a rectangle of the
// given size, starting at the exact target and spiraling outward in fixed
// rings biased toward dir. When the bounded search exhausts, the original
// target is returned; an overlapping node beats no node.
func (e *Engine) FreePosition(g *graph.Graph, x, y float64, size node.Size, dir Direction) (float64, float64) {
	if e.isFree(g, Rect{X: x, Y: y, Width: size.Width, Height: size.Height}) {
		return x, y
	}

	for ring := 1; ring <= e.cfg.MaxRings; ring++ {
		for _, off := range e.ringOffsets(ring, dir) {
			cx := x + off.dx*e.cfg.RingStep
			cy := y + off.dy*e.cfg.RingStep
			if e.isFree(g, Rect{X: cx, Y: cy, Width: size.Width, Height: size.Height}) {
				return cx, cy
			}
		}
	}

	e.logger.Warn("free-position search exhausted, accepting overlap",
		zap.Float64("x", x), zap.Float64("y", y), zap.Int("rings", e.cfg.MaxRings))
	if e.onFallback != nil {
		e.onFallback()
	}
	return x, y
}

// PlaceBelow computes a free position for a new child of the given type,
// anchored under its parent.
func (e *Engine) PlaceBelow(g *graph.Graph, parent *node.Node, t node.Type) (float64, float64) {
	parentSize := e.SizeOf(parent)
	target := parent.Y + parentSize.Height + e.cfg.Gap*2
	return e.FreePosition(g, parent.X, target, t.DefaultSize(), DirBelow)
}

func (e *Engine) isFree(g *graph.Graph, candidate Rect) bool {
	for _, other := range g.Nodes() {
		r := RectFor(other, e.SizeOf(other))
		if candidate.Intersects(r, e.cfg.Gap) {
			return false
		}
	}
	return true
}

type offset struct {
	dx, dy float64
}

// ringOffsets enumerates the cells of a square ring in RingStep units,
// ordered so cells on the biased side come first. Ordering is deterministic
// for a given ring and direction.
func (e *Engine) ringOffsets(ring int, dir Direction) []offset {
	var cells []offset
	for i := -ring; i <= ring; i++ {
		for j := -ring; j <= ring; j++ {
			if maxInt(absInt(i), absInt(j)) == ring {
				cells = append(cells, offset{dx: float64(i), dy: float64(j)})
			}
		}
	}

	bx, by := biasVector(dir)
	score := func(o offset) float64 {
		// Higher dot product with the bias direction wins.
		return o.dx*bx + o.dy*by
	}
	sort.SliceStable(cells, func(a, b int) bool {
		sa, sb := score(cells[a]), score(cells[b])
		if sa != sb {
			return sa > sb
		}
		if cells[a].dy != cells[b].dy {
			return cells[a].dy < cells[b].dy
		}
		return cells[a].dx < cells[b].dx
	})
	return cells
}

func biasVector(dir Direction) (float64, float64) {
	switch dir {
	case DirBelow:
		return 0, 1
	case DirAbove:
		return 0, -1
	case DirRight:
		return 1, 0
	case DirLeft:
		return -1, 0
	}
	return 0, 1
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func absInt(i int) int {
	if i < 0 {
		return -i
	}
	return i
}
