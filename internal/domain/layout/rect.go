// Package layout places nodes on the canvas: free-position search for new
// nodes and local collision resolution when existing nodes grow.
package layout

import (
	"tangent-backend/internal/domain/node"
)

// Rect is an axis-aligned rectangle in canvas coordinates.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// RectFor builds a node's rectangle from its position and size.
func RectFor(n *node.Node, size node.Size) Rect {
	return Rect{X: n.X, Y: n.Y, Width: size.Width, Height: size.Height}
}

// Intersects reports whether r and o overlap once each is inflated by
// gap/2, so two rectangles closer than gap count as colliding.
func (r Rect) Intersects(o Rect, gap float64) bool {
	return r.X < o.X+o.Width+gap &&
		o.X < r.X+r.Width+gap &&
		r.Y < o.Y+o.Height+gap &&
		o.Y < r.Y+r.Height+gap
}

// CenterX returns the horizontal center.
func (r Rect) CenterX() float64 { return r.X + r.Width/2 }

// CenterY returns the vertical center.
func (r Rect) CenterY() float64 { return r.Y + r.Height/2 }

// overlap returns the separation vector (dx, dy) that moves r fully clear
// of o along the cheaper axis, including the configured gap. Zero when the
// rectangles do not collide.
func (r Rect) overlap(o Rect, gap float64) (float64, float64) {
	if !r.Intersects(o, gap) {
		return 0, 0
	}

	// Penetration depth per axis, gap included.
	right := o.X + o.Width + gap - r.X  // push r rightwards
	left := r.X + r.Width + gap - o.X   // push r leftwards
	down := o.Y + o.Height + gap - r.Y  // push r downwards
	up := r.Y + r.Height + gap - o.Y    // push r upwards

	dx := right
	if left < right {
		dx = -left
	}
	dy := down
	if up < down {
		dy = -up
	}

	// Resolve along the axis with the smaller translation.
	if abs(dx) < abs(dy) {
		return dx, 0
	}
	return 0, dy
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
