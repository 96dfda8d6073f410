package whiteboard

import (
	"fmt"
	"sync"
)

// OpKind is the kind of a rendered primitive
type OpKind string

const (
	OpPoint   OpKind = "point"
	OpSegment OpKind = "segment"
)

// Op is one rendered primitive. For points From is the point and To is zero.
type Op struct {
	Kind  OpKind
	From  Point
	To    Point
	Style Style
}

func (o Op) String() string {
	if o.Kind == OpPoint {
		return fmt.Sprintf("point (%g,%g) %s/%g", o.From.X, o.From.Y, o.Style.Color, o.Style.LineWidth)
	}
	return fmt.Sprintf("segment (%g,%g)->(%g,%g) %s/%g",
		o.From.X, o.From.Y, o.To.X, o.To.Y, o.Style.Color, o.Style.LineWidth)
}

// Surface is a Renderer that keeps the rendered content as a display list. Clear empties
// the list, so the list is exactly what is visible.
type Surface struct {
	mu     sync.RWMutex
	ops    []Op
	clears int
}

// NewSurface creates an empty surface
func NewSurface() *Surface {
	return &Surface{}
}

func (s *Surface) DrawPoint(p Point, style Style) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, Op{Kind: OpPoint, From: p, Style: style})
}

func (s *Surface) DrawSegment(from, to Point, style Style) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, Op{Kind: OpSegment, From: from, To: to, Style: style})
}

func (s *Surface) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = nil
	s.clears++
}

// Ops returns a copy of the visible primitives in render order
func (s *Surface) Ops() []Op {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ops := make([]Op, len(s.ops))
	copy(ops, s.ops)
	return ops
}

// Len returns the number of visible primitives
func (s *Surface) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ops)
}

// Clears returns how many times the surface was wiped
func (s *Surface) Clears() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clears
}
