// Package whiteboard keeps the local drawing surface consistent with the room's ordered draw
// event stream.
//
// Local strokes are rendered immediately (optimistically) and the caller emits the matching
// frame afterwards; remote strokes are rendered from inbound frames. The surface content is
// always the result of applying the ordered events since the last clear or full replay.
package whiteboard

import (
	"sync"

	"github.com/mcdev12/roomsync/go/internal/protocol"
)

const (
	DefaultColor     = "#2f8f5b"
	DefaultLineWidth = 3.0

	replaySender = "\x00replay"
)

// Point is a surface coordinate
type Point struct {
	X float64
	Y float64
}

// Style is the stroke style of a point or segment
type Style struct {
	Color     string
	LineWidth float64
}

// Renderer draws on the surface
type Renderer interface {
	DrawPoint(p Point, style Style)
	DrawSegment(from, to Point, style Style)
	Clear()
}

// Replicator applies local and remote draw events to a Renderer
type Replicator struct {
	mu       sync.Mutex
	renderer Renderer

	// Local pointer tracking
	drawing   bool
	lastLocal *Point
	style     Style

	// Remote pen position per sender
	lastRemote map[string]Point
}

// NewReplicator creates a replicator with the default stroke style
func NewReplicator(renderer Renderer) *Replicator {
	return &Replicator{
		renderer:   renderer,
		style:      Style{Color: DefaultColor, LineWidth: DefaultLineWidth},
		lastRemote: make(map[string]Point),
	}
}

// Style returns the current local stroke style
func (r *Replicator) Style() Style {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.style
}

// SetStyle changes the local stroke style. An empty color or a non-positive width keeps
// the current value.
func (r *Replicator) SetStyle(style Style) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if style.Color != "" {
		r.style.Color = style.Color
	}
	if style.LineWidth > 0 {
		r.style.LineWidth = style.LineWidth
	}
}

// Drawing reports whether the local pointer is down
func (r *Replicator) Drawing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.drawing
}

// ApplyLocal renders a local pointer action with the current style and returns the event
// the caller should send. ok is false when the action has no effect (a move or release
// while the pointer is up) and nothing must be sent.
func (r *Replicator) ApplyLocal(kind protocol.FrameType, p Point) (event protocol.DrawEvent, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch kind {
	case protocol.FrameTypeDrawStart:
		r.drawing = true
		r.lastLocal = &p
		r.renderer.DrawPoint(p, r.style)
		return r.eventLocked(kind, p), true

	case protocol.FrameTypeDrawMove:
		if !r.drawing {
			return protocol.DrawEvent{}, false
		}
		if r.lastLocal != nil {
			r.renderer.DrawSegment(*r.lastLocal, p, r.style)
		}
		r.lastLocal = &p
		return r.eventLocked(kind, p), true

	case protocol.FrameTypeDrawEnd:
		if !r.drawing {
			return protocol.DrawEvent{}, false
		}
		r.drawing = false
		r.lastLocal = nil
		return protocol.DrawEvent{Type: kind}, true

	case protocol.FrameTypeClearBoard:
		r.renderer.Clear()
		return protocol.DrawEvent{Type: kind}, true
	}

	return protocol.DrawEvent{}, false
}

func (r *Replicator) eventLocked(kind protocol.FrameType, p Point) protocol.DrawEvent {
	return protocol.DrawEvent{
		Type: kind,
		Payload: &protocol.DrawPayload{
			X:         p.X,
			Y:         p.Y,
			Color:     r.style.Color,
			LineWidth: r.style.LineWidth,
		},
	}
}

// ApplyRemote renders an event drawn by another user. It never touches the local pointer
// state; each sender has its own pen position.
func (r *Replicator) ApplyRemote(sender string, event protocol.DrawEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applyRemoteLocked(sender, event)
}

func (r *Replicator) applyRemoteLocked(sender string, event protocol.DrawEvent) {
	switch event.Type {
	case protocol.FrameTypeClearBoard:
		r.renderer.Clear()

	case protocol.FrameTypeDrawStart:
		if event.Payload == nil {
			return
		}
		p := Point{X: event.Payload.X, Y: event.Payload.Y}
		r.renderer.DrawPoint(p, remoteStyle(event.Payload))
		r.lastRemote[sender] = p

	case protocol.FrameTypeDrawMove:
		if event.Payload == nil {
			return
		}
		p := Point{X: event.Payload.X, Y: event.Payload.Y}
		if last, ok := r.lastRemote[sender]; ok {
			r.renderer.DrawSegment(last, p, remoteStyle(event.Payload))
		}
		r.lastRemote[sender] = p

	case protocol.FrameTypeDrawEnd:
		delete(r.lastRemote, sender)
	}
}

// ReplayFrom rebuilds the surface from an ordered event log: the surface is cleared, every
// remote pen position is forgotten and the events are applied in order.
func (r *Replicator) ReplayFrom(events []protocol.DrawEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.renderer.Clear()
	r.lastRemote = make(map[string]Point)
	for _, event := range events {
		r.applyRemoteLocked(replaySender, event)
	}
	delete(r.lastRemote, replaySender)
}

// Clear wipes the surface without touching pointer or pen state
func (r *Replicator) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renderer.Clear()
}

// Reset wipes the surface and forgets all pointer and pen state; used when leaving a room
func (r *Replicator) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renderer.Clear()
	r.drawing = false
	r.lastLocal = nil
	r.lastRemote = make(map[string]Point)
}

func remoteStyle(p *protocol.DrawPayload) Style {
	style := Style{Color: p.Color, LineWidth: p.LineWidth}
	if style.Color == "" {
		style.Color = DefaultColor
	}
	if style.LineWidth <= 0 {
		style.LineWidth = DefaultLineWidth
	}
	return style
}
