package whiteboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/roomsync/go/internal/protocol"
)

func drawStart(x, y float64, color string, width float64) protocol.DrawEvent {
	return protocol.DrawEvent{Type: protocol.FrameTypeDrawStart, Payload: &protocol.DrawPayload{X: x, Y: y, Color: color, LineWidth: width}}
}

func drawMove(x, y float64, color string, width float64) protocol.DrawEvent {
	return protocol.DrawEvent{Type: protocol.FrameTypeDrawMove, Payload: &protocol.DrawPayload{X: x, Y: y, Color: color, LineWidth: width}}
}

func drawEnd() protocol.DrawEvent   { return protocol.DrawEvent{Type: protocol.FrameTypeDrawEnd} }
func clearBoard() protocol.DrawEvent { return protocol.DrawEvent{Type: protocol.FrameTypeClearBoard} }

func TestReplicator_ApplyLocal(t *testing.T) {
	surface := NewSurface()
	r := NewReplicator(surface)
	r.SetStyle(Style{Color: "#000", LineWidth: 5})

	_, ok := r.ApplyLocal(protocol.FrameTypeDrawMove, Point{X: 1, Y: 1})
	assert.False(t, ok, "move with the pointer up is ignored")
	_, ok = r.ApplyLocal(protocol.FrameTypeDrawEnd, Point{})
	assert.False(t, ok, "release with the pointer up is ignored")
	assert.Zero(t, surface.Len())

	event, ok := r.ApplyLocal(protocol.FrameTypeDrawStart, Point{X: 10, Y: 10})
	require.True(t, ok)
	assert.Equal(t, drawStart(10, 10, "#000", 5), event)
	assert.True(t, r.Drawing())

	event, ok = r.ApplyLocal(protocol.FrameTypeDrawMove, Point{X: 20, Y: 10})
	require.True(t, ok)
	assert.Equal(t, drawMove(20, 10, "#000", 5), event)

	event, ok = r.ApplyLocal(protocol.FrameTypeDrawEnd, Point{})
	require.True(t, ok)
	assert.Equal(t, drawEnd(), event)
	assert.False(t, r.Drawing())

	style := Style{Color: "#000", LineWidth: 5}
	assert.Equal(t, []Op{
		{Kind: OpPoint, From: Point{X: 10, Y: 10}, Style: style},
		{Kind: OpSegment, From: Point{X: 10, Y: 10}, To: Point{X: 20, Y: 10}, Style: style},
	}, surface.Ops())

	event, ok = r.ApplyLocal(protocol.FrameTypeClearBoard, Point{})
	require.True(t, ok)
	assert.Equal(t, clearBoard(), event)
	assert.Zero(t, surface.Len())
}

func TestReplicator_SetStyleKeepsInvalidFields(t *testing.T) {
	r := NewReplicator(NewSurface())
	assert.Equal(t, Style{Color: DefaultColor, LineWidth: DefaultLineWidth}, r.Style())

	r.SetStyle(Style{Color: "", LineWidth: 8})
	assert.Equal(t, Style{Color: DefaultColor, LineWidth: 8}, r.Style())

	r.SetStyle(Style{Color: "#fff", LineWidth: -1})
	assert.Equal(t, Style{Color: "#fff", LineWidth: 8}, r.Style())
}

func TestReplicator_RemoteDoesNotTouchLocalPointer(t *testing.T) {
	surface := NewSurface()
	r := NewReplicator(surface)

	_, ok := r.ApplyLocal(protocol.FrameTypeDrawStart, Point{X: 0, Y: 0})
	require.True(t, ok)

	r.ApplyRemote("u1", drawStart(50, 50, "#f00", 2))
	r.ApplyRemote("u1", drawEnd())

	assert.True(t, r.Drawing())
	_, ok = r.ApplyLocal(protocol.FrameTypeDrawMove, Point{X: 5, Y: 0})
	require.True(t, ok)

	ops := surface.Ops()
	require.Len(t, ops, 3)
	assert.Equal(t, Op{Kind: OpSegment, From: Point{X: 0, Y: 0}, To: Point{X: 5, Y: 0}, Style: r.Style()}, ops[2],
		"local segment continues from the local pen, not the remote one")
}

func TestReplicator_RemotePenPerSender(t *testing.T) {
	surface := NewSurface()
	r := NewReplicator(surface)

	// Two users draw at the same time; their frames interleave.
	r.ApplyRemote("u1", drawStart(0, 0, "#f00", 2))
	r.ApplyRemote("u2", drawStart(100, 100, "#00f", 4))
	r.ApplyRemote("u1", drawMove(10, 0, "#f00", 2))
	r.ApplyRemote("u2", drawMove(110, 100, "#00f", 4))

	red := Style{Color: "#f00", LineWidth: 2}
	blue := Style{Color: "#00f", LineWidth: 4}
	assert.Equal(t, []Op{
		{Kind: OpPoint, From: Point{X: 0, Y: 0}, Style: red},
		{Kind: OpPoint, From: Point{X: 100, Y: 100}, Style: blue},
		{Kind: OpSegment, From: Point{X: 0, Y: 0}, To: Point{X: 10, Y: 0}, Style: red},
		{Kind: OpSegment, From: Point{X: 100, Y: 100}, To: Point{X: 110, Y: 100}, Style: blue},
	}, surface.Ops())
}

func TestReplicator_RemoteMoveWithoutStart(t *testing.T) {
	surface := NewSurface()
	r := NewReplicator(surface)

	r.ApplyRemote("u1", drawMove(5, 5, "#000", 1))
	assert.Zero(t, surface.Len(), "no segment without a known pen position")

	r.ApplyRemote("u1", drawMove(6, 6, "#000", 1))
	assert.Equal(t, 1, surface.Len())

	r.ApplyRemote("u1", drawEnd())
	r.ApplyRemote("u1", drawMove(7, 7, "#000", 1))
	assert.Equal(t, 1, surface.Len(), "draw_end forgets the pen position")

	r.ApplyRemote("u1", protocol.DrawEvent{Type: protocol.FrameTypeDrawStart})
	assert.Equal(t, 1, surface.Len(), "start without payload is ignored")
}

func TestReplicator_RemoteDefaultsMissingStyle(t *testing.T) {
	surface := NewSurface()
	r := NewReplicator(surface)

	r.ApplyRemote("u1", drawStart(1, 2, "", 0))

	require.Len(t, surface.Ops(), 1)
	assert.Equal(t, Style{Color: DefaultColor, LineWidth: DefaultLineWidth}, surface.Ops()[0].Style)
}

func TestReplicator_ReplayFromIsIdempotent(t *testing.T) {
	logs := map[string][]protocol.DrawEvent{
		"empty": {},
		"single stroke": {
			drawStart(10, 10, "#000", 3), drawMove(20, 20, "#000", 3), drawMove(30, 10, "#000", 3), drawEnd(),
		},
		"clear in the middle": {
			drawStart(1, 1, "#111", 1), drawMove(2, 2, "#111", 1), drawEnd(),
			clearBoard(),
			drawStart(5, 5, "#222", 2), drawMove(6, 5, "#222", 2), drawEnd(),
		},
		"unterminated stroke": {
			drawStart(0, 0, "#333", 3), drawMove(1, 0, "#333", 3),
		},
	}

	for name, events := range logs {
		t.Run(name, func(t *testing.T) {
			surface := NewSurface()
			r := NewReplicator(surface)

			r.ReplayFrom(events)
			first := surface.Ops()

			// Unrelated state in between must not leak into the next replay.
			r.ApplyRemote("u9", drawStart(999, 999, "#999", 9))
			r.ApplyRemote("u9", drawMove(998, 998, "#999", 9))

			r.ReplayFrom(events)
			assert.Equal(t, first, surface.Ops())
		})
	}
}

func TestReplicator_ReplayForgetsRemotePens(t *testing.T) {
	surface := NewSurface()
	r := NewReplicator(surface)

	r.ApplyRemote("u1", drawStart(0, 0, "#000", 1))
	r.ReplayFrom(nil)
	r.ApplyRemote("u1", drawMove(5, 5, "#000", 1))

	assert.Zero(t, surface.Len())
}

func TestReplicator_Reset(t *testing.T) {
	surface := NewSurface()
	r := NewReplicator(surface)

	r.ApplyLocal(protocol.FrameTypeDrawStart, Point{X: 1, Y: 1})
	r.ApplyRemote("u1", drawStart(2, 2, "#000", 1))
	r.Reset()

	assert.False(t, r.Drawing())
	assert.Zero(t, surface.Len())
	r.ApplyRemote("u1", drawMove(3, 3, "#000", 1))
	assert.Zero(t, surface.Len())
}
