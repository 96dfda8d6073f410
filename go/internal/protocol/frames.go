package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Frame is the envelope of every message exchanged over the room connection
type Frame struct {
	Type    FrameType       `json:"type"`              // Frame type
	Payload json.RawMessage `json:"payload"`           // Type-specific payload
	Sender  string          `json:"sender,omitempty"`  // Set by the server on inbound frames
	RoomID  string          `json:"room_id,omitempty"` // Set by the server on inbound frames
}

// FrameType represents the type discriminator of a frame
type FrameType string

const (
	FrameTypeInitialState   FrameType = "initial_state"
	FrameTypeUserListUpdate FrameType = "user_list_update"
	FrameTypeTextMessage    FrameType = "text_message"
	FrameTypeDirectMessage  FrameType = "direct_message"
	FrameTypeDrawStart      FrameType = "draw_start"
	FrameTypeDrawMove       FrameType = "draw_move"
	FrameTypeDrawEnd        FrameType = "draw_end"
	FrameTypeClearBoard     FrameType = "clear_board"
	FrameTypeTypingStart    FrameType = "typing_start"
	FrameTypeTypingStop     FrameType = "typing_stop"
)

// IsDraw reports whether the frame type belongs to the whiteboard event family
func (t FrameType) IsDraw() bool {
	switch t {
	case FrameTypeDrawStart, FrameTypeDrawMove, FrameTypeDrawEnd, FrameTypeClearBoard:
		return true
	}
	return false
}

// User is the public metadata of a room member
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Room is one entry of the room listing endpoint
type Room struct {
	ID          string `json:"id"`
	ClientCount int    `json:"clientCount"`
}

// DrawPayload carries the point and stroke style of draw_start and draw_move
type DrawPayload struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Color     string  `json:"color,omitempty"`
	LineWidth float64 `json:"lineWidth,omitempty"`
}

// DrawEvent is one entry of the whiteboard event log.
// Payload is nil for draw_end and clear_board.
type DrawEvent struct {
	Type    FrameType    `json:"type"`
	Payload *DrawPayload `json:"payload"`
}

// WhiteboardState is the ordered event log of a room's drawing surface
type WhiteboardState struct {
	Events []DrawEvent `json:"events"`
}

// InitialStatePayload is the snapshot sent by the server right after joining
type InitialStatePayload struct {
	Users      []User           `json:"users"`
	Whiteboard *WhiteboardState `json:"whiteboard,omitempty"`
}

// DirectMessagePayload is the payload of direct_message
type DirectMessagePayload struct {
	RecipientID string `json:"recipient_id"`
	Content     string `json:"content"`
}

// Decode parses a raw text frame
func Decode(data []byte) (*Frame, error) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if frame.Type == "" {
		return nil, ErrMissingType
	}
	return &frame, nil
}

// Encode serializes a frame for the wire
func Encode(frame Frame) ([]byte, error) {
	if len(frame.Payload) == 0 {
		frame.Payload = json.RawMessage("null")
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return data, nil
}

// isNull reports whether a raw payload is absent or JSON null
func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
