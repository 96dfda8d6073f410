package protocol

import (
	"encoding/json"
	"fmt"
)

// ParsePayload parses frame data into the payload type matching frame.Type.
//
//	initial_state     -> InitialStatePayload
//	user_list_update  -> []User
//	text_message      -> string
//	direct_message    -> DirectMessagePayload (a bare string becomes its Content)
//	draw_start/move   -> DrawPayload
//	draw_end/clear    -> nil
//	typing_start/stop -> nil
//
// Unknown types return (nil, nil).
func ParsePayload(frame *Frame) (interface{}, error) {
	switch frame.Type {
	case FrameTypeInitialState:
		if isNull(frame.Payload) {
			return nil, fmt.Errorf("%s: %w", frame.Type, ErrMissingPayload)
		}
		var payload InitialStatePayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case FrameTypeUserListUpdate:
		var users []User
		if err := json.Unmarshal(frame.Payload, &users); err != nil {
			return nil, err
		}
		if users == nil {
			return nil, fmt.Errorf("%s: %w", frame.Type, ErrMissingPayload)
		}
		return users, nil

	case FrameTypeTextMessage:
		if isNull(frame.Payload) {
			return nil, fmt.Errorf("%s: %w", frame.Type, ErrMissingPayload)
		}
		var text string
		if err := json.Unmarshal(frame.Payload, &text); err != nil {
			return nil, err
		}
		return text, nil

	case FrameTypeDirectMessage:
		if isNull(frame.Payload) {
			return nil, fmt.Errorf("%s: %w", frame.Type, ErrMissingPayload)
		}
		var text string
		if err := json.Unmarshal(frame.Payload, &text); err == nil {
			return DirectMessagePayload{Content: text}, nil
		}
		var payload DirectMessagePayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case FrameTypeDrawStart, FrameTypeDrawMove:
		if isNull(frame.Payload) {
			return nil, fmt.Errorf("%s: %w", frame.Type, ErrMissingPayload)
		}
		var payload DrawPayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case FrameTypeDrawEnd, FrameTypeClearBoard, FrameTypeTypingStart, FrameTypeTypingStop:
		return nil, nil

	default:
		return nil, nil // Unknown frame type
	}
}

// DrawEventFromFrame converts a draw frame into a whiteboard event
func DrawEventFromFrame(frame *Frame) (DrawEvent, error) {
	if !frame.Type.IsDraw() {
		return DrawEvent{}, fmt.Errorf("frame type %q is not a draw event", frame.Type)
	}
	payload, err := ParsePayload(frame)
	if err != nil {
		return DrawEvent{}, err
	}
	event := DrawEvent{Type: frame.Type}
	if p, ok := payload.(DrawPayload); ok {
		event.Payload = &p
	}
	return event, nil
}

// DrawFrame builds draw_start, draw_move, draw_end or clear_board
func DrawFrame(event DrawEvent) Frame {
	frame := Frame{Type: event.Type, Payload: json.RawMessage("null")}
	if event.Payload != nil {
		raw, _ := json.Marshal(event.Payload) // plain struct, cannot fail
		frame.Payload = raw
	}
	return frame
}

// TextMessageFrame builds a room chat frame
func TextMessageFrame(text string) Frame {
	raw, _ := json.Marshal(text)
	return Frame{Type: FrameTypeTextMessage, Payload: raw}
}

// DirectMessageFrame builds a direct chat frame
func DirectMessageFrame(recipientID, content string) Frame {
	raw, _ := json.Marshal(DirectMessagePayload{RecipientID: recipientID, Content: content})
	return Frame{Type: FrameTypeDirectMessage, Payload: raw}
}

// TypingFrame builds typing_start or typing_stop
func TypingFrame(start bool) Frame {
	frameType := FrameTypeTypingStop
	if start {
		frameType = FrameTypeTypingStart
	}
	return Frame{Type: frameType, Payload: json.RawMessage("null")}
}
