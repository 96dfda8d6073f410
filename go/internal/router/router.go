// Package router applies inbound room frames to local state, in arrival order.
package router

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/roomsync/go/internal/protocol"
	"github.com/mcdev12/roomsync/go/internal/roomstate"
	"github.com/mcdev12/roomsync/go/internal/whiteboard"
)

const (
	defaultLookupTimeout = 5 * time.Second
	unknownSender        = "unknown"
)

// ChatMessage is a chat line ready to render
type ChatMessage struct {
	Text        string
	SenderID    string
	DisplayName string
	FromSelf    bool
	Direct      bool
}

// View receives the observable effects of routed frames
type View interface {
	UsersChanged(users []protocol.User, localID string)
	TypingChanged(text string)
	RenderChat(msg ChatMessage)
}

// Names resolves a user id to a display name; unknown ids resolve to themselves
type Names interface {
	DisplayName(ctx context.Context, userID string) string
}

// Board is the whiteboard side of the router
type Board interface {
	ApplyRemote(sender string, event protocol.DrawEvent)
	ReplayFrom(events []protocol.DrawEvent)
}

var _ Board = (*whiteboard.Replicator)(nil)

// Tap observes every decoded frame after it was applied
type Tap interface {
	Observe(frame *protocol.Frame)
}

// TapFunc adapts a function to Tap
type TapFunc func(frame *protocol.Frame)

func (f TapFunc) Observe(frame *protocol.Frame) { f(frame) }

// Router dispatches inbound frames to the room state store, the whiteboard and the view.
// Frames must be routed from one goroutine at a time; chat sender lookups run in the
// background and are dropped if the room changed in the meantime.
type Router struct {
	store *roomstate.Store
	names Names
	board Board
	view  View
	tap   Tap

	lookupTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Router
type Option func(*Router)

// WithTap sets the frame observer
func WithTap(tap Tap) Option {
	return func(r *Router) { r.tap = tap }
}

// WithLookupTimeout bounds each chat sender lookup
func WithLookupTimeout(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.lookupTimeout = d
		}
	}
}

// New creates a router
func New(store *roomstate.Store, names Names, board Board, view View, opts ...Option) *Router {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Router{
		store:         store,
		names:         names,
		board:         board,
		view:          view,
		lookupTimeout: defaultLookupTimeout,
		ctx:           ctx,
		cancel:        cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnFrame decodes and routes one raw inbound frame. Malformed frames are dropped.
func (r *Router) OnFrame(data []byte) {
	frame, err := protocol.Decode(data)
	if err != nil {
		log.Debug().Err(err).Msg("dropping malformed frame")
		return
	}
	r.Route(frame)
}

// Route applies one decoded frame
func (r *Router) Route(frame *protocol.Frame) {
	payload, err := protocol.ParsePayload(frame)
	if err != nil {
		log.Debug().Err(err).Str("frame_type", string(frame.Type)).Msg("dropping frame with invalid payload")
		return
	}

	localID := r.store.LocalUser()

	switch frame.Type {
	case protocol.FrameTypeInitialState:
		state := payload.(protocol.InitialStatePayload)
		r.store.SetUsers(state.Users)
		r.view.UsersChanged(r.store.Users(), localID)
		if state.Whiteboard != nil && state.Whiteboard.Events != nil {
			r.board.ReplayFrom(state.Whiteboard.Events)
		}

	case protocol.FrameTypeUserListUpdate:
		r.store.SetUsers(payload.([]protocol.User))
		r.view.UsersChanged(r.store.Users(), localID)
		// Names in the indicator may have changed
		r.view.TypingChanged(r.store.IndicatorText())

	case protocol.FrameTypeTextMessage:
		r.renderChat(frame.Sender, payload.(string), false, localID)

	case protocol.FrameTypeDirectMessage:
		r.renderChat(frame.Sender, payload.(protocol.DirectMessagePayload).Content, true, localID)

	case protocol.FrameTypeDrawStart, protocol.FrameTypeDrawMove,
		protocol.FrameTypeDrawEnd, protocol.FrameTypeClearBoard:
		if frame.Sender != "" && frame.Sender == localID {
			return
		}
		event, err := protocol.DrawEventFromFrame(frame)
		if err != nil {
			log.Debug().Err(err).Str("frame_type", string(frame.Type)).Msg("dropping invalid draw frame")
			return
		}
		r.board.ApplyRemote(frame.Sender, event)

	case protocol.FrameTypeTypingStart:
		if r.store.AddTyping(frame.Sender) {
			r.view.TypingChanged(r.store.IndicatorText())
		}

	case protocol.FrameTypeTypingStop:
		if frame.Sender == localID {
			return
		}
		if r.store.RemoveTyping(frame.Sender) {
			r.view.TypingChanged(r.store.IndicatorText())
		}

	default:
		log.Debug().Str("frame_type", string(frame.Type)).Msg("ignoring unknown frame type")
		return
	}

	if r.tap != nil {
		r.tap.Observe(frame)
	}
}

// renderChat renders a chat line. Members of the room render immediately; other senders
// are resolved in the background.
func (r *Router) renderChat(senderID, text string, direct bool, localID string) {
	msg := ChatMessage{
		Text:     text,
		SenderID: senderID,
		FromSelf: senderID != "" && senderID == localID,
		Direct:   direct,
	}

	if senderID == "" {
		msg.DisplayName = unknownSender
		r.view.RenderChat(msg)
		return
	}

	if u, ok := r.store.User(senderID); ok && u.Username != "" {
		msg.DisplayName = u.Username
		r.view.RenderChat(msg)
		return
	}

	generation := r.store.Generation()
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(r.ctx, r.lookupTimeout)
		defer cancel()
		msg.DisplayName = r.names.DisplayName(ctx, senderID)

		rendered := r.store.IfGeneration(generation, func() { r.view.RenderChat(msg) })
		if !rendered {
			log.Debug().Str("sender", senderID).Msg("room changed during sender lookup, dropping chat message")
		}
	}()
}

// Wait blocks until pending sender lookups have finished
func (r *Router) Wait() {
	r.wg.Wait()
}

// Close cancels pending sender lookups and waits for them
func (r *Router) Close() {
	r.cancel()
	r.wg.Wait()
}
