// Package client is the entry point of the room sync layer: it owns the session, the
// connection and the active RoomSession, and turns user actions into outbound frames.
package client

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/roomsync/go/internal/api"
	"github.com/mcdev12/roomsync/go/internal/connection"
	"github.com/mcdev12/roomsync/go/internal/protocol"
	"github.com/mcdev12/roomsync/go/internal/relay"
	"github.com/mcdev12/roomsync/go/internal/router"
	"github.com/mcdev12/roomsync/go/internal/session"
	"github.com/mcdev12/roomsync/go/internal/typing"
	"github.com/mcdev12/roomsync/go/internal/usercache"
	"github.com/mcdev12/roomsync/go/internal/whiteboard"
)

const selfFallbackName = "You"

// View is everything the client renders. Methods may be called from several goroutines.
type View interface {
	router.View
	Notify(text string)
}

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	ServerURL      string
	Connection     connection.ConnectionConfig
	HTTPTimeout    time.Duration
	TypingDebounce time.Duration
	LookupTimeout  time.Duration
	Clock          clockwork.Clock
	CacheStore     usercache.Store     // Shared by all rooms; nil keeps metadata in memory
	Relay          *relay.Publisher    // Optional NATS mirror of routed frames
	TokenFile      *session.TokenFile  // Optional credential persistence
	Renderer       whiteboard.Renderer // Defaults to an in-memory Surface
}

// Client is a logged-in (or not) user with at most one joined room
type Client struct {
	api      *api.Client
	session  *session.Holder
	tokens   *session.TokenFile
	manager  *connection.Manager
	board    *whiteboard.Replicator
	renderer whiteboard.Renderer
	view     View
	opts     Options

	mu       sync.Mutex
	room     *RoomSession
	dmTarget string
	joining  bool
}

// New creates a logged-out client
func New(opts Options, view View) *Client {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.TypingDebounce <= 0 {
		opts.TypingDebounce = typing.DefaultDebounce
	}
	if opts.CacheStore == nil {
		opts.CacheStore = usercache.NewMemoryStore()
	}
	if opts.TokenFile == nil {
		opts.TokenFile = session.NewTokenFile("")
	}
	if opts.Renderer == nil {
		opts.Renderer = whiteboard.NewSurface()
	}

	c := &Client{
		api:      api.NewClient(opts.ServerURL),
		session:  session.NewHolder(),
		tokens:   opts.TokenFile,
		board:    whiteboard.NewReplicator(opts.Renderer),
		renderer: opts.Renderer,
		view:     view,
		opts:     opts,
	}
	c.api.SetTimeout(opts.HTTPTimeout)
	c.manager = connection.NewManager(opts.ServerURL, opts.Connection, connection.Handlers{
		OnFrame:        c.onFrame,
		OnReset:        c.onReset,
		OnConnected:    c.onConnected,
		OnDisconnected: c.onDisconnected,
	})
	return c
}

// Session returns the logged-in identity, nil when logged out
func (c *Client) Session() *session.Session {
	return c.session.Session()
}

// Renderer returns the whiteboard renderer
func (c *Client) Renderer() whiteboard.Renderer {
	return c.renderer
}

// State returns the connection state
func (c *Client) State() connection.State {
	return c.manager.State()
}

// Room returns the active room session, nil when no room is joined
func (c *Client) Room() *RoomSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

// Restore logs in with the persisted credential, if there is a usable one
func (c *Client) Restore() *session.Session {
	token, err := c.tokens.Load()
	if err != nil {
		log.Warn().Err(err).Msg("could not load saved credential")
		return nil
	}
	if token == "" {
		return nil
	}
	if !c.session.SetToken(token) {
		log.Info().Msg("saved credential is unusable, discarding it")
		if err := c.tokens.Remove(); err != nil {
			log.Warn().Err(err).Msg("could not remove saved credential")
		}
		return nil
	}
	return c.session.Session()
}

// Login exchanges username for a credential and derives the session from it
func (c *Client) Login(ctx context.Context, username string) (*session.Session, error) {
	token, err := c.api.Login(ctx, username)
	if err != nil {
		return nil, err
	}
	if !c.session.SetToken(token) {
		return nil, ErrInvalidCredential
	}
	if err := c.tokens.Save(token); err != nil {
		log.Warn().Err(err).Msg("could not persist credential")
	}

	s := c.session.Session()
	log.Info().Str("user_id", s.UserID).Str("username", s.Username).Msg("logged in")
	return s, nil
}

// Logout leaves the room and forgets the credential
func (c *Client) Logout() {
	c.Leave()
	c.session.Clear()
	if err := c.tokens.Remove(); err != nil {
		log.Warn().Err(err).Msg("could not remove saved credential")
	}
	c.view.UsersChanged(nil, "")
	c.view.Notify("Logged out")
}

// ListRooms returns the active rooms on the server
func (c *Client) ListRooms(ctx context.Context) ([]protocol.Room, error) {
	return c.api.ListRooms(ctx)
}

// Health checks that the server is reachable
func (c *Client) Health(ctx context.Context) error {
	return c.api.Health(ctx)
}

// JoinRoom connects to roomID, replacing the current room if any
func (c *Client) JoinRoom(ctx context.Context, roomID string) error {
	roomID = strings.TrimSpace(roomID)
	token := c.session.Token()
	if token == "" {
		return ErrNotLoggedIn
	}

	c.mu.Lock()
	c.joining = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.joining = false
		c.mu.Unlock()
	}()

	if err := c.manager.Connect(ctx, roomID, token); err != nil {
		return fmt.Errorf("join room %s: %w", roomID, err)
	}
	return nil
}

// Leave disconnects from the current room and drops its state
func (c *Client) Leave() {
	c.manager.Disconnect()

	c.mu.Lock()
	old := c.room
	c.room = nil
	c.dmTarget = ""
	c.mu.Unlock()

	if old != nil {
		old.close()
		c.board.Reset()
	}
}

// Close releases the connection
func (c *Client) Close() {
	c.Leave()
}

// SetDirectTarget selects the recipient of subsequent chat messages; empty selects the
// whole room
func (c *Client) SetDirectTarget(userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if userID == "" {
		c.dmTarget = ""
		return nil
	}
	if c.room == nil {
		return ErrNotConnected
	}
	for _, u := range c.room.DirectTargets() {
		if u.ID == userID {
			c.dmTarget = userID
			return nil
		}
	}
	return fmt.Errorf("%s: %w", userID, ErrUnknownTarget)
}

// DirectTarget returns the selected direct message recipient, empty for room chat
func (c *Client) DirectTarget() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dmTarget
}

// SendChat sends text to the room, or to the selected direct target, and renders it
// locally. Blank text is ignored. Typing stops immediately.
func (c *Client) SendChat(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	c.mu.Lock()
	rs, target := c.room, c.dmTarget
	c.mu.Unlock()
	if rs == nil {
		return ErrNotConnected
	}

	frame := protocol.TextMessageFrame(text)
	if target != "" {
		frame = protocol.DirectMessageFrame(target, text)
	}
	if !c.manager.Send(frame) {
		log.Debug().Str("room_id", rs.RoomID).Msg("chat message not sent")
	}

	msg := router.ChatMessage{
		Text:        text,
		SenderID:    c.session.UserID(),
		DisplayName: selfFallbackName,
		FromSelf:    true,
		Direct:      target != "",
	}
	if s := c.session.Session(); s != nil && s.Username != "" {
		msg.DisplayName = s.Username
	}
	c.view.RenderChat(msg)

	rs.typing.OnSend()
	return nil
}

// OnInput reports an edit of the chat input
func (c *Client) OnInput(text string) {
	if rs := c.Room(); rs != nil {
		rs.typing.OnInput(text)
	}
}

// PointerDown starts a local stroke at p
func (c *Client) PointerDown(p whiteboard.Point) {
	c.drawLocal(protocol.FrameTypeDrawStart, p)
}

// PointerMove extends the local stroke to p
func (c *Client) PointerMove(p whiteboard.Point) {
	c.drawLocal(protocol.FrameTypeDrawMove, p)
}

// PointerUp ends the local stroke
func (c *Client) PointerUp() {
	c.drawLocal(protocol.FrameTypeDrawEnd, whiteboard.Point{})
}

// ClearBoard wipes the whiteboard for everyone in the room
func (c *Client) ClearBoard() {
	c.drawLocal(protocol.FrameTypeClearBoard, whiteboard.Point{})
}

// SetStyle changes the local stroke style
func (c *Client) SetStyle(style whiteboard.Style) {
	c.board.SetStyle(style)
}

// Style returns the local stroke style
func (c *Client) Style() whiteboard.Style {
	return c.board.Style()
}

func (c *Client) drawLocal(kind protocol.FrameType, p whiteboard.Point) {
	if c.Room() == nil {
		return
	}
	if event, ok := c.board.ApplyLocal(kind, p); ok {
		c.manager.Send(protocol.DrawFrame(event))
	}
}

func (c *Client) onFrame(data []byte) {
	if rs := c.Room(); rs != nil {
		rs.OnFrame(data)
	}
}

// onReset installs a fresh RoomSession before the new connection is dialed
func (c *Client) onReset(roomID string) {
	var tap router.Tap
	if c.opts.Relay != nil {
		tap = c.opts.Relay.Tap(roomID)
	}

	next := newRoomSession(roomID, roomDeps{
		localID:       c.session.UserID(),
		board:         c.board,
		view:          c.view,
		lookup:        c.api,
		cacheStore:    c.opts.CacheStore,
		tap:           tap,
		clock:         c.opts.Clock,
		emitTyping:    c.emitTyping,
		debounceDelay: c.opts.TypingDebounce,
		lookupTimeout: c.opts.LookupTimeout,
	})

	c.mu.Lock()
	old := c.room
	c.room = next
	c.dmTarget = ""
	c.mu.Unlock()

	if old != nil {
		old.close()
	}
	c.board.Reset()

	c.view.UsersChanged(nil, c.session.UserID())
	c.view.TypingChanged("")
}

func (c *Client) emitTyping(start bool) {
	c.manager.Send(protocol.TypingFrame(start))
}

func (c *Client) onConnected(roomID string) {
	c.view.Notify("Connected to " + roomID)
}

func (c *Client) onDisconnected(roomID string, err error) {
	c.mu.Lock()
	joining := c.joining
	rs := c.room
	c.mu.Unlock()

	if rs != nil && rs.RoomID == roomID {
		rs.typing.Reset()
	}
	if err != nil {
		c.view.Notify("Connection error")
	}
	if !joining {
		c.view.Notify("Disconnected")
	}
}
