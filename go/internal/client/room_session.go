package client

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/roomsync/go/internal/protocol"
	"github.com/mcdev12/roomsync/go/internal/roomstate"
	"github.com/mcdev12/roomsync/go/internal/router"
	"github.com/mcdev12/roomsync/go/internal/typing"
	"github.com/mcdev12/roomsync/go/internal/usercache"
	"github.com/mcdev12/roomsync/go/internal/whiteboard"
)

// RoomSession is the state of one room membership. It is built when a room is joined and
// thrown away as a whole when the client leaves or switches rooms.
type RoomSession struct {
	RoomID string

	store  *roomstate.Store
	cache  *usercache.Cache
	router *router.Router
	typing *typing.Machine
}

type roomDeps struct {
	localID       string
	board         *whiteboard.Replicator
	view          router.View
	lookup        usercache.Lookup
	cacheStore    usercache.Store
	tap           router.Tap
	clock         clockwork.Clock
	emitTyping    typing.Emitter
	debounceDelay time.Duration
	lookupTimeout time.Duration
}

func newRoomSession(roomID string, deps roomDeps) *RoomSession {
	store := roomstate.NewStore()
	store.SetLocalUser(deps.localID)

	cache := usercache.New(store, deps.cacheStore, deps.lookup)

	opts := []router.Option{router.WithLookupTimeout(deps.lookupTimeout)}
	if deps.tap != nil {
		opts = append(opts, router.WithTap(deps.tap))
	}

	return &RoomSession{
		RoomID: roomID,
		store:  store,
		cache:  cache,
		router: router.New(store, cache, deps.board, deps.view, opts...),
		typing: typing.NewMachine(deps.clock, deps.debounceDelay, deps.emitTyping),
	}
}

// OnFrame routes one inbound frame of this room
func (rs *RoomSession) OnFrame(data []byte) {
	rs.router.OnFrame(data)
}

// Users returns the room members sorted by id
func (rs *RoomSession) Users() []protocol.User {
	return rs.store.Users()
}

// DirectTargets returns the members that can receive a direct message
func (rs *RoomSession) DirectTargets() []protocol.User {
	return rs.store.DirectTargets()
}

// TypingText returns the current typing indicator line
func (rs *RoomSession) TypingText() string {
	return rs.store.IndicatorText()
}

// close drops the room state. Pending sender lookups of this room are discarded.
func (rs *RoomSession) close() {
	rs.typing.Reset()
	rs.store.Clear()
	rs.router.Close()
	log.Debug().Str("room_id", rs.RoomID).Msg("room session closed")
}
