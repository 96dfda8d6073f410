// Package usercache resolves user ids to display metadata for chat rendering.
package usercache

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/mcdev12/roomsync/go/internal/protocol"
)

// sharedLookupTimeout bounds a lookup once it no longer follows its first caller's context
const sharedLookupTimeout = 10 * time.Second

// Directory is the live user set of the joined room
type Directory interface {
	User(id string) (protocol.User, bool)
}

// Lookup fetches user metadata from the server (GET /api/users/{id})
type Lookup interface {
	GetUser(ctx context.Context, id string) (*protocol.User, error)
}

// Store keeps resolved metadata. Entries are snapshots: once an id is stored its value is
// never replaced.
type Store interface {
	// Get returns the stored entry, if any
	Get(ctx context.Context, id string) (*protocol.User, bool, error)
	// PutIfAbsent stores u unless an entry for u.ID exists, and returns the entry that is
	// stored after the call
	PutIfAbsent(ctx context.Context, u protocol.User) (*protocol.User, error)
}

// Cache resolves ids from the live room first, then from the store, then with one lookup
// per id in flight. Failed lookups are not remembered.
type Cache struct {
	directory Directory
	store     Store
	lookup    Lookup
	sfGroup   singleflight.Group // Collapses concurrent lookups for the same id
}

// New creates a cache. A nil store defaults to an in-memory store.
func New(directory Directory, store Store, lookup Lookup) *Cache {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Cache{
		directory: directory,
		store:     store,
		lookup:    lookup,
	}
}

// Resolve returns the metadata for userID, or nil when it cannot be resolved
func (c *Cache) Resolve(ctx context.Context, userID string) *protocol.User {
	if userID == "" {
		return nil
	}

	// Step 1: live room members
	if c.directory != nil {
		if u, ok := c.directory.User(userID); ok {
			return &u
		}
	}

	// Step 2: previously resolved entries
	cached, found, err := c.store.Get(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("user cache read failed")
	}
	if found {
		return cached
	}

	if c.lookup == nil {
		return nil
	}

	// Step 3: one outbound lookup per id in flight. The shared lookup does not inherit
	// the cancellation of whichever caller started it.
	ch := c.sfGroup.DoChan(userID, func() (interface{}, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLookupTimeout)
		defer cancel()

		u, err := c.lookup.GetUser(lookupCtx, userID)
		if err != nil {
			return nil, err
		}
		if u == nil || u.ID == "" {
			return nil, ErrUserNotFound
		}
		stored, err := c.store.PutIfAbsent(lookupCtx, *u)
		if err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("user cache write failed")
			return u, nil
		}
		return stored, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		log.Debug().Err(ctx.Err()).Str("user_id", userID).Msg("gave up waiting for user lookup")
		return nil
	}
	if res.Err != nil {
		log.Debug().Err(res.Err).Str("user_id", userID).Msg("user lookup failed")
		return nil
	}
	val, shared := res.Val, res.Shared

	u, ok := val.(*protocol.User)
	if !ok || u == nil {
		return nil
	}
	log.Debug().Str("user_id", userID).Bool("shared", shared).Msg("user resolved by lookup")

	result := *u
	return &result
}

// DisplayName resolves userID to a username, falling back to the raw id
func (c *Cache) DisplayName(ctx context.Context, userID string) string {
	if u := c.Resolve(ctx, userID); u != nil && u.Username != "" {
		return u.Username
	}
	return userID
}
