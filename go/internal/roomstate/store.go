package roomstate

import (
	"sort"
	"sync"

	"github.com/mcdev12/roomsync/go/internal/protocol"
)

const unknownTyper = "Someone"

// Store holds the presence state of the currently joined room: the connected users and the
// subset of them currently typing. It is scoped to one room at a time; Clear drops
// everything and starts a new generation.
type Store struct {
	// Held by Clear and by IfGeneration, so no callback of an old generation runs after
	// Clear returns
	genMu sync.Mutex

	mu         sync.RWMutex
	users      map[string]protocol.User
	typing     map[string]struct{}
	localID    string
	generation uint64
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		users:  make(map[string]protocol.User),
		typing: make(map[string]struct{}),
	}
}

// SetLocalUser records the local user id, which is never admitted into the typing set
func (s *Store) SetLocalUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.localID = userID
	delete(s.typing, userID)
}

// LocalUser returns the local user id
func (s *Store) LocalUser() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.localID
}

// Clear drops users and typing state and returns the new generation
func (s *Store) Clear() uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = make(map[string]protocol.User)
	s.typing = make(map[string]struct{})
	s.generation++
	return s.generation
}

// Generation identifies the current room view. It changes on every Clear.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// IfGeneration runs fn if the store is still at generation and reports whether it ran.
// fn may read the store but must not call Clear.
func (s *Store) IfGeneration(generation uint64, fn func()) bool {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.Generation() != generation {
		return false
	}
	fn()
	return true
}

// SetUsers replaces the user set with a server snapshot. Entries without an id are skipped.
func (s *Store) SetUsers(users []protocol.User) {
	next := make(map[string]protocol.User, len(users))
	for _, u := range users {
		if u.ID == "" {
			continue
		}
		next[u.ID] = u
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = next
}

// Count returns the number of connected users
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// User looks up a connected user by id
func (s *Store) User(id string) (protocol.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok
}

// Users returns the connected users ordered by id
func (s *Store) Users() []protocol.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedUsers("")
}

// DirectTargets returns the users a direct message can be sent to (everyone but the local
// user), ordered by id
func (s *Store) DirectTargets() []protocol.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedUsers(s.localID)
}

func (s *Store) sortedUsers(exclude string) []protocol.User {
	users := make([]protocol.User, 0, len(s.users))
	for id, u := range s.users {
		if exclude != "" && id == exclude {
			continue
		}
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

// AddTyping marks a user as typing. It reports whether the set changed; the local user and
// empty ids are rejected.
func (s *Store) AddTyping(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if userID == "" || userID == s.localID {
		return false
	}
	if _, ok := s.typing[userID]; ok {
		return false
	}
	s.typing[userID] = struct{}{}
	return true
}

// RemoveTyping clears a user's typing mark. It reports whether the set changed.
func (s *Store) RemoveTyping(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.typing[userID]; !ok {
		return false
	}
	delete(s.typing, userID)
	return true
}

// IsTyping reports whether a user is in the typing set
func (s *Store) IsTyping(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.typing[userID]
	return ok
}

// TypingIDs returns the typing users ordered by id
func (s *Store) TypingIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.typingIDs()
}

func (s *Store) typingIDs() []string {
	ids := make([]string, 0, len(s.typing))
	for id := range s.typing {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IndicatorText renders the typing indicator line. At most two names are shown; users no
// longer in the user set are shown as "Someone".
func (s *Store) IndicatorText() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.typingIDs()
	if len(ids) == 0 {
		return ""
	}

	names := make([]string, 0, 2)
	for _, id := range ids {
		if len(names) == 2 {
			break
		}
		name := unknownTyper
		if u, ok := s.users[id]; ok && u.Username != "" {
			name = u.Username
		}
		names = append(names, name)
	}

	if len(names) == 1 {
		return names[0] + " is typing..."
	}
	return names[0] + " and " + names[1] + " are typing..."
}
