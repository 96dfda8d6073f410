package roomstate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/roomsync/go/internal/protocol"
)

func TestStore_SetUsersReplaces(t *testing.T) {
	s := NewStore()
	s.SetUsers([]protocol.User{{ID: "u1", Username: "Ana"}, {ID: "u2", Username: "Ben"}})
	require.Equal(t, 2, s.Count())

	s.SetUsers([]protocol.User{{ID: "u3", Username: "Cleo"}, {ID: "", Username: "nobody"}})
	assert.Equal(t, 1, s.Count())
	_, ok := s.User("u1")
	assert.False(t, ok, "snapshot replaces, never merges")

	u, ok := s.User("u3")
	require.True(t, ok)
	assert.Equal(t, "Cleo", u.Username)
}

func TestStore_UsersOrdering(t *testing.T) {
	s := NewStore()
	s.SetLocalUser("u2")
	s.SetUsers([]protocol.User{{ID: "u3"}, {ID: "u1"}, {ID: "u2"}})

	assert.Equal(t, []protocol.User{{ID: "u1"}, {ID: "u2"}, {ID: "u3"}}, s.Users())
	assert.Equal(t, []protocol.User{{ID: "u1"}, {ID: "u3"}}, s.DirectTargets())
}

func TestStore_ClearBumpsGeneration(t *testing.T) {
	s := NewStore()
	s.SetUsers([]protocol.User{{ID: "u1"}})
	s.AddTyping("u1")
	before := s.Generation()

	gen := s.Clear()

	assert.Equal(t, before+1, gen)
	assert.Equal(t, gen, s.Generation())
	assert.Zero(t, s.Count())
	assert.Empty(t, s.TypingIDs())
}

func TestStore_IfGeneration(t *testing.T) {
	s := NewStore()
	gen := s.Generation()

	ran := false
	assert.True(t, s.IfGeneration(gen, func() { ran = true }))
	assert.True(t, ran)

	s.Clear()
	assert.False(t, s.IfGeneration(gen, func() { t.Error("stale callback ran") }))
}

func TestStore_ClearWaitsForRunningCallback(t *testing.T) {
	s := NewStore()
	gen := s.Generation()

	inside := make(chan struct{})
	release := make(chan struct{})
	go s.IfGeneration(gen, func() {
		close(inside)
		<-release
	})
	<-inside

	cleared := make(chan struct{})
	go func() {
		s.Clear()
		close(cleared)
	}()

	select {
	case <-cleared:
		t.Fatal("Clear returned while a callback of the old generation was running")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	select {
	case <-cleared:
	case <-time.After(2 * time.Second):
		t.Fatal("Clear did not return")
	}
	require.NotEqual(t, gen, s.Generation())
}

func TestStore_TypingExcludesLocalUser(t *testing.T) {
	s := NewStore()
	s.SetLocalUser("me")

	assert.False(t, s.AddTyping("me"))
	assert.False(t, s.AddTyping(""))
	assert.True(t, s.AddTyping("u1"))
	assert.False(t, s.AddTyping("u1"), "already typing")
	assert.Equal(t, []string{"u1"}, s.TypingIDs())

	assert.True(t, s.RemoveTyping("u1"))
	assert.False(t, s.RemoveTyping("u1"))
	assert.False(t, s.IsTyping("u1"))
}

func TestStore_SetLocalUserEvictsTyping(t *testing.T) {
	s := NewStore()
	s.AddTyping("u1")
	s.SetLocalUser("u1")
	assert.Empty(t, s.TypingIDs())
}

func TestStore_IndicatorText(t *testing.T) {
	tests := []struct {
		name   string
		users  []protocol.User
		typing []string
		want   string
	}{
		{
			name: "nobody typing",
			want: "",
		},
		{
			name:   "one known user",
			users:  []protocol.User{{ID: "u1", Username: "Ana"}},
			typing: []string{"u1"},
			want:   "Ana is typing...",
		},
		{
			name:   "unknown user",
			typing: []string{"u9"},
			want:   "Someone is typing...",
		},
		{
			name:   "two users",
			users:  []protocol.User{{ID: "u1", Username: "Ana"}, {ID: "u2", Username: "Ben"}},
			typing: []string{"u2", "u1"},
			want:   "Ana and Ben are typing...",
		},
		{
			name:   "more than two shows the first two",
			users:  []protocol.User{{ID: "u1", Username: "Ana"}, {ID: "u2", Username: "Ben"}, {ID: "u3", Username: "Cleo"}},
			typing: []string{"u3", "u2", "u1"},
			want:   "Ana and Ben are typing...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			s.SetUsers(tt.users)
			for _, id := range tt.typing {
				s.AddTyping(id)
			}
			assert.Equal(t, tt.want, s.IndicatorText())
		})
	}
}
